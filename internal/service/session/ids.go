package session

import (
	"fmt"
	"sync/atomic"

	"github.com/rs/xid"
)

// NewID returns a globally unique, sortable session ID.
func NewID() string {
	return "sess-" + xid.New().String()
}

// SegmentGenerator numbers the recognizer segments of one session.
type SegmentGenerator struct {
	sessionId string
	counter   uint64
}

// NewSegmentGenerator creates a generator whose first ID is "<sessionId>-seg-1".
func NewSegmentGenerator(sessionId string) *SegmentGenerator {
	return &SegmentGenerator{sessionId: sessionId}
}

// Current returns the ID of the open segment without advancing.
func (g *SegmentGenerator) Current() string {
	return g.format(atomic.LoadUint64(&g.counter) + 1)
}

// Next closes the current segment and returns the ID of the new one.
func (g *SegmentGenerator) Next() string {
	return g.format(atomic.AddUint64(&g.counter, 1) + 1)
}

// Count returns how many segments have been closed.
func (g *SegmentGenerator) Count() int {
	return int(atomic.LoadUint64(&g.counter))
}

func (g *SegmentGenerator) format(n uint64) string {
	return fmt.Sprintf("%s-seg-%d", g.sessionId, n)
}
