// Package mock provides a scripted recognizer for running practice sessions
// without a speech backend. Each audio frame advances the script by one
// result: progressive partials, then a segment boundary carrying the
// committed text.
package mock

import (
	"context"
	"sync"
	"time"

	"ai-speech-coach-service/internal/models"
	"ai-speech-coach-service/internal/service/stt"
)

// Utterance is one scripted recognizer segment.
type Utterance struct {
	Partials []string // Progressive hypotheses for the segment
	Final    string   // Committed text at the segment boundary
}

// DefaultUtterances is a short Korean presentation rehearsal with fillers.
var DefaultUtterances = []Utterance{
	{
		Partials: []string{"안녕하세요", "안녕하세요 음 저는", "안녕하세요 음 저는 오늘 발표를"},
		Final:    "안녕하세요 음 저는 오늘 발표를 맡은",
	},
	{
		Partials: []string{"어", "어 그러니까", "어 그러니까 이번 프로젝트는"},
		Final:    "어 그러니까 이번 프로젝트는 말하기 연습을",
	},
	{
		Partials: []string{"음 약간", "음 약간 빠르게", "음 약간 빠르게 말하는 습관을"},
		Final:    "음 약간 빠르게 말하는 습관을 고치기 위해",
	},
	{
		Partials: []string{"감사합니다"},
		Final:    "감사합니다",
	},
}

const resultBuffer = 64

// Adapter implements stt.Recognizer with scripted results.
type Adapter struct {
	mu           sync.Mutex
	script       []Utterance
	utterance    int // Index of the current utterance
	partialIndex int // Next partial to send
	clock        func() float64
	out          chan stt.Result
	closed       bool
}

// Option configures the mock adapter.
type Option func(*Adapter)

// WithScript replaces DefaultUtterances.
func WithScript(script []Utterance) Option {
	return func(a *Adapter) {
		if len(script) > 0 {
			a.script = script
		}
	}
}

// WithClock sets the timestamp source. The default is seconds since Start.
func WithClock(clock func() float64) Option {
	return func(a *Adapter) {
		a.clock = clock
	}
}

// New creates a new mock recognizer.
func New(opts ...Option) *Adapter {
	a := &Adapter{script: DefaultUtterances}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Start begins a mock recognition session.
func (a *Adapter) Start(ctx context.Context) (<-chan stt.Result, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.clock == nil {
		started := time.Now()
		a.clock = func() float64 { return time.Since(started).Seconds() }
	}
	a.out = make(chan stt.Result, resultBuffer)
	return a.out, nil
}

// SendAudio emits the next scripted result, cycling through the script.
func (a *Adapter) SendAudio(ctx context.Context, audio []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed || a.out == nil {
		return nil
	}

	utt := a.script[a.utterance%len(a.script)]
	ev := models.TranscriptionEvent{Timestamp: a.clock()}
	if a.partialIndex < len(utt.Partials) {
		ev.Text = utt.Partials[a.partialIndex]
		a.partialIndex++
	} else {
		ev.Text = utt.Final
		ev.IsSegmentBoundary = true
		a.utterance++
		a.partialIndex = 0
	}

	select {
	case a.out <- stt.Result{Event: ev}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Fail delivers err as the terminal result and closes the stream.
func (a *Adapter) Fail(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed || a.out == nil {
		return
	}
	a.closed = true
	select {
	case a.out <- stt.Result{Err: err}:
	default:
	}
	close(a.out)
}

// Close ends the session with a final result committing whatever the
// current utterance has reached, then closes the stream.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil
	}
	a.closed = true
	if a.out == nil {
		return nil
	}

	text := ""
	if a.partialIndex > 0 {
		text = a.script[a.utterance%len(a.script)].Partials[a.partialIndex-1]
	}
	final := stt.Result{Event: models.TranscriptionEvent{
		Text:              text,
		Timestamp:         a.clock(),
		IsSegmentBoundary: true,
		IsFinal:           true,
	}}
	select {
	case a.out <- final:
	default:
	}
	close(a.out)
	return nil
}
