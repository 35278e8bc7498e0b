package practice

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"ai-speech-coach-service/internal/lexicon"
	"ai-speech-coach-service/internal/models"
	"ai-speech-coach-service/internal/observability/metrics"
	"ai-speech-coach-service/internal/service/session"
	"ai-speech-coach-service/internal/service/stt"
	"ai-speech-coach-service/internal/service/stt/mock"
)

const waitTimeout = 2 * time.Second

// recordingSink captures pushed feedback.
type recordingSink struct {
	feedback chan models.FeedbackEvent
	stopped  chan models.SessionSummary
}

func newRecordingSink() *recordingSink {
	return &recordingSink{
		feedback: make(chan models.FeedbackEvent, 64),
		stopped:  make(chan models.SessionSummary, 1),
	}
}

func (s *recordingSink) Feedback(ev models.FeedbackEvent) { s.feedback <- ev }
func (s *recordingSink) SessionStopped(sum models.SessionSummary) { s.stopped <- sum }

func (s *recordingSink) next(t *testing.T) models.FeedbackEvent {
	t.Helper()
	select {
	case ev := <-s.feedback:
		return ev
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for feedback")
		return models.FeedbackEvent{}
	}
}

// recordingPublisher captures published messages.
type recordingPublisher struct {
	mu        sync.Mutex
	feedback  []models.FeedbackEvent
	summaries []models.SessionSummary
}

func (p *recordingPublisher) PublishFeedback(_ context.Context, ev models.FeedbackEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.feedback = append(p.feedback, ev)
	return nil
}

func (p *recordingPublisher) PublishSummary(_ context.Context, s models.SessionSummary) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.summaries = append(p.summaries, s)
	return nil
}

func (p *recordingPublisher) counts() (int, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.feedback), len(p.summaries)
}

// failingRecognizer fails at start-up.
type failingRecognizer struct {
	err    error
	closed bool
}

func (r *failingRecognizer) Start(ctx context.Context) (<-chan stt.Result, error) { return nil, r.err }
func (r *failingRecognizer) SendAudio(ctx context.Context, audio []byte) error { return nil }
func (r *failingRecognizer) Close() error {
	r.closed = true
	return nil
}

// stepClock returns timestamps step, 2*step, 3*step, ...
func stepClock(step float64) func() float64 {
	var n float64
	return func() float64 {
		n++
		return n * step
	}
}

var greetingScript = []mock.Utterance{
	{
		Partials: []string{"음 안녕하세요", "음 안녕하세요 저는"},
		Final:    "음 안녕하세요 저는 학생",
	},
}

type fixture struct {
	handler   *Handler
	mock      *mock.Adapter
	sink      *recordingSink
	publisher *recordingPublisher
	metrics   *metrics.Metrics
}

func newFixture(t *testing.T, limits Limits) *fixture {
	t.Helper()
	f := &fixture{
		mock:      mock.New(mock.WithScript(greetingScript), mock.WithClock(stepClock(0.5))),
		sink:      newRecordingSink(),
		publisher: &recordingPublisher{},
		metrics:   metrics.NewMetrics(prometheus.NewRegistry()),
	}
	f.handler = NewHandler("sess-test", f.mock, lexicon.NewDefault(), Config{
		Limits:    limits,
		Provider:  "mock",
		Publisher: f.publisher,
		Sink:      f.sink,
		Metrics:   f.metrics,
	})
	t.Cleanup(func() { f.handler.Stop(StopExplicit) })
	return f
}

func waitDone(t *testing.T, h *Handler) {
	t.Helper()
	select {
	case <-h.Done():
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for session to stop")
	}
}

func TestHandler_ProcessesEvents(t *testing.T) {
	f := newFixture(t, Limits{})
	ctx := context.Background()

	if err := f.handler.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := f.handler.SendAudio(ctx, make([]byte, 320)); err != nil {
			t.Fatalf("SendAudio %d failed: %v", i, err)
		}
	}

	first := f.sink.next(t)
	if first.Rate != 300 || first.FillerCount != 1 || first.Sequence != 1 {
		t.Errorf("unexpected first feedback %+v", first)
	}
	second := f.sink.next(t)
	if second.Rate != 240 || second.FlagCount != 0 || second.FillerCount != 1 {
		t.Errorf("unexpected second feedback %+v", second)
	}
	if second.SpeedZone != "normal" || second.GaugePct != 20 || second.Trend != "steady" {
		t.Errorf("unexpected gauge values %+v", second)
	}
	boundary := f.sink.next(t)
	if boundary.Rate != 240 || boundary.FillerCount != 0 {
		t.Errorf("boundary must keep the rate and reset fillers, got %+v", boundary)
	}
	if boundary.SegmentID != "sess-test-seg-1" {
		t.Errorf("boundary should carry the committed segment, got %s", boundary.SegmentID)
	}

	if !f.handler.Stop(StopExplicit) {
		t.Fatal("first Stop should perform the transition")
	}
	if f.handler.Stop(StopExplicit) {
		t.Error("second Stop should be a no-op")
	}
	waitDone(t, f.handler)

	snap := f.handler.Snapshot()
	if snap.Sequence != 3 || snap.Rate != 240 {
		t.Errorf("expected final snapshot after stop, got %+v", snap)
	}
	if f.handler.State() != session.StateStopped {
		t.Errorf("expected STOPPED, got %s", f.handler.State())
	}

	sum, ok := f.handler.Summary()
	if !ok {
		t.Fatal("expected summary after stop")
	}
	if sum.SPMAverage != 240 || sum.Events != 3 || sum.Segments != 1 {
		t.Errorf("unexpected summary %+v", sum)
	}
	if sum.FWPM != 60 || sum.StopReason != StopExplicit {
		t.Errorf("unexpected summary %+v", sum)
	}
	if len(sum.EachFillerWordCount) != 1 || sum.EachFillerWordCount[0].FillerWord != "음" {
		t.Errorf("unexpected filler counts %+v", sum.EachFillerWordCount)
	}

	select {
	case pushed := <-f.sink.stopped:
		if pushed.SessionID != "sess-test" {
			t.Errorf("unexpected pushed summary %+v", pushed)
		}
	default:
		t.Error("expected sink to receive the summary")
	}
	if fb, sums := f.publisher.counts(); fb != 3 || sums != 1 {
		t.Errorf("expected 3 feedback and 1 summary published, got %d and %d", fb, sums)
	}
	if got := testutil.ToFloat64(f.metrics.SessionsStopped.WithLabelValues(StopExplicit)); got != 1 {
		t.Errorf("expected 1 explicit stop recorded, got %v", got)
	}
}

func TestHandler_PauseIgnoresEvents(t *testing.T) {
	f := newFixture(t, Limits{})
	ctx := context.Background()
	if err := f.handler.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if err := f.handler.Pause(); err != nil {
		t.Fatalf("Pause failed: %v", err)
	}
	f.handler.handleEvent(ctx, models.TranscriptionEvent{Text: "음 어", Timestamp: 1})
	if got := f.handler.Snapshot().Sequence; got != 0 {
		t.Errorf("paused session must not analyse events, sequence=%d", got)
	}
	if got := testutil.ToFloat64(f.metrics.EventsIgnored.WithLabelValues("paused")); got != 1 {
		t.Errorf("expected 1 ignored event, got %v", got)
	}

	if err := f.handler.Resume(); err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	f.handler.handleEvent(ctx, models.TranscriptionEvent{Text: "음 어", Timestamp: 2})
	snap := f.handler.Snapshot()
	if snap.Sequence != 1 || snap.FillerCount != 2 {
		t.Errorf("expected resumed session to analyse, got %+v", snap)
	}
}

func TestHandler_InvalidEventIgnored(t *testing.T) {
	f := newFixture(t, Limits{})
	ctx := context.Background()
	if err := f.handler.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	f.handler.handleEvent(ctx, models.TranscriptionEvent{Text: "음", Timestamp: math.NaN()})
	if got := f.handler.Snapshot().Sequence; got != 0 {
		t.Errorf("invalid event must not be analysed, sequence=%d", got)
	}
	if got := testutil.ToFloat64(f.metrics.EventsIgnored.WithLabelValues("invalid")); got != 1 {
		t.Errorf("expected 1 invalid event, got %v", got)
	}
}

func TestHandler_FinalResultStopsSession(t *testing.T) {
	f := newFixture(t, Limits{})
	ctx := context.Background()
	if err := f.handler.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := f.handler.SendAudio(ctx, make([]byte, 320)); err != nil {
		t.Fatalf("SendAudio failed: %v", err)
	}
	if err := f.handler.EndAudio(); err != nil {
		t.Fatalf("EndAudio failed: %v", err)
	}
	waitDone(t, f.handler)

	sum, ok := f.handler.Summary()
	if !ok {
		t.Fatal("expected summary")
	}
	if sum.StopReason != StopFinalResult {
		t.Errorf("expected stop reason %s, got %s", StopFinalResult, sum.StopReason)
	}
	if sum.Events != 2 || sum.Segments != 1 {
		t.Errorf("final event should be analysed before stopping, got %+v", sum)
	}
}

func TestHandler_RecognizerErrorStopsSession(t *testing.T) {
	f := newFixture(t, Limits{})
	if err := f.handler.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	f.mock.Fail(errors.New("stream reset"))
	waitDone(t, f.handler)

	if sum, _ := f.handler.Summary(); sum.StopReason != StopRecognizerError {
		t.Errorf("expected stop reason %s, got %s", StopRecognizerError, sum.StopReason)
	}
	if got := testutil.ToFloat64(f.metrics.STTErrors.WithLabelValues("mock")); got != 1 {
		t.Errorf("expected 1 recognizer error recorded, got %v", got)
	}
}

func TestHandler_MaxAudioBytesLimit(t *testing.T) {
	f := newFixture(t, Limits{MaxAudioBytes: 100, MaxDuration: time.Hour})
	ctx := context.Background()
	if err := f.handler.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if err := f.handler.SendAudio(ctx, make([]byte, 50)); err != nil {
		t.Fatalf("First send should succeed: %v", err)
	}
	err := f.handler.SendAudio(ctx, make([]byte, 60))
	if !errors.Is(err, ErrLimitExceeded) {
		t.Fatalf("expected ErrLimitExceeded, got %v", err)
	}
	if f.handler.State() != session.StateStopped {
		t.Errorf("expected STOPPED after limit, got %s", f.handler.State())
	}
	if sum, _ := f.handler.Summary(); sum.StopReason != StopLimitExceeded {
		t.Errorf("expected stop reason %s, got %s", StopLimitExceeded, sum.StopReason)
	}
	if err := f.handler.SendAudio(ctx, make([]byte, 1)); !errors.Is(err, session.ErrSessionStopped) {
		t.Errorf("expected ErrSessionStopped after stop, got %v", err)
	}
	if got := testutil.ToFloat64(f.metrics.SessionLimitExceeded.WithLabelValues("audio_bytes")); got != 1 {
		t.Errorf("expected audio_bytes limit recorded, got %v", got)
	}
}

func TestHandler_MaxEventsLimit(t *testing.T) {
	f := newFixture(t, Limits{MaxEvents: 1})
	ctx := context.Background()
	if err := f.handler.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	f.handler.SendAudio(ctx, make([]byte, 320))
	f.handler.SendAudio(ctx, make([]byte, 320))
	waitDone(t, f.handler)

	if got := f.handler.Snapshot().Sequence; got != 1 {
		t.Errorf("expected exactly one analysed event, got %d", got)
	}
	if sum, _ := f.handler.Summary(); sum.StopReason != StopLimitExceeded {
		t.Errorf("expected stop reason %s, got %s", StopLimitExceeded, sum.StopReason)
	}
}

func TestHandler_SendAudioBeforeStart(t *testing.T) {
	f := newFixture(t, Limits{})
	if err := f.handler.SendAudio(context.Background(), []byte{1}); !errors.Is(err, session.ErrNotRecording) {
		t.Errorf("expected ErrNotRecording, got %v", err)
	}
}

func TestHandler_StartTwice(t *testing.T) {
	f := newFixture(t, Limits{})
	if err := f.handler.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := f.handler.Start(context.Background()); !errors.Is(err, session.ErrAlreadyStarted) {
		t.Errorf("expected ErrAlreadyStarted, got %v", err)
	}
}

func TestHandler_StartFailure(t *testing.T) {
	startErr := errors.New("credentials missing")
	tests := []struct {
		name    string
		err     error
		wantErr error
	}{
		{"nil stream", nil, stt.ErrNoEventStream},
		{"start error", startErr, startErr},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &failingRecognizer{err: tt.err}
			h := NewHandler("sess-fail", rec, lexicon.NewDefault(), Config{
				Metrics: metrics.NewMetrics(prometheus.NewRegistry()),
			})

			err := h.Start(context.Background())
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if h.State() != session.StateStopped {
				t.Errorf("expected STOPPED after failed start, got %s", h.State())
			}
			if !rec.closed {
				t.Error("expected recognizer to be closed")
			}
			waitDone(t, h)
		})
	}
}

func TestHandler_ConcurrentStop(t *testing.T) {
	f := newFixture(t, Limits{})
	ctx := context.Background()
	if err := f.handler.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	performed := 0
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			f.handler.SendAudio(ctx, make([]byte, 320))
		}()
		go func() {
			defer wg.Done()
			if f.handler.Stop(StopExplicit) {
				mu.Lock()
				performed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	waitDone(t, f.handler)

	if performed != 1 {
		t.Errorf("expected exactly one Stop to perform the transition, got %d", performed)
	}
	if _, sums := f.publisher.counts(); sums != 1 {
		t.Errorf("expected exactly one summary, got %d", sums)
	}
}

// gatedRecognizer blocks in Start until release is closed.
type gatedRecognizer struct {
	entered chan struct{}
	release chan struct{}
	results chan stt.Result

	mu     sync.Mutex
	ctx    context.Context
	closed bool
}

func newGatedRecognizer() *gatedRecognizer {
	return &gatedRecognizer{
		entered: make(chan struct{}),
		release: make(chan struct{}),
		results: make(chan stt.Result),
	}
}

func (r *gatedRecognizer) Start(ctx context.Context) (<-chan stt.Result, error) {
	r.mu.Lock()
	r.ctx = ctx
	r.mu.Unlock()
	close(r.entered)
	<-r.release
	return r.results, nil
}

func (r *gatedRecognizer) SendAudio(ctx context.Context, audio []byte) error { return nil }

func (r *gatedRecognizer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func TestHandler_StopDuringStart(t *testing.T) {
	rec := newGatedRecognizer()
	m := metrics.NewMetrics(prometheus.NewRegistry())
	h := NewHandler("sess-gated", rec, lexicon.NewDefault(), Config{Metrics: m})

	startErr := make(chan error, 1)
	go func() { startErr <- h.Start(context.Background()) }()

	select {
	case <-rec.entered:
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for recognizer start")
	}
	if !h.Stop(StopShutdown) {
		t.Fatal("expected Stop to perform the transition")
	}
	close(rec.release)

	select {
	case err := <-startErr:
		if !errors.Is(err, session.ErrSessionStopped) {
			t.Errorf("expected ErrSessionStopped, got %v", err)
		}
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for Start to return")
	}
	waitDone(t, h)

	if h.State() != session.StateStopped {
		t.Errorf("expected STOPPED, got %s", h.State())
	}
	rec.mu.Lock()
	ctxErr := rec.ctx.Err()
	closed := rec.closed
	rec.mu.Unlock()
	if ctxErr == nil {
		t.Error("expected recognizer context to be cancelled")
	}
	if !closed {
		t.Error("expected recognizer to be closed")
	}
	if got := testutil.ToFloat64(m.SessionsStarted); got != 0 {
		t.Errorf("expected no started session recorded, got %v", got)
	}
}

// halfCloseRecognizer emits a partial event per audio frame and, on Close,
// delivers the committed final result before closing its channel.
type halfCloseRecognizer struct {
	results chan stt.Result
	once    sync.Once
	ts      float64
	mu      sync.Mutex
}

func (r *halfCloseRecognizer) Start(ctx context.Context) (<-chan stt.Result, error) {
	r.results = make(chan stt.Result, 8)
	return r.results, nil
}

func (r *halfCloseRecognizer) next() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ts += 0.5
	return r.ts
}

func (r *halfCloseRecognizer) SendAudio(ctx context.Context, audio []byte) error {
	r.results <- stt.Result{Event: models.TranscriptionEvent{Text: "안녕하세요", Timestamp: r.next()}}
	return nil
}

func (r *halfCloseRecognizer) Close() error {
	r.once.Do(func() {
		ts := r.next()
		go func() {
			r.results <- stt.Result{Event: models.TranscriptionEvent{
				Text:              "안녕하세요 음 반갑습니다",
				Timestamp:         ts,
				IsSegmentBoundary: true,
				IsFinal:           true,
			}}
			close(r.results)
		}()
	})
	return nil
}

func TestHandler_EndAudioDeliversFinalResult(t *testing.T) {
	rec := &halfCloseRecognizer{}
	sink := newRecordingSink()
	h := NewHandler("sess-half-close", rec, lexicon.NewDefault(), Config{
		Sink:    sink,
		Metrics: metrics.NewMetrics(prometheus.NewRegistry()),
	})
	ctx := context.Background()
	if err := h.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := h.SendAudio(ctx, make([]byte, 320)); err != nil {
		t.Fatalf("SendAudio failed: %v", err)
	}
	sink.next(t)

	if err := h.EndAudio(); err != nil {
		t.Fatalf("EndAudio failed: %v", err)
	}
	if ev := sink.next(t); ev.FillerCount != 0 {
		t.Errorf("expected boundary to reset filler count, got %d", ev.FillerCount)
	}
	waitDone(t, h)

	sum, ok := h.Summary()
	if !ok {
		t.Fatal("expected summary")
	}
	if sum.StopReason != StopFinalResult {
		t.Errorf("expected stop reason %s, got %s", StopFinalResult, sum.StopReason)
	}
	if sum.Events != 2 || sum.Segments != 1 {
		t.Errorf("expected 2 events and 1 segment, got %+v", sum)
	}
}
