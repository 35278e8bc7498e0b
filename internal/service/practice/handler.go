// Package practice runs practice sessions: it coordinates the recognizer,
// the session lifecycle, the analyzer and the feedback sinks.
package practice

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"ai-speech-coach-service/internal/models"
	"ai-speech-coach-service/internal/observability/logging"
	"ai-speech-coach-service/internal/observability/metrics"
	"ai-speech-coach-service/internal/schema"
	"ai-speech-coach-service/internal/service/analysis"
	"ai-speech-coach-service/internal/service/report"
	"ai-speech-coach-service/internal/service/session"
	"ai-speech-coach-service/internal/service/stt"
)

// Stop reasons recorded on the session and in the summary.
const (
	StopExplicit           = "explicit"
	StopFinalResult        = "final_result"
	StopRecognizerError    = "recognizer_error"
	StopRecognizerFinished = "recognizer_finished"
	StopLimitExceeded      = "limit_exceeded"
	StopStartFailed        = "start_failed"
	StopShutdown           = "shutdown"
)

// ErrLimitExceeded is returned by SendAudio when a session limit stops the session.
var ErrLimitExceeded = errors.New("session limit exceeded")

// summaryPublishTimeout bounds the summary publish, which runs after the
// session context is cancelled.
const summaryPublishTimeout = 10 * time.Second

// Limits defines safety guardrails for a practice session. Zero disables a limit.
type Limits struct {
	MaxAudioBytes int64         // Max audio forwarded to the recognizer
	MaxDuration   time.Duration // Max wall-clock session duration
	MaxEvents     int           // Max analysed events
}

// DefaultLimits returns sensible default limits.
func DefaultLimits() Limits {
	return Limits{
		MaxAudioBytes: 50 * 1024 * 1024, // ~27 minutes at 16kHz 16-bit mono
		MaxDuration:   30 * time.Minute,
		MaxEvents:     20000,
	}
}

// Publisher receives feedback and summaries for durable delivery.
type Publisher interface {
	PublishFeedback(ctx context.Context, ev models.FeedbackEvent) error
	PublishSummary(ctx context.Context, s models.SessionSummary) error
}

// FeedbackSink receives live feedback for push delivery to clients.
type FeedbackSink interface {
	Feedback(ev models.FeedbackEvent)
	SessionStopped(s models.SessionSummary)
}

// Config holds the dependencies and tuning shared by all sessions.
type Config struct {
	Limits           Limits
	Retention        time.Duration // How long the registry keeps a stopped session
	SPMAverage       float64
	SustainThreshold int
	Provider         string // Recognizer name for metrics and logs
	Publisher        Publisher
	Sink             FeedbackSink
	Metrics          *metrics.Metrics
}

// Handler manages one practice session. Stop may be called from any
// goroutine; the analyzer is discarded only after an in-flight update
// completes.
type Handler struct {
	id         string
	recognizer stt.Recognizer
	lexicon    analysis.Lexicon
	lifecycle  *session.Lifecycle
	segments   *session.SegmentGenerator
	validator  *schema.Validator
	gauge      report.Gauge
	limits     Limits
	provider   string
	publisher  Publisher
	sink       FeedbackSink
	metrics    *metrics.Metrics
	logger     zerolog.Logger

	// mu guards everything below and serialises analysis with Stop.
	mu         sync.Mutex
	analyzer   *analysis.Analyzer
	acc        *report.Accumulator
	last       analysis.Snapshot
	summary    *models.SessionSummary
	startedAt  time.Time
	audioBytes int64
	events     int
	cancel     context.CancelFunc

	done     chan struct{}
	doneOnce sync.Once
}

// NewHandler creates an IDLE session around rec.
func NewHandler(id string, rec stt.Recognizer, lex analysis.Lexicon, cfg Config) *Handler {
	m := cfg.Metrics
	if m == nil {
		m = metrics.DefaultMetrics
	}
	a := analysis.New(lex, analysis.WithSustainThreshold(cfg.SustainThreshold))
	return &Handler{
		id:         id,
		recognizer: rec,
		lexicon:    lex,
		lifecycle:  session.NewLifecycle(id),
		segments:   session.NewSegmentGenerator(id),
		validator:  schema.New(),
		gauge:      report.NewGauge(cfg.SPMAverage),
		limits:     cfg.Limits,
		provider:   cfg.Provider,
		publisher:  cfg.Publisher,
		sink:       cfg.Sink,
		metrics:    m,
		logger:     logging.WithRecognizer(id, cfg.Provider),
		analyzer:   a,
		acc:        report.NewAccumulator(lex),
		last:       a.Snapshot(),
		done:       make(chan struct{}),
	}
}

// ID returns the session ID.
func (h *Handler) ID() string {
	return h.id
}

// State returns the current lifecycle state.
func (h *Handler) State() session.State {
	return h.lifecycle.State()
}

// Done is closed once the session has stopped and its event loop has exited.
func (h *Handler) Done() <-chan struct{} {
	return h.done
}

// Start moves the session to RECORDING and begins consuming recognizer
// events. The session outlives ctx's cancellation; use Stop to end it.
func (h *Handler) Start(ctx context.Context) error {
	if err := h.lifecycle.Start(); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	results, err := h.recognizer.Start(runCtx)
	if err == nil && results == nil {
		err = stt.ErrNoEventStream
	}
	if err != nil {
		cancel()
		h.metrics.RecordSessionStartFailed()
		h.Stop(StopStartFailed)
		h.logger.Error().Err(err).Msg("Recognizer failed to start")
		return fmt.Errorf("start recognizer: %w", err)
	}

	h.mu.Lock()
	if h.lifecycle.IsStopped() {
		// Stopped while the recognizer was starting; Stop saw no loop to
		// cancel, so unwind here.
		h.mu.Unlock()
		cancel()
		if err := h.recognizer.Close(); err != nil {
			h.logger.Debug().Err(err).Msg("Error closing recognizer")
		}
		h.logger.Info().Msg("Practice session stopped during start")
		return session.ErrSessionStopped
	}
	h.startedAt = time.Now()
	h.cancel = cancel
	h.mu.Unlock()
	h.metrics.RecordSessionStarted()

	h.logger.Info().
		Str("segmentId", h.segments.Current()).
		Msg("Practice session started")

	go h.run(runCtx, results)
	return nil
}

// run drains the recognizer until it ends or the session stops.
func (h *Handler) run(ctx context.Context, results <-chan stt.Result) {
	defer h.closeDone()
	for {
		select {
		case <-ctx.Done():
			return
		case res, ok := <-results:
			if !ok {
				h.Stop(StopRecognizerFinished)
				return
			}
			if res.Err != nil {
				h.metrics.RecordSTTError(h.provider)
				h.logger.Warn().Err(res.Err).Msg("Recognizer error")
				h.Stop(StopRecognizerError)
				return
			}
			h.handleEvent(ctx, res.Event)
			if res.Event.IsFinal {
				h.Stop(StopFinalResult)
				return
			}
		}
	}
}

// handleEvent analyses one event and notifies the sinks outside the lock.
func (h *Handler) handleEvent(ctx context.Context, ev models.TranscriptionEvent) {
	if err := h.validator.Validate(ev); err != nil {
		h.metrics.RecordEventIgnored("invalid")
		h.logger.Warn().Err(err).Msg("Transcription event rejected")
		return
	}

	h.mu.Lock()
	if h.analyzer == nil {
		h.mu.Unlock()
		h.metrics.RecordEventIgnored("stopped")
		return
	}
	if !h.lifecycle.IsRecording() {
		h.mu.Unlock()
		h.metrics.RecordEventIgnored("paused")
		return
	}
	h.events++
	if h.limits.MaxEvents > 0 && h.events > h.limits.MaxEvents {
		count := h.events
		h.mu.Unlock()
		h.metrics.RecordLimitExceeded("events")
		h.logger.Warn().
			Int("events", count).
			Int("maxEvents", h.limits.MaxEvents).
			Msg("Session event limit exceeded")
		h.Stop(StopLimitExceeded)
		return
	}

	snap := h.analyzer.Process(ev)
	h.acc.Observe(ev, snap)
	segmentID := h.segments.Current()
	if ev.IsSegmentBoundary {
		h.segments.Next()
	}
	prev := h.last.Trend
	h.last = snap
	h.mu.Unlock()

	h.metrics.RecordEvent(snap.Boundary, snap.RateAccepted, snap.Rate)
	if snap.Trend.IsSustained() && snap.Trend != prev {
		h.metrics.RecordSustainedTrend(snap.Trend.String())
		h.logger.Debug().
			Str("trend", snap.Trend.String()).
			Int("flagCount", snap.FlagCount).
			Msg("Sustained speaking-rate trend")
	}
	if ev.IsSegmentBoundary {
		fillers := analysis.CountFillers(ev.Text, h.lexicon)
		h.metrics.RecordFillerWords(fillers)
		segLog := logging.WithSegment(h.id, segmentID)
		segLog.Debug().
			Int("fillerWords", fillers).
			Float64("realTimeRate", snap.Rate).
			Msg("Segment committed")
	}

	fb := h.feedbackEvent(segmentID, snap)
	if h.publisher != nil {
		if err := h.publisher.PublishFeedback(ctx, fb); err != nil {
			h.logger.Warn().Err(err).Str("segmentId", segmentID).Msg("Failed to publish feedback")
		}
	}
	if h.sink != nil {
		h.sink.Feedback(fb)
	}
}

func (h *Handler) feedbackEvent(segmentID string, snap analysis.Snapshot) models.FeedbackEvent {
	return models.FeedbackEvent{
		EventType:   models.EventTypeFeedback,
		SessionID:   h.id,
		SegmentID:   segmentID,
		Sequence:    snap.Sequence,
		Timestamp:   snap.Timestamp,
		Rate:        snap.Rate,
		FlagCount:   snap.FlagCount,
		FillerCount: snap.FillerCount,
		Trend:       snap.Trend.String(),
		SpeedZone:   h.gauge.Zone(snap.Rate).String(),
		GaugePct:    h.gauge.Percent(snap.Rate),
		PublishedAt: time.Now().UnixMilli(),
	}
}

// Pause stops analysing events until Resume.
func (h *Handler) Pause() error {
	if err := h.lifecycle.Pause(); err != nil {
		return err
	}
	h.logger.Info().Msg("Practice session paused")
	return nil
}

// Resume continues analysing events after Pause.
func (h *Handler) Resume() error {
	if err := h.lifecycle.Resume(); err != nil {
		return err
	}
	h.logger.Info().Msg("Practice session resumed")
	return nil
}

// SendAudio forwards audio to the recognizer. Exceeding a limit stops the
// session and returns an error wrapping ErrLimitExceeded.
func (h *Handler) SendAudio(ctx context.Context, audio []byte) error {
	switch h.lifecycle.State() {
	case session.StateStopped:
		return session.ErrSessionStopped
	case session.StateIdle:
		return session.ErrNotRecording
	}

	h.mu.Lock()
	h.audioBytes += int64(len(audio))
	currentBytes := h.audioBytes
	elapsed := time.Since(h.startedAt)
	h.mu.Unlock()
	h.metrics.RecordAudioReceived(len(audio))

	if h.limits.MaxAudioBytes > 0 && currentBytes > h.limits.MaxAudioBytes {
		h.metrics.RecordLimitExceeded("audio_bytes")
		h.Stop(StopLimitExceeded)
		return fmt.Errorf("%w: max audio bytes %d > %d", ErrLimitExceeded, currentBytes, h.limits.MaxAudioBytes)
	}
	if h.limits.MaxDuration > 0 && elapsed > h.limits.MaxDuration {
		h.metrics.RecordLimitExceeded("duration")
		h.Stop(StopLimitExceeded)
		return fmt.Errorf("%w: max duration %v > %v", ErrLimitExceeded, elapsed.Round(time.Millisecond), h.limits.MaxDuration)
	}

	return h.recognizer.SendAudio(ctx, audio)
}

// EndAudio tells the recognizer no more audio follows. The session stops
// once the recognizer delivers its final result or closes the stream.
func (h *Handler) EndAudio() error {
	if h.lifecycle.IsStopped() {
		return session.ErrSessionStopped
	}
	return h.recognizer.Close()
}

// Stop ends the session, discards the analysis state and publishes the
// summary. It returns true only for the call that performed the stop.
func (h *Handler) Stop(reason string) bool {
	if !h.lifecycle.Stop(reason) {
		return false
	}

	// Waits for any in-flight Process to finish.
	h.mu.Lock()
	h.analyzer = nil
	summary := h.acc.Summary(h.id, reason)
	summary.StoppedAt = time.Now().UnixMilli()
	h.summary = &summary
	startedAt := h.startedAt
	cancel := h.cancel
	h.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if err := h.recognizer.Close(); err != nil {
		h.logger.Debug().Err(err).Msg("Error closing recognizer")
	}

	if startedAt.IsZero() {
		// Never reached RECORDING; no loop to wait for and nothing to report.
		h.closeDone()
		h.logger.Info().Str("reason", reason).Msg("Practice session stopped before start")
		return true
	}

	duration := time.Since(startedAt)
	h.metrics.RecordSessionStopped(reason, duration.Seconds())

	if h.publisher != nil {
		ctx, cancelPublish := context.WithTimeout(context.Background(), summaryPublishTimeout)
		if err := h.publisher.PublishSummary(ctx, summary); err != nil {
			h.logger.Error().Err(err).Msg("Failed to publish session summary")
		}
		cancelPublish()
	}
	if h.sink != nil {
		h.sink.SessionStopped(summary)
	}

	h.logger.Info().
		Str("reason", reason).
		Int("events", summary.Events).
		Int("segments", summary.Segments).
		Float64("spmAverage", summary.SPMAverage).
		Float64("fwpm", summary.FWPM).
		Dur("duration", duration.Round(time.Millisecond)).
		Msg("Practice session stopped")
	return true
}

func (h *Handler) closeDone() {
	h.doneOnce.Do(func() { close(h.done) })
}

// Snapshot returns the latest analysis snapshot; after Stop, the final one.
func (h *Handler) Snapshot() analysis.Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.last
}

// Feedback returns the latest snapshot as a feedback event.
func (h *Handler) Feedback() models.FeedbackEvent {
	h.mu.Lock()
	snap := h.last
	h.mu.Unlock()
	return h.feedbackEvent(h.segments.Current(), snap)
}

// Summary returns the session summary once the session has stopped.
func (h *Handler) Summary() (models.SessionSummary, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.summary == nil {
		return models.SessionSummary{}, false
	}
	return *h.summary, true
}

// Info is a point-in-time view of a session for listings.
type Info struct {
	ID         string               `json:"id"`
	State      string               `json:"state"`
	StopReason string               `json:"stopReason,omitempty"`
	SegmentID  string               `json:"segmentId"`
	Segments   int                  `json:"segments"`
	Events     int                  `json:"events"`
	AudioBytes int64                `json:"audioBytes"`
	StartedAt  *time.Time           `json:"startedAt,omitempty"`
	Feedback   models.FeedbackEvent `json:"feedback"`
}

// Info returns the current session view.
func (h *Handler) Info() Info {
	h.mu.Lock()
	info := Info{
		ID:         h.id,
		Events:     h.events,
		AudioBytes: h.audioBytes,
	}
	if !h.startedAt.IsZero() {
		started := h.startedAt
		info.StartedAt = &started
	}
	h.mu.Unlock()

	info.State = h.lifecycle.State().String()
	info.StopReason = h.lifecycle.StopReason()
	info.SegmentID = h.segments.Current()
	info.Segments = h.segments.Count()
	info.Feedback = h.Feedback()
	return info
}
