package app

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"ai-speech-coach-service/internal/config"
	"ai-speech-coach-service/internal/lexicon"
	"ai-speech-coach-service/internal/observability/logging"
	"ai-speech-coach-service/internal/observability/metrics"
	"ai-speech-coach-service/internal/service/practice"
	"ai-speech-coach-service/internal/service/stt"
)

// Dependencies are the pluggable edges of the application.
type Dependencies struct {
	Recognizers stt.Factory
	Publisher   practice.Publisher
	Sink        practice.FeedbackSink
	Metrics     *metrics.Metrics
}

// Application holds process-wide state for the service.
type Application struct {
	StartupTime time.Time
	Logger      zerolog.Logger
	Cfg         *config.Config
	Lexicon     *lexicon.Lexicon
	Loader      *lexicon.Loader
	Registry    *practice.Registry
	Metrics     *metrics.Metrics
}

// New constructs a new Application from the provided configuration.
func New(cfg *config.Config, deps Dependencies) *Application {
	m := deps.Metrics
	if m == nil {
		m = metrics.DefaultMetrics
	}
	lex := lexicon.NewDefault()

	a := &Application{
		Cfg:     cfg,
		Lexicon: lex,
		Loader:  lexicon.NewLoader(cfg.Lexicon.Path, lex),
		Metrics: m,
		Logger: logging.WithComponent("application").With().
			Str("service", "ai-speech-coach-service").
			Logger(),
	}
	a.Registry = practice.NewRegistry(deps.Recognizers, lex, practice.Config{
		Limits: practice.Limits{
			MaxAudioBytes: cfg.SessionLimits.MaxAudioBytes,
			MaxDuration:   cfg.SessionLimits.MaxDuration,
			MaxEvents:     cfg.SessionLimits.MaxEvents,
		},
		Retention:        cfg.SessionLimits.Retention,
		SPMAverage:       cfg.Feedback.SPMAverage,
		SustainThreshold: cfg.Feedback.SustainThreshold,
		Provider:         cfg.STT.Provider,
		Publisher:        deps.Publisher,
		Sink:             deps.Sink,
		Metrics:          m,
	})

	a.Logger.Info().
		Str("sttProvider", cfg.STT.Provider).
		Msg("AI Speech Coach service application created")
	return a
}

// SetupLogging configures the global zerolog logger from cfg.
func SetupLogging(cfg *config.Config) {
	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.Observability.LogLevel
	logCfg.Format = cfg.Observability.LogFormat
	logging.Init(logCfg)
}

// Start loads the lexicon file, if configured, before serving traffic. A
// missing or invalid file leaves the default lexicon in place.
func (a *Application) Start() error {
	startLogger := a.Logger.With().
		Str("method", "Start").
		Logger()

	if a.Loader.Path() != "" {
		if err := a.Loader.Load(); err != nil {
			startLogger.Warn().Err(err).Msg("Using default filler word lexicon")
		}
	}
	a.Metrics.RecordLexiconSize(a.Lexicon.Len())

	a.StartupTime = time.Now().UTC()
	startLogger.Info().
		Time("startupTime", a.StartupTime).
		Int("fillerWords", a.Lexicon.Len()).
		Msg("AI Speech Coach service starting")
	return nil
}

// WatchLexicon hot-reloads the lexicon file until ctx is done. It returns
// immediately when the lexicon is not file-backed or watching is disabled.
// Watcher failures are logged, not returned: sessions keep the last words.
func (a *Application) WatchLexicon(ctx context.Context) error {
	if a.Loader.Path() == "" || !a.Cfg.Lexicon.Watch {
		return nil
	}
	if err := a.Loader.WatchAndReload(ctx.Done()); err != nil {
		a.Logger.Error().Err(err).Msg("Lexicon watcher stopped, file changes are no longer applied")
	}
	return nil
}

// Shutdown stops all practice sessions, publishing their summaries.
func (a *Application) Shutdown(ctx context.Context) {
	shutdownLogger := a.Logger.With().
		Str("method", "Shutdown").
		Logger()

	n := a.Registry.StopAll(ctx, practice.StopShutdown)
	shutdownLogger.Info().
		Int("sessionsStopped", n).
		Msg("AI Speech Coach service shutting down")
}
