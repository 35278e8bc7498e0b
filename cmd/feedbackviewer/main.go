// Command feedbackviewer consumes the practice feedback and summary topics
// from Kafka, prints them, and optionally re-serves them to WebSocket
// clients at /ws/{sessionID}.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
	"golang.org/x/sync/errgroup"

	apihttp "ai-speech-coach-service/internal/http"
	"ai-speech-coach-service/internal/models"
)

var errUnknownTopic = errors.New("unknown topic")

type topics struct {
	feedback string
	summary  string
}

// decode parses a message by its topic into a FeedbackEvent or SessionSummary.
func decode(t topics, topic string, value []byte) (any, error) {
	switch topic {
	case t.feedback:
		var ev models.FeedbackEvent
		if err := json.Unmarshal(value, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	case t.summary:
		var s models.SessionSummary
		if err := json.Unmarshal(value, &s); err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, errUnknownTopic
	}
}

func consume(ctx context.Context, hub *apihttp.Hub, t topics, brokers []string, topic string, since time.Duration) error {
	// Partition reader without a consumer group so every viewer sees everything
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:   brokers,
		Topic:     topic,
		Partition: 0,
		MinBytes:  1,
		MaxBytes:  10e6,
	})
	defer reader.Close()

	if err := reader.SetOffsetAt(ctx, time.Now().Add(-since)); err != nil {
		log.Warn().Err(err).Str("topic", topic).Msg("Could not seek, reading from the start")
	}
	log.Info().Str("topic", topic).Dur("since", since).Msg("Consuming")

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Warn().Err(err).Str("topic", topic).Msg("Kafka read error")
			time.Sleep(time.Second)
			continue
		}

		v, err := decode(t, msg.Topic, msg.Value)
		if err != nil {
			log.Warn().Err(err).Str("topic", msg.Topic).Msg("Skipping undecodable message")
			continue
		}
		switch ev := v.(type) {
		case models.FeedbackEvent:
			log.Info().
				Str("session", ev.SessionID).
				Uint64("seq", ev.Sequence).
				Float64("spm", ev.Rate).
				Int("flag", ev.FlagCount).
				Int("fillers", ev.FillerCount).
				Str("trend", ev.Trend).
				Msg("feedback")
			if hub != nil {
				hub.Feedback(ev)
			}
		case models.SessionSummary:
			log.Info().
				Str("session", ev.SessionID).
				Float64("spmAverage", ev.SPMAverage).
				Str("rate", ev.RateLabel).
				Float64("fwpm", ev.FWPM).
				Str("fillers", ev.FillerLabel).
				Str("reason", ev.StopReason).
				Msg("summary")
			if hub != nil {
				hub.SessionStopped(ev)
			}
		}
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local dev
	},
}

func main() {
	listen := flag.String("listen", "", "Serve WebSocket clients on this address, e.g. :8081")
	brokers := flag.String("brokers", "localhost:9092", "Kafka brokers (comma-separated)")
	topicFeedback := flag.String("topic-feedback", models.EventTypeFeedback, "Live feedback topic")
	topicSummary := flag.String("topic-summary", models.EventTypeSummary, "Session summary topic")
	since := flag.Duration("since", time.Hour, "Replay messages newer than this")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	t := topics{feedback: *topicFeedback, summary: *topicSummary}
	brokerList := strings.Split(*brokers, ",")

	g, gctx := errgroup.WithContext(ctx)

	var hub *apihttp.Hub
	if *listen != "" {
		hub = apihttp.NewHub()
		g.Go(func() error { return hub.Run(gctx) })

		r := chi.NewRouter()
		r.Get("/ws/{sessionID}", func(w http.ResponseWriter, r *http.Request) {
			conn, err := upgrader.Upgrade(w, r, nil)
			if err != nil {
				log.Warn().Err(err).Msg("WebSocket upgrade error")
				return
			}
			id := chi.URLParam(r, "sessionID")
			if !hub.Subscribe(id, conn) {
				conn.Close()
				return
			}
			hub.Listen(id, conn)
		})
		srv := &http.Server{Addr: *listen, Handler: r, ReadHeaderTimeout: 10 * time.Second}
		g.Go(func() error {
			log.Info().Str("addr", *listen).Msg("Serving WebSocket clients")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	log.Info().Strs("brokers", brokerList).Msg("Feedback viewer starting")
	g.Go(func() error { return consume(gctx, hub, t, brokerList, t.feedback, *since) })
	g.Go(func() error { return consume(gctx, hub, t, brokerList, t.summary, *since) })

	if err := g.Wait(); err != nil {
		log.Fatal().Err(err).Msg("Feedback viewer failed")
	}
}
