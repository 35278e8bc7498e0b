// Command replay runs a recorded transcript script through the analyzer
// offline and prints the feedback for every event and the session summary.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"ai-speech-coach-service/internal/lexicon"
	"ai-speech-coach-service/internal/models"
	"ai-speech-coach-service/internal/service/analysis"
	"ai-speech-coach-service/internal/service/report"
)

// Script is a recorded recognizer session.
//
//	fillerWords: [음, 어]      # optional, defaults to the built-in lexicon
//	events:
//	  - {text: "음 안녕", timestamp: 0.4}
//	  - {text: "음 안녕하세요", timestamp: 0.9, boundary: true}
type Script struct {
	FillerWords []string                    `yaml:"fillerWords"`
	Events      []models.TranscriptionEvent `yaml:"events"`
}

var errEmptyScript = errors.New("script has no events")

func loadScript(r io.Reader) (Script, error) {
	var s Script
	if err := yaml.NewDecoder(r).Decode(&s); err != nil {
		return Script{}, fmt.Errorf("parse script: %w", err)
	}
	if len(s.Events) == 0 {
		return Script{}, errEmptyScript
	}
	return s, nil
}

type options struct {
	sustain    int
	spmAverage float64
	jsonOut    bool
}

// replay feeds the script through a fresh analyzer and returns the summary.
func replay(ctx context.Context, s Script, lex *lexicon.Lexicon, opts options, out io.Writer) (models.SessionSummary, error) {
	a := analysis.New(lex, analysis.WithSustainThreshold(opts.sustain))
	acc := report.NewAccumulator(lex)
	gauge := report.NewGauge(opts.spmAverage)

	events := make(chan models.TranscriptionEvent)
	go func() {
		defer close(events)
		for _, ev := range s.Events {
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	enc := json.NewEncoder(out)
	if !opts.jsonOut {
		fmt.Fprintln(tw, "SEQ\tTIME\tSPM\tFLAG\tFILLERS\tTREND\tZONE\tTEXT")
	}

	err := analysis.Consume(ctx, events, a, func(ev models.TranscriptionEvent, snap analysis.Snapshot) {
		acc.Observe(ev, snap)
		if opts.jsonOut {
			enc.Encode(models.FeedbackEvent{
				EventType:   models.EventTypeFeedback,
				SessionID:   "replay",
				Sequence:    snap.Sequence,
				Timestamp:   snap.Timestamp,
				Rate:        snap.Rate,
				FlagCount:   snap.FlagCount,
				FillerCount: snap.FillerCount,
				Trend:       snap.Trend.String(),
				SpeedZone:   gauge.Zone(snap.Rate).String(),
				GaugePct:    gauge.Percent(snap.Rate),
			})
			return
		}
		marker := ""
		if ev.IsSegmentBoundary {
			marker = " |"
		}
		fmt.Fprintf(tw, "%d\t%.2f\t%.1f\t%d\t%d\t%s\t%s\t%s%s\n",
			snap.Sequence, snap.Timestamp, snap.Rate, snap.FlagCount, snap.FillerCount,
			snap.Trend, gauge.Zone(snap.Rate), ev.Text, marker)
	})
	tw.Flush()
	if err != nil {
		return models.SessionSummary{}, err
	}
	return acc.Summary("replay", "script_finished"), nil
}

func main() {
	scriptPath := flag.String("script", "testdata/practice-script.yaml", "Path to the YAML transcript script")
	lexiconPath := flag.String("lexicon", "", "Optional lexicon YAML overriding the script's filler words")
	sustain := flag.Int("sustain", analysis.DefaultSustainThreshold, "Flag count above which a trend is sustained")
	spmAverage := flag.Float64("spm-average", report.DefaultSPMAverage, "Reference rate for the speed gauge")
	jsonOut := flag.Bool("json", false, "Print feedback as JSON lines")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	f, err := os.Open(*scriptPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open script")
	}
	defer f.Close()

	script, err := loadScript(f)
	if err != nil {
		log.Fatal().Err(err).Str("script", *scriptPath).Msg("Invalid script")
	}

	lex := lexicon.NewDefault()
	if len(script.FillerWords) > 0 {
		lex.Replace(script.FillerWords)
	}
	if *lexiconPath != "" {
		if err := lexicon.NewLoader(*lexiconPath, lex).Load(); err != nil {
			log.Fatal().Err(err).Msg("Failed to load lexicon")
		}
	}

	summary, err := replay(context.Background(), script, lex, options{
		sustain:    *sustain,
		spmAverage: *spmAverage,
		jsonOut:    *jsonOut,
	}, os.Stdout)
	if err != nil {
		log.Fatal().Err(err).Msg("Replay failed")
	}

	out, _ := json.MarshalIndent(summary, "", "  ")
	fmt.Println(string(out))
}
