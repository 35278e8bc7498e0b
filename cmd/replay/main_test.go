package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"ai-speech-coach-service/internal/lexicon"
)

const testScript = `
fillerWords: [음, 어]
events:
  - {text: "음 안녕", timestamp: 0.5}
  - {text: "음 안녕하세요", timestamp: 1.0}
  - {text: "음 안녕하세요 여러분", timestamp: 1.5, boundary: true}
  - {text: "어", timestamp: 2.5, final: true, boundary: true}
`

func TestLoadScript(t *testing.T) {
	s, err := loadScript(strings.NewReader(testScript))
	if err != nil {
		t.Fatalf("loadScript failed: %v", err)
	}
	if len(s.FillerWords) != 2 || len(s.Events) != 4 {
		t.Fatalf("unexpected script %+v", s)
	}
	if !s.Events[2].IsSegmentBoundary || s.Events[2].Timestamp != 1.5 {
		t.Errorf("unexpected boundary event %+v", s.Events[2])
	}
	if !s.Events[3].IsFinal {
		t.Errorf("expected final flag on last event")
	}
}

func TestLoadScript_Empty(t *testing.T) {
	if _, err := loadScript(strings.NewReader("events: []\n")); !errors.Is(err, errEmptyScript) {
		t.Errorf("expected errEmptyScript, got %v", err)
	}
}

func TestReplay(t *testing.T) {
	s, err := loadScript(strings.NewReader(testScript))
	if err != nil {
		t.Fatal(err)
	}
	lex := lexicon.New(s.FillerWords...)

	var out bytes.Buffer
	summary, err := replay(context.Background(), s, lex, options{sustain: 2, spmAverage: 300}, &out)
	if err != nil {
		t.Fatalf("replay failed: %v", err)
	}

	// 음안녕 (3) -> 음안녕하세요 (6) over 0.5s
	if summary.SPMAverage != 360 {
		t.Errorf("expected SPM average 360, got %v", summary.SPMAverage)
	}
	if summary.Events != 4 || summary.Segments != 2 {
		t.Errorf("unexpected summary %+v", summary)
	}
	// 음 and 어 committed over 2 seconds
	if summary.FWPM != 60 {
		t.Errorf("expected FWPM 60, got %v", summary.FWPM)
	}
	if lines := strings.Count(out.String(), "\n"); lines != 5 {
		t.Errorf("expected header plus 4 rows, got %d lines:\n%s", lines, out.String())
	}
}

func TestReplay_JSON(t *testing.T) {
	s, _ := loadScript(strings.NewReader(testScript))
	var out bytes.Buffer
	if _, err := replay(context.Background(), s, lexicon.New(s.FillerWords...), options{jsonOut: true}, &out); err != nil {
		t.Fatal(err)
	}
	if got := strings.Count(out.String(), `"eventType":"practice.feedback.live"`); got != 4 {
		t.Errorf("expected 4 JSON feedback lines, got %d", got)
	}
}
