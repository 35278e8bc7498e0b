package lexicon

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestLoader_Load(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fillers.yaml")

	content := `
fillerWords:
  - 음
  - 어
  - 그니까
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write yaml: %v", err)
	}

	lex := New("old")
	loader := NewLoader(path, lex)
	if err := loader.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	if got := lex.Words(); !reflect.DeepEqual(got, []string{"그니까", "어", "음"}) {
		t.Errorf("unexpected words: %v", got)
	}
	if lex.Contains("old") {
		t.Error("expected previous words to be replaced")
	}
}

func TestLoader_LoadErrorsKeepPreviousWords(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name  string
		setup func(path string)
	}{
		{"missing file", func(string) {}},
		{"invalid yaml", func(path string) {
			os.WriteFile(path, []byte("fillerWords: [unclosed"), 0644)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".yaml")
			tt.setup(path)

			lex := New("음")
			if err := NewLoader(path, lex).Load(); err == nil {
				t.Fatal("expected error")
			}
			if !lex.Contains("음") {
				t.Error("expected previous words to be kept")
			}
		})
	}
}

func TestWriteFile_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fillers.yaml")

	if err := WriteFile(path, []string{"음", "어"}); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	words, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !reflect.DeepEqual(words, []string{"음", "어"}) {
		t.Errorf("unexpected words: %v", words)
	}
}

func TestLoader_WatchAndReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fillers.yaml")
	if err := WriteFile(path, []string{"음"}); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	lex := New()
	loader := NewLoader(path, lex)
	if err := loader.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	done := make(chan struct{})
	errCh := make(chan error, 1)
	go func() { errCh <- loader.WatchAndReload(done) }()

	// Give the watcher time to register.
	time.Sleep(100 * time.Millisecond)
	if err := WriteFile(path, []string{"음", "어"}); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for !lex.Contains("어") && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	if !lex.Contains("어") {
		t.Error("expected lexicon to be reloaded after file change")
	}

	close(done)
	if err := <-errCh; err != nil {
		t.Errorf("WatchAndReload returned error: %v", err)
	}
}

func TestLoader_SaveWithoutFile(t *testing.T) {
	lex := NewDefault()
	l := NewLoader("", lex)

	if err := l.Save([]string{"음", "그러니까"}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if lex.Len() != 2 || !lex.Contains("그러니까") {
		t.Errorf("unexpected lexicon %v", lex.Words())
	}
}

func TestLoader_SavePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lexicon.yaml")
	l := NewLoader(path, New())

	if err := l.Save([]string{"어", "음"}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	words, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if len(words) != 2 {
		t.Errorf("expected 2 persisted words, got %v", words)
	}
}
