package lexicon

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// File is the on-disk YAML layout.
//
//	fillerWords:
//	  - 음
//	  - 어
type File struct {
	FillerWords []string `yaml:"fillerWords"`
}

// Loader loads a lexicon from a YAML file and keeps it in sync with the file.
type Loader struct {
	path    string
	lexicon *Lexicon
}

// NewLoader creates a loader that writes into lex.
func NewLoader(path string, lex *Lexicon) *Loader {
	return &Loader{path: path, lexicon: lex}
}

// Lexicon returns the lexicon kept in sync by the loader.
func (l *Loader) Lexicon() *Lexicon {
	return l.lexicon
}

// Path returns the watched file, or "" when the lexicon is not file-backed.
func (l *Loader) Path() string {
	return l.path
}

// Save replaces the lexicon and, when file-backed, persists the new words so
// the change survives restarts.
func (l *Loader) Save(words []string) error {
	if l.path != "" {
		if err := WriteFile(l.path, words); err != nil {
			return err
		}
	}
	l.lexicon.Replace(words)
	return nil
}

// Load reads the file and replaces the lexicon contents.
// On error the lexicon is left unchanged.
func (l *Loader) Load() error {
	words, err := ReadFile(l.path)
	if err != nil {
		return err
	}
	l.lexicon.Replace(words)
	log.Info().
		Str("path", l.path).
		Int("fillerWords", l.lexicon.Len()).
		Msg("Filler word lexicon loaded")
	return nil
}

// ReadFile parses a lexicon YAML file.
func ReadFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read lexicon %q: %w", path, err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse lexicon %q: %w", path, err)
	}
	return f.FillerWords, nil
}

// WriteFile stores words as a lexicon YAML file.
func WriteFile(path string, words []string) error {
	data, err := yaml.Marshal(File{FillerWords: words})
	if err != nil {
		return fmt.Errorf("encode lexicon: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write lexicon %q: %w", path, err)
	}
	return nil
}

// WatchAndReload reloads the lexicon whenever the file is written or
// recreated. It watches the parent directory so editors that replace the
// file atomically are handled. Blocks until done is closed.
func (l *Loader) WatchAndReload(done <-chan struct{}) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(l.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch dir %q: %w", dir, err)
	}
	target := filepath.Clean(l.path)

	for {
		select {
		case <-done:
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				if err := l.Load(); err != nil {
					log.Warn().Err(err).Str("path", l.path).Msg("Lexicon reload failed, keeping previous words")
				}
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return err
		}
	}
}
