package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"ai-speech-coach-service/internal/lexicon"
	"ai-speech-coach-service/internal/observability/metrics"
)

var errEmptyLexicon = errors.New("fillerWords must not be empty")

type lexiconHandlers struct {
	loader  *lexicon.Loader
	metrics *metrics.Metrics
}

type lexiconBody struct {
	FillerWords []string `json:"fillerWords"`
}

func (l *lexiconHandlers) get(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, lexiconBody{FillerWords: l.loader.Lexicon().Words()})
}

// put replaces the lexicon. Running sessions see the new words on their
// next event.
func (l *lexiconHandlers) put(w http.ResponseWriter, r *http.Request) {
	var body lexiconBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if len(body.FillerWords) == 0 {
		writeError(w, http.StatusBadRequest, errEmptyLexicon)
		return
	}
	if err := l.loader.Save(body.FillerWords); err != nil {
		log.Error().Err(err).Msg("Failed to save lexicon")
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	words := l.loader.Lexicon().Words()
	l.metrics.RecordLexiconSize(len(words))
	log.Info().Int("fillerWords", len(words)).Msg("Filler word lexicon replaced")
	writeJSON(w, http.StatusOK, lexiconBody{FillerWords: words})
}
