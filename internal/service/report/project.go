package report

import (
	"errors"
	"sort"

	"ai-speech-coach-service/internal/models"
)

// ErrNoPractices is returned when statistics are requested for an empty
// practice list.
var ErrNoPractices = errors.New("no practices")

// ProjectStats aggregates the summaries of all practices of one project.
type ProjectStats struct {
	Practices      int                      `json:"practices"`
	SPMAverage     int                      `json:"spmAverage"`
	RateLabel      string                   `json:"rateLabel"`
	FWPMAverage    float64                  `json:"fwpmAverage"`
	FillerLabel    string                   `json:"fillerLabel"`
	TopFillerWords []models.FillerWordCount `json:"topFillerWords"`
}

// Project computes project statistics. The SPM average is truncated to an
// integer; the top list holds at most three non-zero filler words ordered by
// count, ties broken alphabetically.
func Project(practices []models.SessionSummary) (ProjectStats, error) {
	if len(practices) == 0 {
		return ProjectStats{}, ErrNoPractices
	}

	var spm, fwpm float64
	totals := make(map[string]int)
	for _, p := range practices {
		spm += p.SPMAverage
		fwpm += p.FWPM
		for _, fw := range p.EachFillerWordCount {
			totals[fw.FillerWord] += fw.Count
		}
	}
	n := float64(len(practices))
	avgSPM := int(spm / n)
	avgFWPM := fwpm / n

	return ProjectStats{
		Practices:      len(practices),
		SPMAverage:     avgSPM,
		RateLabel:      RateLabel(avgSPM),
		FWPMAverage:    avgFWPM,
		FillerLabel:    FillerLabel(avgFWPM),
		TopFillerWords: TopFillerWords(totals, 3),
	}, nil
}

// TopFillerWords returns up to n words with a positive count, highest first.
func TopFillerWords(counts map[string]int, n int) []models.FillerWordCount {
	out := make([]models.FillerWordCount, 0, len(counts))
	for w, c := range counts {
		if c > 0 {
			out = append(out, models.FillerWordCount{FillerWord: w, Count: c})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].FillerWord < out[j].FillerWord
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
