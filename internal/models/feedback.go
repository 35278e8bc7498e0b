package models

// FeedbackEvent is the live feedback published after every processed
// transcription event.
type FeedbackEvent struct {
	EventType   string  `json:"eventType"`
	SessionID   string  `json:"sessionId"`
	SegmentID   string  `json:"segmentId"`
	Sequence    uint64  `json:"sequence"`
	Timestamp   float64 `json:"timestamp"`
	Rate        float64 `json:"realTimeRate"`
	FlagCount   int     `json:"flagCount"`
	FillerCount int     `json:"realTimeFillerCount"`
	Trend       string  `json:"trend"`
	SpeedZone   string  `json:"speedZone"`
	GaugePct    float64 `json:"gaugePercent"`
	PublishedAt int64   `json:"publishedAt"`
}

// FillerWordCount is the number of times one filler word was spoken.
type FillerWordCount struct {
	FillerWord string `json:"fillerWord"`
	Count      int    `json:"count"`
}

// SessionSummary is published once when a practice session stops.
type SessionSummary struct {
	EventType           string            `json:"eventType"`
	SessionID           string            `json:"sessionId"`
	SPMAverage          float64           `json:"spmAverage"`
	FWPM                float64           `json:"fwpm"`
	EachFillerWordCount []FillerWordCount `json:"eachFillerWordCount"`
	Events              int               `json:"events"`
	Segments            int               `json:"segments"`
	DurationSeconds     float64           `json:"durationSeconds"`
	StopReason          string            `json:"stopReason"`
	RateLabel           string            `json:"rateLabel"`
	FillerLabel         string            `json:"fillerLabel"`
	StoppedAt           int64             `json:"stoppedAt"`
}

// Event type names used on the wire.
const (
	EventTypeFeedback = "practice.feedback.live"
	EventTypeSummary  = "practice.session.summary"
)
