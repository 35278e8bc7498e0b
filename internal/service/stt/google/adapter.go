// Package google provides a Google Cloud Speech-to-Text recognizer.
package google

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/rs/zerolog/log"

	"ai-speech-coach-service/internal/models"
	"ai-speech-coach-service/internal/service/stt"
)

// Config holds streaming recognition settings.
type Config struct {
	LanguageCode   string
	SampleRateHz   int32
	InterimResults bool
	AudioEncoding  string
}

// DefaultConfig returns settings for Korean 16kHz LINEAR16 audio.
func DefaultConfig() Config {
	return Config{
		LanguageCode:   "ko-KR",
		SampleRateHz:   16000,
		InterimResults: true,
		AudioEncoding:  "LINEAR16",
	}
}

// parseAudioEncoding maps an encoding name to the API enum, falling back to
// LINEAR16 for unknown names.
func parseAudioEncoding(name string) speechpb.RecognitionConfig_AudioEncoding {
	v, ok := speechpb.RecognitionConfig_AudioEncoding_value[name]
	if !ok || v == int32(speechpb.RecognitionConfig_ENCODING_UNSPECIFIED) {
		return speechpb.RecognitionConfig_LINEAR16
	}
	return speechpb.RecognitionConfig_AudioEncoding(v)
}

// Adapter implements stt.Recognizer using Google Cloud Speech-to-Text.
// Interim results become partial events and final results become segment
// boundaries.
type Adapter struct {
	client *speech.Client
	cfg    Config

	// release closes the client connection. It runs once, after the
	// receive loop ends or when Close is called on an adapter that
	// never streamed.
	release     func() error
	releaseOnce sync.Once

	mu        sync.Mutex
	stream    speechpb.Speech_StreamingRecognizeClient
	started   time.Time
	halfClose bool
}

// New creates a new Google STT adapter.
// Requires GOOGLE_APPLICATION_CREDENTIALS environment variable to be set.
func New(ctx context.Context, cfg Config) (*Adapter, error) {
	c, err := speech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create speech client: %w", err)
	}
	return &Adapter{client: c, cfg: cfg, release: c.Close}, nil
}

// NewFactory returns a stt.Factory creating one adapter per session.
func NewFactory(cfg Config) stt.Factory {
	return func(ctx context.Context) (stt.Recognizer, error) {
		return New(ctx, cfg)
	}
}

// Start opens the streaming call, sends the streaming config and begins
// receiving results.
func (a *Adapter) Start(ctx context.Context) (<-chan stt.Result, error) {
	stream, err := a.client.StreamingRecognize(ctx)
	if err != nil {
		a.releaseClient()
		return nil, fmt.Errorf("open streaming recognize: %w", err)
	}

	err = stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config: &speechpb.RecognitionConfig{
					Encoding:                   parseAudioEncoding(a.cfg.AudioEncoding),
					SampleRateHertz:            a.cfg.SampleRateHz,
					LanguageCode:               a.cfg.LanguageCode,
					EnableAutomaticPunctuation: true,
				},
				InterimResults: a.cfg.InterimResults,
			},
		},
	})
	if err != nil {
		a.releaseClient()
		return nil, fmt.Errorf("send streaming config: %w", err)
	}

	a.mu.Lock()
	a.stream = stream
	a.started = time.Now()
	a.mu.Unlock()

	out := make(chan stt.Result, 16)
	go a.listen(ctx, stream, out)
	return out, nil
}

// SendAudio sends audio bytes to Google Speech-to-Text.
func (a *Adapter) SendAudio(ctx context.Context, audio []byte) error {
	a.mu.Lock()
	stream := a.stream
	a.mu.Unlock()
	if stream == nil {
		return errors.New("google recognizer not started")
	}
	return stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{
			AudioContent: audio,
		},
	})
}

// Close half-closes the stream; remaining results are still delivered and
// the result channel closes once the server finishes. The client connection
// is released when the receive loop ends.
func (a *Adapter) Close() error {
	a.mu.Lock()
	stream := a.stream
	already := a.halfClose
	a.halfClose = true
	a.mu.Unlock()

	if stream == nil {
		a.releaseClient()
		return nil
	}
	if already {
		return nil
	}
	return stream.CloseSend()
}

func (a *Adapter) releaseClient() {
	a.releaseOnce.Do(func() {
		if a.release == nil {
			return
		}
		if err := a.release(); err != nil {
			log.Debug().Err(err).Msg("Error closing speech client")
		}
	})
}

// listen receives responses until the stream ends and converts them.
func (a *Adapter) listen(ctx context.Context, stream speechpb.Speech_StreamingRecognizeClient, out chan<- stt.Result) {
	defer close(out)
	defer a.releaseClient()
	for {
		resp, err := stream.Recv()
		if err == io.EOF {
			return
		}
		if err != nil {
			log.Warn().Err(err).Msg("Google streaming recognize ended with error")
			send(ctx, out, stt.Result{Err: err})
			return
		}
		if ev, ok := toEvent(resp, time.Since(a.started).Seconds()); ok {
			if !send(ctx, out, stt.Result{Event: ev}) {
				return
			}
		}
	}
}

func send(ctx context.Context, out chan<- stt.Result, r stt.Result) bool {
	select {
	case out <- r:
		return true
	case <-ctx.Done():
		return false
	}
}

// toEvent converts one streaming response into a transcription event. The
// open segment's transcript is the concatenation of the top alternatives of
// all results; any final result commits the segment.
func toEvent(resp *speechpb.StreamingRecognizeResponse, ts float64) (models.TranscriptionEvent, bool) {
	var parts []string
	final := false
	for _, r := range resp.GetResults() {
		if len(r.GetAlternatives()) == 0 {
			continue
		}
		parts = append(parts, strings.TrimSpace(r.GetAlternatives()[0].GetTranscript()))
		if r.GetIsFinal() {
			final = true
		}
	}
	if len(parts) == 0 {
		return models.TranscriptionEvent{}, false
	}
	return models.TranscriptionEvent{
		Text:              strings.Join(parts, " "),
		Timestamp:         ts,
		IsSegmentBoundary: final,
	}, true
}
