package google

import (
	"context"
	"io"
	"sync/atomic"
	"testing"
	"time"

	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/grpc"

	"ai-speech-coach-service/internal/service/stt"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.LanguageCode != "ko-KR" {
		t.Errorf("expected default language 'ko-KR', got %s", cfg.LanguageCode)
	}
	if cfg.SampleRateHz != 16000 {
		t.Errorf("expected default sample rate 16000, got %d", cfg.SampleRateHz)
	}
	if cfg.InterimResults != true {
		t.Errorf("expected default interim results true, got %v", cfg.InterimResults)
	}
	if cfg.AudioEncoding != "LINEAR16" {
		t.Errorf("expected default encoding 'LINEAR16', got %s", cfg.AudioEncoding)
	}
}

func TestParseAudioEncoding(t *testing.T) {
	tests := []struct {
		input    string
		expected speechpb.RecognitionConfig_AudioEncoding
	}{
		{"LINEAR16", speechpb.RecognitionConfig_LINEAR16},
		{"MULAW", speechpb.RecognitionConfig_MULAW},
		{"FLAC", speechpb.RecognitionConfig_FLAC},
		{"OGG_OPUS", speechpb.RecognitionConfig_OGG_OPUS},
		{"WEBM_OPUS", speechpb.RecognitionConfig_WEBM_OPUS},
		{"ENCODING_UNSPECIFIED", speechpb.RecognitionConfig_LINEAR16},
		{"linear16", speechpb.RecognitionConfig_LINEAR16},
		{"", speechpb.RecognitionConfig_LINEAR16},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := parseAudioEncoding(tt.input); got != tt.expected {
				t.Errorf("parseAudioEncoding(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func result(text string, final bool) *speechpb.StreamingRecognitionResult {
	return &speechpb.StreamingRecognitionResult{
		Alternatives: []*speechpb.SpeechRecognitionAlternative{{Transcript: text}},
		IsFinal:      final,
	}
}

func TestToEvent(t *testing.T) {
	tests := []struct {
		name     string
		resp     *speechpb.StreamingRecognizeResponse
		ok       bool
		text     string
		boundary bool
	}{
		{
			name: "interim",
			resp: &speechpb.StreamingRecognizeResponse{Results: []*speechpb.StreamingRecognitionResult{result("안녕하세요", false)}},
			ok:   true, text: "안녕하세요",
		},
		{
			name: "stable plus unstable interim",
			resp: &speechpb.StreamingRecognizeResponse{Results: []*speechpb.StreamingRecognitionResult{
				result("안녕하세요 ", false), result(" 반갑습니다", false),
			}},
			ok: true, text: "안녕하세요 반갑습니다",
		},
		{
			name: "final",
			resp: &speechpb.StreamingRecognizeResponse{Results: []*speechpb.StreamingRecognitionResult{result("음 감사합니다", true)}},
			ok:   true, text: "음 감사합니다", boundary: true,
		},
		{
			name: "no alternatives",
			resp: &speechpb.StreamingRecognizeResponse{Results: []*speechpb.StreamingRecognitionResult{{IsFinal: true}}},
		},
		{
			name: "empty",
			resp: &speechpb.StreamingRecognizeResponse{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, ok := toEvent(tt.resp, 1.5)
			if ok != tt.ok {
				t.Fatalf("expected ok=%v, got %v", tt.ok, ok)
			}
			if !ok {
				return
			}
			if ev.Text != tt.text {
				t.Errorf("expected text %q, got %q", tt.text, ev.Text)
			}
			if ev.IsSegmentBoundary != tt.boundary {
				t.Errorf("expected boundary %v, got %v", tt.boundary, ev.IsSegmentBoundary)
			}
			if ev.Timestamp != 1.5 || ev.IsFinal {
				t.Errorf("unexpected event %+v", ev)
			}
		})
	}
}

// fakeStream delivers one interim result, then the final result once the
// send side is half-closed, then EOF.
type fakeStream struct {
	grpc.ClientStream

	halfClosed chan struct{}
	closeSends atomic.Int32
	recvs      int
}

func newFakeStream() *fakeStream {
	return &fakeStream{halfClosed: make(chan struct{})}
}

func (f *fakeStream) Send(*speechpb.StreamingRecognizeRequest) error {
	return nil
}

func (f *fakeStream) CloseSend() error {
	if f.closeSends.Add(1) == 1 {
		close(f.halfClosed)
	}
	return nil
}

func (f *fakeStream) Recv() (*speechpb.StreamingRecognizeResponse, error) {
	f.recvs++
	switch f.recvs {
	case 1:
		return &speechpb.StreamingRecognizeResponse{
			Results: []*speechpb.StreamingRecognitionResult{result("안녕하세요", false)},
		}, nil
	case 2:
		<-f.halfClosed
		return &speechpb.StreamingRecognizeResponse{
			Results: []*speechpb.StreamingRecognitionResult{result("안녕하세요 반갑습니다", true)},
		}, nil
	default:
		return nil, io.EOF
	}
}

func TestClose_DeliversFinalResultBeforeRelease(t *testing.T) {
	stream := newFakeStream()
	var released atomic.Int32
	a := &Adapter{
		stream:  stream,
		started: time.Now(),
		release: func() error {
			released.Add(1)
			return nil
		},
	}
	out := make(chan stt.Result, 4)
	go a.listen(context.Background(), stream, out)

	first := <-out
	if first.Err != nil || first.Event.IsSegmentBoundary {
		t.Fatalf("expected interim event, got %+v", first)
	}
	if released.Load() != 0 {
		t.Errorf("expected client kept open while streaming, released %d times", released.Load())
	}

	if err := a.Close(); err != nil {
		t.Fatalf("expected no error from Close, got %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("expected repeated Close to succeed, got %v", err)
	}

	final, ok := <-out
	if !ok {
		t.Fatal("expected final result after Close, channel closed")
	}
	if final.Err != nil {
		t.Fatalf("expected no error, got %v", final.Err)
	}
	if !final.Event.IsSegmentBoundary || final.Event.Text != "안녕하세요 반갑습니다" {
		t.Errorf("expected final boundary event, got %+v", final.Event)
	}

	select {
	case res, ok := <-out:
		if ok {
			t.Fatalf("expected channel closed after EOF, got %+v", res)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for result channel to close")
	}
	if n := stream.closeSends.Load(); n != 1 {
		t.Errorf("expected 1 CloseSend, got %d", n)
	}
	if n := released.Load(); n != 1 {
		t.Errorf("expected client released once, got %d", n)
	}
}

func TestClose_NotStartedReleasesClient(t *testing.T) {
	var released atomic.Int32
	a := &Adapter{release: func() error {
		released.Add(1)
		return nil
	}}

	if err := a.Close(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	a.Close()
	if n := released.Load(); n != 1 {
		t.Errorf("expected client released once, got %d", n)
	}
}
