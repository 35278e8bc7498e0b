// Command audioclient streams a WAV file to a practice session over the
// audio WebSocket and prints the live feedback and the final summary.
package main

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"ai-speech-coach-service/internal/models"
)

// WAV header is 44 bytes for standard PCM files
const wavHeaderSize = 44

// Stream audio in 100ms chunks to simulate real-time capture
const chunkInterval = 100 * time.Millisecond

type wavFormat struct {
	AudioFormat   uint16
	Channels      uint16
	SampleRate    uint32
	BitsPerSample uint16
}

// chunkSize returns the number of bytes in one chunkInterval of audio.
func (f wavFormat) chunkSize() int {
	bytesPerSecond := int(f.SampleRate) * int(f.Channels) * int(f.BitsPerSample) / 8
	return bytesPerSecond * int(chunkInterval/time.Millisecond) / 1000
}

func readWAVHeader(r io.Reader) (wavFormat, error) {
	header := make([]byte, wavHeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return wavFormat{}, fmt.Errorf("read WAV header: %w", err)
	}
	if string(header[0:4]) != "RIFF" || string(header[8:12]) != "WAVE" {
		return wavFormat{}, errors.New("not a valid WAV file")
	}
	f := wavFormat{
		AudioFormat:   binary.LittleEndian.Uint16(header[20:22]),
		Channels:      binary.LittleEndian.Uint16(header[22:24]),
		SampleRate:    binary.LittleEndian.Uint32(header[24:28]),
		BitsPerSample: binary.LittleEndian.Uint16(header[34:36]),
	}
	if f.AudioFormat != 1 {
		return f, errors.New("only PCM format supported")
	}
	return f, nil
}

type sessionView struct {
	ID    string `json:"id"`
	State string `json:"state"`
}

func createSession(ctx context.Context, base string) (sessionView, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/v1/sessions", bytes.NewReader(nil))
	if err != nil {
		return sessionView{}, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return sessionView{}, fmt.Errorf("create session: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return sessionView{}, fmt.Errorf("create session: %s: %s", resp.Status, bytes.TrimSpace(body))
	}
	var v sessionView
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		return sessionView{}, fmt.Errorf("decode session: %w", err)
	}
	return v, nil
}

func wsURL(base, path string) (string, error) {
	u, err := url.Parse(base + path)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	return u.String(), nil
}

// printFeedback prints every feedback frame and returns the summary.
func printFeedback(conn *websocket.Conn) (*models.SessionSummary, error) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		var probe struct {
			EventType string `json:"eventType"`
		}
		if err := json.Unmarshal(data, &probe); err != nil {
			log.Warn().Err(err).Msg("Skipping malformed frame")
			continue
		}
		switch probe.EventType {
		case models.EventTypeSummary:
			var s models.SessionSummary
			if err := json.Unmarshal(data, &s); err != nil {
				return nil, err
			}
			return &s, nil
		default:
			var ev models.FeedbackEvent
			if err := json.Unmarshal(data, &ev); err != nil {
				continue
			}
			log.Info().
				Uint64("seq", ev.Sequence).
				Float64("spm", ev.Rate).
				Int("flag", ev.FlagCount).
				Int("fillers", ev.FillerCount).
				Str("trend", ev.Trend).
				Str("zone", ev.SpeedZone).
				Msg("feedback")
		}
	}
}

func main() {
	audioFile := flag.String("audio", "testdata/sample-16khz.wav", "Path to WAV file (16-bit PCM)")
	server := flag.String("server", "http://localhost:8080", "Practice service base URL")
	realtime := flag.Bool("realtime", true, "Pace chunks at real-time speed")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	if err := run(*audioFile, *server, *realtime); err != nil {
		log.Fatal().Err(err).Msg("audioclient failed")
	}
}

func run(audioFile, server string, realtime bool) error {
	f, err := os.Open(audioFile)
	if err != nil {
		return fmt.Errorf("open audio file: %w", err)
	}
	defer f.Close()

	format, err := readWAVHeader(f)
	if err != nil {
		return err
	}
	log.Info().
		Uint16("channels", format.Channels).
		Uint32("sampleRate", format.SampleRate).
		Uint16("bitsPerSample", format.BitsPerSample).
		Msg("WAV file")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	sess, err := createSession(ctx, server)
	if err != nil {
		return err
	}
	log.Info().Str("sessionId", sess.ID).Str("state", sess.State).Msg("Session created")

	feedbackURL, err := wsURL(server, "/v1/sessions/"+sess.ID+"/feedback/ws")
	if err != nil {
		return err
	}
	feedbackConn, _, err := websocket.DefaultDialer.DialContext(ctx, feedbackURL, nil)
	if err != nil {
		return fmt.Errorf("dial feedback: %w", err)
	}
	defer feedbackConn.Close()

	type result struct {
		summary *models.SessionSummary
		err     error
	}
	summaries := make(chan result, 1)
	go func() {
		s, err := printFeedback(feedbackConn)
		summaries <- result{s, err}
	}()

	audioURL, err := wsURL(server, "/v1/sessions/"+sess.ID+"/audio")
	if err != nil {
		return err
	}
	audioConn, _, err := websocket.DefaultDialer.DialContext(ctx, audioURL, nil)
	if err != nil {
		return fmt.Errorf("dial audio: %w", err)
	}
	defer audioConn.Close()

	chunk := make([]byte, format.chunkSize())
	var totalBytes int64
	var chunks int
	start := time.Now()
	for {
		n, err := f.Read(chunk)
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("read audio: %w", err)
		}
		if err := audioConn.WriteMessage(websocket.BinaryMessage, chunk[:n]); err != nil {
			return fmt.Errorf("send audio: %w", err)
		}
		chunks++
		totalBytes += int64(n)
		if chunks%50 == 0 {
			log.Debug().Int("chunks", chunks).Int64("bytes", totalBytes).Msg("Streaming audio")
		}
		if realtime {
			time.Sleep(chunkInterval)
		}
	}
	log.Info().
		Int("chunks", chunks).
		Int64("bytes", totalBytes).
		Dur("elapsed", time.Since(start).Round(time.Millisecond)).
		Msg("Finished streaming, waiting for summary")

	if err := audioConn.WriteMessage(websocket.TextMessage, []byte("end")); err != nil {
		return fmt.Errorf("send end: %w", err)
	}

	select {
	case r := <-summaries:
		if r.err != nil {
			return fmt.Errorf("feedback stream: %w", r.err)
		}
		out, _ := json.MarshalIndent(r.summary, "", "  ")
		fmt.Println(string(out))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
