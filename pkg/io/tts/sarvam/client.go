package sarvam

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/xpanvictor/xtutor/pkg/io/audio"
	"github.com/xpanvictor/xtutor/pkg/io/tts"
)

const DefaultBaseURL = "https://api.sarvam.ai"

type Sarvam struct {
	BaseURL      string        // e.g. "https://api.sarvam.ai"
	APIKey       string
	Client       *http.Client  // inject; default if nil
	Model        string        // "bulbul:v3"
	Speaker      string        // default voice
	LanguageCode string        // "hi-IN"
	Pace         float64       // 0.9
	SampleRate   int           // 24000
	Timeout      time.Duration // request timeout per sentence
}

type ttsRequest struct {
	Text               string  `json:"text"`
	TargetLanguageCode string  `json:"target_language_code"`
	Speaker            string  `json:"speaker,omitempty"`
	Model              string  `json:"model,omitempty"`
	Pace               float64 `json:"pace,omitempty"`
	SpeechSampleRate   int     `json:"speech_sample_rate,omitempty"`
}

type ttsResponse struct {
	RequestID string   `json:"request_id"`
	Audios    []string `json:"audios"`
}

// Synthesize implements tts.Synthesizer.
func (s *Sarvam) Synthesize(ctx context.Context, text string) (tts.Audio, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return tts.Audio{}, fmt.Errorf("empty text")
	}

	body, err := json.Marshal(ttsRequest{
		Text:               text,
		TargetLanguageCode: s.LanguageCode,
		Speaker:            s.Speaker,
		Model:              s.Model,
		Pace:               s.Pace,
		SpeechSampleRate:   s.SampleRate,
	})
	if err != nil {
		return tts.Audio{}, err
	}

	timeout := s.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	base := s.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	u := strings.TrimRight(base, "/") + "/text-to-speech"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return tts.Audio{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-subscription-key", s.APIKey)

	hc := s.Client
	if hc == nil {
		hc = &http.Client{}
	}

	start := time.Now()
	resp, err := hc.Do(req)
	if err != nil {
		return tts.Audio{}, fmt.Errorf("tts http request failed: %w (url=%s)", err, u)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return tts.Audio{}, fmt.Errorf("tts http %d: %s (url=%s, dur=%s)", resp.StatusCode, string(b), u, time.Since(start))
	}

	var decoded ttsResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return tts.Audio{}, fmt.Errorf("failed to decode tts response: %w", err)
	}
	if len(decoded.Audios) == 0 {
		return tts.Audio{}, fmt.Errorf("tts response %s has no audio", decoded.RequestID)
	}

	var pcm []byte
	rate := 0
	for _, encoded := range decoded.Audios {
		wav, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return tts.Audio{}, fmt.Errorf("failed to decode tts audio: %w", err)
		}
		chunk, chunkRate, _, err := audio.DecodeWAV(wav)
		if err != nil {
			return tts.Audio{}, fmt.Errorf("failed to parse tts audio: %w", err)
		}
		if rate == 0 {
			rate = chunkRate
		}
		pcm = append(pcm, audio.Resample(chunk, chunkRate, rate)...)
	}

	if s.SampleRate > 0 && rate != s.SampleRate {
		pcm = audio.Resample(pcm, rate, s.SampleRate)
		rate = s.SampleRate
	}
	return tts.Audio{PCM: pcm, SampleRate: rate}, nil
}
