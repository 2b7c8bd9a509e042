package sarvam

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/xpanvictor/xtutor/pkg/Logger"
	"github.com/xpanvictor/xtutor/pkg/io/audio"
	"github.com/xpanvictor/xtutor/pkg/io/stt"
	audioring "github.com/xpanvictor/xtutor/pkg/io/stt/audioRing"
)

const DefaultBaseURL = "https://api.sarvam.ai"

// TranscriptionResponse is the body of both speech-to-text endpoints.
type TranscriptionResponse struct {
	RequestID    string `json:"request_id"`
	Transcript   string `json:"transcript"`
	LanguageCode string `json:"language_code"`
}

type Options struct {
	BaseURL      string
	APIKey       string
	Model        string // saaras models translate to English, saarika models transcribe
	LanguageCode string
	Timeout      time.Duration
}

// SarvamClient handles communication with the Sarvam speech-to-text API
type SarvamClient struct {
	opts       Options
	httpClient *http.Client
	logger     *Logger.Logger
}

func NewSarvamClient(opts Options, logger *Logger.Logger) *SarvamClient {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &SarvamClient{
		opts: opts,
		httpClient: &http.Client{
			Timeout: opts.Timeout,
		},
		logger: logger,
	}
}

// translates reports whether the model is a speech-to-English model.
func (s *SarvamClient) translates() bool {
	return strings.HasPrefix(s.opts.Model, "saaras")
}

func (s *SarvamClient) endpoint() string {
	base := strings.TrimRight(s.opts.BaseURL, "/")
	if s.translates() {
		return base + "/speech-to-text-translate"
	}
	return base + "/speech-to-text"
}

// TranscribeAudio implements stt.Transcriber.
func (s *SarvamClient) TranscribeAudio(ctx context.Context, audioFrames []audioring.AudioInput) (*stt.Transcript, error) {
	if len(audioFrames) == 0 {
		return nil, fmt.Errorf("no audio frames provided")
	}

	sampleRate := int(audioFrames[0].SampleRate)
	if sampleRate == 0 {
		sampleRate = 16000
	}
	var pcm bytes.Buffer
	var duration time.Duration
	for _, frame := range audioFrames {
		pcm.Write(frame.Data)
		duration += frame.Duration()
	}
	wavData := audio.EncodeWAV(pcm.Bytes(), sampleRate, 1)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="file"; filename="audio.wav"`)
	header.Set("Content-Type", "audio/wav")
	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(wavData); err != nil {
		return nil, fmt.Errorf("failed to write audio data: %w", err)
	}
	if s.opts.Model != "" {
		if err := writer.WriteField("model", s.opts.Model); err != nil {
			return nil, fmt.Errorf("failed to write model field: %w", err)
		}
	}
	if !s.translates() && s.opts.LanguageCode != "" {
		if err := writer.WriteField("language_code", s.opts.LanguageCode); err != nil {
			return nil, fmt.Errorf("failed to write language field: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint(), &body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("api-subscription-key", s.opts.APIKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		s.logger.Errorf("Sarvam stt error (status %d): %s", resp.StatusCode, string(responseBody))
		return nil, fmt.Errorf("sarvam stt returned status %d: %s", resp.StatusCode, string(responseBody))
	}

	var transcription TranscriptionResponse
	if err := json.Unmarshal(responseBody, &transcription); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	s.logger.Debugf("Sarvam transcription: %q (language: %s, audio: %s)", transcription.Transcript, transcription.LanguageCode, duration)

	language := transcription.LanguageCode
	if language == "" {
		language = s.opts.LanguageCode
	}
	return &stt.Transcript{
		Text:          strings.TrimSpace(transcription.Transcript),
		Language:      language,
		RequestID:     transcription.RequestID,
		GeneratedAt:   time.Now(),
		AudioDuration: duration,
	}, nil
}
