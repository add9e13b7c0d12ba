// Package voice turns reply text into audio through an HTTP text-to-speech
// service.
package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/raphaelgruber/legalchat/internal/models"
)

// ErrSynthesis marks any failure to produce audio.
var ErrSynthesis = errors.New("synthesize voice")

// maxAudioBytes caps a single synthesized reply.
const maxAudioBytes = 16 << 20

// Config configures the synthesizer.
type Config struct {
	Endpoint string
	APIKey   string
	Timeout  time.Duration
	// Dir receives audio files; empty uses the OS temp dir.
	Dir string
}

// Synthesizer calls the TTS endpoint and stores returned audio on disk.
type Synthesizer struct {
	endpoint   string
	apiKey     string
	dir        string
	httpClient *http.Client
}

// New creates a synthesizer.
func New(cfg Config) *Synthesizer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.Dir == "" {
		cfg.Dir = filepath.Join(os.TempDir(), "legalchat-audio")
	}
	return &Synthesizer{
		endpoint:   cfg.Endpoint,
		apiKey:     cfg.APIKey,
		dir:        cfg.Dir,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

type synthesisRequest struct {
	Text     string `json:"text"`
	Language string `json:"language"`
	Voice    string `json:"voice"`
}

// voiceFor picks the speaker for the detected script.
func voiceFor(lang models.LanguageTag) string {
	if lang == models.LanguageSecondary {
		return "ur-PK"
	}
	return "en-US"
}

// Synthesize renders text as speech and returns the stored audio artifact.
func (s *Synthesizer) Synthesize(ctx context.Context, text string, lang models.LanguageTag) (models.Artifact, error) {
	if s.endpoint == "" {
		return models.Artifact{}, fmt.Errorf("%w: no endpoint configured", ErrSynthesis)
	}
	if strings.TrimSpace(text) == "" {
		return models.Artifact{}, fmt.Errorf("%w: empty text", ErrSynthesis)
	}

	reqBody, err := json.Marshal(synthesisRequest{Text: text, Language: string(lang), Voice: voiceFor(lang)})
	if err != nil {
		return models.Artifact{}, fmt.Errorf("%w: marshal request: %w", ErrSynthesis, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return models.Artifact{}, fmt.Errorf("%w: create request: %w", ErrSynthesis, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return models.Artifact{}, fmt.Errorf("%w: send request: %w", ErrSynthesis, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return models.Artifact{}, fmt.Errorf("%w: status %d: %s", ErrSynthesis, resp.StatusCode, string(body))
	}

	audio, err := io.ReadAll(io.LimitReader(resp.Body, maxAudioBytes+1))
	if err != nil {
		return models.Artifact{}, fmt.Errorf("%w: read audio: %w", ErrSynthesis, err)
	}
	if len(audio) == 0 {
		return models.Artifact{}, fmt.Errorf("%w: empty audio", ErrSynthesis)
	}
	if len(audio) > maxAudioBytes {
		return models.Artifact{}, fmt.Errorf("%w: audio exceeds %d bytes", ErrSynthesis, maxAudioBytes)
	}

	mime := resp.Header.Get("Content-Type")
	if mime == "" || strings.HasPrefix(mime, "application/octet-stream") {
		mime = "audio/mpeg"
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return models.Artifact{}, fmt.Errorf("%w: create dir: %w", ErrSynthesis, err)
	}
	id := models.NewID("voice")
	path := filepath.Join(s.dir, id+extension(mime))
	if err := os.WriteFile(path, audio, 0o644); err != nil {
		return models.Artifact{}, fmt.Errorf("%w: write audio: %w", ErrSynthesis, err)
	}

	return models.Artifact{ID: id, Kind: models.ArtifactAudio, Path: path, MimeType: mime}, nil
}

func extension(mime string) string {
	switch {
	case strings.Contains(mime, "ogg"):
		return ".ogg"
	case strings.Contains(mime, "wav"):
		return ".wav"
	default:
		return ".mp3"
	}
}
