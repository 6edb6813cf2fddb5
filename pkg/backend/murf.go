package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const murfGenerateURL = "https://api.murf.ai/v1/speech/generate"

// Murf synthesizes narration through the Murf TTS API. The generate
// endpoint returns a URL to the rendered audio, which is fetched in a
// second request.
type Murf struct {
	apiKey  string
	voiceID string
	client  *http.Client
}

func NewMurf(apiKey, voiceID string) *Murf {
	if voiceID == "" {
		voiceID = "en-UK-juliet"
	}
	return &Murf{
		apiKey:  apiKey,
		voiceID: voiceID,
		client:  &http.Client{Timeout: 2 * time.Minute},
	}
}

type murfRequest struct {
	Text         string `json:"text"`
	VoiceID      string `json:"voiceId"`
	Format       string `json:"format"`
	ModelVersion string `json:"modelVersion"`
}

type murfResponse struct {
	AudioFile string `json:"audioFile"`
}

func (m *Murf) Speech(ctx context.Context, text string) ([]byte, error) {
	if m.apiKey == "" {
		return nil, ErrUnavailable
	}

	payload, err := json.Marshal(murfRequest{
		Text:         text,
		VoiceID:      m.voiceID,
		Format:       "MP3",
		ModelVersion: "GEN2",
	})
	if err != nil {
		return nil, fmt.Errorf("murf request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, murfGenerateURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("murf request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", m.apiKey)

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("murf generate: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("murf generate: status %d: %s", resp.StatusCode, body)
	}

	var out murfResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("murf generate: %w", err)
	}
	if out.AudioFile == "" {
		return nil, errors.New("murf generate: no audio file in response")
	}

	return m.fetch(ctx, out.AudioFile)
}

func (m *Murf) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("murf fetch: %w", err)
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("murf fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("murf fetch: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("murf fetch: %w", err)
	}
	return data, nil
}
