// Package daily provisions video rooms with a Daily-style REST API.
package daily

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/flowdesk/flowdesk/internal/application/config"
	"github.com/flowdesk/flowdesk/internal/room"
)

type Client struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
	expiry     time.Duration
}

func NewClient(cfg config.DailyConfig) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		apiKey:     cfg.APIKey,
		baseURL:    cfg.BaseURL,
		expiry:     cfg.Expiry,
	}
}

type createRoomRequest struct {
	Name       string         `json:"name"`
	Privacy    string         `json:"privacy"`
	Properties roomProperties `json:"properties"`
}

type roomProperties struct {
	EnableChat        bool  `json:"enable_chat"`
	EnableScreenshare bool  `json:"enable_screenshare"`
	StartVideoOff     bool  `json:"start_video_off"`
	StartAudioOff     bool  `json:"start_audio_off"`
	Exp               int64 `json:"exp"`
	EjectAtRoomExp    bool  `json:"eject_at_room_exp"`
	MaxParticipants   int   `json:"max_participants"`
	EnablePrejoinUI   bool  `json:"enable_prejoin_ui"`
}

type createRoomResponse struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

type errorResponse struct {
	Info string `json:"info"`
}

// CreateRoom asks the provider for a joinable room handle with a bounded
// expiry. 401 and 429 map to the dedicated sentinel errors, anything else
// to *ProviderError.
func (c *Client) CreateRoom(ctx context.Context) (room.VideoRoom, error) {
	expiresAt := time.Now().Add(c.expiry)

	reqBody := createRoomRequest{
		Name:    fmt.Sprintf("flow-%d-%s", time.Now().UnixMilli(), uuid.NewString()[:8]),
		Privacy: "public",
		Properties: roomProperties{
			EnableChat:        true,
			EnableScreenshare: true,
			StartVideoOff:     true,
			StartAudioOff:     true,
			Exp:               expiresAt.Unix(),
			EjectAtRoomExp:    true,
			MaxParticipants:   10,
			EnablePrejoinUI:   true,
		},
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return room.VideoRoom{}, fmt.Errorf("marshal create room request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/rooms", bytes.NewReader(payload))
	if err != nil {
		return room.VideoRoom{}, fmt.Errorf("build create room request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return room.VideoRoom{}, fmt.Errorf("create room: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return room.VideoRoom{}, err
	}

	var created createRoomResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return room.VideoRoom{}, fmt.Errorf("decode create room response: %w", err)
	}

	if created.URL == "" {
		return room.VideoRoom{}, &ProviderError{Status: resp.StatusCode, Info: "response without room url"}
	}

	return room.VideoRoom{
		URL:       created.URL,
		Name:      created.Name,
		ExpiresAt: expiresAt,
	}, nil
}

// DeleteRoom tears the room down; the provider expires it on its own
// eventually, so failures only matter to the caller's logs.
func (c *Client) DeleteRoom(ctx context.Context, name string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/rooms/"+name, nil)
	if err != nil {
		return fmt.Errorf("build delete room request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("delete room: %w", err)
	}
	defer resp.Body.Close()

	return checkStatus(resp)
}

func checkStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrUnauthorized
	case resp.StatusCode == http.StatusTooManyRequests:
		return ErrRateLimited
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

		var errResp errorResponse
		_ = json.Unmarshal(body, &errResp)

		return &ProviderError{Status: resp.StatusCode, Info: errResp.Info}
	}
}
