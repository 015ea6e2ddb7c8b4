// Package whatsapp talks to the Evolution-style messaging gateway.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"leadfunnel_backend/platform/apperr"
	"leadfunnel_backend/platform/config"
	"leadfunnel_backend/platform/logger"
)

// ErrInstanceGone means the gateway no longer knows the named instance.
// Jobs hitting it are unrecoverable until the instance is reconnected.
var ErrInstanceGone = errors.New("gateway instance not found")

// Client sends text messages through a gateway instance.
type Client struct {
	serverURL string
	apiKey    string
	http      *http.Client
	log       *logger.Logger
}

type sendTextRequest struct {
	Number string `json:"number"`
	Text   string `json:"text"`
}

// NewClient builds a client from the environment-level gateway settings.
// Per-instance credentials, when stored on the instance row, take priority
// via WithCredentials.
func NewClient(cfg config.GatewayConfig, log *logger.Logger) *Client {
	return &Client{
		serverURL: strings.TrimRight(cfg.GetGatewayURL(), "/"),
		apiKey:    cfg.GetGatewayAPIKey(),
		http:      &http.Client{Timeout: 15 * time.Second},
		log:       log,
	}
}

// WithCredentials returns a copy of the client pointed at an instance's own
// server and key. Empty values keep the environment-level fallback.
func (c *Client) WithCredentials(serverURL, apiKey string) *Client {
	clone := *c
	if serverURL != "" {
		clone.serverURL = strings.TrimRight(serverURL, "/")
	}
	if apiKey != "" {
		clone.apiKey = apiKey
	}
	return &clone
}

// SendText delivers one text message through the named instance. The number
// may arrive as a provider routing address; the JID suffix is stripped so the
// gateway always sees bare digits.
func (c *Client) SendText(ctx context.Context, instance, number, text string) error {
	if c.serverURL == "" {
		return errors.New("gateway not configured")
	}

	payload := sendTextRequest{
		Number: stripJIDSuffix(number),
		Text:   text,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal gateway payload: %w", err)
	}

	url := fmt.Sprintf("%s/message/sendText/%s", c.serverURL, instance)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("gateway request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("instance %q: %w", instance, ErrInstanceGone)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		msg := fmt.Sprintf("gateway returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
		if resp.StatusCode >= http.StatusInternalServerError {
			return apperr.Unavailable(msg)
		}
		return errors.New(msg)
	}

	c.log.Info("gateway message sent", "instance", instance, "number", payload.Number)
	return nil
}

// stripJIDSuffix reduces a routing address like 5511999999999@s.whatsapp.net
// to its number part.
func stripJIDSuffix(number string) string {
	if i := strings.IndexByte(number, '@'); i >= 0 {
		return number[:i]
	}
	return number
}
