package webhook

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"leadfunnel_backend/internal/events"
	"leadfunnel_backend/platform/logger"
)

// Forwarder delivers processed inbound events to the tenant's automation
// hook. It subscribes to InboundMessageProcessed; delivery failures are
// logged and dropped, never retried. The downstream contract is
// at-least-once: a provider-side redelivery produces a second forward.
type Forwarder struct {
	http *http.Client
	log  *logger.Logger
}

// NewForwarder creates a hook forwarder.
func NewForwarder(log *logger.Logger) *Forwarder {
	return &Forwarder{
		http: &http.Client{Timeout: 30 * time.Second},
		log:  log,
	}
}

// Subscribe registers the forwarder on the bus.
func (f *Forwarder) Subscribe(bus events.Bus) {
	bus.Subscribe("ingestion.message.processed", events.HandlerFunc(f.handle))
}

func (f *Forwarder) handle(ctx context.Context, evt events.Event) error {
	msg, ok := evt.(events.InboundMessageProcessed)
	if !ok {
		return fmt.Errorf("unexpected event type %T", evt)
	}
	if msg.HookURL == "" {
		return nil
	}

	if err := f.deliver(ctx, msg.HookURL, msg.Payload); err != nil {
		// Best effort only. The provider already got its 200.
		f.log.Warn("automation hook delivery failed",
			"tenant_id", msg.TenantID.String(),
			"lead_id", msg.LeadID.String(),
			"error", err.Error(),
		)
	}
	return nil
}

func (f *Forwarder) deliver(ctx context.Context, url string, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.http.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("hook returned %d", resp.StatusCode)
	}
	return nil
}
