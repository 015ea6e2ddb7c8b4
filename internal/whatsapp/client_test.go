package whatsapp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"leadfunnel_backend/platform/apperr"
	"leadfunnel_backend/platform/logger"
)

type gatewayConfig struct {
	url string
	key string
}

func (c gatewayConfig) GetGatewayURL() string    { return c.url }
func (c gatewayConfig) GetGatewayAPIKey() string { return c.key }

func TestSendTextPostsToInstancePath(t *testing.T) {
	var gotPath, gotKey string
	var gotBody sendTextRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("apikey")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	client := NewClient(gatewayConfig{url: srv.URL, key: "secret"}, logger.New("test"))
	err := client.SendText(context.Background(), "sales-main", "5511999999999@s.whatsapp.net", "hello")
	if err != nil {
		t.Fatalf("SendText: %v", err)
	}

	if gotPath != "/message/sendText/sales-main" {
		t.Fatalf("wrong path: %s", gotPath)
	}
	if gotKey != "secret" {
		t.Fatalf("wrong apikey header: %s", gotKey)
	}
	if gotBody.Number != "5511999999999" {
		t.Fatalf("JID suffix not stripped: %s", gotBody.Number)
	}
	if gotBody.Text != "hello" {
		t.Fatalf("wrong text: %s", gotBody.Text)
	}
}

func TestSendTextNotFoundIsInstanceGone(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewClient(gatewayConfig{url: srv.URL}, logger.New("test"))
	err := client.SendText(context.Background(), "gone", "5511999999999", "hello")
	if !errors.Is(err, ErrInstanceGone) {
		t.Fatalf("expected ErrInstanceGone, got %v", err)
	}
}

func TestSendTextServerErrorIncludesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "instance disconnected", http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewClient(gatewayConfig{url: srv.URL}, logger.New("test"))
	err := client.SendText(context.Background(), "sales-main", "5511999999999", "hello")
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, ErrInstanceGone) {
		t.Fatal("502 must not map to ErrInstanceGone")
	}
	if apperr.GetKind(err) != apperr.KindUnavailable {
		t.Fatalf("expected KindUnavailable for a 5xx, got kind %v (%v)", apperr.GetKind(err), err)
	}
}

func TestSendTextClientErrorIsNotUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "number not on whatsapp", http.StatusBadRequest)
	}))
	defer srv.Close()

	client := NewClient(gatewayConfig{url: srv.URL}, logger.New("test"))
	err := client.SendText(context.Background(), "sales-main", "5511999999999", "hello")
	if err == nil {
		t.Fatal("expected error")
	}
	if apperr.GetKind(err) == apperr.KindUnavailable {
		t.Fatal("a 4xx rejection is not an outage")
	}
}

func TestWithCredentialsOverridesFallback(t *testing.T) {
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("apikey")
	}))
	defer srv.Close()

	base := NewClient(gatewayConfig{url: "http://fallback.invalid", key: "fallback"}, logger.New("test"))
	client := base.WithCredentials(srv.URL, "instance-key")

	if err := client.SendText(context.Background(), "sales-main", "5511999999999", "hi"); err != nil {
		t.Fatalf("SendText: %v", err)
	}
	if gotKey != "instance-key" {
		t.Fatalf("instance key not used: %s", gotKey)
	}
	if base.serverURL != "http://fallback.invalid" {
		t.Fatal("WithCredentials must not mutate the base client")
	}

	// Empty overrides keep the fallback values.
	same := base.WithCredentials("", "")
	if same.serverURL != base.serverURL || same.apiKey != base.apiKey {
		t.Fatal("empty overrides should keep fallback credentials")
	}
}
