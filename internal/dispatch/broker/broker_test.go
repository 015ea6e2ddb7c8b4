package broker

import (
	"context"
	"errors"
	"testing"

	"leadfunnel_backend/platform/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type brokerConfig struct {
	url string
}

func (c brokerConfig) GetRedisURL() string                 { return c.url }
func (c brokerConfig) GetDispatchStream() string           { return "dispatch:jobs" }
func (c brokerConfig) GetDispatchGroup() string            { return "dispatchers" }
func (c brokerConfig) GetDispatchDeadLetterStream() string { return "dispatch:dead" }

func testChannel(t *testing.T) (*Channel, *miniredis.Miniredis, func()) {
	t.Helper()
	mr := miniredis.RunT(t)
	cfg := brokerConfig{url: "redis://" + mr.Addr()}

	conn, err := Dial(context.Background(), cfg, logger.New("test"))
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}

	ch, err := conn.Channel(cfg)
	if err != nil {
		t.Fatalf("Channel: %v", err)
	}
	if err := ch.Declare(context.Background()); err != nil {
		t.Fatalf("Declare: %v", err)
	}

	return ch, mr, func() {
		_ = ch.Close()
		_ = conn.Close()
	}
}

func TestDialUnreachableIsBrokerUnavailable(t *testing.T) {
	if testing.Short() {
		t.Skip("dial retry backoff takes several seconds")
	}

	cfg := brokerConfig{url: "redis://127.0.0.1:1"}
	_, err := Dial(context.Background(), cfg, logger.New("test"))
	if !errors.Is(err, ErrBrokerUnavailable) {
		t.Fatalf("expected ErrBrokerUnavailable, got %v", err)
	}
}

func TestDeclareIsIdempotent(t *testing.T) {
	ch, _, cleanup := testChannel(t)
	defer cleanup()

	if err := ch.Declare(context.Background()); err != nil {
		t.Fatalf("redeclare: %v", err)
	}
}

func TestDrainEmptyStream(t *testing.T) {
	ch, _, cleanup := testChannel(t)
	defer cleanup()

	msgs, err := ch.Drain(context.Background(), 10)
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if len(msgs) != 0 {
		t.Fatalf("expected no messages, got %d", len(msgs))
	}
}

func TestPublishDrainAck(t *testing.T) {
	ch, _, cleanup := testChannel(t)
	defer cleanup()
	ctx := context.Background()

	if err := ch.Publish(ctx, []byte(`{"jobId":"1"}`)); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if err := ch.Publish(ctx, []byte(`{"jobId":"2"}`)); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	msgs, err := ch.Drain(ctx, 10)
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if string(msgs[0].Body) != `{"jobId":"1"}` {
		t.Fatalf("wrong body: %s", msgs[0].Body)
	}

	// Delivered messages are owned by this consumer; a second drain sees
	// nothing new.
	again, err := ch.Drain(ctx, 10)
	if err != nil {
		t.Fatalf("second Drain: %v", err)
	}
	if len(again) != 0 {
		t.Fatalf("expected no new messages, got %d", len(again))
	}

	for _, m := range msgs {
		if err := ch.Ack(ctx, m); err != nil {
			t.Fatalf("Ack(%s): %v", m.ID, err)
		}
	}
}

func TestDrainRespectsMax(t *testing.T) {
	ch, _, cleanup := testChannel(t)
	defer cleanup()
	ctx := context.Background()

	for i := 0; i < 15; i++ {
		if err := ch.Publish(ctx, []byte(`{}`)); err != nil {
			t.Fatalf("Publish: %v", err)
		}
	}

	msgs, err := ch.Drain(ctx, 10)
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if len(msgs) != 10 {
		t.Fatalf("expected batch of 10, got %d", len(msgs))
	}
}

func TestNackDeadLettersWithoutRequeue(t *testing.T) {
	ch, mr, cleanup := testChannel(t)
	defer cleanup()
	ctx := context.Background()

	if err := ch.Publish(ctx, []byte(`{"jobId":"bad"}`)); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	msgs, err := ch.Drain(ctx, 10)
	if err != nil || len(msgs) != 1 {
		t.Fatalf("Drain: %v (%d msgs)", err, len(msgs))
	}

	if err := ch.Nack(ctx, msgs[0], "profile missing"); err != nil {
		t.Fatalf("Nack: %v", err)
	}

	// Not requeued.
	again, err := ch.Drain(ctx, 10)
	if err != nil {
		t.Fatalf("Drain after nack: %v", err)
	}
	if len(again) != 0 {
		t.Fatalf("nacked message must not be redelivered, got %d", len(again))
	}

	// Landed on the dead-letter stream with the reason attached.
	inspect := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = inspect.Close() }()

	dead, err := inspect.XRange(ctx, "dispatch:dead", "-", "+").Result()
	if err != nil {
		t.Fatalf("XRange dead letter: %v", err)
	}
	if len(dead) != 1 {
		t.Fatalf("expected 1 dead-lettered message, got %d", len(dead))
	}
	if dead[0].Values["reason"] != "profile missing" {
		t.Fatalf("missing reason: %v", dead[0].Values)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	ch, _, cleanup := testChannel(t)
	cleanup()

	if err := ch.Close(); err != nil {
		t.Fatalf("double channel close: %v", err)
	}
}
