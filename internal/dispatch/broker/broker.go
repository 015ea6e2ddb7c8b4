// Package broker is the durable queue the dispatch worker drains. It is a
// thin connection/channel layer over Redis Streams with consumer groups:
// messages are delivered with explicit acknowledgment, and negative
// acknowledgment moves a message to a dead-letter stream instead of
// requeueing it.
package broker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"leadfunnel_backend/platform/config"
	"leadfunnel_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrBrokerUnavailable means the broker could not be reached within the
// dial retry budget. A dispatch invocation seeing it processes nothing.
var ErrBrokerUnavailable = errors.New("dispatch broker unavailable")

const (
	// dialAttempts is the initial attempt plus two retries.
	dialAttempts = 3
	// backoffStep is multiplied by the attempt number: 2s, 4s.
	backoffStep = 2 * time.Second

	dialTimeout = 10 * time.Second
	opTimeout   = 5 * time.Second
)

// Connection is one established broker connection.
type Connection struct {
	client    *redis.Client
	log       *logger.Logger
	closeOnce sync.Once
}

// Dial connects to the broker and verifies it with a ping. Failures are
// retried up to two more times with linear backoff before the whole dial is
// reported as ErrBrokerUnavailable.
func Dial(ctx context.Context, cfg config.BrokerConfig, log *logger.Logger) (*Connection, error) {
	opt, err := redis.ParseURL(cfg.GetRedisURL())
	if err != nil {
		return nil, fmt.Errorf("parse broker url: %w", err)
	}
	client := redis.NewClient(opt)

	var lastErr error
	for attempt := 1; attempt <= dialAttempts; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, dialTimeout)
		lastErr = client.Ping(pingCtx).Err()
		cancel()
		if lastErr == nil {
			return &Connection{client: client, log: log}, nil
		}

		log.Warn("broker dial failed", "attempt", attempt, "error", lastErr.Error())
		if attempt == dialAttempts {
			break
		}
		select {
		case <-ctx.Done():
			_ = client.Close()
			return nil, ctx.Err()
		case <-time.After(time.Duration(attempt) * backoffStep):
		}
	}

	_ = client.Close()
	return nil, fmt.Errorf("%w after %d attempts: %v", ErrBrokerUnavailable, dialAttempts, lastErr)
}

// Close shuts the underlying connection down. Safe to call more than once.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.client.Close()
	})
	return err
}

// Message is one delivered queue entry awaiting acknowledgment.
type Message struct {
	ID   string
	Body []byte
}

// Channel is a logical channel bound to one named stream and consumer
// group. Channels are not safe for concurrent use; the worker drains
// sequentially by design.
type Channel struct {
	client     *redis.Client
	stream     string
	group      string
	deadLetter string
	consumer   string
	log        *logger.Logger
	closed     bool
}

// Channel opens a logical channel bound to the configured dispatch stream.
func (c *Connection) Channel(cfg config.BrokerConfig) (*Channel, error) {
	stream := cfg.GetDispatchStream()
	group := cfg.GetDispatchGroup()
	if stream == "" || group == "" {
		return nil, errors.New("broker stream and group must be configured")
	}
	return &Channel{
		client:     c.client,
		stream:     stream,
		group:      group,
		deadLetter: cfg.GetDispatchDeadLetterStream(),
		consumer:   "dispatcher-" + uuid.NewString()[:8],
		log:        c.log,
	}, nil
}

// Declare creates the stream and consumer group if they do not exist yet.
// Redeclaring an existing group is a no-op.
func (ch *Channel) Declare(ctx context.Context) error {
	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	err := ch.client.XGroupCreateMkStream(opCtx, ch.stream, ch.group, "0").Err()
	if err != nil && !isBusyGroup(err) {
		return fmt.Errorf("declare stream %q: %w", ch.stream, err)
	}
	return nil
}

// Publish appends one message body to the stream.
func (ch *Channel) Publish(ctx context.Context, body []byte) error {
	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	return ch.client.XAdd(opCtx, &redis.XAddArgs{
		Stream: ch.stream,
		Values: map[string]interface{}{"body": body},
	}).Err()
}

// Drain reads up to max pending messages without blocking on an empty
// stream. Every returned message must be Ack'd or Nack'd.
func (ch *Channel) Drain(ctx context.Context, max int) ([]Message, error) {
	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	streams, err := ch.client.XReadGroup(opCtx, &redis.XReadGroupArgs{
		Group:    ch.group,
		Consumer: ch.consumer,
		Streams:  []string{ch.stream, ">"},
		Count:    int64(max),
		Block:    -1,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("drain %q: %w", ch.stream, err)
	}

	var messages []Message
	for _, s := range streams {
		for _, m := range s.Messages {
			body, _ := m.Values["body"].(string)
			messages = append(messages, Message{ID: m.ID, Body: []byte(body)})
		}
	}
	return messages, nil
}

// Ack acknowledges a delivered message and removes it from the stream.
func (ch *Channel) Ack(ctx context.Context, msg Message) error {
	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if err := ch.client.XAck(opCtx, ch.stream, ch.group, msg.ID).Err(); err != nil {
		return err
	}
	return ch.client.XDel(opCtx, ch.stream, msg.ID).Err()
}

// Nack drops a delivered message without requeueing it. The message lands on
// the dead-letter stream with the failure reason; re-delivery requires a
// human or a new schedule.
func (ch *Channel) Nack(ctx context.Context, msg Message, reason string) error {
	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if ch.deadLetter != "" {
		err := ch.client.XAdd(opCtx, &redis.XAddArgs{
			Stream: ch.deadLetter,
			Values: map[string]interface{}{"body": msg.Body, "reason": reason},
		}).Err()
		if err != nil {
			ch.log.Warn("dead-letter append failed", "message_id", msg.ID, "error", err.Error())
		}
	}

	if err := ch.client.XAck(opCtx, ch.stream, ch.group, msg.ID).Err(); err != nil {
		return err
	}
	return ch.client.XDel(opCtx, ch.stream, msg.ID).Err()
}

// Close marks the channel unusable. Channels hold no resources of their
// own; closing twice is fine.
func (ch *Channel) Close() error {
	ch.closed = true
	return nil
}

func isBusyGroup(err error) bool {
	return err != nil && strings.Contains(err.Error(), "BUSYGROUP")
}
