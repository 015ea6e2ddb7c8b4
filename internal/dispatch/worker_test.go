package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"leadfunnel_backend/internal/automation"
	"leadfunnel_backend/internal/dispatch/broker"
	"leadfunnel_backend/internal/whatsapp"
	"leadfunnel_backend/platform/apperr"
	"leadfunnel_backend/platform/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type brokerConfig struct {
	url string
}

func (c brokerConfig) GetRedisURL() string                 { return c.url }
func (c brokerConfig) GetDispatchStream() string           { return "dispatch:jobs" }
func (c brokerConfig) GetDispatchGroup() string            { return "dispatchers" }
func (c brokerConfig) GetDispatchDeadLetterStream() string { return "dispatch:dead" }

type gatewayConfig struct {
	url string
}

func (c gatewayConfig) GetGatewayURL() string    { return c.url }
func (c gatewayConfig) GetGatewayAPIKey() string { return "" }

type fakeJobs struct {
	mu      sync.Mutex
	sent    []uuid.UUID
	failed  map[uuid.UUID]string
	sentErr error
}

func (f *fakeJobs) MarkSent(_ context.Context, jobID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sentErr != nil {
		return f.sentErr
	}
	f.sent = append(f.sent, jobID)
	return nil
}

func (f *fakeJobs) MarkFailed(_ context.Context, jobID uuid.UUID, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failed == nil {
		f.failed = map[uuid.UUID]string{}
	}
	f.failed[jobID] = reason
	return nil
}

type fakeEngager struct {
	engaged []uuid.UUID
}

func (f *fakeEngager) MarkEngaged(_ context.Context, leadID uuid.UUID) error {
	f.engaged = append(f.engaged, leadID)
	return nil
}

type fakeProfiles struct {
	profiles map[uuid.UUID]*automation.Profile
}

func (f *fakeProfiles) GetProfileAnyTenant(_ context.Context, profileID uuid.UUID) (*automation.Profile, error) {
	p, ok := f.profiles[profileID]
	if !ok {
		return nil, automation.ErrProfileNotFound
	}
	return p, nil
}

func publishJobs(t *testing.T, cfg brokerConfig, jobs ...QueuedJob) {
	t.Helper()
	conn, err := broker.Dial(context.Background(), cfg, logger.New("test"))
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel(cfg)
	if err != nil {
		t.Fatalf("Channel: %v", err)
	}
	if err := ch.Declare(context.Background()); err != nil {
		t.Fatalf("Declare: %v", err)
	}
	for _, j := range jobs {
		body, err := json.Marshal(j)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		if err := ch.Publish(context.Background(), body); err != nil {
			t.Fatalf("Publish: %v", err)
		}
	}
}

func TestRunEmptyQueue(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := brokerConfig{url: "redis://" + mr.Addr()}

	worker := NewWorker(cfg, &fakeJobs{}, &fakeEngager{}, &fakeProfiles{}, nil, logger.New("test"))
	stats, err := worker.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats != (Stats{}) {
		t.Fatalf("expected zero stats, got %+v", stats)
	}
}

func TestRunBrokerUnavailable(t *testing.T) {
	if testing.Short() {
		t.Skip("dial retry backoff takes several seconds")
	}

	cfg := brokerConfig{url: "redis://127.0.0.1:1"}
	worker := NewWorker(cfg, &fakeJobs{}, &fakeEngager{}, &fakeProfiles{}, nil, logger.New("test"))

	stats, err := worker.Run(context.Background())
	if !errors.Is(err, broker.ErrBrokerUnavailable) {
		t.Fatalf("expected ErrBrokerUnavailable, got %v", err)
	}
	if apperr.GetKind(err) != apperr.KindUnavailable {
		t.Fatalf("expected KindUnavailable, got kind %v", apperr.GetKind(err))
	}
	if stats.Attempted != 0 {
		t.Fatal("no jobs may be processed without a broker connection")
	}
}

func TestRunDispatchBatchScenario(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := brokerConfig{url: "redis://" + mr.Addr()}

	var gatewayCalls []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gatewayCalls = append(gatewayCalls, r.URL.Path)
	}))
	defer srv.Close()
	gateway := whatsapp.NewClient(gatewayConfig{url: srv.URL}, logger.New("test"))

	profileID := uuid.New()
	profiles := &fakeProfiles{profiles: map[uuid.UUID]*automation.Profile{
		profileID: {ID: profileID, Tone: "friendly", Objective: "re-engage"},
	}}

	job1 := QueuedJob{JobID: uuid.New(), LeadID: uuid.New(), ProfileID: profileID,
		InstanceName: "I1", RemoteJID: "5511999990000@s.whatsapp.net", Message: "hello L1"}
	job2 := QueuedJob{JobID: uuid.New(), LeadID: uuid.New(), ProfileID: profileID,
		InstanceName: "I1", RemoteJID: "5511988887777@s.whatsapp.net", Message: "hello L2"}
	orphan := QueuedJob{JobID: uuid.New(), LeadID: uuid.New(), ProfileID: uuid.New(),
		InstanceName: "I1", RemoteJID: "5511977776666@s.whatsapp.net", Message: "hello L3"}
	publishJobs(t, cfg, job1, job2, orphan)

	jobs := &fakeJobs{}
	engager := &fakeEngager{}
	worker := NewWorker(cfg, jobs, engager, profiles, gateway, logger.New("test"))

	stats, err := worker.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Attempted != 3 || stats.Succeeded != 2 || stats.Failed != 1 {
		t.Fatalf("wrong stats: %+v", stats)
	}

	if len(jobs.sent) != 2 {
		t.Fatalf("expected 2 jobs marked sent, got %d", len(jobs.sent))
	}
	if len(engager.engaged) != 2 {
		t.Fatalf("expected 2 leads engaged, got %d", len(engager.engaged))
	}
	if reason, ok := jobs.failed[orphan.JobID]; !ok {
		t.Fatal("orphan job not marked failed")
	} else if reason == "" {
		t.Fatal("failure reason missing")
	}
	if len(gatewayCalls) != 2 {
		t.Fatalf("expected 2 gateway sends, got %d", len(gatewayCalls))
	}

	// Stream fully settled: acked messages deleted, the orphan dead-lettered.
	inspect := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = inspect.Close() }()

	if n, _ := inspect.XLen(context.Background(), "dispatch:jobs").Result(); n != 0 {
		t.Fatalf("expected empty stream, %d left", n)
	}
	dead, _ := inspect.XLen(context.Background(), "dispatch:dead").Result()
	if dead != 1 {
		t.Fatalf("expected 1 dead-lettered message, got %d", dead)
	}
}

func TestRunGatewayFailureIsIsolated(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := brokerConfig{url: "redis://" + mr.Addr()}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/message/sendText/broken" {
			w.WriteHeader(http.StatusBadGateway)
		}
	}))
	defer srv.Close()
	gateway := whatsapp.NewClient(gatewayConfig{url: srv.URL}, logger.New("test"))

	profileID := uuid.New()
	profiles := &fakeProfiles{profiles: map[uuid.UUID]*automation.Profile{
		profileID: {ID: profileID},
	}}

	bad := QueuedJob{JobID: uuid.New(), LeadID: uuid.New(), ProfileID: profileID,
		InstanceName: "broken", RemoteJID: "5511999990000", Message: "x"}
	good := QueuedJob{JobID: uuid.New(), LeadID: uuid.New(), ProfileID: profileID,
		InstanceName: "ok", RemoteJID: "5511988887777", Message: "y"}
	publishJobs(t, cfg, bad, good)

	jobs := &fakeJobs{}
	worker := NewWorker(cfg, jobs, &fakeEngager{}, profiles, gateway, logger.New("test"))

	stats, err := worker.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Succeeded != 1 || stats.Failed != 1 {
		t.Fatalf("one bad job must not block the batch: %+v", stats)
	}
	if _, ok := jobs.failed[bad.JobID]; !ok {
		t.Fatal("gateway failure not recorded on the job")
	}
}

func TestRunStoreFailureLeavesMessageUnsettled(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := brokerConfig{url: "redis://" + mr.Addr()}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()
	gateway := whatsapp.NewClient(gatewayConfig{url: srv.URL}, logger.New("test"))

	profileID := uuid.New()
	profiles := &fakeProfiles{profiles: map[uuid.UUID]*automation.Profile{
		profileID: {ID: profileID},
	}}

	job := QueuedJob{JobID: uuid.New(), LeadID: uuid.New(), ProfileID: profileID,
		InstanceName: "I1", RemoteJID: "5511999990000", Message: "x"}
	publishJobs(t, cfg, job)

	jobs := &fakeJobs{sentErr: errors.New("db down")}
	worker := NewWorker(cfg, jobs, &fakeEngager{}, profiles, gateway, logger.New("test"))

	stats, err := worker.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Failed != 1 {
		t.Fatalf("wrong stats: %+v", stats)
	}
	if len(jobs.failed) != 0 {
		t.Fatal("a completion store failure must not terminalize the job")
	}

	// The message stays on the stream for re-processing.
	inspect := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = inspect.Close() }()

	if n, _ := inspect.XLen(context.Background(), "dispatch:jobs").Result(); n != 1 {
		t.Fatalf("message must remain on the stream, have %d", n)
	}
	if dead, _ := inspect.XLen(context.Background(), "dispatch:dead").Result(); dead != 0 {
		t.Fatalf("message must not be dead-lettered, have %d", dead)
	}
}
