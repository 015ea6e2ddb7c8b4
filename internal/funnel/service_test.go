package funnel

import (
	"context"
	"testing"

	"leadfunnel_backend/platform/logger"

	"github.com/google/uuid"
)

// fakeStatusStore keeps statuses in a slice, enough to drive the service.
type fakeStatusStore struct {
	statuses  []Status
	seedCalls int
}

func (f *fakeStatusStore) ListByTenant(_ context.Context, _ uuid.UUID) ([]Status, error) {
	out := make([]Status, len(f.statuses))
	copy(out, f.statuses)
	return out, nil
}

func (f *fakeStatusStore) GetByID(_ context.Context, statusID, _ uuid.UUID) (Status, error) {
	for _, st := range f.statuses {
		if st.ID == statusID {
			return st, nil
		}
	}
	return Status{}, ErrStatusNotFound
}

func (f *fakeStatusStore) Insert(_ context.Context, tenantID uuid.UUID, key, label string, displayOrder int) (Status, error) {
	for _, st := range f.statuses {
		if st.Key == key {
			return Status{}, errDuplicateKey
		}
	}
	st := Status{ID: uuid.New(), TenantID: tenantID, Key: key, Label: label, DisplayOrder: displayOrder}
	f.statuses = append(f.statuses, st)
	return st, nil
}

func (f *fakeStatusStore) Delete(_ context.Context, statusID, _ uuid.UUID) error {
	for i, st := range f.statuses {
		if st.ID == statusID {
			f.statuses = append(f.statuses[:i], f.statuses[i+1:]...)
			return nil
		}
	}
	return ErrStatusNotFound
}

func (f *fakeStatusStore) UpdateDisplayOrders(_ context.Context, _ uuid.UUID, orderedIDs []uuid.UUID) error {
	for position, id := range orderedIDs {
		for i := range f.statuses {
			if f.statuses[i].ID == id {
				f.statuses[i].DisplayOrder = position + 1
			}
		}
	}
	return nil
}

func (f *fakeStatusStore) SeedRequired(_ context.Context, tenantID uuid.UUID) error {
	f.seedCalls++
	seed := []struct {
		key   string
		order int
	}{
		{KeyNew, 1},
		{KeyConversationStarted, 2},
		{KeyFinished, 1_000_000},
	}
	for _, s := range seed {
		if !hasKey(f.statuses, s.key) {
			f.statuses = append(f.statuses, Status{
				ID: uuid.New(), TenantID: tenantID,
				Key: s.key, IsRequired: true, DisplayOrder: s.order,
			})
		}
	}
	return nil
}

func (f *fakeStatusStore) KeyExists(_ context.Context, _ uuid.UUID, key string) (bool, error) {
	return hasKey(f.statuses, key), nil
}

func status(key string, required bool, order int) Status {
	return Status{ID: uuid.New(), Key: key, IsRequired: required, DisplayOrder: order}
}

func TestOrderStatusesPartitions(t *testing.T) {
	// Stored orders deliberately adversarial: finished first, customs before required.
	statuses := []Status{
		status(KeyFinished, true, 0),
		status("negotiating", false, 2),
		status(KeyConversationStarted, true, 2),
		status("proposal_sent", false, 1),
		status(KeyNew, true, 1),
	}

	ordered := orderStatuses(statuses)
	keys := make([]string, len(ordered))
	for i, st := range ordered {
		keys[i] = st.Key
	}

	want := []string{KeyNew, KeyConversationStarted, "proposal_sent", "negotiating", KeyFinished}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("position %d: got %q, want %q (full order %v)", i, keys[i], want[i], keys)
		}
	}
}

func TestOrderStatusesIgnoresStoredOrderOfFinished(t *testing.T) {
	finished := status(KeyFinished, true, -100)
	custom := status("custom", false, 999)
	ordered := orderStatuses([]Status{finished, custom})

	if ordered[len(ordered)-1].Key != KeyFinished {
		t.Fatal("finished must always sort last")
	}
}

func TestOrderStatusesEmpty(t *testing.T) {
	if got := orderStatuses(nil); len(got) != 0 {
		t.Fatalf("expected empty result, got %d entries", len(got))
	}
}

func TestReorderSetMatches(t *testing.T) {
	a := status("a", false, 1)
	b := status("b", false, 2)
	required := status(KeyNew, true, 1)
	finished := status(KeyFinished, true, 99)
	statuses := []Status{required, a, b, finished}

	if !reorderSetMatches(statuses, []uuid.UUID{b.ID, a.ID}) {
		t.Fatal("exact custom set in any order should match")
	}
	if reorderSetMatches(statuses, []uuid.UUID{a.ID}) {
		t.Fatal("missing id should not match")
	}
	if reorderSetMatches(statuses, []uuid.UUID{a.ID, b.ID, required.ID}) {
		t.Fatal("required id should not be accepted")
	}
	if reorderSetMatches(statuses, []uuid.UUID{a.ID, a.ID}) {
		t.Fatal("duplicate id should not match")
	}
	if reorderSetMatches(statuses, []uuid.UUID{a.ID, uuid.New()}) {
		t.Fatal("unknown id should not match")
	}
}

func TestReorderSetMatchesEmptyCustomSet(t *testing.T) {
	statuses := []Status{status(KeyNew, true, 1), status(KeyFinished, true, 2)}
	if !reorderSetMatches(statuses, nil) {
		t.Fatal("empty id list should match a tenant with no custom statuses")
	}
	if reorderSetMatches(statuses, []uuid.UUID{uuid.New()}) {
		t.Fatal("non-empty id list should not match")
	}
}

func TestListOrderedSeedsRequiredStatusesOnFirstTouch(t *testing.T) {
	store := &fakeStatusStore{}
	svc := NewService(store, logger.New("test"))
	tenantID := uuid.New()

	statuses, err := svc.ListOrdered(context.Background(), tenantID)
	if err != nil {
		t.Fatalf("ListOrdered: %v", err)
	}
	if store.seedCalls != 1 {
		t.Fatalf("expected 1 seed call, got %d", store.seedCalls)
	}
	if len(statuses) != 3 {
		t.Fatalf("expected 3 seeded statuses, got %d", len(statuses))
	}
	if statuses[0].Key != KeyNew {
		t.Fatalf("first status = %q, want %q", statuses[0].Key, KeyNew)
	}
	if statuses[len(statuses)-1].Key != KeyFinished {
		t.Fatalf("last status = %q, want %q", statuses[len(statuses)-1].Key, KeyFinished)
	}

	// A seeded tenant is not re-seeded.
	if _, err := svc.ListOrdered(context.Background(), tenantID); err != nil {
		t.Fatalf("second ListOrdered: %v", err)
	}
	if store.seedCalls != 1 {
		t.Fatalf("expected no further seed calls, got %d", store.seedCalls)
	}
}

func TestReorderTwiceKeepsOrder(t *testing.T) {
	store := &fakeStatusStore{}
	svc := NewService(store, logger.New("test"))
	tenantID := uuid.New()

	if err := svc.SeedRequired(context.Background(), tenantID); err != nil {
		t.Fatalf("SeedRequired: %v", err)
	}
	var ids []uuid.UUID
	for _, key := range []string{"qualified", "negotiating", "proposal_sent"} {
		st, err := svc.Create(context.Background(), tenantID, key, key)
		if err != nil {
			t.Fatalf("Create %s: %v", key, err)
		}
		ids = append(ids, st.ID)
	}

	// proposal_sent, qualified, negotiating
	want := []uuid.UUID{ids[2], ids[0], ids[1]}

	keysAfterReorder := func() []string {
		if err := svc.Reorder(context.Background(), tenantID, want); err != nil {
			t.Fatalf("Reorder: %v", err)
		}
		statuses, err := svc.ListOrdered(context.Background(), tenantID)
		if err != nil {
			t.Fatalf("ListOrdered: %v", err)
		}
		keys := make([]string, len(statuses))
		for i, st := range statuses {
			keys[i] = st.Key
		}
		return keys
	}

	first := keysAfterReorder()
	second := keysAfterReorder()

	wantKeys := []string{KeyNew, KeyConversationStarted, "proposal_sent", "qualified", "negotiating", KeyFinished}
	for i := range wantKeys {
		if first[i] != wantKeys[i] {
			t.Fatalf("after first reorder, position %d = %q, want %q", i, first[i], wantKeys[i])
		}
		if second[i] != first[i] {
			t.Fatalf("second identical reorder changed position %d: %q vs %q", i, second[i], first[i])
		}
	}
	if store.seedCalls != 1 {
		t.Fatalf("reorder must not trigger reseeding, seed calls = %d", store.seedCalls)
	}
}
