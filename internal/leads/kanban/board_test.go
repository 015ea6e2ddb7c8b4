package kanban

import (
	"testing"

	"github.com/google/uuid"
)

func TestApplyThenConfirm(t *testing.T) {
	lead := uuid.New()
	board := NewBoard(map[uuid.UUID]string{lead: "new"})

	update := board.Apply(lead, "negotiating")
	if status, _ := board.Status(lead); status != "negotiating" {
		t.Fatalf("optimistic write not visible: %q", status)
	}

	update.Confirm()
	if status, _ := board.Status(lead); status != "negotiating" {
		t.Fatalf("confirm must not change the board: %q", status)
	}
}

func TestRollbackRestoresSnapshot(t *testing.T) {
	lead := uuid.New()
	board := NewBoard(map[uuid.UUID]string{lead: "new"})

	update := board.Apply(lead, "negotiating")
	update.Rollback()

	if status, _ := board.Status(lead); status != "new" {
		t.Fatalf("rollback did not restore prior value: %q", status)
	}
}

func TestRollbackUsesSnapshotNotCurrentValue(t *testing.T) {
	lead := uuid.New()
	board := NewBoard(map[uuid.UUID]string{lead: "new"})

	// Two interleaved optimistic updates; the first one's persistence fails.
	first := board.Apply(lead, "negotiating")
	second := board.Apply(lead, "proposal_sent")

	first.Rollback()
	if status, _ := board.Status(lead); status != "new" {
		t.Fatalf("rollback must restore the pre-optimistic snapshot, got %q", status)
	}

	// The second update's confirmation is now stale but must not panic.
	second.Confirm()
}

func TestRollbackOfUnknownLeadRemovesEntry(t *testing.T) {
	board := NewBoard(nil)
	lead := uuid.New()

	update := board.Apply(lead, "new")
	if _, ok := board.Status(lead); !ok {
		t.Fatal("optimistic write missing")
	}

	update.Rollback()
	if _, ok := board.Status(lead); ok {
		t.Fatal("rollback should remove a lead that was not on the board before")
	}
}

func TestBoardCopiesInitialState(t *testing.T) {
	lead := uuid.New()
	initial := map[uuid.UUID]string{lead: "new"}
	board := NewBoard(initial)

	initial[lead] = "mutated"
	if status, _ := board.Status(lead); status != "new" {
		t.Fatalf("board must not alias the caller's map: %q", status)
	}
}
