// Package kanban implements the optimistic-update contract of the kanban
// board: a status change is applied to the board immediately, then confirmed
// or rolled back once the persistent write settles. Rollback restores the
// exact snapshot captured before the optimistic write, never a re-read, so it
// stays correct under interleaved edits.
package kanban

import (
	"sync"

	"github.com/google/uuid"
)

// Board holds the in-memory lead→status view backing a kanban board.
type Board struct {
	mu       sync.Mutex
	statuses map[uuid.UUID]string
}

// NewBoard creates a board from the current lead statuses.
func NewBoard(statuses map[uuid.UUID]string) *Board {
	copied := make(map[uuid.UUID]string, len(statuses))
	for id, status := range statuses {
		copied[id] = status
	}
	return &Board{statuses: copied}
}

// Status returns a lead's current board status.
func (b *Board) Status(leadID uuid.UUID) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	status, ok := b.statuses[leadID]
	return status, ok
}

// Update is one tentative status change. It carries the pre-write snapshot
// needed for rollback.
type Update struct {
	board  *Board
	leadID uuid.UUID
	prior  string
	had    bool
}

// Apply writes the new status optimistically and returns the update handle.
// The prior value is captured before the write; that snapshot is what
// Rollback restores.
func (b *Board) Apply(leadID uuid.UUID, newStatus string) Update {
	b.mu.Lock()
	defer b.mu.Unlock()

	prior, had := b.statuses[leadID]
	b.statuses[leadID] = newStatus

	return Update{board: b, leadID: leadID, prior: prior, had: had}
}

// Confirm acknowledges that the persistent write succeeded. The board already
// shows the new value; nothing changes.
func (u Update) Confirm() {}

// Rollback restores the snapshot captured by Apply. It deliberately ignores
// any later writes to the same lead: last confirmed write wins, and a failed
// update must put back what it displaced, not what happens to be current.
func (u Update) Rollback() {
	u.board.mu.Lock()
	defer u.board.mu.Unlock()

	if u.had {
		u.board.statuses[u.leadID] = u.prior
	} else {
		delete(u.board.statuses, u.leadID)
	}
}
