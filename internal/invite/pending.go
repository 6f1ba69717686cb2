package invite

import (
	"context"
	"fmt"

	"github.com/planora/planora/internal/kv"
	"github.com/planora/planora/internal/notify"
)

// pendingKeyPrefix namespaces the per-client slot in the key-value store.
// The slot is single-valued: staging always replaces what was there.
const pendingKeyPrefix = "pending_invite:"

// PendingTopic returns the notification topic for a client's slot.
// Observers (e.g. a "finish joining" banner) subscribe to it and re-read
// the slot on every notice.
func PendingTopic(clientID string) string {
	return "pending-invite/" + clientID
}

// PendingStore stages at most one invite code per client across an
// authentication detour. The typical flow: an unauthenticated user enters
// a code, the code is staged, the user authenticates, the caller reads
// Pending, performs the join, and Clears on success. A failed join leaves
// the slot intact so the user can retry.
type PendingStore struct {
	store  kv.Store
	broker *notify.Broker
}

// NewPendingStore creates a PendingStore over the given slot storage and
// notification broker.
func NewPendingStore(store kv.Store, broker *notify.Broker) *PendingStore {
	return &PendingStore{store: store, broker: broker}
}

// Stage validates, normalizes and stores the code in the client's slot,
// replacing any previously staged value, and publishes a change notice.
// Returns the canonical form of what was stored.
func (p *PendingStore) Stage(ctx context.Context, clientID, text string) (string, error) {
	code, err := Validate(text)
	if err != nil {
		return "", err
	}
	if err := p.store.Set(ctx, pendingKeyPrefix+clientID, code); err != nil {
		return "", fmt.Errorf("failed to stage pending invite: %w", err)
	}
	p.broker.Publish(PendingTopic(clientID))
	return code, nil
}

// Pending returns the staged code for the client, if any.
func (p *PendingStore) Pending(ctx context.Context, clientID string) (string, bool, error) {
	code, ok, err := p.store.Get(ctx, pendingKeyPrefix+clientID)
	if err != nil {
		return "", false, fmt.Errorf("failed to read pending invite: %w", err)
	}
	return code, ok, nil
}

// Clear empties the client's slot and publishes a change notice. Clearing
// an empty slot is a no-op but still notifies, keeping observers honest
// about re-reading.
func (p *PendingStore) Clear(ctx context.Context, clientID string) error {
	if err := p.store.Delete(ctx, pendingKeyPrefix+clientID); err != nil {
		return fmt.Errorf("failed to clear pending invite: %w", err)
	}
	p.broker.Publish(PendingTopic(clientID))
	return nil
}
