package role

import (
	"context"
	"fmt"
	"sync"
)

// Store is the persistence port for role assignments. The authoritative
// implementation is the room membership table; tests and local caches use
// MemoryStore.
type Store interface {
	// RoleOf returns the role assigned to the (user, room) pair and
	// whether an explicit assignment exists.
	RoleOf(ctx context.Context, userID, roomID string) (Role, bool, error)

	// SetRole replaces any existing assignment for the pair.
	SetRole(ctx context.Context, userID, roomID string, r Role) error
}

// Authority resolves roles and answers capability questions for room
// actions. It owns no state beyond the injected store and policy.
type Authority struct {
	store  Store
	policy Policy
}

// NewAuthority creates an Authority over the given store. A nil policy
// falls back to DefaultPolicy.
func NewAuthority(store Store, policy Policy) *Authority {
	if policy == nil {
		policy = DefaultPolicy()
	}
	return &Authority{store: store, policy: policy}
}

// RoleOf returns the role for the pair. A pair without an assignment, and
// any store failure, resolves to Member: the caller always gets the least
// privilege rather than an error.
func (a *Authority) RoleOf(ctx context.Context, userID, roomID string) Role {
	r, ok, err := a.store.RoleOf(ctx, userID, roomID)
	if err != nil || !ok {
		return Member
	}
	return r
}

// SetRole replaces the assignment for the pair. Last write wins.
func (a *Authority) SetRole(ctx context.Context, userID, roomID string, r Role) error {
	if err := a.store.SetRole(ctx, userID, roomID, r); err != nil {
		return fmt.Errorf("failed to set role: %w", err)
	}
	return nil
}

// Can reports whether the user's role in the room permits the action.
func (a *Authority) Can(ctx context.Context, userID, roomID string, action Action) bool {
	return a.policy.Allows(a.RoleOf(ctx, userID, roomID), action)
}

// MemoryStore is an in-memory Store. It backs tests and the client-side
// role cache seeded at join time; writes are last-write-wins.
type MemoryStore struct {
	mu    sync.RWMutex
	roles map[string]Role
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{roles: make(map[string]Role)}
}

func memoryKey(userID, roomID string) string {
	return userID + "\x00" + roomID
}

// RoleOf returns the stored role for the pair, if any.
func (s *MemoryStore) RoleOf(_ context.Context, userID, roomID string) (Role, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.roles[memoryKey(userID, roomID)]
	return r, ok, nil
}

// SetRole replaces the stored role for the pair.
func (s *MemoryStore) SetRole(_ context.Context, userID, roomID string, r Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roles[memoryKey(userID, roomID)] = r
	return nil
}
