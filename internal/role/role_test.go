package role

import (
	"context"
	"errors"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		label   string
		want    Role
		wantErr bool
	}{
		{name: "member", label: "member", want: Member},
		{name: "admin", label: "admin", want: Admin},
		{name: "owner", label: "owner", want: Owner},
		{name: "mixed case", label: "Owner", want: Owner},
		{name: "whitespace", label: " admin ", want: Admin},
		{name: "unknown", label: "moderator", wantErr: true},
		{name: "empty", label: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.label)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidRole) {
					t.Fatalf("expected ErrInvalidRole, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(%q) failed: %v", tt.label, err)
			}
			if got != tt.want {
				t.Errorf("Parse(%q) = %v, want %v", tt.label, got, tt.want)
			}
		})
	}
}

func TestRoleOrdering(t *testing.T) {
	if !(Member < Admin && Admin < Owner) {
		t.Fatal("expected member < admin < owner")
	}
}

func TestDefaultPolicy(t *testing.T) {
	policy := DefaultPolicy()

	tests := []struct {
		name   string
		role   Role
		action Action
		want   bool
	}{
		{name: "member views room", role: Member, action: ActionViewRoom, want: true},
		{name: "member proposes", role: Member, action: ActionProposeActivity, want: true},
		{name: "member votes", role: Member, action: ActionVote, want: true},
		{name: "member adds date options", role: Member, action: ActionManageDates, want: true},
		{name: "member cannot advance phase", role: Member, action: ActionAdvancePhase, want: false},
		{name: "member cannot edit room", role: Member, action: ActionEditRoom, want: false},
		{name: "member cannot delete room", role: Member, action: ActionDeleteRoom, want: false},
		{name: "admin advances phase", role: Admin, action: ActionAdvancePhase, want: true},
		{name: "admin edits room", role: Admin, action: ActionEditRoom, want: true},
		{name: "admin finalizes date", role: Admin, action: ActionFinalizeDate, want: true},
		{name: "admin cannot delete room", role: Admin, action: ActionDeleteRoom, want: false},
		{name: "admin cannot remove members", role: Admin, action: ActionRemoveMember, want: false},
		{name: "owner deletes room", role: Owner, action: ActionDeleteRoom, want: true},
		{name: "owner removes members", role: Owner, action: ActionRemoveMember, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := policy.Allows(tt.role, tt.action); got != tt.want {
				t.Errorf("Allows(%v, %v) = %v, want %v", tt.role, tt.action, got, tt.want)
			}
		})
	}
}

// TestPolicyDominance checks that any capability granted to a role is also
// granted to every higher role.
func TestPolicyDominance(t *testing.T) {
	policy := DefaultPolicy()
	roles := []Role{Member, Admin, Owner}

	for action := range policy {
		for i, lower := range roles {
			if !policy.Allows(lower, action) {
				continue
			}
			for _, higher := range roles[i+1:] {
				if !policy.Allows(higher, action) {
					t.Errorf("action %v: allowed for %v but not for %v", action, lower, higher)
				}
			}
		}
	}
}

func TestPolicyUnknownActionDenied(t *testing.T) {
	policy := DefaultPolicy()
	const unknown = Action(9999)

	for _, r := range []Role{Member, Admin, Owner} {
		if policy.Allows(r, unknown) {
			t.Errorf("unknown action allowed for %v", r)
		}
	}
}

func TestAuthorityDefaultsToMember(t *testing.T) {
	authority := NewAuthority(NewMemoryStore(), nil)
	ctx := context.Background()

	if got := authority.RoleOf(ctx, "user-1", "room-1"); got != Member {
		t.Errorf("unassigned pair: expected member, got %v", got)
	}
	if authority.Can(ctx, "user-1", "room-1", ActionAdvancePhase) {
		t.Error("unassigned user should not advance phase")
	}
	if !authority.Can(ctx, "user-1", "room-1", ActionViewRoom) {
		t.Error("defensive default should still allow member-level view")
	}
}

func TestAuthoritySetRoleReplaces(t *testing.T) {
	authority := NewAuthority(NewMemoryStore(), nil)
	ctx := context.Background()

	if err := authority.SetRole(ctx, "user-1", "room-1", Admin); err != nil {
		t.Fatalf("SetRole failed: %v", err)
	}
	if got := authority.RoleOf(ctx, "user-1", "room-1"); got != Admin {
		t.Errorf("expected admin, got %v", got)
	}

	// Last write wins.
	if err := authority.SetRole(ctx, "user-1", "room-1", Owner); err != nil {
		t.Fatalf("SetRole failed: %v", err)
	}
	if got := authority.RoleOf(ctx, "user-1", "room-1"); got != Owner {
		t.Errorf("expected owner after replace, got %v", got)
	}

	// Other rooms are unaffected: one role per (user, room) pair.
	if got := authority.RoleOf(ctx, "user-1", "room-2"); got != Member {
		t.Errorf("other room should default to member, got %v", got)
	}
}

type failingStore struct{}

func (failingStore) RoleOf(context.Context, string, string) (Role, bool, error) {
	return Owner, true, errors.New("store unavailable")
}

func (failingStore) SetRole(context.Context, string, string, Role) error {
	return errors.New("store unavailable")
}

func TestAuthorityStoreFailureFallsBackToMember(t *testing.T) {
	authority := NewAuthority(failingStore{}, nil)
	ctx := context.Background()

	if got := authority.RoleOf(ctx, "user-1", "room-1"); got != Member {
		t.Errorf("store failure should resolve to member, got %v", got)
	}
	if authority.Can(ctx, "user-1", "room-1", ActionDeleteRoom) {
		t.Error("store failure must not grant elevated capability")
	}
	if err := authority.SetRole(ctx, "user-1", "room-1", Admin); err == nil {
		t.Error("expected SetRole to surface the store error")
	}
}

func TestAuthorityCustomPolicy(t *testing.T) {
	// Tightened policy: even voting requires admin.
	policy := Policy{
		ActionViewRoom: Member,
		ActionVote:     Admin,
	}
	authority := NewAuthority(NewMemoryStore(), policy)
	ctx := context.Background()

	if err := authority.SetRole(ctx, "user-1", "room-1", Member); err != nil {
		t.Fatalf("SetRole failed: %v", err)
	}
	if authority.Can(ctx, "user-1", "room-1", ActionVote) {
		t.Error("custom policy should deny voting to members")
	}
	if authority.Can(ctx, "user-1", "room-1", ActionAdvancePhase) {
		t.Error("actions absent from the policy should be denied")
	}
}
