// Package role defines room membership roles and the capability policy
// that gates every privileged action.
//
// Roles form a strict privilege order: owner > admin > member. The policy
// is an allow-list keyed by the minimum role an action requires; callers
// ask Allows/Can and never compare roles directly, so the mapping can be
// refined without touching call sites.
package role

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidRole indicates an unrecognized role label at the parse boundary.
var ErrInvalidRole = errors.New("unknown room role")

// Role is a member's privilege level within a room.
type Role int

const (
	// Member is the least-privileged role and the defensive default for
	// any (user, room) pair without an explicit assignment.
	Member Role = iota
	// Admin can manage the planning workflow and room settings.
	Admin
	// Owner has every capability, including destructive ones.
	Owner
)

// Parse converts a role label to a Role. Labels are matched
// case-insensitively; anything unrecognized returns ErrInvalidRole.
func Parse(label string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "member":
		return Member, nil
	case "admin":
		return Admin, nil
	case "owner":
		return Owner, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidRole, label)
	}
}

// String returns the canonical lowercase label for the role.
func (r Role) String() string {
	switch r {
	case Member:
		return "member"
	case Admin:
		return "admin"
	case Owner:
		return "owner"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

// Action identifies a capability-gated operation.
type Action int

const (
	// ActionViewRoom allows reading a room and its events.
	ActionViewRoom Action = iota + 1
	// ActionProposeActivity allows suggesting activities during proposal.
	ActionProposeActivity
	// ActionVote allows voting on suggestions and answering date options.
	ActionVote
	// ActionManageDates allows adding date options during scheduling.
	ActionManageDates
	// ActionAdvancePhase allows moving an event to its next phase.
	ActionAdvancePhase
	// ActionEditRoom allows changing room name, description and avatar.
	ActionEditRoom
	// ActionFinalizeDate allows locking in the event's final date.
	ActionFinalizeDate
	// ActionDeleteRoom allows deleting the room.
	ActionDeleteRoom
	// ActionRemoveMember allows removing members and changing their roles.
	ActionRemoveMember
)

// Policy maps each action to the minimum role required to perform it.
// Higher roles inherit every capability granted below them.
type Policy map[Action]Role

// DefaultPolicy returns the standard capability table. The table is a
// value, not a constant: deployments may tighten or loosen individual
// actions before handing the policy to an Authority.
func DefaultPolicy() Policy {
	return Policy{
		ActionViewRoom:        Member,
		ActionProposeActivity: Member,
		ActionVote:            Member,
		ActionManageDates:     Member,
		ActionAdvancePhase:    Admin,
		ActionEditRoom:        Admin,
		ActionFinalizeDate:    Admin,
		ActionDeleteRoom:      Owner,
		ActionRemoveMember:    Owner,
	}
}

// Allows reports whether the role satisfies the minimum required for the
// action. Actions absent from the policy are denied.
func (p Policy) Allows(r Role, action Action) bool {
	min, ok := p[action]
	if !ok {
		return false
	}
	return r >= min
}
