package models

import "github.com/planora/planora/internal/role"

// Room represents a team workspace. Members join via the room's invite
// code; events are planned inside it.
type Room struct {
	// ID is the unique identifier for the room (UUID format).
	ID string

	// Name is the display name of the room.
	Name string

	// Description is an optional free-text description.
	Description string

	// AvatarURL is an optional room image URL.
	AvatarURL string

	// InviteCode is the shareable join code (XXX-XXX-XXX, unique).
	InviteCode string

	// CreatedBy is the user ID of the room creator (its initial owner).
	CreatedBy string

	// CreatedAt is the Unix timestamp when the room was created.
	CreatedAt int64

	// MemberCount is derived on read; not persisted.
	MemberCount int
}

// RoomMember is the membership of one user in one room. Exactly one role
// is attached to each (user, room) pair.
type RoomMember struct {
	// RoomID identifies the room.
	RoomID string

	// UserID identifies the member.
	UserID string

	// Role is the member's privilege level in this room.
	Role role.Role

	// JoinedAt is the Unix timestamp when the user joined.
	JoinedAt int64
}

// MemberInfo is a membership joined with the member's public user fields,
// as returned by the members listing.
type MemberInfo struct {
	UserID    string
	Name      string
	Email     string
	AvatarURL string
	Role      role.Role
	JoinedAt  int64
}
