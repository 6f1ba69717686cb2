// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"

	"github.com/planora/planora/internal/models"
	"github.com/planora/planora/internal/phase"
	"github.com/planora/planora/internal/role"
)

var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicate indicates a uniqueness violation (invite code, event
	// short code, or email already taken).
	ErrDuplicate = errors.New("already exists")

	// ErrStalePhase indicates a phase transition lost the race: the
	// event is no longer in the phase the caller read. The caller
	// should re-read and retry or give up.
	ErrStalePhase = errors.New("event phase changed concurrently")
)

// Store defines the persistence interface for the whole domain. The
// membership methods double as the role.Store port consumed by
// role.Authority.
type Store interface {
	// CreateUser persists a new user. Fails with ErrDuplicate when the
	// email is already registered.
	CreateUser(ctx context.Context, user *models.User) error

	// GetUserByEmail retrieves a user by email. Returns (nil, nil) when
	// no such user exists.
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)

	// GetUserByID retrieves a user by ID. Returns (nil, nil) when no
	// such user exists.
	GetUserByID(ctx context.Context, id string) (*models.User, error)

	// CreateRoom persists a new room and its creator's owner
	// membership atomically. ID and CreatedAt are populated when
	// unset. Fails with ErrDuplicate on an invite-code collision.
	CreateRoom(ctx context.Context, room *models.Room) error

	// GetRoom retrieves a room by ID, including its member count.
	GetRoom(ctx context.Context, roomID string) (*models.Room, error)

	// GetRoomByInviteCode resolves a canonical invite code to its room.
	GetRoomByInviteCode(ctx context.Context, code string) (*models.Room, error)

	// ListRoomsForUser returns the rooms the user is a member of.
	ListRoomsForUser(ctx context.Context, userID string) ([]*models.Room, error)

	// UpdateRoom updates name, description and avatar of a room.
	UpdateRoom(ctx context.Context, room *models.Room) error

	// DeleteRoom removes the room and everything under it.
	DeleteRoom(ctx context.Context, roomID string) error

	// AddMember inserts a membership. Adding an existing member is
	// ErrDuplicate; callers treat joins idempotently above this.
	AddMember(ctx context.Context, member *models.RoomMember) error

	// RemoveMember deletes the membership for the pair.
	RemoveMember(ctx context.Context, roomID, userID string) error

	// ListMembers returns the room's members joined with user info.
	ListMembers(ctx context.Context, roomID string) ([]*models.MemberInfo, error)

	// RoleOf and SetRole implement the role.Store port against the
	// membership table.
	RoleOf(ctx context.Context, userID, roomID string) (role.Role, bool, error)
	SetRole(ctx context.Context, userID, roomID string, r role.Role) error

	// CreateEvent persists a new event. ID, timestamps and the initial
	// proposal phase are populated when unset. Fails with ErrDuplicate
	// on a short-code collision.
	CreateEvent(ctx context.Context, event *models.Event) error

	// GetEvent retrieves an event by ID.
	GetEvent(ctx context.Context, eventID string) (*models.Event, error)

	// ListEventsForRoom returns the room's events, newest first.
	ListEventsForRoom(ctx context.Context, roomID string) ([]*models.Event, error)

	// AdvanceEventPhase moves the event from one phase to another with
	// a compare-and-swap on the stored phase: ErrStalePhase when the
	// event is no longer in from.
	AdvanceEventPhase(ctx context.Context, eventID string, from, to phase.Phase) error

	// SetChosenSuggestion records the winning activity suggestion.
	SetChosenSuggestion(ctx context.Context, eventID, suggestionID string) error

	// FinalizeEvent records the locked-in date option and advances the
	// event from scheduling to info atomically. A lost race is
	// ErrStalePhase and leaves the stored final date untouched.
	FinalizeEvent(ctx context.Context, eventID, optionID string) error

	// CreateSuggestion persists an activity suggestion.
	CreateSuggestion(ctx context.Context, s *models.ActivitySuggestion) error

	// ListSuggestions returns an event's suggestions, oldest first.
	ListSuggestions(ctx context.Context, eventID string) ([]*models.ActivitySuggestion, error)

	// UpsertVote records a member's vote, replacing any prior vote by
	// the same member on the same suggestion.
	UpsertVote(ctx context.Context, v *models.Vote) error

	// ListVotes returns all votes for an event.
	ListVotes(ctx context.Context, eventID string) ([]*models.Vote, error)

	// CreateDateOption persists a scheduling candidate.
	CreateDateOption(ctx context.Context, opt *models.DateOption) error

	// GetDateOption retrieves one date option by ID.
	GetDateOption(ctx context.Context, optionID string) (*models.DateOption, error)

	// ListDateOptions returns an event's date options, oldest first.
	ListDateOptions(ctx context.Context, eventID string) ([]*models.DateOption, error)

	// UpsertDateResponse records a member's availability, replacing any
	// prior answer for the same option.
	UpsertDateResponse(ctx context.Context, r *models.DateResponse) error

	// ListDateResponses returns all responses across an event's options.
	ListDateResponses(ctx context.Context, eventID string) ([]*models.DateResponse, error)

	// Close releases any resources held by the store.
	Close() error
}
