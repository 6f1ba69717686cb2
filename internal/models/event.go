package models

import (
	"errors"
	"fmt"
	"strings"

	"github.com/planora/planora/internal/phase"
)

// BudgetType distinguishes a total event budget from a per-person one.
type BudgetType string

const (
	// BudgetTotal means BudgetAmount covers the whole event.
	BudgetTotal BudgetType = "total"
	// BudgetPerPerson means BudgetAmount is per participant.
	BudgetPerPerson BudgetType = "per_person"
)

// ErrInvalidBudgetType indicates an unrecognized budget type label.
var ErrInvalidBudgetType = errors.New("unknown budget type")

// ParseBudgetType validates a budget type label. Empty is allowed: the
// budget is optional on an event.
func ParseBudgetType(label string) (BudgetType, error) {
	switch strings.TrimSpace(label) {
	case "":
		return "", nil
	case string(BudgetTotal):
		return BudgetTotal, nil
	case string(BudgetPerPerson):
		return BudgetPerPerson, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidBudgetType, label)
	}
}

// Event represents a single planning effort inside a room. It owns
// exactly one Phase, mutated only through the validated transition.
type Event struct {
	// ID is the unique identifier for the event (UUID format).
	ID string

	// ShortCode is the shareable code for the event (XXX-XXX-XXX, unique).
	ShortCode string

	// RoomID is the room this event belongs to.
	RoomID string

	// Name is the display name of the event.
	Name string

	// Description is an optional free-text description.
	Description string

	// Phase is the event's current workflow phase.
	Phase phase.Phase

	// VotingDeadline is an optional Unix timestamp after which the
	// voting phase should be closed. Zero means no deadline.
	VotingDeadline int64

	// BudgetType and BudgetAmount describe the optional budget.
	BudgetType   BudgetType
	BudgetAmount float64

	// ParticipantCountEstimate is the organizer's expected headcount.
	ParticipantCountEstimate int

	// ChosenSuggestionID is the winning activity suggestion, set when
	// voting concludes. Empty until then.
	ChosenSuggestionID string

	// FinalDateOptionID is the locked-in date, set by finalize. Empty
	// until then.
	FinalDateOptionID string

	// CreatedBy is the user ID of the event creator.
	CreatedBy string

	// CreatedAt and UpdatedAt are Unix timestamps.
	CreatedAt int64
	UpdatedAt int64
}

// ActivitySuggestion is an activity proposed for an event during the
// proposal phase.
type ActivitySuggestion struct {
	// ID is the unique identifier for the suggestion (UUID format).
	ID string

	// EventID is the event this suggestion belongs to.
	EventID string

	// Title is the proposed activity.
	Title string

	// Category is an optional free-form category tag.
	Category string

	// SuggestedBy is the user ID of the proposer.
	SuggestedBy string

	// CreatedAt is the Unix timestamp when the suggestion was made.
	CreatedAt int64
}

// VoteChoice is a member's stance on a suggestion.
type VoteChoice string

const (
	// VoteFor supports the suggestion.
	VoteFor VoteChoice = "for"
	// VoteAgainst opposes the suggestion.
	VoteAgainst VoteChoice = "against"
	// VoteAbstain records participation without a stance.
	VoteAbstain VoteChoice = "abstain"
)

// ErrInvalidVoteChoice indicates an unrecognized vote label.
var ErrInvalidVoteChoice = errors.New("unknown vote choice")

// ParseVoteChoice validates a vote label.
func ParseVoteChoice(label string) (VoteChoice, error) {
	switch strings.TrimSpace(label) {
	case string(VoteFor):
		return VoteFor, nil
	case string(VoteAgainst):
		return VoteAgainst, nil
	case string(VoteAbstain):
		return VoteAbstain, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidVoteChoice, label)
	}
}

// Vote is one member's vote on one suggestion. A member re-voting
// replaces their prior choice.
type Vote struct {
	EventID      string
	SuggestionID string
	UserID       string
	Choice       VoteChoice

	// VotedAt is the Unix timestamp of the (latest) vote.
	VotedAt int64
}

// DateOption is a candidate date for the event, collected during the
// scheduling phase.
type DateOption struct {
	// ID is the unique identifier for the option (UUID format).
	ID string

	// EventID is the event this option belongs to.
	EventID string

	// Date is the calendar day in YYYY-MM-DD form.
	Date string

	// StartTime and EndTime are optional HH:MM bounds.
	StartTime string
	EndTime   string

	// CreatedAt is the Unix timestamp when the option was added.
	CreatedAt int64
}

// DateAnswer is a member's availability for a date option.
type DateAnswer string

const (
	// AnswerYes means the member can attend.
	AnswerYes DateAnswer = "yes"
	// AnswerNo means the member cannot attend.
	AnswerNo DateAnswer = "no"
	// AnswerMaybe means the member is unsure.
	AnswerMaybe DateAnswer = "maybe"
)

// ErrInvalidDateAnswer indicates an unrecognized availability label.
var ErrInvalidDateAnswer = errors.New("unknown date answer")

// ParseDateAnswer validates an availability label.
func ParseDateAnswer(label string) (DateAnswer, error) {
	switch strings.TrimSpace(label) {
	case string(AnswerYes):
		return AnswerYes, nil
	case string(AnswerNo):
		return AnswerNo, nil
	case string(AnswerMaybe):
		return AnswerMaybe, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidDateAnswer, label)
	}
}

// DateResponse is one member's answer to one date option. Re-answering
// replaces the prior response.
type DateResponse struct {
	OptionID string
	UserID   string
	Answer   DateAnswer

	// Note is an optional comment ("only after 6pm").
	Note string

	// RespondedAt is the Unix timestamp of the (latest) answer.
	RespondedAt int64
}
