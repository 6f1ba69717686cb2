package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/planora/planora/internal/models"
	"github.com/planora/planora/internal/phase"
	"github.com/planora/planora/internal/storage"
)

const eventColumns = `id, short_code, room_id, name, description, phase,
	voting_deadline, budget_type, budget_amount, participant_count_estimate,
	chosen_suggestion_id, final_date_option_id, created_by, created_at, updated_at`

// CreateEvent persists a new event. ID, timestamps and the initial
// proposal phase are populated when unset.
func (s *SQLiteStore) CreateEvent(ctx context.Context, event *models.Event) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	now := time.Now().Unix()
	if event.CreatedAt == 0 {
		event.CreatedAt = now
	}
	if event.UpdatedAt == 0 {
		event.UpdatedAt = now
	}

	query := `
		INSERT INTO events (` + eventColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		event.ID,
		event.ShortCode,
		event.RoomID,
		event.Name,
		event.Description,
		event.Phase.String(),
		event.VotingDeadline,
		string(event.BudgetType),
		event.BudgetAmount,
		event.ParticipantCountEstimate,
		event.ChosenSuggestionID,
		event.FinalDateOptionID,
		event.CreatedBy,
		event.CreatedAt,
		event.UpdatedAt,
	)
	if err != nil {
		return wrapUnique(err, "event")
	}
	return nil
}

func scanEvent(scan func(dest ...any) error) (*models.Event, error) {
	event := &models.Event{}
	var phaseLabel, budgetLabel string
	err := scan(
		&event.ID,
		&event.ShortCode,
		&event.RoomID,
		&event.Name,
		&event.Description,
		&phaseLabel,
		&event.VotingDeadline,
		&budgetLabel,
		&event.BudgetAmount,
		&event.ParticipantCountEstimate,
		&event.ChosenSuggestionID,
		&event.FinalDateOptionID,
		&event.CreatedBy,
		&event.CreatedAt,
		&event.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p, err := phase.Parse(phaseLabel)
	if err != nil {
		return nil, fmt.Errorf("failed to parse stored phase: %w", err)
	}
	event.Phase = p
	bt, err := models.ParseBudgetType(budgetLabel)
	if err != nil {
		return nil, fmt.Errorf("failed to parse stored budget type: %w", err)
	}
	event.BudgetType = bt
	return event, nil
}

// GetEvent retrieves an event by ID.
func (s *SQLiteStore) GetEvent(ctx context.Context, eventID string) (*models.Event, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+eventColumns+" FROM events WHERE id = ?", eventID)
	event, err := scanEvent(row.Scan)
	if notFound(err) {
		return nil, fmt.Errorf("event %s: %w", eventID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	return event, nil
}

// ListEventsForRoom returns the room's events, newest first.
func (s *SQLiteStore) ListEventsForRoom(ctx context.Context, roomID string) ([]*models.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+eventColumns+" FROM events WHERE room_id = ? ORDER BY created_at DESC",
		roomID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var events []*models.Event
	for rows.Next() {
		event, err := scanEvent(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate events: %w", err)
	}
	return events, nil
}

// AdvanceEventPhase moves the event between phases with a
// compare-and-swap on the stored phase. When zero rows change, the
// error distinguishes a missing event from a lost race.
func (s *SQLiteStore) AdvanceEventPhase(ctx context.Context, eventID string, from, to phase.Phase) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE events SET phase = ?, updated_at = ? WHERE id = ? AND phase = ?",
		to.String(), time.Now().Unix(), eventID, from.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to advance phase: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check phase update: %w", err)
	}
	if affected == 0 {
		var exists int
		err := s.db.QueryRowContext(ctx,
			"SELECT 1 FROM events WHERE id = ?", eventID).Scan(&exists)
		if notFound(err) {
			return fmt.Errorf("event %s: %w", eventID, storage.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to check event existence: %w", err)
		}
		return fmt.Errorf("event %s: %w", eventID, storage.ErrStalePhase)
	}
	return nil
}

// SetChosenSuggestion records the winning activity suggestion.
func (s *SQLiteStore) SetChosenSuggestion(ctx context.Context, eventID, suggestionID string) error {
	return s.setEventRef(ctx, eventID, "chosen_suggestion_id", suggestionID)
}

// FinalizeEvent records the locked-in date option and moves the event
// from scheduling to info in one guarded update. A losing racer changes
// nothing: the final date only persists together with the winning swap.
func (s *SQLiteStore) FinalizeEvent(ctx context.Context, eventID, optionID string) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE events SET final_date_option_id = ?, phase = ?, updated_at = ? WHERE id = ? AND phase = ?",
		optionID, phase.Info.String(), time.Now().Unix(), eventID, phase.Scheduling.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to finalize event: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check finalize result: %w", err)
	}
	if affected == 0 {
		var exists int
		err := s.db.QueryRowContext(ctx,
			"SELECT 1 FROM events WHERE id = ?", eventID).Scan(&exists)
		if notFound(err) {
			return fmt.Errorf("event %s: %w", eventID, storage.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to check event existence: %w", err)
		}
		return fmt.Errorf("event %s: %w", eventID, storage.ErrStalePhase)
	}
	return nil
}

func (s *SQLiteStore) setEventRef(ctx context.Context, eventID, column, value string) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE events SET "+column+" = ?, updated_at = ? WHERE id = ?",
		value, time.Now().Unix(), eventID,
	)
	if err != nil {
		return fmt.Errorf("failed to update event: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("event %s: %w", eventID, storage.ErrNotFound)
	}
	return nil
}

// CreateSuggestion persists an activity suggestion.
func (s *SQLiteStore) CreateSuggestion(ctx context.Context, suggestion *models.ActivitySuggestion) error {
	if suggestion.ID == "" {
		suggestion.ID = uuid.New().String()
	}
	if suggestion.CreatedAt == 0 {
		suggestion.CreatedAt = time.Now().Unix()
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO suggestions (id, event_id, title, category, suggested_by, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		suggestion.ID, suggestion.EventID, suggestion.Title, suggestion.Category, suggestion.SuggestedBy, suggestion.CreatedAt,
	)
	if err != nil {
		return wrapUnique(err, "suggestion")
	}
	return nil
}

// ListSuggestions returns an event's suggestions, oldest first.
func (s *SQLiteStore) ListSuggestions(ctx context.Context, eventID string) ([]*models.ActivitySuggestion, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, event_id, title, category, suggested_by, created_at FROM suggestions WHERE event_id = ? ORDER BY created_at, id",
		eventID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list suggestions: %w", err)
	}
	defer rows.Close()

	var suggestions []*models.ActivitySuggestion
	for rows.Next() {
		sg := &models.ActivitySuggestion{}
		if err := rows.Scan(&sg.ID, &sg.EventID, &sg.Title, &sg.Category, &sg.SuggestedBy, &sg.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan suggestion: %w", err)
		}
		suggestions = append(suggestions, sg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate suggestions: %w", err)
	}
	return suggestions, nil
}

// UpsertVote records a member's vote, replacing any prior vote by the
// same member on the same suggestion.
func (s *SQLiteStore) UpsertVote(ctx context.Context, v *models.Vote) error {
	if v.VotedAt == 0 {
		v.VotedAt = time.Now().Unix()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO votes (event_id, suggestion_id, user_id, choice, voted_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (event_id, suggestion_id, user_id)
		DO UPDATE SET choice = excluded.choice, voted_at = excluded.voted_at`,
		v.EventID, v.SuggestionID, v.UserID, string(v.Choice), v.VotedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert vote: %w", err)
	}
	return nil
}

// ListVotes returns all votes for an event.
func (s *SQLiteStore) ListVotes(ctx context.Context, eventID string) ([]*models.Vote, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT event_id, suggestion_id, user_id, choice, voted_at FROM votes WHERE event_id = ?",
		eventID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list votes: %w", err)
	}
	defer rows.Close()

	var votes []*models.Vote
	for rows.Next() {
		v := &models.Vote{}
		var choiceLabel string
		if err := rows.Scan(&v.EventID, &v.SuggestionID, &v.UserID, &choiceLabel, &v.VotedAt); err != nil {
			return nil, fmt.Errorf("failed to scan vote: %w", err)
		}
		choice, err := models.ParseVoteChoice(choiceLabel)
		if err != nil {
			return nil, fmt.Errorf("failed to parse stored vote: %w", err)
		}
		v.Choice = choice
		votes = append(votes, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate votes: %w", err)
	}
	return votes, nil
}

// CreateDateOption persists a scheduling candidate.
func (s *SQLiteStore) CreateDateOption(ctx context.Context, opt *models.DateOption) error {
	if opt.ID == "" {
		opt.ID = uuid.New().String()
	}
	if opt.CreatedAt == 0 {
		opt.CreatedAt = time.Now().Unix()
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO date_options (id, event_id, date, start_time, end_time, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		opt.ID, opt.EventID, opt.Date, opt.StartTime, opt.EndTime, opt.CreatedAt,
	)
	if err != nil {
		return wrapUnique(err, "date option")
	}
	return nil
}

// GetDateOption retrieves one date option by ID.
func (s *SQLiteStore) GetDateOption(ctx context.Context, optionID string) (*models.DateOption, error) {
	opt := &models.DateOption{}
	err := s.db.QueryRowContext(ctx,
		"SELECT id, event_id, date, start_time, end_time, created_at FROM date_options WHERE id = ?",
		optionID,
	).Scan(&opt.ID, &opt.EventID, &opt.Date, &opt.StartTime, &opt.EndTime, &opt.CreatedAt)
	if notFound(err) {
		return nil, fmt.Errorf("date option %s: %w", optionID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get date option: %w", err)
	}
	return opt, nil
}

// ListDateOptions returns an event's date options ordered by date.
func (s *SQLiteStore) ListDateOptions(ctx context.Context, eventID string) ([]*models.DateOption, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, event_id, date, start_time, end_time, created_at FROM date_options WHERE event_id = ? ORDER BY date, start_time, id",
		eventID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list date options: %w", err)
	}
	defer rows.Close()

	var opts []*models.DateOption
	for rows.Next() {
		opt := &models.DateOption{}
		if err := rows.Scan(&opt.ID, &opt.EventID, &opt.Date, &opt.StartTime, &opt.EndTime, &opt.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan date option: %w", err)
		}
		opts = append(opts, opt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate date options: %w", err)
	}
	return opts, nil
}

// UpsertDateResponse records a member's availability, replacing any
// prior answer for the same option.
func (s *SQLiteStore) UpsertDateResponse(ctx context.Context, r *models.DateResponse) error {
	if r.RespondedAt == 0 {
		r.RespondedAt = time.Now().Unix()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO date_responses (option_id, user_id, answer, note, responded_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (option_id, user_id)
		DO UPDATE SET answer = excluded.answer, note = excluded.note, responded_at = excluded.responded_at`,
		r.OptionID, r.UserID, string(r.Answer), r.Note, r.RespondedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert date response: %w", err)
	}
	return nil
}

// ListDateResponses returns all responses across an event's options.
func (s *SQLiteStore) ListDateResponses(ctx context.Context, eventID string) ([]*models.DateResponse, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.option_id, r.user_id, r.answer, r.note, r.responded_at
		FROM date_responses r
		JOIN date_options o ON o.id = r.option_id
		WHERE o.event_id = ?`,
		eventID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list date responses: %w", err)
	}
	defer rows.Close()

	var responses []*models.DateResponse
	for rows.Next() {
		r := &models.DateResponse{}
		var answerLabel string
		if err := rows.Scan(&r.OptionID, &r.UserID, &answerLabel, &r.Note, &r.RespondedAt); err != nil {
			return nil, fmt.Errorf("failed to scan date response: %w", err)
		}
		answer, err := models.ParseDateAnswer(answerLabel)
		if err != nil {
			return nil, fmt.Errorf("failed to parse stored answer: %w", err)
		}
		r.Answer = answer
		responses = append(responses, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate date responses: %w", err)
	}
	return responses, nil
}
