package service

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/planora/planora/internal/fielderrors"
	"github.com/planora/planora/internal/invite"
	"github.com/planora/planora/internal/middleware"
	"github.com/planora/planora/internal/models"
	"github.com/planora/planora/internal/notify"
	"github.com/planora/planora/internal/phase"
	"github.com/planora/planora/internal/role"
	"github.com/planora/planora/internal/storage"
	"github.com/planora/planora/internal/tally"
)

// shortCodeAttempts bounds retries on an event short-code collision.
const shortCodeAttempts = 5

// EventTopic is the notification topic for one event: phase changes,
// suggestions, votes, dates and responses all publish here.
func EventTopic(eventID string) string {
	return "event/" + eventID
}

// EventService handles the planning workflow: events, their phases,
// activity suggestions and voting, date options and finalization.
type EventService struct {
	guard
	broker *notify.Broker
	logger *slog.Logger

	// now is swappable for deadline tests.
	now func() time.Time
}

// NewEventService creates a new event service.
func NewEventService(store storage.Store, authority *role.Authority, broker *notify.Broker, logger *slog.Logger) *EventService {
	return &EventService{
		guard:  guard{store: store, authority: authority},
		broker: broker,
		logger: logger,
		now:    time.Now,
	}
}

// Routes mounts the authenticated event endpoints.
func (s *EventService) Routes(r chi.Router) {
	r.Post("/rooms/{roomID}/events", s.Create)
	r.Get("/rooms/{roomID}/events", s.List)
	r.Get("/events/{eventID}", s.Get)
	r.Post("/events/{eventID}/advance", s.Advance)
	r.Post("/events/{eventID}/suggestions", s.AddSuggestion)
	r.Get("/events/{eventID}/suggestions", s.ListSuggestions)
	r.Put("/events/{eventID}/suggestions/{suggestionID}/vote", s.Vote)
	r.Post("/events/{eventID}/dates", s.AddDateOption)
	r.Get("/events/{eventID}/dates", s.ListDateOptions)
	r.Put("/events/{eventID}/dates/{optionID}/response", s.RespondDate)
	r.Post("/events/{eventID}/finalize", s.Finalize)
}

type phaseStepDTO struct {
	Phase  string `json:"phase"`
	Status string `json:"status"`
}

type eventDTO struct {
	ID                       string         `json:"id"`
	ShortCode                string         `json:"shortCode"`
	RoomID                   string         `json:"roomId"`
	Name                     string         `json:"name"`
	Description              string         `json:"description,omitempty"`
	Phase                    string         `json:"phase"`
	Phases                   []phaseStepDTO `json:"phases"`
	VotingDeadline           int64          `json:"votingDeadline,omitempty"`
	BudgetType               string         `json:"budgetType,omitempty"`
	BudgetAmount             float64        `json:"budgetAmount,omitempty"`
	ParticipantCountEstimate int            `json:"participantCountEstimate,omitempty"`
	ChosenSuggestionID       string         `json:"chosenSuggestionId,omitempty"`
	FinalDateOptionID        string         `json:"finalDateOptionId,omitempty"`
	CreatedBy                string         `json:"createdBy"`
	CreatedAt                int64          `json:"createdAt"`
}

func toEventDTO(e *models.Event) eventDTO {
	steps := make([]phaseStepDTO, 0, len(phase.All()))
	for _, p := range phase.All() {
		steps = append(steps, phaseStepDTO{
			Phase:  p.String(),
			Status: phase.StatusOf(p, e.Phase).String(),
		})
	}
	return eventDTO{
		ID:                       e.ID,
		ShortCode:                e.ShortCode,
		RoomID:                   e.RoomID,
		Name:                     e.Name,
		Description:              e.Description,
		Phase:                    e.Phase.String(),
		Phases:                   steps,
		VotingDeadline:           e.VotingDeadline,
		BudgetType:               string(e.BudgetType),
		BudgetAmount:             e.BudgetAmount,
		ParticipantCountEstimate: e.ParticipantCountEstimate,
		ChosenSuggestionID:       e.ChosenSuggestionID,
		FinalDateOptionID:        e.FinalDateOptionID,
		CreatedBy:                e.CreatedBy,
		CreatedAt:                e.CreatedAt,
	}
}

type eventRequest struct {
	Name                     string  `json:"name"`
	Description              string  `json:"description"`
	VotingDeadline           int64   `json:"votingDeadline"`
	BudgetType               string  `json:"budgetType"`
	BudgetAmount             float64 `json:"budgetAmount"`
	ParticipantCountEstimate int     `json:"participantCountEstimate"`
}

// Create starts a new event in the room, in the proposal phase.
func (s *EventService) Create(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomID")
	if !s.require(w, r, roomID, role.ActionProposeActivity) {
		return
	}

	var req eventRequest
	if !decodeBody(w, r, &req) {
		return
	}

	var items []fielderrors.Item
	if req.Name == "" {
		items = append(items, fieldError("name", "Field required"))
	}
	budgetType, err := models.ParseBudgetType(req.BudgetType)
	if err != nil {
		items = append(items, fieldError("budget_type", "Invalid budget type"))
	}
	if budgetType != "" && req.BudgetAmount <= 0 {
		items = append(items, fieldError("budget_amount", "Must be greater than zero"))
	}
	if req.ParticipantCountEstimate < 0 {
		items = append(items, fieldError("participant_count_estimate", "Must not be negative"))
	}
	if len(items) > 0 {
		writeFieldErrors(w, items)
		return
	}

	event := &models.Event{
		RoomID:                   roomID,
		Name:                     req.Name,
		Description:              req.Description,
		VotingDeadline:           req.VotingDeadline,
		BudgetType:               budgetType,
		BudgetAmount:             req.BudgetAmount,
		ParticipantCountEstimate: req.ParticipantCountEstimate,
		CreatedBy:                middleware.GetUserID(r.Context()),
	}

	for attempt := 0; attempt < shortCodeAttempts; attempt++ {
		event.ShortCode = invite.Generate()
		err = s.store.CreateEvent(r.Context(), event)
		if !errors.Is(err, storage.ErrDuplicate) {
			break
		}
	}
	if err != nil {
		writeStorageError(w, err)
		return
	}

	s.broker.Publish(RoomTopic(roomID))
	s.logger.Info("event created", "event_id", event.ID, "room_id", roomID)
	writeJSON(w, http.StatusCreated, toEventDTO(event))
}

// List returns the room's events.
func (s *EventService) List(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomID")
	if !s.require(w, r, roomID, role.ActionViewRoom) {
		return
	}
	events, err := s.store.ListEventsForRoom(r.Context(), roomID)
	if err != nil {
		writeStorageError(w, err)
		return
	}
	dtos := make([]eventDTO, 0, len(events))
	for _, e := range events {
		dtos = append(dtos, toEventDTO(e))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// Get returns one event with its phase progress.
func (s *EventService) Get(w http.ResponseWriter, r *http.Request) {
	event, ok := s.loadEvent(w, r, role.ActionViewRoom)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toEventDTO(event))
}

type advanceRequest struct {
	From string `json:"from"`
}

// Advance moves the event one phase forward. The request names the phase
// the caller believes the event is in; a mismatch with the stored phase
// is a conflict, not an error, and the caller reloads.
func (s *EventService) Advance(w http.ResponseWriter, r *http.Request) {
	event, ok := s.loadEvent(w, r, role.ActionAdvancePhase)
	if !ok {
		return
	}

	var req advanceRequest
	if !decodeBody(w, r, &req) {
		return
	}
	from, err := phase.Parse(req.From)
	if err != nil {
		writeFieldErrors(w, []fielderrors.Item{fieldError("from", "Unknown phase")})
		return
	}

	to, err := phase.Next(from)
	if err != nil {
		writeError(w, http.StatusConflict, "terminal_phase", "Event is already fully planned")
		return
	}

	if err := s.store.AdvanceEventPhase(r.Context(), event.ID, from, to); err != nil {
		writeStorageError(w, err)
		return
	}

	// Closing the voting phase records the winning suggestion. This runs
	// only after the swap succeeds, so a stale request cannot rewrite the
	// recorded winner; the vote set is frozen once the phase moves on.
	if from == phase.Voting {
		votes, err := s.store.ListVotes(r.Context(), event.ID)
		if err != nil {
			writeStorageError(w, err)
			return
		}
		if winner, ok := tally.Winner(derefVotes(votes)); ok {
			if err := s.store.SetChosenSuggestion(r.Context(), event.ID, winner); err != nil {
				writeStorageError(w, err)
				return
			}
			event.ChosenSuggestionID = winner
		}
	}

	s.broker.Publish(EventTopic(event.ID))
	s.broker.Publish(RoomTopic(event.RoomID))
	s.logger.Info("phase advanced", "event_id", event.ID, "from", from.String(), "to", to.String())

	event.Phase = to
	writeJSON(w, http.StatusOK, toEventDTO(event))
}

type suggestionRequest struct {
	Title    string `json:"title"`
	Category string `json:"category"`
}

type suggestionDTO struct {
	ID          string `json:"id"`
	EventID     string `json:"eventId"`
	Title       string `json:"title"`
	Category    string `json:"category,omitempty"`
	SuggestedBy string `json:"suggestedBy"`
	CreatedAt   int64  `json:"createdAt"`

	For     int `json:"for"`
	Against int `json:"against"`
	Abstain int `json:"abstain"`
	Score   int `json:"score"`
}

// AddSuggestion proposes an activity. Proposal phase only.
func (s *EventService) AddSuggestion(w http.ResponseWriter, r *http.Request) {
	event, ok := s.loadEvent(w, r, role.ActionProposeActivity)
	if !ok {
		return
	}
	if !s.inPhase(w, event, phase.Proposal) {
		return
	}

	var req suggestionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Title == "" {
		writeFieldErrors(w, []fielderrors.Item{fieldError("title", "Field required")})
		return
	}

	suggestion := &models.ActivitySuggestion{
		EventID:     event.ID,
		Title:       req.Title,
		Category:    req.Category,
		SuggestedBy: middleware.GetUserID(r.Context()),
	}
	if err := s.store.CreateSuggestion(r.Context(), suggestion); err != nil {
		writeStorageError(w, err)
		return
	}

	s.broker.Publish(EventTopic(event.ID))
	writeJSON(w, http.StatusCreated, suggestionDTO{
		ID:          suggestion.ID,
		EventID:     suggestion.EventID,
		Title:       suggestion.Title,
		Category:    suggestion.Category,
		SuggestedBy: suggestion.SuggestedBy,
		CreatedAt:   suggestion.CreatedAt,
	})
}

// ListSuggestions returns the event's suggestions with their live tallies.
func (s *EventService) ListSuggestions(w http.ResponseWriter, r *http.Request) {
	event, ok := s.loadEvent(w, r, role.ActionViewRoom)
	if !ok {
		return
	}

	suggestions, err := s.store.ListSuggestions(r.Context(), event.ID)
	if err != nil {
		writeStorageError(w, err)
		return
	}
	votes, err := s.store.ListVotes(r.Context(), event.ID)
	if err != nil {
		writeStorageError(w, err)
		return
	}

	byID := make(map[string]tally.SuggestionTally)
	for _, t := range tally.CountVotes(derefVotes(votes)) {
		byID[t.SuggestionID] = t
	}

	dtos := make([]suggestionDTO, 0, len(suggestions))
	for _, sg := range suggestions {
		t := byID[sg.ID]
		dtos = append(dtos, suggestionDTO{
			ID:          sg.ID,
			EventID:     sg.EventID,
			Title:       sg.Title,
			Category:    sg.Category,
			SuggestedBy: sg.SuggestedBy,
			CreatedAt:   sg.CreatedAt,
			For:         t.For,
			Against:     t.Against,
			Abstain:     t.Abstain,
			Score:       t.Score,
		})
	}
	writeJSON(w, http.StatusOK, dtos)
}

type voteRequest struct {
	Choice string `json:"choice"`
}

// Vote records the caller's stance on a suggestion, replacing any prior
// vote. Voting phase only, and only before the voting deadline.
func (s *EventService) Vote(w http.ResponseWriter, r *http.Request) {
	event, ok := s.loadEvent(w, r, role.ActionVote)
	if !ok {
		return
	}
	if !s.inPhase(w, event, phase.Voting) {
		return
	}
	if event.VotingDeadline != 0 && s.now().Unix() > event.VotingDeadline {
		writeError(w, http.StatusConflict, "voting_closed", "The voting deadline has passed")
		return
	}

	var req voteRequest
	if !decodeBody(w, r, &req) {
		return
	}
	choice, err := models.ParseVoteChoice(req.Choice)
	if err != nil {
		writeFieldErrors(w, []fielderrors.Item{fieldError("choice", "Unknown vote choice")})
		return
	}

	suggestionID := chi.URLParam(r, "suggestionID")
	suggestions, err := s.store.ListSuggestions(r.Context(), event.ID)
	if err != nil {
		writeStorageError(w, err)
		return
	}
	known := false
	for _, sg := range suggestions {
		if sg.ID == suggestionID {
			known = true
			break
		}
	}
	if !known {
		writeError(w, http.StatusNotFound, "not_found", "Resource not found")
		return
	}

	err = s.store.UpsertVote(r.Context(), &models.Vote{
		EventID:      event.ID,
		SuggestionID: suggestionID,
		UserID:       middleware.GetUserID(r.Context()),
		Choice:       choice,
	})
	if err != nil {
		writeStorageError(w, err)
		return
	}

	s.broker.Publish(EventTopic(event.ID))
	writeJSON(w, http.StatusNoContent, nil)
}

type dateOptionRequest struct {
	Date      string `json:"date"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
}

type dateOptionDTO struct {
	ID        string `json:"id"`
	EventID   string `json:"eventId"`
	Date      string `json:"date"`
	StartTime string `json:"startTime,omitempty"`
	EndTime   string `json:"endTime,omitempty"`
	CreatedAt int64  `json:"createdAt"`

	Yes   int     `json:"yes"`
	Maybe int     `json:"maybe"`
	No    int     `json:"no"`
	Score float64 `json:"score"`
}

// AddDateOption adds a candidate date. Scheduling phase only.
func (s *EventService) AddDateOption(w http.ResponseWriter, r *http.Request) {
	event, ok := s.loadEvent(w, r, role.ActionManageDates)
	if !ok {
		return
	}
	if !s.inPhase(w, event, phase.Scheduling) {
		return
	}

	var req dateOptionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if _, err := time.Parse("2006-01-02", req.Date); err != nil {
		writeFieldErrors(w, []fielderrors.Item{fieldError("date", "Must be a YYYY-MM-DD date")})
		return
	}

	opt := &models.DateOption{
		EventID:   event.ID,
		Date:      req.Date,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
	}
	if err := s.store.CreateDateOption(r.Context(), opt); err != nil {
		writeStorageError(w, err)
		return
	}

	s.broker.Publish(EventTopic(event.ID))
	writeJSON(w, http.StatusCreated, dateOptionDTO{
		ID:        opt.ID,
		EventID:   opt.EventID,
		Date:      opt.Date,
		StartTime: opt.StartTime,
		EndTime:   opt.EndTime,
		CreatedAt: opt.CreatedAt,
	})
}

// ListDateOptions returns the event's date options with their live scores.
func (s *EventService) ListDateOptions(w http.ResponseWriter, r *http.Request) {
	event, ok := s.loadEvent(w, r, role.ActionViewRoom)
	if !ok {
		return
	}

	opts, err := s.store.ListDateOptions(r.Context(), event.ID)
	if err != nil {
		writeStorageError(w, err)
		return
	}
	responses, err := s.store.ListDateResponses(r.Context(), event.ID)
	if err != nil {
		writeStorageError(w, err)
		return
	}

	byID := make(map[string]tally.DateScore)
	for _, sc := range tally.ScoreDates(derefResponses(responses)) {
		byID[sc.OptionID] = sc
	}

	dtos := make([]dateOptionDTO, 0, len(opts))
	for _, opt := range opts {
		sc := byID[opt.ID]
		dtos = append(dtos, dateOptionDTO{
			ID:        opt.ID,
			EventID:   opt.EventID,
			Date:      opt.Date,
			StartTime: opt.StartTime,
			EndTime:   opt.EndTime,
			CreatedAt: opt.CreatedAt,
			Yes:       sc.Yes,
			Maybe:     sc.Maybe,
			No:        sc.No,
			Score:     sc.Score,
		})
	}
	writeJSON(w, http.StatusOK, dtos)
}

type dateResponseRequest struct {
	Answer string `json:"answer"`
	Note   string `json:"note"`
}

// RespondDate records the caller's availability for a date option,
// replacing any prior answer. Scheduling phase only.
func (s *EventService) RespondDate(w http.ResponseWriter, r *http.Request) {
	event, ok := s.loadEvent(w, r, role.ActionVote)
	if !ok {
		return
	}
	if !s.inPhase(w, event, phase.Scheduling) {
		return
	}

	optionID := chi.URLParam(r, "optionID")
	opt, err := s.store.GetDateOption(r.Context(), optionID)
	if err != nil {
		writeStorageError(w, err)
		return
	}
	if opt.EventID != event.ID {
		writeError(w, http.StatusNotFound, "not_found", "Resource not found")
		return
	}

	var req dateResponseRequest
	if !decodeBody(w, r, &req) {
		return
	}
	answer, err := models.ParseDateAnswer(req.Answer)
	if err != nil {
		writeFieldErrors(w, []fielderrors.Item{fieldError("answer", "Unknown answer")})
		return
	}

	err = s.store.UpsertDateResponse(r.Context(), &models.DateResponse{
		OptionID: optionID,
		UserID:   middleware.GetUserID(r.Context()),
		Answer:   answer,
		Note:     req.Note,
	})
	if err != nil {
		writeStorageError(w, err)
		return
	}

	s.broker.Publish(EventTopic(event.ID))
	writeJSON(w, http.StatusNoContent, nil)
}

type finalizeRequest struct {
	// OptionID pins the final date explicitly. Empty picks the
	// best-scoring option from the availability responses.
	OptionID string `json:"optionId"`
}

// Finalize locks in the event's date and completes the planning: the
// event moves from scheduling to info.
func (s *EventService) Finalize(w http.ResponseWriter, r *http.Request) {
	event, ok := s.loadEvent(w, r, role.ActionFinalizeDate)
	if !ok {
		return
	}
	if !s.inPhase(w, event, phase.Scheduling) {
		return
	}

	var req finalizeRequest
	if !decodeBody(w, r, &req) {
		return
	}

	optionID := req.OptionID
	if optionID == "" {
		responses, err := s.store.ListDateResponses(r.Context(), event.ID)
		if err != nil {
			writeStorageError(w, err)
			return
		}
		best, ok := tally.BestDate(derefResponses(responses))
		if !ok {
			writeError(w, http.StatusConflict, "no_responses", "No availability responses to pick a date from")
			return
		}
		optionID = best
	} else {
		opt, err := s.store.GetDateOption(r.Context(), optionID)
		if err != nil {
			writeStorageError(w, err)
			return
		}
		if opt.EventID != event.ID {
			writeError(w, http.StatusNotFound, "not_found", "Resource not found")
			return
		}
	}

	if err := s.store.FinalizeEvent(r.Context(), event.ID, optionID); err != nil {
		writeStorageError(w, err)
		return
	}

	s.broker.Publish(EventTopic(event.ID))
	s.broker.Publish(RoomTopic(event.RoomID))
	s.logger.Info("event finalized", "event_id", event.ID, "option_id", optionID)

	event.Phase = phase.Info
	event.FinalDateOptionID = optionID
	writeJSON(w, http.StatusOK, toEventDTO(event))
}

// loadEvent resolves the event from the URL and checks the caller's
// capability in its room.
func (s *EventService) loadEvent(w http.ResponseWriter, r *http.Request, action role.Action) (*models.Event, bool) {
	event, err := s.store.GetEvent(r.Context(), chi.URLParam(r, "eventID"))
	if err != nil {
		writeStorageError(w, err)
		return nil, false
	}
	if !s.require(w, r, event.RoomID, action) {
		return nil, false
	}
	return event, true
}

// inPhase writes a conflict when the event is not in the phase the
// operation belongs to.
func (s *EventService) inPhase(w http.ResponseWriter, event *models.Event, want phase.Phase) bool {
	if event.Phase != want {
		writeError(w, http.StatusConflict, "wrong_phase", "Event is in the "+event.Phase.String()+" phase")
		return false
	}
	return true
}

func derefVotes(votes []*models.Vote) []models.Vote {
	out := make([]models.Vote, 0, len(votes))
	for _, v := range votes {
		out = append(out, *v)
	}
	return out
}

func derefResponses(responses []*models.DateResponse) []models.DateResponse {
	out := make([]models.DateResponse, 0, len(responses))
	for _, r := range responses {
		out = append(out, *r)
	}
	return out
}
