package service_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/planora/planora/internal/auth"
	"github.com/planora/planora/internal/invite"
	"github.com/planora/planora/internal/kv"
	"github.com/planora/planora/internal/middleware"
	"github.com/planora/planora/internal/notify"
	"github.com/planora/planora/internal/role"
	"github.com/planora/planora/internal/service"
	"github.com/planora/planora/internal/storage/sqlite"
	"github.com/planora/planora/pkg/client"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	logger := slog.Default()
	broker := notify.NewBroker()
	pending := invite.NewPendingStore(kv.NewMemory(), broker)
	authority := role.NewAuthority(store, nil)
	jwtManager := auth.NewJWTManager("test-secret", time.Hour)
	authenticator := auth.NewPasswordAuthenticator(store)

	authService := service.NewAuthService(authenticator, jwtManager, store, pending, logger)
	roomService := service.NewRoomService(store, authority, pending, broker, logger)
	eventService := service.NewEventService(store, authority, broker, logger)

	r := chi.NewRouter()
	r.Use(middleware.ClientID)
	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			authService.Routes(r)
			roomService.PendingRoutes(r)
		})
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(jwtManager))
			r.Get("/auth/me", authService.Me)
			roomService.Routes(r)
			eventService.Routes(r)
		})
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

// doJSON issues a request with the client's token and decodes the response.
func doJSON(t *testing.T, token, method, url string, body, out any) int {
	t.Helper()

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response: %v", err)
	}
	if out != nil && len(raw) > 0 && resp.StatusCode < 300 {
		if err := json.Unmarshal(raw, out); err != nil {
			t.Fatalf("failed to decode response %q: %v", raw, err)
		}
	}
	return resp.StatusCode
}

func register(t *testing.T, srv *httptest.Server, email string) *client.Client {
	t.Helper()
	c := client.New(srv.URL)
	if _, err := c.Register(context.Background(), email, "Test User", "password123"); err != nil {
		t.Fatalf("failed to register %s: %v", email, err)
	}
	return c
}

func TestRegisterValidation(t *testing.T) {
	srv := newTestServer(t)
	c := client.New(srv.URL)

	_, err := c.Register(context.Background(), "", "", "pw")
	if err == nil {
		t.Fatal("expected registration to fail")
	}

	var apiErr *client.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %T", err)
	}
	if apiErr.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d", apiErr.StatusCode)
	}
	fields := apiErr.FieldErrors()
	if fields["email"] != "Field required" || fields["name"] != "Field required" {
		t.Errorf("unexpected field errors: %v", fields)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	srv := newTestServer(t)
	register(t, srv, "alice@example.com")

	c := client.New(srv.URL)
	_, err := c.Register(context.Background(), "alice@example.com", "Alice", "password123")
	var apiErr *client.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if fields := apiErr.FieldErrors(); fields["email"] == "" {
		t.Errorf("expected an email field error, got %v", fields)
	}
}

func TestLoginAndMe(t *testing.T) {
	srv := newTestServer(t)
	register(t, srv, "alice@example.com")

	c := client.New(srv.URL)
	session, err := c.Login(context.Background(), "alice@example.com", "password123")
	if err != nil {
		t.Fatalf("failed to log in: %v", err)
	}
	if session.Token == "" {
		t.Fatal("expected a session token")
	}

	me, err := c.Me(context.Background())
	if err != nil {
		t.Fatalf("failed to get current user: %v", err)
	}
	if me.Email != "alice@example.com" {
		t.Errorf("unexpected user: %+v", me)
	}

	_, err = c.Login(context.Background(), "alice@example.com", "wrong-password")
	var apiErr *client.APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401, got %v", err)
	}
}

func TestJoinByInviteCode(t *testing.T) {
	srv := newTestServer(t)
	owner := register(t, srv, "owner@example.com")
	room, err := owner.CreateRoom(context.Background(), "Crew", "")
	if err != nil {
		t.Fatalf("failed to create room: %v", err)
	}

	guest := register(t, srv, "guest@example.com")

	// Codes are normalized before lookup, so sloppy input joins fine.
	result, err := guest.Join(context.Background(), room.InviteCode)
	if err != nil {
		t.Fatalf("failed to join: %v", err)
	}
	if result.AlreadyMember {
		t.Error("first join should not report AlreadyMember")
	}

	result, err = guest.Join(context.Background(), room.InviteCode)
	if err != nil {
		t.Fatalf("re-join failed: %v", err)
	}
	if !result.AlreadyMember {
		t.Error("second join should report AlreadyMember")
	}

	_, err = guest.Join(context.Background(), "ZZZ-ZZZ-ZZZ")
	var apiErr *client.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if fields := apiErr.FieldErrors(); fields["inviteCode"] == "" {
		t.Errorf("expected inviteCode field error, got %v", fields)
	}
}

func TestPendingInviteSurvivesRegistration(t *testing.T) {
	srv := newTestServer(t)
	owner := register(t, srv, "owner@example.com")
	room, err := owner.CreateRoom(context.Background(), "Crew", "")
	if err != nil {
		t.Fatalf("failed to create room: %v", err)
	}

	// An anonymous visitor stages a sloppy code, then signs up.
	visitor := client.New(srv.URL)
	staged, err := visitor.StagePendingInvite(context.Background(), room.InviteCode)
	if err != nil {
		t.Fatalf("failed to stage invite: %v", err)
	}
	if staged != room.InviteCode {
		t.Errorf("expected canonical code %s, got %s", room.InviteCode, staged)
	}

	session, err := visitor.Register(context.Background(), "new@example.com", "Newcomer", "password123")
	if err != nil {
		t.Fatalf("failed to register: %v", err)
	}
	if session.JoinedRoomID != room.ID {
		t.Errorf("expected to join room %s during registration, got %q", room.ID, session.JoinedRoomID)
	}

	// The slot is consumed.
	code, err := visitor.PendingInvite(context.Background())
	if err != nil {
		t.Fatalf("failed to read pending invite: %v", err)
	}
	if code != "" {
		t.Errorf("expected empty slot after consumption, got %q", code)
	}

	rooms, err := visitor.Rooms(context.Background())
	if err != nil {
		t.Fatalf("failed to list rooms: %v", err)
	}
	if len(rooms) != 1 || rooms[0].ID != room.ID {
		t.Errorf("expected membership in %s, got %+v", room.ID, rooms)
	}
}

func TestRoomAuthorization(t *testing.T) {
	srv := newTestServer(t)
	owner := register(t, srv, "owner@example.com")
	room, err := owner.CreateRoom(context.Background(), "Crew", "")
	if err != nil {
		t.Fatalf("failed to create room: %v", err)
	}

	member := register(t, srv, "member@example.com")
	if _, err := member.Join(context.Background(), room.InviteCode); err != nil {
		t.Fatalf("failed to join: %v", err)
	}
	register(t, srv, "outsider@example.com")

	memberSession, _ := member.Me(context.Background())
	ownerToken := sessionToken(t, srv, "owner@example.com")
	memberToken := sessionToken(t, srv, "member@example.com")
	outsiderToken := sessionToken(t, srv, "outsider@example.com")

	roomURL := srv.URL + "/api/rooms/" + room.ID

	t.Run("outsider cannot view", func(t *testing.T) {
		if status := doJSON(t, outsiderToken, http.MethodGet, roomURL, nil, nil); status != http.StatusForbidden {
			t.Errorf("expected 403, got %d", status)
		}
	})

	t.Run("member cannot edit", func(t *testing.T) {
		body := map[string]string{"name": "Renamed"}
		if status := doJSON(t, memberToken, http.MethodPatch, roomURL, body, nil); status != http.StatusForbidden {
			t.Errorf("expected 403, got %d", status)
		}
	})

	t.Run("owner promotes member to admin", func(t *testing.T) {
		url := roomURL + "/members/" + memberSession.ID + "/role"
		body := map[string]string{"role": "admin"}
		if status := doJSON(t, ownerToken, http.MethodPut, url, body, nil); status != http.StatusNoContent {
			t.Errorf("expected 204, got %d", status)
		}

		// The freshly promoted admin can now edit the room.
		edit := map[string]string{"name": "Renamed"}
		if status := doJSON(t, memberToken, http.MethodPatch, roomURL, edit, nil); status != http.StatusOK {
			t.Errorf("expected 200 after promotion, got %d", status)
		}
	})

	t.Run("admin cannot delete the room", func(t *testing.T) {
		if status := doJSON(t, memberToken, http.MethodDelete, roomURL, nil, nil); status != http.StatusForbidden {
			t.Errorf("expected 403, got %d", status)
		}
	})

	t.Run("owner cannot leave", func(t *testing.T) {
		if status := doJSON(t, ownerToken, http.MethodPost, roomURL+"/leave", nil, nil); status != http.StatusConflict {
			t.Errorf("expected 409, got %d", status)
		}
	})
}

func TestRoomUpdatePartial(t *testing.T) {
	srv := newTestServer(t)
	owner := register(t, srv, "owner@example.com")
	room, err := owner.CreateRoom(context.Background(), "Crew", "Friday planning")
	if err != nil {
		t.Fatalf("failed to create room: %v", err)
	}

	ownerToken := sessionToken(t, srv, "owner@example.com")
	roomURL := srv.URL + "/api/rooms/" + room.ID

	t.Run("omitted fields stay unchanged", func(t *testing.T) {
		var got client.Room
		status := doJSON(t, ownerToken, http.MethodPatch, roomURL,
			map[string]string{"name": "Renamed"}, &got)
		if status != http.StatusOK {
			t.Fatalf("expected 200, got %d", status)
		}
		if got.Name != "Renamed" || got.Description != "Friday planning" {
			t.Errorf("rename must not clear other fields, got %+v", got)
		}
	})

	t.Run("explicit empty description clears it", func(t *testing.T) {
		var got client.Room
		status := doJSON(t, ownerToken, http.MethodPatch, roomURL,
			map[string]string{"description": ""}, &got)
		if status != http.StatusOK {
			t.Fatalf("expected 200, got %d", status)
		}
		if got.Name != "Renamed" || got.Description != "" {
			t.Errorf("expected description cleared, got %+v", got)
		}
	})

	t.Run("empty name is a field error", func(t *testing.T) {
		status := doJSON(t, ownerToken, http.MethodPatch, roomURL,
			map[string]string{"name": ""}, nil)
		if status != http.StatusUnprocessableEntity {
			t.Errorf("expected 422, got %d", status)
		}
	})
}

// sessionToken logs in out-of-band to get a bearer token for doJSON.
func sessionToken(t *testing.T, srv *httptest.Server, email string) string {
	t.Helper()
	c := client.New(srv.URL)
	session, err := c.Login(context.Background(), email, "password123")
	if err != nil {
		t.Fatalf("failed to log in %s: %v", email, err)
	}
	return session.Token
}

type eventResponse struct {
	ID        string `json:"id"`
	Phase     string `json:"phase"`
	ShortCode string `json:"shortCode"`
	Phases    []struct {
		Phase  string `json:"phase"`
		Status string `json:"status"`
	} `json:"phases"`
	ChosenSuggestionID string `json:"chosenSuggestionId"`
	FinalDateOptionID  string `json:"finalDateOptionId"`
}

type suggestionResponse struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	For   int    `json:"for"`
	Score int    `json:"score"`
}

type dateOptionResponse struct {
	ID    string  `json:"id"`
	Date  string  `json:"date"`
	Yes   int     `json:"yes"`
	Score float64 `json:"score"`
}

func TestEventLifecycle(t *testing.T) {
	srv := newTestServer(t)
	owner := register(t, srv, "owner@example.com")
	room, err := owner.CreateRoom(context.Background(), "Crew", "")
	if err != nil {
		t.Fatalf("failed to create room: %v", err)
	}
	member := register(t, srv, "member@example.com")
	if _, err := member.Join(context.Background(), room.InviteCode); err != nil {
		t.Fatalf("failed to join: %v", err)
	}

	ownerToken := sessionToken(t, srv, "owner@example.com")
	memberToken := sessionToken(t, srv, "member@example.com")

	var event eventResponse
	status := doJSON(t, ownerToken, http.MethodPost, srv.URL+"/api/rooms/"+room.ID+"/events",
		map[string]any{"name": "Summer trip", "budgetType": "per_person", "budgetAmount": 50.0}, &event)
	if status != http.StatusCreated {
		t.Fatalf("expected 201, got %d", status)
	}
	if event.Phase != "proposal" {
		t.Fatalf("expected proposal phase, got %s", event.Phase)
	}
	if len(event.Phases) != 4 || event.Phases[0].Status != "current" || event.Phases[1].Status != "upcoming" {
		t.Errorf("unexpected phase progress: %+v", event.Phases)
	}

	eventURL := srv.URL + "/api/events/" + event.ID

	var bowling, hiking suggestionResponse
	for title, out := range map[string]*suggestionResponse{"Bowling": &bowling, "Hiking": &hiking} {
		status := doJSON(t, memberToken, http.MethodPost, eventURL+"/suggestions",
			map[string]string{"title": title}, out)
		if status != http.StatusCreated {
			t.Fatalf("expected 201 for suggestion, got %d", status)
		}
	}

	t.Run("voting is closed during proposal", func(t *testing.T) {
		status := doJSON(t, memberToken, http.MethodPut, eventURL+"/suggestions/"+bowling.ID+"/vote",
			map[string]string{"choice": "for"}, nil)
		if status != http.StatusConflict {
			t.Errorf("expected 409, got %d", status)
		}
	})

	t.Run("member cannot advance the phase", func(t *testing.T) {
		status := doJSON(t, memberToken, http.MethodPost, eventURL+"/advance",
			map[string]string{"from": "proposal"}, nil)
		if status != http.StatusForbidden {
			t.Errorf("expected 403, got %d", status)
		}
	})

	status = doJSON(t, ownerToken, http.MethodPost, eventURL+"/advance",
		map[string]string{"from": "proposal"}, &event)
	if status != http.StatusOK || event.Phase != "voting" {
		t.Fatalf("expected voting phase, got status %d phase %s", status, event.Phase)
	}

	t.Run("stale advance conflicts", func(t *testing.T) {
		status := doJSON(t, ownerToken, http.MethodPost, eventURL+"/advance",
			map[string]string{"from": "proposal"}, nil)
		if status != http.StatusConflict {
			t.Errorf("expected 409 for stale advance, got %d", status)
		}
	})

	// Bowling wins 2-0 over Hiking's 1.
	for _, vote := range []struct{ token, suggestion, choice string }{
		{ownerToken, bowling.ID, "for"},
		{memberToken, bowling.ID, "for"},
		{memberToken, hiking.ID, "for"},
	} {
		status := doJSON(t, vote.token, http.MethodPut, eventURL+"/suggestions/"+vote.suggestion+"/vote",
			map[string]string{"choice": vote.choice}, nil)
		if status != http.StatusNoContent {
			t.Fatalf("expected 204 for vote, got %d", status)
		}
	}

	var suggestions []suggestionResponse
	if status := doJSON(t, memberToken, http.MethodGet, eventURL+"/suggestions", nil, &suggestions); status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	for _, sg := range suggestions {
		if sg.ID == bowling.ID && sg.For != 2 {
			t.Errorf("expected 2 for-votes on bowling, got %d", sg.For)
		}
	}

	// Closing voting records the winner and reports it in the response.
	status = doJSON(t, ownerToken, http.MethodPost, eventURL+"/advance",
		map[string]string{"from": "voting"}, &event)
	if status != http.StatusOK || event.Phase != "scheduling" {
		t.Fatalf("expected scheduling phase, got status %d phase %s", status, event.Phase)
	}
	if event.ChosenSuggestionID != bowling.ID {
		t.Errorf("expected bowling to win, got %q", event.ChosenSuggestionID)
	}

	t.Run("stale voting close is side-effect-free", func(t *testing.T) {
		status := doJSON(t, ownerToken, http.MethodPost, eventURL+"/advance",
			map[string]string{"from": "voting"}, nil)
		if status != http.StatusConflict {
			t.Fatalf("expected 409 for stale close, got %d", status)
		}
		var got eventResponse
		if status := doJSON(t, ownerToken, http.MethodGet, eventURL, nil, &got); status != http.StatusOK {
			t.Fatalf("expected 200, got %d", status)
		}
		if got.Phase != "scheduling" || got.ChosenSuggestionID != bowling.ID {
			t.Errorf("stale close must not touch the event, got %+v", got)
		}
	})

	var saturday, sunday dateOptionResponse
	for date, out := range map[string]*dateOptionResponse{"2026-09-12": &saturday, "2026-09-13": &sunday} {
		status := doJSON(t, memberToken, http.MethodPost, eventURL+"/dates",
			map[string]string{"date": date}, out)
		if status != http.StatusCreated {
			t.Fatalf("expected 201 for date option, got %d", status)
		}
	}

	t.Run("malformed date is a field error", func(t *testing.T) {
		status := doJSON(t, memberToken, http.MethodPost, eventURL+"/dates",
			map[string]string{"date": "next friday"}, nil)
		if status != http.StatusUnprocessableEntity {
			t.Errorf("expected 422, got %d", status)
		}
	})

	// Saturday: two yes. Sunday: one maybe.
	for _, resp := range []struct{ token, option, answer string }{
		{ownerToken, saturday.ID, "yes"},
		{memberToken, saturday.ID, "yes"},
		{memberToken, sunday.ID, "maybe"},
	} {
		status := doJSON(t, resp.token, http.MethodPut, eventURL+"/dates/"+resp.option+"/response",
			map[string]string{"answer": resp.answer}, nil)
		if status != http.StatusNoContent {
			t.Fatalf("expected 204 for response, got %d", status)
		}
	}

	t.Run("member cannot finalize", func(t *testing.T) {
		status := doJSON(t, memberToken, http.MethodPost, eventURL+"/finalize", map[string]string{}, nil)
		if status != http.StatusForbidden {
			t.Errorf("expected 403, got %d", status)
		}
	})

	// Finalizing without an explicit option picks the best-scoring date.
	status = doJSON(t, ownerToken, http.MethodPost, eventURL+"/finalize", map[string]string{}, &event)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if event.Phase != "info" || event.FinalDateOptionID != saturday.ID {
		t.Errorf("expected info phase with saturday locked in, got %+v", event)
	}

	t.Run("terminal phase cannot advance", func(t *testing.T) {
		status := doJSON(t, ownerToken, http.MethodPost, eventURL+"/advance",
			map[string]string{"from": "info"}, nil)
		if status != http.StatusConflict {
			t.Errorf("expected 409, got %d", status)
		}
	})
}
