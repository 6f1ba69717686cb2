package service

import (
	"errors"
	"net/http"

	"github.com/planora/planora/internal/auth"
	"github.com/planora/planora/internal/invite"
	"github.com/planora/planora/internal/middleware"
	"github.com/planora/planora/internal/notify"
	"github.com/planora/planora/internal/storage"
)

// errNotMember rejects a websocket subscription to a room the caller is
// not in.
var errNotMember = errors.New("not a member of the requested room")

// NewTopicResolver builds the TopicsFunc for the notification websocket.
// Browsers cannot set headers on websocket requests, so the session token
// rides in the "token" query parameter.
//
// Observable topics per connection:
//   - the caller's own pending-invite slot (cookie identity, no auth)
//   - each ?room= the authenticated caller is a member of
//   - each ?event= whose room the authenticated caller is a member of
func NewTopicResolver(store storage.Store, jwtManager *auth.JWTManager) notify.TopicsFunc {
	return func(r *http.Request) ([]string, error) {
		var topics []string

		if clientID := middleware.GetClientID(r.Context()); clientID != "" {
			topics = append(topics, invite.PendingTopic(clientID))
		}

		query := r.URL.Query()
		rooms := query["room"]
		events := query["event"]
		if len(rooms) == 0 && len(events) == 0 {
			return topics, nil
		}

		claims, err := jwtManager.Validate(query.Get("token"))
		if err != nil {
			return nil, err
		}

		member := func(roomID string) error {
			_, ok, err := store.RoleOf(r.Context(), claims.UserID, roomID)
			if err != nil {
				return err
			}
			if !ok {
				return errNotMember
			}
			return nil
		}

		for _, roomID := range rooms {
			if err := member(roomID); err != nil {
				return nil, err
			}
			topics = append(topics, RoomTopic(roomID))
		}
		for _, eventID := range events {
			event, err := store.GetEvent(r.Context(), eventID)
			if err != nil {
				return nil, err
			}
			if err := member(event.RoomID); err != nil {
				return nil, err
			}
			topics = append(topics, EventTopic(eventID))
		}
		return topics, nil
	}
}
