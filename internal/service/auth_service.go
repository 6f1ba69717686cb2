package service

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/planora/planora/internal/auth"
	"github.com/planora/planora/internal/fielderrors"
	"github.com/planora/planora/internal/invite"
	"github.com/planora/planora/internal/middleware"
	"github.com/planora/planora/internal/models"
	"github.com/planora/planora/internal/role"
	"github.com/planora/planora/internal/storage"
)

// AuthService handles registration, login and the current-user endpoint.
// After a successful authentication it consumes any invite code the
// client staged before the auth detour.
type AuthService struct {
	authenticator auth.Authenticator
	jwtManager    *auth.JWTManager
	store         storage.Store
	pending       *invite.PendingStore
	logger        *slog.Logger
}

// NewAuthService creates a new authentication service.
func NewAuthService(authenticator auth.Authenticator, jwtManager *auth.JWTManager, store storage.Store, pending *invite.PendingStore, logger *slog.Logger) *AuthService {
	return &AuthService{
		authenticator: authenticator,
		jwtManager:    jwtManager,
		store:         store,
		pending:       pending,
		logger:        logger,
	}
}

// Routes mounts the public auth endpoints. Me requires authentication
// and is mounted by the caller behind RequireAuth.
func (s *AuthService) Routes(r chi.Router) {
	r.Post("/auth/register", s.Register)
	r.Post("/auth/login", s.Login)
	r.Post("/auth/logout", s.Logout)
}

type userDTO struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatarUrl,omitempty"`
	CreatedAt int64  `json:"createdAt"`
}

func toUserDTO(u *models.User) userDTO {
	return userDTO{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		AvatarURL: u.AvatarURL,
		CreatedAt: u.CreatedAt,
	}
}

type sessionResponse struct {
	User  userDTO `json:"user"`
	Token string  `json:"token"`

	// JoinedRoomID is set when a staged invite was consumed during this
	// authentication, so the client can navigate straight to the room.
	JoinedRoomID string `json:"joinedRoomId,omitempty"`
}

type registerRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

// Register creates a new user account.
func (s *AuthService) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeBody(w, r, &req) {
		return
	}

	var items []fielderrors.Item
	if req.Email == "" {
		items = append(items, fieldError("email", "Field required"))
	}
	if req.Name == "" {
		items = append(items, fieldError("name", "Field required"))
	}
	if req.Password == "" {
		items = append(items, fieldError("password", "Field required"))
	}
	if len(items) > 0 {
		writeFieldErrors(w, items)
		return
	}

	user, err := s.authenticator.Register(r.Context(), req.Email, req.Name, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrEmailExists):
			writeFieldErrors(w, []fielderrors.Item{fieldError("email", err.Error())})
		case errors.Is(err, auth.ErrWeakPassword):
			writeFieldErrors(w, []fielderrors.Item{fieldError("password", err.Error())})
		default:
			s.logger.Error("registration failed", "email", req.Email, "error", err)
			writeError(w, http.StatusInternalServerError, "internal", "Registration failed")
		}
		return
	}

	token, err := s.jwtManager.Generate(user)
	if err != nil {
		s.logger.Error("failed to generate token", "user_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal", "Registration failed")
		return
	}

	joinedRoomID := s.consumePendingInvite(r.Context(), user.ID)
	s.logger.Info("user registered", "user_id", user.ID, "email", user.Email)
	writeJSON(w, http.StatusCreated, sessionResponse{
		User:         toUserDTO(user),
		Token:        token,
		JoinedRoomID: joinedRoomID,
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login authenticates a user and returns a JWT token.
func (s *AuthService) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusUnauthorized, "unauthenticated", auth.ErrInvalidCredentials.Error())
		return
	}

	user, err := s.authenticator.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		s.logger.Warn("login failed", "email", req.Email)
		writeError(w, http.StatusUnauthorized, "unauthenticated", auth.ErrInvalidCredentials.Error())
		return
	}

	token, err := s.jwtManager.Generate(user)
	if err != nil {
		s.logger.Error("failed to generate token", "user_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal", "Login failed")
		return
	}

	joinedRoomID := s.consumePendingInvite(r.Context(), user.ID)
	s.logger.Info("user logged in", "user_id", user.ID)
	writeJSON(w, http.StatusOK, sessionResponse{
		User:         toUserDTO(user),
		Token:        token,
		JoinedRoomID: joinedRoomID,
	})
}

// Logout is a no-op with stateless JWTs; the client discards the token.
func (s *AuthService) Logout(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNoContent, nil)
}

// Me returns the authenticated user's full profile.
func (s *AuthService) Me(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	user, err := s.store.GetUserByID(r.Context(), userID)
	if err != nil {
		s.logger.Error("failed to load user", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal", "Internal server error")
		return
	}
	if user == nil {
		writeError(w, http.StatusUnauthorized, "unauthenticated", auth.ErrInvalidToken.Error())
		return
	}
	writeJSON(w, http.StatusOK, toUserDTO(user))
}

// consumePendingInvite joins the user to the room named by their staged
// invite code, if any. The slot is cleared only after a successful join
// (or when the user was already a member); a failed join leaves it
// intact for a retry. Returns the joined room ID, or empty.
func (s *AuthService) consumePendingInvite(ctx context.Context, userID string) string {
	clientID := middleware.GetClientID(ctx)
	if clientID == "" {
		return ""
	}
	code, ok, err := s.pending.Pending(ctx, clientID)
	if err != nil || !ok {
		return ""
	}

	room, err := s.store.GetRoomByInviteCode(ctx, code)
	if err != nil {
		s.logger.Warn("staged invite did not resolve", "code", code, "error", err)
		return ""
	}

	err = s.store.AddMember(ctx, &models.RoomMember{
		RoomID: room.ID,
		UserID: userID,
		Role:   role.Member,
	})
	if err != nil && !errors.Is(err, storage.ErrDuplicate) {
		s.logger.Warn("failed to join via staged invite", "room_id", room.ID, "error", err)
		return ""
	}

	if err := s.pending.Clear(ctx, clientID); err != nil {
		s.logger.Warn("failed to clear pending invite", "client_id", clientID, "error", err)
	}
	s.logger.Info("staged invite consumed", "user_id", userID, "room_id", room.ID)
	return room.ID
}
