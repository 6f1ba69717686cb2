package service

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/planora/planora/internal/fielderrors"
	"github.com/planora/planora/internal/invite"
	"github.com/planora/planora/internal/middleware"
	"github.com/planora/planora/internal/models"
	"github.com/planora/planora/internal/notify"
	"github.com/planora/planora/internal/role"
	"github.com/planora/planora/internal/storage"
)

// inviteCodeAttempts bounds retries on an invite-code collision. With a
// 32-symbol alphabet and 9 symbols per code, collisions are rare enough
// that more than a handful of retries indicates a real problem.
const inviteCodeAttempts = 5

// RoomTopic is the notification topic for a room: membership, settings
// and event-list changes all publish here.
func RoomTopic(roomID string) string {
	return "room/" + roomID
}

// RoomService handles rooms, membership and invite joins.
type RoomService struct {
	guard
	pending *invite.PendingStore
	broker  *notify.Broker
	logger  *slog.Logger
}

// NewRoomService creates a new room service.
func NewRoomService(store storage.Store, authority *role.Authority, pending *invite.PendingStore, broker *notify.Broker, logger *slog.Logger) *RoomService {
	return &RoomService{
		guard:   guard{store: store, authority: authority},
		pending: pending,
		broker:  broker,
		logger:  logger,
	}
}

// Routes mounts the authenticated room endpoints.
func (s *RoomService) Routes(r chi.Router) {
	r.Post("/rooms", s.Create)
	r.Get("/rooms", s.List)
	r.Get("/rooms/{roomID}", s.Get)
	r.Patch("/rooms/{roomID}", s.Update)
	r.Delete("/rooms/{roomID}", s.Delete)
	r.Get("/rooms/{roomID}/members", s.ListMembers)
	r.Put("/rooms/{roomID}/members/{userID}/role", s.SetMemberRole)
	r.Delete("/rooms/{roomID}/members/{userID}", s.RemoveMember)
	r.Post("/rooms/{roomID}/leave", s.Leave)
	r.Post("/join", s.Join)
}

// PendingRoutes mounts the pending-invite slot endpoints. These are
// deliberately unauthenticated: the whole point of the slot is to hold a
// code for a visitor who has not logged in yet.
func (s *RoomService) PendingRoutes(r chi.Router) {
	r.Put("/pending-invite", s.StagePending)
	r.Get("/pending-invite", s.GetPending)
	r.Delete("/pending-invite", s.ClearPending)
}

type roomDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
	InviteCode  string `json:"inviteCode"`
	CreatedBy   string `json:"createdBy"`
	CreatedAt   int64  `json:"createdAt"`
	MemberCount int    `json:"memberCount"`
}

func toRoomDTO(room *models.Room) roomDTO {
	return roomDTO{
		ID:          room.ID,
		Name:        room.Name,
		Description: room.Description,
		AvatarURL:   room.AvatarURL,
		InviteCode:  room.InviteCode,
		CreatedBy:   room.CreatedBy,
		CreatedAt:   room.CreatedAt,
		MemberCount: room.MemberCount,
	}
}

type roomRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	AvatarURL   string `json:"avatarUrl"`
}

// Create makes a new room owned by the caller.
func (s *RoomService) Create(w http.ResponseWriter, r *http.Request) {
	var req roomRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Name == "" {
		writeFieldErrors(w, []fielderrors.Item{fieldError("name", "Field required")})
		return
	}

	userID := middleware.GetUserID(r.Context())
	room := &models.Room{
		Name:        req.Name,
		Description: req.Description,
		AvatarURL:   req.AvatarURL,
		CreatedBy:   userID,
	}

	var err error
	for attempt := 0; attempt < inviteCodeAttempts; attempt++ {
		room.InviteCode = invite.Generate()
		err = s.store.CreateRoom(r.Context(), room)
		if !errors.Is(err, storage.ErrDuplicate) {
			break
		}
	}
	if err != nil {
		writeStorageError(w, err)
		return
	}

	s.logger.Info("room created", "room_id", room.ID, "user_id", userID)
	writeJSON(w, http.StatusCreated, toRoomDTO(room))
}

// List returns the caller's rooms.
func (s *RoomService) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	rooms, err := s.store.ListRoomsForUser(r.Context(), userID)
	if err != nil {
		writeStorageError(w, err)
		return
	}
	dtos := make([]roomDTO, 0, len(rooms))
	for _, room := range rooms {
		dtos = append(dtos, toRoomDTO(room))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// Get returns one room. Visible to members only.
func (s *RoomService) Get(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomID")
	if !s.require(w, r, roomID, role.ActionViewRoom) {
		return
	}
	room, err := s.store.GetRoom(r.Context(), roomID)
	if err != nil {
		writeStorageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRoomDTO(room))
}

type roomUpdateRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	AvatarURL   *string `json:"avatarUrl"`
}

// Update changes the room's name, description and avatar. Fields absent
// from the request body are left unchanged.
func (s *RoomService) Update(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomID")
	if !s.require(w, r, roomID, role.ActionEditRoom) {
		return
	}

	var req roomUpdateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Name != nil && *req.Name == "" {
		writeFieldErrors(w, []fielderrors.Item{fieldError("name", "Field required")})
		return
	}

	room, err := s.store.GetRoom(r.Context(), roomID)
	if err != nil {
		writeStorageError(w, err)
		return
	}
	if req.Name != nil {
		room.Name = *req.Name
	}
	if req.Description != nil {
		room.Description = *req.Description
	}
	if req.AvatarURL != nil {
		room.AvatarURL = *req.AvatarURL
	}

	if err := s.store.UpdateRoom(r.Context(), room); err != nil {
		writeStorageError(w, err)
		return
	}

	s.broker.Publish(RoomTopic(roomID))
	writeJSON(w, http.StatusOK, toRoomDTO(room))
}

// Delete removes the room and everything in it. Owner only.
func (s *RoomService) Delete(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomID")
	if !s.require(w, r, roomID, role.ActionDeleteRoom) {
		return
	}
	if err := s.store.DeleteRoom(r.Context(), roomID); err != nil {
		writeStorageError(w, err)
		return
	}
	s.broker.Publish(RoomTopic(roomID))
	s.logger.Info("room deleted", "room_id", roomID, "user_id", middleware.GetUserID(r.Context()))
	writeJSON(w, http.StatusNoContent, nil)
}

type memberDTO struct {
	UserID    string `json:"userId"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatarUrl,omitempty"`
	Role      string `json:"role"`
	JoinedAt  int64  `json:"joinedAt"`
}

// ListMembers returns the room's members with their roles.
func (s *RoomService) ListMembers(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomID")
	if !s.require(w, r, roomID, role.ActionViewRoom) {
		return
	}
	members, err := s.store.ListMembers(r.Context(), roomID)
	if err != nil {
		writeStorageError(w, err)
		return
	}
	dtos := make([]memberDTO, 0, len(members))
	for _, m := range members {
		dtos = append(dtos, memberDTO{
			UserID:    m.UserID,
			Name:      m.Name,
			Email:     m.Email,
			AvatarURL: m.AvatarURL,
			Role:      m.Role.String(),
			JoinedAt:  m.JoinedAt,
		})
	}
	writeJSON(w, http.StatusOK, dtos)
}

type setRoleRequest struct {
	Role string `json:"role"`
}

// SetMemberRole changes a member's role. Owner only; the owner cannot
// demote themselves, which guarantees every room keeps an owner.
func (s *RoomService) SetMemberRole(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomID")
	targetID := chi.URLParam(r, "userID")
	if !s.require(w, r, roomID, role.ActionRemoveMember) {
		return
	}

	var req setRoleRequest
	if !decodeBody(w, r, &req) {
		return
	}
	newRole, err := role.Parse(req.Role)
	if err != nil {
		writeFieldErrors(w, []fielderrors.Item{fieldError("role", err.Error())})
		return
	}

	if targetID == middleware.GetUserID(r.Context()) && newRole != role.Owner {
		writeError(w, http.StatusConflict, "last_owner", "Owner cannot demote themselves")
		return
	}

	if _, ok, err := s.store.RoleOf(r.Context(), targetID, roomID); err != nil || !ok {
		writeError(w, http.StatusNotFound, "not_found", "No such member")
		return
	}
	if err := s.authority.SetRole(r.Context(), targetID, roomID, newRole); err != nil {
		writeStorageError(w, err)
		return
	}

	s.broker.Publish(RoomTopic(roomID))
	s.logger.Info("member role changed", "room_id", roomID, "user_id", targetID, "role", newRole.String())
	writeJSON(w, http.StatusNoContent, nil)
}

// RemoveMember kicks a member out of the room. Owner only.
func (s *RoomService) RemoveMember(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomID")
	targetID := chi.URLParam(r, "userID")
	if !s.require(w, r, roomID, role.ActionRemoveMember) {
		return
	}
	if targetID == middleware.GetUserID(r.Context()) {
		writeError(w, http.StatusConflict, "last_owner", "Owner cannot remove themselves; delete the room instead")
		return
	}
	if err := s.store.RemoveMember(r.Context(), roomID, targetID); err != nil {
		writeStorageError(w, err)
		return
	}
	s.broker.Publish(RoomTopic(roomID))
	s.logger.Info("member removed", "room_id", roomID, "user_id", targetID)
	writeJSON(w, http.StatusNoContent, nil)
}

// Leave removes the caller's own membership. The owner cannot leave;
// they delete the room or hand over ownership first.
func (s *RoomService) Leave(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomID")
	userID := middleware.GetUserID(r.Context())

	if s.authority.RoleOf(r.Context(), userID, roomID) == role.Owner {
		writeError(w, http.StatusConflict, "last_owner", "Owner cannot leave the room")
		return
	}
	if err := s.store.RemoveMember(r.Context(), roomID, userID); err != nil {
		writeStorageError(w, err)
		return
	}
	s.broker.Publish(RoomTopic(roomID))
	s.logger.Info("member left", "room_id", roomID, "user_id", userID)
	writeJSON(w, http.StatusNoContent, nil)
}

type joinRequest struct {
	Code string `json:"code"`
}

type joinResponse struct {
	Room roomDTO `json:"room"`

	// AlreadyMember distinguishes a fresh join from an idempotent re-join.
	AlreadyMember bool `json:"alreadyMember"`
}

// Join adds the caller to the room named by an invite code. Joining a
// room the caller is already in succeeds and reports AlreadyMember.
func (s *RoomService) Join(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if !decodeBody(w, r, &req) {
		return
	}
	code, err := invite.Validate(req.Code)
	if err != nil {
		writeFieldErrors(w, []fielderrors.Item{fieldError("invite_code", "Invalid invite code")})
		return
	}

	room, err := s.store.GetRoomByInviteCode(r.Context(), code)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeFieldErrors(w, []fielderrors.Item{fieldError("invite_code", "Unknown invite code")})
			return
		}
		writeStorageError(w, err)
		return
	}

	userID := middleware.GetUserID(r.Context())
	alreadyMember := false
	err = s.store.AddMember(r.Context(), &models.RoomMember{
		RoomID: room.ID,
		UserID: userID,
		Role:   role.Member,
	})
	switch {
	case errors.Is(err, storage.ErrDuplicate):
		alreadyMember = true
	case err != nil:
		writeStorageError(w, err)
		return
	default:
		room.MemberCount++
		s.broker.Publish(RoomTopic(room.ID))
		s.logger.Info("member joined", "room_id", room.ID, "user_id", userID)
	}

	writeJSON(w, http.StatusOK, joinResponse{Room: toRoomDTO(room), AlreadyMember: alreadyMember})
}

type pendingRequest struct {
	Code string `json:"code"`
}

type pendingResponse struct {
	Code string `json:"code"`
}

// StagePending stores an invite code in the caller's pending slot,
// replacing whatever was there.
func (s *RoomService) StagePending(w http.ResponseWriter, r *http.Request) {
	var req pendingRequest
	if !decodeBody(w, r, &req) {
		return
	}
	clientID := middleware.GetClientID(r.Context())
	code, err := s.pending.Stage(r.Context(), clientID, req.Code)
	if err != nil {
		if errors.Is(err, invite.ErrInvalidFormat) {
			writeFieldErrors(w, []fielderrors.Item{fieldError("invite_code", "Invalid invite code")})
			return
		}
		s.logger.Error("failed to stage invite", "error", err)
		writeError(w, http.StatusInternalServerError, "internal", "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, pendingResponse{Code: code})
}

// GetPending returns the staged invite code, empty when the slot is clear.
func (s *RoomService) GetPending(w http.ResponseWriter, r *http.Request) {
	clientID := middleware.GetClientID(r.Context())
	code, _, err := s.pending.Pending(r.Context(), clientID)
	if err != nil {
		s.logger.Error("failed to read pending invite", "error", err)
		writeError(w, http.StatusInternalServerError, "internal", "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, pendingResponse{Code: code})
}

// ClearPending empties the caller's pending slot.
func (s *RoomService) ClearPending(w http.ResponseWriter, r *http.Request) {
	clientID := middleware.GetClientID(r.Context())
	if err := s.pending.Clear(r.Context(), clientID); err != nil {
		s.logger.Error("failed to clear pending invite", "error", err)
		writeError(w, http.StatusInternalServerError, "internal", "Internal server error")
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

