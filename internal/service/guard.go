package service

import (
	"net/http"

	"github.com/planora/planora/internal/middleware"
	"github.com/planora/planora/internal/role"
	"github.com/planora/planora/internal/storage"
)

// guard answers capability questions for room-scoped handlers. A
// non-member fails every check: the policy's least-privilege default
// applies inside a room, never across its boundary.
type guard struct {
	store     storage.Store
	authority *role.Authority
}

// require checks that the caller is a member of the room and that their
// role permits the action. Writes a 403 and returns false otherwise.
func (g guard) require(w http.ResponseWriter, r *http.Request, roomID string, action role.Action) bool {
	userID := middleware.GetUserID(r.Context())
	if _, ok, err := g.store.RoleOf(r.Context(), userID, roomID); err != nil || !ok {
		writeError(w, http.StatusForbidden, "forbidden", "You are not a member of this room")
		return false
	}
	if !g.authority.Can(r.Context(), userID, roomID, action) {
		writeError(w, http.StatusForbidden, "forbidden", "You do not have permission to do that")
		return false
	}
	return true
}
