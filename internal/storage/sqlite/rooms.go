package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/planora/planora/internal/models"
	"github.com/planora/planora/internal/role"
	"github.com/planora/planora/internal/storage"
)

// CreateRoom persists a new room and the creator's owner membership in one
// transaction. Generates ID and CreatedAt when unset.
func (s *SQLiteStore) CreateRoom(ctx context.Context, room *models.Room) error {
	if room.ID == "" {
		room.ID = uuid.New().String()
	}
	if room.CreatedAt == 0 {
		room.CreatedAt = time.Now().Unix()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		"INSERT INTO rooms (id, name, description, avatar_url, invite_code, created_by, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		room.ID, room.Name, room.Description, room.AvatarURL, room.InviteCode, room.CreatedBy, room.CreatedAt,
	)
	if err != nil {
		return wrapUnique(err, "room")
	}

	// The creator is the room's initial owner; role lookups are plain
	// membership reads from here on.
	_, err = tx.ExecContext(ctx,
		"INSERT INTO room_members (room_id, user_id, role, joined_at) VALUES (?, ?, ?, ?)",
		room.ID, room.CreatedBy, role.Owner.String(), room.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert owner membership: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	room.MemberCount = 1
	return nil
}

const roomColumns = "id, name, description, avatar_url, invite_code, created_by, created_at"

func scanRoom(scan func(dest ...any) error) (*models.Room, error) {
	room := &models.Room{}
	err := scan(
		&room.ID,
		&room.Name,
		&room.Description,
		&room.AvatarURL,
		&room.InviteCode,
		&room.CreatedBy,
		&room.CreatedAt,
	)
	return room, err
}

// GetRoom retrieves a room by ID, including its member count.
func (s *SQLiteStore) GetRoom(ctx context.Context, roomID string) (*models.Room, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+roomColumns+" FROM rooms WHERE id = ?", roomID)
	room, err := scanRoom(row.Scan)
	if notFound(err) {
		return nil, fmt.Errorf("room %s: %w", roomID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get room: %w", err)
	}

	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM room_members WHERE room_id = ?", roomID,
	).Scan(&room.MemberCount); err != nil {
		return nil, fmt.Errorf("failed to count members: %w", err)
	}
	return room, nil
}

// GetRoomByInviteCode resolves a canonical invite code to its room.
func (s *SQLiteStore) GetRoomByInviteCode(ctx context.Context, code string) (*models.Room, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+roomColumns+" FROM rooms WHERE invite_code = ?", code)
	room, err := scanRoom(row.Scan)
	if notFound(err) {
		return nil, fmt.Errorf("invite code %s: %w", code, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get room by invite code: %w", err)
	}
	return room, nil
}

// ListRoomsForUser returns the rooms the user is a member of, newest first.
func (s *SQLiteStore) ListRoomsForUser(ctx context.Context, userID string) ([]*models.Room, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.name, r.description, r.avatar_url, r.invite_code, r.created_by, r.created_at,
		       (SELECT COUNT(*) FROM room_members mc WHERE mc.room_id = r.id) AS member_count
		FROM rooms r
		JOIN room_members m ON m.room_id = r.id
		WHERE m.user_id = ?
		ORDER BY r.created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}
	defer rows.Close()

	var rooms []*models.Room
	for rows.Next() {
		room := &models.Room{}
		if err := rows.Scan(
			&room.ID,
			&room.Name,
			&room.Description,
			&room.AvatarURL,
			&room.InviteCode,
			&room.CreatedBy,
			&room.CreatedAt,
			&room.MemberCount,
		); err != nil {
			return nil, fmt.Errorf("failed to scan room: %w", err)
		}
		rooms = append(rooms, room)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rooms: %w", err)
	}
	return rooms, nil
}

// UpdateRoom updates the mutable room fields.
func (s *SQLiteStore) UpdateRoom(ctx context.Context, room *models.Room) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE rooms SET name = ?, description = ?, avatar_url = ? WHERE id = ?",
		room.Name, room.Description, room.AvatarURL, room.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update room: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("room %s: %w", room.ID, storage.ErrNotFound)
	}
	return nil
}

// DeleteRoom removes the room; memberships, events and everything under
// them cascade.
func (s *SQLiteStore) DeleteRoom(ctx context.Context, roomID string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM rooms WHERE id = ?", roomID)
	if err != nil {
		return fmt.Errorf("failed to delete room: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("room %s: %w", roomID, storage.ErrNotFound)
	}
	return nil
}

// AddMember inserts a membership row.
func (s *SQLiteStore) AddMember(ctx context.Context, member *models.RoomMember) error {
	if member.JoinedAt == 0 {
		member.JoinedAt = time.Now().Unix()
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO room_members (room_id, user_id, role, joined_at) VALUES (?, ?, ?, ?)",
		member.RoomID, member.UserID, member.Role.String(), member.JoinedAt,
	)
	if err != nil {
		return wrapUnique(err, "membership")
	}
	return nil
}

// RemoveMember deletes the membership for the pair.
func (s *SQLiteStore) RemoveMember(ctx context.Context, roomID, userID string) error {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM room_members WHERE room_id = ? AND user_id = ?",
		roomID, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("membership %s/%s: %w", roomID, userID, storage.ErrNotFound)
	}
	return nil
}

// ListMembers returns the room's members joined with their user info,
// ordered by join time.
func (s *SQLiteStore) ListMembers(ctx context.Context, roomID string) ([]*models.MemberInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT u.id, u.name, u.email, u.avatar_url, m.role, m.joined_at
		FROM room_members m
		JOIN users u ON u.id = m.user_id
		WHERE m.room_id = ?
		ORDER BY m.joined_at, u.name`,
		roomID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var members []*models.MemberInfo
	for rows.Next() {
		info := &models.MemberInfo{}
		var roleLabel string
		if err := rows.Scan(
			&info.UserID,
			&info.Name,
			&info.Email,
			&info.AvatarURL,
			&roleLabel,
			&info.JoinedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		r, err := role.Parse(roleLabel)
		if err != nil {
			return nil, fmt.Errorf("failed to parse stored role: %w", err)
		}
		info.Role = r
		members = append(members, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate members: %w", err)
	}
	return members, nil
}

// RoleOf implements the role.Store port: the stored role for the pair,
// with ok=false when no membership exists.
func (s *SQLiteStore) RoleOf(ctx context.Context, userID, roomID string) (role.Role, bool, error) {
	var label string
	err := s.db.QueryRowContext(ctx,
		"SELECT role FROM room_members WHERE room_id = ? AND user_id = ?",
		roomID, userID,
	).Scan(&label)
	if notFound(err) {
		return role.Member, false, nil
	}
	if err != nil {
		return role.Member, false, fmt.Errorf("failed to get role: %w", err)
	}
	r, err := role.Parse(label)
	if err != nil {
		return role.Member, false, fmt.Errorf("failed to parse stored role: %w", err)
	}
	return r, true, nil
}

// SetRole implements the role.Store port: replaces the role for an
// existing membership, or inserts one. Last write wins.
func (s *SQLiteStore) SetRole(ctx context.Context, userID, roomID string, r role.Role) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO room_members (room_id, user_id, role, joined_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (room_id, user_id) DO UPDATE SET role = excluded.role`,
		roomID, userID, r.String(), time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to set role: %w", err)
	}
	return nil
}
