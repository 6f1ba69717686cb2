// Package models defines the core domain models for Planora.
//
// # Model Overview
//
//   - User: a registered account; may belong to many rooms
//   - Room: a team workspace holding members and events, joined by invite code
//   - RoomMember: the (user, room) membership carrying exactly one role
//   - Event: one planning effort inside a room, with one current phase
//   - ActivitySuggestion: an activity proposed for an event
//   - Vote: one member's vote on a suggestion
//   - DateOption / DateResponse: scheduling candidates and per-member answers
//
// # Design Principles
//
// 1. **ID strings over pointers**: relationships reference UUIDs to avoid
// circular structures.
// 2. **Phase and role are typed**: raw strings are parsed at the boundary
// (phase.Parse, role.Parse) and never stored un-validated.
// 3. **Timestamps are Unix seconds** (int64), set by the storage layer.
package models
