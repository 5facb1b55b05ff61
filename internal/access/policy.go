// Package access decides who may see and change habits.
package access

import "habittracker/internal/models"

// Identity is the authenticated caller as seen by the domain.
type Identity struct {
	UserID  int64
	IsStaff bool
}

// CanRead: staff read everything, owners read their own rows,
// everyone reads pleasant published rows.
func CanRead(id Identity, h *models.Habit) bool {
	if id.IsStaff || h.OwnedBy(id.UserID) {
		return true
	}
	return h.IsPleasantHabit && h.IsPublished
}

// CanMutate: staff or the owner. Ownerless rows are staff-only.
func CanMutate(id Identity, h *models.Habit) bool {
	return id.IsStaff || h.OwnedBy(id.UserID)
}
