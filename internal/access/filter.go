package access

import "habittracker/internal/models"

// HabitScope is the default collection view for the caller.
func HabitScope(id Identity) models.HabitFilter {
	if id.IsStaff {
		return models.HabitFilter{}
	}
	owner := id.UserID
	return models.HabitFilter{OwnerID: &owner, PleasantOnly: true, PublishedOnly: true}
}

// PublicFeed selects pleasant published habits of any owner.
func PublicFeed() models.HabitFilter {
	return models.HabitFilter{PleasantOnly: true, PublishedOnly: true}
}
