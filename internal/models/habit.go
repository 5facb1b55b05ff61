package models

import "time"

// Habit is a single habit record. Nullable columns are pointers.
type Habit struct {
	ID                int64       `db:"id" json:"id"`
	UserID            *int64      `db:"user_id" json:"user"`
	Place             string      `db:"place" json:"place"`
	Time              TimeOfDay   `db:"time" json:"time"`
	Action            string      `db:"action" json:"action"`
	IsPleasantHabit   bool        `db:"is_pleasant_habit" json:"is_pleasant_habit"`
	PleasantHabitID   *int64      `db:"pleasant_habit_id" json:"pleasant_habit"`
	Periodicity       Periodicity `db:"periodicity" json:"periodicity"`
	Reward            *string     `db:"reward" json:"reward"`
	EstimatedDuration int         `db:"estimated_duration" json:"estimated_duration"`
	LinkedTo          *int64      `db:"linked_to" json:"linked_to"`
	IsPublished       bool        `db:"is_published" json:"is_published"`
	CreatedAt         time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time   `db:"updated_at" json:"updated_at"`
}

// OwnedBy reports whether the habit belongs to userID. Ownerless rows belong to nobody.
func (h *Habit) OwnedBy(userID int64) bool {
	return h.UserID != nil && *h.UserID == userID
}

// HasReward reports whether a non-empty reward is set.
func (h *Habit) HasReward() bool {
	return h.Reward != nil && *h.Reward != ""
}

// NewHabit returns a habit with column defaults applied.
func NewHabit() *Habit {
	return &Habit{
		Periodicity:       DefaultPeriodicity,
		EstimatedDuration: DefaultEstimatedDuration,
	}
}

// HabitInput carries client-supplied fields for create and update.
// Absent keys leave the stored value untouched; explicit null clears nullable columns.
type HabitInput struct {
	Place             Optional[string]      `json:"place"`
	Time              Optional[TimeOfDay]   `json:"time"`
	Action            Optional[string]      `json:"action"`
	IsPleasantHabit   Optional[bool]        `json:"is_pleasant_habit"`
	PleasantHabit     Optional[int64]       `json:"pleasant_habit"`
	Periodicity       Optional[Periodicity] `json:"periodicity"`
	Reward            Optional[string]      `json:"reward"`
	EstimatedDuration Optional[int]         `json:"estimated_duration"`
	LinkedTo          Optional[int64]       `json:"linked_to"`
	IsPublished       Optional[bool]        `json:"is_published"`

	// User is accepted for compatibility and ignored: the owner is always the caller.
	User Optional[int64] `json:"user"`
}

// ApplyTo merges the input into h. Null for a non-nullable column resets it to its zero value,
// which validation then rejects where required.
func (in *HabitInput) ApplyTo(h *Habit) {
	if in.Place.Set {
		h.Place = in.Place.Value
	}
	if in.Time.Set {
		h.Time = in.Time.Value
	}
	if in.Action.Set {
		h.Action = in.Action.Value
	}
	if in.IsPleasantHabit.Set {
		h.IsPleasantHabit = in.IsPleasantHabit.Value
	}
	if in.PleasantHabit.Set {
		h.PleasantHabitID = in.PleasantHabit.Ptr()
	}
	if in.Periodicity.Set {
		h.Periodicity = in.Periodicity.Value
	}
	if in.Reward.Set {
		h.Reward = in.Reward.Ptr()
		if h.Reward != nil && *h.Reward == "" {
			h.Reward = nil
		}
	}
	if in.EstimatedDuration.Set {
		h.EstimatedDuration = in.EstimatedDuration.Value
	}
	if in.LinkedTo.Set {
		h.LinkedTo = in.LinkedTo.Ptr()
	}
	if in.IsPublished.Set {
		h.IsPublished = in.IsPublished.Value
	}
}

// HabitFilter is the predicate a habit query is restricted to. Zero value matches everything.
type HabitFilter struct {
	OwnerID       *int64
	PleasantOnly  bool
	PublishedOnly bool
}

// Matches evaluates the filter against a single habit.
func (f HabitFilter) Matches(h *Habit) bool {
	if f.OwnerID != nil && !h.OwnedBy(*f.OwnerID) {
		return false
	}
	if f.PleasantOnly && !h.IsPleasantHabit {
		return false
	}
	if f.PublishedOnly && !h.IsPublished {
		return false
	}
	return true
}

// Page is one page of a list result.
type Page[T any] struct {
	Count    int `json:"count"`
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
	Results  []T `json:"results"`
}
