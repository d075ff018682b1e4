package domain

import "time"

// Task frequency categories.
const (
	FrequencyDaily   = "daily"
	FrequencyWeekly  = "weekly"
	FrequencyMonthly = "monthly"
)

// Completion records that one user completed a task today.
type Completion struct {
	UserID      string    `json:"userId"`
	Username    string    `json:"username"`
	AvatarURL   string    `json:"avatarUrl,omitempty"`
	CompletedAt time.Time `json:"completedAt"`
}

// Task is a habit inside a room. CompletedBy holds today's completions
// across all members, at most one entry per user id.
type Task struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	Points      int          `json:"points"`
	Frequency   string       `json:"frequency"`
	Active      bool         `json:"active"`
	CompletedBy []Completion `json:"completedBy"`
}

// CompletedByUser reports whether userID appears in the CompletedBy set.
func (t *Task) CompletedByUser(userID string) bool {
	for i := range t.CompletedBy {
		if t.CompletedBy[i].UserID == userID {
			return true
		}
	}
	return false
}

// AddCompletion inserts a completion, keeping at most one entry per user.
// Returns false if the user was already present (duplicate insert is a no-op).
func (t *Task) AddCompletion(c Completion) bool {
	if t.CompletedByUser(c.UserID) {
		return false
	}
	t.CompletedBy = append(t.CompletedBy, c)
	return true
}

// RemoveCompletion removes the entry for userID.
// Returns false if the user was not present.
func (t *Task) RemoveCompletion(userID string) bool {
	for i := range t.CompletedBy {
		if t.CompletedBy[i].UserID == userID {
			t.CompletedBy = append(t.CompletedBy[:i], t.CompletedBy[i+1:]...)
			return true
		}
	}
	return false
}
