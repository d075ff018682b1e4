package domain

// Member roles.
const (
	RoleOwner  = "owner"
	RoleMember = "member"
)

// Room visibility.
const (
	VisibilityPublic  = "public"
	VisibilityPrivate = "private"
)

// User identifies an account as the server presents it.
type User struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

// Member is a user's standing inside one room.
type Member struct {
	User   User   `json:"user"`
	Role   string `json:"role"`
	Points int    `json:"points"`
	Streak int    `json:"streak"`
}

// Room is the aggregate the sync engine keeps consistent while the user
// is viewing it. Members are unique by user id and exactly one member
// holds the owner role.
type Room struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Visibility  string   `json:"visibility"`
	OwnerID     string   `json:"ownerId"`
	Capacity    int      `json:"capacity"`
	JoinCode    string   `json:"joinCode,omitempty"`
	Members     []Member `json:"members"`
	Tasks       []Task   `json:"tasks"`
}

// MemberByID returns a pointer into Members for the given user id, or nil.
func (r *Room) MemberByID(userID string) *Member {
	for i := range r.Members {
		if r.Members[i].User.ID == userID {
			return &r.Members[i]
		}
	}
	return nil
}

// TaskByID returns a pointer into Tasks for the given task id, or nil.
func (r *Room) TaskByID(taskID string) *Task {
	for i := range r.Tasks {
		if r.Tasks[i].ID == taskID {
			return &r.Tasks[i]
		}
	}
	return nil
}
