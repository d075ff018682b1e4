package domain

// Push channel events consumed by the client.
const (
	EventTaskCompleted     = "task:completed"
	EventTaskUncompleted   = "task:uncompleted"
	EventTaskCreated       = "task:created"
	EventTaskDeleted       = "task:deleted"
	EventChatMessage       = "chat:message"
	EventMemberJoined      = "member:joined"
	EventMemberLeft        = "member:left"
	EventMemberKicked      = "member:kicked"
	EventNotificationNew   = "notification:new"
	EventNotificationCount = "notification:unreadCount"
)

// Push channel events emitted by the client.
const (
	EventRoomJoin  = "room:join"
	EventRoomLeave = "room:leave"
)

// Event payloads, field names as on the wire.

type TaskCompletedEvent struct {
	RoomID string `json:"roomId"`
	TaskID string `json:"taskId"`
	UserID string `json:"userId"`
	// Points is the delta the completing member earned. Merges apply it
	// directly, never recomputing from an assumed prior value.
	Points    int    `json:"points"`
	Username  string `json:"username,omitempty"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

// TaskUncompletedEvent carries no points delta; merges revert the
// locally known task points.
type TaskUncompletedEvent struct {
	RoomID string `json:"roomId"`
	TaskID string `json:"taskId"`
	UserID string `json:"userId"`
}

type TaskCreatedEvent struct {
	RoomID string `json:"roomId"`
	Task   Task   `json:"task"`
}

type TaskDeletedEvent struct {
	RoomID string `json:"roomId"`
	TaskID string `json:"taskId"`
}

type ChatMessageEvent struct {
	Message ChatMessage `json:"message"`
}

type MemberJoinedEvent struct {
	RoomID string `json:"roomId"`
	User   User   `json:"user"`
}

type MemberLeftEvent struct {
	RoomID string `json:"roomId"`
	UserID string `json:"userId"`
}

type MemberKickedEvent struct {
	RoomID   string `json:"roomId"`
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

type NotificationCountEvent struct {
	UnreadCount int `json:"unreadCount"`
}

type RoomJoinEvent struct {
	RoomID string `json:"roomId"`
}

type RoomLeaveEvent struct {
	RoomID string `json:"roomId"`
}
