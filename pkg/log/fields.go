package log

const (
	// Entities
	FieldRoomID    = "room_id"
	FieldTaskID    = "task_id"
	FieldMessageID = "message_id"
	FieldUserID    = "user_id"
	FieldUsername  = "username"

	// Realtime channel
	FieldEvent = "event"
	FieldState = "state"

	// Client
	FieldClient = "client"
)
