package domain

import "time"

// ChatMessage is one entry in a room's transcript. ID holds a
// client-generated temporary id while Pending is true; the server id
// replaces it on confirmation.
type ChatMessage struct {
	ID        string    `json:"id"`
	RoomID    string    `json:"roomId"`
	Sender    User      `json:"sender"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
	Pending   bool      `json:"-"`
}
