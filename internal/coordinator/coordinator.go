package coordinator

import (
	"encoding/json"
	"sync"

	"github.com/streakmates/sync-client/internal/chat"
	"github.com/streakmates/sync-client/internal/domain"
	"github.com/streakmates/sync-client/internal/roomstate"
	"github.com/streakmates/sync-client/internal/transport"
	"github.com/streakmates/sync-client/internal/unread"
	pkglog "github.com/streakmates/sync-client/pkg/log"
)

// Broker is the slice of the transport adapter the coordinator uses.
// *transport.Adapter satisfies it.
type Broker interface {
	Subscribe(event string, h transport.Handler) transport.Subscription
	Unsubscribe(sub transport.Subscription)
	Emit(event string, payload any)
	OnReconnect(fn func())
}

// Coordinator wires push events to store mutations for the current
// room. It holds no domain state of its own: its single job is to
// install the event subscriptions for one room, to tear them down
// completely before installing the next room's, and to guard every
// handler against events for a different room, since the push channel
// itself is not room-scoped.
type Coordinator struct {
	mu     sync.Mutex
	roomID string

	broker Broker
	rooms  *roomstate.Store
	chat   *chat.Transcript
	unread *unread.Synchronizer

	roomSubs    []transport.Subscription
	sessionSubs []transport.Subscription
}

// New creates a Coordinator and registers the reconnect hook that
// re-requests the current room's broadcasts after the channel comes
// back, instead of relying on events missed while offline.
func New(broker Broker, rooms *roomstate.Store, ch *chat.Transcript, un *unread.Synchronizer) *Coordinator {
	c := &Coordinator{
		broker: broker,
		rooms:  rooms,
		chat:   ch,
		unread: un,
	}
	broker.OnReconnect(func() {
		if roomID := c.currentRoom(); roomID != "" {
			broker.Emit(domain.EventRoomJoin, domain.RoomJoinEvent{RoomID: roomID})
		}
	})
	return c
}

// AttachSession installs the session-scoped notification wiring. Call
// once after connecting; DetachSession removes it on logout.
func (c *Coordinator) AttachSession() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.sessionSubs) > 0 {
		return
	}
	c.sessionSubs = []transport.Subscription{
		c.broker.Subscribe(domain.EventNotificationNew, func(json.RawMessage) {
			c.unread.Increment()
		}),
		c.broker.Subscribe(domain.EventNotificationCount, func(data json.RawMessage) {
			ev, ok := decode[domain.NotificationCountEvent](data)
			if !ok {
				return
			}
			c.unread.ApplyCount(ev.UnreadCount)
		}),
	}
}

// DetachSession removes the session-scoped wiring.
func (c *Coordinator) DetachSession() {
	c.mu.Lock()
	subs := c.sessionSubs
	c.sessionSubs = nil
	c.mu.Unlock()

	for _, sub := range subs {
		c.broker.Unsubscribe(sub)
	}
}

// Attach installs the event wiring for roomID and announces the join.
// Any previous room's subscriptions are fully removed first, so two
// rooms are never wired concurrently.
func (c *Coordinator) Attach(roomID string) {
	c.Detach()

	c.mu.Lock()
	c.roomID = roomID
	c.roomSubs = []transport.Subscription{
		c.broker.Subscribe(domain.EventTaskCompleted, func(data json.RawMessage) {
			ev, ok := decode[domain.TaskCompletedEvent](data)
			if !ok || !c.forCurrentRoom(ev.RoomID) {
				return
			}
			c.rooms.ApplyTaskCompleted(ev)
		}),
		c.broker.Subscribe(domain.EventTaskUncompleted, func(data json.RawMessage) {
			ev, ok := decode[domain.TaskUncompletedEvent](data)
			if !ok || !c.forCurrentRoom(ev.RoomID) {
				return
			}
			c.rooms.ApplyTaskUncompleted(ev)
		}),
		c.broker.Subscribe(domain.EventTaskCreated, func(data json.RawMessage) {
			ev, ok := decode[domain.TaskCreatedEvent](data)
			if !ok || !c.forCurrentRoom(ev.RoomID) {
				return
			}
			c.rooms.ApplyTaskCreated(ev)
		}),
		c.broker.Subscribe(domain.EventTaskDeleted, func(data json.RawMessage) {
			ev, ok := decode[domain.TaskDeletedEvent](data)
			if !ok || !c.forCurrentRoom(ev.RoomID) {
				return
			}
			c.rooms.ApplyTaskDeleted(ev)
		}),
		c.broker.Subscribe(domain.EventMemberJoined, func(data json.RawMessage) {
			ev, ok := decode[domain.MemberJoinedEvent](data)
			if !ok || !c.forCurrentRoom(ev.RoomID) {
				return
			}
			c.rooms.ApplyMemberJoined(ev)
		}),
		c.broker.Subscribe(domain.EventMemberLeft, func(data json.RawMessage) {
			ev, ok := decode[domain.MemberLeftEvent](data)
			if !ok || !c.forCurrentRoom(ev.RoomID) {
				return
			}
			c.rooms.ApplyMemberLeft(ev)
		}),
		c.broker.Subscribe(domain.EventMemberKicked, func(data json.RawMessage) {
			ev, ok := decode[domain.MemberKickedEvent](data)
			if !ok || !c.forCurrentRoom(ev.RoomID) {
				return
			}
			c.rooms.ApplyMemberKicked(ev)
		}),
		c.broker.Subscribe(domain.EventChatMessage, func(data json.RawMessage) {
			ev, ok := decode[domain.ChatMessageEvent](data)
			if !ok || !c.forCurrentRoom(ev.Message.RoomID) {
				return
			}
			c.chat.ApplyRemote(ev.Message)
		}),
	}
	c.mu.Unlock()

	c.broker.Emit(domain.EventRoomJoin, domain.RoomJoinEvent{RoomID: roomID})
}

// Detach removes the current room's wiring and announces the leave.
// Safe to call when nothing is attached.
func (c *Coordinator) Detach() {
	c.mu.Lock()
	roomID := c.roomID
	subs := c.roomSubs
	c.roomID = ""
	c.roomSubs = nil
	c.mu.Unlock()

	for _, sub := range subs {
		c.broker.Unsubscribe(sub)
	}
	if roomID != "" {
		c.broker.Emit(domain.EventRoomLeave, domain.RoomLeaveEvent{RoomID: roomID})
	}
}

func (c *Coordinator) currentRoom() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roomID
}

// forCurrentRoom guards a handler against events for another room,
// e.g. while the caller is mid-transition between rooms.
func (c *Coordinator) forCurrentRoom(roomID string) bool {
	return roomID != "" && roomID == c.currentRoom()
}

func decode[T any](data json.RawMessage) (T, bool) {
	var ev T
	if err := json.Unmarshal(data, &ev); err != nil {
		l := pkglog.L()
		l.Warn().Err(err).Msg("coordinator: invalid event payload")
		return ev, false
	}
	return ev, true
}
