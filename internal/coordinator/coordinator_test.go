package coordinator

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/streakmates/sync-client/internal/api"
	"github.com/streakmates/sync-client/internal/chat"
	"github.com/streakmates/sync-client/internal/domain"
	"github.com/streakmates/sync-client/internal/roomstate"
	"github.com/streakmates/sync-client/internal/session"
	"github.com/streakmates/sync-client/internal/transport"
	"github.com/streakmates/sync-client/internal/unread"
)

// fakeBroker is an in-memory Broker that dispatches published events
// synchronously, like the adapter's read pump does.
type fakeBroker struct {
	mu        sync.Mutex
	subs      map[string]map[uint64]transport.Handler
	next      uint64
	emitted   []string
	reconnect []func()
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{subs: make(map[string]map[uint64]transport.Handler)}
}

func (b *fakeBroker) Subscribe(event string, h transport.Handler) transport.Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.next++
	if b.subs[event] == nil {
		b.subs[event] = make(map[uint64]transport.Handler)
	}
	b.subs[event][b.next] = h
	return transport.Subscription{Event: event, ID: b.next}
}

func (b *fakeBroker) Unsubscribe(sub transport.Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if hs, ok := b.subs[sub.Event]; ok {
		delete(hs, sub.ID)
		if len(hs) == 0 {
			delete(b.subs, sub.Event)
		}
	}
}

func (b *fakeBroker) Emit(event string, payload any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.emitted = append(b.emitted, event)
}

func (b *fakeBroker) OnReconnect(fn func()) {
	b.reconnect = append(b.reconnect, fn)
}

func (b *fakeBroker) publish(t *testing.T, event string, payload any) {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)

	b.mu.Lock()
	hs := make([]transport.Handler, 0, len(b.subs[event]))
	for _, h := range b.subs[event] {
		hs = append(hs, h)
	}
	b.mu.Unlock()

	for _, h := range hs {
		h(data)
	}
}

func (b *fakeBroker) subscriptionCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, hs := range b.subs {
		n += len(hs)
	}
	return n
}

type fakeRoomAPI struct {
	room  *domain.Room
	tasks []domain.Task
}

func (f *fakeRoomAPI) GetRoom(ctx context.Context, roomID string) (*domain.Room, error) {
	r := *f.room
	return &r, nil
}

func (f *fakeRoomAPI) ListRoomTasks(ctx context.Context, roomID string) ([]domain.Task, error) {
	return append([]domain.Task(nil), f.tasks...), nil
}

func (f *fakeRoomAPI) CompleteTask(ctx context.Context, roomID, taskID string) error   { return nil }
func (f *fakeRoomAPI) UncompleteTask(ctx context.Context, roomID, taskID string) error { return nil }
func (f *fakeRoomAPI) DeleteTask(ctx context.Context, roomID, taskID string) error     { return nil }
func (f *fakeRoomAPI) CreateTask(ctx context.Context, roomID string, req api.CreateTaskRequest) (*domain.Task, error) {
	return nil, nil
}

type fakeChatAPI struct{}

func (fakeChatAPI) ListMessages(ctx context.Context, roomID string) ([]domain.ChatMessage, error) {
	return nil, nil
}

func (fakeChatAPI) SendMessage(ctx context.Context, roomID, text string) (*domain.ChatMessage, error) {
	return nil, nil
}

type fakeCountAPI struct{ count int }

func (f *fakeCountAPI) UnreadCount(ctx context.Context) (int, error) { return f.count, nil }

var (
	self  = domain.User{ID: "u1", Username: "ada"}
	other = domain.User{ID: "u2", Username: "brin"}
)

type fixture struct {
	broker *fakeBroker
	rooms  *roomstate.Store
	chat   *chat.Transcript
	unread *unread.Synchronizer
	coord  *Coordinator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	sess := session.New()
	sess.Authenticate(self, "token")

	roomAPI := &fakeRoomAPI{
		room: &domain.Room{
			ID:      "r1",
			OwnerID: self.ID,
			Members: []domain.Member{
				{User: self, Role: domain.RoleOwner, Points: 50},
				{User: other, Role: domain.RoleMember, Points: 20},
			},
		},
		tasks: []domain.Task{{ID: "t1", Title: "run 5k", Points: 10, Active: true}},
	}

	rooms := roomstate.NewStore(roomAPI, sess)
	require.NoError(t, rooms.Load(context.Background(), "r1"))

	transcript := chat.NewTranscript(fakeChatAPI{}, sess)
	require.NoError(t, transcript.Load(context.Background(), "r1"))

	broker := newFakeBroker()
	un := unread.NewSynchronizer(&fakeCountAPI{}, 0)

	return &fixture{
		broker: broker,
		rooms:  rooms,
		chat:   transcript,
		unread: un,
		coord:  New(broker, rooms, transcript, un),
	}
}

func TestAttachWiresRoomEvents(t *testing.T) {
	fx := newFixture(t)
	fx.coord.Attach("r1")

	fx.broker.publish(t, domain.EventTaskCompleted, domain.TaskCompletedEvent{
		RoomID: "r1", TaskID: "t1", UserID: other.ID, Points: 10,
	})
	snap := fx.rooms.Snapshot()
	require.True(t, snap.TaskByID("t1").CompletedByUser(other.ID))
	require.Equal(t, 30, snap.MemberByID(other.ID).Points)

	fx.broker.publish(t, domain.EventChatMessage, domain.ChatMessageEvent{
		Message: domain.ChatMessage{ID: "m1", RoomID: "r1", Sender: other, Text: "done!"},
	})
	require.Len(t, fx.chat.Messages(), 1)

	fx.broker.publish(t, domain.EventMemberLeft, domain.MemberLeftEvent{RoomID: "r1", UserID: other.ID})
	require.Nil(t, fx.rooms.Snapshot().MemberByID(other.ID))
}

func TestCrossRoomEventsIgnored(t *testing.T) {
	fx := newFixture(t)
	fx.coord.Attach("r1")

	fx.broker.publish(t, domain.EventTaskCompleted, domain.TaskCompletedEvent{
		RoomID: "r2", TaskID: "t1", UserID: other.ID, Points: 10,
	})
	require.Empty(t, fx.rooms.Snapshot().TaskByID("t1").CompletedBy)

	fx.broker.publish(t, domain.EventChatMessage, domain.ChatMessageEvent{
		Message: domain.ChatMessage{ID: "m1", RoomID: "r2", Sender: other, Text: "elsewhere"},
	})
	require.Empty(t, fx.chat.Messages())
}

func TestDetachRemovesAllSubscriptions(t *testing.T) {
	fx := newFixture(t)
	fx.coord.Attach("r1")
	require.NotZero(t, fx.broker.subscriptionCount())

	fx.coord.Detach()
	require.Zero(t, fx.broker.subscriptionCount())

	fx.broker.publish(t, domain.EventTaskCompleted, domain.TaskCompletedEvent{
		RoomID: "r1", TaskID: "t1", UserID: other.ID, Points: 10,
	})
	require.Empty(t, fx.rooms.Snapshot().TaskByID("t1").CompletedBy)
}

func TestAttachReplacesPreviousRoomWiring(t *testing.T) {
	fx := newFixture(t)
	fx.coord.Attach("r1")
	count := fx.broker.subscriptionCount()

	fx.coord.Attach("r2")
	require.Equal(t, count, fx.broker.subscriptionCount())
	require.Equal(t, []string{
		domain.EventRoomJoin,
		domain.EventRoomLeave,
		domain.EventRoomJoin,
	}, fx.broker.emitted)

	// Events for the old room no longer reach the store.
	fx.broker.publish(t, domain.EventTaskCompleted, domain.TaskCompletedEvent{
		RoomID: "r1", TaskID: "t1", UserID: other.ID, Points: 10,
	})
	require.Empty(t, fx.rooms.Snapshot().TaskByID("t1").CompletedBy)
}

func TestDetachWithoutAttachIsSafe(t *testing.T) {
	fx := newFixture(t)
	fx.coord.Detach()
	require.Empty(t, fx.broker.emitted)
}

func TestSessionWiring(t *testing.T) {
	fx := newFixture(t)
	fx.coord.AttachSession()

	fx.broker.publish(t, domain.EventNotificationNew, struct{}{})
	require.Equal(t, 1, fx.unread.Count())

	fx.broker.publish(t, domain.EventNotificationCount, domain.NotificationCountEvent{UnreadCount: 7})
	require.Equal(t, 7, fx.unread.Count())

	fx.coord.DetachSession()
	fx.broker.publish(t, domain.EventNotificationNew, struct{}{})
	require.Equal(t, 7, fx.unread.Count())
}

func TestReconnectReemitsJoin(t *testing.T) {
	fx := newFixture(t)
	fx.coord.Attach("r1")
	fx.broker.emitted = nil

	for _, fn := range fx.broker.reconnect {
		fn()
	}
	require.Equal(t, []string{domain.EventRoomJoin}, fx.broker.emitted)
}

func TestReconnectWithoutRoomEmitsNothing(t *testing.T) {
	fx := newFixture(t)
	for _, fn := range fx.broker.reconnect {
		fn()
	}
	require.Empty(t, fx.broker.emitted)
}
