package chat

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/streakmates/sync-client/internal/domain"
	"github.com/streakmates/sync-client/internal/session"
	pkglog "github.com/streakmates/sync-client/pkg/log"
)

// Sender is the slice of the REST client the transcript depends on.
// *api.Client satisfies it.
type Sender interface {
	ListMessages(ctx context.Context, roomID string) ([]domain.ChatMessage, error)
	SendMessage(ctx context.Context, roomID, text string) (*domain.ChatMessage, error)
}

// Transcript is the append-only ordered chat log for one room. An
// optimistic entry occupies a stable position from the moment it is
// appended: confirmation swaps its id in place, it is never re-sorted.
// The server echo of this client's own message is discarded by sender
// identity, never by id matching, since temporary ids never match
// server ids.
type Transcript struct {
	mu       sync.RWMutex
	roomID   string
	messages []domain.ChatMessage
	index    map[string]int

	api  Sender
	sess *session.Session
	now  func() time.Time

	onChange []func()
}

// NewTranscript creates an empty Transcript bound to a session.
func NewTranscript(apiClient Sender, sess *session.Session) *Transcript {
	return &Transcript{
		api:   apiClient,
		sess:  sess,
		now:   time.Now,
		index: make(map[string]int),
	}
}

// OnChange registers an observer invoked after every transcript change.
func (t *Transcript) OnChange(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onChange = append(t.onChange, fn)
}

// Load replaces the transcript with the server-provided history,
// ordered by creation time.
func (t *Transcript) Load(ctx context.Context, roomID string) error {
	msgs, err := t.api.ListMessages(ctx, roomID)
	if err != nil {
		return fmt.Errorf("load messages: %w", err)
	}
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
	})

	t.mu.Lock()
	t.roomID = roomID
	t.messages = msgs
	t.reindex()
	watchers := t.watchers()
	t.mu.Unlock()

	t.notify(watchers)
	return nil
}

// RoomID returns the loaded room's id, or "".
func (t *Transcript) RoomID() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.roomID
}

// Messages returns a copy of the transcript in order.
func (t *Transcript) Messages() []domain.ChatMessage {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]domain.ChatMessage(nil), t.messages...)
}

// Invalidate discards the transcript, e.g. when navigating away.
func (t *Transcript) Invalidate() {
	t.mu.Lock()
	t.roomID = ""
	t.messages = nil
	t.index = make(map[string]int)
	t.mu.Unlock()
}

// AppendOptimistic appends a pending message under a temporary
// client-generated id, then sends it. On success the entry is replaced
// in place by the server-confirmed message; on failure it is removed
// and the error returned.
func (t *Transcript) AppendOptimistic(ctx context.Context, text string) error {
	self := t.sess.User()
	tempID := "pending-" + uuid.NewString()

	t.mu.Lock()
	if t.roomID == "" {
		t.mu.Unlock()
		return fmt.Errorf("no room loaded")
	}
	roomID := t.roomID
	t.messages = append(t.messages, domain.ChatMessage{
		ID:        tempID,
		RoomID:    roomID,
		Sender:    self,
		Text:      text,
		CreatedAt: t.now(),
		Pending:   true,
	})
	t.index[tempID] = len(t.messages) - 1
	watchers := t.watchers()
	t.mu.Unlock()
	t.notify(watchers)

	confirmed, err := t.api.SendMessage(ctx, roomID, text)
	if err != nil {
		t.remove(tempID)
		return fmt.Errorf("send message: %w", err)
	}

	t.mu.Lock()
	if i, ok := t.index[tempID]; ok {
		msg := *confirmed
		msg.Pending = false
		t.messages[i] = msg
		delete(t.index, tempID)
		t.index[msg.ID] = i
	}
	watchers = t.watchers()
	t.mu.Unlock()
	t.notify(watchers)

	return nil
}

// ApplyRemote appends a message broadcast for this room. Messages from
// the current user are discarded as self-echo; duplicate delivery is a
// no-op by id.
func (t *Transcript) ApplyRemote(msg domain.ChatMessage) {
	t.mu.Lock()
	if t.roomID == "" || msg.RoomID != t.roomID {
		t.mu.Unlock()
		return
	}
	if msg.Sender.ID == t.sess.UserID() {
		l := pkglog.L()
		l.Debug().Str(pkglog.FieldMessageID, msg.ID).Msg("chat: self-echo discarded")
		t.mu.Unlock()
		return
	}
	if _, ok := t.index[msg.ID]; ok {
		t.mu.Unlock()
		return
	}
	t.messages = append(t.messages, msg)
	t.index[msg.ID] = len(t.messages) - 1
	watchers := t.watchers()
	t.mu.Unlock()

	t.notify(watchers)
}

func (t *Transcript) remove(id string) {
	t.mu.Lock()
	i, ok := t.index[id]
	if !ok {
		t.mu.Unlock()
		return
	}
	t.messages = append(t.messages[:i], t.messages[i+1:]...)
	t.reindex()
	watchers := t.watchers()
	t.mu.Unlock()

	t.notify(watchers)
}

// reindex rebuilds the id → position map. Callers hold the lock.
func (t *Transcript) reindex() {
	t.index = make(map[string]int, len(t.messages))
	for i := range t.messages {
		t.index[t.messages[i].ID] = i
	}
}

func (t *Transcript) watchers() []func() {
	return append([]func(){}, t.onChange...)
}

func (t *Transcript) notify(watchers []func()) {
	for _, fn := range watchers {
		fn()
	}
}
