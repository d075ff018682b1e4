package chat

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/streakmates/sync-client/internal/domain"
	"github.com/streakmates/sync-client/internal/session"
)

type fakeSender struct {
	history   []domain.ChatMessage
	listErr   error
	sendErr   error
	confirmed *domain.ChatMessage

	// onSend runs before SendMessage returns, simulating broadcasts
	// arriving while the send is in flight.
	onSend func()
}

func (f *fakeSender) ListMessages(ctx context.Context, roomID string) ([]domain.ChatMessage, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]domain.ChatMessage(nil), f.history...), nil
}

func (f *fakeSender) SendMessage(ctx context.Context, roomID, text string) (*domain.ChatMessage, error) {
	if f.onSend != nil {
		f.onSend()
	}
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	return f.confirmed, nil
}

var (
	self  = domain.User{ID: "u1", Username: "ada"}
	other = domain.User{ID: "u2", Username: "brin"}
)

func newTestTranscript(t *testing.T, f *fakeSender) *Transcript {
	t.Helper()
	sess := session.New()
	sess.Authenticate(self, "token")
	tr := NewTranscript(f, sess)
	require.NoError(t, tr.Load(context.Background(), "r1"))
	return tr
}

func remoteMsg(id, text string, at time.Time) domain.ChatMessage {
	return domain.ChatMessage{ID: id, RoomID: "r1", Sender: other, Text: text, CreatedAt: at}
}

func TestLoadOrdersByCreationTime(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	f := &fakeSender{history: []domain.ChatMessage{
		remoteMsg("m2", "second", base.Add(time.Minute)),
		remoteMsg("m1", "first", base),
	}}
	tr := newTestTranscript(t, f)

	msgs := tr.Messages()
	require.Len(t, msgs, 2)
	require.Equal(t, "m1", msgs[0].ID)
	require.Equal(t, "m2", msgs[1].ID)
}

func TestAppendOptimisticConfirmedInPlace(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	f := &fakeSender{confirmed: &domain.ChatMessage{
		ID: "srv-1", RoomID: "r1", Sender: self, Text: "hello", CreatedAt: base,
	}}
	var tr *Transcript
	// A remote message lands while the send is in flight; the pending
	// entry must keep its position and be confirmed in place.
	f.onSend = func() {
		tr.ApplyRemote(remoteMsg("m-other", "hey", base.Add(time.Second)))
	}
	tr = newTestTranscript(t, f)

	require.NoError(t, tr.AppendOptimistic(context.Background(), "hello"))

	msgs := tr.Messages()
	require.Len(t, msgs, 2)
	require.Equal(t, "srv-1", msgs[0].ID)
	require.False(t, msgs[0].Pending)
	require.Equal(t, "m-other", msgs[1].ID)
}

func TestAppendOptimisticPendingUntilConfirmed(t *testing.T) {
	f := &fakeSender{confirmed: &domain.ChatMessage{ID: "srv-1", RoomID: "r1", Sender: self, Text: "hello"}}
	var pendingID string
	var tr *Transcript
	f.onSend = func() {
		msgs := tr.Messages()
		require.Len(t, msgs, 1)
		require.True(t, msgs[0].Pending)
		pendingID = msgs[0].ID
	}
	tr = newTestTranscript(t, f)

	require.NoError(t, tr.AppendOptimistic(context.Background(), "hello"))
	require.True(t, strings.HasPrefix(pendingID, "pending-"))
	require.Equal(t, "srv-1", tr.Messages()[0].ID)
}

func TestAppendOptimisticRemovedOnFailure(t *testing.T) {
	f := &fakeSender{sendErr: errors.New("500")}
	tr := newTestTranscript(t, f)

	require.Error(t, tr.AppendOptimistic(context.Background(), "hello"))
	require.Empty(t, tr.Messages())
}

func TestApplyRemoteSelfEchoDiscarded(t *testing.T) {
	f := &fakeSender{}
	tr := newTestTranscript(t, f)

	tr.ApplyRemote(domain.ChatMessage{ID: "srv-2", RoomID: "r1", Sender: self, Text: "mine"})
	require.Empty(t, tr.Messages())
}

func TestApplyRemoteDuplicateDiscarded(t *testing.T) {
	f := &fakeSender{}
	tr := newTestTranscript(t, f)

	msg := remoteMsg("m1", "hey", time.Now())
	tr.ApplyRemote(msg)
	tr.ApplyRemote(msg)
	require.Len(t, tr.Messages(), 1)
}

func TestApplyRemoteWrongRoomDiscarded(t *testing.T) {
	f := &fakeSender{}
	tr := newTestTranscript(t, f)

	msg := remoteMsg("m1", "hey", time.Now())
	msg.RoomID = "other"
	tr.ApplyRemote(msg)
	require.Empty(t, tr.Messages())
}

func TestInvalidate(t *testing.T) {
	f := &fakeSender{history: []domain.ChatMessage{remoteMsg("m1", "hey", time.Now())}}
	tr := newTestTranscript(t, f)

	tr.Invalidate()
	require.Empty(t, tr.Messages())
	require.Empty(t, tr.RoomID())
	require.Error(t, tr.AppendOptimistic(context.Background(), "late"))
}
