package roomstate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/streakmates/sync-client/internal/api"
	"github.com/streakmates/sync-client/internal/domain"
	"github.com/streakmates/sync-client/internal/session"
	pkglog "github.com/streakmates/sync-client/pkg/log"
)

// Store exclusively owns one Room aggregate for the lifetime of the
// current room view. Mutations arrive from three unordered sources:
// REST responses, push events, and local optimistic writes. Every
// remote merge is idempotent and keyed by stable entity identity, and
// events for self-originated actions are discarded, so replays and
// duplicate delivery are safe to apply blindly.
type Store struct {
	mu   sync.RWMutex
	room *domain.Room

	api  API
	sess *session.Session
	now  func() time.Time

	onRemoved []func(roomID string)
}

// NewStore creates an empty Store bound to a session.
func NewStore(apiClient API, sess *session.Session) *Store {
	return &Store{
		api:  apiClient,
		sess: sess,
		now:  time.Now,
	}
}

// OnRemoved registers a terminal eviction observer, fired when the
// current user is kicked from the loaded room.
func (s *Store) OnRemoved(fn func(roomID string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onRemoved = append(s.onRemoved, fn)
}

// Load fetches the room and its tasks-with-completions, replacing any
// previously loaded room. On failure the store is left empty and the
// error is returned for the caller to retry.
func (s *Store) Load(ctx context.Context, roomID string) error {
	var (
		room  *domain.Room
		tasks []domain.Task
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		r, err := s.api.GetRoom(gctx, roomID)
		if err != nil {
			return fmt.Errorf("load room: %w", err)
		}
		room = r
		return nil
	})
	g.Go(func() error {
		t, err := s.api.ListRoomTasks(gctx, roomID)
		if err != nil {
			return fmt.Errorf("load tasks: %w", err)
		}
		tasks = t
		return nil
	})

	if err := g.Wait(); err != nil {
		s.mu.Lock()
		s.room = nil
		s.mu.Unlock()
		return err
	}

	room.Tasks = tasks

	s.mu.Lock()
	s.room = room
	s.mu.Unlock()

	l := pkglog.L()
	l.Info().Str(pkglog.FieldRoomID, roomID).Msg("roomstate: room loaded")
	return nil
}

// RoomID returns the loaded room's id, or "" when the store is empty.
func (s *Store) RoomID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.room == nil {
		return ""
	}
	return s.room.ID
}

// Loaded reports whether a room is held.
func (s *Store) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.room != nil
}

// Invalidate discards the aggregate, e.g. when navigating away.
func (s *Store) Invalidate() {
	s.mu.Lock()
	s.room = nil
	s.mu.Unlock()
}

// Snapshot returns a deep copy of the aggregate for presentation
// reads, or nil when the store is empty.
func (s *Store) Snapshot() *domain.Room {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.room == nil {
		return nil
	}
	return cloneRoom(s.room)
}

// CompleteTask applies the current user's completion optimistically,
// then confirms it over REST. On REST failure the local mutation is
// inverted and the error returned; the caller sees state return to its
// pre-call value.
func (s *Store) CompleteTask(ctx context.Context, taskID string) error {
	self := s.sess.User()

	s.mu.Lock()
	if s.room == nil {
		s.mu.Unlock()
		return fmt.Errorf("no room loaded")
	}
	roomID := s.room.ID
	task := s.room.TaskByID(taskID)
	if task == nil {
		s.mu.Unlock()
		return fmt.Errorf("unknown task %s", taskID)
	}
	if !task.AddCompletion(domain.Completion{
		UserID:      self.ID,
		Username:    self.Username,
		AvatarURL:   self.AvatarURL,
		CompletedAt: s.now(),
	}) {
		// Already completed today.
		s.mu.Unlock()
		return nil
	}
	points := task.Points
	s.adjustPoints(self.ID, points)
	s.mu.Unlock()

	if err := s.api.CompleteTask(ctx, roomID, taskID); err != nil {
		s.mu.Lock()
		if s.room != nil && s.room.ID == roomID {
			if t := s.room.TaskByID(taskID); t != nil && t.RemoveCompletion(self.ID) {
				s.adjustPoints(self.ID, -points)
			}
		}
		s.mu.Unlock()
		return fmt.Errorf("complete task: %w", err)
	}
	return nil
}

// UncompleteTask is the inverse optimistic mutation.
func (s *Store) UncompleteTask(ctx context.Context, taskID string) error {
	self := s.sess.User()

	s.mu.Lock()
	if s.room == nil {
		s.mu.Unlock()
		return fmt.Errorf("no room loaded")
	}
	roomID := s.room.ID
	task := s.room.TaskByID(taskID)
	if task == nil {
		s.mu.Unlock()
		return fmt.Errorf("unknown task %s", taskID)
	}
	removed, prior := removeCompletionKeeping(task, self.ID)
	if !removed {
		// Not completed today.
		s.mu.Unlock()
		return nil
	}
	points := task.Points
	s.adjustPoints(self.ID, -points)
	s.mu.Unlock()

	if err := s.api.UncompleteTask(ctx, roomID, taskID); err != nil {
		s.mu.Lock()
		if s.room != nil && s.room.ID == roomID {
			if t := s.room.TaskByID(taskID); t != nil && t.AddCompletion(prior) {
				s.adjustPoints(self.ID, points)
			}
		}
		s.mu.Unlock()
		return fmt.Errorf("uncomplete task: %w", err)
	}
	return nil
}

// CreateTask creates a task over REST and merges the confirmed task
// into the aggregate. The matching task:created broadcast is absorbed
// by the idempotent merge.
func (s *Store) CreateTask(ctx context.Context, req api.CreateTaskRequest) (*domain.Task, error) {
	s.mu.RLock()
	if s.room == nil {
		s.mu.RUnlock()
		return nil, fmt.Errorf("no room loaded")
	}
	roomID := s.room.ID
	s.mu.RUnlock()

	task, err := s.api.CreateTask(ctx, roomID, req)
	if err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}

	s.ApplyTaskCreated(domain.TaskCreatedEvent{RoomID: roomID, Task: *task})
	return task, nil
}

// DeleteTask deletes a task over REST and removes it locally. The
// matching task:deleted broadcast is absorbed by the idempotent merge.
func (s *Store) DeleteTask(ctx context.Context, taskID string) error {
	s.mu.RLock()
	if s.room == nil {
		s.mu.RUnlock()
		return fmt.Errorf("no room loaded")
	}
	roomID := s.room.ID
	s.mu.RUnlock()

	if err := s.api.DeleteTask(ctx, roomID, taskID); err != nil {
		return fmt.Errorf("delete task: %w", err)
	}

	s.ApplyTaskDeleted(domain.TaskDeletedEvent{RoomID: roomID, TaskID: taskID})
	return nil
}

// ApplyTaskCompleted merges a remote completion. Self-echo is
// discarded: the optimistic path already applied the effect. Points
// use the event-carried delta, never a recomputation.
func (s *Store) ApplyTaskCompleted(ev domain.TaskCompletedEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.currentRoom(ev.RoomID) || ev.UserID == s.sess.UserID() {
		return
	}
	task := s.room.TaskByID(ev.TaskID)
	if task == nil {
		return
	}
	if !task.AddCompletion(domain.Completion{
		UserID:      ev.UserID,
		Username:    ev.Username,
		AvatarURL:   ev.AvatarURL,
		CompletedAt: s.now(),
	}) {
		// Duplicate delivery.
		return
	}
	s.adjustPoints(ev.UserID, ev.Points)
}

// ApplyTaskUncompleted merges a remote uncompletion. The event carries
// no points delta, so the task's own value is reverted, mirroring the
// optimistic path.
func (s *Store) ApplyTaskUncompleted(ev domain.TaskUncompletedEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.currentRoom(ev.RoomID) || ev.UserID == s.sess.UserID() {
		return
	}
	task := s.room.TaskByID(ev.TaskID)
	if task == nil {
		return
	}
	if !task.RemoveCompletion(ev.UserID) {
		// Already absent.
		return
	}
	s.adjustPoints(ev.UserID, -task.Points)
}

// ApplyTaskCreated merges a new task by id.
func (s *Store) ApplyTaskCreated(ev domain.TaskCreatedEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.currentRoom(ev.RoomID) {
		return
	}
	if s.room.TaskByID(ev.Task.ID) != nil {
		return
	}
	s.room.Tasks = append(s.room.Tasks, ev.Task)
}

// ApplyTaskDeleted removes a task by id.
func (s *Store) ApplyTaskDeleted(ev domain.TaskDeletedEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.currentRoom(ev.RoomID) {
		return
	}
	for i := range s.room.Tasks {
		if s.room.Tasks[i].ID == ev.TaskID {
			s.room.Tasks = append(s.room.Tasks[:i], s.room.Tasks[i+1:]...)
			return
		}
	}
}

// ApplyMemberJoined merges a member by user id.
func (s *Store) ApplyMemberJoined(ev domain.MemberJoinedEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.currentRoom(ev.RoomID) {
		return
	}
	if s.room.MemberByID(ev.User.ID) != nil {
		return
	}
	s.room.Members = append(s.room.Members, domain.Member{
		User: ev.User,
		Role: domain.RoleMember,
	})
}

// ApplyMemberLeft removes a member by user id.
func (s *Store) ApplyMemberLeft(ev domain.MemberLeftEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.currentRoom(ev.RoomID) {
		return
	}
	s.removeMember(ev.UserID)
}

// ApplyMemberKicked removes a member by user id. Kicked-self is
// terminal: the aggregate is invalidated and the removed signal fires.
func (s *Store) ApplyMemberKicked(ev domain.MemberKickedEvent) {
	s.mu.Lock()
	if !s.currentRoom(ev.RoomID) {
		s.mu.Unlock()
		return
	}
	if ev.UserID == s.sess.UserID() {
		roomID := s.room.ID
		s.room = nil
		watchers := append([]func(string){}, s.onRemoved...)
		s.mu.Unlock()

		l := pkglog.L()
		l.Info().Str(pkglog.FieldRoomID, roomID).Msg("roomstate: removed from room")
		for _, fn := range watchers {
			fn(roomID)
		}
		return
	}
	s.removeMember(ev.UserID)
	s.mu.Unlock()
}

// currentRoom reports whether the event targets the loaded room.
// Callers hold the lock.
func (s *Store) currentRoom(roomID string) bool {
	return s.room != nil && s.room.ID == roomID
}

// adjustPoints applies a points delta to a member, clamped at zero.
// Callers hold the lock.
func (s *Store) adjustPoints(userID string, delta int) {
	m := s.room.MemberByID(userID)
	if m == nil {
		return
	}
	m.Points += delta
	if m.Points < 0 {
		m.Points = 0
	}
}

// removeMember removes by user id. Callers hold the lock.
func (s *Store) removeMember(userID string) {
	for i := range s.room.Members {
		if s.room.Members[i].User.ID == userID {
			s.room.Members = append(s.room.Members[:i], s.room.Members[i+1:]...)
			return
		}
	}
}

// removeCompletionKeeping removes userID's completion and returns the
// removed entry so a failed REST call can restore it unchanged.
func removeCompletionKeeping(t *domain.Task, userID string) (bool, domain.Completion) {
	for i := range t.CompletedBy {
		if t.CompletedBy[i].UserID == userID {
			c := t.CompletedBy[i]
			t.CompletedBy = append(t.CompletedBy[:i], t.CompletedBy[i+1:]...)
			return true, c
		}
	}
	return false, domain.Completion{}
}

func cloneRoom(r *domain.Room) *domain.Room {
	out := *r
	out.Members = append([]domain.Member(nil), r.Members...)
	out.Tasks = make([]domain.Task, len(r.Tasks))
	for i := range r.Tasks {
		out.Tasks[i] = r.Tasks[i]
		out.Tasks[i].CompletedBy = append([]domain.Completion(nil), r.Tasks[i].CompletedBy...)
	}
	return &out
}
