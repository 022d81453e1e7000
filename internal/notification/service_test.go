package notification

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nekogravitycat/campus-borrow-backend/internal/resource"
)

type memRepo struct {
	mu   sync.Mutex
	rows []*Notification
}

func key(n *Notification) string {
	rel := ""
	if n.RelatedID != nil {
		rel = *n.RelatedID
	}
	return n.UserEmail + "|" + n.ActionType + "|" + rel
}

func (r *memRepo) Create(ctx context.Context, n *Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n.ID = fmt.Sprintf("n-%d", len(r.rows)+1)
	r.rows = append(r.rows, n)
	return nil
}

func (r *memRepo) CreateOnce(ctx context.Context, n *Notification) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.rows {
		if key(existing) == key(n) {
			return false, nil
		}
	}
	n.ID = fmt.Sprintf("n-%d", len(r.rows)+1)
	r.rows = append(r.rows, n)
	return true, nil
}

func (r *memRepo) ListByEmail(ctx context.Context, email string, limit int) ([]*Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Notification
	for i := len(r.rows) - 1; i >= 0 && len(out) < limit; i-- {
		if r.rows[i].UserEmail == email {
			out = append(out, r.rows[i])
		}
	}
	return out, nil
}

func (r *memRepo) UnreadCount(ctx context.Context, email string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, row := range r.rows {
		if row.UserEmail == email && !row.IsRead {
			n++
		}
	}
	return n, nil
}

func (r *memRepo) MarkRead(ctx context.Context, email, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if row.ID == id && row.UserEmail == email {
			row.IsRead = true
			return nil
		}
	}
	return ErrNotFound
}

func (r *memRepo) MarkAllRead(ctx context.Context, email string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, row := range r.rows {
		if row.UserEmail == email && !row.IsRead {
			row.IsRead = true
			n++
		}
	}
	return n, nil
}

func (r *memRepo) DeleteAll(ctx context.Context, email string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var kept []*Notification
	var n int64
	for _, row := range r.rows {
		if row.UserEmail == email {
			n++
			continue
		}
		kept = append(kept, row)
	}
	r.rows = kept
	return n, nil
}

type inlineDispatcher struct{}

func (inlineDispatcher) Submit(task func()) error {
	task()
	return nil
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (m *recordingMailer) Send(ctx context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, to+": "+subject)
	return m.err
}

func TestNotifyStoresAndMails(t *testing.T) {
	ctx := context.Background()
	repo := &memRepo{}
	mailer := &recordingMailer{}
	svc := NewService(repo, mailer, inlineDispatcher{})

	n := RequestSubmitted("a@campus.edu", resource.KindItem, "Projector", "req-1")
	require.NoError(t, svc.Notify(ctx, n))

	assert.NotEmpty(t, n.ID)
	assert.Equal(t, ActionItemRequest, n.ActionType)
	assert.Equal(t, []string{"a@campus.edu: Item Request Submitted!"}, mailer.sent)
}

func TestNotifyMailFailureIsNotFatal(t *testing.T) {
	ctx := context.Background()
	repo := &memRepo{}
	svc := NewService(repo, &recordingMailer{err: errors.New("smtp down")}, inlineDispatcher{})

	require.NoError(t, svc.Notify(ctx, RequestReturned("a@campus.edu", resource.KindRoom, "AVR", "req-1")))
	assert.Len(t, repo.rows, 1)
}

func TestNotifyRequiresEmail(t *testing.T) {
	svc := NewService(&memRepo{}, &recordingMailer{}, inlineDispatcher{})

	err := svc.Notify(context.Background(), RequestReturned(" ", resource.KindItem, "Mic", "req-1"))
	assert.ErrorIs(t, err, ErrEmailRequired)

	_, err = svc.NotifyOnce(context.Background(), RequestOverdue("", resource.KindItem, "Mic", "req-1"))
	assert.ErrorIs(t, err, ErrEmailRequired)
}

func TestNotifyOnceIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := &memRepo{}
	mailer := &recordingMailer{}
	svc := NewService(repo, mailer, inlineDispatcher{})

	for i := 0; i < 3; i++ {
		created, err := svc.NotifyOnce(ctx, RequestOverdue("a@campus.edu", resource.KindItem, "Mic", "req-1"))
		require.NoError(t, err)
		assert.Equal(t, i == 0, created)
	}

	// A different request is a different notification.
	created, err := svc.NotifyOnce(ctx, RequestOverdue("a@campus.edu", resource.KindItem, "Mic", "req-2"))
	require.NoError(t, err)
	assert.True(t, created)

	assert.Len(t, repo.rows, 2)
	assert.Len(t, mailer.sent, 2)
}

func TestInboxOperations(t *testing.T) {
	ctx := context.Background()
	repo := &memRepo{}
	svc := NewService(repo, &recordingMailer{}, inlineDispatcher{})

	require.NoError(t, svc.Notify(ctx, RequestSubmitted("a@campus.edu", resource.KindItem, "Mic", "r1")))
	require.NoError(t, svc.Notify(ctx, RequestSubmitted("a@campus.edu", resource.KindRoom, "AVR", "r2")))
	require.NoError(t, svc.Notify(ctx, RequestSubmitted("b@campus.edu", resource.KindRoom, "AVR", "r3")))

	items, unread, err := svc.List(ctx, "a@campus.edu")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, 2, unread)
	assert.Equal(t, ActionRoomRequest, items[0].ActionType, "newest first")

	require.NoError(t, svc.MarkRead(ctx, "a@campus.edu", items[0].ID))
	assert.ErrorIs(t, svc.MarkRead(ctx, "b@campus.edu", items[1].ID), ErrNotFound, "cannot touch another user's inbox")

	count, err := svc.UnreadCount(ctx, "a@campus.edu")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	marked, err := svc.MarkAllRead(ctx, "a@campus.edu")
	require.NoError(t, err)
	assert.Equal(t, int64(1), marked)

	deleted, err := svc.ClearAll(ctx, "a@campus.edu")
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	count, err = svc.UnreadCount(ctx, "b@campus.edu")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
