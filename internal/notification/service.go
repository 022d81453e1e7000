package notification

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nekogravitycat/campus-borrow-backend/internal/mail"
)

const mailTimeout = 30 * time.Second

// Dispatcher runs tasks in the background. *ants.Pool satisfies it.
type Dispatcher interface {
	Submit(task func()) error
}

type Service interface {
	// Notify stores n and mails a copy to the recipient.
	Notify(ctx context.Context, n *Notification) error
	// NotifyOnce is Notify guarded by (email, action type, related id) uniqueness.
	// It reports whether a new notification was created.
	NotifyOnce(ctx context.Context, n *Notification) (bool, error)

	List(ctx context.Context, email string) ([]*Notification, int, error)
	UnreadCount(ctx context.Context, email string) (int, error)
	MarkRead(ctx context.Context, email, id string) error
	MarkAllRead(ctx context.Context, email string) (int64, error)
	ClearAll(ctx context.Context, email string) (int64, error)
}

type service struct {
	repo       Repository
	mailer     mail.Mailer
	dispatcher Dispatcher
}

func NewService(repo Repository, mailer mail.Mailer, dispatcher Dispatcher) Service {
	return &service{
		repo:       repo,
		mailer:     mailer,
		dispatcher: dispatcher,
	}
}

func (s *service) Notify(ctx context.Context, n *Notification) error {
	if strings.TrimSpace(n.UserEmail) == "" {
		return ErrEmailRequired
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return err
	}
	s.deliver(n)
	return nil
}

func (s *service) NotifyOnce(ctx context.Context, n *Notification) (bool, error) {
	if strings.TrimSpace(n.UserEmail) == "" {
		return false, ErrEmailRequired
	}
	created, err := s.repo.CreateOnce(ctx, n)
	if err != nil {
		return false, err
	}
	if created {
		s.deliver(n)
	}
	return created, nil
}

// deliver mails the notification in the background. Failures are logged only.
func (s *service) deliver(n *Notification) {
	email, title, message := n.UserEmail, n.Title, n.Message
	task := func() {
		ctx, cancel := context.WithTimeout(context.Background(), mailTimeout)
		defer cancel()
		if err := s.mailer.Send(ctx, email, title, message); err != nil {
			zap.L().Warn("notification mail failed", zap.String("to", email), zap.Error(err))
		}
	}
	if err := s.dispatcher.Submit(task); err != nil {
		zap.L().Warn("notification mail dropped", zap.String("to", email), zap.Error(err))
	}
}

// List returns the most recent notifications of a user and the number still unread.
func (s *service) List(ctx context.Context, email string) ([]*Notification, int, error) {
	items, err := s.repo.ListByEmail(ctx, email, ListLimit)
	if err != nil {
		return nil, 0, err
	}
	unread, err := s.repo.UnreadCount(ctx, email)
	if err != nil {
		return nil, 0, err
	}
	return items, unread, nil
}

func (s *service) UnreadCount(ctx context.Context, email string) (int, error) {
	return s.repo.UnreadCount(ctx, email)
}

func (s *service) MarkRead(ctx context.Context, email, id string) error {
	return s.repo.MarkRead(ctx, email, id)
}

func (s *service) MarkAllRead(ctx context.Context, email string) (int64, error) {
	return s.repo.MarkAllRead(ctx, email)
}

func (s *service) ClearAll(ctx context.Context, email string) (int64, error) {
	return s.repo.DeleteAll(ctx, email)
}
