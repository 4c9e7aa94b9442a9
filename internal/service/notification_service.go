package service

import (
	"context"
	"log/slog"

	"blogapi/internal/models"
	"blogapi/internal/notifications"
	"blogapi/internal/observability"
	"blogapi/internal/policy"
	"blogapi/internal/presenter"
	"blogapi/internal/repository"
)

// Notifier is what the content services use to tell users about activity.
type Notifier interface {
	Notify(ctx context.Context, in NotifyInput)
}

// Pusher delivers a live event to a user's open sockets.
type Pusher interface {
	Send(ctx context.Context, userID uint, ev notifications.Event) error
}

// NotifyInput describes one notification.
type NotifyInput struct {
	RecipientID uint
	Sender      *models.User
	Type        string
	Title       string
	Message     string
	Link        string
}

type NotificationService struct {
	repo   repository.NotificationRepository
	users  repository.UserRepository
	pusher Pusher
}

// NewNotificationService builds the service. A nil pusher persists without live delivery.
func NewNotificationService(repo repository.NotificationRepository, users repository.UserRepository, pusher Pusher) *NotificationService {
	return &NotificationService{repo: repo, users: users, pusher: pusher}
}

// Notify persists and pushes a notification. Nothing is sent for a user's own
// actions or to recipients who turned notifications off. Failures are logged,
// never returned: the action that triggered the notification already succeeded.
func (s *NotificationService) Notify(ctx context.Context, in NotifyInput) {
	if in.RecipientID == 0 || (in.Sender != nil && in.Sender.ID == in.RecipientID) {
		return
	}
	log := slog.With(slog.Uint64("recipient_id", uint64(in.RecipientID)), slog.String("type", in.Type))

	profile, err := s.users.GetProfile(ctx, in.RecipientID)
	switch {
	case models.HasCode(err, models.CodeNotFound):
		// Profiles are created with the user; a missing one means defaults.
	case err != nil:
		log.WarnContext(ctx, "notification skipped, profile lookup failed", slog.String("error", err.Error()))
		observability.NotificationsTotal.WithLabelValues(in.Type, "error").Inc()
		return
	case !profile.NotificationEnabled:
		observability.NotificationsTotal.WithLabelValues(in.Type, "muted").Inc()
		return
	}

	n := &models.Notification{
		RecipientID: in.RecipientID,
		Type:        in.Type,
		Title:       in.Title,
		Message:     in.Message,
		Link:        in.Link,
	}
	if in.Sender != nil {
		n.SenderID = &in.Sender.ID
	}
	if err := s.repo.Create(ctx, n); err != nil {
		log.ErrorContext(ctx, "failed to store notification", slog.String("error", err.Error()))
		observability.NotificationsTotal.WithLabelValues(in.Type, "error").Inc()
		return
	}
	n.Sender = in.Sender

	if s.pusher == nil {
		observability.NotificationsTotal.WithLabelValues(in.Type, "stored").Inc()
		return
	}
	ev := notifications.Event{Type: "notification", Payload: presenter.NewNotificationView(n)}
	if err := s.pusher.Send(ctx, in.RecipientID, ev); err != nil {
		log.WarnContext(ctx, "notification push failed", slog.String("error", err.Error()))
		observability.NotificationsTotal.WithLabelValues(in.Type, "stored").Inc()
		return
	}
	observability.NotificationsTotal.WithLabelValues(in.Type, "pushed").Inc()
}

func (s *NotificationService) List(ctx context.Context, actor policy.Actor, unreadOnly bool, page int) (presenter.Page[presenter.NotificationView], error) {
	if err := policy.Check(policy.NotificationRead, actor, policy.Owned(actor.UserID)); err != nil {
		return presenter.Page[presenter.NotificationView]{}, err
	}
	count, err := s.repo.Count(ctx, actor.UserID, unreadOnly)
	if err != nil {
		return presenter.Page[presenter.NotificationView]{}, err
	}
	p := Paginate(count, page, DefaultPageSize)
	list, err := s.repo.List(ctx, actor.UserID, unreadOnly, p.PageSize, p.Offset)
	if err != nil {
		return presenter.Page[presenter.NotificationView]{}, err
	}
	return NewPage(p, presenter.NewNotificationViews(list)), nil
}

func (s *NotificationService) UnreadCount(ctx context.Context, actor policy.Actor) (int64, error) {
	if err := policy.Check(policy.NotificationRead, actor, policy.Owned(actor.UserID)); err != nil {
		return 0, err
	}
	return s.repo.Count(ctx, actor.UserID, true)
}

// MarkRead marks one of the actor's notifications read. Other users'
// notifications are reported as missing.
func (s *NotificationService) MarkRead(ctx context.Context, actor policy.Actor, id uint) error {
	if err := policy.Check(policy.NotificationRead, actor, policy.Owned(actor.UserID)); err != nil {
		return err
	}
	return s.repo.MarkRead(ctx, id, actor.UserID)
}

func (s *NotificationService) MarkAllRead(ctx context.Context, actor policy.Actor) (int64, error) {
	if err := policy.Check(policy.NotificationRead, actor, policy.Owned(actor.UserID)); err != nil {
		return 0, err
	}
	return s.repo.MarkAllRead(ctx, actor.UserID)
}
