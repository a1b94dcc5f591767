package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"workbridge/internal/cache"
	"workbridge/internal/email"
	"workbridge/internal/model"
	"workbridge/internal/repo"

	"go.uber.org/zap"
)

// NotifyRequest describes one fan-out target.
type NotifyRequest struct {
	TargetID string
	Category string
	Message  string
	Title    string
	Link     string
	// ActorID is the user whose action triggered the notification; the
	// email cooldown is keyed on (ActorID, TargetID).
	ActorID   string
	SendEmail bool
}

// Notifier turns domain events into in-app records and throttled emails.
// Every failure inside is captured and logged; a notification must never
// fail the operation that triggered it.
type Notifier interface {
	// Notify evaluates preferences and delivers to one target. The error
	// return exists for tests and for DispatchAll's per-target capture;
	// primary-path callers go through Dispatch and never see it.
	Notify(ctx context.Context, req NotifyRequest) error
	// Dispatch runs Notify in the background, detached from the caller's
	// context and lifetime.
	Dispatch(req NotifyRequest)
	// DispatchAll settles every target independently: one failing target
	// neither blocks nor fails the others.
	DispatchAll(reqs []NotifyRequest)
}

const dispatchTimeout = 15 * time.Second

type notificationService struct {
	notifications repo.NotificationRepository
	preferences   repo.PreferenceRepository
	users         repo.UserRepository
	sender        email.Sender
	cooldown      cache.CooldownStore
	logger        *zap.Logger
}

func NewNotificationService(
	notifications repo.NotificationRepository,
	preferences repo.PreferenceRepository,
	users repo.UserRepository,
	sender email.Sender,
	cooldown cache.CooldownStore,
	logger *zap.Logger,
) Notifier {
	return &notificationService{
		notifications: notifications,
		preferences:   preferences,
		users:         users,
		sender:        sender,
		cooldown:      cooldown,
		logger:        logger,
	}
}

func (s *notificationService) Notify(ctx context.Context, req NotifyRequest) error {
	if req.TargetID == "" {
		return fmt.Errorf("notify: missing target")
	}

	// Preference read failures degrade to defaults rather than dropping
	// the notification.
	pref, err := s.preferences.GetForUser(ctx, req.TargetID)
	if err != nil {
		pref = model.DefaultPreference(req.TargetID)
	}

	var notificationID string
	if pref.InAppNotifications && pref.CategoryEnabled(req.Category) {
		n := &model.Notification{
			UserID:    req.TargetID,
			Type:      req.Category,
			Title:     req.Title,
			Message:   req.Message,
			Link:      req.Link,
			CreatedAt: time.Now().UTC(),
		}
		notificationID, err = s.notifications.Insert(ctx, n)
		if err != nil {
			// Best-effort: log and keep going, the email leg may still
			// succeed.
			s.logger.Warn("failed to create in-app notification",
				zap.String("user_id", req.TargetID),
				zap.String("category", req.Category),
				zap.Error(err),
			)
		}
	}

	if !req.SendEmail || !pref.EmailNotifications || !pref.CategoryEnabled(req.Category) {
		return nil
	}

	if req.Category == model.NotificationMessage && req.ActorID != "" {
		ok, err := s.cooldown.Acquire(ctx, req.ActorID, req.TargetID)
		if err != nil {
			s.logger.Warn("cooldown check failed, skipping email",
				zap.String("user_id", req.TargetID),
				zap.Error(err),
			)
			return nil
		}
		if !ok {
			s.logger.Debug("message email suppressed by cooldown",
				zap.String("actor_id", req.ActorID),
				zap.String("target_id", req.TargetID),
			)
			return nil
		}
	}

	target, err := s.users.GetByUserID(ctx, req.TargetID)
	if err != nil || target == nil || target.Email == "" {
		s.logger.Warn("cannot resolve email recipient",
			zap.String("user_id", req.TargetID),
			zap.Error(err),
		)
		return err
	}

	title := req.Title
	if title == "" {
		title = "You have a new notification"
	}
	html, err := email.RenderNotification(email.NotificationData{
		UserName: target.Summary().Username,
		Title:    title,
		Message:  req.Message,
		Link:     req.Link,
	})
	if err != nil {
		s.logger.Warn("failed to render notification email", zap.Error(err))
		return err
	}

	if err := s.sender.Send(target.Email, title, html); err != nil {
		s.logger.Warn("failed to send notification email",
			zap.String("user_id", req.TargetID),
			zap.Error(err),
		)
		return err
	}

	if notificationID != "" {
		if err := s.notifications.MarkEmailSent(ctx, notificationID); err != nil {
			s.logger.Warn("failed to flag email sent",
				zap.String("notification_id", notificationID),
				zap.Error(err),
			)
		}
	}
	return nil
}

func (s *notificationService) Dispatch(req NotifyRequest) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
		defer cancel()
		if err := s.Notify(ctx, req); err != nil {
			s.logger.Warn("notification dispatch failed",
				zap.String("user_id", req.TargetID),
				zap.String("category", req.Category),
				zap.Error(err),
			)
		}
	}()
}

func (s *notificationService) DispatchAll(reqs []NotifyRequest) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
		defer cancel()

		errs := make([]error, len(reqs))
		var wg sync.WaitGroup
		for i, req := range reqs {
			wg.Add(1)
			go func(i int, req NotifyRequest) {
				defer wg.Done()
				errs[i] = s.Notify(ctx, req)
			}(i, req)
		}
		wg.Wait()

		for i, err := range errs {
			if err != nil {
				s.logger.Warn("notification target failed",
					zap.String("user_id", reqs[i].TargetID),
					zap.String("category", reqs[i].Category),
					zap.Error(err),
				)
			}
		}
	}()
}
