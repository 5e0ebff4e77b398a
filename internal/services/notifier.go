package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rememory-app/backend/internal/logger"
	"github.com/rememory-app/backend/internal/platform/sendgrid"
	"github.com/rememory-app/backend/internal/repos"
	"github.com/rememory-app/backend/internal/types"
)

// NotifierService delivers lifecycle emails and records each attempt as a
// notification row. Delivery failures are recorded, not retried here; the
// SendGrid client owns transient retries.
type NotifierService interface {
	NotifyReminder(ctx context.Context, persona *types.Persona) error
	NotifyExpired(ctx context.Context, persona *types.Persona) error
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*types.Notification, error)
}

type notifierService struct {
	log           *logger.Logger
	notifications repos.NotificationRepo
	mailer        sendgrid.Client
	now           func() time.Time
}

// NewNotifierService accepts a nil mailer. With no mailer configured the
// notification rows are still written with delivered=false.
func NewNotifierService(baseLog *logger.Logger, notificationRepo repos.NotificationRepo, mailer sendgrid.Client) NotifierService {
	return &notifierService{
		log:           baseLog.With("service", "NotifierService"),
		notifications: notificationRepo,
		mailer:        mailer,
		now:           time.Now,
	}
}

func (ns *notifierService) NotifyReminder(ctx context.Context, persona *types.Persona) error {
	subject := "Rememory: 3 days left with your persona"
	body := fmt.Sprintf(
		"Hello,\n\nYour time with %s comes to an end in 3 days. "+
			"We encourage you to use the remaining conversations to say what still needs to be said.\n\n"+
			"With care,\nThe Rememory Team\n",
		persona.Name,
	)
	return ns.deliver(ctx, persona, types.NotificationTypeReminder, subject, body)
}

func (ns *notifierService) NotifyExpired(ctx context.Context, persona *types.Persona) error {
	subject := fmt.Sprintf("Rememory: your time with %s has ended", persona.Name)
	body := fmt.Sprintf(
		"Hello,\n\nYour 30-day session with %s has come to a close. "+
			"The conversation is now read-only.\n\n"+
			"We hope these conversations brought you comfort.\n\nWith care,\nThe Rememory Team\n",
		persona.Name,
	)
	return ns.deliver(ctx, persona, types.NotificationTypeExpired, subject, body)
}

func (ns *notifierService) ListByUser(ctx context.Context, userID uuid.UUID) ([]*types.Notification, error) {
	return ns.notifications.ListByUser(ctx, nil, userID)
}

func (ns *notifierService) deliver(ctx context.Context, persona *types.Persona, notificationType, subject, body string) error {
	delivered := false
	if ns.mailer != nil && persona.OwnerEmail != "" {
		_, err := ns.mailer.Send(ctx, sendgrid.SendEmailRequest{
			To:      []sendgrid.EmailAddress{{Email: persona.OwnerEmail}},
			Subject: subject,
			Text:    body,
		})
		if err != nil {
			ns.log.Warn("Notification email failed", "persona_id", persona.ID, "type", notificationType, "error", err.Error())
		} else {
			delivered = true
		}
	}

	_, err := ns.notifications.Create(ctx, nil, &types.Notification{
		ID:        uuid.New(),
		UserID:    persona.OwnerID,
		PersonaID: persona.ID,
		Type:      notificationType,
		SentAt:    ns.now(),
		Delivered: delivered,
	})
	if err != nil {
		return fmt.Errorf("failed to record %s notification: %w", notificationType, err)
	}
	return nil
}
