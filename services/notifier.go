package services

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"orquidea/metrics"
	"orquidea/models"
	"orquidea/notify"
	"orquidea/providers/orcid"
)

// EmailSender delivers a message to one address.
type EmailSender interface {
	Send(ctx context.Context, to string, msg notify.Message) error
}

// PushSender delivers a message to one stored push subscription.
type PushSender interface {
	Send(ctx context.Context, subscription []byte, msg notify.Message) error
}

// SubscriptionPruner removes push subscriptions the push service reported as gone.
type SubscriptionPruner interface {
	DeletePushSubscription(ctx context.Context, userID uint) (bool, error)
}

// DispatchReport counts delivery attempts of one Notify call.
type DispatchReport struct {
	Sent   int
	Failed int
}

// Notifier fans a batch of new publications out to every subscriber.
// A nil channel is disabled.
type Notifier struct {
	Email  EmailSender
	Push   PushSender
	Pruner SubscriptionPruner
	Logger *zap.Logger
}

// NewNotifier creates a Notifier. Pass nil for disabled channels.
func NewNotifier(email EmailSender, push PushSender, pruner SubscriptionPruner, logger *zap.Logger) *Notifier {
	return &Notifier{Email: email, Push: push, Pruner: pruner, Logger: logger}
}

// BuildMessage lists exactly the given works.
func BuildMessage(researcher models.Researcher, works []orcid.Work) notify.Message {
	titles := make([]string, 0, len(works))
	for _, w := range works {
		titles = append(titles, WorkLabel(w))
	}
	name := researcher.Name
	if name == "" {
		name = researcher.OrcidID
	}
	return notify.Message{OrcidID: researcher.OrcidID, ResearcherName: name, Titles: titles}
}

// Notify attempts every channel for every subscriber. Failures are logged
// and counted; they never stop delivery to the remaining subscribers.
func (n *Notifier) Notify(ctx context.Context, researcher models.Researcher, works []orcid.Work, subscribers []models.Subscriber) DispatchReport {
	var report DispatchReport
	if len(works) == 0 || len(subscribers) == 0 {
		return report
	}
	msg := BuildMessage(researcher, works)
	log := n.Logger.With(zap.String("orcid", researcher.OrcidID))

	for _, sub := range subscribers {
		if n.Email != nil {
			err := n.Email.Send(ctx, sub.Email, msg)
			n.record(&report, "email", err)
			if err != nil {
				log.Error("Email notification failed", zap.String("email", sub.Email), zap.Error(err))
			}
		}

		if n.Push != nil && sub.HasPush() {
			err := n.Push.Send(ctx, sub.PushSubscription, msg)
			n.record(&report, "push", err)
			switch {
			case errors.Is(err, notify.ErrSubscriptionGone):
				log.Info("Push subscription expired, removing it", zap.Uint("user_id", sub.UserID))
				n.prune(ctx, log, sub.UserID)
			case err != nil:
				log.Error("Push notification failed", zap.Uint("user_id", sub.UserID), zap.Error(err))
			}
		}
	}

	log.Info("Notifications dispatched",
		zap.Int("subscribers", len(subscribers)),
		zap.Int("sent", report.Sent),
		zap.Int("failed", report.Failed))
	return report
}

func (n *Notifier) record(report *DispatchReport, channel string, err error) {
	if err != nil {
		report.Failed++
		metrics.Notifications.WithLabelValues(channel, "failed").Inc()
		return
	}
	report.Sent++
	metrics.Notifications.WithLabelValues(channel, "sent").Inc()
}

func (n *Notifier) prune(ctx context.Context, log *zap.Logger, userID uint) {
	if n.Pruner == nil {
		return
	}
	if _, err := n.Pruner.DeletePushSubscription(ctx, userID); err != nil {
		log.Warn("Failed to remove expired push subscription", zap.Uint("user_id", userID), zap.Error(err))
	}
}
