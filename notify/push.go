package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"
	"go.uber.org/zap"

	"orquidea/config"
)

// ErrSubscriptionGone is returned when the push service reports the endpoint as expired.
var ErrSubscriptionGone = errors.New("push subscription gone")

// Pusher delivers web push notifications signed with the VAPID key pair.
type Pusher struct {
	options webpush.Options
	logger  *zap.Logger
}

// NewPusher validates the VAPID settings.
func NewPusher(cfg *config.Config, logger *zap.Logger) (*Pusher, error) {
	if cfg.VAPIDPublicKey == "" || cfg.VAPIDPrivateKey == "" {
		return nil, fmt.Errorf("%w: VAPID_PUBLIC_KEY and VAPID_PRIVATE_KEY are required for the push channel", ErrConfiguration)
	}
	subject := cfg.VAPIDSubject
	if subject == "" {
		subject = cfg.MailFrom
	}
	if subject == "" {
		return nil, fmt.Errorf("%w: VAPID_SUBJECT is required for the push channel", ErrConfiguration)
	}
	return &Pusher{
		options: webpush.Options{
			HTTPClient:      &http.Client{Timeout: 30 * time.Second},
			Subscriber:      subject,
			VAPIDPublicKey:  cfg.VAPIDPublicKey,
			VAPIDPrivateKey: cfg.VAPIDPrivateKey,
			TTL:             cfg.PushTTL,
		},
		logger: logger,
	}, nil
}

// ParseSubscription decodes a browser PushSubscription JSON document.
func ParseSubscription(raw []byte) (*webpush.Subscription, error) {
	var sub webpush.Subscription
	if err := json.Unmarshal(raw, &sub); err != nil {
		return nil, fmt.Errorf("decode push subscription: %w", err)
	}
	if sub.Endpoint == "" {
		return nil, errors.New("push subscription has no endpoint")
	}
	return &sub, nil
}

// Send pushes msg to the stored subscription.
func (p *Pusher) Send(ctx context.Context, subscription []byte, msg Message) error {
	sub, err := ParseSubscription(subscription)
	if err != nil {
		return err
	}
	payload, err := msg.PushPayload()
	if err != nil {
		return err
	}

	opts := p.options
	resp, err := webpush.SendNotificationWithContext(ctx, payload, sub, &opts)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return fmt.Errorf("%w: status %d", ErrSubscriptionGone, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("push service returned status %d: %s", resp.StatusCode, body)
	}
	p.logger.Debug("Push notification sent", zap.String("endpoint", sub.Endpoint))
	return nil
}
