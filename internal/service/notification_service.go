package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/marketplace-accounts/internal/config"
	"github.com/spec-kit/marketplace-accounts/internal/events"
)

// NotificationService handles emitting notifications for account events.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.NotificationConfig
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventAccountProvisioned, n.handleAccountProvisioned)
	n.dispatcher.Subscribe(events.EventProfessionalPromoted, n.handleProfessionalPromoted)
	n.dispatcher.Subscribe(events.EventRoleChanged, n.handleRoleChanged)
	n.dispatcher.Subscribe(events.EventProvisioningCompensated, n.handleCompensated)
	n.dispatcher.Subscribe(events.EventIdentityOrphaned, n.handleIdentityOrphaned)
}

func (n *NotificationService) handleAccountProvisioned(ctx context.Context, event events.Event) error {
	n.logger.Info("AccountProvisioned", zap.String("user_id", event.UserID), zap.Any("payload", event.Payload))
	n.sendWelcomeEmailStub(ctx, event)
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleProfessionalPromoted(ctx context.Context, event events.Event) error {
	n.logger.Info("ProfessionalPromoted", zap.String("user_id", event.UserID), zap.Any("payload", event.Payload))
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleRoleChanged(ctx context.Context, event events.Event) error {
	fields := []zap.Field{zap.String("user_id", event.UserID), zap.Any("payload", event.Payload)}
	if event.ActorID != nil {
		fields = append(fields, zap.String("actor_id", *event.ActorID))
	}
	n.logger.Info("RoleChanged", fields...)
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleCompensated(_ context.Context, event events.Event) error {
	n.logger.Warn("ProvisioningCompensated", zap.String("user_id", event.UserID), zap.Any("payload", event.Payload))
	return nil
}

func (n *NotificationService) handleIdentityOrphaned(ctx context.Context, event events.Event) error {
	n.logger.Error("IdentityOrphaned", zap.String("user_id", event.UserID), zap.Any("payload", event.Payload))
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) sendWelcomeEmailStub(_ context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.EmailFrom) == "" {
		return
	}
	payload, ok := event.Payload.(events.AccountProvisionedPayload)
	if !ok {
		return
	}
	n.logger.Debug("sendWelcomeEmailStub",
		zap.String("from", n.cfg.EmailFrom),
		zap.String("to", payload.Email),
		zap.String("user_id", event.UserID))
}

func (n *NotificationService) sendWebhookNotificationStub(_ context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.WebhookURL) == "" {
		return
	}
	n.logger.Debug("sendWebhookNotificationStub",
		zap.String("url", n.cfg.WebhookURL),
		zap.String("user_id", event.UserID),
		zap.String("event_type", string(event.Type)))
}
