package eventbroker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/jupiterclapton/krewe/user-service/internal/core/domain"
)

type NatsPublisher struct {
	nc *nats.Conn
}

func NewNatsPublisher(nc *nats.Conn) *NatsPublisher {
	return &NatsPublisher{nc: nc}
}

// Contrats implicites avec les consommateurs (messaging, email, KYC, socket).
type LifecycleChangedEvent struct {
	AccountID string    `json:"account_id"`
	Operation string    `json:"operation"` // "deactivate" | "reactivate"
	At        time.Time `json:"at"`
}

type UnreadChangedEvent struct {
	ReceiverID string `json:"receiver_id"`
	Count      int64  `json:"count"`
	Action     string `json:"action"`
}

func (p *NatsPublisher) PublishCascadeResult(ctx context.Context, res domain.CascadeResult) error {
	return p.publish(ctx, "user.lifecycle.result", res)
}

func (p *NatsPublisher) PublishLifecycleChanged(ctx context.Context, accountID string, dir domain.Direction) error {
	subject := "user.deactivated"
	if dir == domain.DirReactivate {
		subject = "user.reactivated"
	}
	return p.publish(ctx, subject, LifecycleChangedEvent{
		AccountID: accountID,
		Operation: string(dir),
		At:        time.Now().UTC(),
	})
}

func (p *NatsPublisher) PublishUnreadChanged(ctx context.Context, receiverID string, count int64, action string) error {
	return p.publish(ctx, "notification.unread.changed", UnreadChangedEvent{
		ReceiverID: receiverID,
		Count:      count,
		Action:     action,
	})
}

func (p *NatsPublisher) publish(ctx context.Context, subject string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshalling error: %w", err)
	}

	msg := &nats.Msg{
		Subject: subject,
		Data:    data,
		Header:  nats.Header{},
	}
	// 👇 INJECTION DU TRACE ID DANS LES HEADERS NATS : le consommateur
	// raccroche son span à la cascade qui a émis l'événement.
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(msg.Header))

	slog.Info("📢 Publishing event with trace context", "topic", subject)

	return p.nc.PublishMsg(msg)
}
