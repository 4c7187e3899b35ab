package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/jupiterclapton/krewe/user-service/internal/core/domain"
	"github.com/jupiterclapton/krewe/user-service/internal/core/ports"
)

type EventHandler struct {
	lifecycle ports.LifecycleOrchestrator
	reverter  ports.NotificationReverter
	relCache  ports.RelationCache
}

func NewEventHandler(lifecycle ports.LifecycleOrchestrator, reverter ports.NotificationReverter, relCache ports.RelationCache) *EventHandler {
	return &EventHandler{lifecycle: lifecycle, reverter: reverter, relCache: relCache}
}

// Subscribe branche tous les handlers sur la connexion NATS.
func (h *EventHandler) Subscribe(nc *nats.Conn) error {
	subs := map[string]nats.MsgHandler{
		"user.deactivate.requested": h.HandleDeactivateRequested,
		"user.reactivate.requested": h.HandleReactivateRequested,
		"graph.followed":            h.HandleFollowed,
		"graph.unfollowed":          h.HandleUnfollowed,
		"user.blocked":              h.HandleBlocked,
		"user.unblocked":            h.HandleUnblocked,
		"clan.left":                 h.HandleClanLeft,
	}
	for subject, handler := range subs {
		if _, err := nc.Subscribe(subject, handler); err != nil {
			return err
		}
		slog.Info("👂 Subscribed", "subject", subject)
	}
	return nil
}

type LifecycleRequest struct {
	AccountID string `json:"account_id"`
}

type GraphEvent struct {
	ActorID  string `json:"actor_id"`  // celui qui (un)follow / bloque
	TargetID string `json:"target_id"` // celui qui subit
}

func (h *EventHandler) HandleDeactivateRequested(msg *nats.Msg) {
	h.handleLifecycle(msg, "process_deactivate_requested", h.lifecycle.Deactivate)
}

func (h *EventHandler) HandleReactivateRequested(msg *nats.Msg) {
	h.handleLifecycle(msg, "process_reactivate_requested", h.lifecycle.Reactivate)
}

func (h *EventHandler) handleLifecycle(msg *nats.Msg, spanName string, op func(context.Context, string) error) {
	ctx, span := extractSpan(msg, spanName)
	defer span.End()

	var req LifecycleRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		span.RecordError(err)
		slog.Error("❌ Invalid event format", "subject", msg.Subject, "error", err)
		return
	}

	slog.Info("📨 Lifecycle request received", "subject", msg.Subject, "account_id", req.AccountID)

	// Le flip primaire est synchrone et court ; la cascade part ensuite en
	// tâches indépendantes côté service. 10s suffisent ici.
	childCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := op(childCtx, req.AccountID); err != nil {
		span.RecordError(err)
		slog.Error("❌ Lifecycle flip failed", "subject", msg.Subject, "account_id", req.AccountID, "error", err)
	}
}

// HandleUnfollowed : undo live d'un follow. On retire l'acteur de la
// notification agrégée du receveur et on le retire du set followed en cache.
func (h *EventHandler) HandleUnfollowed(msg *nats.Msg) {
	ctx, span := extractSpan(msg, "process_unfollowed")
	defer span.End()

	event, ok := decodeGraphEvent(msg, span)
	if !ok {
		return
	}

	childCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := h.reverter.RevertAction(childCtx, "follow", event.ActorID, event.TargetID); err != nil {
		span.RecordError(err)
		slog.Error("❌ Notification revert failed", "actor_id", event.ActorID, "receiver_id", event.TargetID, "error", err)
	}
	if err := h.relCache.RemoveMember(childCtx, domain.RelationFollowed, event.ActorID, event.TargetID); err != nil {
		span.RecordError(err)
		slog.Error("❌ Cache eviction failed", "actor_id", event.ActorID, "error", err)
	}
}

func (h *EventHandler) HandleFollowed(msg *nats.Msg) {
	ctx, span := extractSpan(msg, "process_followed")
	defer span.End()

	event, ok := decodeGraphEvent(msg, span)
	if !ok {
		return
	}

	childCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := h.relCache.AddMember(childCtx, domain.RelationFollowed, event.ActorID, event.TargetID); err != nil {
		span.RecordError(err)
		slog.Error("❌ Cache update failed", "actor_id", event.ActorID, "error", err)
	}
}

// Un block change la visibilité dans les deux sens : on invalide les deux sets.
func (h *EventHandler) HandleBlocked(msg *nats.Msg)   { h.invalidateBlocked(msg, "process_blocked") }
func (h *EventHandler) HandleUnblocked(msg *nats.Msg) { h.invalidateBlocked(msg, "process_unblocked") }

func (h *EventHandler) invalidateBlocked(msg *nats.Msg, spanName string) {
	ctx, span := extractSpan(msg, spanName)
	defer span.End()

	event, ok := decodeGraphEvent(msg, span)
	if !ok {
		return
	}

	childCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	for _, id := range []string{event.ActorID, event.TargetID} {
		if err := h.relCache.Invalidate(childCtx, domain.RelationBlocked, id); err != nil {
			span.RecordError(err)
			slog.Error("❌ Cache invalidation failed", "account_id", id, "error", err)
		}
	}
}

type ClanEvent struct {
	ClanID   string `json:"clan_id"`
	MemberID string `json:"member_id"`
}

func (h *EventHandler) HandleClanLeft(msg *nats.Msg) {
	ctx, span := extractSpan(msg, "process_clan_left")
	defer span.End()

	var event ClanEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		span.RecordError(err)
		slog.Error("❌ Invalid event format", "subject", msg.Subject, "error", err)
		return
	}

	childCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := h.relCache.RemoveMember(childCtx, domain.RelationClanMember, event.MemberID, event.ClanID); err != nil {
		span.RecordError(err)
		slog.Error("❌ Cache eviction failed", "member_id", event.MemberID, "clan_id", event.ClanID, "error", err)
	}
}

func decodeGraphEvent(msg *nats.Msg, span trace.Span) (GraphEvent, bool) {
	var event GraphEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		span.RecordError(err)
		slog.Error("❌ Invalid event format", "subject", msg.Subject, "error", err)
		return event, false
	}
	return event, true
}

// extractSpan raccroche le traitement à la trace du producteur via les
// headers NATS, puis ouvre un span consumer.
func extractSpan(msg *nats.Msg, name string) (context.Context, trace.Span) {
	ctx := context.Background()
	ctx = otel.GetTextMapPropagator().Extract(ctx, propagation.HeaderCarrier(msg.Header))

	tracer := otel.Tracer("user-service")
	return tracer.Start(ctx, name, trace.WithSpanKind(trace.SpanKindConsumer))
}
