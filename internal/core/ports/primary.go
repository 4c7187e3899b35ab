package ports

import (
	"context"
	"time"

	"github.com/jupiterclapton/krewe/user-service/internal/core/domain"
)

// --- DRIVING (Ce que le core expose) ---

// LifecycleOrchestrator : points d'entrée de la cascade de cycle de vie.
// L'appel ne bloque que sur le flip primaire du compte ; chaque opération de
// la cascade part ensuite en tâche indépendante (fire and forget, loggée).
type LifecycleOrchestrator interface {
	Deactivate(ctx context.Context, accountID string) error
	Reactivate(ctx context.Context, accountID string) error

	// Wait draine les tâches en vol (shutdown et tests).
	Wait()
}

// NotificationReverter retire un acteur d'une notification agrégée, soit sur
// une action "undo" live (unfollow), soit depuis la cascade.
type NotificationReverter interface {
	RevertAction(ctx context.Context, action, actorID, receiverID string) error
	RemoveActor(ctx context.Context, n *domain.Notification, actorID string) error
}

// RelationCache : cache de sets de relations à TTL, peuplé paresseusement,
// invalidé sur mutation. L'assembleur de feed ne fait que lire.
type RelationCache interface {
	GetOrPopulate(ctx context.Context, kind domain.RelationKind, accountID string) ([]string, error)
	Populate(ctx context.Context, kind domain.RelationKind, accountID string, vals []string, ttl time.Duration) error
	Invalidate(ctx context.Context, kind domain.RelationKind, accountID string) error

	// AddMember n'ajoute que si la clé existe déjà (jamais de résurrection
	// partielle d'une clé expirée) ; RemoveMember est inconditionnel.
	AddMember(ctx context.Context, kind domain.RelationKind, accountID, val string) error
	RemoveMember(ctx context.Context, kind domain.RelationKind, accountID, val string) error

	// BlockedFor retourne bloqués ∪ bloquants ∪ suspendus : le sur-ensemble
	// que le filtrage de visibilité doit exclure.
	BlockedFor(ctx context.Context, accountID string) ([]string, error)
}
