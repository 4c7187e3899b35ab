package ports

import (
	"context"
	"time"

	"github.com/jupiterclapton/krewe/user-service/internal/core/domain"
)

// --- DRIVEN (Ce dont le core a besoin) ---

// Store est la frontière avec le document store. Tous les filtres sont des
// conjonctions, toutes les updates des set/inc/push/pull — rien d'autre.
type Store interface {
	// Find retourne les documents qui matchent, projetés sur fields
	// (tous les champs si fields est vide).
	Find(ctx context.Context, coll string, filter domain.Filter, fields ...string) ([]domain.Doc, error)

	// UpdateMany applique update à tous les documents qui matchent et
	// retourne le nombre de documents modifiés.
	UpdateMany(ctx context.Context, coll string, filter domain.Filter, update domain.Update) (int64, error)

	// BulkUpdate exécute un batch d'updates unitaires. Les incréments
	// doivent être atomiques côté store (une commande par op, jamais de
	// read-modify-write). Un batch vide est un no-op.
	BulkUpdate(ctx context.Context, coll string, ops []domain.BulkOp) (int64, error)

	// FindOneAndUpdate modifie et retourne UN document, ou nil si aucun ne
	// matche le filtre.
	FindOneAndUpdate(ctx context.Context, coll string, filter domain.Filter, update domain.Update) (domain.Doc, error)
}

// UserRepository : accès typé au compte (le flip primaire et le compteur de
// notifications passent par ici, le reste de la cascade par Store).
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)

	// FlipLifecycle bascule le statut primaire du compte selon la direction,
	// avec le prédicat d'idempotence (deactivate ne matche qu'un compte
	// actif, reactivate qu'un compte banni). Retourne nil, nil si aucun
	// compte ne matche : no-op, pas une erreur.
	FlipLifecycle(ctx context.Context, id string, dir domain.Direction) (*domain.User, error)

	// FlipCompanyOf bascule le compte company appartenant à ownerID, s'il
	// existe et matche le prédicat de la direction.
	FlipCompanyOf(ctx context.Context, ownerID string, dir domain.Direction) (*domain.User, error)

	// SetNotificationCount écrit le compteur non-lu. Volontairement
	// read-then-write côté appelant : le décrément est conditionné par
	// lastNotificationAccessTime, un $inc aveugle serait faux.
	SetNotificationCount(ctx context.Context, id string, count int64) error
}

// NotificationRepository : accès typé aux notifications agrégées pour le
// compacteur (le flip de flags de la cascade passe par Store).
type NotificationRepository interface {
	// FindLive retourne la notification active (receiver, actor, action), ou
	// domain.ErrNotificationNotFound.
	FindLive(ctx context.Context, receiverID, actorID, action string) (*domain.Notification, error)

	// FindAuthored retourne les notifications actives où actorID figure dans
	// actorIdArr.
	FindAuthored(ctx context.Context, actorID string) ([]*domain.Notification, error)

	// Save réécrit les listes d'acteurs/contributeurs et le compteur.
	Save(ctx context.Context, n *domain.Notification) error

	Delete(ctx context.Context, id string) error
}

// Cache est la frontière avec le tier cache : sémantique set (SADD/SMEMBERS/
// SREM/EXPIRE/EXISTS) plus clé simple avec TTL (SET/GET/DEL). Non durable.
type Cache interface {
	SetMembers(ctx context.Context, key string) ([]string, error)
	AddMembers(ctx context.Context, key string, vals []string, ttl time.Duration) error
	RemoveMember(ctx context.Context, key, val string) error
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error

	Set(ctx context.Context, key, val string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
}

// EventPublisher émet les événements fire-and-forget du cycle de vie. Aucune
// réponse n'est attendue : un échec de publication est loggé, jamais propagé
// à la cascade.
type EventPublisher interface {
	// PublishCascadeResult : un signal par sous-opération, booléen de succès.
	PublishCascadeResult(ctx context.Context, res domain.CascadeResult) error

	// PublishLifecycleChanged : l'événement global consommé par les
	// intégrations messaging / email / KYC.
	PublishLifecycleChanged(ctx context.Context, accountID string, dir domain.Direction) error

	// PublishUnreadChanged : compteur non-lu du receveur ajusté par le
	// compacteur (l'emit socket de l'app d'origine).
	PublishUnreadChanged(ctx context.Context, receiverID string, count int64, action string) error
}
