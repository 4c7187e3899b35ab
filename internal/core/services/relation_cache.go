package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/jupiterclapton/krewe/user-service/internal/core/domain"
	"github.com/jupiterclapton/krewe/user-service/internal/core/ports"
)

// DefaultCacheTTL : expiration passive des sets de relations (minutes dans la
// config, 1440 par défaut). Le TTL borne la mémoire des clés froides, la
// correction repose sur l'invalidation explicite.
const DefaultCacheTTL = 1440 * time.Minute

// emptySetSentinel : un set vide doit rester stockable et distinguable de
// "pas encore en cache" dans un store à sémantique set — on y glisse un id
// qui ne matchera jamais un compte réel.
const emptySetSentinel = "000000000000000000000000"

// RelationCacheService : cache de sets bloqués/suivis/clans/posts masqués,
// peuplé paresseusement depuis le store, invalidé sur mutation. Le store
// reste la seule source de vérité, le cache n'est jamais durable.
type RelationCacheService struct {
	store ports.Store
	cache ports.Cache
	ttl   time.Duration
}

func NewRelationCacheService(store ports.Store, cache ports.Cache, ttl time.Duration) *RelationCacheService {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &RelationCacheService{store: store, cache: cache, ttl: ttl}
}

// cacheKey reprend le schéma de clés historique — les consommateurs existants
// du tier redis en dépendent.
func cacheKey(kind domain.RelationKind, accountID string) string {
	switch kind {
	case domain.RelationBlocked:
		return "blockedUser_" + accountID
	case domain.RelationFollowed:
		return "followUser" + accountID
	case domain.RelationClanMember:
		return "userClanId" + accountID
	case domain.RelationHiddenPosts:
		return "hidePost" + accountID
	case domain.RelationSuspended:
		return "suspendedUser" // set global
	}
	return string(kind) + "_" + accountID
}

// GetOrPopulate retourne le set depuis le cache, ou le calcule depuis le
// store et le met en cache sur un miss. Une erreur de lecture cache est
// traitée comme un miss. Politique d'échec du calcul : fermé pour
// blocked/suspended (on ne doit JAMAIS laisser fuir du contenu bloqué),
// ouvert vers un set vide pour les relations cosmétiques.
func (s *RelationCacheService) GetOrPopulate(ctx context.Context, kind domain.RelationKind, accountID string) ([]string, error) {
	key := cacheKey(kind, accountID)

	members, err := s.cache.SetMembers(ctx, key)
	if err != nil {
		slog.Warn("relation cache read failed, treating as miss", "key", key, "error", err)
	} else if len(members) > 0 {
		return stripSentinel(members), nil
	}

	vals, err := s.compute(ctx, kind, accountID)
	if err != nil {
		if kind == domain.RelationBlocked || kind == domain.RelationSuspended {
			return nil, err // fail closed
		}
		slog.Warn("relation set computation failed, serving empty",
			"kind", kind, "account_id", accountID, "error", err)
		return []string{}, nil
	}

	if err := s.Populate(ctx, kind, accountID, vals, s.ttl); err != nil {
		// Échec de population = simple miss : la valeur calculée reste bonne.
		slog.Warn("relation cache population failed", "key", key, "error", err)
	}
	return vals, nil
}

// Populate écrit le set avec son TTL, sentinelle incluse si le set est vide.
func (s *RelationCacheService) Populate(ctx context.Context, kind domain.RelationKind, accountID string, vals []string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = s.ttl
	}
	toStore := vals
	if len(toStore) == 0 {
		toStore = []string{emptySetSentinel}
	}
	return s.cache.AddMembers(ctx, cacheKey(kind, accountID), toStore, ttl)
}

func (s *RelationCacheService) Invalidate(ctx context.Context, kind domain.RelationKind, accountID string) error {
	return s.cache.Delete(ctx, cacheKey(kind, accountID))
}

// AddMember n'écrit que dans une clé déjà peuplée : ajouter dans une clé
// expirée créerait un set partiel que GetOrPopulate prendrait pour complet.
func (s *RelationCacheService) AddMember(ctx context.Context, kind domain.RelationKind, accountID, val string) error {
	ok, err := s.cache.Exists(ctx, cacheKey(kind, accountID))
	if err != nil || !ok {
		return err
	}
	return s.cache.AddMembers(ctx, cacheKey(kind, accountID), []string{val}, 0)
}

func (s *RelationCacheService) RemoveMember(ctx context.Context, kind domain.RelationKind, accountID, val string) error {
	return s.cache.RemoveMember(ctx, cacheKey(kind, accountID), val)
}

// BlockedFor : le sur-ensemble d'exclusion du filtrage de visibilité —
// comptes que je bloque, comptes qui me bloquent, comptes suspendus.
func (s *RelationCacheService) BlockedFor(ctx context.Context, accountID string) ([]string, error) {
	blocked, err := s.GetOrPopulate(ctx, domain.RelationBlocked, accountID)
	if err != nil {
		return nil, err
	}
	suspended, err := s.GetOrPopulate(ctx, domain.RelationSuspended, accountID)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(blocked)+len(suspended))
	out := make([]string, 0, len(blocked)+len(suspended))
	for _, id := range append(blocked, suspended...) {
		if _, dup := seen[id]; !dup {
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out, nil
}

// compute recalcule un set depuis le store (source de vérité).
func (s *RelationCacheService) compute(ctx context.Context, kind domain.RelationKind, accountID string) ([]string, error) {
	switch kind {
	case domain.RelationBlocked:
		// Les deux sens du blocage comptent.
		mine, err := s.collect(ctx, domain.CollBlocks, domain.Filter{"uid": accountID}, "block")
		if err != nil {
			return nil, err
		}
		theirs, err := s.collect(ctx, domain.CollBlocks, domain.Filter{"block": accountID}, "uid")
		if err != nil {
			return nil, err
		}
		return append(mine, theirs...), nil

	case domain.RelationFollowed:
		return s.collect(ctx, domain.CollConnections,
			domain.Filter{"uid": accountID, "status": domain.StatusActive}, "follow")

	case domain.RelationClanMember:
		return s.collect(ctx, domain.CollClanMembers,
			domain.Filter{"memberid": accountID, "status": domain.StatusActive}, "clanid")

	case domain.RelationHiddenPosts:
		return s.collect(ctx, domain.CollPostHides,
			domain.Filter{"uid": accountID}, "hide_post_id")

	case domain.RelationSuspended:
		return s.collect(ctx, domain.CollUsers,
			domain.Filter{"account_status": domain.AccountSuspended}, "_id")
	}
	return []string{}, nil
}

func (s *RelationCacheService) collect(ctx context.Context, coll string, filter domain.Filter, field string) ([]string, error) {
	rows, err := s.store.Find(ctx, coll, filter, field)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(rows))
	for _, row := range rows {
		if v := row.Str(field); v != "" {
			out = append(out, v)
		}
	}
	return out, nil
}

func stripSentinel(members []string) []string {
	out := make([]string, 0, len(members))
	for _, m := range members {
		if m != emptySetSentinel {
			out = append(out, m)
		}
	}
	return out
}
