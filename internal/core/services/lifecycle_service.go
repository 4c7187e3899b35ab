package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/jupiterclapton/krewe/user-service/internal/core/domain"
	"github.com/jupiterclapton/krewe/user-service/internal/core/ports"
)

// OpTimeout borne chaque opération de la cascade une fois détachée de
// l'appelant.
const OpTimeout = 30 * time.Second

// LifecycleService orchestre la cascade de cycle de vie d'un compte.
//
// Modèle de cohérence : PAS de transaction globale. Chaque opération est une
// unité de travail indépendante avec sa propre frontière d'erreur ; un échec
// est loggé et n'interrompt rien d'autre. Les préconditions d'état rendent
// chaque opération idempotente : un second passage matche zéro ligne, et une
// opération échouée sera reprise par le prochain appel de cycle de vie sur le
// même compte.
type LifecycleService struct {
	store    ports.Store
	users    ports.UserRepository
	notis    ports.NotificationRepository
	reverter ports.NotificationReverter
	relCache ports.RelationCache
	kv       ports.Cache
	events   ports.EventPublisher
	ledger   *counterLedger

	wg sync.WaitGroup
}

func NewLifecycleService(
	store ports.Store,
	users ports.UserRepository,
	notis ports.NotificationRepository,
	reverter ports.NotificationReverter,
	relCache ports.RelationCache,
	kv ports.Cache,
	events ports.EventPublisher,
) *LifecycleService {
	return &LifecycleService{
		store:    store,
		users:    users,
		notis:    notis,
		reverter: reverter,
		relCache: relCache,
		kv:       kv,
		events:   events,
		ledger:   newCounterLedger(store),
	}
}

func (s *LifecycleService) Deactivate(ctx context.Context, accountID string) error {
	return s.run(ctx, accountID, domain.DirDeactivate)
}

func (s *LifecycleService) Reactivate(ctx context.Context, accountID string) error {
	return s.run(ctx, accountID, domain.DirReactivate)
}

// Wait draine les tâches en vol. Utilisé par le shutdown et les tests ;
// l'appelant normal n'attend jamais la cascade.
func (s *LifecycleService) Wait() { s.wg.Wait() }

// run ne bloque que sur le flip primaire du compte : l'appelant peut répondre
// tout de suite, la cascade part en arrière-plan.
func (s *LifecycleService) run(ctx context.Context, accountID string, dir domain.Direction) error {
	if accountID == "" {
		return domain.ErrEmptyAccountID
	}

	u, err := s.users.FlipLifecycle(ctx, accountID, dir)
	if err != nil {
		return err
	}
	if u == nil {
		// Compte déjà dans l'état cible. On relance quand même la cascade :
		// c'est le mécanisme de reprise des opérations échouées au passage
		// précédent (elles seules matcheront encore des lignes).
		slog.Info("lifecycle flip was a no-op, re-dispatching cascade",
			"account_id", accountID, "direction", dir)
	}

	if err := s.events.PublishLifecycleChanged(ctx, accountID, dir); err != nil {
		slog.Error("failed to publish lifecycle event", "account_id", accountID, "error", err)
	}

	for _, op := range s.cascadeOps(accountID, dir, 0) {
		s.dispatch(ctx, accountID, dir, op.name, op.fn)
	}
	return nil
}

type cascadeOp struct {
	name string
	fn   func(context.Context) error
}

// cascadeOps liste les opérations de transition pour une direction. Les
// opérations sont commutatives entre elles (lignes et compteurs disjoints) :
// aucun ordre n'est garanti ni nécessaire.
func (s *LifecycleService) cascadeOps(accountID string, dir domain.Direction, depth int) []cascadeOp {
	ops := []cascadeOp{
		{"posts", func(ctx context.Context) error { return s.postTransition(ctx, accountID, dir) }},
		{"comments", func(ctx context.Context) error { return s.commentTransition(ctx, accountID, dir) }},
		{"replies", func(ctx context.Context) error { return s.replyTransition(ctx, accountID, dir) }},
		{"share_posts", func(ctx context.Context) error { return s.sharePostTransition(ctx, accountID, dir) }},
		{"post_likes", func(ctx context.Context) error { return s.postLikeTransition(ctx, accountID, dir) }},
		{"comment_likes", func(ctx context.Context) error { return s.commentLikeTransition(ctx, accountID, dir) }},
		{"reply_likes", func(ctx context.Context) error { return s.replyLikeTransition(ctx, accountID, dir) }},
		{"votes", func(ctx context.Context) error { return s.voteTransition(ctx, accountID, dir) }},
		{"connections", func(ctx context.Context) error { return s.connectionTransition(ctx, accountID, dir) }},
		{"clans", func(ctx context.Context) error { return s.clanTransition(ctx, accountID, dir) }},
		{"notifications", func(ctx context.Context) error { return s.notificationTransition(ctx, accountID, dir) }},
		{"news_likes", func(ctx context.Context) error { return s.newsLikeTransition(ctx, accountID, dir) }},
		{"saved_news", func(ctx context.Context) error { return s.savedNewsTransition(ctx, accountID, dir) }},
		{"gift_summaries", func(ctx context.Context) error { return s.giftSummaryTransition(ctx, accountID, dir) }},
		{"wallet", func(ctx context.Context) error { return s.walletTransition(ctx, accountID, dir) }},
	}
	if dir == domain.DirDeactivate {
		// Pas de re-grant symétrique : les sessions se rétablissent par un
		// nouveau login, jamais par la réactivation.
		ops = append(ops, cascadeOp{"sessions", func(ctx context.Context) error {
			return s.sessionTransition(ctx, accountID)
		}})
	}
	if depth == 0 {
		ops = append(ops, cascadeOp{"company", func(ctx context.Context) error {
			return s.companyTransition(ctx, accountID, dir, depth)
		}})
	}
	return ops
}

// dispatch lance une opération détachée de l'annulation de l'appelant, avec
// son propre span et sa propre frontière d'erreur, puis publie le signal de
// succès fire-and-forget.
func (s *LifecycleService) dispatch(ctx context.Context, accountID string, dir domain.Direction, name string, fn func(context.Context) error) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		opCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), OpTimeout)
		defer cancel()

		tracer := otel.Tracer("user-service")
		opCtx, span := tracer.Start(opCtx, "lifecycle."+name,
			trace.WithSpanKind(trace.SpanKindInternal))
		defer span.End()

		err := fn(opCtx)
		if err != nil {
			span.RecordError(err)
			slog.Error("❌ cascade operation failed",
				"operation", name, "account_id", accountID, "direction", dir, "error", err)
		} else {
			slog.Debug("✅ cascade operation done",
				"operation", name, "account_id", accountID, "direction", dir)
		}

		res := domain.CascadeResult{
			AccountID: accountID,
			Operation: name,
			Direction: dir,
			OK:        err == nil,
			At:        time.Now().UTC(),
		}
		if pubErr := s.events.PublishCascadeResult(opCtx, res); pubErr != nil {
			slog.Error("failed to publish cascade result", "operation", name, "error", pubErr)
		}
	}()
}

// --- Prédicats et updates partagés par les transitions ---

// sign du delta de compteur pour une direction.
func sign(dir domain.Direction) int64 {
	if dir == domain.DirDeactivate {
		return -1
	}
	return 1
}

// contentMatch : précondition de la famille is_active/is_deleted/isBanned
// (posts, comments, replies, votes, clans). Le retour matche l'état AVANT la
// transition — c'est lui qui porte l'idempotence.
func contentMatch(dir domain.Direction) domain.Filter {
	if dir == domain.DirDeactivate {
		return domain.Filter{"is_active": true}
	}
	return domain.Filter{"is_active": false, "isBanned": true}
}

func contentSet(dir domain.Direction) map[string]any {
	if dir == domain.DirDeactivate {
		return map[string]any{"is_active": false, "is_deleted": true, "isBanned": true}
	}
	return map[string]any{"is_active": true, "is_deleted": false, "isBanned": false}
}

// statusFrom / statusTo : famille tri-état. Seul "banned" est restauré à la
// réactivation, un retrait volontaire reste retiré.
func statusFrom(dir domain.Direction, activeVal string) string {
	if dir == domain.DirDeactivate {
		return activeVal
	}
	return domain.StatusBanned
}

func statusTo(dir domain.Direction, activeVal string) string {
	if dir == domain.DirDeactivate {
		return domain.StatusBanned
	}
	return activeVal
}

// selectFlip sélectionne les lignes qui matchent la précondition, les flippe
// en un seul update conditionnel, et retourne les lignes sélectionnées. Les
// deltas de compteurs sont ensuite calculés sur CE snapshot : un second
// passage sélectionne zéro ligne et n'ajuste donc rien (idempotence), et on
// ne compte jamais une ligne qui n'a pas été flippée (ordre strict
// flip-puis-ajustement).
func (s *LifecycleService) selectFlip(ctx context.Context, coll string, match domain.Filter, set map[string]any, fields ...string) ([]domain.Doc, error) {
	proj := append([]string{"_id"}, fields...)
	rows, err := s.store.Find(ctx, coll, match, proj...)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID())
	}
	flipFilter := domain.Filter{"_id": domain.In(ids...)}
	for k, v := range match {
		flipFilter[k] = v // la précondition reste dans le filtre du flip
	}
	if _, err := s.store.UpdateMany(ctx, coll, flipFilter, domain.Update{Set: set}); err != nil {
		return nil, err
	}
	return rows, nil
}
