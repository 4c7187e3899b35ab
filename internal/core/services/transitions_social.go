package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jupiterclapton/krewe/user-service/internal/core/domain"
)

// Transitions du graphe social (connexions, clans), des notifications et des
// à-côtés du compte (gifts, wallet, sessions, compte company).

// connectionTransition flippe les deux sens du graphe de suivi et ajuste les
// compteurs dénormalisés des comptes d'en face, puis invalide les entrées de
// cache de relations des deux côtés de chaque arête flippée.
func (s *LifecycleService) connectionTransition(ctx context.Context, accountID string, dir domain.Direction) error {
	from := statusFrom(dir, domain.StatusActive)
	set := map[string]any{"status": statusTo(dir, domain.StatusActive)}

	// Sens sortant : les comptes que ce compte suit perdent (ou regagnent)
	// un follower.
	outbound, err := s.selectFlip(ctx, domain.CollConnections,
		domain.Filter{"uid": accountID, "status": from}, set, "follow")
	if err != nil {
		return err
	}
	followerDeltas := newDeltaSet()
	for _, row := range outbound {
		followerDeltas.Inc(row.Str("follow"), "followers_count", sign(dir))
	}
	if err := s.ledger.apply(ctx, domain.CollUsers, followerDeltas); err != nil {
		return err
	}

	// Sens entrant : les comptes qui suivent ce compte voient leur
	// following_count ajusté.
	inbound, err := s.selectFlip(ctx, domain.CollConnections,
		domain.Filter{"follow": accountID, "status": from}, set, "uid")
	if err != nil {
		return err
	}
	followingDeltas := newDeltaSet()
	for _, row := range inbound {
		followingDeltas.Inc(row.Str("uid"), "following_count", sign(dir))
	}
	if err := s.ledger.apply(ctx, domain.CollUsers, followingDeltas); err != nil {
		return err
	}

	// Invalidation synchrone : la liste de suivi du compte, et celle de
	// chaque suiveur (elle contient ce compte et vient de changer d'état).
	var invErr error
	invErr = errors.Join(invErr, s.relCache.Invalidate(ctx, domain.RelationFollowed, accountID))
	for _, row := range inbound {
		invErr = errors.Join(invErr, s.relCache.Invalidate(ctx, domain.RelationFollowed, row.Str("uid")))
	}
	return invErr
}

func (s *LifecycleService) clanTransition(ctx context.Context, accountID string, dir domain.Direction) error {
	from := statusFrom(dir, domain.StatusActive)
	set := map[string]any{"status": statusTo(dir, domain.StatusActive)}

	// Adhésions du compte : chaque clan quitté perd un membre.
	memberRows, err := s.selectFlip(ctx, domain.CollClanMembers,
		domain.Filter{"memberid": accountID, "status": from}, set, "clanid")
	if err != nil {
		return err
	}
	ds := newDeltaSet()
	for _, row := range memberRows {
		ds.Inc(row.Str("clanid"), "members_count", sign(dir))
	}
	if err := s.ledger.apply(ctx, domain.CollClans, ds); err != nil {
		return err
	}

	// Clans possédés : le clan entier bascule, ses adhésions avec lui. Pas de
	// delta members_count ici — le clan disparaît (ou revient) en bloc, le
	// compteur reste cohérent avec ses lignes.
	clanMatch := contentMatch(dir)
	clanMatch["uid"] = accountID
	ownClans, err := s.selectFlip(ctx, domain.CollClans, clanMatch, contentSet(dir))
	if err != nil {
		return err
	}

	staleMembers := make([]string, 0)
	if len(ownClans) > 0 {
		clanIDs := make([]string, 0, len(ownClans))
		for _, c := range ownClans {
			clanIDs = append(clanIDs, c.ID())
		}
		rows, err := s.store.Find(ctx, domain.CollClanMembers,
			domain.Filter{"clanid": domain.In(clanIDs...), "status": from}, "memberid")
		if err != nil {
			return err
		}
		for _, row := range rows {
			staleMembers = append(staleMembers, row.Str("memberid"))
		}
		if _, err := s.store.UpdateMany(ctx, domain.CollClanMembers,
			domain.Filter{"clanid": domain.In(clanIDs...), "status": from},
			domain.Update{Set: set}); err != nil {
			return err
		}
	}

	var invErr error
	invErr = errors.Join(invErr, s.relCache.Invalidate(ctx, domain.RelationClanMember, accountID))
	for _, memberID := range staleMembers {
		invErr = errors.Join(invErr, s.relCache.Invalidate(ctx, domain.RelationClanMember, memberID))
	}
	return invErr
}

// notificationTransition flippe les notifications REÇUES par le compte, puis
// retire sa présence des notifications agrégées qu'il a déclenchées chez les
// autres via le compacteur (suppression si dernier contributeur). Le retrait
// de présence est définitif : la réactivation restaure les flags des
// notifications reçues, jamais l'ordre d'agrégation perdu.
func (s *LifecycleService) notificationTransition(ctx context.Context, accountID string, dir domain.Direction) error {
	match, set := likeMatch(dir, "isActive")
	match["uid"] = accountID
	if _, err := s.selectFlip(ctx, domain.CollNotifications, match, set); err != nil {
		return err
	}

	if dir != domain.DirDeactivate {
		return nil
	}

	authored, err := s.notis.FindAuthored(ctx, accountID)
	if err != nil {
		return err
	}
	var errs error
	for _, n := range authored {
		if err := s.reverter.RemoveActor(ctx, n, accountID); err != nil {
			slog.Error("failed to compact authored notification",
				"notification_id", n.ID, "account_id", accountID, "error", err)
			errs = errors.Join(errs, err)
		}
	}
	return errs
}

func (s *LifecycleService) giftSummaryTransition(ctx context.Context, accountID string, dir domain.Direction) error {
	_, err := s.store.UpdateMany(ctx, domain.CollGiftSummaries,
		domain.Filter{"uid": accountID, "status": statusFrom(dir, domain.StatusActive)},
		domain.Update{Set: map[string]any{"status": statusTo(dir, domain.StatusActive)}})
	return err
}

func (s *LifecycleService) walletTransition(ctx context.Context, accountID string, dir domain.Direction) error {
	_, err := s.store.FindOneAndUpdate(ctx, domain.CollWallets,
		domain.Filter{"uid": accountID, "status": statusFrom(dir, domain.StatusActive)},
		domain.Update{Set: map[string]any{"status": statusTo(dir, domain.StatusActive)}})
	return err
}

// sessionTransition révoque toutes les sessions actives du compte : clés de
// session et de refresh token supprimées du tier éphémère, lignes marquées
// inactives. Déclenchée uniquement à la désactivation.
func (s *LifecycleService) sessionTransition(ctx context.Context, accountID string) error {
	rows, err := s.store.Find(ctx, domain.CollLoginInfo,
		domain.Filter{"userId": accountID, "isActive": true}, "sessionId")
	if err != nil {
		return err
	}

	for _, row := range rows {
		sid := row.Str("sessionId")
		for _, key := range []string{
			fmt.Sprintf("sess_%s_%s", accountID, sid),
			fmt.Sprintf("refreshToken_%s_%s", accountID, sid),
		} {
			if err := s.kv.Delete(ctx, key); err != nil {
				slog.Error("unable to delete session key", "key", key, "error", err)
			}
		}
	}

	_, err = s.store.UpdateMany(ctx, domain.CollLoginInfo,
		domain.Filter{"userId": accountID, "isActive": true},
		domain.Update{Set: map[string]any{"isActive": false}})
	return err
}

// companyTransition propage la transition au compte company possédé par ce
// compte, profondeur bornée à 1 (une company ne possède pas de company). La
// sous-cascade tourne séquentiellement dans la tâche courante, chaque
// opération gardant sa propre frontière d'erreur.
func (s *LifecycleService) companyTransition(ctx context.Context, accountID string, dir domain.Direction, depth int) error {
	company, err := s.users.FlipCompanyOf(ctx, accountID, dir)
	if err != nil {
		return err
	}
	if company == nil {
		return nil
	}
	slog.Info("cascading lifecycle to company account",
		"owner_id", accountID, "company_id", company.ID, "direction", dir)

	if err := s.events.PublishLifecycleChanged(ctx, company.ID, dir); err != nil {
		slog.Error("failed to publish company lifecycle event", "company_id", company.ID, "error", err)
	}

	var errs error
	for _, op := range s.cascadeOps(company.ID, dir, depth+1) {
		if err := op.fn(ctx); err != nil {
			slog.Error("❌ company cascade operation failed",
				"operation", op.name, "company_id", company.ID, "error", err)
			errs = errors.Join(errs, err)
		}
	}
	return errs
}
