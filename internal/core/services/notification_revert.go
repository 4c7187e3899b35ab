package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jupiterclapton/krewe/user-service/internal/core/domain"
	"github.com/jupiterclapton/krewe/user-service/internal/core/ports"
)

// NotificationRevertService retire un acteur d'une notification agrégée et
// maintient la liste bornée des contributeurs affichés. Deux déclencheurs :
// une action "undo" live (un unfollow retire la notification de follow) et la
// cascade de désactivation (toutes les notifications que le compte a
// déclenchées chez les autres).
type NotificationRevertService struct {
	notis  ports.NotificationRepository
	users  ports.UserRepository
	events ports.EventPublisher
}

func NewNotificationRevertService(notis ports.NotificationRepository, users ports.UserRepository, events ports.EventPublisher) *NotificationRevertService {
	return &NotificationRevertService{notis: notis, users: users, events: events}
}

// RevertAction traite un undo live : retrouve la notification active
// (receveur, acteur, action) et en retire l'acteur. L'absence de notification
// est un no-op, pas une erreur.
func (r *NotificationRevertService) RevertAction(ctx context.Context, action, actorID, receiverID string) error {
	n, err := r.notis.FindLive(ctx, receiverID, actorID, action)
	if err != nil {
		if errors.Is(err, domain.ErrNotificationNotFound) {
			return nil
		}
		return err
	}
	return r.RemoveActor(ctx, n, actorID)
}

// RemoveActor applique la compaction :
//
//   - dernier acteur restant -> le document est supprimé entièrement ;
//   - sinon l'acteur sort d'actorIdArr (et de contributor, avec promotion du
//     remplaçant le plus récent) et contributor_count est recalculé depuis
//     len(actorIdArr), ce qui répare au passage un contributor orphelin.
//
// Le compteur non-lu du receveur n'est décrémenté que si la notification est
// plus récente que sa dernière lecture.
func (r *NotificationRevertService) RemoveActor(ctx context.Context, n *domain.Notification, actorID string) error {
	if !n.HasActor(actorID) {
		// Corruption possible : contributor référence un id absent
		// d'actorIdArr. On ne crashe pas, on répare.
		if r.dropDangling(n) {
			return r.notis.Save(ctx, n)
		}
		return nil
	}

	r.reduceUnread(ctx, n, actorID)

	if len(n.ActorIDArr) == 1 {
		// Dernier contributeur : la notification n'a plus de raison d'être.
		return r.notis.Delete(ctx, n.ID)
	}

	n.ActorIDArr = removeID(n.ActorIDArr, actorID)

	if contains(n.Contributor, actorID) {
		n.Contributor = removeID(n.Contributor, actorID)
		if len(n.ActorIDArr) >= 2 {
			r.promoteContributor(n)
		}
	}

	r.dropDangling(n)
	n.ContributorCount = int64(len(n.ActorIDArr))
	return r.notis.Save(ctx, n)
}

// promoteContributor choisit le remplaçant : l'entrée la plus récente
// d'actorIdArr qui n'est pas déjà affichée.
func (r *NotificationRevertService) promoteContributor(n *domain.Notification) {
	if len(n.Contributor) >= domain.ContributorSlots {
		return
	}
	for i := len(n.ActorIDArr) - 1; i >= 0; i-- {
		if !contains(n.Contributor, n.ActorIDArr[i]) {
			n.Contributor = append(n.Contributor, n.ActorIDArr[i])
			return
		}
	}
}

// dropDangling retire de contributor les ids absents d'actorIdArr et
// resynchronise le compteur. Retourne true si quelque chose a changé.
func (r *NotificationRevertService) dropDangling(n *domain.Notification) bool {
	changed := false
	kept := n.Contributor[:0]
	for _, id := range n.Contributor {
		if contains(n.ActorIDArr, id) {
			kept = append(kept, id)
		} else {
			changed = true
		}
	}
	n.Contributor = kept
	if n.ContributorCount != int64(len(n.ActorIDArr)) {
		n.ContributorCount = int64(len(n.ActorIDArr))
		changed = true
	}
	return changed
}

// reduceUnread décrémente le compteur non-lu du receveur si la notification
// n'était pas encore lue. Lecture-puis-écriture volontaire : le décrément est
// conditionné par lastNotificationAccessTime, un $inc aveugle fausserait le
// compteur sur une notification déjà lue. Deux compactions concurrentes sur
// la MÊME notification pourraient se croiser ici ; le cas n'arrive pas en
// fonctionnement normal et la garantie requise est "au plus une fois par
// retrait", pas la linéarisabilité (un compare-and-swap serait l'upgrade).
func (r *NotificationRevertService) reduceUnread(ctx context.Context, n *domain.Notification, actorID string) {
	receiver, err := r.users.GetByID(ctx, n.ReceiverID)
	if err != nil {
		slog.Error("unable to load notification receiver",
			"receiver_id", n.ReceiverID, "notification_id", n.ID, "error", err)
		return
	}
	if !n.CreatedAt.After(receiver.LastNotificationReadAt) {
		return // déjà lue : le compteur non-lu ne bouge pas
	}

	count := receiver.NotificationCount - 1
	if count < 0 {
		count = 0
	}
	if err := r.users.SetNotificationCount(ctx, receiver.ID, count); err != nil {
		slog.Error("unable to update unread counter",
			"receiver_id", receiver.ID, "error", err)
		return
	}
	if err := r.events.PublishUnreadChanged(ctx, receiver.ID, count, n.Action); err != nil {
		slog.Error("failed to publish unread change", "receiver_id", receiver.ID, "error", err)
	}
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func removeID(ids []string, id string) []string {
	out := make([]string, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
