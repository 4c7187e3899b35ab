package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jupiterclapton/krewe/user-service/internal/core/domain"
)

func notiFixture(users ...*domain.User) (*NotificationRevertService, *fakeNotiRepo, *fakeUserRepo, *fakePublisher) {
	userRepo := newFakeUserRepo(users...)
	notiRepo := newFakeNotiRepo()
	events := newFakePublisher()
	return NewNotificationRevertService(notiRepo, userRepo, events), notiRepo, userRepo, events
}

func TestRemoveActor_CompactsAndPromotesReplacement(t *testing.T) {
	receiver := activeUser("r")
	receiver.NotificationCount = 3
	svc, notis, users, events := notiFixture(receiver)

	n := &domain.Notification{
		ID:         "n1",
		ReceiverID: "r",
		Action:     "follow",
		ActorIDArr: []string{"u1", "u2", "u3"},
		// u3 est arrivé après le remplissage des slots : pas encore affiché.
		Contributor:      []string{"u1", "u2"},
		ContributorCount: 3,
		IsActive:         true,
		CreatedAt:        time.Now(),
	}
	notis.notis["n1"] = copyNoti(n)

	require.NoError(t, svc.RemoveActor(context.Background(), copyNoti(n), "u1"))

	got := notis.get("n1")
	require.NotNil(t, got)
	assert.Equal(t, []string{"u2", "u3"}, got.ActorIDArr)
	// u3, entrée la plus récente non affichée, prend le slot libéré.
	assert.Equal(t, []string{"u2", "u3"}, got.Contributor)
	assert.Equal(t, int64(2), got.ContributorCount)

	// La notification n'était pas lue : le compteur du receveur descend.
	assert.Equal(t, int64(2), users.get("r").NotificationCount)
	unread := events.unreadEvents()
	require.Len(t, unread, 1)
	assert.Equal(t, "r", unread[0].receiverID)
	assert.Equal(t, int64(2), unread[0].count)
}

func TestRemoveActor_SoleActorDeletesDocument(t *testing.T) {
	receiver := activeUser("r")
	receiver.NotificationCount = 1
	svc, notis, users, _ := notiFixture(receiver)

	n := &domain.Notification{
		ID: "n1", ReceiverID: "r", Action: "follow",
		ActorIDArr: []string{"u1"}, Contributor: []string{"u1"},
		ContributorCount: 1, IsActive: true, CreatedAt: time.Now(),
	}
	notis.notis["n1"] = copyNoti(n)

	require.NoError(t, svc.RemoveActor(context.Background(), copyNoti(n), "u1"))

	assert.Nil(t, notis.get("n1"), "document should be deleted with its last actor")
	assert.Equal(t, int64(0), users.get("r").NotificationCount)
}

func TestRemoveActor_ReadNotificationLeavesUnreadCounter(t *testing.T) {
	receiver := activeUser("r")
	receiver.NotificationCount = 5
	receiver.LastNotificationReadAt = time.Now()
	svc, notis, users, events := notiFixture(receiver)

	n := &domain.Notification{
		ID: "n1", ReceiverID: "r", Action: "like",
		ActorIDArr: []string{"u1", "u2"}, Contributor: []string{"u1", "u2"},
		ContributorCount: 2, IsActive: true,
		CreatedAt: time.Now().Add(-time.Hour), // antérieure à la dernière lecture
	}
	notis.notis["n1"] = copyNoti(n)

	require.NoError(t, svc.RemoveActor(context.Background(), copyNoti(n), "u1"))

	assert.Equal(t, int64(5), users.get("r").NotificationCount)
	assert.Empty(t, events.unreadEvents())
}

func TestRemoveActor_UnreadCounterNeverGoesNegative(t *testing.T) {
	receiver := activeUser("r")
	receiver.NotificationCount = 0 // compteur déjà faussé à zéro
	svc, notis, users, _ := notiFixture(receiver)

	n := &domain.Notification{
		ID: "n1", ReceiverID: "r", Action: "like",
		ActorIDArr: []string{"u1", "u2"}, Contributor: []string{"u1", "u2"},
		ContributorCount: 2, IsActive: true, CreatedAt: time.Now(),
	}
	notis.notis["n1"] = copyNoti(n)

	require.NoError(t, svc.RemoveActor(context.Background(), copyNoti(n), "u1"))

	assert.Equal(t, int64(0), users.get("r").NotificationCount)
}

func TestRemoveActor_RepairsDanglingContributor(t *testing.T) {
	svc, notis, _, _ := notiFixture(activeUser("r"))

	// "ghost" figure dans contributor mais plus dans actorIdArr, et le
	// compteur est désynchronisé : le compacteur répare au passage.
	n := &domain.Notification{
		ID: "n1", ReceiverID: "r", Action: "follow",
		ActorIDArr: []string{"u1", "u2"}, Contributor: []string{"ghost", "u1"},
		ContributorCount: 5, IsActive: true, CreatedAt: time.Now(),
	}
	notis.notis["n1"] = copyNoti(n)

	require.NoError(t, svc.RemoveActor(context.Background(), copyNoti(n), "ghost"))

	got := notis.get("n1")
	require.NotNil(t, got)
	assert.Equal(t, []string{"u1", "u2"}, got.ActorIDArr)
	assert.NotContains(t, got.Contributor, "ghost")
	assert.Equal(t, int64(2), got.ContributorCount)
}

func TestRevertAction_MissingNotificationIsNoOp(t *testing.T) {
	svc, _, _, _ := notiFixture(activeUser("r"))
	assert.NoError(t, svc.RevertAction(context.Background(), "follow", "u1", "r"))
}

func TestRevertAction_RemovesActorFromLiveNotification(t *testing.T) {
	receiver := activeUser("r")
	receiver.NotificationCount = 2
	svc, notis, _, _ := notiFixture(receiver)

	n := &domain.Notification{
		ID: "n1", ReceiverID: "r", Action: "follow",
		ActorIDArr: []string{"u1", "u2"}, Contributor: []string{"u1", "u2"},
		ContributorCount: 2, IsActive: true, CreatedAt: time.Now(),
	}
	notis.notis["n1"] = copyNoti(n)

	require.NoError(t, svc.RevertAction(context.Background(), "follow", "u2", "r"))

	got := notis.get("n1")
	require.NotNil(t, got)
	assert.Equal(t, []string{"u1"}, got.ActorIDArr)
	assert.Equal(t, []string{"u1"}, got.Contributor)
	assert.Equal(t, int64(1), got.ContributorCount)
}
