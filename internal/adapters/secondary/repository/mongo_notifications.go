package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/jupiterclapton/krewe/user-service/internal/core/domain"
)

type mongoNotification struct {
	ID               string    `bson:"_id"`
	ReceiverID       string    `bson:"uid"`
	ActorID          string    `bson:"actorid,omitempty"`
	Action           string    `bson:"action"`
	ActorIDArr       []string  `bson:"actorIdArr"`
	Contributor      []string  `bson:"contributor"`
	ContributorCount int64     `bson:"contributor_count"`
	IsActive         bool      `bson:"isActive"`
	IsBanned         bool      `bson:"isBanned"`
	CreatedAt        time.Time `bson:"createdAt,omitempty"`
}

func (m *mongoNotification) toDomain() *domain.Notification {
	return &domain.Notification{
		ID:               m.ID,
		ReceiverID:       m.ReceiverID,
		ActorID:          m.ActorID,
		Action:           m.Action,
		ActorIDArr:       m.ActorIDArr,
		Contributor:      m.Contributor,
		ContributorCount: m.ContributorCount,
		IsActive:         m.IsActive,
		IsBanned:         m.IsBanned,
		CreatedAt:        m.CreatedAt,
	}
}

// MongoNotificationRepository implémente ports.NotificationRepository sur la
// collection notifications.
type MongoNotificationRepository struct {
	coll *mongo.Collection
}

func NewMongoNotificationRepository(db *mongo.Database) *MongoNotificationRepository {
	return &MongoNotificationRepository{coll: db.Collection(domain.CollNotifications)}
}

func (r *MongoNotificationRepository) FindLive(ctx context.Context, receiverID, actorID, action string) (*domain.Notification, error) {
	var m mongoNotification
	err := r.coll.FindOne(ctx, bson.M{
		"uid":        receiverID,
		"actorIdArr": actorID, // égalité sur un champ tableau = appartenance
		"action":     action,
		"isActive":   true,
	}).Decode(&m)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNotificationNotFound
		}
		return nil, fmt.Errorf("db: find notification: %w", err)
	}
	return m.toDomain(), nil
}

func (r *MongoNotificationRepository) FindAuthored(ctx context.Context, actorID string) ([]*domain.Notification, error) {
	cur, err := r.coll.Find(ctx, bson.M{"actorIdArr": actorID, "isActive": true})
	if err != nil {
		return nil, fmt.Errorf("db: find authored notifications: %w", err)
	}
	defer cur.Close(ctx)

	var out []*domain.Notification
	for cur.Next(ctx) {
		var m mongoNotification
		if err := cur.Decode(&m); err != nil {
			return nil, fmt.Errorf("db: decode notification: %w", err)
		}
		out = append(out, m.toDomain())
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("db: notifications cursor: %w", err)
	}
	return out, nil
}

// Save réécrit uniquement les listes et le compteur : le compacteur ne touche
// ni aux timestamps ni au reste du document.
func (r *MongoNotificationRepository) Save(ctx context.Context, n *domain.Notification) error {
	_, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": n.ID},
		bson.M{"$set": bson.M{
			"actorIdArr":        n.ActorIDArr,
			"contributor":       n.Contributor,
			"contributor_count": n.ContributorCount,
		}})
	if err != nil {
		return fmt.Errorf("db: save notification %s: %w", n.ID, err)
	}
	return nil
}

func (r *MongoNotificationRepository) Delete(ctx context.Context, id string) error {
	_, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("db: delete notification %s: %w", id, err)
	}
	return nil
}
