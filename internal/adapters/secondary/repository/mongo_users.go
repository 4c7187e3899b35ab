package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/jupiterclapton/krewe/user-service/internal/core/domain"
)

// mongoUser : représentation persistée du compte. Les noms de champs sont
// historiques (mélange snake/camel), on ne les "corrige" pas.
type mongoUser struct {
	ID                     string    `bson:"_id"`
	Username               string    `bson:"username"`
	Email                  string    `bson:"email,omitempty"`
	Type                   string    `bson:"type,omitempty"`
	OwnerID                string    `bson:"uid,omitempty"`
	AccountStatus          string    `bson:"account_status"`
	IsActive               bool      `bson:"is_active"`
	IsDeleted              bool      `bson:"is_deleted"`
	IsBanned               bool      `bson:"isBanned"`
	FollowersCount         int64     `bson:"followers_count"`
	FollowingCount         int64     `bson:"following_count"`
	NotificationCount      int64     `bson:"notification_count"`
	LastNotificationReadAt time.Time `bson:"lastNotificationAccessTime,omitempty"`
	CreatedAt              time.Time `bson:"created_at,omitempty"`
	UpdatedAt              time.Time `bson:"updated_at,omitempty"`
}

func (m *mongoUser) toDomain() *domain.User {
	return &domain.User{
		ID:                     m.ID,
		Username:               m.Username,
		Email:                  m.Email,
		Type:                   m.Type,
		OwnerID:                m.OwnerID,
		AccountStatus:          m.AccountStatus,
		IsActive:               m.IsActive,
		IsDeleted:              m.IsDeleted,
		IsBanned:               m.IsBanned,
		FollowersCount:         m.FollowersCount,
		FollowingCount:         m.FollowingCount,
		NotificationCount:      m.NotificationCount,
		LastNotificationReadAt: m.LastNotificationReadAt,
		CreatedAt:              m.CreatedAt,
		UpdatedAt:              m.UpdatedAt,
	}
}

// MongoUserRepository implémente ports.UserRepository sur la collection users.
type MongoUserRepository struct {
	coll *mongo.Collection
}

func NewMongoUserRepository(db *mongo.Database) *MongoUserRepository {
	return &MongoUserRepository{coll: db.Collection(domain.CollUsers)}
}

func (r *MongoUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	var m mongoUser
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&m)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("db: get user %s: %w", id, err)
	}
	return m.toDomain(), nil
}

// FlipLifecycle : le flip primaire du compte, gardé par la précondition de la
// direction. Un compte déjà dans l'état cible ne matche pas : nil, nil.
func (r *MongoUserRepository) FlipLifecycle(ctx context.Context, id string, dir domain.Direction) (*domain.User, error) {
	filter, update := flipClauses(dir)
	filter["_id"] = id
	return r.flip(ctx, filter, update)
}

// FlipCompanyOf bascule le compte company rattaché à ownerID (uid), avec la
// même précondition que le compte principal.
func (r *MongoUserRepository) FlipCompanyOf(ctx context.Context, ownerID string, dir domain.Direction) (*domain.User, error) {
	filter, update := flipClauses(dir)
	filter["uid"] = ownerID
	filter["type"] = domain.UserTypeCompany
	return r.flip(ctx, filter, update)
}

func (r *MongoUserRepository) flip(ctx context.Context, filter, update bson.M) (*domain.User, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var m mongoUser
	err := r.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&m)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil // précondition manquée : flip déjà fait, no-op
		}
		return nil, fmt.Errorf("db: flip user: %w", err)
	}
	return m.toDomain(), nil
}

func flipClauses(dir domain.Direction) (bson.M, bson.M) {
	now := time.Now().UTC()
	if dir == domain.DirDeactivate {
		return bson.M{"is_active": true},
			bson.M{"$set": bson.M{
				"is_active":      false,
				"is_deleted":     true,
				"isBanned":       true,
				"account_status": domain.AccountDeactivated,
				"deletedAt":      now,
				"updated_at":     now,
			}}
	}
	return bson.M{"is_active": false, "isBanned": true},
		bson.M{"$set": bson.M{
			"is_active":      true,
			"is_deleted":     false,
			"isBanned":       false,
			"account_status": domain.AccountActive,
			"updated_at":     now,
		}}
}

func (r *MongoUserRepository) SetNotificationCount(ctx context.Context, id string, count int64) error {
	_, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"notification_count": count}})
	if err != nil {
		return fmt.Errorf("db: set notification_count for %s: %w", id, err)
	}
	return nil
}
