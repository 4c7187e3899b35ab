package repository

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/jupiterclapton/krewe/user-service/internal/core/domain"
)

// MongoStore implémente la frontière générique du document store. La
// traduction Filter/Update -> bson est mécanique : conjonctions d'égalités
// (plus $in/$exists/$size) et updates $set/$inc/$push/$pull, rien d'autre ne
// doit passer par ici.
type MongoStore struct {
	db *mongo.Database
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{db: db}
}

func (s *MongoStore) Find(ctx context.Context, coll string, filter domain.Filter, fields ...string) ([]domain.Doc, error) {
	opts := options.Find()
	if len(fields) > 0 {
		proj := bson.M{}
		for _, f := range fields {
			proj[f] = 1
		}
		opts = opts.SetProjection(proj)
	}

	cur, err := s.db.Collection(coll).Find(ctx, toBsonFilter(filter), opts)
	if err != nil {
		return nil, fmt.Errorf("db: find %s: %w", coll, err)
	}
	defer cur.Close(ctx)

	var out []domain.Doc
	for cur.Next(ctx) {
		var raw bson.M
		if err := cur.Decode(&raw); err != nil {
			return nil, fmt.Errorf("db: decode %s: %w", coll, err)
		}
		out = append(out, normalizeDoc(raw))
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("db: cursor %s: %w", coll, err)
	}
	return out, nil
}

func (s *MongoStore) UpdateMany(ctx context.Context, coll string, filter domain.Filter, update domain.Update) (int64, error) {
	if update.IsZero() {
		return 0, nil
	}
	res, err := s.db.Collection(coll).UpdateMany(ctx, toBsonFilter(filter), toBsonUpdate(update))
	if err != nil {
		return 0, fmt.Errorf("db: updateMany %s: %w", coll, err)
	}
	return res.ModifiedCount, nil
}

func (s *MongoStore) BulkUpdate(ctx context.Context, coll string, ops []domain.BulkOp) (int64, error) {
	if len(ops) == 0 {
		return 0, nil // un bulkWrite vide est une erreur driver, pas chez nous
	}
	models := make([]mongo.WriteModel, 0, len(ops))
	for _, op := range ops {
		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(toBsonFilter(op.Filter)).
			SetUpdate(toBsonUpdate(op.Update)))
	}
	res, err := s.db.Collection(coll).BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false))
	if err != nil {
		return 0, fmt.Errorf("db: bulkWrite %s: %w", coll, err)
	}
	return res.ModifiedCount, nil
}

func (s *MongoStore) FindOneAndUpdate(ctx context.Context, coll string, filter domain.Filter, update domain.Update) (domain.Doc, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var raw bson.M
	err := s.db.Collection(coll).
		FindOneAndUpdate(ctx, toBsonFilter(filter), toBsonUpdate(update), opts).
		Decode(&raw)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil // précondition manquée : no-op
		}
		return nil, fmt.Errorf("db: findOneAndUpdate %s: %w", coll, err)
	}
	return normalizeDoc(raw), nil
}

// --- TRADUCTION ---

func toBsonFilter(filter domain.Filter) bson.M {
	out := bson.M{}
	for field, pred := range filter {
		switch p := pred.(type) {
		case domain.InList:
			out[field] = bson.M{"$in": []string(p)}
		case domain.ExistsCheck:
			out[field] = bson.M{"$exists": bool(p)}
		case domain.SizeIs:
			out[field] = bson.M{"$size": int(p)}
		default:
			out[field] = p
		}
	}
	return out
}

func toBsonUpdate(update domain.Update) bson.M {
	out := bson.M{}
	if len(update.Set) > 0 {
		out["$set"] = bson.M(update.Set)
	}
	if len(update.Inc) > 0 {
		inc := bson.M{}
		for k, v := range update.Inc {
			inc[k] = v
		}
		out["$inc"] = inc
	}
	if len(update.Push) > 0 {
		push := bson.M{}
		for field, val := range update.Push {
			if many, ok := val.([]any); ok {
				push[field] = bson.M{"$each": many}
			} else {
				push[field] = val
			}
		}
		out["$push"] = push
	}
	if len(update.Pull) > 0 {
		pull := bson.M{}
		for field, val := range update.Pull {
			if cond, ok := val.(map[string]any); ok {
				pull[field] = bson.M(cond) // pull par prédicat ({userId: ...})
			} else {
				pull[field] = val
			}
		}
		out["$pull"] = pull
	}
	return out
}

// normalizeDoc ramène les types bson (bson.A notamment) vers les types nus
// que domain.Doc sait lire.
func normalizeDoc(raw bson.M) domain.Doc {
	doc := make(domain.Doc, len(raw))
	for k, v := range raw {
		doc[k] = normalizeValue(v)
	}
	return doc
}

func normalizeValue(v any) any {
	switch t := v.(type) {
	case bson.A:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = normalizeValue(e)
		}
		return out
	case bson.M:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = normalizeValue(e)
		}
		return out
	}
	return v
}
