// Package mongorepo implements tokenauth.Repository on a MongoDB collection.
//
// Documents carry a numeric "id" field next to the driver's _id. Ids come from
// a per-collection sequence kept in a counters collection.
package mongorepo

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/MrEthical07/tokenauth"
)

const defaultCounters = "counters"

// ErrConflict is returned by Create on a duplicate key.
var ErrConflict = errors.New("conflict")

type Config struct {
	// Collection defaults to "users".
	Collection string
	// Counters names the sequence collection, default "counters".
	Counters string
	Fillable []string
	// Timeout bounds each driver call. Zero means 3s.
	Timeout time.Duration
}

var _ tokenauth.Repository = (*Repository)(nil)

type Repository struct {
	coll     *mongo.Collection
	counters *mongo.Collection
	fillable []string
	timeout  time.Duration
}

func New(db *mongo.Database, cfg Config) (*Repository, error) {
	if db == nil {
		return nil, errors.New("mongorepo: nil database")
	}
	if cfg.Collection == "" {
		cfg.Collection = "users"
	}
	if cfg.Counters == "" {
		cfg.Counters = defaultCounters
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Second
	}
	return &Repository{
		coll:     db.Collection(cfg.Collection),
		counters: db.Collection(cfg.Counters),
		fillable: append([]string(nil), cfg.Fillable...),
		timeout:  cfg.Timeout,
	}, nil
}

// EnsureIndexes creates the unique index on "id".
func (r *Repository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("mongorepo: create id index: %w", err)
	}
	return nil
}

func (r *Repository) Table() string { return r.coll.Name() }

func (r *Repository) Fillable() []string { return append([]string(nil), r.fillable...) }

func (r *Repository) nextID(ctx context.Context) (int64, error) {
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err := r.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": r.coll.Name()},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("mongorepo: next id: %w", err)
	}
	return counter.Seq, nil
}

func (r *Repository) Create(ctx context.Context, fields map[string]any) (tokenauth.Record, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	id, err := r.nextID(ctx)
	if err != nil {
		return nil, err
	}

	doc := fillable(fields, r.fillable)
	doc["id"] = id
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("mongorepo: insert: %w", err)
	}
	return toRecord(doc), nil
}

func (r *Repository) UpdateByID(ctx context.Context, id int64, fields map[string]any) (bool, error) {
	set := fillable(fields, r.fillable)
	if len(set) == 0 {
		return false, nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	res, err := r.coll.UpdateOne(ctx, bson.M{"id": id}, bson.M{"$set": set})
	if err != nil {
		return false, fmt.Errorf("mongorepo: update: %w", err)
	}
	return res.MatchedCount > 0, nil
}

func (r *Repository) FindByID(ctx context.Context, id int64) (tokenauth.Record, error) {
	return r.findOne(ctx, bson.M{"id": id}, nil)
}

func (r *Repository) FindByAttribute(ctx context.Context, attrs map[string]any) (tokenauth.Record, error) {
	return r.findOne(ctx, buildFilter(nil, attrs), nil)
}

func (r *Repository) FindByCredentials(ctx context.Context, credentials, conditions map[string]any, columns []string) (tokenauth.Record, error) {
	return r.findOne(ctx, buildFilter(credentials, conditions), columns)
}

func (r *Repository) findOne(ctx context.Context, filter bson.M, columns []string) (tokenauth.Record, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	opts := options.FindOne().SetSort(bson.D{{Key: "id", Value: 1}})
	if p := projection(columns); p != nil {
		opts.SetProjection(p)
	}

	var doc bson.M
	if err := r.coll.FindOne(ctx, filter, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, tokenauth.ErrRecordNotFound
		}
		return nil, fmt.Errorf("mongorepo: find: %w", err)
	}
	return toRecord(doc), nil
}

// buildFilter ORs anyOf inside $or and ANDs allOf as plain equality keys.
func buildFilter(anyOf, allOf map[string]any) bson.M {
	filter := bson.M{}
	if len(anyOf) > 0 {
		keys := make([]string, 0, len(anyOf))
		for k := range anyOf {
			keys = append(keys, k)
		}
		slices.Sort(keys)

		or := make(bson.A, 0, len(keys))
		for _, k := range keys {
			or = append(or, bson.M{k: anyOf[k]})
		}
		filter["$or"] = or
	}
	for k, v := range allOf {
		filter[k] = v
	}
	return filter
}

// projection includes columns and always excludes _id. Nil means every field.
func projection(columns []string) bson.D {
	if len(columns) == 0 {
		return nil
	}
	p := make(bson.D, 0, len(columns)+1)
	for _, c := range columns {
		if c == "_id" {
			continue
		}
		p = append(p, bson.E{Key: c, Value: 1})
	}
	return append(p, bson.E{Key: "_id", Value: 0})
}

func fillable(fields map[string]any, allowed []string) bson.M {
	out := bson.M{}
	for k, v := range fields {
		if slices.Contains(allowed, k) {
			out[k] = v
		}
	}
	return out
}

// toRecord drops the driver _id.
func toRecord(doc bson.M) tokenauth.Record {
	rec := make(tokenauth.Record, len(doc))
	for k, v := range doc {
		if k == "_id" {
			continue
		}
		rec[k] = v
	}
	return rec
}
