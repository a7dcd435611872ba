package docstore

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Mongo maps each logical collection to a MongoDB collection and stores the
// document key in _id.
type Mongo struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewMongo connects to uri and verifies the primary is reachable.
func NewMongo(ctx context.Context, uri, database string) (*Mongo, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return &Mongo{client: client, db: client.Database(database)}, nil
}

func (m *Mongo) Get(ctx context.Context, collection, key string, dst any) error {
	raw, err := m.db.Collection(collection).FindOne(ctx, bson.M{"_id": key}).Raw()
	if err != nil {
		return classifyMongo("get", err)
	}
	return bson.Unmarshal(raw, dst)
}

func (m *Mongo) Set(ctx context.Context, collection, key string, doc any) error {
	_, err := m.db.Collection(collection).ReplaceOne(ctx, bson.M{"_id": key}, doc,
		options.Replace().SetUpsert(true))
	if err != nil {
		return classifyMongo("set", err)
	}
	return nil
}

func (m *Mongo) Update(ctx context.Context, collection, key string, fields map[string]any) error {
	res, err := m.db.Collection(collection).UpdateOne(ctx, bson.M{"_id": key}, bson.M{"$set": fields})
	if err != nil {
		return classifyMongo("update", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *Mongo) Query(ctx context.Context, collection string, q Query) ([]Snapshot, error) {
	filter, opts := buildMongoQuery(q)
	cur, err := m.db.Collection(collection).Find(ctx, filter, opts)
	if err != nil {
		return nil, classifyMongo("query", err)
	}
	defer cur.Close(ctx)

	var out []Snapshot
	for cur.Next(ctx) {
		raw := make(bson.Raw, len(cur.Current))
		copy(raw, cur.Current)
		key, ok := raw.Lookup("_id").StringValueOK()
		if !ok {
			return nil, fmt.Errorf("query %s: document without string _id", collection)
		}
		out = append(out, bsonSnapshot{key: key, raw: raw})
	}
	if err := cur.Err(); err != nil {
		return nil, classifyMongo("query", err)
	}
	return out, nil
}

func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

func buildMongoQuery(q Query) (bson.D, *options.FindOptions) {
	filter := bson.D{}
	for _, f := range q.Filters {
		filter = append(filter, bson.E{Key: f.Field, Value: f.Value})
	}
	order := 1
	if q.Descending {
		order = -1
	}
	if q.StartAfter != "" {
		cmp := "$gt"
		if q.Descending {
			cmp = "$lt"
		}
		filter = append(filter, bson.E{Key: "_id", Value: bson.M{cmp: q.StartAfter}})
	}
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: order}})
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}
	return filter, opts
}

func classifyMongo(op string, err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) ||
		errors.Is(err, mongo.ErrClientDisconnected) ||
		mongo.IsTimeout(err) || mongo.IsNetworkError(err) {
		return Unavailable(op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

type bsonSnapshot struct {
	key string
	raw bson.Raw
}

func (s bsonSnapshot) Key() string { return s.key }

func (s bsonSnapshot) DataTo(dst any) error { return bson.Unmarshal(s.raw, dst) }
