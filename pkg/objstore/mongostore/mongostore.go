// Package mongostore implements objstore.Backend on a MongoDB collection,
// one document per key, guarded by a version field.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/jacksonlee411/worklog/pkg/objstore"
)

var _ objstore.Backend = (*Store)(nil)

type document struct {
	Key     string `bson:"_id"`
	Body    []byte `bson:"body"`
	Version string `bson:"version"`
}

type Store struct {
	c        *mongo.Collection
	pageSize int64
}

func New(c *mongo.Collection) *Store {
	return &Store{c: c, pageSize: 1000}
}

// Connect opens a client and returns a Store over database.collection.
func Connect(ctx context.Context, uri, database, collection string) (*Store, *mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, fmt.Errorf("mongostore: connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, nil, fmt.Errorf("mongostore: ping: %w", err)
	}
	return New(client.Database(database).Collection(collection)), client, nil
}

// Versions are fresh ObjectIDs, so a deleted and recreated key never
// reuses an old tag.
func newVersion() string { return primitive.NewObjectID().Hex() }

func (s *Store) Get(ctx context.Context, key string) (objstore.Object, error) {
	var doc document
	err := s.c.FindOne(ctx, bson.M{"_id": key}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return objstore.Object{}, objstore.ErrNotFound
	}
	if err != nil {
		return objstore.Object{}, fmt.Errorf("mongostore: get %s: %w", key, err)
	}
	return objstore.Object{Body: doc.Body, Version: doc.Version}, nil
}

func (s *Store) Put(ctx context.Context, key string, body []byte, opts objstore.PutOptions) (string, error) {
	doc := document{Key: key, Body: body, Version: newVersion()}

	if opts.IfNoneMatch {
		_, err := s.c.InsertOne(ctx, doc)
		if mongo.IsDuplicateKeyError(err) {
			return "", objstore.ErrPreconditionFailed
		}
		if err != nil {
			return "", fmt.Errorf("mongostore: insert %s: %w", key, err)
		}
		return doc.Version, nil
	}

	filter := bson.M{"_id": key}
	replace := options.Replace().SetUpsert(true)
	if opts.IfMatch != "" {
		filter["version"] = opts.IfMatch
		replace.SetUpsert(false)
	}
	res, err := s.c.ReplaceOne(ctx, filter, doc, replace)
	if err != nil {
		return "", fmt.Errorf("mongostore: replace %s: %w", key, err)
	}
	if opts.IfMatch != "" && res.MatchedCount == 0 {
		return "", objstore.ErrPreconditionFailed
	}
	return doc.Version, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.c.DeleteOne(ctx, bson.M{"_id": key}); err != nil {
		return fmt.Errorf("mongostore: delete %s: %w", key, err)
	}
	return nil
}

// List pages by _id: each page asks for keys greater than the cursor.
func (s *Store) List(ctx context.Context, prefix string, cursor string) (objstore.Page, error) {
	idFilter := bson.M{"$regex": primitive.Regex{Pattern: "^" + regexp.QuoteMeta(prefix)}}
	if cursor != "" {
		idFilter["$gt"] = cursor
	}
	findOpts := options.Find().
		SetSort(bson.D{{Key: "_id", Value: 1}}).
		SetProjection(bson.M{"_id": 1}).
		SetLimit(s.pageSize + 1)
	cur, err := s.c.Find(ctx, bson.M{"_id": idFilter}, findOpts)
	if err != nil {
		return objstore.Page{}, fmt.Errorf("mongostore: list %s: %w", prefix, err)
	}
	defer cur.Close(ctx)

	var rows []struct {
		Key string `bson:"_id"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return objstore.Page{}, fmt.Errorf("mongostore: list %s: %w", prefix, err)
	}
	page := objstore.Page{Keys: make([]string, 0, len(rows))}
	for i, r := range rows {
		if int64(i) == s.pageSize {
			page.NextCursor = page.Keys[len(page.Keys)-1]
			break
		}
		page.Keys = append(page.Keys, r.Key)
	}
	return page, nil
}
