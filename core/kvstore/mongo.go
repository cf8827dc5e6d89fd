package kvstore

import (
	"context"
	"encoding/json"
	"errors"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const mongoCollection = "key_value"

type mongoDocument struct {
	Key   string `bson:"_id"`
	Value string `bson:"value"`
}

// MongoStore persists values as one document per key, with the JSON value
// kept verbatim as a string so arbitrary shapes round-trip unchanged.
type MongoStore struct {
	coll *mongo.Collection
}

// NewMongoStore creates a Store backed by the key_value collection of the
// given database.
func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{coll: db.Collection(mongoCollection)}
}

func (s *MongoStore) Get(ctx context.Context, key string) (json.RawMessage, error) {
	var doc mongoDocument
	err := s.coll.FindOne(ctx, bson.M{"_id": key}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, errors.Join(ErrStoreUnavailable, err)
	}
	return json.RawMessage(doc.Value), nil
}

func (s *MongoStore) Set(ctx context.Context, key string, value any) error {
	b, err := json.Marshal(value)
	if err != nil {
		return errors.Join(ErrEncodeValue, err)
	}
	_, err = s.coll.ReplaceOne(ctx,
		bson.M{"_id": key},
		mongoDocument{Key: key, Value: string(b)},
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return errors.Join(ErrStoreUnavailable, err)
	}
	return nil
}
