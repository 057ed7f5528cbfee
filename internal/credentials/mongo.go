package credentials

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const currentID = "current"

// MongoStore keeps the credential as a single upserted document. The fixed
// _id enforces the at-most-one-credential invariant at the storage level.
type MongoStore struct {
	col *mongo.Collection
}

func NewMongoStore(col *mongo.Collection) *MongoStore {
	return &MongoStore{col: col}
}

func (s *MongoStore) Load(ctx context.Context) (*Credential, error) {
	var doc struct {
		Credential `bson:",inline"`
	}
	if err := s.col.FindOne(ctx, bson.M{"_id": currentID}).Decode(&doc); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	cred := doc.Credential
	return &cred, nil
}

func (s *MongoStore) Save(ctx context.Context, cred *Credential) error {
	_, err := s.col.ReplaceOne(ctx,
		bson.M{"_id": currentID},
		bson.M{
			"_id":          currentID,
			"accessToken":  cred.AccessToken,
			"refreshToken": cred.RefreshToken,
			"expiresAt":    cred.ExpiresAt,
		},
		options.Replace().SetUpsert(true),
	)
	return err
}
