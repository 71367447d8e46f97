package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/dkeye/ucode/internal/domain"
)

type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
	timeout    time.Duration
}

// NewMongoStore connects, pings and makes sure the unique host index exists.
func NewMongoStore(ctx context.Context, url, dbName, collection string, timeout time.Duration) (*MongoStore, error) {
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(cctx, options.Client().ApplyURI(url))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(cctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	coll := client.Database(dbName).Collection(collection)
	_, err = coll.Indexes().CreateOne(cctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "host", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("uniq_host"),
	})
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo index: %w", err)
	}

	log.Info().Str("module", "store.mongo").Str("db", dbName).Str("collection", collection).Msg("connected")
	return &MongoStore{client: client, collection: coll, timeout: timeout}, nil
}

func (m *MongoStore) Get(ctx context.Context, id domain.SessionID) (*domain.Session, error) {
	return m.findOne(ctx, bson.M{"_id": id})
}

func (m *MongoStore) FindByHost(ctx context.Context, host domain.Identity) (*domain.Session, error) {
	return m.findOne(ctx, bson.M{"host": host})
}

func (m *MongoStore) findOne(ctx context.Context, filter bson.M) (*domain.Session, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	var s domain.Session
	if err := m.collection.FindOne(ctx, filter).Decode(&s); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrSessionNotFound
		}
		log.Error().Err(err).Str("module", "store.mongo").Msg("find session")
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return &s, nil
}

func (m *MongoStore) Create(ctx context.Context, s *domain.Session) error {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	if _, err := m.collection.InsertOne(ctx, s); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrHostTaken
		}
		log.Error().Err(err).Str("module", "store.mongo").Str("session", string(s.ID)).Msg("insert session")
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

func (m *MongoStore) Update(ctx context.Context, id domain.SessionID, patch domain.SessionPatch) (*domain.Session, error) {
	set := patchToBSON(patch)
	if len(set) == 0 {
		return m.Get(ctx, id)
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var s domain.Session
	err := m.collection.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&s)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrSessionNotFound
		}
		log.Error().Err(err).Str("module", "store.mongo").Str("session", string(id)).Msg("update session")
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return &s, nil
}

func (m *MongoStore) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

// patchToBSON maps a patch onto a $set document keyed by bson field names.
func patchToBSON(p domain.SessionPatch) bson.M {
	set := bson.M{}
	if p.Code != nil {
		set["code"] = *p.Code
	}
	if p.Language != nil {
		set["language"] = *p.Language
	}
	if p.HasInvited() {
		set["invitedUsers"] = p.InvitedUsers
	}
	if p.HasPending() {
		set["pendingRequests"] = p.PendingRequests
	}
	if p.HasJoined() {
		set["joinedUsers"] = p.JoinedUsers
	}
	return set
}
