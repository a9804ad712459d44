// Package mongo implements the progress store and history log on MongoDB.
// Snapshots are stored one document per user keyed by user id; history
// entries go to their own collection.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/studyquest/studyquest/internal/domain"
)

const (
	snapshotsCollection = "progress_snapshots"
	historyCollection   = "history"
)

// Store wraps a mongo client and the two collections it uses.
type Store struct {
	client    *mongo.Client
	snapshots *mongo.Collection
	history   *mongo.Collection
}

// Open connects to uri, pings the server and ensures indexes on database.
func Open(ctx context.Context, uri, database string) (*Store, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo unreachable: %w", err)
	}

	db := client.Database(database)
	s := &Store{
		client:    client,
		snapshots: db.Collection(snapshotsCollection),
		history:   db.Collection(historyCollection),
	}

	_, err = s.history.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "userId", Value: 1}, {Key: "occurredAt", Value: -1}},
	})
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("create history index: %w", err)
	}

	log.WithField("database", database).Info("mongo store ready")
	return s, nil
}

// Close disconnects the client.
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// ─── Progress Snapshots ─────────────────────────────────────────────────────

func (s *Store) GetSnapshot(ctx context.Context, userID string) (domain.ProgressSnapshot, error) {
	var snap domain.ProgressSnapshot
	err := s.snapshots.FindOne(ctx, bson.M{"_id": userID}).Decode(&snap)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.ProgressSnapshot{}, fmt.Errorf("snapshot %s: %w", userID, domain.ErrNotFound)
	}
	if err != nil {
		return domain.ProgressSnapshot{}, fmt.Errorf("get snapshot: %w", err)
	}
	return snap, nil
}

func (s *Store) UpsertSnapshot(ctx context.Context, snap domain.ProgressSnapshot) error {
	if snap.UserID == "" {
		return fmt.Errorf("%w: snapshot without user id", domain.ErrValidation)
	}
	if snap.UpdatedAt.IsZero() {
		snap.UpdatedAt = time.Now()
	}
	_, err := s.snapshots.ReplaceOne(ctx,
		bson.M{"_id": snap.UserID}, snap,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("upsert snapshot: %w", err)
	}
	return nil
}

func (s *Store) ListUserIDs(ctx context.Context) ([]string, error) {
	cur, err := s.snapshots.Find(ctx, bson.D{},
		options.Find().SetProjection(bson.M{"_id": 1}).SetSort(bson.M{"_id": 1}),
	)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	var docs []struct {
		ID string `bson:"_id"`
	}
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
	}
	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.ID)
	}
	return ids, nil
}

// ─── History ────────────────────────────────────────────────────────────────

func (s *Store) AppendHistory(ctx context.Context, e domain.HistoryEntry) error {
	if e.ID == "" || e.UserID == "" {
		return fmt.Errorf("%w: history entry needs id and user id", domain.ErrValidation)
	}
	_, err := s.history.InsertOne(ctx, e)
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: history entry %s already exists", domain.ErrValidation, e.ID)
	}
	if err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

func (s *Store) ListHistory(ctx context.Context, userID string, f domain.HistoryFilter) ([]domain.HistoryEntry, error) {
	filter := bson.M{"userId": userID}
	if f.Kind != "" {
		filter["kind"] = f.Kind
	}
	occurred := bson.M{}
	if !f.Since.IsZero() {
		occurred["$gte"] = f.Since
	}
	if !f.Until.IsZero() {
		occurred["$lt"] = f.Until
	}
	if len(occurred) > 0 {
		filter["occurredAt"] = occurred
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "occurredAt", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(f.EffectiveLimit()))
	cur, err := s.history.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	entries := []domain.HistoryEntry{}
	if err := cur.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}
	return entries, nil
}
