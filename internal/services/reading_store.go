package services

import (
	"context"
	"fmt"
	"time"

	"fortuna/internal/database"
	"fortuna/internal/models"
	"fortuna/internal/reading"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// ReadingStore handles MongoDB persistence for readings. Terminal writes
// are conditional on the result still being absent, so the first completed
// or error outcome wins and later writers get ErrAlreadyFinalized.
type ReadingStore struct {
	collection *mongo.Collection
}

// NewReadingStore creates a new reading store
func NewReadingStore(mongodb *database.MongoDB) *ReadingStore {
	return &ReadingStore{
		collection: mongodb.Collection(database.CollectionReadings),
	}
}

// Create inserts a new reading in the pending state
func (s *ReadingStore) Create(ctx context.Context, r *models.Reading) error {
	r.CreatedAt = time.Now().UTC()
	if r.Status == "" {
		r.Status = models.ReadingStatusPending
	}

	result, err := s.collection.InsertOne(ctx, r)
	if err != nil {
		return fmt.Errorf("failed to create reading: %w", err)
	}

	r.ID = result.InsertedID.(primitive.ObjectID)
	return nil
}

// GetByID retrieves a reading by ID
func (s *ReadingStore) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Reading, error) {
	var r models.Reading
	err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&r)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("reading not found")
		}
		return nil, fmt.Errorf("failed to get reading: %w", err)
	}
	return &r, nil
}

// MarkProcessing sets status=processing unless the reading already carries
// a result
func (s *ReadingStore) MarkProcessing(ctx context.Context, id primitive.ObjectID) error {
	return s.conditionalUpdate(ctx, id, bson.M{
		"$set": bson.M{"status": models.ReadingStatusProcessing},
	})
}

// Complete writes the result text, AI metadata and status=completed in one
// atomic update
func (s *ReadingStore) Complete(ctx context.Context, id primitive.ObjectID, text string, ai models.AIMetadata) error {
	return s.conditionalUpdate(ctx, id, bson.M{
		"$set": bson.M{
			"status": models.ReadingStatusCompleted,
			"result": models.ReadingResult{Text: text},
			"ai":     ai,
		},
	})
}

// Fail writes the error payload and status=error in one atomic update
func (s *ReadingStore) Fail(ctx context.Context, id primitive.ObjectID, result models.ReadingResult) error {
	return s.conditionalUpdate(ctx, id, bson.M{
		"$set": bson.M{
			"status": models.ReadingStatusError,
			"result": result,
		},
	})
}

// conditionalUpdate applies the update only while no result exists yet.
// A miss means another invocation finalized the reading first.
func (s *ReadingStore) conditionalUpdate(ctx context.Context, id primitive.ObjectID, update bson.M) error {
	res, err := s.collection.UpdateOne(ctx, bson.M{
		"_id":    id,
		"result": bson.M{"$exists": false},
	}, update)
	if err != nil {
		return fmt.Errorf("failed to update reading: %w", err)
	}
	if res.MatchedCount == 0 {
		return reading.ErrAlreadyFinalized
	}
	return nil
}

// ClearResult removes the result and AI metadata and resets the reading to
// pending, so it can be reprocessed on demand
func (s *ReadingStore) ClearResult(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set":   bson.M{"status": models.ReadingStatusPending},
		"$unset": bson.M{"result": "", "ai": ""},
	})
	if err != nil {
		return fmt.Errorf("failed to clear reading result: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("reading not found")
	}
	return nil
}
