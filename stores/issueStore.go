package stores

import (
	"context"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Pariharx7/CivicTrack/models"
	"github.com/Pariharx7/CivicTrack/utils"
)

// DefaultNearbyRadiusMeters applies when a nearby query does not name a
// radius.
const DefaultNearbyRadiusMeters = 3000.0

// IssueFilter narrows the general listing. Empty fields match
// everything; values are trimmed before use.
type IssueFilter struct {
	Category string
	Status   string
}

// IssueStore is the authoritative collection of issue records.
type IssueStore struct {
	collection *mongo.Collection
}

func NewIssueStore(collection *mongo.Collection) *IssueStore {
	return &IssueStore{collection: collection}
}

// Create persists a new issue with its initial lifecycle state.
func (s *IssueStore) Create(ctx context.Context, issue *models.Issue) error {
	now := time.Now()
	issue.ID = primitive.NewObjectID()
	issue.Status = models.StatusPending
	issue.Logs = []models.StatusLog{}
	issue.FlaggedCount = 0
	issue.IsFlagged = false
	issue.CreatedAt = now
	issue.UpdatedAt = now

	_, err := s.collection.InsertOne(ctx, issue)
	return err
}

// GetByID looks an issue up by its id. Flagged issues stay retrievable
// here; only the nearby query hides them.
func (s *IssueStore) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Issue, error) {
	var issue models.Issue
	err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&issue)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, utils.NewNotFoundError("Issue not found")
		}
		return nil, err
	}
	return &issue, nil
}

// List returns one page of issues matching the filter, newest first,
// along with the total match count.
func (s *IssueStore) List(ctx context.Context, filter IssueFilter, page, perPage int) ([]models.Issue, int64, error) {
	query := bson.M{}
	if category := strings.TrimSpace(filter.Category); category != "" {
		query["category"] = category
	}
	if status := strings.TrimSpace(filter.Status); status != "" {
		query["status"] = status
	}

	total, err := s.collection.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, err
	}

	pagination := utils.NewPagination(total, page, perPage)
	findOptions := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetSkip(int64(pagination.Offset())).
		SetLimit(int64(pagination.PerPage))

	cursor, err := s.collection.Find(ctx, query, findOptions)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	issues := []models.Issue{}
	if err := cursor.All(ctx, &issues); err != nil {
		return nil, 0, err
	}
	return issues, total, nil
}

// ListNearby returns unflagged issues within radiusMeters of the given
// point, newest first. The $near operator uses the 2dsphere index and
// spherical distance; coordinates are [lng, lat].
func (s *IssueStore) ListNearby(ctx context.Context, lng, lat, radiusMeters float64) ([]models.Issue, error) {
	if radiusMeters <= 0 {
		radiusMeters = DefaultNearbyRadiusMeters
	}

	query := bson.M{
		"location": bson.M{
			"$near": bson.M{
				"$geometry": bson.M{
					"type":        "Point",
					"coordinates": []float64{lng, lat},
				},
				"$maxDistance": radiusMeters,
			},
		},
		"isFlagged": false,
	}

	findOptions := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})

	cursor, err := s.collection.Find(ctx, query, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	issues := []models.Issue{}
	if err := cursor.All(ctx, &issues); err != nil {
		return nil, err
	}
	return issues, nil
}

// UpdateStatus moves an issue to newStatus and appends one entry to its
// append-only log, in a single document update.
func (s *IssueStore) UpdateStatus(ctx context.Context, id primitive.ObjectID, newStatus models.IssueStatus, comment string, updatedBy primitive.ObjectID) (*models.Issue, error) {
	now := time.Now()
	if comment == "" {
		comment = models.DefaultStatusComment(newStatus)
	}

	entry := models.StatusLog{
		Status:    newStatus,
		Comment:   comment,
		UpdatedBy: updatedBy,
		UpdatedAt: now,
	}

	update := bson.M{
		"$set":  bson.M{"status": newStatus, "updatedAt": now},
		"$push": bson.M{"logs": entry},
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var issue models.Issue
	err := s.collection.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&issue)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, utils.NewNotFoundError("Issue not found")
		}
		return nil, err
	}
	return &issue, nil
}

// Flag increments the issue's flag counter with an atomic $inc, so
// concurrent flags never lose updates, and hides the issue once the
// threshold is reached. The flag never auto-clears.
func (s *IssueStore) Flag(ctx context.Context, id primitive.ObjectID) (*models.Issue, error) {
	update := bson.M{
		"$inc": bson.M{"flaggedCount": 1},
		"$set": bson.M{"updatedAt": time.Now()},
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var issue models.Issue
	err := s.collection.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&issue)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, utils.NewNotFoundError("Issue not found")
		}
		return nil, err
	}

	if issue.FlaggedCount >= models.FlagThreshold && !issue.IsFlagged {
		_, err := s.collection.UpdateOne(ctx,
			bson.M{"_id": id, "flaggedCount": bson.M{"$gte": models.FlagThreshold}},
			bson.M{"$set": bson.M{"isFlagged": true}},
		)
		if err != nil {
			return nil, err
		}
		issue.IsFlagged = true
	}

	return &issue, nil
}

// Delete removes an issue permanently. There is no soft delete.
func (s *IssueStore) Delete(ctx context.Context, id primitive.ObjectID) error {
	result, err := s.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return utils.NewNotFoundError("Issue not found")
	}
	return nil
}
