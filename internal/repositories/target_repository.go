package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/anonto42/campus-hub/backend/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// TargetRepository defines the engagement operations on content documents.
// Every vote method is a single conditional update; matched is false when the
// membership precondition did not hold (or the document is gone).
type TargetRepository interface {
	CreateTarget(ctx context.Context, kind models.TargetKind, target *models.InteractionTarget) error
	GetTarget(ctx context.Context, ref models.TargetRef) (*models.InteractionTarget, error)
	Exists(ctx context.Context, ref models.TargetRef) (bool, error)
	RemoveVote(ctx context.Context, ref models.TargetRef, actorID string, dir models.VoteDirection) (*models.InteractionTarget, bool, error)
	SwitchVote(ctx context.Context, ref models.TargetRef, actorID string, dir models.VoteDirection) (*models.InteractionTarget, bool, error)
	AddVote(ctx context.Context, ref models.TargetRef, actorID string, dir models.VoteDirection) (*models.InteractionTarget, bool, error)
	AddBookmarker(ctx context.Context, ref models.TargetRef, actorID string) error
	RemoveBookmarker(ctx context.Context, ref models.TargetRef, actorID string) error
	SetBookmarkers(ctx context.Context, ref models.TargetRef, actorIDs []string) error
	BookmarkerSets(ctx context.Context, kind models.TargetKind) (map[string][]string, error)
	FilterActive(ctx context.Context, kind models.TargetKind, ids []string) ([]string, error)
	DeactivateExpired(ctx context.Context, kind models.TargetKind, now time.Time) (int64, error)
	EnsureIndexes(ctx context.Context) error
}

// MongoTargetRepository implements TargetRepository for MongoDB
type MongoTargetRepository struct {
	db *mongo.Database
}

// NewMongoTargetRepository creates a new MongoTargetRepository
func NewMongoTargetRepository(db *mongo.Database) *MongoTargetRepository {
	return &MongoTargetRepository{db: db}
}

func (r *MongoTargetRepository) collection(kind models.TargetKind) *mongo.Collection {
	return r.db.Collection(kind.Collection())
}

func voteFields(dir models.VoteDirection) (count, set string) {
	if dir == models.VoteUp {
		return "upvotes", "upvoters"
	}
	return "downvotes", "downvoters"
}

func parseObjectID(id string) (primitive.ObjectID, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return objID, nil
}

// CreateTarget inserts a document with empty membership sets and zero counts
func (r *MongoTargetRepository) CreateTarget(ctx context.Context, kind models.TargetKind, target *models.InteractionTarget) error {
	target.ID = primitive.NewObjectID()
	target.Upvotes, target.Downvotes = 0, 0
	target.Upvoters, target.Downvoters, target.Bookmarkers = []string{}, []string{}, []string{}
	if target.CreatedAt.IsZero() {
		target.CreatedAt = time.Now()
	}
	_, err := r.collection(kind).InsertOne(ctx, target)
	return err
}

// GetTarget retrieves a document by reference
func (r *MongoTargetRepository) GetTarget(ctx context.Context, ref models.TargetRef) (*models.InteractionTarget, error) {
	objID, err := parseObjectID(ref.ID)
	if err != nil {
		return nil, err
	}

	var target models.InteractionTarget
	err = r.collection(ref.Kind).FindOne(ctx, bson.M{"_id": objID}).Decode(&target)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &target, nil
}

func (r *MongoTargetRepository) Exists(ctx context.Context, ref models.TargetRef) (bool, error) {
	objID, err := parseObjectID(ref.ID)
	if err != nil {
		return false, err
	}
	n, err := r.collection(ref.Kind).CountDocuments(ctx, bson.M{"_id": objID}, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *MongoTargetRepository) findAndUpdate(ctx context.Context, ref models.TargetRef, filter, update bson.M) (*models.InteractionTarget, bool, error) {
	objID, err := parseObjectID(ref.ID)
	if err != nil {
		return nil, false, err
	}
	filter["_id"] = objID

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var target models.InteractionTarget
	err = r.collection(ref.Kind).FindOneAndUpdate(ctx, filter, update, opts).Decode(&target)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return &target, true, nil
}

// RemoveVote pulls the actor out of the dir set and decrements its count, only if the actor is a member
func (r *MongoTargetRepository) RemoveVote(ctx context.Context, ref models.TargetRef, actorID string, dir models.VoteDirection) (*models.InteractionTarget, bool, error) {
	count, set := voteFields(dir)
	filter := bson.M{set: actorID, count: bson.M{"$gt": 0}}
	update := bson.M{
		"$pull": bson.M{set: actorID},
		"$inc":  bson.M{count: -1},
	}
	return r.findAndUpdate(ctx, ref, filter, update)
}

// SwitchVote moves the actor from the opposite set into the dir set in one update
func (r *MongoTargetRepository) SwitchVote(ctx context.Context, ref models.TargetRef, actorID string, dir models.VoteDirection) (*models.InteractionTarget, bool, error) {
	count, set := voteFields(dir)
	oppCount, oppSet := voteFields(dir.Opposite())
	filter := bson.M{oppSet: actorID, set: bson.M{"$ne": actorID}, oppCount: bson.M{"$gt": 0}}
	update := bson.M{
		"$pull":     bson.M{oppSet: actorID},
		"$addToSet": bson.M{set: actorID},
		"$inc":      bson.M{oppCount: -1, count: 1},
	}
	return r.findAndUpdate(ctx, ref, filter, update)
}

// AddVote adds the actor to the dir set when it holds neither direction
func (r *MongoTargetRepository) AddVote(ctx context.Context, ref models.TargetRef, actorID string, dir models.VoteDirection) (*models.InteractionTarget, bool, error) {
	count, set := voteFields(dir)
	filter := bson.M{"upvoters": bson.M{"$ne": actorID}, "downvoters": bson.M{"$ne": actorID}}
	update := bson.M{
		"$addToSet": bson.M{set: actorID},
		"$inc":      bson.M{count: 1},
	}
	return r.findAndUpdate(ctx, ref, filter, update)
}

func (r *MongoTargetRepository) updateByID(ctx context.Context, ref models.TargetRef, update bson.M) error {
	objID, err := parseObjectID(ref.ID)
	if err != nil {
		return err
	}
	res, err := r.collection(ref.Kind).UpdateOne(ctx, bson.M{"_id": objID}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoTargetRepository) AddBookmarker(ctx context.Context, ref models.TargetRef, actorID string) error {
	return r.updateByID(ctx, ref, bson.M{"$addToSet": bson.M{"bookmarkers": actorID}})
}

func (r *MongoTargetRepository) RemoveBookmarker(ctx context.Context, ref models.TargetRef, actorID string) error {
	return r.updateByID(ctx, ref, bson.M{"$pull": bson.M{"bookmarkers": actorID}})
}

// SetBookmarkers overwrites the cached bookmarker set
func (r *MongoTargetRepository) SetBookmarkers(ctx context.Context, ref models.TargetRef, actorIDs []string) error {
	if actorIDs == nil {
		actorIDs = []string{}
	}
	return r.updateByID(ctx, ref, bson.M{"$set": bson.M{"bookmarkers": actorIDs}})
}

// BookmarkerSets returns the non-empty bookmarker sets of a collection keyed by document id
func (r *MongoTargetRepository) BookmarkerSets(ctx context.Context, kind models.TargetKind) (map[string][]string, error) {
	findOptions := options.Find().SetProjection(bson.M{"_id": 1, "bookmarkers": 1})
	cursor, err := r.collection(kind).Find(ctx, bson.M{"bookmarkers.0": bson.M{"$exists": true}}, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []models.InteractionTarget
	if err = cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	sets := make(map[string][]string, len(docs))
	for _, d := range docs {
		sets[d.ID.Hex()] = d.Bookmarkers
	}
	return sets, nil
}

// FilterActive keeps the ids that still exist and are not deactivated, preserving input order
func (r *MongoTargetRepository) FilterActive(ctx context.Context, kind models.TargetKind, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return []string{}, nil
	}
	objIDs := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if objID, err := primitive.ObjectIDFromHex(id); err == nil {
			objIDs = append(objIDs, objID)
		}
	}

	filter := bson.M{"_id": bson.M{"$in": objIDs}, "is_active": bson.M{"$ne": false}}
	cursor, err := r.collection(kind).Find(ctx, filter, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []models.InteractionTarget
	if err = cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	found := make(map[string]bool, len(docs))
	for _, d := range docs {
		found[d.ID.Hex()] = true
	}
	return keepOrdered(ids, found), nil
}

// DeactivateExpired marks documents whose application deadline has passed as inactive
func (r *MongoTargetRepository) DeactivateExpired(ctx context.Context, kind models.TargetKind, now time.Time) (int64, error) {
	filter := bson.M{
		"application_deadline": bson.M{"$lt": now},
		"is_active":            bson.M{"$ne": false},
	}
	res, err := r.collection(kind).UpdateMany(ctx, filter, bson.M{"$set": bson.M{"is_active": false}})
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// EnsureIndexes creates the multikey indexes backing membership filters
func (r *MongoTargetRepository) EnsureIndexes(ctx context.Context) error {
	indexModels := []mongo.IndexModel{
		{Keys: bson.D{{Key: "upvoters", Value: 1}}},
		{Keys: bson.D{{Key: "downvoters", Value: 1}}},
		{Keys: bson.D{{Key: "bookmarkers", Value: 1}}},
	}
	for _, kind := range models.TargetKinds() {
		if _, err := r.collection(kind).Indexes().CreateMany(ctx, indexModels); err != nil {
			return fmt.Errorf("create indexes on %s: %w", kind.Collection(), err)
		}
	}
	_, err := r.collection(models.KindJob).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "application_deadline", Value: 1}, {Key: "is_active", Value: 1}},
	})
	return err
}

func keepOrdered(ids []string, keep map[string]bool) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if keep[id] {
			out = append(out, id)
		}
	}
	return out
}
