package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TargetKind identifies a content collection whose documents can be voted on or bookmarked
type TargetKind string

const (
	KindPost     TargetKind = "post"
	KindAnswer   TargetKind = "answer"
	KindQuestion TargetKind = "question"
	KindResource TargetKind = "resource"
	KindJob      TargetKind = "job"
	KindLink     TargetKind = "link"
	KindTip      TargetKind = "tip"
	KindCourse   TargetKind = "course"
)

var targetCollections = map[TargetKind]string{
	KindPost:     "forum_posts",
	KindAnswer:   "forum_answers",
	KindQuestion: "questions",
	KindResource: "resources",
	KindJob:      "jobs",
	KindLink:     "important_links",
	KindTip:      "money_tips",
	KindCourse:   "courses",
}

// TargetKinds lists every kind in a stable order.
func TargetKinds() []TargetKind {
	return []TargetKind{KindPost, KindAnswer, KindQuestion, KindResource, KindJob, KindLink, KindTip, KindCourse}
}

// Valid reports whether k names a known content collection.
func (k TargetKind) Valid() bool {
	_, ok := targetCollections[k]
	return ok
}

// Collection returns the MongoDB collection that stores documents of this kind.
func (k TargetKind) Collection() string {
	return targetCollections[k]
}

// TargetRef points at one content document.
type TargetRef struct {
	Kind TargetKind `json:"kind"`
	ID   string     `json:"id"`
}

func (r TargetRef) String() string {
	return string(r.Kind) + "/" + r.ID
}

// VoteDirection is either "up" or "down"
type VoteDirection string

const (
	VoteUp   VoteDirection = "up"
	VoteDown VoteDirection = "down"
)

func (d VoteDirection) Valid() bool {
	return d == VoteUp || d == VoteDown
}

// Opposite returns the other direction.
func (d VoteDirection) Opposite() VoteDirection {
	if d == VoteUp {
		return VoteDown
	}
	return VoteUp
}

// InteractionTarget is the engagement view of a content document stored in MongoDB.
// Upvotes == len(Upvoters) and Downvotes == len(Downvoters) at all times.
type InteractionTarget struct {
	ID                  primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	AuthorID            string             `json:"author_id" bson:"author_id"`
	Title               string             `json:"title,omitempty" bson:"title,omitempty"`
	Upvotes             int                `json:"upvotes" bson:"upvotes"`
	Downvotes           int                `json:"downvotes" bson:"downvotes"`
	Upvoters            []string           `json:"-" bson:"upvoters"`
	Downvoters          []string           `json:"-" bson:"downvoters"`
	Bookmarkers         []string           `json:"-" bson:"bookmarkers"`
	IsActive            *bool              `json:"is_active,omitempty" bson:"is_active,omitempty"`
	ApplicationDeadline *time.Time         `json:"application_deadline,omitempty" bson:"application_deadline,omitempty"`
	CreatedAt           time.Time          `json:"created_at" bson:"created_at"`
}

// Active reports whether the document is publicly visible. Documents without the flag are active.
func (t *InteractionTarget) Active() bool {
	return t.IsActive == nil || *t.IsActive
}

// VoteRequest defines the request body for toggling a vote
type VoteRequest struct {
	Direction VoteDirection `json:"direction" validate:"required,oneof=up down"`
}
