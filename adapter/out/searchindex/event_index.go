// Package searchindex implements the metadata side-index port (out.SearchIndex)
// over MongoDB, mirroring the teacher's mongodb report adapter's
// collection/index/upsert shape.
package searchindex

import (
	"context"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"nittei/core/domain"
)

const collectionEventMetadata = "event_metadata"

// eventDoc is the stored shape: one document per event, carrying only the
// fields the metadata predicate needs to match against.
type eventDoc struct {
	EventID   uuid.UUID       `bson:"event_id"`
	AccountID uuid.UUID       `bson:"account_id"`
	Metadata  domain.Metadata `bson:"metadata"`
}

// EventIndex implements out.SearchIndex.
type EventIndex struct {
	collection *mongo.Collection
}

// NewEventIndex wires the metadata collection.
func NewEventIndex(db *mongo.Database) *EventIndex {
	return &EventIndex{collection: db.Collection(collectionEventMetadata)}
}

// EnsureIndexes creates the indexes MatchEventIDs relies on.
func (a *EventIndex) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "event_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "account_id", Value: 1}},
		},
	}
	_, err := a.collection.Indexes().CreateMany(ctx, indexes)
	return err
}

// UpsertEvent stores (or replaces) one event's metadata document.
func (a *EventIndex) UpsertEvent(ctx context.Context, accountID, eventID uuid.UUID, metadata domain.Metadata) error {
	doc := eventDoc{EventID: eventID, AccountID: accountID, Metadata: metadata}
	_, err := a.collection.ReplaceOne(ctx,
		bson.M{"event_id": eventID}, doc,
		options.Replace().SetUpsert(true))
	return err
}

// DeleteEvent removes an event's metadata document.
func (a *EventIndex) DeleteEvent(ctx context.Context, eventID uuid.UUID) error {
	_, err := a.collection.DeleteOne(ctx, bson.M{"event_id": eventID})
	return err
}

// MatchEventIDs returns every event id under accountID whose metadata
// document contains query as a subset (every key in query equals the
// stored value for that key).
func (a *EventIndex) MatchEventIDs(ctx context.Context, accountID uuid.UUID, query domain.Metadata) ([]uuid.UUID, error) {
	filter := bson.M{"account_id": accountID}
	for k, v := range query {
		filter["metadata."+k] = v
	}
	cur, err := a.collection.Find(ctx, filter, options.Find().SetProjection(bson.M{"event_id": 1}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var ids []uuid.UUID
	for cur.Next(ctx) {
		var doc struct {
			EventID uuid.UUID `bson:"event_id"`
		}
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		ids = append(ids, doc.EventID)
	}
	return ids, cur.Err()
}
