package repository

import (
	"context"

	"daycare_realtime_service/internal/realtime/domain"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MessageRepository durable store for direct messages
type MessageRepository interface {
	// Insert persist a new message. Fan-out must only happen after this
	// returns nil.
	Insert(ctx context.Context, msg *domain.Message) error
	// FindConversation both directions between two users, createdAt ascending
	FindConversation(ctx context.Context, userA, userB string) ([]domain.Message, error)
	// MarkRead flip the read flag. Idempotent, a second call is a no-op.
	MarkRead(ctx context.Context, messageID string) error
	// MarkAllRead flip every unread message addressed to the receiver
	MarkAllRead(ctx context.Context, receiverID string) (int64, error)
	// CountUnreadByPeer unread summary grouped by conversation peer
	CountUnreadByPeer(ctx context.Context, userID string) ([]domain.PeerUnreadInfo, error)
}

type messageRepository struct {
	coll *mongo.Collection
}

// NewMongoMessageRepository create a MessageRepository
func NewMongoMessageRepository(db *mongo.Database) MessageRepository {
	return &messageRepository{
		coll: db.Collection("messages"),
	}
}

func (r *messageRepository) Insert(ctx context.Context, msg *domain.Message) error {
	_, err := r.coll.InsertOne(ctx, msg)
	return err
}

func (r *messageRepository) FindConversation(ctx context.Context, userA, userB string) ([]domain.Message, error) {
	filter := bson.M{
		"$or": bson.A{
			bson.M{"sender_id": userA, "receiver_id": userB},
			bson.M{"sender_id": userB, "receiver_id": userA},
		},
	}
	opts := options.Find().SetSort(bson.M{"created_at": 1})
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	var messages []domain.Message
	if err := cur.All(ctx, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

func (r *messageRepository) MarkRead(ctx context.Context, messageID string) error {
	filter := bson.M{"id": messageID}
	update := bson.M{"$set": bson.M{"read": true}}
	res, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

func (r *messageRepository) MarkAllRead(ctx context.Context, receiverID string) (int64, error) {
	filter := bson.M{"receiver_id": receiverID, "read": false}
	update := bson.M{"$set": bson.M{"read": true}}
	res, err := r.coll.UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

func (r *messageRepository) CountUnreadByPeer(ctx context.Context, userID string) ([]domain.PeerUnreadInfo, error) {
	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.D{
			{Key: "receiver_id", Value: userID},
			{Key: "read", Value: false},
		}}},
		bson.D{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$sender_id"},
			{Key: "unread_count", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "last_unread_at", Value: bson.D{{Key: "$max", Value: "$created_at"}}},
		}}},
		bson.D{{Key: "$sort", Value: bson.D{
			{Key: "last_unread_at", Value: -1},
		}}},
	}

	cur, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}

	var results []domain.PeerUnreadInfo
	if err := cur.All(ctx, &results); err != nil {
		return nil, err
	}

	return results, nil
}
