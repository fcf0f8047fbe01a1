package repository

import (
	"context"
	"time"

	"daycare_realtime_service/internal/realtime/domain"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// NotificationRepository durable store for notifications plus the
// per-recipient read receipts
type NotificationRepository interface {
	Insert(ctx context.Context, n *domain.Notification) error
	// FindForUser direct and role-targeted notifications with the
	// caller's own read state merged in, createdAt descending
	FindForUser(ctx context.Context, userID string, role domain.UserRole) ([]domain.UserNotification, error)
	// MarkRead record a read receipt for one recipient. Idempotent.
	MarkRead(ctx context.Context, notificationID, userID string) error
	// MarkAllRead receipt every notification visible to the user
	MarkAllRead(ctx context.Context, userID string, role domain.UserRole) (int64, error)
}

type notificationRepository struct {
	coll     *mongo.Collection
	receipts *mongo.Collection
}

// NewMongoNotificationRepository create a NotificationRepository
func NewMongoNotificationRepository(db *mongo.Database) NotificationRepository {
	return &notificationRepository{
		coll:     db.Collection("notifications"),
		receipts: db.Collection("notification_receipts"),
	}
}

func (r *notificationRepository) Insert(ctx context.Context, n *domain.Notification) error {
	_, err := r.coll.InsertOne(ctx, n)
	return err
}

func (r *notificationRepository) FindForUser(ctx context.Context, userID string, role domain.UserRole) ([]domain.UserNotification, error) {
	filter := bson.M{
		"$or": bson.A{
			bson.M{"target_user_id": userID},
			bson.M{"target_role": role},
		},
	}
	opts := options.Find().SetSort(bson.M{"created_at": -1})
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	var notifications []domain.Notification
	if err := cur.All(ctx, &notifications); err != nil {
		return nil, err
	}

	read, err := r.readSet(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := make([]domain.UserNotification, 0, len(notifications))
	for _, n := range notifications {
		_, seen := read[n.ID]
		out = append(out, domain.UserNotification{Notification: n, Read: seen})
	}
	return out, nil
}

// readSet every notification id the user already receipted
func (r *notificationRepository) readSet(ctx context.Context, userID string) (map[string]struct{}, error) {
	cur, err := r.receipts.Find(ctx, bson.M{"user_id": userID})
	if err != nil {
		return nil, err
	}
	var receipts []domain.NotificationReceipt
	if err := cur.All(ctx, &receipts); err != nil {
		return nil, err
	}
	read := make(map[string]struct{}, len(receipts))
	for _, rec := range receipts {
		read[rec.NotificationID] = struct{}{}
	}
	return read, nil
}

func (r *notificationRepository) MarkRead(ctx context.Context, notificationID, userID string) error {
	// existence check so marking an unknown notification surfaces as
	// not-found instead of silently receipting garbage
	if err := r.coll.FindOne(ctx, bson.M{"id": notificationID}).Err(); err != nil {
		return err
	}

	filter := bson.M{"notification_id": notificationID, "user_id": userID}
	update := bson.M{"$setOnInsert": bson.M{
		"notification_id": notificationID,
		"user_id":         userID,
		"read_at":         time.Now().UTC(),
	}}
	opts := options.Update().SetUpsert(true)
	_, err := r.receipts.UpdateOne(ctx, filter, update, opts)
	return err
}

func (r *notificationRepository) MarkAllRead(ctx context.Context, userID string, role domain.UserRole) (int64, error) {
	visible, err := r.FindForUser(ctx, userID, role)
	if err != nil {
		return 0, err
	}

	var count int64
	for _, n := range visible {
		if n.Read {
			continue
		}
		if err := r.MarkRead(ctx, n.ID, userID); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}
