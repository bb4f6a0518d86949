package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/agencydesk/support-chat-service/internal/models"
	"github.com/agencydesk/support-chat-service/internal/receipts"
)

// MongoRepository stores each conversation as a single document in the
// "chats" collection. All mutations go through update operators so the
// message log and the unread counters move in the same atomic step.
type MongoRepository struct {
	coll *mongo.Collection
}

func NewMongoRepository(db *mongo.Database) *MongoRepository {
	r := &MongoRepository{coll: db.Collection("chats")}
	_, _ = r.coll.Indexes().CreateMany(context.Background(), []mongo.IndexModel{
		{Keys: bson.D{{Key: "participants.user_id", Value: 1}}},
		{Keys: bson.D{{Key: "updated_at", Value: -1}}},
	})
	return r
}

func (r *MongoRepository) FindByParticipants(ctx context.Context, userID, adminID string) (*models.Conversation, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	filter := bson.M{
		"participants.user_id": bson.M{"$all": bson.A{userID, adminID}},
		"is_active":            true,
	}
	var c models.Conversation
	if err := r.coll.FindOne(ctx, filter).Decode(&c); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *MongoRepository) Create(ctx context.Context, user, admin models.Participant) (*models.Conversation, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if _, err := r.FindByParticipants(ctx, user.UserID, admin.UserID); err == nil {
		return nil, ErrConflict
	} else if err != ErrNotFound {
		return nil, err
	}

	now := time.Now().UTC()
	c := &models.Conversation{
		Participants: []models.Participant{user, admin},
		Messages:     []models.Message{},
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	res, err := r.coll.InsertOne(ctx, c)
	if err != nil {
		return nil, err
	}
	c.ID = res.InsertedID.(primitive.ObjectID)
	return c, nil
}

func (r *MongoRepository) FindByID(ctx context.Context, id string) (*models.Conversation, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	var c models.Conversation
	if err := r.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&c); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *MongoRepository) AppendMessage(ctx context.Context, id string, msg *models.Message) (*models.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}

	filter := bson.M{"_id": oid, "is_active": true}
	if msg.ClientMsgID != "" {
		filter["messages.client_msg_id"] = bson.M{"$ne": msg.ClientMsgID}
	}

	counterField := "unread_count.user"
	if receipts.Receiver(msg.SenderRole) == models.RoleAdmin {
		counterField = "unread_count.admin"
	}
	update := bson.M{
		"$push": bson.M{"messages": msg},
		"$set": bson.M{
			"last_message": models.LastMessage{
				Content:  msg.Content,
				SenderID: msg.SenderID,
				SentAt:   msg.SentAt,
			},
			"updated_at": msg.SentAt,
		},
		"$inc": bson.M{counterField: 1},
	}

	res, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return nil, err
	}
	if res.MatchedCount == 1 {
		return msg, nil
	}

	// Filter missed: conversation gone, soft-deleted, or the client id was
	// already appended. Only the last case is a success (retry dedupe).
	c, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !c.IsActive {
		return nil, ErrNotFound
	}
	if msg.ClientMsgID != "" {
		for i := range c.Messages {
			if c.Messages[i].ClientMsgID == msg.ClientMsgID {
				return &c.Messages[i], nil
			}
		}
	}
	return nil, ErrNotFound
}

func (r *MongoRepository) MarkRead(ctx context.Context, id string, readerRole models.Role, now time.Time) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return 0, ErrNotFound
	}

	update := bson.M{"$set": bson.M{
		"messages.$[elem].is_read": true,
		"messages.$[elem].read_at": now,
		"unread_count." + string(readerRole): 0,
		"updated_at":                         now,
	}}
	opts := options.FindOneAndUpdate().
		SetArrayFilters(options.ArrayFilters{Filters: bson.A{
			bson.M{"elem.is_read": false, "elem.sender_role": readerRole.Opposite()},
		}}).
		SetReturnDocument(options.Before)

	var before models.Conversation
	if err := r.coll.FindOneAndUpdate(ctx, bson.M{"_id": oid}, update, opts).Decode(&before); err != nil {
		if err == mongo.ErrNoDocuments {
			return 0, ErrNotFound
		}
		return 0, err
	}
	return len(receipts.UnreadFor(before.Messages, readerRole)), nil
}

func (r *MongoRepository) ResetUnread(ctx context.Context, id string, readerRole models.Role) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}
	res, err := r.coll.UpdateByID(ctx, oid, bson.M{"$set": bson.M{
		"unread_count." + string(readerRole): 0,
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoRepository) ListActive(ctx context.Context, page Page) ([]*models.Conversation, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	filter := bson.M{"is_active": true}
	total, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "updated_at", Value: -1}}).
		SetSkip(page.Skip()).
		SetLimit(int64(page.Limit))
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cur.Close(ctx)

	var out []*models.Conversation
	for cur.Next(ctx) {
		var c models.Conversation
		if err := cur.Decode(&c); err != nil {
			return nil, 0, err
		}
		out = append(out, &c)
	}
	return out, total, cur.Err()
}

func (r *MongoRepository) UnreadTotalForAdmin(ctx context.Context) (int, error) {
	return r.sumUnread(ctx, bson.M{"is_active": true}, models.RoleAdmin)
}

func (r *MongoRepository) UnreadTotalForUser(ctx context.Context, userID string) (int, error) {
	filter := bson.M{"is_active": true, "participants.user_id": userID}
	return r.sumUnread(ctx, filter, models.RoleUser)
}

func (r *MongoRepository) sumUnread(ctx context.Context, filter bson.M, role models.Role) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	opts := options.Find().SetProjection(bson.M{"unread_count": 1})
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return 0, err
	}
	defer cur.Close(ctx)

	var total int
	for cur.Next(ctx) {
		var c models.Conversation
		if err := cur.Decode(&c); err != nil {
			return 0, err
		}
		total += c.UnreadCount.For(role)
	}
	return total, cur.Err()
}

func (r *MongoRepository) SoftDelete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}
	res, err := r.coll.UpdateByID(ctx, oid, bson.M{"$set": bson.M{
		"is_active":  false,
		"updated_at": time.Now().UTC(),
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
