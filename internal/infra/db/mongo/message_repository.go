package mongo

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainchat "estately/internal/domain/chat"
	domainuser "estately/internal/domain/user"
)

type MessageRepository struct {
	col *mongo.Collection
}

func NewMessageRepository(db *mongo.Database) *MessageRepository {
	return &MessageRepository{col: db.Collection("chat_messages")}
}

func (r *MessageRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "conversation_id", Value: 1},
			{Key: "created_at", Value: 1},
		},
		Options: options.Index().SetName("conversation_order"),
	})
	return err
}

func (r *MessageRepository) Add(ctx context.Context, message *domainchat.Message) error {
	_, err := r.col.InsertOne(ctx, newMessageDocument(message))
	return err
}

// ListByConversation returns messages oldest first. With a positive limit
// the most recent messages win, still returned in creation order.
func (r *MessageRepository) ListByConversation(ctx context.Context, id domainchat.ConversationID, limit int) ([]*domainchat.Message, error) {
	filter := bson.M{"conversation_id": string(id)}
	opts := options.Find()
	reversed := false
	if limit > 0 {
		opts.SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).SetLimit(int64(limit))
		reversed = true
	} else {
		opts.SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	}
	cursor, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	result := make([]*domainchat.Message, 0)
	for cursor.Next(ctx) {
		var doc messageDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		result = append(result, doc.toEntity())
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	if reversed {
		for i, j := 0, len(result)-1; i < j; i, j = i+1, j-1 {
			result[i], result[j] = result[j], result[i]
		}
	}
	return result, nil
}

func (r *MessageRepository) MarkRead(ctx context.Context, id domainchat.ConversationID, reader domainuser.ID) (int, error) {
	filter := bson.M{
		"conversation_id": string(id),
		"author_id":       bson.M{"$ne": string(reader)},
		"status":          string(domainchat.StatusSent),
	}
	update := bson.M{"$set": bson.M{"status": string(domainchat.StatusRead)}}
	res, err := r.col.UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, err
	}
	return int(res.ModifiedCount), nil
}

func (r *MessageRepository) Count(ctx context.Context) (int64, error) {
	return r.col.CountDocuments(ctx, bson.M{})
}

type messageDocument struct {
	ID             string `bson:"_id"`
	ConversationID string `bson:"conversation_id"`
	AuthorID       string `bson:"author_id"`
	Text           string `bson:"text"`
	Status         string `bson:"status"`
	CreatedAt      int64  `bson:"created_at"`
}

func newMessageDocument(m *domainchat.Message) messageDocument {
	return messageDocument{
		ID:             string(m.ID),
		ConversationID: string(m.ConversationID),
		AuthorID:       string(m.AuthorID),
		Text:           m.Text,
		Status:         string(m.Status),
		CreatedAt:      m.CreatedAt.UnixMilli(),
	}
}

func (d messageDocument) toEntity() *domainchat.Message {
	return &domainchat.Message{
		ID:             domainchat.MessageID(d.ID),
		ConversationID: domainchat.ConversationID(d.ConversationID),
		AuthorID:       domainuser.ID(d.AuthorID),
		Text:           d.Text,
		Status:         domainchat.MessageStatus(d.Status),
		CreatedAt:      timestampToTime(d.CreatedAt),
	}
}

var _ domainchat.MessageStore = (*MessageRepository)(nil)
