package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainchat "estately/internal/domain/chat"
	domainlistings "estately/internal/domain/listings"
	domainuser "estately/internal/domain/user"
)

type ConversationRepository struct {
	col *mongo.Collection
}

func NewConversationRepository(db *mongo.Database) *ConversationRepository {
	return &ConversationRepository{col: db.Collection("chat_conversations")}
}

// EnsureIndexes creates the unique (listing, seller, buyer) index the
// get-or-create race safety depends on. Must run before serving traffic.
func (r *ConversationRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "listing_id", Value: 1},
			{Key: "seller_id", Value: 1},
			{Key: "buyer_id", Value: 1},
		},
		Options: options.Index().SetUnique(true).SetName("uniq_listing_pair"),
	})
	return err
}

// GetOrCreate returns the conversation for the triple, inserting it on
// first contact. A concurrent insert losing against the unique index is
// resolved by re-reading the winner's row.
func (r *ConversationRepository) GetOrCreate(ctx context.Context, conversation *domainchat.Conversation) (*domainchat.Conversation, error) {
	filter := bson.M{
		"listing_id": string(conversation.ListingID),
		"seller_id":  string(conversation.SellerID),
		"buyer_id":   string(conversation.BuyerID),
	}
	existing, err := r.findOne(ctx, filter)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, domainchat.ErrConversationNotFound) {
		return nil, err
	}

	doc := newConversationDocument(conversation)
	if _, err := r.col.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return r.findOne(ctx, filter)
		}
		return nil, err
	}
	return doc.toEntity(), nil
}

func (r *ConversationRepository) ByID(ctx context.Context, id domainchat.ConversationID) (*domainchat.Conversation, error) {
	return r.findOne(ctx, bson.M{"_id": string(id)})
}

func (r *ConversationRepository) ByParticipant(ctx context.Context, id domainuser.ID) ([]*domainchat.Conversation, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"seller_id": string(id)},
		bson.M{"buyer_id": string(id)},
	}}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	result := make([]*domainchat.Conversation, 0)
	for cursor.Next(ctx) {
		var doc conversationDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		result = append(result, doc.toEntity())
	}
	return result, cursor.Err()
}

func (r *ConversationRepository) Count(ctx context.Context) (int64, error) {
	return r.col.CountDocuments(ctx, bson.M{})
}

func (r *ConversationRepository) findOne(ctx context.Context, filter bson.M) (*domainchat.Conversation, error) {
	var doc conversationDocument
	if err := r.col.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainchat.ErrConversationNotFound
		}
		return nil, err
	}
	return doc.toEntity(), nil
}

type conversationDocument struct {
	ID        string `bson:"_id"`
	ListingID string `bson:"listing_id"`
	SellerID  string `bson:"seller_id"`
	BuyerID   string `bson:"buyer_id"`
	CreatedAt int64  `bson:"created_at"`
}

func newConversationDocument(c *domainchat.Conversation) conversationDocument {
	return conversationDocument{
		ID:        string(c.ID),
		ListingID: string(c.ListingID),
		SellerID:  string(c.SellerID),
		BuyerID:   string(c.BuyerID),
		CreatedAt: c.CreatedAt.UnixMilli(),
	}
}

func (d conversationDocument) toEntity() *domainchat.Conversation {
	return &domainchat.Conversation{
		ID:        domainchat.ConversationID(d.ID),
		ListingID: domainlistings.ListingID(d.ListingID),
		SellerID:  domainuser.ID(d.SellerID),
		BuyerID:   domainuser.ID(d.BuyerID),
		CreatedAt: timestampToTime(d.CreatedAt),
	}
}

func timestampToTime(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

var _ domainchat.ConversationStore = (*ConversationRepository)(nil)
