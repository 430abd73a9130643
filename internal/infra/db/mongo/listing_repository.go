package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	domainlistings "estately/internal/domain/listings"
)

type ListingRepository struct {
	col *mongo.Collection
}

func NewListingRepository(db *mongo.Database) *ListingRepository {
	return &ListingRepository{col: db.Collection("listings")}
}

func (r *ListingRepository) FindWithAgent(ctx context.Context, id domainlistings.ListingID) (*domainlistings.Listing, error) {
	var doc listingDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainlistings.ErrNotFound
		}
		return nil, err
	}
	return doc.toEntity(), nil
}

func (r *ListingRepository) Save(ctx context.Context, listing *domainlistings.Listing) error {
	doc := newListingDocument(listing)
	filter := bson.M{"_id": doc.ID}
	update := bson.M{"$set": doc}
	opts := upsertOptions()
	_, err := r.col.UpdateOne(ctx, filter, update, opts)
	return err
}

func (r *ListingRepository) Count(ctx context.Context) (int64, error) {
	return r.col.CountDocuments(ctx, bson.M{})
}

type listingDocument struct {
	ID         string `bson:"_id"`
	AgentID    string `bson:"agent_id"`
	Title      string `bson:"title"`
	City       string `bson:"city"`
	PriceCents int64  `bson:"price_cents"`
	State      string `bson:"state"`
	CreatedAt  int64  `bson:"created_at"`
	UpdatedAt  int64  `bson:"updated_at"`
}

func newListingDocument(l *domainlistings.Listing) listingDocument {
	return listingDocument{
		ID:         string(l.ID),
		AgentID:    string(l.Agent),
		Title:      l.Title,
		City:       l.City,
		PriceCents: l.PriceCents,
		State:      string(l.State),
		CreatedAt:  l.CreatedAt.UnixMilli(),
		UpdatedAt:  l.UpdatedAt.UnixMilli(),
	}
}

func (d listingDocument) toEntity() *domainlistings.Listing {
	return &domainlistings.Listing{
		ID:         domainlistings.ListingID(d.ID),
		Agent:      domainlistings.AgentID(d.AgentID),
		Title:      d.Title,
		City:       d.City,
		PriceCents: d.PriceCents,
		State:      domainlistings.ListingState(d.State),
		CreatedAt:  timestampToTime(d.CreatedAt),
		UpdatedAt:  timestampToTime(d.UpdatedAt),
	}
}

var _ domainlistings.Repository = (*ListingRepository)(nil)
