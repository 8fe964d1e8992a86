package repository

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/nomadsim/esim_api/internal/models"
	"github.com/nomadsim/esim_api/internal/utils"
)

// ESIMRepository persists provisioned eSIM profiles.
type ESIMRepository struct {
	coll *mongo.Collection
}

// NewESIMRepository creates a new ESIMRepository and ensures indexes.
func NewESIMRepository(db *mongo.Database) *ESIMRepository {
	repo := &ESIMRepository{coll: db.Collection("esims")}
	if err := repo.ensureIndexes(); err != nil {
		log.Error().Err(err).Msg("Failed to create esim indexes")
	}
	return repo
}

func (r *ESIMRepository) ensureIndexes() error {
	ctx, cancel := newContext(10 * time.Second)
	defer cancel()

	indexModels := []mongo.IndexModel{
		{Keys: bson.D{{Key: "order_id", Value: 1}}},
		{Keys: bson.D{{Key: "contact_email", Value: 1}}},
	}
	_, err := r.coll.Indexes().CreateMany(ctx, indexModels)
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}

// Create inserts a provisioned profile.
func (r *ESIMRepository) Create(esim *models.ESIM) error {
	ctx, cancel := newContext(5 * time.Second)
	defer cancel()

	esim.CreatedAt = time.Now()

	_, err := r.coll.InsertOne(ctx, esim)
	if err != nil {
		return fmt.Errorf("failed to create esim: %w", err)
	}
	return nil
}

// GetByOrderID returns the profiles provisioned for an order.
func (r *ESIMRepository) GetByOrderID(orderID string) ([]models.ESIM, error) {
	ctx, cancel := newContext(5 * time.Second)
	defer cancel()

	cursor, err := r.coll.Find(ctx, bson.M{"order_id": orderID})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch esims for order %s: %w", orderID, err)
	}
	defer cursor.Close(ctx)

	var esims []models.ESIM
	if err := cursor.All(ctx, &esims); err != nil {
		return nil, fmt.Errorf("failed to decode esims: %w", err)
	}
	return esims, nil
}

// GetByEmail returns a customer's profiles, newest first.
func (r *ESIMRepository) GetByEmail(email string) ([]models.ESIM, error) {
	ctx, cancel := newContext(10 * time.Second)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := r.coll.Find(ctx, bson.M{"contact_email": email}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch esims for %s: %w", email, err)
	}
	defer cursor.Close(ctx)

	var esims []models.ESIM
	if err := cursor.All(ctx, &esims); err != nil {
		return nil, fmt.Errorf("failed to decode esims: %w", err)
	}
	return esims, nil
}

// GetByID returns a single profile.
func (r *ESIMRepository) GetByID(id string) (*models.ESIM, error) {
	ctx, cancel := newContext(5 * time.Second)
	defer cancel()

	var esim models.ESIM
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&esim); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, utils.ErrNoESIM
		}
		return nil, fmt.Errorf("failed to fetch esim %s: %w", id, err)
	}
	return &esim, nil
}

// ExistsForOrder reports whether the order already has provisioned
// profiles, so a retry does not double-provision.
func (r *ESIMRepository) ExistsForOrder(orderID string) (bool, error) {
	ctx, cancel := newContext(5 * time.Second)
	defer cancel()

	count, err := r.coll.CountDocuments(ctx, bson.M{"order_id": orderID}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("failed to check esims for order %s: %w", orderID, err)
	}
	return count > 0, nil
}
