package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/nomadsim/esim_api/internal/models"
	"github.com/nomadsim/esim_api/internal/utils"
)

// OrderRepository persists orders as MongoDB documents keyed by order id.
type OrderRepository struct {
	coll *mongo.Collection
}

// NewOrderRepository creates a new OrderRepository and ensures indexes.
func NewOrderRepository(db *mongo.Database) *OrderRepository {
	repo := &OrderRepository{coll: db.Collection("orders")}
	if err := repo.ensureIndexes(); err != nil {
		log.Error().Err(err).Msg("Failed to create order indexes")
	}
	return repo
}

func newContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timeout)
}

func (r *OrderRepository) ensureIndexes() error {
	ctx, cancel := newContext(10 * time.Second)
	defer cancel()

	indexModels := []mongo.IndexModel{
		{Keys: bson.D{{Key: "contact_email", Value: 1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "updated_at", Value: 1}}},
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
	}
	_, err := r.coll.Indexes().CreateMany(ctx, indexModels)
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}

// Create inserts a new order document.
func (r *OrderRepository) Create(order *models.Order) error {
	ctx, cancel := newContext(5 * time.Second)
	defer cancel()

	now := time.Now()
	order.CreatedAt = now
	order.UpdatedAt = now

	_, err := r.coll.InsertOne(ctx, order)
	if err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}
	return nil
}

// GetByID retrieves an order by its id.
func (r *OrderRepository) GetByID(orderID string) (*models.Order, error) {
	ctx, cancel := newContext(5 * time.Second)
	defer cancel()

	var order models.Order
	if err := r.coll.FindOne(ctx, bson.M{"_id": orderID}).Decode(&order); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, utils.ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to fetch order %s: %w", orderID, err)
	}
	return &order, nil
}

// GetByEmail retrieves a customer's orders, newest first. Hidden orders are
// excluded from the customer view.
func (r *OrderRepository) GetByEmail(email string) ([]models.Order, error) {
	ctx, cancel := newContext(10 * time.Second)
	defer cancel()

	filter := bson.M{
		"contact_email": email,
		"status":        bson.M{"$ne": models.OrderStatusHidden},
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})

	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch orders for %s: %w", email, err)
	}
	defer cursor.Close(ctx)

	var orders []models.Order
	if err := cursor.All(ctx, &orders); err != nil {
		return nil, fmt.Errorf("failed to decode orders: %w", err)
	}
	return orders, nil
}

// SetInvoice attaches the payment invoice to an order. Only valid while the
// order is still pending.
func (r *OrderRepository) SetInvoice(orderID string, invoice *models.Invoice) error {
	ctx, cancel := newContext(5 * time.Second)
	defer cancel()

	filter := bson.M{"_id": orderID, "status": models.OrderStatusPending}
	update := bson.M{"$set": bson.M{
		"invoice":    invoice,
		"updated_at": time.Now(),
	}}

	result, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to set invoice on order %s: %w", orderID, err)
	}
	if result.MatchedCount == 0 {
		return utils.ErrOrderNotFound
	}
	return nil
}

// MarkPaid transitions an order from pending to paid with a conditional
// write. A concurrent confirm matches zero documents and reports false, so
// the paid side effects run at most once regardless of how many pollers or
// webhooks race.
func (r *OrderRepository) MarkPaid(orderID string, paidAt time.Time) (bool, error) {
	ctx, cancel := newContext(5 * time.Second)
	defer cancel()

	filter := bson.M{"_id": orderID, "status": models.OrderStatusPending}
	update := bson.M{"$set": bson.M{
		"status":     models.OrderStatusPaid,
		"paid_at":    paidAt,
		"updated_at": time.Now(),
	}}

	result, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("failed to mark order %s paid: %w", orderID, err)
	}
	return result.ModifiedCount > 0, nil
}

// UpdateStatus sets the order status unconditionally.
func (r *OrderRepository) UpdateStatus(orderID string, status models.OrderStatus) error {
	return r.UpdateFields(orderID, bson.M{"status": status})
}

// UpdateStatusFrom transitions status only when the current status matches.
// Returns false when the guard did not match.
func (r *OrderRepository) UpdateStatusFrom(orderID string, from, to models.OrderStatus) (bool, error) {
	ctx, cancel := newContext(5 * time.Second)
	defer cancel()

	filter := bson.M{"_id": orderID, "status": from}
	update := bson.M{"$set": bson.M{"status": to, "updated_at": time.Now()}}

	result, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("failed to transition order %s: %w", orderID, err)
	}
	return result.ModifiedCount > 0, nil
}

// UpdateFields applies a $set of the given fields plus updated_at.
func (r *OrderRepository) UpdateFields(orderID string, fields map[string]interface{}) error {
	ctx, cancel := newContext(5 * time.Second)
	defer cancel()

	fields["updated_at"] = time.Now()
	update := bson.M{"$set": bson.M(fields)}

	result, err := r.coll.UpdateOne(ctx, bson.M{"_id": orderID}, update)
	if err != nil {
		return fmt.Errorf("failed to update order %s: %w", orderID, err)
	}
	if result.MatchedCount == 0 {
		return utils.ErrOrderNotFound
	}
	return nil
}

// IncrementResendCount bumps the receipt resend counter.
func (r *OrderRepository) IncrementResendCount(orderID string) error {
	ctx, cancel := newContext(5 * time.Second)
	defer cancel()

	update := bson.M{
		"$inc": bson.M{"resend_count": 1},
		"$set": bson.M{"updated_at": time.Now()},
	}
	result, err := r.coll.UpdateOne(ctx, bson.M{"_id": orderID}, update)
	if err != nil {
		return fmt.Errorf("failed to bump resend count for order %s: %w", orderID, err)
	}
	if result.MatchedCount == 0 {
		return utils.ErrOrderNotFound
	}
	return nil
}

// PaidProviders returns the distinct providers of the email's settled
// orders. Used to gate top-up package purchases.
func (r *OrderRepository) PaidProviders(email string) ([]string, error) {
	ctx, cancel := newContext(5 * time.Second)
	defer cancel()

	filter := bson.M{
		"contact_email": email,
		"status":        bson.M{"$in": paidLikeStatuses()},
	}
	values, err := r.coll.Distinct(ctx, "items.metadata.provider", filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list paid providers for %s: %w", email, err)
	}

	providers := make([]string, 0, len(values))
	for _, v := range values {
		if s, ok := v.(string); ok && s != "" {
			providers = append(providers, s)
		}
	}
	return providers, nil
}

// HasPaidOrders reports whether the email has any settled order at all.
func (r *OrderRepository) HasPaidOrders(email string) (bool, error) {
	ctx, cancel := newContext(5 * time.Second)
	defer cancel()

	filter := bson.M{
		"contact_email": email,
		"status":        bson.M{"$in": paidLikeStatuses()},
	}
	count, err := r.coll.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("failed to check paid orders for %s: %w", email, err)
	}
	return count > 0, nil
}

func paidLikeStatuses() []models.OrderStatus {
	return []models.OrderStatus{
		models.OrderStatusPaid,
		models.OrderStatusProvisioning,
		models.OrderStatusCompleted,
	}
}

// FindPaidUnprovisioned returns paid orders with no provisioning attempt
// yet, oldest first. The provision worker claims these. Orders created
// before minCreatedAt are skipped; a zero minCreatedAt disables the guard.
func (r *OrderRepository) FindPaidUnprovisioned(minCreatedAt time.Time, limit int) ([]models.Order, error) {
	return r.findByStatus(models.OrderStatusPaid, minCreatedAt, limit)
}

// FindStaleProvisioning returns orders stuck in provisioning longer than
// the cutoff, so the worker can retry them after a crash mid-provision.
// Orders created before minCreatedAt are skipped; a zero minCreatedAt
// disables the guard.
func (r *OrderRepository) FindStaleProvisioning(cutoff time.Time, minCreatedAt time.Time, limit int) ([]models.Order, error) {
	ctx, cancel := newContext(10 * time.Second)
	defer cancel()

	filter := bson.M{
		"status":     models.OrderStatusProvisioning,
		"updated_at": bson.M{"$lt": cutoff},
	}
	if !minCreatedAt.IsZero() {
		filter["created_at"] = bson.M{"$gte": minCreatedAt}
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "updated_at", Value: 1}}).
		SetLimit(int64(limit))

	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch stale provisioning orders: %w", err)
	}
	defer cursor.Close(ctx)

	var orders []models.Order
	if err := cursor.All(ctx, &orders); err != nil {
		return nil, fmt.Errorf("failed to decode orders: %w", err)
	}
	return orders, nil
}

func (r *OrderRepository) findByStatus(status models.OrderStatus, minCreatedAt time.Time, limit int) ([]models.Order, error) {
	ctx, cancel := newContext(10 * time.Second)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}}).
		SetLimit(int64(limit))

	filter := bson.M{"status": status}
	if !minCreatedAt.IsZero() {
		filter["created_at"] = bson.M{"$gte": minCreatedAt}
	}

	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s orders: %w", status, err)
	}
	defer cursor.Close(ctx)

	var orders []models.Order
	if err := cursor.All(ctx, &orders); err != nil {
		return nil, fmt.Errorf("failed to decode orders: %w", err)
	}
	return orders, nil
}

// AdminOrderFilter holds filters for the back-office order list.
type AdminOrderFilter struct {
	Status     models.OrderStatus
	Email      string
	Search     string
	DateFrom   *time.Time
	DateTo     *time.Time
	Page       int
	Limit      int
	ShowHidden bool
}

// GetAllAdmin returns orders for the back office with filters and
// pagination.
func (r *OrderRepository) GetAllAdmin(filter *AdminOrderFilter) ([]models.Order, int64, error) {
	ctx, cancel := newContext(10 * time.Second)
	defer cancel()

	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.Limit <= 0 {
		filter.Limit = 20
	}
	if filter.Limit > 100 {
		filter.Limit = 100
	}

	query := bson.M{}
	if filter.Status != "" {
		query["status"] = filter.Status
	} else if !filter.ShowHidden {
		query["status"] = bson.M{"$ne": models.OrderStatusHidden}
	}
	if filter.Email != "" {
		query["contact_email"] = filter.Email
	}
	if filter.Search != "" {
		query["$or"] = []bson.M{
			{"_id": bson.M{"$regex": filter.Search, "$options": "i"}},
			{"contact_email": bson.M{"$regex": filter.Search, "$options": "i"}},
			{"items.name": bson.M{"$regex": filter.Search, "$options": "i"}},
		}
	}
	if filter.DateFrom != nil || filter.DateTo != nil {
		dateRange := bson.M{}
		if filter.DateFrom != nil {
			dateRange["$gte"] = *filter.DateFrom
		}
		if filter.DateTo != nil {
			dateRange["$lte"] = *filter.DateTo
		}
		query["created_at"] = dateRange
	}

	total, err := r.coll.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count orders: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(int64((filter.Page - 1) * filter.Limit)).
		SetLimit(int64(filter.Limit))

	cursor, err := r.coll.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch orders: %w", err)
	}
	defer cursor.Close(ctx)

	var orders []models.Order
	if err := cursor.All(ctx, &orders); err != nil {
		return nil, 0, fmt.Errorf("failed to decode orders: %w", err)
	}
	return orders, total, nil
}

// OrderStats is the aggregate summary shown on the admin dashboard.
type OrderStats struct {
	TotalOrders   int64            `json:"totalOrders"`
	TotalRevenue  int64            `json:"totalRevenue"`
	CountByStatus map[string]int64 `json:"countByStatus"`
}

// GetStats aggregates order counts and revenue over the given window.
// Revenue counts settled orders only.
func (r *OrderRepository) GetStats(since time.Time) (*OrderStats, error) {
	ctx, cancel := newContext(10 * time.Second)
	defer cancel()

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"created_at": bson.M{"$gte": since}}}},
		{{Key: "$group", Value: bson.M{
			"_id":     "$status",
			"count":   bson.M{"$sum": 1},
			"revenue": bson.M{"$sum": "$total_amount"},
		}}},
	}

	cursor, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate order stats: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Status  string `bson:"_id"`
		Count   int64  `bson:"count"`
		Revenue int64  `bson:"revenue"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode order stats: %w", err)
	}

	stats := &OrderStats{CountByStatus: make(map[string]int64)}
	for _, row := range rows {
		stats.CountByStatus[row.Status] = row.Count
		stats.TotalOrders += row.Count
		if models.OrderStatus(row.Status).PaidLike() {
			stats.TotalRevenue += row.Revenue
		}
	}
	return stats, nil
}
