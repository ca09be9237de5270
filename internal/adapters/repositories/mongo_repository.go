package repositories

import (
	"context"
	"delivery-batch-service/internal/domain"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	ordersCollection        = "orders"
	batchesCollection       = "delivery_batches"
	confirmationsCollection = "delivery_confirmations"
)

// EnsureMongoIndexes creates the indexes the Mongo adapters rely on.
// The partial unique index on stops.orderId keeps each order in at most one batch.
func EnsureMongoIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(batchesCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "stops.orderId", Value: 1}},
			Options: options.Index().
				SetName("uniq_stop_order").
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"stops.orderId": bson.M{"$exists": true}}),
		},
		{
			Keys:    bson.D{{Key: "deliveryDay", Value: 1}, {Key: "deliveryDate", Value: 1}},
			Options: options.Index().SetName("day_date"),
		},
	})
	if err != nil {
		return fmt.Errorf("ensure indexes: %s: %w", batchesCollection, err)
	}

	_, err = db.Collection(ordersCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "createdAt", Value: 1}},
		Options: options.Index().SetName("created_at"),
	})
	if err != nil {
		return fmt.Errorf("ensure indexes: %s: %w", ordersCollection, err)
	}

	return nil
}

// MongoOrderRepository reads orders from the orders collection.
type MongoOrderRepository struct{ coll *mongo.Collection }

func NewMongoOrderRepository(db *mongo.Database) *MongoOrderRepository {
	return &MongoOrderRepository{coll: db.Collection(ordersCollection)}
}

func (r *MongoOrderRepository) ListOrders(ctx context.Context) ([]domain.Order, error) {
	cur, err := r.coll.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list orders: find: %w", err)
	}

	var docs []orderDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("list orders: decode: %w", err)
	}

	orders := make([]domain.Order, 0, len(docs))
	for _, d := range docs {
		o, err := d.toDomain()
		if err != nil {
			return nil, fmt.Errorf("list orders: %w", err)
		}
		orders = append(orders, o)
	}
	return orders, nil
}

func (r *MongoOrderRepository) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	var doc orderDocument
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.Order{}, domain.NotFound("order", id)
	}
	if err != nil {
		return domain.Order{}, fmt.Errorf("get order %s: %w", id, err)
	}
	return doc.toDomain()
}

// Upsert writes orders by id; used by the seeding tool.
func (r *MongoOrderRepository) Upsert(ctx context.Context, orders []domain.Order) error {
	for _, o := range orders {
		_, err := r.coll.ReplaceOne(ctx, bson.M{"_id": o.ID}, toOrderDocument(o), options.Replace().SetUpsert(true))
		if err != nil {
			return fmt.Errorf("upsert order %s: %w", o.ID, err)
		}
	}
	return nil
}

// MongoBatchRepository stores each batch, stops embedded, as one document.
type MongoBatchRepository struct{ coll *mongo.Collection }

func NewMongoBatchRepository(db *mongo.Database) *MongoBatchRepository {
	return &MongoBatchRepository{coll: db.Collection(batchesCollection)}
}

func (r *MongoBatchRepository) Get(ctx context.Context, id string) (*domain.DeliveryBatch, error) {
	return r.findOne(ctx, bson.M{"_id": id}, "batch", id)
}

func (r *MongoBatchRepository) Put(ctx context.Context, b *domain.DeliveryBatch) error {
	if err := b.Validate(); err != nil {
		return fmt.Errorf("put batch: %w", err)
	}

	_, err := r.coll.ReplaceOne(ctx, bson.M{"_id": b.ID}, toBatchDocument(b), options.Replace().SetUpsert(true))
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("put batch %s: an order is already scheduled in another batch: %w", b.ID, err)
	}
	if err != nil {
		return fmt.Errorf("put batch %s: %w", b.ID, err)
	}
	return nil
}

func (r *MongoBatchRepository) ListByDay(ctx context.Context, day domain.Weekday) ([]*domain.DeliveryBatch, error) {
	return r.find(ctx, bson.M{"deliveryDay": string(day)})
}

func (r *MongoBatchRepository) List(ctx context.Context) ([]*domain.DeliveryBatch, error) {
	return r.find(ctx, bson.M{})
}

func (r *MongoBatchRepository) FindByOrderID(ctx context.Context, orderID string) (*domain.DeliveryBatch, error) {
	return r.findOne(ctx, bson.M{"stops.orderId": orderID}, "batch for order", orderID)
}

func (r *MongoBatchRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.coll.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("delete batch %s: %w", id, err)
	}
	return nil
}

func (r *MongoBatchRepository) findOne(ctx context.Context, filter bson.M, kind, id string) (*domain.DeliveryBatch, error) {
	var doc batchDocument
	err := r.coll.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.NotFound(kind, id)
	}
	if err != nil {
		return nil, fmt.Errorf("find %s %s: %w", kind, id, err)
	}
	return doc.toDomain()
}

func (r *MongoBatchRepository) find(ctx context.Context, filter bson.M) ([]*domain.DeliveryBatch, error) {
	opts := options.Find().SetSort(bson.D{{Key: "deliveryDate", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("list batches: find: %w", err)
	}

	var docs []batchDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("list batches: decode: %w", err)
	}

	out := make([]*domain.DeliveryBatch, 0, len(docs))
	for _, d := range docs {
		b, err := d.toDomain()
		if err != nil {
			return nil, fmt.Errorf("list batches: %w", err)
		}
		out = append(out, b)
	}
	return out, nil
}

// MongoConfirmationLog relies on _id = stop id for at-most-once inserts.
type MongoConfirmationLog struct{ coll *mongo.Collection }

func NewMongoConfirmationLog(db *mongo.Database) *MongoConfirmationLog {
	return &MongoConfirmationLog{coll: db.Collection(confirmationsCollection)}
}

func (l *MongoConfirmationLog) Append(ctx context.Context, c domain.DeliveryConfirmation) error {
	_, err := l.coll.InsertOne(ctx, toConfirmationDocument(c))
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("append confirmation for stop %s: %w", c.StopID, domain.ErrAlreadyDelivered)
	}
	if err != nil {
		return fmt.Errorf("append confirmation for stop %s: %w", c.StopID, err)
	}
	return nil
}

func (l *MongoConfirmationLog) Get(ctx context.Context, stopID string) (domain.DeliveryConfirmation, error) {
	var doc confirmationDocument
	err := l.coll.FindOne(ctx, bson.M{"_id": stopID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.DeliveryConfirmation{}, domain.NotFound("confirmation", stopID)
	}
	if err != nil {
		return domain.DeliveryConfirmation{}, fmt.Errorf("get confirmation for stop %s: %w", stopID, err)
	}
	return doc.toDomain(), nil
}
