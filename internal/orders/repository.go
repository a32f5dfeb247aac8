package orders

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/funko-store/funko-api/internal/platform/httpx"
	"github.com/funko-store/funko-api/internal/shared"
)

// Collection is the Mongo collection holding orders.
const Collection = "pedidos"

// Repository persists orders.
type Repository interface {
	List(ctx context.Context, q shared.ListQuery) ([]Order, int, error)
	ListByUser(ctx context.Context, userID int64) ([]Order, error)
	Get(ctx context.Context, id string) (Order, error)
	Create(ctx context.Context, o Order) (Order, error)
	Update(ctx context.Context, o Order) (Order, error)
	Delete(ctx context.Context, id string) error
}

// Whitelist declares the listing parameters accepted for orders.
var Whitelist = shared.Whitelist{
	Sortable: []string{"id", "userId", "createdAt", "total"},
	Filterable: map[string]shared.ValueKind{
		"userId":    shared.KindInt,
		"isDeleted": shared.KindBool,
	},
	DefaultSort: "id",
}

var listFields = map[string]string{
	"id":        "_id",
	"userId":    "userId",
	"createdAt": "createdAt",
	"total":     "total",
	"isDeleted": "isDeleted",
}

// MongoRepository implements Repository on a Mongo collection.
type MongoRepository struct {
	coll *mongo.Collection
}

// NewRepository binds the orders collection of db.
func NewRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{coll: db.Collection(Collection)}
}

// EnsureIndexes creates the secondary indexes used by listings.
func (r *MongoRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "userId", Value: 1}}},
		{Keys: bson.D{{Key: "createdAt", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("orders: ensure indexes: %w", err)
	}
	return nil
}

// ObjectID parses a hex order id.
func ObjectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: invalid order id %q", httpx.ErrValidation, id)
	}
	return oid, nil
}

func listFilter(q shared.ListQuery) (bson.D, error) {
	filter := bson.D{}
	for _, f := range q.Filters {
		field, ok := listFields[f.Column]
		if !ok {
			return nil, fmt.Errorf("%w: cannot filter by %q", httpx.ErrValidation, f.Column)
		}
		if f.Op == shared.OpNot {
			filter = append(filter, bson.E{Key: field, Value: bson.D{{Key: "$ne", Value: f.Arg}}})
			continue
		}
		filter = append(filter, bson.E{Key: field, Value: f.Arg})
	}
	if q.Search != "" {
		filter = append(filter, bson.E{Key: "customer.fullName", Value: primitive.Regex{
			Pattern: regexp.QuoteMeta(q.Search),
			Options: "i",
		}})
	}
	return filter, nil
}

func (r *MongoRepository) List(ctx context.Context, q shared.ListQuery) ([]Order, int, error) {
	filter, err := listFilter(q)
	if err != nil {
		return nil, 0, err
	}
	field, ok := listFields[q.SortBy]
	if !ok {
		return nil, 0, fmt.Errorf("%w: cannot sort by %q", httpx.ErrValidation, q.SortBy)
	}
	dir := 1
	if q.Desc() {
		dir = -1
	}
	sort := bson.D{{Key: field, Value: dir}}
	if field != "_id" {
		sort = append(sort, bson.E{Key: "_id", Value: dir})
	}

	total, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("orders: count: %w", err)
	}
	opts := options.Find().
		SetSort(sort).
		SetSkip(int64(q.Offset())).
		SetLimit(int64(q.Limit))
	items, err := r.find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	return items, int(total), nil
}

func (r *MongoRepository) ListByUser(ctx context.Context, userID int64) ([]Order, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	return r.find(ctx, bson.D{{Key: "userId", Value: userID}}, opts)
}

func (r *MongoRepository) find(ctx context.Context, filter bson.D, opts *options.FindOptions) ([]Order, error) {
	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("orders: find: %w", err)
	}
	defer cursor.Close(ctx)

	items := []Order{}
	if err := cursor.All(ctx, &items); err != nil {
		return nil, fmt.Errorf("orders: decode: %w", err)
	}
	return items, nil
}

func (r *MongoRepository) Get(ctx context.Context, id string) (Order, error) {
	oid, err := ObjectID(id)
	if err != nil {
		return Order{}, err
	}
	var o Order
	if err := r.coll.FindOne(ctx, bson.D{{Key: "_id", Value: oid}}).Decode(&o); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Order{}, fmt.Errorf("%w: order %s", httpx.ErrNotFound, id)
		}
		return Order{}, fmt.Errorf("orders: get: %w", err)
	}
	return o, nil
}

func (r *MongoRepository) Create(ctx context.Context, o Order) (Order, error) {
	o.ID = primitive.NewObjectID()
	if _, err := r.coll.InsertOne(ctx, o); err != nil {
		return Order{}, fmt.Errorf("orders: insert: %w", err)
	}
	return o, nil
}

func (r *MongoRepository) Update(ctx context.Context, o Order) (Order, error) {
	res, err := r.coll.ReplaceOne(ctx, bson.D{{Key: "_id", Value: o.ID}}, o)
	if err != nil {
		return Order{}, fmt.Errorf("orders: replace: %w", err)
	}
	if res.MatchedCount == 0 {
		return Order{}, fmt.Errorf("%w: order %s", httpx.ErrNotFound, o.ID.Hex())
	}
	return o, nil
}

func (r *MongoRepository) Delete(ctx context.Context, id string) error {
	oid, err := ObjectID(id)
	if err != nil {
		return err
	}
	res, err := r.coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: oid}})
	if err != nil {
		return fmt.Errorf("orders: delete: %w", err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("%w: order %s", httpx.ErrNotFound, id)
	}
	return nil
}
