package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_cart/shopping-cart/internal/domain"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const cartCollection = "cart"

type cartLineDocument struct {
	ID          primitive.ObjectID   `bson:"_id,omitempty"`
	Username    string               `bson:"username"`
	ProductName string               `bson:"product_name"`
	ProductKey  string               `bson:"product_key"`
	Quantity    int                  `bson:"quantity"`
	Price       primitive.Decimal128 `bson:"price"`
	CreatedAt   time.Time            `bson:"created_at"`
	UpdatedAt   time.Time            `bson:"updated_at"`
}

func (d cartLineDocument) toDomain() (domain.CartLine, error) {
	price, err := decimal.NewFromString(d.Price.String())
	if err != nil {
		return domain.CartLine{}, fmt.Errorf("failed to decode price of line %s: %w", d.ID.Hex(), err)
	}
	return domain.CartLine{
		ID:          d.ID.Hex(),
		Username:    d.Username,
		ProductName: d.ProductName,
		Quantity:    d.Quantity,
		Price:       price,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}, nil
}

func toDecimal128(d decimal.Decimal) (primitive.Decimal128, error) {
	price, err := primitive.ParseDecimal128(d.String())
	if err != nil {
		return primitive.Decimal128{}, fmt.Errorf("failed to encode price %s: %w", d, err)
	}
	return price, nil
}

type mongoRepository struct {
	collection *mongo.Collection
}

func NewMongoRepository(db *mongo.Database) CartLineRepository {
	return &mongoRepository{
		collection: db.Collection(cartCollection),
	}
}

func (m *mongoRepository) FindByUsername(ctx context.Context, username string) ([]domain.CartLine, error) {
	filter := bson.M{"username": username}
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})

	cursor, err := m.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find cart lines: %w", err)
	}
	defer cursor.Close(ctx)

	lines := make([]domain.CartLine, 0)
	for cursor.Next(ctx) {
		var doc cartLineDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode cart line: %w", err)
		}
		line, err := doc.toDomain()
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}

	return lines, nil
}

func (m *mongoRepository) Save(ctx context.Context, line *domain.CartLine, expectedQuantity int) error {
	now := time.Now().UTC()
	price, err := toDecimal128(line.Price)
	if err != nil {
		return err
	}

	if line.ID == "" {
		doc := cartLineDocument{
			ID:          primitive.NewObjectID(),
			Username:    line.Username,
			ProductName: line.ProductName,
			ProductKey:  domain.ProductKey(line.ProductName),
			Quantity:    line.Quantity,
			Price:       price,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if _, err := m.collection.InsertOne(ctx, doc); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return ErrConcurrentUpdate
			}
			return fmt.Errorf("failed to insert cart line: %w", err)
		}
		line.ID = doc.ID.Hex()
		line.CreatedAt = now
		line.UpdatedAt = now
		return nil
	}

	id, err := primitive.ObjectIDFromHex(line.ID)
	if err != nil {
		return fmt.Errorf("invalid cart line id %q: %w", line.ID, err)
	}

	// quantity in the filter makes the write a compare-and-set
	filter := bson.M{"_id": id, "quantity": expectedQuantity}
	update := bson.M{
		"$set": bson.M{
			"quantity":   line.Quantity,
			"price":      price,
			"updated_at": now,
		},
	}

	result, err := m.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to update cart line: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrConcurrentUpdate
	}

	line.UpdatedAt = now
	return nil
}

func (m *mongoRepository) DeleteByID(ctx context.Context, id string) (*domain.CartLine, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		// an id that could never have been issued is simply absent
		return nil, nil
	}

	var doc cartLineDocument
	err = m.collection.FindOneAndDelete(ctx, bson.M{"_id": objectID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to delete cart line: %w", err)
	}

	line, err := doc.toDomain()
	if err != nil {
		return nil, err
	}
	return &line, nil
}

func (m *mongoRepository) DeleteByUsername(ctx context.Context, username string) (int64, error) {
	uowCtx, cancel := independentContext(ctx)
	defer cancel()

	session, err := m.collection.Database().Client().StartSession()
	if err != nil {
		return 0, fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(uowCtx)

	var deleted int64
	err = mongo.WithSession(uowCtx, session, func(sc mongo.SessionContext) error {
		result, errDelete := m.collection.DeleteMany(sc, bson.M{"username": username})
		if errDelete != nil {
			return errDelete
		}
		deleted = result.DeletedCount
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete cart lines of %s: %w", username, err)
	}

	return deleted, nil
}

func (m *mongoRepository) Close(ctx context.Context) error {
	return m.collection.Database().Client().Disconnect(ctx)
}

// CreateIndexes builds the unique (username, product_key) index. Lines have
// no expiry: they leave storage only through the delete operations.
func (m *mongoRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "username", Value: 1}, {Key: "product_key", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}

	_, err := m.collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	return nil
}

// EnsureIndexes creates the Mongo indexes the repository relies on.
func EnsureIndexes(ctx context.Context, repo CartLineRepository) error {
	mongoRepo, ok := repo.(*mongoRepository)
	if !ok {
		return nil
	}
	return mongoRepo.CreateIndexes(ctx)
}

func (m *mongoRepository) Ping(ctx context.Context) error {
	return m.collection.Database().Client().Ping(ctx, readpref.Primary())
}
