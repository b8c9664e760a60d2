package catalog

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domcat "github.com/kailas-cloud/skurag/internal/domain/catalog"
)

// DefaultMongoSortField orders documents by insertion for ObjectID keys.
const DefaultMongoSortField = "_id"

// MongoConfig holds MongoDB source parameters.
type MongoConfig struct {
	URI              string
	Database         string
	Collection       string
	SortField        string
	DescriptionField string
	ConnectTimeout   time.Duration
}

// MongoSource reads every document of a collection as one catalog record.
type MongoSource struct {
	client           *mongo.Client
	collection       *mongo.Collection
	sortField        string
	descriptionField string
}

// NewMongoSource connects and pings the server.
func NewMongoSource(ctx context.Context, cfg MongoConfig) (*MongoSource, error) {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	if cfg.SortField == "" {
		cfg.SortField = DefaultMongoSortField
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	return &MongoSource{
		client:           client,
		collection:       client.Database(cfg.Database).Collection(cfg.Collection),
		sortField:        cfg.SortField,
		descriptionField: cfg.DescriptionField,
	}, nil
}

// Load fetches all documents sorted ascending by the configured field.
func (s *MongoSource) Load(ctx context.Context) ([]domcat.Record, error) {
	opts := options.Find().SetSort(bson.D{{Key: s.sortField, Value: 1}})
	cursor, err := s.collection.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("find catalog documents: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []bson.M
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode catalog documents: %w", err)
	}

	rows := make([]any, len(docs))
	for i, d := range docs {
		rows[i] = map[string]any(d)
	}

	records, err := toRecords(rows, s.descriptionField)
	if err != nil {
		return nil, fmt.Errorf("mongodb catalog %s: %w", s.collection.Name(), err)
	}
	return records, nil
}

// Ping checks connectivity.
func (s *MongoSource) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("ping mongodb: %w", err)
	}
	return nil
}

// Close disconnects the client.
func (s *MongoSource) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// String identifies the source in logs.
func (s *MongoSource) String() string {
	return "mongo:" + s.collection.Database().Name() + "." + s.collection.Name()
}
