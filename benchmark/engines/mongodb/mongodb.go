package mongodb

import (
	"context"
	"fmt"
	"time"

	engine "github.com/SuryaNelakanti/db-bench-fork/benchmark/engines/abstract"
	"github.com/SuryaNelakanti/db-bench-fork/record"
	"github.com/SuryaNelakanti/db-bench-fork/util"

	zlog "github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Mongo struct {
	URI            string        `yaml:"uri"`
	Database       string        `yaml:"database"`
	Collection     string        `yaml:"collection"`
	OrderedWrites  bool          `yaml:"orderedWrites"`
	ConnectTimeout time.Duration `yaml:"connectTimeout"`
	client         *mongo.Client
	collection     *mongo.Collection
}

func New(configData []byte) (*Mongo, error) {
	m := Mongo{
		URI:            "mongodb://localhost:27018/",
		Database:       "testdb",
		Collection:     "testcollection",
		OrderedWrites:  true,
		ConnectTimeout: 10 * time.Second,
	}
	if err := util.DecodeSection(configData, string(engine.MongoDB), &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *Mongo) log(msg string) {
	zlog.Info().Str("engine", string(engine.MongoDB)).Str("collection", m.Collection).Msg(msg)
}

func (m *Mongo) Name() string {
	return engine.MongoDB.DisplayName()
}

func (m *Mongo) Open(ctx context.Context) error {
	opts := options.Client().ApplyURI(m.URI).SetConnectTimeout(m.ConnectTimeout)
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return fmt.Errorf("connect mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return fmt.Errorf("ping mongodb: %w", err)
	}

	m.client = client
	m.collection = client.Database(m.Database).Collection(m.Collection)
	return nil
}

func (m *Mongo) EnsureSchema(ctx context.Context) error {
	_, err := m.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "age", Value: 1}}},
		{Keys: bson.D{{Key: "field1", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("create indexes: %w", err)
	}
	m.log("Indexes created")
	return nil
}

func (m *Mongo) SchemaExists(ctx context.Context) (bool, error) {
	names, err := m.client.Database(m.Database).ListCollectionNames(ctx, bson.D{{Key: "name", Value: m.Collection}})
	if err != nil {
		return false, fmt.Errorf("list collections: %w", err)
	}
	return len(names) > 0, nil
}

func (m *Mongo) Count(ctx context.Context) (int64, error) {
	return m.collection.CountDocuments(ctx, bson.D{})
}

// Builds one {field1, name, age} document per record
func documents(records []record.Record) []any {
	docs := make([]any, len(records))
	for i, r := range records {
		docs[i] = bson.D{
			{Key: "field1", Value: r.Field1},
			{Key: "name", Value: r.Name},
			{Key: "age", Value: r.Age},
		}
	}
	return docs
}

// Builds one UpdateOne model per record, matching on field1
func updateModels(records []record.Record) []mongo.WriteModel {
	models := make([]mongo.WriteModel, len(records))
	for i, r := range records {
		models[i] = mongo.NewUpdateOneModel().
			SetFilter(bson.D{{Key: "field1", Value: r.Field1}}).
			SetUpdate(bson.D{{Key: "$set", Value: bson.D{
				{Key: "name", Value: r.Name},
				{Key: "age", Value: r.Age},
			}}})
	}
	return models
}

func (m *Mongo) Insert(ctx context.Context, records []record.Record) (time.Duration, error) {
	if len(records) == 0 {
		return 0, nil
	}
	docs := documents(records)
	opts := options.InsertMany().SetOrdered(m.OrderedWrites)
	return util.Timed(func() error {
		_, err := m.collection.InsertMany(ctx, docs, opts)
		return err
	})
}

func (m *Mongo) ReadByAge(ctx context.Context, age int) ([]record.Record, time.Duration, error) {
	filter := bson.D{{Key: "age", Value: age}}
	projection := options.Find().SetProjection(bson.D{{Key: "_id", Value: 0}})
	result := []record.Record{}

	elapsed, err := util.Timed(func() error {
		cursor, err := m.collection.Find(ctx, filter, projection)
		if err != nil {
			return err
		}
		return cursor.All(ctx, &result)
	})

	return result, elapsed, err
}

func (m *Mongo) Update(ctx context.Context, records []record.Record) (time.Duration, error) {
	if len(records) == 0 {
		return 0, nil
	}
	models := updateModels(records)
	opts := options.BulkWrite().SetOrdered(m.OrderedWrites)
	return util.Timed(func() error {
		_, err := m.collection.BulkWrite(ctx, models, opts)
		return err
	})
}

func (m *Mongo) Teardown(ctx context.Context) error {
	if err := m.collection.Drop(ctx); err != nil {
		return fmt.Errorf("drop collection: %w", err)
	}
	return nil
}

func (m *Mongo) GetConfigs() map[string]string {
	return map[string]string{
		"engine":        string(engine.MongoDB),
		"orderedWrites": fmt.Sprintf("%t", m.OrderedWrites),
	}
}

func (m *Mongo) Close() error {
	if m.client == nil {
		return nil
	}
	err := m.client.Disconnect(context.Background())
	m.client = nil
	return err
}
