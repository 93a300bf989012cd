package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/citizenportal/pkg/config"
	"github.com/example/citizenportal/pkg/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("already exists")
	ErrInvalidID = errors.New("invalid id")
)

type MongoRepository struct {
	client   *mongo.Client
	database *mongo.Database
	config   *config.MongoDBConfig
}

func NewMongoRepository(cfg *config.MongoDBConfig) (*MongoRepository, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, err
	}

	return &MongoRepository{
		client:   client,
		database: client.Database(cfg.Database),
		config:   cfg,
	}, nil
}

func (m *MongoRepository) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, nil)
}

func (m *MongoRepository) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

func (m *MongoRepository) collection(name string) *mongo.Collection {
	return m.database.Collection(name)
}

// AuditLog represents an audit log entry
type AuditLog struct {
	ID        string    `bson:"_id,omitempty" json:"-"`
	Service   string    `bson:"service" json:"service"`
	Action    string    `bson:"action" json:"action"`
	EntityID  string    `bson:"entity_id" json:"entity_id"`
	Data      bson.M    `bson:"data" json:"data"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

func (m *MongoRepository) CreateAuditLog(ctx context.Context, log *AuditLog) error {
	log.CreatedAt = time.Now()
	_, err := m.collection(m.config.Collection).InsertOne(ctx, log)
	return err
}

func (m *MongoRepository) GetAuditLogs(ctx context.Context, entityID string, limit int64) ([]*AuditLog, error) {
	filter := bson.M{"entity_id": entityID}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(limit)

	cursor, err := m.collection(m.config.Collection).Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var logs []*AuditLog
	if err = cursor.All(ctx, &logs); err != nil {
		return nil, err
	}

	return logs, nil
}

// Catalog

func (m *MongoRepository) ListCategories(ctx context.Context) ([]models.Category, error) {
	categories := []models.Category{}
	if err := m.findAll(ctx, m.config.Collections.Categories, bson.M{}, &categories); err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	return categories, nil
}

// CreateCategory inserts a category whose id is not taken yet.
func (m *MongoRepository) CreateCategory(ctx context.Context, category *models.Category) error {
	coll := m.collection(m.config.Collections.Categories)

	n, err := coll.CountDocuments(ctx, bson.M{"id": category.ID})
	if err != nil {
		return fmt.Errorf("failed to check category: %w", err)
	}
	if n > 0 {
		return ErrDuplicate
	}

	if _, err := coll.InsertOne(ctx, category); err != nil {
		return fmt.Errorf("failed to create category: %w", err)
	}
	return nil
}

// ListServices returns all services, or only those of category when it is set.
func (m *MongoRepository) ListServices(ctx context.Context, category string) ([]models.Service, error) {
	filter := bson.M{}
	if category != "" {
		filter["category"] = category
	}

	services := []models.Service{}
	if err := m.findAll(ctx, m.config.Collections.Services, filter, &services); err != nil {
		return nil, fmt.Errorf("failed to list services: %w", err)
	}
	return services, nil
}

func (m *MongoRepository) GetService(ctx context.Context, id string) (*models.Service, error) {
	var svc models.Service
	err := m.collection(m.config.Collections.Services).FindOne(ctx, bson.M{"id": id}).Decode(&svc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get service: %w", err)
	}
	return &svc, nil
}

func (m *MongoRepository) ListAds(ctx context.Context) ([]models.Ad, error) {
	ads := []models.Ad{}
	if err := m.findAll(ctx, m.config.Collections.Ads, bson.M{}, &ads); err != nil {
		return nil, fmt.Errorf("failed to list ads: %w", err)
	}
	return ads, nil
}

// Engagements

func (m *MongoRepository) AppendEngagement(ctx context.Context, event *models.EngagementEvent) error {
	if _, err := m.collection(m.config.Collections.Engagements).InsertOne(ctx, event); err != nil {
		return fmt.Errorf("failed to append engagement: %w", err)
	}
	return nil
}

// ListEngagements returns events in insertion order, optionally for one user.
func (m *MongoRepository) ListEngagements(ctx context.Context, userID string) ([]models.EngagementEvent, error) {
	filter := bson.M{}
	if userID != "" {
		filter["user_id"] = userID
	}

	events := []models.EngagementEvent{}
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	if err := m.findAll(ctx, m.config.Collections.Engagements, filter, &events, opts); err != nil {
		return nil, fmt.Errorf("failed to list engagements: %w", err)
	}
	return events, nil
}

// EachEngagement streams every stored event to fn.
func (m *MongoRepository) EachEngagement(ctx context.Context, fn func(models.EngagementEvent) error) error {
	cursor, err := m.collection(m.config.Collections.Engagements).Find(ctx, bson.M{})
	if err != nil {
		return fmt.Errorf("failed to read engagements: %w", err)
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var ev models.EngagementEvent
		if err := cursor.Decode(&ev); err != nil {
			return fmt.Errorf("failed to decode engagement: %w", err)
		}
		if err := fn(ev); err != nil {
			return err
		}
	}
	return cursor.Err()
}

func (m *MongoRepository) DeleteUserEngagements(ctx context.Context, userID string) (int64, error) {
	res, err := m.collection(m.config.Collections.Engagements).DeleteMany(ctx, bson.M{"user_id": userID})
	if err != nil {
		return 0, fmt.Errorf("failed to delete engagements: %w", err)
	}
	return res.DeletedCount, nil
}

func (m *MongoRepository) DeleteEngagementsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := m.collection(m.config.Collections.Engagements).DeleteMany(ctx, bson.M{"timestamp": bson.M{"$lt": cutoff}})
	if err != nil {
		return 0, fmt.Errorf("failed to delete old engagements: %w", err)
	}
	return res.DeletedCount, nil
}

// Profiles

func (m *MongoRepository) CreateProfile(ctx context.Context, data map[string]interface{}) (string, error) {
	doc := bson.M{"created_at": time.Now().UTC()}
	for k, v := range data {
		doc[k] = v
	}

	res, err := m.collection(m.config.Collections.Profiles).InsertOne(ctx, doc)
	if err != nil {
		return "", fmt.Errorf("failed to create profile: %w", err)
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		return oid.Hex(), nil
	}
	return fmt.Sprint(res.InsertedID), nil
}

func (m *MongoRepository) UpdateProfile(ctx context.Context, id string, data map[string]interface{}) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrInvalidID
	}

	res, err := m.collection(m.config.Collections.Profiles).UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": data})
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *MongoRepository) findAll(ctx context.Context, coll string, filter bson.M, dest interface{}, opts ...*options.FindOptions) error {
	cursor, err := m.collection(coll).Find(ctx, filter, opts...)
	if err != nil {
		return err
	}
	defer cursor.Close(ctx)
	return cursor.All(ctx, dest)
}
