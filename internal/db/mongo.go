package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"depth_spider/internal/config"
	"depth_spider/internal/models"
)

// Static and compile-time check to ensure MongoDB implements PageStore.
var _ PageStore = (*MongoDB)(nil)

const (
	connectTimeout = 10 * time.Second
	queryTimeout   = 5 * time.Second
)

type MongoDB struct {
	client   *mongo.Client
	database *mongo.Database
	pages    *mongo.Collection
}

func NewMongoDB(cfg config.DBConfig) (*MongoDB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Connection))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("can't ping MongoDB: %w", err)
	}

	database := client.Database(cfg.Database)

	d := &MongoDB{
		client:   client,
		database: database,
		pages:    database.Collection(cfg.Collections.Pages),
	}

	if err := d.createIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("can't create indexes: %w", err)
	}

	return d, nil
}

func (d *MongoDB) createIndexes(ctx context.Context) error {
	indexModel := mongo.IndexModel{
		Keys:    bson.D{{Key: "normalized_url", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	_, err := d.pages.Indexes().CreateOne(ctx, indexModel)
	return err
}

func (d *MongoDB) CreateIfAbsent(ctx context.Context, page *models.Page) (*models.Page, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	now := time.Now().Unix()
	filter := bson.M{"normalized_url": page.NormalizedURL}
	update := bson.M{
		"$setOnInsert": bson.M{
			"_id":            primitive.NewObjectID().Hex(),
			"url":            page.URL,
			"origin_depth":   page.OriginDepth,
			"crawled":        false,
			"outgoing_links": bson.A{},
			"first_scraped":  now,
			"last_scraped":   now,
		},
	}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var stored models.Page
	err := d.pages.FindOneAndUpdate(ctx, filter, update, opts).Decode(&stored)
	if mongo.IsDuplicateKeyError(err) {
		// Lost an upsert race against another writer; the page exists now.
		return d.FindByURL(ctx, page.NormalizedURL)
	}
	if err != nil {
		return nil, fmt.Errorf("create page %q: %w", page.NormalizedURL, err)
	}

	return &stored, nil
}

func (d *MongoDB) FindByURL(ctx context.Context, normalizedURL string) (*models.Page, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var page models.Page
	err := d.pages.FindOne(ctx, bson.M{"normalized_url": normalizedURL}).Decode(&page)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("find %q: %w", normalizedURL, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find %q: %w", normalizedURL, err)
	}

	return &page, nil
}

func (d *MongoDB) FindByIDs(ctx context.Context, ids []string) ([]*models.Page, error) {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	cursor, err := d.pages.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, fmt.Errorf("find pages by id: %w", err)
	}
	defer cursor.Close(ctx)

	var pages []*models.Page
	if err := cursor.All(ctx, &pages); err != nil {
		return nil, fmt.Errorf("decode pages: %w", err)
	}

	return orderPages(ids, pages), nil
}

func (d *MongoDB) AppendLinks(ctx context.Context, id string, childIDs []string) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if childIDs == nil {
		childIDs = []string{}
	}

	update := bson.M{
		"$addToSet": bson.M{"outgoing_links": bson.M{"$each": childIDs}},
		"$set": bson.M{
			"crawled":      true,
			"last_scraped": time.Now().Unix(),
		},
	}

	res, err := d.pages.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("append links to %q: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("append links to %q: %w", id, ErrNotFound)
	}

	return nil
}

func (d *MongoDB) ClearLinks(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	update := bson.M{
		"$set": bson.M{
			"crawled":        false,
			"outgoing_links": bson.A{},
		},
	}

	res, err := d.pages.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("clear links of %q: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("clear links of %q: %w", id, ErrNotFound)
	}

	return nil
}

func (d *MongoDB) Ping(ctx context.Context) error {
	return d.client.Ping(ctx, nil)
}

func (d *MongoDB) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	return d.client.Disconnect(ctx)
}

// Drop removes the pages collection. Used by tests to start from scratch.
func (d *MongoDB) Drop(ctx context.Context) error {
	return d.pages.Drop(ctx)
}
