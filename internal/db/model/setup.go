package model

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/MinterGMT/restaking-research-visuals/internal/config"
)

var collections = map[string][]mongo.IndexModel{
	QuerySnapshotCollection: {
		{Keys: bson.D{{Key: "query_id", Value: 1}, {Key: "params_hash", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "fetched_at", Value: -1}}, Options: nil},
	},
	ConcentrationSummaryCollection: {
		{Keys: bson.D{{Key: "module", Value: 1}, {Key: "group", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "module", Value: 1}, {Key: "updated_at", Value: -1}}, Options: nil},
	},
}

// Setup creates the collections and their indexes. Safe to run repeatedly.
func Setup(ctx context.Context, cfg *config.DbConfig) error {
	credential := options.Credential{
		Username: cfg.Username,
		Password: cfg.Password,
	}
	clientOps := options.Client().ApplyURI(cfg.Address).SetAuth(credential)
	client, err := mongo.Connect(ctx, clientOps)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	database := client.Database(cfg.DbName)

	existing, err := database.ListCollectionNames(ctx, bson.D{})
	if err != nil {
		return err
	}
	existingSet := make(map[string]bool, len(existing))
	for _, name := range existing {
		existingSet[name] = true
	}

	for name, indexes := range collections {
		if !existingSet[name] {
			if err := database.CreateCollection(ctx, name); err != nil {
				return err
			}
		}
		if len(indexes) == 0 {
			continue
		}
		if _, err := database.Collection(name).Indexes().CreateMany(ctx, indexes); err != nil {
			return err
		}
	}

	return client.Disconnect(ctx)
}
