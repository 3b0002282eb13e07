package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/MinterGMT/restaking-research-visuals/internal/db/model"
)

// SaveQuerySnapshot upserts the cached result set of one query execution.
func (db *Database) SaveQuerySnapshot(ctx context.Context, snapshot *model.QuerySnapshotDocument) error {
	filter := bson.M{"_id": snapshot.ID}
	update := bson.M{
		"$set": bson.M{
			"query_id":    snapshot.QueryID,
			"params_hash": snapshot.ParamsHash,
			"rows":        snapshot.Rows,
			"fetched_at":  time.Now().Unix(),
		},
	}
	opts := options.Update().SetUpsert(true)

	_, err := db.collection(model.QuerySnapshotCollection).UpdateOne(ctx, filter, update, opts)
	return translateWriteError(snapshot.ID, err)
}

// GetQuerySnapshot returns the cached result set for the given query and
// parameter hash, or a NotFoundError when nothing has been cached yet.
func (db *Database) GetQuerySnapshot(ctx context.Context, queryID int64, paramsHash string) (*model.QuerySnapshotDocument, error) {
	filter := bson.M{"_id": model.SnapshotID(queryID, paramsHash)}

	var snapshot model.QuerySnapshotDocument
	err := db.collection(model.QuerySnapshotCollection).FindOne(ctx, filter).Decode(&snapshot)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, &NotFoundError{
				Key:     model.SnapshotID(queryID, paramsHash),
				Message: fmt.Sprintf("no snapshot cached for query %d", queryID),
			}
		}
		return nil, err
	}

	return &snapshot, nil
}
