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

// UpsertConcentrationSummary updates or inserts the concentration record of
// one analysis group.
func (db *Database) UpsertConcentrationSummary(ctx context.Context, doc *model.ConcentrationSummaryDocument) error {
	filter := bson.M{"_id": doc.ID}
	update := bson.M{
		"$set": bson.M{
			"module":          doc.Module,
			"group":           doc.Group,
			"entities":        doc.Entities,
			"total_stake_usd": doc.TotalStake,
			"hhi":             doc.HHI,
			"gini":            doc.Gini,
			"updated_at":      time.Now().Unix(),
		},
	}
	opts := options.Update().SetUpsert(true)

	_, err := db.collection(model.ConcentrationSummaryCollection).UpdateOne(ctx, filter, update, opts)
	return translateWriteError(doc.ID, err)
}

func (db *Database) GetConcentrationSummary(ctx context.Context, module, group string) (*model.ConcentrationSummaryDocument, error) {
	filter := bson.M{"_id": model.SummaryID(module, group)}

	var doc model.ConcentrationSummaryDocument
	err := db.collection(model.ConcentrationSummaryCollection).FindOne(ctx, filter).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, &NotFoundError{
				Key:     model.SummaryID(module, group),
				Message: fmt.Sprintf("no concentration summary for group %q in module %q", group, module),
			}
		}
		return nil, err
	}

	return &doc, nil
}

// ListConcentrationSummaries returns every stored summary of one analysis
// module, most recently updated first.
func (db *Database) ListConcentrationSummaries(ctx context.Context, module string) ([]*model.ConcentrationSummaryDocument, error) {
	filter := bson.M{"module": module}
	opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}, {Key: "group", Value: 1}})

	cursor, err := db.collection(model.ConcentrationSummaryCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []*model.ConcentrationSummaryDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	return docs, nil
}
