package daemon

import (
	"context"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"book-catalog/internal/models"
	"book-catalog/internal/utils"
)

type LogExporter struct {
	Coll *mongo.Collection
}

func (l *LogExporter) InitLogExporter() {
	go func() {
		for {
			if err := l.ExportPending(context.Background()); err != nil {
				log.Printf("Audit export failed: %v", err)
			}
			time.Sleep(30 * time.Second)
		}
	}()
}

// ExportPending exports all unexported audit entries and marks them exported.
func (l *LogExporter) ExportPending(ctx context.Context) error {
	res, err := l.Coll.Find(ctx, bson.M{"exported": false})
	if err != nil {
		return err
	}

	var logs []models.AuditLog
	if err := res.All(ctx, &logs); err != nil {
		return err
	}
	if len(logs) == 0 {
		return nil
	}

	if err := utils.ExportData(logs); err != nil {
		return err
	}

	updateIds := make([]primitive.ObjectID, 0, len(logs))
	for _, entry := range logs {
		updateIds = append(updateIds, entry.ID)
	}

	_, err = l.Coll.UpdateMany(ctx, bson.M{"_id": bson.M{"$in": updateIds}}, bson.M{"$set": bson.M{"exported": true}})
	return err
}
