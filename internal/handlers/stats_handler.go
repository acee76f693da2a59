package handlers

import (
	"net/http"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"book-catalog/internal/utils"
)

type StatsHandler struct {
	BookCol *mongo.Collection
}

func (h *StatsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	totalBooks, err := h.BookCol.CountDocuments(ctx, bson.M{})
	if err != nil {
		utils.JSONError(w, "Failed to count books: "+err.Error(), http.StatusInternalServerError)
		return
	}

	withAttachments, err := h.BookCol.CountDocuments(ctx, bson.M{
		"attachment": bson.M{"$exists": true},
	})
	if err != nil {
		utils.JSONError(w, "Failed to count attachments: "+err.Error(), http.StatusInternalServerError)
		return
	}

	var attachmentBytes int64
	cursor, err := h.BookCol.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"attachment": bson.M{"$exists": true}}}},
		{{Key: "$group", Value: bson.M{
			"_id":   nil,
			"total": bson.M{"$sum": "$attachment.sizeBytes"},
		}}},
	})
	if err != nil {
		utils.JSONError(w, "Failed to sum attachment sizes: "+err.Error(), http.StatusInternalServerError)
		return
	}
	var sums []struct {
		Total int64 `bson:"total"`
	}
	if err := cursor.All(ctx, &sums); err != nil {
		utils.JSONError(w, "Failed to decode stats", http.StatusInternalServerError)
		return
	}
	if len(sums) > 0 {
		attachmentBytes = sums[0].Total
	}

	utils.JSON(w, http.StatusOK, map[string]any{
		"total_books":      totalBooks,
		"with_attachments": withAttachments,
		"attachment_bytes": attachmentBytes,
	})
}
