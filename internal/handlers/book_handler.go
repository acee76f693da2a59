package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"net/http"
	"os"
	"regexp"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"book-catalog/internal/constants"
	"book-catalog/internal/models"
	"book-catalog/internal/storage"
	"book-catalog/internal/utils"
)

// multipartFormMemory is the in-memory threshold for parsed forms; larger
// parts spill to temp files.
const multipartFormMemory = 32 << 20

type BookHandler struct {
	BookCollection *mongo.Collection
	Store          *storage.Store
	AuditLogger    utils.Logger
}

func NewBookHandler(bookColl *mongo.Collection, store *storage.Store, logger utils.Logger) *BookHandler {
	return &BookHandler{
		BookCollection: bookColl,
		Store:          store,
		AuditLogger:    logger,
	}
}

// GET /api/books?search=
func (h *BookHandler) ListBooks(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	filter := bson.M{}
	if search := r.URL.Query().Get("search"); search != "" {
		pattern := regexp.QuoteMeta(search)
		filter = bson.M{"$or": []bson.M{
			{"title": bson.M{"$regex": pattern, "$options": "i"}},
			{"author": bson.M{"$regex": pattern, "$options": "i"}},
		}}
	}

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := h.BookCollection.Find(ctx, filter, opts)
	if err != nil {
		utils.JSONError(w, "Failed to fetch books", http.StatusInternalServerError)
		return
	}
	defer cursor.Close(ctx)

	books := []models.Book{}
	if err = cursor.All(ctx, &books); err != nil {
		utils.JSONError(w, "Error decoding books", http.StatusInternalServerError)
		return
	}

	utils.JSON(w, http.StatusOK, books)
}

// POST /api/books
func (h *BookHandler) AddBook(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, storage.MaxUploadBytes+(1<<20))
	if err := r.ParseMultipartForm(multipartFormMemory); err != nil {
		utils.JSONError(w, "Invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}

	book := models.Book{
		Title:       r.FormValue("title"),
		Author:      r.FormValue("author"),
		Genre:       r.FormValue("genre"),
		Description: r.FormValue("description"),
	}
	if err := book.Validate(); err != nil {
		utils.JSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("attachment")
	switch {
	case err == nil:
		defer file.Close()
		att, saveErr := h.Store.Save(file, header.Filename, header.Header.Get("Content-Type"))
		if saveErr != nil {
			utils.JSONError(w, saveErr.Error(), uploadStatus(saveErr))
			return
		}
		book.Attachment = att
	case !errors.Is(err, http.ErrMissingFile):
		utils.JSONError(w, "Invalid attachment field", http.StatusBadRequest)
		return
	}

	now := time.Now().UTC()
	book.ID = primitive.NewObjectID()
	book.CreatedAt = now
	book.UpdatedAt = now

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := h.BookCollection.InsertOne(ctx, book); err != nil {
		if book.Attachment != nil {
			if rmErr := h.Store.Remove(book.Attachment.StoredName); rmErr != nil {
				log.Printf("orphan cleanup failed for %s: %v", book.Attachment.StoredName, rmErr)
			}
		}
		utils.JSONError(w, "Insert failed: "+err.Error(), http.StatusInternalServerError)
		return
	}

	h.AuditLogger.Log(ctx, models.BookEntity, constants.Create, book)

	utils.JSON(w, http.StatusCreated, book)
}

// PUT /api/books/{id}
//
// Text fields are replaced with whatever the form supplied, absent included;
// the attachment is replaced only when a new file arrives. The new file is
// written before the old one is removed, so a rejected upload leaves the
// existing attachment untouched; two concurrent updates to the same id can
// still race on the files. Accepted limitation, see SPEC_FULL.md §5.
func (h *BookHandler) UpdateBook(w http.ResponseWriter, r *http.Request) {
	oid, err := primitive.ObjectIDFromHex(mux.Vars(r)["id"])
	if err != nil {
		utils.JSONError(w, "Book not found", http.StatusNotFound)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, storage.MaxUploadBytes+(1<<20))
	if err := r.ParseMultipartForm(multipartFormMemory); err != nil {
		utils.JSONError(w, "Invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}

	update := bson.M{
		"title":       r.FormValue("title"),
		"author":      r.FormValue("author"),
		"genre":       r.FormValue("genre"),
		"description": r.FormValue("description"),
		"updatedAt":   time.Now().UTC(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var newAttachment *models.Attachment
	file, header, ferr := r.FormFile("attachment")
	switch {
	case ferr == nil:
		defer file.Close()

		// The replacement is validated and written first; the old file
		// goes away only once the new one exists. Both briefly coexist.
		att, saveErr := h.Store.Save(file, header.Filename, header.Header.Get("Content-Type"))
		if saveErr != nil {
			utils.JSONError(w, saveErr.Error(), uploadStatus(saveErr))
			return
		}
		newAttachment = att
		update["attachment"] = att

		var existing models.Book
		findErr := h.BookCollection.FindOne(ctx, bson.M{"_id": oid}).Decode(&existing)
		if findErr != nil && !errors.Is(findErr, mongo.ErrNoDocuments) {
			h.discardAttachment(newAttachment)
			utils.JSONError(w, "Failed to fetch book", http.StatusInternalServerError)
			return
		}
		if findErr == nil && existing.Attachment != nil {
			if rmErr := h.Store.Remove(existing.Attachment.StoredName); rmErr != nil {
				log.Printf("removing old attachment %s: %v", existing.Attachment.StoredName, rmErr)
			}
		}
	case !errors.Is(ferr, http.ErrMissingFile):
		utils.JSONError(w, "Invalid attachment field", http.StatusBadRequest)
		return
	}

	result, err := h.BookCollection.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": update})
	if err != nil {
		h.discardAttachment(newAttachment)
		utils.JSONError(w, "Update failed: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if result.MatchedCount == 0 {
		h.discardAttachment(newAttachment)
		utils.JSONError(w, "Book not found", http.StatusNotFound)
		return
	}

	var updated models.Book
	if err := h.BookCollection.FindOne(ctx, bson.M{"_id": oid}).Decode(&updated); err != nil {
		utils.JSONError(w, "Failed to fetch updated book", http.StatusInternalServerError)
		return
	}

	h.AuditLogger.Log(ctx, models.BookEntity, constants.Update, updated)

	utils.JSON(w, http.StatusOK, updated)
}

// DELETE /api/books/{id}
func (h *BookHandler) DeleteBook(w http.ResponseWriter, r *http.Request) {
	oid, err := primitive.ObjectIDFromHex(mux.Vars(r)["id"])
	if err != nil {
		utils.JSONError(w, "Book not found", http.StatusNotFound)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var book models.Book
	findErr := h.BookCollection.FindOne(ctx, bson.M{"_id": oid}).Decode(&book)
	if findErr != nil && !errors.Is(findErr, mongo.ErrNoDocuments) {
		utils.JSONError(w, "Failed to fetch book", http.StatusInternalServerError)
		return
	}
	if findErr == nil && book.Attachment != nil {
		if rmErr := h.Store.Remove(book.Attachment.StoredName); rmErr != nil {
			log.Printf("removing attachment %s: %v", book.Attachment.StoredName, rmErr)
		}
	}

	result, err := h.BookCollection.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		utils.JSONError(w, "Delete failed", http.StatusInternalServerError)
		return
	}
	if result.DeletedCount == 0 {
		utils.JSONError(w, "Book not found", http.StatusNotFound)
		return
	}

	h.AuditLogger.Log(ctx, models.BookEntity, constants.Delete, oid.Hex())

	utils.JSON(w, http.StatusOK, map[string]string{"message": "Book and associated file deleted successfully"})
}

// GET /api/books/{id}/download
func (h *BookHandler) DownloadBook(w http.ResponseWriter, r *http.Request) {
	oid, err := primitive.ObjectIDFromHex(mux.Vars(r)["id"])
	if err != nil {
		utils.JSONError(w, "File not found", http.StatusNotFound)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var book models.Book
	if err := h.BookCollection.FindOne(ctx, bson.M{"_id": oid}).Decode(&book); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			utils.JSONError(w, "File not found", http.StatusNotFound)
			return
		}
		utils.JSONError(w, "Failed to fetch book", http.StatusInternalServerError)
		return
	}

	if book.Attachment == nil || book.Attachment.StoredName == "" {
		utils.JSONError(w, "File not found", http.StatusNotFound)
		return
	}

	f, err := os.Open(h.Store.Path(book.Attachment.StoredName))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			utils.JSONError(w, "File not found on server", http.StatusNotFound)
			return
		}
		utils.JSONError(w, "Failed to open file", http.StatusInternalServerError)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", book.Attachment.OriginalName))
	w.Header().Set("Content-Type", book.Attachment.MimeType)
	if info, statErr := f.Stat(); statErr == nil {
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size(), 10))
	}

	// A concurrent delete can remove the file mid-copy; the stream just
	// breaks and the client sees a truncated response.
	if _, err := io.Copy(w, f); err != nil {
		log.Printf("streaming %s: %v", book.Attachment.StoredName, err)
	}
}

func (h *BookHandler) discardAttachment(att *models.Attachment) {
	if att == nil {
		return
	}
	if err := h.Store.Remove(att.StoredName); err != nil {
		log.Printf("orphan cleanup failed for %s: %v", att.StoredName, err)
	}
}

func uploadStatus(err error) int {
	if errors.Is(err, storage.ErrFileType) || errors.Is(err, storage.ErrFileTooLarge) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
