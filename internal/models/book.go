package models

import (
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var ErrTitleRequired = errors.New("title is required")

// Attachment is the metadata of the one optional file stored alongside a
// book. StoredName is the server-generated filename on disk; OriginalName is
// only used for display and download headers.
type Attachment struct {
	StoredName   string    `json:"storedName" bson:"storedName"`
	OriginalName string    `json:"originalName" bson:"originalName"`
	MimeType     string    `json:"mimeType" bson:"mimeType"`
	SizeBytes    int64     `json:"sizeBytes" bson:"sizeBytes"`
	UploadedAt   time.Time `json:"uploadedAt" bson:"uploadedAt"`
}

type Book struct {
	ID          primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Title       string             `json:"title" bson:"title"`
	Author      string             `json:"author" bson:"author"`
	Genre       string             `json:"genre" bson:"genre"`
	Description string             `json:"description" bson:"description"`
	Attachment  *Attachment        `json:"attachment,omitempty" bson:"attachment,omitempty"`
	CreatedAt   time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt   time.Time          `json:"updatedAt" bson:"updatedAt"`
}

func (b *Book) Validate() error {
	if strings.TrimSpace(b.Title) == "" {
		return ErrTitleRequired
	}
	return nil
}

const (
	BookEntity = "book"
)
