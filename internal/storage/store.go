package storage

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"book-catalog/internal/models"
)

// MaxUploadBytes caps a single attachment at 10 MiB.
const MaxUploadBytes = 10 << 20

var (
	ErrFileType     = errors.New("only PDF, DOC, DOCX, TXT, and EPUB files are allowed")
	ErrFileTooLarge = errors.New("file exceeds the 10 MiB upload limit")
)

var allowedExtensions = map[string]bool{
	".pdf":  true,
	".doc":  true,
	".docx": true,
	".txt":  true,
	".epub": true,
}

var allowedMimeTypes = map[string]bool{
	"application/pdf":    true,
	"application/msword": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
	"text/plain":           true,
	"application/epub+zip": true,
}

// Store writes attachments into a single content directory. The directory is
// injected at construction; handlers own all deletions, the store only
// removes files it wrote itself within a failed Save.
type Store struct {
	dir string
}

func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Save validates and persists one incoming attachment under a generated
// unique name. Both the file extension and the declared MIME type must be on
// the allow-list. The stream is cut off past MaxUploadBytes and the partial
// file removed, so a rejected upload never stays on disk.
func (s *Store) Save(src io.Reader, originalName, mimeType string) (*models.Attachment, error) {
	ext := strings.ToLower(filepath.Ext(originalName))
	if !allowedExtensions[ext] || !allowedMimeTypes[mimeType] {
		return nil, ErrFileType
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create content directory: %w", err)
	}

	storedName := fmt.Sprintf("attachment-%d-%s%s", time.Now().UnixNano(), uuid.NewString(), ext)

	dst, err := os.Create(filepath.Join(s.dir, storedName))
	if err != nil {
		return nil, fmt.Errorf("create attachment file: %w", err)
	}

	n, err := io.Copy(dst, io.LimitReader(src, MaxUploadBytes+1))
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(filepath.Join(s.dir, storedName))
		return nil, fmt.Errorf("write attachment file: %w", err)
	}
	if n > MaxUploadBytes {
		os.Remove(filepath.Join(s.dir, storedName))
		return nil, ErrFileTooLarge
	}

	return &models.Attachment{
		StoredName:   storedName,
		OriginalName: originalName,
		MimeType:     mimeType,
		SizeBytes:    n,
		UploadedAt:   time.Now(),
	}, nil
}

// Remove deletes a stored file. An already-missing file is not an error: the
// database row is the source of truth and the file may have gone separately.
func (s *Store) Remove(storedName string) error {
	err := os.Remove(s.Path(storedName))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// Path resolves a stored name inside the content directory. Only the base
// name is used, so a stored name cannot point outside the directory.
func (s *Store) Path(storedName string) string {
	return filepath.Join(s.dir, filepath.Base(storedName))
}
