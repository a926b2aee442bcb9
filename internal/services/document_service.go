package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/markdave123-py/ragdesk/internal/core"
	ingestion "github.com/markdave123-py/ragdesk/internal/core/ingestion_engine"
	objectclient "github.com/markdave123-py/ragdesk/internal/core/object-client"
	"github.com/markdave123-py/ragdesk/internal/logger"
	"github.com/markdave123-py/ragdesk/internal/models"
)

// Upload is one file received from a client.
type Upload struct {
	Name        string
	ContentType string
	Body        io.Reader
}

// DocumentService saves uploads, runs them through ingestion and serves the
// stored originals back. storage is nil when archiving is disabled.
type DocumentService struct {
	docs      core.DocumentStore
	ingestor  ingestion.Ingestor
	storage   core.ObjectClient
	bucket    string
	uploadDir string
	now       func() time.Time
	log       *slog.Logger
}

func NewDocumentService(docs core.DocumentStore, ing ingestion.Ingestor, storage core.ObjectClient, bucket, uploadDir string) *DocumentService {
	return &DocumentService{
		docs:      docs,
		ingestor:  ing,
		storage:   storage,
		bucket:    bucket,
		uploadDir: uploadDir,
		now:       time.Now,
		log:       logger.NewModuleLogger("services", "documents"),
	}
}

// Save writes every upload under the upload directory as
// <safe-name>_<collection>_<unix><ext> and archives a copy when storage is set.
// A name already taken on disk gets a -2, -3, ... suffix before the extension.
// collection must already be a sanitized collection name.
func (s *DocumentService) Save(ctx context.Context, collection string, uploads []Upload) ([]models.SavedFile, error) {
	if collection == "" || SanitizeCollectionName(collection) != collection {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCollectionName, collection)
	}
	if err := os.MkdirAll(s.uploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	stamp := s.now().Unix()

	saved := make([]models.SavedFile, 0, len(uploads))
	for _, u := range uploads {
		original := filepath.Base(u.Name)
		ext := safeExt(original)
		base := fmt.Sprintf("%s_%s_%d", SafeName(strings.TrimSuffix(original, filepath.Ext(original))), collection, stamp)

		stored, err := writeUnique(s.uploadDir, base, ext, u.Body)
		if err != nil {
			return saved, fmt.Errorf("save %s: %w", original, err)
		}

		contentType := u.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		f := models.SavedFile{OriginalName: original, StoredName: stored, Path: filepath.Join(s.uploadDir, stored), ContentType: contentType}
		f.StorageURL = s.archive(ctx, collection, f)
		saved = append(saved, f)
	}
	return saved, nil
}

// archive copies a saved file to object storage. A failed copy is logged and
// the document is served from local disk instead.
func (s *DocumentService) archive(ctx context.Context, collection string, f models.SavedFile) string {
	if s.storage == nil {
		return ""
	}
	src, err := os.Open(f.Path)
	if err != nil {
		s.log.Warn("archive open failed", "file", f.StoredName, "error", err)
		return ""
	}
	defer src.Close()

	url, err := s.storage.UploadFile(ctx, s.bucket, objectKey(collection, f.StoredName), src, f.ContentType)
	if err != nil {
		s.log.Warn("archive upload failed", "file", f.StoredName, "error", err)
		return ""
	}
	return url
}

func (s *DocumentService) Ingest(ctx context.Context, collection string, files []models.SavedFile, summarize bool) iter.Seq[ingestion.ProgressEvent] {
	return s.ingestor.Run(ctx, collection, files, summarize)
}

func (s *DocumentService) Get(ctx context.Context, id string) (*models.Document, error) {
	return s.docs.GetDocumentByID(ctx, id)
}

func (s *DocumentService) List(ctx context.Context, collection string) ([]models.Document, error) {
	return s.docs.ListDocuments(ctx, collection)
}

// Open returns the original bytes of a document, from the archive when it has
// a copy there and from the upload directory otherwise.
func (s *DocumentService) Open(ctx context.Context, id string) (io.ReadCloser, *models.Document, error) {
	doc, err := s.docs.GetDocumentByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	if doc.StorageURL != "" && s.storage != nil {
		bucket, key, err := objectclient.ParseS3URL(doc.StorageURL)
		if err != nil {
			return nil, nil, err
		}
		rc, err := s.storage.GetObjectReader(ctx, bucket, key)
		if err != nil {
			return nil, nil, err
		}
		return rc, doc, nil
	}

	f, err := os.Open(filepath.Join(s.uploadDir, filepath.Base(doc.StoredName)))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil, fmt.Errorf("original of %s: %w", doc.FileName, core.ErrNotFound)
	}
	if err != nil {
		return nil, nil, err
	}
	return f, doc, nil
}

// SafeName keeps letters, digits, spaces, '-' and '_'.
func SafeName(name string) string {
	var b strings.Builder
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' || r == '-' || r == '_' {
			b.WriteRune(r)
		}
	}
	out := strings.TrimSpace(b.String())
	if out == "" {
		return "file"
	}
	return out
}

// safeExt returns the extension of name with its dot, or "" when it holds
// anything but letters and digits.
func safeExt(name string) string {
	ext := filepath.Ext(name)
	if len(ext) < 2 {
		return ""
	}
	for _, r := range ext[1:] {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return ""
		}
	}
	return ext
}

func objectKey(collection, stored string) string {
	return path.Join("collections", collection, strings.ReplaceAll(stored, " ", "_"))
}

const maxNameAttempts = 1000

// writeUnique creates base+ext exclusively in dir, falling back to
// base-2+ext, base-3+ext and so on, and returns the name it used.
func writeUnique(dir, base, ext string, body io.Reader) (string, error) {
	for i := 1; i <= maxNameAttempts; i++ {
		name := base + ext
		if i > 1 {
			name = fmt.Sprintf("%s-%d%s", base, i, ext)
		}
		out, err := os.OpenFile(filepath.Join(dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", err
		}
		if _, err := io.Copy(out, body); err != nil {
			out.Close()
			return "", err
		}
		return name, out.Close()
	}
	return "", fmt.Errorf("no free name for %s%s", base, ext)
}
