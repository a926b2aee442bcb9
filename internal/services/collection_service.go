package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/markdave123-py/ragdesk/internal/core"
	"github.com/markdave123-py/ragdesk/internal/models"
)

var (
	ErrInvalidCollectionName = errors.New("invalid collection name")

	unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9_-]`)
	underscoreRuns  = regexp.MustCompile(`_+`)
)

const noSummary = "No summary available."

type DocumentSummary struct {
	DocumentID string `json:"id"`
	FileName   string `json:"filename"`
	Summary    string `json:"summary"`
}

type CollectionSummary struct {
	Name      string            `json:"name"`
	Documents []DocumentSummary `json:"documents"`
}

type ProfileStats struct {
	TotalChats    int `json:"total_chats"`
	ArchivedChats int `json:"archived_chats"`
	FilesUploaded int `json:"files_uploaded"`
	Collections   int `json:"collections"`
}

type CollectionService struct {
	vectors  core.VectorStore
	docs     core.DocumentStore
	sessions core.SessionStore
}

func NewCollectionService(vectors core.VectorStore, docs core.DocumentStore, sessions core.SessionStore) *CollectionService {
	return &CollectionService{vectors: vectors, docs: docs, sessions: sessions}
}

// SanitizeCollectionName replaces anything outside [A-Za-z0-9_-] with '_',
// collapses runs of '_' and trims them from both ends.
func SanitizeCollectionName(name string) string {
	name = unsafeNameChars.ReplaceAllString(name, "_")
	name = underscoreRuns.ReplaceAllString(name, "_")
	return strings.Trim(name, "_")
}

func (s *CollectionService) Create(ctx context.Context, name string) (string, error) {
	clean := SanitizeCollectionName(name)
	if clean == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidCollectionName, name)
	}
	if err := s.vectors.CreateCollection(ctx, clean); err != nil {
		return "", fmt.Errorf("create collection %s: %w", clean, err)
	}
	return clean, nil
}

func (s *CollectionService) List(ctx context.Context) ([]models.CollectionInfo, error) {
	return s.vectors.ListCollections(ctx)
}

// Delete drops the collection's vectors and its document records.
func (s *CollectionService) Delete(ctx context.Context, name string) error {
	if err := s.vectors.DeleteCollection(ctx, name); err != nil {
		return err
	}
	if _, err := s.docs.DeleteDocumentsByCollection(ctx, name); err != nil {
		return fmt.Errorf("delete documents of %s: %w", name, err)
	}
	return nil
}

func (s *CollectionService) Summary(ctx context.Context, name string) (*CollectionSummary, error) {
	docs, err := s.docs.ListDocuments(ctx, name)
	if err != nil {
		return nil, err
	}
	out := &CollectionSummary{Name: name, Documents: make([]DocumentSummary, 0, len(docs))}
	for _, d := range docs {
		summary := d.Summary
		if strings.TrimSpace(summary) == "" {
			summary = noSummary
		}
		out.Documents = append(out.Documents, DocumentSummary{DocumentID: d.ID, FileName: d.FileName, Summary: summary})
	}
	return out, nil
}

func (s *CollectionService) Stats(ctx context.Context) (*ProfileStats, error) {
	total, archived, err := s.sessions.CountSessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("count sessions: %w", err)
	}
	files, err := s.docs.CountDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("count documents: %w", err)
	}
	cols, err := s.vectors.ListCollections(ctx)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	return &ProfileStats{
		TotalChats:    total - archived,
		ArchivedChats: archived,
		FilesUploaded: files,
		Collections:   len(cols),
	}, nil
}
