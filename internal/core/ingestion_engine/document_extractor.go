package ingestion_engine

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"code.sajari.com/docconv"
	"github.com/xuri/excelize/v2"

	"github.com/markdave123-py/ragdesk/internal/core"
	"github.com/markdave123-py/ragdesk/internal/logger"
)

var _ core.DocumentExtractor = (*DocconvExtractor)(nil)

// DocconvExtractor implements core.DocumentExtractor using sajari/docconv,
// with excelize for spreadsheets and encoding/csv for CSV files.
type DocconvExtractor struct {
	useReadability bool
	log            *slog.Logger
}

func NewDocconvExtractor(useReadability bool) *DocconvExtractor {
	return &DocconvExtractor{
		useReadability: useReadability,
		log:            logger.NewModuleLogger("ingestion", "extractor"),
	}
}

// Extract returns the plain text of the file at path, or "" when the format is
// unsupported or unreadable.
func (e *DocconvExtractor) Extract(ctx context.Context, path string) string {
	if err := ctx.Err(); err != nil {
		return ""
	}

	ext := strings.ToLower(filepath.Ext(path))
	var (
		text string
		err  error
	)
	switch ext {
	case ".txt", ".md":
		var b []byte
		b, err = os.ReadFile(path)
		text = string(b)
	case ".csv":
		text, err = extractCSV(path)
	case ".xlsx", ".xlsm":
		text, err = extractXLSX(path)
	case ".pdf", ".docx", ".doc", ".pptx", ".odt", ".rtf", ".html", ".htm", ".xml", ".pages":
		text, err = e.extractDocconv(path)
	default:
		err = fmt.Errorf("unsupported file format: %s", ext)
	}

	if err != nil {
		e.log.Error("extraction failed", "path", path, "error", err)
		return ""
	}
	e.log.Info("extracted document", "path", path, "chars", len([]rune(text)))
	return text
}

func (e *DocconvExtractor) extractDocconv(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	res, err := docconv.Convert(f, docconv.MimeTypeByExtension(path), e.useReadability)
	if err != nil {
		return "", fmt.Errorf("docconv: %w", err)
	}
	return res.Body, nil
}

func extractCSV(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var b strings.Builder
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("read csv: %w", err)
		}
		b.WriteString(strings.Join(rec, "\t"))
		b.WriteByte('\n')
	}
	return b.String(), nil
}

func extractXLSX(path string) (string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return "", fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	var b strings.Builder
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return "", fmt.Errorf("read sheet %q: %w", sheet, err)
		}
		b.WriteString("# " + sheet + "\n")
		for _, row := range rows {
			b.WriteString(strings.Join(row, "\t"))
			b.WriteByte('\n')
		}
	}
	return b.String(), nil
}
