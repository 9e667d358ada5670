// Package extractor pulls plain text out of stored documents so the
// enrichment step has something better than the filename to work with.
// Extraction is best-effort: an unsupported format yields empty text, not
// an error, and the enrichment heuristics degrade to filename matching.
package extractor

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/transithub/metrodms/internal/core/domain"
	"github.com/transithub/metrodms/internal/core/ports"
)

const maxExtractBytes = 16 << 20

type Extractor struct {
	storage ports.ObjectStorage
}

func New(storage ports.ObjectStorage) *Extractor {
	return &Extractor{storage: storage}
}

func (e *Extractor) Extract(ctx context.Context, doc *domain.Document) (string, error) {
	reader, err := e.storage.Open(ctx, doc.StoragePath)
	if err != nil {
		return "", fmt.Errorf("open source document: %w", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(io.LimitReader(reader, maxExtractBytes))
	if err != nil {
		return "", fmt.Errorf("read source document: %w", err)
	}

	switch normalizedExt(doc.OriginalName) {
	case ".pdf":
		return extractPDF(raw)
	case ".xlsx", ".xlsm":
		return extractXLSX(raw)
	case ".txt", ".md", ".csv", ".log", ".json":
		return extractPlain(raw)
	default:
		if utf8.Valid(raw) {
			return extractPlain(raw)
		}
		return "", nil
	}
}

func extractPlain(raw []byte) (string, error) {
	if !utf8.Valid(raw) {
		return "", nil
	}
	return strings.TrimSpace(string(raw)), nil
}

func normalizedExt(name string) string {
	return strings.ToLower(filepath.Ext(name))
}
