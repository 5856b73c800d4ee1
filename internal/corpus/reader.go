// Package corpus loads source documents from a mounted directory.
package corpus

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/thaidata-cloud/lexrag/internal/domain"
)

// Reader walks a corpus directory and loads supported documents.
// Unreadable files are logged and skipped so one bad scan does not abort
// a whole ingestion pass.
type Reader struct {
	dir    string
	logger *zap.Logger
}

// NewReader creates a corpus reader rooted at dir.
func NewReader(dir string, logger *zap.Logger) *Reader {
	return &Reader{dir: dir, logger: logger}
}

// Load walks the corpus directory recursively and returns one Document per
// supported file (.pdf, .txt, .md). A missing directory is created and
// yields zero documents.
func (r *Reader) Load() ([]domain.Document, error) {
	if _, err := os.Stat(r.dir); os.IsNotExist(err) {
		if err := os.MkdirAll(r.dir, 0o755); err != nil {
			return nil, fmt.Errorf("create corpus dir %s: %w", r.dir, err)
		}
		r.logger.Info("Created corpus directory", zap.String("dir", r.dir))
		return nil, nil
	}

	var docs []domain.Document
	err := filepath.WalkDir(r.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		content, ok, rerr := readFile(path)
		if rerr != nil {
			r.logger.Error("Failed to read document",
				zap.String("path", path), zap.Error(rerr))
			return nil // skip, keep walking
		}
		if !ok {
			return nil // unsupported extension
		}
		if strings.TrimSpace(content) == "" {
			r.logger.Warn("Skipping empty document", zap.String("path", path))
			return nil
		}

		rel, rerr := filepath.Rel(r.dir, path)
		if rerr != nil {
			rel = path
		}

		docs = append(docs, domain.Document{
			ID:      docID(rel),
			Path:    path,
			Content: content,
		})
		r.logger.Info("Loaded document", zap.String("path", path))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk corpus dir %s: %w", r.dir, err)
	}

	return docs, nil
}

// readFile dispatches by extension. The bool reports whether the extension
// is supported.
func readFile(path string) (string, bool, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		text, err := extractPDFText(path)
		return text, true, err
	case ".txt", ".md":
		data, err := os.ReadFile(path)
		if err != nil {
			return "", true, fmt.Errorf("read %s: %w", path, err)
		}
		return string(data), true, nil
	default:
		return "", false, nil
	}
}

// docID turns a relative path into a stable document identifier.
func docID(rel string) string {
	id := filepath.ToSlash(rel)
	id = strings.TrimSuffix(id, filepath.Ext(id))
	return strings.ReplaceAll(id, "/", "_")
}
