package search

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/blevesearch/bleve/v2"
)

// SearchIndex is the catalog index: one document per book title, keyed by
// serial number.
//
// All methods are safe for concurrent use. Writes share a read lock on the
// underlying handle; Rebuild and Close take it exclusively because they
// swap or release it.
type SearchIndex struct {
	mu     sync.RWMutex
	index  bleve.Index
	dir    string
	logger *slog.Logger
}

// Options configures the search index.
type Options struct {
	DataPath string       // Directory holding the index and its version stamp
	Logger   *slog.Logger // Defaults to slog.Default()
}

// mappingVersion is bumped whenever the mapping changes. An index stamped
// with another version is discarded on open.
const mappingVersion = "shelfkeep-books-1"

// batchSize bounds the documents committed per bleve batch.
const batchSize = 500

// NewSearchIndex opens the index under opts.DataPath, creating it when
// missing. An index that fails to open or carries another mapping version
// is recreated empty; the caller reindexes from the store.
func NewSearchIndex(opts Options) (*SearchIndex, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(opts.DataPath, 0o755); err != nil {
		return nil, fmt.Errorf("create index directory: %w", err)
	}

	s := &SearchIndex{dir: opts.DataPath, logger: logger}

	switch stamp, err := s.readStamp(); {
	case errors.Is(err, fs.ErrNotExist) && !s.exists():
		// fresh install
	case err != nil:
		logger.Info("search index has no version stamp, recreating", "version", mappingVersion)
		return s, s.recreate()
	case stamp != mappingVersion:
		logger.Info("search index mapping changed, recreating", "from", stamp, "to", mappingVersion)
		return s, s.recreate()
	}

	if !s.exists() {
		return s, s.recreate()
	}

	index, err := bleve.Open(s.indexPath())
	if err != nil {
		logger.Warn("search index unreadable, recreating", "path", s.indexPath(), "error", err)
		return s, s.recreate()
	}
	s.index = index
	logger.Info("opened search index", "path", s.indexPath())
	return s, nil
}

func (s *SearchIndex) indexPath() string { return filepath.Join(s.dir, "books.bleve") }
func (s *SearchIndex) stampPath() string { return filepath.Join(s.dir, "books.version") }

func (s *SearchIndex) exists() bool {
	_, err := os.Stat(s.indexPath())
	return err == nil
}

func (s *SearchIndex) readStamp() (string, error) {
	b, err := os.ReadFile(s.stampPath())
	return string(b), err
}

// recreate replaces whatever is on disk with an empty index. Callers hold
// the write lock or own s exclusively.
func (s *SearchIndex) recreate() error {
	if err := os.RemoveAll(s.indexPath()); err != nil {
		return fmt.Errorf("remove index: %w", err)
	}
	index, err := bleve.New(s.indexPath(), buildIndexMapping())
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	if err := os.WriteFile(s.stampPath(), []byte(mappingVersion), 0o644); err != nil {
		s.logger.Warn("failed to write search version stamp", "error", err)
	}
	s.index = index
	s.logger.Info("created search index", "path", s.indexPath(), "version", mappingVersion)
	return nil
}

// Close releases the index.
func (s *SearchIndex) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index.Close()
}

// IndexDocument indexes one book, replacing any previous version.
func (s *SearchIndex) IndexDocument(doc *BookDocument) error {
	return s.IndexDocuments([]*BookDocument{doc})
}

// IndexDocuments indexes books in batches of batchSize.
func (s *SearchIndex) IndexDocuments(docs []*BookDocument) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for start := 0; start < len(docs); start += batchSize {
		chunk := docs[start:min(start+batchSize, len(docs))]
		batch := s.index.NewBatch()
		for _, doc := range chunk {
			if err := batch.Index(doc.ID, doc.ToMap()); err != nil {
				return fmt.Errorf("index book %s: %w", doc.ID, err)
			}
		}
		if err := s.index.Batch(batch); err != nil {
			return fmt.Errorf("commit books %d-%d: %w", start, start+len(chunk), err)
		}
	}
	return nil
}

// DeleteDocument removes a book from the index.
func (s *SearchIndex) DeleteDocument(serial int64) error {
	return s.DeleteDocuments([]int64{serial})
}

// DeleteDocuments removes several books in one batch.
func (s *SearchIndex) DeleteDocuments(serials []int64) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	batch := s.index.NewBatch()
	for _, serial := range serials {
		batch.Delete(DocumentID(serial))
	}
	return s.index.Batch(batch)
}

// DocumentCount returns the number of indexed books.
func (s *SearchIndex) DocumentCount() (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.DocCount()
}

// Rebuild drops every document by recreating the index. Searches and
// writes wait until it returns.
func (s *SearchIndex) Rebuild() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.index.Close(); err != nil {
		return fmt.Errorf("close index: %w", err)
	}
	return s.recreate()
}
