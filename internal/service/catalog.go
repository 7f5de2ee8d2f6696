package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shelfkeep/shelfkeep-server/internal/domain"
	domainerrors "github.com/shelfkeep/shelfkeep-server/internal/errors"
	"github.com/shelfkeep/shelfkeep-server/internal/normalize"
	"github.com/shelfkeep/shelfkeep-server/internal/retry"
	"github.com/shelfkeep/shelfkeep-server/internal/store"
	"github.com/shelfkeep/shelfkeep-server/internal/validation"
)

// CatalogService manages authors, categories and publishers. Names are
// stored cleaned and are unique per kind regardless of case and spacing.
type CatalogService struct {
	tx     txRunner
	store  store.Store
	logger *slog.Logger
}

// NewCatalogService creates a new catalog service.
func NewCatalogService(st store.Store, policy *retry.Policy, logger *slog.Logger) *CatalogService {
	return &CatalogService{
		tx:     newTxRunner(st, policy),
		store:  st,
		logger: logger,
	}
}

func checkKind(kind domain.CatalogKind) error {
	switch kind {
	case domain.CatalogAuthor, domain.CatalogCategory, domain.CatalogPublisher:
		return nil
	default:
		return domainerrors.Validationf("unknown catalog kind %q", kind)
	}
}

// cleanName normalizes a catalog or client name and enforces its bounds.
func cleanName(field, raw string) (string, error) {
	name := normalize.Name(raw)
	if !validation.SafeName(raw) {
		return "", domainerrors.ValidationWithDetails("validation failed",
			map[string]string{field: "must be a non-blank name without control characters"})
	}
	if len([]rune(name)) > domain.MaxNameLength {
		return "", domainerrors.ValidationWithDetails("validation failed",
			map[string]string{field: fmt.Sprintf("must not exceed %d characters", domain.MaxNameLength)})
	}
	return name, nil
}

// Create adds one entry.
func (s *CatalogService) Create(ctx context.Context, kind domain.CatalogKind, name string) (domain.CatalogEntry, error) {
	entries, err := s.CreateMany(ctx, kind, []string{name})
	if err != nil {
		return domain.CatalogEntry{}, err
	}
	return entries[0], nil
}

// CreateMany adds several entries of one kind, all or none. A name that
// already exists, or appears twice in the batch, fails the whole batch.
func (s *CatalogService) CreateMany(ctx context.Context, kind domain.CatalogKind, names []string) ([]domain.CatalogEntry, error) {
	if err := checkKind(kind); err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, domainerrors.Validationf("at least one %s name is required", kind)
	}

	cleaned := make([]string, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for i, raw := range names {
		name, err := cleanName(fmt.Sprintf("names[%d]", i), raw)
		if err != nil {
			return nil, err
		}
		key := normalize.Key(name)
		if _, dup := seen[key]; dup {
			return nil, domainerrors.AlreadyExistsf("%s %q is listed twice", kind, name)
		}
		seen[key] = struct{}{}
		cleaned = append(cleaned, name)
	}

	var created []domain.CatalogEntry
	err := s.tx.inTx(ctx, func(q store.Queries) error {
		created = make([]domain.CatalogEntry, 0, len(cleaned))
		for _, name := range cleaned {
			e, err := q.CreateCatalogEntry(ctx, kind, name)
			if err != nil {
				return storeErr(err, fmt.Sprintf("%s %q", kind, name))
			}
			created = append(created, e)
		}
		return nil
	})
	if err != nil {
		return nil, logRejection(s.logger, "create "+string(kind), err)
	}

	s.logger.Info("catalog entries created", "kind", kind, "count", len(created))
	return created, nil
}

// Get returns one entry.
func (s *CatalogService) Get(ctx context.Context, kind domain.CatalogKind, id int64) (domain.CatalogEntry, error) {
	if err := checkKind(kind); err != nil {
		return domain.CatalogEntry{}, err
	}
	e, err := s.store.GetCatalogEntry(ctx, kind, id)
	if err != nil {
		return domain.CatalogEntry{}, storeErr(err, fmt.Sprintf("%s %d", kind, id))
	}
	return e, nil
}

// List pages through the entries of a kind by id.
func (s *CatalogService) List(ctx context.Context, kind domain.CatalogKind, params store.PaginationParams) (*store.PaginatedResult[domain.CatalogEntry], error) {
	if err := checkKind(kind); err != nil {
		return nil, err
	}
	page, err := s.store.ListCatalogEntries(ctx, kind, params)
	if err != nil {
		return nil, pageErr(err, string(kind)+" entries")
	}
	return page, nil
}

// Rename changes an entry's name. Renaming onto another entry's name fails
// with AlreadyExists; changing only case or spacing is allowed.
func (s *CatalogService) Rename(ctx context.Context, kind domain.CatalogKind, id int64, name string) (domain.CatalogEntry, error) {
	if err := checkKind(kind); err != nil {
		return domain.CatalogEntry{}, err
	}
	cleaned, err := cleanName("name", name)
	if err != nil {
		return domain.CatalogEntry{}, err
	}

	err = s.tx.inTx(ctx, func(q store.Queries) error {
		if _, err := q.GetCatalogEntry(ctx, kind, id); err != nil {
			return storeErr(err, fmt.Sprintf("%s %d", kind, id))
		}
		return storeErr(q.RenameCatalogEntry(ctx, kind, id, cleaned), fmt.Sprintf("%s %q", kind, cleaned))
	})
	if err != nil {
		return domain.CatalogEntry{}, logRejection(s.logger, "rename "+string(kind), err, "id", id)
	}

	s.logger.Info("catalog entry renamed", "kind", kind, "id", id, "name", cleaned)
	return domain.CatalogEntry{ID: id, Name: cleaned}, nil
}

// Delete removes an entry no book references.
func (s *CatalogService) Delete(ctx context.Context, kind domain.CatalogKind, id int64) error {
	if err := checkKind(kind); err != nil {
		return err
	}

	err := s.tx.inTx(ctx, func(q store.Queries) error {
		what := fmt.Sprintf("%s %d", kind, id)
		if _, err := q.GetCatalogEntry(ctx, kind, id); err != nil {
			return storeErr(err, what)
		}
		n, err := q.CountBooksWith(ctx, kind, id)
		if err != nil {
			return storeErr(err, what)
		}
		if n > 0 {
			return domainerrors.Conflictf("%s is referenced by %d book(s) and cannot be deleted", what, n)
		}
		return storeErr(q.DeleteCatalogEntry(ctx, kind, id), what)
	})
	if err != nil {
		return logRejection(s.logger, "delete "+string(kind), err, "id", id)
	}

	s.logger.Info("catalog entry deleted", "kind", kind, "id", id)
	return nil
}

// getOrCreate resolves a cleaned name to its entry, creating it when new.
func getOrCreate(ctx context.Context, q store.Queries, kind domain.CatalogKind, name string) (domain.CatalogEntry, error) {
	e, err := q.FindCatalogEntry(ctx, kind, name)
	if err == nil {
		return e, nil
	}
	if !isNotFound(err) {
		return domain.CatalogEntry{}, storeErr(err, string(kind))
	}
	e, err = q.CreateCatalogEntry(ctx, kind, name)
	if err != nil {
		return domain.CatalogEntry{}, storeErr(err, fmt.Sprintf("%s %q", kind, name))
	}
	return e, nil
}

// getOrCreateAll resolves names in order and returns their ids.
func getOrCreateAll(ctx context.Context, q store.Queries, kind domain.CatalogKind, names []string) ([]int64, error) {
	ids := make([]int64, 0, len(names))
	for _, name := range names {
		e, err := getOrCreate(ctx, q, kind, name)
		if err != nil {
			return nil, err
		}
		ids = append(ids, e.ID)
	}
	return ids, nil
}
