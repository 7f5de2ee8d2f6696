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

// AddCopyRequest describes a new physical copy. An empty condition means
// "As new".
type AddCopyRequest struct {
	Condition string `json:"condition,omitempty"`
	Notes     string `json:"notes,omitempty" validate:"max=500"`
}

// CopyUpdate changes a copy's grade, its notes, or both. A nil field is left
// as it is.
type CopyUpdate struct {
	Condition *string `json:"condition,omitempty"`
	Notes     *string `json:"notes,omitempty" validate:"omitempty,max=500"`
}

// CopySearch selects copies across books. Empty fields are ignored, but at
// least one must be set. Title matches the whole title in any case.
type CopySearch struct {
	ID           int64  `json:"id,omitempty"`
	SerialNumber int64  `json:"serial_number,omitempty"`
	Title        string `json:"title,omitempty"`
	Condition    string `json:"condition,omitempty"`
}

// InventoryService manages copies and book removal. Every operation locks
// the book's stock row before touching copies or counters.
type InventoryService struct {
	tx        txRunner
	store     store.Store
	clock     domain.Clock
	indexer   BookIndexer
	validator *validation.Validator
	logger    *slog.Logger
}

// NewInventoryService creates a new inventory service.
func NewInventoryService(st store.Store, policy *retry.Policy, clock domain.Clock, indexer BookIndexer, logger *slog.Logger) *InventoryService {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	if indexer == nil {
		indexer = noopIndexer{}
	}
	return &InventoryService{
		tx:        newTxRunner(st, policy),
		store:     st,
		clock:     clock,
		indexer:   indexer,
		validator: validation.New(),
		logger:    logger,
	}
}

// AddCopy adds a free copy to a book: total and available both grow by one.
func (s *InventoryService) AddCopy(ctx context.Context, serial int64, req AddCopyRequest) (*domain.BookCopy, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	condition := domain.DefaultCondition
	if normalize.Name(req.Condition) != "" {
		c, ok := domain.ParseCondition(req.Condition)
		if !ok {
			return nil, domainerrors.InvalidConditionf("unknown book condition %q (expected As new, Good, Used or Bad)", req.Condition)
		}
		condition = c
	}

	var created *domain.BookCopy
	err := s.tx.inTx(ctx, func(q store.Queries) error {
		stock, err := q.LockStock(ctx, serial)
		if err != nil {
			return storeErr(err, fmt.Sprintf("book %d", serial))
		}

		c := &domain.BookCopy{SerialNumber: serial, Condition: condition, Notes: normalize.Name(req.Notes)}
		if err := q.CreateCopy(ctx, c); err != nil {
			return storeErr(err, "copy")
		}

		next, err := stock.AddCopy()
		if err != nil {
			return domainerrors.Wrap(err, domainerrors.CodeInternal, "stock invariant")
		}
		if err := q.UpdateStock(ctx, next); err != nil {
			return storeErr(err, "book stock")
		}

		if err := s.appendMovement(ctx, q, serial, c.ID, domain.MovementCopyAdded, c.Condition); err != nil {
			return err
		}
		created = c
		return nil
	})
	if err != nil {
		return nil, logRejection(s.logger, "add copy", err, "serial_number", serial)
	}

	s.logger.Info("copy added", "serial_number", serial, "copy_id", created.ID, "condition", created.Condition.Name())
	s.indexer.IndexBook(ctx, serial)
	return created, nil
}

// RemoveCopy withdraws a copy that is on the shelf and has never been lent:
// total and available both drop by one.
func (s *InventoryService) RemoveCopy(ctx context.Context, copyID int64) error {
	var serial int64
	err := s.tx.inTx(ctx, func(q store.Queries) error {
		c, stock, err := lockCopy(ctx, q, copyID)
		if err != nil {
			return err
		}
		serial = c.SerialNumber

		usage, err := q.CopyUsage(ctx, c.ID)
		if err != nil {
			return storeErr(err, "copy")
		}
		if err := domain.DecideRemoveCopy(*c, usage); err != nil {
			return err
		}

		next, err := stock.RemoveCopy()
		if err != nil {
			return domainerrors.Wrap(err, domainerrors.CodeInternal, "stock invariant")
		}
		if err := q.UpdateStock(ctx, next); err != nil {
			return storeErr(err, "book stock")
		}
		if err := q.DeleteCopy(ctx, c.ID); err != nil {
			return storeErr(err, fmt.Sprintf("copy %d", c.ID))
		}

		return s.appendMovement(ctx, q, c.SerialNumber, c.ID, domain.MovementCopyRemoved, c.Condition)
	})
	if err != nil {
		return logRejection(s.logger, "remove copy", err, "copy_id", copyID)
	}

	s.logger.Info("copy removed", "serial_number", serial, "copy_id", copyID)
	s.indexer.IndexBook(ctx, serial)
	return nil
}

// UpdateCopy regrades a copy and/or replaces its notes. A new grade must be
// strictly worse than the current one.
func (s *InventoryService) UpdateCopy(ctx context.Context, copyID int64, upd CopyUpdate) (*domain.BookCopy, error) {
	if upd.Condition == nil && upd.Notes == nil {
		return nil, domainerrors.Validation("nothing to update: condition or notes is required")
	}
	if err := s.validator.Validate(upd); err != nil {
		return nil, err
	}

	var updated *domain.BookCopy
	err := s.tx.inTx(ctx, func(q store.Queries) error {
		c, _, err := lockCopy(ctx, q, copyID)
		if err != nil {
			return err
		}

		if upd.Condition != nil {
			next, err := domain.DecideConditionChange(c.Condition, *upd.Condition)
			if err != nil {
				return err
			}
			c.Condition = next
		}
		if upd.Notes != nil {
			c.Notes = normalize.Name(*upd.Notes)
		}

		if err := q.UpdateCopy(ctx, c); err != nil {
			return storeErr(err, fmt.Sprintf("copy %d", c.ID))
		}
		updated = c
		return nil
	})
	if err != nil {
		return nil, logRejection(s.logger, "update copy", err, "copy_id", copyID)
	}

	s.logger.Info("copy updated", "copy_id", updated.ID, "condition", updated.Condition.Name())
	return updated, nil
}

// UpdateCopyCondition worsens a copy's grade.
func (s *InventoryService) UpdateCopyCondition(ctx context.Context, copyID int64, condition string) (*domain.BookCopy, error) {
	return s.UpdateCopy(ctx, copyID, CopyUpdate{Condition: &condition})
}

// DeleteBook removes a book with its stock, copies and author and category
// links. Books with copies on loan or any rental history are kept.
func (s *InventoryService) DeleteBook(ctx context.Context, serial int64) error {
	err := s.tx.inTx(ctx, func(q store.Queries) error {
		stock, err := q.LockStock(ctx, serial)
		if err != nil {
			return storeErr(err, fmt.Sprintf("book %d", serial))
		}

		usage, err := q.BookUsage(ctx, serial)
		if err != nil {
			return storeErr(err, "book")
		}
		if err := domain.DecideDeleteBook(stock, usage); err != nil {
			return err
		}

		if err := q.DeleteBook(ctx, serial); err != nil {
			return storeErr(err, fmt.Sprintf("book %d", serial))
		}
		return nil
	})
	if err != nil {
		return logRejection(s.logger, "delete book", err, "serial_number", serial)
	}

	s.logger.Info("book deleted", "serial_number", serial)
	s.indexer.RemoveBook(ctx, serial)
	return nil
}

// ListCopies returns the copies of a book with their loan status.
func (s *InventoryService) ListCopies(ctx context.Context, serial int64) ([]domain.CopyState, error) {
	if _, err := s.store.GetBook(ctx, serial); err != nil {
		return nil, storeErr(err, fmt.Sprintf("book %d", serial))
	}
	copies, err := s.store.ListCopies(ctx, serial)
	if err != nil {
		return nil, storeErr(err, "copies")
	}
	return copies, nil
}

// FindCopies pages through the copies of every book matching search. A
// search that matches nothing is reported as not found.
func (s *InventoryService) FindCopies(ctx context.Context, search CopySearch, params store.PaginationParams) (*store.PaginatedResult[domain.CopyListing], error) {
	filter := store.CopyFilter{
		ID:           search.ID,
		SerialNumber: search.SerialNumber,
		Title:        normalize.Name(search.Title),
	}
	if normalize.Name(search.Condition) != "" {
		c, ok := domain.ParseCondition(search.Condition)
		if !ok {
			return nil, domainerrors.InvalidConditionf("unknown book condition %q (expected As new, Good, Used or Bad)", search.Condition)
		}
		filter.Condition = c
	}
	if filter.IsZero() {
		return nil, domainerrors.Validation("at least one of id, serial_number, title or condition is required")
	}

	page, err := s.store.FindCopies(ctx, filter, params)
	if err != nil {
		return nil, pageErr(err, "copies")
	}
	if len(page.Items) == 0 && params.Cursor == "" {
		return nil, domainerrors.NotFound("no book copies match the given filters")
	}
	return page, nil
}

// ListAllCopies pages through the copies of every book by id.
func (s *InventoryService) ListAllCopies(ctx context.Context, params store.PaginationParams) (*store.PaginatedResult[domain.CopyListing], error) {
	page, err := s.store.FindCopies(ctx, store.CopyFilter{}, params)
	if err != nil {
		return nil, pageErr(err, "copies")
	}
	return page, nil
}

// ListStockMovements pages through a book's stock ledger in write order.
// The ledger outlives the book, so a deleted book still has history.
func (s *InventoryService) ListStockMovements(ctx context.Context, serial int64, params store.PaginationParams) (*store.PaginatedResult[domain.StockMovement], error) {
	page, err := s.store.ListMovements(ctx, serial, params)
	if err != nil {
		return nil, pageErr(err, "stock movements")
	}
	return page, nil
}

func (s *InventoryService) appendMovement(ctx context.Context, q store.Queries, serial, copyID int64, kind domain.MovementKind, condition domain.Condition) error {
	err := q.AppendMovement(ctx, &domain.StockMovement{
		SerialNumber: serial,
		CopyID:       copyID,
		Kind:         kind,
		OccurredAt:   s.clock.Now().UTC(),
		Details:      map[string]any{"condition": condition.Name()},
	})
	return storeErr(err, "stock movement")
}

// lockCopy finds a copy, locks its book's stock row and re-reads the copy
// under the lock.
func lockCopy(ctx context.Context, q store.Queries, copyID int64) (*domain.BookCopy, domain.BookStock, error) {
	what := fmt.Sprintf("copy %d", copyID)

	c, err := q.GetCopy(ctx, copyID)
	if err != nil {
		return nil, domain.BookStock{}, storeErr(err, what)
	}
	stock, err := q.LockStock(ctx, c.SerialNumber)
	if err != nil {
		return nil, domain.BookStock{}, storeErr(err, "book stock")
	}
	if c, err = q.GetCopy(ctx, copyID); err != nil {
		return nil, domain.BookStock{}, storeErr(err, what)
	}
	return c, stock, nil
}
