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

// CreateClientRequest registers a client. DateOfBirth is dd-MM-yyyy or
// dd/MM/yyyy.
type CreateClientRequest struct {
	Name        string `json:"name" validate:"required,safename,max=30"`
	DateOfBirth string `json:"date_of_birth" validate:"required,dmydate"`
	NIF         int32  `json:"nif" validate:"required,nif"`
	Contact     int32  `json:"contact" validate:"required,phone9"`
	Address     string `json:"address" validate:"required,safename,max=200"`
}

// UpdateClientRequest changes a client's contact data. The client is named
// by ID or NIF; nil fields are left unchanged.
type UpdateClientRequest struct {
	ID      int64   `json:"id" validate:"required_without=NIF"`
	NIF     int32   `json:"nif" validate:"omitempty,nif"`
	Contact *int32  `json:"contact,omitempty" validate:"omitempty,phone9"`
	Address *string `json:"address,omitempty" validate:"omitempty,safename,max=200"`
}

// ClientService manages the client registry.
type ClientService struct {
	tx        txRunner
	store     store.Store
	clock     domain.Clock
	validator *validation.Validator
	logger    *slog.Logger
}

// NewClientService creates a new client service.
func NewClientService(st store.Store, policy *retry.Policy, clock domain.Clock, logger *slog.Logger) *ClientService {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	return &ClientService{
		tx:        newTxRunner(st, policy),
		store:     st,
		clock:     clock,
		validator: validation.New(),
		logger:    logger,
	}
}

// CreateClient registers a client with a NIF no other client holds.
func (s *ClientService) CreateClient(ctx context.Context, req CreateClientRequest) (*domain.Client, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	dob, err := domain.ParseDate(req.DateOfBirth)
	if err != nil {
		return nil, domainerrors.InvalidDatef("date of birth %q must be in the dd-MM-yyyy or dd/MM/yyyy format", req.DateOfBirth)
	}
	if !dob.Before(domain.DateOf(s.clock.Now())) {
		return nil, domainerrors.ValidationWithDetails("validation failed",
			map[string]string{"date_of_birth": "must be in the past"})
	}

	c := &domain.Client{
		Name:        normalize.Name(req.Name),
		DateOfBirth: dob,
		NIF:         req.NIF,
		Contact:     req.Contact,
		Address:     normalize.Name(req.Address),
	}

	err = s.tx.inTx(ctx, func(q store.Queries) error {
		if _, err := q.GetClientByNIF(ctx, req.NIF); err == nil {
			return domainerrors.AlreadyExistsf("a client with the NIF %d already exists", req.NIF)
		} else if !isNotFound(err) {
			return storeErr(err, "client")
		}
		if err := q.CreateClient(ctx, c); err != nil {
			if isAlreadyExists(err) {
				return domainerrors.AlreadyExistsf("a client with the NIF %d already exists", req.NIF)
			}
			return storeErr(err, "client")
		}
		return nil
	})
	if err != nil {
		return nil, logRejection(s.logger, "create client", err, "nif", req.NIF)
	}

	s.logger.Info("client created", "client_id", c.ID, "nif", c.NIF)
	return c, nil
}

// GetClient returns a client by id.
func (s *ClientService) GetClient(ctx context.Context, id int64) (*domain.Client, error) {
	c, err := s.store.GetClient(ctx, id)
	if err != nil {
		return nil, storeErr(err, fmt.Sprintf("client %d", id))
	}
	return c, nil
}

// FindClients returns the clients matching every given filter field. At
// least one field is required; Name matches as a case-insensitive
// substring.
func (s *ClientService) FindClients(ctx context.Context, filter store.ClientFilter) ([]domain.Client, error) {
	filter.Name = normalize.Name(filter.Name)
	if filter.ID == 0 && filter.NIF == 0 && filter.Name == "" {
		return nil, domainerrors.Validation("at least one of id, name or nif is required")
	}
	clients, err := s.store.FindClients(ctx, filter)
	if err != nil {
		return nil, storeErr(err, "clients")
	}
	return clients, nil
}

// ListClients pages through clients by id.
func (s *ClientService) ListClients(ctx context.Context, params store.PaginationParams) (*store.PaginatedResult[domain.Client], error) {
	page, err := s.store.ListClients(ctx, params)
	if err != nil {
		return nil, pageErr(err, "clients")
	}
	return page, nil
}

// UpdateClient changes a client's contact number and/or address.
func (s *ClientService) UpdateClient(ctx context.Context, req UpdateClientRequest) (*domain.Client, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	if req.Contact == nil && req.Address == nil {
		return nil, domainerrors.Validation("nothing to update: contact or address is required")
	}

	var updated *domain.Client
	err := s.tx.inTx(ctx, func(q store.Queries) error {
		c, err := lockClient(ctx, q, domain.ClientRef{ID: req.ID, NIF: req.NIF})
		if err != nil {
			return err
		}
		if c == nil {
			return clientNotFound(req.ID, req.NIF)
		}

		if req.Contact != nil {
			c.Contact = *req.Contact
		}
		if req.Address != nil {
			c.Address = normalize.Name(*req.Address)
		}
		if err := q.UpdateClient(ctx, c); err != nil {
			return storeErr(err, fmt.Sprintf("client %d", c.ID))
		}
		updated = c
		return nil
	})
	if err != nil {
		return nil, logRejection(s.logger, "update client", err, "client_id", req.ID, "nif", req.NIF)
	}

	s.logger.Info("client updated", "client_id", updated.ID)
	return updated, nil
}

// DeleteClient removes a client that has never rented a book.
func (s *ClientService) DeleteClient(ctx context.Context, id int64) error {
	err := s.tx.inTx(ctx, func(q store.Queries) error {
		c, err := q.LockClient(ctx, id)
		if err != nil {
			return storeErr(err, fmt.Sprintf("client %d", id))
		}
		usage, err := q.ClientUsage(ctx, id)
		if err != nil {
			return storeErr(err, "client")
		}
		if err := domain.DecideDeleteClient(*c, usage); err != nil {
			return err
		}
		return storeErr(q.DeleteClient(ctx, id), fmt.Sprintf("client %d", id))
	})
	if err != nil {
		return logRejection(s.logger, "delete client", err, "client_id", id)
	}

	s.logger.Info("client deleted", "client_id", id)
	return nil
}

// ListClientRents pages through a client's rents, optionally only the
// open ones.
func (s *ClientService) ListClientRents(ctx context.Context, clientID int64, openOnly bool, params store.PaginationParams) (*store.PaginatedResult[domain.Rent], error) {
	if _, err := s.store.GetClient(ctx, clientID); err != nil {
		return nil, storeErr(err, fmt.Sprintf("client %d", clientID))
	}
	page, err := s.store.ListRents(ctx, domain.RentFilter{ClientID: clientID, OpenOnly: openOnly}, params)
	if err != nil {
		return nil, pageErr(err, "rents")
	}
	return page, nil
}

func clientNotFound(id int64, nif int32) error {
	if id != 0 {
		return domainerrors.NotFoundf("client %d not found", id)
	}
	return domainerrors.NotFoundf("client with NIF %d not found", nif)
}
