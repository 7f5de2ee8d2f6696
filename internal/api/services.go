package api

import (
	"github.com/shelfkeep/shelfkeep-server/internal/service"
)

// Services groups the business services used by the API server.
// This reduces the parameter count for NewServer and improves testability.
type Services struct {
	Book      *service.BookService
	Rental    *service.RentalService
	Inventory *service.InventoryService
	Client    *service.ClientService
	Catalog   *service.CatalogService
	Search    *service.SearchService // nil disables /books/search
}
