package providers

import (
	"github.com/samber/do/v2"

	"github.com/shelfkeep/shelfkeep-server/internal/domain"
	"github.com/shelfkeep/shelfkeep-server/internal/logger"
	"github.com/shelfkeep/shelfkeep-server/internal/retry"
	"github.com/shelfkeep/shelfkeep-server/internal/service"
)

// ProvideClock provides the wall clock used for rent dates and fines.
func ProvideClock(i do.Injector) (domain.Clock, error) {
	return domain.SystemClock{}, nil
}

// ProvideBookService provides the book service.
func ProvideBookService(i do.Injector) (*service.BookService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	policy := do.MustInvoke[*retry.Policy](i)
	clock := do.MustInvoke[domain.Clock](i)
	searchService := do.MustInvoke[*service.SearchService](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewBookService(storeHandle.Store, policy, clock, searchService, log.Logger), nil
}

// ProvideRentalService provides the rental service.
func ProvideRentalService(i do.Injector) (*service.RentalService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	policy := do.MustInvoke[*retry.Policy](i)
	clock := do.MustInvoke[domain.Clock](i)
	searchService := do.MustInvoke[*service.SearchService](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewRentalService(storeHandle.Store, policy, clock, searchService, log.Logger), nil
}

// ProvideInventoryService provides the copy inventory service.
func ProvideInventoryService(i do.Injector) (*service.InventoryService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	policy := do.MustInvoke[*retry.Policy](i)
	clock := do.MustInvoke[domain.Clock](i)
	searchService := do.MustInvoke[*service.SearchService](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewInventoryService(storeHandle.Store, policy, clock, searchService, log.Logger), nil
}

// ProvideClientService provides the client registry service.
func ProvideClientService(i do.Injector) (*service.ClientService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	policy := do.MustInvoke[*retry.Policy](i)
	clock := do.MustInvoke[domain.Clock](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewClientService(storeHandle.Store, policy, clock, log.Logger), nil
}

// ProvideCatalogService provides the reference catalog service.
func ProvideCatalogService(i do.Injector) (*service.CatalogService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	policy := do.MustInvoke[*retry.Policy](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewCatalogService(storeHandle.Store, policy, log.Logger), nil
}
