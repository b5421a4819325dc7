package handlers

import (
	"millstock/internal/domain/catalogs/packaging"
	"millstock/internal/infrastructure/http/v1/dto"
)

// PackagingHTTPHandler is the catalog handler instantiated for packagings.
type PackagingHTTPHandler = CatalogHandler[
	*packaging.Packaging,
	dto.CreatePackagingRequest,
	dto.UpdatePackagingRequest,
]

// NewPackagingHandler wires the generic catalog handler to the packaging
// service.
func NewPackagingHandler(
	base *BaseHandler,
	service *packaging.Service,
) *PackagingHTTPHandler {

	config := CatalogHandlerConfig[
		*packaging.Packaging,
		dto.CreatePackagingRequest,
		dto.UpdatePackagingRequest,
	]{
		Service:    service.CatalogService,
		EntityName: "packaging",

		MapCreateDTO: func(req dto.CreatePackagingRequest) *packaging.Packaging {
			return req.ToEntity()
		},

		MapUpdateDTO: func(req dto.UpdatePackagingRequest, existing *packaging.Packaging) *packaging.Packaging {
			req.ApplyTo(existing)
			return existing
		},
	}

	return NewCatalogHandler(base, config)
}
