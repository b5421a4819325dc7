package handlers

import (
	"millstock/internal/domain/catalogs/location"
	"millstock/internal/infrastructure/http/v1/dto"
)

// LocationHTTPHandler is the catalog handler instantiated for locations.
type LocationHTTPHandler = CatalogHandler[
	*location.Location,
	dto.CreateLocationRequest,
	dto.UpdateLocationRequest,
]

// NewLocationHandler wires the generic catalog handler to the location
// service.
func NewLocationHandler(
	base *BaseHandler,
	service *location.Service,
) *LocationHTTPHandler {

	config := CatalogHandlerConfig[
		*location.Location,
		dto.CreateLocationRequest,
		dto.UpdateLocationRequest,
	]{
		Service:    service.CatalogService,
		EntityName: "location",

		MapCreateDTO: func(req dto.CreateLocationRequest) *location.Location {
			return req.ToEntity()
		},

		MapUpdateDTO: func(req dto.UpdateLocationRequest, existing *location.Location) *location.Location {
			req.ApplyTo(existing)
			return existing
		},
	}

	return NewCatalogHandler(base, config)
}
