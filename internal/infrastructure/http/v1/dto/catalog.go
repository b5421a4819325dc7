package dto

import (
	"millstock/internal/core/types"
	"millstock/internal/domain/catalogs/hamalirate"
	"millstock/internal/domain/catalogs/location"
	"millstock/internal/domain/catalogs/packaging"
)

// --- Packaging ---

// CreatePackagingRequest registers a bag type.
type CreatePackagingRequest struct {
	Code     string         `json:"code"`
	Name     string         `json:"name" binding:"required"`
	Brand    string         `json:"brand" binding:"required"`
	KgPerBag types.Quantity `json:"kgPerBag" binding:"required"`
}

// ToEntity converts to the domain entity.
func (r *CreatePackagingRequest) ToEntity() *packaging.Packaging {
	return packaging.NewPackaging(r.Code, r.Name, r.Brand, r.KgPerBag)
}

// UpdatePackagingRequest mutates a bag type. The weight is rejected by the
// service once any movement references the packaging.
type UpdatePackagingRequest struct {
	Name     *string         `json:"name"`
	Brand    *string         `json:"brand"`
	KgPerBag *types.Quantity `json:"kgPerBag"`
	Version  int             `json:"version" binding:"required,min=1"`
}

// ApplyTo maps changed fields onto the existing entity.
func (r *UpdatePackagingRequest) ApplyTo(p *packaging.Packaging) {
	if r.Name != nil {
		p.Name = *r.Name
	}
	if r.Brand != nil {
		p.Brand = *r.Brand
	}
	if r.KgPerBag != nil {
		p.KgPerBag = *r.KgPerBag
	}
	p.Version = r.Version
}

// --- Location ---

// CreateLocationRequest registers a storage location.
type CreateLocationRequest struct {
	Code        string        `json:"code"`
	Name        string        `json:"name" binding:"required"`
	Kind        location.Kind `json:"kind" binding:"required"`
	Description *string       `json:"description"`
}

// ToEntity converts to the domain entity.
func (r *CreateLocationRequest) ToEntity() *location.Location {
	l := location.NewLocation(r.Code, r.Name, r.Kind)
	l.Description = r.Description
	return l
}

// UpdateLocationRequest mutates a location.
type UpdateLocationRequest struct {
	Name        *string        `json:"name"`
	Kind        *location.Kind `json:"kind"`
	IsActive    *bool          `json:"isActive"`
	Description *string        `json:"description"`
	Version     int            `json:"version" binding:"required,min=1"`
}

// ApplyTo maps changed fields onto the existing entity.
func (r *UpdateLocationRequest) ApplyTo(l *location.Location) {
	if r.Name != nil {
		l.Name = *r.Name
	}
	if r.Kind != nil {
		l.Kind = *r.Kind
	}
	if r.IsActive != nil {
		l.IsActive = *r.IsActive
	}
	if r.Description != nil {
		l.Description = r.Description
	}
	l.Version = r.Version
}

// --- Hamali rate ---

// CreateHamaliRateRequest registers one tariff band. Components left out
// default to zero with the per_bag method.
type CreateHamaliRateRequest struct {
	Code     string `json:"code"`
	Name     string `json:"name" binding:"required"`
	WorkType string `json:"workType" binding:"required"`
	RateType string `json:"rateType" binding:"required"`

	BaseRate       types.Money       `json:"baseRate"`
	BaseRateMethod hamalirate.Method `json:"baseRateMethod"`

	Sute       types.Quantity    `json:"sute"`
	SuteMethod hamalirate.Method `json:"suteMethod"`

	Hamali       types.Money       `json:"hamali"`
	HamaliMethod hamalirate.Method `json:"hamaliMethod"`

	Brokerage       types.Money       `json:"brokerage"`
	BrokerageMethod hamalirate.Method `json:"brokerageMethod"`

	LoadingFee       types.Money       `json:"loadingFee"`
	LoadingFeeMethod hamalirate.Method `json:"loadingFeeMethod"`

	EGB types.Money `json:"egb"`

	MinWeightKg types.Quantity `json:"minWeightKg"`
	MaxWeightKg types.Quantity `json:"maxWeightKg"`
}

// ToEntity converts to the domain entity.
func (r *CreateHamaliRateRequest) ToEntity() *hamalirate.HamaliRate {
	rate := hamalirate.NewHamaliRate(r.Code, r.Name, r.WorkType, r.RateType)

	rate.BaseRate = r.BaseRate
	if r.BaseRateMethod != "" {
		rate.BaseRateMethod = r.BaseRateMethod
	}
	rate.Sute = r.Sute
	if r.SuteMethod != "" {
		rate.SuteMethod = r.SuteMethod
	}
	rate.Hamali = r.Hamali
	if r.HamaliMethod != "" {
		rate.HamaliMethod = r.HamaliMethod
	}
	rate.Brokerage = r.Brokerage
	if r.BrokerageMethod != "" {
		rate.BrokerageMethod = r.BrokerageMethod
	}
	rate.LoadingFee = r.LoadingFee
	if r.LoadingFeeMethod != "" {
		rate.LoadingFeeMethod = r.LoadingFeeMethod
	}
	rate.EGB = r.EGB
	rate.MinWeightKg = r.MinWeightKg
	rate.MaxWeightKg = r.MaxWeightKg

	return rate
}
