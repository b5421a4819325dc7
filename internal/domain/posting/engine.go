// Package posting turns movement documents into ledger legs and back.
// The engine owns the transactional choreography; what legs a document
// produces is the document's own business.
package posting

import (
	"context"
	"fmt"

	"millstock/internal/core/apperror"
	"millstock/internal/core/entity"
	"millstock/internal/core/id"
	"millstock/internal/core/tx"
	"millstock/pkg/logger"
)

// LegSet collects the register legs one posting iteration produces.
type LegSet struct {
	Stock []entity.StockLeg
}

// NewLegSet creates an empty leg set.
func NewLegSet() *LegSet {
	return &LegSet{Stock: make([]entity.StockLeg, 0, 2)}
}

// AddStock appends a stock ledger leg.
func (s *LegSet) AddStock(leg entity.StockLeg) {
	s.Stock = append(s.Stock, leg)
}

// Postable is implemented by documents that write register legs.
// entity.Document provides defaults for everything except
// GetDocumentType and GenerateLegs.
type Postable interface {
	GetID() id.ID
	GetDocumentType() string
	GetPostedVersion() int
	IsPosted() bool
	CanPost(ctx context.Context) error
	MarkPosted()
	MarkUnposted()

	// GenerateLegs produces the legs for the next posting iteration.
	GenerateLegs(ctx context.Context) (*LegSet, error)
}

// Ledger is the register surface the engine writes through.
type Ledger interface {
	RecordLegs(ctx context.Context, recorderID id.ID, recorderVersion int, legs []entity.StockLeg) error
	ReverseLegs(ctx context.Context, recorderID id.ID) error
}

// UpdateFunc persists the document's new posted state. It runs inside the
// posting transaction.
type UpdateFunc func(ctx context.Context) error

// Engine posts and unposts documents.
type Engine struct {
	ledger    Ledger
	txManager tx.Manager
}

// NewEngine creates a posting engine.
func NewEngine(ledger Ledger, txManager tx.Manager) *Engine {
	return &Engine{
		ledger:    ledger,
		txManager: txManager,
	}
}

// Post writes the document's legs and marks it posted, atomically.
// Re-posting replaces the legs of earlier iterations.
func (e *Engine) Post(ctx context.Context, doc Postable, update UpdateFunc) error {
	if err := doc.CanPost(ctx); err != nil {
		return err
	}

	return e.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		set, err := doc.GenerateLegs(ctx)
		if err != nil {
			return fmt.Errorf("generate legs: %w", err)
		}

		newVersion := doc.GetPostedVersion() + 1
		if err := e.ledger.RecordLegs(ctx, doc.GetID(), newVersion, set.Stock); err != nil {
			return err
		}

		doc.MarkPosted()
		if err := update(ctx); err != nil {
			return fmt.Errorf("save posted document: %w", err)
		}

		logger.Info(ctx, "document posted",
			"type", doc.GetDocumentType(),
			"id", doc.GetID(),
			"posted_version", newVersion,
			"legs", len(set.Stock),
		)
		return nil
	})
}

// Unpost removes the document's legs and clears the posted flag.
func (e *Engine) Unpost(ctx context.Context, doc Postable, update UpdateFunc) error {
	if !doc.IsPosted() {
		return apperror.NewBusinessRule(
			"MOVEMENT_NOT_POSTED",
			"Document is not posted",
		).WithDetail("id", doc.GetID().String())
	}

	return e.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := e.ledger.ReverseLegs(ctx, doc.GetID()); err != nil {
			return err
		}

		doc.MarkUnposted()
		if err := update(ctx); err != nil {
			return fmt.Errorf("save unposted document: %w", err)
		}

		logger.Info(ctx, "document unposted",
			"type", doc.GetDocumentType(),
			"id", doc.GetID(),
		)
		return nil
	})
}
