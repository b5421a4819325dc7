package handlers

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"millstock/internal/core/apperror"
	"millstock/internal/core/entity"
	"millstock/internal/core/stockkey"
	"millstock/internal/domain/registers/stockledger"
	"millstock/internal/infrastructure/http/v1/dto"
)

// StockReader is the ledger read surface the handler needs. Satisfied by
// the ledger service directly and by the Redis-backed balance cache.
type StockReader interface {
	Balance(ctx context.Context, key stockkey.Key, asOf time.Time) (stockledger.Balance, error)
	BalanceGrid(ctx context.Context, filter stockledger.GridFilter, asOf time.Time) ([]stockledger.GridRow, error)
	ListLegs(ctx context.Context, filter stockledger.LegFilter) ([]entity.StockLeg, error)
}

// StockHandler serves derived balances and the raw leg audit.
type StockHandler struct {
	*BaseHandler
	ledger StockReader
}

// NewStockHandler creates a new stock handler.
func NewStockHandler(base *BaseHandler, ledger StockReader) *StockHandler {
	return &StockHandler{BaseHandler: base, ledger: ledger}
}

// Balance handles GET /stock/balance - one canonical key, closing profile.
func (h *StockHandler) Balance(c *gin.Context) {
	var query dto.BalanceQuery
	if !h.BindQuery(c, &query) {
		return
	}

	key, err := query.Key()
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid packagingKg").WithDetail("packagingKg", query.PackagingKg))
		return
	}

	asOf, err := dto.ParseAsOf(query.AsOf)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid asOf").WithDetail("asOf", query.AsOf))
		return
	}

	balance, err := h.ledger.Balance(c.Request.Context(), key, asOf)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.BalanceResponse{
		Key:      key,
		Balance:  balance,
		Quintals: balance.Quintals(),
		AsOf:     asOf.Format("2006-01-02"),
	})
}

// Balances handles GET /stock/balances - the grouped grid.
func (h *StockHandler) Balances(c *gin.Context) {
	var query dto.GridQuery
	if !h.BindQuery(c, &query) {
		return
	}

	asOf, err := dto.ParseAsOf(query.AsOf)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid asOf").WithDetail("asOf", query.AsOf))
		return
	}

	rows, err := h.ledger.BalanceGrid(c.Request.Context(), query.Filter(), asOf)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, gin.H{
		"items": rows,
		"asOf":  asOf.Format("2006-01-02"),
	})
}

// Movements handles GET /stock/movements - raw legs for auditing how a
// balance came to be.
func (h *StockHandler) Movements(c *gin.Context) {
	var query dto.LegsQuery
	if !h.BindQuery(c, &query) {
		return
	}

	filter, err := query.ToFilter()
	if err != nil {
		h.Error(c, err)
		return
	}

	legs, err := h.ledger.ListLegs(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, gin.H{"items": legs})
}
