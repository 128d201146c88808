package apihttp

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"marlin/internal/order"
	"marlin/internal/pkg/symbol"
	"marlin/internal/portfolio"
)

type handlers struct {
	cfg ServerConfig
}

type signalRequest struct {
	Symbol     string  `json:"symbol" binding:"required"`
	Evaluation float64 `json:"evaluation"`
}

type orderView struct {
	ID        string  `json:"id"`
	Type      string  `json:"type"`
	Symbol    string  `json:"symbol"`
	Quantity  float64 `json:"quantity"`
	Price     float64 `json:"price,omitempty"`
	LinkedTo  string  `json:"linked_to,omitempty"`
	CreatedAt string  `json:"created_at,omitempty"`
}

func (h *handlers) handleSignal(c *gin.Context) {
	var req signalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sym := symbol.Normalize(req.Symbol)
	if sym == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid symbol: " + req.Symbol})
		return
	}
	if req.Evaluation < -1 || req.Evaluation > 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "evaluation must be in [-1, 1]"})
		return
	}

	specs, err := h.cfg.Signals.HandleSignal(c.Request.Context(), sym, req.Evaluation)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, portfolio.ErrLockTimeout) {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	views := make([]orderView, 0, len(specs))
	for _, spec := range specs {
		views = append(views, newOrderView(spec))
	}
	c.JSON(http.StatusOK, gin.H{
		"symbol":     sym,
		"evaluation": req.Evaluation,
		"orders":     views,
	})
}

func (h *handlers) handleOrders(c *gin.Context) {
	if h.cfg.Orders == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "order store not enabled"})
		return
	}
	limit := queryLimit(c)
	sym := strings.TrimSpace(c.Query("symbol"))
	if sym != "" {
		sym = symbol.Normalize(sym)
		if sym == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid symbol"})
			return
		}
		orders, err := h.cfg.Orders.ListBySymbol(c.Request.Context(), sym, limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"orders": orders})
		return
	}
	orders, err := h.cfg.Orders.ListRecent(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

func (h *handlers) handleJournal(c *gin.Context) {
	if h.cfg.Journal == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "journal not enabled"})
		return
	}
	sym := strings.TrimSpace(c.Query("symbol"))
	if sym != "" {
		if sym = symbol.Normalize(sym); sym == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid symbol"})
			return
		}
	}
	entries, err := h.cfg.Journal.Recent(c.Request.Context(), sym, queryLimit(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

func (h *handlers) handlePortfolio(c *gin.Context) {
	if h.cfg.Portfolio == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "portfolio not enabled"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"balances": h.cfg.Portfolio.Snapshot()})
}

func (h *handlers) handleSymbols(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"symbols": h.cfg.Symbols})
}

func queryLimit(c *gin.Context) int {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if limit <= 0 {
		limit = 100
	}
	if limit > 500 {
		limit = 500
	}
	return limit
}

func newOrderView(spec *order.Spec) orderView {
	v := orderView{
		ID:       spec.ID,
		Type:     spec.Type.String(),
		Symbol:   spec.Symbol,
		Quantity: spec.Quantity,
		Price:    spec.Price,
	}
	if spec.LinkedTo != nil {
		v.LinkedTo = spec.LinkedTo.ID
	}
	if !spec.CreatedAt.IsZero() {
		v.CreatedAt = spec.CreatedAt.Format(time.RFC3339)
	}
	return v
}
