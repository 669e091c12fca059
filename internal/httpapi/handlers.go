package httpapi

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/skalibog/quantladder/pkg/models"
)

const (
	defaultSymbol        = "BTCUSDT"
	defaultAccountEquity = 10000
)

type analyzeRequest struct {
	Symbol        string   `json:"symbol"`
	AccountEquity *float64 `json:"accountEquity" binding:"omitempty,gt=0"`
}

type liquidationQuery struct {
	Symbol    string  `form:"symbol"`
	Timeframe string  `form:"timeframe" binding:"omitempty,oneof=4h 1d 1w"`
	RangePct  float64 `form:"rangePct" binding:"omitempty,gt=0,lt=1"`
	StepPct   float64 `form:"stepPct" binding:"omitempty,gt=0,lt=1"`
}

func (s *Server) handleMarketData(c *gin.Context) {
	market, err := s.service.MarketData(c.Request.Context(), c.DefaultQuery("symbol", defaultSymbol))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, market)
}

func (s *Server) handleAnalyze(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		s.fail(c, err)
		return
	}
	if req.Symbol == "" {
		req.Symbol = defaultSymbol
	}
	equity := float64(defaultAccountEquity)
	if req.AccountEquity != nil {
		equity = *req.AccountEquity
	}

	result, err := s.service.Analyze(c.Request.Context(), req.Symbol, equity)
	if err != nil {
		s.fail(c, err)
		return
	}
	if result.UsedFallback {
		s.metrics.FallbackReports.Inc()
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleLiquidation(c *gin.Context) {
	var query liquidationQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		s.fail(c, err)
		return
	}

	opts := s.service.LiquidationOptions()
	if query.RangePct > 0 {
		opts.RangePct = query.RangePct
	}
	if query.StepPct > 0 {
		opts.StepPct = query.StepPct
	}
	tf := opts.Timeframe
	if query.Timeframe != "" {
		tf = models.Timeframe(query.Timeframe)
	}
	symbol := query.Symbol
	if symbol == "" {
		symbol = defaultSymbol
	}

	ladder, err := s.service.Liquidation(c.Request.Context(), symbol, tf, opts)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ladder)
}

// fail отвечает {"error": ...} со статусом 400
func (s *Server) fail(c *gin.Context, err error) {
	_ = c.Error(err)
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}
