package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"dairy-market-lab/internal/advisor"
	"dairy-market-lab/internal/domain"
	"dairy-market-lab/internal/market"
	"dairy-market-lab/internal/recommend"
	"dairy-market-lab/internal/summary"
)

// Not-found messages kept from the dashboard contract.
const (
	msgNoVPIData       = "No data found for the given product_id and data_source_id."
	msgNoMarketChanges = "No market changes found for the given user."
	msgNoSummary       = "No recommended content found for the given user."
	msgNoMarketData    = "No market data found for the given product_id and data_source_id."
)

// Handler serves the HTTP endpoints.
type Handler struct {
	market      *market.Service
	negotiation *market.NegotiationService
	summary     *summary.Service
	logger      logrus.FieldLogger
	backends    map[string]string
	startedAt   time.Time
}

// NewHandler creates a Handler from the router config.
func NewHandler(cfg *Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Handler{
		market:      cfg.Market,
		negotiation: cfg.Negotiation,
		summary:     cfg.Summary,
		logger:      logger,
		backends:    cfg.Backends,
		startedAt:   time.Now(),
	}
}

// Root answers the dashboard liveness call.
func (h *Handler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Hello, World!"})
}

// Health is the load balancer probe.
func (h *Handler) Health(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

// StatusResponse is the JSON response for /status.
type StatusResponse struct {
	Status          string            `json:"status"`
	Uptime          string            `json:"uptime"`
	StartedAt       time.Time         `json:"started_at"`
	NegotiationMode string            `json:"negotiation_mode,omitempty"`
	Counterpart     string            `json:"counterpart,omitempty"`
	SummaryEnabled  bool              `json:"summary_enabled"`
	Backends        map[string]string `json:"backends,omitempty"`
}

// Status reports process and wiring state.
func (h *Handler) Status(c *gin.Context) {
	resp := StatusResponse{
		Status:         "running",
		Uptime:         time.Since(h.startedAt).Truncate(time.Second).String(),
		StartedAt:      h.startedAt,
		SummaryEnabled: h.summary != nil,
		Backends:       h.backends,
	}
	if h.negotiation != nil {
		resp.NegotiationMode = string(h.negotiation.Mode())
		resp.Counterpart = h.negotiation.Counterpart()
	}
	c.JSON(http.StatusOK, resp)
}

// GetVPIInformation returns recent quotations for a product and data source.
func (h *Handler) GetVPIInformation(c *gin.Context) {
	productID, err := queryInt64(c, "product_id")
	if err != nil {
		h.writeError(c, err, "")
		return
	}
	dataSourceID, err := queryInt64(c, "data_source_id")
	if err != nil {
		h.writeError(c, err, "")
		return
	}
	limit, err := optionalInt(c, "limit", market.DefaultQuotationLimit)
	if err != nil {
		h.writeError(c, err, "")
		return
	}

	quotes, err := h.market.VPIInformation(c.Request.Context(), productID, dataSourceID, limit)
	if err != nil {
		h.writeError(c, err, msgNoVPIData)
		return
	}

	out := make([]quotationView, 0, len(quotes))
	for _, q := range quotes {
		out = append(out, newQuotationView(q))
	}
	c.JSON(http.StatusOK, out)
}

// GetMarketChanges returns the latest change of every series the user follows.
func (h *Handler) GetMarketChanges(c *gin.Context) {
	userID, err := queryInt64(c, "user_id")
	if err != nil {
		h.writeError(c, err, "")
		return
	}

	changes, err := h.market.MarketChanges(c.Request.Context(), userID)
	if err != nil {
		h.writeError(c, err, msgNoMarketChanges)
		return
	}

	out := make([]marketChangeView, 0, len(changes))
	for _, ch := range changes {
		out = append(out, newMarketChangeView(ch))
	}
	c.JSON(http.StatusOK, out)
}

// GenerateSummary returns the HTML digest of recommended reports and news.
func (h *Handler) GenerateSummary(c *gin.Context) {
	if h.summary == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, errorResponse{Error: "summary service is not configured"})
		return
	}

	var q recommend.Query
	var err error
	if q.UserID, err = queryInt64(c, "user_id"); err != nil {
		h.writeError(c, err, "")
		return
	}
	if q.Number, err = queryInt(c, "number"); err != nil {
		h.writeError(c, err, "")
		return
	}
	if q.DaysThreshold, err = queryInt(c, "days_threshold"); err != nil {
		h.writeError(c, err, "")
		return
	}

	html, err := h.summary.Generate(c.Request.Context(), q)
	if err != nil {
		h.writeError(c, err, msgNoSummary)
		return
	}
	c.JSON(http.StatusOK, gin.H{"html_summary": html})
}

// SuggestPrice prices explicit aggregates and reference prices.
func (h *Handler) SuggestPrice(c *gin.Context) {
	var req suggestPriceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeError(c, bodyError(err), "")
		return
	}
	agg, ref, err := req.toDomain()
	if err != nil {
		h.writeError(c, err, "")
		return
	}

	rec, err := h.market.Suggest(c.Request.Context(), agg, ref)
	if err != nil {
		h.writeError(c, err, "")
		return
	}
	c.JSON(http.StatusOK, newSuggestionView(rec))
}

// SuggestPriceForProduct prices a product from warehouse data.
func (h *Handler) SuggestPriceForProduct(c *gin.Context) {
	productID, err := queryInt64(c, "product_id")
	if err != nil {
		h.writeError(c, err, "")
		return
	}
	dataSourceID, err := queryInt64(c, "data_source_id")
	if err != nil {
		h.writeError(c, err, "")
		return
	}

	rec, err := h.market.SuggestForProduct(c.Request.Context(), productID, dataSourceID)
	if err != nil {
		h.writeError(c, err, msgNoMarketData)
		return
	}
	c.JSON(http.StatusOK, newSuggestionView(rec))
}

// GetBotOffer runs a full negotiation against the configured counterpart.
// min_price defaults to price.
func (h *Handler) GetBotOffer(c *gin.Context) {
	price, err := queryFloat(c, "price")
	if err != nil {
		h.writeError(c, err, "")
		return
	}
	minPrice, err := optionalFloat(c, "min_price", price)
	if err != nil {
		h.writeError(c, err, "")
		return
	}
	productID, err := optionalInt64(c, "product_id")
	if err != nil {
		h.writeError(c, err, "")
		return
	}

	rec, err := h.negotiation.Negotiate(c.Request.Context(), market.NegotiationRequest{
		SuggestedPrice: price,
		MinPrice:       minPrice,
		Strategy:       c.Query("strategy"),
		ProductID:      productID,
	})
	if err != nil {
		h.writeError(c, err, msgNoMarketData)
		return
	}
	c.JSON(http.StatusOK, newNegotiationView(rec))
}

// PostBotOffer performs one concession against a single counter-offer.
func (h *Handler) PostBotOffer(c *gin.Context) {
	var req botOfferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeError(c, bodyError(err), "")
		return
	}
	if req.CounterOffer == nil {
		h.writeError(c, domain.MissingField("counter_offer"), "")
		return
	}
	minPrice := req.SuggestedPrice
	if req.MinPrice != nil {
		minPrice = *req.MinPrice
	}

	res, err := h.negotiation.Offer(c.Request.Context(), market.OfferRequest{
		SuggestedPrice: req.SuggestedPrice,
		MinPrice:       minPrice,
		Strategy:       req.Strategy,
		ProductID:      req.ProductID,
		CounterOffer:   *req.CounterOffer,
	})
	if err != nil {
		h.writeError(c, err, msgNoMarketData)
		return
	}
	c.JSON(http.StatusOK, newOfferView(res))
}

// TradeSignal returns the Buy/Sell/Hold recommendation for a market state.
func (h *Handler) TradeSignal(c *gin.Context) {
	var req tradeSignalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeError(c, bodyError(err), "")
		return
	}
	switch {
	case req.CurrentPrice == nil:
		h.writeError(c, domain.MissingField("current_price"), "")
		return
	case req.ForecastPrice == nil:
		h.writeError(c, domain.MissingField("forecast_price"), "")
		return
	case req.NewsSentiment == nil:
		h.writeError(c, domain.MissingField("news_sentiment"), "")
		return
	}

	in := advisor.Input{
		CurrentPrice:         *req.CurrentPrice,
		ForecastPrice:        *req.ForecastPrice,
		NewsSentiment:        *req.NewsSentiment,
		Report:               domain.MarketReport{Supply: req.MarketReports.Supply, Demand: req.MarketReports.Demand},
		PriceChanges:         req.PriceChanges,
		HistoricalPrices:     req.HistoricalPrices,
		InitialPrice:         req.InitialPrice,
		InitialCounterOffer:  req.InitialCounterOffer,
		FinalSettlePrice:     req.FinalSettlePrice,
		AvgBidSteps:          req.AvgBidSteps,
		AvgCounterOfferSteps: req.AvgCounterOfferSteps,
	}
	if err := in.Validate(); err != nil {
		h.writeError(c, err, "")
		return
	}

	d := advisor.Decide(in)
	resp := tradeSignalView{Rule: d.Rule}
	if d.Action != domain.ActionNone {
		action := string(d.Action)
		resp.Action = &action
	}
	c.JSON(http.StatusOK, resp)
}

// bodyError turns a JSON decoding failure into an input error.
func bodyError(err error) error {
	return &domain.InvalidInputError{Field: "body", Reason: err.Error(), Err: err}
}

func queryInt64(c *gin.Context, name string) (int64, error) {
	raw, ok := c.GetQuery(name)
	if !ok || raw == "" {
		return 0, domain.MissingField(name)
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, &domain.InvalidInputError{Field: name, Reason: "must be an integer", Err: errors.Unwrap(err)}
	}
	return v, nil
}

func optionalInt64(c *gin.Context, name string) (int64, error) {
	if raw, ok := c.GetQuery(name); !ok || raw == "" {
		return 0, nil
	}
	return queryInt64(c, name)
}

func queryInt(c *gin.Context, name string) (int, error) {
	v, err := queryInt64(c, name)
	return int(v), err
}

func optionalInt(c *gin.Context, name string, def int) (int, error) {
	if raw, ok := c.GetQuery(name); !ok || raw == "" {
		return def, nil
	}
	return queryInt(c, name)
}

func queryFloat(c *gin.Context, name string) (float64, error) {
	raw, ok := c.GetQuery(name)
	if !ok || raw == "" {
		return 0, domain.MissingField(name)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, &domain.InvalidInputError{Field: name, Reason: "must be a number", Err: errors.Unwrap(err)}
	}
	return v, nil
}

func optionalFloat(c *gin.Context, name string, def float64) (float64, error) {
	if raw, ok := c.GetQuery(name); !ok || raw == "" {
		return def, nil
	}
	return queryFloat(c, name)
}
