package http

import (
	"fmt"
	"math/big"

	gethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/hxuan190/split-router/internal/aggregator"
	"github.com/hxuan190/split-router/internal/common"
	"github.com/hxuan190/split-router/internal/config"
	"github.com/hxuan190/split-router/internal/domain"
	"github.com/hxuan190/split-router/internal/http/httputil"
	"github.com/hxuan190/split-router/internal/services/router"
)

type QuoteHandler struct {
	aggregatorSvc *aggregator.Service
}

func NewQuoteHandler(aggregatorSvc *aggregator.Service) *QuoteHandler {
	return &QuoteHandler{aggregatorSvc: aggregatorSvc}
}

func (h *QuoteHandler) SetRoutes(pub *gin.RouterGroup, private *gin.RouterGroup, admin *gin.RouterGroup) {
	pub.GET("", h.getQuote)
}

func (h *QuoteHandler) Root() string {
	return "/quote"
}

// QuoteRequest holds the query parameters of a quote. Unset routing
// parameters fall back to the service defaults.
type QuoteRequest struct {
	ChainID  string `form:"chainId" example:"1"`
	TokenIn  string `form:"tokenIn" binding:"required" example:"WETH"`
	TokenOut string `form:"tokenOut" binding:"required" example:"USDC"`
	// Human readable amount of the specified side, e.g. "1.5".
	Amount    string `form:"amount" binding:"required" example:"1.5"`
	TradeType string `form:"tradeType" enums:"EXACT_INPUT,EXACT_OUTPUT" example:"EXACT_INPUT"`

	Protocols           string `form:"protocols" example:"v2,v3"`
	MinSplits           *int   `form:"minSplits"`
	MaxSplits           *int   `form:"maxSplits"`
	DistributionPercent *int   `form:"distributionPercent"`
	MaxSwapsPerPath     *int   `form:"maxSwapsPerPath"`
	ForceCrossProtocol  *bool  `form:"forceCrossProtocol"`
	ForceMixedRoutes    *bool  `form:"forceMixedRoutes"`
	BlockNumber         uint64 `form:"blockNumber"`
	GasToken            string `form:"gasToken"`
	PortionBips         uint32 `form:"portionBips"`
	PortionRecipient    string `form:"portionRecipient"`
}

type TokenInfo struct {
	Address  string `json:"address" example:"0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"`
	Symbol   string `json:"symbol" example:"WETH"`
	Decimals uint8  `json:"decimals" example:"18"`
	Native   bool   `json:"native,omitempty"`
}

// RouteInfo is one leg of a split plan.
type RouteInfo struct {
	Protocol string   `json:"protocol" example:"V3"`
	Percent  int      `json:"percent" example:"60"`
	Amount   string   `json:"amount" example:"600000000000000000"`
	Quote    string   `json:"quote" example:"1199000000"`
	Path     []string `json:"path"`
	Pools    []string `json:"pools"`
}

type QuoteResponse struct {
	ID         string    `json:"id"`
	SnapshotID string    `json:"snapshotId,omitempty"`
	RouteFound bool      `json:"routeFound"`
	ChainID    uint64    `json:"chainId" example:"1"`
	TradeType  string    `json:"tradeType" example:"EXACT_INPUT"`
	TokenIn    TokenInfo `json:"tokenIn"`
	TokenOut   TokenInfo `json:"tokenOut"`

	Amount        string `json:"amount" example:"1000000000000000000"`
	AmountDecimal string `json:"amountDecimal" example:"1"`
	BlockNumber   uint64 `json:"blockNumber" example:"19000000"`

	Quote                   string `json:"quote,omitempty"`
	QuoteDecimal            string `json:"quoteDecimal,omitempty"`
	QuoteGasAdjusted        string `json:"quoteGasAdjusted,omitempty"`
	QuoteGasAdjustedDecimal string `json:"quoteGasAdjustedDecimal,omitempty"`
	GasUseEstimate          string `json:"gasUseEstimate,omitempty"`
	GasUseEstimateQuote     string `json:"gasUseEstimateQuote,omitempty"`
	GasUseEstimateUSD       string `json:"gasUseEstimateUSD,omitempty"`
	GasUseEstimateGasToken  string `json:"gasUseEstimateGasToken,omitempty"`
	L1GasCostQuote          string `json:"l1GasCostQuote,omitempty"`

	PortionAmount              string `json:"portionAmount,omitempty"`
	PortionAmountDecimal       string `json:"portionAmountDecimal,omitempty"`
	QuoteGasAndPortionAdjusted string `json:"quoteGasAndPortionAdjusted,omitempty"`

	PriceImpactBps      uint16 `json:"priceImpactBps" example:"25"`
	PriceImpactPercent  string `json:"priceImpactPercent,omitempty" example:"0.25%"`
	PriceImpactSeverity string `json:"priceImpactSeverity,omitempty" enums:"none,low,moderate,high,extreme"`
	PriceImpactWarning  string `json:"priceImpactWarning,omitempty"`

	QuotingIncomplete bool        `json:"quotingIncomplete,omitempty"`
	Routes            []RouteInfo `json:"routes"`
}

func (h *QuoteHandler) parseQuoteRequest(c *gin.Context) (aggregator.QuoteRequest, error) {
	var req QuoteRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		return aggregator.QuoteRequest{}, common.InvalidConfigf("query parameters: %v", err)
	}

	chainID := domain.ChainMainnet
	if req.ChainID != "" {
		id, err := config.ParseChain(req.ChainID)
		if err != nil {
			return aggregator.QuoteRequest{}, err
		}
		chainID = id
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return aggregator.QuoteRequest{}, common.InvalidConfigf("amount %q", req.Amount)
	}

	tradeType := domain.ExactInput
	if req.TradeType != "" {
		if tradeType, err = domain.ParseTradeType(req.TradeType); err != nil {
			return aggregator.QuoteRequest{}, fmt.Errorf("%w: %v", common.ErrInvalidConfig, err)
		}
	}

	cfg := h.aggregatorSvc.Defaults()
	if req.Protocols != "" {
		if cfg.Protocols, err = config.ParseProtocols(req.Protocols); err != nil {
			return aggregator.QuoteRequest{}, err
		}
	}
	setInt(&cfg.MinSplits, req.MinSplits)
	setInt(&cfg.MaxSplits, req.MaxSplits)
	setInt(&cfg.DistributionPercent, req.DistributionPercent)
	setInt(&cfg.MaxSwapsPerPath, req.MaxSwapsPerPath)
	if req.ForceCrossProtocol != nil {
		cfg.ForceCrossProtocol = *req.ForceCrossProtocol
	}
	if req.ForceMixedRoutes != nil {
		cfg.ForceMixedRoutes = *req.ForceMixedRoutes
	}
	cfg.BlockNumber = req.BlockNumber
	if req.GasToken != "" {
		gasToken, err := h.aggregatorSvc.ResolveToken(chainID, req.GasToken)
		if err != nil {
			return aggregator.QuoteRequest{}, err
		}
		cfg.GasToken = &gasToken
	}
	if req.PortionBips > 0 {
		if !gethcommon.IsHexAddress(req.PortionRecipient) {
			return aggregator.QuoteRequest{}, common.InvalidConfigf("portionRecipient %q", req.PortionRecipient)
		}
		cfg.Portion = &domain.PortionConfig{
			Bips:      req.PortionBips,
			Recipient: gethcommon.HexToAddress(req.PortionRecipient),
		}
	}

	return aggregator.QuoteRequest{
		ChainID:   chainID,
		TokenIn:   req.TokenIn,
		TokenOut:  req.TokenOut,
		Amount:    amount,
		TradeType: tradeType,
		Config:    cfg,
	}, nil
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func tokenInfo(t domain.Token) TokenInfo {
	info := TokenInfo{Symbol: t.Symbol, Decimals: t.Decimals, Native: t.IsNative}
	if !t.IsNative {
		info.Address = t.Address.Hex()
	}
	return info
}

// BuildQuoteResponse renders a routing result. Quote amounts are in the
// quote token: tokenOut for exact input, tokenIn for exact output.
func BuildQuoteResponse(q *aggregator.Quote, chainID domain.ChainID) QuoteResponse {
	res := q.Result
	specified, quoteToken := res.TokenIn, res.TokenOut
	if res.TradeType == domain.ExactOutput {
		specified, quoteToken = res.TokenOut, res.TokenIn
	}
	resp := QuoteResponse{
		ID:            q.ID,
		SnapshotID:    q.SnapshotID,
		RouteFound:    res.RouteFound,
		ChainID:       uint64(chainID),
		TradeType:     res.TradeType.String(),
		TokenIn:       tokenInfo(res.TokenIn),
		TokenOut:      tokenInfo(res.TokenOut),
		Amount:        res.Amount.String(),
		AmountDecimal: aggregator.FormatAmount(res.Amount, specified),
		BlockNumber:   res.BlockNumber,
		Routes:        []RouteInfo{},

		QuotingIncomplete: res.QuotingIncomplete,
	}
	plan := res.Plan
	if !res.RouteFound || plan == nil {
		return resp
	}

	resp.Quote = plan.Quote.String()
	resp.QuoteDecimal = aggregator.FormatAmount(plan.Quote, quoteToken)
	resp.QuoteGasAdjusted = plan.QuoteGasAdjusted.String()
	resp.QuoteGasAdjustedDecimal = aggregator.FormatAmount(plan.QuoteGasAdjusted, quoteToken)
	resp.GasUseEstimate = bigString(plan.EstimatedGasUsed)
	resp.GasUseEstimateQuote = bigString(plan.EstimatedGasUsedQuoteToken)
	if info, ok := domain.ChainByID(chainID); ok && plan.EstimatedGasUsedUSD != nil {
		resp.GasUseEstimateUSD = aggregator.FormatAmount(plan.EstimatedGasUsedUSD, info.USDStable)
	}
	resp.GasUseEstimateGasToken = bigString(plan.EstimatedGasUsedGasToken)
	if plan.L1GasFees != nil && !plan.L1GasFees.IsZero() {
		resp.L1GasCostQuote = plan.L1GasFees.GasCostL1QuoteToken.String()
	}
	if plan.PortionAmount != nil && plan.PortionAmount.Sign() > 0 {
		resp.PortionAmount = plan.PortionAmount.String()
		resp.PortionAmountDecimal = aggregator.FormatAmount(plan.PortionAmount, res.TokenOut)
		resp.QuoteGasAndPortionAdjusted = bigString(plan.QuoteGasAndPortionAdjusted)
	}

	resp.PriceImpactBps = plan.PriceImpactBps
	resp.PriceImpactPercent = fmt.Sprintf("%.2f%%", float64(plan.PriceImpactBps)/100)
	resp.PriceImpactSeverity = string(router.GetPriceImpactSeverity(plan.PriceImpactBps))
	resp.PriceImpactWarning = router.GetPriceImpactWarning(plan.PriceImpactBps)

	for _, leg := range plan.Routes {
		path := make([]string, len(leg.Route.TokenPath))
		for i, t := range leg.Route.TokenPath {
			path[i] = t.Symbol
			if path[i] == "" {
				path[i] = t.Address.Hex()
			}
		}
		resp.Routes = append(resp.Routes, RouteInfo{
			Protocol: leg.Route.Protocol.String(),
			Percent:  leg.Percent,
			Amount:   leg.Amount.String(),
			Quote:    leg.RawQuote.String(),
			Path:     path,
			Pools:    leg.PoolIdentifiers,
		})
	}
	return resp
}

func bigString(v *big.Int) string {
	if v == nil {
		return ""
	}
	return v.String()
}

// @Summary Get split swap quote
// @Description Finds the gas-adjusted best way to split an amount across V2, V3 and mixed routes.
// @Description Amounts are human readable and scaled by the decimals of the specified side.
// @Description A pair without any route answers 200 with routeFound=false.
// @Tags quote
// @Produce json
// @Param chainId query string false "Chain id or name" default(1)
// @Param tokenIn query string true "Input token symbol, address or native name" example("WETH")
// @Param tokenOut query string true "Output token symbol, address or native name" example("USDC")
// @Param amount query string true "Amount of the specified side" example("1.5")
// @Param tradeType query string false "EXACT_INPUT or EXACT_OUTPUT" Enums(EXACT_INPUT, EXACT_OUTPUT)
// @Param protocols query string false "Comma separated protocols" example("v2,v3")
// @Param minSplits query int false "Minimum number of legs"
// @Param maxSplits query int false "Maximum number of legs"
// @Param distributionPercent query int false "Split granularity, must divide 100"
// @Param blockNumber query int false "Pin pool state to this block"
// @Param portionBips query int false "Fee portion in bips"
// @Param portionRecipient query string false "Fee portion recipient"
// @Success 200 {object} httputil.Response{data=QuoteResponse}
// @Failure 400 {object} httputil.Response "Invalid config or unknown token"
// @Failure 409 {object} httputil.Response "Pinned block is stale"
// @Failure 504 {object} httputil.Response "Pool providers timed out"
// @Router /api/v1/quote [get]
func (h *QuoteHandler) getQuote(c *gin.Context) {
	req, err := h.parseQuoteRequest(c)
	if err != nil {
		httputil.HandleError(c, err)
		return
	}

	q, err := h.aggregatorSvc.Quote(c.Request.Context(), req)
	if err != nil {
		httputil.HandleError(c, err)
		return
	}
	c.Header("X-Quote-ID", q.ID)
	httputil.Success(c, BuildQuoteResponse(q, req.ChainID))
}
