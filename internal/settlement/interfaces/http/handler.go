// Package http 提供结算服务的 HTTP 接口层。
package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	commissionapp "github.com/wyfcoding/marketsettlement/internal/commission/application"
	commissiondomain "github.com/wyfcoding/marketsettlement/internal/commission/domain"
	"github.com/wyfcoding/marketsettlement/internal/settlement/application"
	"github.com/wyfcoding/marketsettlement/internal/settlement/domain"
	"github.com/wyfcoding/pkg/logging"
	"github.com/wyfcoding/pkg/response"
)

const dateLayout = "2006-01-02"

// SettlementHandler HTTP 处理器
// 负责处理与结算相关的 HTTP 请求
type SettlementHandler struct {
	cmd      *application.CommandService
	query    *application.QueryService
	calc     *application.CalculationService
	policies *commissionapp.PolicyService
}

// NewSettlementHandler 创建 HTTP 处理器实例
func NewSettlementHandler(
	cmd *application.CommandService,
	query *application.QueryService,
	calc *application.CalculationService,
	policies *commissionapp.PolicyService,
) *SettlementHandler {
	return &SettlementHandler{cmd: cmd, query: query, calc: calc, policies: policies}
}

// RegisterRoutes 注册路由
func (h *SettlementHandler) RegisterRoutes(router *gin.RouterGroup) {
	api := router.Group("/api/v1/settlements")
	{
		api.GET("", h.ListSettlements)
		api.POST("", h.CreateSettlement)
		api.DELETE("", h.DeleteSettlements)
		api.POST("/process", h.ProcessSettlements)
		api.POST("/complete", h.CompleteSettlements)
		api.POST("/hold", h.HoldSettlements)
		api.POST("/unhold", h.UnholdSettlements)
		api.POST("/cancel", h.CancelSettlements)
		api.PATCH("/:settlementId/status", h.ForceSetStatus)
		api.POST("/periods", h.CreatePeriod)
		api.POST("/calculate/:periodId", h.Calculate)
		api.GET("/commission-policies", h.ListCommissionPolicies)
		api.POST("/commission-policies", h.CreateCommissionPolicy)
		api.GET("/seller/:sellerId", h.ListSellerSettlements)
		api.GET("/seller/:sellerId/products", h.AggregateSellerProducts)
		api.GET("/seller/:sellerId/summary", h.GetSellerSummary)
		api.GET("/:settlementId", h.GetSettlement)
	}
}

// httpStatus 领域错误到 HTTP 状态码的映射
func httpStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrPeriodNotFound),
		errors.Is(err, domain.ErrSettlementNotFound),
		errors.Is(err, commissiondomain.ErrPolicyNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrPeriodAlreadyProcessed),
		errors.Is(err, domain.ErrEmptySettlementIDs),
		errors.Is(err, domain.ErrNoEligibleSettlements),
		errors.Is(err, domain.ErrInvalidCommissionRate),
		errors.Is(err, domain.ErrUnknownStatus),
		errors.Is(err, domain.ErrInvalidPeriodType),
		errors.Is(err, domain.ErrInvalidPeriodRange),
		errors.Is(err, commissiondomain.ErrInvalidRate),
		errors.Is(err, commissiondomain.ErrInvalidDateRange),
		errors.Is(err, commissiondomain.ErrMissingPolicyName):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (h *SettlementHandler) fail(c *gin.Context, err error, msg string, args ...any) {
	status := httpStatus(err)
	if status == http.StatusInternalServerError {
		logging.Error(c.Request.Context(), msg, append(args, "error", err)...)
	}
	response.ErrorWithStatus(c, status, err.Error(), "")
}

func parseDate(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func pageToOffset(page, limit int) int {
	if page < 1 {
		page = 1
	}
	return (page - 1) * limit
}

// normalizeLimit 与应用层分页口径一致，响应回显的 limit 也用归一后的值
func normalizeLimit(limit int) int {
	if limit <= 0 || limit > 100 {
		return 20
	}
	return limit
}

// ListSettlements 结算单列表
func (h *SettlementHandler) ListSettlements(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	limit = normalizeLimit(limit)

	startDate, err := parseDate(c.Query("startDate"))
	if err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid startDate", "")
		return
	}
	endDate, err := parseDate(c.Query("endDate"))
	if err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid endDate", "")
		return
	}

	filter := domain.ListFilter{
		Status:    domain.SettlementStatus(c.Query("status")),
		Search:    c.Query("search"),
		StartDate: startDate,
		EndDate:   endDate,
		Limit:     limit,
		Offset:    pageToOffset(page, limit),
	}

	settlements, total, err := h.query.List(c.Request.Context(), filter)
	if err != nil {
		h.fail(c, err, "Failed to list settlements")
		return
	}
	response.Success(c, gin.H{
		"settlements": settlements,
		"total":       total,
		"page":        page,
		"limit":       limit,
	})
}

// GetSettlement 结算单详情
func (h *SettlementHandler) GetSettlement(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("settlementId"), 10, 64)
	if err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid settlement id", "")
		return
	}

	settlement, err := h.query.Get(c.Request.Context(), uint(id))
	if err != nil {
		h.fail(c, err, "Failed to get settlement", "settlement_id", id)
		return
	}
	response.Success(c, settlement)
}

// CreateSettlementRequest 手工创建结算单请求
type CreateSettlementRequest struct {
	SettlementPeriodID uint    `json:"settlement_period_id" binding:"required"`
	SellerID           string  `json:"seller_id" binding:"required"`
	SellerName         string  `json:"seller_name"`
	SellerEmail        string  `json:"seller_email"`
	TotalOrderAmount   float64 `json:"total_order_amount"`
	TotalCommission    float64 `json:"total_commission"`
	TotalDeliveryFee   float64 `json:"total_delivery_fee"`
	TotalRefundAmount  float64 `json:"total_refund_amount"`
	TotalCancelAmount  float64 `json:"total_cancel_amount"`
	AdjustmentAmount   float64 `json:"adjustment_amount"`
	CommissionRate     float64 `json:"commission_rate"`
	Memo               string  `json:"memo"`
}

// CreateSettlement 手工创建结算单
func (h *SettlementHandler) CreateSettlement(c *gin.Context) {
	var req CreateSettlementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}

	cmd := application.CreateSettlementCommand{
		SettlementPeriodID: req.SettlementPeriodID,
		SellerID:           req.SellerID,
		SellerName:         req.SellerName,
		SellerEmail:        req.SellerEmail,
		TotalOrderAmount:   decimal.NewFromFloat(req.TotalOrderAmount),
		TotalCommission:    decimal.NewFromFloat(req.TotalCommission),
		TotalDeliveryFee:   decimal.NewFromFloat(req.TotalDeliveryFee),
		TotalRefundAmount:  decimal.NewFromFloat(req.TotalRefundAmount),
		TotalCancelAmount:  decimal.NewFromFloat(req.TotalCancelAmount),
		AdjustmentAmount:   decimal.NewFromFloat(req.AdjustmentAmount),
		CommissionRate:     decimal.NewFromFloat(req.CommissionRate),
		Memo:               req.Memo,
	}

	settlement, err := h.cmd.CreateSettlement(c.Request.Context(), cmd)
	if err != nil {
		h.fail(c, err, "Failed to create settlement")
		return
	}
	response.Success(c, settlement)
}

// BatchRequest 批量操作请求
type BatchRequest struct {
	SettlementIDs []uint `json:"settlement_ids" binding:"required"`
	Memo          string `json:"memo"`
}

// ProcessRequest 批量计算请求
// commission_rate 用指针以区分缺省与显式 0
type ProcessRequest struct {
	SettlementIDs  []uint   `json:"settlement_ids" binding:"required"`
	CommissionRate *float64 `json:"commission_rate" binding:"required"`
}

// ProcessSettlements 批量进入计算中
func (h *SettlementHandler) ProcessSettlements(c *gin.Context) {
	var req ProcessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}

	result, err := h.cmd.Process(c.Request.Context(), req.SettlementIDs, decimal.NewFromFloat(*req.CommissionRate))
	if err != nil {
		h.fail(c, err, "Failed to process settlements")
		return
	}
	response.Success(c, result)
}

// CompleteSettlements 批量完成
func (h *SettlementHandler) CompleteSettlements(c *gin.Context) {
	var req BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}

	result, err := h.cmd.Complete(c.Request.Context(), req.SettlementIDs)
	if err != nil {
		h.fail(c, err, "Failed to complete settlements")
		return
	}
	response.Success(c, result)
}

// HoldSettlements 批量挂起
func (h *SettlementHandler) HoldSettlements(c *gin.Context) {
	var req BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}

	result, err := h.cmd.Hold(c.Request.Context(), req.SettlementIDs, req.Memo)
	if err != nil {
		h.fail(c, err, "Failed to hold settlements")
		return
	}
	response.Success(c, result)
}

// UnholdSettlements 批量解挂
func (h *SettlementHandler) UnholdSettlements(c *gin.Context) {
	var req BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}

	result, err := h.cmd.Unhold(c.Request.Context(), req.SettlementIDs)
	if err != nil {
		h.fail(c, err, "Failed to unhold settlements")
		return
	}
	response.Success(c, result)
}

// CancelSettlements 批量取消
func (h *SettlementHandler) CancelSettlements(c *gin.Context) {
	var req BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}

	result, err := h.cmd.Cancel(c.Request.Context(), req.SettlementIDs, req.Memo)
	if err != nil {
		h.fail(c, err, "Failed to cancel settlements")
		return
	}
	response.Success(c, result)
}

// DeleteSettlements 批量删除
func (h *SettlementHandler) DeleteSettlements(c *gin.Context) {
	var req BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}

	result, err := h.cmd.Delete(c.Request.Context(), req.SettlementIDs)
	if err != nil {
		h.fail(c, err, "Failed to delete settlements")
		return
	}
	response.Success(c, result)
}

// ForceSetStatusRequest 手工改写状态请求
type ForceSetStatusRequest struct {
	Status string `json:"status" binding:"required"`
	Memo   string `json:"memo"`
}

// ForceSetStatus 手工改写结算状态（绕过状态机）
func (h *SettlementHandler) ForceSetStatus(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("settlementId"), 10, 64)
	if err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid settlement id", "")
		return
	}

	var req ForceSetStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}

	settlement, err := h.cmd.ForceSetStatus(c.Request.Context(), uint(id), domain.SettlementStatus(req.Status), req.Memo)
	if err != nil {
		h.fail(c, err, "Failed to force settlement status", "settlement_id", id)
		return
	}
	response.Success(c, settlement)
}

// CreatePeriodRequest 创建结算周期请求
type CreatePeriodRequest struct {
	PeriodType     string `json:"period_type" binding:"required"`
	StartDate      string `json:"start_date" binding:"required"`
	EndDate        string `json:"end_date" binding:"required"`
	SettlementDate string `json:"settlement_date" binding:"required"`
}

// CreatePeriod 创建结算周期
func (h *SettlementHandler) CreatePeriod(c *gin.Context) {
	var req CreatePeriodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}

	startDate, err := parseDate(req.StartDate)
	if err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid start_date", "")
		return
	}
	endDate, err := parseDate(req.EndDate)
	if err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid end_date", "")
		return
	}
	settlementDate, err := parseDate(req.SettlementDate)
	if err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid settlement_date", "")
		return
	}

	period, err := h.cmd.CreatePeriod(c.Request.Context(), application.CreatePeriodCommand{
		PeriodType:     domain.PeriodType(req.PeriodType),
		StartDate:      *startDate,
		EndDate:        *endDate,
		SettlementDate: *settlementDate,
	})
	if err != nil {
		h.fail(c, err, "Failed to create settlement period")
		return
	}
	response.Success(c, period)
}

// Calculate 执行结算计算
func (h *SettlementHandler) Calculate(c *gin.Context) {
	periodID, err := strconv.ParseUint(c.Param("periodId"), 10, 64)
	if err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid period id", "")
		return
	}

	result, err := h.calc.CalculateForPeriod(c.Request.Context(), uint(periodID))
	if err != nil {
		h.fail(c, err, "Failed to calculate settlements", "period_id", periodID)
		return
	}
	response.Success(c, result)
}

// ListCommissionPolicies 佣金政策列表
func (h *SettlementHandler) ListCommissionPolicies(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	limit = normalizeLimit(limit)

	filter := commissiondomain.ListPoliciesFilter{
		SellerID:     c.Query("sellerId"),
		CategoryCode: c.Query("categoryCode"),
		ActiveOnly:   c.Query("activeOnly") == "true",
		Limit:        limit,
		Offset:       pageToOffset(page, limit),
	}

	policies, total, err := h.policies.ListPolicies(c.Request.Context(), filter)
	if err != nil {
		h.fail(c, err, "Failed to list commission policies")
		return
	}
	response.Success(c, gin.H{
		"policies": policies,
		"total":    total,
		"page":     page,
		"limit":    limit,
	})
}

// CreateCommissionPolicyRequest 创建佣金政策请求
type CreateCommissionPolicyRequest struct {
	Name           string  `json:"name" binding:"required"`
	SellerID       string  `json:"seller_id"`
	CategoryCode   string  `json:"category_code"`
	CommissionRate float64 `json:"commission_rate" binding:"required"`
	MinAmount      float64 `json:"min_amount"`
	MaxAmount      float64 `json:"max_amount"`
	EffectiveDate  string  `json:"effective_date" binding:"required"`
	EndDate        string  `json:"end_date"`
}

// CreateCommissionPolicy 创建佣金政策
func (h *SettlementHandler) CreateCommissionPolicy(c *gin.Context) {
	var req CreateCommissionPolicyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}

	effectiveDate, err := parseDate(req.EffectiveDate)
	if err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid effective_date", "")
		return
	}
	endDate, err := parseDate(req.EndDate)
	if err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid end_date", "")
		return
	}

	policy, err := h.policies.CreatePolicy(c.Request.Context(), commissionapp.CreatePolicyCommand{
		Name:           req.Name,
		SellerID:       req.SellerID,
		CategoryCode:   req.CategoryCode,
		CommissionRate: decimal.NewFromFloat(req.CommissionRate),
		MinAmount:      decimal.NewFromFloat(req.MinAmount),
		MaxAmount:      decimal.NewFromFloat(req.MaxAmount),
		EffectiveDate:  *effectiveDate,
		EndDate:        endDate,
	})
	if err != nil {
		h.fail(c, err, "Failed to create commission policy")
		return
	}
	response.Success(c, policy)
}

// ListSellerSettlements 卖家结算历史
func (h *SettlementHandler) ListSellerSettlements(c *gin.Context) {
	sellerID := c.Param("sellerId")
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	limit = normalizeLimit(limit)
	status := domain.SettlementStatus(c.Query("status"))

	settlements, total, err := h.query.ListBySeller(c.Request.Context(), sellerID, status, limit, pageToOffset(page, limit))
	if err != nil {
		h.fail(c, err, "Failed to list seller settlements", "seller_id", sellerID)
		return
	}
	response.Success(c, gin.H{
		"settlements": settlements,
		"total":       total,
		"page":        page,
		"limit":       limit,
	})
}

// AggregateSellerProducts 卖家商品维度聚合
func (h *SettlementHandler) AggregateSellerProducts(c *gin.Context) {
	sellerID := c.Param("sellerId")
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	limit = normalizeLimit(limit)

	startDate, err := parseDate(c.Query("startDate"))
	if err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid startDate", "")
		return
	}
	endDate, err := parseDate(c.Query("endDate"))
	if err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid endDate", "")
		return
	}

	query := domain.SellerProductQuery{
		SellerID:  sellerID,
		Category:  c.Query("category"),
		Search:    c.Query("search"),
		SortBy:    c.Query("sortBy"),
		StartDate: startDate,
		EndDate:   endDate,
		Limit:     limit,
		Offset:    pageToOffset(page, limit),
	}

	aggregates, total, err := h.query.AggregateSellerProducts(c.Request.Context(), query)
	if err != nil {
		h.fail(c, err, "Failed to aggregate seller products", "seller_id", sellerID)
		return
	}
	response.Success(c, gin.H{
		"products": aggregates,
		"total":    total,
		"page":     page,
		"limit":    limit,
	})
}

// GetSellerSummary 卖家结算汇总
func (h *SettlementHandler) GetSellerSummary(c *gin.Context) {
	sellerID := c.Param("sellerId")

	summary, err := h.query.GetSellerSummary(c.Request.Context(), sellerID)
	if err != nil {
		h.fail(c, err, "Failed to get seller summary", "seller_id", sellerID)
		return
	}
	response.Success(c, summary)
}
