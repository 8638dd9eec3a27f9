package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"shop_ledger/internal/services"

	"github.com/gin-gonic/gin"
)

const adminKeyHeader = "X-Admin-Key"

// HealthCheck reports whether one dependency is reachable.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type APIHandler struct {
	orderService  services.OrderService
	ledgerService services.LedgerService
	checks        []HealthCheck
}

func NewAPIHandler(
	orderService services.OrderService,
	ledgerService services.LedgerService,
	checks ...HealthCheck,
) *APIHandler {
	return &APIHandler{
		orderService:  orderService,
		ledgerService: ledgerService,
		checks:        checks,
	}
}

func (h *APIHandler) Register(r gin.IRouter) {
	r.GET("/healthz", h.Health)

	api := r.Group("/api")
	{
		api.POST("/create-order", h.CreateOrder)
		api.GET("/list-orders", h.ListOrders)
		api.GET("/orders/:orderId", h.GetOrder)
		api.PATCH("/order-action", h.OrderAction)
		api.GET("/customer-ledger", h.CustomerLedger)
		api.GET("/sales-summary", h.SalesSummary)
	}
}

func (h *APIHandler) CreateOrder(c *gin.Context) {
	var req services.CreateOrderInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	order, err := h.orderService.CreateOrder(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

func (h *APIHandler) ListOrders(c *gin.Context) {
	orders, err := h.orderService.ListOrders(c.Request.Context(), c.Query("userId"), c.Query("status"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

func (h *APIHandler) GetOrder(c *gin.Context) {
	caller := services.Caller{UserID: c.Query("userId"), AdminKey: c.GetHeader(adminKeyHeader)}
	order, err := h.orderService.GetOrder(c.Request.Context(), caller, c.Param("orderId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *APIHandler) OrderAction(c *gin.Context) {
	var req services.ActionInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}
	req.AdminKey = c.GetHeader(adminKeyHeader)

	order, err := h.orderService.ApplyAction(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *APIHandler) CustomerLedger(c *gin.Context) {
	ledger, err := h.ledgerService.CustomerLedger(c.Request.Context(),
		c.Query("userId"), c.Query("customerId"), c.Query("from"), c.Query("to"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ledger)
}

func (h *APIHandler) SalesSummary(c *gin.Context) {
	summary, err := h.ledgerService.SalesSummary(c.Request.Context(),
		c.Query("userId"), c.Query("from"), c.Query("to"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *APIHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	results := gin.H{}
	for _, hc := range h.checks {
		if err := hc.Check(ctx); err != nil {
			status = http.StatusServiceUnavailable
			results[hc.Name] = err.Error()
			continue
		}
		results[hc.Name] = "ok"
	}
	c.JSON(status, gin.H{"status": http.StatusText(status), "checks": results})
}

func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrValidation):
		body := gin.H{"error": err.Error()}
		var ve *services.ValidationError
		if errors.As(err, &ve) && ve.Field != "" {
			body["field"] = ve.Field
		}
		c.JSON(http.StatusBadRequest, body)
	case errors.Is(err, services.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "Not allowed to act on this order"})
	case errors.Is(err, services.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		log.Printf("Request %s %s failed: %v", c.Request.Method, c.Request.URL.Path, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
