package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/service/checkout"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

func (s *Server) handleCheckout(c *gin.Context) {
	var req checkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	lines := make([]checkout.Line, 0, len(req.Lines))
	for _, line := range req.Lines {
		lines = append(lines, checkout.Line{
			ProductID:  line.ProductID,
			Qty:        line.Qty,
			PriceMinor: line.PriceMinor,
		})
	}

	order, err := s.checkout.Checkout(c.Request.Context(), checkout.Request{
		Auth:          authFrom(c),
		Lines:         lines,
		PaymentMethod: domain.PaymentMethod(req.PaymentMethod),
		Receiver: domain.Receiver{
			Name:    req.Receiver.Name,
			Email:   req.Receiver.Email,
			Phone:   req.Receiver.Phone,
			Address: req.Receiver.Address,
			Note:    req.Receiver.Note,
		},
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toOrderResponse(order))
}

func (s *Server) handleGetOrder(c *gin.Context) {
	details, err := s.orders.Get(c.Request.Context(), authFrom(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	// Старые потребители запрашивают одно-позиционную проекцию.
	if c.Query("view") == "legacy" {
		c.JSON(http.StatusOK, toLegacyResponse(details.Order))
		return
	}

	resp := orderDetailsResponse{orderResponse: toOrderResponse(details.Order)}
	for _, event := range details.Timeline {
		resp.Timeline = append(resp.Timeline, timelineEventResponse{
			Type:     event.Type,
			Reason:   event.Reason,
			Occurred: event.Occurred,
		})
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleListOrders(c *gin.Context) {
	filter := domain.OrderFilter{
		Status:        domain.OrderStatus(c.Query("status")),
		PaymentMethod: domain.PaymentMethod(c.Query("pay")),
		Sort:          domain.OrderSort(c.Query("sort")),
		Page:          intQuery(c, "page", 1),
		PageSize:      intQuery(c, "page_size", defaultPageSize),
	}
	if filter.Status != "" && !filter.Status.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status filter"})
		return
	}
	if filter.PaymentMethod != "" && !filter.PaymentMethod.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payment filter"})
		return
	}
	if filter.Sort != "" && !filter.Sort.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid sort"})
		return
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = defaultPageSize
	}
	if filter.PageSize > maxPageSize {
		filter.PageSize = maxPageSize
	}

	list, total, err := s.orders.List(c.Request.Context(), authFrom(c), filter)
	if err != nil {
		writeError(c, err)
		return
	}

	resp := orderListResponse{
		Orders:   make([]orderResponse, 0, len(list)),
		Total:    total,
		Page:     filter.Page,
		PageSize: filter.PageSize,
	}
	for _, order := range list {
		resp.Orders = append(resp.Orders, toOrderResponse(order))
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleCancelOrder(c *gin.Context) {
	var req cancelRequest
	// Тело опционально.
	_ = c.ShouldBindJSON(&req)

	order, err := s.orders.Cancel(c.Request.Context(), authFrom(c), c.Param("id"), req.Reason)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderResponse(order))
}

func (s *Server) handleUpdateStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status is required"})
		return
	}

	order, err := s.orders.UpdateStatus(c.Request.Context(), authFrom(c), c.Param("id"), domain.OrderStatus(req.Status))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderResponse(order))
}

func (s *Server) handleReassignOrder(c *gin.Context) {
	var req reassignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "account_id is required"})
		return
	}

	order, err := s.orders.Reassign(c.Request.Context(), authFrom(c), c.Param("id"), req.AccountID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderResponse(order))
}

func (s *Server) handleDeleteOrder(c *gin.Context) {
	if err := s.orders.Delete(c.Request.Context(), authFrom(c), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleGetCart(c *gin.Context) {
	auth := authFrom(c)
	items, err := s.cart.List(auth.AccountID)
	if err != nil {
		writeError(c, err)
		return
	}

	resp := make([]cartItemResponse, 0, len(items))
	for _, item := range items {
		resp = append(resp, cartItemResponse{
			ID:         item.ID,
			ProductID:  item.ProductID,
			Qty:        item.Qty,
			PriceMinor: item.PriceMinor,
		})
	}
	c.JSON(http.StatusOK, gin.H{"items": resp})
}

func (s *Server) handleClearCart(c *gin.Context) {
	if err := s.cart.Clear(authFrom(c).AccountID); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func intQuery(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
