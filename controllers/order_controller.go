package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	apperrors "github.com/yashrajoria/shopswift-api/common/errors"
	"github.com/yashrajoria/shopswift-api/middleware"
	"github.com/yashrajoria/shopswift-api/models"
	"github.com/yashrajoria/shopswift-api/services"
)

type OrderController struct {
	orderService services.OrderService
}

func NewOrderController(svc services.OrderService) *OrderController {
	return &OrderController{orderService: svc}
}

// CreateOrder handles POST /orders
func (oc *OrderController) CreateOrder(c *gin.Context) {
	var input models.CreateOrderInput
	if !bindJSON(c, &input) {
		return
	}
	order, err := oc.orderService.CreateOrder(c.Request.Context(), middleware.GetUserID(c), input)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

// GetOrders handles GET /orders for the caller's own orders.
func (oc *OrderController) GetOrders(c *gin.Context) {
	userID := middleware.GetUserID(c)
	filter, ok := orderFilter(c)
	if !ok {
		return
	}
	filter.UserID = &userID
	oc.list(c, filter)
}

// ListAllOrders handles GET /admin/orders
func (oc *OrderController) ListAllOrders(c *gin.Context) {
	filter, ok := orderFilter(c)
	if !ok {
		return
	}
	if v := c.Query("userId"); v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil || id == 0 {
			_ = c.Error(apperrors.Validation("invalid userId"))
			return
		}
		uid := uint(id)
		filter.UserID = &uid
	}
	oc.list(c, filter)
}

func (oc *OrderController) list(c *gin.Context, filter models.OrderFilter) {
	orders, err := oc.orderService.GetAllOrders(c.Request.Context(), filter)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

func orderFilter(c *gin.Context) (models.OrderFilter, bool) {
	limit, offset, ok := parsePagination(c)
	if !ok {
		return models.OrderFilter{}, false
	}
	filter := models.OrderFilter{Limit: limit, Offset: offset}
	if status := c.Query("status"); status != "" {
		filter.Status = &status
	}
	return filter, true
}

// GetOrder handles GET /orders/:id
func (oc *OrderController) GetOrder(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	order, err := oc.orderService.GetOrderByID(c.Request.Context(), id, middleware.GetUserID(c))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// UpdateOrder handles PATCH /orders/:id
func (oc *OrderController) UpdateOrder(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var input models.UpdateOrderInput
	if !bindJSON(c, &input) {
		return
	}
	order, err := oc.orderService.UpdateOrder(c.Request.Context(), id, middleware.GetUserID(c), input)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// UpdateOrderStatus handles PATCH /admin/orders/:id/status
func (oc *OrderController) UpdateOrderStatus(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var input models.UpdateOrderStatusInput
	if !bindJSON(c, &input) {
		return
	}
	order, err := oc.orderService.UpdateOrderStatus(c.Request.Context(), id, input.Status)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// AddItem handles POST /orders/:id/items
func (oc *OrderController) AddItem(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var input models.AddOrderItemInput
	if !bindJSON(c, &input) {
		return
	}
	order, err := oc.orderService.AddProductToOrder(c.Request.Context(), id, middleware.GetUserID(c), input.ProductID, input.Quantity)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// RemoveItem handles DELETE /orders/:id/items/:productId. Without a
// quantity the whole line is removed.
func (oc *OrderController) RemoveItem(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	productID, ok := pathID(c, "productId")
	if !ok {
		return
	}
	quantity := 0
	if v := c.Query("quantity"); v != "" {
		q, err := strconv.Atoi(v)
		if err != nil || q < 0 {
			_ = c.Error(apperrors.Validation("quantity must be a non-negative integer"))
			return
		}
		quantity = q
	}
	order, err := oc.orderService.RemoveProductFromOrder(c.Request.Context(), id, middleware.GetUserID(c), productID, quantity)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, order)
}
