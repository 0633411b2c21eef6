package handler

import (
	"encoding/json"
	"errors"

	"canteen/internal/config"
	"canteen/internal/infrastructure/lock"
	"canteen/internal/notify"
	"canteen/internal/service"
	"canteen/pkg/response"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Handler 统一处理器，包含所有服务依赖
type Handler struct {
	orderService    *service.OrderService
	payService      *service.PayService
	studentService  *service.StudentService
	merchantService *service.MerchantService
	hub             *notify.Hub
}

// NewHandler 创建处理器实例
func NewHandler(db *gorm.DB, cfg *config.Config, locker lock.Locker, hub *notify.Hub) *Handler {
	return &Handler{
		orderService:    service.NewOrderService(db, cfg, locker, hub),
		payService:      service.NewPayService(db, cfg, hub),
		studentService:  service.NewStudentService(db),
		merchantService: service.NewMerchantService(db),
		hub:             hub,
	}
}

// ============================================================
// 订单相关接口
// ============================================================

// CreateOrder 创建订单
// POST /api/orders
func (h *Handler) CreateOrder(c *gin.Context) {
	var req service.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	orderID, err := h.orderService.CreateOrder(c.Request.Context(), &req)
	if err != nil {
		response.Fail(c, err)
		return
	}

	response.Created(c, gin.H{
		"success": true,
		"orderId": orderID,
	})
}

// GetOrder 订单详情，含菜品明细、支付记录和积分
// GET /api/orders/:id
func (h *Handler) GetOrder(c *gin.Context) {
	order, err := h.orderService.GetOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, gin.H{"order": order})
}

// UpdateOrder 部分更新订单
// PATCH /api/orders/:id
func (h *Handler) UpdateOrder(c *gin.Context) {
	var req service.UpdateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	order, err := h.orderService.UpdateOrder(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, gin.H{"order": order})
}

// DeleteOrder 删除订单及其明细和支付记录
// DELETE /api/orders/:id
func (h *Handler) DeleteOrder(c *gin.Context) {
	if err := h.orderService.DeleteOrder(c.Request.Context(), c.Param("id")); err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, gin.H{"success": true})
}

// ============================================================
// 支付相关接口
// ============================================================

// PayOrder 学生支付订单
// POST /api/student/pay
//
// 扣余额、改订单状态、写支付记录和积分流水在同一个事务里完成
func (h *Handler) PayOrder(c *gin.Context) {
	var req service.PayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	result, err := h.payService.PayOrder(c.Request.Context(), &req)
	if err != nil {
		response.Fail(c, err)
		return
	}

	response.Success(c, gin.H{
		"success":    true,
		"payId":      result.PayID,
		"newBalance": result.NewBalance,
		"newPoints":  result.NewPoints,
	})
}

// ============================================================
// 学生 / 商户查询
// ============================================================

// GetStudent GET /api/student/:id
func (h *Handler) GetStudent(c *gin.Context) {
	student, err := h.studentService.GetStudent(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, gin.H{"student": student})
}

// ListStudentOrders GET /api/student/:id/orders
func (h *Handler) ListStudentOrders(c *gin.Context) {
	orders, err := h.studentService.ListOrders(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, gin.H{"orders": orders})
}

// ListMerchantOrders GET /api/merchant/:id/orders?status=待支付
func (h *Handler) ListMerchantOrders(c *gin.Context) {
	orders, err := h.merchantService.ListOrders(c.Request.Context(), c.Param("id"), c.Query("status"))
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, gin.H{"orders": orders})
}

// ListMerchantStock GET /api/merchant/:id/stock
func (h *Handler) ListMerchantStock(c *gin.Context) {
	items, err := h.merchantService.ListStock(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, gin.H{"stockItems": items})
}

// ============================================================
// 实时通知
// ============================================================

// EmitRequest 手动通知
type EmitRequest struct {
	Type    string          `json:"type" binding:"required"`
	Payload json.RawMessage `json:"payload"`
}

// Emit 手动广播一次数据变更
// POST /api/emit
func (h *Handler) Emit(c *gin.Context) {
	var req EmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if _, err := notify.Announce(h.hub, req.Type, req.Payload); err != nil {
		if errors.Is(err, notify.ErrUnknownChangeType) || errors.Is(err, notify.ErrInvalidPayload) {
			response.ParamError(c, err.Error())
			return
		}
		response.Fail(c, err)
		return
	}
	response.Success(c, gin.H{"success": true})
}
