package service

import (
	"context"
	"strings"
	"time"

	"canteen/internal/repository"

	"gorm.io/gorm"
)

type MerchantService struct {
	merchantRepo *repository.MerchantRepository
	orderRepo    *repository.OrderRepository
	views        *orderViewBuilder
}

func NewMerchantService(db *gorm.DB) *MerchantService {
	return &MerchantService{
		merchantRepo: repository.NewMerchantRepository(db),
		orderRepo:    repository.NewOrderRepository(db),
		views:        newOrderViewBuilder(db),
	}
}

// StockItem 库存行，带菜品名
type StockItem struct {
	StockID           string     `json:"stockId"`
	DishID            string     `json:"dishId"`
	DishName          string     `json:"dishName"`
	InQuantity        int        `json:"inQuantity"`
	OutQuantity       int        `json:"outQuantity"`
	RemainingQuantity int        `json:"remainingQuantity"`
	UpdateTime        *time.Time `json:"updateTime"`
}

// ListOrders status 为空返回全部，否则只能是 待支付 / 已完成
func (s *MerchantService) ListOrders(ctx context.Context, merchantID, status string) ([]*OrderView, error) {
	merchantID = strings.TrimSpace(merchantID)
	if merchantID == "" {
		return nil, validationError("缺少商户编号")
	}
	status = strings.TrimSpace(status)
	if status != "" {
		if err := validateStatus(status); err != nil {
			return nil, err
		}
	}
	orders, err := s.orderRepo.ListByMerchantID(ctx, merchantID, status)
	if err != nil {
		return nil, infraError("查询订单失败", err)
	}
	views, err := s.views.build(ctx, nil, orders, false)
	if err != nil {
		return nil, infraError("查询订单失败", err)
	}
	return views, nil
}

func (s *MerchantService) ListStock(ctx context.Context, merchantID string) ([]StockItem, error) {
	merchantID = strings.TrimSpace(merchantID)
	if merchantID == "" {
		return nil, validationError("缺少商户编号")
	}
	stocks, err := s.merchantRepo.ListStock(ctx, merchantID)
	if err != nil {
		return nil, infraError("查询库存失败", err)
	}

	dishIDs := make([]string, 0, len(stocks))
	for _, st := range stocks {
		dishIDs = append(dishIDs, strings.TrimSpace(st.DishID))
	}
	dishes, err := s.merchantRepo.DishesByIDs(ctx, nil, uniq(dishIDs))
	if err != nil {
		return nil, infraError("查询菜品失败", err)
	}

	items := make([]StockItem, 0, len(stocks))
	for _, st := range stocks {
		item := StockItem{
			StockID:           strings.TrimSpace(st.StockID),
			DishID:            strings.TrimSpace(st.DishID),
			InQuantity:        st.InQuantity,
			OutQuantity:       st.OutQuantity,
			RemainingQuantity: st.RemainingQuantity,
			UpdateTime:        st.UpdateTime,
		}
		if d, ok := dishes[item.DishID]; ok {
			item.DishName = d.Name
		}
		items = append(items, item)
	}
	return items, nil
}
