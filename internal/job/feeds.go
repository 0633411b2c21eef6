package job

import (
	"context"
	"strings"

	"canteen/internal/notify"
	"canteen/internal/repository"
)

// LatestOrder 订单表的 LatestFunc，载荷带上学生和档口名称
func LatestOrder(orders *repository.OrderRepository, students *repository.StudentRepository, merchants *repository.MerchantRepository) LatestFunc {
	return func(ctx context.Context) (*Snapshot, error) {
		order, err := orders.Latest(ctx)
		if err != nil || order == nil {
			return nil, err
		}

		names, err := students.NamesByIDs(ctx, nil, []string{order.StudentID})
		if err != nil {
			return nil, err
		}
		merchantMap, err := merchants.GetByIDs(ctx, nil, []string{order.MerchantID})
		if err != nil {
			return nil, err
		}

		merchantName := ""
		if m, ok := merchantMap[strings.TrimSpace(order.MerchantID)]; ok {
			merchantName = m.Name
		}
		payload := notify.NewOrderPayload(order, names[strings.TrimSpace(order.StudentID)], merchantName)
		return &Snapshot{ID: order.ID, Payload: payload}, nil
	}
}

// LatestPointRecord 积分记录表的 LatestFunc
func LatestPointRecord(points *repository.PointRecordRepository, students *repository.StudentRepository) LatestFunc {
	return func(ctx context.Context) (*Snapshot, error) {
		record, err := points.Latest(ctx)
		if err != nil || record == nil {
			return nil, err
		}

		names, err := students.NamesByIDs(ctx, nil, []string{record.StudentID})
		if err != nil {
			return nil, err
		}
		payload := notify.NewPointsPayload(record, names[strings.TrimSpace(record.StudentID)])
		return &Snapshot{ID: record.RecordID, Payload: payload}, nil
	}
}
