package repository

import (
	"context"
	"testing"
	"time"

	"canteen/internal/model"
	"canteen/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day = time.Date(2024, 10, 28, 11, 0, 0, 0, time.Local)

func TestOrderIDsWithPrefix(t *testing.T) {
	db := testutil.NewDB(t)
	testutil.SeedOrder(t, db, "011012410280001", "2021001", "01101", "10.00", model.OrderStatusPending, day)
	testutil.SeedOrder(t, db, "011012410280003", "2021001", "01101", "10.00", model.OrderStatusPending, day)
	testutil.SeedOrder(t, db, "011012410270009", "2021001", "01101", "10.00", model.OrderStatusPending, day.AddDate(0, 0, -1))
	testutil.SeedOrder(t, db, "021012410280005", "2021001", "02101", "10.00", model.OrderStatusPending, day)

	ids, err := NewOrderRepository(db).OrderIDsWithPrefix(context.Background(), nil, "01101241028")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"011012410280001", "011012410280003"}, ids)
}

func TestOrderUpdateStatusIsConditional(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewOrderRepository(db)
	ctx := context.Background()
	testutil.SeedOrder(t, db, "011012410280001", "2021001", "01101", "10.00", model.OrderStatusPending, day)

	require.NoError(t, repo.UpdateStatus(ctx, nil, "011012410280001", model.OrderStatusPending, model.OrderStatusCompleted))
	err := repo.UpdateStatus(ctx, nil, "011012410280001", model.OrderStatusPending, model.OrderStatusCompleted)
	assert.ErrorIs(t, err, ErrOrderStatusInvalid)

	err = repo.UpdateStatus(ctx, nil, "011012410280001", model.OrderStatusCompleted, model.OrderStatusPending)
	assert.ErrorIs(t, err, ErrOrderStatusInvalid)
}

func TestOrderLatestFollowsInsertOrder(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewOrderRepository(db)
	ctx := context.Background()

	latest, err := repo.Latest(ctx)
	require.NoError(t, err)
	assert.Nil(t, latest)

	// 编号小但后插入的订单才是最新
	testutil.SeedOrder(t, db, "021012410280001", "2021001", "02101", "10.00", model.OrderStatusPending, day)
	testutil.SeedOrder(t, db, "011012410280001", "2021001", "01101", "10.00", model.OrderStatusPending, day)

	latest, err = repo.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, "011012410280001", latest.OrderID)
}

func TestGetByOrderIDNotFound(t *testing.T) {
	db := testutil.NewDB(t)
	_, err := NewOrderRepository(db).GetByOrderID(context.Background(), nil, "missing")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestPaymentRepositoryUsesPrimaryTable(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewPaymentRepository(db)
	ctx := context.Background()

	assert.Equal(t, model.PaymentTable, repo.Table(ctx, nil))
	require.NoError(t, repo.Create(ctx, nil, &model.Payment{
		PayID: "P011012410280001", OrderID: "011012410280001", PayMethod: model.PayMethodCampusCard,
		Amount: model.MustMoney("22.00"), PayTime: day,
	}))

	count, err := repo.CountByOrderID(ctx, nil, "011012410280001")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestPaymentRepositoryFallsBackToLegacyTable(t *testing.T) {
	db := testutil.NewDB(t)
	require.NoError(t, db.Migrator().DropTable(model.PaymentTable))
	require.NoError(t, db.Table(model.LegacyPaymentTable).AutoMigrate(&model.Payment{}))

	repo := NewPaymentRepository(db)
	ctx := context.Background()
	assert.Equal(t, model.LegacyPaymentTable, repo.Table(ctx, nil))

	require.NoError(t, repo.Create(ctx, nil, &model.Payment{
		PayID: "P011012410280002", OrderID: "011012410280002", PayMethod: model.PayMethodWechat,
		Amount: model.MustMoney("8.50"), PayTime: day,
	}))
	payments, err := repo.ListByOrderID(ctx, nil, "011012410280002")
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, "8.50", payments[0].Amount.String())

	var legacyCount int64
	require.NoError(t, db.Table(model.LegacyPaymentTable).Count(&legacyCount).Error)
	assert.Equal(t, int64(1), legacyCount)
}

func TestPointRecordLatestAndSum(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewPointRecordRepository(db)
	ctx := context.Background()

	_, found, err := repo.SumByOrderID(ctx, nil, "011012410280001")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, repo.Create(ctx, nil, &model.PointRecord{StudentID: "2021001", OrderID: "011012410280001", Points: 22}))
	require.NoError(t, repo.Create(ctx, nil, &model.PointRecord{StudentID: "2021002", OrderID: "011012410280002", Points: 5}))

	total, found, err := repo.SumByOrderID(ctx, nil, "011012410280001")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, int64(22), total)

	latest, err := repo.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, "011012410280002", latest.OrderID)
}

func TestStudentNamesByIDs(t *testing.T) {
	db := testutil.NewDB(t)
	testutil.SeedStudent(t, db, "2021001", "50.00", 0)

	names, err := NewStudentRepository(db).NamesByIDs(context.Background(), nil, []string{"2021001", "missing"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"2021001": "学生2021001"}, names)
}

func TestOutboxLifecycle(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewOutboxRepository(db)
	ctx := context.Background()

	msg := &model.OutboxMessage{MessageKey: "011012410280001", EventType: "order-paid", Topic: "t", Payload: "{}", Status: model.OutboxStatusPending}
	require.NoError(t, repo.Create(ctx, nil, msg))

	pending, err := repo.GetPendingMessages(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	require.NoError(t, repo.IncrementRetryCount(ctx, msg.ID))
	require.NoError(t, repo.MarkAsSent(ctx, msg.ID))

	got := testutil.LoadOutbox(t, db, msg.ID)
	assert.Equal(t, model.OutboxStatusSent, got.Status)
	assert.Equal(t, 1, got.RetryCount)

	pending, err = repo.GetPendingMessages(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}
