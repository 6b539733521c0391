package orders

import (
	"context"
	"testing"

	"github.com/Kowshalya-Eswar/agrofarm/pkg/db/models"
	"github.com/Kowshalya-Eswar/agrofarm/pkg/enums"
	pkgerrors "github.com/Kowshalya-Eswar/agrofarm/pkg/errors"
	"github.com/Kowshalya-Eswar/agrofarm/pkg/types"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:orders_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(
		&models.Product{},
		&models.Order{},
		&models.OrderLineItem{},
		&models.Payment{},
	))
	return conn
}

func testAddress() types.Address {
	return types.Address{
		Line1:      "12 Market Road",
		City:       "Coimbatore",
		State:      "TN",
		PostalCode: "641001",
		Country:    "IN",
	}
}

func seedOrder(t *testing.T, repo *Repository, reference string) *models.Order {
	t.Helper()
	order := &models.Order{
		Reference:       reference,
		UserID:          uuid.New(),
		Status:          enums.OrderStatusPending,
		TotalCents:      90000,
		ShippingAddress: testAddress(),
		Items: []models.OrderLineItem{{
			ID:             uuid.New(),
			ProductID:      uuid.New(),
			Name:           "Basmati Rice 5kg",
			UnitPriceCents: 45000,
			Qty:            2,
		}},
		Payments: []models.Payment{{
			ID:          uuid.New(),
			ProviderRef: &reference,
			Method:      enums.PaymentMethodCard,
			Status:      enums.PaymentStatusPending,
			AmountCents: 90000,
		}},
	}
	require.NoError(t, repo.Create(context.Background(), order))
	return order
}

func TestCreateAndFindByReference(t *testing.T) {
	repo := NewRepository(newTestDB(t))
	seedOrder(t, repo, "pay_ref_1")

	found, err := repo.FindByReference(context.Background(), "pay_ref_1")
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusPending, found.Status)
	require.Len(t, found.Items, 1)
	require.Equal(t, "Basmati Rice 5kg", found.Items[0].Name)
	require.Len(t, found.Payments, 1)
	require.Equal(t, enums.PaymentStatusPending, found.Payments[0].Status)
}

func TestFindByReferenceNotFound(t *testing.T) {
	repo := NewRepository(newTestDB(t))

	_, err := repo.FindByReference(context.Background(), "pay_missing")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestUpdateStatusFollowsTransitionTable(t *testing.T) {
	repo := NewRepository(newTestDB(t))
	seedOrder(t, repo, "pay_ref_2")
	ctx := context.Background()

	require.NoError(t, repo.UpdateStatus(ctx, "pay_ref_2", enums.OrderStatusProcessing))

	err := repo.UpdateStatus(ctx, "pay_ref_2", enums.OrderStatusPending)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	found, err := repo.FindByReference(ctx, "pay_ref_2")
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusProcessing, found.Status)
}

func TestMarkPaymentCapturedIsIdempotent(t *testing.T) {
	repo := NewRepository(newTestDB(t))
	order := seedOrder(t, repo, "pay_ref_3")
	ctx := context.Background()
	paymentID := order.Payments[0].ID

	updated, err := repo.MarkPaymentCaptured(ctx, paymentID, 90000)
	require.NoError(t, err)
	require.True(t, updated)

	// Second delivery of the same event finds the payment terminal.
	updated, err = repo.MarkPaymentCaptured(ctx, paymentID, 90000)
	require.NoError(t, err)
	require.False(t, updated)

	total, err := repo.SumCaptured(ctx, "pay_ref_3")
	require.NoError(t, err)
	require.Equal(t, int64(90000), total)
}

func TestMarkPaymentFailedRecordsReason(t *testing.T) {
	repo := NewRepository(newTestDB(t))
	order := seedOrder(t, repo, "pay_ref_4")
	ctx := context.Background()

	updated, err := repo.MarkPaymentFailed(ctx, order.Payments[0].ID, "card declined")
	require.NoError(t, err)
	require.True(t, updated)

	payment, err := repo.FindPaymentByProviderRef(ctx, "pay_ref_4")
	require.NoError(t, err)
	require.Equal(t, enums.PaymentStatusFailed, payment.Status)
	require.NotNil(t, payment.FailureReason)
	require.Equal(t, "card declined", *payment.FailureReason)

	// Failed payments never re-enter captured.
	updated, err = repo.MarkPaymentCaptured(ctx, order.Payments[0].ID, 90000)
	require.NoError(t, err)
	require.False(t, updated)
}

func TestListByUserReturnsOwnOrdersOnly(t *testing.T) {
	repo := NewRepository(newTestDB(t))
	ctx := context.Background()
	mine := seedOrder(t, repo, "pay_ref_5")
	seedOrder(t, repo, "pay_ref_6")

	orders, err := repo.ListByUser(ctx, mine.UserID)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	require.Equal(t, "pay_ref_5", orders[0].Reference)
}
