package payments

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/rentals-backend/pkg/db/models"
	"github.com/angelmondragon/rentals-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/rentals-backend/pkg/errors"
)

type fakeRepository struct {
	entries []models.Payment
	listErr error
}

func (f *fakeRepository) WithTx(*gorm.DB) Repository { return f }

func (f *fakeRepository) Create(_ context.Context, payment *models.Payment) error {
	f.entries = append(f.entries, *payment)
	return nil
}

func (f *fakeRepository) ListByOrderID(_ context.Context, orderID uuid.UUID) ([]models.Payment, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []models.Payment
	for _, e := range f.entries {
		if e.OrderID == orderID {
			out = append(out, e)
		}
	}
	return out, nil
}

func TestNewEntryDefaultsToPayment(t *testing.T) {
	orderID := uuid.New()
	actor := uuid.New()
	note := "  first instalment "

	entry, err := NewEntry(orderID, &actor, RecordPaymentInput{
		Amount: decimal.RequireFromString("150.50"),
		Method: enums.PaymentMethodCard,
		Note:   &note,
	})
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentEntryTypePayment, entry.EntryType)
	assert.Equal(t, orderID, entry.OrderID)
	assert.Equal(t, &actor, entry.CreatedByUserID)
	require.NotNil(t, entry.Note)
	assert.Equal(t, "first instalment", *entry.Note)
}

func TestNewEntryRejectsInvalidInput(t *testing.T) {
	orderID := uuid.New()
	cases := map[string]RecordPaymentInput{
		"zero amount":     {Amount: decimal.Zero, Method: enums.PaymentMethodCash},
		"negative amount": {Amount: decimal.NewFromInt(-5), Method: enums.PaymentMethodCash},
		"sub-cent amount": {Amount: decimal.RequireFromString("1.005"), Method: enums.PaymentMethodCash},
		"unknown method":  {Amount: decimal.NewFromInt(5), Method: "crypto"},
		"unknown entry":   {Amount: decimal.NewFromInt(5), Method: enums.PaymentMethodCash, EntryType: "refund"},
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewEntry(orderID, nil, input)
			require.Error(t, err)
			assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
		})
	}

	_, err := NewEntry(uuid.Nil, nil, RecordPaymentInput{Amount: decimal.NewFromInt(1), Method: enums.PaymentMethodCash})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestServiceListMapsEntries(t *testing.T) {
	orderID := uuid.New()
	repo := &fakeRepository{entries: []models.Payment{
		{ID: uuid.New(), OrderID: orderID, Amount: decimal.NewFromInt(10), Method: enums.PaymentMethodCash, EntryType: enums.PaymentEntryTypeDeposit},
		{ID: uuid.New(), OrderID: uuid.New(), Amount: decimal.NewFromInt(99), Method: enums.PaymentMethodCard, EntryType: enums.PaymentEntryTypePayment},
	}}
	svc, err := NewService(repo)
	require.NoError(t, err)

	got, err := svc.List(context.Background(), orderID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, enums.PaymentEntryTypeDeposit, got[0].EntryType)

	repo.listErr = errors.New("db down")
	_, err = svc.List(context.Background(), orderID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
}

func TestNewServiceRequiresRepository(t *testing.T) {
	_, err := NewService(nil)
	require.Error(t, err)
}
