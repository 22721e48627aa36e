package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/rentals-backend/pkg/db"
	"github.com/angelmondragon/rentals-backend/pkg/db/dbtest"
	"github.com/angelmondragon/rentals-backend/pkg/db/models"
	"github.com/angelmondragon/rentals-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/rentals-backend/pkg/errors"
	"github.com/angelmondragon/rentals-backend/pkg/locks"
	"github.com/angelmondragon/rentals-backend/pkg/pagination"
	"github.com/angelmondragon/rentals-backend/pkg/types"
)

func newTestService(t *testing.T) (Service, *gorm.DB) {
	t.Helper()
	conn := dbtest.Open(t)
	svc, err := NewService(NewRepository(conn), db.Wrap(conn), locks.NewLocal(time.Second))
	require.NoError(t, err)
	return svc, conn
}

func assertCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, code, pkgerrors.CodeOf(err), "unexpected error: %v", err)
}

func strPtr(v string) *string { return &v }

func TestCreateAndGetItem(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.CreateItem(ctx, CreateItemInput{
		Title:    "  Evening gown ",
		Category: "dresses",
		Tags:     []string{"gala", "gala", " red "},
		Variants: []VariantInput{{
			Size:          "S",
			Color:         "red",
			StockQuantity: 2,
			Prices: []PriceInput{{
				Amount:    decimal.NewFromInt(1500),
				Deposit:   decimal.NewFromInt(500),
				PriceType: "daily",
			}},
		}},
	})
	require.NoError(t, err)

	assert.Equal(t, "Evening gown", created.Title)
	assert.Equal(t, enums.ItemStatusInStock, created.Status)
	assert.Equal(t, []string{"gala", "red"}, created.Tags)
	require.Len(t, created.Variants, 1)
	assert.Equal(t, enums.VariantStatusAvailable, created.Variants[0].Status)
	require.Len(t, created.Variants[0].Prices, 1)
	assert.True(t, created.Variants[0].Prices[0].Amount.Equal(decimal.NewFromInt(1500)))

	fetched, err := svc.GetItem(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, fetched.ID)

	_, err = svc.GetItem(ctx, uuid.New())
	assertCode(t, err, pkgerrors.CodeNotFound)
}

func TestCreateItemDuplicateTitleConflicts(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateItem(ctx, CreateItemInput{Title: "Tux", Category: "suits"})
	require.NoError(t, err)
	_, err = svc.CreateItem(ctx, CreateItemInput{Title: "Tux", Category: "suits"})
	assertCode(t, err, pkgerrors.CodeConflict)
}

func TestCreateVariantRejectsMaintenanceStatus(t *testing.T) {
	svc, conn := newTestService(t)
	item, _ := dbtest.SeedVariant(t, conn, dbtest.VariantSpec{Stock: 1})

	_, err := svc.CreateVariant(context.Background(), item.ID, VariantInput{
		Size: "L", Color: "blue", Status: enums.VariantStatusRepair,
	})
	assertCode(t, err, pkgerrors.CodeValidation)

	_, err = svc.CreateVariant(context.Background(), uuid.New(), VariantInput{Size: "L", Color: "blue"})
	assertCode(t, err, pkgerrors.CodeNotFound)
}

func TestUpdateItemAppliesOptionalFields(t *testing.T) {
	svc, conn := newTestService(t)
	item, _ := dbtest.SeedVariant(t, conn, dbtest.VariantSpec{Stock: 1})

	tags := []string{"summer"}
	status := enums.ItemStatusOutOfStock
	updated, err := svc.UpdateItem(context.Background(), item.ID, UpdateItemInput{
		Category: strPtr(" suits "),
		Tags:     &tags,
		Status:   &status,
	})
	require.NoError(t, err)
	assert.Equal(t, item.Title, updated.Title)
	assert.Equal(t, "suits", updated.Category)
	assert.Equal(t, []string{"summer"}, updated.Tags)
	assert.Equal(t, enums.ItemStatusOutOfStock, updated.Status)
	assert.Len(t, updated.Variants, 1)
}

func TestListItemsFiltersAndPaginates(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		dbtest.SeedVariant(t, conn, dbtest.VariantSpec{Stock: 1})
		time.Sleep(2 * time.Millisecond)
	}
	_, err := svc.CreateItem(ctx, CreateItemInput{Title: "Linen suit", Category: "suits", Tags: []string{"summer"}})
	require.NoError(t, err)

	first, err := svc.ListItems(ctx, ItemFilter{Category: "dresses"}, pagination.Params{Limit: 2, Direction: pagination.Asc})
	require.NoError(t, err)
	require.Len(t, first.Items, 2)
	require.NotEmpty(t, first.NextCursor)

	second, err := svc.ListItems(ctx, ItemFilter{Category: "dresses"}, pagination.Params{Limit: 2, Cursor: first.NextCursor, Direction: pagination.Asc})
	require.NoError(t, err)
	require.Len(t, second.Items, 1)
	assert.Empty(t, second.NextCursor)
	assert.NotEqual(t, first.Items[0].ID, second.Items[0].ID)
	assert.NotEqual(t, first.Items[1].ID, second.Items[0].ID)

	byTag, err := svc.ListItems(ctx, ItemFilter{Tag: "summer"}, pagination.Params{})
	require.NoError(t, err)
	require.Len(t, byTag.Items, 1)
	assert.Equal(t, "Linen suit", byTag.Items[0].Title)

	byQuery, err := svc.ListItems(ctx, ItemFilter{Query: "LINEN"}, pagination.Params{})
	require.NoError(t, err)
	assert.Len(t, byQuery.Items, 1)

	_, err = svc.ListItems(ctx, ItemFilter{}, pagination.Params{Cursor: "not-base64!"})
	assertCode(t, err, pkgerrors.CodeValidation)
}

func TestDeleteItemArchivesWhenReferenced(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()

	free, _ := dbtest.SeedVariant(t, conn, dbtest.VariantSpec{Stock: 1})
	used, variant := dbtest.SeedVariant(t, conn, dbtest.VariantSpec{Stock: 1})
	seedOrderLine(t, conn, variant, enums.OrderStatusBooked)

	archived, err := svc.DeleteItem(ctx, free.ID)
	require.NoError(t, err)
	assert.False(t, archived)
	_, err = svc.GetItem(ctx, free.ID)
	assertCode(t, err, pkgerrors.CodeNotFound)

	archived, err = svc.DeleteItem(ctx, used.ID)
	require.NoError(t, err)
	assert.True(t, archived)

	var stored models.Item
	require.NoError(t, conn.First(&stored, "id = ?", used.ID).Error)
	assert.True(t, stored.IsArchived)

	page, err := svc.ListItems(ctx, ItemFilter{}, pagination.Params{})
	require.NoError(t, err)
	assert.Empty(t, page.Items)
}

func TestDeleteVariantArchivesWhenReferenced(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()

	_, free := dbtest.SeedVariant(t, conn, dbtest.VariantSpec{Stock: 1})
	_, used := dbtest.SeedVariant(t, conn, dbtest.VariantSpec{Stock: 1})
	seedOrderLine(t, conn, used, enums.OrderStatusDone)

	archived, err := svc.DeleteVariant(ctx, free.ID)
	require.NoError(t, err)
	assert.False(t, archived)

	archived, err = svc.DeleteVariant(ctx, used.ID)
	require.NoError(t, err)
	assert.True(t, archived)

	got, err := svc.GetVariant(ctx, used.ID)
	require.NoError(t, err)
	assert.True(t, got.IsArchived)
}

func TestUpdateVariantPricesHonorsLockedTiers(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()

	_, variant := dbtest.SeedVariant(t, conn, dbtest.VariantSpec{Stock: 1, Price: "100"})
	priceID := variant.Prices[0].ID

	// An open booking does not freeze the tier.
	seedOrderLine(t, conn, variant, enums.OrderStatusBooked)
	prices := []PriceInput{{ID: &priceID, Amount: decimal.NewFromInt(120), Deposit: decimal.NewFromInt(50), PriceType: "daily"}}
	updated, err := svc.UpdateVariant(ctx, variant.ID, UpdateVariantInput{Size: strPtr("XL"), Prices: &prices})
	require.NoError(t, err)
	assert.Equal(t, "XL", updated.Size)
	require.Len(t, updated.Prices, 1)
	assert.True(t, updated.Prices[0].Amount.Equal(decimal.NewFromInt(120)))

	seedOrderLine(t, conn, variant, enums.OrderStatusIssued)

	changed := []PriceInput{{ID: &priceID, Amount: decimal.NewFromInt(130), Deposit: decimal.NewFromInt(50), PriceType: "daily"}}
	_, err = svc.UpdateVariant(ctx, variant.ID, UpdateVariantInput{Prices: &changed})
	assertCode(t, err, pkgerrors.CodeStateConflict)

	dropped := []PriceInput{{Amount: decimal.NewFromInt(700), PriceType: "weekly"}}
	_, err = svc.UpdateVariant(ctx, variant.ID, UpdateVariantInput{Prices: &dropped})
	assertCode(t, err, pkgerrors.CodeStateConflict)

	// Keeping the locked tier unchanged while adding a new one is fine.
	extended := []PriceInput{
		{ID: &priceID, Amount: decimal.NewFromInt(120), Deposit: decimal.NewFromInt(50), PriceType: "daily"},
		{Amount: decimal.NewFromInt(700), PriceType: "weekly"},
	}
	updated, err = svc.UpdateVariant(ctx, variant.ID, UpdateVariantInput{Prices: &extended})
	require.NoError(t, err)
	assert.Len(t, updated.Prices, 2)
}

func TestUpdateVariantRejectsNegativePrice(t *testing.T) {
	svc, conn := newTestService(t)
	_, variant := dbtest.SeedVariant(t, conn, dbtest.VariantSpec{Stock: 1})

	prices := []PriceInput{{Amount: decimal.NewFromInt(-1), PriceType: "daily"}}
	_, err := svc.UpdateVariant(context.Background(), variant.ID, UpdateVariantInput{Prices: &prices})
	assertCode(t, err, pkgerrors.CodeValidation)
}

func TestUpdateVariantStock(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()
	_, variant := dbtest.SeedVariant(t, conn, dbtest.VariantSpec{Stock: 2})

	got, err := svc.UpdateVariantStock(ctx, variant.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, 5, got.StockQuantity)

	got, err = svc.UpdateVariantStock(ctx, variant.ID, -5)
	require.NoError(t, err)
	assert.Equal(t, 0, got.StockQuantity)

	_, err = svc.UpdateVariantStock(ctx, variant.ID, -1)
	assertCode(t, err, pkgerrors.CodeInsufficientStock)

	_, err = svc.UpdateVariantStock(ctx, uuid.New(), 1)
	assertCode(t, err, pkgerrors.CodeNotFound)
}

func TestUpdateVariantStockFailsFastWhenLocked(t *testing.T) {
	conn := dbtest.Open(t)
	locker := locks.NewLocal(10 * time.Millisecond)
	svc, err := NewService(NewRepository(conn), db.Wrap(conn), locker)
	require.NoError(t, err)
	_, variant := dbtest.SeedVariant(t, conn, dbtest.VariantSpec{Stock: 1})

	release, err := locker.Acquire(context.Background(), variant.ID.String())
	require.NoError(t, err)
	defer release()

	_, err = svc.UpdateVariantStock(context.Background(), variant.ID, 1)
	assertCode(t, err, pkgerrors.CodeConflict)
}

func TestListDistinct(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()

	dbtest.SeedVariant(t, conn, dbtest.VariantSpec{Stock: 1})
	_, err := svc.CreateItem(ctx, CreateItemInput{
		Title:    "Blazer",
		Category: "jackets",
		Variants: []VariantInput{{Size: "L", Color: "navy"}},
	})
	require.NoError(t, err)

	categories, err := svc.ListDistinct(ctx, FacetCategories)
	require.NoError(t, err)
	assert.Equal(t, []string{"dresses", "jackets"}, categories)

	sizes, err := svc.ListDistinct(ctx, FacetSizes)
	require.NoError(t, err)
	assert.Equal(t, []string{"L", "M"}, sizes)

	statuses, err := svc.ListDistinct(ctx, FacetVariantStatuses)
	require.NoError(t, err)
	assert.Equal(t, []string{"available", "repair", "cleaning", "unavailable"}, statuses)

	_, err = svc.ListDistinct(ctx, Facet("price"))
	assertCode(t, err, pkgerrors.CodeValidation)
}

func TestParseFacet(t *testing.T) {
	f, ok := ParseFacet(" Colors ")
	assert.True(t, ok)
	assert.Equal(t, FacetColors, f)
	_, ok = ParseFacet("owners")
	assert.False(t, ok)
}

func seedOrderLine(t *testing.T, conn *gorm.DB, variant *models.Variant, status enums.OrderStatus) {
	t.Helper()
	client := dbtest.SeedClient(t, conn, 0)
	start := types.NewDate(2025, time.March, 1)
	priceID := variant.Prices[0].ID
	order := &models.Order{
		ClientID:  client.ID,
		Status:    status,
		StartDate: start,
		EndDate:   start.AddDays(2),
		Lines: []models.OrderLine{{
			ItemID:    variant.ItemID,
			VariantID: variant.ID,
			PriceID:   &priceID,
			Price:     variant.Prices[0].Amount,
			Quantity:  1,
		}},
	}
	require.NoError(t, conn.Create(order).Error)
}

func TestListItemsFiltersByVariantAttributes(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	create := func(title, size, color string, status enums.VariantStatus) {
		_, err := svc.CreateItem(ctx, CreateItemInput{
			Title:    title,
			Category: "dresses",
			Variants: []VariantInput{{Size: size, Color: color, StockQuantity: 1, Status: status}},
		})
		require.NoError(t, err)
	}
	create("Red gown", "S", "Red", enums.VariantStatusAvailable)
	create("Red midi", "M", "red", enums.VariantStatusUnavailable)
	create("Blue gown", "S", "blue", enums.VariantStatusAvailable)

	titles := func(filter ItemFilter) []string {
		page, err := svc.ListItems(ctx, filter, pagination.Params{SortBy: "title", Direction: pagination.Asc})
		require.NoError(t, err)
		out := make([]string, 0, len(page.Items))
		for _, item := range page.Items {
			out = append(out, item.Title)
		}
		return out
	}

	assert.Equal(t, []string{"Red gown", "Red midi"}, titles(ItemFilter{Color: "RED"}))
	assert.Equal(t, []string{"Blue gown", "Red gown"}, titles(ItemFilter{Size: "s"}))
	assert.Equal(t, []string{"Red gown"}, titles(ItemFilter{Color: "red", Size: "S"}))
	assert.Equal(t, []string{"Red midi"}, titles(ItemFilter{VariantStatus: enums.VariantStatusUnavailable}))

	_, err := svc.ListItems(ctx, ItemFilter{VariantStatus: "broken"}, pagination.Params{})
	assertCode(t, err, pkgerrors.CodeValidation)
}

func TestListItemsSortsByTitleAcrossPages(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	for _, title := range []string{"Cape", "Ascot", "Bolero", "Dhoti"} {
		_, err := svc.CreateItem(ctx, CreateItemInput{Title: title, Category: "misc"})
		require.NoError(t, err)
	}

	params := pagination.Params{Limit: 3, SortBy: "title", Direction: pagination.Asc}
	first, err := svc.ListItems(ctx, ItemFilter{}, params)
	require.NoError(t, err)
	require.Len(t, first.Items, 3)
	assert.Equal(t, "Ascot", first.Items[0].Title)
	assert.Equal(t, "Cape", first.Items[2].Title)
	require.NotEmpty(t, first.NextCursor)

	params.Cursor = first.NextCursor
	second, err := svc.ListItems(ctx, ItemFilter{}, params)
	require.NoError(t, err)
	require.Len(t, second.Items, 1)
	assert.Equal(t, "Dhoti", second.Items[0].Title)

	desc, err := svc.ListItems(ctx, ItemFilter{}, pagination.Params{SortBy: "title", Direction: pagination.Desc})
	require.NoError(t, err)
	assert.Equal(t, "Dhoti", desc.Items[0].Title)

	_, err = svc.ListItems(ctx, ItemFilter{}, pagination.Params{SortBy: "price; --"})
	assertCode(t, err, pkgerrors.CodeValidation)
}
