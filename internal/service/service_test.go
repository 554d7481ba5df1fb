package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"milkledger/backend/internal/cache"
	"milkledger/backend/internal/domain"
	"milkledger/backend/internal/store"
	"milkledger/backend/internal/store/memory"
)

func newTestService() *Service {
	return New(memory.New(), cache.NoopStockReportCache{}, 5*time.Second, decimal.NewFromInt(2))
}

func adminCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{Username: "admin", Role: "admin"})
}

func dec(t *testing.T, value string) decimal.Decimal {
	t.Helper()
	parsed, err := decimal.NewFromString(value)
	if err != nil {
		t.Fatalf("parse decimal %q: %v", value, err)
	}
	return parsed
}

func mustProduct(t *testing.T, svc *Service, name string, unit string, basePrice string) domain.Product {
	t.Helper()
	product, err := svc.CreateProduct(adminCtx(), domain.ProductCreateRequest{
		Name:      name,
		Unit:      unit,
		BasePrice: dec(t, basePrice),
	})
	if err != nil {
		t.Fatalf("create product %s: %v", name, err)
	}
	return product
}

func mustCustomer(t *testing.T, svc *Service, name string) domain.Customer {
	t.Helper()
	customer, err := svc.CreateCustomer(adminCtx(), domain.CustomerCreateRequest{Name: name})
	if err != nil {
		t.Fatalf("create customer %s: %v", name, err)
	}
	return customer
}

func TestUpsertDailySaleCreatesThenReplaces(t *testing.T) {
	svc := newTestService()
	ctx := adminCtx()
	milk := mustProduct(t, svc, "Cow Milk", "litre", "54.00")
	curd := mustProduct(t, svc, "Curd", "kg", "70.00")
	shop := mustCustomer(t, svc, "Daily Needs Store")

	first, err := svc.UpsertDailySale(ctx, shop.ID, "2026-08-01", []domain.SaleLine{
		{ProductID: milk.ID, Quantity: dec(t, "2.5"), Price: dec(t, "54.00")},
		{ProductID: curd.ID, Quantity: dec(t, "1"), Price: dec(t, "70.00")},
	})
	if err != nil {
		t.Fatalf("first upsert failed: %v", err)
	}
	if want := dec(t, "205.00"); !first.Total.Equal(want) {
		t.Fatalf("expected total %s, got %s", want, first.Total)
	}
	if len(first.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(first.Items))
	}

	second, err := svc.UpsertDailySale(ctx, shop.ID, "2026-08-01", []domain.SaleLine{
		{ProductID: milk.ID, Quantity: dec(t, "3"), Price: dec(t, "54.00")},
	})
	if err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("expected sale row to be reused, got id %d then %d", first.ID, second.ID)
	}
	if want := dec(t, "162.00"); !second.Total.Equal(want) {
		t.Fatalf("expected replaced total %s, got %s", want, second.Total)
	}
	if len(second.Items) != 1 {
		t.Fatalf("expected old items replaced, got %d items", len(second.Items))
	}

	stored, err := svc.GetDailySale(ctx, shop.ID, "2026-08-01")
	if err != nil {
		t.Fatalf("get sale failed: %v", err)
	}
	if len(stored.Items) != 1 || !stored.Items[0].Quantity.Equal(dec(t, "3")) {
		t.Fatalf("stored items do not match last upsert: %+v", stored.Items)
	}
}

func TestUpsertDailySaleIdempotent(t *testing.T) {
	svc := newTestService()
	ctx := adminCtx()
	milk := mustProduct(t, svc, "Cow Milk", "litre", "54.00")
	stall := mustCustomer(t, svc, "Sharma Tea Stall")

	lines := []domain.SaleLine{{ProductID: milk.ID, Quantity: dec(t, "4"), Price: dec(t, "50.00")}}
	first, err := svc.UpsertDailySale(ctx, stall.ID, "2026-08-02", lines)
	if err != nil {
		t.Fatalf("first upsert failed: %v", err)
	}
	second, err := svc.UpsertDailySale(ctx, stall.ID, "2026-08-02", lines)
	if err != nil {
		t.Fatalf("repeat upsert failed: %v", err)
	}

	if first.ID != second.ID {
		t.Fatalf("expected single sale row per customer and date")
	}
	if !first.Total.Equal(second.Total) || len(first.Items) != len(second.Items) {
		t.Fatalf("repeat upsert changed the outcome: %+v vs %+v", first, second)
	}

	levels, err := svc.CurrentStock(ctx)
	if err != nil {
		t.Fatalf("stock failed: %v", err)
	}
	if want := dec(t, "-4"); !levels[0].Stock.Equal(want) {
		t.Fatalf("expected sold quantity counted once, got stock %s", levels[0].Stock)
	}
}

func TestUpsertDailySaleEmptyBatchZeroesDay(t *testing.T) {
	svc := newTestService()
	ctx := adminCtx()
	milk := mustProduct(t, svc, "Cow Milk", "litre", "54.00")
	shop := mustCustomer(t, svc, "Daily Needs Store")

	seeded, err := svc.UpsertDailySale(ctx, shop.ID, "2026-08-03", []domain.SaleLine{
		{ProductID: milk.ID, Quantity: dec(t, "5"), Price: dec(t, "54.00")},
	})
	if err != nil {
		t.Fatalf("seed upsert failed: %v", err)
	}

	zeroed, err := svc.UpsertDailySale(ctx, shop.ID, "2026-08-03", nil)
	if err != nil {
		t.Fatalf("empty upsert failed: %v", err)
	}
	if !zeroed.Total.IsZero() {
		t.Fatalf("expected zero total, got %s", zeroed.Total)
	}
	if len(zeroed.Items) != 0 {
		t.Fatalf("expected no items, got %d", len(zeroed.Items))
	}

	// The sale row itself survives: "bought nothing today" is a recorded
	// state, not the same as no record at all.
	stored, err := svc.GetDailySale(ctx, shop.ID, "2026-08-03")
	if err != nil {
		t.Fatalf("expected zeroed sale row to remain readable, got %v", err)
	}
	if stored.ID != seeded.ID {
		t.Fatalf("expected sale row %d to be kept, got %d", seeded.ID, stored.ID)
	}
	if !stored.Total.IsZero() || len(stored.Items) != 0 {
		t.Fatalf("expected stored zeroed sale, got %+v", stored)
	}
}

func TestUpsertDailySaleRejectsNegativeLines(t *testing.T) {
	svc := newTestService()
	ctx := adminCtx()
	milk := mustProduct(t, svc, "Cow Milk", "litre", "54.00")
	shop := mustCustomer(t, svc, "Daily Needs Store")

	_, err := svc.UpsertDailySale(ctx, shop.ID, "2026-08-03", []domain.SaleLine{
		{ProductID: milk.ID, Quantity: dec(t, "-1"), Price: dec(t, "54.00")},
	})
	if !errors.Is(err, store.ErrInvalidEntry) {
		t.Fatalf("expected ErrInvalidEntry for negative quantity, got %v", err)
	}

	_, err = svc.UpsertDailySale(ctx, shop.ID, "bad-date", nil)
	if !errors.Is(err, store.ErrInvalidEntry) {
		t.Fatalf("expected ErrInvalidEntry for malformed date, got %v", err)
	}
}

func TestUpsertIncomingOverwritesSameDay(t *testing.T) {
	svc := newTestService()
	ctx := adminCtx()
	milk := mustProduct(t, svc, "Cow Milk", "litre", "54.00")

	if _, err := svc.UpsertIncoming(ctx, "2026-08-04", []domain.IncomingLine{
		{ProductID: milk.ID, StockIn: dec(t, "30")},
	}); err != nil {
		t.Fatalf("first incoming failed: %v", err)
	}
	if _, err := svc.UpsertIncoming(ctx, "2026-08-04", []domain.IncomingLine{
		{ProductID: milk.ID, StockIn: dec(t, "25")},
	}); err != nil {
		t.Fatalf("second incoming failed: %v", err)
	}

	entries, err := svc.ListIncomingByDate(ctx, "2026-08-04")
	if err != nil {
		t.Fatalf("list incoming failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected one intake row per product and date, got %d", len(entries))
	}
	if want := dec(t, "25"); !entries[0].StockIn.Equal(want) {
		t.Fatalf("expected last write %s to win, got %s", want, entries[0].StockIn)
	}
}

func TestCurrentStockAggregation(t *testing.T) {
	svc := newTestService()
	ctx := adminCtx()
	milk := mustProduct(t, svc, "Cow Milk", "litre", "54.00")
	curd := mustProduct(t, svc, "Curd", "kg", "70.00")
	shop := mustCustomer(t, svc, "Daily Needs Store")
	stall := mustCustomer(t, svc, "Sharma Tea Stall")

	for _, day := range []string{"2026-08-05", "2026-08-06"} {
		if _, err := svc.UpsertIncoming(ctx, day, []domain.IncomingLine{
			{ProductID: milk.ID, StockIn: dec(t, "20")},
		}); err != nil {
			t.Fatalf("incoming %s failed: %v", day, err)
		}
	}
	if _, err := svc.UpsertDailySale(ctx, shop.ID, "2026-08-05", []domain.SaleLine{
		{ProductID: milk.ID, Quantity: dec(t, "12.5"), Price: dec(t, "54.00")},
	}); err != nil {
		t.Fatalf("sale failed: %v", err)
	}
	if _, err := svc.UpsertDailySale(ctx, stall.ID, "2026-08-06", []domain.SaleLine{
		{ProductID: milk.ID, Quantity: dec(t, "10"), Price: dec(t, "50.00")},
		{ProductID: curd.ID, Quantity: dec(t, "3"), Price: dec(t, "70.00")},
	}); err != nil {
		t.Fatalf("sale failed: %v", err)
	}

	levels, err := svc.CurrentStock(ctx)
	if err != nil {
		t.Fatalf("stock failed: %v", err)
	}

	byName := map[string]decimal.Decimal{}
	for _, level := range levels {
		byName[level.Name] = level.Stock
	}
	if want := dec(t, "17.5"); !byName["Cow Milk"].Equal(want) {
		t.Fatalf("expected milk stock %s, got %s", want, byName["Cow Milk"])
	}
	// Oversold with no recorded intake: reported negative, never clamped.
	if want := dec(t, "-3"); !byName["Curd"].Equal(want) {
		t.Fatalf("expected curd stock %s, got %s", want, byName["Curd"])
	}
}

func TestLeftoverAsOfInclusiveCutoff(t *testing.T) {
	svc := newTestService()
	ctx := adminCtx()
	milk := mustProduct(t, svc, "Cow Milk", "litre", "54.00")
	shop := mustCustomer(t, svc, "Daily Needs Store")

	days := []struct {
		date    string
		stockIn string
		sold    string
	}{
		{"2026-08-10", "20", "15"},
		{"2026-08-11", "20", "18"},
		{"2026-08-12", "20", "5"},
	}
	for _, day := range days {
		if _, err := svc.UpsertIncoming(ctx, day.date, []domain.IncomingLine{
			{ProductID: milk.ID, StockIn: dec(t, day.stockIn)},
		}); err != nil {
			t.Fatalf("incoming %s failed: %v", day.date, err)
		}
		if _, err := svc.UpsertDailySale(ctx, shop.ID, day.date, []domain.SaleLine{
			{ProductID: milk.ID, Quantity: dec(t, day.sold), Price: dec(t, "54.00")},
		}); err != nil {
			t.Fatalf("sale %s failed: %v", day.date, err)
		}
	}

	// Cutoff day rows count; the 2026-08-12 rows must not.
	leftover, err := svc.LeftoverAsOf(ctx, "2026-08-11")
	if err != nil {
		t.Fatalf("leftover failed: %v", err)
	}
	if want := dec(t, "7"); !leftover[0].Leftover.Equal(want) {
		t.Fatalf("expected leftover %s as of 2026-08-11, got %s", want, leftover[0].Leftover)
	}
}

func TestInventorySummaryThresholdInclusive(t *testing.T) {
	svc := newTestService()
	ctx := adminCtx()
	milk := mustProduct(t, svc, "Cow Milk", "litre", "54.00")
	curd := mustProduct(t, svc, "Curd", "kg", "70.00")
	mustProduct(t, svc, "Ghee", "kg", "560.00")

	if _, err := svc.UpsertIncoming(ctx, "2026-08-13", []domain.IncomingLine{
		{ProductID: milk.ID, StockIn: dec(t, "2")},
		{ProductID: curd.ID, StockIn: dec(t, "9")},
	}); err != nil {
		t.Fatalf("incoming failed: %v", err)
	}

	summary, err := svc.InventorySummary(ctx, nil)
	if err != nil {
		t.Fatalf("summary failed: %v", err)
	}
	if summary.TotalProducts != 3 {
		t.Fatalf("expected 3 products, got %d", summary.TotalProducts)
	}
	// Milk sits exactly at the default threshold of 2 and ghee has no
	// rows at all; both are low. Curd is comfortably above.
	if summary.LowStockCount != 2 {
		t.Fatalf("expected 2 low-stock products, got %d", summary.LowStockCount)
	}

	custom := dec(t, "9")
	summary, err = svc.InventorySummary(ctx, &custom)
	if err != nil {
		t.Fatalf("summary with threshold failed: %v", err)
	}
	if summary.LowStockCount != 3 {
		t.Fatalf("expected inclusive threshold to flag all 3, got %d", summary.LowStockCount)
	}
}

func TestResolvePricePrecedence(t *testing.T) {
	svc := newTestService()
	ctx := adminCtx()
	milk := mustProduct(t, svc, "Cow Milk", "litre", "54.00")
	shop := mustCustomer(t, svc, "Daily Needs Store")

	resolved, err := svc.ResolvePrice(ctx, shop.ID, milk.ID)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if resolved.IsCustom || !resolved.Price.Equal(dec(t, "54.00")) {
		t.Fatalf("expected base price without override, got %+v", resolved)
	}

	if err := svc.SetCustomerPrice(ctx, shop.ID, milk.ID, dec(t, "50.00")); err != nil {
		t.Fatalf("set override failed: %v", err)
	}
	resolved, err = svc.ResolvePrice(ctx, shop.ID, milk.ID)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if !resolved.IsCustom || !resolved.Price.Equal(dec(t, "50.00")) {
		t.Fatalf("expected override to win, got %+v", resolved)
	}

	if err := svc.ClearCustomerPrice(ctx, shop.ID, milk.ID); err != nil {
		t.Fatalf("clear override failed: %v", err)
	}
	resolved, err = svc.ResolvePrice(ctx, shop.ID, milk.ID)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if resolved.IsCustom || !resolved.Price.Equal(dec(t, "54.00")) {
		t.Fatalf("expected base price after clearing, got %+v", resolved)
	}

	if _, err := svc.ResolvePrice(ctx, shop.ID, milk.ID+99); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown product, got %v", err)
	}
}

func TestListProductsForCustomerMarksOverrides(t *testing.T) {
	svc := newTestService()
	ctx := adminCtx()
	milk := mustProduct(t, svc, "Cow Milk", "litre", "54.00")
	mustProduct(t, svc, "Curd", "kg", "70.00")
	stall := mustCustomer(t, svc, "Sharma Tea Stall")

	if err := svc.SetCustomerPrice(ctx, stall.ID, milk.ID, dec(t, "48.00")); err != nil {
		t.Fatalf("set override failed: %v", err)
	}

	rates, err := svc.ListProductsForCustomer(ctx, stall.ID)
	if err != nil {
		t.Fatalf("list rates failed: %v", err)
	}
	if len(rates) != 2 {
		t.Fatalf("expected 2 rates, got %d", len(rates))
	}
	for _, rate := range rates {
		switch rate.ID {
		case milk.ID:
			if !rate.IsCustom || !rate.EffectiveRate.Equal(dec(t, "48.00")) {
				t.Fatalf("expected custom milk rate, got %+v", rate)
			}
		default:
			if rate.IsCustom || !rate.EffectiveRate.Equal(rate.BasePrice) {
				t.Fatalf("expected base rate, got %+v", rate)
			}
		}
	}
}

func TestIncomingPrefillPrefersRecordedIntake(t *testing.T) {
	svc := newTestService()
	ctx := adminCtx()
	milk := mustProduct(t, svc, "Cow Milk", "litre", "54.00")
	curd := mustProduct(t, svc, "Curd", "kg", "70.00")
	shop := mustCustomer(t, svc, "Daily Needs Store")

	if _, err := svc.UpsertIncoming(ctx, "2026-08-20", []domain.IncomingLine{
		{ProductID: milk.ID, StockIn: dec(t, "20")},
		{ProductID: curd.ID, StockIn: dec(t, "6")},
	}); err != nil {
		t.Fatalf("incoming failed: %v", err)
	}
	if _, err := svc.UpsertDailySale(ctx, shop.ID, "2026-08-20", []domain.SaleLine{
		{ProductID: milk.ID, Quantity: dec(t, "14"), Price: dec(t, "54.00")},
	}); err != nil {
		t.Fatalf("sale failed: %v", err)
	}
	if _, err := svc.UpsertIncoming(ctx, "2026-08-21", []domain.IncomingLine{
		{ProductID: curd.ID, StockIn: dec(t, "5")},
	}); err != nil {
		t.Fatalf("incoming failed: %v", err)
	}

	entries, err := svc.IncomingPrefill(ctx, "2026-08-21")
	if err != nil {
		t.Fatalf("prefill failed: %v", err)
	}

	byProduct := map[int64]domain.PrefillEntry{}
	for _, entry := range entries {
		byProduct[entry.ProductID] = entry
	}
	// Milk has no intake on the 21st, so yesterday's leftover seeds it.
	if entry := byProduct[milk.ID]; entry.FromIncoming || !entry.Quantity.Equal(dec(t, "6")) {
		t.Fatalf("expected milk prefill from leftover, got %+v", entry)
	}
	// Curd was already recorded for the 21st; that row wins.
	if entry := byProduct[curd.ID]; !entry.FromIncoming || !entry.Quantity.Equal(dec(t, "5")) {
		t.Fatalf("expected curd prefill from intake, got %+v", entry)
	}
}

func TestArchiveAndDeleteProduct(t *testing.T) {
	svc := newTestService()
	ctx := adminCtx()
	milk := mustProduct(t, svc, "Cow Milk", "litre", "54.00")
	spare := mustProduct(t, svc, "Butter", "pack", "60.00")
	shop := mustCustomer(t, svc, "Daily Needs Store")

	if _, err := svc.UpsertDailySale(ctx, shop.ID, "2026-08-22", []domain.SaleLine{
		{ProductID: milk.ID, Quantity: dec(t, "1"), Price: dec(t, "54.00")},
	}); err != nil {
		t.Fatalf("sale failed: %v", err)
	}

	if err := svc.DeleteProduct(ctx, milk.ID); !errors.Is(err, store.ErrProductReferenced) {
		t.Fatalf("expected ErrProductReferenced, got %v", err)
	}

	if _, err := svc.SetProductArchived(ctx, milk.ID, true); err != nil {
		t.Fatalf("archive failed: %v", err)
	}
	products, err := svc.ListProducts(ctx, false)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	for _, p := range products {
		if p.ID == milk.ID {
			t.Fatalf("archived product still listed")
		}
	}
	levels, err := svc.CurrentStock(ctx)
	if err != nil {
		t.Fatalf("stock failed: %v", err)
	}
	for _, level := range levels {
		if level.ProductID == milk.ID {
			t.Fatalf("archived product still in stock report")
		}
	}

	if err := svc.DeleteProduct(ctx, spare.ID); err != nil {
		t.Fatalf("expected unreferenced product to delete, got %v", err)
	}
}

func TestMutationsRequireAdminRole(t *testing.T) {
	svc := newTestService()
	clerk := WithActor(context.Background(), domain.Actor{Username: "clerk", Role: "clerk"})

	if _, err := svc.CreateProduct(clerk, domain.ProductCreateRequest{Name: "Kefir", Unit: "bottle"}); !errors.Is(err, ErrAdminRequired) {
		t.Fatalf("expected ErrAdminRequired for product create, got %v", err)
	}
	if _, err := svc.CreateCustomer(context.Background(), domain.CustomerCreateRequest{Name: "X"}); !errors.Is(err, ErrAdminRequired) {
		t.Fatalf("expected ErrAdminRequired without an actor, got %v", err)
	}
	if err := svc.SetCustomerPrice(clerk, 1, 1, decimal.NewFromInt(1)); !errors.Is(err, ErrAdminRequired) {
		t.Fatalf("expected ErrAdminRequired for price override, got %v", err)
	}
}

func TestRecordPaymentValidation(t *testing.T) {
	svc := newTestService()
	ctx := adminCtx()
	shop := mustCustomer(t, svc, "Daily Needs Store")

	if _, err := svc.RecordPayment(ctx, domain.PaymentCreateRequest{
		CustomerID: shop.ID,
		Amount:     decimal.Zero,
		Date:       "2026-08-23",
	}); !errors.Is(err, store.ErrInvalidEntry) {
		t.Fatalf("expected zero amount to be rejected, got %v", err)
	}

	created, err := svc.RecordPayment(ctx, domain.PaymentCreateRequest{
		CustomerID: shop.ID,
		Amount:     dec(t, "500.00"),
		Date:       "2026-08-23",
	})
	if err != nil {
		t.Fatalf("record payment failed: %v", err)
	}

	payments, err := svc.ListPayments(ctx, shop.ID, 10)
	if err != nil {
		t.Fatalf("list payments failed: %v", err)
	}
	if len(payments) != 1 || payments[0].ID != created.ID {
		t.Fatalf("expected recorded payment in list, got %+v", payments)
	}

	if err := svc.DeletePayment(ctx, created.ID); err != nil {
		t.Fatalf("delete payment failed: %v", err)
	}
	if err := svc.DeletePayment(ctx, created.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for repeated delete, got %v", err)
	}
}

func TestListPaymentsOrdering(t *testing.T) {
	svc := newTestService()
	ctx := adminCtx()
	shop := mustCustomer(t, svc, "Daily Needs Store")

	dates := []string{"2026-08-20", "2026-08-22", "2026-08-22"}
	ids := make([]int64, 0, len(dates))
	for _, date := range dates {
		p, err := svc.RecordPayment(ctx, domain.PaymentCreateRequest{
			CustomerID: shop.ID,
			Amount:     dec(t, "100.00"),
			Date:       date,
		})
		if err != nil {
			t.Fatalf("record payment failed: %v", err)
		}
		ids = append(ids, p.ID)
	}

	payments, err := svc.ListPayments(ctx, shop.ID, 10)
	if err != nil {
		t.Fatalf("list payments failed: %v", err)
	}
	if len(payments) != 3 {
		t.Fatalf("expected 3 payments, got %d", len(payments))
	}
	// Newest date first, then newest id within the same date.
	if payments[0].ID != ids[2] || payments[1].ID != ids[1] || payments[2].ID != ids[0] {
		t.Fatalf("unexpected ordering: %+v", payments)
	}
}

// countingCache records invalidations so the write paths can be checked
// without a real redis.
type countingCache struct {
	cache.NoopStockReportCache
	invalidations int
}

func (c *countingCache) Invalidate(_ context.Context, _ string) error {
	c.invalidations++
	return nil
}

func TestWritePathsInvalidateStockCache(t *testing.T) {
	counting := &countingCache{}
	svc := New(memory.New(), counting, 5*time.Second, decimal.NewFromInt(2))
	ctx := adminCtx()

	milk := mustProduct(t, svc, "Cow Milk", "litre", "54.00")
	shop := mustCustomer(t, svc, "Daily Needs Store")
	before := counting.invalidations

	if _, err := svc.UpsertIncoming(ctx, "2026-08-24", []domain.IncomingLine{
		{ProductID: milk.ID, StockIn: dec(t, "10")},
	}); err != nil {
		t.Fatalf("incoming failed: %v", err)
	}
	if _, err := svc.UpsertDailySale(ctx, shop.ID, "2026-08-24", []domain.SaleLine{
		{ProductID: milk.ID, Quantity: dec(t, "2"), Price: dec(t, "54.00")},
	}); err != nil {
		t.Fatalf("sale failed: %v", err)
	}

	if got := counting.invalidations - before; got != 2 {
		t.Fatalf("expected 2 cache invalidations, got %d", got)
	}

	// Renames flow into cached stock rows, so they flush too.
	before = counting.invalidations
	newName := "Full Cream Milk"
	if _, err := svc.UpdateProduct(ctx, milk.ID, domain.ProductUpdateRequest{Name: &newName}); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if got := counting.invalidations - before; got != 1 {
		t.Fatalf("expected rename to invalidate the cache, got %d", got)
	}
}
