package service

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"milkledger/backend/internal/cache"
	"milkledger/backend/internal/domain"
	"milkledger/backend/internal/store"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

const stockCacheKey = "inventory:stock"

type Service struct {
	repo              store.Repository
	stockCache        cache.StockReportCache
	stockCacheTTL     time.Duration
	lowStockThreshold decimal.Decimal
}

func New(repo store.Repository, stockCache cache.StockReportCache, stockCacheTTL time.Duration, lowStockThreshold decimal.Decimal) *Service {
	if stockCache == nil {
		stockCache = cache.NoopStockReportCache{}
	}
	if stockCacheTTL <= 0 {
		stockCacheTTL = 30 * time.Second
	}
	if lowStockThreshold.IsNegative() || lowStockThreshold.IsZero() {
		lowStockThreshold = decimal.NewFromInt(2)
	}

	return &Service{
		repo:              repo,
		stockCache:        stockCache,
		stockCacheTTL:     stockCacheTTL,
		lowStockThreshold: lowStockThreshold,
	}
}

// ErrAdminRequired marks operations refused because the acting user is
// not an admin.
var ErrAdminRequired = errors.New("admin role required")

func requireAdmin(ctx context.Context) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return ErrAdminRequired
	}
	return nil
}

func validDate(date string) bool {
	_, err := time.Parse(domain.DateLayout, date)
	return err == nil
}

func (s *Service) ListProducts(ctx context.Context, includeArchived bool) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx, includeArchived)
}

func (s *Service) GetProduct(ctx context.Context, id int64) (domain.Product, error) {
	if id < 1 {
		return domain.Product{}, store.ErrInvalidEntry
	}
	product, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}
	return *product, nil
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Product{}, err
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Unit = strings.TrimSpace(req.Unit)
	if req.Name == "" || req.Unit == "" || req.BasePrice.IsNegative() {
		return domain.Product{}, store.ErrInvalidEntry
	}

	created, err := s.repo.CreateProduct(ctx, domain.Product{
		Name:      req.Name,
		Unit:      req.Unit,
		BasePrice: req.BasePrice,
	})
	if err != nil {
		return domain.Product{}, err
	}

	s.invalidateStockCache(ctx)
	return *created, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id int64, req domain.ProductUpdateRequest) (domain.Product, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Product{}, err
	}
	if id < 1 {
		return domain.Product{}, store.ErrInvalidEntry
	}

	existing, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}

	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Product{}, store.ErrInvalidEntry
		}
		updated.Name = name
	}
	if req.Unit != nil {
		unit := strings.TrimSpace(*req.Unit)
		if unit == "" {
			return domain.Product{}, store.ErrInvalidEntry
		}
		updated.Unit = unit
	}
	if req.BasePrice != nil {
		if req.BasePrice.IsNegative() {
			return domain.Product{}, store.ErrInvalidEntry
		}
		updated.BasePrice = *req.BasePrice
	}

	saved, err := s.repo.UpdateProduct(ctx, updated)
	if err != nil {
		return domain.Product{}, err
	}

	// Cached stock rows carry the product name and unit.
	s.invalidateStockCache(ctx)
	return *saved, nil
}

// SetProductArchived hides or restores a product. Archived products drop
// out of listings and stock reports but keep their historical sale and
// intake rows.
func (s *Service) SetProductArchived(ctx context.Context, id int64, archived bool) (domain.Product, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Product{}, err
	}
	if id < 1 {
		return domain.Product{}, store.ErrInvalidEntry
	}

	saved, err := s.repo.SetProductArchived(ctx, id, archived)
	if err != nil {
		return domain.Product{}, err
	}

	s.invalidateStockCache(ctx)
	return *saved, nil
}

// DeleteProduct removes a product that no sale or intake row references.
// Referenced products return store.ErrProductReferenced; archive those
// instead.
func (s *Service) DeleteProduct(ctx context.Context, id int64) error {
	if err := requireAdmin(ctx); err != nil {
		return err
	}
	if id < 1 {
		return store.ErrInvalidEntry
	}

	if err := s.repo.DeleteProduct(ctx, id); err != nil {
		return err
	}
	s.invalidateStockCache(ctx)
	return nil
}

func (s *Service) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	return s.repo.ListCustomers(ctx)
}

func (s *Service) CreateCustomer(ctx context.Context, req domain.CustomerCreateRequest) (domain.Customer, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Customer{}, err
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Customer{}, store.ErrInvalidEntry
	}

	created, err := s.repo.CreateCustomer(ctx, name)
	if err != nil {
		return domain.Customer{}, err
	}
	return *created, nil
}

func (s *Service) RenameCustomer(ctx context.Context, id int64, req domain.CustomerRenameRequest) (domain.Customer, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Customer{}, err
	}
	if id < 1 {
		return domain.Customer{}, store.ErrInvalidEntry
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Customer{}, store.ErrInvalidEntry
	}

	renamed, err := s.repo.RenameCustomer(ctx, id, name)
	if err != nil {
		return domain.Customer{}, err
	}
	return *renamed, nil
}

// DeleteCustomer removes the customer and, through the store, their
// price overrides, sales and payments. Sold quantities disappear with
// the sales, so the stock report cache is flushed.
func (s *Service) DeleteCustomer(ctx context.Context, id int64) error {
	if err := requireAdmin(ctx); err != nil {
		return err
	}
	if id < 1 {
		return store.ErrInvalidEntry
	}

	if err := s.repo.DeleteCustomer(ctx, id); err != nil {
		return err
	}
	s.invalidateStockCache(ctx)
	return nil
}

func (s *Service) ListCustomerPrices(ctx context.Context, customerID int64) ([]domain.CustomerPrice, error) {
	if customerID < 1 {
		return nil, store.ErrInvalidEntry
	}
	if _, err := s.repo.GetCustomer(ctx, customerID); err != nil {
		return nil, err
	}
	return s.repo.ListCustomerPrices(ctx, customerID)
}

func (s *Service) SetCustomerPrice(ctx context.Context, customerID int64, productID int64, customPrice decimal.Decimal) error {
	if err := requireAdmin(ctx); err != nil {
		return err
	}
	if customerID < 1 || productID < 1 || customPrice.IsNegative() {
		return store.ErrInvalidEntry
	}

	return s.repo.SetCustomerPrice(ctx, domain.CustomerPrice{
		CustomerID:  customerID,
		ProductID:   productID,
		CustomPrice: customPrice,
	})
}

func (s *Service) ClearCustomerPrice(ctx context.Context, customerID int64, productID int64) error {
	if err := requireAdmin(ctx); err != nil {
		return err
	}
	if customerID < 1 || productID < 1 {
		return store.ErrInvalidEntry
	}
	return s.repo.ClearCustomerPrice(ctx, customerID, productID)
}

// ResolvePrice returns the effective per-unit price for one customer
// and product: the customer override when present, the product base
// price otherwise.
func (s *Service) ResolvePrice(ctx context.Context, customerID int64, productID int64) (domain.ResolvedPrice, error) {
	if customerID < 1 || productID < 1 {
		return domain.ResolvedPrice{}, store.ErrInvalidEntry
	}

	product, err := s.repo.GetProduct(ctx, productID)
	if err != nil {
		return domain.ResolvedPrice{}, err
	}

	custom, err := s.repo.GetCustomerPrice(ctx, customerID, productID)
	switch {
	case err == nil:
		return domain.ResolvedPrice{ProductID: productID, Price: custom, IsCustom: true}, nil
	case errors.Is(err, store.ErrNotFound):
		return domain.ResolvedPrice{ProductID: productID, Price: product.BasePrice, IsCustom: false}, nil
	default:
		return domain.ResolvedPrice{}, err
	}
}

// ListProductsForCustomer joins the active catalogue with the
// customer's overrides so a caller gets every effective rate in one
// round trip.
func (s *Service) ListProductsForCustomer(ctx context.Context, customerID int64) ([]domain.ProductRate, error) {
	if customerID < 1 {
		return nil, store.ErrInvalidEntry
	}
	if _, err := s.repo.GetCustomer(ctx, customerID); err != nil {
		return nil, err
	}

	products, err := s.repo.ListProducts(ctx, false)
	if err != nil {
		return nil, err
	}
	overrides, err := s.repo.ListCustomerPrices(ctx, customerID)
	if err != nil {
		return nil, err
	}

	overrideByProduct := make(map[int64]decimal.Decimal, len(overrides))
	for _, o := range overrides {
		overrideByProduct[o.ProductID] = o.CustomPrice
	}

	rates := make([]domain.ProductRate, 0, len(products))
	for _, p := range products {
		rate := domain.ProductRate{Product: p, EffectiveRate: p.BasePrice}
		if custom, ok := overrideByProduct[p.ID]; ok {
			rate.EffectiveRate = custom
			rate.IsCustom = true
		}
		rates = append(rates, rate)
	}
	return rates, nil
}

// UpsertDailySale writes the full sale for one customer and date,
// replacing whatever was recorded before. Lines arrive pre-filtered:
// the caller drops zero-quantity rows, and an empty batch zeroes the
// day. Negative quantities and prices are rejected outright.
func (s *Service) UpsertDailySale(ctx context.Context, customerID int64, date string, lines []domain.SaleLine) (domain.Sale, error) {
	if customerID < 1 || !validDate(date) {
		return domain.Sale{}, store.ErrInvalidEntry
	}
	for _, line := range lines {
		if line.ProductID < 1 || line.Quantity.IsNegative() || line.Price.IsNegative() {
			return domain.Sale{}, store.ErrInvalidEntry
		}
	}

	sale, err := s.repo.UpsertDailySale(ctx, customerID, date, lines)
	if err != nil {
		return domain.Sale{}, err
	}

	s.invalidateStockCache(ctx)
	return *sale, nil
}

func (s *Service) GetDailySale(ctx context.Context, customerID int64, date string) (domain.Sale, error) {
	if customerID < 1 || !validDate(date) {
		return domain.Sale{}, store.ErrInvalidEntry
	}
	sale, err := s.repo.FindSaleByCustomerDate(ctx, customerID, date)
	if err != nil {
		return domain.Sale{}, err
	}
	return *sale, nil
}

// UpsertIncoming records the morning intake for a date. Each line
// overwrites any earlier quantity for its (product, date) pair.
func (s *Service) UpsertIncoming(ctx context.Context, date string, lines []domain.IncomingLine) ([]domain.IncomingEntry, error) {
	if !validDate(date) {
		return nil, store.ErrInvalidEntry
	}
	for _, line := range lines {
		if line.ProductID < 1 || line.StockIn.IsNegative() {
			return nil, store.ErrInvalidEntry
		}
	}

	entries, err := s.repo.UpsertIncoming(ctx, date, lines)
	if err != nil {
		return nil, err
	}

	s.invalidateStockCache(ctx)
	return entries, nil
}

func (s *Service) ListIncomingByDate(ctx context.Context, date string) ([]domain.IncomingEntry, error) {
	if !validDate(date) {
		return nil, store.ErrInvalidEntry
	}
	return s.repo.ListIncomingByDate(ctx, date)
}

// IncomingPrefill seeds the intake form for a date: recorded intake
// rows win, and every other active product is suggested the previous
// day's leftover.
func (s *Service) IncomingPrefill(ctx context.Context, date string) ([]domain.PrefillEntry, error) {
	day, err := time.Parse(domain.DateLayout, date)
	if err != nil {
		return nil, store.ErrInvalidEntry
	}
	previous := day.AddDate(0, 0, -1).Format(domain.DateLayout)

	recorded, err := s.repo.ListIncomingByDate(ctx, date)
	if err != nil {
		return nil, err
	}
	recordedByProduct := make(map[int64]decimal.Decimal, len(recorded))
	for _, entry := range recorded {
		recordedByProduct[entry.ProductID] = entry.StockIn
	}

	leftovers, err := s.repo.LeftoverAsOf(ctx, previous)
	if err != nil {
		return nil, err
	}

	entries := make([]domain.PrefillEntry, 0, len(leftovers))
	for _, leftover := range leftovers {
		entry := domain.PrefillEntry{
			ProductID: leftover.ProductID,
			Name:      leftover.Name,
			Unit:      leftover.Unit,
			Quantity:  leftover.Leftover,
		}
		if stockIn, ok := recordedByProduct[leftover.ProductID]; ok {
			entry.Quantity = stockIn
			entry.FromIncoming = true
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// CurrentStock reports the derived on-hand quantity per active product.
// Results are served from the report cache when fresh; every write path
// that changes the derivation invalidates it.
func (s *Service) CurrentStock(ctx context.Context) ([]domain.ProductStock, error) {
	if cached, ok, err := s.stockCache.Get(ctx, stockCacheKey); err == nil && ok {
		return cached, nil
	} else if err != nil {
		log.Printf("[service] WARN: stock cache read failed: %v", err)
	}

	levels, err := s.repo.CurrentStockPerProduct(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.stockCache.Set(ctx, stockCacheKey, levels, s.stockCacheTTL); err != nil {
		log.Printf("[service] WARN: stock cache write failed: %v", err)
	}
	return levels, nil
}

func (s *Service) LeftoverAsOf(ctx context.Context, date string) ([]domain.LeftoverEntry, error) {
	if !validDate(date) {
		return nil, store.ErrInvalidEntry
	}
	return s.repo.LeftoverAsOf(ctx, date)
}

// InventorySummary counts active products and flags the ones at or
// below the low-stock threshold. A nil threshold uses the configured
// default.
func (s *Service) InventorySummary(ctx context.Context, threshold *decimal.Decimal) (domain.InventorySummary, error) {
	limit := s.lowStockThreshold
	if threshold != nil {
		if threshold.IsNegative() {
			return domain.InventorySummary{}, store.ErrInvalidEntry
		}
		limit = *threshold
	}

	levels, err := s.CurrentStock(ctx)
	if err != nil {
		return domain.InventorySummary{}, err
	}

	summary := domain.InventorySummary{
		TotalProducts: len(levels),
		LowStockItems: make([]domain.ProductStock, 0, len(levels)),
	}
	for _, level := range levels {
		if level.Stock.LessThanOrEqual(limit) {
			summary.LowStockItems = append(summary.LowStockItems, level)
		}
	}
	summary.LowStockCount = len(summary.LowStockItems)
	return summary, nil
}

func (s *Service) RecordPayment(ctx context.Context, req domain.PaymentCreateRequest) (domain.Payment, error) {
	if req.CustomerID < 1 || !validDate(req.Date) || !req.Amount.IsPositive() {
		return domain.Payment{}, store.ErrInvalidEntry
	}

	created, err := s.repo.RecordPayment(ctx, domain.Payment{
		CustomerID: req.CustomerID,
		Amount:     req.Amount,
		Date:       req.Date,
	})
	if err != nil {
		return domain.Payment{}, err
	}
	return *created, nil
}

func (s *Service) ListPayments(ctx context.Context, customerID int64, limit int) ([]domain.Payment, error) {
	return s.repo.ListPayments(ctx, customerID, limit)
}

func (s *Service) DeletePayment(ctx context.Context, id int64) error {
	if err := requireAdmin(ctx); err != nil {
		return err
	}
	if id < 1 {
		return store.ErrInvalidEntry
	}
	return s.repo.DeletePayment(ctx, id)
}

func (s *Service) invalidateStockCache(ctx context.Context) {
	if err := s.stockCache.Invalidate(ctx, stockCacheKey); err != nil {
		log.Printf("[service] WARN: stock cache invalidation failed: %v", err)
	}
}
