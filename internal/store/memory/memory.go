package memory

import (
	"cmp"
	"context"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"milkledger/backend/internal/domain"
	"milkledger/backend/internal/store"
)

type Store struct {
	mu              sync.RWMutex
	products        map[int64]domain.Product
	customers       map[int64]domain.Customer
	customerPrices  map[int64]map[int64]decimal.Decimal
	sales           map[int64]domain.Sale
	incoming        map[int64]domain.IncomingEntry
	payments        map[int64]domain.Payment
	usersByUsername map[string]domain.UserAccount

	nextProductID  int64
	nextCustomerID int64
	nextSaleID     int64
	nextItemID     int64
	nextIncomingID int64
	nextPaymentID  int64
}

func New() *Store {
	return &Store{
		products:        make(map[int64]domain.Product),
		customers:       make(map[int64]domain.Customer),
		customerPrices:  make(map[int64]map[int64]decimal.Decimal),
		sales:           make(map[int64]domain.Sale),
		incoming:        make(map[int64]domain.IncomingEntry),
		payments:        make(map[int64]domain.Payment),
		usersByUsername: make(map[string]domain.UserAccount),
	}
}

// seedUsers builds the initial in-memory user accounts for dev/demo mode.
// Credentials are read from SEED_ADMIN_PASSWORD and SEED_CLERK_PASSWORD
// environment variables. If unset, hardcoded dev defaults are used with a
// warning printed to stdout. These credentials are never used in production
// (the backend uses PostgreSQL when DATABASE_URL is set).
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	clerkPwd := envOr("SEED_CLERK_PASSWORD", "clerk123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_CLERK_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_CLERK_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, domain.RoleAdmin},
		{"clerk", clerkPwd, domain.RoleClerk},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func NewSeeded() *Store {
	s := New()
	s.usersByUsername = seedUsers()

	products := []struct {
		name  string
		unit  string
		price string
	}{
		{"Cow Milk", "litre", "54.00"},
		{"Buffalo Milk", "litre", "66.00"},
		{"Toned Milk", "litre", "48.00"},
		{"Curd", "kg", "70.00"},
		{"Paneer", "kg", "320.00"},
		{"Ghee", "kg", "560.00"},
	}
	for _, p := range products {
		s.nextProductID++
		s.products[s.nextProductID] = domain.Product{
			ID:        s.nextProductID,
			Name:      p.name,
			Unit:      p.unit,
			BasePrice: decimal.RequireFromString(p.price),
		}
	}

	for _, name := range []string{"Daily Needs Store", "Sharma Tea Stall", "Green Valley Hostel"} {
		s.nextCustomerID++
		s.customers[s.nextCustomerID] = domain.Customer{ID: s.nextCustomerID, Name: name}
	}

	return s
}

func (s *Store) ListProducts(_ context.Context, includeArchived bool) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		if p.Archived && !includeArchived {
			continue
		}
		products = append(products, p)
	}

	slices.SortFunc(products, func(a, b domain.Product) int {
		return strings.Compare(a.Name, b.Name)
	})
	return products, nil
}

func (s *Store) GetProduct(_ context.Context, id int64) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	found := p
	return &found, nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	if product.Name == "" || product.Unit == "" {
		return nil, store.ErrInvalidEntry
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextProductID++
	product.ID = s.nextProductID
	product.Archived = false
	s.products[product.ID] = product

	created := product
	return &created, nil
}

func (s *Store) UpdateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	if product.ID < 1 || product.Name == "" || product.Unit == "" {
		return nil, store.ErrInvalidEntry
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.products[product.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	product.Archived = existing.Archived
	s.products[product.ID] = product

	updated := product
	return &updated, nil
}

func (s *Store) SetProductArchived(_ context.Context, id int64, archived bool) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	p.Archived = archived
	s.products[id] = p

	updated := p
	return &updated, nil
}

func (s *Store) DeleteProduct(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[id]; !ok {
		return store.ErrNotFound
	}
	for _, sale := range s.sales {
		for _, item := range sale.Items {
			if item.ProductID == id {
				return store.ErrProductReferenced
			}
		}
	}
	for _, entry := range s.incoming {
		if entry.ProductID == id {
			return store.ErrProductReferenced
		}
	}

	delete(s.products, id)
	for _, prices := range s.customerPrices {
		delete(prices, id)
	}
	return nil
}

func (s *Store) ListCustomers(_ context.Context) ([]domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customers := make([]domain.Customer, 0, len(s.customers))
	for _, c := range s.customers {
		customers = append(customers, c)
	}
	slices.SortFunc(customers, func(a, b domain.Customer) int {
		return strings.Compare(a.Name, b.Name)
	})
	return customers, nil
}

func (s *Store) GetCustomer(_ context.Context, id int64) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.customers[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	found := c
	return &found, nil
}

func (s *Store) CreateCustomer(_ context.Context, name string) (*domain.Customer, error) {
	if name == "" {
		return nil, store.ErrInvalidEntry
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextCustomerID++
	customer := domain.Customer{ID: s.nextCustomerID, Name: name}
	s.customers[customer.ID] = customer

	created := customer
	return &created, nil
}

func (s *Store) RenameCustomer(_ context.Context, id int64, name string) (*domain.Customer, error) {
	if name == "" {
		return nil, store.ErrInvalidEntry
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.customers[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	c.Name = name
	s.customers[id] = c

	renamed := c
	return &renamed, nil
}

func (s *Store) DeleteCustomer(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.customers[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.customers, id)
	delete(s.customerPrices, id)
	for saleID, sale := range s.sales {
		if sale.CustomerID == id {
			delete(s.sales, saleID)
		}
	}
	for paymentID, payment := range s.payments {
		if payment.CustomerID == id {
			delete(s.payments, paymentID)
		}
	}
	return nil
}

func (s *Store) GetCustomerPrice(_ context.Context, customerID int64, productID int64) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	prices, ok := s.customerPrices[customerID]
	if !ok {
		return decimal.Decimal{}, store.ErrNotFound
	}
	price, ok := prices[productID]
	if !ok {
		return decimal.Decimal{}, store.ErrNotFound
	}
	return price, nil
}

func (s *Store) ListCustomerPrices(_ context.Context, customerID int64) ([]domain.CustomerPrice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]domain.CustomerPrice, 0, len(s.customerPrices[customerID]))
	for productID, price := range s.customerPrices[customerID] {
		entries = append(entries, domain.CustomerPrice{
			CustomerID:  customerID,
			ProductID:   productID,
			CustomPrice: price,
		})
	}
	slices.SortFunc(entries, func(a, b domain.CustomerPrice) int {
		return cmp.Compare(a.ProductID, b.ProductID)
	})
	return entries, nil
}

func (s *Store) SetCustomerPrice(_ context.Context, price domain.CustomerPrice) error {
	if price.CustomerID < 1 || price.ProductID < 1 {
		return store.ErrInvalidEntry
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.customers[price.CustomerID]; !ok {
		return store.ErrNotFound
	}
	if _, ok := s.products[price.ProductID]; !ok {
		return store.ErrNotFound
	}
	if s.customerPrices[price.CustomerID] == nil {
		s.customerPrices[price.CustomerID] = make(map[int64]decimal.Decimal)
	}
	s.customerPrices[price.CustomerID][price.ProductID] = price.CustomPrice
	return nil
}

func (s *Store) ClearCustomerPrice(_ context.Context, customerID int64, productID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prices, ok := s.customerPrices[customerID]
	if !ok {
		return store.ErrNotFound
	}
	if _, ok := prices[productID]; !ok {
		return store.ErrNotFound
	}
	delete(prices, productID)
	return nil
}

func (s *Store) FindSaleByCustomerDate(_ context.Context, customerID int64, date string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, sale := range s.sales {
		if sale.CustomerID == customerID && sale.Date == date {
			found := sale
			found.Items = slices.Clone(sale.Items)
			return &found, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) UpsertDailySale(_ context.Context, customerID int64, date string, lines []domain.SaleLine) (*domain.Sale, error) {
	if customerID < 1 || date == "" {
		return nil, store.ErrInvalidEntry
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.customers[customerID]; !ok {
		return nil, store.ErrNotFound
	}
	for _, line := range lines {
		if _, ok := s.products[line.ProductID]; !ok {
			return nil, store.ErrNotFound
		}
	}

	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.Quantity.Mul(line.Price))
	}

	var sale domain.Sale
	found := false
	for _, existing := range s.sales {
		if existing.CustomerID == customerID && existing.Date == date {
			sale = existing
			found = true
			break
		}
	}
	if !found {
		s.nextSaleID++
		sale = domain.Sale{ID: s.nextSaleID, CustomerID: customerID, Date: date}
	}

	sale.Total = total
	sale.Items = make([]domain.SaleItem, 0, len(lines))
	for _, line := range lines {
		s.nextItemID++
		sale.Items = append(sale.Items, domain.SaleItem{
			ID:        s.nextItemID,
			SaleID:    sale.ID,
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			PriceUsed: line.Price,
		})
	}
	s.sales[sale.ID] = sale

	result := sale
	result.Items = slices.Clone(sale.Items)
	return &result, nil
}

func (s *Store) UpsertIncoming(_ context.Context, date string, lines []domain.IncomingLine) ([]domain.IncomingEntry, error) {
	if date == "" {
		return nil, store.ErrInvalidEntry
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, line := range lines {
		if _, ok := s.products[line.ProductID]; !ok {
			return nil, store.ErrNotFound
		}
	}

	entries := make([]domain.IncomingEntry, 0, len(lines))
	for _, line := range lines {
		var entry domain.IncomingEntry
		found := false
		for _, existing := range s.incoming {
			if existing.ProductID == line.ProductID && existing.Date == date {
				entry = existing
				found = true
				break
			}
		}
		if !found {
			s.nextIncomingID++
			entry = domain.IncomingEntry{ID: s.nextIncomingID, ProductID: line.ProductID, Date: date}
		}
		entry.StockIn = line.StockIn
		s.incoming[entry.ID] = entry
		entries = append(entries, entry)
	}
	return entries, nil
}

func (s *Store) ListIncomingByDate(_ context.Context, date string) ([]domain.IncomingEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]domain.IncomingEntry, 0, 16)
	for _, entry := range s.incoming {
		if entry.Date == date {
			entries = append(entries, entry)
		}
	}
	slices.SortFunc(entries, func(a, b domain.IncomingEntry) int {
		return cmp.Compare(a.ProductID, b.ProductID)
	})
	return entries, nil
}

func (s *Store) CurrentStockPerProduct(_ context.Context) ([]domain.ProductStock, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stockLevels("")
}

// LeftoverAsOf bounds both intake and sales by the same inclusive
// cutoff. Dates are YYYY-MM-DD strings, so lexicographic compare is
// chronological compare.
func (s *Store) LeftoverAsOf(_ context.Context, date string) ([]domain.LeftoverEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	levels, err := s.stockLevels(date)
	if err != nil {
		return nil, err
	}
	entries := make([]domain.LeftoverEntry, 0, len(levels))
	for _, level := range levels {
		entries = append(entries, domain.LeftoverEntry{
			ProductID: level.ProductID,
			Name:      level.Name,
			Unit:      level.Unit,
			Leftover:  level.Stock,
		})
	}
	return entries, nil
}

// stockLevels computes stock_in minus quantity sold per product, bounded
// by cutoff when non-empty. Callers hold at least the read lock.
func (s *Store) stockLevels(cutoff string) ([]domain.ProductStock, error) {
	stockIn := make(map[int64]decimal.Decimal, len(s.products))
	sold := make(map[int64]decimal.Decimal, len(s.products))

	for _, entry := range s.incoming {
		if cutoff != "" && entry.Date > cutoff {
			continue
		}
		stockIn[entry.ProductID] = stockIn[entry.ProductID].Add(entry.StockIn)
	}
	for _, sale := range s.sales {
		if cutoff != "" && sale.Date > cutoff {
			continue
		}
		for _, item := range sale.Items {
			sold[item.ProductID] = sold[item.ProductID].Add(item.Quantity)
		}
	}

	levels := make([]domain.ProductStock, 0, len(s.products))
	for _, p := range s.products {
		if p.Archived {
			continue
		}
		levels = append(levels, domain.ProductStock{
			ProductID: p.ID,
			Name:      p.Name,
			Unit:      p.Unit,
			Stock:     stockIn[p.ID].Sub(sold[p.ID]),
		})
	}
	slices.SortFunc(levels, func(a, b domain.ProductStock) int {
		return strings.Compare(a.Name, b.Name)
	})
	return levels, nil
}

func (s *Store) RecordPayment(_ context.Context, payment domain.Payment) (*domain.Payment, error) {
	if payment.CustomerID < 1 || payment.Date == "" {
		return nil, store.ErrInvalidEntry
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.customers[payment.CustomerID]; !ok {
		return nil, store.ErrNotFound
	}

	s.nextPaymentID++
	payment.ID = s.nextPaymentID
	s.payments[payment.ID] = payment

	created := payment
	return &created, nil
}

func (s *Store) ListPayments(_ context.Context, customerID int64, limit int) ([]domain.Payment, error) {
	if limit < 1 {
		limit = 100
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	payments := make([]domain.Payment, 0, len(s.payments))
	for _, p := range s.payments {
		if customerID > 0 && p.CustomerID != customerID {
			continue
		}
		payments = append(payments, p)
	}
	slices.SortFunc(payments, func(a, b domain.Payment) int {
		if a.Date != b.Date {
			return strings.Compare(b.Date, a.Date)
		}
		return cmp.Compare(b.ID, a.ID)
	})
	if len(payments) > limit {
		payments = payments[:limit]
	}
	return payments, nil
}

func (s *Store) DeletePayment(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.payments[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.payments, id)
	return nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, u := range s.usersByUsername {
		users = append(users, u)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return strings.Compare(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.usersByUsername[username]
	if !ok {
		return store.ErrNotFound
	}
	u.Password = password
	s.usersByUsername[username] = u
	return nil
}
