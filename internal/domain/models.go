package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Dates travel as YYYY-MM-DD strings across every boundary. The stores
// own the conversion to their native date representation.
const DateLayout = "2006-01-02"

type Product struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	Unit      string          `json:"unit"`
	BasePrice decimal.Decimal `json:"base_price"`
	Archived  bool            `json:"archived"`
}

type ProductCreateRequest struct {
	Name      string          `json:"name" validate:"required"`
	Unit      string          `json:"unit" validate:"required"`
	BasePrice decimal.Decimal `json:"base_price"`
}

type ProductUpdateRequest struct {
	Name      *string          `json:"name,omitempty"`
	Unit      *string          `json:"unit,omitempty"`
	BasePrice *decimal.Decimal `json:"base_price,omitempty"`
}

type Customer struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type CustomerCreateRequest struct {
	Name string `json:"name" validate:"required"`
}

type CustomerRenameRequest struct {
	Name string `json:"name" validate:"required"`
}

type CustomerPrice struct {
	CustomerID  int64           `json:"customer_id"`
	ProductID   int64           `json:"product_id"`
	CustomPrice decimal.Decimal `json:"custom_price"`
}

type CustomerPriceSetRequest struct {
	CustomPrice decimal.Decimal `json:"custom_price"`
}

// ResolvedPrice is the effective per-unit price for one customer and
// product, with IsCustom marking a customer override.
type ResolvedPrice struct {
	ProductID int64           `json:"product_id"`
	Price     decimal.Decimal `json:"price"`
	IsCustom  bool            `json:"is_custom"`
}

// ProductRate is a product joined with its effective price for a
// specific customer.
type ProductRate struct {
	Product
	EffectiveRate decimal.Decimal `json:"effective_rate"`
	IsCustom      bool            `json:"is_custom"`
}

type Sale struct {
	ID         int64           `json:"id"`
	CustomerID int64           `json:"customer_id"`
	Date       string          `json:"date"`
	Total      decimal.Decimal `json:"total"`
	Items      []SaleItem      `json:"items"`
}

type SaleItem struct {
	ID        int64           `json:"id"`
	SaleID    int64           `json:"sale_id"`
	ProductID int64           `json:"product_id"`
	Quantity  decimal.Decimal `json:"quantity"`
	PriceUsed decimal.Decimal `json:"price_used"`
}

// SaleLine is one line of a daily-sale batch as submitted by a caller.
// Callers drop zero-quantity lines before submitting; the upsert engine
// persists whatever it is given.
type SaleLine struct {
	ProductID int64           `json:"product_id" validate:"required"`
	Quantity  decimal.Decimal `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

type DailySaleUpsertRequest struct {
	Items []SaleLine `json:"items" validate:"dive"`
}

type IncomingEntry struct {
	ID        int64           `json:"id"`
	ProductID int64           `json:"product_id"`
	Date      string          `json:"date"`
	StockIn   decimal.Decimal `json:"stock_in"`
}

type IncomingLine struct {
	ProductID int64           `json:"product_id" validate:"required"`
	StockIn   decimal.Decimal `json:"stock_in"`
}

type IncomingUpsertRequest struct {
	Items []IncomingLine `json:"items" validate:"dive"`
}

// PrefillEntry seeds the incoming-stock form for a date: the recorded
// intake when one exists, otherwise the previous day's leftover.
type PrefillEntry struct {
	ProductID    int64           `json:"product_id"`
	Name         string          `json:"name"`
	Unit         string          `json:"unit"`
	Quantity     decimal.Decimal `json:"quantity"`
	FromIncoming bool            `json:"from_incoming"`
}

type Payment struct {
	ID         int64           `json:"id"`
	CustomerID int64           `json:"customer_id"`
	Amount     decimal.Decimal `json:"amount"`
	Date       string          `json:"date"`
}

type PaymentCreateRequest struct {
	CustomerID int64           `json:"customer_id" validate:"required"`
	Amount     decimal.Decimal `json:"amount"`
	Date       string          `json:"date" validate:"required,datetime=2006-01-02"`
}

// ProductStock is the derived on-hand quantity for one product:
// total stock_in minus total quantity sold. Negative values are
// reported as-is.
type ProductStock struct {
	ProductID int64           `json:"product_id"`
	Name      string          `json:"name"`
	Unit      string          `json:"unit"`
	Stock     decimal.Decimal `json:"stock"`
}

type LeftoverEntry struct {
	ProductID int64           `json:"product_id"`
	Name      string          `json:"name"`
	Unit      string          `json:"unit"`
	Leftover  decimal.Decimal `json:"leftover"`
}

type InventorySummary struct {
	TotalProducts int            `json:"total_products"`
	LowStockCount int            `json:"low_stock_count"`
	LowStockItems []ProductStock `json:"low_stock_items"`
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

type ClerkCreateRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type ClerkUser struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}

const (
	RoleAdmin = "admin"
	RoleClerk = "clerk"
)
