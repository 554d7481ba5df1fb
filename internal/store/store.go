package store

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"milkledger/backend/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidEntry      = errors.New("invalid entry")
	ErrProductReferenced = errors.New("product referenced by ledger rows")
)

type Repository interface {
	ListProducts(ctx context.Context, includeArchived bool) ([]domain.Product, error)
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	SetProductArchived(ctx context.Context, id int64, archived bool) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id int64) error
	ListCustomers(ctx context.Context) ([]domain.Customer, error)
	GetCustomer(ctx context.Context, id int64) (*domain.Customer, error)
	CreateCustomer(ctx context.Context, name string) (*domain.Customer, error)
	RenameCustomer(ctx context.Context, id int64, name string) (*domain.Customer, error)
	DeleteCustomer(ctx context.Context, id int64) error
	GetCustomerPrice(ctx context.Context, customerID int64, productID int64) (decimal.Decimal, error)
	ListCustomerPrices(ctx context.Context, customerID int64) ([]domain.CustomerPrice, error)
	SetCustomerPrice(ctx context.Context, price domain.CustomerPrice) error
	ClearCustomerPrice(ctx context.Context, customerID int64, productID int64) error
	FindSaleByCustomerDate(ctx context.Context, customerID int64, date string) (*domain.Sale, error)
	UpsertDailySale(ctx context.Context, customerID int64, date string, lines []domain.SaleLine) (*domain.Sale, error)
	UpsertIncoming(ctx context.Context, date string, lines []domain.IncomingLine) ([]domain.IncomingEntry, error)
	ListIncomingByDate(ctx context.Context, date string) ([]domain.IncomingEntry, error)
	CurrentStockPerProduct(ctx context.Context) ([]domain.ProductStock, error)
	LeftoverAsOf(ctx context.Context, date string) ([]domain.LeftoverEntry, error)
	RecordPayment(ctx context.Context, payment domain.Payment) (*domain.Payment, error)
	ListPayments(ctx context.Context, customerID int64, limit int) ([]domain.Payment, error)
	DeletePayment(ctx context.Context, id int64) error
	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}
