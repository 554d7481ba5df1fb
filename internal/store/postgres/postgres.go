package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	"milkledger/backend/internal/domain"
	"milkledger/backend/internal/store"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ListProducts(ctx context.Context, includeArchived bool) ([]domain.Product, error) {
	query := `
		SELECT id, name, unit, base_price, archived
		FROM products
		WHERE archived = false
		ORDER BY name
	`
	if includeArchived {
		query = `
			SELECT id, name, unit, base_price, archived
			FROM products
			ORDER BY name
		`
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 32)
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Unit, &p.BasePrice, &p.Archived); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return products, nil
}

func (s *Store) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	var product domain.Product
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, unit, base_price, archived
		FROM products
		WHERE id = $1
	`, id).Scan(&product.ID, &product.Name, &product.Unit, &product.BasePrice, &product.Archived)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &product, nil
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.Name == "" || product.Unit == "" {
		return nil, store.ErrInvalidEntry
	}

	created := product
	created.Archived = false
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO products (name, unit, base_price, archived)
		VALUES ($1,$2,$3,false)
		RETURNING id
	`, product.Name, product.Unit, product.BasePrice).Scan(&created.ID)
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.ID < 1 || product.Name == "" || product.Unit == "" {
		return nil, store.ErrInvalidEntry
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET name = $2, unit = $3, base_price = $4
		WHERE id = $1
	`, product.ID, product.Name, product.Unit, product.BasePrice)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}

	return s.GetProduct(ctx, product.ID)
}

func (s *Store) SetProductArchived(ctx context.Context, id int64, archived bool) (*domain.Product, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE products SET archived = $2 WHERE id = $1
	`, id, archived)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}
	return s.GetProduct(ctx, id)
}

// DeleteProduct refuses to remove products that sale or inventory rows
// still reference. Customer price overrides cascade away.
func (s *Store) DeleteProduct(ctx context.Context, id int64) error {
	var referenced bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM sale_items WHERE product_id = $1)
			OR EXISTS (SELECT 1 FROM inventory WHERE product_id = $1)
	`, id).Scan(&referenced)
	if err != nil {
		return err
	}
	if referenced {
		return store.ErrProductReferenced
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name
		FROM customers
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	customers := make([]domain.Customer, 0, 32)
	for rows.Next() {
		var c domain.Customer
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, err
		}
		customers = append(customers, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return customers, nil
}

func (s *Store) GetCustomer(ctx context.Context, id int64) (*domain.Customer, error) {
	var customer domain.Customer
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name FROM customers WHERE id = $1
	`, id).Scan(&customer.ID, &customer.Name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &customer, nil
}

func (s *Store) CreateCustomer(ctx context.Context, name string) (*domain.Customer, error) {
	if name == "" {
		return nil, store.ErrInvalidEntry
	}

	customer := domain.Customer{Name: name}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO customers (name) VALUES ($1) RETURNING id
	`, name).Scan(&customer.ID)
	if err != nil {
		return nil, err
	}
	return &customer, nil
}

func (s *Store) RenameCustomer(ctx context.Context, id int64, name string) (*domain.Customer, error) {
	if name == "" {
		return nil, store.ErrInvalidEntry
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE customers SET name = $2 WHERE id = $1
	`, id, name)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}
	return &domain.Customer{ID: id, Name: name}, nil
}

// DeleteCustomer removes the customer together with their price
// overrides, sales and payments via ON DELETE CASCADE.
func (s *Store) DeleteCustomer(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM customers WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) GetCustomerPrice(ctx context.Context, customerID int64, productID int64) (decimal.Decimal, error) {
	var price decimal.Decimal
	err := s.db.QueryRowContext(ctx, `
		SELECT custom_price
		FROM customer_prices
		WHERE customer_id = $1 AND product_id = $2
	`, customerID, productID).Scan(&price)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return decimal.Decimal{}, store.ErrNotFound
		}
		return decimal.Decimal{}, err
	}
	return price, nil
}

func (s *Store) ListCustomerPrices(ctx context.Context, customerID int64) ([]domain.CustomerPrice, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT customer_id, product_id, custom_price
		FROM customer_prices
		WHERE customer_id = $1
		ORDER BY product_id
	`, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	prices := make([]domain.CustomerPrice, 0, 16)
	for rows.Next() {
		var p domain.CustomerPrice
		if err := rows.Scan(&p.CustomerID, &p.ProductID, &p.CustomPrice); err != nil {
			return nil, err
		}
		prices = append(prices, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return prices, nil
}

func (s *Store) SetCustomerPrice(ctx context.Context, price domain.CustomerPrice) error {
	if price.CustomerID < 1 || price.ProductID < 1 {
		return store.ErrInvalidEntry
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO customer_prices (customer_id, product_id, custom_price)
		VALUES ($1,$2,$3)
		ON CONFLICT (customer_id, product_id)
		DO UPDATE SET custom_price = EXCLUDED.custom_price
	`, price.CustomerID, price.ProductID, price.CustomPrice)
	if err != nil {
		if isForeignKeyViolation(err) {
			return store.ErrNotFound
		}
		return err
	}
	return nil
}

func (s *Store) ClearCustomerPrice(ctx context.Context, customerID int64, productID int64) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM customer_prices
		WHERE customer_id = $1 AND product_id = $2
	`, customerID, productID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) FindSaleByCustomerDate(ctx context.Context, customerID int64, date string) (*domain.Sale, error) {
	var sale domain.Sale
	err := s.db.QueryRowContext(ctx, `
		SELECT id, customer_id, to_char(date, 'YYYY-MM-DD'), total
		FROM sales
		WHERE customer_id = $1 AND date = $2::date
	`, customerID, date).Scan(&sale.ID, &sale.CustomerID, &sale.Date, &sale.Total)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sale_id, product_id, quantity, price_used
		FROM sale_items
		WHERE sale_id = $1
		ORDER BY id
	`, sale.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var item domain.SaleItem
		if err := rows.Scan(&item.ID, &item.SaleID, &item.ProductID, &item.Quantity, &item.PriceUsed); err != nil {
			return nil, err
		}
		sale.Items = append(sale.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &sale, nil
}

// UpsertDailySale replaces the (customer, date) sale atomically: an
// existing sale loses all its items before the new lines are written,
// a missing sale is created. The stored total is recomputed from the
// submitted lines, so an empty batch zeroes the day.
func (s *Store) UpsertDailySale(ctx context.Context, customerID int64, date string, lines []domain.SaleLine) (*domain.Sale, error) {
	if customerID < 1 || date == "" {
		return nil, store.ErrInvalidEntry
	}

	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.Quantity.Mul(line.Price))
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var saleID int64
	err = tx.QueryRowContext(ctx, `
		SELECT id FROM sales WHERE customer_id = $1 AND date = $2::date
	`, customerID, date).Scan(&saleID)
	switch {
	case err == nil:
		if _, err := tx.ExecContext(ctx, `DELETE FROM sale_items WHERE sale_id = $1`, saleID); err != nil {
			return nil, err
		}
		if _, err := tx.ExecContext(ctx, `UPDATE sales SET total = $2 WHERE id = $1`, saleID, total); err != nil {
			return nil, err
		}
	case errors.Is(err, sql.ErrNoRows):
		err = tx.QueryRowContext(ctx, `
			INSERT INTO sales (customer_id, date, total)
			VALUES ($1,$2::date,$3)
			RETURNING id
		`, customerID, date, total).Scan(&saleID)
		if err != nil {
			if isForeignKeyViolation(err) {
				return nil, store.ErrNotFound
			}
			if isUniqueViolation(err) {
				// Lost a concurrent race for the same (customer, date).
				return nil, store.ErrInvalidEntry
			}
			return nil, err
		}
	default:
		return nil, err
	}

	sale := domain.Sale{ID: saleID, CustomerID: customerID, Date: date, Total: total}
	for _, line := range lines {
		var itemID int64
		err = tx.QueryRowContext(ctx, `
			INSERT INTO sale_items (sale_id, product_id, quantity, price_used)
			VALUES ($1,$2,$3,$4)
			RETURNING id
		`, saleID, line.ProductID, line.Quantity, line.Price).Scan(&itemID)
		if err != nil {
			if isForeignKeyViolation(err) {
				return nil, store.ErrNotFound
			}
			return nil, err
		}
		sale.Items = append(sale.Items, domain.SaleItem{
			ID:        itemID,
			SaleID:    saleID,
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			PriceUsed: line.Price,
		})
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &sale, nil
}

// UpsertIncoming records intake rows keyed by (product, date). A second
// submission for the same key overwrites the earlier quantity.
func (s *Store) UpsertIncoming(ctx context.Context, date string, lines []domain.IncomingLine) ([]domain.IncomingEntry, error) {
	if date == "" {
		return nil, store.ErrInvalidEntry
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	entries := make([]domain.IncomingEntry, 0, len(lines))
	for _, line := range lines {
		var entry domain.IncomingEntry
		err = tx.QueryRowContext(ctx, `
			INSERT INTO inventory (product_id, date, stock_in)
			VALUES ($1,$2::date,$3)
			ON CONFLICT (product_id, date)
			DO UPDATE SET stock_in = EXCLUDED.stock_in
			RETURNING id, product_id, to_char(date, 'YYYY-MM-DD'), stock_in
		`, line.ProductID, date, line.StockIn).Scan(&entry.ID, &entry.ProductID, &entry.Date, &entry.StockIn)
		if err != nil {
			if isForeignKeyViolation(err) {
				return nil, store.ErrNotFound
			}
			return nil, err
		}
		entries = append(entries, entry)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *Store) ListIncomingByDate(ctx context.Context, date string) ([]domain.IncomingEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, product_id, to_char(date, 'YYYY-MM-DD'), stock_in
		FROM inventory
		WHERE date = $1::date
		ORDER BY product_id
	`, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]domain.IncomingEntry, 0, 16)
	for rows.Next() {
		var entry domain.IncomingEntry
		if err := rows.Scan(&entry.ID, &entry.ProductID, &entry.Date, &entry.StockIn); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *Store) CurrentStockPerProduct(ctx context.Context) ([]domain.ProductStock, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.name, p.unit,
			COALESCE((SELECT SUM(i.stock_in) FROM inventory i WHERE i.product_id = p.id), 0)
			- COALESCE((SELECT SUM(si.quantity) FROM sale_items si WHERE si.product_id = p.id), 0)
		FROM products p
		WHERE p.archived = false
		ORDER BY p.name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	levels := make([]domain.ProductStock, 0, 32)
	for rows.Next() {
		var level domain.ProductStock
		if err := rows.Scan(&level.ProductID, &level.Name, &level.Unit, &level.Stock); err != nil {
			return nil, err
		}
		levels = append(levels, level)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return levels, nil
}

// LeftoverAsOf bounds both intake and sales by the same inclusive
// cutoff date, so the result is the stock position at end of that day.
func (s *Store) LeftoverAsOf(ctx context.Context, date string) ([]domain.LeftoverEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.name, p.unit,
			COALESCE((SELECT SUM(i.stock_in) FROM inventory i
				WHERE i.product_id = p.id AND i.date <= $1::date), 0)
			- COALESCE((SELECT SUM(si.quantity) FROM sale_items si
				JOIN sales s ON s.id = si.sale_id
				WHERE si.product_id = p.id AND s.date <= $1::date), 0)
		FROM products p
		WHERE p.archived = false
		ORDER BY p.name
	`, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]domain.LeftoverEntry, 0, 32)
	for rows.Next() {
		var entry domain.LeftoverEntry
		if err := rows.Scan(&entry.ProductID, &entry.Name, &entry.Unit, &entry.Leftover); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *Store) RecordPayment(ctx context.Context, payment domain.Payment) (*domain.Payment, error) {
	if payment.CustomerID < 1 || payment.Date == "" {
		return nil, store.ErrInvalidEntry
	}

	created := payment
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO payments (customer_id, amount, date)
		VALUES ($1,$2,$3::date)
		RETURNING id
	`, payment.CustomerID, payment.Amount, payment.Date).Scan(&created.ID)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &created, nil
}

func (s *Store) ListPayments(ctx context.Context, customerID int64, limit int) ([]domain.Payment, error) {
	if limit < 1 {
		limit = 100
	}

	query := `
		SELECT id, customer_id, amount, to_char(date, 'YYYY-MM-DD')
		FROM payments
		ORDER BY date DESC, id DESC
		LIMIT $1
	`
	args := []any{limit}
	if customerID > 0 {
		query = `
			SELECT id, customer_id, amount, to_char(date, 'YYYY-MM-DD')
			FROM payments
			WHERE customer_id = $2
			ORDER BY date DESC, id DESC
			LIMIT $1
		`
		args = append(args, customerID)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	payments := make([]domain.Payment, 0, limit)
	for rows.Next() {
		var p domain.Payment
		if err := rows.Scan(&p.ID, &p.CustomerID, &p.Amount, &p.Date); err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return payments, nil
}

func (s *Store) DeletePayment(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM payments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, password, role, active, created_at)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (username)
		DO UPDATE SET password = EXCLUDED.password, role = EXCLUDED.role, active = EXCLUDED.active
	`, user.Username, user.Password, user.Role, user.Active, user.CreatedAt)
	return err
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, role, active, created_at
		FROM users
		ORDER BY username
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		var u domain.UserAccount
		if err := rows.Scan(&u.Username, &u.Password, &u.Role, &u.Active, &u.CreatedAt); err != nil {
			return nil, err
		}
		u.CreatedAt = u.CreatedAt.UTC()
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET password = $2 WHERE username = $1
	`, username, password)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503"
	}
	return false
}
