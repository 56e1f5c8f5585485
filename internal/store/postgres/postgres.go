package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"aurelia/backend/internal/domain"
	"aurelia/backend/internal/store"
	"aurelia/backend/internal/xid"
)

const lowStockThreshold = 5

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

const productColumns = `
	id, name, slug, sku, description, price_cents, sale_price_cents, currency,
	images, stock, category_id, tags, visible, featured, size, notes,
	created_at, updated_at
`

func scanProduct(row interface{ Scan(...any) error }) (*domain.Product, error) {
	var (
		p          domain.Product
		sale       sql.NullInt64
		categoryID sql.NullString
		images     []byte
		tags       []byte
	)
	err := row.Scan(&p.ID, &p.Name, &p.Slug, &p.SKU, &p.Description, &p.PriceCents,
		&sale, &p.Currency, &images, &p.Stock, &categoryID, &tags,
		&p.Visible, &p.Featured, &p.Size, &p.Notes, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if sale.Valid {
		v := sale.Int64
		p.SalePriceCents = &v
	}
	p.CategoryID = categoryID.String
	if len(images) > 0 {
		if err := json.Unmarshal(images, &p.Images); err != nil {
			return nil, err
		}
	}
	if len(tags) > 0 {
		if err := json.Unmarshal(tags, &p.Tags); err != nil {
			return nil, err
		}
	}
	return &p, nil
}

func (s *Store) ListProducts(ctx context.Context, filter store.ProductFilter) ([]domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE 1=1`
	args := make([]any, 0, 6)

	if filter.VisibleOnly {
		query += ` AND visible = true`
	}
	if filter.CategoryID != "" {
		args = append(args, filter.CategoryID)
		query += ` AND category_id = $` + strconv.Itoa(len(args))
	}
	if filter.Tag != "" {
		args = append(args, mustJSON([]string{filter.Tag}))
		query += ` AND tags @> $` + strconv.Itoa(len(args))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		n := strconv.Itoa(len(args))
		query += ` AND (name ILIKE $` + n + ` OR description ILIKE $` + n + `)`
	}
	if filter.Featured {
		query += ` AND featured = true`
	}
	if filter.OnSale {
		query += ` AND sale_price_cents IS NOT NULL`
	}
	query += ` ORDER BY created_at DESC, name`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += ` LIMIT $` + strconv.Itoa(len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 64)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

func (s *Store) GetProductByID(ctx context.Context, id string) (*domain.Product, error) {
	p, err := scanProduct(s.db.QueryRowContext(ctx, `
		SELECT `+productColumns+` FROM products WHERE id = $1
	`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return p, err
}

func (s *Store) GetProductBySlug(ctx context.Context, slug string) (*domain.Product, error) {
	p, err := scanProduct(s.db.QueryRowContext(ctx, `
		SELECT `+productColumns+` FROM products WHERE slug = $1
	`, slug))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return p, err
}

func (s *Store) GetProductsByIDs(ctx context.Context, ids []string) (map[string]domain.Product, error) {
	if len(ids) == 0 {
		return map[string]domain.Product{}, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+productColumns+` FROM products WHERE visible = true AND id = ANY($1)
	`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string]domain.Product, len(ids))
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		result[p.ID] = *p
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.Name == "" || product.Slug == "" || product.PriceCents < 1 {
		return nil, store.ErrInvalidInput
	}
	if product.ID == "" {
		product.ID = xid.New("prod")
	}
	now := time.Now().UTC()
	product.CreatedAt = now
	product.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (
			id, name, slug, sku, description, price_cents, sale_price_cents, currency,
			images, stock, category_id, tags, visible, featured, size, notes,
			created_at, updated_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
	`, product.ID, product.Name, product.Slug, product.SKU, product.Description,
		product.PriceCents, nullInt64(product.SalePriceCents), product.Currency,
		mustJSON(product.Images), product.Stock, nullIfEmpty(product.CategoryID),
		mustJSON(product.Tags), product.Visible, product.Featured, product.Size,
		product.Notes, product.CreatedAt, product.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicate
		}
		return nil, err
	}

	created := product
	return &created, nil
}

func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.ID == "" || product.Name == "" || product.Slug == "" || product.PriceCents < 1 {
		return nil, store.ErrInvalidInput
	}
	product.UpdatedAt = time.Now().UTC()

	res, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET name = $2, slug = $3, sku = $4, description = $5, price_cents = $6,
			sale_price_cents = $7, currency = $8, images = $9, stock = $10,
			category_id = $11, tags = $12, visible = $13, featured = $14,
			size = $15, notes = $16, updated_at = $17
		WHERE id = $1
	`, product.ID, product.Name, product.Slug, product.SKU, product.Description,
		product.PriceCents, nullInt64(product.SalePriceCents), product.Currency,
		mustJSON(product.Images), product.Stock, nullIfEmpty(product.CategoryID),
		mustJSON(product.Tags), product.Visible, product.Featured, product.Size,
		product.Notes, product.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicate
		}
		return nil, err
	}
	if err := requireAffected(res); err != nil {
		return nil, err
	}
	return s.GetProductByID(ctx, product.ID)
}

func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *Store) ListCategories(ctx context.Context) ([]domain.Category, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, slug, description, image_url, created_at, updated_at
		FROM categories
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	categories := make([]domain.Category, 0, 16)
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug, &c.Description, &c.ImageURL, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return categories, nil
}

func (s *Store) GetCategoryBySlug(ctx context.Context, slug string) (*domain.Category, error) {
	var c domain.Category
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, slug, description, image_url, created_at, updated_at
		FROM categories
		WHERE slug = $1
	`, slug).Scan(&c.ID, &c.Name, &c.Slug, &c.Description, &c.ImageURL, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (s *Store) CreateCategory(ctx context.Context, category domain.Category) (*domain.Category, error) {
	if category.Name == "" || category.Slug == "" {
		return nil, store.ErrInvalidInput
	}
	if category.ID == "" {
		category.ID = xid.New("cat")
	}
	now := time.Now().UTC()
	category.CreatedAt = now
	category.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO categories (id, name, slug, description, image_url, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, category.ID, category.Name, category.Slug, category.Description, category.ImageURL,
		category.CreatedAt, category.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicate
		}
		return nil, err
	}

	created := category
	return &created, nil
}

func (s *Store) UpdateCategory(ctx context.Context, category domain.Category) (*domain.Category, error) {
	if category.ID == "" || category.Name == "" || category.Slug == "" {
		return nil, store.ErrInvalidInput
	}
	category.UpdatedAt = time.Now().UTC()

	res, err := s.db.ExecContext(ctx, `
		UPDATE categories
		SET name = $2, slug = $3, description = $4, image_url = $5, updated_at = $6
		WHERE id = $1
	`, category.ID, category.Name, category.Slug, category.Description, category.ImageURL, category.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicate
		}
		return nil, err
	}
	if err := requireAffected(res); err != nil {
		return nil, err
	}
	updated := category
	return &updated, nil
}

func (s *Store) DeleteCategory(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if err := requireAffected(res); err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `UPDATE products SET category_id = NULL WHERE category_id = $1`, id)
	return err
}

const couponColumns = `
	id, code, discount_type, discount_value, min_order_cents, max_uses,
	used_count, expires_at, active, created_at
`

func scanCoupon(row interface{ Scan(...any) error }) (*domain.Coupon, error) {
	var (
		c       domain.Coupon
		maxUses sql.NullInt64
		expires sql.NullTime
	)
	err := row.Scan(&c.ID, &c.Code, &c.DiscountType, &c.DiscountValue, &c.MinOrderCents,
		&maxUses, &c.UsedCount, &expires, &c.Active, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	if maxUses.Valid {
		v := int(maxUses.Int64)
		c.MaxUses = &v
	}
	if expires.Valid {
		t := expires.Time.UTC()
		c.ExpiresAt = &t
	}
	return &c, nil
}

func (s *Store) GetCouponByCode(ctx context.Context, code string) (*domain.Coupon, error) {
	c, err := scanCoupon(s.db.QueryRowContext(ctx, `
		SELECT `+couponColumns+` FROM coupons WHERE code = $1
	`, code))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return c, err
}

func (s *Store) GetCouponByID(ctx context.Context, id string) (*domain.Coupon, error) {
	c, err := scanCoupon(s.db.QueryRowContext(ctx, `
		SELECT `+couponColumns+` FROM coupons WHERE id = $1
	`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return c, err
}

func (s *Store) ListCoupons(ctx context.Context) ([]domain.Coupon, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+couponColumns+` FROM coupons ORDER BY code
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	coupons := make([]domain.Coupon, 0, 16)
	for rows.Next() {
		c, err := scanCoupon(rows)
		if err != nil {
			return nil, err
		}
		coupons = append(coupons, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return coupons, nil
}

func (s *Store) CreateCoupon(ctx context.Context, coupon domain.Coupon) (*domain.Coupon, error) {
	if coupon.Code == "" || coupon.DiscountValue < 1 {
		return nil, store.ErrInvalidInput
	}
	if coupon.ID == "" {
		coupon.ID = xid.New("cpn")
	}
	if coupon.CreatedAt.IsZero() {
		coupon.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO coupons (
			id, code, discount_type, discount_value, min_order_cents, max_uses,
			used_count, expires_at, active, created_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, coupon.ID, coupon.Code, coupon.DiscountType, coupon.DiscountValue, coupon.MinOrderCents,
		nullInt(coupon.MaxUses), coupon.UsedCount, nullTime(coupon.ExpiresAt), coupon.Active,
		coupon.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicate
		}
		return nil, err
	}

	created := coupon
	return &created, nil
}

func (s *Store) UpdateCoupon(ctx context.Context, coupon domain.Coupon) (*domain.Coupon, error) {
	if coupon.ID == "" || coupon.DiscountValue < 1 {
		return nil, store.ErrInvalidInput
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE coupons
		SET discount_type = $2, discount_value = $3, min_order_cents = $4,
			max_uses = $5, expires_at = $6, active = $7
		WHERE id = $1
	`, coupon.ID, coupon.DiscountType, coupon.DiscountValue, coupon.MinOrderCents,
		nullInt(coupon.MaxUses), nullTime(coupon.ExpiresAt), coupon.Active)
	if err != nil {
		return nil, err
	}
	if err := requireAffected(res); err != nil {
		return nil, err
	}

	c, err := scanCoupon(s.db.QueryRowContext(ctx, `
		SELECT `+couponColumns+` FROM coupons WHERE id = $1
	`, coupon.ID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return c, err
}

func (s *Store) DeleteCoupon(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM coupons WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *Store) CreateOrder(ctx context.Context, order domain.Order) (*domain.Order, error) {
	if len(order.Items) == 0 {
		return nil, store.ErrInvalidInput
	}

	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	// Guarded decrements keep the whole checkout atomic: an oversold line
	// or an exhausted coupon rolls everything back.
	for _, item := range order.Items {
		res, err := pgTx.ExecContext(ctx, `
			UPDATE products
			SET stock = stock - $1, updated_at = now()
			WHERE id = $2 AND visible = true AND stock >= $1
		`, item.Qty, item.ProductID)
		if err != nil {
			return nil, err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, err
		}
		if affected == 0 {
			var exists bool
			if err := pgTx.QueryRowContext(ctx, `
				SELECT EXISTS (SELECT 1 FROM products WHERE id = $1 AND visible = true)
			`, item.ProductID).Scan(&exists); err != nil {
				return nil, err
			}
			if !exists {
				return nil, store.ErrNotFound
			}
			return nil, store.ErrInsufficientStock
		}
	}

	if order.CouponID != "" {
		res, err := pgTx.ExecContext(ctx, `
			UPDATE coupons
			SET used_count = used_count + 1
			WHERE id = $1 AND (max_uses IS NULL OR used_count < max_uses)
		`, order.CouponID)
		if err != nil {
			return nil, err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, err
		}
		if affected == 0 {
			var exists bool
			if err := pgTx.QueryRowContext(ctx, `
				SELECT EXISTS (SELECT 1 FROM coupons WHERE id = $1)
			`, order.CouponID).Scan(&exists); err != nil {
				return nil, err
			}
			if !exists {
				return nil, store.ErrNotFound
			}
			return nil, store.ErrCouponExhausted
		}
	}

	if order.ID == "" {
		order.ID = xid.New("ord")
	}
	now := time.Now().UTC()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = order.CreatedAt
	if order.Status == "" {
		order.Status = domain.OrderStatusPending
	}

	_, err = pgTx.ExecContext(ctx, `
		INSERT INTO orders (
			id, order_number, user_id, guest_email, status,
			subtotal_cents, discount_cents, shipping_cents, tax_cents, total_cents,
			coupon_id, coupon_code, shipping_address, payment_method, notes,
			created_at, updated_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
	`, order.ID, order.OrderNumber, nullIfEmpty(order.UserID), order.GuestEmail, order.Status,
		order.SubtotalCents, order.DiscountCents, order.ShippingCents, order.TaxCents,
		order.TotalCents, nullIfEmpty(order.CouponID), order.CouponCode,
		mustJSON(order.Address), order.PaymentMethod, order.Notes,
		order.CreatedAt, order.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicate
		}
		return nil, err
	}

	for i := range order.Items {
		item := &order.Items[i]
		if item.ID == "" {
			item.ID = xid.New("itm")
		}
		item.OrderID = order.ID
		_, err := pgTx.ExecContext(ctx, `
			INSERT INTO order_items (
				id, order_id, product_id, product_name, product_image,
				qty, unit_price_cents, total_cents
			)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		`, item.ID, item.OrderID, item.ProductID, item.ProductName, item.ProductImage,
			item.Qty, item.UnitPriceCents, item.TotalCents)
		if err != nil {
			return nil, err
		}
	}

	if err := pgTx.Commit(); err != nil {
		return nil, err
	}

	return &order, nil
}

const orderColumns = `
	id, order_number, user_id, guest_email, status,
	subtotal_cents, discount_cents, shipping_cents, tax_cents, total_cents,
	coupon_id, coupon_code, shipping_address, payment_method, notes,
	created_at, updated_at
`

func scanOrder(row interface{ Scan(...any) error }) (*domain.Order, error) {
	var (
		o        domain.Order
		userID   sql.NullString
		couponID sql.NullString
		address  []byte
	)
	err := row.Scan(&o.ID, &o.OrderNumber, &userID, &o.GuestEmail, &o.Status,
		&o.SubtotalCents, &o.DiscountCents, &o.ShippingCents, &o.TaxCents, &o.TotalCents,
		&couponID, &o.CouponCode, &address, &o.PaymentMethod, &o.Notes,
		&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	o.UserID = userID.String
	o.CouponID = couponID.String
	if len(address) > 0 {
		if err := json.Unmarshal(address, &o.Address); err != nil {
			return nil, err
		}
	}
	return &o, nil
}

func (s *Store) loadOrderItems(ctx context.Context, orderID string) ([]domain.OrderItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, order_id, product_id, product_name, product_image,
			qty, unit_price_cents, total_cents
		FROM order_items
		WHERE order_id = $1
		ORDER BY id
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.OrderItem, 0, 8)
	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.ProductName,
			&item.ProductImage, &item.Qty, &item.UnitPriceCents, &item.TotalCents); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) GetOrderByID(ctx context.Context, id string) (*domain.Order, error) {
	o, err := scanOrder(s.db.QueryRowContext(ctx, `
		SELECT `+orderColumns+` FROM orders WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	o.Items, err = s.loadOrderItems(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (s *Store) GetOrderByNumber(ctx context.Context, orderNumber string) (*domain.Order, error) {
	o, err := scanOrder(s.db.QueryRowContext(ctx, `
		SELECT `+orderColumns+` FROM orders WHERE order_number = $1
	`, orderNumber))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	o.Items, err = s.loadOrderItems(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (s *Store) ListOrders(ctx context.Context, filter store.OrderFilter) ([]domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE 1=1`
	args := make([]any, 0, 3)
	if filter.UserID != "" {
		args = append(args, filter.UserID)
		query += ` AND user_id = $` + strconv.Itoa(len(args))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		query += ` AND status = $` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += ` LIMIT $` + strconv.Itoa(len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := make([]domain.Order, 0, 32)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range orders {
		items, err := s.loadOrderItems(ctx, orders[i].ID)
		if err != nil {
			return nil, err
		}
		orders[i].Items = items
	}
	return orders, nil
}

func (s *Store) UpdateOrderStatus(ctx context.Context, id string, status string, at time.Time) (*domain.Order, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE orders
		SET status = $2, updated_at = $3
		WHERE id = $1
	`, id, status, at)
	if err != nil {
		return nil, err
	}
	if err := requireAffected(res); err != nil {
		return nil, err
	}
	return s.GetOrderByID(ctx, id)
}

func (s *Store) GetSettings(ctx context.Context) (*domain.SiteSettings, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT data FROM site_settings WHERE id = 1
	`).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			settings := domain.DefaultSiteSettings()
			return &settings, nil
		}
		return nil, err
	}

	var settings domain.SiteSettings
	if err := json.Unmarshal(data, &settings); err != nil {
		return nil, err
	}
	return &settings, nil
}

func (s *Store) UpdateSettings(ctx context.Context, settings domain.SiteSettings) (*domain.SiteSettings, error) {
	if settings.Shipping.BasePriceCents < 0 || settings.Shipping.FreeThresholdCents < 0 ||
		settings.Shipping.TaxPercent < 0 || settings.Shipping.TaxPercent > 100 {
		return nil, store.ErrInvalidInput
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO site_settings (id, data, updated_at)
		VALUES (1, $1, now())
		ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data, updated_at = now()
	`, mustJSON(settings))
	if err != nil {
		return nil, err
	}
	updated := settings
	return &updated, nil
}

func (s *Store) GetDashboardStats(ctx context.Context, now time.Time) (*domain.DashboardStats, error) {
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	var stats domain.DashboardStats

	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(total_cents), 0), COUNT(*)
		FROM orders
		WHERE created_at >= $1 AND status NOT IN ($2, $3)
	`, startOfDay, domain.OrderStatusCancelled, domain.OrderStatusRefunded).
		Scan(&stats.TodaySalesCents, &stats.TodayOrders)
	if err != nil {
		return nil, err
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE stock <= $1)
		FROM products
	`, lowStockThreshold).Scan(&stats.TotalProducts, &stats.LowStockProducts)
	if err != nil {
		return nil, err
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM orders WHERE status = $1
	`, domain.OrderStatusPending).Scan(&stats.PendingOrders)
	if err != nil {
		return nil, err
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM users WHERE role = $1
	`, domain.RoleCustomer).Scan(&stats.TotalCustomers)
	if err != nil {
		return nil, err
	}

	return &stats, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) (*domain.UserAccount, error) {
	if user.Email == "" || user.Password == "" || user.Role == "" {
		return nil, store.ErrInvalidInput
	}
	if user.ID == "" {
		user.ID = xid.New("usr")
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, password_hash, full_name, role, active, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, user.ID, user.Email, user.Password, user.FullName, user.Role, user.Active, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicate
		}
		return nil, err
	}

	created := user
	return &created, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.UserAccount, error) {
	var user domain.UserAccount
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, password_hash, full_name, role, active, created_at
		FROM users
		WHERE email = $1
	`, email).Scan(&user.ID, &user.Email, &user.Password, &user.FullName, &user.Role, &user.Active, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*domain.UserAccount, error) {
	var user domain.UserAccount
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, password_hash, full_name, role, active, created_at
		FROM users
		WHERE id = $1
	`, id).Scan(&user.ID, &user.Email, &user.Password, &user.FullName, &user.Role, &user.Active, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (s *Store) ListCustomers(ctx context.Context, limit int) ([]domain.UserAccount, error) {
	query := `
		SELECT id, email, password_hash, full_name, role, active, created_at
		FROM users
		WHERE role = $1
		ORDER BY created_at DESC, email
	`
	args := []any{domain.RoleCustomer}
	if limit > 0 {
		args = append(args, limit)
		query += ` LIMIT $2`
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	customers := make([]domain.UserAccount, 0, 32)
	for rows.Next() {
		var user domain.UserAccount
		if err := rows.Scan(&user.ID, &user.Email, &user.Password, &user.FullName, &user.Role, &user.Active, &user.CreatedAt); err != nil {
			return nil, err
		}
		customers = append(customers, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return customers, nil
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("aud")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, actor_email, actor_role, action, entity_type, entity_id, detail, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, entry.ID, entry.ActorEmail, entry.ActorRole, entry.Action, entry.EntityType, entry.EntityID,
		entry.Detail, entry.CreatedAt)
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	query := `
		SELECT id, actor_email, actor_role, action, entity_type, entity_id, detail, created_at
		FROM audit_logs
		WHERE 1=1
	`
	args := make([]any, 0, 3)
	if !from.IsZero() {
		args = append(args, from)
		query += ` AND created_at >= $` + strconv.Itoa(len(args))
	}
	if !to.IsZero() {
		args = append(args, to)
		query += ` AND created_at <= $` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if limit > 0 {
		args = append(args, limit)
		query += ` LIMIT $` + strconv.Itoa(len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]domain.AuditLog, 0, 64)
	for rows.Next() {
		var entry domain.AuditLog
		if err := rows.Scan(&entry.ID, &entry.ActorEmail, &entry.ActorRole, &entry.Action,
			&entry.EntityType, &entry.EntityID, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, err
		}
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return logs, nil
}

func requireAffected(res sql.Result) error {
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

func mustJSON(val any) []byte {
	data, err := json.Marshal(val)
	if err != nil {
		return []byte("null")
	}
	return data
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}

func nullInt64(val *int64) any {
	if val == nil {
		return nil
	}
	return *val
}

func nullInt(val *int) any {
	if val == nil {
		return nil
	}
	return *val
}

func nullTime(val *time.Time) any {
	if val == nil {
		return nil
	}
	return *val
}
