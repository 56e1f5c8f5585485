package memory

import (
	"context"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"aurelia/backend/internal/domain"
	"aurelia/backend/internal/store"
	"aurelia/backend/internal/xid"
)

const lowStockThreshold = 5

type Store struct {
	mu             sync.RWMutex
	products       map[string]domain.Product
	categories     map[string]domain.Category
	coupons        map[string]domain.Coupon
	couponIDByCode map[string]string
	orders         map[string]domain.Order
	settings       domain.SiteSettings
	usersByID      map[string]domain.UserAccount
	userIDByEmail  map[string]string
	auditLogs      []domain.AuditLog
}

// seedAdmin builds the initial admin account for dev/demo mode. The password
// comes from SEED_ADMIN_PASSWORD; if unset a hardcoded dev default is used
// with a warning printed to stdout. These credentials are never used in
// production (the backend uses PostgreSQL when DATABASE_URL is set).
func seedAdmin() domain.UserAccount {
	password := envOr("SEED_ADMIN_PASSWORD", "admin123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev admin credentials. Set SEED_ADMIN_PASSWORD to override.")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("[memory-store] failed to hash seed admin password: %v", err)
	}
	return domain.UserAccount{
		ID:        xid.New("usr"),
		Email:     "admin@aurelia.local",
		Password:  string(hash),
		FullName:  "Store Admin",
		Role:      domain.RoleAdmin,
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func NewSeeded() *Store {
	now := time.Now().UTC()

	categories := []domain.Category{
		{ID: "cat-apparel", Name: "Apparel", Slug: "apparel", CreatedAt: now, UpdatedAt: now},
		{ID: "cat-home", Name: "Home", Slug: "home", CreatedAt: now, UpdatedAt: now},
		{ID: "cat-accessories", Name: "Accessories", Slug: "accessories", CreatedAt: now, UpdatedAt: now},
	}

	sale := int64(42000)
	products := []domain.Product{
		{ID: "prod-tee-01", Name: "Heavyweight Tee", Slug: "heavyweight-tee", SKU: "AUR-TEE-01", PriceCents: 38000, Currency: "USD", Stock: 40, CategoryID: "cat-apparel", Tags: []string{"cotton", "staple"}, Visible: true, Featured: true, CreatedAt: now, UpdatedAt: now},
		{ID: "prod-crew-01", Name: "Wool Crewneck", Slug: "wool-crewneck", SKU: "AUR-CRW-01", PriceCents: 54000, SalePriceCents: &sale, Currency: "USD", Stock: 18, CategoryID: "cat-apparel", Tags: []string{"wool"}, Visible: true, CreatedAt: now, UpdatedAt: now},
		{ID: "prod-throw-01", Name: "Linen Throw", Slug: "linen-throw", SKU: "AUR-THR-01", PriceCents: 89000, Currency: "USD", Stock: 12, CategoryID: "cat-home", Tags: []string{"linen"}, Visible: true, Featured: true, CreatedAt: now, UpdatedAt: now},
		{ID: "prod-candle-01", Name: "Cedar Candle", Slug: "cedar-candle", SKU: "AUR-CND-01", PriceCents: 24000, Currency: "USD", Stock: 60, CategoryID: "cat-home", Tags: []string{"fragrance"}, Visible: true, CreatedAt: now, UpdatedAt: now},
		{ID: "prod-tote-01", Name: "Canvas Tote", Slug: "canvas-tote", SKU: "AUR-TOT-01", PriceCents: 32000, Currency: "USD", Stock: 3, CategoryID: "cat-accessories", Tags: []string{"canvas"}, Visible: true, CreatedAt: now, UpdatedAt: now},
	}

	maxUses := 100
	coupons := []domain.Coupon{
		{ID: "cpn-save10", Code: "SAVE10", DiscountType: domain.DiscountTypePercentage, DiscountValue: 10, Active: true, CreatedAt: now},
		{ID: "cpn-welcome", Code: "WELCOME", DiscountType: domain.DiscountTypeFixed, DiscountValue: 5000, MinOrderCents: 50000, MaxUses: &maxUses, Active: true, CreatedAt: now},
	}

	productMap := make(map[string]domain.Product, len(products))
	for _, p := range products {
		productMap[p.ID] = p
	}
	categoryMap := make(map[string]domain.Category, len(categories))
	for _, c := range categories {
		categoryMap[c.ID] = c
	}
	couponMap := make(map[string]domain.Coupon, len(coupons))
	couponIDByCode := make(map[string]string, len(coupons))
	for _, c := range coupons {
		couponMap[c.ID] = c
		couponIDByCode[c.Code] = c.ID
	}

	admin := seedAdmin()

	return &Store{
		products:       productMap,
		categories:     categoryMap,
		coupons:        couponMap,
		couponIDByCode: couponIDByCode,
		orders:         make(map[string]domain.Order),
		settings:       domain.DefaultSiteSettings(),
		usersByID:      map[string]domain.UserAccount{admin.ID: admin},
		userIDByEmail:  map[string]string{admin.Email: admin.ID},
		auditLogs:      make([]domain.AuditLog, 0, 128),
	}
}

func (s *Store) ListProducts(_ context.Context, filter store.ProductFilter) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	search := strings.ToLower(strings.TrimSpace(filter.Search))
	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		if filter.VisibleOnly && !p.Visible {
			continue
		}
		if filter.CategoryID != "" && p.CategoryID != filter.CategoryID {
			continue
		}
		if filter.Tag != "" && !slices.Contains(p.Tags, filter.Tag) {
			continue
		}
		if filter.Featured && !p.Featured {
			continue
		}
		if filter.OnSale && p.SalePriceCents == nil {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(p.Name), search) &&
			!strings.Contains(strings.ToLower(p.Description), search) {
			continue
		}
		products = append(products, p)
	}

	slices.SortFunc(products, func(a, b domain.Product) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(a.Name, b.Name)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	if filter.Limit > 0 && len(products) > filter.Limit {
		products = products[:filter.Limit]
	}
	return products, nil
}

func (s *Store) GetProductByID(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, exists := s.products[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyProduct := product
	return &copyProduct, nil
}

func (s *Store) GetProductBySlug(_ context.Context, slug string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.products {
		if p.Slug == slug {
			copyProduct := p
			return &copyProduct, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) GetProductsByIDs(_ context.Context, ids []string) (map[string]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]domain.Product, len(ids))
	for _, id := range ids {
		if p, ok := s.products[id]; ok && p.Visible {
			result[id] = p
		}
	}
	return result, nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if product.Name == "" || product.Slug == "" || product.PriceCents < 1 {
		return nil, store.ErrInvalidInput
	}
	for _, existing := range s.products {
		if existing.Slug == product.Slug {
			return nil, store.ErrDuplicate
		}
	}

	if product.ID == "" {
		product.ID = xid.New("prod")
	}
	now := time.Now().UTC()
	if product.CreatedAt.IsZero() {
		product.CreatedAt = now
	}
	product.UpdatedAt = now

	s.products[product.ID] = product
	created := product
	return &created, nil
}

func (s *Store) UpdateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if product.ID == "" || product.Name == "" || product.Slug == "" || product.PriceCents < 1 {
		return nil, store.ErrInvalidInput
	}
	existing, exists := s.products[product.ID]
	if !exists {
		return nil, store.ErrNotFound
	}
	for _, other := range s.products {
		if other.ID != product.ID && other.Slug == product.Slug {
			return nil, store.ErrDuplicate
		}
	}

	product.CreatedAt = existing.CreatedAt
	product.UpdatedAt = time.Now().UTC()
	s.products[product.ID] = product
	updated := product
	return &updated, nil
}

func (s *Store) DeleteProduct(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.products[id]; !exists {
		return store.ErrNotFound
	}
	delete(s.products, id)
	return nil
}

func (s *Store) ListCategories(_ context.Context) ([]domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	categories := make([]domain.Category, 0, len(s.categories))
	for _, c := range s.categories {
		categories = append(categories, c)
	}
	slices.SortFunc(categories, func(a, b domain.Category) int {
		return cmpString(a.Name, b.Name)
	})
	return categories, nil
}

func (s *Store) GetCategoryBySlug(_ context.Context, slug string) (*domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.categories {
		if c.Slug == slug {
			copyCategory := c
			return &copyCategory, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) CreateCategory(_ context.Context, category domain.Category) (*domain.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if category.Name == "" || category.Slug == "" {
		return nil, store.ErrInvalidInput
	}
	for _, existing := range s.categories {
		if existing.Slug == category.Slug {
			return nil, store.ErrDuplicate
		}
	}

	if category.ID == "" {
		category.ID = xid.New("cat")
	}
	now := time.Now().UTC()
	if category.CreatedAt.IsZero() {
		category.CreatedAt = now
	}
	category.UpdatedAt = now

	s.categories[category.ID] = category
	created := category
	return &created, nil
}

func (s *Store) UpdateCategory(_ context.Context, category domain.Category) (*domain.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if category.ID == "" || category.Name == "" || category.Slug == "" {
		return nil, store.ErrInvalidInput
	}
	existing, exists := s.categories[category.ID]
	if !exists {
		return nil, store.ErrNotFound
	}
	for _, other := range s.categories {
		if other.ID != category.ID && other.Slug == category.Slug {
			return nil, store.ErrDuplicate
		}
	}

	category.CreatedAt = existing.CreatedAt
	category.UpdatedAt = time.Now().UTC()
	s.categories[category.ID] = category
	updated := category
	return &updated, nil
}

func (s *Store) DeleteCategory(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.categories[id]; !exists {
		return store.ErrNotFound
	}
	delete(s.categories, id)
	for pid, p := range s.products {
		if p.CategoryID == id {
			p.CategoryID = ""
			s.products[pid] = p
		}
	}
	return nil
}

func (s *Store) GetCouponByCode(_ context.Context, code string) (*domain.Coupon, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.couponIDByCode[code]
	if !ok {
		return nil, store.ErrNotFound
	}
	coupon := s.coupons[id]
	copyCoupon := coupon
	return &copyCoupon, nil
}

func (s *Store) GetCouponByID(_ context.Context, id string) (*domain.Coupon, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	coupon, exists := s.coupons[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyCoupon := coupon
	return &copyCoupon, nil
}

func (s *Store) ListCoupons(_ context.Context) ([]domain.Coupon, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	coupons := make([]domain.Coupon, 0, len(s.coupons))
	for _, c := range s.coupons {
		coupons = append(coupons, c)
	}
	slices.SortFunc(coupons, func(a, b domain.Coupon) int {
		return cmpString(a.Code, b.Code)
	})
	return coupons, nil
}

func (s *Store) CreateCoupon(_ context.Context, coupon domain.Coupon) (*domain.Coupon, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := validateCoupon(coupon); err != nil {
		return nil, err
	}
	if _, exists := s.couponIDByCode[coupon.Code]; exists {
		return nil, store.ErrDuplicate
	}

	if coupon.ID == "" {
		coupon.ID = xid.New("cpn")
	}
	if coupon.CreatedAt.IsZero() {
		coupon.CreatedAt = time.Now().UTC()
	}

	s.coupons[coupon.ID] = coupon
	s.couponIDByCode[coupon.Code] = coupon.ID
	created := coupon
	return &created, nil
}

func (s *Store) UpdateCoupon(_ context.Context, coupon domain.Coupon) (*domain.Coupon, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if coupon.ID == "" {
		return nil, store.ErrInvalidInput
	}
	if err := validateCoupon(coupon); err != nil {
		return nil, err
	}
	existing, exists := s.coupons[coupon.ID]
	if !exists {
		return nil, store.ErrNotFound
	}

	// Code is immutable after creation.
	coupon.Code = existing.Code
	coupon.CreatedAt = existing.CreatedAt
	s.coupons[coupon.ID] = coupon
	updated := coupon
	return &updated, nil
}

func (s *Store) DeleteCoupon(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	coupon, exists := s.coupons[id]
	if !exists {
		return store.ErrNotFound
	}
	delete(s.coupons, id)
	delete(s.couponIDByCode, coupon.Code)
	return nil
}

func validateCoupon(coupon domain.Coupon) error {
	if coupon.Code == "" || coupon.DiscountValue < 1 {
		return store.ErrInvalidInput
	}
	switch coupon.DiscountType {
	case domain.DiscountTypePercentage:
		if coupon.DiscountValue > 100 {
			return store.ErrInvalidInput
		}
	case domain.DiscountTypeFixed:
	default:
		return store.ErrInvalidInput
	}
	if coupon.MinOrderCents < 0 || coupon.UsedCount < 0 {
		return store.ErrInvalidInput
	}
	if coupon.MaxUses != nil && *coupon.MaxUses < 1 {
		return store.ErrInvalidInput
	}
	return nil
}

func (s *Store) CreateOrder(_ context.Context, order domain.Order) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(order.Items) == 0 {
		return nil, store.ErrInvalidInput
	}

	for _, item := range order.Items {
		product, exists := s.products[item.ProductID]
		if !exists {
			return nil, store.ErrNotFound
		}
		if product.Stock < item.Qty {
			return nil, store.ErrInsufficientStock
		}
	}

	// Conditional redemption: the increment happens only while usage
	// remains below the cap, matching the SQL store's guarded UPDATE.
	if order.CouponID != "" {
		coupon, exists := s.coupons[order.CouponID]
		if !exists {
			return nil, store.ErrNotFound
		}
		if coupon.MaxUses != nil && coupon.UsedCount >= *coupon.MaxUses {
			return nil, store.ErrCouponExhausted
		}
		coupon.UsedCount++
		s.coupons[order.CouponID] = coupon
	}

	for _, item := range order.Items {
		product := s.products[item.ProductID]
		product.Stock -= item.Qty
		s.products[item.ProductID] = product
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
	for i := range order.Items {
		if order.Items[i].ID == "" {
			order.Items[i].ID = xid.New("itm")
		}
		order.Items[i].OrderID = order.ID
	}

	s.orders[order.ID] = cloneOrder(order)
	created := cloneOrder(order)
	return &created, nil
}

func (s *Store) GetOrderByID(_ context.Context, id string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	order, exists := s.orders[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyOrder := cloneOrder(order)
	return &copyOrder, nil
}

func (s *Store) GetOrderByNumber(_ context.Context, orderNumber string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, o := range s.orders {
		if o.OrderNumber == orderNumber {
			copyOrder := cloneOrder(o)
			return &copyOrder, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) ListOrders(_ context.Context, filter store.OrderFilter) ([]domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	orders := make([]domain.Order, 0, len(s.orders))
	for _, o := range s.orders {
		if filter.UserID != "" && o.UserID != filter.UserID {
			continue
		}
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		orders = append(orders, cloneOrder(o))
	}
	slices.SortFunc(orders, func(a, b domain.Order) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(b.ID, a.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	if filter.Limit > 0 && len(orders) > filter.Limit {
		orders = orders[:filter.Limit]
	}
	return orders, nil
}

func (s *Store) UpdateOrderStatus(_ context.Context, id string, status string, at time.Time) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, exists := s.orders[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	order.Status = status
	order.UpdatedAt = at
	s.orders[id] = order
	copyOrder := cloneOrder(order)
	return &copyOrder, nil
}

func (s *Store) GetSettings(_ context.Context) (*domain.SiteSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	settings := s.settings
	return &settings, nil
}

func (s *Store) UpdateSettings(_ context.Context, settings domain.SiteSettings) (*domain.SiteSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if settings.Shipping.BasePriceCents < 0 || settings.Shipping.FreeThresholdCents < 0 ||
		settings.Shipping.TaxPercent < 0 || settings.Shipping.TaxPercent > 100 {
		return nil, store.ErrInvalidInput
	}
	s.settings = settings
	updated := settings
	return &updated, nil
}

func (s *Store) GetDashboardStats(_ context.Context, now time.Time) (*domain.DashboardStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	stats := domain.DashboardStats{TotalProducts: len(s.products)}

	for _, p := range s.products {
		if p.Stock <= lowStockThreshold {
			stats.LowStockProducts++
		}
	}
	for _, o := range s.orders {
		if o.Status == domain.OrderStatusPending {
			stats.PendingOrders++
		}
		if o.Status == domain.OrderStatusCancelled || o.Status == domain.OrderStatusRefunded {
			continue
		}
		if !o.CreatedAt.Before(startOfDay) {
			stats.TodaySalesCents += o.TotalCents
			stats.TodayOrders++
		}
	}
	for _, u := range s.usersByID {
		if u.Role == domain.RoleCustomer {
			stats.TotalCustomers++
		}
	}
	return &stats, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) (*domain.UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user.Email == "" || user.Password == "" || user.Role == "" {
		return nil, store.ErrInvalidInput
	}
	if _, exists := s.userIDByEmail[user.Email]; exists {
		return nil, store.ErrDuplicate
	}

	if user.ID == "" {
		user.ID = xid.New("usr")
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	s.usersByID[user.ID] = user
	s.userIDByEmail[user.Email] = user.ID
	created := user
	return &created, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.userIDByEmail[email]
	if !ok {
		return nil, store.ErrNotFound
	}
	user := s.usersByID[id]
	copyUser := user
	return &copyUser, nil
}

func (s *Store) GetUserByID(_ context.Context, id string) (*domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, exists := s.usersByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyUser := user
	return &copyUser, nil
}

func (s *Store) ListCustomers(_ context.Context, limit int) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customers := make([]domain.UserAccount, 0, len(s.usersByID))
	for _, u := range s.usersByID {
		if u.Role != domain.RoleCustomer {
			continue
		}
		customers = append(customers, u)
	}
	slices.SortFunc(customers, func(a, b domain.UserAccount) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(a.Email, b.Email)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	if limit > 0 && len(customers) > limit {
		customers = customers[:limit]
	}
	return customers, nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = xid.New("aud")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	logs := make([]domain.AuditLog, 0, len(s.auditLogs))
	for _, entry := range s.auditLogs {
		if !from.IsZero() && entry.CreatedAt.Before(from) {
			continue
		}
		if !to.IsZero() && entry.CreatedAt.After(to) {
			continue
		}
		logs = append(logs, entry)
	}
	slices.SortFunc(logs, func(a, b domain.AuditLog) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(b.ID, a.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	if limit > 0 && len(logs) > limit {
		logs = logs[:limit]
	}
	return logs, nil
}

func cloneOrder(order domain.Order) domain.Order {
	copyOrder := order
	copyOrder.Items = make([]domain.OrderItem, len(order.Items))
	copy(copyOrder.Items, order.Items)
	return copyOrder
}

func cmpString(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
