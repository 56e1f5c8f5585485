package store

import (
	"context"
	"errors"
	"time"

	"aurelia/backend/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrCouponExhausted   = errors.New("coupon exhausted")
	ErrDuplicate         = errors.New("duplicate")
)

// ProductFilter narrows storefront product listings. Zero values mean no
// constraint.
type ProductFilter struct {
	CategoryID  string
	Tag         string
	Search      string
	Featured    bool
	OnSale      bool
	VisibleOnly bool
	Limit       int
}

// OrderFilter narrows order listings for the admin panel.
type OrderFilter struct {
	UserID string
	Status string
	Limit  int
}

type Repository interface {
	ListProducts(ctx context.Context, filter ProductFilter) ([]domain.Product, error)
	GetProductByID(ctx context.Context, id string) (*domain.Product, error)
	GetProductBySlug(ctx context.Context, slug string) (*domain.Product, error)
	GetProductsByIDs(ctx context.Context, ids []string) (map[string]domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id string) error

	ListCategories(ctx context.Context) ([]domain.Category, error)
	GetCategoryBySlug(ctx context.Context, slug string) (*domain.Category, error)
	CreateCategory(ctx context.Context, category domain.Category) (*domain.Category, error)
	UpdateCategory(ctx context.Context, category domain.Category) (*domain.Category, error)
	DeleteCategory(ctx context.Context, id string) error

	GetCouponByCode(ctx context.Context, code string) (*domain.Coupon, error)
	GetCouponByID(ctx context.Context, id string) (*domain.Coupon, error)
	ListCoupons(ctx context.Context) ([]domain.Coupon, error)
	CreateCoupon(ctx context.Context, coupon domain.Coupon) (*domain.Coupon, error)
	UpdateCoupon(ctx context.Context, coupon domain.Coupon) (*domain.Coupon, error)
	DeleteCoupon(ctx context.Context, id string) error

	// CreateOrder persists the order and its items, decrements stock for
	// every line, and when order.CouponID is set performs a conditional
	// coupon redemption. All of it succeeds or none of it does; exhausted
	// coupons surface ErrCouponExhausted and oversold lines
	// ErrInsufficientStock.
	CreateOrder(ctx context.Context, order domain.Order) (*domain.Order, error)
	GetOrderByID(ctx context.Context, id string) (*domain.Order, error)
	GetOrderByNumber(ctx context.Context, orderNumber string) (*domain.Order, error)
	ListOrders(ctx context.Context, filter OrderFilter) ([]domain.Order, error)
	UpdateOrderStatus(ctx context.Context, id string, status string, at time.Time) (*domain.Order, error)

	GetSettings(ctx context.Context) (*domain.SiteSettings, error)
	UpdateSettings(ctx context.Context, settings domain.SiteSettings) (*domain.SiteSettings, error)

	GetDashboardStats(ctx context.Context, now time.Time) (*domain.DashboardStats, error)

	CreateUser(ctx context.Context, user domain.UserAccount) (*domain.UserAccount, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.UserAccount, error)
	GetUserByID(ctx context.Context, id string) (*domain.UserAccount, error)
	ListCustomers(ctx context.Context, limit int) ([]domain.UserAccount, error)

	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error)
}
