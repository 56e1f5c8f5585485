package domain

import "time"

// All monetary amounts are int64 minor units (cents). Percentages are
// float64 in [0,100].

type Product struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Slug           string    `json:"slug"`
	SKU            string    `json:"sku,omitempty"`
	Description    string    `json:"description,omitempty"`
	PriceCents     int64     `json:"price_cents"`
	SalePriceCents *int64    `json:"sale_price_cents,omitempty"`
	Currency       string    `json:"currency"`
	Images         []string  `json:"images"`
	Stock          int       `json:"stock"`
	CategoryID     string    `json:"category_id,omitempty"`
	Tags           []string  `json:"tags"`
	Visible        bool      `json:"visible"`
	Featured       bool      `json:"featured"`
	Size           string    `json:"size,omitempty"`
	Notes          string    `json:"notes,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type ProductCreateRequest struct {
	Name           string   `json:"name"`
	Slug           string   `json:"slug"`
	SKU            string   `json:"sku,omitempty"`
	Description    string   `json:"description,omitempty"`
	PriceCents     int64    `json:"price_cents"`
	SalePriceCents *int64   `json:"sale_price_cents,omitempty"`
	Currency       string   `json:"currency,omitempty"`
	Images         []string `json:"images,omitempty"`
	Stock          int      `json:"stock"`
	CategoryID     string   `json:"category_id,omitempty"`
	Tags           []string `json:"tags,omitempty"`
	Visible        *bool    `json:"visible,omitempty"`
	Featured       bool     `json:"featured"`
	Size           string   `json:"size,omitempty"`
	Notes          string   `json:"notes,omitempty"`
}

type ProductUpdateRequest struct {
	Name           *string   `json:"name,omitempty"`
	Slug           *string   `json:"slug,omitempty"`
	SKU            *string   `json:"sku,omitempty"`
	Description    *string   `json:"description,omitempty"`
	PriceCents     *int64    `json:"price_cents,omitempty"`
	SalePriceCents *int64    `json:"sale_price_cents,omitempty"`
	ClearSalePrice bool      `json:"clear_sale_price,omitempty"`
	Images         *[]string `json:"images,omitempty"`
	Stock          *int      `json:"stock,omitempty"`
	CategoryID     *string   `json:"category_id,omitempty"`
	Tags           *[]string `json:"tags,omitempty"`
	Visible        *bool     `json:"visible,omitempty"`
	Featured       *bool     `json:"featured,omitempty"`
	Size           *string   `json:"size,omitempty"`
	Notes          *string   `json:"notes,omitempty"`
}

type Category struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description string    `json:"description,omitempty"`
	ImageURL    string    `json:"image_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type CategoryCreateRequest struct {
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
}

const (
	DiscountTypePercentage = "percentage"
	DiscountTypeFixed      = "fixed"
)

// Coupon codes are stored uppercase; lookup normalizes before comparison.
// For percentage coupons DiscountValue is a percent in (0,100]; for fixed
// coupons it is a cent amount.
type Coupon struct {
	ID            string     `json:"id"`
	Code          string     `json:"code"`
	DiscountType  string     `json:"discount_type"`
	DiscountValue int64      `json:"discount_value"`
	MinOrderCents int64      `json:"min_order_cents"`
	MaxUses       *int       `json:"max_uses,omitempty"`
	UsedCount     int        `json:"used_count"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	Active        bool       `json:"active"`
	CreatedAt     time.Time  `json:"created_at"`
}

type CouponCreateRequest struct {
	Code          string     `json:"code"`
	DiscountType  string     `json:"discount_type"`
	DiscountValue int64      `json:"discount_value"`
	MinOrderCents int64      `json:"min_order_cents"`
	MaxUses       *int       `json:"max_uses,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	Active        *bool      `json:"active,omitempty"`
}

type CouponUpdateRequest struct {
	DiscountType  *string    `json:"discount_type,omitempty"`
	DiscountValue *int64     `json:"discount_value,omitempty"`
	MinOrderCents *int64     `json:"min_order_cents,omitempty"`
	MaxUses       *int       `json:"max_uses,omitempty"`
	ClearMaxUses  bool       `json:"clear_max_uses,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	Active        *bool      `json:"active,omitempty"`
}

type ValidateCouponRequest struct {
	Code  string     `json:"code"`
	Items []CartItem `json:"items"`
}

type ValidateCouponResponse struct {
	Valid  bool    `json:"valid"`
	Reason string  `json:"reason,omitempty"`
	Error  string  `json:"error,omitempty"`
	Coupon *Coupon `json:"coupon,omitempty"`
}

// ShippingConfig is administrator-configured and read-only to the price
// calculator. FreeThresholdCents == 0 disables free shipping entirely.
type ShippingConfig struct {
	BasePriceCents     int64   `json:"base_price_cents"`
	FreeThresholdCents int64   `json:"free_threshold_cents"`
	TaxPercent         float64 `json:"tax_percent"`
}

type AnnouncementSettings struct {
	Text    string `json:"text"`
	Enabled bool   `json:"enabled"`
}

type HeroSettings struct {
	Title    string `json:"title"`
	Subtitle string `json:"subtitle"`
	CTAText  string `json:"cta_text"`
	CTALink  string `json:"cta_link"`
}

type FooterSettings struct {
	AboutText string `json:"about_text"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Instagram string `json:"instagram"`
	Facebook  string `json:"facebook"`
	Twitter   string `json:"twitter"`
}

type SiteSettings struct {
	Announcement AnnouncementSettings `json:"announcement"`
	Hero         HeroSettings         `json:"hero"`
	Footer       FooterSettings       `json:"footer"`
	Shipping     ShippingConfig       `json:"shipping"`
}

type SettingUpdateRequest struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// DefaultSiteSettings are used until an administrator saves their own, and
// whenever the settings row is missing entirely.
func DefaultSiteSettings() SiteSettings {
	return SiteSettings{
		Announcement: AnnouncementSettings{
			Text:    "Free shipping on orders over 1,500",
			Enabled: true,
		},
		Hero: HeroSettings{
			Title:    "Aurelia",
			Subtitle: "Considered essentials, made to last",
			CTAText:  "Shop the collection",
			CTALink:  "/products",
		},
		Footer: FooterSettings{
			AboutText: "Small-batch goods shipped from our studio.",
			Email:     "hello@aurelia.local",
		},
		Shipping: ShippingConfig{
			BasePriceCents:     9900,
			FreeThresholdCents: 150000,
			TaxPercent:         18,
		},
	}
}

// PriceQuote is derived data: created fresh on every cart or coupon change,
// never independently mutated, and copied verbatim into an order's financial
// fields at checkout.
type PriceQuote struct {
	SubtotalCents int64 `json:"subtotal_cents"`
	DiscountCents int64 `json:"discount_cents"`
	ShippingCents int64 `json:"shipping_cents"`
	TaxCents      int64 `json:"tax_cents"`
	TotalCents    int64 `json:"total_cents"`
}

type CartItem struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
}

type QuoteRequest struct {
	Items      []CartItem `json:"items"`
	CouponCode string     `json:"coupon_code,omitempty"`
}

type QuoteLine struct {
	ProductID      string `json:"product_id"`
	Name           string `json:"name"`
	Qty            int    `json:"qty"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	LineTotalCents int64  `json:"line_total_cents"`
}

type QuoteResponse struct {
	Lines        []QuoteLine `json:"lines"`
	Quote        PriceQuote  `json:"quote"`
	Coupon       *Coupon     `json:"coupon,omitempty"`
	CouponReason string      `json:"coupon_reason,omitempty"`
	CouponError  string      `json:"coupon_error,omitempty"`
}

type Address struct {
	FullName     string `json:"full_name"`
	Phone        string `json:"phone"`
	AddressLine1 string `json:"address_line1"`
	AddressLine2 string `json:"address_line2,omitempty"`
	City         string `json:"city"`
	State        string `json:"state"`
	PostalCode   string `json:"postal_code"`
	Country      string `json:"country"`
}

const (
	OrderStatusPending    = "pending"
	OrderStatusPaid       = "paid"
	OrderStatusProcessing = "processing"
	OrderStatusShipped    = "shipped"
	OrderStatusDelivered  = "delivered"
	OrderStatusCancelled  = "cancelled"
	OrderStatusRefunded   = "refunded"
)

// Order financial fields are immutable once persisted; adjustments are new
// domain events, never recomputation.
type Order struct {
	ID            string      `json:"id"`
	OrderNumber   string      `json:"order_number"`
	UserID        string      `json:"user_id,omitempty"`
	GuestEmail    string      `json:"guest_email,omitempty"`
	Status        string      `json:"status"`
	SubtotalCents int64       `json:"subtotal_cents"`
	DiscountCents int64       `json:"discount_cents"`
	ShippingCents int64       `json:"shipping_cents"`
	TaxCents      int64       `json:"tax_cents"`
	TotalCents    int64       `json:"total_cents"`
	CouponID      string      `json:"coupon_id,omitempty"`
	CouponCode    string      `json:"coupon_code,omitempty"`
	Address       Address     `json:"shipping_address"`
	PaymentMethod string      `json:"payment_method"`
	Notes         string      `json:"notes,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
	Items         []OrderItem `json:"items,omitempty"`
}

// OrderItem snapshots the product at purchase time so later catalog edits
// never change order history.
type OrderItem struct {
	ID             string `json:"id"`
	OrderID        string `json:"order_id"`
	ProductID      string `json:"product_id"`
	ProductName    string `json:"product_name"`
	ProductImage   string `json:"product_image,omitempty"`
	Qty            int    `json:"qty"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	TotalCents     int64  `json:"total_cents"`
}

type CheckoutRequest struct {
	Items         []CartItem `json:"items"`
	CouponCode    string     `json:"coupon_code,omitempty"`
	GuestEmail    string     `json:"guest_email,omitempty"`
	Address       Address    `json:"shipping_address"`
	PaymentMethod string     `json:"payment_method,omitempty"`
	Notes         string     `json:"notes,omitempty"`
}

type CheckoutResponse struct {
	Order Order `json:"order"`
}

type OrderListResponse struct {
	Orders []Order `json:"orders"`
}

type OrderStatusUpdateRequest struct {
	Status string `json:"status"`
}

type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name,omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	UserID string
	Email  string
	Role   string
}

const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"
)

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	ID        string
	Email     string
	Password  string
	FullName  string
	Role      string
	Active    bool
	CreatedAt time.Time
}

type CustomerProfile struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name,omitempty"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

type DashboardStats struct {
	TodaySalesCents  int64 `json:"today_sales_cents"`
	TodayOrders      int   `json:"today_orders"`
	TotalProducts    int   `json:"total_products"`
	LowStockProducts int   `json:"low_stock_products"`
	TotalCustomers   int   `json:"total_customers"`
	PendingOrders    int   `json:"pending_orders"`
}

type AuditLog struct {
	ID         string    `json:"id"`
	ActorEmail string    `json:"actor_email"`
	ActorRole  string    `json:"actor_role"`
	Action     string    `json:"action"`
	EntityType string    `json:"entity_type"`
	EntityID   string    `json:"entity_id"`
	Detail     string    `json:"detail"`
	CreatedAt  time.Time `json:"created_at"`
}
