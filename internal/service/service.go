package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"aurelia/backend/internal/cache"
	"aurelia/backend/internal/domain"
	"aurelia/backend/internal/pricing"
	"aurelia/backend/internal/store"
	"aurelia/backend/internal/xid"
)

var ErrForbidden = errors.New("admin role required")

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

const settingsCacheKey = "site:settings"

type Service struct {
	repo        store.Repository
	settings    cache.SettingsCache
	settingsTTL time.Duration
}

func New(repo store.Repository, settingsCache cache.SettingsCache, settingsTTL time.Duration) *Service {
	if settingsCache == nil {
		settingsCache = cache.NoopSettingsCache{}
	}
	if settingsTTL < time.Second {
		settingsTTL = 30 * time.Second
	}

	return &Service{
		repo:        repo,
		settings:    settingsCache,
		settingsTTL: settingsTTL,
	}
}

func (s *Service) loadSettings(ctx context.Context) (domain.SiteSettings, error) {
	if cached, hit, err := s.settings.Get(ctx, settingsCacheKey); err == nil && hit {
		return *cached, nil
	} else if err != nil {
		log.Printf("[service] WARN: settings cache read failed: %v", err)
	}

	settings, err := s.repo.GetSettings(ctx)
	if err != nil {
		return domain.SiteSettings{}, err
	}
	if err := s.settings.Set(ctx, settingsCacheKey, settings, s.settingsTTL); err != nil {
		log.Printf("[service] WARN: settings cache write failed: %v", err)
	}
	return *settings, nil
}

func (s *Service) GetSiteSettings(ctx context.Context) (domain.SiteSettings, error) {
	return s.loadSettings(ctx)
}

func (s *Service) ListProducts(ctx context.Context, filter store.ProductFilter) ([]domain.Product, error) {
	filter.VisibleOnly = true
	return s.repo.ListProducts(ctx, filter)
}

func (s *Service) GetProductBySlug(ctx context.Context, slug string) (domain.Product, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return domain.Product{}, store.ErrInvalidInput
	}
	product, err := s.repo.GetProductBySlug(ctx, slug)
	if err != nil {
		return domain.Product{}, err
	}
	if !product.Visible {
		return domain.Product{}, store.ErrNotFound
	}
	return *product, nil
}

func (s *Service) ListCategories(ctx context.Context) ([]domain.Category, error) {
	return s.repo.ListCategories(ctx)
}

func (s *Service) GetCategoryBySlug(ctx context.Context, slug string) (domain.Category, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return domain.Category{}, store.ErrInvalidInput
	}
	category, err := s.repo.GetCategoryBySlug(ctx, slug)
	if err != nil {
		return domain.Category{}, err
	}
	return *category, nil
}

// normalizeItems merges duplicate product lines and rejects carts containing
// non-positive quantities.
func normalizeItems(items []domain.CartItem) ([]domain.CartItem, error) {
	merged := make([]domain.CartItem, 0, len(items))
	index := make(map[string]int, len(items))
	for _, item := range items {
		item.ProductID = strings.TrimSpace(item.ProductID)
		if item.ProductID == "" || item.Qty < 1 {
			return nil, store.ErrInvalidInput
		}
		if pos, seen := index[item.ProductID]; seen {
			merged[pos].Qty += item.Qty
			continue
		}
		index[item.ProductID] = len(merged)
		merged = append(merged, item)
	}
	return merged, nil
}

// buildCartLines resolves cart items against the live catalog. Hidden and
// deleted products fail the whole cart.
func (s *Service) buildCartLines(ctx context.Context, items []domain.CartItem) ([]pricing.CartLine, error) {
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductID)
	}
	products, err := s.repo.GetProductsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	lines := make([]pricing.CartLine, 0, len(items))
	for _, item := range items {
		product, exists := products[item.ProductID]
		if !exists {
			return nil, fmt.Errorf("%w: product %s unavailable", store.ErrInvalidInput, item.ProductID)
		}
		line, err := pricing.NewCartLine(product.ID, product.Name, item.Qty, product.PriceCents, product.SalePriceCents)
		if err != nil {
			return nil, err
		}
		if len(product.Images) > 0 {
			line.ImageURL = product.Images[0]
		}
		lines = append(lines, line)
	}
	return lines, nil
}

func toQuoteLines(lines []pricing.CartLine) []domain.QuoteLine {
	result := make([]domain.QuoteLine, 0, len(lines))
	for _, l := range lines {
		result = append(result, domain.QuoteLine{
			ProductID:      l.ProductID,
			Name:           l.Name,
			Qty:            l.Qty,
			UnitPriceCents: l.EffectiveUnitPriceCents(),
			LineTotalCents: l.LineTotalCents(),
		})
	}
	return result
}

// QuoteCart prices a cart. A rejected coupon does not fail the quote: the
// response carries the no-coupon totals plus the rejection reason so the
// storefront can show both.
func (s *Service) QuoteCart(ctx context.Context, req domain.QuoteRequest) (domain.QuoteResponse, error) {
	items, err := normalizeItems(req.Items)
	if err != nil {
		return domain.QuoteResponse{}, err
	}
	if len(items) == 0 {
		return domain.QuoteResponse{}, store.ErrInvalidInput
	}

	lines, err := s.buildCartLines(ctx, items)
	if err != nil {
		return domain.QuoteResponse{}, err
	}
	settings, err := s.loadSettings(ctx)
	if err != nil {
		return domain.QuoteResponse{}, err
	}

	resp := domain.QuoteResponse{Lines: toQuoteLines(lines)}

	var coupon *domain.Coupon
	if code := pricing.NormalizeCouponCode(req.CouponCode); code != "" {
		coupon, err = s.resolveCoupon(ctx, code, pricing.Subtotal(lines))
		var rejection *pricing.CouponRejection
		if errors.As(err, &rejection) {
			resp.CouponReason = rejection.Reason
			resp.CouponError = rejection.Message
			coupon = nil
		} else if err != nil {
			return domain.QuoteResponse{}, err
		} else {
			resp.Coupon = coupon
		}
	}

	resp.Quote = pricing.Compute(lines, coupon, settings.Shipping)
	return resp, nil
}

// resolveCoupon looks up a normalized code and validates it against the
// subtotal. Unknown codes come back as a rejection, not a transport error.
func (s *Service) resolveCoupon(ctx context.Context, code string, subtotalCents int64) (*domain.Coupon, error) {
	coupon, err := s.repo.GetCouponByCode(ctx, code)
	if errors.Is(err, store.ErrNotFound) {
		coupon = nil
	} else if err != nil {
		return nil, err
	}
	if err := pricing.ValidateCoupon(coupon, subtotalCents, time.Now().UTC()); err != nil {
		return nil, err
	}
	return coupon, nil
}

func (s *Service) ValidateCoupon(ctx context.Context, req domain.ValidateCouponRequest) (domain.ValidateCouponResponse, error) {
	code := pricing.NormalizeCouponCode(req.Code)
	if code == "" {
		return domain.ValidateCouponResponse{}, store.ErrInvalidInput
	}
	items, err := normalizeItems(req.Items)
	if err != nil {
		return domain.ValidateCouponResponse{}, err
	}

	var subtotal int64
	if len(items) > 0 {
		lines, err := s.buildCartLines(ctx, items)
		if err != nil {
			return domain.ValidateCouponResponse{}, err
		}
		subtotal = pricing.Subtotal(lines)
	}

	coupon, err := s.resolveCoupon(ctx, code, subtotal)
	var rejection *pricing.CouponRejection
	if errors.As(err, &rejection) {
		return domain.ValidateCouponResponse{
			Valid:  false,
			Reason: rejection.Reason,
			Error:  rejection.Message,
		}, nil
	}
	if err != nil {
		return domain.ValidateCouponResponse{}, err
	}
	return domain.ValidateCouponResponse{Valid: true, Coupon: coupon}, nil
}

func isSupportedPaymentMethod(method string) bool {
	switch method {
	case "card", "cod", "bank_transfer":
		return true
	}
	return false
}

func validAddress(addr domain.Address) bool {
	return strings.TrimSpace(addr.FullName) != "" &&
		strings.TrimSpace(addr.AddressLine1) != "" &&
		strings.TrimSpace(addr.City) != "" &&
		strings.TrimSpace(addr.PostalCode) != "" &&
		strings.TrimSpace(addr.Country) != ""
}

func newOrderNumber(now time.Time) string {
	id := xid.New("n")
	suffix := strings.ToUpper(id[len(id)-6:])
	return fmt.Sprintf("AUR-%s-%s", now.Format("20060102"), suffix)
}

// Checkout re-prices the cart server side, ignoring any totals the client
// may have sent, and persists the order atomically. Coupon usage is
// redeemed inside the same transaction; losing a redemption race surfaces
// as the usage limit rejection.
func (s *Service) Checkout(ctx context.Context, req domain.CheckoutRequest) (domain.CheckoutResponse, error) {
	items, err := normalizeItems(req.Items)
	if err != nil {
		return domain.CheckoutResponse{}, err
	}
	if len(items) == 0 {
		return domain.CheckoutResponse{}, store.ErrInvalidInput
	}

	if req.PaymentMethod == "" {
		req.PaymentMethod = "cod"
	}
	if !isSupportedPaymentMethod(req.PaymentMethod) {
		return domain.CheckoutResponse{}, store.ErrInvalidInput
	}
	if !validAddress(req.Address) {
		return domain.CheckoutResponse{}, store.ErrInvalidInput
	}

	var userID string
	actor, authed := ActorFromContext(ctx)
	if authed {
		userID = actor.UserID
	} else {
		email := strings.ToLower(strings.TrimSpace(req.GuestEmail))
		if email == "" || !strings.Contains(email, "@") {
			return domain.CheckoutResponse{}, store.ErrInvalidInput
		}
		req.GuestEmail = email
	}

	lines, err := s.buildCartLines(ctx, items)
	if err != nil {
		return domain.CheckoutResponse{}, err
	}
	settings, err := s.loadSettings(ctx)
	if err != nil {
		return domain.CheckoutResponse{}, err
	}

	var coupon *domain.Coupon
	if code := pricing.NormalizeCouponCode(req.CouponCode); code != "" {
		coupon, err = s.resolveCoupon(ctx, code, pricing.Subtotal(lines))
		if err != nil {
			return domain.CheckoutResponse{}, err
		}
	}

	quote := pricing.Compute(lines, coupon, settings.Shipping)
	now := time.Now().UTC()

	order := domain.Order{
		ID:            xid.New("ord"),
		OrderNumber:   newOrderNumber(now),
		UserID:        userID,
		GuestEmail:    req.GuestEmail,
		Status:        domain.OrderStatusPending,
		SubtotalCents: quote.SubtotalCents,
		DiscountCents: quote.DiscountCents,
		ShippingCents: quote.ShippingCents,
		TaxCents:      quote.TaxCents,
		TotalCents:    quote.TotalCents,
		Address:       req.Address,
		PaymentMethod: req.PaymentMethod,
		Notes:         strings.TrimSpace(req.Notes),
		CreatedAt:     now,
	}
	if coupon != nil {
		order.CouponID = coupon.ID
		order.CouponCode = coupon.Code
	}
	for _, line := range lines {
		order.Items = append(order.Items, domain.OrderItem{
			ProductID:      line.ProductID,
			ProductName:    line.Name,
			ProductImage:   line.ImageURL,
			Qty:            line.Qty,
			UnitPriceCents: line.EffectiveUnitPriceCents(),
			TotalCents:     line.LineTotalCents(),
		})
	}

	created, err := s.repo.CreateOrder(ctx, order)
	if errors.Is(err, store.ErrCouponExhausted) {
		return domain.CheckoutResponse{}, &pricing.CouponRejection{
			Reason:  pricing.ReasonUsageLimitReached,
			Message: "this coupon has reached its usage limit",
		}
	}
	if err != nil {
		return domain.CheckoutResponse{}, err
	}

	s.logAudit(ctx, "order_create", "order", created.ID,
		fmt.Sprintf("number=%s,total=%d,items=%d", created.OrderNumber, created.TotalCents, len(created.Items)))

	return domain.CheckoutResponse{Order: *created}, nil
}

func (s *Service) ListMyOrders(ctx context.Context) ([]domain.Order, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.UserID == "" {
		return nil, ErrForbidden
	}
	return s.repo.ListOrders(ctx, store.OrderFilter{UserID: actor.UserID})
}

// GetOrder returns an order to its owner or to an admin.
func (s *Service) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return domain.Order{}, ErrForbidden
	}
	order, err := s.repo.GetOrderByID(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	if actor.Role != domain.RoleAdmin && order.UserID != actor.UserID {
		return domain.Order{}, store.ErrNotFound
	}
	return *order, nil
}

// LookupGuestOrder lets an unauthenticated buyer retrieve their order by its
// number and the email used at checkout. A wrong email reads as not found.
func (s *Service) LookupGuestOrder(ctx context.Context, orderNumber string, email string) (domain.Order, error) {
	orderNumber = strings.TrimSpace(orderNumber)
	email = strings.ToLower(strings.TrimSpace(email))
	if orderNumber == "" || email == "" {
		return domain.Order{}, store.ErrInvalidInput
	}

	order, err := s.repo.GetOrderByNumber(ctx, orderNumber)
	if err != nil {
		return domain.Order{}, err
	}
	if order.GuestEmail == "" || !strings.EqualFold(order.GuestEmail, email) {
		return domain.Order{}, store.ErrNotFound
	}
	return *order, nil
}

func (s *Service) requireAdmin(ctx context.Context) (domain.Actor, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return domain.Actor{}, ErrForbidden
	}
	return actor, nil
}

func (s *Service) ListAllProducts(ctx context.Context, filter store.ProductFilter) ([]domain.Product, error) {
	if _, err := s.requireAdmin(ctx); err != nil {
		return nil, err
	}
	return s.repo.ListProducts(ctx, filter)
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	if _, err := s.requireAdmin(ctx); err != nil {
		return domain.Product{}, err
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Slug = strings.ToLower(strings.TrimSpace(req.Slug))
	req.SKU = strings.ToUpper(strings.TrimSpace(req.SKU))
	if req.Name == "" || req.Slug == "" || req.PriceCents < 1 || req.Stock < 0 {
		return domain.Product{}, store.ErrInvalidInput
	}
	if req.SalePriceCents != nil && (*req.SalePriceCents < 1 || *req.SalePriceCents >= req.PriceCents) {
		return domain.Product{}, store.ErrInvalidInput
	}
	if req.Currency == "" {
		req.Currency = "USD"
	}

	visible := true
	if req.Visible != nil {
		visible = *req.Visible
	}

	product := domain.Product{
		Name:           req.Name,
		Slug:           req.Slug,
		SKU:            req.SKU,
		Description:    req.Description,
		PriceCents:     req.PriceCents,
		SalePriceCents: req.SalePriceCents,
		Currency:       req.Currency,
		Images:         req.Images,
		Stock:          req.Stock,
		CategoryID:     req.CategoryID,
		Tags:           req.Tags,
		Visible:        visible,
		Featured:       req.Featured,
		Size:           req.Size,
		Notes:          req.Notes,
	}

	created, err := s.repo.CreateProduct(ctx, product)
	if err != nil {
		return domain.Product{}, err
	}

	s.logAudit(ctx, "product_create", "product", created.ID,
		fmt.Sprintf("slug=%s,price=%d,stock=%d", created.Slug, created.PriceCents, created.Stock))
	return *created, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id string, req domain.ProductUpdateRequest) (domain.Product, error) {
	if _, err := s.requireAdmin(ctx); err != nil {
		return domain.Product{}, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Product{}, store.ErrInvalidInput
	}

	existing, err := s.repo.GetProductByID(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}
	product := *existing

	if req.Name != nil {
		product.Name = strings.TrimSpace(*req.Name)
	}
	if req.Slug != nil {
		product.Slug = strings.ToLower(strings.TrimSpace(*req.Slug))
	}
	if req.SKU != nil {
		product.SKU = strings.ToUpper(strings.TrimSpace(*req.SKU))
	}
	if req.Description != nil {
		product.Description = *req.Description
	}
	if req.PriceCents != nil {
		product.PriceCents = *req.PriceCents
	}
	if req.ClearSalePrice {
		product.SalePriceCents = nil
	} else if req.SalePriceCents != nil {
		product.SalePriceCents = req.SalePriceCents
	}
	if req.Images != nil {
		product.Images = *req.Images
	}
	if req.Stock != nil {
		product.Stock = *req.Stock
	}
	if req.CategoryID != nil {
		product.CategoryID = *req.CategoryID
	}
	if req.Tags != nil {
		product.Tags = *req.Tags
	}
	if req.Visible != nil {
		product.Visible = *req.Visible
	}
	if req.Featured != nil {
		product.Featured = *req.Featured
	}
	if req.Size != nil {
		product.Size = *req.Size
	}
	if req.Notes != nil {
		product.Notes = *req.Notes
	}

	if product.Name == "" || product.Slug == "" || product.PriceCents < 1 || product.Stock < 0 {
		return domain.Product{}, store.ErrInvalidInput
	}
	if product.SalePriceCents != nil && (*product.SalePriceCents < 1 || *product.SalePriceCents >= product.PriceCents) {
		return domain.Product{}, store.ErrInvalidInput
	}

	updated, err := s.repo.UpdateProduct(ctx, product)
	if err != nil {
		return domain.Product{}, err
	}

	s.logAudit(ctx, "product_update", "product", updated.ID,
		fmt.Sprintf("slug=%s,price=%d,stock=%d", updated.Slug, updated.PriceCents, updated.Stock))
	return *updated, nil
}

func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	if _, err := s.requireAdmin(ctx); err != nil {
		return err
	}
	if err := s.repo.DeleteProduct(ctx, id); err != nil {
		return err
	}
	s.logAudit(ctx, "product_delete", "product", id, "")
	return nil
}

func (s *Service) CreateCategory(ctx context.Context, req domain.CategoryCreateRequest) (domain.Category, error) {
	if _, err := s.requireAdmin(ctx); err != nil {
		return domain.Category{}, err
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Slug = strings.ToLower(strings.TrimSpace(req.Slug))
	if req.Name == "" || req.Slug == "" {
		return domain.Category{}, store.ErrInvalidInput
	}

	created, err := s.repo.CreateCategory(ctx, domain.Category{
		Name:        req.Name,
		Slug:        req.Slug,
		Description: req.Description,
		ImageURL:    req.ImageURL,
	})
	if err != nil {
		return domain.Category{}, err
	}

	s.logAudit(ctx, "category_create", "category", created.ID, "slug="+created.Slug)
	return *created, nil
}

func (s *Service) UpdateCategory(ctx context.Context, id string, req domain.CategoryCreateRequest) (domain.Category, error) {
	if _, err := s.requireAdmin(ctx); err != nil {
		return domain.Category{}, err
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Slug = strings.ToLower(strings.TrimSpace(req.Slug))
	if id == "" || req.Name == "" || req.Slug == "" {
		return domain.Category{}, store.ErrInvalidInput
	}

	updated, err := s.repo.UpdateCategory(ctx, domain.Category{
		ID:          id,
		Name:        req.Name,
		Slug:        req.Slug,
		Description: req.Description,
		ImageURL:    req.ImageURL,
	})
	if err != nil {
		return domain.Category{}, err
	}

	s.logAudit(ctx, "category_update", "category", updated.ID, "slug="+updated.Slug)
	return *updated, nil
}

func (s *Service) DeleteCategory(ctx context.Context, id string) error {
	if _, err := s.requireAdmin(ctx); err != nil {
		return err
	}
	if err := s.repo.DeleteCategory(ctx, id); err != nil {
		return err
	}
	s.logAudit(ctx, "category_delete", "category", id, "")
	return nil
}

func validDiscount(discountType string, value int64) bool {
	switch discountType {
	case domain.DiscountTypePercentage:
		return value >= 1 && value <= 100
	case domain.DiscountTypeFixed:
		return value >= 1
	}
	return false
}

func (s *Service) ListCoupons(ctx context.Context) ([]domain.Coupon, error) {
	if _, err := s.requireAdmin(ctx); err != nil {
		return nil, err
	}
	return s.repo.ListCoupons(ctx)
}

func (s *Service) CreateCoupon(ctx context.Context, req domain.CouponCreateRequest) (domain.Coupon, error) {
	if _, err := s.requireAdmin(ctx); err != nil {
		return domain.Coupon{}, err
	}

	code := pricing.NormalizeCouponCode(req.Code)
	if code == "" || !validDiscount(req.DiscountType, req.DiscountValue) {
		return domain.Coupon{}, store.ErrInvalidInput
	}
	if req.MinOrderCents < 0 {
		return domain.Coupon{}, store.ErrInvalidInput
	}
	if req.MaxUses != nil && *req.MaxUses < 1 {
		return domain.Coupon{}, store.ErrInvalidInput
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	created, err := s.repo.CreateCoupon(ctx, domain.Coupon{
		Code:          code,
		DiscountType:  req.DiscountType,
		DiscountValue: req.DiscountValue,
		MinOrderCents: req.MinOrderCents,
		MaxUses:       req.MaxUses,
		ExpiresAt:     req.ExpiresAt,
		Active:        active,
	})
	if err != nil {
		return domain.Coupon{}, err
	}

	s.logAudit(ctx, "coupon_create", "coupon", created.ID,
		fmt.Sprintf("code=%s,type=%s,value=%d", created.Code, created.DiscountType, created.DiscountValue))
	return *created, nil
}

func (s *Service) UpdateCoupon(ctx context.Context, id string, req domain.CouponUpdateRequest) (domain.Coupon, error) {
	if _, err := s.requireAdmin(ctx); err != nil {
		return domain.Coupon{}, err
	}
	if id == "" {
		return domain.Coupon{}, store.ErrInvalidInput
	}

	existing, err := s.repo.GetCouponByID(ctx, id)
	if err != nil {
		return domain.Coupon{}, err
	}
	coupon := *existing

	if req.DiscountType != nil {
		coupon.DiscountType = *req.DiscountType
	}
	if req.DiscountValue != nil {
		coupon.DiscountValue = *req.DiscountValue
	}
	if req.MinOrderCents != nil {
		coupon.MinOrderCents = *req.MinOrderCents
	}
	if req.ClearMaxUses {
		coupon.MaxUses = nil
	} else if req.MaxUses != nil {
		coupon.MaxUses = req.MaxUses
	}
	if req.ExpiresAt != nil {
		coupon.ExpiresAt = req.ExpiresAt
	}
	if req.Active != nil {
		coupon.Active = *req.Active
	}

	if !validDiscount(coupon.DiscountType, coupon.DiscountValue) || coupon.MinOrderCents < 0 {
		return domain.Coupon{}, store.ErrInvalidInput
	}
	if coupon.MaxUses != nil && *coupon.MaxUses < 1 {
		return domain.Coupon{}, store.ErrInvalidInput
	}

	updated, err := s.repo.UpdateCoupon(ctx, coupon)
	if err != nil {
		return domain.Coupon{}, err
	}

	s.logAudit(ctx, "coupon_update", "coupon", updated.ID,
		fmt.Sprintf("code=%s,active=%t", updated.Code, updated.Active))
	return *updated, nil
}

func (s *Service) DeleteCoupon(ctx context.Context, id string) error {
	if _, err := s.requireAdmin(ctx); err != nil {
		return err
	}
	if err := s.repo.DeleteCoupon(ctx, id); err != nil {
		return err
	}
	s.logAudit(ctx, "coupon_delete", "coupon", id, "")
	return nil
}

func (s *Service) ListOrders(ctx context.Context, filter store.OrderFilter) ([]domain.Order, error) {
	if _, err := s.requireAdmin(ctx); err != nil {
		return nil, err
	}
	return s.repo.ListOrders(ctx, filter)
}

var orderTransitions = map[string][]string{
	domain.OrderStatusPending:    {domain.OrderStatusPaid, domain.OrderStatusProcessing, domain.OrderStatusCancelled},
	domain.OrderStatusPaid:       {domain.OrderStatusProcessing, domain.OrderStatusShipped, domain.OrderStatusCancelled, domain.OrderStatusRefunded},
	domain.OrderStatusProcessing: {domain.OrderStatusShipped, domain.OrderStatusCancelled, domain.OrderStatusRefunded},
	domain.OrderStatusShipped:    {domain.OrderStatusDelivered, domain.OrderStatusRefunded},
	domain.OrderStatusDelivered:  {domain.OrderStatusRefunded},
}

func canTransition(from string, to string) bool {
	for _, allowed := range orderTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// UpdateOrderStatus moves an order along its lifecycle. Cancelled and
// refunded are terminal; financial fields are never touched.
func (s *Service) UpdateOrderStatus(ctx context.Context, id string, status string) (domain.Order, error) {
	if _, err := s.requireAdmin(ctx); err != nil {
		return domain.Order{}, err
	}

	order, err := s.repo.GetOrderByID(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	if !canTransition(order.Status, status) {
		return domain.Order{}, fmt.Errorf("%w: cannot move order from %s to %s", store.ErrInvalidInput, order.Status, status)
	}

	updated, err := s.repo.UpdateOrderStatus(ctx, id, status, time.Now().UTC())
	if err != nil {
		return domain.Order{}, err
	}

	s.logAudit(ctx, "order_status_update", "order", updated.ID,
		fmt.Sprintf("from=%s,to=%s", order.Status, status))
	return *updated, nil
}

func (s *Service) GetSettings(ctx context.Context) (domain.SiteSettings, error) {
	if _, err := s.requireAdmin(ctx); err != nil {
		return domain.SiteSettings{}, err
	}
	return s.loadSettings(ctx)
}

func (s *Service) UpdateSettings(ctx context.Context, settings domain.SiteSettings) (domain.SiteSettings, error) {
	if _, err := s.requireAdmin(ctx); err != nil {
		return domain.SiteSettings{}, err
	}
	if settings.Shipping.BasePriceCents < 0 || settings.Shipping.FreeThresholdCents < 0 ||
		settings.Shipping.TaxPercent < 0 || settings.Shipping.TaxPercent > 100 {
		return domain.SiteSettings{}, store.ErrInvalidInput
	}

	updated, err := s.repo.UpdateSettings(ctx, settings)
	if err != nil {
		return domain.SiteSettings{}, err
	}
	if err := s.settings.Invalidate(ctx, settingsCacheKey); err != nil {
		log.Printf("[service] WARN: settings cache invalidation failed: %v", err)
	}

	s.logAudit(ctx, "settings_update", "settings", "site",
		fmt.Sprintf("shipping_base=%d,free_threshold=%d,tax=%.2f",
			updated.Shipping.BasePriceCents, updated.Shipping.FreeThresholdCents, updated.Shipping.TaxPercent))
	return *updated, nil
}

func (s *Service) DashboardStats(ctx context.Context) (domain.DashboardStats, error) {
	if _, err := s.requireAdmin(ctx); err != nil {
		return domain.DashboardStats{}, err
	}
	stats, err := s.repo.GetDashboardStats(ctx, time.Now().UTC())
	if err != nil {
		return domain.DashboardStats{}, err
	}
	return *stats, nil
}

func (s *Service) ListCustomers(ctx context.Context, limit int) ([]domain.CustomerProfile, error) {
	if _, err := s.requireAdmin(ctx); err != nil {
		return nil, err
	}
	users, err := s.repo.ListCustomers(ctx, limit)
	if err != nil {
		return nil, err
	}

	profiles := make([]domain.CustomerProfile, 0, len(users))
	for _, u := range users {
		profiles = append(profiles, domain.CustomerProfile{
			ID:        u.ID,
			Email:     u.Email,
			FullName:  u.FullName,
			Role:      u.Role,
			CreatedAt: u.CreatedAt,
		})
	}
	return profiles, nil
}

func (s *Service) ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	if _, err := s.requireAdmin(ctx); err != nil {
		return nil, err
	}
	if limit < 1 || limit > 500 {
		limit = 100
	}
	return s.repo.ListAuditLogs(ctx, from, to, limit)
}

func (s *Service) logAudit(ctx context.Context, action string, entityType string, entityID string, detail string) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Email: "system", Role: "system"}
	}

	if err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ID:         xid.New("audit"),
		ActorEmail: actor.Email,
		ActorRole:  actor.Role,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Detail:     detail,
		CreatedAt:  time.Now().UTC(),
	}); err != nil {
		log.Printf("[audit] WARN: failed to write audit log action=%s entity=%s/%s: %v", action, entityType, entityID, err)
	}
}
