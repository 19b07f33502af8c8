package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/d60-Lab/hijabworld/internal/metrics"
	"github.com/d60-Lab/hijabworld/internal/model"
	"github.com/d60-Lab/hijabworld/internal/payment"
	"github.com/d60-Lab/hijabworld/internal/repository"
	"github.com/d60-Lab/hijabworld/pkg/logger"
)

const (
	paymentWarning = "Payment gateway temporarily unavailable. Your order is saved and will be processed once payment is confirmed."

	defaultRecentLimit = 5
)

var tracer = otel.Tracer("service")

// Actor 当前操作用户
type Actor struct {
	ID      string
	IsAdmin bool
}

// CartLine 购物车行
type CartLine struct {
	ProductID string `json:"product" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,min=1"`
	Size      string `json:"size"`
	Color     string `json:"color"`
}

// ShippingAddressInput 收货地址，country 可选
type ShippingAddressInput struct {
	FirstName string `json:"firstName" validate:"required"`
	LastName  string `json:"lastName" validate:"required"`
	Email     string `json:"email" validate:"required,email"`
	Phone     string `json:"phone" validate:"required"`
	Address   string `json:"address" validate:"required"`
	City      string `json:"city" validate:"required"`
	State     string `json:"state" validate:"required"`
	ZipCode   string `json:"zipCode" validate:"required"`
	Country   string `json:"country"`
}

// CreateOrderInput 下单请求
type CreateOrderInput struct {
	Items           []CartLine           `json:"items" validate:"required,min=1,dive"`
	ShippingAddress ShippingAddressInput `json:"shippingAddress"`
	Notes           string               `json:"notes" validate:"max=1000"`
}

// CreateOrderResult 下单结果。支付初始化失败时 PaymentLink 为 null，订单保留
type CreateOrderResult struct {
	Order        *model.Order `json:"order"`
	PaymentLink  *string      `json:"paymentLink"`
	Reference    string       `json:"reference,omitempty"`
	Warning      string       `json:"warning,omitempty"`
	OrderNumber  string       `json:"orderNumber,omitempty"`
	SupportEmail string       `json:"supportEmail,omitempty"`
	SupportPhone string       `json:"supportPhone,omitempty"`
}

// OrderPagination 订单分页
type OrderPagination struct {
	CurrentPage int   `json:"currentPage"`
	TotalPages  int   `json:"totalPages"`
	TotalOrders int64 `json:"totalOrders"`
}

type OrderPage struct {
	Orders     []model.Order   `json:"orders"`
	Pagination OrderPagination `json:"pagination"`
}

// OrderService 订单服务
type OrderService interface {
	CreateOrder(ctx context.Context, actor Actor, in CreateOrderInput) (*CreateOrderResult, error)
	VerifyPayment(ctx context.Context, reference string) (*model.Order, error)
	CancelOrder(ctx context.Context, orderID string, actor Actor, reason string) (*model.Order, error)
	GetOrder(ctx context.Context, orderID string, actor Actor) (*model.Order, error)
	ListMyOrders(ctx context.Context, actor Actor, page, limit int, status string) (*OrderPage, error)
	RecentOrders(ctx context.Context, actor Actor, limit int) ([]model.Order, error)
}

// CacheInvalidator 库存变化后失效商品缓存
type CacheInvalidator interface {
	Invalidate(ctx context.Context, ids ...string)
}

// OrderOptions 订单服务参数
type OrderOptions struct {
	FrontendURL          string
	Currency             string
	SupportEmail         string
	SupportPhone         string
	ResolveLimit         int
	VerifyMaxTries       uint
	VerifyInitialBackoff time.Duration
	Tax                  TaxPolicy
	// NextOrderNumber 为空时使用 model.NewOrderNumber
	NextOrderNumber func() string
	Now             func() time.Time
}

type orderService struct {
	products repository.ProductRepository
	orders   repository.OrderRepository
	gateway  payment.Gateway
	notifier Notifier
	cache    CacheInvalidator
	opts     OrderOptions
}

func NewOrderService(
	products repository.ProductRepository,
	orders repository.OrderRepository,
	gateway payment.Gateway,
	notifier Notifier,
	cache CacheInvalidator,
	opts OrderOptions,
) OrderService {
	if opts.Currency == "" {
		opts.Currency = "NGN"
	}
	if opts.ResolveLimit <= 0 {
		opts.ResolveLimit = 8
	}
	if opts.VerifyMaxTries == 0 {
		opts.VerifyMaxTries = 3
	}
	if opts.VerifyInitialBackoff <= 0 {
		opts.VerifyInitialBackoff = 200 * time.Millisecond
	}
	if opts.Tax == nil {
		opts.Tax = PassthroughTax{}
	}
	if opts.NextOrderNumber == nil {
		opts.NextOrderNumber = model.NewOrderNumber
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	opts.FrontendURL = strings.TrimRight(opts.FrontendURL, "/")
	return &orderService{
		products: products,
		orders:   orders,
		gateway:  gateway,
		notifier: notifier,
		cache:    cache,
		opts:     opts,
	}
}

func (s *orderService) CreateOrder(ctx context.Context, actor Actor, in CreateOrderInput) (*CreateOrderResult, error) {
	ctx, span := tracer.Start(ctx, "OrderService.CreateOrder")
	defer span.End()

	if err := validateStruct("invalid order request", in); err != nil {
		return nil, err
	}

	products, err := s.resolveProducts(ctx, in.Items)
	if err != nil {
		return nil, err
	}

	order := s.buildOrder(actor, in, products)
	span.SetAttributes(attribute.String("order.number", order.OrderNumber), attribute.Int("order.items", len(order.Items)))

	if err := s.orders.CreateWithReservations(ctx, order); err != nil {
		return nil, s.mapReserveError(err)
	}
	s.invalidate(ctx, order)

	logger.Info("order created",
		zap.String("order", order.OrderNumber),
		zap.String("user", actor.ID),
		zap.String("total", order.TotalAmount.String()))

	s.notify(ctx, order, model.NotificationOrderConfirm, model.PriorityHigh,
		"Order Confirmed",
		fmt.Sprintf("Your order #%s has been received and is being processed.", order.OrderNumber))

	res := &CreateOrderResult{Order: order}
	init, err := s.gateway.Initialize(ctx, s.paymentRequest(order))
	if err != nil {
		// 订单保留，返回告警与客服联系方式
		logger.Error("payment initialization failed",
			zap.String("order", order.OrderNumber),
			zap.Error(err))
		metrics.OrderCreated(false)
		res.Warning = paymentWarning
		res.OrderNumber = order.OrderNumber
		res.SupportEmail = s.opts.SupportEmail
		res.SupportPhone = s.opts.SupportPhone
		return res, nil
	}

	metrics.OrderCreated(true)
	link := init.RedirectURL
	res.PaymentLink = &link
	res.Reference = init.Reference
	return res, nil
}

type resolvedProduct struct {
	product *model.Product
}

// resolveProducts 并发读取商品并做库存预检查，最终以条件扣减为准
func (s *orderService) resolveProducts(ctx context.Context, lines []CartLine) ([]resolvedProduct, error) {
	out := make([]resolvedProduct, len(lines))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.ResolveLimit)

	for i, line := range lines {
		g.Go(func() error {
			p, err := s.products.GetByID(gctx, line.ProductID)
			if errors.Is(err, repository.ErrNotFound) {
				return &Error{Kind: KindProductNotFound, Message: fmt.Sprintf("product %s not found", line.ProductID), ProductID: line.ProductID}
			}
			if err != nil {
				return fmt.Errorf("load product %s: %w", line.ProductID, err)
			}
			if p.Stock < line.Quantity {
				return insufficientStock(p.ID, p.Name, p.Stock)
			}
			out[i] = resolvedProduct{product: p}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if KindOf(err) == KindInsufficientStock {
			metrics.StockRejected()
		}
		return nil, err
	}
	return out, nil
}

func insufficientStock(productID, name string, available int) *Error {
	label := productID
	if name != "" {
		label = name
	}
	return &Error{
		Kind:      KindInsufficientStock,
		Message:   fmt.Sprintf("Insufficient stock for %s. Only %d available.", label, available),
		ProductID: productID,
		Available: available,
	}
}

func (s *orderService) buildOrder(actor Actor, in CreateOrderInput, products []resolvedProduct) *model.Order {
	items := make([]model.OrderItem, len(in.Items))
	subtotal := decimal.Zero
	for i, line := range in.Items {
		p := products[i].product
		items[i] = model.OrderItem{
			Position:  i,
			ProductID: p.ID,
			Name:      p.Name,
			Price:     p.Price,
			Quantity:  line.Quantity,
			Image:     p.ImageURL,
			Size:      line.Size,
			Color:     line.Color,
		}
		subtotal = subtotal.Add(items[i].LineTotal())
	}

	addr := in.ShippingAddress
	country := addr.Country
	if country == "" {
		country = model.DefaultCountry
	}

	order := &model.Order{
		OrderNumber: s.opts.NextOrderNumber(),
		UserID:      actor.ID,
		Items:       items,
		ShippingAddress: model.ShippingAddress{
			FirstName: addr.FirstName,
			LastName:  addr.LastName,
			Email:     addr.Email,
			Phone:     addr.Phone,
			Address:   addr.Address,
			City:      addr.City,
			State:     addr.State,
			ZipCode:   addr.ZipCode,
			Country:   country,
		},
		Status:         model.OrderStatusPending,
		TotalAmount:    subtotal,
		ShippingFee:    decimal.Zero,
		TaxAmount:      s.opts.Tax.Tax(subtotal),
		DiscountAmount: decimal.Zero,
		Notes:          in.Notes,
		Payment: model.Payment{
			Status:   model.PaymentStatusPending,
			Method:   model.PaymentMethodCard,
			Amount:   subtotal,
			Currency: s.opts.Currency,
		},
	}
	order.FinalAmount = order.ComputeFinal()
	return order
}

func (s *orderService) mapReserveError(err error) error {
	var ise *repository.InsufficientStockError
	if errors.As(err, &ise) {
		metrics.StockRejected()
		return insufficientStock(ise.ProductID, "", ise.Available)
	}
	var pnf *repository.ProductNotFoundError
	if errors.As(err, &pnf) {
		return &Error{Kind: KindProductNotFound, Message: fmt.Sprintf("product %s not found", pnf.ProductID), ProductID: pnf.ProductID}
	}
	return fmt.Errorf("persist order: %w", err)
}

func (s *orderService) paymentRequest(order *model.Order) payment.InitializeRequest {
	addr := order.ShippingAddress
	return payment.InitializeRequest{
		AmountMinor: ToMinorUnits(order.Payment.Amount),
		Currency:    order.Payment.Currency,
		Email:       addr.Email,
		Reference:   order.OrderNumber,
		CallbackURL: fmt.Sprintf("%s/order-confirmation/%s", s.opts.FrontendURL, order.ID),
		Metadata: payment.Metadata{
			OrderID:      order.ID,
			CustomerName: addr.FullName(),
			CustomFields: []payment.CustomField{
				{DisplayName: "Order Number", VariableName: "order_number", Value: order.OrderNumber},
				{DisplayName: "Customer Phone", VariableName: "customer_phone", Value: addr.Phone},
			},
		},
	}
}

// ToMinorUnits 主币转最小币种单位（NGN -> kobo），四舍五入
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

func (s *orderService) VerifyPayment(ctx context.Context, reference string) (*model.Order, error) {
	ctx, span := tracer.Start(ctx, "OrderService.VerifyPayment")
	defer span.End()
	span.SetAttributes(attribute.String("payment.reference", reference))

	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, validationError("Payment reference is required", map[string]string{"reference": "is required"})
	}

	res, err := s.verifyWithRetry(ctx, reference)
	if err != nil {
		metrics.PaymentVerified("error")
		logger.Error("payment verification failed", zap.String("reference", reference), zap.Error(err))
		return nil, &Error{Kind: KindGatewayUnavailable, Message: "Error verifying payment", Err: err}
	}

	if !res.Succeeded {
		return nil, s.markDeclined(ctx, reference, res.RawStatus)
	}

	paidRef := res.Reference
	if paidRef == "" {
		paidRef = reference
	}
	transitioned, err := s.orders.MarkPaymentSuccessful(ctx, reference, repository.PaymentSuccess{
		TransactionID: res.TransactionID,
		Reference:     paidRef,
		PaidAt:        s.opts.Now(),
	})
	if err != nil {
		return nil, fmt.Errorf("mark payment successful: %w", err)
	}

	order, err := s.orders.GetByOrderNumber(ctx, reference)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}

	if !transitioned {
		if order.Payment.Status == model.PaymentStatusSuccessful {
			metrics.PaymentVerified("duplicate")
			return order, nil
		}
		return nil, invalidState(fmt.Sprintf("payment is %s and order is %s; cannot mark payment successful", order.Payment.Status, order.Status))
	}

	metrics.PaymentVerified("successful")
	logger.Info("payment verified", zap.String("order", order.OrderNumber), zap.String("transaction", res.TransactionID))
	s.notify(ctx, order, model.NotificationPaymentSuccess, model.PriorityHigh,
		"Payment Successful",
		fmt.Sprintf("Your payment for order #%s was successful.", order.OrderNumber))
	return order, nil
}

func (s *orderService) markDeclined(ctx context.Context, reference, rawStatus string) error {
	metrics.PaymentVerified("declined")
	if _, err := s.orders.MarkPaymentFailed(ctx, reference); err != nil {
		return fmt.Errorf("mark payment failed: %w", err)
	}
	if _, err := s.orders.GetByOrderNumber(ctx, reference); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrOrderNotFound
		}
		return err
	}
	logger.Warn("payment not successful", zap.String("reference", reference), zap.String("status", rawStatus))
	return &Error{Kind: KindPaymentDeclined, Message: "Payment " + rawStatus, RawStatus: rawStatus}
}

// verifyWithRetry 仅对网关不可用做有限次指数退避重试；verify 是幂等读操作
func (s *orderService) verifyWithRetry(ctx context.Context, reference string) (*payment.VerifyResult, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = s.opts.VerifyInitialBackoff
	bo.MaxInterval = 8 * s.opts.VerifyInitialBackoff

	attempt := 0
	return backoff.Retry(ctx, func() (*payment.VerifyResult, error) {
		attempt++
		res, err := s.gateway.Verify(ctx, reference)
		if err == nil {
			return res, nil
		}
		if !errors.Is(err, payment.ErrUnavailable) {
			return nil, backoff.Permanent(err)
		}
		logger.Warn("verify attempt failed", zap.String("reference", reference), zap.Int("attempt", attempt), zap.Error(err))
		return nil, err
	}, backoff.WithBackOff(bo), backoff.WithMaxTries(s.opts.VerifyMaxTries))
}

func (s *orderService) CancelOrder(ctx context.Context, orderID string, actor Actor, reason string) (*model.Order, error) {
	ctx, span := tracer.Start(ctx, "OrderService.CancelOrder")
	defer span.End()

	order, err := s.orders.GetByID(ctx, orderID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	if order.UserID != actor.ID {
		return nil, forbidden("Not authorized to cancel this order")
	}
	if !order.Status.Cancellable() {
		return nil, invalidState("Order cannot be cancelled at this stage")
	}

	if err := s.orders.CancelAndRelease(ctx, order, reason, s.opts.Now()); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, invalidState("Order cannot be cancelled at this stage")
		}
		return nil, fmt.Errorf("cancel order: %w", err)
	}
	s.invalidate(ctx, order)

	updated, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	logger.Info("order cancelled", zap.String("order", updated.OrderNumber), zap.String("user", actor.ID))
	s.notify(ctx, updated, model.NotificationSystem, model.PriorityMedium,
		"Order Cancelled",
		fmt.Sprintf("Your order #%s has been cancelled.", updated.OrderNumber))
	return updated, nil
}

func (s *orderService) GetOrder(ctx context.Context, orderID string, actor Actor) (*model.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	if order.UserID != actor.ID && !actor.IsAdmin {
		return nil, forbidden("Not authorized to view this order")
	}
	return order, nil
}

func (s *orderService) ListMyOrders(ctx context.Context, actor Actor, page, limit int, status string) (*OrderPage, error) {
	st, err := parseStatusFilter(status)
	if err != nil {
		return nil, err
	}
	page, limit = normalizePage(page, limit, 10)
	orders, total, err := s.orders.List(ctx, repository.OrderFilter{
		UserID: actor.ID,
		Status: st,
		Offset: (page - 1) * limit,
		Limit:  limit,
	})
	if err != nil {
		return nil, err
	}
	p := newPagination(page, limit, total)
	return &OrderPage{
		Orders:     orders,
		Pagination: OrderPagination{CurrentPage: p.CurrentPage, TotalPages: p.TotalPages, TotalOrders: total},
	}, nil
}

func (s *orderService) RecentOrders(ctx context.Context, actor Actor, limit int) ([]model.Order, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	if limit > 50 {
		limit = 50
	}
	orders, _, err := s.orders.List(ctx, repository.OrderFilter{UserID: actor.ID, Limit: limit})
	return orders, err
}

func parseStatusFilter(status string) (model.OrderStatus, error) {
	if status == "" || status == "all" {
		return "", nil
	}
	st := model.OrderStatus(status)
	if !st.Valid() {
		return "", validationError("invalid status filter", map[string]string{"status": "unknown status " + status})
	}
	return st, nil
}

func (s *orderService) notify(ctx context.Context, order *model.Order, kind model.NotificationType, prio model.NotificationPriority, title, msg string) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(ctx, &model.Notification{
		UserID:   order.UserID,
		Type:     kind,
		Title:    title,
		Message:  msg,
		Priority: prio,
		Data: model.NotificationData{
			OrderID: order.ID,
			Link:    "/my-orders/" + order.ID,
		},
	})
}

func (s *orderService) invalidate(ctx context.Context, order *model.Order) {
	if s.cache == nil {
		return
	}
	ids := make([]string, 0, len(order.Items))
	for _, it := range order.Items {
		ids = append(ids, it.ProductID)
	}
	s.cache.Invalidate(ctx, ids...)
}
