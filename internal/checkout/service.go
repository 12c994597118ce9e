package checkout

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	sq "github.com/square/square-go-sdk"
	"gorm.io/gorm"

	"github.com/ivanberrios/storefront-backend/internal/cart"
	"github.com/ivanberrios/storefront-backend/internal/orders"
	"github.com/ivanberrios/storefront-backend/internal/products"
	"github.com/ivanberrios/storefront-backend/pkg/config"
	dbpkg "github.com/ivanberrios/storefront-backend/pkg/db"
	"github.com/ivanberrios/storefront-backend/pkg/db/models"
	"github.com/ivanberrios/storefront-backend/pkg/enums"
	pkgerrors "github.com/ivanberrios/storefront-backend/pkg/errors"
	"github.com/ivanberrios/storefront-backend/pkg/logger"
	"github.com/ivanberrios/storefront-backend/pkg/metrics"
	"github.com/ivanberrios/storefront-backend/pkg/outbox"
	"github.com/ivanberrios/storefront-backend/pkg/outbox/payloads"
	"github.com/ivanberrios/storefront-backend/pkg/square"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type paymentAuthorizer interface {
	AuthorizePayment(ctx context.Context, params square.PaymentCreateParams) (*sq.Payment, error)
	LocationID() string
}

type availabilityChecker interface {
	CheckAvailability(ctx context.Context, variantID uuid.UUID, qty int) (*models.Variant, error)
}

type cartConverter interface {
	Convert(ctx context.Context, tx *gorm.DB, cartID uuid.UUID) error
}

// Service orchestrates checkout sessions and their completion webhooks.
type Service interface {
	CreateSession(ctx context.Context, input SessionInput) (*SessionHandle, error)
	HandleCompletionEvent(ctx context.Context, event CompletionEvent) error
}

type service struct {
	tx        txRunner
	cartRepo  cart.Repository
	carts     cartConverter
	orderRepo orders.Repository
	catalog   products.Repository
	stock     availabilityChecker
	events    Repository
	provider  paymentAuthorizer
	outbox    outboxPublisher
	cfg       config.CheckoutConfig
	flow      *metrics.OrderFlowMetrics
	logg      *logger.Logger
}

// ServiceParams lists the checkout service dependencies.
type ServiceParams struct {
	TransactionRunner txRunner
	CartRepo          cart.Repository
	Carts             cartConverter
	OrderRepo         orders.Repository
	Catalog           products.Repository
	Stock             availabilityChecker
	Events            Repository
	Provider          paymentAuthorizer
	Outbox            outboxPublisher
	Config            config.CheckoutConfig
	Flow              *metrics.OrderFlowMetrics
	Logger            *logger.Logger
}

// NewService builds the checkout orchestrator.
func NewService(params ServiceParams) (Service, error) {
	if params.TransactionRunner == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.CartRepo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if params.Carts == nil {
		return nil, fmt.Errorf("cart service required")
	}
	if params.OrderRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Catalog == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if params.Stock == nil {
		return nil, fmt.Errorf("availability checker required")
	}
	if params.Events == nil {
		return nil, fmt.Errorf("webhook event repository required")
	}
	if params.Provider == nil {
		return nil, fmt.Errorf("payment provider required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		tx:        params.TransactionRunner,
		cartRepo:  params.CartRepo,
		carts:     params.Carts,
		orderRepo: params.OrderRepo,
		catalog:   params.Catalog,
		stock:     params.Stock,
		events:    params.Events,
		provider:  params.Provider,
		outbox:    params.Outbox,
		cfg:       params.Config,
		flow:      params.Flow,
		logg:      params.Logger,
	}, nil
}

type resolvedLine struct {
	variant models.Variant
	product models.Product
	qty     int
}

// CreateSession pre-validates stock, prices the requested lines from the
// catalog, and places a delayed-capture hold for the server-computed total.
// Funds are authorized only; nothing here touches the ledger.
func (s *service) CreateSession(ctx context.Context, input SessionInput) (*SessionHandle, error) {
	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart contains no items")
	}
	if strings.TrimSpace(input.PaymentToken) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment token required")
	}
	if strings.TrimSpace(input.Customer.Email) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer email required")
	}

	lines := make([]resolvedLine, 0, len(input.Items))
	for _, item := range input.Items {
		if item.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
		}
		detail, err := s.catalog.FindVariantDetail(ctx, item.VariantID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("variant %s not found", item.VariantID))
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve variant")
		}
		if !detail.Product.Active {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("product %q is no longer sold", detail.Product.Title))
		}
		// Advisory only. Authorization, not capture, happens at this stage,
		// so stock is re-checked atomically during capture.
		if _, err := s.stock.CheckAvailability(ctx, item.VariantID, item.Quantity); err != nil {
			return nil, err
		}
		lines = append(lines, resolvedLine{variant: detail.Variant, product: detail.Product, qty: item.Quantity})
	}

	totalCents := sessionTotalCents(lines)

	sessionCart := &models.Cart{
		ID:        uuid.New(),
		SessionID: strings.TrimSpace(input.SessionID),
		UserID:    input.UserID,
		Status:    enums.CartStatusActive,
	}
	if sessionCart.SessionID == "" {
		sessionCart.SessionID = uuid.NewString()
	}
	applyCustomer(sessionCart, input.Customer)
	for _, line := range lines {
		sessionCart.Items = append(sessionCart.Items, models.CartItem{
			ID:        uuid.New(),
			CartID:    sessionCart.ID,
			VariantID: line.variant.ID,
			Quantity:  line.qty,
		})
	}
	if _, err := s.cartRepo.Create(ctx, sessionCart); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist session cart")
	}

	// The hold is created for the server-computed total; the cart id rides
	// along as the reference so the webhook can find its way back.
	payment, err := s.provider.AuthorizePayment(ctx, square.PaymentCreateParams{
		SourceID:    input.PaymentToken,
		LocationID:  s.provider.LocationID(),
		ReferenceID: sessionCart.ID.String(),
		AmountCents: int64(totalCents),
		Currency:    string(enums.CurrencyUSD),
		BuyerEmail:  input.Customer.Email,
		BuyerPhone:  input.Customer.Phone,
	})
	if err != nil {
		return nil, err
	}

	handle := &SessionHandle{
		CartID:     sessionCart.ID,
		TotalCents: totalCents,
	}
	if payment != nil {
		handle.PaymentID = stringValue(payment.GetID())
		handle.Status = stringValue(payment.GetStatus())
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"cart_id":     sessionCart.ID.String(),
		"total_cents": totalCents,
		"line_count":  len(lines),
	})
	s.logg.Info(logCtx, "checkout session created")
	return handle, nil
}

// HandleCompletionEvent turns an authorized payment into a PENDING order.
// Duplicate deliveries are no-ops: the durable event ledger and the unique
// payment_ref index both dedupe, whichever is hit first.
func (s *service) HandleCompletionEvent(ctx context.Context, event CompletionEvent) error {
	if strings.TrimSpace(event.EventID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "event id required")
	}
	if strings.TrimSpace(event.PaymentID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment id required")
	}
	cartID, err := uuid.Parse(strings.TrimSpace(event.ReferenceID))
	if err != nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "reference id is not a cart id")
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"event_id": event.EventID,
		"cart_id":  cartID.String(),
	})

	var createdOrderID uuid.UUID
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		events := s.events.WithTx(tx)
		cartRepo := s.cartRepo.WithTx(tx)
		orderRepo := s.orderRepo.WithTx(tx)

		fresh, err := events.MarkEventProcessed(ctx, event.EventID, event.EventType)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record webhook event")
		}
		if !fresh {
			s.logg.Info(logCtx, "webhook event already processed")
			return nil
		}

		if _, err := orderRepo.FindByPaymentRef(ctx, event.PaymentID); err == nil {
			s.logg.Info(logCtx, "order already exists for payment")
			return nil
		} else if err != gorm.ErrRecordNotFound {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup payment ref")
		}

		record, err := cartRepo.FindByID(ctx, cartID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "session cart not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load session cart")
		}
		if len(record.Items) == 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "session cart contains no items")
		}

		items, serverTotal, err := s.snapshotItems(ctx, record.Items)
		if err != nil {
			return err
		}

		if diff := absInt(serverTotal - event.AmountCents); diff > s.tolerance() {
			s.flow.IncTotalMismatch()
			return pkgerrors.New(
				pkgerrors.CodeTotalMismatch,
				"authorized amount diverges from server total",
			).WithDetails(map[string]any{
				"server_total_cents":     serverTotal,
				"authorized_total_cents": event.AmountCents,
				"tolerance_cents":        s.tolerance(),
			})
		}

		paymentRef := event.PaymentID
		order := &models.Order{
			ID:            uuid.New(),
			CartID:        &record.ID,
			UserID:        record.UserID,
			Status:        enums.OrderStatusPending,
			Currency:      enums.CurrencyUSD,
			TotalCents:    serverTotal,
			CustomerName:  stringOrEmpty(record.CustomerName),
			CustomerEmail: stringOrEmpty(record.CustomerEmail),
			CustomerPhone: record.CustomerPhone,
			Address:       record.Address,
			PaymentRef:    &paymentRef,
			CouponCode:    record.CouponCode,
			DiscountCents: record.DiscountCents,
			Items:         items,
		}
		if _, err := orderRepo.Create(ctx, order); err != nil {
			if dbpkg.IsUniqueViolation(err, "") {
				s.logg.Info(logCtx, "concurrent delivery created the order first")
				return nil
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}
		createdOrderID = order.ID

		if err := s.carts.Convert(ctx, tx, record.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "freeze cart")
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Data: payloads.OrderCreatedEvent{
				OrderID:       order.ID,
				CartID:        record.ID,
				TotalCents:    serverTotal,
				CustomerEmail: stringOrEmpty(record.CustomerEmail),
			},
		})
	})
	if err != nil {
		return err
	}

	if createdOrderID != uuid.Nil {
		s.flow.IncWebhookEvent()
		s.logg.Info(s.logg.WithFields(logCtx, map[string]any{
			"order_id": createdOrderID.String(),
		}), "pending order created from completion event")
	}
	return nil
}

// snapshotItems freezes the cart lines into order items priced from the
// catalog, never from anything the client or provider sent.
func (s *service) snapshotItems(ctx context.Context, cartItems []models.CartItem) ([]models.OrderItem, int, error) {
	items := make([]models.OrderItem, 0, len(cartItems))
	lines := make([]resolvedLine, 0, len(cartItems))
	for _, item := range cartItems {
		detail, err := s.catalog.FindVariantDetail(ctx, item.VariantID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return nil, 0, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("variant %s not found", item.VariantID))
			}
			return nil, 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve variant")
		}
		lines = append(lines, resolvedLine{variant: detail.Variant, product: detail.Product, qty: item.Quantity})
		items = append(items, models.OrderItem{
			ID:             uuid.New(),
			VariantID:      detail.Variant.ID,
			SKU:            detail.Variant.SKU,
			Name:           detail.Product.Title,
			UnitPriceCents: detail.Variant.UnitPriceCents,
			Quantity:       item.Quantity,
		})
	}
	return items, sessionTotalCents(lines), nil
}

func (s *service) tolerance() int {
	if s.cfg.TotalToleranceCents < 0 {
		return 0
	}
	return s.cfg.TotalToleranceCents
}

// sessionTotalCents sums unit price times quantity with decimal arithmetic
// so the math stays exact if fractional-cent pricing ever appears.
func sessionTotalCents(lines []resolvedLine) int {
	total := decimal.Zero
	for _, line := range lines {
		unit := decimal.NewFromInt(int64(line.variant.UnitPriceCents))
		total = total.Add(unit.Mul(decimal.NewFromInt(int64(line.qty))))
	}
	return int(total.IntPart())
}

func applyCustomer(record *models.Cart, customer CustomerInput) {
	if name := strings.TrimSpace(customer.Name); name != "" {
		record.CustomerName = &name
	}
	if email := strings.TrimSpace(customer.Email); email != "" {
		record.CustomerEmail = &email
	}
	if phone := strings.TrimSpace(customer.Phone); phone != "" {
		record.CustomerPhone = &phone
	}
	record.Address = customer.Address
}

func stringValue(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}

func stringOrEmpty(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
