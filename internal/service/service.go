// Package service provides the storefront business logic: catalog queries
// against the current catalog and per-session carts with a simulated checkout.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/abgdnv/verdant/internal/cart"
	"github.com/abgdnv/verdant/internal/catalog"
	sferrors "github.com/abgdnv/verdant/internal/errors"
	"github.com/abgdnv/verdant/pkg/messaging"
	"github.com/abgdnv/verdant/pkg/messaging/events"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
)

// StorefrontService defines the operations exposed by the REST and gRPC transports.
type StorefrontService interface {
	// QueryProducts filters and sorts the current catalog.
	// Returns ErrInvalidItem wrapping the validation errors for a malformed filter.
	QueryProducts(ctx context.Context, filter FilterDto) (*QueryResultDto, error)

	// FindProduct returns ErrProductNotFound if no product has the id.
	FindProduct(ctx context.Context, id int) (*ProductDto, error)

	Facets(ctx context.Context) (*FacetsDto, error)

	Cart(ctx context.Context, sessionID string) (*CartDto, error)

	// AddItem snapshots the catalog product into the cart.
	// Returns ErrProductNotFound for an unknown product and ErrInvalidItem for bad input.
	AddItem(ctx context.Context, sessionID string, in AddItemDto) (*CartDto, error)

	UpdateQuantity(ctx context.Context, sessionID string, in UpdateQuantityDto) (*CartDto, error)
	RemoveItem(ctx context.Context, sessionID string, productID int, size string) (*CartDto, error)
	ClearCart(ctx context.Context, sessionID string) (*CartDto, error)
	OpenCart(ctx context.Context, sessionID string) (*CartDto, error)
	CloseCart(ctx context.Context, sessionID string) (*CartDto, error)

	// Checkout places a simulated order for the cart, then removes the ordered
	// lines and closes it. Returns ErrCartEmpty if there is nothing to order and
	// ErrCheckoutInProgress while another checkout of the cart is running.
	Checkout(ctx context.Context, sessionID string) (*CheckoutReceiptDto, error)
}

// CatalogSource hands out the catalog currently in effect.
type CatalogSource interface {
	Current() *catalog.Catalog
}

var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// Service implements StorefrontService.
type Service struct {
	catalogs  CatalogSource
	engine    *catalog.Engine
	sessions  *cart.Sessions
	publisher messaging.Publisher
	validate  *validator.Validate
	logger    *slog.Logger

	checkoutDelay   time.Duration
	checkoutSubject string
	now             func() time.Time

	queriesCounter   metric.Int64Counter
	itemsCounter     metric.Int64Counter
	checkoutsCounter metric.Int64Counter
}

type Option func(*Service)

// WithCheckoutDelay sets how long the simulated order placement takes.
func WithCheckoutDelay(d time.Duration) Option {
	return func(s *Service) { s.checkoutDelay = d }
}

// WithCheckoutSubject routes checkout events to subject instead of the default.
func WithCheckoutSubject(subject string) Option {
	return func(s *Service) { s.checkoutSubject = subject }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a new instance of StorefrontService. A nil publisher drops checkout events.
func NewService(catalogs CatalogSource, sessions *cart.Sessions, publisher messaging.Publisher, logger *slog.Logger, opts ...Option) *Service {
	if publisher == nil {
		publisher = messaging.NopPublisher{}
	}
	s := &Service{
		catalogs:  catalogs,
		engine:    catalog.NewEngine(),
		sessions:  sessions,
		publisher: publisher,
		validate:  cart.NewValidator(),
		logger:    logger.With("component", "service"),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	_ = s.validate.RegisterValidation("sessionid", func(fl validator.FieldLevel) bool {
		return sessionIDPattern.MatchString(fl.Field().String())
	})

	meter := otel.Meter("storefront-service")
	s.queriesCounter = mustCounter(meter, "catalog_queries", "Total number of catalog queries")
	s.itemsCounter = mustCounter(meter, "cart_items_added", "Total number of units added to carts")
	s.checkoutsCounter = mustCounter(meter, "checkouts_completed", "Total number of completed checkouts")
	return s
}

func mustCounter(meter metric.Meter, name, description string) metric.Int64Counter {
	counter, err := meter.Int64Counter(name, metric.WithDescription(description))
	if err != nil {
		panic(fmt.Sprintf("failed to create %s counter: %v", name, err))
	}
	return counter
}

// QueryProducts applies the filter to the current catalog.
func (s *Service) QueryProducts(ctx context.Context, filter FilterDto) (*QueryResultDto, error) {
	if err := s.validate.StructCtx(ctx, filter); err != nil {
		return nil, fmt.Errorf("%w: %w", sferrors.ErrInvalidItem, err)
	}
	spec := toFilterSpec(filter)
	result := s.engine.Apply(s.catalogs.Current(), spec)
	s.queriesCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("sort", string(spec.SortBy))))

	return &QueryResultDto{
		Results:       result.Results,
		Facets:        result.Facets,
		TotalCount:    result.TotalCount,
		FilteredCount: result.FilteredCount,
	}, nil
}

// FindProduct returns the product with id from the current catalog.
func (s *Service) FindProduct(_ context.Context, id int) (*ProductDto, error) {
	p, ok := s.catalogs.Current().Product(id)
	if !ok {
		return nil, fmt.Errorf("product %d: %w", id, sferrors.ErrProductNotFound)
	}
	return &p, nil
}

func (s *Service) Facets(_ context.Context) (*FacetsDto, error) {
	facets := s.engine.Facets(s.catalogs.Current())
	return &facets, nil
}

func (s *Service) Cart(ctx context.Context, sessionID string) (*CartDto, error) {
	c, err := s.cart(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return toCartDto(sessionID, c.Snapshot()), nil
}

// AddItem looks the product up in the current catalog and adds one unit of it.
func (s *Service) AddItem(ctx context.Context, sessionID string, in AddItemDto) (*CartDto, error) {
	if err := s.validate.StructCtx(ctx, in); err != nil {
		return nil, fmt.Errorf("%w: %w", sferrors.ErrInvalidItem, err)
	}
	c, err := s.cart(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	p, ok := s.catalogs.Current().Product(in.ProductID)
	if !ok {
		return nil, fmt.Errorf("product %d: %w", in.ProductID, sferrors.ErrProductNotFound)
	}
	err = c.AddItem(ctx, cart.AddItemInput{
		Snapshot: cart.Snapshot{
			ProductID:      p.ID,
			Name:           p.Name,
			Price:          p.Price,
			Image:          p.Image,
			Sustainability: p.Sustainability,
			Materials:      p.Materials,
		},
		Size: in.Size,
	})
	if err != nil {
		return nil, err
	}
	s.itemsCounter.Add(ctx, 1)
	s.logger.DebugContext(ctx, "Item added to cart", "product_id", p.ID, "size", in.Size)
	return toCartDto(sessionID, c.Snapshot()), nil
}

func (s *Service) UpdateQuantity(ctx context.Context, sessionID string, in UpdateQuantityDto) (*CartDto, error) {
	if err := s.validate.StructCtx(ctx, in); err != nil {
		return nil, fmt.Errorf("%w: %w", sferrors.ErrInvalidItem, err)
	}
	c, err := s.cart(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	c.UpdateQuantity(ctx, in.ProductID, in.Size, in.Quantity)
	return toCartDto(sessionID, c.Snapshot()), nil
}

func (s *Service) RemoveItem(ctx context.Context, sessionID string, productID int, size string) (*CartDto, error) {
	c, err := s.cart(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	c.RemoveItem(ctx, productID, size)
	return toCartDto(sessionID, c.Snapshot()), nil
}

func (s *Service) ClearCart(ctx context.Context, sessionID string) (*CartDto, error) {
	c, err := s.cart(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	c.ClearCart(ctx)
	return toCartDto(sessionID, c.Snapshot()), nil
}

func (s *Service) OpenCart(ctx context.Context, sessionID string) (*CartDto, error) {
	c, err := s.cart(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	c.OpenCart()
	return toCartDto(sessionID, c.Snapshot()), nil
}

func (s *Service) CloseCart(ctx context.Context, sessionID string) (*CartDto, error) {
	c, err := s.cart(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	c.CloseCart()
	return toCartDto(sessionID, c.Snapshot()), nil
}

// Checkout waits for the simulated order placement, publishes a
// CartCheckedOutEvent and then removes the ordered lines and closes the cart.
// A second checkout of the same cart fails while one is in progress, and
// lines added during the wait stay in the cart. A failed publish is logged and
// does not fail the checkout. Cancelling ctx during the wait leaves the cart
// untouched.
func (s *Service) Checkout(ctx context.Context, sessionID string) (*CheckoutReceiptDto, error) {
	c, err := s.cart(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	state, err := c.BeginCheckout(ctx)
	if err != nil {
		return nil, err
	}

	if s.checkoutDelay > 0 {
		timer := time.NewTimer(s.checkoutDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			c.AbortCheckout()
			return nil, fmt.Errorf("checkout interrupted: %w", ctx.Err())
		case <-timer.C:
		}
	}

	receipt := &CheckoutReceiptDto{
		OrderID:    uuid.NewString(),
		SessionID:  sessionID,
		Lines:      toLineItemDtos(state.Items),
		TotalItems: state.TotalItems,
		TotalPrice: state.TotalPrice,
		PlacedAt:   s.now().UTC(),
	}

	carrier := make(propagation.MapCarrier)
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	event := toEvent(receipt, carrier)
	if s.checkoutSubject != "" {
		event = event.WithSubject(s.checkoutSubject)
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish CartCheckedOutEvent", "order_id", receipt.OrderID, "error", err)
	}

	c.CompleteCheckout(ctx, state.Items)
	s.checkoutsCounter.Add(ctx, 1)
	s.logger.InfoContext(ctx, "Order placed successfully",
		"order_id", receipt.OrderID, "total_items", receipt.TotalItems, "total_price", receipt.TotalPrice)
	return receipt, nil
}

// cart returns the container of a validated session id. The empty id selects the shared cart.
func (s *Service) cart(ctx context.Context, sessionID string) (*cart.Container, error) {
	if sessionID != "" {
		if err := s.validate.VarCtx(ctx, sessionID, "sessionid"); err != nil {
			return nil, fmt.Errorf("%w: %q", sferrors.ErrInvalidSession, sessionID)
		}
	}
	return s.sessions.Get(ctx, sessionID), nil
}

func toEvent(r *CheckoutReceiptDto, carrier propagation.MapCarrier) events.CartCheckedOutEvent {
	lines := make([]events.OrderLine, 0, len(r.Lines))
	for _, l := range r.Lines {
		lines = append(lines, events.OrderLine{
			ProductID: l.ProductID,
			Name:      l.Name,
			Size:      l.Size,
			Quantity:  l.Quantity,
			UnitPrice: l.Price,
		})
	}
	return events.CartCheckedOutEvent{
		OrderID:    uuid.MustParse(r.OrderID),
		SessionID:  r.SessionID,
		Lines:      lines,
		TotalItems: r.TotalItems,
		TotalPrice: r.TotalPrice,
		PlacedAt:   r.PlacedAt,
		Carrier:    carrier,
	}
}
