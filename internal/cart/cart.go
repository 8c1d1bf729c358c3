package cart

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	sferrors "github.com/abgdnv/verdant/internal/errors"
	"github.com/go-playground/validator/v10"
)

// Container owns the state of one cart. Every operation runs under a single
// mutex and, when it changes the item list, saves the list before returning,
// so the stored order always matches the mutation order.
type Container struct {
	mu          sync.Mutex
	items       []LineItem
	isOpen      bool
	checkingOut bool

	// restored is false while the stored cart could not be read. Saves are
	// held back until a later load succeeds so they cannot overwrite it.
	restored bool
	// cleared records a ClearCart made before the stored cart was restored.
	cleared bool

	store          Store
	key            string
	logger         *slog.Logger
	validate       *validator.Validate
	onPersistError func(key string, err error)
}

type Option func(*Container)

// WithPersistErrorHook is called whenever saving the cart fails.
func WithPersistErrorHook(fn func(key string, err error)) Option {
	return func(c *Container) { c.onPersistError = fn }
}

// WithValidator replaces the default input validator.
func WithValidator(v *validator.Validate) Option {
	return func(c *Container) { c.validate = v }
}

// New creates a cart bound to key in store and restores its items.
// A missing or malformed document yields an empty cart. When the store cannot
// be read the cart starts empty and the load is retried before anything is saved.
// A nil store keeps the cart in memory only.
func New(ctx context.Context, store Store, key string, logger *slog.Logger, opts ...Option) *Container {
	c := &Container{
		store:  store,
		key:    key,
		logger: logger.With("component", "cart", "cart_key", key),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.validate == nil {
		c.validate = NewValidator()
	}
	c.restore(ctx)
	return c
}

func (c *Container) restore(ctx context.Context) {
	if c.store == nil {
		c.restored = true
		return
	}
	items, ok := c.load(ctx)
	if !ok {
		return
	}
	c.items = items
	c.restored = true
	c.logger.DebugContext(ctx, "Cart restored", "lines", len(items))
}

// load reads the stored items. It reports false only when the store could not
// be read; a missing or malformed document counts as an empty cart.
func (c *Container) load(ctx context.Context) ([]LineItem, bool) {
	blob, err := c.store.Load(ctx, c.key)
	if errors.Is(err, sferrors.ErrCartNotFound) {
		return nil, true
	}
	if err != nil {
		c.logger.WarnContext(ctx, "Failed to load cart, serving it from memory until the store recovers", "error", err)
		return nil, false
	}
	items, err := decode(blob)
	if err != nil {
		c.logger.WarnContext(ctx, "Discarding malformed cart", "error", err)
		return nil, true
	}
	return items, true
}

// Restore retries a failed restore and reports whether the cart now reflects the store.
func (c *Container) Restore(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ensureRestored(ctx)
}

// ensureRestored retries a failed restore. Lines added in the meantime are
// merged onto the stored ones and saved. Callers hold c.mu.
func (c *Container) ensureRestored(ctx context.Context) bool {
	if c.restored {
		return true
	}
	stored, ok := c.load(ctx)
	if !ok {
		return false
	}
	dirty := c.cleared || len(c.items) > 0
	if c.cleared {
		stored = nil
	}
	c.items = mergeItems(stored, c.items)
	c.restored = true
	c.cleared = false
	c.logger.InfoContext(ctx, "Cart restored after store recovery", "lines", len(c.items))
	if dirty {
		c.persist(ctx)
	}
	return true
}

// Key returns the storage key of the cart.
func (c *Container) Key() string {
	return c.key
}

// AddItem adds one unit of the product in the given size. An existing line is
// incremented and keeps its original snapshot.
func (c *Container) AddItem(ctx context.Context, in AddItemInput) error {
	in.Size = normalizeSize(in.Size)
	if err := c.validate.StructCtx(ctx, in); err != nil {
		return fmt.Errorf("%w: %w", sferrors.ErrInvalidItem, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.ensureRestored(ctx)

	key := Key{ProductID: in.ProductID, Size: in.Size}
	if i := c.indexOf(key); i >= 0 {
		c.items[i].Quantity++
	} else {
		c.items = append(c.items, LineItem{Snapshot: in.Snapshot, Size: in.Size, Quantity: 1})
	}
	c.persist(ctx)
	return nil
}

// RemoveItem deletes the line if present.
func (c *Container) RemoveItem(ctx context.Context, productID int, size string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ensureRestored(ctx)
	c.remove(ctx, Key{ProductID: productID, Size: normalizeSize(size)})
}

// UpdateQuantity sets the quantity of an existing line. A quantity of zero or
// less removes the line.
func (c *Container) UpdateQuantity(ctx context.Context, productID int, size string, quantity int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ensureRestored(ctx)

	key := Key{ProductID: productID, Size: normalizeSize(size)}
	if quantity <= 0 {
		c.remove(ctx, key)
		return
	}
	i := c.indexOf(key)
	if i < 0 || c.items[i].Quantity == quantity {
		return
	}
	c.items[i].Quantity = quantity
	c.persist(ctx)
}

// ClearCart empties the cart.
func (c *Container) ClearCart(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.ensureRestored(ctx) {
		c.cleared = true
	}
	c.items = nil
	c.persist(ctx)
}

// BeginCheckout marks the cart as being checked out and returns the state to
// order. Only one checkout of a cart can be in progress at a time; it ends with
// CompleteCheckout or AbortCheckout.
func (c *Container) BeginCheckout(ctx context.Context) (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.checkingOut {
		return State{}, sferrors.ErrCheckoutInProgress
	}
	if !c.ensureRestored(ctx) {
		return State{}, sferrors.ErrCartStoreUnavailable
	}
	if len(c.items) == 0 {
		return State{}, sferrors.ErrCartEmpty
	}
	c.checkingOut = true
	return c.state(), nil
}

// CompleteCheckout removes the ordered quantities and closes the cart. Lines
// added or increased after BeginCheckout stay in the cart.
func (c *Container) CompleteCheckout(ctx context.Context, ordered []LineItem) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, o := range ordered {
		if i := c.indexOf(o.Key()); i >= 0 {
			c.items[i].Quantity -= o.Quantity
		}
	}
	c.items = slices.DeleteFunc(c.items, func(item LineItem) bool { return item.Quantity <= 0 })
	c.isOpen = false
	c.checkingOut = false
	c.persist(ctx)
}

// AbortCheckout ends a checkout and leaves the cart as it is.
func (c *Container) AbortCheckout() {
	c.mu.Lock()
	c.checkingOut = false
	c.mu.Unlock()
}

func (c *Container) OpenCart() {
	c.mu.Lock()
	c.isOpen = true
	c.mu.Unlock()
}

func (c *Container) CloseCart() {
	c.mu.Lock()
	c.isOpen = false
	c.mu.Unlock()
}

func (c *Container) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isOpen
}

// Items returns a copy of the line items in insertion order.
func (c *Container) Items() []LineItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.items)
}

// TotalItems is the sum of all quantities.
func (c *Container) TotalItems() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return totalItems(c.items)
}

// TotalPrice is the sum of price times quantity over all lines, unrounded.
func (c *Container) TotalPrice() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return totalPrice(c.items)
}

// Snapshot returns items, open flag and totals read under one lock.
func (c *Container) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state()
}

func (c *Container) state() State {
	items := slices.Clone(c.items)
	if items == nil {
		items = []LineItem{}
	}
	return State{
		Items:      items,
		IsOpen:     c.isOpen,
		TotalItems: totalItems(c.items),
		TotalPrice: totalPrice(c.items),
	}
}

func (c *Container) indexOf(key Key) int {
	return slices.IndexFunc(c.items, func(item LineItem) bool { return item.Key() == key })
}

func (c *Container) remove(ctx context.Context, key Key) {
	i := c.indexOf(key)
	if i < 0 {
		return
	}
	c.items = slices.Delete(c.items, i, i+1)
	c.persist(ctx)
}

// persist saves the item list. Failures are logged and reported to the hook;
// the in-memory state stays authoritative. Callers hold c.mu.
func (c *Container) persist(ctx context.Context) {
	if c.store == nil {
		return
	}
	if !c.restored {
		c.logger.WarnContext(ctx, "Cart not restored yet, save deferred")
		if c.onPersistError != nil {
			c.onPersistError(c.key, sferrors.ErrCartStoreUnavailable)
		}
		return
	}
	blob, err := encode(c.items)
	if err == nil {
		err = c.store.Save(ctx, c.key, blob)
	}
	if err != nil {
		c.logger.ErrorContext(ctx, "Failed to persist cart", "error", err)
		if c.onPersistError != nil {
			c.onPersistError(c.key, err)
		}
	}
}

// mergeItems adds the pending lines onto stored, summing quantities of equal keys.
func mergeItems(stored, pending []LineItem) []LineItem {
	merged := slices.Clone(stored)
	for _, p := range pending {
		i := slices.IndexFunc(merged, func(item LineItem) bool { return item.Key() == p.Key() })
		if i >= 0 {
			merged[i].Quantity += p.Quantity
			continue
		}
		merged = append(merged, p)
	}
	return merged
}

func totalItems(items []LineItem) int {
	total := 0
	for _, item := range items {
		total += item.Quantity
	}
	return total
}

func totalPrice(items []LineItem) float64 {
	total := 0.0
	for _, item := range items {
		total += item.Subtotal()
	}
	return total
}
