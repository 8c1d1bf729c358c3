package cart

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	sferrors "github.com/abgdnv/verdant/internal/errors"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testKey = "sustainable-fashion-cart"

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

// memStore is a minimal in-memory Store.
type memStore struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

func newMemStore() *memStore {
	return &memStore{blobs: make(map[string][]byte)}
}

func (s *memStore) Load(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	blob, ok := s.blobs[key]
	if !ok {
		return nil, sferrors.ErrCartNotFound
	}
	return blob, nil
}

func (s *memStore) Save(_ context.Context, key string, blob []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[key] = blob
	return nil
}

// mockStore is a testify mock of Store.
type mockStore struct {
	mock.Mock
}

func (m *mockStore) Load(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)
	blob, _ := args.Get(0).([]byte)
	return blob, args.Error(1)
}

func (m *mockStore) Save(ctx context.Context, key string, blob []byte) error {
	args := m.Called(ctx, key, blob)
	return args.Error(0)
}

var (
	cottonTee = Snapshot{ProductID: 1, Name: "Organic Cotton Essentials", Price: 89, Image: "tee.jpg", Sustainability: "GOTS", Materials: "cotton"}
	woolCoat  = Snapshot{ProductID: 3, Name: "Recycled Wool Outerwear", Price: 198, Image: "coat.jpg", Sustainability: "GRS", Materials: "wool"}
)

func add(t *testing.T, c *Container, s Snapshot, size string) {
	t.Helper()
	require.NoError(t, c.AddItem(context.Background(), AddItemInput{Snapshot: s, Size: size}))
}

func TestContainer_AddItem(t *testing.T) {
	ctx := context.Background()

	t.Run("same product and size increments quantity", func(t *testing.T) {
		c := New(ctx, nil, testKey, discard)

		add(t, c, cottonTee, "M")
		add(t, c, cottonTee, "M")

		items := c.Items()
		require.Len(t, items, 1)
		assert.Equal(t, 2, items[0].Quantity)
	})

	t.Run("different size is a separate line in insertion order", func(t *testing.T) {
		c := New(ctx, nil, testKey, discard)

		add(t, c, woolCoat, "L")
		add(t, c, cottonTee, "M")
		add(t, c, cottonTee, "S")

		items := c.Items()
		require.Len(t, items, 3)
		assert.Equal(t, Key{3, "L"}, items[0].Key())
		assert.Equal(t, Key{1, "M"}, items[1].Key())
		assert.Equal(t, Key{1, "S"}, items[2].Key())
	})

	t.Run("increment keeps the original snapshot", func(t *testing.T) {
		c := New(ctx, nil, testKey, discard)
		add(t, c, cottonTee, "M")

		repriced := cottonTee
		repriced.Price = 120
		repriced.Name = "Renamed"
		add(t, c, repriced, "M")

		items := c.Items()
		require.Len(t, items, 1)
		assert.Equal(t, 89.0, items[0].Price)
		assert.Equal(t, "Organic Cotton Essentials", items[0].Name)
		assert.Equal(t, 2, items[0].Quantity)
	})

	t.Run("size is trimmed", func(t *testing.T) {
		c := New(ctx, nil, testKey, discard)
		add(t, c, cottonTee, " M ")
		add(t, c, cottonTee, "M")

		assert.Equal(t, []LineItem{{Snapshot: cottonTee, Size: "M", Quantity: 2}}, c.Items())
	})
}

func TestContainer_AddItem_RejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name      string
		in        AddItemInput
		wantField string
	}{
		{"missing size", AddItemInput{Snapshot: cottonTee}, "Size"},
		{"blank size", AddItemInput{Snapshot: cottonTee, Size: "   "}, "Size"},
		{"oversized size", AddItemInput{Snapshot: cottonTee, Size: "EXTRA-EXTRA-LARGE-PLUS"}, "Size"},
		{"missing product id", AddItemInput{Snapshot: Snapshot{Price: 10}, Size: "M"}, "ProductID"},
		{"negative price", AddItemInput{Snapshot: Snapshot{ProductID: 1, Price: -1}, Size: "M"}, "Price"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// given
			store := newMemStore()
			c := New(context.Background(), store, testKey, discard)

			// when
			err := c.AddItem(context.Background(), tt.in)

			// then
			require.ErrorIs(t, err, sferrors.ErrInvalidItem)
			var verrs validator.ValidationErrors
			require.True(t, errors.As(err, &verrs))
			assert.Equal(t, tt.wantField, verrs[0].Field())
			assert.Empty(t, c.Items())
			assert.Empty(t, store.blobs, "rejected input must not be persisted")
		})
	}
}

func TestContainer_RemoveItem(t *testing.T) {
	ctx := context.Background()
	c := New(ctx, nil, testKey, discard)
	add(t, c, cottonTee, "M")
	add(t, c, woolCoat, "L")

	c.RemoveItem(ctx, 1, "M")
	c.RemoveItem(ctx, 1, "M")
	c.RemoveItem(ctx, 42, "XS")

	items := c.Items()
	require.Len(t, items, 1)
	assert.Equal(t, Key{3, "L"}, items[0].Key())
}

func TestContainer_UpdateQuantity(t *testing.T) {
	tests := []struct {
		name     string
		id       int
		size     string
		quantity int
		want     []Key
		wantQty  int
	}{
		{"sets quantity", 1, "M", 5, []Key{{1, "M"}, {3, "L"}}, 5},
		{"zero removes", 1, "M", 0, []Key{{3, "L"}}, 0},
		{"negative removes", 1, "M", -3, []Key{{3, "L"}}, 0},
		{"absent line is a no-op", 1, "XL", 4, []Key{{1, "M"}, {3, "L"}}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// given
			ctx := context.Background()
			c := New(ctx, nil, testKey, discard)
			add(t, c, cottonTee, "M")
			add(t, c, woolCoat, "L")

			// when
			c.UpdateQuantity(ctx, tt.id, tt.size, tt.quantity)

			// then
			var keys []Key
			for _, item := range c.Items() {
				keys = append(keys, item.Key())
				if item.Key() == (Key{1, "M"}) {
					assert.Equal(t, tt.wantQty, item.Quantity)
				}
			}
			assert.Equal(t, tt.want, keys)
		})
	}
}

func TestContainer_UpdateQuantityZeroThenRemoveIsNoOp(t *testing.T) {
	ctx := context.Background()
	c := New(ctx, nil, testKey, discard)
	add(t, c, cottonTee, "M")

	c.UpdateQuantity(ctx, 1, "M", 0)
	assert.NotPanics(t, func() { c.RemoveItem(ctx, 1, "M") })

	assert.Empty(t, c.Items())
}

func TestContainer_Totals(t *testing.T) {
	// given
	ctx := context.Background()
	c := New(ctx, nil, testKey, discard)
	add(t, c, cottonTee, "M")
	add(t, c, cottonTee, "M")
	add(t, c, woolCoat, "L")

	// then
	assert.Equal(t, 3, c.TotalItems())
	assert.Equal(t, 376.0, c.TotalPrice())

	state := c.Snapshot()
	assert.Equal(t, 3, state.TotalItems)
	assert.Equal(t, 376.0, state.TotalPrice)
	assert.Len(t, state.Items, 2)

	c.ClearCart(ctx)
	assert.Equal(t, 0, c.TotalItems())
	assert.Equal(t, 0.0, c.TotalPrice())
	assert.Equal(t, []LineItem{}, c.Snapshot().Items)
}

func TestContainer_TotalPriceKeepsPrecision(t *testing.T) {
	c := New(context.Background(), nil, testKey, discard)
	add(t, c, Snapshot{ProductID: 7, Price: 0.1}, "S")
	add(t, c, Snapshot{ProductID: 8, Price: 0.2}, "S")

	assert.Equal(t, 0.1+0.2, c.TotalPrice())
}

func TestContainer_OpenCloseIsNotPersisted(t *testing.T) {
	// given
	ctx := context.Background()
	store := newMemStore()
	c := New(ctx, store, testKey, discard)

	// when
	c.OpenCart()
	add(t, c, cottonTee, "M")

	// then
	assert.True(t, c.IsOpen())
	var doc map[string]any
	require.NoError(t, json.Unmarshal(store.blobs[testKey], &doc))
	assert.NotContains(t, doc, "isOpen")
	assert.NotContains(t, doc["state"], "isOpen")
	assert.Len(t, doc["state"], 1, "only the item list is persisted")

	restored := New(ctx, store, testKey, discard)
	assert.False(t, restored.IsOpen())

	c.CloseCart()
	assert.False(t, c.IsOpen())
}

func TestContainer_PersistenceRoundTrip(t *testing.T) {
	// given
	ctx := context.Background()
	store := newMemStore()
	c := New(ctx, store, testKey, discard)
	add(t, c, woolCoat, "L")
	add(t, c, cottonTee, "M")
	add(t, c, cottonTee, "M")
	add(t, c, cottonTee, "XS")
	c.UpdateQuantity(ctx, 3, "L", 4)

	// when
	restored := New(ctx, store, testKey, discard)

	// then
	assert.Equal(t, c.Items(), restored.Items())
	assert.Len(t, restored.Items(), 3)
	assert.Equal(t, c.TotalPrice(), restored.TotalPrice())
}

func TestContainer_PersistedFormat(t *testing.T) {
	store := newMemStore()
	c := New(context.Background(), store, testKey, discard)
	add(t, c, cottonTee, "M")

	assert.JSONEq(t, `{
		"state": {"items": [{
			"id": 1, "name": "Organic Cotton Essentials", "price": 89, "image": "tee.jpg",
			"sustainability": "GOTS", "materials": "cotton", "size": "M", "quantity": 1
		}]},
		"version": 0
	}`, string(store.blobs[testKey]))
}

func TestContainer_RestoreFailsOpen(t *testing.T) {
	tests := []struct {
		name string
		blob string
	}{
		{"not json", `{{{`},
		{"wrong shape", `{"state":{"items":"nope"},"version":0}`},
		{"future version", `{"state":{"items":[]},"version":3}`},
		{"zero quantity", `{"state":{"items":[{"id":1,"size":"M","quantity":0}]},"version":0}`},
		{"missing size", `{"state":{"items":[{"id":1,"quantity":1}]},"version":0}`},
		{"duplicate line", `{"state":{"items":[{"id":1,"size":"M","quantity":1},{"id":1,"size":"M","quantity":2}]},"version":0}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			store.blobs[testKey] = []byte(tt.blob)

			c := New(context.Background(), store, testKey, discard)

			assert.Empty(t, c.Items())
			assert.NoError(t, c.AddItem(context.Background(), AddItemInput{Snapshot: cottonTee, Size: "M"}))
		})
	}
}

// flakyStore fails the first failLoads loads, then behaves like memStore.
type flakyStore struct {
	*memStore
	failLoads int
	saves     int
}

func (s *flakyStore) Load(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	if s.failLoads > 0 {
		s.failLoads--
		s.mu.Unlock()
		return nil, errors.New("connection refused")
	}
	s.mu.Unlock()
	return s.memStore.Load(ctx, key)
}

func (s *flakyStore) Save(ctx context.Context, key string, blob []byte) error {
	s.mu.Lock()
	s.saves++
	s.mu.Unlock()
	return s.memStore.Save(ctx, key, blob)
}

// storedCart writes a cart document with the given lines to store.
func storedCart(t *testing.T, store *memStore, items ...LineItem) {
	t.Helper()
	blob, err := encode(items)
	require.NoError(t, err)
	store.blobs[testKey] = blob
}

func TestContainer_RestoreFromUnavailableStore(t *testing.T) {
	// given
	store := &mockStore{}
	store.On("Load", mock.Anything, testKey).Return(nil, errors.New("connection refused"))

	// when
	c := New(context.Background(), store, testKey, discard)

	// then
	assert.Empty(t, c.Items())
	assert.False(t, c.Restore(context.Background()))
	store.AssertNotCalled(t, "Save", mock.Anything, mock.Anything, mock.Anything)
}

func TestContainer_FailedLoadDoesNotOverwriteStoredCart(t *testing.T) {
	// given
	ctx := context.Background()
	store := &flakyStore{memStore: newMemStore(), failLoads: 1}
	storedCart(t, store.memStore,
		LineItem{Snapshot: woolCoat, Size: "L", Quantity: 2},
		LineItem{Snapshot: cottonTee, Size: "M", Quantity: 1},
	)
	c := New(ctx, store, testKey, discard)
	require.Empty(t, c.Items())

	// when
	add(t, c, cottonTee, "S")

	// then
	items := c.Items()
	require.Len(t, items, 3)
	assert.Equal(t, Key{ProductID: 3, Size: "L"}, items[0].Key())
	assert.Equal(t, Key{ProductID: 1, Size: "S"}, items[2].Key())
	assert.Equal(t, 4, c.TotalItems())
	restored := New(ctx, store.memStore, testKey, discard)
	assert.Equal(t, 4, restored.TotalItems())
}

func TestContainer_SavesWaitForStoreRecovery(t *testing.T) {
	// given
	ctx := context.Background()
	store := &flakyStore{memStore: newMemStore(), failLoads: 2}
	storedCart(t, store.memStore, LineItem{Snapshot: cottonTee, Size: "M", Quantity: 1})
	var hookErrs []error
	c := New(ctx, store, testKey, discard, WithPersistErrorHook(func(_ string, err error) {
		hookErrs = append(hookErrs, err)
	}))

	// when
	add(t, c, cottonTee, "M")

	// then
	assert.Zero(t, store.saves, "nothing is saved while the stored cart is unknown")
	require.Len(t, hookErrs, 1)
	assert.ErrorIs(t, hookErrs[0], sferrors.ErrCartStoreUnavailable)

	// when
	require.True(t, c.Restore(ctx))

	// then
	assert.Equal(t, 2, c.TotalItems(), "pending add merges onto the stored line")
	assert.Equal(t, 1, store.saves)
	assert.Equal(t, 2, New(ctx, store.memStore, testKey, discard).TotalItems())
}

func TestContainer_ClearBeforeRestoreDiscardsStoredCart(t *testing.T) {
	// given
	ctx := context.Background()
	store := &flakyStore{memStore: newMemStore(), failLoads: 2}
	storedCart(t, store.memStore, LineItem{Snapshot: woolCoat, Size: "L", Quantity: 3})
	c := New(ctx, store, testKey, discard)

	// when
	c.ClearCart(ctx)
	require.True(t, c.Restore(ctx))

	// then
	assert.Empty(t, c.Items())
	assert.Zero(t, New(ctx, store.memStore, testKey, discard).TotalItems())
}

func TestContainer_PersistFailureKeepsMemoryState(t *testing.T) {
	// given
	store := &mockStore{}
	store.On("Load", mock.Anything, testKey).Return(nil, sferrors.ErrCartNotFound)
	store.On("Save", mock.Anything, testKey, mock.Anything).Return(errors.New("disk full"))
	var hookErrs []error
	c := New(context.Background(), store, testKey, discard, WithPersistErrorHook(func(key string, err error) {
		assert.Equal(t, testKey, key)
		hookErrs = append(hookErrs, err)
	}))

	// when
	err := c.AddItem(context.Background(), AddItemInput{Snapshot: cottonTee, Size: "M"})

	// then
	require.NoError(t, err)
	assert.Equal(t, 1, c.TotalItems())
	require.Len(t, hookErrs, 1)
	assert.EqualError(t, hookErrs[0], "disk full")
	store.AssertNumberOfCalls(t, "Save", 1)
}

func TestContainer_NoOpsDoNotPersist(t *testing.T) {
	// given
	store := &mockStore{}
	store.On("Load", mock.Anything, testKey).Return(nil, sferrors.ErrCartNotFound)
	c := New(context.Background(), store, testKey, discard)

	// when
	c.RemoveItem(context.Background(), 1, "M")
	c.UpdateQuantity(context.Background(), 1, "M", 3)
	c.OpenCart()

	// then
	store.AssertNotCalled(t, "Save", mock.Anything, mock.Anything, mock.Anything)
}

func TestContainer_ConcurrentAdds(t *testing.T) {
	store := newMemStore()
	c := New(context.Background(), store, testKey, discard)

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = c.AddItem(context.Background(), AddItemInput{Snapshot: cottonTee, Size: "M"})
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, c.TotalItems())
	restored := New(context.Background(), store, testKey, discard)
	assert.Equal(t, 50, restored.TotalItems())
}

func TestContainer_Checkout(t *testing.T) {
	// given
	ctx := context.Background()
	store := newMemStore()
	c := New(ctx, store, testKey, discard)
	add(t, c, cottonTee, "M")
	add(t, c, cottonTee, "M")
	c.OpenCart()

	// when
	state, err := c.BeginCheckout(ctx)

	// then
	require.NoError(t, err)
	assert.Equal(t, 2, state.TotalItems)
	_, err = c.BeginCheckout(ctx)
	assert.ErrorIs(t, err, sferrors.ErrCheckoutInProgress)

	// lines changed during the checkout
	add(t, c, cottonTee, "M")
	add(t, c, woolCoat, "L")

	// when
	c.CompleteCheckout(ctx, state.Items)

	// then
	items := c.Items()
	require.Len(t, items, 2)
	assert.Equal(t, LineItem{Snapshot: cottonTee, Size: "M", Quantity: 1}, items[0])
	assert.Equal(t, LineItem{Snapshot: woolCoat, Size: "L", Quantity: 1}, items[1])
	assert.False(t, c.IsOpen())
	assert.Equal(t, 2, New(ctx, store, testKey, discard).TotalItems())

	_, err = c.BeginCheckout(ctx)
	assert.NoError(t, err, "a completed checkout releases the cart")
}

func TestContainer_BeginCheckout_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("empty cart", func(t *testing.T) {
		c := New(ctx, newMemStore(), testKey, discard)
		_, err := c.BeginCheckout(ctx)
		assert.ErrorIs(t, err, sferrors.ErrCartEmpty)
		_, err = c.BeginCheckout(ctx)
		assert.ErrorIs(t, err, sferrors.ErrCartEmpty, "a rejected checkout does not hold the cart")
	})

	t.Run("store unavailable", func(t *testing.T) {
		store := &flakyStore{memStore: newMemStore(), failLoads: 3}
		c := New(ctx, store, testKey, discard)
		add(t, c, cottonTee, "M")
		_, err := c.BeginCheckout(ctx)
		assert.ErrorIs(t, err, sferrors.ErrCartStoreUnavailable)
	})

	t.Run("aborted checkout", func(t *testing.T) {
		c := New(ctx, newMemStore(), testKey, discard)
		add(t, c, cottonTee, "M")
		_, err := c.BeginCheckout(ctx)
		require.NoError(t, err)
		c.AbortCheckout()
		_, err = c.BeginCheckout(ctx)
		assert.NoError(t, err)
		assert.Equal(t, 1, c.TotalItems())
	})
}

func TestContainer_ConcurrentCheckouts(t *testing.T) {
	ctx := context.Background()
	c := New(ctx, newMemStore(), testKey, discard)
	add(t, c, cottonTee, "M")

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		started int
	)
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.BeginCheckout(ctx); err == nil {
				mu.Lock()
				started++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, started)
}
