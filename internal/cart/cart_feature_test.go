package cart

import (
	"context"
	"fmt"
	"testing"

	"github.com/cucumber/godog"
)

type cartFeature struct {
	store  *memStore
	key    string
	cart   *Container
	addErr error
}

func (f *cartFeature) reset() {
	f.store = newMemStore()
	f.key = ""
	f.cart = nil
	f.addErr = nil
}

func (f *cartFeature) anEmptyCartStoredUnder(key string) error {
	f.key = key
	f.cart = New(context.Background(), f.store, key, discard)
	return nil
}

func (f *cartFeature) iAddProduct(id int, name string, price float64, size string) error {
	f.addErr = f.cart.AddItem(context.Background(), AddItemInput{
		Snapshot: Snapshot{ProductID: id, Name: name, Price: price},
		Size:     size,
	})
	return nil
}

func (f *cartFeature) iSetTheQuantity(id int, size string, qty int) error {
	f.cart.UpdateQuantity(context.Background(), id, size, qty)
	return nil
}

func (f *cartFeature) iRemoveProduct(id int, size string) error {
	f.cart.RemoveItem(context.Background(), id, size)
	return nil
}

func (f *cartFeature) iOpenTheCart() error {
	f.cart.OpenCart()
	return nil
}

func (f *cartFeature) iClearAndCloseTheCart() error {
	f.cart.ClearCart(context.Background())
	f.cart.CloseCart()
	return nil
}

func (f *cartFeature) theStoredCartContains(blob string) error {
	f.store.blobs[f.key] = []byte(blob)
	return nil
}

func (f *cartFeature) theCartIsRestoredFromStorage() error {
	f.cart = New(context.Background(), f.store, f.key, discard)
	return nil
}

func (f *cartFeature) theCartHasLines(n int) error {
	if got := len(f.cart.Items()); got != n {
		return fmt.Errorf("expected %d lines, got %d", n, got)
	}
	return nil
}

func (f *cartFeature) lineIsProductInSizeWithQuantity(pos, id int, size string, qty int) error {
	items := f.cart.Items()
	if pos < 1 || pos > len(items) {
		return fmt.Errorf("no line %d in a cart of %d lines", pos, len(items))
	}
	item := items[pos-1]
	if item.ProductID != id || item.Size != size || item.Quantity != qty {
		return fmt.Errorf("line %d is %d/%s x%d", pos, item.ProductID, item.Size, item.Quantity)
	}
	return nil
}

func (f *cartFeature) theCartHoldsItemsTotalling(items int, total float64) error {
	state := f.cart.Snapshot()
	if state.TotalItems != items || state.TotalPrice != total {
		return fmt.Errorf("expected %d items totalling %v, got %d totalling %v", items, total, state.TotalItems, state.TotalPrice)
	}
	return nil
}

func (f *cartFeature) theCartRejectsTheItem() error {
	if f.addErr == nil {
		return fmt.Errorf("expected the item to be rejected")
	}
	return nil
}

func (f *cartFeature) theCartIsClosed() error {
	if f.cart.IsOpen() {
		return fmt.Errorf("expected the cart to be closed")
	}
	return nil
}

func initializeCartScenario(ctx *godog.ScenarioContext) {
	f := &cartFeature{}

	ctx.Before(func(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
		f.reset()
		return ctx, nil
	})

	ctx.Step(`^an empty cart stored under "([^"]*)"$`, f.anEmptyCartStoredUnder)
	ctx.Step(`^I add product (\d+) "([^"]*)" priced (\d+(?:\.\d+)?) in size "([^"]*)"$`, f.iAddProduct)
	ctx.Step(`^I set the quantity of product (\d+) in size "([^"]*)" to (-?\d+)$`, f.iSetTheQuantity)
	ctx.Step(`^I remove product (\d+) in size "([^"]*)"$`, f.iRemoveProduct)
	ctx.Step(`^I open the cart$`, f.iOpenTheCart)
	ctx.Step(`^I clear and close the cart$`, f.iClearAndCloseTheCart)
	ctx.Step(`^the stored cart contains "([^"]*)"$`, f.theStoredCartContains)
	ctx.Step(`^the cart is restored from storage$`, f.theCartIsRestoredFromStorage)
	ctx.Step(`^the cart has (\d+) lines?$`, f.theCartHasLines)
	ctx.Step(`^line (\d+) is product (\d+) in size "([^"]*)" with quantity (\d+)$`, f.lineIsProductInSizeWithQuantity)
	ctx.Step(`^the cart holds (\d+) items totalling (\d+(?:\.\d+)?)$`, f.theCartHoldsItemsTotalling)
	ctx.Step(`^the cart rejects the item$`, f.theCartRejectsTheItem)
	ctx.Step(`^the cart is closed$`, f.theCartIsClosed)
}

func TestCartFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: initializeCartScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"../../features/cart.feature"},
			TestingT: t,
			Strict:   true,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
