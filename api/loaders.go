package api

import (
	"context"
	"net/http"
	"time"

	"github.com/graph-gophers/dataloader/v7"
	"github.com/warp/formation-engine/budget"
	"github.com/warp/formation-engine/money"
)

// =============================================================================
// PER-REQUEST TARIFF LOADER
// =============================================================================

type ctxKey string

const loadersKey = ctxKey("dataloaders")

// defaultTariff is one loader result. Found is false for a product without
// a default tariff.
type defaultTariff struct {
	Price money.Money
	Found bool
}

// tariffLoader batches and caches default-tariff lookups for the lifetime of
// one request, so every view computed by the request shares one store query.
// It implements budget.TariffSource.
type tariffLoader struct {
	loader *dataloader.Loader[budget.ProductID, defaultTariff]
}

type tariffReader struct {
	source budget.TariffSource
}

func (r *tariffReader) getDefaultTariffs(ctx context.Context, ids []budget.ProductID) []*dataloader.Result[defaultTariff] {
	prices, err := r.source.DefaultTariffs(ctx, ids)
	if err != nil {
		return handleError[defaultTariff](len(ids), err)
	}

	results := make([]*dataloader.Result[defaultTariff], 0, len(ids))
	for _, id := range ids {
		price, ok := prices.PriceOf(id)
		results = append(results, &dataloader.Result[defaultTariff]{Data: defaultTariff{Price: price, Found: ok}})
	}
	return results
}

// handleError repeats err for every requested key.
func handleError[T any](itemsLength int, err error) []*dataloader.Result[T] {
	result := make([]*dataloader.Result[T], itemsLength)
	for i := 0; i < itemsLength; i++ {
		result[i] = &dataloader.Result[T]{Error: err}
	}
	return result
}

func newTariffLoader(source budget.TariffSource) *tariffLoader {
	reader := &tariffReader{source: source}
	return &tariffLoader{
		loader: dataloader.NewBatchedLoader(reader.getDefaultTariffs, dataloader.WithWait[budget.ProductID, defaultTariff](time.Millisecond)),
	}
}

// DefaultTariffs implements budget.TariffSource through the loader cache.
func (l *tariffLoader) DefaultTariffs(ctx context.Context, productIDs []budget.ProductID) (budget.Prices, error) {
	prices := make(budget.Prices, len(productIDs))
	if len(productIDs) == 0 {
		return prices, nil
	}

	results, errs := l.loader.LoadMany(ctx, productIDs)()
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	for i, id := range productIDs {
		if results[i].Found {
			prices[id] = results[i].Price
		}
	}
	return prices, nil
}

// LoaderMiddleware attaches a fresh tariff loader to every request.
func LoaderMiddleware(source budget.TariffSource) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), loadersKey, newTariffLoader(source))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// tariffsFor returns the request's loader, or fallback outside a request.
func tariffsFor(ctx context.Context, fallback budget.TariffSource) budget.TariffSource {
	if l, ok := ctx.Value(loadersKey).(*tariffLoader); ok {
		return l
	}
	return fallback
}
