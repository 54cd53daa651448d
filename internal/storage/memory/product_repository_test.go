package memory_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

func TestProductRepositoryTryDecrement(t *testing.T) {
	repo := memory.NewProductRepository()
	repo.Put(domain.Product{ID: "product-1", Name: "Widget", PriceMinor: 100, Stock: 3})

	require.NoError(t, repo.TryDecrement("product-1", 2))

	err := repo.TryDecrement("product-1", 2)
	productID, ok := domain.IsInsufficientStock(err)
	require.True(t, ok)
	assert.Equal(t, "product-1", productID)

	// Отказ не трогает остаток.
	product, err := repo.Get("product-1")
	require.NoError(t, err)
	assert.Equal(t, int32(1), product.Stock)

	require.ErrorIs(t, repo.TryDecrement("ghost", 1), domain.ErrProductNotFound)
}

func TestProductRepositoryConcurrentDecrement_NeverNegative(t *testing.T) {
	repo := memory.NewProductRepository()
	repo.Put(domain.Product{ID: "product-1", Stock: 40})

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = repo.TryDecrement("product-1", 1)
		}()
	}
	wg.Wait()

	product, err := repo.Get("product-1")
	require.NoError(t, err)
	assert.Equal(t, int32(0), product.Stock)
}
