package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/stock-replenishment/internal/config"
	"github.com/rl1809/stock-replenishment/internal/core/domain"
)

func newLoaderService(loader *mockLoader, attempts uint) *LoaderService {
	return NewLoaderService(loader, config.LoaderConfig{ChunkSize: 2, MaxAttempts: attempts}, testMetrics(), testLogger())
}

func inventoryRows(n int) []domain.InventoryRecord {
	out := make([]domain.InventoryRecord, n)
	for i := range out {
		out[i] = domain.InventoryRecord{StoreID: "S1", ProductID: fmt.Sprintf("P%d", i), CurrentStock: 10, DailySalesSimulationBase: 1}
	}
	return out
}

func TestLoad_ResetsAndChunksEachCollection(t *testing.T) {
	loader := new(mockLoader)
	ds := domain.Dataset{
		Products:  []domain.Product{{ProductID: "P1"}, {ProductID: "P2"}, {ProductID: "P3"}},
		Stores:    []domain.Store{{StoreID: "S1"}},
		Inventory: inventoryRows(4),
	}

	loader.On("Reset", mock.Anything, domain.CollectionProducts).Return(nil).Once()
	loader.On("Reset", mock.Anything, domain.CollectionStores).Return(nil).Once()
	loader.On("Reset", mock.Anything, domain.CollectionInventory).Return(nil).Once()
	loader.On("InsertProducts", mock.Anything, ds.Products[0:2]).Return(nil).Once()
	loader.On("InsertProducts", mock.Anything, ds.Products[2:3]).Return(nil).Once()
	loader.On("InsertStores", mock.Anything, ds.Stores).Return(nil).Once()
	loader.On("InsertInventory", mock.Anything, mock.Anything).Return(nil).Twice()

	reports, err := newLoaderService(loader, 5).Load(context.Background(), ds)
	require.NoError(t, err)
	assert.Equal(t, []domain.LoadReport{
		{Collection: domain.CollectionProducts, Read: 3, Inserted: 3},
		{Collection: domain.CollectionStores, Read: 1, Inserted: 1},
		{Collection: domain.CollectionInventory, Read: 4, Inserted: 4},
	}, reports)
	loader.AssertExpectations(t)
}

func TestLoad_SkipsEmptyCollections(t *testing.T) {
	loader := new(mockLoader)
	loader.On("Reset", mock.Anything, domain.CollectionStores).Return(nil).Once()
	loader.On("InsertStores", mock.Anything, mock.Anything).Return(nil).Once()

	reports, err := newLoaderService(loader, 5).Load(context.Background(), domain.Dataset{Stores: []domain.Store{{StoreID: "S1"}}})
	require.NoError(t, err)
	assert.Len(t, reports, 3)
	loader.AssertNotCalled(t, "Reset", mock.Anything, domain.CollectionProducts)
	loader.AssertNotCalled(t, "Reset", mock.Anything, domain.CollectionInventory)
}

func TestLoad_RetriesConnectionFailures(t *testing.T) {
	loader := new(mockLoader)
	loader.On("Reset", mock.Anything, domain.CollectionInventory).Return(nil).Once()
	loader.On("InsertInventory", mock.Anything, mock.Anything).Return(fmt.Errorf("insert: %w", domain.ErrConnection)).Twice()
	loader.On("InsertInventory", mock.Anything, mock.Anything).Return(nil).Once()

	reports, err := newLoaderService(loader, 5).Load(context.Background(), domain.Dataset{Inventory: inventoryRows(1)})
	require.NoError(t, err)
	assert.Equal(t, 1, reports[2].Inserted)
	assert.Zero(t, reports[2].FailedBatches)
	loader.AssertNumberOfCalls(t, "InsertInventory", 3)
}

func TestLoad_GivesUpAfterMaxAttempts(t *testing.T) {
	loader := new(mockLoader)
	loader.On("Reset", mock.Anything, domain.CollectionInventory).Return(nil).Once()
	loader.On("InsertInventory", mock.Anything, mock.Anything).Return(domain.ErrConnection)

	reports, err := newLoaderService(loader, 3).Load(context.Background(), domain.Dataset{Inventory: inventoryRows(3)})
	require.NoError(t, err)
	assert.Equal(t, 0, reports[2].Inserted)
	assert.Equal(t, 2, reports[2].FailedBatches)
	loader.AssertNumberOfCalls(t, "InsertInventory", 6)
}

func TestLoad_WriteErrorsAreLoggedNotRetried(t *testing.T) {
	loader := new(mockLoader)
	loader.On("Reset", mock.Anything, domain.CollectionProducts).Return(nil).Once()
	loader.On("InsertProducts", mock.Anything, mock.Anything).
		Return(&domain.BulkWriteError{Applied: 1, Failed: 1, Cause: errBoom}).Once()
	loader.On("InsertProducts", mock.Anything, mock.Anything).Return(errBoom).Once()

	ds := domain.Dataset{Products: []domain.Product{{ProductID: "P1"}, {ProductID: "P2"}, {ProductID: "P3"}}}
	reports, err := newLoaderService(loader, 5).Load(context.Background(), ds)
	require.NoError(t, err)
	assert.Equal(t, domain.LoadReport{Collection: domain.CollectionProducts, Read: 3, Inserted: 1, FailedBatches: 2}, reports[0])
	loader.AssertNumberOfCalls(t, "InsertProducts", 2)
}

func TestLoad_ResetFailureAborts(t *testing.T) {
	loader := new(mockLoader)
	loader.On("Reset", mock.Anything, domain.CollectionProducts).Return(errBoom).Once()

	_, err := newLoaderService(loader, 5).Load(context.Background(), domain.Dataset{
		Products: []domain.Product{{ProductID: "P1"}},
		Stores:   []domain.Store{{StoreID: "S1"}},
	})
	assert.ErrorIs(t, err, errBoom)
	loader.AssertNotCalled(t, "Reset", mock.Anything, domain.CollectionStores)
}
