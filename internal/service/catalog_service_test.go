package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"go-pos-ws/internal/model"
	apperrors "go-pos-ws/pkg/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogHidesInactiveProducts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "")
	active := f.addProduct(t, "Coffee", 1000, 5)
	retired := f.addProduct(t, "Retired", 1000, 5)
	retired.IsActive = false
	require.NoError(t, f.products.Update(ctx, retired))

	products, err := f.catalog.GetAllProducts(ctx)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, active.ID, products[0].ID)

	all, err := f.catalog.ListProducts(ctx, true)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = f.catalog.GetProduct(ctx, retired.ID)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))
	_, err = f.catalog.GetProduct(ctx, uuid.New())
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))
}

func TestCatalogCreateProduct(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "")
	actor := Actor{ID: "manager-1", Name: "Dewi"}

	product := &model.Product{SKU: "SKU-1", Name: "Coffee", Price: dec("1000"), Stock: 3, IsActive: true}
	require.NoError(t, f.catalog.CreateProduct(ctx, product, actor))
	assert.Equal(t, "manager-1", product.CreatedBy)

	err := f.catalog.CreateProduct(ctx, &model.Product{SKU: "SKU-1", Name: "Copy", Price: dec("1")}, actor)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeStateConflict))

	err = f.catalog.CreateProduct(ctx, &model.Product{SKU: "SKU-2", Name: "Broken", Price: dec("-1")}, actor)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeValidation))

	assert.Eventually(t, func() bool {
		return len(f.publisher.topics()) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestCatalogUpdateProductBroadcastsStock(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "")
	product := f.addProduct(t, "Coffee", 1000, 5)

	change := *product
	change.Stock = 2
	change.Price = dec("1500")
	updated, err := f.catalog.UpdateProduct(ctx, product.ID, &change, Actor{ID: "manager-1", Name: "Dewi"})
	require.NoError(t, err)
	assert.Equal(t, 2, updated.Stock)
	assertDec(t, "1500", updated.Price)

	stored, err := f.products.FindByID(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.Stock)
	assert.Equal(t, "manager-1", stored.UpdatedBy)

	assert.Eventually(t, func() bool {
		return len(f.publisher.topics()) == 1
	}, time.Second, 10*time.Millisecond)

	f.publisher.mu.Lock()
	msg := f.publisher.messages[0]
	f.publisher.mu.Unlock()
	assert.Equal(t, TopicCatalog, msg.topic)

	var event map[string]interface{}
	require.NoError(t, json.Unmarshal(msg.payload, &event))
	assert.Equal(t, EventStockUpdate, event["type"])
	assert.Equal(t, "product_updated", event["action"])
	productEvent := event["product"].(map[string]interface{})
	assert.Equal(t, float64(5), productEvent["old_stock"])
	assert.Equal(t, float64(2), productEvent["new_stock"])

	_, err = f.catalog.UpdateProduct(ctx, uuid.New(), &change, Actor{})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))
}
