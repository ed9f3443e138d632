package pricing

import "go-pos-ws/internal/model"

// CanSetQuantity reports whether requestedQty fits in the product's stock.
func CanSetQuantity(product *model.Product, requestedQty int) bool {
	if product == nil {
		return false
	}
	return requestedQty <= product.Stock
}

// CanAdd reports whether one more unit on top of currentQty fits in stock.
func CanAdd(product *model.Product, currentQty int) bool {
	return CanSetQuantity(product, currentQty+1)
}
