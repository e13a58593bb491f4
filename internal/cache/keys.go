package cache

// KeySettings is the key holding the store settings snapshot.
const KeySettings = "settings:v1"

// KeyRelations returns the key for the relation sets of a product.
func KeyRelations(productID string) string {
	return "catalog:relations:v1:" + productID
}
