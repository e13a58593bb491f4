package catalog

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/noah-isme/toko-commerce/internal/pivot"
)

// RelationKind names one child collection of a product.
type RelationKind string

const (
	RelationOptions     RelationKind = "options"
	RelationVariants    RelationKind = "variants"
	RelationTags        RelationKind = "tags"
	RelationCollections RelationKind = "collections"
	RelationUpsells     RelationKind = "upsells"
	RelationCrossSells  RelationKind = "cross_sells"
)

var relationKinds = []RelationKind{
	RelationOptions, RelationVariants, RelationTags, RelationCollections, RelationUpsells, RelationCrossSells,
}

var relationTargets = map[RelationKind]pivot.Target{
	RelationOptions:     {Table: "product_options", ParentColumn: "product_id", ParentType: "uuid", KeyColumn: "option_id"},
	RelationVariants:    {Table: "product_variants", ParentColumn: "product_id", ParentType: "uuid", KeyColumn: "sku"},
	RelationTags:        {Table: "product_tags", ParentColumn: "product_id", ParentType: "uuid", KeyColumn: "tag"},
	RelationCollections: {Table: "product_collections", ParentColumn: "product_id", ParentType: "uuid", KeyColumn: "collection_id"},
	RelationUpsells: {
		Table: "product_links", ParentColumn: "product_id", ParentType: "uuid", KeyColumn: "linked_product_id", KeyType: "uuid",
		Conditions: []pivot.Condition{{Column: "link_type", Value: "upsell"}},
	},
	RelationCrossSells: {
		Table: "product_links", ParentColumn: "product_id", ParentType: "uuid", KeyColumn: "linked_product_id", KeyType: "uuid",
		Conditions: []pivot.Condition{{Column: "link_type", Value: "cross_sell"}},
	},
}

var categoryTarget = pivot.Target{
	Table: "product_categories", ParentColumn: "product_id", ParentType: "uuid", KeyColumn: "category_id", KeyType: "uuid",
}

// RelationKinds lists every supported kind in a stable order.
func RelationKinds() []RelationKind {
	return append([]RelationKind(nil), relationKinds...)
}

// TargetFor returns the child table backing kind.
func TargetFor(kind RelationKind) (pivot.Target, bool) {
	t, ok := relationTargets[kind]
	return t, ok
}

// linksProducts reports whether keys of kind are product ids.
func (k RelationKind) linksProducts() bool {
	return k == RelationUpsells || k == RelationCrossSells
}

// Relations maps each kind to its child keys. A kind missing from the map is
// left untouched on save; an empty list clears it.
type Relations map[RelationKind][]string

// normalize trims keys, drops blanks and checks product links for the owner.
func (r Relations) normalize(productID uuid.UUID) (Relations, error) {
	out := make(Relations, len(r))
	for kind, keys := range r {
		if _, ok := relationTargets[kind]; !ok {
			return nil, badRequest(string(kind), "unknown relation kind", nil)
		}
		cleaned := make([]string, 0, len(keys))
		for _, raw := range keys {
			key := strings.TrimSpace(raw)
			if key == "" {
				continue
			}
			if kind.linksProducts() {
				id, err := uuid.Parse(key)
				if err != nil {
					return nil, badRequest(string(kind), fmt.Sprintf("invalid product id %q", key), err)
				}
				if id == productID {
					return nil, badRequest(string(kind), "a product cannot link to itself", nil)
				}
				key = id.String()
			}
			cleaned = append(cleaned, key)
		}
		out[kind] = cleaned
	}
	return out, nil
}
