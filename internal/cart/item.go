package cart

// LineItem is one distinct product+variant entry in the cart, with its
// own quantity. Name and Image are display metadata only; pricing is
// carried in minor currency units. CategoryID and SubcategoryID are
// denormalized onto the item so coupon matching never needs the catalog.
type LineItem struct {
	ID             string            `json:"id"`
	ProductID      string            `json:"product_id"`
	VariantID      string            `json:"variant_id,omitempty"`
	Name           string            `json:"name"`
	Image          string            `json:"image,omitempty"`
	Price          int               `json:"price"`
	OriginalPrice  int               `json:"original_price"`
	Quantity       int               `json:"quantity"`
	VariantOptions map[string]string `json:"variant_options,omitempty"`
	CategoryID     string            `json:"category_id,omitempty"`
	SubcategoryID  string            `json:"subcategory_id,omitempty"`
}

// LineID builds the composite cart key for a product/variant pair.
// Items without a variant key off the product id alone.
func LineID(productID, variantID string) string {
	if variantID == "" {
		return productID
	}
	return productID + "_" + variantID
}
