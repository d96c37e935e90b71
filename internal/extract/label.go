package extract

import "errors"

// Label is one extracted shipping label. Empty strings mean the field was
// not found.
type Label struct {
	LabelNumber     int    `json:"labelNumber"`
	SKU             string `json:"sku"`
	OrderID         string `json:"orderId"`
	Quantity        int    `json:"quantity"`
	DeliveryPartner string `json:"deliveryPartner"`
}

// ValidationResult reports every problem found on a label.
type ValidationResult struct {
	IsValid bool     `json:"isValid"`
	Errors  []string `json:"errors"`
}

// ValidatedLabel pairs a label with its validation.
type ValidatedLabel struct {
	Label
	Validation ValidationResult `json:"validation"`
}

// ProductRow is the raw data row of a product table together with the lines
// that preceded its order-number terminator.
type ProductRow struct {
	Raw   string
	Lines []string
}

// Fields are the columns recovered from a product row.
type Fields struct {
	SKU      string `json:"sku"`
	Size     string `json:"size"`
	Quantity int    `json:"quantity"`
	Color    string `json:"color"`
	OrderNo  string `json:"orderNo"`
}

// Structural absences. They only ever drop the chunk they occur in.
var (
	ErrNoProductBlock = errors.New("product details block not found")
	ErrNoHeader       = errors.New("product table header not found")
	ErrNoProductRow   = errors.New("product data row not found")
	ErrIncomplete     = errors.New("sku or order id missing")
)
