package extract

// Validation messages.
const (
	MsgSKUMissing      = "SKU not found"
	MsgOrderIDMissing  = "Order ID not found"
	MsgInvalidQuantity = "Invalid quantity"
)

// Validate checks a label for completeness. Every failed check is reported;
// the label itself is not modified.
func Validate(l Label) ValidationResult {
	errs := []string{}
	if l.SKU == "" {
		errs = append(errs, MsgSKUMissing)
	}
	if l.OrderID == "" {
		errs = append(errs, MsgOrderIDMissing)
	}
	if l.Quantity < 1 {
		errs = append(errs, MsgInvalidQuantity)
	}
	return ValidationResult{IsValid: len(errs) == 0, Errors: errs}
}

// ValidateAll pairs each label with its validation result, preserving order.
func ValidateAll(labels []Label) []ValidatedLabel {
	out := make([]ValidatedLabel, len(labels))
	for i, l := range labels {
		out[i] = ValidatedLabel{Label: l, Validation: Validate(l)}
	}
	return out
}
