package cart

import (
	"errors"
	"fmt"

	"storefront-service/internal/models"
)

// ErrItemNotFound is returned when a mutation targets a line that is
// not in the cart.
var ErrItemNotFound = errors.New("cart item not found")

// VariantRequiredError rejects an add for a product that declares
// variants when no variant was selected. This is checked before any
// warehouse logic runs.
type VariantRequiredError struct {
	ProductID   string
	ProductName string
}

func (e *VariantRequiredError) Error() string {
	return fmt.Sprintf("product %q requires a variant selection", e.ProductName)
}

// WarehouseConflictError blocks an add whose source warehouse is
// incompatible with the cart's current warehouse. It carries both sides
// and the blocked item so the caller can offer resolution choices.
type WarehouseConflictError struct {
	Existing models.WarehouseRef
	Incoming models.WarehouseRef
	Item     models.CartItem
}

func (e *WarehouseConflictError) Error() string {
	return fmt.Sprintf("cart is bound to warehouse %q, product comes from %q",
		e.Existing.Name, e.Incoming.Name)
}

// IsVariantRequired reports whether err is a variant-selection rejection.
func IsVariantRequired(err error) bool {
	var target *VariantRequiredError
	return errors.As(err, &target)
}

// IsWarehouseConflict reports whether err is a warehouse mismatch.
func IsWarehouseConflict(err error) bool {
	var target *WarehouseConflictError
	return errors.As(err, &target)
}
