package conflict

import (
	"storefront-service/internal/models"
)

// Result is the outcome of a warehouse comparison.
type Result struct {
	HasConflict bool `json:"has_conflict"`
}

// CheckConflict decides whether a candidate warehouse is compatible with
// the cart's existing warehouse. Fulfillment is warehouse-scoped, so a
// cart must never mix sources.
//
// No conflict when the cart is empty, the ids match, or both sides are
// global (the global warehouse is one logical entity regardless of which
// physical node served the response). Ambiguous identity on either side
// fails closed: suppressing the prompt beats blocking the user on data
// we cannot verify.
func CheckConflict(existing, candidate models.WarehouseRef) Result {
	if existing == (models.WarehouseRef{}) {
		return Result{HasConflict: false}
	}
	if !existing.Complete() || !candidate.Complete() {
		return Result{HasConflict: false}
	}
	if existing.ID == candidate.ID {
		return Result{HasConflict: false}
	}
	if existing.IsGlobal && candidate.IsGlobal {
		return Result{HasConflict: false}
	}
	return Result{HasConflict: true}
}
