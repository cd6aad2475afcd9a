package conflict

import (
	"testing"

	"storefront-service/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestCheckConflict(t *testing.T) {
	w1 := models.WarehouseRef{ID: "w1", Name: "Koramangala"}
	w2 := models.WarehouseRef{ID: "w2", Name: "Indiranagar"}
	g1 := models.WarehouseRef{ID: "g1", Name: "Global East", IsGlobal: true}
	g2 := models.WarehouseRef{ID: "g2", Name: "Global West", IsGlobal: true}

	tests := []struct {
		name      string
		existing  models.WarehouseRef
		candidate models.WarehouseRef
		want      bool
	}{
		{"empty cart", models.WarehouseRef{}, w2, false},
		{"same warehouse", w1, w1, false},
		{"different local warehouses", w1, w2, true},
		{"local vs global", w1, g1, true},
		{"global vs local", g1, w1, true},
		{"both global, different nodes", g1, g2, false},
		{"existing missing name", models.WarehouseRef{ID: "w1"}, w2, false},
		{"candidate missing id", w1, models.WarehouseRef{Name: "Indiranagar"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CheckConflict(tt.existing, tt.candidate).HasConflict)
		})
	}
}
