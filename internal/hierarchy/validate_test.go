package hierarchy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/venuepass/venuepass/internal/domain"
)

func hierarchyOf(cats ...*domain.Category) *domain.Hierarchy {
	return &domain.Hierarchy{VenueID: 1, Categories: cats}
}

func cat(name string, seats int, subs ...*domain.Subcategory) *domain.Category {
	return &domain.Category{Name: name, Seats: seats, Subcategories: subs}
}

func sub(name string, seats int) *domain.Subcategory {
	return &domain.Subcategory{Name: name, Seats: seats, PriceCents: 1000}
}

func TestValidateLegalTree(t *testing.T) {
	h := hierarchyOf(
		cat("VIP", 100, sub("Block A", 60)),
		cat("Balcony", 50, sub("Left", 20), sub("Right", 30)),
	)

	assert.Empty(t, Validate(h))
	assert.NoError(t, ValidateForSave(h))
}

func TestValidateAggregateOverflow(t *testing.T) {
	// VIP seats=100, children 60+50=110.
	h := hierarchyOf(cat("VIP", 100, sub("Block A", 60), sub("Block B", 50)))

	v := Validate(h)
	require.Len(t, v, 1)

	viol, ok := v[ViolationKey(Path{0}, ViolationSeats)]
	require.True(t, ok)
	assert.Equal(t, ViolationSeats, viol.Kind)
	assert.Equal(t, Path{0}, viol.Path)
}

func TestValidateDuplicateRootNames(t *testing.T) {
	h := hierarchyOf(cat("vip", 100), cat("VIP", 50))

	v := Validate(h)
	require.Len(t, v, 1)

	// The later duplicate carries the violation.
	_, ok := v[ViolationKey(Path{1}, ViolationName)]
	assert.True(t, ok)
}

func TestValidateDuplicateSubNames(t *testing.T) {
	h := hierarchyOf(cat("VIP", 100, sub("Block A", 30), sub("block a", 30)))

	v := Validate(h)
	require.Len(t, v, 1)
	_, ok := v[ViolationKey(Path{0, 1}, ViolationName)]
	assert.True(t, ok)
}

func TestValidatePerChildCeiling(t *testing.T) {
	// One child beyond the parent's raw capacity is reported on the child,
	// in addition to the aggregate overflow on the parent.
	h := hierarchyOf(cat("VIP", 100, sub("Block A", 120)))

	v := Validate(h)
	assert.Contains(t, v, ViolationKey(Path{0}, ViolationSeats))
	assert.Contains(t, v, ViolationKey(Path{0, 0}, ViolationSeats))
}

func TestValidateSameNameUnderDifferentParents(t *testing.T) {
	// Uniqueness is scoped to the sibling set, not the whole tree.
	h := hierarchyOf(
		cat("VIP", 100, sub("Block A", 60)),
		cat("Balcony", 100, sub("Block A", 60)),
	)

	assert.Empty(t, Validate(h))
}

func TestValidateEmptyNames(t *testing.T) {
	h := hierarchyOf(cat("", 100, sub("  ", 10)))

	v := Validate(h)
	assert.Contains(t, v, ViolationKey(Path{0}, ViolationName))
	assert.Contains(t, v, ViolationKey(Path{0, 0}, ViolationName))
}

func TestValidateCollectsEverything(t *testing.T) {
	// Validation is never fail-fast: every breach is reported at once.
	h := hierarchyOf(
		cat("VIP", 100, sub("Block A", 60), sub("Block A", 50)),
		cat("vip", 10, sub("Huge", 40)),
	)

	v := Validate(h)
	assert.Contains(t, v, ViolationKey(Path{0}, ViolationSeats))    // 60+50 > 100
	assert.Contains(t, v, ViolationKey(Path{0, 1}, ViolationName))  // duplicate sub
	assert.Contains(t, v, ViolationKey(Path{1}, ViolationName))     // duplicate root
	assert.Contains(t, v, ViolationKey(Path{1}, ViolationSeats))    // 40 > 10
	assert.Contains(t, v, ViolationKey(Path{1, 0}, ViolationSeats)) // child ceiling
}

func TestValidateIdempotent(t *testing.T) {
	h := hierarchyOf(cat("VIP", 100, sub("Block A", 60), sub("Block B", 50)))

	first := Validate(h)
	second := Validate(h)
	assert.Equal(t, first, second)
}

func TestValidateOneLevelOnly(t *testing.T) {
	// Containment is checked level by level; booked counters play no role
	// in structural validation.
	h := hierarchyOf(cat("VIP", 100, &domain.Subcategory{Name: "Block A", Seats: 60, Booked: 60}))

	assert.Empty(t, Validate(h))
}

func TestValidateForSaveCarriesViolations(t *testing.T) {
	h := hierarchyOf(cat("VIP", 100, sub("Block A", 60), sub("Block B", 50)))

	err := ValidateForSave(h)
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Len(t, vErr.Violations, 1)
}
