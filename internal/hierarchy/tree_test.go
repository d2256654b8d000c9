package hierarchy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildVIPTree(t *testing.T) *Tree {
	t.Helper()

	tree := NewTree(1)

	require.NoError(t, tree.CheckRootName("VIP"))
	_, err := tree.AddRoot("VIP", 100)
	require.NoError(t, err)

	require.NoError(t, tree.CheckSubcategoryName(Path{0}, "Block A"))
	_, err = tree.AddSubcategory(Path{0}, "Block A", 60, 5000)
	require.NoError(t, err)

	return tree
}

func TestCheckRootName(t *testing.T) {
	tree := buildVIPTree(t)

	t.Run("case-insensitive duplicate", func(t *testing.T) {
		err := tree.CheckRootName("vip")
		var dup DuplicateNameError
		require.ErrorAs(t, err, &dup)
		assert.Equal(t, "vip", dup.Name)
	})

	t.Run("empty name", func(t *testing.T) {
		assert.ErrorIs(t, tree.CheckRootName("   "), ErrEmptyName)
	})

	t.Run("fresh name passes", func(t *testing.T) {
		assert.NoError(t, tree.CheckRootName("Balcony"))
	})

	t.Run("add does not re-check", func(t *testing.T) {
		// Insertion itself is unconditional; only the check step refuses.
		_, err := tree.AddRoot("VIP", 50)
		assert.NoError(t, err)
		require.NoError(t, tree.Delete(Path{1}))
	})
}

func TestAddSubcategory(t *testing.T) {
	tree := buildVIPTree(t)

	t.Run("appends under parent", func(t *testing.T) {
		require.NoError(t, tree.CheckSubcategoryName(Path{0}, "Block B"))
		sub, err := tree.AddSubcategory(Path{0}, "Block B", 30, 2500)
		require.NoError(t, err)
		assert.Zero(t, sub.ID)
		assert.Zero(t, sub.Booked)

		cat, err := tree.Category(Path{0})
		require.NoError(t, err)
		assert.Len(t, cat.Subcategories, 2)
	})

	t.Run("used seats grow by exactly the new block", func(t *testing.T) {
		cat, err := tree.Category(Path{0})
		require.NoError(t, err)

		before := UsedSeats(cat)
		_, err = tree.AddSubcategory(Path{0}, "Block C", 7, 1000)
		require.NoError(t, err)
		assert.Equal(t, before+7, UsedSeats(cat))
	})

	t.Run("stale parent path", func(t *testing.T) {
		_, err := tree.AddSubcategory(Path{5}, "Block X", 10, 1000)
		var notFound PathNotFoundError
		require.ErrorAs(t, err, &notFound)
		assert.Equal(t, Path{5}, notFound.Path)
	})

	t.Run("sibling duplicate caught by check", func(t *testing.T) {
		err := tree.CheckSubcategoryName(Path{0}, "block a")
		var dup DuplicateNameError
		assert.ErrorAs(t, err, &dup)
	})

	t.Run("negative seats refused", func(t *testing.T) {
		_, err := tree.AddSubcategory(Path{0}, "Block Y", -1, 1000)
		assert.ErrorIs(t, err, ErrNegativeSeats)
	})
}

func TestDeleteCascades(t *testing.T) {
	tree := buildVIPTree(t)
	_, err := tree.AddSubcategory(Path{0}, "Block B", 30, 2500)
	require.NoError(t, err)

	require.NoError(t, tree.Delete(Path{0}))

	h := tree.Hierarchy()
	assert.Empty(t, h.Categories)
	assert.Empty(t, Validate(h))
}

func TestDeleteLeafOnly(t *testing.T) {
	tree := buildVIPTree(t)
	_, err := tree.AddSubcategory(Path{0}, "Block B", 30, 2500)
	require.NoError(t, err)

	require.NoError(t, tree.Delete(Path{0, 0}))

	cat, err := tree.Category(Path{0})
	require.NoError(t, err)
	require.Len(t, cat.Subcategories, 1)
	assert.Equal(t, "Block B", cat.Subcategories[0].Name)
}

func TestDeleteBadPath(t *testing.T) {
	tree := buildVIPTree(t)

	assert.Error(t, tree.Delete(Path{3}))
	assert.Error(t, tree.Delete(Path{0, 9}))
	assert.Error(t, tree.Delete(Path{0, 0, 0}))
	assert.Error(t, tree.Delete(Path{}))
}

func TestEditLeafAllowsOverflow(t *testing.T) {
	tree := buildVIPTree(t)

	// Resize beyond the parent's capacity: the edit succeeds and the
	// overflow is left for validation to report.
	require.NoError(t, tree.EditLeaf(Path{0, 0}, "Block A", 150))

	cat, err := tree.Category(Path{0})
	require.NoError(t, err)
	assert.Equal(t, -50, RemainingSeats(cat))

	v := Validate(tree.Hierarchy())
	assert.Contains(t, v, ViolationKey(Path{0}, ViolationSeats))
}

func TestEditCategory(t *testing.T) {
	tree := buildVIPTree(t)

	require.NoError(t, tree.EditCategory(Path{0}, "Premium", 80))

	cat, err := tree.Category(Path{0})
	require.NoError(t, err)
	assert.Equal(t, "Premium", cat.Name)
	assert.Equal(t, 80, cat.Seats)
}

func TestRemainingSeats(t *testing.T) {
	tree := buildVIPTree(t)

	cat, err := tree.Category(Path{0})
	require.NoError(t, err)
	assert.Equal(t, 60, UsedSeats(cat))
	assert.Equal(t, 40, RemainingSeats(cat))

	// Exactly-full category has zero unallocated capacity.
	_, err = tree.AddSubcategory(Path{0}, "Block B", 40, 2000)
	require.NoError(t, err)
	assert.Equal(t, 0, RemainingSeats(cat))
	assert.Empty(t, Validate(tree.Hierarchy()))
}

func TestPathString(t *testing.T) {
	assert.Equal(t, "/0", Path{0}.String())
	assert.Equal(t, "/2/1", Path{2, 1}.String())
}
