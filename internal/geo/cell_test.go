package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCellOf(t *testing.T) {
	idx := NewCellIndexer(DefaultCellPrecision)

	cell := idx.CellOf(37.7749, -122.4194)
	assert.Len(t, cell, DefaultCellPrecision)
	assert.Equal(t, "9q8y", cell)

	// Same coordinate, same cell.
	assert.Equal(t, cell, idx.CellOf(37.7749, -122.4194))

	// A point in the same neighborhood shares the cell.
	assert.Equal(t, cell, idx.CellOf(37.78, -122.41))

	// A point across the country does not.
	assert.NotEqual(t, cell, idx.CellOf(40.7128, -74.0060))
}

func TestCellOf_Precision(t *testing.T) {
	coarse := NewCellIndexer(3)
	fine := NewCellIndexer(6)

	assert.Len(t, coarse.CellOf(37.7749, -122.4194), 3)
	assert.Len(t, fine.CellOf(37.7749, -122.4194), 6)

	// Finer cells nest inside coarser ones.
	assert.Equal(t,
		coarse.CellOf(37.7749, -122.4194),
		fine.CellOf(37.7749, -122.4194)[:3],
	)
}

func TestNewCellIndexer_InvalidPrecision(t *testing.T) {
	for _, p := range []int{-1, 0, 13, 100} {
		idx := NewCellIndexer(p)
		assert.Len(t, idx.CellOf(37.7749, -122.4194), DefaultCellPrecision)
	}
}

func TestNeighborhoodOf_NearbyPointsOverlap(t *testing.T) {
	idx := NewCellIndexer(DefaultCellPrecision)

	overlap := func(a, b []string) bool {
		set := make(map[string]struct{}, len(a))
		for _, c := range a {
			set[c] = struct{}{}
		}
		for _, c := range b {
			if _, ok := set[c]; ok {
				return true
			}
		}
		return false
	}

	tests := []struct {
		name                   string
		aLat, aLng, bLat, bLng float64
	}{
		// A few hundred feet apart, straddling the northern edge of the
		// San Francisco cell.
		{"straddling a cell boundary", 37.7928, -122.4194, 37.7931, -122.4194},
		// Roughly ten miles apart, due north.
		{"ten miles apart", 37.7749, -122.4194, 37.92, -122.4194},
		{"across the bay", 37.7749, -122.4194, 37.8044, -122.2712},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := idx.NeighborhoodOf(tt.aLat, tt.aLng)
			b := idx.NeighborhoodOf(tt.bLat, tt.bLng)
			assert.True(t, overlap(a, b), "neighborhoods %v and %v share no cell", a, b)
		})
	}

	// The guarantee only holds up to a cell's minor dimension, about 12
	// miles at this precision. Distant points share nothing.
	sf := idx.NeighborhoodOf(37.7749, -122.4194)
	la := idx.NeighborhoodOf(34.0522, -118.2437)
	assert.False(t, overlap(sf, la))
}

func TestNeighborhoodOf(t *testing.T) {
	idx := NewCellIndexer(DefaultCellPrecision)

	cells := idx.NeighborhoodOf(37.7749, -122.4194)
	assert.Len(t, cells, 9)

	// Center cell comes first.
	assert.Equal(t, idx.CellOf(37.7749, -122.4194), cells[0])

	// All distinct.
	seen := make(map[string]struct{}, len(cells))
	for _, c := range cells {
		assert.Len(t, c, DefaultCellPrecision)
		seen[c] = struct{}{}
	}
	assert.Len(t, seen, 9)
}
