// Package geo provides spatial cell indexing and distance math for
// proximity queries.
package geo

import (
	geohash "github.com/TomiHiltunen/geohash-golang"
)

// DefaultCellPrecision is the geohash length used for spatial cells. At
// precision 4 a cell is roughly 39 km x 20 km, so one cell spans about the
// radius people think of as "local".
const DefaultCellPrecision = 4

// CellIndexer quantizes coordinates into fixed-size geohash cells. It is
// pure and cheap enough to run on every request.
type CellIndexer struct {
	precision int
}

// NewCellIndexer returns a CellIndexer at the given geohash precision.
// Precisions outside [1, 12] fall back to DefaultCellPrecision.
func NewCellIndexer(precision int) *CellIndexer {
	if precision < 1 || precision > 12 {
		precision = DefaultCellPrecision
	}
	return &CellIndexer{precision: precision}
}

// CellOf returns the cell identifier for a coordinate. Identical coordinates
// always produce identical cell ids.
func (ci *CellIndexer) CellOf(lat, lng float64) string {
	return geohash.EncodeWithPrecision(lat, lng, ci.precision)
}

// NeighborhoodOf returns the coordinate's cell plus its eight adjacent
// cells. The center cell is always the first element. Neighbor expansion is
// mandatory for lookups: two points a few hundred meters apart can land in
// different cells, and only the 3x3 block guarantees coverage.
func (ci *CellIndexer) NeighborhoodOf(lat, lng float64) []string {
	center := ci.CellOf(lat, lng)
	return append([]string{center}, geohash.CalculateAllAdjacent(center)...)
}
