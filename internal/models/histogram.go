package models

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// Curve is a bare histogram: dose coordinates and the frequency at each.
type Curve struct {
	// BinCenters are the dose coordinates in cGy, strictly increasing
	BinCenters []float64

	// Counts are the non-negative frequencies, one per bin center
	Counts []float64
}

// Len returns the number of bins in the curve.
func (c Curve) Len() int {
	return len(c.Counts)
}

// Histogram is the dose-volume histogram of one ROI as produced by a
// dose calculator. It is treated as read-only once produced.
type Histogram struct {
	// Name is the ROI name the histogram belongs to
	Name string

	// Volume is the total structure volume in mL
	Volume float64

	// BinCenters are the dose coordinates in cGy, one unit apart
	BinCenters []float64

	// Counts are the absolute volumes (mL) per bin
	Counts []float64
}

// Len returns the number of bins in the histogram.
func (h *Histogram) Len() int {
	return len(h.Counts)
}

// Curve returns a copy of the histogram's bin centers and counts.
func (h *Histogram) Curve() Curve {
	return Curve{
		BinCenters: append([]float64(nil), h.BinCenters...),
		Counts:     append([]float64(nil), h.Counts...),
	}
}

// RelativeVolume returns the histogram with each count expressed as a
// percentage of the ROI volume (counts * 100 / Volume). Bin centers are
// unchanged. A cumulative histogram starts at 100, and a differential one
// covering the whole ROI sums to 100. A zero or non-finite volume
// yields all-zero relative counts.
func (h *Histogram) RelativeVolume() Curve {
	rel := Curve{
		BinCenters: append([]float64(nil), h.BinCenters...),
		Counts:     make([]float64, len(h.Counts)),
	}
	if len(h.Counts) == 0 || h.Volume <= 0 || math.IsInf(h.Volume, 0) || math.IsNaN(h.Volume) {
		return rel
	}
	floats.ScaleTo(rel.Counts, 100/h.Volume, h.Counts)
	return rel
}

// WithCurve returns a new histogram carrying this histogram's name and
// volume but the given bins.
func (h *Histogram) WithCurve(c Curve) *Histogram {
	return &Histogram{
		Name:       h.Name,
		Volume:     h.Volume,
		BinCenters: c.BinCenters,
		Counts:     c.Counts,
	}
}

// Validate checks the structural invariants every histogram must satisfy
// before it can be aggregated.
func (h *Histogram) Validate() error {
	if h == nil {
		return fmt.Errorf("histogram is nil")
	}
	if len(h.BinCenters) != len(h.Counts) {
		return fmt.Errorf("histogram %q has %d bin centers but %d counts",
			h.Name, len(h.BinCenters), len(h.Counts))
	}
	if h.Volume < 0 {
		return fmt.Errorf("histogram %q has negative volume %g", h.Name, h.Volume)
	}
	return nil
}

// Collection maps ROI identifiers to their histograms.
type Collection map[int]*Histogram

// IDs returns the ROI identifiers of the collection in ascending order.
// Maps carry no ordering, so anything that iterates for output sorts first.
func (c Collection) IDs() []int {
	ids := make([]int, 0, len(c))
	for id := range c {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
