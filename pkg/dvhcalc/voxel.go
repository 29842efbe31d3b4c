// Package dvhcalc computes cumulative dose-volume histograms from voxel
// masks over a dose grid.
package dvhcalc

import (
	"context"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"rtdvh/internal/models"
	"rtdvh/pkg/rtcase"
)

// ctxCheckEvery is how many voxels are sampled between context checks.
const ctxCheckEvery = 4096

// MaxBins bounds the number of 1 cGy bins in one histogram (10 kGy).
const MaxBins = 1_000_000

// VoxelCalculator computes DVHs with 1 cGy bins from a case's ROI masks.
// It holds no state and is safe for concurrent use.
type VoxelCalculator struct{}

// Calculate returns the cumulative DVH of the ROI. Counts are in mL and
// bin centers sit at the middle of each 1 cGy bin. The histogram spans
// [0, maxDose+1) cGy; a positive doseLimit caps the span and doses at or
// above the cap are left out of the bins, though not out of Volume.
func (VoxelCalculator) Calculate(ctx context.Context, ss *rtcase.StructureSet, dose *rtcase.DoseGrid, roiID int, doseLimit float64) (*models.Histogram, error) {
	roi, doses, err := roiDoses(ctx, ss, dose, roiID)
	if err != nil {
		return nil, err
	}

	top := doses[len(doses)-1]
	if doseLimit > 0 && doseLimit < top {
		top = doseLimit
	}
	if top >= MaxBins {
		return nil, models.NewInvalidInput(fmt.Sprintf("roi %d", roiID),
			"dose %g cGy needs more than %d bins", top, MaxBins)
	}

	maxBin := int(doses[len(doses)-1]) + 1
	if doseLimit > 0 && int(doseLimit) < maxBin {
		maxBin = max(int(doseLimit), 1)
	}

	// doses is sorted, so everything below the cap is a prefix
	inRange := doses[:sort.SearchFloat64s(doses, float64(maxBin))]

	dividers := floats.Span(make([]float64, maxBin+1), 0, float64(maxBin))
	differential := stat.Histogram(nil, dividers, inRange, nil)
	floats.Scale(dose.VoxelVolume, differential)

	// Cumulative: volume receiving at least the dose of each bin
	counts := make([]float64, maxBin)
	running := 0.0
	for i := maxBin - 1; i >= 0; i-- {
		running += differential[i]
		counts[i] = running
	}

	centers := make([]float64, maxBin)
	for i := range centers {
		centers[i] = float64(i) + 0.5
	}

	return &models.Histogram{
		Name:       roi.Name,
		Volume:     float64(len(roi.Voxels)) * dose.VoxelVolume,
		BinCenters: centers,
		Counts:     counts,
	}, nil
}

// DoseStats summarises the dose an ROI receives, in cGy.
type DoseStats struct {
	Min  float64
	Mean float64
	Max  float64
}

// Stats returns the minimum, mean and maximum dose over the ROI's voxels.
func Stats(ss *rtcase.StructureSet, dose *rtcase.DoseGrid, roiID int) (DoseStats, error) {
	_, doses, err := roiDoses(context.Background(), ss, dose, roiID)
	if err != nil {
		return DoseStats{}, err
	}
	return DoseStats{
		Min:  floats.Min(doses),
		Mean: stat.Mean(doses, nil),
		Max:  floats.Max(doses),
	}, nil
}

// roiDoses gathers the dose in cGy at every voxel of the ROI, sorted
// ascending. Negative doses are clamped to zero.
func roiDoses(ctx context.Context, ss *rtcase.StructureSet, dose *rtcase.DoseGrid, roiID int) (rtcase.ROI, []float64, error) {
	if dose == nil {
		return rtcase.ROI{}, nil, models.NewInvalidInput("dose", "is required")
	}
	roi, ok := ss.ROI(roiID)
	if !ok {
		return rtcase.ROI{}, nil, models.NewInvalidInput("roi", "%d not found in structure set", roiID)
	}
	if len(roi.Voxels) == 0 {
		return rtcase.ROI{}, nil, models.NewInvalidInput("roi", "%d (%s) has no voxels", roiID, roi.Name)
	}

	doses := make([]float64, len(roi.Voxels))
	for i, voxel := range roi.Voxels {
		if i%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return rtcase.ROI{}, nil, err
			}
		}
		d, err := dose.DoseCGy(voxel)
		if err != nil {
			return rtcase.ROI{}, nil, &models.InvalidInputError{
				Field:  fmt.Sprintf("roi %d", roiID),
				Reason: "mask does not fit dose grid",
				Cause:  err,
			}
		}
		if math.IsNaN(d) || math.IsInf(d, 0) {
			return rtcase.ROI{}, nil, models.NewInvalidInput(fmt.Sprintf("roi %d", roiID),
				"voxel %d has non-finite dose %g", voxel, d)
		}
		doses[i] = max(d, 0)
	}
	sort.Float64s(doses)
	return roi, doses, nil
}
