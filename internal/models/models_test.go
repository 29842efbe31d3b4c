package models

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRelativeVolume(t *testing.T) {
	h := &Histogram{
		Name:       "PTV",
		Volume:     10,
		BinCenters: []float64{0.5, 1.5, 2.5, 3.5},
		Counts:     []float64{4, 3, 2, 1},
	}

	rel := h.RelativeVolume()
	assert.Equal(t, h.BinCenters, rel.BinCenters)
	assert.InDeltaSlice(t, []float64{40, 30, 20, 10}, rel.Counts, 1e-9)

	// The source histogram is untouched
	assert.Equal(t, []float64{4, 3, 2, 1}, h.Counts)
}

func TestRelativeVolumeCumulative(t *testing.T) {
	// 3 mL ROI: all of it gets at least 0 cGy, half of it at least 2 cGy
	h := &Histogram{
		Volume:     3,
		BinCenters: []float64{0.5, 1.5, 2.5, 3.5},
		Counts:     []float64{3, 2.5, 1.5, 0},
	}
	assert.InDeltaSlice(t, []float64{100, 83.333333, 50, 0}, h.RelativeVolume().Counts, 1e-6)
}

func TestRelativeVolumeZeroVolume(t *testing.T) {
	h := &Histogram{BinCenters: []float64{0, 1}, Counts: []float64{0, 0}}
	assert.Equal(t, []float64{0, 0}, h.RelativeVolume().Counts)

	noVolume := &Histogram{BinCenters: []float64{0, 1}, Counts: []float64{2, 1}}
	assert.Equal(t, []float64{0, 0}, noVolume.RelativeVolume().Counts)

	nanVolume := &Histogram{Volume: math.NaN(), BinCenters: []float64{0}, Counts: []float64{1}}
	assert.Equal(t, []float64{0}, nanVolume.RelativeVolume().Counts)

	empty := &Histogram{}
	assert.Equal(t, 0, empty.RelativeVolume().Len())
}

func TestHistogramValidate(t *testing.T) {
	var nilHist *Histogram
	assert.Error(t, nilHist.Validate())

	bad := &Histogram{Name: "x", BinCenters: []float64{0, 1}, Counts: []float64{1}}
	assert.Error(t, bad.Validate())

	neg := &Histogram{Name: "x", Volume: -1}
	assert.Error(t, neg.Validate())

	ok := &Histogram{Name: "x", Volume: 1, BinCenters: []float64{0}, Counts: []float64{1}}
	assert.NoError(t, ok.Validate())
}

func TestCurveIsACopy(t *testing.T) {
	h := &Histogram{BinCenters: []float64{0, 1}, Counts: []float64{2, 1}}
	c := h.Curve()
	c.Counts[0] = 99
	assert.Equal(t, 2.0, h.Counts[0])
}

func TestCollectionIDs(t *testing.T) {
	c := Collection{7: {}, 2: {}, 5: {}}
	assert.Equal(t, []int{2, 5, 7}, c.IDs())
}

func TestPartialResultError(t *testing.T) {
	cause := errors.New("boom")
	err := &PartialResultError{
		Requested: 3,
		Omitted: map[int]error{
			3: &ComputationError{ROIID: 3, Cause: cause},
			1: &ComputationError{ROIID: 1, Cause: fmt.Errorf("wrapped: %w", cause)},
		},
	}

	assert.Equal(t, []int{1, 3}, err.OmittedIDs())
	assert.Contains(t, err.Error(), "2 of 3 rois omitted [1, 3]")
	assert.ErrorIs(t, err, cause)

	var compErr *ComputationError
	require.ErrorAs(t, err, &compErr)
	assert.Equal(t, 1, compErr.ROIID)
}

func TestInvalidInputErrorMessage(t *testing.T) {
	err := NewInvalidInput("roi[0].number", "must be positive, got %d", -1)
	assert.Equal(t, "invalid input roi[0].number: must be positive, got -1", err.Error())
}
