package rtcase

import (
	"fmt"
	"math"
	"strings"

	"rtdvh/internal/models"
)

// Dose units accepted in a case file.
const (
	UnitsGy  = "GY"
	UnitsCGy = "CGY"
)

// DoseGrid is a 3D dose distribution stored as a flat value array.
type DoseGrid struct {
	Columns int `yaml:"columns"`
	Rows    int `yaml:"rows"`
	Frames  int `yaml:"frames"`

	// VoxelVolume is the volume of one voxel in mL
	VoxelVolume float64 `yaml:"voxelVolume"`

	// Units of the scaled values, GY or CGY
	Units string `yaml:"units"`

	// DoseGridScaling converts stored values to Units. Zero means 1.
	DoseGridScaling float64 `yaml:"doseGridScaling"`

	Values []float64 `yaml:"values"`
}

// Len returns the number of voxels in the grid.
func (d *DoseGrid) Len() int {
	return len(d.Values)
}

// DoseCGy returns the dose at a flat voxel index in cGy.
func (d *DoseGrid) DoseCGy(index int) (float64, error) {
	if index < 0 || index >= len(d.Values) {
		return 0, fmt.Errorf("voxel %d outside dose grid of %d voxels", index, len(d.Values))
	}
	v := d.Values[index] * d.scaling()
	if strings.EqualFold(d.Units, UnitsGy) {
		v *= 100
	}
	return v, nil
}

func (d *DoseGrid) scaling() float64 {
	if d.DoseGridScaling == 0 {
		return 1
	}
	return d.DoseGridScaling
}

// Validate checks that the grid's dimensions match its values and that
// every value is finite.
func (d *DoseGrid) Validate() error {
	if d.Columns <= 0 || d.Rows <= 0 || d.Frames <= 0 {
		return models.NewInvalidInput("dose", "dimensions must be positive, got %dx%dx%d",
			d.Columns, d.Rows, d.Frames)
	}
	if want := d.Columns * d.Rows * d.Frames; want != len(d.Values) {
		return models.NewInvalidInput("dose.values", "expected %d values, got %d", want, len(d.Values))
	}
	if d.VoxelVolume <= 0 {
		return models.NewInvalidInput("dose.voxelVolume", "must be positive, got %g", d.VoxelVolume)
	}
	if d.DoseGridScaling < 0 {
		return models.NewInvalidInput("dose.doseGridScaling", "must not be negative, got %g", d.DoseGridScaling)
	}
	switch strings.ToUpper(d.Units) {
	case UnitsGy, UnitsCGy:
	default:
		return models.NewInvalidInput("dose.units", "must be GY or CGY, got %q", d.Units)
	}
	for i, v := range d.Values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return models.NewInvalidInput("dose.values", "voxel %d is not a finite dose: %g", i, v)
		}
	}
	return nil
}
