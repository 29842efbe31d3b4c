package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rtdvh/internal/models"
	"rtdvh/pkg/dvh"
	"rtdvh/pkg/dvhcalc"
	"rtdvh/pkg/rtcase"
)

const phantomCase = `
patientID: "PHANTOM-01"
structureSet:
  rois:
    - number: 1
      name: PTV
      frameOfReferenceUID: 1.2.3
      generationAlgorithm: MANUAL
      voxels: [0, 1, 2, 3, 4, 5]
    - number: 2
      name: Cord
      frameOfReferenceUID: 1.2.3
      generationAlgorithm: AUTOMATIC
      voxels: [6, 7]
dose:
  columns: 4
  rows: 2
  frames: 1
  voxelVolume: 0.5
  units: CGY
  values: [5, 12, 18, 25, 31, 33, 2, 8]
`

func outputDir(t *testing.T) string {
	return t.TempDir() + string(os.PathSeparator)
}

func TestProcessEndToEnd(t *testing.T) {
	c, err := rtcase.Parse([]byte(phantomCase))
	require.NoError(t, err)

	dir := outputDir(t)
	p := New[*rtcase.StructureSet, *rtcase.DoseGrid](dvhcalc.VoxelCalculator{}, &Params{
		PatientID: c.PatientID,
		OutputDir: dir,
		Engine:    dvh.Options{Workers: 2},
	})

	report, err := p.Process(context.Background(), c.StructureSet, c.Dose)
	require.NoError(t, err)

	assert.True(t, report.Complete)
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, []int{1, 2}, report.Computed)
	assert.Empty(t, report.Omitted)
	assert.Len(t, report.Catalog, 2)
	assert.Equal(t, filepath.Join(dir, "DVH_PHANTOM-01.csv"), report.OutputFile)

	data, err := os.ReadFile(report.OutputFile)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)

	// PTV reaches 33 cGy: 34 bins plus 3 tail bins, sampled at 0..30
	assert.Equal(t, "Patient ID,ROI,Volume (mL),0cGy,10cGy,20cGy,30cGy", lines[0])
	// Cumulative percentages of ROI volume: the whole ROI gets at least 0 cGy
	assert.Equal(t, "PHANTOM-01,PTV,3.0,100.0,83.33,50.0,33.33", lines[1])
	// Cord peaks at 8 cGy, its normalized tail ends before 20 cGy
	assert.Equal(t, "PHANTOM-01,Cord,1.0,100.0,0.0,0.0,0.0", lines[2])
}

type stubStructures struct {
	decls []models.ROIDeclaration
}

func (s stubStructures) ROIDeclarations() ([]models.ROIDeclaration, error) {
	return s.decls, nil
}

var errNoContours = errors.New("no contours on dose grid")

func stubCalc(bad int) dvh.CalculatorFunc[stubStructures, struct{}] {
	return func(ctx context.Context, s stubStructures, d struct{}, id int, limit float64) (*models.Histogram, error) {
		if id == bad {
			return nil, errNoContours
		}
		return &models.Histogram{Name: "roi", Volume: 1, BinCenters: []float64{0.5, 1.5}, Counts: []float64{1, 1}}, nil
	}
}

func stubSet() stubStructures {
	return stubStructures{decls: []models.ROIDeclaration{{Number: 1, Name: "a"}, {Number: 2, Name: "b"}, {Number: 3, Name: "c"}}}
}

func TestProcessSkipExportsPartialAndReportsIt(t *testing.T) {
	p := New[stubStructures, struct{}](stubCalc(2), &Params{
		PatientID: "P1",
		OutputDir: outputDir(t),
		CSVName:   "partial",
		Engine:    dvh.Options{OnError: dvh.Skip},
	})

	report, err := p.Process(context.Background(), stubSet(), struct{}{})

	var partial *models.PartialResultError
	require.ErrorAs(t, err, &partial)
	assert.ErrorIs(t, err, errNoContours)
	assert.False(t, report.Complete)
	assert.Equal(t, []int{1, 3}, report.Computed)
	assert.Contains(t, report.Omitted, 2)
	assert.FileExists(t, report.OutputFile)
	assert.True(t, strings.HasSuffix(report.OutputFile, "partial.csv"))
}

func TestProcessAbortWritesNothing(t *testing.T) {
	dir := outputDir(t)
	p := New[stubStructures, struct{}](stubCalc(3), &Params{
		PatientID: "P2",
		OutputDir: dir,
		Engine:    dvh.Options{OnError: dvh.Abort},
	})

	report, err := p.Process(context.Background(), stubSet(), struct{}{})

	var compErr *models.ComputationError
	require.ErrorAs(t, err, &compErr)
	assert.Equal(t, 3, compErr.ROIID)
	assert.False(t, report.Complete)
	assert.Empty(t, report.OutputFile)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestProcessRejectsEmptyInput(t *testing.T) {
	p := New[stubStructures, struct{}](stubCalc(0), &Params{PatientID: "P3", OutputDir: outputDir(t)})
	_, err := p.Process(context.Background(), stubStructures{}, struct{}{})
	var invalid *models.InvalidInputError
	assert.ErrorAs(t, err, &invalid)

	noPatient := New[stubStructures, struct{}](stubCalc(0), &Params{OutputDir: outputDir(t)})
	_, err = noPatient.Process(context.Background(), stubSet(), struct{}{})
	assert.ErrorAs(t, err, &invalid)
}

func TestProcessExportFailure(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "gone") + string(os.PathSeparator)
	p := New[stubStructures, struct{}](stubCalc(0), &Params{PatientID: "P4", OutputDir: missing})

	_, err := p.Process(context.Background(), stubSet(), struct{}{})
	var ioErr *models.IOError
	assert.ErrorAs(t, err, &ioErr)
}

func TestCSVName(t *testing.T) {
	p := New[stubStructures, struct{}](stubCalc(0), &Params{PatientID: "P5"})
	assert.Equal(t, "DVH_P5", p.CSVName())

	named := New[stubStructures, struct{}](stubCalc(0), &Params{PatientID: "P5", CSVName: "custom"})
	assert.Equal(t, "custom", named.CSVName())
}
