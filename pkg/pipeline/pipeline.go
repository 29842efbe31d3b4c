// Package pipeline runs the DVH export for one patient: ROI catalog
// extraction, parallel DVH computation, tail normalization and CSV export.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"rtdvh/internal/logger"
	"rtdvh/internal/models"
	"rtdvh/pkg/dvh"
	"rtdvh/pkg/export"
	"rtdvh/pkg/roi"
)

// Params holds the export parameters for one run.
type Params struct {
	// PatientID keys every row of the exported table
	PatientID string

	// OutputDir is concatenated with CSVName; it must end with a separator
	// if it names a directory.
	OutputDir string

	// CSVName is the report name without extension. Defaults to
	// "DVH_<PatientID>".
	CSVName string

	// Engine configures the parallel DVH engine
	Engine dvh.Options
}

// Report describes the outcome of a run.
type Report struct {
	// RunID identifies the run in log lines
	RunID string

	PatientID string

	// Catalog is every ROI declared in the structure set
	Catalog roi.Catalog

	// Computed lists the ROIs whose histograms were exported, ascending
	Computed []int

	// Omitted holds the cause for every ROI left out of the export
	Omitted map[int]error

	// OutputFile is the CSV written, empty if nothing was written
	OutputFile string

	// Complete is true only if every catalogued ROI was exported
	Complete bool

	Duration time.Duration
}

// Pipeline exports DVHs for structure sets of type S against doses of
// type D.
type Pipeline[S roi.Source, D any] struct {
	params *Params
	engine *dvh.Engine[S, D]
}

// New creates a pipeline that computes histograms with calc.
func New[S roi.Source, D any](calc dvh.Calculator[S, D], params *Params) *Pipeline[S, D] {
	return &Pipeline[S, D]{
		params: params,
		engine: dvh.NewEngine(calc, params.Engine),
	}
}

// CSVName returns the report name used for the run.
func (p *Pipeline[S, D]) CSVName() string {
	if p.params.CSVName != "" {
		return p.params.CSVName
	}
	return "DVH_" + p.params.PatientID
}

// Process runs the complete export pipeline.
//
// When the engine skips failed ROIs, the partial table is still written and
// Process returns the report together with a *models.PartialResultError, so
// a partial export is never mistaken for a complete one. The report is
// always non-nil.
func (p *Pipeline[S, D]) Process(ctx context.Context, structures S, dose D) (*Report, error) {
	start := time.Now()
	report := &Report{
		RunID:     uuid.NewString(),
		PatientID: p.params.PatientID,
	}
	defer func() { report.Duration = time.Since(start) }()

	if p.params.PatientID == "" {
		return report, models.NewInvalidInput("patient id", "is required")
	}

	// Step 1: ROI catalog
	logger.Info("[%s] Step 1: extracting ROI catalog for patient %s", report.RunID, p.params.PatientID)
	catalog, err := roi.Extract(structures)
	if err != nil {
		return report, err
	}
	if len(catalog) == 0 {
		return report, models.NewInvalidInput("StructureSetROISequence", "declares no rois")
	}
	report.Catalog = catalog
	logger.Info("[%s] Found %d ROIs", report.RunID, len(catalog))

	// Step 2: one histogram per ROI
	opts := p.engine.Options()
	logger.Info("[%s] Step 2: computing DVHs with %d workers (policy %s)", report.RunID, opts.Workers, opts.OnError)
	collection, err := p.engine.Compute(ctx, structures, dose, catalog.IDs())
	var partial *models.PartialResultError
	if err != nil && !errors.As(err, &partial) {
		logger.Error("[%s] DVH computation aborted: %v", report.RunID, err)
		return report, fmt.Errorf("computing dvhs: %w", err)
	}
	if partial != nil {
		report.Omitted = partial.Omitted
	}

	// Step 3: make every tail reach zero
	logger.Info("[%s] Step 3: normalizing %d histograms", report.RunID, len(collection))
	normalized, err := dvh.NormalizeCollection(collection)
	if err != nil {
		return report, fmt.Errorf("normalizing dvhs: %w", err)
	}

	// Step 4: export
	logger.Info("[%s] Step 4: exporting table", report.RunID)
	written, err := export.WriteCSV(normalized, p.params.OutputDir, p.CSVName(), p.params.PatientID)
	if err != nil {
		return report, err
	}
	report.OutputFile = written
	report.Computed = normalized.IDs()
	report.Complete = partial == nil

	if partial != nil {
		logger.Warn("[%s] Exported %d of %d ROIs to %s; omitted %v",
			report.RunID, len(report.Computed), len(catalog), written, partial.OmittedIDs())
		return report, partial
	}

	logger.Info("[%s] Exported %d ROIs to %s", report.RunID, len(report.Computed), written)
	return report, nil
}
