// Package rtcase loads radiotherapy case files: a YAML document holding a
// patient's structure set and dose grid in a simplified voxel form.
//
// A case file looks like:
//
//	patientID: "P001"
//	structureSet:
//	  rois:
//	    - number: 1
//	      name: PTV
//	      frameOfReferenceUID: 1.2.840.1
//	      generationAlgorithm: MANUAL
//	      voxels: [0, 1, 2, 3]
//	dose:
//	  columns: 2
//	  rows: 2
//	  frames: 1
//	  voxelVolume: 0.008
//	  units: GY
//	  doseGridScaling: 0.001
//	  values: [61000, 62000, 60500, 59000]
package rtcase

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"rtdvh/internal/models"
)

// Case is one patient's structure set and dose grid.
type Case struct {
	PatientID    string        `yaml:"patientID"`
	StructureSet *StructureSet `yaml:"structureSet"`
	Dose         *DoseGrid     `yaml:"dose"`
}

// ROI is a structure set ROI with its voxel mask. Voxels index into the
// dose grid's flattened values (frame-major, then row, then column).
type ROI struct {
	Number              int    `yaml:"number"`
	Name                string `yaml:"name"`
	FrameOfReferenceUID string `yaml:"frameOfReferenceUID"`
	GenerationAlgorithm string `yaml:"generationAlgorithm"`
	Voxels              []int  `yaml:"voxels"`
}

// StructureSet is the ROI declaration sequence of a case.
type StructureSet struct {
	ROIs []ROI `yaml:"rois"`
}

// ROIDeclarations implements roi.Source.
func (s *StructureSet) ROIDeclarations() ([]models.ROIDeclaration, error) {
	if s == nil {
		return nil, fmt.Errorf("structure set is missing")
	}
	decls := make([]models.ROIDeclaration, len(s.ROIs))
	for i, r := range s.ROIs {
		decls[i] = models.ROIDeclaration{
			Number:              r.Number,
			Name:                r.Name,
			FrameOfReferenceUID: r.FrameOfReferenceUID,
			GenerationAlgorithm: r.GenerationAlgorithm,
		}
	}
	return decls, nil
}

// ROI looks up an ROI by number. When numbers repeat the last declaration
// wins, matching roi.Extract.
func (s *StructureSet) ROI(number int) (ROI, bool) {
	if s == nil {
		return ROI{}, false
	}
	for i := len(s.ROIs) - 1; i >= 0; i-- {
		if s.ROIs[i].Number == number {
			return s.ROIs[i], true
		}
	}
	return ROI{}, false
}

// Load reads and validates a case file.
func Load(path string) (*Case, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &models.InvalidInputError{Field: path, Reason: "cannot read case file", Cause: err}
	}
	return Parse(data)
}

// Parse decodes and validates a case document.
func Parse(data []byte) (*Case, error) {
	var c Case
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, &models.InvalidInputError{Reason: "cannot parse case file", Cause: err}
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks the case for missing or inconsistent fields.
func (c *Case) Validate() error {
	if strings.TrimSpace(c.PatientID) == "" {
		return models.NewInvalidInput("patientID", "is required")
	}
	if c.StructureSet == nil {
		return models.NewInvalidInput("structureSet", "is required")
	}
	if c.Dose == nil {
		return models.NewInvalidInput("dose", "is required")
	}
	if err := c.Dose.Validate(); err != nil {
		return err
	}

	for i, r := range c.StructureSet.ROIs {
		field := fmt.Sprintf("structureSet.rois[%d]", i)
		if r.Number <= 0 {
			return models.NewInvalidInput(field+".number", "must be positive, got %d", r.Number)
		}
		if strings.TrimSpace(r.Name) == "" {
			return models.NewInvalidInput(field+".name", "is required")
		}
	}
	return nil
}
