// Package roi extracts region-of-interest metadata from a structure set.
package roi

import (
	"sort"

	"rtdvh/internal/models"
)

// Source is a structure-set dataset that exposes its ROI declaration
// sequence.
type Source interface {
	ROIDeclarations() ([]models.ROIDeclaration, error)
}

// Catalog maps ROI identifiers to their descriptors.
type Catalog map[int]models.ROIDescriptor

// Extract reads every ROI declaration of the structure set into a Catalog.
// If two declarations share an identifier the later one wins.
//
// Errors from the dataset are returned as *models.InvalidInputError.
func Extract(src Source) (Catalog, error) {
	decls, err := src.ROIDeclarations()
	if err != nil {
		return nil, &models.InvalidInputError{
			Field:  "StructureSetROISequence",
			Reason: "cannot read roi declarations",
			Cause:  err,
		}
	}

	catalog := make(Catalog, len(decls))
	for _, d := range decls {
		catalog[d.Number] = models.ROIDescriptor{
			ID:                  d.Number,
			Name:                d.Name,
			FrameOfReferenceUID: d.FrameOfReferenceUID,
			GenerationAlgorithm: d.GenerationAlgorithm,
		}
	}
	return catalog, nil
}

// IDs returns the catalog's ROI identifiers in ascending order.
func (c Catalog) IDs() []int {
	ids := make([]int, 0, len(c))
	for id := range c {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
