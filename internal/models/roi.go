package models

// ROIDeclaration is one element of a structure set's ROI declaration
// sequence, as exposed by the dataset layer.
type ROIDeclaration struct {
	// Number is the ROI identifier, unique within a structure set
	Number int

	// Name is the human readable ROI label (e.g. "PTV", "Bladder")
	Name string

	// FrameOfReferenceUID is the coordinate frame the ROI is delineated in
	FrameOfReferenceUID string

	// GenerationAlgorithm is how the contour was produced
	// (AUTOMATIC, SEMIAUTOMATIC or MANUAL)
	GenerationAlgorithm string
}

// ROIDescriptor holds the metadata of a single region of interest.
// Descriptors are created once per structure set and never mutated.
type ROIDescriptor struct {
	ID                  int
	Name                string
	FrameOfReferenceUID string
	GenerationAlgorithm string
}
