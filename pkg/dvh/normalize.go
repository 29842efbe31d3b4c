package dvh

import (
	"rtdvh/internal/models"
)

// tailBins is how many zero bins are appended to a histogram whose tail
// does not reach zero.
const tailBins = 3

// Normalize returns the bins of every histogram in the collection with a
// tail that ends in zero. A histogram whose last count is non-zero gets
// three extra bins one dose unit apart past its last center, each with a
// zero count. Existing bins are never truncated or rescaled and the input
// is not modified.
//
// An empty or inconsistent histogram yields *models.MalformedHistogramError.
func Normalize(c models.Collection) (map[int]models.Curve, error) {
	out := make(map[int]models.Curve, len(c))
	for _, id := range c.IDs() {
		curve, err := normalizeOne(id, c[id])
		if err != nil {
			return nil, err
		}
		out[id] = curve
	}
	return out, nil
}

// NormalizeCollection is Normalize for callers that need whole histograms:
// the result carries each ROI's name and volume with the normalized bins.
func NormalizeCollection(c models.Collection) (models.Collection, error) {
	curves, err := Normalize(c)
	if err != nil {
		return nil, err
	}

	out := make(models.Collection, len(curves))
	for id, curve := range curves {
		out[id] = c[id].WithCurve(curve)
	}
	return out, nil
}

func normalizeOne(id int, h *models.Histogram) (models.Curve, error) {
	if h == nil {
		return models.Curve{}, &models.MalformedHistogramError{ROIID: id, Reason: "histogram is nil"}
	}
	n := len(h.Counts)
	if n == 0 {
		return models.Curve{}, &models.MalformedHistogramError{ROIID: id, Reason: "counts are empty"}
	}
	if len(h.BinCenters) != n {
		return models.Curve{}, &models.MalformedHistogramError{
			ROIID:  id,
			Reason: "bin centers and counts differ in length",
		}
	}

	curve := h.Curve()
	if curve.Counts[n-1] == 0 {
		return curve, nil
	}

	last := curve.BinCenters[n-1]
	for i := 1; i <= tailBins; i++ {
		curve.BinCenters = append(curve.BinCenters, last+float64(i))
		curve.Counts = append(curve.Counts, 0)
	}
	return curve, nil
}
