package dvh

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rtdvh/internal/models"
)

func TestNormalizeExtendsNonZeroTail(t *testing.T) {
	c := models.Collection{
		1: {Name: "PTV", BinCenters: []float64{0, 10, 20}, Counts: []float64{5, 3, 0}},
		2: {Name: "Cord", BinCenters: []float64{0, 10}, Counts: []float64{2, 1}},
	}

	out, err := Normalize(c)
	require.NoError(t, err)
	require.Len(t, out, 2)

	assert.Equal(t, []float64{0, 10, 20}, out[1].BinCenters)
	assert.Equal(t, []float64{5, 3, 0}, out[1].Counts)

	assert.Equal(t, []float64{0, 10, 11, 12, 13}, out[2].BinCenters)
	assert.Equal(t, []float64{2, 1, 0, 0, 0}, out[2].Counts)

	// Inputs are not modified
	assert.Equal(t, []float64{0, 10}, c[2].BinCenters)
	assert.Equal(t, []float64{2, 1}, c[2].Counts)
}

func TestNormalizeIsIdempotent(t *testing.T) {
	c := models.Collection{
		1: {BinCenters: []float64{0.5, 1.5, 2.5}, Counts: []float64{9, 4, 0}},
		2: {BinCenters: []float64{0.5, 1.5}, Counts: []float64{3, 2}},
		3: {BinCenters: []float64{0.5}, Counts: []float64{1}},
	}

	once, err := NormalizeCollection(c)
	require.NoError(t, err)
	twice, err := NormalizeCollection(once)
	require.NoError(t, err)

	assert.Equal(t, once, twice)
}

func TestNormalizeInvariants(t *testing.T) {
	c := models.Collection{
		1: {BinCenters: []float64{0.5, 1.5, 2.5}, Counts: []float64{9, 4, 0.1}},
		2: {BinCenters: []float64{0.5, 1.5}, Counts: []float64{0, 0}},
		3: {BinCenters: []float64{7}, Counts: []float64{12}},
	}

	out, err := Normalize(c)
	require.NoError(t, err)
	for id, curve := range out {
		require.NotZero(t, curve.Len(), "roi %d", id)
		assert.Equal(t, len(curve.BinCenters), len(curve.Counts), "roi %d", id)
		assert.Zero(t, curve.Counts[curve.Len()-1], "roi %d", id)
	}
}

func TestNormalizeCollectionKeepsMetadata(t *testing.T) {
	c := models.Collection{
		4: {Name: "Rectum", Volume: 63.2, BinCenters: []float64{0.5}, Counts: []float64{63.2}},
	}

	out, err := NormalizeCollection(c)
	require.NoError(t, err)
	assert.Equal(t, "Rectum", out[4].Name)
	assert.Equal(t, 63.2, out[4].Volume)
	assert.Equal(t, []float64{0.5, 1.5, 2.5, 3.5}, out[4].BinCenters)
}

func TestNormalizeRejectsMalformedHistograms(t *testing.T) {
	cases := map[string]*models.Histogram{
		"empty":    {Name: "x"},
		"mismatch": {BinCenters: []float64{0}, Counts: []float64{1, 0}},
		"nil":      nil,
	}

	for name, h := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Normalize(models.Collection{9: h})

			var malformed *models.MalformedHistogramError
			require.ErrorAs(t, err, &malformed)
			assert.Equal(t, 9, malformed.ROIID)
		})
	}
}
