// Package export flattens DVH collections into a dose-binned table and
// writes it as CSV.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats/scalar"

	"rtdvh/internal/models"
)

// DoseStride is the spacing, in bins (cGy), between exported dose columns.
const DoseStride = 10

// Fixed leading columns of every table.
const (
	ColumnPatientID = "Patient ID"
	ColumnROI       = "ROI"
	ColumnVolume    = "Volume (mL)"
)

// missingValue fills cells an ROI cannot supply.
const missingValue = "0.0"

// Table is a rectangular DVH report: every row has len(Header) cells.
type Table struct {
	Header []string
	Rows   [][]string
}

// BuildTable flattens the collection into one row per ROI, ordered by ROI
// id. Each row samples the ROI's relative volume every DoseStride bins; the
// dose columns are shared by all rows and sized by the longest series.
func BuildTable(c models.Collection, patientID string) Table {
	ids := c.IDs()

	relative := make(map[int]models.Curve, len(ids))
	for _, id := range ids {
		relative[id] = c[id].RelativeVolume()
	}

	// First pass: the widest sampled index over all ROIs decides the header.
	maxIndex := 0
	for _, id := range ids {
		maxIndex = max(maxIndex, lastSampleIndex(relative[id].Len()))
	}

	header := []string{ColumnPatientID, ColumnROI, ColumnVolume}
	for dose := 0; dose <= maxIndex; dose += DoseStride {
		header = append(header, strconv.Itoa(dose)+"cGy")
	}

	// Second pass: emit rows padded to the header width.
	rows := make([][]string, 0, len(ids))
	for _, id := range ids {
		h := c[id]
		row := make([]string, len(header))
		row[0] = patientID
		row[1] = h.Name
		row[2] = formatValue(h.Volume)

		col := 3
		counts := relative[id].Counts
		for i := 0; i < len(counts); i += DoseStride {
			row[col] = formatValue(counts[i])
			col++
		}
		for ; col < len(row); col++ {
			row[col] = missingValue
		}
		rows = append(rows, row)
	}

	return Table{Header: header, Rows: rows}
}

// lastSampleIndex is the largest multiple of DoseStride below n, or 0 for
// an empty series.
func lastSampleIndex(n int) int {
	if n == 0 {
		return 0
	}
	return (n - 1) / DoseStride * DoseStride
}

// formatValue rounds to two decimals and always keeps a fractional part,
// so 5 is written as 5.0. Non-finite values are written as missing.
func formatValue(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return missingValue
	}
	r := scalar.Round(v, 2)
	if r == 0 {
		// Avoid writing "-0.0"
		r = 0
	}
	s := strconv.FormatFloat(r, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// Encode writes the table as comma-separated text.
func (t Table) Encode(w io.Writer) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(t.Header); err != nil {
		return err
	}
	return writer.WriteAll(t.Rows)
}

// TargetPath returns where WriteCSV puts a report. The path and name are
// concatenated as given; path must carry its own trailing separator.
func TargetPath(path, csvName string) string {
	return path + csvName + ".csv"
}

// WriteCSV builds the table for the collection and writes it to
// TargetPath(path, csvName). The write goes through a temporary file and a
// rename so a failed export never leaves a truncated report behind.
//
// Returns the path written, or a *models.IOError.
func WriteCSV(c models.Collection, path, csvName, patientID string) (string, error) {
	target := TargetPath(path, csvName)

	var buf bytes.Buffer
	if err := BuildTable(c, patientID).Encode(&buf); err != nil {
		return "", &models.IOError{Path: target, Cause: fmt.Errorf("encoding csv: %w", err)}
	}

	// Temp names are unique per call, so concurrent exports to one target do not collide
	tmp, err := os.CreateTemp(filepath.Dir(target), filepath.Base(target)+".*.tmp")
	if err != nil {
		return "", &models.IOError{Path: target, Cause: err}
	}
	tempPath := tmp.Name()

	_, err = tmp.Write(buf.Bytes())
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err == nil {
		err = os.Chmod(tempPath, 0644)
	}
	if err == nil {
		err = os.Rename(tempPath, target)
	}
	if err != nil {
		_ = os.Remove(tempPath)
		return "", &models.IOError{Path: target, Cause: err}
	}

	return target, nil
}
