package analysis

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
)

// ExportFileName is the default name of the anomaly CSV download.
const ExportFileName = "Students_Anomalies.csv"

// Export header names for the identity columns.
const (
	ExportIDHeader    = "MaHS"
	ExportClassHeader = "Lop"
)

// WriteAnomaliesCSV writes the anomaly subset as UTF-8 CSV: student id, class
// and the raw score of each selected subject. Missing scores are empty cells.
func WriteAnomaliesCSV(w io.Writer, r *Result) error {
	cw := csv.NewWriter(w)
	header := append([]string{ExportIDHeader, ExportClassHeader}, r.Subjects...)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, a := range r.Anomalies {
		row := make([]string, 0, len(header))
		row = append(row, a.StudentID, a.Class)
		for _, s := range a.Scores {
			row = append(row, s.String())
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row %s: %w", a.StudentID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// AnomalyCSV returns the anomaly subset encoded by WriteAnomaliesCSV.
func (r *Result) AnomalyCSV() ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteAnomaliesCSV(&buf, r); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
