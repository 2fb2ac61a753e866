package csv

import (
	"errors"
	"io"
	"strconv"

	"github.com/go-gota/gota/dataframe"
)

// WriteFlows writes feature rows and their labels as CSV with a header row.
// The label column is appended last.
func WriteFlows(w io.Writer, names []string, rows [][]float64, label string, labels []string) error {
	if len(rows) == 0 {
		return errors.New("no rows to write")
	}
	if len(rows) != len(labels) {
		return errors.New("rows and labels differ in length")
	}

	header := append(append([]string(nil), names...), label)
	records := make([][]string, 0, len(rows)+1)
	records = append(records, header)
	for i, row := range rows {
		rec := make([]string, 0, len(row)+1)
		for _, v := range row {
			rec = append(rec, strconv.FormatFloat(v, 'g', -1, 64))
		}
		rec = append(rec, labels[i])
		records = append(records, rec)
	}

	df := dataframe.LoadRecords(records, dataframe.DetectTypes(false))
	if df.Err != nil {
		return df.Err
	}
	return df.WriteCSV(w)
}
