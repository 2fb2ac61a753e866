// Package csv decodes and encodes flow datasets stored as (optionally
// compressed) CSV with a header row.
package csv

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// ErrEmpty is returned when a payload holds no data rows.
var ErrEmpty = errors.New("dataset has no rows")

type options struct {
	label     string
	delimiter rune
}

// Option configures decoding.
type Option func(*options)

// WithLabel names the class column, which is always loaded as a string.
func WithLabel(name string) Option {
	return func(o *options) {
		o.label = name
	}
}

// WithDelimiter sets the field separator.
func WithDelimiter(r rune) Option {
	return func(o *options) {
		o.delimiter = r
	}
}

// Decode decompresses data if needed and parses it into a DataFrame.
// Feature column types are inferred.
func Decode(data []byte, opts ...Option) (dataframe.DataFrame, error) {
	o := options{delimiter: ','}
	for _, opt := range opts {
		opt(&o)
	}

	plain, err := Decompress(data)
	if err != nil {
		return dataframe.DataFrame{}, err
	}
	if len(bytes.TrimSpace(plain)) == 0 {
		return dataframe.DataFrame{}, ErrEmpty
	}

	load := []dataframe.LoadOption{
		dataframe.HasHeader(true),
		dataframe.WithDelimiter(o.delimiter),
		dataframe.NaNValues([]string{"NA", "NaN", "nan", "Infinity", "inf", ""}),
	}
	if o.label != "" {
		load = append(load, dataframe.WithTypes(map[string]series.Type{o.label: series.String}))
	}

	df := dataframe.ReadCSV(bytes.NewReader(plain), load...)
	if df.Err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("parse csv: %w", df.Err)
	}
	if df.Nrow() == 0 {
		return dataframe.DataFrame{}, ErrEmpty
	}
	return df, nil
}
