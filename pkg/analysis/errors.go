package analysis

import "errors"

var (
	// ErrConfiguration reports missing storage credentials or dataset location.
	ErrConfiguration = errors.New("configuration error")
	// ErrLoad reports a failure fetching or decoding the dataset.
	ErrLoad = errors.New("dataset load error")
)
