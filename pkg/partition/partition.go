// Package partition implements the stratified train/validation/test split.
package partition

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/go-gota/gota/dataframe"

	"github.com/hed1ad/flowselect/pkg/dataset"
)

// ErrPartition reports a split that cannot honour stratification or sizes.
var ErrPartition = errors.New("partition error")

// Options configures a split.
type Options struct {
	// Seed drives the per-class shuffles. Both split stages use it.
	Seed int64
	// HoldoutTestShare is the fraction of held-out rows assigned to test.
	HoldoutTestShare float64
}

// Option configures a split.
type Option func(*Options)

// WithSeed sets the shuffle seed.
func WithSeed(seed int64) Option {
	return func(o *Options) {
		o.Seed = seed
	}
}

func defaults(opts []Option) Options {
	o := Options{Seed: 42, HoldoutTestShare: 0.5}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Split partitions df into train, validation and test frames stratified on
// column. trainPercentage is in (0, 100]; the remainder is halved between
// validation and test.
func Split(df dataframe.DataFrame, trainPercentage float64, column string, opts ...Option) (train, val, test dataframe.DataFrame, err error) {
	if !dataset.HasColumn(df, column) {
		return train, val, test, fmt.Errorf("%w: stratify column %q not found", ErrPartition, column)
	}

	trainIdx, valIdx, testIdx, err := Indices(df.Col(column).Records(), trainPercentage, opts...)
	if err != nil {
		return train, val, test, err
	}

	train = df.Subset(trainIdx)
	val = df.Subset(valIdx)
	test = df.Subset(testIdx)
	for _, part := range []dataframe.DataFrame{train, val, test} {
		if part.Err != nil {
			return train, val, test, fmt.Errorf("%w: %w", ErrPartition, part.Err)
		}
	}
	return train, val, test, nil
}

// Indices computes the three row index sets for labels. Each set is sorted
// ascending; together they cover every row exactly once.
func Indices(labels []string, trainPercentage float64, opts ...Option) (train, val, test []int, err error) {
	o := defaults(opts)

	if math.IsNaN(trainPercentage) || trainPercentage <= 0 || trainPercentage > 100 {
		return nil, nil, nil, fmt.Errorf("%w: train percentage %v outside (0, 100]", ErrPartition, trainPercentage)
	}
	n := len(labels)
	if n == 0 {
		return nil, nil, nil, fmt.Errorf("%w: dataset is empty", ErrPartition)
	}

	all := make([]int, n)
	for i := range all {
		all[i] = i
	}

	nHeld := ceilCount((100 - trainPercentage) / 100 * float64(n))
	train, held, err := stratified(all, labels, nHeld, o.Seed)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("train split: %w", err)
	}

	nTest := ceilCount(o.HoldoutTestShare * float64(len(held)))
	val, test, err = stratified(held, labels, nTest, o.Seed)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("validation/test split: %w", err)
	}

	return train, val, test, nil
}

// ceilCount rounds a fractional row count up, ignoring float noise.
func ceilCount(x float64) int {
	return int(math.Ceil(x - 1e-9))
}

// stratified moves nSecond of rows into the second set, allocating each class
// its proportional share by largest remainder, so every class lands within one
// row of its exact share in both sets.
func stratified(rows []int, labels []string, nSecond int, seed int64) (first, second []int, err error) {
	n := len(rows)
	nFirst := n - nSecond
	if nSecond <= 0 {
		return nil, nil, fmt.Errorf("%w: held-out size resolves to zero for %d rows", ErrPartition, n)
	}
	if nFirst <= 0 {
		return nil, nil, fmt.Errorf("%w: training size resolves to zero for %d rows", ErrPartition, n)
	}

	byClass := map[string][]int{}
	for _, r := range rows {
		byClass[labels[r]] = append(byClass[labels[r]], r)
	}
	classes := make([]string, 0, len(byClass))
	for c := range byClass {
		classes = append(classes, c)
	}
	sort.Strings(classes)

	for _, c := range classes {
		if len(byClass[c]) < 2 {
			return nil, nil, fmt.Errorf("%w: the least populated class %q has only %d member, need at least 2", ErrPartition, c, len(byClass[c]))
		}
	}
	if nSecond < len(classes) || nFirst < len(classes) {
		return nil, nil, fmt.Errorf("%w: split sizes %d/%d must each be at least the number of classes (%d)", ErrPartition, nFirst, nSecond, len(classes))
	}

	alloc := allocate(classes, byClass, n, nSecond)

	rng := rand.New(rand.NewSource(seed))
	for _, c := range classes {
		members := append([]int(nil), byClass[c]...)
		rng.Shuffle(len(members), func(i, j int) {
			members[i], members[j] = members[j], members[i]
		})
		second = append(second, members[:alloc[c]]...)
		first = append(first, members[alloc[c]:]...)
	}

	sort.Ints(first)
	sort.Ints(second)
	return first, second, nil
}

// allocate distributes total rows across classes by largest remainder.
// Ties go to the class that sorts first.
func allocate(classes []string, byClass map[string][]int, n, total int) map[string]int {
	type share struct {
		class string
		frac  float64
	}

	alloc := make(map[string]int, len(classes))
	shares := make([]share, 0, len(classes))
	given := 0
	for _, c := range classes {
		exact := float64(len(byClass[c])) * float64(total) / float64(n)
		whole := int(math.Floor(exact))
		alloc[c] = whole
		given += whole
		shares = append(shares, share{class: c, frac: exact - float64(whole)})
	}

	sort.SliceStable(shares, func(i, j int) bool { return shares[i].frac > shares[j].frac })
	for i := 0; given < total; i++ {
		alloc[shares[i%len(shares)].class]++
		given++
	}
	return alloc
}
