package dataset

import (
	"math"
	"testing"

	"github.com/go-gota/gota/dataframe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func flowFrame() dataframe.DataFrame {
	return dataframe.LoadRecords([][]string{
		{"duration", "fwd_pkts", "calss"},
		{"1.5", "10", "benign"},
		{"2.0", "3", "asware"},
		{"0.1", "x", "benign"},
	})
}

func TestSplitLabels(t *testing.T) {
	features, labels := SplitLabels(flowFrame(), DefaultLabel)

	assert.Equal(t, []string{"duration", "fwd_pkts"}, features.Names())
	assert.Equal(t, []string{"benign", "asware", "benign"}, labels)
	assert.Equal(t, 3, features.Nrow())
}

// The splitter tolerates an absent label column and hands the frame back
// untouched with no labels. Callers must check for nil labels themselves;
// this pins the behaviour rather than endorsing it.
func TestSplitLabelsMissingColumn(t *testing.T) {
	df := flowFrame().Drop(DefaultLabel)

	features, labels := SplitLabels(df, DefaultLabel)

	assert.Nil(t, labels)
	assert.Equal(t, df.Names(), features.Names())
	assert.Equal(t, df.Nrow(), features.Nrow())

	again, labels := SplitLabels(features, DefaultLabel)
	assert.Nil(t, labels)
	assert.Equal(t, features.Names(), again.Names())
}

func TestToMatrix(t *testing.T) {
	features, _ := SplitLabels(flowFrame(), DefaultLabel)
	m := ToMatrix(features)

	require.Equal(t, 3, m.Len())
	assert.Equal(t, []string{"duration", "fwd_pkts"}, m.Names)
	assert.Equal(t, []float64{1.5, 10}, m.Rows[0])
	assert.True(t, math.IsNaN(m.Rows[2][1]))
	assert.True(t, m.HasNaN())
}

func TestProject(t *testing.T) {
	m := Matrix{
		Names: []string{"a", "b", "c"},
		Rows:  [][]float64{{1, 2, 3}, {4, 5, 6}},
	}

	p, err := m.Project([]string{"c", "a"})
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a"}, p.Names)
	assert.Equal(t, [][]float64{{3, 1}, {6, 4}}, p.Rows)

	_, err = m.Project([]string{"zzz"})
	assert.Error(t, err)
}

func TestEncoder(t *testing.T) {
	e := NewEncoder([]string{"scareware", "benign"}, []string{"adware", "benign"})

	assert.Equal(t, []string{"adware", "benign", "scareware"}, e.Classes())

	ids, err := e.Encode([]string{"benign", "adware", "scareware"})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 0, 2}, ids)

	_, err = e.Encode([]string{"smsmalware"})
	assert.Error(t, err)
}
