package dataprocessing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMinMaxScale(t *testing.T) {
	f := NewFrame("crop_yield", true, []string{"Yield", "Rainfall", "Pesticides", "Empty"})
	f.AddRow("Assam", 2000, "Rice", []float64{3, 100, 7, nan})
	f.AddRow("Assam", 2001, "Rice", []float64{5, 300, 7, nan})
	f.AddRow("Assam", 2002, "Rice", []float64{9, nan, 7, nan})
	f.AddRow("Assam", 2003, "Rice", []float64{1, 200, 7, nan})

	out := MinMaxScale(f, []string{"Yield"})

	assert.Equal(t, []float64{3, 5, 9, 1}, out.Column("Yield"))

	rain := out.Column("Rainfall")
	assert.Equal(t, 0.0, rain[0])
	assert.Equal(t, 1.0, rain[1])
	assert.True(t, IsMissing(rain[2]))
	assert.Equal(t, 0.5, rain[3])

	assert.Equal(t, []float64{0, 0, 0, 0}, out.Column("Pesticides"))

	for _, v := range out.Column("Empty") {
		assert.True(t, IsMissing(v))
	}

	// identifiers are never touched
	assert.Equal(t, 2000, out.Rows[0].Year)
	assert.Equal(t, 100.0, f.Rows[0].Values[1], "input must not be mutated")
}
