package dataprocessing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sachi-35/crop-yield-prediction/pkg/contracts/domain"
)

func cropYieldFrame() *Frame {
	f := NewFrame("crop_yield", true, []string{"Yield", "Rainfall", "Fertilizer_N", "Pesticides"})
	f.AddRow("Punjab", 2000, "Rice", []float64{3, 600, 10, 1})
	f.AddRow("Punjab", 2000, "Wheat", []float64{4, nan, 10, 1})
	f.AddRow("Kerala", 2000, "Rice", []float64{2, 3000, 5, 1})
	f.AddRow("Kerala", 2001, "Rice", []float64{0, 2800, 5, 1})
	return f
}

func TestMergeJoinsAllSources(t *testing.T) {
	district := NewFrame("district_crop", false, []string{"RICE_YIELD_Kg_per_ha", "PEARL_MILLET_YIELD_Kg_per_ha"})
	district.AddRow("Punjab", 2000, "", []float64{1000, 800})
	district.AddRow("Punjab", 2000, "", []float64{2000, 1200})

	fertilizer := NewFrame("fertilizer", false, []string{"Fertilizer_N", "Fertilizer_Total"})
	fertilizer.AddRow("Punjab", 2000, "", []float64{50, 100})
	fertilizer.AddRow("Punjab", 2000, "", []float64{50, 300})

	pesticides := NewFrame("pesticides", false, []string{"Pesticides"})
	pesticides.AddRow("India", 2000, "", []float64{70})
	pesticides.AddRow("India", 2000, "", []float64{30})

	rainfall := NewFrame("rainfall", false, []string{"Rainfall"})
	rainfall.AddRow("Punjab", 2000, "", []float64{800})
	rainfall.AddRow("Kerala", 2000, "", []float64{nan})

	merged, err := Merge(MergeInputs{
		CropYield:    cropYieldFrame(),
		DistrictCrop: district,
		Fertilizer:   fertilizer,
		Pesticides:   pesticides,
		Rainfall:     rainfall,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"Yield", "Rainfall", "Fertilizer_N", "Pesticides",
		"RICE_YIELD_Kg_per_ha", "PEARL_MILLET_YIELD_Kg_per_ha",
		"Fertilizer_Total", "Pesticides_total_country",
	}, merged.Columns)
	require.Equal(t, 4, merged.Len(), "row grain of the crop-yield table is kept")

	row := merged.Rows[0]
	assert.Equal(t, "Punjab", row.State)
	assert.Equal(t, "Rice", row.Crop)
	assert.Equal(t, 700.0, row.Values[merged.ColumnIndex("Rainfall")])
	assert.Equal(t, 1500.0, row.Values[merged.ColumnIndex("RICE_YIELD_Kg_per_ha")])
	assert.Equal(t, 200.0, row.Values[merged.ColumnIndex("Fertilizer_Total")])
	assert.Equal(t, 100.0, row.Values[merged.ColumnIndex("Pesticides_total_country")])

	// Wheat has no crop-yield rainfall, so the IMD value fills in.
	assert.Equal(t, 800.0, merged.Rows[1].Values[merged.ColumnIndex("Rainfall")])

	kerala := merged.Rows[2]
	assert.Equal(t, 3000.0, kerala.Values[merged.ColumnIndex("Rainfall")])
	assert.True(t, IsMissing(kerala.Values[merged.ColumnIndex("Fertilizer_Total")]))

	// Kerala 2001 has no pesticide total for its year.
	assert.True(t, IsMissing(merged.Rows[3].Values[merged.ColumnIndex("Pesticides_total_country")]))
	// and its zero yield is repaired from the state's non-zero mean
	assert.Equal(t, 2.0, merged.Rows[3].Values[merged.ColumnIndex("Yield")])
}

func TestMergeOverlappingColumnPrefersObservedSide(t *testing.T) {
	district := NewFrame("district_crop", false, []string{"Pesticides"})
	district.AddRow("Punjab", 2000, "", []float64{9})
	district.AddRow("Kerala", 2000, "", []float64{nan})

	merged, err := Merge(MergeInputs{CropYield: cropYieldFrame(), DistrictCrop: district})
	require.NoError(t, err)

	assert.Equal(t, []string{"Yield", "Rainfall", "Fertilizer_N", "Pesticides"}, merged.Columns)
	assert.Equal(t, []float64{9, 9, 1, 1}, merged.Column("Pesticides"))
}

func TestMergeRequiresCropKey(t *testing.T) {
	f := NewFrame("crop_yield", false, []string{"Yield"})
	_, err := Merge(MergeInputs{CropYield: f})
	require.Error(t, err)
	assert.True(t, IsKind(err, ErrorKindSchemaViolation))
}

func TestMergeRequiresFertilizerTotal(t *testing.T) {
	fertilizer := NewFrame("fertilizer", false, []string{"Fertilizer_N"})
	_, err := Merge(MergeInputs{CropYield: cropYieldFrame(), Fertilizer: fertilizer})
	require.Error(t, err)

	var de *DataError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, domain.ColumnFertilizerTotal, de.Element)
}

func TestRepairFalseZeros(t *testing.T) {
	f := NewFrame("merged", true, []string{"Yield", "RICE_YIELD_Kg_per_ha", "Rainfall"})
	f.AddRow("Assam", 2000, "Rice", []float64{0, 0, 0})
	f.AddRow("Assam", 2001, "Rice", []float64{4, 0, 0})
	f.AddRow("Goa", 2000, "Rice", []float64{0, 0, 5})
	f.AddRow("Goa", 2001, "Rice", []float64{nan, 0, 5})
	f.AddRow("Bihar", 2000, "Rice", []float64{6, 0, 5})

	out := RepairFalseZeros(f)

	// state mean, then global mean (computed after state repair)
	yields := out.Column("Yield")
	assert.Equal(t, 4.0, yields[0])
	assert.Equal(t, 4.0, yields[1])
	assert.InDelta(t, 14.0/3, yields[2], 1e-9)
	assert.True(t, IsMissing(yields[3]))
	assert.Equal(t, 6.0, yields[4])
	// a column with no non-zero values at all becomes missing
	for _, v := range out.Column("RICE_YIELD_Kg_per_ha") {
		assert.True(t, IsMissing(v))
	}
	// non-yield columns are untouched
	assert.Equal(t, 0.0, out.Column("Rainfall")[0])

	again := RepairFalseZeros(out)
	assert.Equal(t, out.Column("Yield")[0:3], again.Column("Yield")[0:3])
}
