package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Sachi-35/crop-yield-prediction/internal/config"
)

// NewTestPaths creates a data layout under a temp directory with an empty
// raw directory
func NewTestPaths(t *testing.T) *config.Paths {
	t.Helper()
	paths, err := config.NewPaths(config.PathsConfig{
		BaseDir:      t.TempDir(),
		DataDir:      "data",
		RawDir:       "raw",
		ProcessedDir: "processed",
		CleanedDir:   "cleaned",
		FinalDir:     "final",
		LogsDir:      "logs",
	})
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(paths.RawDir, 0755))
	require.NoError(t, paths.EnsureDirectories())
	return paths
}

// CreateCSVFile writes a CSV file from lines and returns its path
func CreateCSVFile(t *testing.T, dir, name string, lines ...string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0644))
	return path
}

// WriteRawSources writes a small consistent set of the five raw sources
// covering Punjab and Odisha for 2000 and 2001
func WriteRawSources(t *testing.T, rawDir string) {
	t.Helper()

	CreateCSVFile(t, rawDir, "crop_yield_1997_2020.csv",
		"Crop,Crop_Year,Season,State,Area,Production,Annual_Rainfall,Fertilizer,Pesticide,Yield",
		"Rice,2000,Kharif,Punjab,100,310,600,100,2,3.1",
		"Wheat,2000,Rabi,Punjab,200,840,600,120,3,4.2",
		"Rice,2001,Kharif,Punjab,100,330,650,,2,3.3",
		"Wheat,2001,Rabi,Punjab,200,880,650,125,3,4.4",
		"Rice,2000,Kharif,ORISSA,400,720,1400,80,1,1.8",
		"Rice,2001,Kharif,Orissa,400,,1500,85,1,",
		"Rice,2000,Kharif,Jammu and Kashmir,50,90,900,60,1,1.8",
	)

	CreateCSVFile(t, rawDir, "district_crop_data.csv",
		"Year,State Name,Dist Name,RICE YIELD (Kg per ha),MAIZE YIELD (Kg per ha)",
		"2000,Punjab,Ludhiana,3100,2000",
		"2000,Punjab,Amritsar,3000,",
		"2001,Punjab,Ludhiana,3300,2100",
		"2000,Orissa,Cuttack,1800,1200",
		"2001,Orissa,Cuttack,,1250",
	)

	CreateCSVFile(t, rawDir, "faostat_pesticide_india.csv",
		"Area,Element,Item,Year,Unit,Value",
		"India,Agricultural Use,Pesticides (total),2000,tonnes,43000",
		"India,Agricultural Use,Pesticides (total),2001,tonnes,47000",
		"India,Export Quantity,Pesticides (total),2000,tonnes,900",
	)

	CreateCSVFile(t, rawDir, "fertilizer_district_1969_2017.csv",
		"Year,State Name,Dist Name,NITROGEN PER HA OF NCA (Kg per ha),PHOSPHATE PER HA OF NCA (Kg per ha),POTASH PER HA OF NCA (Kg per ha),TOTAL CONSUMPTION (tons)",
		"2000,Punjab,Ludhiana,180,60,5,90000",
		"2001,Punjab,Ludhiana,185,62,6,92000",
		"2000,Orissa,Cuttack,40,20,10,15000",
		"2001,Orissa,Cuttack,42,,11,16000",
		"2000,JAMMU & KASHMIR,Srinagar,30,10,4,7000",
	)

	CreateCSVFile(t, rawDir, "imd_rainfall_1901_2017.csv",
		"SUBDIVISION,YEAR,ANNUAL",
		"PUNJAB,2000,580",
		"PUNJAB,2001,640",
		"ORISSA,2000,1450",
		"ORISSA,2001,1520",
		"JAMMU & KASHMIR,2000,1100",
		"ATLANTIS,2000,10",
	)
}
