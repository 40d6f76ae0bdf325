package catalog

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GorgoGerbis/PartSelect-ChatBot-JW/internal/domain"
)

func TestLoadDataset(t *testing.T) {
	ds, err := LoadDataset(
		filepath.Join("testdata", "parts.csv"),
		filepath.Join("testdata", "repairs.csv"),
		filepath.Join("testdata", "blogs.csv"),
	)
	require.NoError(t, err)

	require.Len(t, ds.Parts, 3)
	maker := ds.Parts[0]
	assert.Equal(t, "PS11752778", maker.PartID)
	assert.Equal(t, "WPW10190965", maker.ManufacturerNumber)
	assert.Equal(t, []string{"WRF555SDFZ", "WRS325SDHZ"}, maker.CompatibleModels)
	assert.Equal(t, "In Stock", maker.Availability)

	gasket := ds.Parts[1]
	assert.Empty(t, gasket.InstallVideoURL, "nan cells are treated as empty")
	assert.Equal(t, []string{"WDT780SAEM1", "WDF520PADM"}, gasket.CompatibleModels)

	require.Len(t, ds.Repairs, 2)
	assert.Equal(t, "repair_0", ds.Repairs[0].ID)
	assert.Equal(t, "Dishwasher", ds.Repairs[0].ApplianceType)
	assert.Equal(t, []string{"Door Gasket", "Water Inlet Valve"}, ds.Repairs[0].PartsNeeded)
	assert.Equal(t, "EASY", ds.Repairs[0].Difficulty)

	require.Len(t, ds.Articles, 2)
	assert.Equal(t, "blog_1", ds.Articles[1].ID)
}

func TestLoadDatasetOptionalFiles(t *testing.T) {
	ds, err := LoadDataset(filepath.Join("testdata", "parts.csv"), "", filepath.Join("testdata", "missing.csv"))
	require.NoError(t, err)
	assert.Len(t, ds.Parts, 3)
	assert.Empty(t, ds.Repairs)
	assert.Empty(t, ds.Articles)

	_, err = LoadDataset(filepath.Join("testdata", "missing.csv"), "", "")
	assert.Error(t, err)
}

func TestReadPartsMissingColumn(t *testing.T) {
	_, err := ReadParts(strings.NewReader("part_name,brand\nValve,GE\n"))
	require.Error(t, err)
	assert.True(t, domain.IsType(err, domain.ErrorTypeMalformedData))

	_, err = ReadParts(strings.NewReader(""))
	assert.True(t, domain.IsType(err, domain.ErrorTypeMalformedData))
}

func TestReadPartsHeaderNormalization(t *testing.T) {
	parts, err := ReadParts(strings.NewReader("\ufeffPart_ID,Part_Name\nps123,Valve\n,Skipped\n"))
	require.NoError(t, err)
	require.Len(t, parts, 1)
	assert.Equal(t, "PS123", parts[0].PartID)
	assert.Equal(t, "Valve", parts[0].Name)
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"A1", "B2", "C3", "D4"}, SplitList("A1, B2;C3 | D4"))
	assert.Nil(t, SplitList("  "))
}
