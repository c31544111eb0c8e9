package batch

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMappingRoundTrip(t *testing.T) {
	records := []MappingRecord{
		{
			LocalBatch:      "b1",
			LocalRunNumber:  "run1",
			LocalSampleName: "s1",
			BatchGUID:       "6e024eb1-432c-4b1c-963b-90ac25167f07",
			RunNumber:       "1",
			SampleGUID:      "2ddbd7d4-9979-4960-8c17-e7b92f0bd26d",
		},
		{
			LocalBatch:      "b1",
			LocalSampleName: "s2",
			BatchGUID:       "6e024eb1-432c-4b1c-963b-90ac25167f07",
			SampleGUID:      "8c9f144a-7745-4d65-adf8-c7ec39cc80b1",
		},
	}

	path := filepath.Join(t.TempDir(), "mapping.csv")
	require.NoError(t, WriteMappingCSV(path, records))

	mapping, err := ParseMappingCSV(path)
	require.NoError(t, err)
	assert.Equal(t, records, mapping.Records)

	assert.Equal(t, []string{
		"2ddbd7d4-9979-4960-8c17-e7b92f0bd26d",
		"8c9f144a-7745-4d65-adf8-c7ec39cc80b1",
	}, mapping.GUIDs())
	assert.Equal(t, map[string]string{
		"2ddbd7d4-9979-4960-8c17-e7b92f0bd26d": "s1",
		"8c9f144a-7745-4d65-adf8-c7ec39cc80b1": "s2",
	}, mapping.Names())
}

func TestParseMappingCSVExtraColumns(t *testing.T) {
	content := "notes,local_batch,local_run_number,local_sample_name,gpas_batch,gpas_run_number,gpas_sample_name\n" +
		"keep,b1,run1,s1,bguid,1,sguid\n"
	path := filepath.Join(t.TempDir(), "mapping.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	mapping, err := ParseMappingCSV(path)
	require.NoError(t, err)
	require.Len(t, mapping.Records, 1)
	assert.Equal(t, "s1", mapping.Records[0].LocalSampleName)
	assert.Equal(t, "sguid", mapping.Records[0].SampleGUID)
}

func TestParseMappingCSVErrors(t *testing.T) {
	t.Run("missing column", func(t *testing.T) {
		content := "local_batch,local_run_number,local_sample_name,gpas_batch,gpas_run_number\n" +
			"b1,run1,s1,bguid,1\n"
		path := filepath.Join(t.TempDir(), "mapping.csv")
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

		_, err := ParseMappingCSV(path)
		assert.EqualError(t, err, "one or more expected columns missing from mapping CSV")
	})

	t.Run("empty file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "mapping.csv")
		require.NoError(t, os.WriteFile(path, nil, 0o644))

		_, err := ParseMappingCSV(path)
		assert.EqualError(t, err, "parsing mapping CSV: empty file")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := ParseMappingCSV(filepath.Join(t.TempDir(), "absent.csv"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "opening mapping CSV")
	})
}
