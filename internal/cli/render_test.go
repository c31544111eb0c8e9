package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gpas-dev/gpas-go/internal/client"
)

func TestValidFormat(t *testing.T) {
	for _, f := range []string{"table", "csv", "json"} {
		assert.True(t, validFormat(f), f)
	}
	assert.False(t, validFormat("yaml"))
	assert.False(t, validFormat(""))
}

func TestRenderRecords(t *testing.T) {
	records := []client.StatusRecord{
		{Sample: "6e024eb1-432c-4b1c-963b-90ac25167f07", Status: "Released"},
		{Sample: "s2", Status: "Uploaded"},
	}

	t.Run("table", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, renderRecords(&buf, "table", records))

		assert.Equal(t,
			"sample                                status\n"+
				"6e024eb1-432c-4b1c-963b-90ac25167f07  Released\n"+
				"s2                                    Uploaded\n",
			buf.String())
	})

	t.Run("csv", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, renderRecords(&buf, "csv", records))
		assert.Equal(t, "sample,status\n6e024eb1-432c-4b1c-963b-90ac25167f07,Released\ns2,Uploaded\n", buf.String())
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, renderRecords(&buf, "json", records))
		assert.JSONEq(t,
			`[{"sample":"6e024eb1-432c-4b1c-963b-90ac25167f07","status":"Released"},{"sample":"s2","status":"Uploaded"}]`,
			buf.String())
	})
}
