package loader

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.yaml.in/yaml/v3"
)

func TestSettings(t *testing.T) {
	var pd ProcessorDef
	require.NoError(t, yaml.Unmarshal([]byte(`
name: dates
type: demo.EntityDateChecker
settings:
  cut_off_date: 2024-03-01
  quoted: "2024-03-01T10:00:00Z"
  bad: yesterday
  enabled: true
  limit: 5
`), &pd))

	cut, ok, err := pd.Settings.Time("cut_off_date")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), cut.UTC())

	quoted, ok, err := pd.Settings.Time("quoted")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 10, quoted.Hour())

	_, ok, err = pd.Settings.Time("missing")
	assert.NoError(t, err)
	assert.False(t, ok)

	_, _, err = pd.Settings.Time("bad")
	assert.Error(t, err)

	assert.True(t, pd.Settings.Bool("enabled", false))
	assert.True(t, pd.Settings.Bool("absent", true))
	assert.Equal(t, "5", pd.Settings.String("limit", ""))
	assert.Equal(t, "x", pd.Settings.String("absent", "x"))

	var decoded struct {
		Limit   int  `yaml:"limit"`
		Enabled bool `yaml:"enabled"`
	}
	require.NoError(t, pd.Settings.Decode(&decoded))
	assert.Equal(t, 5, decoded.Limit)
	assert.True(t, decoded.Enabled)
}

func TestProcessorDefLabel(t *testing.T) {
	assert.Equal(t, "shared", ProcessorDef{Reference: "shared"}.Label())
	assert.Equal(t, "alias", ProcessorDef{Name: "alias", Reference: "shared"}.Label())
	assert.Equal(t, "demo.ExceptionLogger", HandlerDef{Type: "demo.ExceptionLogger"}.Label())
}
