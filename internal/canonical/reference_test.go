package canonical

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shadowatlas/internal/boundary"
)

func TestLoad_EmbeddedTablesAreSelfConsistent(t *testing.T) {
	ref, err := Load()
	require.NoError(t, err)
	assert.NotNil(t, ref)
}

func TestExpectedGEOIDs_KnownTable(t *testing.T) {
	ref, err := Load()
	require.NoError(t, err)

	geoids, ok := ref.ExpectedGEOIDs(boundary.LayerCongressional, "50")
	require.True(t, ok)
	assert.Len(t, geoids, 1) // Vermont's single at-large district
}

func TestExpectedGEOIDs_UnknownTableNotOK(t *testing.T) {
	ref, err := Load()
	require.NoError(t, err)
	_, ok := ref.ExpectedGEOIDs(boundary.LayerCongressional, "99")
	assert.False(t, ok)
}

func TestExpectedCount_MatchesGEOIDCount(t *testing.T) {
	ref, err := Load()
	require.NoError(t, err)
	count, ok := ref.ExpectedCount(boundary.LayerCounty, "06")
	require.True(t, ok)
	assert.Equal(t, 58, count) // California's 58 counties
}

func TestMatchesPattern_VariableLengthLayer(t *testing.T) {
	ref, err := Load()
	require.NoError(t, err)
	assert.True(t, ref.MatchesPattern(boundary.LayerStateLower, "50", "501234"))
	assert.True(t, ref.MatchesPattern(boundary.LayerStateLower, "50", "50901201"))
	assert.False(t, ref.MatchesPattern(boundary.LayerStateLower, "50", "not-a-geoid"))
}

func TestComplete_DetectsMissingAndExtra(t *testing.T) {
	ref, err := Load()
	require.NoError(t, err)
	expected, ok := ref.ExpectedGEOIDs(boundary.LayerCounty, "06")
	require.True(t, ok)

	observed := append([]string{}, expected[:len(expected)-1]...) // drop one
	observed = append(observed, "06999")                          // add a bogus one

	completeness := ref.Complete(boundary.LayerCounty, "06", observed)
	assert.False(t, completeness.OK)
	assert.Contains(t, completeness.Extra, "06999")
	assert.Len(t, completeness.Missing, 1)
}
