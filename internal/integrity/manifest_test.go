package integrity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validSHA = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"

func TestIsValid(t *testing.T) {
	assert.True(t, IsValid(validSHA))
	assert.False(t, IsValid("not-hex"))
	assert.False(t, IsValid("E3B0C44298FC1C149AFBF4C8996FB92427AE41E4649B934CA495991B7852B855")) // uppercase
	assert.False(t, IsValid(validSHA[:63]))                                                     // too short
}

func TestVerify_UnregisteredEntryErrors(t *testing.T) {
	m := New(Strict)
	_, err := m.Verify("2024", "shapefile", validSHA)
	assert.Error(t, err)
}

func TestVerify_StrictRejectsUnpinnedEntry(t *testing.T) {
	m := New(Strict)
	m.Pin("2024", "shapefile", Entry{URL: "https://example.test/f.zip"})
	_, err := m.Verify("2024", "shapefile", validSHA)
	assert.Error(t, err)
}

func TestVerify_PermissiveWarnsOnUnpinnedEntry(t *testing.T) {
	m := New(Permissive)
	m.Pin("2024", "shapefile", Entry{URL: "https://example.test/f.zip"})
	warning, err := m.Verify("2024", "shapefile", validSHA)
	require.NoError(t, err)
	assert.NotEmpty(t, warning)
}

func TestVerify_MismatchedChecksumErrors(t *testing.T) {
	m := New(Strict)
	m.Pin("2024", "shapefile", Entry{URL: "https://example.test/f.zip", SHA256: validSHA})
	_, err := m.Verify("2024", "shapefile", "0000000000000000000000000000000000000000000000000000000000000000")
	assert.Error(t, err)
}

func TestVerify_MatchingChecksumSucceeds(t *testing.T) {
	m := New(Strict)
	m.Pin("2024", "shapefile", Entry{URL: "https://example.test/f.zip", SHA256: validSHA})
	warning, err := m.Verify("2024", "shapefile", validSHA)
	require.NoError(t, err)
	assert.Empty(t, warning)
}

func TestVerify_MalformedPinnedChecksumErrors(t *testing.T) {
	m := New(Permissive)
	m.Pin("2024", "shapefile", Entry{URL: "https://example.test/f.zip", SHA256: "not-valid-hex"})
	_, err := m.Verify("2024", "shapefile", validSHA)
	assert.Error(t, err)
}

func TestMissing_ReturnsOnlyUnpinnedForVintage(t *testing.T) {
	m := New(Permissive)
	m.Pin("2024", "shapefile", Entry{URL: "https://example.test/a.zip"})
	m.Pin("2024", "metadata", Entry{URL: "https://example.test/b.json", SHA256: validSHA})
	m.Pin("2023", "shapefile", Entry{URL: "https://example.test/c.zip"})

	missing := m.Missing("2024")
	assert.Equal(t, []string{"shapefile"}, missing)
}

func TestLookup_DistinguishesUnregisteredFromUnpinned(t *testing.T) {
	m := New(Permissive)
	m.Pin("2024", "shapefile", Entry{URL: "https://example.test/a.zip"})

	entry, ok := m.Lookup("2024", "shapefile")
	require.True(t, ok)
	assert.Empty(t, entry.SHA256)

	_, ok = m.Lookup("2024", "nonexistent")
	assert.False(t, ok)
}
