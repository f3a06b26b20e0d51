package registry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"shadowatlas/internal/boundary"
)

func TestSelect_NoCandidatesReturnsFalse(t *testing.T) {
	r := New()
	r.Register(withTier("census", boundary.AuthorityFederal, boundary.LayerCounty))
	_, ok := r.Select(boundary.LayerCongressional, "50")
	assert.False(t, ok)
}

func TestSelect_PrefersHigherAuthorityTier(t *testing.T) {
	r := New()
	r.Register(withTier("municipal-portal", boundary.AuthorityMunicipal, boundary.LayerCounty))
	r.Register(withTier("tiger", boundary.AuthorityFederal, boundary.LayerCounty))

	p, ok := r.Select(boundary.LayerCounty, "50")
	assert.True(t, ok)
	assert.Equal(t, "tiger", p.ID())
}

func TestSelect_TieBreaksOnShorterCadenceThenFailureRate(t *testing.T) {
	r := New()
	slow := withTier("slow", boundary.AuthorityFederal, boundary.LayerCounty)
	slow.metadata.UpdateCadence = 72 * time.Hour
	fast := withTier("fast", boundary.AuthorityFederal, boundary.LayerCounty)
	fast.metadata.UpdateCadence = 24 * time.Hour
	r.Register(slow)
	r.Register(fast)

	p, ok := r.Select(boundary.LayerCounty, "50")
	assert.True(t, ok)
	assert.Equal(t, "fast", p.ID())
}

func TestSelect_FailureRateIsFinalTieBreak(t *testing.T) {
	r := New()
	r.Register(withTier("a", boundary.AuthorityFederal, boundary.LayerCounty))
	r.Register(withTier("b", boundary.AuthorityFederal, boundary.LayerCounty))

	r.RecordOutcome("a", false)
	r.RecordOutcome("a", true)
	r.RecordOutcome("b", true)
	r.RecordOutcome("b", true)

	p, ok := r.Select(boundary.LayerCounty, "50")
	assert.True(t, ok)
	assert.Equal(t, "b", p.ID())
}

func TestFailureRate_UntestedProviderIsZero(t *testing.T) {
	var s FailureStats
	assert.Equal(t, 0.0, s.FailureRate())
}

func TestCandidates_RankedBestFirst(t *testing.T) {
	r := New()
	r.Register(withTier("municipal", boundary.AuthorityMunicipal, boundary.LayerCounty))
	r.Register(withTier("state", boundary.AuthorityState, boundary.LayerCounty))
	r.Register(withTier("federal", boundary.AuthorityFederal, boundary.LayerCounty))

	ranked := r.Candidates(boundary.LayerCounty)
	assert.Len(t, ranked, 3)
	assert.Equal(t, "federal", ranked[0].ID())
	assert.Equal(t, "state", ranked[1].ID())
	assert.Equal(t, "municipal", ranked[2].ID())
}

func TestCandidates_ExcludesUnsupportedLayers(t *testing.T) {
	r := New()
	r.Register(withTier("county-only", boundary.AuthorityFederal, boundary.LayerCounty))
	ranked := r.Candidates(boundary.LayerCongressional)
	assert.Empty(t, ranked)
}
