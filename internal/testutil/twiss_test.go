package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLHCLikeTables(t *testing.T) {
	nominal, bare, matched := LHCLikeTables(t, 2, 5)

	for _, tbl := range []struct {
		label string
		beam  int
	}{{nominal.Label(), nominal.Beam()}, {bare.Label(), bare.Beam()}, {matched.Label(), matched.Beam()}} {
		assert.Equal(t, 2, tbl.beam, tbl.label)
	}
	assert.Equal(t, []string{"nominal", "bare", "matched"}, []string{nominal.Label(), bare.Label(), matched.Label()})

	v, ok := nominal.Scalar("KQX.L5")
	require.True(t, ok)
	assert.Equal(t, NominalTriplet, v)

	_, ok = matched.Scalar("kq4.r5b2")
	assert.True(t, ok)
	assert.Equal(t, 6, bare.Len())
	assert.Equal(t, nominal.Names(), matched.Names())
}
