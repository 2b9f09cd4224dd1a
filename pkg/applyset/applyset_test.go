package applyset

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDataset(t *testing.T) {
	d := NewDataset([]Row{
		{StableID: "u1", LegacyForeignKey: "42"},
		{StableID: "u2", LegacyForeignKey: "43"},
		{StableID: "u1", LegacyForeignKey: "99"},
		{StableID: "", LegacyForeignKey: "7"},
	})

	r, ok := d.Lookup("u1")
	require.True(t, ok)
	assert.Equal(t, "42", r.LegacyForeignKey)

	_, ok = d.Lookup("u3")
	assert.False(t, ok)

	assert.Equal(t, 2, d.Len())
	rows, skipped, dups := d.Stats()
	assert.Equal(t, 4, rows)
	assert.Equal(t, 1, skipped)
	assert.Equal(t, 1, dups)
}

func TestNilDataset(t *testing.T) {
	var d *Dataset
	_, ok := d.Lookup("u1")
	assert.False(t, ok)
	assert.Zero(t, d.Len())
}

func TestLoaders(t *testing.T) {
	ctx := context.Background()

	d, err := Empty{}.Load(ctx)
	require.NoError(t, err)
	assert.Zero(t, d.Len())
	assert.Equal(t, "none", Empty{}.Name())

	d, err = Static{{StableID: "u1", LegacyForeignKey: "42"}}.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, d.Len())

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = Static{}.Load(cancelled)
	assert.ErrorIs(t, err, context.Canceled)
}
