package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaban/mixcore/ids"
	"github.com/shaban/mixcore/profile"
)

func TestLoadMissingFileReturnsFreshProfile(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "profile.json"))
	p, err := s.Load()
	require.NoError(t, err)
	assert.Empty(t, p.Sources)
	assert.Empty(t, p.Targets)
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.json")
	s := New(path)

	p := profile.New()
	id := ids.MustNew()
	p.Sources[id] = &profile.Source{
		Description: profile.Description{ID: id, Name: "Mic"},
		Volumes:     profile.DefaultVolumes(),
		Group:       profile.OrderDefault,
	}
	tgt := ids.MustNew()
	p.Targets[tgt] = &profile.Target{
		Description: profile.Description{ID: tgt, Name: "Speakers"},
		Volume:      100,
		Mix:         profile.MixA,
		Group:       profile.OrderDefault,
	}
	p.Routes[id] = map[ids.ID]struct{}{tgt: {}}
	p.MeteringEnabled = true

	require.NoError(t, s.Save(p))

	loaded, err := s.Load()
	require.NoError(t, err)
	assert.True(t, loaded.MeteringEnabled)
	require.Contains(t, loaded.Sources, id)
	assert.Equal(t, "Mic", loaded.Sources[id].Description.Name)
	assert.True(t, loaded.HasRoute(id, tgt))
}

func TestSaveLeavesNoTempFileBehind(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "profile.json")
	s := New(path)
	require.NoError(t, s.Save(profile.New()))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "profile.json", entries[0].Name())
}
