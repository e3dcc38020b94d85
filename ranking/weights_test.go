package ranking

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultWeights(t *testing.T) {
	w := DefaultWeights()

	assert.Equal(t, float32(5.11), w.TitleMatch)
	assert.Equal(t, float32(3.27), w.DescriptionMatch)
	assert.Equal(t, float32(0.9652), w.UpdateMatch)
	assert.Equal(t, float32(0.2231), w.DecayRate)
	assert.Equal(t, float32(50), w.RejectPenalty)
	assert.NoError(t, w.Validate())
}

func TestParseWeights(t *testing.T) {
	t.Run("overrides named fields only", func(t *testing.T) {
		w, err := ParseWeights([]byte("title_match: 7.5\ndemo_bonus: 0\n"))
		require.NoError(t, err)

		assert.Equal(t, float32(7.5), w.TitleMatch)
		assert.Equal(t, float32(0), w.DemoBonus)
		assert.Equal(t, float32(3.27), w.DescriptionMatch, "unset fields keep defaults")
	})

	t.Run("empty document yields defaults", func(t *testing.T) {
		w, err := ParseWeights(nil)
		require.NoError(t, err)
		assert.Equal(t, DefaultWeights(), w)
	})

	t.Run("zero divisor is rejected", func(t *testing.T) {
		_, err := ParseWeights([]byte("time_scale: 0\n"))
		assert.ErrorIs(t, err, ErrInvalidWeights)
	})

	t.Run("bad yaml is rejected", func(t *testing.T) {
		_, err := ParseWeights([]byte("title_match: [\n"))
		assert.ErrorIs(t, err, ErrInvalidWeights)
	})
}

func TestLoadWeights_MissingFile(t *testing.T) {
	_, err := LoadWeights(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestWeightsWatcher_ReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "weights.yaml")
	require.NoError(t, os.WriteFile(path, []byte("title_match: 5.11\n"), 0644))

	reloaded := make(chan *Weights, 4)
	watcher, err := NewWeightsWatcher(path, func(w *Weights) { reloaded <- w }, nil)
	require.NoError(t, err)
	watcher.Start()
	defer watcher.Stop()

	require.NoError(t, os.WriteFile(path, []byte("title_match: 9\n"), 0644))

	select {
	case w := <-reloaded:
		assert.Equal(t, float32(9), w.TitleMatch)
	case <-time.After(5 * time.Second):
		t.Fatal("weights were not reloaded")
	}
}

func TestWeightsWatcher_StopIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "weights.yaml")
	watcher, err := NewWeightsWatcher(path, func(*Weights) {}, nil)
	require.NoError(t, err)
	watcher.Start()

	watcher.Stop()
	watcher.Stop()
}
