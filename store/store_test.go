package store

import (
	"fmt"
	"sync"
	"testing"

	"github.com/poiesic/projectsearch/core"
	"github.com/poiesic/projectsearch/ranking"
	"github.com/poiesic/projectsearch/storage"
	"github.com/poiesic/projectsearch/vector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func summer(url, name, description string, followers uint16, time uint32) *core.Summer2025Page {
	return &core.Summer2025Page{
		URL:         url,
		Name:        name,
		Description: description,
		Followers:   followers,
		Time:        time,
	}
}

// embedding returns a valid vector pointing mostly along axis.
func embedding(axis int) []float32 {
	v := make([]float32, core.EmbeddingDim)
	for i := range v {
		v[i] = 0.01
	}
	v[axis] = 1
	return v
}

func computed(axis int) *core.ComputedData {
	return &core.ComputedData{Embedding: embedding(axis), AIDescription: 0.5, AICode: 0.25}
}

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := New()
	require.NoError(t, err)
	return s
}

func TestUpsert_NewKeyAppends(t *testing.T) {
	s := newStore(t)

	for i := 0; i < 3; i++ {
		before := s.Len()
		pos, inserted, err := s.Upsert(summer(fmt.Sprintf("u%d", i), "p", "", 0, 0))
		require.NoError(t, err)
		assert.True(t, inserted)
		assert.Equal(t, before, pos)
		assert.Equal(t, before+1, s.Len())
	}
}

func TestUpsert_ExistingKeyOverwritesInPlace(t *testing.T) {
	s := newStore(t)
	_, _, err := s.Upsert(summer("a", "first", "", 0, 0))
	require.NoError(t, err)
	_, _, err = s.Upsert(summer("b", "other", "", 0, 0))
	require.NoError(t, err)
	require.NoError(t, s.Augment(0, computed(0)))

	pos, inserted, err := s.Upsert(summer("a", "second", "", 0, 0))
	require.NoError(t, err)

	assert.False(t, inserted)
	assert.Equal(t, 0, pos)
	assert.Equal(t, 2, s.Len())

	page, cd, err := s.Get(0)
	require.NoError(t, err)
	assert.Equal(t, "second", page.(*core.Summer2025Page).Name)
	assert.Nil(t, cd, "overwrite clears computed data")
}

func TestUpsert_KeysAcrossVariants(t *testing.T) {
	s := newStore(t)
	_, inserted, err := s.Upsert(&core.Journey2025Page{ID: 42})
	require.NoError(t, err)
	assert.True(t, inserted)

	_, inserted, err = s.Upsert(&core.Journey2025Page{ID: 42, Name: "renamed"})
	require.NoError(t, err)
	assert.False(t, inserted)

	pos, ok := s.Lookup("42")
	assert.True(t, ok)
	assert.Equal(t, 0, pos)
}

func TestUpsert_InvalidPage(t *testing.T) {
	s := newStore(t)

	_, _, err := s.Upsert(nil)
	assert.ErrorIs(t, err, core.ErrInvalidPage)

	_, _, err = s.Upsert(&core.Summer2025Page{})
	assert.ErrorIs(t, err, core.ErrInvalidPage)
	assert.Equal(t, 0, s.Len())
}

func TestAugment(t *testing.T) {
	s := newStore(t)
	_, _, err := s.Upsert(summer("a", "p", "", 0, 0))
	require.NoError(t, err)

	t.Run("out of range", func(t *testing.T) {
		assert.ErrorIs(t, s.Augment(1, computed(0)), storage.ErrNotFound)
		assert.ErrorIs(t, s.Augment(-1, computed(0)), storage.ErrNotFound)
	})

	t.Run("wrong dimension", func(t *testing.T) {
		err := s.Augment(0, &core.ComputedData{Embedding: []float32{1, 2, 3}})
		assert.ErrorIs(t, err, core.ErrInvalidComputedData)
	})

	t.Run("stores a copy", func(t *testing.T) {
		cd := computed(3)
		require.NoError(t, s.Augment(0, cd))
		cd.Embedding[3] = 99

		_, got, err := s.Get(0)
		require.NoError(t, err)
		assert.Equal(t, float32(1), got.Embedding[3])
		assert.Empty(t, s.Pending())
	})
}

func TestAugmentIfCurrent(t *testing.T) {
	s := newStore(t)
	original := summer("a", "p", "", 0, 0)
	_, _, err := s.Upsert(original)
	require.NoError(t, err)
	fp := core.FingerprintOf(original)

	_, _, err = s.Upsert(summer("a", "changed", "", 0, 0))
	require.NoError(t, err)

	err = s.AugmentIfCurrent(0, fp, computed(0))
	assert.ErrorIs(t, err, storage.ErrStale)

	page, _, err := s.Get(0)
	require.NoError(t, err)
	require.NoError(t, s.AugmentIfCurrent(0, core.FingerprintOf(page), computed(0)))
	assert.Empty(t, s.Pending())
}

func TestPending(t *testing.T) {
	s := newStore(t)
	for i := 0; i < 4; i++ {
		_, _, err := s.Upsert(summer(fmt.Sprintf("u%d", i), "p", "", 0, 0))
		require.NoError(t, err)
	}
	require.NoError(t, s.Augment(1, computed(0)))

	assert.Equal(t, []int{0, 2, 3}, s.Pending())
}

func TestSearch_RobotSimulatorScenario(t *testing.T) {
	s := newStore(t)
	_, _, err := s.Upsert(summer("https://summer.hackclub.com/projects/7", "robot simulator", "a sand simulator for robots", 10, 5000))
	require.NoError(t, err)

	results := s.Search("simulator", 1)

	require.Len(t, results, 1)
	assert.Equal(t, 0, results[0].ID)
	assert.Equal(t, "https://summer.hackclub.com/projects/7", results[0].Event)
	assert.Equal(t, "robot simulator", results[0].Page.Name)
	assert.Greater(t, results[0].Rank, float32(8.38))
}

func TestSearch_OrderingAndBound(t *testing.T) {
	s := newStore(t)
	// Empty query: scores differ only by popularity and activity.
	followers := []uint16{5, 15, 5, 0, 18, 15}
	for i, f := range followers {
		_, _, err := s.Upsert(summer(fmt.Sprintf("u%d", i), "p", "", f, 2000))
		require.NoError(t, err)
	}

	for k := 0; k <= len(followers)+2; k++ {
		results := s.Search("", k)
		assert.LessOrEqual(t, len(results), k)
		assert.Len(t, results, min(k, len(followers)))
		for i := 1; i < len(results); i++ {
			prev, cur := results[i-1], results[i]
			if prev.Rank == cur.Rank {
				assert.Less(t, prev.ID, cur.ID, "ties broken by ascending position")
			} else {
				assert.Greater(t, prev.Rank, cur.Rank)
			}
		}
	}

	ids := func(rs []core.SearchResult) []int {
		out := make([]int, len(rs))
		for i, r := range rs {
			out[i] = r.ID
		}
		return out
	}
	assert.Equal(t, []int{4, 1, 5, 0, 2, 3}, ids(s.Search("", 10)))
}

func TestSearch_NegativeScoresFiltered(t *testing.T) {
	s := newStore(t)
	_, _, err := s.Upsert(summer("match", "robot arm", "", 0, 2000))
	require.NoError(t, err)
	_, _, err = s.Upsert(summer("miss", "garden planner", "", 0, 2000))
	require.NoError(t, err)

	results := s.Search("robot", 10)
	require.Len(t, results, 1)
	assert.Equal(t, "match", results[0].Event)
	for _, r := range results {
		assert.GreaterOrEqual(t, r.Rank, float32(0))
	}

	all := s.Search("", 10)
	assert.Len(t, all, 2, "empty query is unfiltered")
	for _, r := range all {
		assert.Less(t, r.Rank, float32(0))
	}
}

func TestSearch_WhitespaceQueryIsNotEmpty(t *testing.T) {
	s := newStore(t)
	_, _, err := s.Upsert(summer("summer", "robot arm", "moves things", 30, 9000))
	require.NoError(t, err)
	_, _, err = s.Upsert(&core.Journey2025Page{ID: 1, Name: "old", Followers: 3})
	require.NoError(t, err)

	// Blank input enables the negative-score filter but carries no terms,
	// so every current-schema page takes the relevance penalty and is
	// dropped. Legacy pages ignore the query and still appear.
	results := s.Search("   ", 10)
	require.Len(t, results, 1)
	assert.Equal(t, "1", results[0].Event)

	assert.Len(t, s.Search("", 10), 2, "only the empty string lists everything")
}

func TestSearch_LegacyPages(t *testing.T) {
	s := newStore(t)
	_, _, err := s.Upsert(&core.Journey2025Page{ID: 1, Name: "old", Followers: 3, Stonks: 10})
	require.NoError(t, err)
	_, _, err = s.Upsert(&core.Journey2025Page{ID: 2, Name: "older", Followers: 4})
	require.NoError(t, err)

	results := s.Search("anything", 10)
	require.Len(t, results, 2)
	assert.Equal(t, "1", results[0].Event)
	assert.InDelta(t, 5.0, results[0].Rank, 1e-6)
	assert.Equal(t, "stonks: 10, updates: 0", results[0].Page.Props)
}

func TestSetWeights(t *testing.T) {
	s := newStore(t)
	_, _, err := s.Upsert(summer("a", "robot", "", 0, 2000))
	require.NoError(t, err)
	before := s.Search("robot", 1)[0].Rank

	w := ranking.DefaultWeights()
	w.TitleMatch = 10
	require.NoError(t, s.SetWeights(w))

	after := s.Search("robot", 1)[0].Rank
	assert.InDelta(t, 10-5.11, after-before, 1e-4)

	bad := ranking.DefaultWeights()
	bad.TimeScale = 0
	assert.ErrorIs(t, s.SetWeights(bad), ranking.ErrInvalidWeights)
	assert.Same(t, w, s.Weights())
}

func TestNew_WithWeights(t *testing.T) {
	w := ranking.DefaultWeights()
	w.DemoBonus = 2
	s, err := New(WithWeights(w))
	require.NoError(t, err)
	assert.Same(t, w, s.Weights())

	_, err = New(WithWeights(nil))
	assert.Error(t, err)
}

func TestSimilar(t *testing.T) {
	s := newStore(t)
	for i := 0; i < 4; i++ {
		_, _, err := s.Upsert(summer(fmt.Sprintf("u%d", i), "p", "", 0, 0))
		require.NoError(t, err)
	}
	near := embedding(0)
	near[1] = 0.9
	require.NoError(t, s.Augment(0, computed(0)))
	require.NoError(t, s.Augment(1, &core.ComputedData{Embedding: near}))
	require.NoError(t, s.Augment(2, computed(500)))

	results, err := s.Similar(0, 5)
	require.NoError(t, err)
	require.Len(t, results, 2, "source and records without embeddings are skipped")
	assert.Equal(t, 1, results[0].ID)
	assert.Equal(t, 2, results[1].ID)
	assert.Greater(t, results[0].Rank, results[1].Rank)

	_, err = s.Similar(3, 5)
	assert.ErrorIs(t, err, storage.ErrNoEmbedding)

	_, err = s.Similar(9, 5)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSearchVector(t *testing.T) {
	s := newStore(t)
	for i := 0; i < 3; i++ {
		_, _, err := s.Upsert(summer(fmt.Sprintf("u%d", i), "p", "", 0, 0))
		require.NoError(t, err)
		require.NoError(t, s.Augment(i, computed(i*10)))
	}

	results, err := s.SearchVector(embedding(10), 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 1, results[0].ID)
	assert.InDelta(t, 1.0, results[0].Rank, 1e-5)

	_, err = s.SearchVector([]float32{1, 2}, 1)
	assert.ErrorIs(t, err, vector.ErrDimensionMismatch)
}

func TestConcurrentUpsertsOfDistinctKeys(t *testing.T) {
	s := newStore(t)
	const writers, perWriter = 8, 50

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				_, _, err := s.Upsert(summer(fmt.Sprintf("w%d-%d", w, i), "robot", "", 0, 2000))
				assert.NoError(t, err)
			}
		}(w)
	}
	// Readers run alongside the writers.
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				_ = s.Search("robot", 10)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, writers*perWriter, s.Len())
	seen := make(map[int]bool)
	for w := 0; w < writers; w++ {
		for i := 0; i < perWriter; i++ {
			key := core.UniqueKey(fmt.Sprintf("w%d-%d", w, i))
			pos, ok := s.Lookup(key)
			require.True(t, ok, "key %s missing from index", key)
			page, _, err := s.Get(pos)
			require.NoError(t, err)
			assert.Equal(t, key, page.Key())
			assert.False(t, seen[pos])
			seen[pos] = true
		}
	}
}
