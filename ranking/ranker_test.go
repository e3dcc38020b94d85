package ranking

import (
	"math"
	"strings"
	"testing"

	"github.com/poiesic/projectsearch/core"
	"github.com/stretchr/testify/assert"
)

func strPtr(s string) *string { return &s }

func robotSimulator() *core.Summer2025Page {
	return &core.Summer2025Page{
		URL:         "https://summer.hackclub.com/projects/1",
		Name:        "robot simulator",
		Description: "a sand simulator for robots",
		Followers:   10,
		Time:        5000,
	}
}

func TestScore_SingleTermScenario(t *testing.T) {
	r := NewRanker(nil)
	page := robotSimulator()

	got := r.Score(page, ParseQuery("simulator"), nil)

	// title 5.11 + description 3.27, then length, follower and time bonuses
	expected := 5.11 + 3.27 +
		math.Min(math.Sqrt(27.0/90.0), 1.2) +
		math.Min(10.0/4.5, 4.3) +
		math.Min(5000.0/8000.0, 4.6)
	assert.InDelta(t, expected, got, 1e-4)
	assert.Greater(t, got, float32(0))
}

func TestTermWeight(t *testing.T) {
	r := NewRanker(nil)

	assert.InDelta(t, 1.0, r.TermWeight(0), 1e-6)
	assert.InDelta(t, 0.45+0.55*math.Exp(-0.2231), r.TermWeight(1), 1e-5)
	assert.InDelta(t, 0.45+0.55*math.Exp(-0.2231*5), r.TermWeight(5), 1e-5)

	// Later terms matter less and approach the floor.
	for i := 1; i < 50; i++ {
		assert.Less(t, r.TermWeight(i), r.TermWeight(i-1))
	}
	assert.InDelta(t, 0.45, r.TermWeight(200), 1e-4)
}

func TestScore_TermDecayAcrossTerms(t *testing.T) {
	r := NewRanker(nil)
	page := &core.Summer2025Page{URL: "u", Name: "sand robot", Time: 1000}

	first := r.Score(page, ParseQuery("sand zzz"), nil)
	second := r.Score(page, ParseQuery("zzz sand"), nil)

	// The same match is worth less as the second term.
	assert.InDelta(t, 5.11*(1-r.TermWeight(1)), first-second, 1e-4)
}

func TestScore_SubstringMatchingIsCaseInsensitive(t *testing.T) {
	r := NewRanker(nil)
	page := &core.Summer2025Page{URL: "u", Name: "ROBOTICS Lab", Time: 1000}

	got := r.Score(page, ParseQuery("Robot"), nil)
	assert.InDelta(t, 5.11+1000.0/8000.0, got, 1e-4)
}

func TestScore_HyphensSplitTerms(t *testing.T) {
	r := NewRanker(nil)
	page := &core.Summer2025Page{URL: "u", Name: "robot simulator", Time: 1000}

	hyphenated := r.Score(page, ParseQuery("robot-simulator"), nil)
	spaced := r.Score(page, ParseQuery("robot simulator"), nil)
	assert.Equal(t, spaced, hyphenated)
}

func TestScore_UpdateBonusRequiresRelevance(t *testing.T) {
	r := NewRanker(nil)
	page := &core.Summer2025Page{
		URL:  "u",
		Name: "robot",
		Updates: []core.Update{
			{Message: "Robot arm works"},
			{Message: "new robot legs"},
			{Message: "nothing here"},
		},
	}
	updatesBonus := math.Sqrt(3.0 / 9.0)

	t.Run("relevant page collects devlog bonus", func(t *testing.T) {
		got := r.Score(page, ParseQuery("robot"), nil)
		expected := 5.11 + 2*0.9652 - 1.0 + updatesBonus
		assert.InDelta(t, expected, got, 1e-4)
	})

	t.Run("devlog text alone cannot rescue a page", func(t *testing.T) {
		got := r.Score(page, ParseQuery("arm"), nil)
		expected := -50.0 - 1.0 + updatesBonus
		assert.InDelta(t, expected, got, 1e-4)
		assert.Less(t, got, float32(0))
	})
}

func TestScore_IrrelevantPageIsRejected(t *testing.T) {
	r := NewRanker(nil)
	page := robotSimulator()

	got := r.Score(page, ParseQuery("spaceship"), nil)
	assert.Less(t, got, float32(0))
}

func TestScore_MojibakePenalty(t *testing.T) {
	r := NewRanker(nil)
	clean := &core.Summer2025Page{URL: "a", Description: "foo" + strings.Repeat("x", len("â€”")) + "bar", Time: 1000}
	broken := &core.Summer2025Page{URL: "b", Description: "fooâ€”bar", Time: 1000}
	assert.Equal(t, len(clean.Description), len(broken.Description))

	q := ParseQuery("")
	assert.InDelta(t, 0.8, r.Score(clean, q, nil)-r.Score(broken, q, nil), 1e-4)
}

func TestScore_InactivePenalty(t *testing.T) {
	r := NewRanker(nil)
	q := ParseQuery("")

	idle := r.Score(&core.Summer2025Page{URL: "a", Time: 999}, q, nil)
	active := r.Score(&core.Summer2025Page{URL: "a", Time: 1000}, q, nil)

	timeBonusDelta := 1000.0/8000.0 - 999.0/8000.0
	assert.InDelta(t, 1.0+timeBonusDelta, active-idle, 1e-4)
}

func TestScore_BonusCaps(t *testing.T) {
	r := NewRanker(nil)
	page := &core.Summer2025Page{
		URL:         "u",
		Description: strings.Repeat("x", 1000),
		Followers:   1000,
		Time:        100000,
		Demo:        strPtr("https://demo"),
		Updates:     make([]core.Update, 1000),
	}

	got := r.Score(page, ParseQuery(""), nil)
	expected := -50.0 + 1.2 + 2.3 + 4.3 + 4.6 + 0.85
	assert.InDelta(t, expected, got, 1e-4)
}

func TestScore_DemoBonus(t *testing.T) {
	r := NewRanker(nil)
	without := robotSimulator()
	with := robotSimulator()
	with.Demo = strPtr("https://demo")

	q := ParseQuery("robot")
	assert.InDelta(t, 0.85, r.Score(with, q, nil)-r.Score(without, q, nil), 1e-4)
}

func TestScore_LegacyIgnoresQuery(t *testing.T) {
	r := NewRanker(nil)
	page := &core.Journey2025Page{ID: 1, Name: "robot", Followers: 10, Stonks: 5}

	assert.InDelta(t, 11.0, r.Score(page, ParseQuery(""), nil), 1e-6)
	assert.InDelta(t, 11.0, r.Score(page, ParseQuery("unrelated words"), nil), 1e-6)
}

func TestScore_CustomWeights(t *testing.T) {
	w := DefaultWeights()
	w.TitleMatch = 10
	custom := NewRanker(w)
	standard := NewRanker(nil)
	page := robotSimulator()

	q := ParseQuery("simulator")
	assert.InDelta(t, 10-5.11, custom.Score(page, q, nil)-standard.Score(page, q, nil), 1e-4)
}

func TestParseQuery(t *testing.T) {
	q := ParseQuery("  Sand-Box  ROBOT ")
	assert.Equal(t, []string{"sand", "box", "robot"}, q.Terms)
	assert.False(t, q.IsEmpty())

	empty := ParseQuery("")
	assert.True(t, empty.IsEmpty())
	assert.Empty(t, empty.Terms)

	blank := ParseQuery("   ")
	assert.False(t, blank.IsEmpty(), "only the empty string bypasses filtering")
	assert.Empty(t, blank.Terms)
}
