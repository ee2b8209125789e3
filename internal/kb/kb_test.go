package kb

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/askwiki/internal/docparse"
	"github.com/starford/askwiki/internal/textnorm"
)

const scenarioHTML = `<h2>Reset password</h2><p>Use the forgot password link on the login page</p>
<h2>Billing cycle</h2><p>Invoices are issued monthly on the first</p>`

const helpdeskHTML = `<html><body>
<h1>Helpdesk</h1>
<h2>Reset password</h2><p>Use the forgot password link on the login page.</p>
<h2>Billing cycle</h2><p>Invoices are issued monthly on the first.</p>
<h2>VPN access</h2><p>Install the client and log in with your domain account. Error 809 means the port is blocked.</p>
<h2>Printer jam</h2><p>Open the tray and remove the stuck paper, then press <b>resume</b>.</p>
<h2>Login page is blank</h2><p>Clear the browser cache and reload the login page.</p>
</body></html>`

func mustBuild(t *testing.T, doc string) *KnowledgeBase {
	t.Helper()
	k, _, err := Build([]byte(doc), BuildOptions{})
	require.NoError(t, err)
	return k
}

func TestScenario_ResetPasswordAndWeather(t *testing.T) {
	k := mustBuild(t, scenarioHTML)
	require.Equal(t, 2, k.Len())

	got := k.Match("How do I reset my password", 0.2)
	require.True(t, got.Found, "got %s", got)
	assert.Equal(t, 1, got.EntryID)
	assert.Greater(t, got.Score, 0.2)
	// reset (tf 1) and password (tf 2) share idf ln 2, so cos = 3 / (sqrt(2) * sqrt(10)).
	assert.InDelta(t, 3/math.Sqrt(20), got.Score, 1e-9)

	assert.Equal(t, NotFound(), k.Match("What is the weather today", 0.2))
}

func TestBuild_EntryFields(t *testing.T) {
	k := mustBuild(t, scenarioHTML)

	e, ok := k.Entry(1)
	require.True(t, ok)
	assert.Equal(t, "Reset password", e.Title)
	assert.Equal(t, "Use the forgot password link on the login page", e.Body)
	assert.Equal(t, []string{"reset", "password", "use", "forgot", "password", "link", "login", "page"}, e.Tokens)
	assert.InDelta(t, 2*math.Ln2, e.TermWeights["password"], 1e-12)
	assert.InDelta(t, math.Ln2, e.TermWeights["reset"], 1e-12)

	assert.Equal(t, 1, k.DocumentFrequency("password"))
	assert.Equal(t, 0, k.DocumentFrequency("weather"))
	assert.Equal(t, 13, k.VocabularySize())
	assert.Len(t, k.Checksum(), 64)

	_, ok = k.Entry(3)
	assert.False(t, ok)
}

func TestBuild_TokenInEveryEntryWeighsZero(t *testing.T) {
	k := mustBuild(t, `<h2>Login page</h2><h2>Billing page</h2>`)
	for _, e := range k.Entries() {
		assert.Zero(t, e.TermWeights["page"], "entry %d", e.ID)
	}
	// "page" alone cannot discriminate, so every entry scores zero.
	got := k.Match("page", 0.01)
	assert.False(t, got.Found)
}

func TestBuild_DropsEntriesWithoutTokens(t *testing.T) {
	k, warnings, err := Build([]byte(`<h2>The</h2><p>a b</p><h2>Reset password</h2><p>now</p>`), BuildOptions{})
	require.NoError(t, err)
	assert.Empty(t, warnings)

	require.Equal(t, 1, k.Len())
	assert.Equal(t, 1, k.Dropped())
	assert.Equal(t, 2, k.Entries()[0].ID, "ids keep document positions")
}

func TestBuild_EmptyKnowledgeBase(t *testing.T) {
	k, warnings, err := Build([]byte(`<p>no headings here</p>`), BuildOptions{})
	require.NoError(t, err)
	require.Len(t, warnings, 1)

	assert.Zero(t, k.Len())
	assert.Equal(t, NotFound(), k.Match("headings", 0))
	assert.Empty(t, k.Rank("headings", 5))
}

func TestBuild_Failure(t *testing.T) {
	_, _, err := Build([]byte{0x00, 0x01, 0x02}, BuildOptions{})
	assert.ErrorIs(t, err, ErrBuildFailure)
	assert.ErrorIs(t, err, docparse.ErrUndecodable)

	_, _, err = Build([]byte(scenarioHTML), BuildOptions{HeadingLevel: 9})
	assert.ErrorIs(t, err, ErrBuildFailure)
}

func TestMatch_EmptyQueryLaw(t *testing.T) {
	k := mustBuild(t, helpdeskHTML)
	for _, q := range []string{"", "   ", "\t\n", "the and of", "?!"} {
		for _, threshold := range []float64{-1, 0, 0.5} {
			assert.Equal(t, NotFound(), k.Match(q, threshold), "query %q threshold %v", q, threshold)
		}
	}
}

func TestMatch_Determinism(t *testing.T) {
	k1 := mustBuild(t, helpdeskHTML)
	k2 := mustBuild(t, helpdeskHTML)

	queries := []string{
		"How do I reset my password",
		"login page blank",
		"vpn error 809",
		"paper stuck in the printer",
		"invoice",
		"nothing relevant",
	}
	for _, q := range queries {
		assert.Equal(t, k1.Match(q, 0.1), k2.Match(q, 0.1), "query %q", q)
		assert.Equal(t, k1.Rank(q, 0), k2.Rank(q, 0), "query %q", q)
	}
	assert.Equal(t, k1.Entries(), k2.Entries())
}

func TestMatch_ThresholdMonotonicity(t *testing.T) {
	k := mustBuild(t, helpdeskHTML)
	thresholds := []float64{0, 0.05, 0.1, 0.2, 0.3, 0.5, 0.7, 0.9, 1}
	queries := []string{"reset password", "login page", "vpn 809", "stuck paper tray", "monthly invoices"}

	for _, q := range queries {
		for i := 0; i < len(thresholds); i++ {
			for j := i + 1; j < len(thresholds); j++ {
				high := k.Match(q, thresholds[j])
				if !high.Found {
					continue
				}
				low := k.Match(q, thresholds[i])
				require.True(t, low.Found, "query %q", q)
				assert.Equal(t, high.EntryID, low.EntryID, "query %q", q)
			}
		}
	}
}

func TestMatch_SelfMatch(t *testing.T) {
	k := mustBuild(t, helpdeskHTML)
	for _, e := range k.Entries() {
		got := k.Match(e.Title, 0)
		require.True(t, got.Found, "title %q", e.Title)
		assert.Equal(t, e.ID, got.EntryID, "title %q", e.Title)

		top := k.Rank(e.Title, 1)
		require.Len(t, top, 1)
		assert.Equal(t, top[0].Score, got.Score)
	}
}

func TestMatch_NumericTokens(t *testing.T) {
	k := mustBuild(t, helpdeskHTML)
	got := k.Match("809", 0.1)
	require.True(t, got.Found)
	e, _ := k.Entry(got.EntryID)
	assert.Equal(t, "VPN access", e.Title)
}

func TestMatch_TieGoesToEarliestEntry(t *testing.T) {
	k := mustBuild(t, `<h2>Alpha</h2><p>beta</p><h2>Alpha</h2><p>beta</p><h2>Gamma</h2><p>delta</p>`)
	got := k.Match("alpha", 0)
	require.True(t, got.Found)
	assert.Equal(t, 1, got.EntryID)

	ranked := k.Rank("alpha beta", 0)
	require.Len(t, ranked, 2)
	assert.Equal(t, []int{1, 2}, []int{ranked[0].EntryID, ranked[1].EntryID})
}

func TestRanksBefore(t *testing.T) {
	tests := []struct {
		name string
		a, b Candidate
		want bool
	}{
		{"higher score wins", Candidate{EntryID: 5, Score: 0.5}, Candidate{EntryID: 1, Score: 0.4, Overlap: 9}, true},
		{"overlap breaks score tie", Candidate{EntryID: 5, Score: 0.5, Overlap: 3}, Candidate{EntryID: 1, Score: 0.5, Overlap: 2}, true},
		{"id breaks full tie", Candidate{EntryID: 1, Score: 0.5, Overlap: 2}, Candidate{EntryID: 5, Score: 0.5, Overlap: 2}, true},
		{"larger id loses full tie", Candidate{EntryID: 5, Score: 0.5, Overlap: 2}, Candidate{EntryID: 1, Score: 0.5, Overlap: 2}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ranksBefore(tt.a, tt.b))
		})
	}
}

func TestRank(t *testing.T) {
	k := mustBuild(t, helpdeskHTML)

	ranked := k.Rank("login page", 0)
	require.Len(t, ranked, 2)
	first, _ := k.Entry(ranked[0].EntryID)
	assert.Equal(t, "Login page is blank", first.Title)
	assert.GreaterOrEqual(t, ranked[0].Score, ranked[1].Score)

	assert.Len(t, k.Rank("login page", 1), 1)
	assert.Empty(t, k.Rank("weather", 0))
}

func TestReload_ReturnsNewSnapshot(t *testing.T) {
	opts := BuildOptions{HeadingLevel: 3, Normalizer: textnorm.New(textnorm.WithMinLength(3))}
	k1, _, err := Build([]byte(`<h3>Reset password</h3><p>old text</p>`), opts)
	require.NoError(t, err)

	k2, _, err := k1.Reload([]byte(`<h3>Reset password</h3><p>new text</p><h3>Billing</h3><p>monthly</p>`))
	require.NoError(t, err)

	assert.Equal(t, 1, k1.Len())
	assert.Equal(t, 2, k2.Len())
	assert.NotEqual(t, k1.Checksum(), k2.Checksum())
	assert.Equal(t, 3, k2.Options().HeadingLevel)
	assert.Same(t, k1.Options().Normalizer, k2.Options().Normalizer)

	e, _ := k1.Entry(1)
	assert.Equal(t, "old text", e.Body)
}

func TestMatchResultString(t *testing.T) {
	assert.Equal(t, "NotFound", NotFound().String())
	assert.Equal(t, "Found(3, 0.5000)", Found(3, 0.5).String())
}

func TestWithGeneration(t *testing.T) {
	k := mustBuild(t, scenarioHTML)
	assert.Zero(t, k.Generation())

	stamped := k.WithGeneration(7)
	assert.Equal(t, int64(7), stamped.Generation())
	assert.Zero(t, k.Generation(), "original snapshot is not modified")
	assert.Equal(t, k.Checksum(), stamped.Checksum())
	assert.Equal(t, k.Match("reset password", 0.2), stamped.Match("reset password", 0.2))
}
