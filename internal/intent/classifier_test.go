package intent

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubCompleter returns a canned response or error for every call.
type stubCompleter struct {
	response string
	err      error
	calls    int
}

func (s *stubCompleter) CompleteWithSystem(ctx context.Context, system, user string) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

func TestClassifyAcceptsValidGenerativeResult(t *testing.T) {
	stub := &stubCompleter{response: `{
		"platform": "repository-automation",
		"action": "star-repository",
		"parameters": {"owner": "facebook", "repo": "react"}
	}`}
	c := NewClassifier(stub)

	in := c.Classify(context.Background(), "star the repo facebook/react")
	require.Equal(t, PlatformRepositoryAutomation, in.Platform)
	assert.Equal(t, ActionStarRepository, in.Action)
	assert.Equal(t, "facebook", in.StringParam("owner"))
	assert.Equal(t, "react", in.StringParam("repo"))
	assert.Equal(t, "star the repo facebook/react", in.RawQuery)
	assert.False(t, in.Fallback)
}

func TestClassifyStripsCodeFences(t *testing.T) {
	stub := &stubCompleter{response: "```json\n{\"platform\": \"market-data\", \"action\": \"get-price\", \"parameters\": {\"symbols\": \"BTC\"}}\n```"}
	c := NewClassifier(stub)

	in := c.Classify(context.Background(), "bitcoin price please")
	require.Equal(t, PlatformMarketData, in.Platform)
	assert.Equal(t, ActionGetPrice, in.Action)
	assert.Equal(t, "BTC", in.StringParam("symbols"))
}

func TestClassifyRejectsOutOfVocabularyAction(t *testing.T) {
	stub := &stubCompleter{response: `{"platform": "repository-automation", "action": "delete-everything", "parameters": {}}`}
	c := NewClassifier(stub)

	in := c.Classify(context.Background(), "tidy up my github issues")
	// The invented action is discarded and the fallback keyword match
	// takes over.
	require.Equal(t, PlatformRepositoryAutomation, in.Platform)
	assert.Equal(t, ActionGeneric, in.Action)
	assert.True(t, in.Fallback)
}

func TestClassifyFallsBackWhenModelUnavailable(t *testing.T) {
	stub := &stubCompleter{err: errors.New("all models in fallback chain exhausted")}
	c := NewClassifier(stub)

	in := c.Classify(context.Background(), "analyze https://instagram.com/nasa for me")
	require.Equal(t, PlatformContentAnalysis, in.Platform)
	assert.Equal(t, ActionAnalyze, in.Action)
	assert.Equal(t, []string{"https://instagram.com/nasa"}, in.URLs())
	assert.True(t, in.Fallback)
}

func TestClassifyFallsBackOnMalformedJSON(t *testing.T) {
	stub := &stubCompleter{response: "Sure! Here is the classification you asked for."}
	c := NewClassifier(stub)

	in := c.Classify(context.Background(), "what does this even mean")
	assert.Equal(t, PlatformUnrecognized, in.Platform)
	assert.Empty(t, in.Action)
	assert.True(t, in.Fallback)
}

func TestClassifyModelUnrecognizedStillChecksPatterns(t *testing.T) {
	stub := &stubCompleter{response: `{"platform": "unrecognized"}`}
	c := NewClassifier(stub)

	in := c.Classify(context.Background(), "check https://www.instagram.com/p/abc123/")
	require.Equal(t, PlatformContentAnalysis, in.Platform)
	assert.True(t, in.Fallback)
}

func TestClassifyNilChainUsesFallback(t *testing.T) {
	c := NewClassifier(nil)
	in := c.Classify(context.Background(), "show me the top coins")
	assert.Equal(t, PlatformMarketData, in.Platform)
	assert.True(t, in.Fallback)
}

func TestClassifyIdempotentUnderFallback(t *testing.T) {
	stub := &stubCompleter{err: errors.New("offline")}
	c := NewClassifier(stub)

	first := c.Classify(context.Background(), "star my favourite github repo")
	second := c.Classify(context.Background(), "star my favourite github repo")
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("repeated classification diverged (-first +second):\n%s", diff)
	}
}

func TestStripCodeFences(t *testing.T) {
	cases := []struct {
		name, in, want string
	}{
		{"bare json", `{"a":1}`, `{"a":1}`},
		{"fence with tag", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"fence no tag", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"leading whitespace", "  \n```json\n{}\n```\n", "{}"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := stripCodeFences(tc.in); got != tc.want {
				t.Errorf("stripCodeFences(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}
