package intent

import (
	"regexp"
	"strings"
)

// The fallback path is pure pattern matching over the raw text. It runs
// when the generative path is down and must always return an intent, so
// matching is deliberately coarse: a URL match wins over keyword
// matches, and repository keywords win over market keywords.

var instagramURLPattern = regexp.MustCompile(`https?://(?:www\.)?instagram\.com/[^\s]+`)

var repositoryKeywords = []string{
	"github", "repo", "repository", "repositories",
	"issue", "issues", "pull request", "commit", "branch", "star",
	"fork", "push",
}

var marketKeywords = []string{
	"price", "crypto", "cryptocurrency", "coin", "coins", "token",
	"bitcoin", "btc", "ethereum", "eth", "market cap",
}

// FallbackClassify classifies rawQuery by regex and keyword matching
// alone. Results carry Fallback=true so dispatchers know parameter
// extraction was shallow.
func FallbackClassify(rawQuery string) Intent {
	if urls := instagramURLPattern.FindAllString(rawQuery, -1); len(urls) > 0 {
		params := map[string]interface{}{"urls": toInterfaceSlice(urls)}
		return Intent{
			Platform:   PlatformContentAnalysis,
			Action:     ActionAnalyze,
			Parameters: params,
			RawQuery:   rawQuery,
			Fallback:   true,
		}
	}

	lower := strings.ToLower(rawQuery)
	if matchesAnyKeyword(lower, repositoryKeywords) {
		return Intent{
			Platform: PlatformRepositoryAutomation,
			Action:   ActionGeneric,
			RawQuery: rawQuery,
			Fallback: true,
		}
	}
	if matchesAnyKeyword(lower, marketKeywords) {
		return Intent{
			Platform: PlatformMarketData,
			Action:   ActionMarketOverview,
			RawQuery: rawQuery,
			Fallback: true,
		}
	}

	in := Unrecognized(rawQuery)
	in.Fallback = true
	return in
}

// matchesAnyKeyword reports whether any keyword appears in text as a
// whole word. Substring matches inside longer words do not count, so
// "starring" does not trip "star".
func matchesAnyKeyword(text string, keywords []string) bool {
	for _, kw := range keywords {
		idx := 0
		for {
			pos := strings.Index(text[idx:], kw)
			if pos < 0 {
				break
			}
			start := idx + pos
			end := start + len(kw)
			if boundaryBefore(text, start) && boundaryAfter(text, end) {
				return true
			}
			idx = start + 1
		}
	}
	return false
}

func boundaryBefore(text string, i int) bool {
	return i == 0 || !isWordByte(text[i-1])
}

func boundaryAfter(text string, i int) bool {
	return i >= len(text) || !isWordByte(text[i])
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9' || b == '_'
}

func toInterfaceSlice(ss []string) []interface{} {
	out := make([]interface{}, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
