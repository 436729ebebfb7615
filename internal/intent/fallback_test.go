package intent

import "testing"

func TestFallbackInstagramURLWinsOverKeywords(t *testing.T) {
	// The text also contains "repo" but the URL match takes precedence.
	in := FallbackClassify("compare this repo promo https://instagram.com/somecreator with ours")
	if in.Platform != PlatformContentAnalysis {
		t.Fatalf("platform = %q, want %q", in.Platform, PlatformContentAnalysis)
	}
	urls := in.URLs()
	if len(urls) != 1 || urls[0] != "https://instagram.com/somecreator" {
		t.Errorf("urls = %v", urls)
	}
}

func TestFallbackCollectsMultipleURLs(t *testing.T) {
	in := FallbackClassify("look at https://www.instagram.com/a and https://instagram.com/b/")
	if got := len(in.URLs()); got != 2 {
		t.Errorf("url count = %d, want 2", got)
	}
}

func TestFallbackRepositoryKeywords(t *testing.T) {
	for _, q := range []string{
		"open an Issue about the login bug",
		"star that project on GitHub",
		"how many repositories do I have",
		"fork that project for me",
		"push these changes upstream",
	} {
		in := FallbackClassify(q)
		if in.Platform != PlatformRepositoryAutomation {
			t.Errorf("%q: platform = %q, want repository-automation", q, in.Platform)
		}
		if in.Action != ActionGeneric {
			t.Errorf("%q: action = %q, want generic-action", q, in.Action)
		}
	}
}

func TestFallbackMarketKeywords(t *testing.T) {
	for _, q := range []string{
		"what is the BTC situation today",
		"current crypto market cap",
		"is ethereum up?",
	} {
		in := FallbackClassify(q)
		if in.Platform != PlatformMarketData {
			t.Errorf("%q: platform = %q, want market-data", q, in.Platform)
		}
	}
}

func TestFallbackRepositoryBeatsMarket(t *testing.T) {
	in := FallbackClassify("create a github issue about the bitcoin price tracker")
	if in.Platform != PlatformRepositoryAutomation {
		t.Errorf("platform = %q, want repository-automation", in.Platform)
	}
}

func TestFallbackWholeWordMatchingOnly(t *testing.T) {
	// "starring" must not trip the "star" keyword, "pushy" must not
	// trip "push", "pricey" must not trip "price".
	in := FallbackClassify("she keeps starring in pricey movies with pushy agents")
	if in.Platform != PlatformUnrecognized {
		t.Errorf("platform = %q, want unrecognized", in.Platform)
	}
	if in.Action != "" {
		t.Errorf("action = %q, want empty", in.Action)
	}
}

func TestFallbackUnrecognizedHasNoAction(t *testing.T) {
	in := FallbackClassify("tell me a joke")
	if in.Platform != PlatformUnrecognized || in.Action != "" {
		t.Errorf("got %q/%q, want unrecognized with empty action", in.Platform, in.Action)
	}
	if !in.Fallback {
		t.Error("Fallback flag not set")
	}
}
