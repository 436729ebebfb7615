package intent

import (
	"context"
	"encoding/json"
	"strings"

	"switchboard/internal/logging"
)

// Completer is the slice of the generative client the classifier needs.
type Completer interface {
	CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

const classifySystemPrompt = `You are an intent classification engine. Given a user request, respond with a single JSON object and nothing else. No markdown, no commentary.

Schema:
{
  "platform": "content-analysis" | "repository-automation" | "market-data" | "unrecognized",
  "action": "<action tag>",
  "parameters": { ... }
}

Platforms and their action tags:

content-analysis (Instagram profile or post analysis):
  analyze - parameters: {"urls": ["<instagram url>", ...], "quick": true|false}

repository-automation (GitHub operations):
  create-repository      - {"name": "...", "description": "...", "private": true|false}
  star-repository        - {"owner": "...", "repo": "..."}
  create-issue           - {"owner": "...", "repo": "...", "title": "...", "body": "..."}
  list-own-repositories  - {}
  list-user-repositories - {"username": "..."}
  get-profile            - {}
  get-user-profile       - {"username": "..."}
  get-repository         - {"owner": "...", "repo": "..."}
  list-issues            - {"owner": "...", "repo": "..."}
  create-pull-request    - {"owner": "...", "repo": "...", "title": "...", "head": "...", "base": "...", "body": "..."}
  push-files             - {"owner": "...", "repo": "...", "branch": "...", "message": "...", "files": [{"path": "...", "content": "..."}]}
  generic-action         - {} (GitHub-related but none of the above)

market-data (cryptocurrency):
  get-price       - {"symbols": "BTC,ETH"} (comma-separated tickers)
  top-coins       - {"limit": "10"}
  analyze         - {"symbols": "ETH"}
  market-overview - {}

If the request fits no platform, use platform "unrecognized" with no action.
Extract URLs, usernames, repository names and symbols verbatim from the request.`

// Classifier turns raw text into an Intent. Classification never fails:
// when the generative path errors or emits something outside the closed
// vocabulary, the regex fallback supplies the result.
type Classifier struct {
	chain Completer
}

// NewClassifier builds a classifier on top of a generative client.
func NewClassifier(chain Completer) *Classifier {
	return &Classifier{chain: chain}
}

// classifyWire is the shape the model is asked to emit.
type classifyWire struct {
	Platform   string                 `json:"platform"`
	Action     string                 `json:"action"`
	Parameters map[string]interface{} `json:"parameters"`
}

// Classify resolves rawQuery to an intent. The generative result is
// accepted only when both the platform and the action belong to the
// closed vocabulary; everything else falls through to the regex path.
func (c *Classifier) Classify(ctx context.Context, rawQuery string) Intent {
	if c.chain != nil {
		if in, ok := c.classifyGenerative(ctx, rawQuery); ok {
			return in
		}
	}
	logging.Intent("generative classification unavailable, using fallback for: %.80s", rawQuery)
	return FallbackClassify(rawQuery)
}

func (c *Classifier) classifyGenerative(ctx context.Context, rawQuery string) (Intent, bool) {
	raw, err := c.chain.CompleteWithSystem(ctx, classifySystemPrompt, rawQuery)
	if err != nil {
		logging.IntentWarn("classification request failed: %v", err)
		return Intent{}, false
	}

	var wire classifyWire
	if err := json.Unmarshal([]byte(stripCodeFences(raw)), &wire); err != nil {
		logging.IntentWarn("classification response was not valid JSON: %v", err)
		return Intent{}, false
	}

	platform := Platform(wire.Platform)
	if platform == PlatformUnrecognized {
		// The model declining to classify is a valid answer, but the
		// fallback still gets a chance to find a pattern match.
		if fb := FallbackClassify(rawQuery); fb.Platform != PlatformUnrecognized {
			return fb, true
		}
		return Unrecognized(rawQuery), true
	}
	if !isValidAction(platform, wire.Action) {
		logging.IntentWarn("classification produced out-of-vocabulary result %q/%q", wire.Platform, wire.Action)
		return Intent{}, false
	}

	logging.IntentDebug("classified %q as %s/%s", rawQuery, platform, wire.Action)
	return Intent{
		Platform:   platform,
		Action:     wire.Action,
		Parameters: wire.Parameters,
		RawQuery:   rawQuery,
	}, true
}

// stripCodeFences removes a surrounding markdown code fence, with or
// without a language tag, from a model response.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if idx := strings.Index(s, "\n"); idx >= 0 {
		first := strings.TrimSpace(s[:idx])
		// Drop a language tag such as "json" on the fence line.
		if first != "" && !strings.HasPrefix(first, "{") && !strings.HasPrefix(first, "[") {
			s = s[idx+1:]
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
