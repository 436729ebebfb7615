// Package intent maps free-form user text to a structured intent: a
// target platform, an action tag from a closed per-platform vocabulary,
// and a parameter mapping. The primary path asks the generative-text
// client; a regex fallback guarantees a best-effort result even when the
// model is unavailable.
package intent

// Platform is the closed enumeration of dispatch targets.
type Platform string

const (
	PlatformContentAnalysis      Platform = "content-analysis"
	PlatformRepositoryAutomation Platform = "repository-automation"
	PlatformMarketData           Platform = "market-data"
	PlatformUnrecognized         Platform = "unrecognized"
)

// Repository-automation actions.
const (
	ActionCreateRepository      = "create-repository"
	ActionStarRepository        = "star-repository"
	ActionCreateIssue           = "create-issue"
	ActionListOwnRepositories   = "list-own-repositories"
	ActionListUserRepositories  = "list-user-repositories"
	ActionGetProfile            = "get-profile"
	ActionGetUserProfile        = "get-user-profile"
	ActionGetRepository         = "get-repository"
	ActionListIssues            = "list-issues"
	ActionCreatePullRequest     = "create-pull-request"
	ActionPushFiles             = "push-files"
	ActionGeneric               = "generic-action"
)

// Content-analysis actions.
const (
	ActionAnalyze = "analyze"
)

// Market-data actions.
const (
	ActionGetPrice       = "get-price"
	ActionTopCoins       = "top-coins"
	ActionMarketAnalyze  = "analyze"
	ActionMarketOverview = "market-overview"
)

// validActions is the closed vocabulary per platform. Anything the model
// emits outside this set is rejected at the parse boundary and resolved
// via the fallback path instead of flowing into a dispatcher.
var validActions = map[Platform]map[string]bool{
	PlatformRepositoryAutomation: {
		ActionCreateRepository:     true,
		ActionStarRepository:       true,
		ActionCreateIssue:          true,
		ActionListOwnRepositories:  true,
		ActionListUserRepositories: true,
		ActionGetProfile:           true,
		ActionGetUserProfile:       true,
		ActionGetRepository:        true,
		ActionListIssues:           true,
		ActionCreatePullRequest:    true,
		ActionPushFiles:            true,
		ActionGeneric:              true,
	},
	PlatformContentAnalysis: {
		ActionAnalyze: true,
	},
	PlatformMarketData: {
		ActionGetPrice:       true,
		ActionTopCoins:       true,
		ActionMarketAnalyze:  true,
		ActionMarketOverview: true,
	},
}

// FileSpec is one file in a multi-file push request.
type FileSpec struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// Intent is the classification result for one user turn. Constructed
// once, never mutated, consumed by the dispatcher for that turn only.
type Intent struct {
	Platform   Platform               `json:"platform"`
	Action     string                 `json:"action,omitempty"`
	Parameters map[string]interface{} `json:"parameters,omitempty"`

	// RawQuery retains the original text: reformulation by the model can
	// lose literal tokens (URLs, usernames) needed for dispatch.
	RawQuery string `json:"raw_query"`

	// Fallback marks results produced by the regex path.
	Fallback bool `json:"fallback,omitempty"`
}

// Unrecognized builds the "could not classify" intent for the given text.
func Unrecognized(rawQuery string) Intent {
	return Intent{Platform: PlatformUnrecognized, RawQuery: rawQuery}
}

// StringParam returns a string parameter, tolerating absent keys.
func (in Intent) StringParam(key string) string {
	if in.Parameters == nil {
		return ""
	}
	if v, ok := in.Parameters[key].(string); ok {
		return v
	}
	return ""
}

// BoolParam returns a boolean parameter, tolerating absent keys and
// string renderings of booleans from the model.
func (in Intent) BoolParam(key string) bool {
	if in.Parameters == nil {
		return false
	}
	switch v := in.Parameters[key].(type) {
	case bool:
		return v
	case string:
		return v == "true" || v == "yes"
	}
	return false
}

// Files returns the file list parameter for push actions.
func (in Intent) Files() []FileSpec {
	if in.Parameters == nil {
		return nil
	}
	switch v := in.Parameters["files"].(type) {
	case []FileSpec:
		return v
	case []interface{}:
		files := make([]FileSpec, 0, len(v))
		for _, raw := range v {
			m, ok := raw.(map[string]interface{})
			if !ok {
				continue
			}
			f := FileSpec{}
			if p, ok := m["path"].(string); ok {
				f.Path = p
			}
			if c, ok := m["content"].(string); ok {
				f.Content = c
			}
			if f.Path != "" {
				files = append(files, f)
			}
		}
		return files
	}
	return nil
}

// URLs returns the url list parameter for content analysis.
func (in Intent) URLs() []string {
	if in.Parameters == nil {
		return nil
	}
	switch v := in.Parameters["urls"].(type) {
	case []string:
		return v
	case []interface{}:
		urls := make([]string, 0, len(v))
		for _, raw := range v {
			if s, ok := raw.(string); ok {
				urls = append(urls, s)
			}
		}
		return urls
	}
	return nil
}

// isValidAction reports whether action belongs to the platform's closed set.
func isValidAction(platform Platform, action string) bool {
	set, ok := validActions[platform]
	if !ok {
		return false
	}
	return set[action]
}
