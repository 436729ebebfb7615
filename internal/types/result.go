// Package types holds the shared records exchanged between the intent
// classifier, the platform dispatchers, and the presentation layer.
package types

// Outcome is the three-way result of a dispatch call. Every dispatch
// resolves to exactly one outcome; the presentation layer renders all
// three uniformly without knowing which platform or action ran.
type Outcome string

const (
	OutcomeOK                 Outcome = "ok"
	OutcomeNeedsAuthorization Outcome = "needs_authorization"
	OutcomeFailed             Outcome = "failed"
)

// ActionResult is the uniform envelope returned by every dispatcher.
// It is constructed once per dispatch and never mutated afterwards.
type ActionResult struct {
	Outcome Outcome `json:"outcome"`

	// Action is the action tag that ran (set for ok results).
	Action string `json:"action,omitempty"`

	// Summary is a human-readable, markdown-friendly account of what
	// happened (set for ok results).
	Summary string `json:"summary,omitempty"`

	// Payload carries the raw structured data from the provider as an
	// opaque passthrough. Dispatchers never branch on it.
	Payload interface{} `json:"payload,omitempty"`

	// AuthURL is the authorization URL to present to the caller
	// (set for needs_authorization results).
	AuthURL string `json:"auth_url,omitempty"`

	// Err is the failure message (set for failed results).
	Err string `json:"error,omitempty"`
}

// OK builds a successful result.
func OK(action, summary string, payload interface{}) ActionResult {
	return ActionResult{
		Outcome: OutcomeOK,
		Action:  action,
		Summary: summary,
		Payload: payload,
	}
}

// NeedsAuthorization builds an authorization-required result carrying the
// URL the caller should present to connect the account.
func NeedsAuthorization(authURL string) ActionResult {
	return ActionResult{
		Outcome: OutcomeNeedsAuthorization,
		AuthURL: authURL,
	}
}

// Failed builds an error result with a descriptive message.
func Failed(msg string) ActionResult {
	return ActionResult{
		Outcome: OutcomeFailed,
		Err:     msg,
	}
}

// FileWriteResult records the outcome of a single file in a multi-file
// push. The dispatcher preserves input order, one entry per file.
type FileWriteResult struct {
	Path    string `json:"path"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}
