package content

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"switchboard/internal/intent"
	"switchboard/internal/logging"
	"switchboard/internal/types"
)

// Completer is the slice of the generative client used for reports.
type Completer interface {
	CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

const fullReportPrompt = `You are a social media analyst. Given engagement metrics for one or more Instagram posts as JSON, write a markdown report: an overall assessment, per-post highlights, and two or three concrete observations about engagement. Be specific with numbers. Do not invent data that is not in the input.`

const quickSummaryPrompt = `You are a social media analyst. Given engagement metrics for one or more Instagram posts as JSON, write a two-sentence summary of how the content is performing. Be specific with numbers. Do not invent data that is not in the input.`

// Dispatcher executes content-analysis intents.
type Dispatcher struct {
	scraper *Scraper
	chain   Completer
}

// NewDispatcher wires the scraper and the report generator together.
func NewDispatcher(scraper *Scraper, chain Completer) *Dispatcher {
	return &Dispatcher{scraper: scraper, chain: chain}
}

// Dispatch scrapes every URL in the intent and renders a report. Partial
// scrape failures are reported inline; the dispatch fails only when no
// URL yields metrics.
func (d *Dispatcher) Dispatch(ctx context.Context, in intent.Intent) types.ActionResult {
	urls := in.URLs()
	if len(urls) == 0 {
		return types.Failed("no content URLs found in the request; include a full instagram.com link")
	}
	logging.Content("analyzing %d url(s)", len(urls))

	var collected []*PostMetrics
	var failures []string
	for _, u := range urls {
		metrics, err := d.scraper.Scrape(ctx, u)
		if err != nil {
			logging.ContentWarn("scrape of %s failed: %v", u, err)
			failures = append(failures, fmt.Sprintf("%s: %v", u, err))
			continue
		}
		collected = append(collected, metrics)
	}
	if len(collected) == 0 {
		return types.Failed(fmt.Sprintf("could not retrieve any content data: %s", strings.Join(failures, "; ")))
	}

	summary := d.report(ctx, collected, in.BoolParam("quick"))
	if len(failures) > 0 {
		summary += fmt.Sprintf("\n\n_%d of %d URLs could not be analyzed._", len(failures), len(urls))
	}
	if anyDegraded(collected) {
		summary += "\n\n_Some metrics were recovered from page markup and may be incomplete (view counts unavailable)._"
	}
	return types.OK(in.Action, summary, collected)
}

// report renders metrics through the generative client, or as a plain
// table when the client is unavailable.
func (d *Dispatcher) report(ctx context.Context, metrics []*PostMetrics, quick bool) string {
	if d.chain != nil {
		prompt := fullReportPrompt
		if quick {
			prompt = quickSummaryPrompt
		}
		// The raw actor payload stays out of the prompt; only the typed
		// metric fields go in.
		data, err := json.Marshal(metrics)
		if err == nil {
			text, genErr := d.chain.CompleteWithSystem(ctx, prompt, string(data))
			if genErr == nil && strings.TrimSpace(text) != "" {
				return strings.TrimSpace(text)
			}
			if genErr != nil {
				logging.ContentWarn("report generation failed, using plain rendering: %v", genErr)
			}
		}
	}
	return renderPlain(metrics)
}

func renderPlain(metrics []*PostMetrics) string {
	var b strings.Builder
	b.WriteString("Engagement metrics:\n")
	for _, m := range metrics {
		fmt.Fprintf(&b, "- %s", m.URL)
		if m.Username != "" {
			fmt.Fprintf(&b, " (@%s)", m.Username)
		}
		fmt.Fprintf(&b, ": %d likes, %d comments", m.Likes, m.Comments)
		if m.Views > 0 {
			fmt.Fprintf(&b, ", %d views", m.Views)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func anyDegraded(metrics []*PostMetrics) bool {
	for _, m := range metrics {
		if m.Degraded {
			return true
		}
	}
	return false
}
