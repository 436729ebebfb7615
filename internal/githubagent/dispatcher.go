package githubagent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"switchboard/internal/auth"
	"switchboard/internal/intent"
	"switchboard/internal/logging"
	"switchboard/internal/types"
)

// Dispatcher executes repository-automation intents. It owns the gating
// decision (which actions may run without a credential), parameter
// validation, and the credential lifecycle on provider rejection.
type Dispatcher struct {
	client *Client
	oauth  *OAuthFlow
	store  auth.Store
}

// NewDispatcher wires the API client, the OAuth flow, and the credential
// store together.
func NewDispatcher(client *Client, oauth *OAuthFlow, store auth.Store) *Dispatcher {
	return &Dispatcher{client: client, oauth: oauth, store: store}
}

// ungated actions run without a stored credential.
var ungated = map[string]bool{
	intent.ActionListUserRepositories: true,
	intent.ActionGetUserProfile:       true,
}

// Dispatch runs one repository-automation intent for the given identity.
func (d *Dispatcher) Dispatch(ctx context.Context, identity string, in intent.Intent) types.ActionResult {
	logging.GitHub("dispatching %s for identity %s", in.Action, identity)

	var token string
	if !ungated[in.Action] {
		cred, ok := d.store.Get(identity)
		if !ok {
			logging.GitHub("action %s requires authorization, identity %s has no credential", in.Action, identity)
			return types.NeedsAuthorization(d.oauth.AuthorizationURL())
		}
		token = cred.AccessToken
	}

	result := d.execute(ctx, token, in)
	if result.Outcome == types.OutcomeFailed && strings.Contains(result.Err, ErrCredentialInvalid.Error()) {
		// Provider rejected the token. Drop it so the next attempt asks
		// the user to reconnect instead of failing the same way.
		logging.GitHubWarn("removing invalid credential for identity %s", identity)
		d.store.Remove(identity)
		return types.NeedsAuthorization(d.oauth.AuthorizationURL())
	}
	return result
}

func (d *Dispatcher) execute(ctx context.Context, token string, in intent.Intent) types.ActionResult {
	switch in.Action {
	case intent.ActionCreateRepository:
		return d.createRepository(ctx, token, in)
	case intent.ActionStarRepository:
		return d.starRepository(ctx, token, in)
	case intent.ActionCreateIssue:
		return d.createIssue(ctx, token, in)
	case intent.ActionListOwnRepositories:
		return d.listOwnRepositories(ctx, token)
	case intent.ActionListUserRepositories:
		return d.listUserRepositories(ctx, in)
	case intent.ActionGetProfile:
		return d.getProfile(ctx, token)
	case intent.ActionGetUserProfile:
		return d.getUserProfile(ctx, in)
	case intent.ActionGetRepository:
		return d.getRepository(ctx, token, in)
	case intent.ActionListIssues:
		return d.listIssues(ctx, token, in)
	case intent.ActionCreatePullRequest:
		return d.createPullRequest(ctx, token, in)
	case intent.ActionPushFiles:
		return d.pushFiles(ctx, token, in)
	case intent.ActionGeneric:
		return types.Failed("I understood this as a GitHub request but could not map it to a supported operation. Try rephrasing with a concrete action, for example \"star facebook/react\" or \"create an issue in owner/repo\".")
	default:
		return types.Failed(fmt.Sprintf("unsupported repository action %q", in.Action))
	}
}

// requireParams checks that every named parameter is present and
// non-empty, returning a user-facing message naming the missing ones.
func requireParams(in intent.Intent, names ...string) (map[string]string, string) {
	values := make(map[string]string, len(names))
	var missing []string
	for _, name := range names {
		v := strings.TrimSpace(in.StringParam(name))
		if v == "" {
			missing = append(missing, name)
			continue
		}
		values[name] = v
	}
	if len(missing) > 0 {
		return nil, fmt.Sprintf("missing required parameter(s): %s", strings.Join(missing, ", "))
	}
	return values, ""
}

func failedCall(action string, err error) types.ActionResult {
	logging.GitHubError("%s failed: %v", action, err)
	return types.Failed(fmt.Sprintf("%s failed: %v", action, err))
}

func (d *Dispatcher) createRepository(ctx context.Context, token string, in intent.Intent) types.ActionResult {
	p, msg := requireParams(in, "name")
	if msg != "" {
		return types.Failed(msg)
	}
	repo, err := d.client.CreateRepository(ctx, token, p["name"], in.StringParam("description"), in.BoolParam("private"))
	if err != nil {
		return failedCall(in.Action, err)
	}
	visibility := "public"
	if repo.Private {
		visibility = "private"
	}
	summary := fmt.Sprintf("Created %s repository **%s**: %s", visibility, repo.FullName, repo.HTMLURL)
	return types.OK(in.Action, summary, repo)
}

func (d *Dispatcher) starRepository(ctx context.Context, token string, in intent.Intent) types.ActionResult {
	p, msg := requireParams(in, "owner", "repo")
	if msg != "" {
		return types.Failed(msg)
	}
	if err := d.client.StarRepository(ctx, token, p["owner"], p["repo"]); err != nil {
		return failedCall(in.Action, err)
	}
	return types.OK(in.Action, fmt.Sprintf("Starred **%s/%s**", p["owner"], p["repo"]), nil)
}

func (d *Dispatcher) createIssue(ctx context.Context, token string, in intent.Intent) types.ActionResult {
	p, msg := requireParams(in, "owner", "repo", "title")
	if msg != "" {
		return types.Failed(msg)
	}
	issue, err := d.client.CreateIssue(ctx, token, p["owner"], p["repo"], p["title"], in.StringParam("body"))
	if err != nil {
		return failedCall(in.Action, err)
	}
	summary := fmt.Sprintf("Opened issue #%d in %s/%s: %s", issue.Number, p["owner"], p["repo"], issue.HTMLURL)
	return types.OK(in.Action, summary, issue)
}

func (d *Dispatcher) listOwnRepositories(ctx context.Context, token string) types.ActionResult {
	repos, err := d.client.ListOwnRepositories(ctx, token)
	if err != nil {
		return failedCall(intent.ActionListOwnRepositories, err)
	}
	return types.OK(intent.ActionListOwnRepositories, formatRepoList("Your repositories", repos), repos)
}

func (d *Dispatcher) listUserRepositories(ctx context.Context, in intent.Intent) types.ActionResult {
	p, msg := requireParams(in, "username")
	if msg != "" {
		return types.Failed(msg)
	}
	repos, err := d.client.ListUserRepositories(ctx, p["username"])
	if err != nil {
		return failedCall(in.Action, err)
	}
	title := fmt.Sprintf("Public repositories of %s", p["username"])
	return types.OK(in.Action, formatRepoList(title, repos), repos)
}

func (d *Dispatcher) getProfile(ctx context.Context, token string) types.ActionResult {
	u, err := d.client.GetProfile(ctx, token)
	if err != nil {
		return failedCall(intent.ActionGetProfile, err)
	}
	return types.OK(intent.ActionGetProfile, formatProfile(u), u)
}

func (d *Dispatcher) getUserProfile(ctx context.Context, in intent.Intent) types.ActionResult {
	p, msg := requireParams(in, "username")
	if msg != "" {
		return types.Failed(msg)
	}
	u, err := d.client.GetUserProfile(ctx, p["username"])
	if err != nil {
		return failedCall(in.Action, err)
	}
	return types.OK(in.Action, formatProfile(u), u)
}

func (d *Dispatcher) getRepository(ctx context.Context, token string, in intent.Intent) types.ActionResult {
	p, msg := requireParams(in, "owner", "repo")
	if msg != "" {
		return types.Failed(msg)
	}
	repo, err := d.client.GetRepository(ctx, token, p["owner"], p["repo"])
	if err != nil {
		return failedCall(in.Action, err)
	}
	summary := fmt.Sprintf("**%s** (%s)\n%s\n⭐ %d | forks %d | open issues %d\n%s",
		repo.FullName, repo.Language, repo.Description, repo.Stars, repo.Forks, repo.OpenIssues, repo.HTMLURL)
	return types.OK(in.Action, summary, repo)
}

func (d *Dispatcher) listIssues(ctx context.Context, token string, in intent.Intent) types.ActionResult {
	p, msg := requireParams(in, "owner", "repo")
	if msg != "" {
		return types.Failed(msg)
	}
	issues, err := d.client.ListIssues(ctx, token, p["owner"], p["repo"])
	if err != nil {
		return failedCall(in.Action, err)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Open issues in %s/%s (%d):\n", p["owner"], p["repo"], len(issues))
	for _, issue := range issues {
		fmt.Fprintf(&b, "- #%d %s\n", issue.Number, issue.Title)
	}
	return types.OK(in.Action, b.String(), issues)
}

func (d *Dispatcher) createPullRequest(ctx context.Context, token string, in intent.Intent) types.ActionResult {
	p, msg := requireParams(in, "owner", "repo", "title", "head", "base")
	if msg != "" {
		return types.Failed(msg)
	}
	pr, err := d.client.CreatePullRequest(ctx, token, p["owner"], p["repo"], p["title"], p["head"], p["base"], in.StringParam("body"))
	if err != nil {
		return failedCall(in.Action, err)
	}
	summary := fmt.Sprintf("Opened pull request #%d in %s/%s: %s", pr.Number, p["owner"], p["repo"], pr.HTMLURL)
	return types.OK(in.Action, summary, pr)
}

// pushFiles writes each requested file in input order. A failing file
// does not stop the remaining ones; the per-file outcomes are reported
// together. A credential rejection stops immediately so the dispatcher
// can reset the authorization state.
func (d *Dispatcher) pushFiles(ctx context.Context, token string, in intent.Intent) types.ActionResult {
	p, msg := requireParams(in, "owner", "repo", "message")
	if msg != "" {
		return types.Failed(msg)
	}
	files := in.Files()
	if len(files) == 0 {
		return types.Failed("missing required parameter(s): files")
	}
	branch := in.StringParam("branch")

	results := make([]types.FileWriteResult, 0, len(files))
	succeeded := 0
	for _, f := range files {
		err := d.client.PutFile(ctx, token, p["owner"], p["repo"], branch, f.Path, p["message"], f.Content)
		if err != nil {
			if errors.Is(err, ErrCredentialInvalid) {
				return failedCall(in.Action, err)
			}
			logging.GitHubWarn("push of %s failed: %v", f.Path, err)
			results = append(results, types.FileWriteResult{Path: f.Path, Success: false, Error: err.Error()})
			continue
		}
		succeeded++
		results = append(results, types.FileWriteResult{Path: f.Path, Success: true})
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Pushed %d/%d files to %s/%s:\n", succeeded, len(files), p["owner"], p["repo"])
	for _, r := range results {
		if r.Success {
			fmt.Fprintf(&b, "- ✅ %s\n", r.Path)
		} else {
			fmt.Fprintf(&b, "- ❌ %s: %s\n", r.Path, r.Error)
		}
	}
	return types.OK(in.Action, b.String(), results)
}

func formatRepoList(title string, repos []Repository) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%d):\n", title, len(repos))
	for _, r := range repos {
		line := "- **" + r.FullName + "**"
		if r.Description != "" {
			line += " - " + r.Description
		}
		fmt.Fprintf(&b, "%s (⭐ %d)\n", line, r.Stars)
	}
	return b.String()
}

func formatProfile(u *User) string {
	name := u.Name
	if name == "" {
		name = u.Login
	}
	var b strings.Builder
	fmt.Fprintf(&b, "**%s** (@%s)\n", name, u.Login)
	if u.Bio != "" {
		fmt.Fprintf(&b, "%s\n", u.Bio)
	}
	fmt.Fprintf(&b, "Public repos: %d | Followers: %d | Following: %d\n%s",
		u.PublicRepos, u.Followers, u.Following, u.HTMLURL)
	return b.String()
}
