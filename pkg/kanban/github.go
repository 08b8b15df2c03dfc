package kanban

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// GitHubProvider maps GitHub Issues onto the kanban Provider interface,
// one of the three named kanban backends in spec.md §1. Labels carry
// status (`status:todo`, `status:in_progress`, ...) and priority
// (`priority:high`, ...) the same way the teacher's tools call out to a
// gateway API with a bearer token (pkg/tools/ops_monitor.go's callAPI) —
// here the bearer token comes from an oauth2.StaticTokenSource instead of
// a fixed gateway key.
type GitHubProvider struct {
	owner, repo string
	client      *http.Client
	baseURL     string
}

// NewGitHubProvider builds a provider authenticated with a personal access
// token (client-credentials style static token source).
func NewGitHubProvider(owner, repo, token string) *GitHubProvider {
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	return &GitHubProvider{
		owner:   owner,
		repo:    repo,
		client:  oauth2.NewClient(context.Background(), src),
		baseURL: "https://api.github.com",
	}
}

type ghIssue struct {
	Number int       `json:"number"`
	Title  string    `json:"title"`
	Body   string    `json:"body"`
	State  string    `json:"state"`
	Labels []ghLabel `json:"labels"`
	Assignee *struct {
		Login string `json:"login"`
	} `json:"assignee"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type ghLabel struct {
	Name string `json:"name"`
}

func (p *GitHubProvider) issuesURL(suffix string) string {
	return fmt.Sprintf("%s/repos/%s/%s/issues%s", p.baseURL, p.owner, p.repo, suffix)
}

func (p *GitHubProvider) do(ctx context.Context, method, url string, body interface{}) (*http.Response, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reqBody = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("Content-Type", "application/json")
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("kanban: github request: %w", err)
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("kanban: github error %d: %s", resp.StatusCode, string(b))
	}
	return resp, nil
}

func (p *GitHubProvider) GetAllTasks(ctx context.Context) ([]Task, error) {
	resp, err := p.do(ctx, http.MethodGet, p.issuesURL("?state=all&per_page=100"), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var issues []ghIssue
	if err := json.NewDecoder(resp.Body).Decode(&issues); err != nil {
		return nil, fmt.Errorf("kanban: decode issues: %w", err)
	}
	out := make([]Task, 0, len(issues))
	for _, iss := range issues {
		out = append(out, issueToTask(iss))
	}
	return out, nil
}

func (p *GitHubProvider) GetTaskByID(ctx context.Context, id string) (Task, error) {
	resp, err := p.do(ctx, http.MethodGet, p.issuesURL("/"+id), nil)
	if err != nil {
		return Task{}, err
	}
	defer resp.Body.Close()

	var iss ghIssue
	if err := json.NewDecoder(resp.Body).Decode(&iss); err != nil {
		return Task{}, fmt.Errorf("kanban: decode issue: %w", err)
	}
	return issueToTask(iss), nil
}

func (p *GitHubProvider) UpdateTask(ctx context.Context, id string, fields UpdateFields) error {
	patch := map[string]interface{}{}
	if fields.Status != nil {
		if *fields.Status == "DONE" {
			patch["state"] = "closed"
		} else {
			patch["state"] = "open"
		}
		patch["labels"] = []string{"status:" + strings.ToLower(*fields.Status)}
	}
	if fields.AssignedTo != nil {
		if *fields.AssignedTo == "" {
			patch["assignees"] = []string{}
		} else {
			patch["assignees"] = []string{*fields.AssignedTo}
		}
	}
	if len(patch) == 0 {
		return nil
	}
	resp, err := p.do(ctx, http.MethodPatch, p.issuesURL("/"+id), patch)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func (p *GitHubProvider) UpdateTaskProgress(ctx context.Context, id string, info ProgressInfo) error {
	return p.AddComment(ctx, id, fmt.Sprintf("progress: %d%% — %s", info.Progress, info.Message))
}

func (p *GitHubProvider) AddComment(ctx context.Context, id string, text string) error {
	resp, err := p.do(ctx, http.MethodPost, p.issuesURL("/"+id+"/comments"), map[string]string{"body": text})
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func issueToTask(iss ghIssue) Task {
	t := Task{
		ID:          strconv.Itoa(iss.Number),
		Name:        iss.Title,
		Description: iss.Body,
		Status:      "TODO",
		Priority:    "MEDIUM",
		CreatedAt:   iss.CreatedAt,
		UpdatedAt:   iss.UpdatedAt,
	}
	if iss.State == "closed" {
		t.Status = "DONE"
		t.Progress = 100
	}
	if iss.Assignee != nil {
		t.AssignedTo = iss.Assignee.Login
	}
	for _, l := range iss.Labels {
		switch {
		case strings.HasPrefix(l.Name, "status:"):
			t.Status = strings.ToUpper(strings.TrimPrefix(l.Name, "status:"))
		case strings.HasPrefix(l.Name, "priority:"):
			t.Priority = strings.ToUpper(strings.TrimPrefix(l.Name, "priority:"))
		case strings.HasPrefix(l.Name, "depends:"):
			t.Dependencies = append(t.Dependencies, strings.TrimPrefix(l.Name, "depends:"))
		default:
			t.Labels = append(t.Labels, l.Name)
		}
	}
	return t
}
