// Package graph is a small Microsoft Graph OneNote client scoped to one
// signed-in identity.
package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"pkt.systems/pslog"
	"pkt.systems/todosync/schema"
)

const (
	// DefaultBaseURL is the Graph v1.0 endpoint.
	DefaultBaseURL = "https://graph.microsoft.com/v1.0"
	// DefaultTimeout bounds a single Graph request.
	DefaultTimeout = 30 * time.Second

	maxErrorBody = 4 << 10
	maxPages     = 500
)

var (
	// ErrTooManyPages reports a listing that still had a next link after maxPages responses.
	ErrTooManyPages = errors.New("graph listing exceeds page limit")
	// ErrForeignLink reports a next link outside the configured base URL.
	ErrForeignLink = errors.New("graph next link leaves base url")
)

// TokenFunc returns a bearer token for the next request.
type TokenFunc func(ctx context.Context) (string, error)

// Config configures a Client.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client issues OneNote requests on behalf of a single identity.
type Client struct {
	baseURL string
	origin  *url.URL
	http    *http.Client
	token   TokenFunc
	log     pslog.Logger
}

// StatusError reports a non-success Graph response.
type StatusError struct {
	Method  string
	Path    string
	Status  int
	Code    string
	Message string
}

func (e *StatusError) Error() string {
	msg := e.Message
	if e.Code != "" {
		msg = e.Code + ": " + msg
	}
	return fmt.Sprintf("graph %s %s: status %d: %s", e.Method, e.Path, e.Status, strings.TrimSpace(msg))
}

// StatusCode returns the HTTP status of the response.
func (e *StatusError) StatusCode() int { return e.Status }

// RemoteMessage returns the Graph error message, or the raw body.
func (e *StatusError) RemoteMessage() string { return e.Message }

// New constructs a client. token is called once per request.
func New(cfg Config, token TokenFunc, logger pslog.Logger) (*Client, error) {
	if token == nil {
		return nil, errors.New("graph token source is required")
	}
	base := normalizeBaseURL(cfg.BaseURL)
	origin, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("graph base url: %w", err)
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Client{baseURL: base, origin: origin, http: httpClient, token: token, log: logger}, nil
}

func normalizeBaseURL(baseURL string) string {
	base := strings.TrimSpace(baseURL)
	if base == "" {
		base = DefaultBaseURL
	}
	return strings.TrimRight(base, "/")
}

type listEnvelope[T any] struct {
	Value    []T    `json:"value"`
	NextLink string `json:"@odata.nextLink"`
}

type graphErrorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type displayNameBody struct {
	DisplayName string `json:"displayName"`
}

// ListNotebooks lists the user's notebooks.
func (c *Client) ListNotebooks(ctx context.Context) ([]schema.Notebook, error) {
	return list[schema.Notebook](ctx, c, "/me/onenote/notebooks")
}

// ListSections lists the user's sections across all notebooks.
func (c *Client) ListSections(ctx context.Context) ([]schema.Section, error) {
	return list[schema.Section](ctx, c, "/me/onenote/sections")
}

// ListPages lists the user's pages across all sections.
func (c *Client) ListPages(ctx context.Context) ([]schema.Page, error) {
	return list[schema.Page](ctx, c, "/me/onenote/pages")
}

// CreateNotebook creates a notebook named name.
func (c *Client) CreateNotebook(ctx context.Context, name string) (schema.Notebook, error) {
	var out schema.Notebook
	err := c.doJSON(ctx, http.MethodPost, "/me/onenote/notebooks", displayNameBody{DisplayName: name}, &out)
	if err == nil {
		c.log.Info("graph notebook create ok", "notebook", out.ID)
	}
	return out, err
}

// CreateSection creates a section named name in notebook notebookID.
func (c *Client) CreateSection(ctx context.Context, notebookID, name string) (schema.Section, error) {
	var out schema.Section
	path := "/me/onenote/notebooks/" + url.PathEscape(notebookID) + "/sections"
	err := c.doJSON(ctx, http.MethodPost, path, displayNameBody{DisplayName: name}, &out)
	if err == nil {
		c.log.Info("graph section create ok", "section", out.ID, "notebook", notebookID)
	}
	return out, err
}

// CreatePage creates a page in section sectionID from an HTML document.
func (c *Client) CreatePage(ctx context.Context, sectionID, document string) (schema.Page, error) {
	path := "/me/onenote/sections/" + url.PathEscape(sectionID) + "/pages"
	resp, err := c.do(ctx, http.MethodPost, path, "text/html", strings.NewReader(document))
	if err != nil {
		return schema.Page{}, err
	}
	defer resp.Body.Close()
	var out schema.Page
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return schema.Page{}, fmt.Errorf("decode graph page: %w", err)
	}
	c.log.Info("graph page create ok", "page", out.ID, "section", sectionID)
	return out, nil
}

// PageContent returns the HTML content of a page. includeIDs asks Graph to
// annotate elements with their generated ids.
func (c *Client) PageContent(ctx context.Context, pageID string, includeIDs bool) ([]byte, error) {
	path := contentPath(pageID)
	if includeIDs {
		path += "?includeIDs=true"
	}
	resp, err := c.do(ctx, http.MethodGet, path, "", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read graph page content: %w", err)
	}
	return data, nil
}

// PatchPage applies content patch commands to a page.
func (c *Client) PatchPage(ctx context.Context, pageID string, commands []schema.PatchCommand) error {
	body, err := json.Marshal(commands)
	if err != nil {
		return fmt.Errorf("encode patch: %w", err)
	}
	resp, err := c.do(ctx, http.MethodPatch, contentPath(pageID), "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	return nil
}

func contentPath(pageID string) string {
	return "/me/onenote/pages/" + url.PathEscape(pageID) + "/content"
}

func list[T any](ctx context.Context, c *Client, path string) ([]T, error) {
	var out []T
	next := path
	for i := 0; next != "" && i < maxPages; i++ {
		var page listEnvelope[T]
		if err := c.doJSON(ctx, http.MethodGet, next, nil, &page); err != nil {
			return nil, err
		}
		out = append(out, page.Value...)
		next = page.NextLink
	}
	if next != "" {
		return nil, fmt.Errorf("%w: %s after %d responses", ErrTooManyPages, path, maxPages)
	}
	return out, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	contentType := ""
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode graph request: %w", err)
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	}
	resp, err := c.do(ctx, method, path, contentType, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode graph response: %w", err)
	}
	return nil
}

// do sends one request and returns the response for 2xx statuses. path may be
// relative to the base URL or an absolute next link.
func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader) (*http.Response, error) {
	target := path
	if !strings.HasPrefix(path, "https://") && !strings.HasPrefix(path, "http://") {
		target = c.baseURL + path
	} else if err := c.checkOrigin(path); err != nil {
		return nil, err
	}
	token, err := c.token(ctx)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("build graph request: %w", err)
	}
	req.Header.Set("Authorization", "bearer "+token)
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Debug("graph request failed", "method", method, "path", path, "err", err)
		return nil, fmt.Errorf("graph %s %s: %w", method, path, err)
	}
	c.log.Trace("graph request", "method", method, "path", path, "status", resp.StatusCode, "duration_ms", time.Since(started).Milliseconds())
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, readStatusError(method, path, resp)
	}
	return resp, nil
}

// checkOrigin rejects absolute links whose scheme or host differ from the
// base URL, so the bearer token only goes to the configured endpoint.
func (c *Client) checkOrigin(link string) error {
	parsed, err := url.Parse(link)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrForeignLink, err)
	}
	if !strings.EqualFold(parsed.Scheme, c.origin.Scheme) || !strings.EqualFold(parsed.Host, c.origin.Host) {
		return fmt.Errorf("%w: %s://%s", ErrForeignLink, parsed.Scheme, parsed.Host)
	}
	return nil
}

func readStatusError(method, path string, resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	statusErr := &StatusError{Method: method, Path: path, Status: resp.StatusCode}
	var envelope graphErrorEnvelope
	if err := json.Unmarshal(data, &envelope); err == nil && envelope.Error.Message != "" {
		statusErr.Code = envelope.Error.Code
		statusErr.Message = envelope.Error.Message
	} else {
		statusErr.Message = strings.TrimSpace(string(data))
		if statusErr.Message == "" {
			statusErr.Message = http.StatusText(resp.StatusCode)
		}
	}
	return statusErr
}
