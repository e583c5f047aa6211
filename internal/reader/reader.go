// Package reader is a client for the reader service API: feed discovery,
// item listing and the tag/note editing calls used for playback.
package reader

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/dghubble/oauth1"

	"feed_playback/internal/model"
)

const (
	defaultBaseURL    = "http://www.google.com/reader/api/0"
	defaultClientName = "feedplayback"
	defaultTimeout    = 10 * time.Second

	// maxItemRefs is the largest item id page the service hands out.
	maxItemRefs = 10000
	maxBodySize = 16 * 1024 * 1024
)

// Config holds the static credentials and identity of the acting user.
type Config struct {
	ConsumerKey    string
	ConsumerSecret string
	AccessToken    string
	AccessSecret   string
	UserID         string
	BaseURL        string
	ClientName     string
	Timeout        time.Duration
}

// StatusError is returned by mutating calls answered with a non-200 status.
type StatusError struct {
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("reader %s: unexpected status %d", e.Path, e.StatusCode)
}

// Option configures a Client.
type Option func(*options)

type options struct {
	base *http.Client
}

// WithHTTPClient sets the client whose transport carries the signed requests.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		o.base = c
	}
}

// Client performs OAuth1-signed calls against the reader API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	clientName string
	userID     string
	log        *slog.Logger
}

// New creates a Client from cfg. Zero-valued optional fields get defaults.
func New(cfg Config, log *slog.Logger, opts ...Option) *Client {
	o := options{base: http.DefaultClient}
	for _, opt := range opts {
		opt(&o)
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.ClientName == "" {
		cfg.ClientName = defaultClientName
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	ctx := context.WithValue(context.Background(), oauth1.HTTPClient, o.base)
	signed := oauth1.NewConfig(cfg.ConsumerKey, cfg.ConsumerSecret).
		Client(ctx, oauth1.NewToken(cfg.AccessToken, cfg.AccessSecret))
	signed.Timeout = cfg.Timeout

	return &Client{
		httpClient: signed,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		clientName: cfg.ClientName,
		userID:     cfg.UserID,
		log:        log,
	}
}

// LabelStreamID returns the stream id of a label owned by the acting user.
func (c *Client) LabelStreamID(label string) string {
	return fmt.Sprintf("user/%s/label/%s", c.userID, label)
}

// FeedStreamID returns the stream id of a feed.
func FeedStreamID(feedURL string) string {
	return "feed/" + feedURL
}

type feedFinderResponse struct {
	Feed []struct {
		Href string `json:"href"`
	} `json:"feed"`
}

// LookupFeedURL resolves a page or feed URL to the canonical URL of its
// first discovered feed.
func (c *Client) LookupFeedURL(ctx context.Context, htmlOrFeedURL string) (string, bool) {
	var resp feedFinderResponse
	if !c.getJSON(ctx, "feed-finder", url.Values{"q": {htmlOrFeedURL}}, &resp) {
		return "", false
	}
	if len(resp.Feed) == 0 || resp.Feed[0].Href == "" {
		return "", false
	}
	return resp.Feed[0].Href, true
}

type streamContentsResponse struct {
	Title string `json:"title"`
}

// LookupFeedTitle returns the title the service has for a feed.
func (c *Client) LookupFeedTitle(ctx context.Context, feedURL string) (string, bool) {
	var resp streamContentsResponse
	if !c.getJSON(ctx, "stream/contents/feed/"+model.QuotePath(feedURL), nil, &resp) {
		return "", false
	}
	if resp.Title == "" {
		return "", false
	}
	return resp.Title, true
}

type itemIDsResponse struct {
	ItemRefs []struct {
		ID            string `json:"id"`
		TimestampUsec string `json:"timestampUsec"`
	} `json:"itemRefs"`
}

// FeedItemRefs lists up to 10000 items of a feed, oldest first. When
// oldestTimestampUsec is positive only items strictly newer than it are
// returned.
func (c *Client) FeedItemRefs(ctx context.Context, feedURL string, oldestTimestampUsec int64) ([]model.ItemRef, bool) {
	params := url.Values{
		"s": {FeedStreamID(feedURL)},
		"n": {strconv.Itoa(maxItemRefs)},
	}
	if oldestTimestampUsec > 0 {
		params.Set("ot", strconv.FormatInt(oldestTimestampUsec/1_000_000, 10))
	}

	var resp itemIDsResponse
	if !c.getJSON(ctx, "stream/items/ids", params, &resp) {
		return nil, false
	}

	refs := make([]model.ItemRef, 0, len(resp.ItemRefs))
	for _, r := range resp.ItemRefs {
		ts, err := strconv.ParseInt(r.TimestampUsec, 10, 64)
		if err != nil {
			c.log.Warn("parse item timestamp", "feed_url", feedURL, "item_id", r.ID, "error", err)
			return nil, false
		}
		// The server-side cutoff has second granularity and lets through
		// items at or just before the bound.
		if oldestTimestampUsec > 0 && ts <= oldestTimestampUsec {
			continue
		}
		refs = append(refs, model.ItemRef{ID: r.ID, TimestampUsec: ts})
	}

	slices.SortStableFunc(refs, func(a, b model.ItemRef) int {
		return cmp.Compare(a.TimestampUsec, b.TimestampUsec)
	})
	return refs, true
}

// Note is an annotated item posted into the service.
type Note struct {
	Title       string
	Body        string
	URL         string
	SourceURL   string
	SourceTitle string
	// Share is sent as the service's share flag; false keeps the note off
	// the acting user's public shared items.
	Share     bool
	StreamIDs []string
}

// CreateNote posts a new note, tagged into n.StreamIDs.
func (c *Client) CreateNote(ctx context.Context, n Note) error {
	params := url.Values{
		"title":   {n.Title},
		"snippet": {n.Body},
		"share":   {strconv.FormatBool(n.Share)},
		"linkify": {"false"},
	}
	if len(n.StreamIDs) > 0 {
		params["tags"] = n.StreamIDs
	}
	if n.URL != "" {
		params.Set("url", n.URL)
	}
	if n.SourceURL != "" {
		params.Set("srcUrl", n.SourceURL)
	}
	if n.SourceTitle != "" {
		params.Set("srcTitle", n.SourceTitle)
	}
	return c.post(ctx, "item/edit", params)
}

// SetStreamPublic toggles the public visibility of a tag stream.
func (c *Client) SetStreamPublic(ctx context.Context, streamID string, public bool) error {
	return c.post(ctx, "tag/edit", url.Values{
		"s":   {streamID},
		"pub": {strconv.FormatBool(public)},
	})
}

// EditItemTags adds and removes tags on an item read from originStreamID.
func (c *Client) EditItemTags(ctx context.Context, itemID, originStreamID string, add, remove []string) error {
	params := url.Values{
		"i": {itemID},
		"s": {originStreamID},
	}
	if len(add) > 0 {
		params["a"] = add
	}
	if len(remove) > 0 {
		params["r"] = remove
	}
	return c.post(ctx, "edit-tag", params)
}

func (c *Client) getJSON(ctx context.Context, path string, params url.Values, v any) bool {
	q := url.Values{"output": {"json"}, "client": {c.clientName}}
	for k, vs := range params {
		q[k] = vs
	}
	endpoint := c.baseURL + "/" + path + "?" + q.Encode()
	c.log.Debug("reader request", "url", endpoint)

	body, status, err := c.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		c.log.Warn("reader request failed", "path", path, "error", err)
		return false
	}
	if status != http.StatusOK {
		c.log.Warn("reader request failed", "path", path, "status", status)
		return false
	}
	if len(body) == 0 {
		return false
	}
	if err := json.Unmarshal(body, v); err != nil {
		c.log.Warn("decode reader response", "path", path, "error", err)
		return false
	}
	return true
}

func (c *Client) postToken(ctx context.Context) (string, error) {
	body, status, err := c.do(ctx, http.MethodGet, c.baseURL+"/token", nil)
	if err != nil {
		return "", fmt.Errorf("get token: %w", err)
	}
	if status != http.StatusOK {
		return "", &StatusError{Path: "token", StatusCode: status, Body: string(body)}
	}
	return strings.TrimSpace(string(body)), nil
}

func (c *Client) post(ctx context.Context, path string, params url.Values) error {
	token, err := c.postToken(ctx)
	if err != nil {
		c.log.Warn("reader post token", "path", path, "error", err)
		return err
	}
	params.Set("T", token)

	endpoint := c.baseURL + "/" + path + "?" + url.Values{"client": {c.clientName}}.Encode()
	body, status, err := c.do(ctx, http.MethodPost, endpoint, params)
	if err != nil {
		c.log.Warn("reader post failed", "path", path, "error", err)
		return fmt.Errorf("post %s: %w", path, err)
	}
	if status != http.StatusOK {
		c.log.Warn("reader post failed", "path", path, "status", status, "body", string(body), "params", redactToken(params))
		return &StatusError{Path: path, StatusCode: status, Body: string(body)}
	}
	return nil
}

// redactToken encodes params for logging without the anti-forgery token.
func redactToken(params url.Values) string {
	logged := maps.Clone(params)
	logged.Del("T")
	return logged.Encode()
}

func (c *Client) do(ctx context.Context, method, endpoint string, form url.Values) ([]byte, int, error) {
	var reqBody io.Reader
	if form != nil {
		reqBody = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("http %s: %w", strings.ToLower(method), err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read body: %w", err)
	}
	return body, resp.StatusCode, nil
}
