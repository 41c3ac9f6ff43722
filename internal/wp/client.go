package wp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
)

const (
	apiRoot  = "/wp-json/wp/v2"
	syncRoot = "/wp-json/wpsync/v1"
)

// ErrNotFound reports that an ID or slug probe matched nothing. Callers use it
// to distinguish "cleanly absent" from a structural failure.
var ErrNotFound = errors.New("not found")

// Credentials is one instance's access bundle: origin URL plus basic-auth
// user and application password.
type Credentials struct {
	URL      string `json:"url"`
	User     string `json:"user"`
	Password string `json:"pwd"`
}

// Origin returns the normalized origin (no trailing slash).
func (c Credentials) Origin() string { return strings.TrimRight(c.URL, "/") }

// Validate reports whether the bundle is complete enough to make a call.
func (c Credentials) Validate() error {
	switch {
	case strings.TrimSpace(c.URL) == "":
		return errors.New("credentials: url missing")
	case strings.TrimSpace(c.User) == "":
		return errors.New("credentials: user missing")
	case strings.TrimSpace(c.Password) == "":
		return errors.New("credentials: password missing")
	}
	return nil
}

// Client talks to one instance's REST surface.
type Client struct {
	http  *http.Client
	creds Credentials
}

// New creates a client with the default retrying transport.
func New(creds Credentials) *Client {
	return NewWithOptions(creds, DefaultTransportOptions())
}

// NewWithOptions creates a client with custom transport options (tests, tuning).
func NewWithOptions(creds Credentials, opts TransportOptions) *Client {
	return &Client{
		http:  &http.Client{Transport: NewRetryingTransport(opts)},
		creds: creds,
	}
}

// Origin returns the instance origin this client points at.
func (c *Client) Origin() string { return c.creds.Origin() }

// Query restricts and projects a collection request.
type Query struct {
	Page    int
	PerPage int
	Fields  []string
	Include []int
	Parent  []int
	Menus   int
	Slug    string
}

func (q Query) encode() url.Values {
	v := url.Values{}
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if q.PerPage > 0 {
		v.Set("per_page", strconv.Itoa(q.PerPage))
	}
	fields := q.Fields
	if len(fields) > 0 {
		v.Set("_fields", strings.Join(fields, ","))
	}
	if len(q.Include) > 0 {
		v.Set("include", joinInts(q.Include))
	}
	if len(q.Parent) > 0 {
		v.Set("parent", joinInts(q.Parent))
	}
	if q.Menus != 0 {
		v.Set("menus", strconv.Itoa(q.Menus))
	}
	if q.Slug != "" {
		v.Set("slug", q.Slug)
	}
	return v
}

func joinInts(ns []int) string {
	parts := make([]string, len(ns))
	for i, n := range ns {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ",")
}

// ListPage fetches a single page of one collection kind. An empty slice means
// the collection is exhausted.
func (c *Client) ListPage(ctx context.Context, kind Kind, q Query) ([]Entity, error) {
	if kind == KindSettings {
		return nil, fmt.Errorf("%s is a singleton, not a collection", kind)
	}
	route, err := RouteFor(kind)
	if err != nil {
		return nil, err
	}
	if len(q.Fields) == 0 {
		q.Fields = DefaultFields(kind)
	}
	u := c.creds.Origin() + apiRoot + "/" + route + "?" + q.encode().Encode()

	var out []Entity
	if err := c.doJSON(ctx, http.MethodGet, u, nil, &out); err != nil {
		// the REST API answers a past-the-end page with a 400 invalid_page_number
		if isPastEndPage(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s.list page %d: %w", kind, q.Page, err)
	}
	return out, nil
}

// isPastEndPage detects the "rest_post_invalid_page_number" answer the API
// gives instead of an empty payload.
func isPastEndPage(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == http.StatusBadRequest &&
		strings.Contains(se.Body, "invalid_page_number")
}

// Get probes one entity by its numeric ID. ErrNotFound means the ID is
// cleanly absent at this instance.
func (c *Client) Get(ctx context.Context, kind Kind, id int) (Entity, error) {
	route, err := RouteFor(kind)
	if err != nil {
		return Entity{}, err
	}
	u := fmt.Sprintf("%s%s/%s/%d?context=edit", c.creds.Origin(), apiRoot, route, id)
	var e Entity
	if err := c.doJSON(ctx, http.MethodGet, u, nil, &e); err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.Code == http.StatusNotFound {
			return Entity{}, ErrNotFound
		}
		return Entity{}, fmt.Errorf("%s.get %d: %w", kind, id, err)
	}
	return e, nil
}

// Create inserts a new entity; the destination assigns the ID.
func (c *Client) Create(ctx context.Context, kind Kind, payload map[string]any) (Entity, error) {
	route, err := RouteFor(kind)
	if err != nil {
		return Entity{}, err
	}
	u := c.creds.Origin() + apiRoot + "/" + route
	var e Entity
	if err := c.doJSON(ctx, http.MethodPost, u, payload, &e); err != nil {
		return Entity{}, fmt.Errorf("%s.create: %w", kind, err)
	}
	return e, nil
}

// Update overwrites an existing entity by ID.
func (c *Client) Update(ctx context.Context, kind Kind, id int, payload map[string]any) (Entity, error) {
	route, err := RouteFor(kind)
	if err != nil {
		return Entity{}, err
	}
	u := fmt.Sprintf("%s%s/%s/%d", c.creds.Origin(), apiRoot, route, id)
	var e Entity
	if err := c.doJSON(ctx, http.MethodPost, u, payload, &e); err != nil {
		return Entity{}, fmt.Errorf("%s.update %d: %w", kind, id, err)
	}
	return e, nil
}

// FindBySlug probes a collection kind by slug; used as the fallback identity
// match when an ID probe misses, and to keep ID-less manifest runs idempotent.
func (c *Client) FindBySlug(ctx context.Context, kind Kind, slug string) ([]Entity, error) {
	return c.ListPage(ctx, kind, Query{Page: 1, PerPage: 10, Slug: slug})
}

// GetSettings fetches the singleton settings record in exactly one request.
func (c *Client) GetSettings(ctx context.Context) (Settings, error) {
	u := c.creds.Origin() + apiRoot + "/settings"
	var s Settings
	if err := c.doJSON(ctx, http.MethodGet, u, nil, &s); err != nil {
		return nil, fmt.Errorf("settings.get: %w", err)
	}
	return s, nil
}

// UpdateSettings patches the singleton settings record.
func (c *Client) UpdateSettings(ctx context.Context, s Settings) (Settings, error) {
	u := c.creds.Origin() + apiRoot + "/settings"
	var out Settings
	if err := c.doJSON(ctx, http.MethodPost, u, s, &out); err != nil {
		return nil, fmt.Errorf("settings.update: %w", err)
	}
	return out, nil
}

// DownloadMedia fetches a binary over the instance's authenticated channel.
// Returns the blob and the Content-Type the server reported.
func (c *Client) DownloadMedia(ctx context.Context, sourceURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return nil, "", err
	}
	req.SetBasicAuth(c.creds.User, c.creds.Password)
	res, err := c.http.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return nil, "", &StatusError{Op: "media.download", Code: res.StatusCode, Body: snippet(res.Body)}
	}
	blob, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, "", err
	}
	return blob, res.Header.Get("Content-Type"), nil
}

// UploadMedia creates a media item from its blob via multipart/form-data,
// carrying title, alt text and date alongside the file part.
func (c *Client) UploadMedia(ctx context.Context, m Media) (Entity, error) {
	if len(m.Blob) == 0 {
		return Entity{}, errors.New("media.upload: empty blob")
	}
	name := m.FileName
	if name == "" {
		name = path.Base(m.SourceURL)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		return Entity{}, err
	}
	if _, err := part.Write(m.Blob); err != nil {
		return Entity{}, err
	}
	writeField := func(k, v string) {
		if v != "" {
			_ = mw.WriteField(k, v)
		}
	}
	writeField("title", m.Title)
	writeField("alt_text", m.AltText)
	writeField("date", m.Date)
	if m.AttachedPost != 0 {
		writeField("post", strconv.Itoa(m.AttachedPost))
	}
	if err := mw.Close(); err != nil {
		return Entity{}, err
	}

	u := c.creds.Origin() + apiRoot + "/media"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(buf.Bytes()))
	if err != nil {
		return Entity{}, err
	}
	req.SetBasicAuth(c.creds.User, c.creds.Password)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))

	res, err := c.http.Do(req)
	if err != nil {
		return Entity{}, err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK && res.StatusCode != http.StatusCreated {
		return Entity{}, &StatusError{Op: "media.upload", Code: res.StatusCode, Body: snippet(res.Body)}
	}
	var e Entity
	if err := json.NewDecoder(res.Body).Decode(&e); err != nil {
		return Entity{}, err
	}
	return e, nil
}

// Remap is the identity side channel: it instructs the companion plugin at the
// destination to reassign a freshly created row to the source's original ID
// (and to reapply menu locations, which can detach on an ID change).
func (c *Client) Remap(ctx context.Context, r RemapRequest) error {
	u := c.creds.Origin() + syncRoot + "/sync"
	if err := c.doJSON(ctx, http.MethodPost, u, r, nil); err != nil {
		return fmt.Errorf("sync.remap %d->%d (%s): %w", r.ID, r.NewID, r.Kind, err)
	}
	return nil
}

// StatusError is a non-2xx REST answer with a short body excerpt.
type StatusError struct {
	Op   string
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s status %d: %s", e.Op, e.Code, e.Body)
}

func snippet(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, 512))
	return strings.TrimSpace(string(b))
}

// doJSON runs one JSON request with basic auth; out may be nil.
func (c *Client) doJSON(ctx context.Context, method, u string, body any, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.creds.User, c.creds.Password)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return &StatusError{Op: method + " " + u, Code: res.StatusCode, Body: snippet(res.Body)}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, res.Body)
		return nil
	}
	return json.NewDecoder(res.Body).Decode(out)
}
