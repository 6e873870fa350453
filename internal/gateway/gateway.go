package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/textproto"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
)

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 8 << 20

// FilePart is a file sent as a multipart/form-data field.
type FilePart struct {
	Field       string
	Name        string
	ContentType string
	Content     []byte
}

// Request describes one backend call. At most one of JSON and File is set.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	JSON   any
	File   *FilePart
}

func (r Request) op() string {
	return r.Method + " " + r.Path
}

// CredentialJar is the cookie jar the gateway attaches credentials from.
type CredentialJar interface {
	http.CookieJar
	Clear(ctx context.Context) error
}

// Gateway is the sole egress path to the backend. It attaches the session
// cookie to every request, applies one unauthorized-response policy, and
// classifies every failure into the error taxonomy in errors.go.
type Gateway struct {
	cfg      Config
	base     *url.URL
	http     *http.Client
	jar      CredentialJar
	observer Observer

	mu             sync.RWMutex
	onUnauthorized func()
}

// New creates a Gateway for cfg.BaseURL. A nil jar gets an in-memory jar.
func New(cfg Config, jar CredentialJar, observer Observer) (*Gateway, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid API base URL %q", cfg.BaseURL)
	}
	if jar == nil {
		jar, err = NewJar(nil, nil)
		if err != nil {
			return nil, err
		}
	}
	if observer == nil {
		observer = NoopObserver{}
	}
	return &Gateway{
		cfg:  cfg,
		base: base,
		http: &http.Client{
			Jar: jar,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout: 5 * time.Second,
				}).DialContext,
			},
		},
		jar:      jar,
		observer: observer,
	}, nil
}

// OnUnauthorized registers the handler invoked whenever any response is a 401.
// There is exactly one handler; registering again replaces it.
func (g *Gateway) OnUnauthorized(fn func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onUnauthorized = fn
}

// ClearCredentials drops every stored cookie.
func (g *Gateway) ClearCredentials(ctx context.Context) error {
	return g.jar.Clear(ctx)
}

// BaseURL returns the backend base URL.
func (g *Gateway) BaseURL() string {
	return g.base.String()
}

// Do sends req and decodes a successful JSON response into out (which may be nil).
func (g *Gateway) Do(ctx context.Context, req Request, out any) error {
	start := time.Now()
	requestID := uuid.New().String()

	// The ceiling only covers calls that carry no deadline of their own;
	// workflow stages set theirs and may run longer.
	if _, ok := ctx.Deadline(); !ok && g.cfg.TimeoutMs > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(g.cfg.TimeoutMs)*time.Millisecond)
		defer cancel()
	}

	status, err := g.do(ctx, req, requestID, out)

	event := CallEvent{
		Method:    req.Method,
		Path:      req.Path,
		RequestID: requestID,
		Status:    status,
		LatencyMs: time.Since(start).Milliseconds(),
		Success:   err == nil,
	}
	if err != nil {
		event.ErrorKind = KindOf(err).String()
		if IsTimeout(err) {
			event.ErrorKind = "TIMEOUT"
		}
	}
	g.observer.OnCallComplete(event)

	return err
}

func (g *Gateway) do(ctx context.Context, req Request, requestID string, out any) (int, error) {
	op := req.op()

	httpReq, err := g.newHTTPRequest(ctx, req)
	if err != nil {
		return 0, fmt.Errorf("building %s: %w", op, err)
	}
	httpReq.Header.Set("X-Request-ID", requestID)

	httpResp, err := g.http.Do(httpReq)
	if err != nil {
		return 0, transportError(op, err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		return httpResp.StatusCode, transportError(op, err)
	}

	status := httpResp.StatusCode
	switch {
	case status == http.StatusUnauthorized:
		g.unauthorized()
		msg, _ := parseErrorBody(body)
		return status, &Error{Kind: KindUnauthorized, Op: op, Status: status, Message: msg}
	case status >= 400 && status < 500:
		msg, fields := parseErrorBody(body)
		return status, &Error{Kind: KindValidation, Op: op, Status: status, Message: msg, Fields: fields}
	case status >= 500:
		msg, _ := parseErrorBody(body)
		return status, &Error{Kind: KindServer, Op: op, Status: status, Message: msg}
	case status < 200 || status >= 300:
		return status, &Error{Kind: KindServer, Op: op, Status: status, Message: "unexpected response"}
	}

	if out == nil {
		return status, nil
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return status, &Error{Kind: KindServer, Op: op, Status: status, Message: "empty response body"}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return status, &Error{Kind: KindServer, Op: op, Status: status, Message: "malformed response", Err: err}
	}
	return status, nil
}

func (g *Gateway) unauthorized() {
	g.mu.RLock()
	fn := g.onUnauthorized
	g.mu.RUnlock()
	if fn != nil {
		fn()
	}
}

func (g *Gateway) newHTTPRequest(ctx context.Context, req Request) (*http.Request, error) {
	u := g.base.JoinPath(req.Path)
	if len(req.Query) > 0 {
		u.RawQuery = req.Query.Encode()
	}

	var (
		body        io.Reader
		contentType string
	)
	switch {
	case req.File != nil:
		buf, ct, err := encodeMultipart(req.File)
		if err != nil {
			return nil, err
		}
		body, contentType = buf, ct
	case req.JSON != nil:
		data, err := json.Marshal(req.JSON)
		if err != nil {
			return nil, fmt.Errorf("marshaling request: %w", err)
		}
		body, contentType = bytes.NewReader(data), "application/json"
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	if g.cfg.UserAgent != "" {
		httpReq.Header.Set("User-Agent", g.cfg.UserAgent)
	}
	return httpReq, nil
}

func encodeMultipart(f *FilePart) (*bytes.Buffer, string, error) {
	field := f.Field
	if field == "" {
		field = "file"
	}
	ct := f.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}

	buf := new(bytes.Buffer)
	w := multipart.NewWriter(buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, f.Name))
	h.Set("Content-Type", ct)
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("creating multipart part: %w", err)
	}
	if _, err := part.Write(f.Content); err != nil {
		return nil, "", fmt.Errorf("writing multipart part: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("closing multipart writer: %w", err)
	}
	return buf, w.FormDataContentType(), nil
}

// errorBody covers the error envelopes the backend has produced:
// {"detail": "..."}, {"detail": [{"loc": [...], "msg": "..."}]},
// {"error": {"message": "...", "fields": {...}}} and {"message": "..."}.
type errorBody struct {
	Detail  json.RawMessage `json:"detail"`
	Message string          `json:"message"`
	Error   *struct {
		Message string            `json:"message"`
		Fields  map[string]string `json:"fields"`
	} `json:"error"`
}

type detailItem struct {
	Loc []any  `json:"loc"`
	Msg string `json:"msg"`
}

func parseErrorBody(body []byte) (string, map[string]string) {
	var eb errorBody
	if len(body) == 0 || json.Unmarshal(body, &eb) != nil {
		return "", nil
	}

	if eb.Error != nil {
		return eb.Error.Message, eb.Error.Fields
	}

	if len(eb.Detail) > 0 {
		var s string
		if json.Unmarshal(eb.Detail, &s) == nil {
			return s, nil
		}
		var items []detailItem
		if json.Unmarshal(eb.Detail, &items) == nil && len(items) > 0 {
			fields := make(map[string]string, len(items))
			for _, it := range items {
				fields[fieldName(it.Loc)] = it.Msg
			}
			return items[0].Msg, fields
		}
	}

	return eb.Message, nil
}

// fieldName turns a location path like ["body", "email"] into "email".
func fieldName(loc []any) string {
	if len(loc) == 0 {
		return "detail"
	}
	return fmt.Sprint(loc[len(loc)-1])
}
