package mineskin

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/osvaldoandrade/skinup/internal/metrics"
	"github.com/osvaldoandrade/skinup/internal/tracing"
	"github.com/osvaldoandrade/skinup/pkg/domain"
)

const (
	DefaultBaseURL   = "https://api.mineskin.org/v2"
	DefaultUserAgent = "MineSkinUploader/1.0"

	maxBodyBytes   = 1 << 20
	excerptBytes   = 256
	imageMediaType = "image/png"
)

type Options struct {
	BaseURL    string
	UserAgent  string
	Visibility string
	Variant    string
	// Name is sent as the optional "name" form field when non-empty.
	Name       string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client talks to the MineSkin v2 API. It keeps no per-request state.
type Client struct {
	baseURL    string
	userAgent  string
	visibility string
	variant    string
	name       string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Visibility == "" {
		opts.Visibility = "public"
	}
	if opts.Variant == "" {
		opts.Variant = "classic"
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		userAgent:  opts.UserAgent,
		visibility: opts.Visibility,
		variant:    opts.Variant,
		name:       opts.Name,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
	}
}

// Submit uploads the PNG at path to POST /generate.
func (c *Client) Submit(ctx context.Context, path string, credential string) (domain.SubmissionResult, error) {
	const op = "submit"

	data, err := os.ReadFile(path)
	if err != nil {
		metrics.RequestsTotal.WithLabelValues(op, string(domain.KindIO)).Inc()
		return domain.SubmissionResult{}, domain.NewError(op, domain.KindIO, err)
	}
	body, contentType, err := c.buildForm(filepath.Base(path), data)
	if err != nil {
		return domain.SubmissionResult{}, domain.NewError(op, domain.KindIO, err)
	}

	ctx, span := tracing.StartClient(ctx, "mineskin.submit", attribute.Int("skinup.file_bytes", len(data)))
	defer span.End()

	status, raw, err := c.do(ctx, op, http.MethodPost, "/generate", credential, body, contentType)
	if err != nil {
		tracing.Finish(span, err)
		return domain.SubmissionResult{}, err
	}
	if status < 200 || status >= 300 {
		err := &domain.Error{Op: op, Kind: domain.KindProtocol, Status: status, Err: fmt.Errorf("unexpected response: %s", excerpt(raw))}
		return domain.SubmissionResult{}, c.finish(span, op, err)
	}
	resp, err := domain.DecodeResponse(raw)
	if err != nil {
		return domain.SubmissionResult{}, c.finish(span, op, domain.NewError(op, domain.KindProtocol, err))
	}
	res, err := resp.Submission()
	if err != nil {
		return domain.SubmissionResult{}, c.finish(span, op, domain.NewError(op, domain.KindProtocol, err))
	}
	span.SetAttributes(attribute.String("skinup.submission", string(res.Kind)))
	tracing.Job(span, res.Job)
	c.finish(span, op, nil)
	return res, nil
}

// Poll checks GET /queue/{id}. A 404 means the service no longer knows the
// job and is reported as a failed outcome rather than an error.
func (c *Client) Poll(ctx context.Context, job domain.JobHandle, credential string) (domain.PollOutcome, error) {
	const op = "poll"

	ctx, span := tracing.StartClient(ctx, "mineskin.poll", tracing.AttrJobID.String(job.String()))
	defer span.End()

	status, raw, err := c.do(ctx, op, http.MethodGet, "/queue/"+url.PathEscape(job.String()), credential, nil, "")
	if err != nil {
		if de, ok := err.(*domain.Error); ok {
			de.Job = job
		}
		tracing.Finish(span, err)
		return domain.PollOutcome{}, err
	}
	switch {
	case status == http.StatusNotFound:
		c.finish(span, op, nil)
		return domain.Failed(fmt.Sprintf("job not found: %s", excerpt(raw))), nil
	case status < 200 || status >= 300:
		err := &domain.Error{Op: op, Kind: domain.KindProtocol, Job: job, Status: status, Err: fmt.Errorf("unexpected response: %s", excerpt(raw))}
		return domain.PollOutcome{}, c.finish(span, op, err)
	}
	resp, err := domain.DecodeResponse(raw)
	if err != nil {
		return domain.PollOutcome{}, c.finish(span, op, &domain.Error{Op: op, Kind: domain.KindProtocol, Job: job, Err: err})
	}
	out := resp.Outcome()
	span.SetAttributes(tracing.AttrPollStatus.String(string(out.Status)))
	c.finish(span, op, nil)
	return out, nil
}

func (c *Client) buildForm(filename string, data []byte) (*bytes.Buffer, string, error) {
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, escapeQuotes(filename)))
	h.Set("Content-Type", imageMediaType)
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(data); err != nil {
		return nil, "", err
	}
	fields := [][2]string{{"visibility", c.visibility}, {"variant", c.variant}}
	if c.name != "" {
		fields = append(fields, [2]string{"name", c.name})
	}
	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf, w.FormDataContentType(), nil
}

// do sends one request and returns the status and (capped) body. Transport
// failures come back as *domain.Error.
func (c *Client) do(ctx context.Context, op, method, path, credential string, body io.Reader, contentType string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, nil, domain.NewError(op, domain.KindNetwork, err)
	}
	req.Header.Set("Authorization", "Bearer "+credential)
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	tracing.InjectHeaders(ctx, req.Header)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.RequestLatencySeconds.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		kind := transportKind(ctx)
		metrics.RequestsTotal.WithLabelValues(op, string(kind)).Inc()
		return 0, nil, domain.NewError(op, kind, err)
	}
	defer resp.Body.Close()

	out, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		kind := transportKind(ctx)
		metrics.RequestsTotal.WithLabelValues(op, string(kind)).Inc()
		return 0, nil, &domain.Error{Op: op, Kind: kind, Status: resp.StatusCode, Err: err}
	}
	c.logger.Debug("mineskin request", "op", op, "method", method, "path", path, "status", resp.StatusCode, "duration", time.Since(start))
	return resp.StatusCode, out, nil
}

// finish counts a request that got a response and closes out its span.
func (c *Client) finish(span trace.Span, op string, err error) error {
	outcome := "ok"
	if err != nil {
		outcome = string(domain.KindOf(err))
	}
	metrics.RequestsTotal.WithLabelValues(op, outcome).Inc()
	tracing.Finish(span, err)
	return err
}

// transportKind distinguishes caller cancellation from plain network errors.
func transportKind(ctx context.Context) domain.ErrorKind {
	switch {
	case errors.Is(ctx.Err(), context.Canceled):
		return domain.KindCanceled
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return domain.KindTimeout
	default:
		return domain.KindNetwork
	}
}

func excerpt(b []byte) string {
	s := strings.TrimSpace(string(b))
	if s == "" {
		return "<empty body>"
	}
	if len(s) > excerptBytes {
		cut := excerptBytes
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		return s[:cut] + "..."
	}
	return s
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
