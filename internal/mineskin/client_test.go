package mineskin

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/osvaldoandrade/skinup/pkg/domain"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\nfake-image")

func writeSkin(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "steve.png")
	if err := os.WriteFile(path, pngBytes, 0o600); err != nil {
		t.Fatalf("write skin: %v", err)
	}
	return path
}

func TestSubmitSendsMultipartForm(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v2/generate" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer key-1" {
			t.Errorf("Authorization = %q", got)
		}
		if got := r.Header.Get("User-Agent"); got != DefaultUserAgent {
			t.Errorf("User-Agent = %q", got)
		}
		mr, err := r.MultipartReader()
		if err != nil {
			t.Fatalf("multipart reader: %v", err)
		}
		fields := map[string]string{}
		for {
			p, err := mr.NextPart()
			if err == io.EOF {
				break
			}
			if err != nil {
				t.Fatalf("next part: %v", err)
			}
			b, _ := io.ReadAll(p)
			if p.FormName() == "file" {
				if ct := p.Header.Get("Content-Type"); ct != "image/png" {
					t.Errorf("file part Content-Type = %q", ct)
				}
				if p.FileName() != "steve.png" {
					t.Errorf("file name = %q", p.FileName())
				}
				if string(b) != string(pngBytes) {
					t.Errorf("file content mismatch")
				}
				continue
			}
			fields[p.FormName()] = string(b)
		}
		if fields["visibility"] != "public" || fields["variant"] != "classic" {
			t.Errorf("fields = %v", fields)
		}
		if _, ok := fields["name"]; ok {
			t.Errorf("name field sent without a name")
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"skin":{"texture":{"data":{"value":"T1","signature":"S1"}}}}`)
	}))
	t.Cleanup(srv.Close)

	c := NewClient(Options{BaseURL: srv.URL + "/v2/"})
	res, err := c.Submit(context.Background(), writeSkin(t), "key-1")
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	want := domain.Immediate(domain.Artifact{Texture: "T1", Signature: "S1"})
	if res != want {
		t.Errorf("Submit() = %+v, want %+v", res, want)
	}
}

func TestSubmitSendsOptionalFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if got := r.FormValue("variant"); got != "slim" {
			t.Errorf("variant = %q", got)
		}
		if got := r.FormValue("visibility"); got != "unlisted" {
			t.Errorf("visibility = %q", got)
		}
		if got := r.FormValue("name"); got != "alex" {
			t.Errorf("name = %q", got)
		}
		_, _ = io.WriteString(w, `{"id":"job-42"}`)
	}))
	t.Cleanup(srv.Close)

	c := NewClient(Options{BaseURL: srv.URL, Variant: "slim", Visibility: "unlisted", Name: "alex"})
	res, err := c.Submit(context.Background(), writeSkin(t), "k")
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if res != domain.Deferred("job-42") {
		t.Errorf("Submit() = %+v", res)
	}
}

func TestSubmitMissingFileFailsBeforeNetwork(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	t.Cleanup(srv.Close)

	c := NewClient(Options{BaseURL: srv.URL})
	_, err := c.Submit(context.Background(), filepath.Join(t.TempDir(), "missing.png"), "k")
	if !errors.Is(err, domain.ErrIO) {
		t.Fatalf("Submit() error = %v, want io error", err)
	}
	if atomic.LoadInt32(&hits) != 0 {
		t.Errorf("server hit %d times", hits)
	}
}

func TestSubmitProtocolErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"empty object", http.StatusOK, `{}`},
		{"empty skin", http.StatusOK, `{"skin":{}}`},
		{"skin without signature", http.StatusOK, `{"skin":{"texture":{"data":{"value":"T"}}}}`},
		{"partial skin with id", http.StatusOK, `{"id":"job-1","skin":{"texture":{}}}`},
		{"malformed json", http.StatusOK, `{"skin":`},
		{"html body", http.StatusOK, `<html></html>`},
		{"unauthorized", http.StatusUnauthorized, `{"success":false}`},
		{"server error", http.StatusInternalServerError, ``},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			t.Cleanup(srv.Close)

			c := NewClient(Options{BaseURL: srv.URL})
			_, err := c.Submit(context.Background(), writeSkin(t), "k")
			if !errors.Is(err, domain.ErrProtocol) {
				t.Fatalf("Submit() error = %v, want protocol error", err)
			}
			var de *domain.Error
			if errors.As(err, &de) && tt.status != http.StatusOK && de.Status != tt.status {
				t.Errorf("Status = %d, want %d", de.Status, tt.status)
			}
		})
	}
}

func TestSubmitSkinWinsOverID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"id":"job-7","skin":{"texture":{"data":{"value":"T1","signature":"S1"}}}}`)
	}))
	t.Cleanup(srv.Close)

	c := NewClient(Options{BaseURL: srv.URL})
	res, err := c.Submit(context.Background(), writeSkin(t), "k")
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if res.Kind != domain.SubmissionImmediate {
		t.Fatalf("Kind = %s, want immediate", res.Kind)
	}
	if res.Artifact != (domain.Artifact{Texture: "T1", Signature: "S1"}) {
		t.Errorf("Artifact = %+v", res.Artifact)
	}
}

func TestSubmitNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := NewClient(Options{BaseURL: url})
	_, err := c.Submit(context.Background(), writeSkin(t), "k")
	if !errors.Is(err, domain.ErrNetwork) {
		t.Fatalf("Submit() error = %v, want network error", err)
	}
}

func TestSubmitTransportTimeoutIsNetworkError(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	c := NewClient(Options{BaseURL: srv.URL, HTTPClient: &http.Client{Timeout: 50 * time.Millisecond}})
	_, err := c.Submit(context.Background(), writeSkin(t), "k")
	if !errors.Is(err, domain.ErrNetwork) {
		t.Fatalf("Submit() error = %v, want network error", err)
	}
}

func TestSubmitCanceledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"id":"x"}`)
	}))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := NewClient(Options{BaseURL: srv.URL})
	_, err := c.Submit(ctx, writeSkin(t), "k")
	if !errors.Is(err, domain.ErrCanceled) {
		t.Fatalf("Submit() error = %v, want canceled", err)
	}
}

func TestPoll(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		want        domain.PollStatus
		wantKind    domain.ErrorKind
		wantTexture string
	}{
		{name: "still processing", status: http.StatusOK, body: `{"id":"job 42"}`, want: domain.PollProcessing},
		{name: "resolved", status: http.StatusOK, body: `{"skin":{"texture":{"data":{"value":"T2","signature":"S2"}}}}`, want: domain.PollResolved, wantTexture: "T2"},
		{name: "empty object keeps polling", status: http.StatusOK, body: `{}`, want: domain.PollProcessing},
		{name: "unknown job", status: http.StatusNotFound, body: `{"errors":[]}`, want: domain.PollFailed},
		{name: "malformed", status: http.StatusOK, body: `nope`, wantKind: domain.KindProtocol},
		{name: "rate limited", status: http.StatusTooManyRequests, body: ``, wantKind: domain.KindProtocol},
		{name: "empty skin", status: http.StatusOK, body: `{"id":"job 42","skin":{}}`, wantKind: domain.KindProtocol},
		{name: "skin without value", status: http.StatusOK, body: `{"skin":{"texture":{"data":{"signature":"S"}}}}`, wantKind: domain.KindProtocol},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodGet {
					t.Errorf("method = %s", r.Method)
				}
				if r.URL.EscapedPath() != "/queue/job%2042" {
					t.Errorf("path = %s", r.URL.EscapedPath())
				}
				if got := r.Header.Get("Authorization"); got != "Bearer k" {
					t.Errorf("Authorization = %q", got)
				}
				if !strings.HasPrefix(r.Header.Get("User-Agent"), "MineSkinUploader") {
					t.Errorf("User-Agent = %q", r.Header.Get("User-Agent"))
				}
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			t.Cleanup(srv.Close)

			c := NewClient(Options{BaseURL: srv.URL})
			out, err := c.Poll(context.Background(), "job 42", "k")
			if tt.wantKind != "" {
				if domain.KindOf(err) != tt.wantKind {
					t.Fatalf("Poll() error = %v, want kind %q", err, tt.wantKind)
				}
				var de *domain.Error
				if errors.As(err, &de) && de.Job != "job 42" {
					t.Errorf("Job = %q", de.Job)
				}
				return
			}
			if err != nil {
				t.Fatalf("Poll() error = %v", err)
			}
			if out.Status != tt.want {
				t.Errorf("Status = %s, want %s", out.Status, tt.want)
			}
			if out.Artifact.Texture != tt.wantTexture {
				t.Errorf("Texture = %q, want %q", out.Artifact.Texture, tt.wantTexture)
			}
		})
	}
}

func TestExcerpt(t *testing.T) {
	if got := excerpt(nil); got != "<empty body>" {
		t.Errorf("excerpt(nil) = %q", got)
	}
	long := strings.Repeat("a", excerptBytes+10)
	if got := excerpt([]byte(long)); len(got) != excerptBytes+3 {
		t.Errorf("excerpt(long) length = %d", len(got))
	}

	// "é" is two bytes; the cut lands in the middle of the last one.
	multi := strings.Repeat("a", excerptBytes-1) + strings.Repeat("é", 4)
	got := excerpt([]byte(multi))
	if !utf8.ValidString(got) {
		t.Errorf("excerpt(multi) is not valid UTF-8: %q", got)
	}
	if want := strings.Repeat("a", excerptBytes-1) + "..."; got != want {
		t.Errorf("excerpt(multi) = %q, want %q", got, want)
	}
}
