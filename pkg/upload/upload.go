// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package upload sends settled changes to the indexing backend.
//
// Each classification has its own strategy: binary files are streamed as a
// multipart form, text files are read into memory and posted as JSON, and
// deletions are acknowledged locally without touching the network. An
// Uploader never retries and never returns an error; every attempt is
// reported as an Outcome.
package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/mgrep/pkg/change"
	"github.com/walteh/mgrep/pkg/classify"
	"github.com/walteh/mgrep/pkg/config"
)

const (
	// RouteIndex accepts JSON text documents.
	RouteIndex = "/api/index"
	// RouteIndexFile accepts multipart binary documents.
	RouteIndexFile = "/api/index/file"

	HeaderAPIKey    = "X-API-Key"
	HeaderRequestID = "X-Request-ID"

	// DefaultUserAgent is sent unless WithUserAgent overrides it.
	DefaultUserAgent = "mgrep"

	maxErrorBody = 64 << 10
)

// ErrNotUTF8 is reported for text files whose bytes are not valid UTF-8.
var ErrNotUTF8 = errors.Base("file content is not valid UTF-8")

// 📊 Result is the terminal state of one upload attempt
type Result int

const (
	// Indexed means the backend accepted the document.
	Indexed Result = iota
	// Failed means the attempt ended with an error; it is not retried.
	Failed
	// DeletionNotPropagated means the file was deleted locally but the
	// backend was not told.
	DeletionNotPropagated
)

// String returns a human-readable representation of the result.
func (r Result) String() string {
	switch r {
	case Indexed:
		return "indexed"
	case Failed:
		return "failed"
	case DeletionNotPropagated:
		return "deletion-not-propagated"
	default:
		return "unknown"
	}
}

// 📦 Outcome describes what happened to one settled change
type Outcome struct {
	Change         change.Settled
	Classification classify.Classification
	Result         Result
	HTTPStatus     int // zero when no response was received
	Err            error
	Duration       time.Duration
}

// 🚨 StatusError is a non-2xx response from the backend
type StatusError struct {
	Status int
	Detail string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%d - %s", e.Status, e.Detail)
}

// 🔧 Option configures an Uploader
type Option func(*Uploader)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(c *http.Client) Option {
	return func(u *Uploader) {
		u.client = c
	}
}

// WithTimeout bounds each request, including streaming the request body.
func WithTimeout(d time.Duration) Option {
	return func(u *Uploader) {
		if d > 0 {
			u.timeout = d
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(u *Uploader) {
		if ua != "" {
			u.userAgent = ua
		}
	}
}

// 📤 Uploader posts settled changes to the backend named by its credentials
type Uploader struct {
	creds     config.Credentials
	client    *http.Client
	timeout   time.Duration
	userAgent string
}

// 🏭 New creates an uploader; creds are copied and never modified
func New(creds config.Credentials, opts ...Option) *Uploader {
	u := &Uploader{
		creds:     creds,
		client:    http.DefaultClient,
		timeout:   config.DefaultRequestTimeout,
		userAgent: DefaultUserAgent,
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// 🎯 Upload runs the strategy for class and reports the outcome
func (u *Uploader) Upload(ctx context.Context, s change.Settled, class classify.Classification) Outcome {
	start := time.Now()
	out := Outcome{Change: s, Classification: class}

	switch {
	case s.Kind == change.Deleted:
		out.Result = DeletionNotPropagated
	case class == classify.Binary:
		out.HTTPStatus, out.Err = u.uploadBinary(ctx, s)
	default:
		out.HTTPStatus, out.Err = u.uploadText(ctx, s)
	}

	if s.Kind != change.Deleted {
		if out.Err != nil {
			out.Result = Failed
		} else {
			out.Result = Indexed
		}
	}
	out.Duration = time.Since(start)

	zerolog.Ctx(ctx).Debug().
		Str("path", s.RelativePath).
		Str("kind", s.Kind.String()).
		Str("classification", class.String()).
		Str("result", out.Result.String()).
		Int("status", out.HTTPStatus).
		Dur("duration", out.Duration).
		Err(out.Err).
		Msg("upload finished")

	return out
}

type indexRequest struct {
	ProjectName string `json:"project_name"`
	FilePath    string `json:"file_path"`
	FileContent string `json:"file_content"`
}

func (u *Uploader) uploadText(ctx context.Context, s change.Settled) (int, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return 0, errors.Errorf("reading %s: %w", s.RelativePath, err)
	}
	if !utf8.Valid(data) {
		return 0, errors.Errorf("%s: %w", s.RelativePath, ErrNotUTF8)
	}

	body, err := json.Marshal(indexRequest{
		ProjectName: u.creds.ProjectName,
		FilePath:    s.RelativePath,
		FileContent: string(data),
	})
	if err != nil {
		return 0, errors.Errorf("encoding request: %w", err)
	}

	return u.post(ctx, RouteIndex, "application/json", bytes.NewReader(body))
}

func (u *Uploader) uploadBinary(ctx context.Context, s change.Settled) (int, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return 0, errors.Errorf("opening %s: %w", s.RelativePath, err)
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		defer f.Close()
		pw.CloseWithError(writeForm(mw, u.creds.ProjectName, s.RelativePath, f))
	}()

	status, err := u.post(ctx, RouteIndexFile, mw.FormDataContentType(), pr)
	// unblocks the writer if the transport never consumed the body
	pr.Close()
	return status, err
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func writeForm(mw *multipart.Writer, project, rel string, r io.Reader) error {
	if err := mw.WriteField("project_name", project); err != nil {
		return errors.Errorf("writing project_name: %w", err)
	}

	contentType := mime.TypeByExtension(filepath.Ext(rel))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, quoteEscaper.Replace(rel)))
	h.Set("Content-Type", contentType)

	part, err := mw.CreatePart(h)
	if err != nil {
		return errors.Errorf("creating file part: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return errors.Errorf("streaming %s: %w", rel, err)
	}
	if err := mw.Close(); err != nil {
		return errors.Errorf("closing form: %w", err)
	}
	return nil
}

func (u *Uploader) post(ctx context.Context, route, contentType string, body io.Reader) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.creds.Endpoint(route), body)
	if err != nil {
		return 0, errors.Errorf("creating request: %w", err)
	}

	requestID := uuid.NewString()
	req.Header.Set("Content-Type", contentType)
	req.Header.Set(HeaderAPIKey, u.creds.APIKey)
	req.Header.Set(HeaderRequestID, requestID)
	req.Header.Set("User-Agent", u.userAgent)

	zerolog.Ctx(ctx).Trace().Str("url", req.URL.String()).Str("request_id", requestID).Msg("sending request")

	resp, err := u.client.Do(req)
	if err != nil {
		return 0, errors.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil
	}

	return resp.StatusCode, &StatusError{Status: resp.StatusCode, Detail: errorDetail(resp)}
}

// errorDetail extracts the backend's "detail" field, falling back to the
// status text.
func errorDetail(resp *http.Response) string {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var body struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(raw, &body); err == nil && len(body.Detail) > 0 && string(body.Detail) != "null" {
		var s string
		if err := json.Unmarshal(body.Detail, &s); err == nil {
			if s != "" {
				return s
			}
		} else {
			var compact bytes.Buffer
			if err := json.Compact(&compact, body.Detail); err == nil {
				return compact.String()
			}
			return string(body.Detail)
		}
	}

	return http.StatusText(resp.StatusCode)
}
