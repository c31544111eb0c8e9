// Package client implements the authenticated HTTP client for the remote
// analysis service.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gpas-dev/gpas-go/internal/config"
)

// Options configures a Client. Zero values fall back to sensible defaults;
// Token may be nil for clients that only build requests never sent (tests).
type Options struct {
	Environment config.Environment
	// Endpoints overrides the environment's URL prefixes when non-nil.
	Endpoints *config.Endpoints
	Token     *config.Token
	Timeout   time.Duration
	Retry     RetryPolicy
	Fanout    int
	Logger    *slog.Logger
}

// Client talks to one environment of the remote service. Safe for
// concurrent use.
type Client struct {
	endpoints  config.Endpoints
	token      string
	httpClient *http.Client
	retry      RetryPolicy
	fanout     int
	logger     *slog.Logger
}

// New creates a client for the given environment and credential.
func New(opts Options) *Client {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	retry := opts.Retry
	if retry.MaxAttempts == 0 {
		retry = DefaultRetryPolicy()
	}
	if retry.Retryable == nil {
		retry.Retryable = DefaultRetryable
	}
	fanout := opts.Fanout
	if fanout == 0 {
		fanout = 10
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	var token string
	if opts.Token != nil {
		token = opts.Token.AccessToken
	}
	endpoints := opts.Environment.Endpoints()
	if opts.Endpoints != nil {
		endpoints = *opts.Endpoints
	}
	return &Client{
		endpoints:  endpoints,
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
		retry:      retry,
		fanout:     fanout,
		logger:     logger,
	}
}

// send performs one HTTP exchange and returns the response body. Non-2xx
// responses become *APIError with any Retry-After hint attached.
func (c *Client) send(ctx context.Context, method, url string, body io.Reader, contentType string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, url, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Body:       string(data),
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}
	return data, nil
}

// getJSON GETs url under the retry policy and decodes the body into out.
func (c *Client) getJSON(ctx context.Context, op, url string, out any) error {
	var body []byte
	err := c.retry.do(ctx, c.logger, op, func() error {
		var err error
		body, err = c.send(ctx, http.MethodGet, url, nil, "")
		return err
	})
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decoding %s response: %w", op, err)
	}
	return nil
}

// postJSON POSTs payload to url under the retry policy. The request body is
// rebuilt on every attempt.
func (c *Client) postJSON(ctx context.Context, op, url string, payload, out any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding %s request: %w", op, err)
	}
	var body []byte
	err = c.retry.do(ctx, c.logger, op, func() error {
		var err error
		body, err = c.send(ctx, http.MethodPost, url, bytes.NewReader(data), "application/json")
		return err
	})
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decoding %s response: %w", op, err)
	}
	return nil
}

// UserDetails is the authenticated caller's identity and authorized tag set.
type UserDetails struct {
	User          string
	Organisation  string
	PermittedTags []string
}

type userOrgResponse struct {
	UserOrgDtl []struct {
		UserName     string `json:"userName"`
		Organisation string `json:"organisation"`
		Tags         []struct {
			TagName string `json:"tagName"`
		} `json:"tags"`
	} `json:"userOrgDtl"`
}

// UserDetails fetches the caller's user name, organisation and permitted
// tags. It doubles as the authentication check: an invalid token fails here
// before any batch work starts.
func (c *Client) UserDetails(ctx context.Context) (*UserDetails, error) {
	var resp userOrgResponse
	if err := c.getJSON(ctx, "fetching user details", c.endpoints.Portal+"/userOrgDtls", &resp); err != nil {
		return nil, err
	}
	if len(resp.UserOrgDtl) == 0 {
		return nil, errors.New("fetching user details: empty response")
	}
	d := resp.UserOrgDtl[0]
	details := &UserDetails{User: d.UserName, Organisation: d.Organisation}
	for _, t := range d.Tags {
		details.PermittedTags = append(details.PermittedTags, t.TagName)
	}
	return details, nil
}

// UploadTarget is a pre-authenticated upload URL and the storage bucket it
// points into.
type UploadTarget struct {
	PAR    string
	Bucket string
}

// BatchURL returns the upload prefix for one batch: files are PUT under
// <PAR><batch-guid>/.
func (t *UploadTarget) BatchURL(batchGUID string) string {
	return t.PAR + batchGUID + "/"
}

type parResponse struct {
	Status string `json:"status"`
	PAR    string `json:"par"`
}

// UploadTarget fetches the pre-authenticated request URL for uploads. The
// bucket name is the third-from-last segment of the PAR.
func (c *Client) UploadTarget(ctx context.Context) (*UploadTarget, error) {
	var resp parResponse
	if err := c.getJSON(ctx, "fetching upload target", c.endpoints.Portal+"/pars", &resp); err != nil {
		return nil, err
	}
	if resp.Status == "error" || resp.PAR == "" {
		return nil, errors.New("fetching upload target: service reported an error")
	}
	parts := strings.Split(resp.PAR, "/")
	if len(parts) < 3 {
		return nil, fmt.Errorf("fetching upload target: malformed PAR %q", resp.PAR)
	}
	return &UploadTarget{PAR: resp.PAR, Bucket: parts[len(parts)-3]}, nil
}

// UploadReads PUTs one read file to a pre-authenticated URL. The file is
// reopened on every attempt so a retried upload restarts from the beginning.
func (c *Client) UploadReads(ctx context.Context, url, path string) error {
	return c.retry.do(ctx, c.logger, "uploading "+filepath.Base(path), func() error {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("opening %s: %w", path, err)
		}
		defer f.Close()
		_, err = c.send(ctx, http.MethodPut, url, f, "")
		return err
	})
}

// Submission is the batch metadata POSTed once every file is uploaded.
type Submission struct {
	Status string          `json:"status"`
	Batch  SubmissionBatch `json:"batch"`
}

type SubmissionBatch struct {
	FileName     string             `json:"file_name"`
	BucketName   string             `json:"bucket_name"`
	UploadedOn   string             `json:"uploaded_on"`
	UploadedBy   string             `json:"uploaded_by"`
	Organisation string             `json:"organisation"`
	Samples      []SubmissionSample `json:"samples"`
}

type SubmissionSample struct {
	Name           string       `json:"name"`
	RunNumber      string       `json:"run_number"`
	Tags           []string     `json:"tags"`
	Control        string       `json:"control"`
	CollectionDate string       `json:"collection_date"`
	Country        string       `json:"country"`
	Region         string       `json:"region"`
	District       string       `json:"district"`
	Specimen       string       `json:"specimen"`
	Host           string       `json:"host"`
	Instrument     Instrument   `json:"instrument"`
	PrimerScheme   string       `json:"primer_scheme"`
	PairedReads    *PairedReads `json:"pe_reads,omitempty"`
	SingleReads    *SingleReads `json:"se_reads,omitempty"`
}

type Instrument struct {
	Platform string `json:"platform"`
}

type PairedReads struct {
	R1URI string `json:"r1_uri"`
	R1MD5 string `json:"r1_md5"`
	R2URI string `json:"r2_uri"`
	R2MD5 string `json:"r2_md5"`
}

type SingleReads struct {
	URI string `json:"uri"`
	MD5 string `json:"md5"`
}

type submitResponse struct {
	Status   string `json:"status"`
	ErrorMsg string `json:"errorMsg"`
}

// SubmitBatch POSTs the batch metadata. The service signals rejection in
// the response body, not the status code.
func (c *Client) SubmitBatch(ctx context.Context, sub *Submission) error {
	var resp submitResponse
	if err := c.postJSON(ctx, "submitting batch", c.endpoints.Portal+"/batches", sub, &resp); err != nil {
		return err
	}
	if resp.Status != "success" {
		msg := resp.ErrorMsg
		if msg == "" {
			msg = "service reported failure"
		}
		return fmt.Errorf("submitting batch: %s", msg)
	}
	return nil
}

// FinishUpload PUTs the upload-complete marker that tells the service every
// file for the batch has arrived.
func (c *Client) FinishUpload(ctx context.Context, target *UploadTarget, batchGUID string) error {
	url := target.BatchURL(batchGUID) + "upload_done.txt"
	return c.retry.do(ctx, c.logger, "finishing upload", func() error {
		_, err := c.send(ctx, http.MethodPut, url, nil, "")
		return err
	})
}
