package headhunter

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/hh-coverbot/internal/errs"
)

const (
	contentType     = "application/json"
	contentEncoding = "gzip, deflate, br"
)

// getJSON makes an authenticated GET request and decodes the response into
// target. Network failures and 5xx responses are retried with backoff; 401/403
// and other 4xx are surfaced immediately.
func (c *Client) getJSON(ctx context.Context, path string, q url.Values, target any) error {
	fullURL := fmt.Sprintf("%s%s", c.APIURL, path)

	return c.policy.Do(ctx, func() error {
		req, err := c.newRequest(ctx, http.MethodGet, fullURL, nil)
		if err != nil {
			return err
		}

		req.Header.Set("Content-Type", contentType)
		if q != nil {
			req.URL.RawQuery = q.Encode()
		}

		body, err := c.do(req, http.StatusOK)
		if err != nil {
			return err
		}

		if target == nil {
			return nil
		}

		if err := json.Unmarshal(body, target); err != nil {
			return fmt.Errorf("decoding response from %s: %w", path, err)
		}

		return nil
	})
}

// postForm makes an authenticated multipart POST. Writes are never retried: a
// duplicated application is worse than a failed one.
func (c *Client) postForm(ctx context.Context, path string, data map[string]string) error {
	var b bytes.Buffer
	w := multipart.NewWriter(&b)
	for key, val := range data {
		field, err := w.CreateFormField(key)
		if err != nil {
			return err
		}

		if _, err = io.Copy(field, strings.NewReader(val)); err != nil {
			return err
		}
	}
	// An unterminated multipart body must not leave the process: this is the
	// one endpoint that is never retried.
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalizing form body: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, fmt.Sprintf("%s%s", c.APIURL, path), &b)
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", w.FormDataContentType())

	_, err = c.do(req, http.StatusCreated)

	return err
}

func (c *Client) newRequest(ctx context.Context, method, fullURL string, body io.Reader) (*http.Request, error) {
	access, err := c.tokens.EnsureAccess(ctx, c.subject)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, body)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", access))
	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("Accept-Encoding", contentEncoding)

	return req, nil
}

// do performs the request, unpacks a possibly gzipped body and classifies the
// status code. The body is returned for the expected status only.
func (c *Client) do(req *http.Request, expected int) ([]byte, error) {
	c.logger.Debug("make request", zap.String("url", req.URL.String()))

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, &errs.NetworkError{Err: err}
	}
	defer resp.Body.Close()

	var reader io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gzipReader, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		defer gzipReader.Close()
		reader = gzipReader
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, &errs.NetworkError{Err: err}
	}

	if resp.StatusCode != expected {
		return nil, classifyStatus(resp.StatusCode, body)
	}

	return body, nil
}

func classifyStatus(status int, body []byte) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &errs.AuthError{Status: status}
	case status >= http.StatusBadRequest:
		return &errs.APIError{Status: status, Body: string(body)}
	default:
		return fmt.Errorf("unexpected status %d", status)
	}
}
