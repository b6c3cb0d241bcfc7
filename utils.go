package patstat

import (
	"encoding/json"
	"encoding/xml"
	"io"
	"net/http"
	"strconv"
)

// readJSON reads and unmarshals JSON from a reader
func readJSON(r io.Reader, v interface{}) error {
	return json.NewDecoder(r).Decode(v)
}

// readXML reads and unmarshals XML from a reader
func readXML(r io.Reader, v interface{}) error {
	return xml.NewDecoder(r).Decode(v)
}

// statusError maps a non-200 response to the matching error type.
func statusError(action, resource, id string, resp *http.Response, body []byte) error {
	switch resp.StatusCode {
	case http.StatusNotFound:
		return &NotFoundError{Resource: resource, ID: id}
	case http.StatusTooManyRequests:
		retryAfter, _ := strconv.Atoi(resp.Header.Get("Retry-After"))
		return &RateLimitError{RetryAfter: retryAfter}
	case http.StatusUnauthorized:
		return &AuthError{Action: action, StatusCode: resp.StatusCode, Message: string(body)}
	}
	return &APIError{
		Action:     action,
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       body,
	}
}

// progressReader wraps an io.Reader to track progress
type progressReader struct {
	reader     io.Reader
	total      int64
	current    int64
	progressFn ProgressFunc
}

func (pr *progressReader) Read(p []byte) (int, error) {
	n, err := pr.reader.Read(p)
	pr.current += int64(n)
	if pr.progressFn != nil {
		pr.progressFn(pr.current, pr.total)
	}
	return n, err
}

// copyBody copies resp.Body to dst, reporting progress when progressFn is set.
func copyBody(dst io.Writer, resp *http.Response, progressFn ProgressFunc) error {
	var reader io.Reader = resp.Body
	if progressFn != nil {
		reader = &progressReader{
			reader:     resp.Body,
			total:      resp.ContentLength,
			progressFn: progressFn,
		}
	}
	_, err := io.Copy(dst, reader)
	return err
}
