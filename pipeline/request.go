package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/jrsteele09/neoping-client/credentials"
	"github.com/pkg/errors"
)

// maxReplays is how many times a request is replayed after a token refresh.
const maxReplays = 1

// PendingRequest is one outbound call. It is a value: a replay is a copy with
// Attempt incremented, so no retry state outlives the call that created it.
type PendingRequest struct {
	ID      string
	Method  string
	Path    string
	Body    []byte
	Header  http.Header
	Attempt int
}

func newPendingRequest(method, path string, body []byte, header http.Header) PendingRequest {
	return PendingRequest{
		ID:     uuid.NewString(),
		Method: method,
		Path:   path,
		Body:   body,
		Header: header.Clone(),
	}
}

func (r PendingRequest) retried() PendingRequest {
	r.Attempt++
	return r
}

func (r PendingRequest) httpRequest(ctx context.Context, cfg Config, accessToken string) (*http.Request, error) {
	var body io.Reader
	if r.Body != nil {
		body = bytes.NewReader(r.Body)
	}
	req, err := http.NewRequestWithContext(ctx, r.Method, cfg.url(r.Path), body)
	if err != nil {
		return nil, errors.Wrapf(err, "PendingRequest %s %s", r.Method, r.Path)
	}

	for k, v := range cfg.DefaultHeaders {
		req.Header.Set(k, v)
	}
	for k, values := range r.Header {
		req.Header.Del(k)
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("X-Request-ID", r.ID)
	if accessToken != "" {
		credentials.Credential{AccessToken: accessToken}.Token().SetAuthHeader(req)
	}
	return req, nil
}

// encodeBody turns a caller body into bytes. nil means no body; []byte and
// json.RawMessage are sent as-is; anything else is JSON encoded.
func encodeBody(body any) ([]byte, error) {
	switch b := body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return b, nil
	case json.RawMessage:
		return b, nil
	case string:
		return []byte(b), nil
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, errors.Wrap(err, "encodeBody")
		}
		return data, nil
	}
}
