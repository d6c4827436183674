package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

type apiRequest struct {
	method      string
	path        string
	headers     map[string]string
	reqBodyObj  interface{}
	successCode int
	respObj     interface{}
}

type baseClient struct {
	apiAddress string
	httpClient *http.Client

	mu       sync.RWMutex
	apiToken string
}

func (b *baseClient) setToken(token string) {
	b.mu.Lock()
	b.apiToken = token
	b.mu.Unlock()
}

func (b *baseClient) bearerTokenAuthHeaders() map[string]string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.apiToken == "" {
		return nil
	}
	return map[string]string{"Authorization": fmt.Sprintf("Bearer %s", b.apiToken)}
}

func (b *baseClient) executeAPIRequest(ctx context.Context, apiReq apiRequest) error {
	resp, err := b.submitAPIRequest(ctx, apiReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if apiReq.respObj != nil {
		respBodyBytes, err := io.ReadAll(resp.Body)
		if err != nil {
			return errors.Wrap(err, "error reading response body")
		}
		if err := json.Unmarshal(respBodyBytes, apiReq.respObj); err != nil {
			return errors.Wrap(err, "error unmarshaling response body")
		}
	}
	return nil
}

func (b *baseClient) submitAPIRequest(ctx context.Context, apiReq apiRequest) (*http.Response, error) {
	var reqBodyReader io.Reader
	if apiReq.reqBodyObj != nil {
		switch rb := apiReq.reqBodyObj.(type) {
		case []byte:
			reqBodyReader = bytes.NewBuffer(rb)
		case *bytes.Buffer:
			reqBodyReader = rb
		default:
			reqBodyBytes, err := json.Marshal(apiReq.reqBodyObj)
			if err != nil {
				return nil, errors.Wrap(err, "error marshaling request body")
			}
			reqBodyReader = bytes.NewBuffer(reqBodyBytes)
			if apiReq.headers == nil {
				apiReq.headers = map[string]string{}
			}
			if _, ok := apiReq.headers["Content-Type"]; !ok {
				apiReq.headers["Content-Type"] = "application/json"
			}
		}
	}

	req, err := http.NewRequestWithContext(
		ctx,
		apiReq.method,
		fmt.Sprintf("%s/%s", strings.TrimRight(b.apiAddress, "/"), strings.TrimLeft(apiReq.path, "/")),
		reqBodyReader,
	)
	if err != nil {
		return nil, errors.Wrapf(err, "error creating request %s %s", apiReq.method, apiReq.path)
	}
	for k, v := range b.bearerTokenAuthHeaders() {
		req.Header.Set(k, v)
	}
	for k, v := range apiReq.headers {
		req.Header.Set(k, v)
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "error invoking API")
	}

	successCode := apiReq.successCode
	if successCode == 0 {
		successCode = http.StatusOK
	}
	if resp.StatusCode != successCode {
		defer resp.Body.Close()
		return nil, errorFromResponse(resp)
	}
	return resp, nil
}

// errorFromResponse maps a status code, and the gateway's error envelope if
// present, to a typed error.
func errorFromResponse(resp *http.Response) error {
	var body apiErrorBody
	if data, err := io.ReadAll(resp.Body); err == nil && len(data) > 0 {
		_ = json.Unmarshal(data, &body)
	}
	code, msg := body.Error.Code, body.Error.Message
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return &ErrAuthentication{Code: code, Message: msg}
	case resp.StatusCode == http.StatusForbidden:
		return &ErrAuthorization{Code: code, Message: msg}
	case resp.StatusCode == http.StatusTooManyRequests:
		return &ErrTooManyRequests{Code: code, Message: msg}
	case resp.StatusCode == http.StatusBadRequest:
		return &ErrBadRequest{Code: code, Message: msg}
	case resp.StatusCode == http.StatusNotFound:
		return &ErrNotFound{Code: code, Message: msg}
	case resp.StatusCode >= http.StatusInternalServerError:
		return &ErrInternalServer{StatusCode: resp.StatusCode, Code: code, Message: msg}
	}
	return errors.Errorf("received %d from API server", resp.StatusCode)
}
