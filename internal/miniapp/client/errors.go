package client

import "fmt"

// apiErrorBody is the gateway's error envelope.
type apiErrorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// ErrAuthentication is returned for 401 responses.
type ErrAuthentication struct {
	Code    string
	Message string
}

func (e *ErrAuthentication) Error() string {
	return fmt.Sprintf("could not authenticate the request: %s", e.Message)
}

// ErrAuthorization is returned for 403 responses.
type ErrAuthorization struct {
	Code    string
	Message string
}

func (e *ErrAuthorization) Error() string {
	return fmt.Sprintf("the request is not authorized: %s", e.Message)
}

// ErrTooManyRequests is returned for 429 responses.
type ErrTooManyRequests struct {
	Code    string
	Message string
}

func (e *ErrTooManyRequests) Error() string {
	return fmt.Sprintf("too many requests: %s", e.Message)
}

// ErrBadRequest is returned for 400 responses.
type ErrBadRequest struct {
	Code    string
	Message string
}

func (e *ErrBadRequest) Error() string {
	return fmt.Sprintf("bad request: %s", e.Message)
}

// ErrNotFound is returned for 404 responses.
type ErrNotFound struct {
	Code    string
	Message string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("not found: %s", e.Message)
}

// ErrInternalServer is returned for 5xx responses.
type ErrInternalServer struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *ErrInternalServer) Error() string {
	return fmt.Sprintf("server error %d: %s", e.StatusCode, e.Message)
}
