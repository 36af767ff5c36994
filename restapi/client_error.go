/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package restapi

import (
	"errors"
	"fmt"
	"net/url"
)

// ClientError is returned by DoRequestAndUnmarshalJSON when the request fails or the server responds with an error.
type ClientError struct {
	Message    string
	Method     string
	URL        *url.URL
	StatusCode int
	Err        error
}

func (e *ClientError) wrap(message string, err error) *ClientError {
	e.Message = message
	e.Err = err
	return e
}

func (e *ClientError) Error() string {
	str := fmt.Sprintf("method: [%s] url: [%s] status: [%d] message: %s", e.Method, e.URL, e.StatusCode, e.Message)
	if e.Err != nil {
		str += fmt.Sprintf(" error: %s", e.Err.Error())
	}
	return str
}

// Is allows checking the wrapped error with errors.Is.
func (e *ClientError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// Unwrap allows checking the wrapped error with errors.As.
func (e *ClientError) Unwrap() error {
	return e.Err
}

// APIError returns the error sent by the server, if any.
func (e *ClientError) APIError() (*Error, bool) {
	var respErr *ErrorResponseData
	if errors.As(e.Err, &respErr) && respErr.Err != nil {
		return respErr.Err, true
	}
	return nil, false
}
