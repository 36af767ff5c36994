/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package middleware

import (
	"net/http"
)

// WrapResponseWriter is a proxy around an http.ResponseWriter that records
// the status code and the number of bytes written.
type WrapResponseWriter interface {
	http.ResponseWriter
	Status() int
	BytesWritten() int
	Unwrap() http.ResponseWriter
}

type basicWriter struct {
	http.ResponseWriter
	wroteHeader bool
	code        int
	bytes       int
}

// WrapResponseWriterIfNeeded wraps an http.ResponseWriter if it's not wrapped yet.
func WrapResponseWriterIfNeeded(rw http.ResponseWriter) WrapResponseWriter {
	if wrw, ok := rw.(WrapResponseWriter); ok {
		return wrw
	}
	if _, ok := rw.(http.Flusher); ok {
		return &flushWriter{basicWriter{ResponseWriter: rw}}
	}
	return &basicWriter{ResponseWriter: rw}
}

func (b *basicWriter) WriteHeader(code int) {
	if b.wroteHeader {
		return
	}
	b.code = code
	b.wroteHeader = true
	b.ResponseWriter.WriteHeader(code)
}

func (b *basicWriter) Write(buf []byte) (int, error) {
	if !b.wroteHeader {
		b.WriteHeader(http.StatusOK)
	}
	n, err := b.ResponseWriter.Write(buf)
	b.bytes += n
	return n, err
}

// Status returns the HTTP status of the response. It's 200 if nothing has been written yet.
func (b *basicWriter) Status() int {
	if !b.wroteHeader {
		return http.StatusOK
	}
	return b.code
}

// BytesWritten returns the number of bytes written to the response body.
func (b *basicWriter) BytesWritten() int {
	return b.bytes
}

// Unwrap returns the original http.ResponseWriter. It's used by http.ResponseController.
func (b *basicWriter) Unwrap() http.ResponseWriter {
	return b.ResponseWriter
}

type flushWriter struct {
	basicWriter
}

func (f *flushWriter) Flush() {
	if !f.wroteHeader {
		f.code = http.StatusOK
		f.wroteHeader = true
	}
	f.ResponseWriter.(http.Flusher).Flush()
}
