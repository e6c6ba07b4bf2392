package httpserver

import (
	"net/http"
	"time"
)

// WriteTimeout leaves room for the session long-poll, which holds a response
// open for up to 35s.
const WriteTimeout = 60 * time.Second

// New builds an HTTP server for one listener.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		// capture uploads carry base64 images
		ReadTimeout:  30 * time.Second,
		WriteTimeout: WriteTimeout,
		IdleTimeout:  2 * time.Minute,
	}
}
