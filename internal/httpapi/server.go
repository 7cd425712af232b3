package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
)

type HTTPServer struct {
	httpServer *http.Server
}

// NewHTTPServer bounds every request by timeout. Confirming a purchase waits
// for the wallet, so timeout must exceed the signer's own deadline.
func NewHTTPServer(addr string, handler http.Handler, timeout time.Duration) HTTPServer {
	handler = http.TimeoutHandler(handler, timeout, `{"error":"unavailable"}`)
	s := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return HTTPServer{s}
}

func (s HTTPServer) Run(stopFn context.CancelFunc) {
	const op = "HTTPServer.Run"

	defer stopFn()
	log.WithFields(log.Fields{"op": op, "addr": s.httpServer.Addr}).Info("HTTP server listening")
	err := s.httpServer.ListenAndServe()
	if err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			return
		}
		log.WithField("op", op).WithError(err).Error("Unexpected server shutdown")
	}
}

func (s HTTPServer) Close(ctx context.Context) {
	const op = "HTTPServer.Close"
	logger := log.WithField("op", op)

	logger.Info("Closing HTTP server...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Failed to shutdown gracefully")
	}
	logger.Info("HTTP server is closed")
}
