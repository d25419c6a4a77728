package util

import (
	"bytes"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// maxLoggedBody caps how much of a request or response body is logged.
const maxLoggedBody = 4096

// LoggingTransport is an http.RoundTripper that logs provider traffic at debug level.
// Credentials in the Authorization header are never logged.
type LoggingTransport struct {
	Base   http.RoundTripper
	Logger *zap.Logger
}

// NewHTTPClient returns a client whose transport logs through logger.
// A zero timeout means no client-side timeout.
func NewHTTPClient(logger *zap.Logger, timeout time.Duration) *http.Client {
	return &http.Client{
		Transport: &LoggingTransport{Base: http.DefaultTransport, Logger: logger},
		Timeout:   timeout,
	}
}

func (t *LoggingTransport) base() http.RoundTripper {
	if t.Base == nil {
		return http.DefaultTransport
	}
	return t.Base
}

func (t *LoggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.Logger == nil || !t.Logger.Core().Enabled(zapcore.DebugLevel) {
		return t.base().RoundTrip(req)
	}

	var reqBody []byte
	if req.Body != nil {
		reqBody, _ = io.ReadAll(req.Body)
		_ = req.Body.Close()
		req.Body = io.NopCloser(bytes.NewReader(reqBody))
	}

	t.Logger.Debug("outbound request",
		zap.String("method", req.Method),
		zap.String("url", req.URL.String()),
		zap.Bool("authorized", req.Header.Get("Authorization") != ""),
		zap.String("body", truncate(reqBody)),
	)

	start := time.Now()
	resp, err := t.base().RoundTrip(req)
	if err != nil {
		t.Logger.Debug("outbound request failed", zap.String("url", req.URL.String()), zap.Error(err))
		return resp, err
	}

	respBody, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	resp.Body = io.NopCloser(bytes.NewReader(respBody))

	t.Logger.Debug("outbound response",
		zap.Int("status", resp.StatusCode),
		zap.String("url", req.URL.String()),
		zap.Duration("elapsed", time.Since(start)),
		zap.String("body", truncate(respBody)),
	)

	return resp, nil
}

func truncate(b []byte) string {
	if len(b) > maxLoggedBody {
		return string(b[:maxLoggedBody]) + "...(truncated)"
	}
	return string(b)
}
