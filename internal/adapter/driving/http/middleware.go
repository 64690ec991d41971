package httphandler

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	// SignatureHeader carries the hex HMAC-SHA256 of the request body,
	// prefixed with "sha256=".
	SignatureHeader = "X-Formrelay-Signature"

	signaturePrefix = "sha256="
	maxBodyBytes    = 1 << 20
)

// statusWriter wraps http.ResponseWriter to capture the response status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

// WriteHeader captures the status code and delegates to the embedded writer.
func (sw *statusWriter) WriteHeader(status int) {
	sw.status = status
	sw.ResponseWriter.WriteHeader(status)
}

// loggingMiddleware logs each HTTP request with method, path, status, and duration.
func loggingMiddleware(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"duration", time.Since(start).Round(time.Microsecond),
		)
	})
}

// recoveryMiddleware recovers from panics in HTTP handlers, logs the error,
// and returns a 500 response.
func recoveryMiddleware(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				logger.Error("panic recovered",
					"panic", v,
					"path", r.URL.Path,
				)
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()

		next.ServeHTTP(w, r)
	})
}

// signatureMiddleware buffers the request body (up to maxBodyBytes) and, when
// secret is non-empty, rejects requests whose SignatureHeader does not match
// the body's HMAC-SHA256. The buffered body is handed on to next.
func signatureMiddleware(secret string, logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
				return
			}
			writeError(w, http.StatusBadRequest, "unreadable request body")
			return
		}

		if secret != "" {
			if err := verifySignature(secret, r.Header.Get(SignatureHeader), body); err != nil {
				logger.Warn("rejected unsigned submission", "reason", err.Error(), "remote_addr", r.RemoteAddr)
				writeError(w, http.StatusUnauthorized, "invalid signature")
				return
			}
		}

		r.Body = io.NopCloser(bytes.NewReader(body))
		next.ServeHTTP(w, r)
	})
}

// verifySignature checks header against the HMAC-SHA256 of body in constant time.
func verifySignature(secret, header string, body []byte) error {
	header = strings.TrimSpace(header)
	if header == "" {
		return errors.New("signature header missing")
	}

	sig, ok := strings.CutPrefix(header, signaturePrefix)
	if !ok {
		return errors.New("signature must start with " + signaturePrefix)
	}

	decoded, err := hex.DecodeString(sig)
	if err != nil {
		return errors.New("signature is not hex")
	}

	if subtle.ConstantTimeCompare(decoded, Sign(secret, body)) != 1 {
		return errors.New("signature mismatch")
	}
	return nil
}

// Sign returns the raw HMAC-SHA256 of body under secret. Callers that send
// submissions set SignatureHeader to "sha256=" + hex of this value.
func Sign(secret string, body []byte) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(body)
	return mac.Sum(nil)
}
