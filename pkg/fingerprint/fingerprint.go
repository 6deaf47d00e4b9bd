// Package fingerprint derives a weak browser fingerprint from request
// headers. Server side profiles are bound to it so that a stolen session id
// cookie is useless from a different browser.
package fingerprint

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
)

var headerKeys = []string{"User-Agent", "Accept"}

type ctxKey string

const fingerprintKey ctxKey = "fingerprint"

var ErrNoFingerprint = errors.New("no fingerprint in ctx")

func FromHTTPRequest(r *http.Request) (string, error) {
	if r == nil {
		return "", errors.New("http request is nil")
	}

	h := sha256.New()
	for _, key := range headerKeys {
		h.Write([]byte(r.Header.Get(key)))
		h.Write([]byte{0})
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// FingerprintCtxMiddleware stores the fingerprint of every request in its context.
func FingerprintCtxMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fp, _ := FromHTTPRequest(r)
		next.ServeHTTP(w, r.WithContext(WithFingerprint(r.Context(), fp)))
	})
}

func WithFingerprint(ctx context.Context, fp string) context.Context {
	return context.WithValue(ctx, fingerprintKey, fp)
}

func ExtractFingerprint(ctx context.Context) (string, error) {
	fp, ok := ctx.Value(fingerprintKey).(string)
	if !ok {
		return "", ErrNoFingerprint
	}
	return fp, nil
}
