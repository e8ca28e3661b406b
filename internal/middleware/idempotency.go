package middleware

import (
	"bytes"
	"net/http"

	"github.com/2beens/fitstreak/internal/auth"
	"github.com/2beens/fitstreak/internal/idempotency"
	"github.com/2beens/fitstreak/internal/telemetry/metrics"

	log "github.com/sirupsen/logrus"
)

// Idempotency replays the stored response when a user repeats a request with the same
// Idempotency-Key. Server errors are not stored, so they can be retried.
func Idempotency(cache *idempotency.Cache, metricsManager *metrics.Manager) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(idempotency.HeaderKey)
			userID, err := auth.UserID(r.Context())
			if key == "" || err != nil {
				next.ServeHTTP(w, r)
				return
			}

			route := r.Method + " " + r.URL.Path
			if stored, found := cache.Get(userID, route, key); found {
				log.Debugf("idempotency: replaying [%s] for %s, key %s", route, userID, key)
				if metricsManager != nil {
					metricsManager.CounterIdempotentReplays.Inc()
				}
				if stored.ContentType != "" {
					w.Header().Set("Content-Type", stored.ContentType)
				}
				w.Header().Set("Idempotent-Replayed", "true")
				w.WriteHeader(stored.Status)
				_, _ = w.Write(stored.Body)
				return
			}

			rec := &recordingWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			if rec.status >= http.StatusInternalServerError {
				return
			}
			if err := cache.Put(userID, route, key, idempotency.StoredResponse{
				Status:      rec.status,
				ContentType: rec.Header().Get("Content-Type"),
				Body:        rec.body.Bytes(),
			}); err != nil {
				log.Errorf("idempotency: store response [%s] for %s: %s", route, userID, err)
			}
		})
	}
}

type recordingWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
	body        bytes.Buffer
}

func (w *recordingWriter) WriteHeader(status int) {
	if !w.wroteHeader {
		w.status = status
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *recordingWriter) Write(b []byte) (int, error) {
	w.wroteHeader = true
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}
