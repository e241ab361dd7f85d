package httpx

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ariefcatur/kantin-orders/internal/identity"
	"github.com/ariefcatur/kantin-orders/internal/logging"
)

const (
	headerRequestID = "X-Request-ID"
	headerUserID    = "X-User-ID"
	headerUserRole  = "X-User-Role"
)

// Observability puts a request-scoped logger in the context, echoes the
// request id and records one access log line plus HTTP metrics per request.
// Metrics are labelled with the route pattern, never the raw path.
func Observability(base *zap.Logger, m *Metrics) func(http.Handler) http.Handler {
	if base == nil {
		base = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rid := r.Header.Get(headerRequestID)
			if rid == "" {
				rid = middleware.GetReqID(r.Context())
			}
			if rid == "" {
				rid = uuid.NewString()
			}
			w.Header().Set(headerRequestID, rid)

			reqLog := base.With(zap.String("request_id", rid))
			ctx := logging.ContextWithLogger(r.Context(), reqLog)

			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r.WithContext(ctx))
			elapsed := time.Since(start)

			route := "unmatched"
			if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
				route = rc.RoutePattern()
			}
			m.observeRequest(r.Method, route, strconv.Itoa(rec.status), elapsed.Seconds())

			reqLog.Info("http request",
				zap.String("method", r.Method),
				zap.String("route", route),
				zap.Int("status", rec.status),
				zap.Duration("duration", elapsed))
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (w *statusRecorder) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Identity reads the acting user set by the gateway. Requests without a user
// id carry no actor and are refused by the services that need one.
func Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(headerUserID)
		role, ok := identity.ParseRole(r.Header.Get(headerUserRole))
		if id != "" && ok {
			r = r.WithContext(identity.WithActor(r.Context(), identity.Actor{UserID: id, Role: role}))
		}
		next.ServeHTTP(w, r)
	})
}

// RequireActor refuses requests that carry no acting user.
func RequireActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := identity.FromContext(r.Context()); err != nil {
			writeJSON(w, http.StatusForbidden, errorBody{Error: err.Error(), Code: "forbidden"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
