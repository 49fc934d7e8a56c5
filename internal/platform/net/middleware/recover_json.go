package middleware

import (
	stdhttp "net/http"
	"runtime/debug"

	perr "dayonme/internal/platform/errors"
	"dayonme/internal/platform/logger"
	pnet "dayonme/internal/platform/net"
	phttp "dayonme/internal/platform/net/http"
)

// PanicHook observes recovered panics, e.g. to forward them to an error tracker
type PanicHook func(r *stdhttp.Request, v any)

// RecoverJSON converts panics into the JSON error envelope and logs the stack with request id
func RecoverJSON(hooks ...PanicHook) func(stdhttp.Handler) stdhttp.Handler {
	return func(next stdhttp.Handler) stdhttp.Handler {
		return stdhttp.HandlerFunc(func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
			defer func() {
				v := recover()
				if v == nil {
					return
				}
				if v == stdhttp.ErrAbortHandler {
					panic(v)
				}
				reqID := pnet.RequestID(r.Context())
				logger.C(r.Context()).Error().
					Str("request_id", reqID).
					Interface("panic", v).
					Bytes("stack", debug.Stack()).
					Msg("panic recovered")
				for _, h := range hooks {
					h(r, v)
				}
				if reqID != "" {
					w.Header().Set("X-Request-ID", reqID)
				}
				phttp.RespondError(w, r, perr.PanicErrf("internal error"))
			}()
			next.ServeHTTP(w, r)
		})
	}
}
