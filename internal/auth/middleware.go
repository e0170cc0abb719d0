package auth

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
)

type contextKey string

const operatorKey contextKey = "operator"

// Require lets through only requests from a known operator and stores the
// operator name in the request context. Others get deny.
func Require(ops *Operators, deny func(w http.ResponseWriter, ip string)) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			name, ok := ops.Resolve(r)
			if !ok {
				deny(w, ClientIP(r))
				return
			}
			next.ServeHTTP(w, r.WithContext(WithOperator(r.Context(), name)))
		})
	}
}

func WithOperator(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, operatorKey, name)
}

// OperatorFrom returns the operator stored by Require.
func OperatorFrom(ctx context.Context) (string, bool) {
	name, ok := ctx.Value(operatorKey).(string)
	return name, ok
}
