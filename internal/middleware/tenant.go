package middleware

import (
	"context"
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type contextKey string

const TenantIDKey contextKey = "tenant_id"

// TenantID resolves the calling clinic from the X-Tenant-ID header. Every
// artifact, archive config and routing rule is scoped to this ID; requests
// without a valid one never reach the pipeline.
func TenantID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tenantIDStr := r.Header.Get("X-Tenant-ID")
		if tenantIDStr == "" {
			log.Warn().
				Str("request_id", chimiddleware.GetReqID(r.Context())).
				Str("path", r.URL.Path).
				Msg("Missing X-Tenant-ID header")
			http.Error(w, "X-Tenant-ID header is required", http.StatusBadRequest)
			return
		}

		tenantID, err := uuid.Parse(tenantIDStr)
		if err != nil {
			log.Warn().Err(err).
				Str("request_id", chimiddleware.GetReqID(r.Context())).
				Str("tenant_id", tenantIDStr).
				Msg("Invalid tenant ID")
			http.Error(w, "Invalid X-Tenant-ID format", http.StatusBadRequest)
			return
		}

		ctx := context.WithValue(r.Context(), TenantIDKey, tenantID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetTenantID extracts the tenant ID placed in the context by TenantID.
func GetTenantID(ctx context.Context) (uuid.UUID, bool) {
	tenantID, ok := ctx.Value(TenantIDKey).(uuid.UUID)
	return tenantID, ok
}
