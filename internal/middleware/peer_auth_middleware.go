package middleware

import (
	"context"
	"net/http"

	"peersync-server/internal/service"
	"peersync-server/pkg/response"
)

const (
	HeaderNodeID           = "X-Node-ID"
	HeaderRegistrationHash = "X-Registration-Hash"
)

const NodeIDKey contextKey = "nodeID"

// PeerAuthMiddleware gates every peer-facing sync endpoint. Missing
// headers are a 401; a bad credential is a uniform 403 regardless of why
// it failed.
func PeerAuthMiddleware(authService *service.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			nodeID := r.Header.Get(HeaderNodeID)
			presentedHash := r.Header.Get(HeaderRegistrationHash)

			if nodeID == "" || presentedHash == "" {
				response.Unauthorized(w, "missing sync credential headers")
				return
			}

			if err := authService.AuthenticatePeer(r.Context(), nodeID, presentedHash); err != nil {
				response.Forbidden(w, "invalid sync credentials")
				return
			}

			ctx := context.WithValue(r.Context(), NodeIDKey, nodeID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetNodeID returns the authenticated peer node id, empty if the request
// did not pass through PeerAuthMiddleware.
func GetNodeID(r *http.Request) string {
	nodeID, ok := r.Context().Value(NodeIDKey).(string)
	if !ok {
		return ""
	}
	return nodeID
}
