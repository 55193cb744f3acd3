package server

import (
	"context"
	"net/http"
)

// defaultUserID is the single-tenant user. Tailnet identity is informational
// (shown on the dashboard); all data belongs to this user.
const defaultUserID = 1

type contextKey int

const identityKey contextKey = iota

// Identity describes who is making the request.
type Identity struct {
	UserID      int    `json:"user_id"`
	LoginName   string `json:"login_name"`
	DisplayName string `json:"display_name"`
}

// identity resolves the caller via Tailscale WhoIs when a tsnet client is
// attached, and falls back to a dev identity otherwise.
func (s *Server) identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := Identity{UserID: defaultUserID, LoginName: "dev", DisplayName: "Local Development"}
		if s.ts != nil {
			who, err := s.ts.WhoIs(r.Context(), r.RemoteAddr)
			if err != nil {
				s.log.Warn("tailscale whois failed", "addr", r.RemoteAddr, "error", err)
			} else if who.UserProfile != nil {
				id.LoginName = who.UserProfile.LoginName
				id.DisplayName = who.UserProfile.DisplayName
			}
		}
		ctx := context.WithValue(r.Context(), identityKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// identityFrom returns the request identity set by the middleware.
func identityFrom(r *http.Request) Identity {
	if id, ok := r.Context().Value(identityKey).(Identity); ok {
		return id
	}
	return Identity{UserID: defaultUserID, LoginName: "dev"}
}
