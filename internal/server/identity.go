package server

import (
	"context"
	"net/http"
	"strings"

	"tailscale.com/client/tailscale/apitype"
)

type contextKey int

const (
	userIDKey contextKey = iota
	userInfoKey
)

// UserInfo is the identity shown to the signed-in user.
type UserInfo struct {
	Login       string `json:"login"`
	DisplayName string `json:"display_name"`
}

var devUser = UserInfo{Login: "local", DisplayName: "Local Dev User"}

// UserHeader names the uploader account on API key requests.
const UserHeader = "X-Chalkline-User"

// WhoIsClient resolves a tailnet peer address to its owner. The tsnet local
// client satisfies it.
type WhoIsClient interface {
	WhoIs(ctx context.Context, remoteAddr string) (*apitype.WhoIsResponse, error)
}

// SetTailscale switches identity resolution from the dev user to Tailscale
// WhoIs lookups.
func (s *Server) SetTailscale(lc WhoIsClient) {
	s.ts = lc
}

// DevIdentity assigns every request to user 1. Used when running without
// Tailscale.
func DevIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), 1, devUser)))
	})
}

// identity resolves the caller through Tailscale when enabled and through
// DevIdentity otherwise.
func (s *Server) identity(next http.Handler) http.Handler {
	dev := DevIdentity(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.ts == nil {
			dev.ServeHTTP(w, r)
			return
		}
		who, err := s.ts.WhoIs(r.Context(), r.RemoteAddr)
		if err != nil || who.UserProfile == nil {
			s.log.Warn("tailscale whois failed", "remote", r.RemoteAddr, "error", err)
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unknown tailnet peer"})
			return
		}
		info := UserInfo{Login: who.UserProfile.LoginName, DisplayName: who.UserProfile.DisplayName}
		s.serveAs(w, r, next, info)
	})
}

// uploaderIdentity maps the UserHeader login of an API key request to a user.
// Requests without the header act as user 1.
func (s *Server) uploaderIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		login := strings.TrimSpace(r.Header.Get(UserHeader))
		if login == "" {
			next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), 1, devUser)))
			return
		}
		s.serveAs(w, r, next, UserInfo{Login: login, DisplayName: login})
	})
}

func (s *Server) serveAs(w http.ResponseWriter, r *http.Request, next http.Handler, info UserInfo) {
	uid, err := s.db.GetOrCreateUser(r.Context(), info.Login, info.DisplayName)
	if err != nil {
		s.log.Error("resolving user", "login", info.Login, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "resolving user"})
		return
	}
	next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), uid, info)))
}

func withIdentity(ctx context.Context, uid int, info UserInfo) context.Context {
	ctx = context.WithValue(ctx, userIDKey, uid)
	return context.WithValue(ctx, userInfoKey, info)
}

// userIDFromContext returns the user set by identity middleware, or 1.
func userIDFromContext(r *http.Request) int {
	if id, ok := r.Context().Value(userIDKey).(int); ok {
		return id
	}
	return 1
}

// RequestUserID exposes the resolved user to transports mounted on the
// router, such as the MCP handler.
func RequestUserID(r *http.Request) int {
	return userIDFromContext(r)
}

func userInfoFromContext(r *http.Request) UserInfo {
	if info, ok := r.Context().Value(userInfoKey).(UserInfo); ok {
		return info
	}
	return devUser
}

// mustUserID returns the resolved user, writing 401 when no identity
// middleware ran.
func mustUserID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, ok := r.Context().Value(userIDKey).(int)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "no identity"})
		return 0, false
	}
	return id, true
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, userInfoFromContext(r))
}
