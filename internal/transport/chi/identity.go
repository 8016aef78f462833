package chi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/kailas-cloud/bbs/internal/domain"
)

// identityHeader carries the caller's verified fingerprint. Verification of
// the fingerprint itself happens upstream; the board trusts the header.
const identityHeader = "X-BBS-Identity"

// unreadHeader reports the caller's unread notification count on every
// authenticated response.
const unreadHeader = "X-BBS-Notifications"

// IdentityRegistry stores and resolves board identities.
type IdentityRegistry interface {
	Create(ctx context.Context, id domain.Identity) error
	SetAdmitted(ctx context.Context, fingerprint string, admitted bool) error
	ByFingerprint(ctx context.Context, fingerprint string) (domain.Identity, error)
}

type identityCtxKey struct{}

// identityFrom returns the authenticated identity placed by the middleware.
func identityFrom(ctx context.Context) domain.Identity {
	ident, _ := ctx.Value(identityCtxKey{}).(domain.Identity)
	return ident
}

// identityMiddleware resolves the fingerprint header to a registered,
// admitted identity and annotates the response with the unread count.
func (s *Server) identityMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fingerprint := strings.TrimSpace(r.Header.Get(identityHeader))
			if fingerprint == "" {
				writeError(w, http.StatusUnauthorized, codeBadRequest,
					"missing "+identityHeader+" header")
				return
			}

			ident, err := s.identities.ByFingerprint(r.Context(), fingerprint)
			if err != nil {
				if errors.Is(err, domain.ErrIdentityNotFound) {
					writeError(w, http.StatusUnauthorized, codeIdentityNotFound,
						"unknown identity")
					return
				}
				s.handleDomainError(w, err)
				return
			}
			if !ident.Admitted {
				writeError(w, http.StatusForbidden, codeNotAdmitted,
					domain.ErrNotAdmitted.Error())
				return
			}

			// Header must be set before the handler writes the body.
			if n, err := s.notifications.UnreadCount(r.Context(), fingerprint); err == nil {
				w.Header().Set(unreadHeader, strconv.Itoa(n))
			}

			ctx := context.WithValue(r.Context(), identityCtxKey{}, ident)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
