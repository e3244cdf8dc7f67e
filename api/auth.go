package api

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Credential headers of the customer group.
const (
	HeaderAuthUser     = "X-Auth-User"
	HeaderAuthPassword = "X-Auth-Password"
	HeaderAuthEntity   = "X-Auth-Entity"
)

var authRejections = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "bridge_auth_rejections_total",
	Help: "Customer group requests rejected by the credential check",
}, []string{"code"})

// RequireCredentials gates a route group behind the shared credential.
// It answers 401-405 without calling the wrapped handler, so a rejected
// request never reaches a ledger. User and password compare
// case-insensitively; the entity header must be present but is not
// matched.
func RequireCredentials(user, password string) func(http.Handler) http.Handler {
	wantUser := []byte(strings.ToLower(user))
	wantPassword := []byte(strings.ToLower(password))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotUser := r.Header.Get(HeaderAuthUser)
			gotPassword := r.Header.Get(HeaderAuthPassword)
			entity := r.Header.Get(HeaderAuthEntity)

			code := ""
			switch {
			case gotUser == "" && gotPassword == "":
				code = CodeMissingCredentials
			case gotPassword == "":
				code = CodeMissingPassword
			case gotUser == "":
				code = CodeMissingUser
			case entity == "":
				code = CodeMissingEntity
			default:
				// Evaluate both so timing does not reveal which one differs.
				userOK := subtle.ConstantTimeCompare([]byte(strings.ToLower(gotUser)), wantUser)
				passwordOK := subtle.ConstantTimeCompare([]byte(strings.ToLower(gotPassword)), wantPassword)
				if userOK&passwordOK != 1 {
					code = CodeBadCredentials
				}
			}

			if code != "" {
				authRejections.WithLabelValues(code).Inc()
				writeResult(w, groupCustomer, resultOf(code), struct{}{})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
