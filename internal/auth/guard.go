package auth

import (
	"net/http"
	"slices"
	"strings"

	"github.com/isdelr/skill-loop-be/internal/models"
)

// PrefixRule grants a route prefix to a set of roles.
type PrefixRule struct {
	Prefix string
	Roles  []models.Role
}

// DefaultRules is the route-prefix authorization table.
var DefaultRules = []PrefixRule{
	{Prefix: "/api/v1/admin", Roles: []models.Role{models.RoleAdmin}},
	{Prefix: "/api/v1/trainer", Roles: []models.Role{models.RoleAdmin, models.RoleTrainer}},
	{Prefix: "/api/v1/manager", Roles: []models.Role{models.RoleAdmin, models.RoleManager}},
}

// Allowed reports whether role may reach path. The longest matching prefix wins;
// paths with no matching rule are open to every authenticated role.
func Allowed(rules []PrefixRule, path string, role models.Role) bool {
	var match *PrefixRule
	for i := range rules {
		rule := &rules[i]
		if path != rule.Prefix && !strings.HasPrefix(path, rule.Prefix+"/") {
			continue
		}
		if match == nil || len(rule.Prefix) > len(match.Prefix) {
			match = rule
		}
	}
	if match == nil {
		return true
	}
	return slices.Contains(match.Roles, role)
}

// PrefixGuard enforces rules against the authenticated caller. It must run after Middleware.
func PrefixGuard(rules []PrefixRule) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				writeAuthError(w, http.StatusUnauthorized, "Missing auth token")
				return
			}
			if !Allowed(rules, r.URL.Path, claims.Role) {
				writeAuthError(w, http.StatusForbidden, "Insufficient role for this resource")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
