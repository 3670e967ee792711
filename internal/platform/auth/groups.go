package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// Well-known groups. Specialty groups (Fisioterapia, Psicologia, ...) are
// data-driven rows in the groups table; only these two carry fixed meaning
// in authorization decisions.
const (
	GroupAdmin  = "Admin"
	GroupWorker = "worker"
)

// HasGroup reports whether groups contains name.
func HasGroup(groups []string, name string) bool {
	for _, g := range groups {
		if g == name {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the caller belongs to the Admin group.
func IsAdmin(groups []string) bool {
	return HasGroup(groups, GroupAdmin)
}

// IsWorker reports whether the caller belongs to the worker group.
func IsWorker(groups []string) bool {
	return HasGroup(groups, GroupWorker)
}

// RelevantGroups returns the caller's groups minus Admin. Patient and
// appointment scoping partitions data by these specialty groups.
func RelevantGroups(groups []string) []string {
	out := make([]string, 0, len(groups))
	for _, g := range groups {
		if g != GroupAdmin {
			out = append(out, g)
		}
	}
	return out
}

// RequireGroup returns middleware that checks the caller belongs to at
// least one of the given groups. Admin members always pass.
func RequireGroup(groups ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userGroups := GroupsFromContext(c.Request().Context())
			if IsAdmin(userGroups) {
				return next(c)
			}
			for _, required := range groups {
				if HasGroup(userGroups, required) {
					return next(c)
				}
			}
			return echo.NewHTTPError(http.StatusForbidden,
				fmt.Sprintf("required group: %s", strings.Join(groups, " or ")))
		}
	}
}
