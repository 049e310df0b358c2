package handler

import (
	"net/http"

	"github.com/go-classroom-api/internal/domain"
)

// ListRoles returns the closed set of assignable roles.
func ListRoles(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, domain.Roles())
}
