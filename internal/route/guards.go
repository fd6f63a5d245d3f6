package route

import (
	"go.uber.org/zap"

	"github.com/and161185/bookshelf/internal/errs"
	"github.com/and161185/bookshelf/internal/model"
)

// RoleAdmin guards the write routes.
const RoleAdmin = model.RoleAdmin

// LoginGate denies activation unless the session is valid.
func LoginGate(s Session, _ *Route) error {
	if s.IsLoggedIn() {
		return nil
	}
	return ErrLoginRequired
}

// RoleGate builds a resolution guard requiring the route's Role.
// A route without a role passes; that is a table mistake and gets logged.
func RoleGate(log *zap.Logger) Guard {
	if log == nil {
		log = zap.NewNop()
	}
	return func(s Session, r *Route) error {
		if r.Role == "" {
			log.Warn("role gate on route without role", zap.String("route", r.Name))
			return nil
		}
		if s.IsLoggedIn() && s.HasRole(r.Role) {
			return nil
		}
		return errs.ErrForbidden
	}
}

// Names of the client's routes.
const (
	NameLogin      = "login"
	NameSearch     = "search"
	NameCreate     = "create"
	NameDetail     = "detail"
	NameEdit       = "edit"
	NameDeleteBook = "delete"
)

// Table returns the client's route table.
func Table(log *zap.Logger) []*Route {
	role := RoleGate(log)
	admin := func(name, path string) *Route {
		return &Route{
			Name:        name,
			Path:        path,
			Role:        RoleAdmin,
			CanMatch:    []Guard{role},
			CanActivate: []Guard{LoginGate},
		}
	}
	return []*Route{
		{Name: NameLogin, Path: "/login"},
		{Name: NameSearch, Path: "/search"},
		admin(NameCreate, "/book/new"),
		{Name: NameDetail, Path: "/book/{id:[0-9]+}"},
		admin(NameEdit, "/book/{id:[0-9]+}/edit"),
		admin(NameDeleteBook, "/book/{id:[0-9]+}/delete"),
	}
}
