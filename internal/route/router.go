// Package route resolves navigation paths against a route table guarded by
// session predicates.
//
// Resolution guards run while matching: a denial skips the route, so a route
// hidden by a role looks exactly like an unknown path. Activation guards run on
// the resolved route and redirect to login on denial.
package route

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/and161185/bookshelf/internal/errs"
)

// ErrLoginRequired is returned when an activation guard wants the user to log in.
var ErrLoginRequired = fmt.Errorf("login required: %w", errs.ErrUnauthorized)

// Session is what guards may ask about the current user.
type Session interface {
	IsLoggedIn() bool
	HasRole(role string) bool
}

// Navigator receives redirects.
type Navigator interface {
	ToLogin()
}

// Guard inspects the session for a route; a non-nil error denies.
type Guard func(s Session, r *Route) error

// Route is one entry of the table. Path is a gorilla/mux template such as
// "/book/{id:[0-9]+}/edit"; a missing leading slash is added.
type Route struct {
	Name        string
	Path        string
	Role        string
	CanMatch    []Guard
	CanActivate []Guard
}

// Match is a resolved route with its path parameters.
type Match struct {
	Route  *Route
	Params map[string]string
}

// Router resolves paths. Routes are tried in table order.
type Router struct {
	mux      *mux.Router
	routes   map[*mux.Route]*Route
	fallback *Route
	sess     Session
	nav      Navigator
	log      *zap.Logger
}

// Option configures a Router.
type Option func(*Router)

// WithFallback resolves unknown paths to r instead of failing.
func WithFallback(r *Route) Option { return func(rt *Router) { rt.fallback = r } }

// WithNavigator sets where activation denials redirect.
func WithNavigator(n Navigator) Option { return func(rt *Router) { rt.nav = n } }

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(rt *Router) { rt.log = l } }

// New builds a router over routes. A route with an invalid template is logged and never matches.
func New(sess Session, routes []*Route, opts ...Option) *Router {
	rt := &Router{
		mux:    mux.NewRouter(),
		routes: make(map[*mux.Route]*Route, len(routes)),
		sess:   sess,
		log:    zap.NewNop(),
	}
	for _, o := range opts {
		o(rt)
	}
	rt.log = rt.log.Named("route")

	for _, r := range routes {
		mr := rt.mux.Path(clean(r.Path)).Name(r.Name).MatcherFunc(rt.canMatch(r))
		if err := mr.GetError(); err != nil {
			rt.log.Error("bad route template", zap.String("route", r.Name), zap.String("path", r.Path), zap.Error(err))
			continue
		}
		rt.routes[mr] = r
	}
	return rt
}

// canMatch runs the resolution guards; a denial makes mux skip the route.
func (rt *Router) canMatch(r *Route) mux.MatcherFunc {
	return func(*http.Request, *mux.RouteMatch) bool {
		if err := runGuards(r.CanMatch, rt.sess, r); err != nil {
			rt.log.Debug("route skipped", zap.String("route", r.Name), zap.Error(err))
			return false
		}
		return true
	}
}

// Resolve finds the first route whose template matches and whose resolution guards pass.
func (rt *Router) Resolve(path string) (Match, error) {
	req := &http.Request{Method: http.MethodGet, URL: &url.URL{Path: clean(path)}}
	var rm mux.RouteMatch
	if rt.mux.Match(req, &rm) && rm.MatchErr == nil {
		if r, ok := rt.routes[rm.Route]; ok {
			params := rm.Vars
			if params == nil {
				params = map[string]string{}
			}
			return Match{Route: r, Params: params}, nil
		}
	}
	if rt.fallback != nil {
		return Match{Route: rt.fallback, Params: map[string]string{}}, nil
	}
	return Match{}, fmt.Errorf("%w: %s", errs.ErrRouteNotFound, path)
}

// Activate runs the activation guards of m, redirecting to login on ErrLoginRequired.
func (rt *Router) Activate(m Match) error {
	err := runGuards(m.Route.CanActivate, rt.sess, m.Route)
	if err != nil && rt.nav != nil && isLoginRequired(err) {
		rt.nav.ToLogin()
	}
	return err
}

// Navigate resolves and activates path.
func (rt *Router) Navigate(path string) (Match, error) {
	m, err := rt.Resolve(path)
	if err != nil {
		return Match{}, err
	}
	if err := rt.Activate(m); err != nil {
		return Match{}, err
	}
	return m, nil
}

// runGuards short-circuits on the first denial.
func runGuards(gs []Guard, s Session, r *Route) error {
	for _, g := range gs {
		if err := g(s, r); err != nil {
			return err
		}
	}
	return nil
}

func isLoginRequired(err error) bool { return errors.Is(err, ErrLoginRequired) }

// clean turns "book/7/" into "/book/7".
func clean(p string) string { return "/" + strings.Trim(p, "/") }
