package main

import (
	"fmt"
	"io"
	"net/http"

	"github.com/fatih/color"
	"go.uber.org/zap"

	"github.com/and161185/bookshelf/internal/client"
	"github.com/and161185/bookshelf/internal/config"
	"github.com/and161185/bookshelf/internal/gateway"
	"github.com/and161185/bookshelf/internal/idp"
	"github.com/and161185/bookshelf/internal/logging"
	"github.com/and161185/bookshelf/internal/route"
	"github.com/and161185/bookshelf/internal/search"
	"github.com/and161185/bookshelf/internal/session"
)

// app is the wired client stack shared by all commands of one invocation.
type app struct {
	cfg *config.Client
	log *zap.Logger
	out *printer
	nav *loginHint

	session *session.Manager
	books   *client.Client
	search  *search.State
	router  *route.Router
}

// loginHint is the navigator target: a CLI cannot redirect, so it tells the user what to run.
type loginHint struct {
	w     io.Writer
	muted bool
}

func (h *loginHint) ToLogin() {
	if h.muted {
		return
	}
	fmt.Fprintf(h.w, "%s not logged in, run %s\n", color.YellowString("•"), color.CyanString("shelf login"))
}

func newApp(opts *rootOptions, stdout, stderr io.Writer) (*app, error) {
	cfg, err := config.LoadClient(opts.configPath)
	if err != nil {
		return nil, err
	}
	level := cfg.Log.Level
	if opts.verbose {
		level = "debug"
	}
	log, err := logging.New(level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}
	out, err := newPrinter(stdout, opts.output)
	if err != nil {
		return nil, err
	}

	nav := &loginHint{w: stderr}
	idpClient := idp.New(idp.Config{
		URL:      cfg.IdP.URL,
		Realm:    cfg.IdP.Realm,
		ClientID: cfg.IdP.ClientID,
	}, &http.Client{Timeout: cfg.Timeout}, log)

	sess := session.NewManager(
		session.NewFileStore(cfg.SessionDir),
		idpClient,
		session.WithNavigator(nav),
		session.WithLogger(log),
	)

	tr := gateway.NewTransport(http.DefaultTransport, sess, cfg.RatePerSecond, log)
	books := client.New(cfg.APIURL, gateway.NewHTTPClient(tr, cfg.Timeout), log)

	return &app{
		cfg:     cfg,
		log:     log,
		out:     out,
		nav:     nav,
		session: sess,
		books:   books,
		search:  search.New(books, log),
		router:  route.New(sess, route.Table(log), route.WithNavigator(nav), route.WithLogger(log)),
	}, nil
}

// enter navigates to path; commands run only when the route activates.
func (a *app) enter(path string) (route.Match, error) {
	m, err := a.router.Navigate(path)
	if err != nil {
		return route.Match{}, err
	}
	a.log.Debug("route", zap.String("name", m.Route.Name), zap.Any("params", m.Params))
	return m, nil
}

func (a *app) close() { _ = a.log.Sync() }
