package main

import (
	"fmt"
	"io"

	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"

	"github.com/jrsteele09/go-anon-client/apiclient"
	"github.com/jrsteele09/go-anon-client/auth"
	"github.com/jrsteele09/go-anon-client/guard"
	"github.com/jrsteele09/go-anon-client/internal/config"
	"github.com/jrsteele09/go-anon-client/internal/logging"
	"github.com/jrsteele09/go-anon-client/messages"
	"github.com/jrsteele09/go-anon-client/sessions/filestore"
	"github.com/jrsteele09/go-anon-client/token/refresh"
)

// app holds everything a command needs, wired once per invocation
type app struct {
	config   config.Config
	logs     io.Closer
	jar      *apiclient.FileJar
	client   *apiclient.Client
	manager  *auth.Manager
	guard    *guard.Guard
	messages *messages.Service
}

func newApp(c config.Config, fs afero.Fs) (*app, error) {
	logs := logging.Setup(c)

	store, err := filestore.New(fs, config.DataPath(c, c.GetSessionFile()))
	if err != nil {
		return nil, fmt.Errorf("[newApp] session store: %w", err)
	}

	jar, err := apiclient.NewFileJar(fs, config.DataPath(c, c.GetCookieFile()), c.GetAPIBaseURL())
	if err != nil {
		return nil, fmt.Errorf("[newApp] cookie jar: %w", err)
	}

	client, err := apiclient.New(c.GetAPIBaseURL(),
		apiclient.WithCookieJar(jar),
		apiclient.WithTimeout(c.GetRequestTimeout()),
		apiclient.WithRateLimit(c.GetRequestsPerSecond()),
	)
	if err != nil {
		return nil, fmt.Errorf("[newApp] api client: %w", err)
	}

	manager := auth.NewManager(client, store, auth.WithLoginURL(c.GetLoginURL()))
	coordinator := refresh.NewCoordinator(store, manager, refresh.NewHTTPRefresher(client, store),
		refresh.WithSkew(c.GetRefreshSkew()),
		refresh.WithRefreshTimeout(c.GetRefreshTimeout()),
		refresh.WithClearOnUnreachable(c.GetClearSessionOnUnreachable()),
	)
	client.Use(coordinator.Interceptor())

	manager.Rehydrate()
	manager.Subscribe(func(s auth.State) {
		if s.Authenticated() {
			return
		}
		// The refresh cookie belongs to the session that just ended
		if err := jar.Clear(); err != nil {
			log.Err(err).Msg("Failed to clear cookies")
		}
	})

	flags, err := messages.NewFlags(fs, config.DataPath(c, c.GetFlagsFile()))
	if err != nil {
		return nil, fmt.Errorf("[newApp] message flags: %w", err)
	}

	return &app{
		config:   c,
		logs:     logs,
		jar:      jar,
		client:   client,
		manager:  manager,
		guard:    guard.New(manager, c.GetLoginURL()),
		messages: messages.NewService(client, flags),
	}, nil
}

func (a *app) Close() error {
	return a.logs.Close()
}
