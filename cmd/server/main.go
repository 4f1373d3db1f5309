package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-auth-client/authclient"
	"github.com/jrsteele09/go-auth-client/cookies"
	"github.com/jrsteele09/go-auth-client/discovery"
	"github.com/jrsteele09/go-auth-client/fedconnect"
	"github.com/jrsteele09/go-auth-client/internal/config"
	"github.com/jrsteele09/go-auth-client/server"
	"github.com/jrsteele09/go-auth-client/sessions"
	"github.com/jrsteele09/go-auth-client/transactions"
)

func main() {
	for {
		if err := run(); err != nil {
			log.Fatal().Err(err).Msg("error running server")
			time.Sleep(1 * time.Second)
		} else {
			break
		}
	}
	log.Info().Msg("server stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Any("panic", r).Msg("recovered from panic")
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	c := config.New()
	displayAppname(c.GetAppName())

	auth, err := newAuthClient(c)
	if err != nil {
		return err
	}

	httpServer := &http.Server{Addr: c.GetPort(), Handler: server.New(c, auth)}
	go listenAndServe(httpServer)
	waitForStopSignal()
	returnError = shutdown(httpServer)
	return returnError
}

func newAuthClient(c config.Config) (*authclient.Client, error) {
	cookieConfig := cookies.DefaultConfig()
	if strings.HasPrefix(c.GetAppBaseURL(), "https://") {
		cookieConfig.Secure = true
	}

	transactionStore, err := transactions.NewStore(transactions.Options{
		Secret:       c.GetSessionSecret(),
		CookieConfig: cookieConfig,
	})
	if err != nil {
		return nil, fmt.Errorf("[newAuthClient] %w", err)
	}

	sessionOptions := sessions.Options{
		Secret:             c.GetSessionSecret(),
		DisableRolling:     !c.GetSessionRolling(),
		AbsoluteDuration:   c.GetSessionAbsoluteDuration(),
		InactivityDuration: c.GetSessionInactivityDuration(),
		CookieConfig:       cookieConfig,
	}

	sessionStore, dataStore, err := newSessionStore(c, sessionOptions)
	if err != nil {
		return nil, err
	}

	authorizationParams := map[string]string{}
	if audience := c.GetAudience(); audience != "" {
		authorizationParams["audience"] = audience
	}

	discoverer := discovery.New(c.GetIssuer(), nil)
	return authclient.New(authclient.Options{
		TransactionStore:            transactionStore,
		SessionStore:                sessionStore,
		DataStore:                   dataStore,
		Discoverer:                  discoverer,
		Exchanger:                   fedconnect.NewExchanger(c.GetClientID(), c.GetClientSecret(), discoverer, nil),
		ClientID:                    c.GetClientID(),
		ClientSecret:                c.GetClientSecret(),
		AppBaseURL:                  c.GetAppBaseURL(),
		Scope:                       c.GetScope(),
		AuthorizationParams:         authorizationParams,
		PushedAuthorizationRequests: c.GetUsePushedAuthorization(),
	})
}

// newSessionStore selects the session strategy: Redis-backed stateful
// sessions when a Redis URL is configured, stateless cookie sessions
// otherwise.
func newSessionStore(c config.Config, opts sessions.Options) (sessions.Store, sessions.DataStore, error) {
	redisURL := c.GetRedisURL()
	if redisURL == "" {
		store, err := sessions.NewStatelessStore(opts)
		if err != nil {
			return nil, nil, fmt.Errorf("[newSessionStore] %w", err)
		}
		log.Info().Msg("using stateless cookie sessions")
		return store, nil, nil
	}

	redisOptions, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("[newSessionStore] invalid redis URL: %w", err)
	}

	ttl := time.Duration(opts.AbsoluteDuration) * time.Second
	if ttl == 0 {
		ttl = 3 * 24 * time.Hour // matches the default absolute session duration
	}
	dataStore := sessions.NewRedisDataStore(redis.NewClient(redisOptions), ttl)
	store, err := sessions.NewStatefulStore(opts, dataStore)
	if err != nil {
		return nil, nil, fmt.Errorf("[newSessionStore] %w", err)
	}
	log.Info().Msg("using redis-backed stateful sessions")
	return store, dataStore, nil
}

func listenAndServe(httpServer *http.Server) error {
	log.Info().Str("addr", httpServer.Addr).Msg("server listening")
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func shutdown(httpServer *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
