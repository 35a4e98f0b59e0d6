package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-portal/apiclient"
	"github.com/jrsteele09/go-portal/chat"
	"github.com/jrsteele09/go-portal/contact"
	"github.com/jrsteele09/go-portal/internal/config"
	"github.com/jrsteele09/go-portal/internal/metrics"
	"github.com/jrsteele09/go-portal/server"
	"github.com/jrsteele09/go-portal/server/authflowrepo"
	"github.com/jrsteele09/go-portal/session"
	"github.com/jrsteele09/go-portal/tokenstore"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const sweepInterval = 5 * time.Minute

func main() {
	for {
		if err := run(); err != nil {
			log.Fatal().Err(err).Msg("Error running server")
		} else {
			break
		}
	}
	log.Info().Msg("Server stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("Recovered from panic")
			returnError = errors.New("panic recovered")
		}
	}()

	c := config.New()
	setupLogging(c.GetEnv())
	displayAppname(c.GetAppName())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	kv, closeKV, err := openTokenKV(ctx, c)
	if err != nil {
		return err
	}
	defer closeKV()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	sessions, err := session.NewRegistry(kv, c.GetAPIURL(),
		session.WithRegistryMetrics(m),
		session.WithClientOptions(apiclient.WithTimeout(c.GetRequestTimeout())),
	)
	if err != nil {
		return fmt.Errorf("session registry: %w", err)
	}
	go sweepSessions(ctx, sessions, c.GetMaxSessionAge())

	options := []server.Option{server.WithMetrics(m, reg)}
	if svc, err := newContactService(c, m); err != nil {
		log.Warn().Err(err).Msg("contact form disabled")
	} else {
		options = append(options, server.WithContactService(svc))
	}
	if chatClient, err := newChatClient(c, m); err != nil {
		log.Warn().Err(err).Msg("chat widget disabled")
	} else {
		options = append(options, server.WithChatClient(chatClient))
	}

	handler, err := server.New(c, sessions, authflowrepo.NewInMemoryRepo(authflowrepo.DefaultTTL), options...)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              c.GetPort(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go listenAndServe(srv)
	waitForStopSignal()
	returnError = shutdown(srv)
	return returnError
}

func setupLogging(env string) {
	zerolog.TimeFieldFormat = time.RFC3339
	if env == "DEV" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		return
	}
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

// openTokenKV builds the token storage backend named by TOKEN_STORAGE
func openTokenKV(ctx context.Context, c config.Config) (tokenstore.KV, func(), error) {
	var (
		kv      tokenstore.KV
		closeFn = func() {}
	)
	switch c.GetTokenStorage() {
	case "redis":
		client, err := tokenstore.DialRedis(ctx, c.GetRedisURL())
		if err != nil {
			return nil, nil, fmt.Errorf("redis token storage: %w", err)
		}
		kv = tokenstore.NewRedisKV(client, c.GetAppName()+":", c.GetMaxSessionAge())
		closeFn = func() {
			if err := client.Close(); err != nil {
				log.Warn().Err(err).Msg("redis close")
			}
		}
	case "file":
		fileKV, err := tokenstore.NewFileKV(c.GetTokenFile())
		if err != nil {
			return nil, nil, fmt.Errorf("file token storage: %w", err)
		}
		kv = fileKV
	default:
		kv = tokenstore.NewMemoryKV()
	}

	sealed, err := tokenstore.NewSealedKV(kv, c.GetSessionSecret())
	if err != nil {
		return nil, nil, fmt.Errorf("sealed token storage: %w", err)
	}
	log.Info().Str("storage", c.GetTokenStorage()).Msg("token storage ready")
	return sealed, closeFn, nil
}

func newContactService(c config.Config, m *metrics.Metrics) (*contact.Service, error) {
	mailer, err := contact.NewMailer(c)
	if err != nil {
		return nil, err
	}
	return contact.NewService(mailer, c.GetMailFrom(), c.GetSmtpRecipient(), contact.WithMetrics(m))
}

func newChatClient(c config.Config, m *metrics.Metrics) (*chat.Client, error) {
	return chat.New(c.GetChatAPIURL(), c.GetChatAPIKey(), c.GetChatModel(),
		chat.WithSystemPrompt(c.GetChatSystemPrompt()),
		chat.WithHistoryLimit(c.GetChatHistoryLimit()),
		chat.WithTimeout(c.GetChatTimeout()),
		chat.WithMetrics(m),
	)
}

func sweepSessions(ctx context.Context, sessions *session.Registry, maxIdle time.Duration) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := sessions.Sweep(maxIdle); n > 0 {
				log.Debug().Int("dropped", n).Msg("idle sessions swept")
			}
		}
	}
}

func listenAndServe(server *http.Server) {
	log.Info().Msgf("Server listening on %s", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("server.ListenAndServe")
	}
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
