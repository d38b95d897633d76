package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	httpadapter "github.com/PabloGalante/chat-relay/internal/adapters/http"
	"github.com/PabloGalante/chat-relay/internal/adapters/llm"
	firestorestore "github.com/PabloGalante/chat-relay/internal/adapters/storage/firestore"
	memstore "github.com/PabloGalante/chat-relay/internal/adapters/storage/memory"
	"github.com/PabloGalante/chat-relay/internal/adapters/storage/sqlstore"
	"github.com/PabloGalante/chat-relay/internal/app/conversation"
	"github.com/PabloGalante/chat-relay/internal/config"
	"github.com/PabloGalante/chat-relay/internal/domain"
	"github.com/PabloGalante/chat-relay/internal/observability"
)

const serviceName = "chat-relay"

func newServeCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP relay",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}

	cmd.Flags().String("port", "", "port to listen on (overrides RELAY_PORT / PORT)")
	_ = v.BindPFlag("port", cmd.Flags().Lookup("port"))

	return cmd
}

func serve(ctx context.Context, cfg *config.Config) error {
	log := observability.Setup(os.Stdout, cfg.LogLevel, cfg.LogFormat)

	shutdownTracing, err := observability.SetupTracing(ctx, cfg.OTelEndpoint, serviceName)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			log.Warn("tracing shutdown failed", "error", err)
		}
	}()

	ai, err := newAIClient(ctx, cfg)
	if err != nil {
		return err
	}
	log.Info("ai client ready", "provider", cfg.AIProvider, "model", cfg.AIModel)

	store, err := newSessionStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Warn("closing session store failed", "error", err)
		}
	}()
	log.Info("session store ready", "backend", cfg.StorageBackend)

	svc := conversation.NewService(ai, store, conversation.Options{
		AITimeout: cfg.AITimeout,
		MaxTurns:  cfg.SessionMaxTurns,
	})

	sweeper := conversation.NewSweeper(store, cfg.SessionTTL, cfg.SessionSweepInterval)
	sweeper.Start(ctx)
	defer sweeper.Stop()

	secret, err := sessionSecret(cfg)
	if err != nil {
		return err
	}

	handler := httpadapter.NewServer(svc, httpadapter.Options{
		Identity: httpadapter.IdentityConfig{
			CookieName: cfg.SessionCookieName,
			Secret:     secret,
			TTL:        cfg.SessionTTL,
			Secure:     cfg.SessionCookieSecure,
		},
		CORSOrigin: cfg.CORSOrigin,
	})

	srv := newHTTPServer(cfg, handler)

	errCh := make(chan error, 1)
	go func() {
		log.Info("chat relay listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 2*cfg.AITimeout+5*time.Second)
	defer cancel()
	return srv.Shutdown(sctx)
}

// newHTTPServer sizes WriteTimeout for a request that waits out another
// exchange on the same identity before making its own AI call.
func newHTTPServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      2*cfg.AITimeout + 10*time.Second,
		IdleTimeout:       2 * time.Minute,
	}
}

func newAIClient(ctx context.Context, cfg *config.Config) (domain.AIClient, error) {
	switch cfg.AIProvider {
	case config.ProviderMock:
		return llm.NewMockLLM(), nil
	case config.ProviderGemini, config.ProviderVertex:
		return llm.NewGeminiClient(ctx, llm.GeminiConfig{
			APIKey:          cfg.GeminiAPIKey,
			Project:         cfg.GCPProjectID,
			Location:        cfg.GCPLocation,
			Vertex:          cfg.AIProvider == config.ProviderVertex,
			Model:           cfg.AIModel,
			SystemPrompt:    cfg.SystemPrompt,
			MaxOutputTokens: int32(cfg.MaxOutputTokens),
		})
	case config.ProviderAnthropic:
		return llm.NewAnthropicClient(llm.AnthropicConfig{
			APIKey:          cfg.AnthropicAPIKey,
			Model:           cfg.AIModel,
			SystemPrompt:    cfg.SystemPrompt,
			MaxOutputTokens: int64(cfg.MaxOutputTokens),
		}), nil
	default:
		return nil, fmt.Errorf("unknown ai provider %q", cfg.AIProvider)
	}
}

func newSessionStore(ctx context.Context, cfg *config.Config) (domain.SessionStore, error) {
	switch cfg.StorageBackend {
	case config.StorageMemory:
		return memstore.NewSessionStore(), nil
	case config.StorageSQLite, config.StoragePostgres, config.StorageMySQL:
		dialect, err := sqlstore.DialectFor(string(cfg.StorageBackend))
		if err != nil {
			return nil, err
		}
		return sqlstore.Open(ctx, dialect, cfg.StorageDSN)
	case config.StorageFirestore:
		return firestorestore.NewStore(ctx, cfg.GCPProjectID)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

func sessionSecret(cfg *config.Config) ([]byte, error) {
	if cfg.SessionSecret != "" {
		return []byte(cfg.SessionSecret), nil
	}
	observability.Logger().Warn("session.secret not set, generated a random one; identities will not survive a restart")
	return httpadapter.NewSecret()
}
