package cmd

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spigell/hh-coverbot/internal/ai/gemini"
	"github.com/spigell/hh-coverbot/internal/bot"
	"github.com/spigell/hh-coverbot/internal/generation"
	"github.com/spigell/hh-coverbot/internal/headhunter"
	"github.com/spigell/hh-coverbot/internal/logger"
	"github.com/spigell/hh-coverbot/internal/migrate"
	"github.com/spigell/hh-coverbot/internal/secrets"
	"github.com/spigell/hh-coverbot/internal/server"
	"github.com/spigell/hh-coverbot/internal/storage"
	"github.com/spigell/hh-coverbot/internal/storage/postgres"
	"github.com/spigell/hh-coverbot/internal/token"
)

const defaultServerAddr = ":8080"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and, if configured, the Telegram bot",
	Run: func(cmd *cobra.Command, _ []string) {
		serve(cmd)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("addr", "a", "", "listen address for the HTTP API")

	viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
}

func serve(cmd *cobra.Command) {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}
	if config == nil || config.HH == nil || config.Gemini == nil || config.Server == nil {
		logger.Fatal("config must set the hh, gemini and server sections")
	}

	logger.Info("starting the hh-coverbot", zap.String("version", version))

	clientSecret, err := secrets.Load(secrets.Source{
		Name:  "hh client secret",
		Value: config.HH.ClientSecret,
		Env:   "HH_CLIENT_SECRET",
		File:  config.HH.ClientSecretFile,
	})
	if err != nil {
		logger.Fatal("loading hh client secret", zap.Error(err))
	}

	geminiKey, err := secrets.Load(secrets.Source{
		Name:  "gemini api key",
		Value: config.Gemini.APIKey,
		Env:   "GEMINI_API_KEY",
		File:  config.Gemini.APIKeyFile,
	})
	if err != nil {
		logger.Fatal("loading gemini api key", zap.Error(err))
	}

	stateKey, err := secrets.Load(secrets.Source{
		Name:  "oauth state key",
		Value: config.Server.StateKey,
		Env:   "OAUTH_STATE_KEY",
		File:  config.Server.StateKeyFile,
	})
	if err != nil {
		logger.Fatal("loading oauth state key", zap.Error(err))
	}

	tokenStore, checkpoints, users, cleanup, err := buildStores(ctx, config, logger)
	if err != nil {
		logger.Fatal("preparing storage", zap.Error(err))
	}
	defer cleanup()

	manager := token.NewManager(token.OAuthConfig{
		ClientID:     config.HH.ClientID,
		ClientSecret: clientSecret,
		RedirectURI:  config.HH.RedirectURI,
		UserAgent:    config.HH.UserAgent,
	}, tokenStore, logger)

	generator, err := gemini.NewGenerator(ctx, geminiKey, config.Gemini.Model, logger)
	if err != nil {
		logger.Fatal("creating gemini generator", zap.Error(err))
	}
	logger.Info("gemini generator ready", zap.String("model", generator.Model()))

	workflow := generation.NewWorkflow(generator, checkpoints, logger)
	signer := token.NewStateSigner([]byte(stateKey))

	newClient := func(subject string) *headhunter.Client {
		client := headhunter.New(manager, subject, logger)
		if config.HH.UserAgent != "" {
			client.UserAgent = config.HH.UserAgent
		}
		return client
	}

	addr := config.Server.Addr
	if addr == "" {
		addr = defaultServerAddr
	}

	api := server.New(manager, signer, workflow, users,
		func(subject string) server.PlatformClient { return newClient(subject) },
		config.Rules, logger)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return api.Run(gctx, addr)
	})

	if config.Telegram != nil && config.Telegram.Enabled {
		botToken, err := secrets.Load(secrets.Source{
			Name:  "telegram bot token",
			Value: config.Telegram.Token,
			Env:   "TELEGRAM_TOKEN",
			File:  config.Telegram.TokenFile,
		})
		if err != nil {
			logger.Fatal("loading telegram bot token", zap.Error(err))
		}

		tgBot, err := bot.New(botToken, manager, signer, workflow, checkpoints,
			func(subject string) bot.PlatformClient { return newClient(subject) },
			config.Rules, logger)
		if err != nil {
			logger.Fatal("starting telegram bot", zap.Error(err))
		}

		g.Go(func() error {
			return tgBot.Run(gctx)
		})
	}

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		logger.Fatal("serving", zap.Error(err))
	}

	logger.Info("shut down cleanly")
}

// buildStores picks the storage backend: Postgres when a DSN is configured,
// in-process memory otherwise. The memory backend has no user repository, so
// profile bootstrapping is skipped there.
func buildStores(ctx context.Context, config *Config, logger *zap.Logger,
) (token.Store, generation.Checkpoints, storage.UserRepository, func(), error) {
	if config.Database == nil || config.Database.DSN == "" {
		logger.Warn("no database configured, tokens and drafts will not survive a restart")
		return token.NewMemoryStore(), generation.NewMemoryCheckpoints(), nil, func() {}, nil
	}

	dsn := config.Database.DSN

	if err := migrate.Up(ctx, dsn); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("applying migrations: %w", err)
	}

	db, err := postgres.New(ctx, dsn)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("connecting to postgres: %w", err)
	}

	logger.Info("postgres storage ready")

	return postgres.NewTokenStore(db), postgres.NewCheckpointStore(db), postgres.NewUserRepo(db), db.Close, nil
}
