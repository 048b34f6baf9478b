package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"campsite/internal/config"
	"campsite/internal/database"
	"campsite/internal/domain"
	"campsite/internal/events"
	"campsite/internal/repository"
	"campsite/internal/service"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

type options struct {
	configPath string
	jsonOutput bool
}

// session is the set of components one command runs against.
type session struct {
	cfg          *config.Config
	store        domain.Store
	policy       *service.PolicyValidator
	reservations *service.ReservationService
	redis        *redis.Client
	logger       *zerolog.Logger
}

func (s *session) Close() {
	if s.redis != nil {
		_ = repository.Close(s.redis)
	}
	_ = s.store.Close()
}

// NewRootCmd builds the campsitectl command tree.
func NewRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "campsitectl",
		Short: "Operate the campsite reservation store",
		Long: `campsitectl books, updates and cancels campsite reservations directly
against the configured database, and exports or backs up its contents.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}

	defaultConfig := os.Getenv("CONFIG_PATH")
	if defaultConfig == "" {
		defaultConfig = "configs/config.yaml"
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", defaultConfig, "Path to the config file")
	root.PersistentFlags().BoolVar(&opts.jsonOutput, "json", false, "Output in JSON format")

	root.AddCommand(
		newBookCmd(opts),
		newUpdateCmd(opts),
		newCancelCmd(opts),
		newShowCmd(opts),
		newAvailabilityCmd(opts),
		newExportCmd(opts),
		newBackupCmd(opts),
	)
	return root
}

// Execute runs the command tree and prints a failing command's error.
func Execute() error {
	root := NewRootCmd()
	err := root.Execute()
	if err != nil {
		printError(root.ErrOrStderr(), err)
	}
	return err
}

func openSession(cmd *cobra.Command, opts *options) (*session, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger := zerolog.New(cmd.ErrOrStderr()).Level(zerolog.WarnLevel).With().Timestamp().Str("component", "campsitectl").Logger()
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	store, err := database.Open(ctx, cfg.Database, &logger)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	bus := events.NewEventBus()
	policy := service.NewPolicyValidator(cfg.Policy)
	s := &session{
		cfg:          cfg,
		store:        store,
		policy:       policy,
		reservations: service.NewReservationService(store, policy, bus, &logger),
		logger:       &logger,
	}

	// Mutations made here must drop entries the API has cached in Redis.
	if cfg.Redis.Address != "" {
		client := repository.NewRedisClient(cfg.Redis)
		if err := repository.Ping(ctx, client); err != nil {
			logger.Warn().Err(err).Msg("redis unavailable, cached availability is not invalidated")
			_ = client.Close()
		} else {
			s.redis = client
			cache := repository.NewRedisAvailabilityCache(client, time.Duration(cfg.Redis.CacheTTL)*time.Second)
			cached := service.NewCachedAvailability(s.reservations, cache, &logger)
			cached.Subscribe(bus)
		}
	}

	return s, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
