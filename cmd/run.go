package cmd

import (
	"context"
	"fmt"
	"time"

	"luckystake/api"
	"luckystake/auth"
	"luckystake/config"
	"luckystake/database"
	"luckystake/events"
	"luckystake/metrics"
	"luckystake/notify"
	"luckystake/notify/discord"
	"luckystake/notify/natsbridge"
	"luckystake/repository"
	"luckystake/repository/memory"
	"luckystake/service"
	"luckystake/worker"

	log "github.com/sirupsen/logrus"
)

const challengeSweepInterval = time.Minute

// Run initializes and starts the application
func Run(ctx context.Context) error {
	cfg := config.Get()
	configureLogging(cfg)

	log.WithField("environment", cfg.Environment).Info("Starting LuckyStake ledger...")

	eventBus := events.NewBus()

	uowFactory, closeStore, err := openStore(ctx, cfg, eventBus)
	if err != nil {
		return err
	}
	defer closeStore()

	// Initialize services
	services := api.Services{
		Ledger:   service.NewLedgerService(uowFactory),
		Pools:    service.NewPoolService(uowFactory),
		Accounts: service.NewAccountService(uowFactory),
		Yield:    service.NewYieldService(uowFactory, cfg.AnnualYieldRate, 24*time.Hour),
		Draws:    service.NewDrawService(uowFactory, service.NewCryptoRandom(), cfg.PrizeHistoryLimit),
	}

	if err := seedPools(ctx, cfg, services.Pools); err != nil {
		return err
	}

	collector := metrics.NewCollector()
	collector.Subscribe(eventBus)

	hub := notify.NewHub(services.Pools, collector, notify.DefaultBufferSize)
	hub.Attach(eventBus)
	defer hub.Close()

	if cfg.NATSServers != "" {
		conn, err := natsbridge.Connect(cfg.NATSServers)
		if err != nil {
			return fmt.Errorf("failed to connect to NATS: %w", err)
		}
		defer conn.Drain()
		natsbridge.New(conn).Attach(eventBus)
		log.WithField("servers", cfg.NATSServers).Info("NATS event bridge enabled")
	}

	if cfg.DiscordToken != "" {
		announcer, err := discord.New(cfg.DiscordToken, cfg.DiscordAnnounceChannelID)
		if err != nil {
			return fmt.Errorf("failed to create Discord announcer: %w", err)
		}
		announcer.Attach(eventBus)
		log.WithField("channel", cfg.DiscordAnnounceChannelID).Info("Discord prize announcements enabled")
	}

	challenges := auth.NewChallengeStore(auth.ChallengeTTL)
	challenges.StartSweeper(ctx, challengeSweepInterval)
	authenticator := auth.NewAuthenticator(
		challenges,
		nil,
		auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTExpiry),
		services.Accounts,
	)

	// Background jobs
	stopDraws := worker.NewDrawWorker(uowFactory, services.Draws).Start(ctx)
	defer stopDraws()

	scheduler, err := worker.NewYieldScheduler(services.Yield, cfg.YieldAccrualSchedule)
	if err != nil {
		return err
	}
	stopYield, err := scheduler.Start(ctx)
	if err != nil {
		return fmt.Errorf("failed to start yield scheduler: %w", err)
	}
	defer stopYield()

	server := api.NewServer(api.Options{
		Services:      services,
		Authenticator: authenticator,
		AdminKey:      cfg.AdminKey,
		WebSocket:     notify.NewWebSocketServer(hub),
		Metrics:       collector,
		Production:    cfg.IsProduction(),
	})

	if err := server.Run(ctx, cfg.HTTPAddr); err != nil {
		return err
	}

	log.Info("Shutdown completed")
	return nil
}

// openStore connects to PostgreSQL, or falls back to the in-memory store
// when no database is configured
func openStore(ctx context.Context, cfg *config.Config, bus *events.Bus) (service.UnitOfWorkFactory, func(), error) {
	if cfg.UsesMemoryStore() {
		log.Warn("DATABASE_URL not set, ledger state is kept in memory only")
		return memory.NewStore(bus).NewUnitOfWorkFactory(), func() {}, nil
	}

	databaseURL := cfg.GetDatabaseURL()
	if err := database.MigrateUp(databaseURL); err != nil {
		return nil, nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	db, err := database.NewConnection(ctx, databaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	log.Info("Database connection established")

	return repository.NewUnitOfWorkFactory(db, bus), func() {
		log.Info("Closing database connection...")
		db.Close()
	}, nil
}

func seedPools(ctx context.Context, cfg *config.Config, pools service.PoolService) error {
	catalog, err := config.LoadPoolCatalog(cfg.PoolsFile)
	if err != nil {
		return err
	}
	built, err := config.BuildPools(catalog, time.Now().UTC())
	if err != nil {
		return err
	}
	return pools.SeedPools(ctx, built)
}

func configureLogging(cfg *config.Config) {
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.WithField("level", cfg.LogLevel).Warn("Unknown log level, using info")
		level = log.InfoLevel
	}
	log.SetLevel(level)

	if cfg.IsProduction() {
		log.SetFormatter(&log.JSONFormatter{})
		return
	}
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
}
