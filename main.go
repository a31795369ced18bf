package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/handler"

	"github.com/fumocord/fumobot/fumobot"
	"github.com/fumocord/fumobot/fumobot/commands"
	"github.com/fumocord/fumobot/fumobot/commands/economy"
	"github.com/fumocord/fumobot/fumobot/database"
	"github.com/fumocord/fumobot/fumobot/database/repositories"
	"github.com/fumocord/fumobot/fumobot/economy/trading"
	"github.com/fumocord/fumobot/fumobot/gacha"
	"github.com/fumocord/fumobot/fumobot/handlers"
	"github.com/fumocord/fumobot/fumobot/logger"
	"github.com/fumocord/fumobot/fumobot/services"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	slog.SetDefault(slog.New(logger.NewHandler(slog.LevelInfo)))

	slog.Info("Starting Fumo Bot",
		slog.String("version", version),
		slog.String("commit", commit))

	shouldSyncCommands := flag.Bool("sync-commands", false, "Whether to sync commands to discord")
	path := flag.String("config", "config.toml", "path to config")
	flag.Parse()

	cfg, err := fumobot.LoadConfig(*path)
	if err != nil {
		slog.Error("Failed to load configuration", slog.Any("error", err))
		os.Exit(-1)
	}
	slog.SetDefault(slog.New(logger.NewHandler(cfg.Log.Level)))

	slog.Info("Initializing database connection...")
	dbStartTime := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	db, err := database.New(ctx, database.DBConfig{
		Host:     cfg.DB.Host,
		Port:     cfg.DB.Port,
		User:     cfg.DB.User,
		Password: cfg.DB.Password,
		Database: cfg.DB.Database,
		PoolSize: cfg.DB.PoolSize,
	})
	if err != nil {
		slog.Error("Database connection failed",
			slog.Any("error", err),
			slog.Duration("attempted_for", time.Since(dbStartTime)))
		os.Exit(-1)
	}
	defer db.Close()

	if err := db.Ping(ctx); err != nil {
		slog.Error("Database ping failed", slog.Any("error", err))
		os.Exit(-1)
	}
	if err := db.InitializeSchema(ctx); err != nil {
		slog.Error("Failed to initialize database schema", slog.Any("error", err))
		os.Exit(-1)
	}

	slog.Info("Database ready",
		slog.String("database", cfg.DB.Database),
		slog.Duration("took", time.Since(dbStartTime)))

	b := fumobot.New(*cfg, version, commit)
	b.DB = db

	b.UserRepository = repositories.NewUserRepository(db.BunDB())
	b.ItemRepository = repositories.NewItemRepository(db.BunDB())
	b.PetRepository = repositories.NewPetRepository(db.BunDB())
	b.FumoRepository = repositories.NewFumoRepository(db.BunDB())

	// The trade store is both the resource reader the validator uses and
	// the settler that executes mutation plans.
	tradeStore := repositories.NewTradeStore(db.BunDB())
	b.TradeManager = trading.NewManager(cfg.Trade.Trading(), trading.NewSessionStore(), tradeStore, tradeStore)

	b.GachaEngine = gacha.NewEngine(cfg.Gacha.Engine(), repositories.NewGachaStore(db.BunDB(), b.FumoRepository))

	spacesService, err := services.NewSpacesService(
		cfg.Spaces.Key,
		cfg.Spaces.Secret,
		cfg.Spaces.Region,
		cfg.Spaces.Bucket,
		cfg.Spaces.FumoRoot,
	)
	if err != nil {
		slog.Error("Failed to initialize Spaces service", slog.Any("error", err))
		os.Exit(-1)
	}
	b.SpacesService = spacesService
	slog.Info("Spaces service ready",
		slog.String("bucket", spacesService.GetBucket()),
		slog.String("region", spacesService.GetRegion()))

	b.FumoSearch = services.NewFumoSearchService(b.FumoRepository)

	h := handler.New()

	h.Command("/balance", handlers.WrapWithLogging("balance", commands.BalanceHandler(b)))
	h.Command("/roll", handlers.WrapWithLogging("roll", commands.RollHandler(b)))
	h.Command("/coinflip", handlers.WrapWithLogging("coinflip", commands.CoinflipHandler(b)))
	h.Command("/collection", handlers.WrapWithLogging("collection", commands.CollectionHandler(b)))
	h.Command("/inventory", handlers.WrapWithLogging("inventory", commands.InventoryHandler(b)))
	h.Command("/daily", handlers.WrapWithLogging("daily", commands.DailyHandler(b)))
	h.Command("/leaderboard", handlers.WrapWithLogging("leaderboard", commands.LeaderboardHandler(b)))

	tradeHandler := economy.NewTradeHandler(b)
	tradeHandler.Register(h)

	if err = b.SetupBot(h, bot.NewListenerFunc(b.OnReady)); err != nil {
		slog.Error("Failed to setup bot",
			slog.String("type", "sys"),
			slog.Any("error", err))
		os.Exit(-1)
	}

	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		b.Client.Close(ctx)
	}()

	// Grace-timer settlements and janitor expiries land as DMs.
	b.TradeManager.SetNotifier(economy.NewTradeNotifier(b.Client, tradeHandler.Tokens()))

	janitorCtx, janitorCancel := context.WithCancel(context.Background())
	defer janitorCancel()
	b.TradeManager.StartJanitor(janitorCtx)

	if *shouldSyncCommands {
		slog.Info("Syncing commands",
			slog.String("type", "sys"),
			slog.Any("guild_ids", cfg.Bot.DevGuilds))
		if err = handler.SyncCommands(b.Client, commands.Commands, cfg.Bot.DevGuilds); err != nil {
			slog.Error("Failed to sync commands",
				slog.String("type", "sys"),
				slog.Any("error", err))
		}
	}

	gatewayCtx, gatewayCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer gatewayCancel()
	if err = b.Client.OpenGateway(gatewayCtx); err != nil {
		slog.Error("Failed to open gateway",
			slog.String("type", "sys"),
			slog.Any("error", err))
		os.Exit(-1)
	}

	slog.Info("Bot is running. Press CTRL-C to exit.")
	s := make(chan os.Signal, 1)
	signal.Notify(s, syscall.SIGINT, syscall.SIGTERM)
	<-s
	slog.Info("Shutting down bot...")
}
