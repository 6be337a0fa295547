package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/annel0/packetguard/internal/api"
	"github.com/annel0/packetguard/internal/auth"
	"github.com/annel0/packetguard/internal/catalog"
	"github.com/annel0/packetguard/internal/config"
	"github.com/annel0/packetguard/internal/eventbus"
	"github.com/annel0/packetguard/internal/guard"
	"github.com/annel0/packetguard/internal/hooks"
	"github.com/annel0/packetguard/internal/itembans"
	"github.com/annel0/packetguard/internal/logging"
	"github.com/annel0/packetguard/internal/network"
	"github.com/annel0/packetguard/internal/observability"
	"github.com/annel0/packetguard/internal/permissions"
	"github.com/annel0/packetguard/internal/regions"
	"github.com/annel0/packetguard/internal/storage"
	"github.com/annel0/packetguard/internal/world"
)

func main() {
	configPath := flag.String("config", "", "путь к YAML конфигурации (иначе PACKETGUARD_CONFIG)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ Ошибка загрузки конфигурации: %v", err)
	}

	if err := logging.InitDefaultLogger("server", logging.Options{
		Dir:          cfg.Logging.Dir,
		ConsoleLevel: logging.ParseLevel(cfg.Logging.ConsoleLevel),
		FileLevel:    logging.ParseLevel(cfg.Logging.FileLevel),
	}); err != nil {
		log.Fatalf("❌ Ошибка инициализации логирования: %v", err)
	}
	defer logging.CloseDefaultLogger()
	logging.GetLoggerManager().Configure(logging.Options{
		Dir:          cfg.Logging.Dir,
		ConsoleLevel: logging.ParseLevel(cfg.Logging.ConsoleLevel),
		FileLevel:    logging.ParseLevel(cfg.Logging.FileLevel),
	})
	defer logging.GetLoggerManager().CloseAll()

	if err := run(cfg); err != nil {
		logging.Error("❌ %v", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	nodeID := fmt.Sprintf("%s-%s", cfg.Server.Name, uuid.NewString()[:8])
	logging.Info("🛡️ Запуск packetguard (узел %s)", nodeID)

	shutdownTracing, err := observability.InitTelemetry(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("телеметрия: %w", err)
	}
	defer shutdownTracing(context.Background())

	// === ХРАНИЛИЩА ===
	db, err := storage.Open(cfg.Storage.BadgerPath)
	if err != nil {
		return fmt.Errorf("badger: %w", err)
	}
	defer db.Close()
	journal, err := storage.NewEditJournal(db)
	if err != nil {
		return fmt.Errorf("журнал правок: %w", err)
	}

	users, closeUsers, err := openUsers(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeUsers()

	groups := permissions.DefaultRegistry()
	if cfg.Auth.GroupsFile != "" {
		if groups, err = permissions.LoadRegistryFile(cfg.Auth.GroupsFile); err != nil {
			return fmt.Errorf("группы прав: %w", err)
		}
	}

	var regionStore regions.Store
	if dsn := cfg.Maria.GetDSN(); dsn != "" {
		ms, err := regions.NewMariaStore(dsn)
		if err != nil {
			return fmt.Errorf("регионы: %w", err)
		}
		defer ms.Close()
		regionStore = ms
	}
	regionIndex := regions.NewManager(regionStore)
	if err := regionIndex.Reload(ctx); err != nil {
		return fmt.Errorf("загрузка регионов: %w", err)
	}

	bans := itembans.NewRegistry()
	if addr := cfg.Redis.GetAddr(); addr != "" {
		src, err := itembans.NewRedisSource(ctx, addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.BansKey)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		defer src.Close()
		n, err := bans.Reload(ctx, src)
		if err != nil {
			return fmt.Errorf("запреты предметов: %w", err)
		}
		logging.Info("Загружено запретов предметов: %d", n)

		if url := cfg.NATS.GetURL(); url != "" {
			w, err := itembans.NewWatcher(url, cfg.NATS.BansTopic, nodeID, bans, src)
			if err != nil {
				return err
			}
			defer w.Close()
			if err := w.Start(ctx); err != nil {
				return err
			}
		}
	}

	// === ШИНА СОБЫТИЙ ===
	var bus eventbus.EventBus
	if url := cfg.NATS.GetURL(); url != "" {
		jb, err := eventbus.NewJetStreamBus(url, cfg.NATS.Stream, time.Duration(cfg.NATS.Retention)*time.Hour)
		if err != nil {
			return err
		}
		bus = jb
	} else {
		bus = eventbus.NewMemoryBus(1024)
	}
	defer bus.Close()
	eventbus.Init(bus)
	if err := eventbus.StartLoggingListener(bus); err != nil {
		return err
	}
	notifier := eventbus.NewGuardNotifier(bus, nodeID)

	reg := prometheus.DefaultRegisterer
	busMetrics := eventbus.NewMetricsExporter(bus, reg)
	busMetrics.Start(5 * time.Second)
	defer busMetrics.Stop()

	// === КОНВЕЙЕР ===
	w := world.New(cfg.World, catalog.Default())
	g := guard.New(cfg.Guard, guard.Deps{
		World:      w,
		Regions:    regionIndex,
		Bans:       bans,
		Groups:     groups,
		Users:      users,
		Characters: storage.NewBadgerCharacterStore(db),
		Journal:    journal,
		Notifier:   notifier,
	})

	netMetrics := network.NewMetrics(reg)
	hub := network.NewHub(cfg.Server.MaxPlayers)
	hookRegistry := hooks.NewRegistry(cfg.Guard.HookSlowThreshold, cfg.Guard.HookMaxFailures)
	dispatcher := network.NewDispatcher(g, hookRegistry, network.NewRelay(g, hub, netMetrics), netMetrics)

	tcp, err := network.NewTCPServer(fmt.Sprintf(":%d", cfg.Server.GetTCPPort()), network.ServerDeps{
		Hub:        hub,
		Guard:      g,
		Dispatcher: dispatcher,
		Groups:     groups,
		Lifecycle:  notifier,
		Metrics:    netMetrics,
	})
	if err != nil {
		return fmt.Errorf("TCP сервер: %w", err)
	}
	tcp.Start()
	defer tcp.Stop()

	// === АДМИН-API ===
	tokens, err := auth.NewTokenIssuer(cfg.Auth.GetJWTSecret(), cfg.Auth.TokenTTL)
	if err != nil {
		return err
	}
	rest := api.NewRestServer(api.Config{
		Addr:    fmt.Sprintf(":%d", cfg.Server.GetRESTPort()),
		Users:   users,
		Tokens:  tokens,
		Groups:  groups,
		Players: hub,
	})
	go func() {
		if err := rest.Start(); err != nil {
			logging.Error("❌ Админ-API: %v", err)
			stop()
		}
	}()

	logging.Info("✅ Сервер запущен: TCP=%s, API=:%d", tcp.Addr(), cfg.Server.GetRESTPort())
	<-ctx.Done()
	logging.Info("🛑 Остановка сервера...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rest.Stop(shutdownCtx); err != nil {
		logging.Warn("Остановка админ-API: %v", err)
	}
	return nil
}

// openUsers выбирает хранилище учетных записей по auth.backend.
func openUsers(ctx context.Context, cfg *config.Config) (auth.UserRepository, func(), error) {
	switch cfg.Auth.Backend {
	case "maria":
		repo, err := auth.NewMariaUserRepo(cfg.Maria.GetDSN())
		if err != nil {
			return nil, nil, fmt.Errorf("MariaDB: %w", err)
		}
		return repo, func() { _ = repo.Close() }, nil
	case "mongo":
		repo, err := auth.NewMongoUserRepo(auth.MongoConfig{
			URI:      cfg.Mongo.URI,
			Database: cfg.Mongo.Database,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("MongoDB: %w", err)
		}
		return repo, func() { _ = repo.Close(ctx) }, nil
	default:
		logging.Warn("Учетные записи хранятся в памяти и не переживут перезапуск")
		return auth.NewMemoryUserRepo(), func() {}, nil
	}
}
