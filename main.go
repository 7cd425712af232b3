package main

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"b3tr-store/internal/chain"
	"b3tr-store/internal/checkout"
	"b3tr-store/internal/config"
	"b3tr-store/internal/consumer"
	"b3tr-store/internal/handler"
	"b3tr-store/internal/httpapi"
	"b3tr-store/internal/kvstore"
	"b3tr-store/internal/metrics"
	"b3tr-store/internal/producer"
	"b3tr-store/internal/repository"
	"b3tr-store/internal/sender"
	"b3tr-store/internal/service"
	"b3tr-store/internal/wallet"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"
)

const migrationsTable = "storefront_schema_migrations"

func main() {
	envFile := flag.String("env-file", ".env", "path to a .env file")
	addr := flag.String("addr", "", "HTTP listen address (overrides HTTP_ADDR)")
	flag.Parse()

	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetOutput(os.Stdout)
	log.Info("Starting B3TR storefront...")

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.WithError(err).Fatal("Invalid configuration")
	}
	if *addr != "" {
		cfg.HTTPAddr = *addr
	}
	if level, err := log.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	} else {
		log.WithField("level", cfg.LogLevel).Warn("Unknown log level, using info")
	}
	log.WithFields(cfg.Fields()).Info("Configuration loaded")

	metrics.Register()

	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Storage: PostgreSQL when configured, otherwise process memory.
	var (
		store    kvstore.Store           = kvstore.NewMemoryStore()
		emailLog service.EmailRepository = repository.LogOnlyEmailRepository{}
	)
	if cfg.DatabaseURL != "" {
		db := openDatabase(cfg.DatabaseURL, cfg.MigrationsPath)
		defer db.Close()
		store = kvstore.NewPostgresStore(db)
		emailLog = repository.NewPostgresEmailRepository(db)
	} else {
		log.Warn("DATABASE_URL is not set, catalog and purchases are kept in memory")
	}

	catalog := repository.NewCatalogRepository(store)
	purchases := repository.NewPurchaseLog(store)

	// Receipt delivery.
	var receipts *service.ReceiptService
	if cfg.SMTP.Enabled() {
		smtpSender := sender.NewSMTPEmailSender(sender.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			User:     cfg.SMTP.User,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		})
		receipts = service.NewReceiptService(smtpSender, emailLog, cfg.App.Title, cfg.Chain.TokenSymbol)
	}

	var notifier checkout.Notifier = checkout.NopNotifier{}
	consumerDone := make(chan struct{})
	close(consumerDone)

	switch {
	case cfg.Kafka.Enabled():
		servers := cfg.Kafka.Servers()
		log.WithField("kafka_servers", servers).Info("Connecting to Kafka")

		pp, err := producer.New(servers, cfg.Kafka.Topic)
		if err != nil {
			log.WithError(err).Fatal("Failed to create Kafka producer")
		}
		defer pp.Close()
		notifier = pp

		if receipts != nil {
			kc, err := consumer.New(servers, cfg.Kafka.GroupID, cfg.Kafka.Topic, handler.NewPurchaseHandler(receipts))
			if err != nil {
				log.WithError(err).Fatal("Failed to create Kafka consumer")
			}
			defer kc.Close()

			consumerDone = make(chan struct{})
			go func() {
				defer close(consumerDone)
				if err := kc.Start(sigCtx); err != nil && !errors.Is(err, context.Canceled) {
					log.WithError(err).Error("Kafka consumer stopped")
				}
			}()
		}
	case receipts != nil:
		notifier = receipts
	default:
		log.Warn("Neither Kafka nor SMTP is configured, purchase receipts are disabled")
	}

	// Checkout.
	node := chain.New(cfg.Chain.NodeURL)
	token := chain.NewToken(cfg.Chain.TokenContract, cfg.Chain.TokenDecimals)

	registry := checkout.NewRegistry(&checkout.Services{
		Catalog: catalog,
		Guard: checkout.NewGuard(chain.NewBalances(node, token), checkout.GuardPolicy{
			TokenSymbol:   cfg.Chain.TokenSymbol,
			GasSymbol:     cfg.Chain.GasSymbol,
			MinGasBalance: decimal.NewFromFloat(cfg.Chain.MinGasBalance),
		}),
		Submitter: checkout.NewSubmitter(wallet.NewRemoteSigner(cfg.Checkout.SignerURL), checkout.SubmitterConfig{
			Token:       token,
			TokenSymbol: cfg.Chain.TokenSymbol,
			GasSymbol:   cfg.Chain.GasSymbol,
			Recipient:   cfg.Chain.RecipientAddress,
			GasLimit:    cfg.Chain.GasLimit,
			Delegator:   cfg.Checkout.DelegationURL,
		}),
		Poller:   checkout.NewPoller(node, cfg.Checkout.ReceiptPollInterval),
		Recorder: checkout.NewRecorder(purchases, notifier, cfg.Checkout.NotifyTimeout),
	}, cfg.Checkout.SessionTTL)
	go registry.Run(sigCtx)

	router := httpapi.NewRouter(httpapi.Deps{
		Info: httpapi.StoreInfo{
			Title:                  cfg.App.Title,
			Description:            cfg.App.Description,
			Icons:                  cfg.App.Icons,
			Network:                cfg.Chain.Network,
			NodeURL:                cfg.Chain.NodeURL,
			Recipient:              cfg.Chain.RecipientAddress,
			TokenContract:          cfg.Chain.TokenContract,
			TokenSymbol:            cfg.Chain.TokenSymbol,
			GasSymbol:              cfg.Chain.GasSymbol,
			WalletConnectProjectID: cfg.App.WalletConnectProjectID,
		},
		Catalog:       catalog,
		Purchases:     purchases,
		Sessions:      registry,
		AdminPassword: cfg.AdminPassword,
	})

	httpServer := httpapi.NewHTTPServer(cfg.HTTPAddr, router, cfg.HTTPTimeout)
	go httpServer.Run(stop)

	<-sigCtx.Done()
	log.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	httpServer.Close(shutdownCtx)
	registry.Shutdown(shutdownCtx)
	<-consumerDone

	log.Info("Storefront stopped")
}

func openDatabase(dbURL, migrationsPath string) *sql.DB {
	// A dedicated migrations table lets the storefront share a database with other services.
	migrationDBURL := dbURL
	if strings.Contains(dbURL, "?") {
		migrationDBURL = dbURL + "&x-migrations-table=" + migrationsTable
	} else {
		migrationDBURL = dbURL + "?x-migrations-table=" + migrationsTable
	}

	m, err := migrate.New(migrationsPath, migrationDBURL)
	if err != nil {
		log.WithError(err).Fatal("Could not create migration instance")
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		log.WithError(err).Fatal("Could not apply migration")
	}
	log.Info("Database migration successfully applied")

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		log.WithError(err).Fatal("Could not connect to database")
	}
	if err := db.Ping(); err != nil {
		log.WithError(err).Fatal("Could not reach database")
	}
	return db
}
