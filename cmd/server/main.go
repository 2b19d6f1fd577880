package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"math/big"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/ethereum/go-ethereum/common"

	"mint-gate.backend/internal/config"
	"mint-gate.backend/internal/infrastructure/blockchain"
	"mint-gate.backend/internal/infrastructure/repositories"
	"mint-gate.backend/internal/interfaces/http/handlers"
	"mint-gate.backend/internal/interfaces/http/middleware"
	"mint-gate.backend/internal/usecases"
	"mint-gate.backend/pkg/events"
	"mint-gate.backend/pkg/jwt"
	"mint-gate.backend/pkg/logger"
	"mint-gate.backend/pkg/redis"
)

var (
	loadDotenv = godotenv.Load
	loadCfg    = config.Load
	initLog    = logger.Init
	initRedis  = redis.Init
	openDB     = func(dsn string) (*gorm.DB, error) {
		return gorm.Open(postgres.New(postgres.Config{
			DSN:                  dsn,
			PreferSimpleProtocol: true,
		}), &gorm.Config{
			PrepareStmt: false,
		})
	}
	runServer = func(r *gin.Engine, port string) error { return r.Run(":" + port) }
	getStdDB  = func(db *gorm.DB) (*sql.DB, error) { return db.DB() }
)

func main() {
	if err := runMainProcess(); err != nil {
		log.Fatal(err)
	}
}

func runMainProcess() error {
	// Load .env file
	if err := loadDotenv(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := loadCfg()

	initLog(cfg.Server.Env)
	logger.Info(context.Background(), "Logger initialized", zap.String("env", cfg.Server.Env))

	if err := initRedis(cfg.Redis.URL, cfg.Redis.PASSWORD); err != nil {
		logger.Error(context.Background(), "Failed to initialize Redis", zap.Error(err))
		return fmt.Errorf("failed to initialize redis: %w", err)
	}
	logger.Info(context.Background(), "Redis initialized")

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Connect to database using GORM
	db, err := openDB(cfg.Database.URL())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := getStdDB(db)
	if err != nil {
		return fmt.Errorf("failed to get generic database object: %w", err)
	}
	defer sqlDB.Close()

	if err := sqlDB.Ping(); err != nil {
		log.Printf("Database not available: %v (endpoints will return errors)", err)
	} else {
		log.Println("Connected to PostgreSQL via GORM")
	}

	// Event publisher. Publishing is optional; without a NATS URL events are
	// dropped.
	var publisher events.Publisher = events.NoopPublisher{}
	if cfg.NATS.URL != "" {
		natsPublisher, err := events.NewNATSPublisher(cfg.NATS.URL)
		if err != nil {
			return fmt.Errorf("failed to connect to NATS: %w", err)
		}
		defer natsPublisher.Close()
		publisher = natsPublisher
		logger.Info(context.Background(), "NATS publisher initialized")
	}

	jwtService := jwt.NewJWTService(cfg.JWT.Secret, cfg.JWT.AccessExpiry)

	// Repositories
	paymentRepo := repositories.NewPaymentQueueRepository(db)
	mintRepo := repositories.NewMintQueueRepository(db)
	historyRepo := repositories.NewMintHistoryRepository(db)
	pendingTxRepo := repositories.NewPendingTransactionRepository(db)
	settingsRepo := repositories.NewSettingsRepository(db)
	uow := repositories.NewUnitOfWork(db)
	locker := repositories.NewAdvisoryLockGate(db)

	// Chain plumbing: one client, two signing accounts.
	chainClient, err := blockchain.NewEVMClient(cfg.Blockchain.RPCURL)
	if err != nil {
		return fmt.Errorf("failed to connect to chain RPC: %w", err)
	}
	defer chainClient.Close()

	chainID := big.NewInt(cfg.Blockchain.ChainID)
	relayerSigner, err := blockchain.NewTxSigner(cfg.Blockchain.RelayerPrivateKey, chainID)
	if err != nil {
		return fmt.Errorf("invalid relayer key: %w", err)
	}
	minterSigner, err := blockchain.NewTxSigner(cfg.Blockchain.MinterPrivateKey, chainID)
	if err != nil {
		return fmt.Errorf("invalid minter key: %w", err)
	}

	relayerNonces := blockchain.NewNonceManager(chainClient, pendingTxRepo, relayerSigner.Address())
	minterNonces := blockchain.NewNonceManager(chainClient, pendingTxRepo, minterSigner.Address())
	monitor := blockchain.NewTransactionMonitor(chainClient, blockchain.DefaultMonitorConfig())

	logSignerBalances(chainClient, relayerSigner.Address(), minterSigner.Address())

	// Usecases
	bridge := usecases.NewSettlementBridge(mintRepo)
	paymentProcessor := usecases.NewPaymentQueueProcessor(
		paymentRepo, pendingTxRepo, settingsRepo, uow, locker, bridge, publisher,
		chainClient, relayerSigner, relayerNonces, monitor,
	)
	mintProcessor := usecases.NewMintQueueProcessor(
		mintRepo, historyRepo, pendingTxRepo, settingsRepo, uow, publisher,
		chainClient, minterSigner, minterNonces, monitor,
	)

	// Handlers
	paymentHandler := handlers.NewPaymentQueueHandler(paymentProcessor)
	mintHandler := handlers.NewMintQueueHandler(mintProcessor)
	x402Handler := handlers.NewX402Handler(paymentProcessor, cfg.X402)
	settingsHandler := handlers.NewSettingsHandler(settingsRepo)
	healthHandler := handlers.NewHealthHandler(db)

	adminAuth := middleware.AdminAuthMiddleware(jwtService)

	// Background processing
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go monitor.Start(ctx)
	go paymentProcessor.Start(ctx)
	go mintProcessor.Start(ctx)

	// Router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.LoggerMiddleware())

	applyCORSMiddleware(r)
	registerHealthRoute(r, healthHandler)
	registerAPIV1Routes(r, routeDeps{
		paymentHandler:  paymentHandler,
		mintHandler:     mintHandler,
		x402Handler:     x402Handler,
		settingsHandler: settingsHandler,
		adminAuth:       adminAuth,
	})

	// Graceful shutdown
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Println("Shutting down server...")
		paymentProcessor.Stop()
		mintProcessor.Stop()
		monitor.Stop()
		cancel()
	}()

	log.Printf("MintGate Backend starting on port %s", cfg.Server.Port)

	if err := runServer(r, cfg.Server.Port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

type balanceReader interface {
	GetBalance(ctx context.Context, address string) (*big.Int, error)
}

// logSignerBalances reports the gas funds of each signing account at startup.
// An unfunded signer is a warning, not an error: both processors surface the
// resulting broadcast failures per item.
func logSignerBalances(client balanceReader, addrs ...common.Address) {
	ctx := context.Background()
	for _, addr := range addrs {
		balance, err := client.GetBalance(ctx, addr.Hex())
		if err != nil {
			logger.Warn(ctx, "Failed to read signer balance",
				zap.String("address", addr.Hex()), zap.Error(err))
			continue
		}
		if balance.Sign() == 0 {
			logger.Warn(ctx, "Signer account holds no funds for gas",
				zap.String("address", addr.Hex()))
			continue
		}
		logger.Info(ctx, "Signer balance",
			zap.String("address", addr.Hex()),
			zap.String("balance_wei", balance.String()))
	}
}
