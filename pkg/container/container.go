package container

import (
	"context"
	"fmt"
	"time"

	"luxestore-backend/internal/config"
	currencyJob "luxestore-backend/internal/domains/currency/job"
	currencyRepo "luxestore-backend/internal/domains/currency/repository"
	currencyService "luxestore-backend/internal/domains/currency/service"
	importerHandler "luxestore-backend/internal/domains/importer/handler"
	importerJob "luxestore-backend/internal/domains/importer/job"
	importerRepo "luxestore-backend/internal/domains/importer/repository"
	importerService "luxestore-backend/internal/domains/importer/service"
	"luxestore-backend/internal/domains/pricing"
	productHandler "luxestore-backend/internal/domains/product/handler"
	productJob "luxestore-backend/internal/domains/product/job"
	productRepo "luxestore-backend/internal/domains/product/repository"
	productService "luxestore-backend/internal/domains/product/service"
	settingsHandler "luxestore-backend/internal/domains/settings/handler"
	settingsRepo "luxestore-backend/internal/domains/settings/repository"
	settingsService "luxestore-backend/internal/domains/settings/service"
	"luxestore-backend/internal/infrastructure/cache"
	"luxestore-backend/internal/infrastructure/database"
	"luxestore-backend/internal/infrastructure/fxprovider"
	"luxestore-backend/internal/infrastructure/queue"
	"luxestore-backend/internal/infrastructure/storage"
	"luxestore-backend/internal/infrastructure/supplier"
	"luxestore-backend/internal/shared"
	"luxestore-backend/pkg/jwt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"
)

// Container is the root of the dependency graph. Initialization order is
// config → infrastructure → repositories → services → handlers; a wrong
// order panics on a nil dependency, so keep the steps sequential.
type Container struct {
	Config     *config.Config
	DB         *database.PostgresDB
	Redis      *cache.RedisClient
	Storage    *storage.MinIOStorage
	JWTManager *jwt.Manager

	Supplier *supplier.CJClient
	Engine   *pricing.Engine

	RateRepo     currencyRepo.RateRepository
	JobRepo      importerRepo.JobRepository
	TaskRepo     importerRepo.TaskRepository
	ProductRepo  productRepo.ProductRepository
	SyncLogRepo  productRepo.SyncLogRepository
	SettingsRepo settingsRepo.SettingsRepository

	CurrencyService  *currencyService.CurrencyService
	SettingsService  *settingsService.SettingsService
	StagingService   *productService.StagingService
	RepriceService   *productService.RepriceService
	InventoryService *productService.InventoryService
	Importer         *importerService.BatchImporter
	ImportController *importerService.Controller

	ImportHandler   *importerHandler.ImportHandler
	TaskHandler     *importerHandler.TaskHandler
	ProductHandler  *productHandler.ProductHandler
	SettingsHandler *settingsHandler.SettingsHandler

	TaskLogger *queue.TaskLogger
}

// NewContainer builds and wires the whole application.
func NewContainer() (*Container, error) {
	c := &Container{}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	c.Config = cfg
	log.Info().Str("environment", cfg.App.Environment).Msg("Configuration loaded")

	if err := c.initInfrastructure(); err != nil {
		return nil, err
	}
	c.initRepositories()
	c.initServices()
	c.initHandlers()

	log.Info().Msg("Container initialized")
	return c, nil
}

func (c *Container) initInfrastructure() error {
	db := database.NewPostgresDB(&c.Config.Database)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := db.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	c.DB = db

	c.Redis = cache.NewRedisClient(c.Config.Redis.Host, c.Config.Redis.Password, c.Config.Redis.DB)
	if err := c.Redis.Connect(context.Background()); err != nil {
		// FX reads fall back to Postgres and the static table.
		log.Warn().Err(err).Msg("Redis connection failed")
	}

	minioStorage, err := storage.NewMinIOStorage(c.Config.MinIO)
	if err != nil {
		return fmt.Errorf("failed to connect to object storage: %w", err)
	}
	c.Storage = minioStorage

	c.JWTManager = jwt.NewManager(c.Config.JWT.Secret)
	c.TaskLogger = queue.NewTaskLogger(c.DB.Pool)
	return nil
}

func (c *Container) initRepositories() {
	pool := c.DB.Pool
	c.RateRepo = currencyRepo.NewRateRepository(pool, c.Redis.Client, c.Config.FX.CacheTTL)
	c.JobRepo = importerRepo.NewJobRepository(pool)
	c.TaskRepo = importerRepo.NewTaskRepository(pool)
	c.ProductRepo = productRepo.NewProductRepository(pool)
	c.SyncLogRepo = productRepo.NewSyncLogRepository(pool)
	c.SettingsRepo = settingsRepo.NewSettingsRepository(pool)
}

func (c *Container) initServices() {
	cfg := c.Config

	// Settings first: the supplier client reads credentials through it at
	// call time.
	c.SettingsService = settingsService.NewSettingsService(c.SettingsRepo, cfg.CJ, cfg.FX)
	c.Supplier = supplier.NewCJClient(cfg.CJ, c.SettingsService)

	c.Engine = pricing.NewEngine(cfg.Pricing.MarginPct, cfg.Pricing.MinProfitSAR)
	c.CurrencyService = currencyService.NewCurrencyService(
		c.RateRepo,
		fxprovider.NewClient(cfg.FX.APIKey),
		cfg.FX,
	)

	c.StagingService = productService.NewStagingService(c.ProductRepo, c.SyncLogRepo)
	c.RepriceService = productService.NewRepriceService(
		c.ProductRepo, c.Engine, c.CurrencyService, cfg.Pricing.DefaultShipTo)
	c.InventoryService = productService.NewInventoryService(c.ProductRepo, c.Supplier)

	c.Importer = importerService.NewBatchImporter(
		c.JobRepo,
		c.ProductRepo,
		c.Supplier,
		c.Engine,
		c.CurrencyService,
		cfg.Importer,
		cfg.Pricing.DefaultShipTo,
	)
	c.ImportController = importerService.NewController(c.JobRepo, c.Importer)
}

func (c *Container) initHandlers() {
	c.ImportHandler = importerHandler.NewImportHandler(c.ImportController)
	c.TaskHandler = importerHandler.NewTaskHandler(c.TaskRepo, c.Storage)
	c.ProductHandler = productHandler.NewProductHandler(c.StagingService)
	c.SettingsHandler = settingsHandler.NewSettingsHandler(c.SettingsService)
}

// RedisOpt returns the asynq connection settings.
func (c *Container) RedisOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     c.Config.Redis.Host,
		Password: c.Config.Redis.Password,
		DB:       c.Config.Redis.DB,
	}
}

// JobHandlers maps task types to their wrapped handlers, shared by the worker
// binary.
func (c *Container) JobHandlers() map[string]func(context.Context, *asynq.Task) error {
	return map[string]func(context.Context, *asynq.Task) error{
		shared.TypeFxRefresh:           c.TaskLogger.Wrap(currencyJob.NewFxRefreshHandler(c.CurrencyService)),
		shared.TypeRepriceLive:         c.TaskLogger.Wrap(productJob.NewRepriceHandler(c.RepriceService)),
		shared.TypeInventorySync:       c.TaskLogger.Wrap(productJob.NewInventorySyncHandler(c.InventoryService)),
		shared.TypeDispatchImportTasks: c.TaskLogger.Wrap(importerJob.NewDispatchTasksHandler(c.TaskRepo, c.Storage, c.ImportController)),
	}
}

// Cleanup releases infrastructure resources during shutdown.
func (c *Container) Cleanup() {
	log.Info().Msg("Cleaning up container resources")

	if c.DB != nil {
		c.DB.Close()
	}
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close Redis client")
		}
	}
}
