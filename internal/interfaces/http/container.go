package http

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"chatdesk/internal/application/outbox"
	"chatdesk/internal/domain/entitlement"
	"chatdesk/internal/infrastructure/config"
	"chatdesk/internal/infrastructure/metrics"
	"chatdesk/internal/infrastructure/payment/stripe"
	"chatdesk/internal/infrastructure/pubsub"
	"chatdesk/internal/interfaces/http/middleware"
	"chatdesk/internal/shared/db"
	"chatdesk/internal/shared/logger"
)

// Container holds the infrastructure components, repositories, use cases and
// handlers of the billing service. The HTTP server and the worker build the
// same container and use different parts of it.
type Container struct {
	// Core infrastructure
	engine *gin.Engine
	db     *gorm.DB
	cfg    *config.Config
	log    logger.Interface
	redis  *redis.Client

	repos *repositories
	ucs   *allUseCases
	hdlrs *allHandlers

	adminTokenMiddleware *middleware.AdminTokenMiddleware
	rateLimiter          *middleware.RateLimiter

	// Shared services
	txManager  *db.TransactionManager
	dispatcher *outbox.Dispatcher
	gateway    *stripe.Gateway
	recorder   *metrics.Recorder
	policy     entitlement.Policy
}

// NewContainer wires every component. The Redis client is owned by the
// container and closed by Shutdown.
func NewContainer(database *gorm.DB, cfg *config.Config, log logger.Interface) (*Container, error) {
	c := &Container{
		engine: gin.New(),
		db:     database,
		cfg:    cfg,
		log:    log,
	}

	// Section 1: Infrastructure - Redis, Repositories, Outbox
	if err := c.initInfrastructure(); err != nil {
		return nil, err
	}

	// Section 2: Use cases
	c.initUseCases()

	// Section 3: Handlers and middlewares
	c.initHandlers()

	return c, nil
}

func (c *Container) initInfrastructure() error {
	redisClient, err := initRedis(c.cfg, c.log)
	if err != nil {
		return err
	}
	c.redis = redisClient

	c.repos = newRepositories(c.db, c.log)
	c.txManager = db.NewTransactionManager(c.db)
	c.recorder = metrics.NewRecorder()
	c.policy = entitlement.PolicyFromSettings(c.cfg.Subscription)

	bus := pubsub.NewRedisStreamBus(c.redis, c.log.Named("stream-bus"))
	c.dispatcher = outbox.NewDispatcher(c.repos.outboxRepo, bus, c.txManager, c.log.Named("outbox"))
	c.dispatcher.SetPublishRecorder(c.recorder)

	c.gateway = stripe.NewGateway(c.cfg.Stripe, c.log.Named("stripe"))
	return nil
}

func initRedis(cfg *config.Config, log logger.Interface) (*redis.Client, error) {
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.GetAddr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		_ = redisClient.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	log.Infow("Redis connection established successfully", "addr", cfg.Redis.GetAddr())

	return redisClient, nil
}

// Engine returns the gin engine; routes are added by SetupRoutes.
func (c *Container) Engine() *gin.Engine {
	return c.engine
}

// Redis returns the shared client used by the stream consumers.
func (c *Container) Redis() *redis.Client {
	return c.redis
}

func (c *Container) Recorder() *metrics.Recorder {
	return c.recorder
}

// BackgroundJobs exposes the use cases driven by the worker.
func (c *Container) BackgroundJobs() *BackgroundJobs {
	return &BackgroundJobs{
		GracePeriodSweeper:       c.ucs.expireGracePeriodsUC,
		OutboxRelay:              outbox.NewRelayJob(c.dispatcher, c.cfg.Scheduler.OutboxBatchSize, c.log.Named("outbox-relay")),
		ProcessedEvents:          c.repos.processedEventRepo,
		SubscriptionEventHandler: c.ucs.subscriptionEventHandler,
		BillingEmailHandler:      c.ucs.sendBillingEmailUC,
	}
}

// Shutdown releases the connections owned by the container.
func (c *Container) Shutdown() {
	if c.redis != nil {
		if err := c.redis.Close(); err != nil {
			c.log.Warnw("failed to close Redis client", "error", err)
		}
	}
}
