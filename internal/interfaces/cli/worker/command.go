package worker

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"chatdesk/internal/application/outbox"
	"chatdesk/internal/domain/shared/events"
	"chatdesk/internal/infrastructure/config"
	"chatdesk/internal/infrastructure/database"
	"chatdesk/internal/infrastructure/pubsub"
	"chatdesk/internal/infrastructure/scheduler"
	httpRouter "chatdesk/internal/interfaces/http"
	"chatdesk/internal/shared/biztime"
	sharedConfig "chatdesk/internal/shared/config"
	"chatdesk/internal/shared/constants"
	"chatdesk/internal/shared/goroutine"
	"chatdesk/internal/shared/logger"
)

const (
	entitlementGroup = "billing-entitlement"
	emailGroup       = "billing-email"
)

var env string

// NewCommand creates the worker command.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Start the background worker",
		Long:  `Start the stream consumers (entitlement sync, billing email) and the scheduled jobs (grace-period sweep, outbox relay, processed-event pruning).`,
		RunE:  run,
	}

	cmd.Flags().StringVarP(&env, "env", "e", constants.EnvDevelopment, "Environment (development, test, production)")

	return cmd
}

func run(cmd *cobra.Command, args []string) error {
	if envVar := os.Getenv("ENV"); envVar != "" {
		env = envVar
	}

	cfg, err := config.Load(env)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := logger.Init(&cfg.Logger, cfg.Server.Mode); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	log := logger.NewComponentLogger("worker")

	if err := biztime.Init(cfg.Server.Timezone); err != nil {
		return fmt.Errorf("failed to initialize business timezone: %w", err)
	}

	log.Infow("starting billing worker", "environment", env)

	if err := database.Init(&cfg.Database); err != nil {
		log.Fatalw("failed to initialize database", "error", err)
	}
	defer database.Close()

	container, err := httpRouter.NewContainer(database.Get(), cfg, logger.NewLogger())
	if err != nil {
		log.Fatalw("failed to build container", "error", err)
	}
	defer container.Shutdown()

	schedulerManager, err := scheduler.NewSchedulerManager(log.Named("scheduler"))
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	w := &Worker{
		Redis:     container.Redis(),
		Jobs:      container.BackgroundJobs(),
		Scheduler: schedulerManager,
		Recorder:  container.Recorder(),
		Config:    cfg.Scheduler,
		Consumer:  consumerName(),
		Logger:    log,
	}
	if err := w.Run(ctx); err != nil {
		log.Errorw("worker stopped with error", "error", err)
		return err
	}

	log.Infow("billing worker stopped")
	return nil
}

// Worker runs the stream consumers and the scheduler until its context ends.
type Worker struct {
	Redis     *redis.Client
	Jobs      *httpRouter.BackgroundJobs
	Scheduler *scheduler.SchedulerManager
	Recorder  pubsub.DeliveryRecorder
	Config    sharedConfig.SchedulerConfig
	Consumer  string
	// Block bounds each stream read; zero uses the consumer default.
	Block     time.Duration
	Logger    logger.Interface
}

// Run returns nil on cancellation. A consumer failure cancels the others.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.registerJobs(); err != nil {
		return err
	}
	w.Scheduler.Start()
	defer func() {
		if err := w.Scheduler.Stop(); err != nil {
			w.Logger.Warnw("failed to stop scheduler", "error", err)
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	for name, c := range w.consumers() {
		c := c
		g.Go(goroutine.Guard(w.Logger, name, func() error {
			return c.Run(gctx)
		}))
	}
	return g.Wait()
}

func (w *Worker) registerJobs() error {
	if err := w.Scheduler.RegisterGracePeriodJobs(w.Jobs.GracePeriodSweeper, w.Config.GetSweepInterval()); err != nil {
		return fmt.Errorf("failed to register grace period jobs: %w", err)
	}
	if err := w.Scheduler.RegisterOutboxJobs(w.Jobs.OutboxRelay, w.Config.GetRelayInterval()); err != nil {
		return fmt.Errorf("failed to register outbox jobs: %w", err)
	}
	if err := w.Scheduler.RegisterMaintenanceJobs(w.Jobs.ProcessedEvents, w.Config.ProcessedEventRetentionDays); err != nil {
		return fmt.Errorf("failed to register maintenance jobs: %w", err)
	}
	return nil
}

func (w *Worker) consumers() map[string]*pubsub.StreamConsumer {
	streams := map[string]struct {
		routingKey string
		group      string
		handler    outbox.Handler
	}{
		"entitlement-consumer": {outbox.RoutingKey(outbox.QueueDefault, events.DomainSubscription), entitlementGroup, w.Jobs.SubscriptionEventHandler},
		"email-consumer":       {outbox.RoutingKey(outbox.QueueDefault, events.DomainEmail), emailGroup, w.Jobs.BillingEmailHandler},
	}

	out := make(map[string]*pubsub.StreamConsumer, len(streams))
	for name, s := range streams {
		c := pubsub.NewStreamConsumer(w.Redis, s.routingKey, s.handler, pubsub.ConsumerConfig{
			Group:    s.group,
			Consumer: w.Consumer,
			Block:    w.Block,
		}, w.Logger.Named(name))
		if w.Recorder != nil {
			c.SetDeliveryRecorder(w.Recorder)
		}
		out[name] = c
	}
	return out
}

func consumerName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}
