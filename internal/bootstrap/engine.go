// Package bootstrap assembles the reconciliation engine and its collaborators from configuration.
package bootstrap

import (
	"errors"
	"log"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"gorm.io/gorm"

	"coursemarket_echo/internal/config"
	"coursemarket_echo/internal/services"
	"coursemarket_echo/internal/tasks"
)

// Engine is everything the server, worker and CLI share.
type Engine struct {
	Reconciler *services.Reconciler
	Notifier   *services.PurchaseNotifier
	Gateway    *services.GatewayClient
	Scheduler  *tasks.Scheduler
	WebhookLog *services.WebhookLog
	Registry   *prometheus.Registry

	closers []func() error
}

// NewEngine wires the engine. Redis and Kafka are optional and only used when configured.
func NewEngine(cfg *config.Config, db *gorm.DB, logger *log.Logger) (*Engine, error) {
	if logger == nil {
		logger = log.Default()
	}

	gateway, err := services.NewGatewayClient(cfg.GatewayBaseURL, cfg.GatewayAccessToken, cfg.GatewayTimeout)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	e := &Engine{
		Gateway:    gateway,
		Scheduler:  tasks.NewScheduler(db),
		WebhookLog: services.NewWebhookLog(db),
		Registry:   reg,
	}

	var whatsapp services.WhatsappSender
	if cfg.WahaBaseURL != "" {
		whatsapp = services.NewWahaService(cfg.WahaBaseURL, cfg.WahaAPIKey)
	}
	e.Notifier = services.NewPurchaseNotifier(db, services.NewEmailService(cfg.SMTP), whatsapp, e.Scheduler, cfg.FrontendURL)

	hooks := []services.PostCommitHook{e.Notifier}
	if len(cfg.KafkaBrokers) > 0 {
		producer, err := services.NewKafkaProducer(cfg.KafkaBrokers)
		if err != nil {
			logger.Printf("Warning: Kafka unavailable, reconciled events will not be published: %v", err)
		} else {
			publisher := services.NewEventPublisher(producer, cfg.KafkaTopic)
			hooks = append(hooks, publisher)
			e.closers = append(e.closers, publisher.Close)
		}
	}

	opts := []services.ReconcilerOption{
		services.WithLogger(logger),
		services.WithMetrics(services.NewReconcileMetrics(reg)),
		services.WithHooks(hooks...),
	}

	if cfg.RedisURL != "" {
		cache, err := services.NewRedisCache(cfg.RedisURL)
		if err != nil {
			logger.Printf("Warning: Redis unavailable, relying on the database for idempotency: %v", err)
		} else {
			opts = append(opts, services.WithGuard(cache))
			e.closers = append(e.closers, cache.Close)
		}
	}

	e.Reconciler = services.NewReconciler(db, gateway, cfg.EarnerPercent(), opts...)
	return e, nil
}

// Close releases the optional Kafka and Redis connections.
func (e *Engine) Close() error {
	var errs []error
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// OpenDB connects to the configured database.
func OpenDB(cfg *config.Config) (*gorm.DB, error) {
	if err := cfg.RequireDatabase(); err != nil {
		return nil, err
	}
	return services.InitDB(cfg.DatabaseURL)
}
