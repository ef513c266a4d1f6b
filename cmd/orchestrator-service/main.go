// cmd/orchestrator-service/main.go
package main

import (
	"context"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"phincommerce/internal/pkg/bootstrap"
	"phincommerce/internal/pkg/httpclient"
	"phincommerce/internal/pkg/logger"
	"phincommerce/internal/pkg/metrics"
	"phincommerce/internal/pkg/mq"
	"phincommerce/internal/pkg/rule"
	"phincommerce/internal/service/orchestrator/application"
	"phincommerce/internal/service/orchestrator/infrastructure/adapter"
	"phincommerce/internal/service/orchestrator/interfaces"
)

const defaultConfigPath = "configs/orchestrator.yaml"

// main 函数是应用的"组装根" (Composition Root)
// 它的核心职责是：创建并组装所有依赖项，然后启动应用。
func main() {
	cfg, err := bootstrap.LoadConfig(getEnv("CONFIG_PATH", defaultConfigPath))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	logger.Init(cfg.App.Name, cfg.App.LogLevel, cfg.App.LogPretty)

	var onShutdown []func(ctx context.Context)

	// 1. 基础组件
	tracer := otel.Tracer(cfg.App.Name)
	m := metrics.New(prometheus.DefaultRegisterer)
	httpClient := httpclient.NewClient(tracer)

	resolver, registrar, closeDiscovery, err := buildDiscovery(cfg)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Discovery.Driver).Msg("failed to initialize service discovery")
	}
	onShutdown = append(onShutdown, func(context.Context) { closeDiscovery() })

	if cfg.Kafka.EnsureTopics {
		ctx, cancel := context.WithTimeout(context.Background(), topicBootstrapTimeout)
		err := mq.EnsureTopics(ctx, cfg.Kafka.Brokers, cfg.Kafka.TopicPartitions, cfg.Kafka.InboundTopic, cfg.Kafka.OutcomeTopic, cfg.Kafka.AlertTopic)
		cancel()
		if err != nil {
			log.Warn().Err(err).Msg("could not ensure kafka topics, relying on broker auto-creation")
		}
	}

	// 2. 被驱动适配器 (driven adapters)
	stockRule, err := rule.NewStockRule(cfg.Saga.StockRule)
	if err != nil {
		log.Fatal().Err(err).Str("expr", cfg.Saga.StockRule).Msg("invalid stock rule")
	}
	inventory, err := adapter.NewInventoryHTTPAdapter(httpClient, resolver, cfg.Services.Inventory.Name, stockRule, cfg.Saga.CallTimeout)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create inventory adapter")
	}
	payment := adapter.NewPaymentHTTPAdapter(httpClient, resolver, cfg.Services.Payment.Name, cfg.Saga.CallTimeout)

	outcomeWriter := mq.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.OutcomeTopic)
	alertWriter := mq.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.AlertTopic)
	onShutdown = append(onShutdown, func(context.Context) {
		if err := outcomeWriter.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close outcome writer")
		}
		if err := alertWriter.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close alert writer")
		}
	})

	journal, closeJournal, err := buildJournal(cfg)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Journal.Driver).Msg("failed to initialize saga journal")
	}
	onShutdown = append(onShutdown, func(context.Context) { closeJournal() })

	// 3. 应用服务
	hub := interfaces.NewHub()
	svc := application.NewOrchestratorService(
		application.Options{
			SagaTimeout:         cfg.Saga.Timeout,
			CompensationTimeout: cfg.Saga.CompensationTimeout,
			FanOutLimit:         cfg.Saga.FanOutLimit,
			CheckRetries:        cfg.Saga.CheckRetries,
		},
		tracer, m,
		inventory, payment,
		adapter.NewOutcomeKafkaPublisher(outcomeWriter),
		adapter.NewAlertKafkaPublisher(alertWriter),
		journal,
		hub,
	)

	// 4. 驱动适配器 (driving adapters)
	consumer := interfaces.NewSagaEventConsumer(
		mq.NewKafkaReader(cfg.Kafka.Brokers, cfg.Kafka.InboundTopic, cfg.Kafka.GroupID),
		cfg.Kafka.InboundTopic, svc, m, tracer, cfg.Kafka.ConsumerConcurrency,
	)
	httpHandler := interfaces.NewSagaHandler(svc, hub, prometheus.DefaultGatherer)

	log.Info().
		Strs("brokers", cfg.Kafka.Brokers).
		Str("inbound", cfg.Kafka.InboundTopic).
		Str("outcome", cfg.Kafka.OutcomeTopic).
		Str("journal", cfg.Journal.Driver).
		Str("discovery", cfg.Discovery.Driver).
		Str("stock_rule", stockRule.Expression()).
		Msg("🚀 Orchestrator assembled")

	if err := bootstrap.StartService(bootstrap.AppInfo{
		ServiceName:      cfg.App.Name,
		Port:             cfg.App.HTTPPort,
		RegisterHandlers: httpHandler.RegisterRoutes,
		Components:       []bootstrap.Component{hub, consumer},
		Registrar:        registrar,
		OnShutdown:       onShutdown,
	}); err != nil {
		log.Fatal().Err(err).Msg("orchestrator exited with error")
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
