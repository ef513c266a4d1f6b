// cmd/compensation-auditor/main.go
package main

import (
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"phincommerce/internal/pkg/bootstrap"
	"phincommerce/internal/pkg/logger"
	"phincommerce/internal/pkg/mq"
	"phincommerce/internal/service/orchestrator/interfaces"
)

const serviceName = "compensation-auditor"

// 消费补偿失败告警，逐行输出需要人工对账的库存
func main() {
	cfg, err := bootstrap.LoadConfig(getEnv("CONFIG_PATH", "configs/orchestrator.yaml"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	logger.Init(serviceName, cfg.App.LogLevel, cfg.App.LogPretty)

	reader := mq.NewKafkaReader(cfg.Kafka.Brokers, cfg.Kafka.AlertTopic, cfg.Kafka.AlertGroupID)
	auditor := interfaces.NewAlertConsumerAdapter(reader, cfg.Kafka.AlertTopic)

	if err := bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: serviceName,
		Port:        cfg.App.HTTPPort + 1,
		RegisterHandlers: func(mux *http.ServeMux) {
			mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
			mux.Handle("/metrics", promhttp.Handler())
		},
		Components: []bootstrap.Component{auditor},
	}); err != nil {
		log.Fatal().Err(err).Msg("auditor exited with error")
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
