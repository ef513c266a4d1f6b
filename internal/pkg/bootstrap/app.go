// internal/pkg/bootstrap/app.go
package bootstrap

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"phincommerce/internal/pkg/discovery"
	"phincommerce/internal/pkg/tracing"
	"phincommerce/internal/pkg/utils"
)

const shutdownTimeout = 10 * time.Second

// Component 是随服务一起启停的后台组件，例如 Kafka 消费者
type Component interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context)
}

// AppInfo 包含了启动一个微服务所需的所有特定信息。
type AppInfo struct {
	ServiceName      string
	Port             int
	RegisterHandlers func(mux *http.ServeMux) // 一个函数，允许每个服务注册自己独特的 HTTP 路由
	Components       []Component
	Registrar        discovery.Registrar // 可选
	OnShutdown       []func(ctx context.Context)
}

// StartService 封装了所有微服务的通用启动和优雅关停逻辑。阻塞直到收到退出信号。
func StartService(info AppInfo) error {
	cfg := GetCurrentConfig()

	// 1. Tracer
	tp, err := tracing.InitTracerProvider(info.ServiceName, cfg.Infra.Jaeger.Endpoint, cfg.Infra.Jaeger.SampleRatio)
	if err != nil {
		return errors.Wrap(err, "initialize tracer provider")
	}

	// 2. 服务注册
	var ip string
	if info.Registrar != nil {
		ip, err = utils.GetOutboundIP()
		if err != nil {
			return err
		}
		if err := info.Registrar.Register(info.ServiceName, ip, info.Port); err != nil {
			return err
		}
	}

	// 3. HTTP Server
	mux := http.NewServeMux()
	if info.RegisterHandlers != nil {
		info.RegisterHandlers(mux)
	}
	server := &http.Server{Addr: ":" + strconv.Itoa(info.Port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		log.Info().Msgf("%s listening on :%d", info.ServiceName, info.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msgf("could not listen on %s", server.Addr)
		}
	}()

	// 4. 后台组件
	runCtx, cancelRun := context.WithCancel(context.Background())
	defer cancelRun()
	for _, c := range info.Components {
		if err := c.Start(runCtx); err != nil {
			return errors.Wrap(err, "start component")
		}
	}

	// 5. 优雅关停
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msgf("Shutting down service %s...", info.ServiceName)

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// 按启动的逆序清理
	cancelRun()
	for i := len(info.Components) - 1; i >= 0; i-- {
		info.Components[i].Stop(ctx)
	}

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Error shutting down http server")
	} else {
		log.Info().Msg("HTTP server shut down.")
	}

	if info.Registrar != nil {
		if err := info.Registrar.Deregister(info.ServiceName, ip, info.Port); err != nil {
			log.Error().Err(err).Msg("Error deregistering service")
		}
	}

	for i := len(info.OnShutdown) - 1; i >= 0; i-- {
		info.OnShutdown[i](ctx)
	}

	// 关闭 Tracer Provider，确保所有缓冲的 trace 都被发送出去
	if err := tp.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Error shutting down tracer provider")
	} else {
		log.Info().Msg("Tracer provider shut down.")
	}

	log.Info().Msgf("Service %s gracefully shut down.", info.ServiceName)
	return nil
}
