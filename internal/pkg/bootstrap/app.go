// internal/pkg/bootstrap/app.go
package bootstrap

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/haomehaode/kuileme/internal/pkg/logger"
	"github.com/haomehaode/kuileme/internal/pkg/nacos"
	"github.com/haomehaode/kuileme/internal/pkg/tracing"
	"github.com/haomehaode/kuileme/internal/pkg/utils"
)

const shutdownTimeout = 10 * time.Second

// Worker 是随服务一起启停的后台任务，例如 Kafka 消费者
type Worker interface {
	Start(ctx context.Context)
	Stop() error
}

type AppCtx struct {
	Mux    *http.ServeMux
	Config *Config
}

// AppInfo 包含了启动一个微服务所需的所有特定信息。
type AppInfo struct {
	ServiceName      string
	Port             int
	RegisterHandlers func(appCtx AppCtx) // 允许每个服务注册自己独特的 HTTP 路由
	Workers          []Worker
	Cleanup          []func(ctx context.Context) error // 关停时按注册的逆序执行
}

// StartService 封装了微服务的通用启动和优雅关停逻辑，阻塞直到收到退出信号。
func StartService(info AppInfo) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return Run(ctx, info)
}

// Run 与 StartService 相同，但由调用方的 ctx 控制生命周期
func Run(ctx context.Context, info AppInfo) error {
	cfg := GetCurrentConfig()
	log := logger.Ctx(ctx)

	// 1. Tracer
	tp, err := tracing.InitTracerProvider(info.ServiceName, cfg.Infra.Jaeger.Endpoint)
	if err != nil {
		return err
	}

	// 2. HTTP Server
	mux := http.NewServeMux()
	if info.RegisterHandlers != nil {
		info.RegisterHandlers(AppCtx{Mux: mux, Config: cfg})
	}
	server := &http.Server{
		Addr:              ":" + strconv.Itoa(info.Port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	// 3. 服务注册，可选
	registration, err := register(cfg.Infra.Nacos, info)
	if err != nil {
		_ = tp.Shutdown(context.Background())
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)

	g.Go(func() error {
		log.Info().Str("service", info.ServiceName).Int("port", info.Port).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	for _, w := range info.Workers {
		w.Start(gctx)
	}

	// 4. 优雅关停：收到信号或任一组件失败
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Str("service", info.ServiceName).Msg("shutting down service")

		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancelShutdown()

		// a. 先从注册中心摘除，避免继续接收流量
		registration.deregister()

		// b. 关闭 HTTP 服务器
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("error shutting down http server")
		}

		// c. 停止后台任务
		for _, w := range info.Workers {
			if err := w.Stop(); err != nil {
				log.Error().Err(err).Msg("error stopping worker")
			}
		}

		// d. 释放资源 (后进先出)
		for i := len(info.Cleanup) - 1; i >= 0; i-- {
			if err := info.Cleanup[i](shutdownCtx); err != nil {
				log.Error().Err(err).Msg("error during cleanup")
			}
		}

		// e. 关闭 Tracer Provider，确保所有缓冲的 trace 都被发送出去
		if err := tp.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("error shutting down tracer provider")
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info().Str("service", info.ServiceName).Msg("service gracefully shut down")
	return nil
}

type registration struct {
	client      *nacos.Client
	serviceName string
	ip          string
	port        int
}

func register(cfg nacos.Config, info AppInfo) (*registration, error) {
	if !cfg.Enabled {
		return &registration{}, nil
	}
	client, err := nacos.NewNacosClient(cfg)
	if err != nil {
		return nil, err
	}
	ip, err := utils.GetOutboundIP()
	if err != nil {
		client.Close()
		return nil, err
	}
	if err := client.RegisterServiceInstance(info.ServiceName, ip, info.Port); err != nil {
		client.Close()
		return nil, err
	}
	return &registration{client: client, serviceName: info.ServiceName, ip: ip, port: info.Port}, nil
}

func (r *registration) deregister() {
	if r.client == nil {
		return
	}
	if err := r.client.DeregisterServiceInstance(r.serviceName, r.ip, r.port); err != nil {
		logger.Ctx(context.Background()).Error().Err(err).Msg("error deregistering from nacos")
	}
	r.client.Close()
}
