package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/12222526/Rag-Resume/internal/api/handler"
	"github.com/12222526/Rag-Resume/internal/api/router"
	"github.com/12222526/Rag-Resume/internal/config"
	"github.com/12222526/Rag-Resume/internal/constants"
	"github.com/12222526/Rag-Resume/internal/logger"
	"github.com/12222526/Rag-Resume/internal/outbox"
	"github.com/12222526/Rag-Resume/internal/processor"
	"github.com/12222526/Rag-Resume/internal/storage"
	"github.com/12222526/Rag-Resume/internal/tracing"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"
	"github.com/spf13/pflag"
)

var version = "1.0.0" //nolint:gochecknoglobals

func main() {
	var (
		configPath   string
		sampleConfig string
	)
	pflag.StringVarP(&configPath, "config", "c", "", "配置文件路径，留空时按默认路径查找")
	pflag.StringVar(&sampleConfig, "write-sample-config", "", "生成示例配置文件后退出")
	pflag.Parse()

	if sampleConfig != "" {
		if err := config.CreateSampleConfig(sampleConfig); err != nil {
			fmt.Fprintf(os.Stderr, "生成示例配置失败: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("示例配置已写入 %s\n", sampleConfig)
		return
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(logger.Config{
		Level:        cfg.Logger.Level,
		Format:       cfg.Logger.Format,
		TimeFormat:   cfg.Logger.TimeFormat,
		ReportCaller: cfg.Logger.ReportCaller,
		File:         cfg.Logger.File,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Close()
	logger.Logger = logger.Logger.With().Str("app", constants.ServiceName).Str("version", version).Logger()
	hlog.Info("配置加载成功")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing := initTracing(ctx, cfg)
	defer func() {
		flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer flushCancel()
		if err := shutdownTracing(flushCtx); err != nil {
			hlog.Warnf("关闭TracerProvider失败: %v", err)
		}
	}()

	storageManager, err := storage.NewStorage(ctx, cfg)
	if err != nil {
		hlog.Fatalf("初始化存储失败: %v", err)
	}
	defer storageManager.Close()
	hlog.Info("存储服务初始化成功")

	comp, err := processor.BuildComponents(ctx, cfg, logger.Std, processor.WithcompStorage(storageManager))
	if err != nil {
		hlog.Fatalf("初始化业务组件失败: %v", err)
	}

	setOpts := []processor.SettingOpt{processor.WithsetLogger(logger.Std(""))}
	var relay *outbox.MessageRelay
	if storageManager.RabbitMQ != nil {
		exchange := cfg.RabbitMQ.EventsExchange
		if err := storageManager.RabbitMQ.EnsureExchange(exchange, "topic", true); err != nil {
			hlog.Warnf("声明事件交换机 %s 失败，领域事件不会写入 outbox: %v", exchange, err)
		} else {
			setOpts = append(setOpts, processor.WithsetEventsExchange(exchange))
			relay = outbox.NewMessageRelay(storageManager.MySQL.DB(), storageManager.RabbitMQ,
				outbox.WithPollingInterval(config.GetDuration(cfg.RabbitMQ.RelayInterval, 2*time.Second)),
				outbox.WithBatchSize(cfg.RabbitMQ.RelayBatchSize),
				outbox.WithLogger(logger.Std("[MessageRelay] ")),
			)
			relay.Start()
			hlog.Info("消息中继服务已启动")
		}
	} else {
		hlog.Warn("RabbitMQ 不可用，领域事件不会发布")
	}

	set, err := processor.SettingsFromConfig(cfg, setOpts...)
	if err != nil {
		hlog.Fatalf("解析业务配置失败: %v", err)
	}

	handlers, err := buildHandlers(comp, set, storageManager)
	if err != nil {
		hlog.Fatalf("初始化业务服务失败: %v", err)
	}

	tracer, tracerCfg := hertztracing.NewServerTracer()
	h := server.New(
		server.WithHostPorts(cfg.Server.Address),
		server.WithHandleMethodNotAllowed(true),
		server.WithMaxRequestBodySize(int(set.MaxUploadBytes)*handler.MaxUploadFiles),
		tracer,
	)
	h.Use(hertztracing.ServerMiddleware(tracerCfg))
	h.Use(func(c context.Context, ctx *app.RequestContext) {
		start := time.Now()
		ctx.Next(c)
		hlog.CtxInfof(c, "%s %s -> %d (%s)", string(ctx.Method()), string(ctx.Path()),
			ctx.Response.StatusCode(), time.Since(start))
	})

	router.RegisterRoutes(h, handlers)
	hlog.Infof("HTTP 服务器启动中，监听地址: %s", cfg.Server.Address)

	go func() {
		if err := h.Run(); err != nil {
			hlog.Fatalf("启动HTTP服务器失败: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	hlog.Info("接收到终止信号，正在优雅退出...")

	if relay != nil {
		relay.Stop()
		hlog.Info("消息中继服务已停止")
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := h.Shutdown(shutdownCtx); err != nil {
		hlog.Errorf("服务器关闭失败: %v", err)
	}
	hlog.Info("优雅退出完成")
}

func initTracing(ctx context.Context, cfg *config.Config) tracing.ShutdownFunc {
	if !cfg.Tracing.Enabled {
		return func(context.Context) error { return nil }
	}
	serviceName := cfg.Tracing.ServiceName
	if serviceName == "" {
		serviceName = constants.ServiceName
	}
	shutdown, err := tracing.InitProvider(ctx, tracing.ProviderConfig{
		ServiceName:    serviceName,
		ServiceVersion: version,
		Endpoint:       cfg.Tracing.OTLPEndpoint,
		Insecure:       cfg.Tracing.Insecure,
		SampleRatio:    cfg.Tracing.SampleRatio,
	})
	if err != nil {
		hlog.Warnf("初始化链路追踪失败，继续运行: %v", err)
		return shutdown
	}
	hlog.Infof("链路追踪已启用，OTLP=%s，采样率=%.2f", cfg.Tracing.OTLPEndpoint, cfg.Tracing.SampleRatio)
	return shutdown
}

func buildHandlers(comp *processor.Components, set *processor.Settings, st *storage.Storage) (router.Handlers, error) {
	resumes, err := processor.NewResumeService(comp, set)
	if err != nil {
		return router.Handlers{}, err
	}
	jobs, err := processor.NewJobService(comp, set)
	if err != nil {
		return router.Handlers{}, err
	}
	matches, err := processor.NewMatchService(comp, set, jobs)
	if err != nil {
		return router.Handlers{}, err
	}
	search, err := processor.NewSearchService(comp, set)
	if err != nil {
		return router.Handlers{}, err
	}
	return router.Handlers{
		Health: handler.NewHealthHandler(version, st.HealthChecks()),
		Jobs:   handler.NewJobHandler(jobs, matches),
		Resume: handler.NewResumeHandler(resumes),
		Search: handler.NewSearchHandler(search),
	}, nil
}
