package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Avadhutgiri/my-online-judge/internal/common/cache"
	commonmw "github.com/Avadhutgiri/my-online-judge/internal/common/http/middleware"
	"github.com/Avadhutgiri/my-online-judge/internal/common/mq"
	"github.com/Avadhutgiri/my-online-judge/internal/common/storage"
	"github.com/Avadhutgiri/my-online-judge/internal/judge/compiler"
	"github.com/Avadhutgiri/my-online-judge/internal/judge/consumer"
	"github.com/Avadhutgiri/my-online-judge/internal/judge/controller"
	"github.com/Avadhutgiri/my-online-judge/internal/judge/observer"
	"github.com/Avadhutgiri/my-online-judge/internal/judge/oracle"
	"github.com/Avadhutgiri/my-online-judge/internal/judge/publisher"
	"github.com/Avadhutgiri/my-online-judge/internal/judge/repository"
	"github.com/Avadhutgiri/my-online-judge/internal/judge/sandbox"
	"github.com/Avadhutgiri/my-online-judge/internal/judge/service"
	"github.com/Avadhutgiri/my-online-judge/internal/judge/testdata"
	"github.com/Avadhutgiri/my-online-judge/internal/judge/toolchain"
	"github.com/Avadhutgiri/my-online-judge/internal/judge/webhook"
	"github.com/Avadhutgiri/my-online-judge/internal/judge/workspace"
	"github.com/Avadhutgiri/my-online-judge/pkg/utils/logger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultConfigPath = "configs/judge_worker.yaml"
	defaultEnvPath    = ".env"
)

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to config file")
	envPath := flag.String("env", defaultEnvPath, "Path to env file")
	flag.Parse()

	appCfg, err := loadAppConfig(*configPath, *envPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load app config failed: %v\n", err)
		return
	}

	if err := logger.Init(appCfg.Logger); err != nil {
		fmt.Fprintf(os.Stderr, "init logger failed: %v\n", err)
		return
	}
	defer func() {
		_ = logger.Sync()
	}()

	resultCache, err := cache.NewRedisCacheWithConfig(&appCfg.Result.Redis)
	if err != nil {
		logger.Error(context.Background(), "init result redis failed", zap.Error(err))
		return
	}
	defer func() {
		_ = resultCache.Close()
	}()

	var objects storage.ObjectStorage
	if appCfg.Storage.MinIO.Enabled() {
		objStorage, err := storage.NewMinIOStorage(appCfg.Storage.MinIO)
		if err != nil {
			logger.Error(context.Background(), "init minio failed", zap.Error(err))
			return
		}
		objects = objStorage
	}

	metrics, err := observer.NewPrometheus(prometheus.DefaultRegisterer)
	if err != nil {
		logger.Error(context.Background(), "init metrics failed", zap.Error(err))
		return
	}

	registry, err := toolchain.NewRegistry(appCfg.Languages)
	if err != nil {
		logger.Error(context.Background(), "init toolchains failed", zap.Error(err))
		return
	}
	workspaces, err := workspace.NewManager(appCfg.Judge.WorkRoot, appCfg.Judge.HostRoot)
	if err != nil {
		logger.Error(context.Background(), "init workspace root failed", zap.Error(err))
		return
	}

	containers, err := sandbox.NewDockerRuntime(appCfg.Sandbox.Host)
	if err != nil {
		logger.Error(context.Background(), "init docker client failed", zap.Error(err))
		return
	}
	defer func() {
		_ = containers.Close()
	}()

	executor := sandbox.NewExecutor(appCfg.Sandbox, containers)
	comp := compiler.New(sandbox.OSRunner{}, appCfg.Judge.CompileTimeout)
	problems := testdata.NewProblemStore(appCfg.Judge.ProblemsRoot, objects, appCfg.Storage.MinIO.Bucket, appCfg.Storage.Timeout)
	sources := []testdata.Source{testdata.LocalSource{}, testdata.NewCacheSource(resultCache)}
	if objects != nil {
		sources = append([]testdata.Source{testdata.NewObjectSource(objects, appCfg.Storage.Timeout)}, sources...)
	}

	judgeSvc, err := service.NewService(service.Config{
		Registry:   registry,
		Workspaces: workspaces,
		Compiler:   comp,
		Executor:   executor,
		Oracle:     oracle.New(appCfg.Oracle, problems, comp, executor),
		Problems:   problems,
		Tests:      testdata.NewStager(sources...),
		Metrics:    metrics,
	})
	if err != nil {
		logger.Error(context.Background(), "init judge service failed", zap.Error(err))
		return
	}

	checks := map[string]controller.Pinger{"results": resultCache, "docker": containers}
	opts := []publisher.Option{
		publisher.WithMetrics(metrics),
		publisher.WithTimeout(appCfg.Judge.PublishTimeout),
	}
	if appCfg.Kafka.Enabled() {
		producer, err := mq.NewKafkaProducer(appCfg.Kafka.toMQConfig())
		if err != nil {
			logger.Error(context.Background(), "init kafka failed", zap.Error(err))
			return
		}
		defer func() {
			_ = producer.Close()
		}()
		opts = append(opts, publisher.WithEvents(repository.NewMQResultEventPublisher(producer, appCfg.Kafka.ResultTopic)))
		checks["kafka"] = producer
	}

	results := repository.NewResultRepository(resultCache, appCfg.Result.TTL)
	resultPublisher := publisher.New(results, webhook.New(appCfg.Webhook), opts...)

	brokerCfg := appCfg.Worker.Broker
	dial := func(ctx context.Context) (consumer.Broker, error) {
		broker, err := cache.NewRedisCacheWithConfig(&brokerCfg)
		if err != nil {
			return nil, err
		}
		return broker, nil
	}
	worker, err := consumer.New(
		appCfg.Worker.Consumer,
		dial,
		judgeSvc,
		resultPublisher,
		mq.NewTokenLimiter(appCfg.Worker.Concurrency),
		metrics,
	)
	if err != nil {
		logger.Error(context.Background(), "init consumer failed", zap.Error(err))
		return
	}
	defer func() {
		_ = worker.Close()
	}()
	checks["broker"] = brokerCheck{worker}

	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	for _, queue := range appCfg.Worker.Queues {
		if _, err := worker.Recover(shutdownCtx, queue); err != nil {
			logger.Warn(shutdownCtx, "recover in-flight jobs failed", zap.String("queue", queue), zap.Error(err))
		}
	}

	httpServer := buildHTTPServer(appCfg.Server, controller.NewJudgeController(results, checks))
	listener, err := net.Listen("tcp", appCfg.Server.Addr)
	if err != nil {
		logger.Error(context.Background(), "init http listener failed", zap.Error(err))
		return
	}

	g, ctx := errgroup.WithContext(shutdownCtx)
	for _, queue := range appCfg.Worker.Queues {
		queue := queue
		g.Go(func() error {
			return pollQueue(ctx, worker, queue, appCfg.Worker.PollInterval)
		})
	}
	g.Go(func() error {
		logger.Info(context.Background(), "judge http server started", zap.String("addr", appCfg.Server.Addr))
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info(context.Background(), "shutdown signal received")
		shutdown, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdown)
	})

	if err := g.Wait(); err != nil {
		logger.Error(context.Background(), "judge worker stopped", zap.Error(err))
	}
}

// pollQueue calls Process on queue until ctx is done.
func pollQueue(ctx context.Context, worker *consumer.Consumer, queue string, interval time.Duration) error {
	logger.Info(ctx, "consumer started", zap.String("queue", queue))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if err := worker.Process(ctx, queue); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// brokerCheck reports the consumer's broker connection as a health probe.
type brokerCheck struct {
	worker *consumer.Consumer
}

func (b brokerCheck) Ping(context.Context) error {
	if b.worker.State() != consumer.Connected {
		return errors.New("broker disconnected")
	}
	return nil
}

func buildHTTPServer(cfg ServerConfig, judgeController *controller.JudgeController) *http.Server {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(commonmw.TraceContextMiddleware())
	router.Use(commonmw.RequestLogger())

	judgeController.RegisterRoutes(router)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
}
