package main

import (
	"context"
	"log"
	"net/http"
	"os"
	ossignal "os/signal"
	"strings"
	"syscall"
	"time"

	"equity-screener/internal/app"
	"equity-screener/internal/bot"
	"equity-screener/internal/cache"
	"equity-screener/internal/config"
	"equity-screener/internal/db"
	"equity-screener/internal/handler"
	"equity-screener/internal/job"
	"equity-screener/internal/repository"
	"equity-screener/internal/tui"
	"equity-screener/pkg/tracing"

	"github.com/charmbracelet/ssh"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	_ "equity-screener/docs"
)

const postgresMaxConns = 10

var (
	loadEnvFunc            = godotenv.Load
	loadConfigFunc         = config.Load
	loadPolicyFunc         = config.LoadPolicy
	initPostgresFunc       = db.InitPostgres
	initRedisFunc          = cache.InitRedis
	initTracerFunc         = tracing.InitTracer
	runMigrationsFunc      = repository.RunMigrations
	newAnalysisServiceFunc = app.NewAnalysisService
	newAnalysisPollerFunc  = job.NewAnalysisPoller
	startPollerFunc        = func(p *job.AnalysisPoller, ctx context.Context) { go p.Start(ctx) }
	newRetentionJobFunc    = job.NewRetentionJob
	startRetentionJobFunc  = func(j *job.RetentionJob, ctx context.Context) { go j.Start(ctx) }
	startTelegramBotFunc   = bot.StartTelegramBot
	newSSHServerFunc       = tui.NewSSHServer
	startSSHServerFunc     = func(s *ssh.Server) error { return s.ListenAndServe() }
	shutdownSSHServerFunc  = func(s *ssh.Server, ctx context.Context) error { return s.Shutdown(ctx) }
	newHandlerFunc         = handler.New
	newRouterFunc          = gin.Default
	setupSignalNotify      = ossignal.Notify
	waitForSignalFunc      = func(quit <-chan os.Signal) { <-quit }
	startHTTPServerFunc    = func(srv *http.Server) error { return srv.ListenAndServe() }
	shutdownHTTPServerFunc = func(srv *http.Server, ctx context.Context) error { return srv.Shutdown(ctx) }
)

// @title           Equity Screener API
// @version         1.0
// @description     DCF valuation, relative ranking and technical signal fusion for equity batches.

// @host      localhost:8080
// @BasePath  /
func main() {
	loadEnvFunc()

	cfg := loadConfigFunc()

	policy, err := loadPolicyFunc(cfg.PolicyFile)
	if err != nil {
		log.Fatalf("failed to load policy: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool := initPostgresFunc(ctx, cfg.DatabaseURL, postgresMaxConns)
	if pool != nil {
		defer pool.Close()
	}
	redisClient := initRedisFunc(ctx, cfg.RedisURL)
	if redisClient != nil {
		defer redisClient.Close()
	}

	tp, tracer, err := initTracerFunc(ctx)
	if err != nil {
		log.Fatalf("failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("error shutting down tracer provider: %v", err)
		}
	}()

	if pool != nil {
		if err := runMigrationsFunc(ctx, pool); err != nil {
			log.Fatalf("failed to run migrations: %v", err)
		}
	}

	analysisService := newAnalysisServiceFunc(tracer, cfg, policy, pool, redisClient)

	var subscribers bot.SubscriberStore
	if redisClient != nil {
		subscribers = cache.NewSubscriberStore(redisClient)
	}
	alerts := startTelegramBotFunc(cfg.TelegramBotToken, analysisService, subscribers)

	// Background jobs stop on ctx cancel.
	poller := newAnalysisPollerFunc(tracer, analysisService, cfg.AnalysisTickers, app.PollInterval(cfg))
	if alerts != nil {
		poller.SetNotifier(alerts)
	}
	startPollerFunc(poller, ctx)
	retention := newRetentionJobFunc(tracer, analysisService, app.Retention(cfg))
	startRetentionJobFunc(retention, ctx)

	var sshServer *ssh.Server
	if cfg.SSHAddr != "" {
		sshServer, err = newSSHServerFunc(tui.SSHOptions{
			Addr:               cfg.SSHAddr,
			HostKeyPath:        cfg.SSHHostKeyPath,
			AuthorizedKeysPath: cfg.SSHAuthorizedKeys,
		}, analysisService)
		if err != nil {
			log.Fatalf("failed to create ssh server: %v", err)
		}
		go func() {
			log.Printf("SSH screener listening on %s", cfg.SSHAddr)
			if err := startSSHServerFunc(sshServer); err != nil && err != ssh.ErrServerClosed {
				log.Printf("ssh server stopped: %v", err)
			}
		}()
	}

	h := newHandlerFunc(tracer, analysisService)

	r := newRouterFunc()
	r.Use(otelgin.Middleware("equity-screener"))
	r.Use(cors.Default())

	h.RegisterRoutes(r)
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := &http.Server{
		Addr:    httpAddrFromEnv(),
		Handler: r,
	}

	go func() {
		if err := startHTTPServerFunc(srv); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	setupSignalNotify(quit, syscall.SIGINT, syscall.SIGTERM)
	waitForSignalFunc(quit)
	log.Println("Shutting down server...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if sshServer != nil {
		if err := shutdownSSHServerFunc(sshServer, shutdownCtx); err != nil {
			log.Printf("ssh shutdown: %v", err)
		}
	}
	if err := shutdownHTTPServerFunc(srv, shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exiting")
}

func httpAddrFromEnv() string {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		return ":8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}
