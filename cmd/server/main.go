package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/zzy10151020/MBTI-System-sub000/internal/api"
	"github.com/zzy10151020/MBTI-System-sub000/internal/cache"
	"github.com/zzy10151020/MBTI-System-sub000/internal/config"
	"github.com/zzy10151020/MBTI-System-sub000/internal/db"
	"github.com/zzy10151020/MBTI-System-sub000/internal/events"
	"github.com/zzy10151020/MBTI-System-sub000/internal/middleware"
	"github.com/zzy10151020/MBTI-System-sub000/internal/services"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config (defaults to $MBTI_CONFIG)")
	migrateOnly := flag.Bool("migrate-only", false, "apply migrations and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	driver, err := db.ParseDriver(cfg.Database.Driver)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	sqlDB, err := db.Open(ctx, driver, cfg.Database.DSN)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer sqlDB.Close()
	if err := db.RunMigrations(ctx, sqlDB, cfg.Database.Migrations); err != nil {
		log.Fatalf("migrations: %v", err)
	}
	if *migrateOnly {
		cancel()
		log.Printf("migrations applied")
		return
	}
	store, err := db.NewStore(sqlDB, driver)
	if err != nil {
		log.Fatalf("store: %v", err)
	}

	tokens, err := middleware.NewTokens(cfg.Auth.JWTSecret)
	if err != nil {
		log.Fatalf("auth: %v", err)
	}
	if cfg.UsingDevSecret() {
		log.Printf("warning: signing tokens with the development secret; set MBTI_JWT_SECRET")
	}
	metrics := middleware.NewMetrics(nil)

	var statsCache services.StatisticsCache
	if cfg.Redis.Addr != "" {
		opts := cache.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB, TTL: cfg.Redis.StatsTTL}
		client := cache.NewClient(opts)
		defer client.Close()
		if err := client.Ping(ctx).Err(); err != nil {
			log.Printf("warning: redis %s unreachable, statistics cache will miss: %v", cfg.Redis.Addr, err)
		}
		statsCache = cache.NewStatisticsCache(client, opts)
		log.Printf("statistics cache: redis %s ttl=%s", cfg.Redis.Addr, cfg.Redis.StatsTTL)
	}

	answerOpts := []services.AnswerOption{services.WithSubmissionObserver(metrics)}
	if statsCache != nil {
		answerOpts = append(answerOpts, services.WithStatisticsCache(statsCache))
	}
	publisher, err := events.NewPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange)
	if err != nil {
		log.Printf("warning: event publisher disabled: %v", err)
	} else if publisher.Enabled() {
		defer func() {
			if err := publisher.Close(); err != nil {
				log.Printf("Error closing event publisher: %v", err)
			}
		}()
		answerOpts = append(answerOpts, services.WithPublisher(publisher))
		log.Printf("publishing answer events to exchange %s", cfg.AMQP.Exchange)
	}

	authSvc := services.NewAuthService(store, tokens.Sign, cfg.Auth.TokenTTL)
	questionnaireSvc := services.NewQuestionnaireService(store, statsCache)
	answerSvc := services.NewAnswerService(store, answerOpts...)
	statsSvc := services.NewStatisticsService(store, statsCache)

	if err := bootstrap(ctx, cfg, authSvc, questionnaireSvc, store); err != nil {
		log.Fatalf("bootstrap: %v", err)
	}
	cancel()

	handler := api.NewRouter(api.Deps{
		Auth:           authSvc,
		Questionnaires: questionnaireSvc,
		Answers:        answerSvc,
		Statistics:     statsSvc,
		Tokens:         tokens,
		Metrics:        metrics,
		Ping:           store.Ping,
		CORSOrigins:    cfg.Server.CORSOrigins,
		Commit:         cfg.Commit,
		BuildTime:      cfg.BuildTime,
	})
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("MBTI server listening on %s (db=%s)", cfg.Server.Addr, driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-shutdownChan
	log.Println("Shutting down server...")
	shutdownCtx, stop := context.WithTimeout(context.Background(), 15*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error shutting down HTTP server: %v", err)
	}
}
