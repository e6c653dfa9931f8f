// main.go
package main

import (
	"context"
	"log"
	"time"

	"tour-booking/cmd"
	"tour-booking/internal/data/repository"
	"tour-booking/internal/gateway"
	"tour-booking/internal/scheduler"
	"tour-booking/internal/usecase"
	"tour-booking/internal/wire"
	"tour-booking/pkg/database"
	"tour-booking/pkg/lock"
	"tour-booking/pkg/metrics"
	"tour-booking/pkg/mq"
	"tour-booking/pkg/utils"

	"go.uber.org/zap"
)

func main() {
	// Load config
	config, err := utils.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	logger, err := utils.InitLogger(config.App.Name, config.App.LogPath, config.App.Debug)
	if err != nil {
		log.Printf("Failed to init logger: %v. Using standard log.", err)
		logger, _ = zap.NewProduction()
	}
	defer logger.Sync()

	logger.Info("Starting application",
		zap.String("app", config.App.Name),
		zap.String("port", config.App.Port),
		zap.Bool("debug", config.App.Debug),
	)

	if config.Payment.ServerKey == "" {
		logger.Warn("PAYMENT_SERVER_KEY is empty, every webhook will be rejected")
	}

	// Connect to database
	db, err := database.InitDB(config.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	logger.Info("Database connected successfully")

	// Initialize all repositories
	repos := repository.NewRepository(db, logger)

	// Outbound collaborators
	deps := usecase.Deps{
		Gateway:   gateway.NewMidtrans(gateway.MidtransConfigFrom(config.Payment), logger),
		Publisher: mq.NopPublisher{},
		Locker:    lock.LocalLocker{},
	}

	if config.RabbitMQ.Enabled {
		publisher, err := mq.NewPublisher(config.RabbitMQ.URL, config.RabbitMQ.Exchange)
		if err != nil {
			logger.Fatal("Failed to connect to RabbitMQ", zap.Error(err))
		}
		defer publisher.Close()
		deps.Publisher = publisher
		logger.Info("Booking events published to RabbitMQ", zap.String("exchange", config.RabbitMQ.Exchange))
	}

	if config.Redis.Enabled {
		client := lock.NewRedisClient(config.Redis)
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := client.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			logger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer client.Close()
		deps.Locker = lock.NewRedisLocker(client, config.App.Name+":")
		logger.Info("Redis lock enabled for expiry sweep", zap.String("addr", config.Redis.Addr))
	}

	metrics.Register()

	// Wire all dependencies
	app := wire.Wiring(repos, config, deps, logger)

	// Background jobs
	var jobs *scheduler.Scheduler
	if config.Jobs.SchedulerEnabled {
		jobs = scheduler.New(app.Service.Expiry, app.Service.Auth, config.Jobs, logger)
		if err := jobs.Start(); err != nil {
			logger.Fatal("Failed to start scheduler", zap.Error(err))
		}
	}

	// Start server
	logger.Info("Starting HTTP server", zap.String("port", config.App.Port))

	cmd.APIServer(app.Router, config.App.Port, config.App.ShutdownTimeout, logger, func(ctx context.Context) {
		if jobs != nil {
			jobs.Stop(ctx)
		}
	})
}
