// File: rapidcare/main.go
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rapidcare/config"
	"rapidcare/cron"
	"rapidcare/database"
	auditRepo "rapidcare/database/repository/audit"
	"rapidcare/handlers"
	"rapidcare/routes"
	"rapidcare/services/approval"
	"rapidcare/services/ledger"
	"rapidcare/services/notification"
	"rapidcare/services/payment"
	"rapidcare/services/remote"
	syncsvc "rapidcare/services/sync"
	"rapidcare/services/tasks"
	"rapidcare/utils"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v76"
)

func main() {
	config.LoadConfig()
	logger := utils.GetLogger()

	database.InitDB()
	utils.InitCache()
	if config.AppConfig.FirebaseCredentialsPath != "" {
		utils.FirebaseInit()
	}
	stripe.Key = config.AppConfig.StripeKey

	// Create the Gin router.
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(utils.ErrorHandler())
	router.Use(gin.Logger())

	// repositories.
	audits := auditRepo.NewMongoAuditRepo()

	// services.
	enqueuer := tasks.NewEnqueuer()
	stripeHandler := payment.NewStripeHandler(logger)

	resourceLedger := ledger.NewLedger(logger)
	approvalMachine := approval.NewMachine(resourceLedger, audits, enqueuer, stripeHandler, logger)

	registry := syncsvc.NewRegistry(logger)
	registry.SetAuthToken(config.AppConfig.UpstreamToken)
	upstream := remote.NewClient(config.AppConfig.UpstreamBaseURL, registry.Token, logger)

	orchestrator := syncsvc.NewOrchestrator(
		registry,
		resourceLedger,
		approvalMachine,
		upstream,
		utils.GetCacheClient(),
		syncsvc.Intervals{
			Resources: config.ResourcePollInterval(),
			Bookings:  config.BookingPollInterval(),
			Dashboard: config.DashboardPollInterval(),
			Max:       config.MaxPollInterval(),
		},
		logger,
	)

	notificationService := &notification.DefaultNotificationService{
		Tokens: utils.GetCacheClient(),
		Logger: logger,
	}
	cron.InitDecisionWorker(notificationService)

	resyncCron, err := cron.StartResyncCron(orchestrator, logger)
	if err != nil {
		logger.Sugar().Fatalf("main: failed to start resync cron: %v", err)
	}

	utils.StartHealthMonitor(utils.GetCacheClient(), database.MongoClient)

	// Assemble the handler bundle.
	handlerBundle := &handlers.HandlerBundle{
		Sync:    handlers.NewSyncHandler(orchestrator, registry, upstream, config.MaxPollInterval()),
		Ledger:  handlers.NewLedgerHandler(resourceLedger),
		Booking: handlers.NewBookingHandler(approvalMachine, audits),
	}

	// Register routes with the assembled handler bundle.
	routes.RegisterRoutes(router, handlerBundle)

	// Start the HTTP server.
	port := config.AppConfig.AppPort
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:    "0.0.0.0:" + port,
		Handler: router,
	}

	logger.Sugar().Infof("Starting server on %s...", srv.Addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Sugar().Fatalf("main: server failed to start: %v", err)
		}
	}()

	// Wait for an OS signal to gracefully shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Sugar().Info("main: server is shutting down...")

	resyncCron.Stop()
	orchestrator.Shutdown()
	if err := enqueuer.Close(); err != nil {
		logger.Sugar().Warnf("main: failed to close task enqueuer: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Sugar().Fatalf("main: server forced to shutdown: %v", err)
	}

	logger.Sugar().Info("main: server stopped gracefully")
}
