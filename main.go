package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/calltoleap/gatekeeper/audit"
	"github.com/calltoleap/gatekeeper/chat"
	"github.com/calltoleap/gatekeeper/config"
	"github.com/calltoleap/gatekeeper/controller"
	"github.com/calltoleap/gatekeeper/dao"
	"github.com/calltoleap/gatekeeper/db"
	logger "github.com/calltoleap/gatekeeper/logging"
	"github.com/calltoleap/gatekeeper/model"
	"github.com/calltoleap/gatekeeper/router"
	"github.com/calltoleap/gatekeeper/service"
	"github.com/calltoleap/gatekeeper/util"
)

func main() {
	// Initialize configuration
	if err := config.InitConfig(); err != nil {
		log.Fatalf("Failed to initialize config: %v", err)
	}

	// Initialize logger
	logger.InitLogger(config.GetString("log.dir"))
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize Redis (optional: backs the admin rate limiter and the
	// cross-instance row lock)
	redisEnabled := config.GetBool("redis.enabled")
	if redisEnabled {
		if err := db.InitRedis(); err != nil {
			logger.Fatal("Failed to initialize Redis", zap.Error(err))
		}
		defer db.CloseRedis()
	}

	// Initialize the record store client
	sheetsClient, err := db.NewSheetsClient(ctx,
		config.GetString("sheets.spreadsheetID"),
		config.GetString("sheets.credentialsFile"),
		config.GetDuration("sheets.requestTimeout"),
	)
	if err != nil {
		logger.Fatal("Failed to initialize record store client", zap.Error(err))
	}

	// Initialize Discord
	discord, err := chat.NewDiscord(
		config.GetString("discord.token"),
		config.GetString("discord.guildID"),
	)
	if err != nil {
		logger.Fatal("Failed to initialize Discord session", zap.Error(err))
	}

	// Initialize audit trail
	var auditRepository audit.Repository = audit.NoopRepository{}
	if esURL := config.GetString("elasticsearch.url"); esURL != "" {
		auditRepository, err = audit.NewElasticsearchRepository(esURL)
		if err != nil {
			logger.Fatal("Failed to initialize audit repository", zap.Error(err))
		}
	}
	auditService := audit.NewService(auditRepository)

	// Initialize DAOs
	recordDAO, err := dao.NewRecordDAO(sheetsClient,
		config.GetString("sheets.membersRange"),
		config.GetString("sheets.cancellationsRange"),
	)
	if err != nil {
		logger.Fatal("Failed to initialize record DAO", zap.Error(err))
	}

	// Initialize services and utilities
	validationUtil := util.NewValidationUtil()
	notificationService := util.NewNotificationService(discord, config.GetString("discord.operatorChannelID"))

	var rowLocks util.RowLocker = util.NewKeyedMutex()
	if redisEnabled {
		rowLocks = db.NewRedisRowLocker(30 * time.Second)
	}

	limiter := service.NewAttemptLimiter(config.GetInt("verify.maxAttempts"))
	roleSync := service.NewRoleSyncService(discord)
	premiumRoles := config.GetStringSlice("roles.premium")

	verificationService := service.NewVerificationService(
		recordDAO,
		roleSync,
		notificationService,
		auditService,
		rowLocks,
		premiumRoles,
		config.GetString("roles.baseline"),
	)

	adminService := service.NewAdminService(limiter, discord, auditService)

	intakeService := service.NewIntakeService(
		discord,
		limiter,
		verificationService,
		roleSync,
		adminService,
		validationUtil,
		notificationService,
		config.GetString("discord.intakeMode"),
		config.GetString("discord.intakeChannelID"),
		config.GetString("discord.adminRole"),
	)

	reconciliationService := service.NewReconciliationService(
		recordDAO,
		roleSync,
		discord,
		notificationService,
		auditService,
		rowLocks,
		premiumRoles,
		config.GetDuration("reconcile.interval"),
	)

	// Route gateway events through the bounded dispatcher
	dispatcher := util.NewDispatcher(256, 4)
	dispatcher.Subscribe("message.received", func(ctx context.Context, event util.Event) error {
		return intakeService.HandleMessage(ctx, event.Payload.(model.InboundMessage))
	})
	dispatcher.Subscribe("member.joined", func(ctx context.Context, event util.Event) error {
		return intakeService.HandleMemberJoin(ctx, event.Payload.(model.MemberJoined))
	})
	dispatcher.Start(ctx)

	discord.OnMessage(func(msg model.InboundMessage) {
		dispatcher.Publish("message.received", msg)
	})
	discord.OnMemberJoin(func(joined model.MemberJoined) {
		dispatcher.Publish("member.joined", joined)
	})

	if err := discord.Open(); err != nil {
		logger.Fatal("Failed to connect to Discord", zap.Error(err))
	}
	defer discord.Close()

	// Start the reconciliation poller
	go reconciliationService.Run(ctx)

	// Initialize controllers
	adminController := controller.NewAdminController(adminService, auditService)

	// Set up Gin
	gin.SetMode(gin.ReleaseMode)
	engine := router.SetupRouter(
		adminController,
		config.GetString("server.adminToken"),
		redisEnabled,
		30,
		time.Minute,
	)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", config.GetString("server.port")),
		Handler: engine,
	}

	// Start the server in a goroutine
	go func() {
		logger.Info("Starting admin server", zap.String("port", config.GetString("server.port")))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start admin server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shut down
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Gatekeeper exiting")
}
