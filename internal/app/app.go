package app

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/iwtcode/icomService/internal/adapters/handlers"
	"github.com/iwtcode/icomService/internal/adapters/repositories/postgres"
	"github.com/iwtcode/icomService/internal/config"
	"github.com/iwtcode/icomService/internal/interfaces"
	"github.com/iwtcode/icomService/internal/middleware/logging"
	"github.com/iwtcode/icomService/internal/middleware/swagger"
	"github.com/iwtcode/icomService/internal/services/kafka"
	"github.com/iwtcode/icomService/internal/services/linac_service"
	"github.com/iwtcode/icomService/internal/services/mqtt"
	"github.com/iwtcode/icomService/internal/usecases"

	"go.uber.org/fx"
)

// New создает новый экземпляр fx.App
func New() *fx.App {
	return fx.New(
		ConfigModule,
		LoggingModule,
		RepositoryModule,
		ProducerModule,
		ServiceModule,
		UsecaseModule,
		HttpServerModule,
		// Invoke-функции для запуска фоновых задач и хуков жизненного цикла
		fx.Invoke(InvokeShutdownServices),
		fx.Invoke(InvokeRestoreConnections),
	)
}

// --- Модули FX ---

var ConfigModule = fx.Module("config_module",
	fx.Provide(config.LoadConfiguration),
)

func ProvideLogger(cfg *config.AppConfig) *logging.Logger {
	loggerCfg := &logging.Config{
		Enabled:    cfg.Logging.Enable,
		Level:      cfg.Logging.Level,
		LogsDir:    cfg.Logging.LogsDir,
		SavingDays: uint(cfg.Logging.SavingDays),
	}
	return logging.NewLogger(loggerCfg, "IcomServiceApp")
}

var LoggingModule = fx.Module("logging_module",
	fx.Provide(ProvideLogger),
)

var RepositoryModule = fx.Module("repository_module",
	fx.Provide(
		postgres.NewRepository,
		postgres.ProvideConnections,
		postgres.ProvideDeliveries,
	),
)

var ProducerModule = fx.Module("producer_module",
	fx.Provide(
		kafka.NewKafkaProducer,
		mqtt.NewPublisher,
	),
)

func ProvidePlanConverter(cfg *config.AppConfig, logger *logging.Logger) *linac_service.PlanConverter {
	return linac_service.NewPlanConverter(cfg.EFSOutputDir, logger)
}

var ServiceModule = fx.Module("service_module",
	fx.Provide(
		linac_service.NewCatalog,
		linac_service.NewEventDispatcher,
		ProvidePlanConverter,
		linac_service.NewLinacService,
	),
)

var UsecaseModule = fx.Module("usecases_module",
	fx.Provide(usecases.NewUsecases),
)

func NewSwaggerConfig(cfg *config.AppConfig) *swagger.Config {
	return &swagger.Config{
		Enabled: cfg.Swagger.Enabled,
		Path:    cfg.Swagger.Path,
	}
}

var HttpServerModule = fx.Module("http_server_module",
	fx.Provide(
		NewSwaggerConfig,
		handlers.NewHandler,
		handlers.ProvideRouter,
	),
	fx.Invoke(InvokeHttpServer),
)

// InvokeShutdownServices закрывает сессии LINAC и брокеры при остановке.
func InvokeShutdownServices(
	lc fx.Lifecycle,
	linacSvc interfaces.LinacService,
	dispatcher *linac_service.EventDispatcher,
	catalog *linac_service.Catalog,
	producer interfaces.KafkaService,
	publisher interfaces.MqttService,
	logger *logging.Logger,
) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			logger.Info("Closing LINAC sessions...")
			linacSvc.CloseAll()
			// Сессии закрыты: новых событий не будет.
			dispatcher.Close()
			if err := catalog.Close(); err != nil {
				logger.Warn("Failed to stop sequences watcher", "error", err)
			}
			if err := producer.Close(); err != nil {
				logger.Warn("Failed to close Kafka producer", "error", err)
			}
			if err := publisher.Close(); err != nil {
				logger.Warn("Failed to close MQTT publisher", "error", err)
			}
			logger.Info("Services stopped.")
			return nil
		},
	})
}

// InvokeRestoreConnections восстанавливает подключения этого узла при старте.
func InvokeRestoreConnections(lc fx.Lifecycle, linacUC interfaces.Usecases, dbRepo interfaces.LinacConnectionRepository, logger *logging.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			hostname, err := os.Hostname()
			if err != nil {
				logger.Warn("Failed to get hostname, skipping restore", "error", err)
				return nil
			}

			logger.Info("Restoring connections from the database...", "hostname", hostname)
			conns, err := dbRepo.GetByHostname(hostname)
			if err != nil {
				logger.Error("Failed to get connection list from DB", "error", err)
				return nil // Не фатально, просто продолжаем
			}

			if len(conns) == 0 {
				logger.Info("No saved connections found to restore.")
				return nil
			}

			for _, conn := range conns {
				logger.Info("Attempting to restore connection", "sessionID", conn.SessionID, "ip", conn.IP, "machine", conn.MachineName)

				connInfo, err := linacUC.RestoreConnection(conn)
				if err != nil {
					logger.Warn("Failed to restore connection", "sessionID", conn.SessionID, "error", err)
					continue
				}

				if connInfo.Connected {
					logger.Info("Connection restored successfully in pool", "sessionID", conn.SessionID)
				} else {
					logger.Warn("Connection restored in pool but LINAC is unreachable.", "sessionID", conn.SessionID, "error", connInfo.Error)
				}
			}
			return nil
		},
	})
}

// InvokeHttpServer запускает HTTP-сервер.
func InvokeHttpServer(lc fx.Lifecycle, cfg *config.AppConfig, h http.Handler, logger *logging.Logger) {
	serverAddr := ":" + cfg.ServerPort
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      h,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("HTTP Server is starting", "address", serverAddr)
			go func() {
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Error("Failed to start server", "error", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("Stopping HTTP server...")
			return server.Shutdown(ctx)
		},
	})
}
