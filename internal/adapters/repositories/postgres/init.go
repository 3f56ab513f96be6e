package postgres

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/iwtcode/icomService/internal/adapters/repositories/postgres/delivery"
	"github.com/iwtcode/icomService/internal/adapters/repositories/postgres/linac_connection"
	"github.com/iwtcode/icomService/internal/config"
	"github.com/iwtcode/icomService/internal/domain/entities"
	"github.com/iwtcode/icomService/internal/interfaces"
	"github.com/iwtcode/icomService/internal/middleware/logging"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Repository объединяет репозитории сервиса поверх одного подключения
type Repository struct {
	Connections interfaces.LinacConnectionRepository
	Deliveries  interfaces.DeliveryRepository
}

func NewRepository(cfg *config.AppConfig, appLogger *logging.Logger) (*Repository, error) {
	// Шаг 1: Подключение к служебной БД 'postgres' для проверки и создания целевой БД
	dsnPostgres := fmt.Sprintf("host=%s user=%s password=%s dbname=postgres port=%s sslmode=disable",
		cfg.Database.Host,
		cfg.Database.Username,
		cfg.Database.Password,
		cfg.Database.Port,
	)

	db, err := gorm.Open(postgres.Open(dsnPostgres), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent), // Временное отключение логов
	})
	if err != nil {
		return nil, fmt.Errorf("не удалось подключиться к служебной БД 'postgres': %w", err)
	}

	// Шаг 2: Проверка существования нужной БД
	var exists bool
	query := "SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname = ?)"
	if err := db.Raw(query, cfg.Database.DBName).Scan(&exists).Error; err != nil {
		return nil, fmt.Errorf("не удалось проверить существование БД '%s': %w", cfg.Database.DBName, err)
	}

	// Шаг 3: Если БД не существует, создаем ее
	if !exists {
		appLogger.Info("Database not found. Creating...", "db_name", cfg.Database.DBName)
		createDbQuery := fmt.Sprintf("CREATE DATABASE %s", cfg.Database.DBName)
		if err := db.Exec(createDbQuery).Error; err != nil {
			return nil, fmt.Errorf("не удалось создать БД '%s': %w", cfg.Database.DBName, err)
		}
		appLogger.Info("Database created successfully.", "db_name", cfg.Database.DBName)
	} else {
		appLogger.Info("Database already exists.", "db_name", cfg.Database.DBName)
	}

	// Закрываем соединение со служебной БД
	sqlDB, _ := db.DB()
	_ = sqlDB.Close()

	// Шаг 4: Основное подключение к целевой базе данных
	dsnApp := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		cfg.Database.Host,
		cfg.Database.Username,
		cfg.Database.Password,
		cfg.Database.DBName,
		cfg.Database.Port,
	)

	logLevel := logger.Warn
	if cfg.Logging.Level == "DEBUG" {
		logLevel = logger.Info
	}
	newLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logLevel,
			IgnoreRecordNotFoundError: true,
			Colorful:                  true,
		},
	)

	appDb, err := gorm.Open(postgres.Open(dsnApp), &gorm.Config{Logger: newLogger})
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к базе данных '%s': %w", cfg.Database.DBName, err)
	}

	if err := autoMigrate(appDb); err != nil {
		return nil, fmt.Errorf("ошибка выполнения автомиграций: %w", err)
	}

	return &Repository{
		Connections: linac_connection.NewLinacConnectionRepository(appDb),
		Deliveries:  delivery.NewDeliveryRepository(appDb),
	}, nil
}

// ProvideConnections и ProvideDeliveries отдают репозитории по интерфейсам
func ProvideConnections(r *Repository) interfaces.LinacConnectionRepository { return r.Connections }
func ProvideDeliveries(r *Repository) interfaces.DeliveryRepository         { return r.Deliveries }

func autoMigrate(db *gorm.DB) error {
	// AutoMigrate безопасно создает таблицу, если она не существует,
	// и добавляет новые колонки, если они появились в модели.
	return db.AutoMigrate(&entities.LinacConnection{}, &entities.DeliveryRecord{})
}
