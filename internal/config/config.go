package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig содержит конфигурацию приложения
type AppConfig struct {
	ServerPort    string
	GinMode       string
	SequencesFile string
	EFSOutputDir  string
	Swagger       SwaggerConfig
	Linac         LinacConfig
	Kafka         KafkaConfig
	MQTT          MQTTConfig
	Database      DatabaseConfig
	Logging       LoggerConfig
}

// LinacConfig содержит параметры подключения к LINAC по умолчанию
type LinacConfig struct {
	IP             string
	Name           string
	ControlTimeout time.Duration
	MonitorTimeout time.Duration
	PollTimeout    time.Duration
	SettleDelay    time.Duration
	QueueSize      int
	QAPatientKey   string
	SiteCodes      map[string]string
	Simulator      bool
	SimStepDelay   time.Duration
}

// SwaggerConfig управляет страницей документации API
type SwaggerConfig struct {
	Enabled bool
	Path    string
}

// KafkaConfig содержит настройки продюсера событий
type KafkaConfig struct {
	Broker string
	Topic  string
}

// MQTTConfig содержит настройки публикации в MQTT. Пустой Broker отключает публикацию.
type MQTTConfig struct {
	Broker      string
	ClientID    string
	TopicPrefix string
	QoS         byte
}

// LoggerConfig содержит настройки логгера
type LoggerConfig struct {
	Enable     bool
	LogsDir    string
	Level      string
	SavingDays int
}

// DatabaseConfig содержит конфигурацию для подключения к базе данных
type DatabaseConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	DBName   string
}

// LoadConfiguration загружает конфигурацию из .env файла или переменных окружения
func LoadConfiguration() (*AppConfig, error) {
	_ = godotenv.Load()

	config := &AppConfig{
		ServerPort:    getEnv("APP_PORT", "8082"),
		GinMode:       getEnv("GIN_MODE", "debug"),
		SequencesFile: getEnv("SEQUENCES_FILE", "./sequences.yaml"),
		EFSOutputDir:  getEnv("EFS_OUTPUT_DIR", ""),
		Swagger: SwaggerConfig{
			Enabled: getEnvAsBool("SWAGGER_ENABLED", true),
			Path:    getEnv("SWAGGER_PATH", "/swagger"),
		},
		Linac: LinacConfig{
			IP:             getEnv("LINAC_IP", "127.0.0.1"),
			Name:           getEnv("LINAC_NAME", "6480"),
			ControlTimeout: getEnvAsMillis("ICOM_FX_TIMEOUT_MS", 1000),
			MonitorTimeout: getEnvAsMillis("ICOM_VX_TIMEOUT_MS", 10000),
			PollTimeout:    getEnvAsMillis("ICOM_VX_POLL_MS", 1000),
			SettleDelay:    getEnvAsMillis("SETTLE_DELAY_MS", 1000),
			QueueSize:      getEnvAsInt("STATE_QUEUE_SIZE", 64),
			QAPatientKey:   getEnv("QA_PATIENT_KEY", "1QASNC"),
			SiteCodes:      getEnvAsMap("LINAC_SITE_CODES", map[string]string{"6480": "PO9"}),
			Simulator:      getEnvAsBool("ICOM_SIMULATOR", false),
			SimStepDelay:   getEnvAsMillis("ICOM_SIM_STEP_MS", 500),
		},
		Kafka: KafkaConfig{
			Broker: getEnv("KAFKA_BROKER", "localhost:9092"),
			Topic:  getEnv("KAFKA_TOPIC", "linac_events"),
		},
		MQTT: MQTTConfig{
			Broker:      getEnv("MQTT_BROKER", ""),
			ClientID:    getEnv("MQTT_CLIENT_ID", "icom-service"),
			TopicPrefix: getEnv("MQTT_TOPIC_PREFIX", "linac"),
			QoS:         byte(getEnvAsInt("MQTT_QOS", 1)),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			Username: getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "root"),
			DBName:   getEnv("DB_NAME", "icom_db"),
		},
		Logging: LoggerConfig{
			Enable:     getEnvAsBool("LOGGER_ENABLE", true),
			LogsDir:    getEnv("LOGGER_LOGS_DIR", "./logs"),
			Level:      getEnv("LOGGER_LOG_LEVEL", "DEBUG"),
			SavingDays: getEnvAsInt("LOGGER_SAVING_DAYS", 7),
		},
	}

	return config, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvAsInt(name string, defaultValue int) int {
	valueStr := getEnv(name, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsMillis(name string, defaultValue int) time.Duration {
	return time.Duration(getEnvAsInt(name, defaultValue)) * time.Millisecond
}

func getEnvAsBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	val, _ := strconv.ParseBool(value)
	return val
}

// getEnvAsMap читает пары вида "A=1,B=2".
func getEnvAsMap(key string, defaultValue map[string]string) map[string]string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	out := make(map[string]string)
	for _, pair := range strings.Split(value, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || k == "" {
			continue
		}
		out[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return out
}
