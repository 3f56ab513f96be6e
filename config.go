package linac

import (
	"os"
	"strconv"
	"strings"
)

// Config хранит модель конфигурации клиента
type Config struct {
	IP               string
	MachineName      string
	ControlTimeoutMs int
	MonitorTimeoutMs int
	PollTimeoutMs    int
	SettleDelayMs    int
	QAPatientKey     string
	SiteCodes        map[string]string
	OutputDir        string
	Simulator        bool
	LogLevel         string
}

// Load загружает конфигурацию из переменных окружения
func Load() *Config {
	ip := os.Getenv("LINAC_IP")
	if ip == "" {
		ip = "127.0.0.1"
	}

	name := os.Getenv("LINAC_NAME")
	if name == "" {
		name = "6480"
	}

	qaKey := os.Getenv("QA_PATIENT_KEY")
	if qaKey == "" {
		qaKey = "1QASNC"
	}

	siteCodes := ParseSiteCodes(os.Getenv("LINAC_SITE_CODES"))
	if len(siteCodes) == 0 {
		siteCodes = map[string]string{"6480": "PO9"}
	}

	simulator, _ := strconv.ParseBool(os.Getenv("ICOM_SIMULATOR"))

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}

	return &Config{
		IP:               ip,
		MachineName:      name,
		ControlTimeoutMs: envInt("ICOM_FX_TIMEOUT_MS", 1000),
		MonitorTimeoutMs: envInt("ICOM_VX_TIMEOUT_MS", 10000),
		PollTimeoutMs:    envInt("ICOM_VX_POLL_MS", 1000),
		SettleDelayMs:    envInt("SETTLE_DELAY_MS", 1000),
		QAPatientKey:     qaKey,
		SiteCodes:        siteCodes,
		OutputDir:        os.Getenv("EFS_OUTPUT_DIR"),
		Simulator:        simulator,
		LogLevel:         logLevel,
	}
}

// ParseSiteCodes разбирает строку вида "6480=PO9,6481=PO7".
func ParseSiteCodes(s string) map[string]string {
	out := map[string]string{}
	for _, pair := range strings.Split(s, ",") {
		name, code, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || name == "" {
			continue
		}
		out[strings.TrimSpace(name)] = strings.TrimSpace(code)
	}
	return out
}

func envInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}
