// Package config loads service settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/shopspring/decimal"
)

// Config holds every setting of the aggregation service
type Config struct {
	Server struct {
		Port string
		Env  string
	}

	Database struct {
		URL      string
		MaxConns int
	}

	Log struct {
		Level  string
		Format string
	}

	// Tables maps logical tables to physical names
	Tables Tables

	Rules struct {
		// ESSCapacity is the charge ceiling of the ESS forecast rule
		ESSCapacity decimal.Decimal
		// PowerUsageMappingEnabled switches the provisional usage mapping on
		PowerUsageMappingEnabled bool
		// Location is the time zone that defines a calendar day
		Location *time.Location
	}

	Notify struct {
		// Backend is one of "none", "redis", "kafka"
		Backend string
		Redis   struct {
			Addr     string
			Password string
			DB       int
			Stream   string
		}
		Kafka struct {
			Brokers []string
			Topic   string
		}
	}

	Replay struct {
		Endpoint string
		Workers  int
	}
}

// Tables lists the physical table names
type Tables struct {
	SolarDay     string
	WeatherInfo  string
	BMSDailyStat string
	SmarteyeDay  string
	AISolarPower string
	AIESSCharge  string
	AIPwrUsage   string
}

// Load reads the configuration from the environment
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.Server.Port = getEnv("PORT", "8080")
	cfg.Server.Env = getEnv("GO_ENV", "development")

	cfg.Database.URL = getEnv("DATABASE_URL", "")
	cfg.Database.MaxConns = getEnvInt("DB_MAX_CONNS", 10)

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	cfg.Tables = Tables{
		SolarDay:     getEnv("TABLE_SOLAR_DAY", "tb_solar_day"),
		WeatherInfo:  getEnv("TABLE_WEATHER_INFO", "tb_weather_info"),
		BMSDailyStat: getEnv("TABLE_BMS_DAILY_STAT", "tb_nrt_bms_daily_stat"),
		SmarteyeDay:  getEnv("TABLE_SMARTEYE_DAY", "tb_aggregate_smarteye_day"),
		AISolarPower: getEnv("TABLE_AI_SOLAR_POWER", "tb_ai_solar_power"),
		AIESSCharge:  getEnv("TABLE_AI_ESS_CHARGE", "tb_ai_ess_charge_amt"),
		AIPwrUsage:   getEnv("TABLE_AI_PWR_USAGE", "tb_ai_pwr_usage"),
	}

	cfg.Rules.ESSCapacity = decimal.NewFromInt(3120)
	if v, err := decimal.NewFromString(getEnv("ESS_CAPACITY", "")); err == nil && v.IsPositive() {
		cfg.Rules.ESSCapacity = v
	}
	cfg.Rules.PowerUsageMappingEnabled = getEnvBool("POWER_USAGE_MAPPING_ENABLED", true)

	tz := getEnv("AGGREGATION_TIMEZONE", "UTC")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("config: invalid AGGREGATION_TIMEZONE %q: %w", tz, err)
	}
	cfg.Rules.Location = loc

	cfg.Notify.Backend = strings.ToLower(getEnv("NOTIFY_BACKEND", "none"))
	cfg.Notify.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Notify.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Notify.Redis.DB = getEnvInt("REDIS_DB", 0)
	cfg.Notify.Redis.Stream = getEnv("REDIS_STREAM", "aggregation:results")
	cfg.Notify.Kafka.Brokers = splitList(getEnv("KAFKA_BROKERS", "localhost:9092"))
	cfg.Notify.Kafka.Topic = getEnv("KAFKA_TOPIC", "aggregation.results")

	switch cfg.Notify.Backend {
	case "none", "redis", "kafka":
	default:
		return nil, fmt.Errorf("config: unknown NOTIFY_BACKEND %q", cfg.Notify.Backend)
	}

	cfg.Replay.Endpoint = getEnv("REPLAY_ENDPOINT", "http://localhost:8080/api/v1/aggregate/all")
	cfg.Replay.Workers = getEnvInt("REPLAY_WORKERS", 10)

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v, err := strconv.Atoi(getEnv(key, "")); err == nil && v >= 0 {
		return v
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if v, err := strconv.ParseBool(getEnv(key, "")); err == nil {
		return v
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
