package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"
)

const (
	configFilePathENV = "CONFIG_FILE"
	tokenTelegramENV  = "TELEGRAM_TOKEN"
	databaseDSN       = "DATABASE_DSN"
	redisAddrENV      = "REDIS_ADDR"
)

// LevelConfig is one grid band: entry/exit thresholds in spread
// percent, fraction of portfolio per fill. Decimal strings keep the
// yaml exact.
type LevelConfig struct {
	Direction string `yaml:"direction"` // long_spread | short_spread
	Entry     string `yaml:"entry"`
	Exit      string `yaml:"exit"`
	Fraction  string `yaml:"fraction"`
}

type PairConfig struct {
	Leg1   string        `yaml:"leg1"`
	Leg2   string        `yaml:"leg2"`
	Lot1   string        `yaml:"lot1"`
	Lot2   string        `yaml:"lot2"`
	Levels []LevelConfig `yaml:"levels"`
}

type AccountConfig struct {
	Name       string `yaml:"name"`
	Kind       string `yaml:"kind"` // ws | paper
	URL        string `yaml:"url"`
	APIKey     string `yaml:"api_key"`
	APISecret  string `yaml:"api_secret"`
	Passphrase string `yaml:"passphrase"`
}

// Config ...
type Config struct {
	Telegram struct {
		Token  string `yaml:"token"`
		ChatID int64  `yaml:"chat_id"`
	} `yaml:"telegram"`
	DB    string `yaml:"db_dsn"`
	Redis struct {
		Addr string        `yaml:"addr"`
		TTL  time.Duration `yaml:"ttl"`
	} `yaml:"redis"`

	Backup struct {
		Owner string        `yaml:"owner"`
		Tier  string        `yaml:"tier"`
		Every time.Duration `yaml:"every"`
	} `yaml:"backup"`

	Router struct {
		Policy  string            `yaml:"policy"` // market | instrument | security_type | simple
		Routes  map[string]string `yaml:"routes"`
		Default string            `yaml:"default"`
	} `yaml:"router"`

	Accounts []AccountConfig `yaml:"accounts"`
	Pairs    []PairConfig    `yaml:"pairs"`

	// Equity in quote currency, allocated across targets.
	Equity string `yaml:"equity"`

	SignalTTL time.Duration `yaml:"signal_ttl"`
	EvalEvery time.Duration `yaml:"eval_every"`

	Jaeger struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
	} `yaml:"jaeger"`

	MetricsAddr string `yaml:"metrics_addr"`
	HealthAddr  string `yaml:"health_addr"`
}

func NewConfig() (*Config, error) {

	configFileName := os.Getenv(configFilePathENV)
	if configFileName == "" {
		configFileName = "values_local.yaml"
	}
	file, err := os.Open("configs/" + configFileName)
	if err != nil {
		log.Fatalf("Failed to open config file: %v", err)
	}

	defer func() {
		_ = file.Close()
	}()

	decoder := yaml.NewDecoder(file)
	config := Config{
		Equity:      getenvDefault("EQUITY", "10000"),
		SignalTTL:   durationFromEnv("SIGNAL_TTL", "5m"),
		EvalEvery:   durationFromEnv("EVAL_EVERY", "1s"),
		MetricsAddr: getenvDefault("METRICS_ADDR", ":9090"),
		HealthAddr:  getenvDefault("HEALTH_ADDR", ":8080"),
	}
	config.Backup.Owner = getenvDefault("BACKUP_OWNER", "arb_bot")
	config.Backup.Tier = getenvDefault("BACKUP_TIER", "live")
	config.Backup.Every = durationFromEnv("BACKUP_EVERY", "5m")
	config.Redis.TTL = durationFromEnv("REDIS_TTL", "10m")

	err = decoder.Decode(&config)
	if err != nil {
		log.Fatalf("Failed to decode config file: %v", err)
	}

	token := os.Getenv(tokenTelegramENV)
	if token != "" {
		config.Telegram.Token = token
	}

	dsn := os.Getenv(databaseDSN)
	if dsn != "" {
		config.DB = dsn
	}

	if addr := os.Getenv(redisAddrENV); addr != "" {
		config.Redis.Addr = addr
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) validate() error {
	if len(c.Pairs) == 0 {
		return fmt.Errorf("config: no trading pairs configured")
	}
	for i, p := range c.Pairs {
		if p.Leg1 == "" || p.Leg2 == "" {
			return fmt.Errorf("config: pair %d has empty legs", i)
		}
		if len(p.Levels) == 0 {
			return fmt.Errorf("config: pair %s/%s has no grid levels", p.Leg1, p.Leg2)
		}
	}
	if len(c.Accounts) == 0 {
		return fmt.Errorf("config: no accounts configured")
	}
	seen := make(map[string]bool, len(c.Accounts))
	for _, a := range c.Accounts {
		if a.Name == "" {
			return fmt.Errorf("config: account with empty name")
		}
		if seen[a.Name] {
			return fmt.Errorf("config: duplicate account %q", a.Name)
		}
		seen[a.Name] = true
	}
	return nil
}

func intFromEnv(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func durationFromEnv(key, def string) time.Duration {
	val := getenvDefault(key, def)
	d, err := time.ParseDuration(val)
	if err != nil {
		d, _ = time.ParseDuration(def)
	}
	return d
}
