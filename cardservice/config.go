package cardservice

import (
	"time"

	"github.com/jonanatree/cardvault/internal/auth"
	"github.com/jonanatree/cardvault/internal/cardrules"
)

// Config is a configuration for the card service. Field tags are the keys
// the CLI reads from file, environment and flags.
type Config struct {
	HTTPAddr string      `mapstructure:"http_addr" yaml:"http_addr"`
	DB       DBConfig    `mapstructure:"db" yaml:"db"`
	JWT      JWTConfig   `mapstructure:"jwt" yaml:"jwt"`
	Rules    RulesConfig `mapstructure:"rules" yaml:"rules"`
}

type DBConfig struct {
	// Type is one of mem, sqlite, postgres, mysql.
	Type         string `mapstructure:"type" yaml:"type"`
	DSN          string `mapstructure:"dsn" yaml:"dsn"`
	MaxOpenConns int    `mapstructure:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns" yaml:"max_idle_conns"`
}

type JWTConfig struct {
	Key      string        `mapstructure:"key" yaml:"key"`
	Issuer   string        `mapstructure:"issuer" yaml:"issuer"`
	Audience string        `mapstructure:"audience" yaml:"audience"`
	Duration time.Duration `mapstructure:"duration" yaml:"duration"`
}

type RulesConfig struct {
	MaxActive      int `mapstructure:"max_active" yaml:"max_active"`
	MaxTotal       int `mapstructure:"max_total" yaml:"max_total"`
	MaxExpiryYears int `mapstructure:"max_expiry_years" yaml:"max_expiry_years"`
}

func DefaultConfig() *Config {
	return &Config{
		HTTPAddr: "localhost:9090",
		DB: DBConfig{
			Type:         DBMemory,
			MaxOpenConns: 10,
			MaxIdleConns: 5,
		},
		JWT: JWTConfig{
			Key:      "dev-only-signing-key-change-me",
			Issuer:   "cardvault",
			Audience: "cardvault-clients",
			Duration: auth.DefaultTokenTTL,
		},
		Rules: RulesConfig{
			MaxActive:      cardrules.DefaultMaxActive,
			MaxTotal:       cardrules.DefaultMaxTotal,
			MaxExpiryYears: cardrules.DefaultMaxExpiryYears,
		},
	}
}

// Defaults flattens DefaultConfig into dotted keys for viper.
func Defaults() map[string]any {
	c := DefaultConfig()
	return map[string]any{
		"http_addr":              c.HTTPAddr,
		"db.type":                c.DB.Type,
		"db.dsn":                 c.DB.DSN,
		"db.max_open_conns":      c.DB.MaxOpenConns,
		"db.max_idle_conns":      c.DB.MaxIdleConns,
		"jwt.key":                c.JWT.Key,
		"jwt.issuer":             c.JWT.Issuer,
		"jwt.audience":           c.JWT.Audience,
		"jwt.duration":           c.JWT.Duration,
		"rules.max_active":       c.Rules.MaxActive,
		"rules.max_total":        c.Rules.MaxTotal,
		"rules.max_expiry_years": c.Rules.MaxExpiryYears,
	}
}

func (c *Config) rules() *cardrules.Rules {
	return cardrules.NewRules(c.Rules.MaxActive, c.Rules.MaxTotal, c.Rules.MaxExpiryYears, nil)
}
