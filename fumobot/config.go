package fumobot

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/pelletier/go-toml/v2"

	"github.com/fumocord/fumobot/fumobot/economy/trading"
	"github.com/fumocord/fumobot/fumobot/gacha"
)

func LoadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err = toml.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type Config struct {
	Log    LogConfig    `toml:"log"`
	Bot    BotConfig    `toml:"bot"`
	DB     DBConfig     `toml:"db"`
	Spaces SpacesConfig `toml:"spaces"`
	Trade  TradeConfig  `toml:"trade"`
	Gacha  GachaConfig  `toml:"gacha"`
}

type BotConfig struct {
	DevGuilds []snowflake.ID `toml:"dev_guilds"`
	Token     string         `toml:"token"`
}

type LogConfig struct {
	Level     slog.Level `toml:"level"`
	Format    string     `toml:"format"`
	AddSource bool       `toml:"add_source"`
}

type DBConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Database string `toml:"database"`
	PoolSize int    `toml:"pool_size"`
}

type SpacesConfig struct {
	Key      string `toml:"key"`
	Secret   string `toml:"secret"`
	Region   string `toml:"region"`
	Bucket   string `toml:"bucket"`
	FumoRoot string `toml:"fumoroot"`
}

// TradeConfig exposes the trading tunables. Durations are in seconds;
// zero values fall back to the trading package defaults.
type TradeConfig struct {
	MaxTradeAmount int64 `toml:"max_trade_amount"`
	MaxItems       int   `toml:"max_items"`
	MaxPets        int   `toml:"max_pets"`
	MaxFumos       int   `toml:"max_fumos"`

	GraceDelaySeconds    int `toml:"grace_delay_seconds"`
	InviteTimeoutSeconds int `toml:"invite_timeout_seconds"`
	IdleTimeoutSeconds   int `toml:"idle_timeout_seconds"`
	MaxSessionAgeSeconds int `toml:"max_session_age_seconds"`
	SweepIntervalSeconds int `toml:"sweep_interval_seconds"`
}

// Trading folds the config section over the package defaults.
func (c TradeConfig) Trading() trading.Config {
	cfg := trading.DefaultConfig()
	if c.MaxTradeAmount > 0 {
		cfg.MaxTradeAmount = c.MaxTradeAmount
	}
	if c.MaxItems > 0 {
		cfg.MaxItems = c.MaxItems
	}
	if c.MaxPets > 0 {
		cfg.MaxPets = c.MaxPets
	}
	if c.MaxFumos > 0 {
		cfg.MaxFumos = c.MaxFumos
	}
	if c.GraceDelaySeconds > 0 {
		cfg.GraceDelay = time.Duration(c.GraceDelaySeconds) * time.Second
	}
	if c.InviteTimeoutSeconds > 0 {
		cfg.InviteTimeout = time.Duration(c.InviteTimeoutSeconds) * time.Second
	}
	if c.IdleTimeoutSeconds > 0 {
		cfg.IdleTimeout = time.Duration(c.IdleTimeoutSeconds) * time.Second
	}
	if c.MaxSessionAgeSeconds > 0 {
		cfg.MaxSessionAge = time.Duration(c.MaxSessionAgeSeconds) * time.Second
	}
	if c.SweepIntervalSeconds > 0 {
		cfg.SweepInterval = time.Duration(c.SweepIntervalSeconds) * time.Second
	}
	return cfg
}

type GachaConfig struct {
	PityThreshold  int   `toml:"pity_threshold"`
	PityRarity     int   `toml:"pity_rarity"`
	RollCost       int64 `toml:"roll_cost"`
	RollsPerWindow int   `toml:"rolls_per_window"`
	WindowMinutes  int   `toml:"window_minutes"`
}

func (c GachaConfig) Engine() gacha.Config {
	cfg := gacha.DefaultConfig()
	if c.PityThreshold > 0 {
		cfg.PityThreshold = c.PityThreshold
	}
	if c.PityRarity > 0 {
		cfg.PityRarity = c.PityRarity
	}
	if c.RollCost > 0 {
		cfg.RollCost = c.RollCost
	}
	if c.RollsPerWindow > 0 {
		cfg.RollsPerWindow = c.RollsPerWindow
	}
	if c.WindowMinutes > 0 {
		cfg.WindowDuration = time.Duration(c.WindowMinutes) * time.Minute
	}
	return cfg
}
