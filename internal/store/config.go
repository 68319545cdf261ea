package store

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"weekly-basket-bot/internal/broker/paper"
	"weekly-basket-bot/internal/types"
)

type Config struct {
	BotID          string `yaml:"bot_id"`
	Mode           string `yaml:"mode"`
	TickSeconds    int    `yaml:"tick_seconds"`
	AppBaseURL     string `yaml:"app_base_url"`
	AccountKey     string `yaml:"account_key"`
	TradingEnabled bool   `yaml:"trading_enabled"`
	Signals        struct {
		Source       string `yaml:"source"`
		SnapshotPath string `yaml:"snapshot_path"`
		Asset        string `yaml:"asset"`
	} `yaml:"signals"`
	Sizing struct {
		Delegated    bool    `yaml:"delegated"`
		MarginBuffer float64 `yaml:"margin_buffer"`
	} `yaml:"sizing"`
	Trailing struct {
		StartPct  float64 `yaml:"start_pct"`
		OffsetPct float64 `yaml:"offset_pct"`
	} `yaml:"trailing"`
	Broker struct {
		Env               string  `yaml:"env"`
		AccountID         string  `yaml:"account_id"`
		RequestsPerSecond float64 `yaml:"requests_per_second"`
		TimeoutSeconds    int     `yaml:"timeout_seconds"`
	} `yaml:"broker"`
	Execution struct {
		TagPrefix     string `yaml:"tag_prefix"`
		WipeSweeps    int    `yaml:"wipe_sweeps"`
		CallSpacingMS int    `yaml:"call_spacing_ms"`
	} `yaml:"execution"`
	Store struct {
		DBPath string `yaml:"db_path"`
	} `yaml:"store"`
	Status struct {
		Addr string `yaml:"addr"`
	} `yaml:"status"`
	Debug struct {
		LogPlan bool `yaml:"log_plan"`
	} `yaml:"debug"`
	Paper paper.Config `yaml:"paper"`
}

func (c *Config) Validate() error {
	if c.BotID == "" {
		return errors.New("bot_id cannot be empty")
	}
	if c.Mode != "PAPER" && c.Mode != "LIVE" {
		return fmt.Errorf("invalid mode '%s': must be 'PAPER' or 'LIVE'", c.Mode)
	}
	if c.Signals.Source != "HTTP" && c.Signals.Source != "SNAPSHOT" {
		return fmt.Errorf("invalid signals.source '%s': must be 'HTTP' or 'SNAPSHOT'", c.Signals.Source)
	}
	if c.Signals.Source == "SNAPSHOT" && c.Signals.SnapshotPath == "" {
		return errors.New("signals.snapshot_path is required for SNAPSHOT source")
	}
	if (c.Signals.Source == "HTTP" || c.Sizing.Delegated) && c.AppBaseURL == "" {
		return errors.New("app_base_url is required for HTTP signals or delegated sizing")
	}
	if c.Sizing.Delegated && c.AccountKey == "" {
		return errors.New("account_key is required for delegated sizing")
	}
	if c.TickSeconds <= 0 {
		return fmt.Errorf("tick_seconds must be positive, got %d", c.TickSeconds)
	}
	if c.Sizing.MarginBuffer < 0 || c.Sizing.MarginBuffer >= 1 {
		return fmt.Errorf("sizing.margin_buffer must be in [0, 1), got %.2f", c.Sizing.MarginBuffer)
	}
	if c.Trailing.StartPct <= 0 || c.Trailing.OffsetPct < 0 {
		return fmt.Errorf("trailing.start_pct must be positive and offset_pct non-negative, got %.2f/%.2f",
			c.Trailing.StartPct, c.Trailing.OffsetPct)
	}
	if c.Mode == "LIVE" && c.Broker.Env != "practice" && c.Broker.Env != "live" {
		return fmt.Errorf("broker.env must be 'practice' or 'live', got '%s'", c.Broker.Env)
	}
	return nil
}

// LoadConfig reads the yaml file, applies defaults and env overrides, and validates.
// Every failure wraps types.ErrConfiguration.
func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrConfiguration, err)
	}
	return ParseConfig(b)
}

func ParseConfig(b []byte) (*Config, error) {
	c := presetConfig()
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrConfiguration, err)
	}
	c.applyDefaults()
	if err := c.applyEnv(); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrConfiguration, err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%w: config validation failed: %v", types.ErrConfiguration, err)
	}
	return &c, nil
}

// presetConfig holds defaults for fields where zero is a valid setting.
// Keys absent from the file keep these values.
func presetConfig() Config {
	var c Config
	c.Sizing.MarginBuffer = 0.1
	c.Trailing.OffsetPct = 10
	return c
}

func (c *Config) applyDefaults() {
	if c.BotID == "" {
		c.BotID = "oanda_universal"
	}
	if c.Mode == "" {
		c.Mode = "PAPER"
	}
	if c.TickSeconds == 0 {
		c.TickSeconds = 30
	}
	if c.Signals.Source == "" {
		c.Signals.Source = "HTTP"
	}
	if c.Signals.Asset == "" {
		c.Signals.Asset = "all"
	}
	if c.Trailing.StartPct == 0 {
		c.Trailing.StartPct = 20
	}
	if c.Broker.Env == "" {
		c.Broker.Env = "practice"
	}
	if c.Broker.RequestsPerSecond == 0 {
		c.Broker.RequestsPerSecond = 10
	}
	if c.Broker.TimeoutSeconds == 0 {
		c.Broker.TimeoutSeconds = 15
	}
	if c.Execution.TagPrefix == "" {
		c.Execution.TagPrefix = "uni"
	}
	if c.Execution.WipeSweeps == 0 {
		c.Execution.WipeSweeps = 3
	}
	if c.Execution.CallSpacingMS == 0 {
		c.Execution.CallSpacingMS = 150
	}
	if c.Store.DBPath == "" {
		c.Store.DBPath = "data/bot.db"
	}
	if c.Status.Addr == "" {
		c.Status.Addr = ":8090"
	}
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("BOT_TICK_SECONDS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("BOT_TICK_SECONDS: %v", err)
		}
		c.TickSeconds = n
	}
	if v := os.Getenv("APP_BASE_URL"); v != "" {
		c.AppBaseURL = v
	}
	if v := os.Getenv("OANDA_ENV"); v != "" {
		c.Broker.Env = strings.ToLower(v)
	}
	if v := os.Getenv("OANDA_ACCOUNT_ID"); v != "" {
		c.Broker.AccountID = v
	}
	if v := os.Getenv("DB_PATH"); v != "" {
		c.Store.DBPath = v
	}
	if v := os.Getenv("STATUS_ADDR"); v != "" {
		c.Status.Addr = v
	}
	floats := []struct {
		key string
		dst *float64
	}{
		{"OANDA_TRAIL_START_PCT", &c.Trailing.StartPct},
		{"OANDA_TRAIL_OFFSET_PCT", &c.Trailing.OffsetPct},
		{"OANDA_MARGIN_BUFFER", &c.Sizing.MarginBuffer},
	}
	for _, f := range floats {
		v := os.Getenv(f.key)
		if v == "" {
			continue
		}
		n, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%s: %v", f.key, err)
		}
		*f.dst = n
	}
	if on, ok := tradingEnabledEnv(); ok {
		c.TradingEnabled = on
	}
	return nil
}

// tradingEnabledEnv reads OANDA_TRADING_ENABLED. ok is false when unset or unparsable.
func tradingEnabledEnv() (enabled, ok bool) {
	v := strings.TrimSpace(os.Getenv("OANDA_TRADING_ENABLED"))
	if v == "" {
		return false, false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, false
	}
	return b, true
}

// Runtime is the immutable per-tick configuration snapshot.
type Runtime struct {
	BotID          string
	AccountKey     string
	TickInterval   time.Duration
	AppBaseURL     string
	TrailStartPct  float64
	TrailOffsetPct float64
	MarginBuffer   float64
	TradingEnabled bool
	TagPrefix      string
	LogPlan        bool
	LoadedAt       time.Time
}

// Runtime builds a snapshot from the file config alone.
func (c *Config) Runtime() Runtime {
	return Runtime{
		BotID:          c.BotID,
		AccountKey:     c.AccountKey,
		TickInterval:   time.Duration(c.TickSeconds) * time.Second,
		AppBaseURL:     c.AppBaseURL,
		TrailStartPct:  c.Trailing.StartPct,
		TrailOffsetPct: c.Trailing.OffsetPct,
		MarginBuffer:   c.Sizing.MarginBuffer,
		TradingEnabled: c.TradingEnabled,
		TagPrefix:      c.Execution.TagPrefix,
		LogPlan:        c.Debug.LogPlan,
		LoadedAt:       time.Now().UTC(),
	}
}

// WithAccount overlays the linked account record. The env kill switch is
// applied last so it always wins over the stored flag.
func (r Runtime) WithAccount(acct *Account) Runtime {
	if acct == nil {
		return r
	}
	if acct.TrailStartPct != nil && *acct.TrailStartPct > 0 {
		r.TrailStartPct = *acct.TrailStartPct
	}
	if acct.TrailOffsetPct != nil && *acct.TrailOffsetPct >= 0 {
		r.TrailOffsetPct = *acct.TrailOffsetPct
	}
	if acct.TradingEnabled != nil {
		r.TradingEnabled = *acct.TradingEnabled
	}
	if acct.AppBaseURL != "" {
		r.AppBaseURL = acct.AppBaseURL
	}
	if on, ok := tradingEnabledEnv(); ok {
		r.TradingEnabled = on
	}
	return r
}
