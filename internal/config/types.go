package config

// Run modes.
const (
	ModeBacktest = "backtest"
	ModePaper    = "paper"
	ModeLive     = "live"
)

type Config struct {
	// Path is where the config was loaded from, used by the file watcher.
	Path string `yaml:"-"`

	App      AppConfig      `yaml:"app"`
	Trading  TradingConfig  `yaml:"trading"`
	Risk     RiskConfig     `yaml:"risk"`
	Binance  BinanceConfig  `yaml:"binance"`
	Ledger   LedgerConfig   `yaml:"ledger"`
	Backtest BacktestConfig `yaml:"backtest"`
}

type AppConfig struct {
	Mode     string `yaml:"mode"`
	LogLevel string `yaml:"log_level"`
	LogFile  string `yaml:"log_file"`
	// SnapshotPath is the open-position snapshot file.
	SnapshotPath string `yaml:"snapshot_path"`
}

type TradingConfig struct {
	Symbols          []string `yaml:"symbols"`
	TrendTimeframes  []string `yaml:"trend_timeframes"`
	EntryTimeframes  []string `yaml:"entry_timeframes"`
	IntervalSeconds  int      `yaml:"interval_seconds"`
	MaxOpenPositions int      `yaml:"max_open_positions"`
	HistoryBars      int      `yaml:"history_bars"`
	QuoteAsset       string   `yaml:"quote_asset"`
	// Equity seeds sizing and the daily breaker when the gateway cannot
	// report balances.
	Equity float64 `yaml:"equity"`
	// DailyLossPct trips the daily breaker; CooldownMinutes is how long
	// entries stay paused after a trip.
	DailyLossPct    float64 `yaml:"daily_loss_pct"`
	CooldownMinutes int     `yaml:"cooldown_minutes"`
}

type RiskConfig struct {
	SLMultiplier        float64 `yaml:"sl_multiplier"`
	TPMultiplier        float64 `yaml:"tp_multiplier"`
	RiskReward          float64 `yaml:"risk_reward"`
	FeeRate             float64 `yaml:"fee_rate"`
	RiskPerTrade        float64 `yaml:"risk_per_trade"`
	PositionSizePct     float64 `yaml:"position_size_pct"`
	MaxPositionNotional float64 `yaml:"max_position_notional"`
}

type BinanceConfig struct {
	APIKey         string  `yaml:"api_key"`
	APISecret      string  `yaml:"api_secret"`
	Testnet        bool    `yaml:"testnet"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
	RequestsPerSec float64 `yaml:"requests_per_sec"`
}

type LedgerConfig struct {
	Path string `yaml:"path"`
}

type BacktestConfig struct {
	ScenarioPath string `yaml:"scenario_path"`
	ResultsPath  string `yaml:"results_path"`
}
