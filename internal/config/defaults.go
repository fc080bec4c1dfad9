package config

func (c *Config) applyDefaults() {
	if c.App.Mode == "" {
		c.App.Mode = ModePaper
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.App.SnapshotPath == "" {
		c.App.SnapshotPath = "data/positions.json"
	}
	if len(c.Trading.TrendTimeframes) == 0 {
		c.Trading.TrendTimeframes = []string{"4h", "2h", "1h"}
	}
	if len(c.Trading.EntryTimeframes) == 0 {
		c.Trading.EntryTimeframes = []string{"30m", "15m"}
	}
	if c.Trading.IntervalSeconds <= 0 {
		c.Trading.IntervalSeconds = 60
	}
	if c.Trading.MaxOpenPositions <= 0 {
		c.Trading.MaxOpenPositions = 3
	}
	if c.Trading.HistoryBars <= 0 {
		c.Trading.HistoryBars = 150
	}
	if c.Trading.QuoteAsset == "" {
		c.Trading.QuoteAsset = "USDT"
	}
	if c.Trading.Equity <= 0 {
		c.Trading.Equity = 10000
	}
	if c.Trading.DailyLossPct <= 0 {
		c.Trading.DailyLossPct = 5
	}
	if c.Trading.CooldownMinutes <= 0 {
		c.Trading.CooldownMinutes = 60
	}
	if c.Risk.SLMultiplier <= 0 {
		c.Risk.SLMultiplier = 2.5
	}
	if c.Risk.TPMultiplier <= 0 {
		c.Risk.TPMultiplier = 3.0
	}
	if c.Risk.RiskReward <= 0 {
		c.Risk.RiskReward = 2.0
	}
	if c.Risk.FeeRate <= 0 {
		c.Risk.FeeRate = 0.001
	}
	if c.Risk.RiskPerTrade <= 0 && c.Risk.PositionSizePct <= 0 {
		c.Risk.PositionSizePct = 10
	}
	if c.Binance.TimeoutSeconds <= 0 {
		c.Binance.TimeoutSeconds = 15
	}
	if c.Binance.RequestsPerSec <= 0 {
		c.Binance.RequestsPerSec = 8
	}
	if c.Ledger.Path == "" {
		c.Ledger.Path = "data/trades.db"
	}
	if c.Backtest.ResultsPath == "" {
		c.Backtest.ResultsPath = "data/backtest_results.db"
	}
}
