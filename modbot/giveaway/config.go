package giveaway

import "time"

type Config struct {
	MinDuration  time.Duration `toml:"min_duration"`
	MaxDuration  time.Duration `toml:"max_duration"`
	MinWinners   int           `toml:"min_winners"`
	MaxWinners   int           `toml:"max_winners"`
	TickInterval time.Duration `toml:"tick_interval"`
	MaxFillCount int           `toml:"max_fill_count"`
	MaxFillSpan  time.Duration `toml:"max_fill_span"`
}

func DefaultConfig() Config {
	return Config{
		MinDuration:  30 * time.Second,
		MaxDuration:  365 * 24 * time.Hour,
		MinWinners:   1,
		MaxWinners:   20,
		TickInterval: 5 * time.Second,
		MaxFillCount: 1000,
		MaxFillSpan:  7 * 24 * time.Hour,
	}
}
