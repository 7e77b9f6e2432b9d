package quarantine

import "time"

type Config struct {
	TickInterval        time.Duration `toml:"tick_interval"`
	DMDeleteAfter       time.Duration `toml:"dm_delete_after"`
	TranscriptRetention time.Duration `toml:"transcript_retention"`
	AppealCooldown      time.Duration `toml:"appeal_cooldown"`
	AppealReviewTimeout time.Duration `toml:"appeal_review_timeout"`
}

func DefaultConfig() Config {
	return Config{
		TickInterval:        20 * time.Second,
		DMDeleteAfter:       10 * time.Minute,
		TranscriptRetention: 7 * 24 * time.Hour,
		AppealCooldown:      24 * time.Hour,
		AppealReviewTimeout: 7 * 24 * time.Hour,
	}
}
