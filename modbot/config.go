package modbot

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/disgoorg/snowflake/v2"
	"github.com/pelletier/go-toml/v2"
	"github.com/sukoonbot/sukoon/modbot/database"
	"github.com/sukoonbot/sukoon/modbot/database/transcripts"
	"github.com/sukoonbot/sukoon/modbot/giveaway"
	"github.com/sukoonbot/sukoon/modbot/quarantine"
)

func LoadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config: %w", err)
	}
	defer file.Close()

	cfg := defaultConfig()
	if err = toml.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func defaultConfig() Config {
	return Config{
		Giveaway:   giveaway.DefaultConfig(),
		Moderation: quarantine.DefaultConfig(),
	}
}

type Config struct {
	Log        LogConfig          `toml:"log"`
	Bot        BotConfig          `toml:"bot"`
	DB         database.DBConfig  `toml:"db"`
	Mongo      transcripts.Config `toml:"mongo"`
	Giveaway   giveaway.Config    `toml:"giveaway"`
	Moderation quarantine.Config  `toml:"moderation"`
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
