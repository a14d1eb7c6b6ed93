package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the server configuration, loaded from YAML with env overrides
// for deployment-specific values.
type Config struct {
	Server struct {
		Port         string `yaml:"port"`
		ReadTimeout  int    `yaml:"read_timeout_seconds"`
		WriteTimeout int    `yaml:"write_timeout_seconds"`
		IdleTimeout  int    `yaml:"idle_timeout_seconds"`
	} `yaml:"server"`

	Game struct {
		MaxPlayers           int `yaml:"max_players"`
		CountdownSeconds     int `yaml:"countdown_seconds"`
		RevealSeconds        int `yaml:"reveal_seconds"`
		CooldownSeconds      int `yaml:"cooldown_seconds"`
		BuzzerWindowSeconds  int `yaml:"buzzer_window_seconds"`
		DisconnectGraceSecs  int `yaml:"disconnect_grace_seconds"`
		EmptyRoomGraceSecs   int `yaml:"empty_room_grace_seconds"`
		MatchTolerance       int `yaml:"match_tolerance"`
		TimeSyncIntervalSecs int `yaml:"time_sync_interval_seconds"`
	} `yaml:"game"`

	Catalog struct {
		BaseURL string `yaml:"base_url"`
	} `yaml:"catalog"`

	Results struct {
		StreamName string `yaml:"stream_name"`
		Subject    string `yaml:"subject"`
		MaxAgeHrs  int    `yaml:"max_age_hours"`
	} `yaml:"results"`
}

func loadConfig(path string) (*Config, error) {
	var config Config
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// All values have working defaults; a missing file is fine.
			return &config, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &config, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func seconds(v int, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return time.Duration(v) * time.Second
}
