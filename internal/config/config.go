// Package config provides Viper-based configuration loading for the match server.
package config

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/cory-johannsen/gridbrawl/internal/game/combat"
	"github.com/cory-johannsen/gridbrawl/internal/game/match"
)

// ServerConfig holds top-level server settings.
type ServerConfig struct {
	// Name identifies this instance in logs.
	Name string `mapstructure:"name"`
	// ShutdownTimeout bounds graceful shutdown of every transport.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// DSN returns the PostgreSQL connection string.
//
// Precondition: Host, Port, User, and Name must be non-empty.
// Postcondition: Returns a valid PostgreSQL DSN string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// GameServerConfig holds the listen addresses of both transports.
type GameServerConfig struct {
	GRPCHost string `mapstructure:"grpc_host"`
	GRPCPort int    `mapstructure:"grpc_port"`
	HTTPHost string `mapstructure:"http_host"`
	HTTPPort int    `mapstructure:"http_port"`
	// SendBuffer bounds each client's queue of pending events.
	SendBuffer int `mapstructure:"send_buffer"`
}

// GRPCAddr returns the "host:port" gRPC address.
func (g GameServerConfig) GRPCAddr() string {
	return fmt.Sprintf("%s:%d", g.GRPCHost, g.GRPCPort)
}

// HTTPAddr returns the "host:port" HTTP/WebSocket address.
func (g GameServerConfig) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", g.HTTPHost, g.HTTPPort)
}

// MatchConfig holds the rule and timing constants of every match.
type MatchConfig struct {
	TurnSeconds         int           `mapstructure:"turn_seconds"`
	GraceDelay          time.Duration `mapstructure:"grace_delay"`
	StepInterval        time.Duration `mapstructure:"step_interval"`
	BotThinkDelay       time.Duration `mapstructure:"bot_think_delay"`
	CombatSeconds       int           `mapstructure:"combat_seconds"`
	CombatNoFleeSeconds int           `mapstructure:"combat_no_flee_seconds"`
	FleeAttempts        int           `mapstructure:"flee_attempts"`
	FleeChance          int           `mapstructure:"flee_chance"`
	VictoriesToWin      int           `mapstructure:"victories_to_win"`
	MaxBotDecisions     int           `mapstructure:"max_bot_decisions"`
}

// Settings converts the section into match settings.
func (m MatchConfig) Settings() match.Settings {
	s := match.DefaultSettings()
	s.TurnSeconds = m.TurnSeconds
	s.GraceDelay = m.GraceDelay
	s.StepInterval = m.StepInterval
	s.BotThinkDelay = m.BotThinkDelay
	s.VictoriesToWin = m.VictoriesToWin
	s.MaxBotDecisions = m.MaxBotDecisions
	s.Combat = combat.Settings{
		FleeAttempts:      m.FleeAttempts,
		FleeChance:        m.FleeChance,
		TurnSeconds:       m.CombatSeconds,
		NoFleeTurnSeconds: m.CombatNoFleeSeconds,
	}
	return s
}

// ContentConfig locates boards and AI content.
type ContentConfig struct {
	// BoardsSource is "dir" or "postgres".
	BoardsSource string `mapstructure:"boards_source"`
	BoardsDir    string `mapstructure:"boards_dir"`
	// AIDir holds HTN domain overrides; empty uses the builtin domains only.
	AIDir string `mapstructure:"ai_dir"`
	// AIScriptsDir holds the Lua predicates; empty disables Lua preconditions.
	AIScriptsDir           string `mapstructure:"ai_scripts_dir"`
	ScriptInstructionLimit int    `mapstructure:"script_instruction_limit"`
}

// Config is the top-level application configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	GameServer GameServerConfig `mapstructure:"gameserver"`
	Match      MatchConfig      `mapstructure:"match"`
	Content    ContentConfig    `mapstructure:"content"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string
	for _, err := range []error{
		validateServer(c.Server),
		validateLogging(c.Logging),
		validateGameServer(c.GameServer),
		validateMatch(c.Match),
		validateContent(c.Content),
	} {
		if err != nil {
			errs = append(errs, err.Error())
		}
	}
	if c.Content.BoardsSource == "postgres" {
		if err := validateDatabase(c.Database); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func joinErrs(errs []string) error {
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateServer(s ServerConfig) error {
	var errs []string
	if s.Name == "" {
		errs = append(errs, "server.name must not be empty")
	}
	if s.ShutdownTimeout < 0 {
		errs = append(errs, "server.shutdown_timeout must not be negative")
	}
	return joinErrs(errs)
}

// ValidateDatabase checks the database section alone, for tools that always need it.
func ValidateDatabase(d DatabaseConfig) error { return validateDatabase(d) }

func validateDatabase(d DatabaseConfig) error {
	var errs []string
	if d.Host == "" {
		errs = append(errs, "database.host must not be empty")
	}
	if d.Port < 1 || d.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", d.Port))
	}
	if d.User == "" {
		errs = append(errs, "database.user must not be empty")
	}
	if d.Name == "" {
		errs = append(errs, "database.name must not be empty")
	}
	validSSL := map[string]bool{"disable": true, "require": true, "verify-ca": true, "verify-full": true}
	if !validSSL[d.SSLMode] {
		errs = append(errs, fmt.Sprintf("database.sslmode must be one of [disable, require, verify-ca, verify-full], got %q", d.SSLMode))
	}
	if d.MaxConns < 1 {
		errs = append(errs, fmt.Sprintf("database.max_conns must be >= 1, got %d", d.MaxConns))
	}
	if d.MinConns < 0 {
		errs = append(errs, fmt.Sprintf("database.min_conns must be >= 0, got %d", d.MinConns))
	}
	if d.MinConns > d.MaxConns {
		errs = append(errs, "database.min_conns must not exceed database.max_conns")
	}
	return joinErrs(errs)
}

func validatePort(name string, port int) string {
	if port < 1 || port > 65535 {
		return fmt.Sprintf("%s must be 1-65535, got %d", name, port)
	}
	return ""
}

func validateGameServer(g GameServerConfig) error {
	var errs []string
	if g.GRPCHost == "" {
		errs = append(errs, "gameserver.grpc_host must not be empty")
	}
	for name, port := range map[string]int{"gameserver.grpc_port": g.GRPCPort, "gameserver.http_port": g.HTTPPort} {
		if msg := validatePort(name, port); msg != "" {
			errs = append(errs, msg)
		}
	}
	sort.Strings(errs)
	if g.GRPCPort == g.HTTPPort && g.GRPCHost == g.HTTPHost {
		errs = append(errs, "gameserver.grpc_port and gameserver.http_port must differ")
	}
	if g.SendBuffer < 1 {
		errs = append(errs, fmt.Sprintf("gameserver.send_buffer must be >= 1, got %d", g.SendBuffer))
	}
	return joinErrs(errs)
}

func validateMatch(m MatchConfig) error {
	var errs []string
	positive := map[string]int{
		"match.turn_seconds":           m.TurnSeconds,
		"match.combat_seconds":         m.CombatSeconds,
		"match.combat_no_flee_seconds": m.CombatNoFleeSeconds,
		"match.victories_to_win":       m.VictoriesToWin,
		"match.max_bot_decisions":      m.MaxBotDecisions,
	}
	for name, v := range positive {
		if v < 1 {
			errs = append(errs, fmt.Sprintf("%s must be >= 1, got %d", name, v))
		}
	}
	if m.FleeAttempts < 0 {
		errs = append(errs, fmt.Sprintf("match.flee_attempts must be >= 0, got %d", m.FleeAttempts))
	}
	if m.FleeChance < 0 || m.FleeChance > 100 {
		errs = append(errs, fmt.Sprintf("match.flee_chance must be 0-100, got %d", m.FleeChance))
	}
	for name, d := range map[string]time.Duration{
		"match.grace_delay":     m.GraceDelay,
		"match.step_interval":   m.StepInterval,
		"match.bot_think_delay": m.BotThinkDelay,
	} {
		if d < 0 {
			errs = append(errs, name+" must not be negative")
		}
	}
	sort.Strings(errs)
	return joinErrs(errs)
}

func validateContent(c ContentConfig) error {
	var errs []string
	switch c.BoardsSource {
	case "dir":
		if c.BoardsDir == "" {
			errs = append(errs, "content.boards_dir must not be empty when content.boards_source is dir")
		}
	case "postgres":
	default:
		errs = append(errs, fmt.Sprintf("content.boards_source must be one of [dir, postgres], got %q", c.BoardsSource))
	}
	if c.ScriptInstructionLimit < 0 {
		errs = append(errs, "content.script_instruction_limit must not be negative")
	}
	return joinErrs(errs)
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

// Load reads configuration from the given file path, applies environment variable
// overrides, and validates the result.
//
// Precondition: path must be a valid file path to a YAML configuration file.
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := NewViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}
	return LoadFromViper(v)
}

// NewViper returns a Viper with the defaults and the GRID_ environment
// overrides installed.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("GRID")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

// LoadFromViper builds a Config from an already-configured Viper instance.
//
// Precondition: v must be non-nil and have configuration values set.
// Postcondition: Returns a valid Config or a non-nil error.
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.name", "gridbrawl")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "gridbrawl")
	v.SetDefault("database.password", "gridbrawl")
	v.SetDefault("database.name", "gridbrawl")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", "1h")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("gameserver.grpc_host", "127.0.0.1")
	v.SetDefault("gameserver.grpc_port", 50051)
	v.SetDefault("gameserver.http_host", "0.0.0.0")
	v.SetDefault("gameserver.http_port", 8080)
	v.SetDefault("gameserver.send_buffer", 256)

	d := match.DefaultSettings()
	v.SetDefault("match.turn_seconds", d.TurnSeconds)
	v.SetDefault("match.grace_delay", d.GraceDelay.String())
	v.SetDefault("match.step_interval", d.StepInterval.String())
	v.SetDefault("match.bot_think_delay", d.BotThinkDelay.String())
	v.SetDefault("match.combat_seconds", d.Combat.TurnSeconds)
	v.SetDefault("match.combat_no_flee_seconds", d.Combat.NoFleeTurnSeconds)
	v.SetDefault("match.flee_attempts", d.Combat.FleeAttempts)
	v.SetDefault("match.flee_chance", d.Combat.FleeChance)
	v.SetDefault("match.victories_to_win", d.VictoriesToWin)
	v.SetDefault("match.max_bot_decisions", d.MaxBotDecisions)

	v.SetDefault("content.boards_source", "dir")
	v.SetDefault("content.boards_dir", "content/boards")
	v.SetDefault("content.ai_dir", "content/ai")
	v.SetDefault("content.ai_scripts_dir", "content/scripts/ai")
	v.SetDefault("content.script_instruction_limit", 0)
}
