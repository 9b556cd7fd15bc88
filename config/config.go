// Package config owns the on-disk JSON configuration file: the
// {port, allowedDirs, aiCommands, auth.tokenHash} mapping described in
// spec.md §6. It is a thin, file-backed collaborator — the session core
// consumes it only through the Config struct and its AllowedDirs/AICommands
// fields.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	DefaultPort = "3456"

	defaultAICommandName = "claude"
	defaultAICommand     = "claude"
)

// AICommand is one entry of the configured `aiCommands` list.
type AICommand struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Cmd     string `json:"cmd"`
	Enabled bool   `json:"enabled"`
}

// Auth holds the persisted bearer-token hash. Empty TokenHash means no
// token has been initialized yet.
type Auth struct {
	TokenHash string `json:"tokenHash,omitempty"`
}

// Config is the JSON-serializable shape of the config file (spec.md §6).
type Config struct {
	Version     string      `json:"version"`
	Port        int         `json:"port"`
	AllowedDirs []string    `json:"allowedDirs"`
	AICommands  []AICommand `json:"aiCommands"`
	Auth        Auth        `json:"auth,omitempty"`

	// path is the on-disk location this Config was loaded from / will be
	// saved to. Not serialized.
	path string `json:"-"`
}

// Load reads the JSON config file at path, creating it with defaults
// seeded from the environment (PORT, AI_COMMAND, ALLOWED_DIRS) if absent.
// It first opportunistically loads a .env file, mirroring how the teacher
// app loads development environment overrides.
func Load(path string) (*Config, error) {
	godotenv.Load()

	if path == "" {
		path = getEnv("CLICAST_CONFIG", "clicast.config.json")
	}

	cfg, err := readFile(path)
	if os.IsNotExist(err) {
		cfg = defaultConfig()
		cfg.path = path
		if werr := cfg.Save(); werr != nil {
			return nil, werr
		}
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}
	cfg.path = path
	cfg.applyDefaults()
	return cfg, nil
}

func readFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func defaultConfig() *Config {
	port := 3456
	if p := os.Getenv("PORT"); p != "" {
		if v, err := parsePort(p); err == nil {
			port = v
		}
	}

	cmd := getEnv("AI_COMMAND", defaultAICommand)

	cfg := &Config{
		Version:     "1.0.0",
		Port:        port,
		AllowedDirs: parseDirs(os.Getenv("ALLOWED_DIRS")),
		AICommands: []AICommand{
			{ID: "default", Name: defaultAICommandName, Cmd: cmd, Enabled: true},
		},
	}
	return cfg
}

// applyDefaults fills in zero-valued fields after an on-disk file is read,
// matching spec.md §6's "missing fields default to" table.
func (c *Config) applyDefaults() {
	if c.Version == "" {
		c.Version = "1.0.0"
	}
	if c.Port == 0 {
		c.Port = 3456
	}
	if c.AllowedDirs == nil {
		c.AllowedDirs = []string{}
	}
	if len(c.AICommands) == 0 {
		c.AICommands = []AICommand{
			{ID: "default", Name: defaultAICommandName, Cmd: defaultAICommand, Enabled: true},
		}
	}
}

// Save writes the config back to disk as pretty-printed JSON.
func (c *Config) Save() error {
	if c.path == "" {
		return os.ErrInvalid
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(c.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(c.path, data, 0o600)
}

// Path returns the on-disk location backing this Config.
func (c *Config) Path() string {
	return c.path
}

// Clone returns a deep copy, used so the hot-reload Watcher can swap in a
// fresh snapshot without data-racing readers holding the old one.
func (c *Config) Clone() *Config {
	clone := *c
	clone.AllowedDirs = append([]string(nil), c.AllowedDirs...)
	clone.AICommands = append([]AICommand(nil), c.AICommands...)
	return &clone
}

func parsePort(s string) (int, error) {
	return strconv.Atoi(s)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseDirs(s string) []string {
	if s == "" {
		return []string{}
	}
	parts := strings.Split(s, ",")
	dirs := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if abs, err := filepath.Abs(p); err == nil {
			p = abs
		}
		dirs = append(dirs, p)
	}
	return dirs
}
