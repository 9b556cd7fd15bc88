package httpapi

import "clicast/config"

// ConfigSource exposes the live config snapshot that the path guard and
// AI-command resolution read from, so editing allowedDirs/aiCommands on
// disk takes effect without a restart (SPEC_FULL.md §5.9). *config.Watcher
// already satisfies this via its Current method; staticConfigSource adapts
// a plain *config.Config for when hot-reload couldn't start.
type ConfigSource interface {
	Current() *config.Config
}

type staticConfigSource struct{ cfg *config.Config }

// StaticConfig wraps cfg as a ConfigSource that never changes — the
// fallback when config.NewWatcher failed to start.
func StaticConfig(cfg *config.Config) ConfigSource {
	return staticConfigSource{cfg: cfg}
}

func (s staticConfigSource) Current() *config.Config { return s.cfg }
