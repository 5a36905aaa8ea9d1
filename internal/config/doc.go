// Package config manages the ccufind configuration file.
//
// The file holds discovery tuning (timeouts, retries, TTL, interface
// allowlist) and output preferences. It follows OS-specific conventions
// for storage location.
//
// # Configuration File Location
//
//   - Linux: $XDG_CONFIG_HOME/ccufind/config.yaml or $HOME/.config/ccufind/config.yaml
//   - macOS: $HOME/.config/ccufind/config.yaml
//   - Windows: %LOCALAPPDATA%\ccufind\config.yaml
//
// # Usage Example
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	svc := discovery.NewService(cfg.DiscoveryConfig())
//	devices, err := svc.SearchAllInterfaces(ctx, cfg.LocalIP())
//
// # Thread Safety
//
// The global config uses sync.Once for safe initialization across goroutines.
// File writes are protected by a mutex and are atomic (temp file + rename).
package config
