package fpm

import (
	"fmt"
	"net/netip"

	"github.com/BurntSushi/toml"
)

// DefaultPort is the FPM peer's default TCP port.
const DefaultPort = 2620

// DefaultAddress is the FPM peer's default address.
const DefaultAddress = "127.0.0.1"

// Config is the set of values the CLI/configuration collaborator
// supplies to the core: peer address/port, next-hop-group policy, and
// tuning knobs not pinned to a fixed constant (work limit, reconnect
// delay, walker resume delays). Loadable from a TOML file for
// deployments that prefer a static file over live CLI configuration.
type Config struct {
	Address string `toml:"address"`
	Port    uint16 `toml:"port"`

	UseNHG bool `toml:"use_nhg"`

	WorkLimit int `toml:"work_limit"`

	ReconnectDelaySeconds    int `toml:"reconnect_delay_seconds"`
	WalkerFastResumeSeconds  int `toml:"walker_fast_resume_seconds"`
	WalkerSlowResumeSeconds  int `toml:"walker_slow_resume_seconds"`
}

// DefaultConfig returns the stock configuration: loopback address,
// default port, next-hop-groups on, a 3-second reconnect backoff, and
// the 0s/1s walker resume delays.
func DefaultConfig() Config {
	return Config{
		Address:                 DefaultAddress,
		Port:                    DefaultPort,
		UseNHG:                  true,
		WorkLimit:               100,
		ReconnectDelaySeconds:   3,
		WalkerFastResumeSeconds: 0,
		WalkerSlowResumeSeconds: 1,
	}
}

// LoadConfig reads a TOML configuration file, starting from
// DefaultConfig so the file may specify only the fields it wants to
// override.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("fpm: loading config %q: %w", path, err)
	}
	return cfg, nil
}

// AddrPort resolves the configured address and port into a
// netip.AddrPort, accepting both IPv4 and IPv6 literals.
func (c Config) AddrPort() (netip.AddrPort, error) {
	addr := c.Address
	if addr == "" {
		addr = DefaultAddress
	}
	ip, err := netip.ParseAddr(addr)
	if err != nil {
		return netip.AddrPort{}, fmt.Errorf("fpm: invalid address %q: %w", addr, err)
	}

	port := c.Port
	if port == 0 {
		port = DefaultPort
	}
	return netip.AddrPortFrom(ip, port), nil
}
