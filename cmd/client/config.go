package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/PocketRelay/PocketArkClient/internal/servers"
	"gopkg.in/yaml.v3"
)

// Config holds all runtime configuration from flags, optionally
// overlaid by a YAML file. Flags given explicitly on the command line
// win over file values.
type Config struct {
	Host     string `yaml:"host"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Token    string `yaml:"token"`
	Create   bool   `yaml:"create"`

	Ports  servers.Ports  `yaml:"ports"`
	Limits servers.Limits `yaml:"limits"`

	SkipHosts   bool   `yaml:"skip_hosts"`
	MetricsAddr string `yaml:"metrics"`
	Debug       bool   `yaml:"debug"`

	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
}

func defaultConfig() Config {
	return Config{
		Ports:       servers.DefaultPorts,
		Limits:      servers.DefaultLimits,
		MetricsAddr: "",
	}
}

// loadConfig parses flags and, when -config names a YAML file, merges
// it underneath the explicitly set flags.
func loadConfig() (Config, error) {
	cfg := defaultConfig()
	var configFile string

	flag.StringVar(&configFile, "config", "", "optional YAML config file")
	flag.StringVar(&cfg.Host, "host", "", "Pocket Ark server address to connect to")
	flag.StringVar(&cfg.Username, "username", "", "account username for login")
	flag.StringVar(&cfg.Password, "password", "", "account password for login")
	flag.StringVar(&cfg.Token, "token", "", "session token; skips login when set")
	flag.BoolVar(&cfg.Create, "create", false, "create the account instead of logging in")
	redirectorPort := flag.Uint("redirector-port", uint(cfg.Ports.Redirector), "local redirector (TLS) port")
	tunnelPort := flag.Uint("tunnel-port", uint(cfg.Ports.Tunnel), "local session tunnel (TCP) port")
	proxyPort := flag.Uint("proxy-port", uint(cfg.Ports.Proxy), "local HTTPS proxy port")
	qosPort := flag.Uint("qos-port", uint(cfg.Ports.Qos), "local QoS echo (UDP) port")
	flag.BoolVar(&cfg.SkipHosts, "skip-hosts", false, "do not touch the OS hosts file")
	flag.StringVar(&cfg.MetricsAddr, "metrics", cfg.MetricsAddr, "metrics and health listen address (empty disables)")
	flag.BoolVar(&cfg.Debug, "debug", false, "enable debug logs")
	flag.StringVar(&cfg.RedisAddr, "redis-addr", "", "redis address for the shared public-address cache (empty = in-memory)")
	flag.StringVar(&cfg.RedisPassword, "redis-password", "", "redis password")
	flag.IntVar(&cfg.RedisDB, "redis-db", 0, "redis database index")
	flag.Parse()

	cfg.Ports.Redirector = uint16(*redirectorPort)
	cfg.Ports.Tunnel = uint16(*tunnelPort)
	cfg.Ports.Proxy = uint16(*proxyPort)
	cfg.Ports.Qos = uint16(*qosPort)

	if configFile == "" {
		return cfg, nil
	}

	fileCfg := defaultConfig()
	data, err := os.ReadFile(configFile)
	if err != nil {
		return cfg, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return cfg, fmt.Errorf("parse config file: %w", err)
	}

	// Start from the file, then re-apply whatever the operator set on
	// the command line.
	merged := fileCfg
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "host":
			merged.Host = cfg.Host
		case "username":
			merged.Username = cfg.Username
		case "password":
			merged.Password = cfg.Password
		case "token":
			merged.Token = cfg.Token
		case "create":
			merged.Create = cfg.Create
		case "redirector-port":
			merged.Ports.Redirector = cfg.Ports.Redirector
		case "tunnel-port":
			merged.Ports.Tunnel = cfg.Ports.Tunnel
		case "proxy-port":
			merged.Ports.Proxy = cfg.Ports.Proxy
		case "qos-port":
			merged.Ports.Qos = cfg.Ports.Qos
		case "skip-hosts":
			merged.SkipHosts = cfg.SkipHosts
		case "metrics":
			merged.MetricsAddr = cfg.MetricsAddr
		case "debug":
			merged.Debug = cfg.Debug
		case "redis-addr":
			merged.RedisAddr = cfg.RedisAddr
		case "redis-password":
			merged.RedisPassword = cfg.RedisPassword
		case "redis-db":
			merged.RedisDB = cfg.RedisDB
		}
	})
	return merged, nil
}
