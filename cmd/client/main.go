package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/PocketRelay/PocketArkClient/internal/addrcache"
	"github.com/PocketRelay/PocketArkClient/internal/api"
	"github.com/PocketRelay/PocketArkClient/internal/hostfile"
	"github.com/PocketRelay/PocketArkClient/internal/obs"
	"github.com/PocketRelay/PocketArkClient/internal/servers"
	"github.com/PocketRelay/PocketArkClient/internal/session"
)

func main() {
	cfg, err := loadConfig()
	if err != nil {
		obs.Error("config", obs.Fields{"err": err.Error()})
		os.Exit(1)
	}
	if cfg.Debug {
		obs.EnableDebug(true)
	}
	if cfg.Host == "" {
		obs.Error("config", obs.Fields{"err": "no server host given, pass -host or a config file"})
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sess := session.NewContext()

	cache, err := addrcache.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		obs.Error("addrcache", obs.Fields{"err": err.Error()})
		os.Exit(1)
	}

	sup, err := servers.NewSupervisor(cfg.Ports, cfg.Limits, sess, cache)
	if err != nil {
		obs.Error("supervisor", obs.Fields{"err": err.Error()})
		os.Exit(1)
	}

	hosts := hostfile.New()
	if !cfg.SkipHosts {
		if err := hosts.Install(); err != nil {
			obs.Error("hosts.install", obs.Fields{"err": err.Error()})
			os.Exit(1)
		}
		obs.Info("hosts.installed", obs.Fields{"path": hosts.Path})
		defer func() {
			if err := hosts.Remove(); err != nil {
				obs.Error("hosts.remove", obs.Fields{"err": err.Error()})
				return
			}
			obs.Info("hosts.removed", nil)
		}()
	}

	target, token, err := connect(ctx, cfg)
	if err != nil {
		obs.Error("connect", obs.Fields{"host": cfg.Host, "err": err.Error()})
		os.Exit(1)
	}

	if cfg.MetricsAddr != "" {
		go startMetricsServer(cfg.MetricsAddr, sess)
	}

	started := sup.StartAll(target, token)
	if started == 0 {
		obs.Error("startup", obs.Fields{"err": "no service could bind its port"})
		os.Exit(1)
	}
	obs.Info("client.ready", obs.Fields{
		"target":     target.Addr(),
		"version":    target.Version,
		"redirector": cfg.Ports.Redirector,
		"tunnel":     cfg.Ports.Tunnel,
		"proxy":      cfg.Ports.Proxy,
		"qos":        cfg.Ports.Qos,
	})

	<-ctx.Done()
	obs.Info("client.shutdown", nil)
	sup.StopAll()
}

// connect resolves the target server and obtains a session token.
// Precedence: an explicit -token skips login; otherwise credentials
// log in (or create the account with -create). Without either, the
// services start tokenless: the HTTP proxy still works for anonymous
// endpoints, the tunnel stays closed until reconnect.
func connect(ctx context.Context, cfg Config) (session.Target, string, error) {
	client := api.NewClient()

	target, err := client.Lookup(ctx, cfg.Host)
	if err != nil {
		return session.Target{}, "", err
	}
	obs.Info("lookup.ok", obs.Fields{"target": target.Addr(), "scheme": target.Scheme, "version": target.Version})

	if cfg.Token != "" {
		return target, cfg.Token, nil
	}
	if cfg.Username == "" {
		obs.Info("auth.skipped", obs.Fields{"reason": "no credentials given"})
		return target, "", nil
	}

	var token string
	if cfg.Create {
		token, err = client.CreateAccount(ctx, target, cfg.Username, cfg.Password)
	} else {
		token, err = client.Login(ctx, target, cfg.Username, cfg.Password)
	}
	if err != nil {
		return session.Target{}, "", err
	}
	obs.Info("auth.ok", obs.Fields{"username": cfg.Username})
	return target, token, nil
}
