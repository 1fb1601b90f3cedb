package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/pkg/errors"
	"github.com/zond/hitres"
	"github.com/zond/hitres/config"
	"github.com/zond/hitres/server"
	"github.com/zond/hitres/storage"
)

func run(configDir, sshAddr string) error {
	if err := config.Load(configDir); err != nil {
		return err
	}
	if sshAddr != "" {
		config.Set("sshAddr", sshAddr)
	}
	settings := config.Current()
	closer, err := config.SetupLogging(settings)
	if err != nil {
		return err
	}
	defer closer.Close()

	rules, err := config.Rules()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := server.DefaultConfig()
	cfg.SSHAddr = settings.SSHAddr
	cfg.Dir = settings.DataDir
	cfg.Storage = storage.Options{
		CacheTTL:        settings.CacheTTL,
		AuditMaxSizeMB:  settings.AuditMaxSizeMB,
		AuditMaxBackups: settings.AuditMaxBackups,
	}
	cfg.Rules = rules
	srv, err := server.New(ctx, cfg)
	if err != nil {
		slog.Error("starting server", "error", err, "stack", hitres.StackTrace(err))
		return errors.Wrap(err, "starting server")
	}
	defer srv.Close()

	if err := srv.Start(ctx); err != nil {
		slog.Error("serving", "error", err, "stack", hitres.StackTrace(err))
		return errors.Wrap(err, "serving")
	}
	return nil
}

func main() {
	configDir := flag.String("config", filepath.Join(os.Getenv("HOME"), ".hitres"), "Where to look for hitres.json.")
	sshAddr := flag.String("ssh", "", "Where to listen to SSH connections, overrides sshAddr in the config.")

	flag.Parse()

	if err := run(*configDir, *sshAddr); err != nil {
		log.Fatal(err)
	}
}
