package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"

	"github.com/warroomlabs/warroom/internal/applog"
	"github.com/warroomlabs/warroom/internal/config"
	"github.com/warroomlabs/warroom/internal/db"
	"github.com/warroomlabs/warroom/internal/gate"
	"github.com/warroomlabs/warroom/internal/hub"
	"github.com/warroomlabs/warroom/internal/incident"
	"github.com/warroomlabs/warroom/internal/notify"
	"github.com/warroomlabs/warroom/internal/triage"
	"github.com/warroomlabs/warroom/internal/webserver"
)

func openDB() (*db.DB, error) {
	dbPath := config.DBPath()
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, err
	}
	store, err := db.Open(dbPath)
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}

func readPassword(prompt string) ([]byte, error) {
	fmt.Print(prompt)
	pw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	return pw, err
}

// adduser/passwd manage the approver accounts used when the control
// endpoints are protected.
func runAccountCommand(cmd, username string) {
	pw, err := readPassword(fmt.Sprintf("Password for %s: ", username))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	hash, err := bcrypt.GenerateFromPassword(pw, bcrypt.DefaultCost)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	store, err := openDB()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	switch cmd {
	case "adduser":
		if _, err := store.CreateAccount(username, string(hash)); err != nil {
			fmt.Fprintf(os.Stderr, "error creating account: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Account created: %s\n", username)
	case "passwd":
		acc, err := store.GetAccountByUsername(username)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: user not found: %v\n", err)
			os.Exit(1)
		}
		store.UpdateAccountPassword(acc.ID, string(hash))
		store.DeleteRefreshTokensByAccount(acc.ID)
		fmt.Printf("Password updated: %s (all sessions invalidated)\n", username)
	}
}

func main() {
	if len(os.Args) >= 3 && (os.Args[1] == "adduser" || os.Args[1] == "passwd") {
		runAccountCommand(os.Args[1], os.Args[2])
		return
	}

	configPath := pflag.StringP("config", "c", config.DefaultPath(), "path to config file")
	port := pflag.IntP("port", "p", 0, "override webserver port")
	logLevel := pflag.String("log-level", "", "override log level (debug, info, warn, error)")
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading config: %v\n", err)
		os.Exit(1)
	}
	if *port != 0 {
		cfg.Webserver.Port = *port
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	logger, logCloser, err := applog.Init(applog.InitConfig{
		LogDir:   cfg.LogDir,
		LogLevel: cfg.LogLevel,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error initializing logging: %v\n", err)
		os.Exit(1)
	}
	defer logCloser.Close()

	store, err := openDB()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error opening history db: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	h := hub.New(hub.Options{
		QueueSize:         cfg.Triage.QueueSize,
		KeepaliveInterval: time.Duration(cfg.Triage.KeepaliveSec) * time.Second,
	})
	defer h.Close()

	g := gate.New(gate.Decision(cfg.Triage.DefaultOutcome))
	notifier := notify.New(notify.Config{
		Enabled: cfg.Notifications.Enabled,
		Webhook: cfg.Notifications.Webhook,
		NtfyURL: cfg.Notifications.NtfyURL,
	}, logger)

	mgr := triage.NewManager(h, g, incident.NewCatalog(0), store, notifier, triage.Config{
		ApprovalTimeout: time.Duration(cfg.Triage.ApprovalTimeoutSec) * time.Second,
		StepDelayCap:    time.Duration(cfg.Triage.StepDelayCapMs) * time.Millisecond,
		Approver:        cfg.Triage.Approver,
		DemoCodeDir:     cfg.DemoCodeDir,
	}, logger)

	srv := webserver.New(store, mgr, h, webserver.Config{
		Enabled: cfg.Webserver.Enabled,
		Port:    cfg.Webserver.Port,
		Host:    cfg.Webserver.Host,
		TLS: webserver.TLSConfig{
			Mode:     cfg.Webserver.TLS.Mode,
			CertFile: cfg.Webserver.TLS.CertFile,
			KeyFile:  cfg.Webserver.TLS.KeyFile,
			CacheDir: cfg.Webserver.TLS.CacheDir,
		},
		Auth: webserver.AuthConfig{
			JWTSecret:       cfg.Webserver.Auth.JWTSecret,
			AccessTokenTTL:  cfg.Webserver.Auth.AccessTokenTTL,
			RefreshTokenTTL: cfg.Webserver.Auth.RefreshTokenTTL,
		},
		RunbooksDir: cfg.RunbooksDir,
	}, logger)
	if err := srv.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "error starting webserver: %v\n", err)
		os.Exit(1)
	}

	logger.Info("warroom: ready",
		"port", cfg.Webserver.Port, "approver", cfg.Triage.Approver)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	logger.Info("warroom: shutting down")
}
