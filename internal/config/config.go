package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
)

type TriageConfig struct {
	ApprovalTimeoutSec int    `json:"approvalTimeoutSec"`
	DefaultOutcome     string `json:"defaultOutcome"` // "granted" or "rejected"
	StepDelayCapMs     int    `json:"stepDelayCapMs"`
	KeepaliveSec       int    `json:"keepaliveSec"`
	QueueSize          int    `json:"queueSize"`
	Approver           string `json:"approver"`
}

type TLSConfig struct {
	Mode     string `json:"mode"`     // "self-signed", "manual", or "" (disabled)
	CertFile string `json:"certFile"` // required for manual
	KeyFile  string `json:"keyFile"`  // required for manual
	CacheDir string `json:"cacheDir"` // for self-signed; defaults to ~/.warroom/certs
}

type AuthConfig struct {
	JWTSecret       string `json:"jwtSecret"`
	AccessTokenTTL  string `json:"accessTokenTTL"`
	RefreshTokenTTL string `json:"refreshTokenTTL"`
}

type WebserverConfig struct {
	Enabled bool       `json:"enabled"`
	Port    int        `json:"port"`
	Host    string     `json:"host"`
	TLS     TLSConfig  `json:"tls"`
	Auth    AuthConfig `json:"auth"`
}

type NotificationsConfig struct {
	Enabled bool   `json:"enabled"`
	Webhook string `json:"webhook"`
	NtfyURL string `json:"ntfy"`
}

type Config struct {
	LogDir        string              `json:"logDir"`
	LogLevel      string              `json:"logLevel"`
	RunbooksDir   string              `json:"runbooksDir"`
	DemoCodeDir   string              `json:"demoCodeDir"`
	Triage        TriageConfig        `json:"triage"`
	Webserver     WebserverConfig     `json:"webserver"`
	Notifications NotificationsConfig `json:"notifications"`
}

func Defaults() Config {
	home, _ := os.UserHomeDir()
	base := filepath.Join(home, ".warroom")
	return Config{
		LogDir:      filepath.Join(base, "logs"),
		LogLevel:    "info",
		RunbooksDir: filepath.Join(base, "runbooks"),
		DemoCodeDir: filepath.Join(base, "demo_code"),
		Triage: TriageConfig{
			ApprovalTimeoutSec: 15,
			DefaultOutcome:     "granted",
			StepDelayCapMs:     1500,
			KeepaliveSec:       30,
			QueueSize:          64,
			Approver:           "Dana",
		},
		Webserver: WebserverConfig{
			Enabled: true,
			Port:    5050,
			Host:    "0.0.0.0",
			TLS: TLSConfig{
				CacheDir: filepath.Join(base, "certs"),
			},
		},
	}
}

func DefaultPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".warroom", "config.json")
}

func DBPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".warroom", "history.db")
}

func Load(path string) (Config, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
