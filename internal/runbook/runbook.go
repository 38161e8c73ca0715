package runbook

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Runbook is an operator playbook surfaced to war-room viewers.
type Runbook struct {
	ID          string   `yaml:"id" json:"id"`
	Name        string   `yaml:"name" json:"name"`
	Description string   `yaml:"description" json:"description"`
	Steps       []string `yaml:"steps" json:"steps"`
}

// Load reads runbook YAML files from dir, sorted by id. A missing or empty
// directory falls back to the built-in set.
func Load(dir string) ([]Runbook, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return Defaults(), nil
		}
		return nil, fmt.Errorf("read runbooks dir: %w", err)
	}

	var books []Runbook
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read runbook %s: %w", e.Name(), err)
		}
		var rb Runbook
		if err := yaml.Unmarshal(data, &rb); err != nil {
			return nil, fmt.Errorf("parse runbook %s: %w", e.Name(), err)
		}
		if rb.ID == "" {
			rb.ID = strings.TrimSuffix(e.Name(), ext)
		}
		books = append(books, rb)
	}
	if len(books) == 0 {
		return Defaults(), nil
	}
	sort.Slice(books, func(i, j int) bool { return books[i].ID < books[j].ID })
	return books, nil
}

// Defaults is the built-in runbook set used when no runbook files are
// installed.
func Defaults() []Runbook {
	return []Runbook{
		{
			ID:          "auth-failures",
			Name:        "Authentication Failures",
			Description: "Handle JWT and auth service issues",
			Steps: []string{
				"Check if the JWT secret was recently rotated",
				"Verify token expiration settings",
				"Check auth service health",
				"Review recent auth deployments",
			},
		},
		{
			ID:          "billing-errors",
			Name:        "Billing Service Errors",
			Description: "Handle billing and payment processing issues",
			Steps: []string{
				"Check payment gateway status",
				"Verify API credentials",
				"Check for missing required fields",
				"Review recent deployments",
			},
		},
		{
			ID:          "cache-issues",
			Name:        "Cache Issues",
			Description: "Handle cache stampedes and eviction storms",
			Steps: []string{
				"Check cache memory usage",
				"Review cache hit/miss rates",
				"Check for thundering herd patterns",
				"Verify cache TTL settings",
			},
		},
		{
			ID:          "database-issues",
			Name:        "Database Connection Issues",
			Description: "Handle database pool exhaustion and deadlocks",
			Steps: []string{
				"Check connection pool metrics",
				"Review slow query logs",
				"Check for deadlocks",
				"Consider pool size increase",
			},
		},
		{
			ID:          "k8s-issues",
			Name:        "Kubernetes Issues",
			Description: "Handle pod crashes, OOM, and scaling issues",
			Steps: []string{
				"Check pod status and restarts",
				"Review resource limits",
				"Check node health",
				"Review recent deployments",
			},
		},
	}
}
