package incident

import (
	"math/rand"
	"sync"
)

// Incident describes one scripted production failure. It is immutable for
// the duration of a run.
type Incident struct {
	Service        string   `json:"service"`
	ErrorCode      string   `json:"error_code"`
	ErrorMessage   string   `json:"message"`
	Symptoms       []string `json:"symptoms"`
	RootCause      string   `json:"root_cause"`
	FixDescription string   `json:"fix_description"`
	BuggyCode      string   `json:"-"`
	FixedCode      string   `json:"-"`
	FileName       string   `json:"file"`
	AgentOwner     string   `json:"agent_owner"`
}

// HasFix reports whether the incident carries a code fix. Incidents without
// one (infra-only mitigations) skip the diff/approve/deploy part of the
// script.
func (i *Incident) HasFix() bool {
	return i.FixedCode != "" && i.FileName != ""
}

// Provider supplies the incident for a new run.
type Provider interface {
	Incident() (*Incident, error)
}

// Catalog is a Provider that picks randomly from the built-in incident set.
type Catalog struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewCatalog returns a catalog seeded from seed. A zero seed picks a
// different incident each process start.
func NewCatalog(seed int64) *Catalog {
	src := rand.NewSource(seed)
	if seed == 0 {
		src = rand.NewSource(rand.Int63())
	}
	return &Catalog{rnd: rand.New(src)}
}

// Incident returns a copy of a random catalog entry.
func (c *Catalog) Incident() (*Incident, error) {
	c.mu.Lock()
	entry := catalog[c.rnd.Intn(len(catalog))]
	c.mu.Unlock()
	cp := entry
	cp.Symptoms = append([]string(nil), entry.Symptoms...)
	return &cp, nil
}
