package incident_test

import (
	"strings"
	"testing"

	"github.com/warroomlabs/warroom/internal/incident"
)

func TestCatalogReturnsCompleteIncidents(t *testing.T) {
	cat := incident.NewCatalog(1)
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		inc, err := cat.Incident()
		if err != nil {
			t.Fatal(err)
		}
		if inc.Service == "" || inc.ErrorCode == "" || inc.RootCause == "" || inc.AgentOwner == "" {
			t.Fatalf("incomplete incident: %+v", inc)
		}
		seen[inc.ErrorCode] = true
	}
	if len(seen) < 2 {
		t.Errorf("50 draws hit only %d distinct incidents", len(seen))
	}
}

func TestCatalogIsDeterministicWithSeed(t *testing.T) {
	a, b := incident.NewCatalog(42), incident.NewCatalog(42)
	for i := 0; i < 10; i++ {
		x, _ := a.Incident()
		y, _ := b.Incident()
		if x.ErrorCode != y.ErrorCode {
			t.Fatalf("draw %d diverged: %s vs %s", i, x.ErrorCode, y.ErrorCode)
		}
	}
}

func TestCatalogReturnsCopies(t *testing.T) {
	cat := incident.NewCatalog(7)
	inc, err := cat.Incident()
	if err != nil {
		t.Fatal(err)
	}
	if len(inc.Symptoms) == 0 {
		t.Fatal("incident without symptoms")
	}
	orig := inc.Symptoms[0]
	inc.Symptoms[0] = "mutated"
	inc.Service = "mutated"

	for i := 0; i < 50; i++ {
		again, _ := cat.Incident()
		if again.ErrorCode != inc.ErrorCode {
			continue
		}
		if again.Symptoms[0] != orig || again.Service == "mutated" {
			t.Fatal("caller mutation leaked into the catalog")
		}
		return
	}
}

func TestHasFix(t *testing.T) {
	with := incident.Incident{FixedCode: "x", FileName: "a.go"}
	if !with.HasFix() {
		t.Error("incident with code and file should have a fix")
	}
	for _, inc := range []incident.Incident{
		{FixedCode: "x"},
		{FileName: "a.go"},
		{},
	} {
		if inc.HasFix() {
			t.Errorf("incomplete payload reported a fix: %+v", inc)
		}
	}
}

func TestWorkspaceRoundTrip(t *testing.T) {
	ws := incident.Workspace{Dir: t.TempDir()}
	inc := &incident.Incident{
		FileName:  "billing/validate.go",
		BuggyCode: "package billing // broken\n",
		FixedCode: "package billing // fixed\n",
	}

	if err := ws.WriteBuggy(inc); err != nil {
		t.Fatal(err)
	}
	got, err := ws.Read(inc)
	if err != nil {
		t.Fatal(err)
	}
	if got != inc.BuggyCode {
		t.Errorf("staged %q, want buggy code", got)
	}

	if err := ws.WriteFixed(inc); err != nil {
		t.Fatal(err)
	}
	got, _ = ws.Read(inc)
	if got != inc.FixedCode {
		t.Errorf("staged %q, want fixed code", got)
	}
}

func TestWorkspaceWriteWithoutPayloadIsNoop(t *testing.T) {
	ws := incident.Workspace{Dir: t.TempDir()}
	if err := ws.WriteBuggy(&incident.Incident{FileName: "a.go"}); err != nil {
		t.Errorf("empty content: %v", err)
	}
	if err := ws.WriteFixed(&incident.Incident{FixedCode: "x"}); err != nil {
		t.Errorf("empty name: %v", err)
	}
}

func TestWorkspaceRejectsEscapingPaths(t *testing.T) {
	ws := incident.Workspace{Dir: t.TempDir()}
	for _, name := range []string{"../outside.go", "/etc/passwd", ".", "a/../../b.go"} {
		inc := &incident.Incident{FileName: name, BuggyCode: "x"}
		if err := ws.WriteBuggy(inc); err == nil {
			t.Errorf("name %q accepted", name)
		} else if !strings.Contains(err.Error(), "invalid incident file name") {
			t.Errorf("name %q: unexpected error %v", name, err)
		}
	}
}
