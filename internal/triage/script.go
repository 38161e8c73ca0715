package triage

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/warroomlabs/warroom/internal/db"
	"github.com/warroomlabs/warroom/internal/events"
	"github.com/warroomlabs/warroom/internal/gate"
	"github.com/warroomlabs/warroom/internal/incident"
)

const (
	chairAgent = "ChairAgent"
	mainAgent  = "MainAgent"
	sreAgent   = "SREAgent"
)

// Participant describes one member of the triage call.
type Participant struct {
	Name   string `json:"name"`
	Role   string `json:"role"`
	Avatar string `json:"avatar"`
}

// Participants lists the war-room roster with approver seated as the human
// engineering lead.
func Participants(approver string) []Participant {
	return []Participant{
		{Name: approver, Role: "Engineering Lead", Avatar: "👩‍💻"},
		{Name: chairAgent, Role: "Triage Chair (AI)", Avatar: "🤖"},
		{Name: mainAgent, Role: "Incident Coordinator (AI)", Avatar: "🎯"},
		{Name: sreAgent, Role: "SRE (AI)", Avatar: "🔧"},
		{Name: "BillingAgent", Role: "Billing Expert (AI)", Avatar: "💳"},
		{Name: "OrderingAgent", Role: "Orders Expert (AI)", Avatar: "📦"},
		{Name: "FrontendAgent", Role: "Frontend Expert (AI)", Avatar: "🖥️"},
	}
}

type runCtx struct {
	inc    *incident.Incident
	runID  string
	ticket string
	target string
	start  time.Time
}

// step is one named entry in the fixed triage script. wait is the scripted
// thinking pause before the step speaks; fn returns false to end the run
// early.
type step struct {
	name string
	wait time.Duration
	fn   func(rc *runCtx) bool
}

func (m *Manager) run(inc *incident.Incident, runID string, done chan struct{}) {
	defer m.finish(done)

	rc := &runCtx{
		inc:    inc,
		runID:  runID,
		ticket: fmt.Sprintf("INC-%d-%03d", time.Now().Year(), rand.Intn(900)+100),
		target: deployTarget(inc.Service),
		start:  time.Now(),
	}

	if m.store != nil {
		err := m.store.InsertRun(&db.Run{
			ID:        runID,
			Ticket:    rc.ticket,
			Service:   inc.Service,
			ErrorCode: inc.ErrorCode,
			Status:    db.RunActive,
			StartedAt: rc.start,
		})
		if err != nil {
			m.logger.Error("triage: record run", "run", runID, "error", err)
		}
	}
	if ws := m.Workspace(); ws != nil {
		if err := ws.WriteBuggy(inc); err != nil {
			m.logger.Error("triage: stage buggy code", "error", err)
		}
	}

	status := db.RunResolved
	for _, st := range m.script(rc) {
		m.pace(st.wait)
		if !st.fn(rc) {
			status = db.RunRejected
			break
		}
	}

	if m.store != nil {
		if err := m.store.FinishRun(runID, status, time.Now()); err != nil {
			m.logger.Error("triage: finish run", "run", runID, "error", err)
		}
	}
	m.logger.Info("triage: run finished", "run", runID, "status", string(status))
}

// pace sleeps for the scripted delay, never longer than the configured cap.
// Pacing is local to the orchestrator goroutine; the hub keeps accepting
// subscribers while the script thinks.
func (m *Manager) pace(d time.Duration) {
	if d > m.cfg.StepDelayCap {
		d = m.cfg.StepDelayCap
	}
	if d > 0 {
		time.Sleep(d)
	}
}

func (m *Manager) say(rc *runCtx, agent, text string, kind events.Kind) {
	msg := events.New(agent, text, kind)
	m.pub.Publish(msg)
	m.archive(rc, msg)
}

func (m *Manager) archive(rc *runCtx, msg events.Message) {
	if m.store == nil {
		return
	}
	agent := msg.Agent
	if agent == "" {
		agent = msg.Type
	}
	if err := m.store.InsertRunMessage(rc.runID, agent, msg.Text, string(msg.MessageType)); err != nil {
		m.logger.Error("triage: archive message", "run", rc.runID, "error", err)
	}
}

func (m *Manager) script(rc *runCtx) []step {
	inc := rc.inc
	s := []step{
		{name: "open", wait: 3 * time.Second, fn: func(rc *runCtx) bool {
			m.say(rc, chairAgent, fmt.Sprintf(
				"🚨 **Opening triage for %s**\n**Severity:** SEV-2\n**Service:** %s\n**Error:** `%s` - %s\n**Symptoms:** %s",
				rc.ticket, strings.ToUpper(inc.Service), inc.ErrorCode, inc.ErrorMessage,
				strings.Join(firstN(inc.Symptoms, 2), ", ")), events.KindSpeech)
			return true
		}},
		{name: "request-assessment", wait: 2 * time.Second, fn: func(rc *runCtx) bool {
			m.say(rc, chairAgent, "📋 MainAgent, please provide your initial assessment.", events.KindSpeech)
			return true
		}},
		{name: "assessment", wait: 4 * time.Second, fn: func(rc *runCtx) bool {
			m.say(rc, mainAgent, fmt.Sprintf(
				"**Initial Assessment:**\n- Error pattern: `%s`\n- Affected service: **%s**\n- Responsible team: **%s**\n- Hypothesis: %s\n\nRecommend routing to **%s** for a deep dive.",
				inc.ErrorCode, strings.ToUpper(inc.Service), inc.AgentOwner, inc.RootCause, inc.AgentOwner),
				events.KindSpeech)
			return true
		}},
		{name: "request-deploys", wait: 2 * time.Second, fn: func(rc *runCtx) bool {
			m.say(rc, chairAgent, "🔍 SREAgent, check recent deployments and similar incidents.", events.KindSpeech)
			return true
		}},
		{name: "deploys", wait: 3 * time.Second, fn: func(rc *runCtx) bool {
			m.say(rc, sreAgent, fmt.Sprintf(
				"**Recent Deployments:**\n- `backend/%s` v1.%d.%d (%s) - Added validation\n- `frontend` v2.8.0 (earlier) - Checkout refactor\n\n⚠️ Backend deployed AFTER frontend - possible contract mismatch",
				inc.Service, rand.Intn(9)+1, rand.Intn(10), time.Now().Format("15:04")),
				events.KindSpeech)
			return true
		}},
		{name: "past-incidents", wait: 2 * time.Second, fn: func(rc *runCtx) bool {
			year := time.Now().Year()
			m.say(rc, sreAgent, fmt.Sprintf(
				"**Similar Past Incidents:**\n- INC-%d-015: API contract mismatch after deploy\n- INC-%d-008: Frontend/backend version skew",
				year, year), events.KindSpeech)
			return true
		}},
		{name: "route", wait: 2 * time.Second, fn: func(rc *runCtx) bool {
			m.say(rc, chairAgent, fmt.Sprintf("📌 Routing to **%s** for detailed analysis.", inc.AgentOwner), events.KindSpeech)
			return true
		}},
		{name: "domain-analysis", wait: 4 * time.Second, fn: func(rc *runCtx) bool {
			loc := "infrastructure-level, no application file involved"
			if inc.FileName != "" {
				loc = fmt.Sprintf("File: `%s`", inc.FileName)
			}
			m.say(rc, inc.AgentOwner, fmt.Sprintf(
				"**%s Analysis:**\n- Found errors matching `%s`\n- %s\n- Root cause: %s\n\n**Recommendation:** %s",
				strings.ToUpper(inc.Service), inc.ErrorCode, loc, inc.RootCause, recommendation(inc)),
				events.KindSpeech)
			return true
		}},
		{name: "domain-analysis-confirm", wait: 3 * time.Second, fn: func(rc *runCtx) bool {
			other := otherAgent(inc.AgentOwner)
			m.say(rc, other, fmt.Sprintf(
				"**%s Status:**\n- No issues detected in our domain\n- Confirming %s has the lead",
				strings.TrimSuffix(other, "Agent"), inc.AgentOwner), events.KindSpeech)
			return true
		}},
		{name: "request-fix", wait: 2 * time.Second, fn: func(rc *runCtx) bool {
			m.say(rc, chairAgent, fmt.Sprintf("🔧 %s, please inspect the issue and propose a fix.", inc.AgentOwner), events.KindSpeech)
			return true
		}},
		{name: "inspect", wait: 4 * time.Second, fn: func(rc *runCtx) bool {
			if !inc.HasFix() {
				m.say(rc, inc.AgentOwner, fmt.Sprintf(
					"**Inspection:**\nNo code change required. Mitigation is an infrastructure adjustment:\n%s\n\nApplying via the standard change process.",
					inc.RootCause), events.KindSpeech)
				return true
			}
			m.say(rc, inc.AgentOwner, fmt.Sprintf(
				"**Code Inspection - `%s`:**\n❌ **Bug Found:** %s\n\n**Error:** `%s` - %s\n\nPreparing patch...",
				inc.FileName, inc.FixDescription, inc.ErrorCode, inc.ErrorMessage),
				events.KindSpeech)
			return true
		}},
	}

	if inc.HasFix() {
		s = append(s,
			step{name: "show-diff", wait: 3 * time.Second, fn: func(rc *runCtx) bool {
				m.say(rc, inc.AgentOwner, fmt.Sprintf(
					"**Proposed Fix:**\n```diff\n%s\n```", inc.FixDescription), events.KindCode)
				return true
			}},
			step{name: "apply", wait: 2 * time.Second, fn: func(rc *runCtx) bool {
				if ws := m.Workspace(); ws != nil {
					if err := ws.WriteFixed(inc); err != nil {
						m.logger.Error("triage: stage fixed code", "error", err)
					}
				}
				m.say(rc, inc.AgentOwner, fmt.Sprintf("✅ Fix applied locally to `%s`", inc.FileName), events.KindSpeech)
				return true
			}},
			step{name: "build", wait: 3 * time.Second, fn: func(rc *runCtx) bool {
				m.say(rc, inc.AgentOwner, fmt.Sprintf(
					"**%s Build:**\n```\n▶ Building project...\n✓ Compiled successfully in 8.2s\n▶ Running tests... passed\n✓ Build ready for deployment\n```",
					rc.target), events.KindCode)
				return true
			}},
			step{name: "approval-gate", wait: time.Second, fn: m.approvalStep},
			step{name: "deploy", wait: 1500 * time.Millisecond, fn: func(rc *runCtx) bool {
				m.say(rc, inc.AgentOwner, fmt.Sprintf(
					"**%s Deployment:**\n```\n▶ Human approval received ✓\n▶ Deploying to production...\n✓ https://%s.prod.example.com\n✓ Deployment to %s complete!\n```",
					rc.target, inc.Service, inc.Service), events.KindCode)
				return true
			}},
			step{name: "confirm", wait: 2 * time.Second, fn: func(rc *runCtx) bool {
				m.say(rc, chairAgent, "✅ Fix deployed. Monitoring error rates...", events.KindSpeech)
				return true
			}},
		)
	}

	s = append(s,
		step{name: "close", wait: 3 * time.Second, fn: func(rc *runCtx) bool {
			m.say(rc, chairAgent,
				"📝 **Closing triage call.**\nError rate normalized. Fix confirmed working.\nRCA to follow. Thank you all!",
				events.KindSpeech)
			return true
		}},
		step{name: "report", wait: 2 * time.Second, fn: func(rc *runCtx) bool {
			m.say(rc, "System", m.rcaReport(rc), events.KindRCA)
			return true
		}},
	)
	return s
}

// approvalStep suspends the run on the gate. Timeout applies the gate's
// default decision; an explicit reject ends the run early.
func (m *Manager) approvalStep(rc *runCtx) bool {
	inc := rc.inc
	if err := m.gate.Open(m.cfg.ApprovalTimeout); err != nil {
		// Only possible when a previous gate is still pending, which a
		// single-run manager never produces.
		m.logger.Error("triage: approval gate misuse", "error", err)
		return true
	}

	m.say(rc, chairAgent, fmt.Sprintf(
		"⚠️ **HUMAN APPROVAL REQUIRED**\n\n@%s - Please review the proposed fix and approve deployment to production.\n\n**Service:** %s\n**File:** `%s`\n**Change:** %s",
		m.cfg.Approver, strings.ToUpper(inc.Service), inc.FileName, inc.FixDescription),
		events.KindApprovalRequest)

	waiting := events.Waiting(fmt.Sprintf("Waiting for %s's approval... (auto-resolves in %s)",
		m.cfg.Approver, m.cfg.ApprovalTimeout.Round(time.Second)))
	m.pub.Publish(waiting)
	m.archive(rc, waiting)
	m.notifier.ApprovalRequested(inc, m.cfg.Approver, m.cfg.ApprovalTimeout)

	out := m.gate.Wait()
	switch {
	case out.Decision == gate.Rejected && out.TimedOut:
		m.say(rc, chairAgent,
			"❌ **Approval window expired with no decision.**\nDeployment aborted per policy. Manual intervention required.",
			events.KindControl)
		return false
	case out.Decision == gate.Rejected:
		m.say(rc, chairAgent, fmt.Sprintf(
			"❌ **Deployment rejected by %s.**\nTriage paused. Manual intervention required.",
			actorOr(out.By, m.cfg.Approver)), events.KindControl)
		return false
	case out.TimedOut:
		m.say(rc, m.cfg.Approver,
			"✅ **Auto-approved** - Fix looks good, proceeding with deployment.", events.KindHuman)
	default:
		m.pace(500 * time.Millisecond)
		m.say(rc, actorOr(out.By, m.cfg.Approver),
			"✅ **Approved!** Looks good, deploy to production.", events.KindHuman)
	}
	return true
}

var impactByService = map[string]string{
	"billing":    "Payment processing failures. ~50 failed transactions.",
	"ordering":   "Order creation failures. ~30 duplicate/lost orders.",
	"database":   "Database connection failures affecting all services.",
	"auth":       "Authentication failures. Users logged out unexpectedly.",
	"cache":      "Cache failures causing database overload.",
	"kubernetes": "Pod restarts causing intermittent service unavailability.",
	"queue":      "Message processing failures. Events lost.",
	"gateway":    "API gateway failures blocking requests.",
	"frontend":   "UI failures preventing user interactions.",
}

func (m *Manager) rcaReport(rc *runCtx) string {
	inc := rc.inc
	impact, ok := impactByService[inc.Service]
	if !ok {
		impact = "Service degradation affecting users."
	}

	fix := fmt.Sprintf("**File:** `%s`\n**Change:** %s", inc.FileName, inc.FixDescription)
	if !inc.HasFix() {
		fix = "Infrastructure adjustment, no code change."
	}

	resolved := humanize.RelTime(rc.start, time.Now(), "after the alert fired", "")
	return fmt.Sprintf(`# 📋 Root Cause Analysis

## What Happened
**%s** service returned `+"`%s`"+` errors.

## Error Details
%s

## Why It Happened
%s

## Customer Impact
%s

## Fix Applied
%s

## Preventive Actions
- Add monitoring for `+"`%s`"+` errors
- Add integration tests for the %s service
- Review deployment procedures

## Timeline
- %s - Alert triggered
- Root cause identified by %s
- Incident resolved %s`,
		strings.ToUpper(inc.Service), inc.ErrorCode,
		inc.ErrorMessage,
		inc.RootCause,
		impact,
		fix,
		inc.ErrorCode, inc.Service,
		rc.start.Format("15:04"), inc.AgentOwner, resolved)
}

func recommendation(inc *incident.Incident) string {
	if inc.HasFix() {
		return "Code fix required."
	}
	return "Infrastructure change required."
}

func deployTarget(service string) string {
	switch service {
	case "database", "kubernetes", "cache", "gateway", "auth", "queue":
		return "Kubernetes"
	default:
		return "Vercel"
	}
}

func otherAgent(owner string) string {
	candidates := []string{"BillingAgent", "OrderingAgent", sreAgent}
	var pool []string
	for _, c := range candidates {
		if c != owner {
			pool = append(pool, c)
		}
	}
	return pool[rand.Intn(len(pool))]
}

func actorOr(actor, fallback string) string {
	if actor != "" {
		return actor
	}
	return fallback
}

func firstN(s []string, n int) []string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
