package events

import "time"

// Kind classifies a war-room message for rendering on the client.
type Kind string

const (
	KindSpeech          Kind = "speech"
	KindCode            Kind = "code"
	KindHuman           Kind = "human"
	KindApprovalRequest Kind = "approval_request"
	KindRCA             Kind = "rca"
	KindControl         Kind = "control"
)

// Message is a single event on the war-room stream. Messages are immutable
// once published. Synthetic events (keepalive pings, the waiting-for-approval
// notice) set Type and leave the agent fields empty.
type Message struct {
	Type        string `json:"type,omitempty"`
	Agent       string `json:"agent,omitempty"`
	Text        string `json:"text,omitempty"`
	Timestamp   string `json:"timestamp,omitempty"`
	MessageType Kind   `json:"message_type,omitempty"`
}

// New builds a timestamped message spoken by agent.
func New(agent, text string, kind Kind) Message {
	return Message{
		Agent:       agent,
		Text:        text,
		Timestamp:   time.Now().Format("15:04:05"),
		MessageType: kind,
	}
}

// Ping is the keepalive event emitted on idle subscriber queues so
// intermediaries do not reclaim the connection.
func Ping() Message {
	return Message{Type: "ping"}
}

// Waiting is the control notice published while a run is suspended on a
// human decision.
func Waiting(text string) Message {
	return Message{
		Type:        "waiting_approval",
		Text:        text,
		Timestamp:   time.Now().Format("15:04:05"),
		MessageType: KindControl,
	}
}

// Publisher delivers messages to connected viewers.
type Publisher interface {
	Publish(m Message)
}
