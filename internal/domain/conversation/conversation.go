// Package conversation holds the turn-level types exchanged with the voice agent
// and the chat completion contract.
package conversation

import "context"

// Speaker roles as they appear in the live call transcript.
const (
	RoleAgent = "agent"
	RoleUser  = "user"
)

// Chat message roles understood by completion providers.
const (
	MessageRoleSystem    = "system"
	MessageRoleUser      = "user"
	MessageRoleAssistant = "assistant"
)

// InteractionType tells the agent why a response is requested.
type InteractionType string

const (
	// ResponseRequired asks for a reply to the latest utterance.
	ResponseRequired InteractionType = "response_required"
	// ReminderRequired asks for a nudge after the user has been silent.
	ReminderRequired InteractionType = "reminder_required"
)

// Valid reports whether t is a known interaction type.
func (t InteractionType) Valid() bool {
	return t == ResponseRequired || t == ReminderRequired
}

// Utterance is one transcript entry.
type Utterance struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request asks the agent to draft a response for a turn.
type Request struct {
	ResponseID      int             `json:"response_id"`
	InteractionType InteractionType `json:"interaction_type"`
	Transcript      []Utterance     `json:"transcript"`
}

// LatestUserUtterance returns the content of the most recent user utterance, or "".
func (r Request) LatestUserUtterance() string {
	for i := len(r.Transcript) - 1; i >= 0; i-- {
		if r.Transcript[i].Role == RoleUser {
			return r.Transcript[i].Content
		}
	}
	return ""
}

// Fragment is one piece of a streamed agent response.
type Fragment struct {
	ResponseID      int    `json:"response_id"`
	Content         string `json:"content"`
	ContentComplete bool   `json:"content_complete"`
	EndCall         bool   `json:"end_call"`
}

// Message is a role-tagged chat message sent to the completion provider.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Chunk is one text delta from a completion stream.
type Chunk struct {
	Content string
	Final   bool
}

// Stream is a lazy, finite sequence of completion chunks.
// Recv returns a chunk with Final set exactly once, after which it returns io.EOF.
type Stream interface {
	Recv() (Chunk, error)
	Close() error
}

// Completer opens a streaming chat completion for an ordered list of messages.
type Completer interface {
	Stream(ctx context.Context, model string, messages []Message) (Stream, error)
}
