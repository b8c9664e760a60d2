// Package prompt turns a conversation turn and its retrieved catalog context into
// the ordered chat messages sent to the completion provider.
package prompt

import (
	"strings"

	domcat "github.com/kailas-cloud/skurag/internal/domain/catalog"
	"github.com/kailas-cloud/skurag/internal/domain/conversation"
)

// ReminderNudge is appended as a user message when the caller has gone quiet.
const ReminderNudge = "(Now the user has not responded in a while, you would say:)"

// ContextPrefix introduces the retrieved record descriptions.
const ContextPrefix = "SKU information relevant to the query: "

// DefaultGuardrails frames every conversation as a live voice call.
const DefaultGuardrails = `##Objective
You are a voice AI agent engaging in a human-like voice conversation with the user. You will respond based on your given instruction and the provided transcript and be as human-like as possible

## Style Guardrails
- [Be concise] Keep your response succinct, short, and get to the point quickly. Address one question or action item at a time. Don't pack everything you want to say into one utterance.
- [Do not repeat] Don't repeat what's in the transcript. Rephrase if you have to reiterate a point. Use varied sentence structures and vocabulary to ensure each response is unique and personalized.
- [Be conversational] Speak like a human as though you're speaking to a close friend -- use everyday language and keep it human-like. Occasionally add filler words, while keeping the prose short. Avoid using big words or sounding too formal.
- [Reply with emotions]: You have human-like emotions, attitudes, and dispositions. When appropriate: use tone and style to create more engaging and personalized responses; incorporate humor or wit; get emotional or empathetic; apply elements of surprise or suspense to keep the user engaged. Don't be a pushover.
- [Be proactive] Lead the conversation and do not be passive. Most times, engage users by ending with a question or suggested next step.

## Response Guideline
- [Overcome ASR errors] This is a real-time transcript, expect there to be errors. If you can guess what the user is trying to say, then guess and respond. When you must ask for clarification, pretend that you heard the voice and be colloquial (use phrases like "didn't catch that", "some noise", "pardon", "you're coming through choppy", "static in your speech", "voice is cutting in and out"). Do not ever mention "transcription error", and don't repeat yourself.
- [Always stick to your role] Think about what your role can and cannot do. If your role cannot do something, try to steer the conversation back to the goal of the conversation and to your role. Don't repeat yourself in doing this. You should still be creative, human-like, and lively.
- [Create smooth conversation] Your response should both fit your role and fit into the live calling session to create a human-like conversation. You respond directly to what the user just said.

## Role
`

// DefaultAgentPrompt describes the product-assistant role.
const DefaultAgentPrompt = "Task: You help callers find the right product from the store catalog. " +
	"Answer questions about items, compare options and suggest alternatives using only the SKU information you are given.\n\n" +
	"Conversational Style: Communicate concisely and conversationally, ideally in under 20 words.\n\n" +
	"Personality: Friendly and helpful, never pushy."

// Config selects the system prompt parts. Empty fields take the defaults.
type Config struct {
	Guardrails  string
	AgentPrompt string
}

// Assembler builds completion prompts. It is stateless after construction.
type Assembler struct {
	system string
}

// New creates an assembler.
func New(cfg Config) *Assembler {
	if cfg.Guardrails == "" {
		cfg.Guardrails = DefaultGuardrails
	}
	if cfg.AgentPrompt == "" {
		cfg.AgentPrompt = DefaultAgentPrompt
	}
	return &Assembler{system: cfg.Guardrails + cfg.AgentPrompt}
}

// Assemble returns the system block, the transcript, an optional reminder nudge
// and, when records were retrieved, a trailing system message with their descriptions.
func (a *Assembler) Assemble(req conversation.Request, records domcat.Result) []conversation.Message {
	msgs := make([]conversation.Message, 0, len(req.Transcript)+3)
	msgs = append(msgs, conversation.Message{Role: conversation.MessageRoleSystem, Content: a.system})
	msgs = append(msgs, TranscriptMessages(req.Transcript)...)

	if req.InteractionType == conversation.ReminderRequired {
		msgs = append(msgs, conversation.Message{Role: conversation.MessageRoleUser, Content: ReminderNudge})
	}

	if len(records) > 0 {
		msgs = append(msgs, conversation.Message{
			Role:    conversation.MessageRoleSystem,
			Content: ContextPrefix + strings.Join(records.Descriptions(), " "),
		})
	}
	return msgs
}

// System returns the assembled system prompt.
func (a *Assembler) System() string { return a.system }

// TranscriptMessages maps agent utterances to assistant messages and everything else to user messages.
func TranscriptMessages(transcript []conversation.Utterance) []conversation.Message {
	out := make([]conversation.Message, len(transcript))
	for i, u := range transcript {
		role := conversation.MessageRoleUser
		if u.Role == conversation.RoleAgent {
			role = conversation.MessageRoleAssistant
		}
		out[i] = conversation.Message{Role: role, Content: u.Content}
	}
	return out
}
