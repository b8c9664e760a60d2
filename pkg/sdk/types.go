package skurag

import (
	"time"

	domcat "github.com/kailas-cloud/skurag/internal/domain/catalog"
	"github.com/kailas-cloud/skurag/internal/domain/conversation"
)

// Transcript roles.
const (
	RoleAgent = conversation.RoleAgent
	RoleUser  = conversation.RoleUser
)

// Hit is one ranked catalog record.
type Hit struct {
	Position    int     // index of the record in the catalog
	Distance    float32 // smaller is closer
	Description string
	Fields      map[string]any // full flat record, description included
}

// Utterance is one transcript entry of a live call.
type Utterance struct {
	Role    string
	Content string
}

// Message is a role-tagged chat message ready for a completion API.
type Message struct {
	Role    string
	Content string
}

// ReloadStats summarizes a completed index build.
type ReloadStats struct {
	Records    int
	Dimensions int
	Metric     string
	Duration   time.Duration
}

func toHits(res domcat.Result) []Hit {
	hits := make([]Hit, len(res))
	for i, h := range res {
		hits[i] = Hit{
			Position:    h.Position,
			Distance:    h.Distance,
			Description: h.Record.Description(),
			Fields:      h.Record.Fields(),
		}
	}
	return hits
}

func toTranscript(utterances []Utterance) []conversation.Utterance {
	out := make([]conversation.Utterance, len(utterances))
	for i, u := range utterances {
		out[i] = conversation.Utterance{Role: u.Role, Content: u.Content}
	}
	return out
}

func toMessages(msgs []conversation.Message) []Message {
	out := make([]Message, len(msgs))
	for i, m := range msgs {
		out[i] = Message{Role: m.Role, Content: m.Content}
	}
	return out
}
