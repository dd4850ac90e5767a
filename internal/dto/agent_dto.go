package dto

import "time"

type ChatRequest struct {
	Query    string `json:"query" validate:"required,max=4000"`
	ThreadID string `json:"thread_id" validate:"omitempty,max=128"`
}

type EvidenceResponse struct {
	Source  string `json:"source"`
	Content string `json:"content"`
	Origin  string `json:"origin,omitempty"`
}

type ChatResponse struct {
	ThreadID   string             `json:"thread_id"`
	Answer     string             `json:"answer"`
	Evidence   []EvidenceResponse `json:"evidence"`
	Iterations int                `json:"iterations"`
}

type IngestRequest struct {
	URL string `json:"url" validate:"required,url"`
}

type IngestAcceptedResponse struct {
	JobID string `json:"job_id"`
	URL   string `json:"url,omitempty"`
}

// IngestJobMessage is the payload on the ingest topic.
type IngestJobMessage struct {
	JobID       string    `json:"job_id"`
	URL         string    `json:"url,omitempty"`
	Clear       bool      `json:"clear,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
}

// StreamMessage is one frame pushed to websocket subscribers of a thread.
type StreamMessage struct {
	Type     string      `json:"type"`
	ThreadID string      `json:"thread_id"`
	Data     interface{} `json:"data,omitempty"`
	Error    string      `json:"error,omitempty"`
}

type InboundWhatsAppMessage struct {
	From string
	Text string
}

// StateSnapshot is the trimmed session state sent after each node.
type StateSnapshot struct {
	Phase         string   `json:"phase"`
	Iterations    int      `json:"iterations"`
	Plan          []string `json:"plan,omitempty"`
	Reflection    string   `json:"reflection,omitempty"`
	IsSufficient  bool     `json:"is_sufficient"`
	EvidenceCount int      `json:"evidence_count"`
	Answer        string   `json:"answer,omitempty"`
}
