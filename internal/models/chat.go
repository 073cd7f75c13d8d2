package models

import "encoding/json"

// Chat roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is one stored message of an AI dialog.
type ChatMessage struct {
	MessageID   ID     `json:"messageId,omitempty"`
	Role        string `json:"role"`
	Content     string `json:"content"`
	SessionID   string `json:"sessionId,omitempty"`
	CreatedTime string `json:"createdTime,omitempty"`
}

// DialogPage is the first screen of an AI dialog: preset prompts plus
// the most recent history.
type DialogPage struct {
	DialogID       ID              `json:"dialogId"`
	Tag            string          `json:"tag"`
	TemplateID     ID              `json:"templateId"`
	Title          string          `json:"title"`
	Description    string          `json:"description,omitempty"`
	Doctor         json.RawMessage `json:"doctor,omitempty"`
	PresetMessages []ChatMessage   `json:"presetMessages,omitempty"`
	History        []ChatMessage   `json:"history"`
	HistoryHasMore bool            `json:"historyHasMore"`
	NextCursor     ID              `json:"nextCursor,omitempty"`
}

// HistoryPage is one page of older dialog messages.
type HistoryPage struct {
	Items      []ChatMessage `json:"items"`
	HasMore    bool          `json:"hasMore"`
	NextCursor ID            `json:"nextCursor,omitempty"`
}

// ChatTurn is one prior exchange sent as context with a question.
type ChatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the body of POST /api/consult/ai/messages.
type ChatRequest struct {
	Question    string     `json:"question"`
	History     []ChatTurn `json:"history"`
	TemplateID  string     `json:"templateId,omitempty"`
	Tag         string     `json:"tag,omitempty"`
	Temperature float64    `json:"temperature"`
}

// ChatReply is the assistant's answer.
type ChatReply struct {
	Reply     string `json:"reply"`
	SessionID string `json:"sessionId"`
}
