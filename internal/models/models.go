package models

import (
	"time"
)

// User represents an authenticated user of the system.
type User struct {
	ID           string    `db:"id" json:"id"`
	DisplayName  string    `db:"display_name" json:"display_name"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Collection is a per-user knowledge base holding indexed documents.
type Collection struct {
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
	OwnerID     string    `db:"owner_id" json:"owner_id"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Document statuses.
const (
	DocumentStatusProcessing = "processing"
	DocumentStatusReady      = "ready"
	DocumentStatusFailed     = "failed"
)

// DocumentMetadata is attached to every document at upload time.
type DocumentMetadata struct {
	StorageURL   string `json:"storageUrl"`
	UserID       string `json:"userId"`
	OriginalName string `json:"originalName"`
}

// Document represents one ingested file inside a collection.
type Document struct {
	ID             string           `db:"id" json:"id"`
	CollectionName string           `db:"collection_name" json:"collection_name"`
	UserID         string           `db:"user_id" json:"user_id"`
	FileName       string           `db:"file_name" json:"file_name"`
	ContentType    string           `db:"content_type" json:"content_type"`
	Content        string           `db:"content" json:"-"`
	Metadata       DocumentMetadata `db:"metadata" json:"metadata"`
	Status         string           `db:"status" json:"status"` // processing | ready | failed
	Error          string           `db:"error" json:"error,omitempty"`
	CreatedAt      time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time        `db:"updated_at" json:"updated_at"`
}

// DocumentChunk represents one text chunk from a document.
type DocumentChunk struct {
	ID             string    `db:"id" json:"id"`
	DocumentID     string    `db:"document_id" json:"document_id"`
	CollectionName string    `db:"collection_name" json:"collection_name"`
	Text           string    `db:"text" json:"text"`
	Embedding      []float32 `db:"embedding" json:"-"` // pgvector column
	Position       int       `db:"position" json:"position"`
	TokenCount     int       `db:"token_count" json:"token_count"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// ScoredChunk is a chunk returned by a similarity search.
type ScoredChunk struct {
	DocumentChunk
	FileName string  `json:"file_name"`
	Score    float64 `json:"score"`
}

// Chat roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Tool invocation states.
const (
	ToolStateCall   = "call"
	ToolStateResult = "result"
)

// ToolInvocation records one tool call made by the assistant while answering.
type ToolInvocation struct {
	ID       string         `json:"id"`
	ToolName string         `json:"tool_name"`
	State    string         `json:"state"` // call | result
	Args     map[string]any `json:"args,omitempty"`
	Result   string         `json:"result,omitempty"`
}

// ChatMessage represents an individual chat message (user or assistant).
type ChatMessage struct {
	ID              string           `json:"id"`
	Role            string           `json:"role"`    // "user" or "assistant"
	Content         string           `json:"content"` // message text
	ToolInvocations []ToolInvocation `json:"tool_invocations,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
}
