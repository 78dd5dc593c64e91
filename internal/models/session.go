// Package models defines the data structures for call and transfer sessions.
package models

import (
	"encoding/json"
	"time"
)

// CallStatus is the lifecycle state of a call session.
type CallStatus string

const (
	// CallActive means the caller and Agent A are talking in the original room.
	CallActive CallStatus = "active"
	// CallTransferring means a warm transfer is in flight for this call.
	CallTransferring CallStatus = "transferring"
	// CallCompleted means the transfer finished and the caller left the original room.
	CallCompleted CallStatus = "completed"
	// CallEnded means the call was terminated without a completed transfer.
	CallEnded CallStatus = "ended"
)

// TransferStatus is the lifecycle state of a transfer session.
type TransferStatus string

const (
	// TransferBriefing means Agent A is briefing Agent B in the transfer room.
	TransferBriefing TransferStatus = "briefing"
	// TransferCompleted means the caller has been handed a credential for the final room.
	TransferCompleted TransferStatus = "completed"
	// TransferExpired means the briefing sat idle past the configured TTL.
	TransferExpired TransferStatus = "expired"
)

// CallSession is the record of one caller+Agent-A conversation.
// CallerInfo is an opaque payload stored and returned verbatim.
type CallSession struct {
	CallID     string          `json:"call_id"`
	RoomName   string          `json:"room_name"`
	CallerName string          `json:"caller_name"`
	CallerInfo json.RawMessage `json:"caller_info,omitempty"`
	AgentA     string          `json:"agent_a"`
	Status     CallStatus      `json:"status"`
	CreatedAt  time.Time       `json:"created_at"`
	EndedAt    *time.Time      `json:"ended_at,omitempty"`
}

// TransferSession is the record of one warm-handoff attempt from Agent A to
// Agent B, including the AI-generated briefing material. Once completed it
// also carries the final room and the caller credential minted for it.
type TransferSession struct {
	TransferID   string         `json:"transfer_id"`
	OriginalRoom string         `json:"original_room"`
	TransferRoom string         `json:"transfer_room"`
	AgentA       string         `json:"agent_a"`
	AgentB       string         `json:"agent_b"`
	CallerName   string         `json:"caller_name"`
	Summary      string         `json:"summary"`
	AgentScript  string         `json:"agent_script"`
	Status       TransferStatus `json:"status"`
	CreatedAt    time.Time      `json:"created_at"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty"`

	// Set at completion. The final room is always the transfer room; no
	// third room is created.
	FinalRoom   string `json:"final_room,omitempty"`
	CallerToken string `json:"caller_token,omitempty"`
}

// TransferBrief is the projection of a briefing-state transfer returned to
// Agent B's discovery poll.
type TransferBrief struct {
	TransferID string         `json:"transfer_id"`
	AgentA     string         `json:"agent_a"`
	AgentB     string         `json:"agent_b"`
	CallerName string         `json:"caller_name"`
	Summary    string         `json:"summary"`
	Status     TransferStatus `json:"status"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Brief returns the discovery projection of a transfer session.
func (t *TransferSession) Brief() TransferBrief {
	return TransferBrief{
		TransferID: t.TransferID,
		AgentA:     t.AgentA,
		AgentB:     t.AgentB,
		CallerName: t.CallerName,
		Summary:    t.Summary,
		Status:     t.Status,
		CreatedAt:  t.CreatedAt,
	}
}
