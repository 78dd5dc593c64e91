// Package api exposes the warm-transfer orchestration operations over HTTP:
// call lifecycle, transfer lifecycle, and the status-polling endpoints the
// three client roles (caller, Agent A, Agent B) converge on.
package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"warm-transfer-service/internal/events"
	"warm-transfer-service/internal/models"
	"warm-transfer-service/internal/observability/metrics"
	"warm-transfer-service/internal/registry"
	"warm-transfer-service/internal/service/summary"
	"warm-transfer-service/internal/service/token"
)

// Version is reported by the service banner.
const Version = "1.0.0"

// createRetries bounds how often call creation re-rolls identifiers on an id
// collision before giving up with a conflict.
const createRetries = 3

// Handler serves the orchestration API. All collaborators are injected at
// process start; the handler itself holds no state.
type Handler struct {
	Store     *registry.Store
	Issuer    *token.Issuer
	Generator summary.Generator
	Provider  string
	Publisher *events.Publisher
	Metrics   *metrics.Metrics
	Logger    zerolog.Logger

	LLMConfigured bool
}

// Root serves the service banner.
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message":   "Warm Transfer Orchestration API",
		"version":   Version,
		"status":    "running",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// Health reports liveness and which external collaborators are configured.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":             "healthy",
		"livekit_configured": h.Issuer.Configured(),
		"llm_configured":     h.LLMConfigured,
		"kafka_enabled":      h.Publisher.Enabled(),
	})
}

// Token mints a credential for an ad-hoc join of any identity into any room.
func (h *Handler) Token(w http.ResponseWriter, r *http.Request) {
	identity := r.URL.Query().Get("identity")
	room := r.URL.Query().Get("room")
	if identity == "" || room == "" {
		writeBadRequest(w, "identity and room query parameters are required")
		return
	}

	cred, err := h.Issuer.Mint(identity, room)
	h.Metrics.RecordTokenMint(err)
	if err != nil {
		h.writeRegistryError(w, err)
		return
	}

	h.Logger.Info().Str("identity", identity).Str("room", room).Msg("Minted ad-hoc join credential")
	writeJSON(w, http.StatusOK, cred)
}

type startCallRequest struct {
	CallerName string          `json:"caller_name"`
	CallerInfo json.RawMessage `json:"caller_info,omitempty"`
	AgentA     string          `json:"agent_a,omitempty"`
}

type startCallResponse struct {
	CallID      string `json:"call_id"`
	RoomName    string `json:"room_name"`
	CallerToken string `json:"caller_token"`
	AgentAToken string `json:"agent_a_token"`
	LiveKitURL  string `json:"livekit_url"`
	Status      string `json:"status"`
}

// StartCall creates a call session and returns credentials for the caller
// and Agent A. Credentials are minted before any registry mutation so a mint
// failure leaves nothing half-committed.
func (h *Handler) StartCall(w http.ResponseWriter, r *http.Request) {
	var req startCallRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if req.CallerName == "" {
		req.CallerName = "caller_" + uuid.NewString()[:8]
	}
	if req.AgentA == "" {
		req.AgentA = "agent_a"
	}

	var (
		call models.CallSession
		err  error
	)
	for attempt := 0; attempt < createRetries; attempt++ {
		callID, roomName := registry.NewCallIdentifiers()

		var callerCred, agentCred token.AccessCredential
		callerCred, err = h.Issuer.Mint(req.CallerName, roomName)
		h.Metrics.RecordTokenMint(err)
		if err != nil {
			h.writeRegistryError(w, err)
			return
		}
		agentCred, err = h.Issuer.Mint(req.AgentA, roomName)
		h.Metrics.RecordTokenMint(err)
		if err != nil {
			h.writeRegistryError(w, err)
			return
		}

		call, err = h.Store.CreateCall(callID, roomName, req.CallerName, req.CallerInfo, req.AgentA)
		if registry.KindOf(err) == registry.KindConflict {
			continue // identifier collision, re-roll
		}
		if err != nil {
			h.writeRegistryError(w, err)
			return
		}

		h.Metrics.RecordCallStarted()
		_ = h.Publisher.PublishCall(r.Context(), events.CallStarted, call.CallID, call)
		h.Logger.Info().
			Str("callId", call.CallID).
			Str("roomName", call.RoomName).
			Str("callerName", call.CallerName).
			Msg("Started call")

		writeJSON(w, http.StatusOK, startCallResponse{
			CallID:      call.CallID,
			RoomName:    call.RoomName,
			CallerToken: callerCred.Token,
			AgentAToken: agentCred.Token,
			LiveKitURL:  callerCred.URL,
			Status:      "initiated",
		})
		return
	}
	h.writeRegistryError(w, err)
}

type endCallRequest struct {
	CallID string `json:"call_id"`
}

// EndCall marks a call ended.
func (h *Handler) EndCall(w http.ResponseWriter, r *http.Request) {
	var req endCallRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if req.CallID == "" {
		writeBadRequest(w, "call_id is required")
		return
	}

	call, err := h.Store.EndCall(req.CallID)
	if err != nil {
		h.writeRegistryError(w, err)
		return
	}

	if call.EndedAt != nil {
		h.Metrics.RecordCallClosed(true, call.EndedAt.Sub(call.CreatedAt).Seconds())
	}
	_ = h.Publisher.PublishCall(r.Context(), events.CallEnded, call.CallID, call)
	h.Logger.Info().Str("callId", call.CallID).Msg("Ended call")

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "call_ended",
		"call_id": call.CallID,
	})
}

// LatestCall returns the most recent active call for Agent A discovery.
func (h *Handler) LatestCall(w http.ResponseWriter, r *http.Request) {
	call, err := h.Store.LatestActiveCall()
	if err != nil {
		h.writeRegistryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"call_id":     call.CallID,
		"room_name":   call.RoomName,
		"caller_name": call.CallerName,
		"status":      call.Status,
		"created_at":  call.CreatedAt,
	})
}

// ActiveCalls lists every call not yet in a terminal state.
func (h *Handler) ActiveCalls(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"active_calls": h.Store.ActiveCalls(),
	})
}

type summarizeRequest struct {
	Transcript string          `json:"transcript"`
	CallID     string          `json:"call_id,omitempty"`
	CallerInfo json.RawMessage `json:"caller_info,omitempty"`
}

// Summarize produces a summary from a transcript. The provider failing is
// never surfaced; the deterministic fallback is substituted instead.
func (h *Handler) Summarize(w http.ResponseWriter, r *http.Request) {
	var req summarizeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	result, _ := h.generateHandoff(r, summary.Request{
		Transcript: req.Transcript,
		CallerInfo: req.CallerInfo,
	})
	writeJSON(w, http.StatusOK, map[string]string{"summary": result.Summary})
}

// generateHandoff runs the summary provider and degrades to the
// deterministic fallback on any failure. Returns whether the fallback was
// used.
func (h *Handler) generateHandoff(r *http.Request, req summary.Request) (summary.Result, bool) {
	start := time.Now()

	if strings.TrimSpace(req.Transcript) == "" {
		result := summary.Fallback(req)
		h.Metrics.RecordSummary(h.Provider, true, time.Since(start).Seconds())
		return result, true
	}

	result, err := h.Generator.Generate(r.Context(), req)
	if err != nil {
		h.Logger.Warn().Err(err).Str("provider", h.Provider).Msg("Summary provider failed, using fallback")
		result = summary.Fallback(req)
		h.Metrics.RecordSummary(h.Provider, true, time.Since(start).Seconds())
		return result, true
	}

	h.Metrics.RecordSummary(h.Provider, false, time.Since(start).Seconds())
	return result, false
}

type initiateTransferRequest struct {
	OriginalRoom string `json:"original_room"`
	NewRoom      string `json:"new_room,omitempty"`
	AgentA       string `json:"agent_a"`
	AgentB       string `json:"agent_b"`
	Transcript   string `json:"transcript,omitempty"`
	CallerName   string `json:"caller_name"`
}

type initiateTransferResponse struct {
	TransferID          string `json:"transfer_id"`
	AgentATransferToken string `json:"agentA_transfer_token"`
	AgentBToken         string `json:"agentB_token"`
	TransferRoom        string `json:"transfer_room"`
	LiveKitURL          string `json:"livekit_url"`
	Summary             string `json:"summary"`
	AgentScript         string `json:"agent_script"`
	Status              string `json:"status"`
}

// InitiateTransfer starts a warm transfer: generates the briefing material,
// mints briefing-room credentials for both agents, and atomically inserts
// the transfer while moving the call to transferring.
func (h *Handler) InitiateTransfer(w http.ResponseWriter, r *http.Request) {
	req, err := decodeInitiateTransfer(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	// Fast precondition check so a dead room is rejected before paying for
	// summarization. The commit re-verifies under the write lock.
	call, err := h.Store.CallByRoom(req.OriginalRoom)
	if err != nil {
		h.Metrics.RecordTransferRejected(string(registry.KindOf(err)))
		h.writeRegistryError(w, err)
		return
	}
	if call.Status != models.CallActive {
		h.Metrics.RecordTransferRejected(string(registry.KindInvalidState))
		h.writeRegistryError(w, registry.NewError(registry.KindInvalidState,
			"call in room %s is %s, not active", req.OriginalRoom, call.Status))
		return
	}

	transferRoom := registry.NewTransferRoom(req.NewRoom)
	if req.NewRoom != "" && h.Store.RoomInUse(req.NewRoom) {
		transferRoom = registry.NewTransferRoom("")
	}

	handoff, usedFallback := h.generateHandoff(r, summary.Request{
		Transcript: req.Transcript,
		CallerName: req.CallerName,
		AgentB:     req.AgentB,
		CallerInfo: call.CallerInfo,
	})

	agentACred, err := h.Issuer.Mint(req.AgentA, transferRoom)
	h.Metrics.RecordTokenMint(err)
	if err != nil {
		h.writeRegistryError(w, err)
		return
	}
	agentBCred, err := h.Issuer.Mint(req.AgentB, transferRoom)
	h.Metrics.RecordTokenMint(err)
	if err != nil {
		h.writeRegistryError(w, err)
		return
	}

	transfer, err := h.Store.InitiateTransfer(registry.InitiateParams{
		OriginalRoom: req.OriginalRoom,
		TransferRoom: transferRoom,
		AgentA:       req.AgentA,
		AgentB:       req.AgentB,
		CallerName:   req.CallerName,
		Summary:      handoff.Summary,
		AgentScript:  handoff.Script,
	})
	if err != nil {
		h.Metrics.RecordTransferRejected(string(registry.KindOf(err)))
		h.writeRegistryError(w, err)
		return
	}

	h.Metrics.RecordTransferInitiated()
	_ = h.Publisher.PublishTransfer(r.Context(), events.TransferInitiated, transfer.TransferID, transfer.Brief())
	h.Logger.Info().
		Str("transferId", transfer.TransferID).
		Str("originalRoom", transfer.OriginalRoom).
		Str("transferRoom", transfer.TransferRoom).
		Str("agentA", transfer.AgentA).
		Str("agentB", transfer.AgentB).
		Bool("fallbackSummary", usedFallback).
		Msg("Initiated transfer")

	writeJSON(w, http.StatusOK, initiateTransferResponse{
		TransferID:          transfer.TransferID,
		AgentATransferToken: agentACred.Token,
		AgentBToken:         agentBCred.Token,
		TransferRoom:        transfer.TransferRoom,
		LiveKitURL:          agentACred.URL,
		Summary:             transfer.Summary,
		AgentScript:         transfer.AgentScript,
		Status:              "initiated",
	})
}

// decodeInitiateTransfer accepts the JSON body form and, for compatibility
// with older clients, the query-parameter form.
func decodeInitiateTransfer(r *http.Request) (initiateTransferRequest, error) {
	req := initiateTransferRequest{
		OriginalRoom: r.URL.Query().Get("original_room"),
		NewRoom:      r.URL.Query().Get("new_room"),
		AgentA:       r.URL.Query().Get("agent_a"),
		AgentB:       r.URL.Query().Get("agent_b"),
		Transcript:   r.URL.Query().Get("transcript"),
		CallerName:   r.URL.Query().Get("caller_name"),
	}
	if req.OriginalRoom == "" {
		if err := decodeJSON(r, &req); err != nil {
			return req, err
		}
	}
	if req.OriginalRoom == "" {
		return req, errMissingField("original_room")
	}
	if req.AgentA == "" || req.AgentB == "" {
		return req, errMissingField("agent_a and agent_b")
	}
	if req.CallerName == "" {
		req.CallerName = "Unknown Caller"
	}
	return req, nil
}

type completeTransferRequest struct {
	TransferID   string `json:"transfer_id"`
	OriginalRoom string `json:"original_room"`
	CallerName   string `json:"caller_name"`
	AgentB       string `json:"agent_b"`
}

type completeTransferResponse struct {
	Status      string `json:"status"`
	CallerToken string `json:"caller_token"`
	FinalRoom   string `json:"final_room"`
	AgentB      string `json:"agent_b"`
	LiveKitURL  string `json:"livekit_url"`
}

// CompleteTransfer finishes a warm transfer, handing the caller a credential
// for the final room. Idempotent: repeating the call returns the stored
// outcome unchanged.
func (h *Handler) CompleteTransfer(w http.ResponseWriter, r *http.Request) {
	var req completeTransferRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if req.TransferID == "" {
		writeBadRequest(w, "transfer_id is required")
		return
	}

	existing, err := h.Store.GetTransfer(req.TransferID)
	if err != nil {
		h.Metrics.RecordTransferRejected(string(registry.KindOf(err)))
		h.writeRegistryError(w, err)
		return
	}

	callerName := req.CallerName
	if callerName == "" {
		callerName = existing.CallerName
	}

	// Mint before taking the write lock. If another completion wins the
	// race, the commit returns the stored credential and this one is
	// discarded, keeping retries byte-identical.
	var callerToken string
	if existing.Status != models.TransferCompleted {
		cred, err := h.Issuer.Mint(callerName, existing.TransferRoom)
		h.Metrics.RecordTokenMint(err)
		if err != nil {
			h.writeRegistryError(w, err)
			return
		}
		callerToken = cred.Token
	}

	transfer, alreadyDone, err := h.Store.CompleteTransfer(req.TransferID, req.OriginalRoom, callerToken)
	if err != nil {
		h.Metrics.RecordTransferRejected(string(registry.KindOf(err)))
		h.writeRegistryError(w, err)
		return
	}

	if !alreadyDone {
		briefingSeconds := 0.0
		if transfer.CompletedAt != nil {
			briefingSeconds = transfer.CompletedAt.Sub(transfer.CreatedAt).Seconds()
		}
		h.Metrics.RecordTransferCompleted(briefingSeconds)
		h.Metrics.RecordCallClosed(false, briefingSeconds)
		_ = h.Publisher.PublishTransfer(r.Context(), events.TransferCompleted, transfer.TransferID, transfer.Brief())
		h.Logger.Info().
			Str("transferId", transfer.TransferID).
			Str("finalRoom", transfer.FinalRoom).
			Msg("Completed transfer")
	}

	writeJSON(w, http.StatusOK, completeTransferResponse{
		Status:      "transfer_completed",
		CallerToken: transfer.CallerToken,
		FinalRoom:   transfer.FinalRoom,
		AgentB:      transfer.AgentB,
		LiveKitURL:  h.Issuer.URL(),
	})
}

// ActiveTransfers lists briefing-state transfers for Agent B discovery.
func (h *Handler) ActiveTransfers(w http.ResponseWriter, r *http.Request) {
	briefing := h.Store.ListBriefing()
	out := make([]models.TransferBrief, 0, len(briefing))
	for i := range briefing {
		out = append(out, briefing[i].Brief())
	}
	writeJSON(w, http.StatusOK, map[string]any{"active_transfers": out})
}

// GetTransfer returns the full transfer session projection.
func (h *Handler) GetTransfer(w http.ResponseWriter, r *http.Request) {
	transfer, err := h.Store.GetTransfer(chi.URLParam(r, "transferID"))
	if err != nil {
		h.writeRegistryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, transfer)
}

// CallerTransferStatus is the caller's completion poll. Before completion it
// reports transfer_complete=false; after, the final room plus a freshly
// minted credential to join it.
func (h *Handler) CallerTransferStatus(w http.ResponseWriter, r *http.Request) {
	callerName := chi.URLParam(r, "callerName")

	transfer, err := h.Store.CompletedTransferForCaller(callerName)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]any{"transfer_complete": false})
		return
	}

	cred, err := h.Issuer.Mint(callerName, transfer.FinalRoom)
	h.Metrics.RecordTokenMint(err)
	if err != nil {
		h.writeRegistryError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"transfer_complete": true,
		"transfer_id":       transfer.TransferID,
		"final_room":        transfer.FinalRoom,
		"agent_b":           transfer.AgentB,
		"caller_token":      cred.Token,
		"livekit_url":       cred.URL,
	})
}

// AgentTransferStatus is Agent B's completion poll, mirroring the caller's.
func (h *Handler) AgentTransferStatus(w http.ResponseWriter, r *http.Request) {
	agentName := chi.URLParam(r, "agentName")

	transfer, err := h.Store.CompletedTransferForAgent(agentName)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]any{"transfer_complete": false})
		return
	}

	cred, err := h.Issuer.Mint(agentName, transfer.FinalRoom)
	h.Metrics.RecordTokenMint(err)
	if err != nil {
		h.writeRegistryError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"transfer_complete": true,
		"transfer_id":       transfer.TransferID,
		"final_room":        transfer.FinalRoom,
		"caller_name":       transfer.CallerName,
		"agent_token":       cred.Token,
		"livekit_url":       cred.URL,
	})
}

type participantsRequest struct {
	RoomName     string   `json:"room_name"`
	Participants []string `json:"participants"`
}

// UpdateParticipants records the participant list a client observed in a
// room. Presence metadata only; the registries never act on it.
func (h *Handler) UpdateParticipants(w http.ResponseWriter, r *http.Request) {
	var req participantsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if req.RoomName == "" {
		writeBadRequest(w, "room_name is required")
		return
	}

	h.Store.SetParticipants(req.RoomName, req.Participants)
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "updated",
		"room":         req.RoomName,
		"participants": req.Participants,
	})
}

// GetParticipants returns the last-reported participant list for a room.
func (h *Handler) GetParticipants(w http.ResponseWriter, r *http.Request) {
	roomName := chi.URLParam(r, "roomName")
	writeJSON(w, http.StatusOK, map[string]any{
		"room":         roomName,
		"participants": h.Store.Participants(roomName),
	})
}
