// Package registry holds the authoritative in-memory state for call and
// transfer sessions. A single Store owns both so that every mutation
// sequence spanning the two (initiate+mark-transferring,
// complete+mark-completed) commits under one critical section and no poller
// ever observes a half-applied transfer.
package registry

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"warm-transfer-service/internal/models"
)

// idRetries bounds the uuid collision retry loop. With random v4 ids a
// single retry is already unreachable in practice.
const idRetries = 5

// Store is the lock-guarded registry for call and transfer sessions.
// All exported methods are safe for concurrent use; reads used by the
// polling endpoints take only the read lock.
type Store struct {
	mu sync.RWMutex

	calls       map[string]*models.CallSession // by call id
	callsByRoom map[string]string              // room name -> call id
	callOrder   []string                       // call ids in creation order

	transfers     map[string]*models.TransferSession // by transfer id
	transferOrder []string                           // transfer ids in creation order

	// Every room name ever allocated (call rooms and transfer rooms).
	// Names are never recycled within a process lifetime, which is what
	// makes the uniqueness checks O(1).
	rooms map[string]struct{}

	// Last-reported participant identities per room.
	participants map[string][]string

	now func() time.Time
}

// NewStore creates an empty registry store.
func NewStore() *Store {
	return &Store{
		calls:        make(map[string]*models.CallSession),
		callsByRoom:  make(map[string]string),
		transfers:    make(map[string]*models.TransferSession),
		rooms:        make(map[string]struct{}),
		participants: make(map[string][]string),
		now:          time.Now,
	}
}

// NewCallIdentifiers generates a fresh call id and its room name. The pair
// is vetted again under the write lock at insert; generating it outside the
// lock lets credentials be minted before any registry mutation.
func NewCallIdentifiers() (callID, roomName string) {
	id := uuid.NewString()
	return id, "call_" + id
}

// NewTransferRoom picks the transfer room name: the client hint when given,
// otherwise a generated name. Uniqueness is enforced at commit.
func NewTransferRoom(hint string) string {
	if hint != "" {
		return hint
	}
	return "transfer_" + uuid.NewString()
}

// CreateCall inserts a call session with status active under the given
// pre-allocated identifiers. It fails with a conflict if either identifier
// is already taken (practically unreachable with random ids). If the caller
// already has an active call, the stale one is marked ended first so that at
// most one active session exists per caller name.
func (s *Store) CreateCall(callID, roomName, callerName string, callerInfo json.RawMessage, agentA string) (models.CallSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.calls[callID]; exists {
		return models.CallSession{}, NewError(KindConflict, "call id %s already in use", callID)
	}
	if _, exists := s.rooms[roomName]; exists {
		return models.CallSession{}, NewError(KindConflict, "room %s already in use", roomName)
	}

	// Newest connection wins: a reconnecting caller supersedes their
	// previous active session.
	for _, id := range s.callOrder {
		prev := s.calls[id]
		if prev.CallerName == callerName && prev.Status == models.CallActive {
			s.endCallLocked(prev)
		}
	}

	call := &models.CallSession{
		CallID:     callID,
		RoomName:   roomName,
		CallerName: callerName,
		CallerInfo: callerInfo,
		AgentA:     agentA,
		Status:     models.CallActive,
		CreatedAt:  s.now().UTC(),
	}
	s.calls[callID] = call
	s.callsByRoom[roomName] = callID
	s.callOrder = append(s.callOrder, callID)
	s.rooms[roomName] = struct{}{}

	return *call, nil
}

// GetCall returns the call session for the given id.
func (s *Store) GetCall(callID string) (models.CallSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	call, ok := s.calls[callID]
	if !ok {
		return models.CallSession{}, NewError(KindNotFound, "call %s not found", callID)
	}
	return *call, nil
}

// CallByRoom returns the call session occupying the given room.
func (s *Store) CallByRoom(roomName string) (models.CallSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	call, ok := s.callByRoomLocked(roomName)
	if !ok {
		return models.CallSession{}, NewError(KindNotFound, "no call in room %s", roomName)
	}
	return *call, nil
}

func (s *Store) callByRoomLocked(roomName string) (*models.CallSession, bool) {
	id, ok := s.callsByRoom[roomName]
	if !ok {
		return nil, false
	}
	call, ok := s.calls[id]
	return call, ok
}

// LatestActiveCall returns the most recently created call with status
// active, for Agent A's discovery poll.
func (s *Store) LatestActiveCall() (models.CallSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := len(s.callOrder) - 1; i >= 0; i-- {
		call := s.calls[s.callOrder[i]]
		if call.Status == models.CallActive {
			return *call, nil
		}
	}
	return models.CallSession{}, NewError(KindNotFound, "no active calls")
}

// ActiveCalls returns every call that has not reached a terminal state,
// newest first.
func (s *Store) ActiveCalls() []models.CallSession {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.CallSession, 0)
	for i := len(s.callOrder) - 1; i >= 0; i-- {
		call := s.calls[s.callOrder[i]]
		if call.Status == models.CallActive || call.Status == models.CallTransferring {
			out = append(out, *call)
		}
	}
	return out
}

// EndCall marks a call ended. Calls already in a terminal state are left
// untouched.
func (s *Store) EndCall(callID string) (models.CallSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	call, ok := s.calls[callID]
	if !ok {
		return models.CallSession{}, NewError(KindNotFound, "call %s not found", callID)
	}
	if call.Status == models.CallActive || call.Status == models.CallTransferring {
		s.endCallLocked(call)
	}
	return *call, nil
}

func (s *Store) endCallLocked(call *models.CallSession) {
	endedAt := s.now().UTC()
	call.Status = models.CallEnded
	call.EndedAt = &endedAt
}

// InitiateParams carries the pre-built inputs for the transfer commit.
// Summary generation and credential minting happen before the lock is
// taken; the commit only verifies state and writes.
type InitiateParams struct {
	OriginalRoom string
	TransferRoom string
	AgentA       string
	AgentB       string
	CallerName   string
	Summary      string
	AgentScript  string
}

// InitiateTransfer atomically inserts a briefing transfer session and moves
// the originating call to transferring. It fails without any mutation if the
// call is missing or no longer active, or if the transfer room name is
// already taken.
func (s *Store) InitiateTransfer(p InitiateParams) (models.TransferSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	call, ok := s.callByRoomLocked(p.OriginalRoom)
	if !ok {
		return models.TransferSession{}, NewError(KindNotFound, "no call in room %s", p.OriginalRoom)
	}
	switch call.Status {
	case models.CallActive:
	case models.CallTransferring:
		return models.TransferSession{}, NewError(KindConflict, "call in room %s already has a transfer in flight", p.OriginalRoom)
	default:
		return models.TransferSession{}, NewError(KindInvalidState, "call in room %s is %s, not active", p.OriginalRoom, call.Status)
	}

	if _, taken := s.rooms[p.TransferRoom]; taken {
		return models.TransferSession{}, NewError(KindConflict, "transfer room %s is already in use", p.TransferRoom)
	}

	transferID, ok := s.allocTransferID()
	if !ok {
		return models.TransferSession{}, NewError(KindConflict, "transfer id allocation collided after %d attempts", idRetries)
	}

	transfer := &models.TransferSession{
		TransferID:   transferID,
		OriginalRoom: p.OriginalRoom,
		TransferRoom: p.TransferRoom,
		AgentA:       p.AgentA,
		AgentB:       p.AgentB,
		CallerName:   p.CallerName,
		Summary:      p.Summary,
		AgentScript:  p.AgentScript,
		Status:       models.TransferBriefing,
		CreatedAt:    s.now().UTC(),
	}
	s.transfers[transferID] = transfer
	s.transferOrder = append(s.transferOrder, transferID)
	s.rooms[p.TransferRoom] = struct{}{}
	call.Status = models.CallTransferring

	return *transfer, nil
}

func (s *Store) allocTransferID() (string, bool) {
	for i := 0; i < idRetries; i++ {
		id := uuid.NewString()
		if _, exists := s.transfers[id]; !exists {
			return id, true
		}
	}
	return "", false
}

// GetTransfer returns the transfer session for the given id.
func (s *Store) GetTransfer(transferID string) (models.TransferSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	transfer, ok := s.transfers[transferID]
	if !ok {
		return models.TransferSession{}, NewError(KindNotFound, "transfer %s not found", transferID)
	}
	return *transfer, nil
}

// CompleteTransfer atomically marks a briefing transfer completed, stamping
// the final room and the pre-minted caller credential, and moves the
// originating call to completed.
//
// Completion is idempotent: if the transfer is already completed the stored
// outcome is returned unchanged (alreadyDone=true) and callerToken is
// discarded, so retries always observe identical results.
func (s *Store) CompleteTransfer(transferID, originalRoom, callerToken string) (models.TransferSession, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	transfer, ok := s.transfers[transferID]
	if !ok {
		return models.TransferSession{}, false, NewError(KindNotFound, "transfer %s not found", transferID)
	}
	if transfer.OriginalRoom != originalRoom {
		return models.TransferSession{}, false, NewError(KindInvalidState, "transfer %s does not originate from room %s", transferID, originalRoom)
	}
	if transfer.Status == models.TransferCompleted {
		return *transfer, true, nil
	}
	if transfer.Status != models.TransferBriefing {
		return models.TransferSession{}, false, NewError(KindInvalidState, "transfer %s is %s, not briefing", transferID, transfer.Status)
	}

	completedAt := s.now().UTC()
	transfer.Status = models.TransferCompleted
	transfer.FinalRoom = transfer.TransferRoom
	transfer.CallerToken = callerToken
	transfer.CompletedAt = &completedAt

	if call, ok := s.callByRoomLocked(originalRoom); ok && call.Status == models.CallTransferring {
		call.Status = models.CallCompleted
	}

	return *transfer, false, nil
}

// ListBriefing returns transfers currently in the briefing state, newest
// first, for Agent B's discovery poll.
func (s *Store) ListBriefing() []models.TransferSession {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.TransferSession, 0)
	for i := len(s.transferOrder) - 1; i >= 0; i-- {
		transfer := s.transfers[s.transferOrder[i]]
		if transfer.Status == models.TransferBriefing {
			out = append(out, *transfer)
		}
	}
	return out
}

// CompletedTransferForCaller returns the most recent completed transfer for
// the given caller display name, for the caller's completion poll.
func (s *Store) CompletedTransferForCaller(callerName string) (models.TransferSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := len(s.transferOrder) - 1; i >= 0; i-- {
		transfer := s.transfers[s.transferOrder[i]]
		if transfer.CallerName == callerName && transfer.Status == models.TransferCompleted {
			return *transfer, nil
		}
	}
	return models.TransferSession{}, NewError(KindNotFound, "no completed transfer for caller %s", callerName)
}

// CompletedTransferForAgent returns the most recent completed transfer
// targeting the given Agent B identity.
func (s *Store) CompletedTransferForAgent(agentName string) (models.TransferSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := len(s.transferOrder) - 1; i >= 0; i-- {
		transfer := s.transfers[s.transferOrder[i]]
		if transfer.AgentB == agentName && transfer.Status == models.TransferCompleted {
			return *transfer, nil
		}
	}
	return models.TransferSession{}, NewError(KindNotFound, "no completed transfer for agent %s", agentName)
}

// RoomInUse reports whether a room name has already been allocated to any
// call or transfer. Used to vet client-supplied room hints before minting;
// the commit re-verifies under the write lock.
func (s *Store) RoomInUse(roomName string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, taken := s.rooms[roomName]
	return taken
}

// SetParticipants replaces the reported participant list for a room.
func (s *Store) SetParticipants(roomName string, identities []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.participants[roomName] = append([]string(nil), identities...)
}

// Participants returns the last-reported participant list for a room.
func (s *Store) Participants(roomName string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]string(nil), s.participants[roomName]...)
}

// ExpireStaleBriefings moves every briefing transfer older than ttl to
// expired and returns its originating call to active so the handoff can be
// re-initiated. Returns the expired transfer ids.
func (s *Store) ExpireStaleBriefings(ttl time.Duration) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().UTC().Add(-ttl)
	var expired []string
	for _, id := range s.transferOrder {
		transfer := s.transfers[id]
		if transfer.Status != models.TransferBriefing || transfer.CreatedAt.After(cutoff) {
			continue
		}
		transfer.Status = models.TransferExpired
		if call, ok := s.callByRoomLocked(transfer.OriginalRoom); ok && call.Status == models.CallTransferring {
			call.Status = models.CallActive
		}
		expired = append(expired, id)
	}
	return expired
}
