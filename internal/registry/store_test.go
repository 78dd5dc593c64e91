package registry

import (
	"testing"
	"time"

	"warm-transfer-service/internal/models"
)

func newTestStore(t *testing.T) (*Store, *time.Time) {
	t.Helper()
	s := NewStore()
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	return s, &now
}

func mustCreateCall(t *testing.T, s *Store, callerName string) models.CallSession {
	t.Helper()
	callID, roomName := NewCallIdentifiers()
	call, err := s.CreateCall(callID, roomName, callerName, nil, "agent_a")
	if err != nil {
		t.Fatalf("CreateCall(%s): %v", callerName, err)
	}
	return call
}

func mustInitiate(t *testing.T, s *Store, originalRoom, callerName string) models.TransferSession {
	t.Helper()
	transfer, err := s.InitiateTransfer(InitiateParams{
		OriginalRoom: originalRoom,
		TransferRoom: NewTransferRoom(""),
		AgentA:       "agent_a",
		AgentB:       "bob",
		CallerName:   callerName,
		Summary:      "billing issue summary",
		AgentScript:  "hi bob, transferring",
	})
	if err != nil {
		t.Fatalf("InitiateTransfer(%s): %v", originalRoom, err)
	}
	return transfer
}

func TestCreateCall_UniqueRooms(t *testing.T) {
	s, _ := newTestStore(t)

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		call := mustCreateCall(t, s, "caller_"+string(rune('a'+i%26)))
		if seen[call.RoomName] {
			t.Fatalf("room name %s allocated twice", call.RoomName)
		}
		seen[call.RoomName] = true
		if call.Status != models.CallActive {
			t.Errorf("expected status active, got %s", call.Status)
		}
	}
}

func TestCreateCall_IdentifierCollision(t *testing.T) {
	s, _ := newTestStore(t)

	call := mustCreateCall(t, s, "Jane Doe")

	_, err := s.CreateCall(call.CallID, "call_other", "Other", nil, "agent_a")
	if KindOf(err) != KindConflict {
		t.Errorf("expected conflict on duplicate call id, got %v", err)
	}

	_, err = s.CreateCall("other-id", call.RoomName, "Other", nil, "agent_a")
	if KindOf(err) != KindConflict {
		t.Errorf("expected conflict on duplicate room, got %v", err)
	}
}

func TestCreateCall_SupersedesActiveCaller(t *testing.T) {
	s, now := newTestStore(t)

	first := mustCreateCall(t, s, "Jane Doe")
	*now = now.Add(time.Minute)
	second := mustCreateCall(t, s, "Jane Doe")

	got, err := s.GetCall(first.CallID)
	if err != nil {
		t.Fatalf("GetCall: %v", err)
	}
	if got.Status != models.CallEnded {
		t.Errorf("expected first call ended after supersede, got %s", got.Status)
	}
	if got.EndedAt == nil {
		t.Error("expected ended_at to be stamped")
	}

	latest, err := s.LatestActiveCall()
	if err != nil {
		t.Fatalf("LatestActiveCall: %v", err)
	}
	if latest.CallID != second.CallID {
		t.Errorf("expected latest active to be the superseding call")
	}
}

func TestLatestActiveCall(t *testing.T) {
	s, now := newTestStore(t)

	if _, err := s.LatestActiveCall(); KindOf(err) != KindNotFound {
		t.Errorf("expected not_found with no calls, got %v", err)
	}

	mustCreateCall(t, s, "Alice")
	*now = now.Add(time.Second)
	b := mustCreateCall(t, s, "Bob")

	latest, err := s.LatestActiveCall()
	if err != nil {
		t.Fatalf("LatestActiveCall: %v", err)
	}
	if latest.CallID != b.CallID {
		t.Errorf("expected most recent call %s, got %s", b.CallID, latest.CallID)
	}

	// A transferring call is no longer discoverable by Agent A.
	mustInitiate(t, s, b.RoomName, "Bob")
	latest, err = s.LatestActiveCall()
	if err != nil {
		t.Fatalf("LatestActiveCall after transfer: %v", err)
	}
	if latest.CallerName != "Alice" {
		t.Errorf("expected Alice's call once Bob's is transferring, got %s", latest.CallerName)
	}
}

func TestInitiateTransfer_StateGuards(t *testing.T) {
	s, _ := newTestStore(t)
	call := mustCreateCall(t, s, "Jane Doe")

	if _, err := s.InitiateTransfer(InitiateParams{OriginalRoom: "no-such-room", TransferRoom: NewTransferRoom("")}); KindOf(err) != KindNotFound {
		t.Errorf("expected not_found for unknown room, got %v", err)
	}

	first := mustInitiate(t, s, call.RoomName, "Jane Doe")

	// Second initiation against the same call loses the race.
	_, err := s.InitiateTransfer(InitiateParams{
		OriginalRoom: call.RoomName,
		TransferRoom: NewTransferRoom(""),
		CallerName:   "Jane Doe",
	})
	if KindOf(err) != KindConflict {
		t.Errorf("expected conflict for second transfer, got %v", err)
	}

	// Exactly one transfer session exists for the call.
	if got := len(s.ListBriefing()); got != 1 {
		t.Errorf("expected exactly 1 briefing transfer, got %d", got)
	}

	// Ended call cannot be transferred.
	ended := mustCreateCall(t, s, "Eve")
	if _, err := s.EndCall(ended.CallID); err != nil {
		t.Fatalf("EndCall: %v", err)
	}
	_, err = s.InitiateTransfer(InitiateParams{
		OriginalRoom: ended.RoomName,
		TransferRoom: NewTransferRoom(""),
		CallerName:   "Eve",
	})
	if KindOf(err) != KindInvalidState {
		t.Errorf("expected invalid_state for ended call, got %v", err)
	}

	// Taken transfer room is rejected.
	other := mustCreateCall(t, s, "Mallory")
	_, err = s.InitiateTransfer(InitiateParams{
		OriginalRoom: other.RoomName,
		TransferRoom: first.TransferRoom,
		CallerName:   "Mallory",
	})
	if KindOf(err) != KindConflict {
		t.Errorf("expected conflict for reused transfer room, got %v", err)
	}
}

func TestInitiateTransfer_RoomDistinctness(t *testing.T) {
	s, _ := newTestStore(t)

	rooms := make(map[string]bool)
	for i := 0; i < 20; i++ {
		call := mustCreateCall(t, s, "caller")
		transfer := mustInitiate(t, s, call.RoomName, "caller")
		if transfer.TransferRoom == transfer.OriginalRoom {
			t.Fatal("transfer room equals original room")
		}
		if rooms[transfer.TransferRoom] {
			t.Fatalf("transfer room %s allocated twice", transfer.TransferRoom)
		}
		rooms[transfer.TransferRoom] = true
		// Complete so the next create doesn't supersede an active call
		// mid-transfer.
		if _, _, err := s.CompleteTransfer(transfer.TransferID, transfer.OriginalRoom, "tok"); err != nil {
			t.Fatalf("CompleteTransfer: %v", err)
		}
	}
}

func TestCompleteTransfer_Idempotent(t *testing.T) {
	s, _ := newTestStore(t)
	call := mustCreateCall(t, s, "Jane Doe")
	transfer := mustInitiate(t, s, call.RoomName, "Jane Doe")

	first, alreadyDone, err := s.CompleteTransfer(transfer.TransferID, call.RoomName, "token-one")
	if err != nil {
		t.Fatalf("CompleteTransfer: %v", err)
	}
	if alreadyDone {
		t.Error("first completion reported alreadyDone")
	}
	if first.FinalRoom != transfer.TransferRoom {
		t.Errorf("final room %s != transfer room %s", first.FinalRoom, transfer.TransferRoom)
	}
	if first.CallerToken != "token-one" {
		t.Errorf("expected stored token-one, got %s", first.CallerToken)
	}

	// Retry with a different freshly-minted token must return the stored one.
	second, alreadyDone, err := s.CompleteTransfer(transfer.TransferID, call.RoomName, "token-two")
	if err != nil {
		t.Fatalf("CompleteTransfer retry: %v", err)
	}
	if !alreadyDone {
		t.Error("retry did not report alreadyDone")
	}
	if second.CallerToken != "token-one" || second.FinalRoom != first.FinalRoom {
		t.Errorf("retry returned different outcome: %+v vs %+v", second, first)
	}

	// Call moved to completed.
	got, err := s.GetCall(call.CallID)
	if err != nil {
		t.Fatalf("GetCall: %v", err)
	}
	if got.Status != models.CallCompleted {
		t.Errorf("expected call completed, got %s", got.Status)
	}
}

func TestCompleteTransfer_Guards(t *testing.T) {
	s, _ := newTestStore(t)
	call := mustCreateCall(t, s, "Jane Doe")
	transfer := mustInitiate(t, s, call.RoomName, "Jane Doe")

	tests := []struct {
		name         string
		transferID   string
		originalRoom string
		wantKind     ErrorKind
	}{
		{"unknown id", "no-such-transfer", call.RoomName, KindNotFound},
		{"mismatched room", transfer.TransferID, "some-other-room", KindInvalidState},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := s.CompleteTransfer(tt.transferID, tt.originalRoom, "tok")
			if KindOf(err) != tt.wantKind {
				t.Errorf("expected %s, got %v", tt.wantKind, err)
			}
		})
	}
}

func TestListBriefing_NewestFirst(t *testing.T) {
	s, now := newTestStore(t)

	var transfers []models.TransferSession
	for _, name := range []string{"Alice", "Bob", "Carol"} {
		call := mustCreateCall(t, s, name)
		transfers = append(transfers, mustInitiate(t, s, call.RoomName, name))
		*now = now.Add(time.Minute)
	}

	briefing := s.ListBriefing()
	if len(briefing) != 3 {
		t.Fatalf("expected 3 briefing transfers, got %d", len(briefing))
	}
	if briefing[0].CallerName != "Carol" || briefing[2].CallerName != "Alice" {
		t.Errorf("expected newest-first order, got %s..%s", briefing[0].CallerName, briefing[2].CallerName)
	}

	// Completed transfers drop out of the listing.
	if _, _, err := s.CompleteTransfer(transfers[1].TransferID, transfers[1].OriginalRoom, "tok"); err != nil {
		t.Fatalf("CompleteTransfer: %v", err)
	}
	briefing = s.ListBriefing()
	if len(briefing) != 2 {
		t.Fatalf("expected 2 briefing transfers after completion, got %d", len(briefing))
	}
	for _, b := range briefing {
		if b.CallerName == "Bob" {
			t.Error("completed transfer still listed as briefing")
		}
	}
}

func TestCompletedTransferForCaller(t *testing.T) {
	s, now := newTestStore(t)

	if _, err := s.CompletedTransferForCaller("Jane Doe"); KindOf(err) != KindNotFound {
		t.Errorf("expected not_found before any completion, got %v", err)
	}

	// Two historical completed transfers for the same caller: newest wins.
	var lastID string
	for i := 0; i < 2; i++ {
		call := mustCreateCall(t, s, "Jane Doe")
		transfer := mustInitiate(t, s, call.RoomName, "Jane Doe")
		if _, _, err := s.CompleteTransfer(transfer.TransferID, call.RoomName, "tok"); err != nil {
			t.Fatalf("CompleteTransfer: %v", err)
		}
		lastID = transfer.TransferID
		*now = now.Add(time.Minute)
	}

	got, err := s.CompletedTransferForCaller("Jane Doe")
	if err != nil {
		t.Fatalf("CompletedTransferForCaller: %v", err)
	}
	if got.TransferID != lastID {
		t.Errorf("expected most recent completed transfer %s, got %s", lastID, got.TransferID)
	}

	byAgent, err := s.CompletedTransferForAgent("bob")
	if err != nil {
		t.Fatalf("CompletedTransferForAgent: %v", err)
	}
	if byAgent.TransferID != lastID {
		t.Errorf("expected agent view of most recent transfer %s, got %s", lastID, byAgent.TransferID)
	}
}

func TestCompletedTransferForCaller_NotVisibleWhileBriefing(t *testing.T) {
	s, _ := newTestStore(t)
	call := mustCreateCall(t, s, "Jane Doe")
	mustInitiate(t, s, call.RoomName, "Jane Doe")

	if _, err := s.CompletedTransferForCaller("Jane Doe"); KindOf(err) != KindNotFound {
		t.Errorf("briefing transfer visible to caller poll: %v", err)
	}
}

func TestExpireStaleBriefings(t *testing.T) {
	s, now := newTestStore(t)

	call := mustCreateCall(t, s, "Jane Doe")
	transfer := mustInitiate(t, s, call.RoomName, "Jane Doe")

	// Not yet stale.
	if expired := s.ExpireStaleBriefings(30 * time.Minute); len(expired) != 0 {
		t.Fatalf("expected no expiries, got %v", expired)
	}

	*now = now.Add(31 * time.Minute)
	expired := s.ExpireStaleBriefings(30 * time.Minute)
	if len(expired) != 1 || expired[0] != transfer.TransferID {
		t.Fatalf("expected %s expired, got %v", transfer.TransferID, expired)
	}

	got, err := s.GetTransfer(transfer.TransferID)
	if err != nil {
		t.Fatalf("GetTransfer: %v", err)
	}
	if got.Status != models.TransferExpired {
		t.Errorf("expected expired status, got %s", got.Status)
	}

	// The call is back to active so the handoff can be retried.
	gotCall, err := s.GetCall(call.CallID)
	if err != nil {
		t.Fatalf("GetCall: %v", err)
	}
	if gotCall.Status != models.CallActive {
		t.Errorf("expected call returned to active, got %s", gotCall.Status)
	}

	// Expired transfers cannot be completed and are not listed.
	if _, _, err := s.CompleteTransfer(transfer.TransferID, call.RoomName, "tok"); KindOf(err) != KindInvalidState {
		t.Errorf("expected invalid_state completing expired transfer, got %v", err)
	}
	if briefing := s.ListBriefing(); len(briefing) != 0 {
		t.Errorf("expired transfer still listed as briefing")
	}

	// Sweep is idempotent.
	if expired := s.ExpireStaleBriefings(30 * time.Minute); len(expired) != 0 {
		t.Errorf("second sweep expired again: %v", expired)
	}
}

func TestParticipants(t *testing.T) {
	s, _ := newTestStore(t)

	if got := s.Participants("room-x"); len(got) != 0 {
		t.Errorf("expected empty participants, got %v", got)
	}

	s.SetParticipants("room-x", []string{"caller", "agent_a"})
	got := s.Participants("room-x")
	if len(got) != 2 || got[0] != "caller" || got[1] != "agent_a" {
		t.Errorf("unexpected participants %v", got)
	}

	// Returned slice is a copy.
	got[0] = "mutated"
	if s.Participants("room-x")[0] != "caller" {
		t.Error("Participants returned shared backing slice")
	}
}

func TestRoomInUse(t *testing.T) {
	s, _ := newTestStore(t)
	call := mustCreateCall(t, s, "Jane Doe")

	if !s.RoomInUse(call.RoomName) {
		t.Error("call room not reported in use")
	}
	if s.RoomInUse("free-room") {
		t.Error("unused room reported in use")
	}

	transfer := mustInitiate(t, s, call.RoomName, "Jane Doe")
	if !s.RoomInUse(transfer.TransferRoom) {
		t.Error("transfer room not reported in use")
	}
}
