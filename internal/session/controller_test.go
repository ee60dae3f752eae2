package session

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/avidaloop/localsend-go/internal/apperr"
	"github.com/avidaloop/localsend-go/internal/bus"
	"github.com/avidaloop/localsend-go/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 100}))
}

func sampleRequest() model.SendRequest {
	return model.SendRequest{
		Info: model.DeviceInfo{Alias: "sender", IP: "10.0.0.5"},
		Files: map[string]model.FileInfo{
			"f1": {ID: "f1", Size: 10, FileName: "a.txt", FileType: model.FileTypeText},
			"f2": {ID: "f2", Size: 20, FileName: "b.txt", FileType: model.FileTypeText},
		},
	}
}

func TestHandleSendRequestAllowMintsTokensForAcceptedFilesOnly(t *testing.T) {
	b := bus.New()
	dir := t.TempDir()
	ctrl := New(b, dir, discardLogger())

	go func() {
		msg := (<-b.Messages()).(bus.SendRequest)
		msg.Reply <- bus.Allow{FileIDs: []string{"f1"}}
	}()

	tokens, err := ctrl.HandleSendRequest(sampleRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tokens) != 1 {
		t.Fatalf("expected exactly one minted token, got %d", len(tokens))
	}
	if _, ok := tokens["f1"]; !ok {
		t.Fatalf("expected token for f1, got %v", tokens)
	}

	sess := ctrl.Active()
	if sess == nil {
		t.Fatalf("expected an active session")
	}
	if _, ok := sess.Files["f2"]; ok {
		t.Fatalf("declined file f2 should not be part of the session")
	}
}

func TestHandleSendRequestDeclineLeavesNoSession(t *testing.T) {
	b := bus.New()
	ctrl := New(b, t.TempDir(), discardLogger())

	go func() {
		msg := (<-b.Messages()).(bus.SendRequest)
		msg.Reply <- bus.Decline{}
	}()

	_, err := ctrl.HandleSendRequest(sampleRequest())
	if err == nil {
		t.Fatalf("expected an error on decline")
	}
	if ctrl.Active() != nil {
		t.Fatalf("expected no active session after decline")
	}
}

func TestHandleSendRequestRejectsSecondConcurrentOffer(t *testing.T) {
	b := bus.New()
	ctrl := New(b, t.TempDir(), discardLogger())

	received := make(chan struct{})
	block := make(chan struct{})
	go func() {
		msg := (<-b.Messages()).(bus.SendRequest)
		close(received)
		<-block
		msg.Reply <- bus.Allow{FileIDs: []string{"f1"}}
	}()

	done := make(chan struct{})
	go func() {
		_, _ = ctrl.HandleSendRequest(sampleRequest())
		close(done)
	}()

	// Wait until the first offer is published and marked in-flight before
	// issuing the second, concurrent offer.
	<-received

	_, err := ctrl.HandleSendRequest(sampleRequest())
	if err == nil {
		t.Fatalf("expected the second concurrent send-request to be rejected")
	}
	ae, ok := err.(*apperr.Error)
	if !ok || ae.Status != 409 {
		t.Fatalf("expected a 409 conflict, got %v", err)
	}

	close(block)
	<-done
}

func TestHandleCancelFreesReservationEvenThoughNoSessionExistsYet(t *testing.T) {
	b := bus.New()
	ctrl := New(b, t.TempDir(), discardLogger())

	received := make(chan struct{})
	go func() {
		<-b.Messages()
		close(received)
		// Never replies: the user is still being prompted when the sender
		// cancels below.
	}()

	done := make(chan struct{})
	var err error
	go func() {
		_, err = ctrl.HandleSendRequest(sampleRequest())
		close(done)
	}()

	<-received
	cancelErr := ctrl.HandleCancel()
	if cancelErr == nil {
		t.Fatalf("expected cancel with no active session to still return an error")
	}
	ae, ok := cancelErr.(*apperr.Error)
	if !ok || ae.Status != 400 {
		t.Fatalf("expected a 400 bad request, got %v", cancelErr)
	}

	<-done
	if err == nil {
		t.Fatalf("expected HandleSendRequest to return an error once cancelled")
	}
	if ctrl.Active() != nil {
		t.Fatalf("expected no session to exist after a mid-offer cancel")
	}

	// The reservation must be free again for the next offer.
	go func() {
		msg := (<-b.Messages()).(bus.SendRequest)
		msg.Reply <- bus.Allow{FileIDs: []string{"f1"}}
	}()
	if _, err := ctrl.HandleSendRequest(sampleRequest()); err != nil {
		t.Fatalf("expected a fresh offer to succeed after the cancelled one: %v", err)
	}
}

func TestHandleCancelPrefersActiveSessionOverStaleInFlightFlag(t *testing.T) {
	b := bus.New()
	ctrl := New(b, t.TempDir(), discardLogger())

	// Reproduces the narrow window inside HandleSendRequest's Allow branch:
	// c.session has already been published, but the deferred cleanup that
	// resets inFlight/cancelCh hasn't run yet because the handler hasn't
	// returned. A cancel landing here must still tear down the session,
	// not fall through to the "no session yet" 400 path.
	sess := model.NewReceiveSession(model.DeviceInfo{Alias: "sender"}, t.TempDir())
	ctrl.mu.Lock()
	ctrl.session = sess
	ctrl.inFlight = true
	ctrl.cancelCh = make(chan struct{})
	ctrl.mu.Unlock()

	published := make(chan struct{})
	go func() {
		_ = (<-b.Messages()).(bus.CancelSession)
		close(published)
	}()

	if err := ctrl.HandleCancel(); err != nil {
		t.Fatalf("expected cancel to succeed when a session already exists: %v", err)
	}
	<-published
	if ctrl.Active() != nil {
		t.Fatalf("expected the session to be cleared")
	}
}

func TestHandleCancelWithoutActiveSession(t *testing.T) {
	b := bus.New()
	ctrl := New(b, t.TempDir(), discardLogger())

	if err := ctrl.HandleCancel(); err == nil {
		t.Fatalf("expected an error cancelling a non-existent session")
	}
}

func TestHandleCancelClearsActiveSession(t *testing.T) {
	b := bus.New()
	ctrl := New(b, t.TempDir(), discardLogger())

	go func() {
		msg := (<-b.Messages()).(bus.SendRequest)
		msg.Reply <- bus.Allow{FileIDs: []string{"f1"}}
		<-b.Messages() // drain the CancelSession published by HandleCancel below
	}()

	if _, err := ctrl.HandleSendRequest(sampleRequest()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := ctrl.HandleCancel(); err != nil {
		t.Fatalf("unexpected cancel error: %v", err)
	}
	if ctrl.Active() != nil {
		t.Fatalf("expected session to be cleared after cancel")
	}
}

func TestDestinationDirectoryIsCreated(t *testing.T) {
	b := bus.New()
	dir := filepath.Join(t.TempDir(), "nested", "out")
	ctrl := New(b, dir, discardLogger())

	go func() {
		msg := (<-b.Messages()).(bus.SendRequest)
		msg.Reply <- bus.Allow{FileIDs: []string{"f1"}}
	}()

	if _, err := ctrl.HandleSendRequest(sampleRequest()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Fatalf("expected destination directory to exist: %v", err)
	}
}
