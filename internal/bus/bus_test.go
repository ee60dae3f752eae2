package bus

import (
	"testing"

	"github.com/avidaloop/localsend-go/internal/model"
)

func TestPublishSendRequestRoundTrip(t *testing.T) {
	b := New()

	go func() {
		msg := <-b.Messages()
		sr, ok := msg.(SendRequest)
		if !ok {
			t.Errorf("expected SendRequest, got %T", msg)
			return
		}
		sr.Reply <- Allow{FileIDs: []string{"f1"}}
	}()

	reply := b.PublishSendRequest(model.SendRequest{Info: model.DeviceInfo{Alias: "sender"}})
	msg := <-reply

	allow, ok := msg.(Allow)
	if !ok {
		t.Fatalf("expected Allow, got %T", msg)
	}
	if len(allow.FileIDs) != 1 || allow.FileIDs[0] != "f1" {
		t.Fatalf("unexpected file ids: %v", allow.FileIDs)
	}
}

func TestPublishSendFileRequestAndCancel(t *testing.T) {
	b := New()

	b.PublishSendFileRequest("f1", 100)
	b.PublishCancel()

	msg1 := <-b.Messages()
	sfr, ok := msg1.(SendFileRequest)
	if !ok || sfr.FileID != "f1" || sfr.Bytes != 100 {
		t.Fatalf("unexpected first message: %#v", msg1)
	}

	msg2 := <-b.Messages()
	if _, ok := msg2.(CancelSession); !ok {
		t.Fatalf("expected CancelSession, got %T", msg2)
	}
}
