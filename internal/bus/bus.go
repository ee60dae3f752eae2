// Package bus implements the Coordination Bus: the pair of one-way queues
// that break the lifetime cycle between the HTTPS handlers and the UI task.
package bus

import "github.com/avidaloop/localsend-go/internal/model"

// ServerMessage flows from the HTTPS handlers to the UI task.
type ServerMessage interface{ isServerMessage() }

// SendRequest notifies the UI task of an incoming offer. It must be
// answered with exactly one ClientMessage on the reply channel.
type SendRequest struct {
	Request model.SendRequest
	Reply   chan ClientMessage
}

func (SendRequest) isServerMessage() {}

// SendFileRequest reports a byte advance for one file. A value of 0 means
// "starting this file"; values afterwards are the size of each chunk
// written, not a cumulative total.
type SendFileRequest struct {
	FileID string
	Bytes  int
}

func (SendFileRequest) isServerMessage() {}

// CancelSession notifies the UI task that the active session was torn down.
type CancelSession struct{}

func (CancelSession) isServerMessage() {}

// ClientMessage flows from the UI task back to a Session Controller
// handler awaiting a reply to a SendRequest.
type ClientMessage interface{ isClientMessage() }

// Allow accepts a subset of the offered files.
type Allow struct{ FileIDs []string }

func (Allow) isClientMessage() {}

// Decline rejects the whole offer.
type Decline struct{}

func (Decline) isClientMessage() {}

// Bus is the concrete pair of channels. Server->client capacity is generous
// (256 messages) since at most one session exists at a time and traffic is bounded by
// chunk count; the reply channel for one SendRequest is created per-call so
// it is inherently single-use and unbounded-enough at size 1.
type Bus struct {
	serverCh chan ServerMessage
}

// New creates a Bus with a buffered server->client channel.
func New() *Bus {
	return &Bus{serverCh: make(chan ServerMessage, 256)}
}

// Messages returns the channel the UI task should range over.
func (b *Bus) Messages() <-chan ServerMessage { return b.serverCh }

// PublishSendRequest sends a SendRequest and returns the reply channel the
// caller must block on for exactly one reply. Publishing itself never
// blocks the caller beyond the buffered channel's capacity.
func (b *Bus) PublishSendRequest(req model.SendRequest) chan ClientMessage {
	reply := make(chan ClientMessage, 1)
	b.serverCh <- SendRequest{Request: req, Reply: reply}
	return reply
}

// PublishSendFileRequest reports progress for one file.
func (b *Bus) PublishSendFileRequest(fileID string, n int) {
	b.serverCh <- SendFileRequest{FileID: fileID, Bytes: n}
}

// PublishCancel notifies the UI task of a session teardown.
func (b *Bus) PublishCancel() {
	b.serverCh <- CancelSession{}
}
