// Package ingestion implements the streamed file ingestion path: backpressured
// streaming from an HTTP body to disk with byte-granular progress events and
// mid-transfer cancellation.
package ingestion

import (
	"io"
	"path/filepath"

	"github.com/avidaloop/localsend-go/internal/apperr"
	"github.com/avidaloop/localsend-go/internal/bus"
	"github.com/avidaloop/localsend-go/internal/model"
)

// chunkSize is the fixed read buffer size used for every stream copy
// (16 KiB). The size is not adjusted to measured throughput.
const chunkSize = 16 * 1024

// SessionLock is the subset of *session.Controller the pipeline needs. It
// is expressed as an interface here so ingestion does not import session
// and tests can stub it (the HTTPS surface wires the concrete controller
// in).
type SessionLock interface {
	Lock()
	Unlock()
	Active() *model.ReceiveSession
	Clear()
	Bus() *bus.Bus
}

// Receive implements the file ingestion path end to end: pre-flight under
// lock, unlocked stream loop, post-flight under lock.
func Receive(ctrl SessionLock, fileID, token string, body io.Reader) error {
	path, fileBus, err := preflight(ctrl, fileID, token)
	if err != nil {
		return err
	}

	streamErr := stream(fileBus, fileID, path, body)

	return postflight(ctrl, fileID, streamErr)
}

func preflight(ctrl SessionLock, fileID, token string) (string, *bus.Bus, error) {
	ctrl.Lock()
	defer ctrl.Unlock()

	sess := ctrl.Active()
	if sess == nil {
		return "", nil, apperr.Internal("send", apperr.ErrSessionMissing).
			WithBody("Call to /send without requesting a send")
	}

	ctrl.Bus().PublishSendFileRequest(fileID, 0)

	info, ok := sess.Files[fileID]
	if !ok {
		return "", nil, apperr.Internal("send", apperr.ErrUnknownFile).
			WithBody("Call to /send with unknown file id " + fileID)
	}

	if sess.Tokens[fileID] != model.FileToken(token) {
		return "", nil, apperr.Forbidden("send", apperr.ErrTokenMismatch)
	}

	sess.Status = model.StatusReceiving
	path := filepath.Join(sess.DestinationDirectory, info.FileName)
	return path, ctrl.Bus(), nil
}

// stream copies body to path chunkSize bytes at a time, publishing a
// SendFileRequest after every successful chunk so the UI can advance a
// progress bar. It never holds the session lock.
func stream(b *bus.Bus, fileID, path string, body io.Reader) error {
	w, err := newFileWriter(path)
	if err != nil {
		return err
	}

	buf := make([]byte, chunkSize)
	var streamErr error
	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			if _, writeErr := w.Write(buf[:n]); writeErr != nil {
				streamErr = writeErr
				break
			}
			b.PublishSendFileRequest(fileID, n)
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			streamErr = readErr
			break
		}
	}

	// A write/read error still leaves whatever was already flushed to disk
	// in place; a partial file is never deleted on error.
	if closeErr := w.Close(); closeErr != nil && streamErr == nil {
		streamErr = closeErr
	}
	return streamErr
}

func postflight(ctrl SessionLock, fileID string, streamErr error) error {
	ctrl.Lock()
	defer ctrl.Unlock()

	sess := ctrl.Active()
	if sess == nil {
		return apperr.Internal("send", apperr.ErrSessionVanished)
	}

	if streamErr == nil {
		sess.FileStatus[fileID] = model.StatusFinished
	} else {
		sess.FileStatus[fileID] = model.StatusFinishedWithErrors
	}

	if sess.AllFinished() {
		sess.Status = model.StatusFinished
		ctrl.Clear()
	}
	return nil
}
