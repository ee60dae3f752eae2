package ingestion

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/avidaloop/localsend-go/internal/bus"
	"github.com/avidaloop/localsend-go/internal/model"
)

// fakeController is a minimal SessionLock stub with no-op Lock/Unlock, so
// these tests drive the pipeline without the session package.
type fakeController struct {
	session *model.ReceiveSession
	bus     *bus.Bus
}

func (f *fakeController) Lock()                        {}
func (f *fakeController) Unlock()                       {}
func (f *fakeController) Active() *model.ReceiveSession { return f.session }
func (f *fakeController) Clear()                        { f.session = nil }
func (f *fakeController) Bus() *bus.Bus                 { return f.bus }

func newTestSession(t *testing.T, fileID, fileName, token string, size int64) (*fakeController, string) {
	t.Helper()
	dir := t.TempDir()
	sess := model.NewReceiveSession(model.DeviceInfo{Alias: "sender"}, dir)
	sess.Files[fileID] = model.FileInfo{ID: fileID, FileName: fileName, Size: size}
	sess.FileStatus[fileID] = model.StatusWaiting
	sess.Tokens[fileID] = model.FileToken(token)
	return &fakeController{session: sess, bus: bus.New()}, dir
}

func drainBus(b *bus.Bus, stop <-chan struct{}) {
	go func() {
		for {
			select {
			case <-b.Messages():
			case <-stop:
				return
			}
		}
	}()
}

func TestReceiveWritesFileAndMarksFinished(t *testing.T) {
	ctrl, dir := newTestSession(t, "f1", "hello.txt", "tok-1", 5)
	stop := make(chan struct{})
	defer close(stop)
	drainBus(ctrl.bus, stop)

	body := bytes.NewReader([]byte("hello"))
	if err := Receive(ctrl, "f1", "tok-1", body); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "hello.txt"))
	if err != nil {
		t.Fatalf("expected file to be written: %v", err)
	}
	if string(data) != "hello" {
		t.Fatalf("unexpected file contents: %q", data)
	}
	if ctrl.session != nil {
		t.Fatalf("expected the session to be cleared once the only file finished")
	}
}

func TestReceiveRejectsTokenMismatch(t *testing.T) {
	ctrl, _ := newTestSession(t, "f1", "hello.txt", "tok-1", 5)
	stop := make(chan struct{})
	defer close(stop)
	drainBus(ctrl.bus, stop)

	err := Receive(ctrl, "f1", "wrong-token", bytes.NewReader([]byte("hello")))
	if err == nil {
		t.Fatalf("expected a token mismatch error")
	}
}

func TestReceiveRejectsUnknownFileID(t *testing.T) {
	ctrl, _ := newTestSession(t, "f1", "hello.txt", "tok-1", 5)
	stop := make(chan struct{})
	defer close(stop)
	drainBus(ctrl.bus, stop)

	err := Receive(ctrl, "does-not-exist", "tok-1", bytes.NewReader([]byte("hello")))
	if err == nil {
		t.Fatalf("expected an unknown file id error")
	}
}

// erroringReader returns its data and then fails instead of reporting EOF,
// to exercise the "leave partial file on disk" behavior.
type erroringReader struct {
	data []byte
	pos  int
}

func (r *erroringReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.data) {
		return 0, io.ErrClosedPipe
	}
	n := copy(p, r.data[r.pos:])
	r.pos += n
	return n, nil
}

func TestReceiveLeavesPartialFileOnStreamError(t *testing.T) {
	ctrl, dir := newTestSession(t, "f1", "partial.txt", "tok-1", 100)
	sess := ctrl.session
	stop := make(chan struct{})
	defer close(stop)
	drainBus(ctrl.bus, stop)

	// A stream error is recorded on the file's status; the request itself
	// still succeeds.
	err := Receive(ctrl, "f1", "tok-1", &erroringReader{data: []byte("partial-data")})
	if err != nil {
		t.Fatalf("expected the stream error to be recorded, not returned: %v", err)
	}

	data, readErr := os.ReadFile(filepath.Join(dir, "partial.txt"))
	if readErr != nil {
		t.Fatalf("expected the partial file to remain on disk: %v", readErr)
	}
	if string(data) != "partial-data" {
		t.Fatalf("unexpected partial contents: %q", data)
	}
	if status := sess.FileStatus["f1"]; status != model.StatusFinishedWithErrors {
		t.Fatalf("expected FinishedWithErrors, got %s", status)
	}
}
