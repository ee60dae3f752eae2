package discovery

import (
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/avidaloop/localsend-go/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 100}))
}

// newLoopbackEngine builds an Engine around a plain loopback UDP socket
// rather than a real multicast group, so the reply path can be exercised
// deterministically in a test without depending on multicast being routable
// in the sandbox running it.
func newLoopbackEngine(t *testing.T) *Engine {
	t.Helper()
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("failed to open loopback socket: %v", err)
	}
	return &Engine{
		conn:        conn,
		fingerprint: "engine-under-test",
		self:        model.DeviceInfo{Alias: "me", DeviceType: "desktop"},
		peers:       make(map[string]model.DeviceInfo),
		log:         discardLogger(),
	}
}

func TestHandleDatagramIgnoresOwnFingerprint(t *testing.T) {
	e := newLoopbackEngine(t)
	defer e.conn.Close()

	own := model.DeviceResponse{DeviceInfo: e.self, Announcement: true, Fingerprint: e.fingerprint}
	e.handleDatagram(marshal(t, own), &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 1234})

	if len(e.Peers()) != 0 {
		t.Fatalf("expected self-announcement to be ignored, got peers: %v", e.Peers())
	}
}

func TestHandleDatagramUpsertsForeignPeer(t *testing.T) {
	e := newLoopbackEngine(t)
	defer e.conn.Close()
	e.dest = &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0}

	foreign := model.DeviceResponse{
		DeviceInfo:   model.DeviceInfo{Alias: "phone", DeviceType: "mobile"},
		Announcement: false,
		Fingerprint:  "some-other-process",
	}
	src := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 9999}
	e.handleDatagram(marshal(t, foreign), src)

	peers := e.Peers()
	if len(peers) != 1 {
		t.Fatalf("expected exactly one peer, got %d", len(peers))
	}
	if peers[0].Alias != "phone" || peers[0].IP != src.IP.String() {
		t.Fatalf("unexpected peer recorded: %+v", peers[0])
	}
}

func TestHandleDatagramRepliesExactlyOnceToAnnouncement(t *testing.T) {
	e := newLoopbackEngine(t)
	defer e.conn.Close()

	listener, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("failed to open listener socket: %v", err)
	}
	defer listener.Close()
	e.dest = listener.LocalAddr().(*net.UDPAddr)

	announcement := model.DeviceResponse{
		DeviceInfo:   model.DeviceInfo{Alias: "phone", DeviceType: "mobile"},
		Announcement: true,
		Fingerprint:  "some-other-process",
	}
	e.handleDatagram(marshal(t, announcement), &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 9999})

	listener.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, bufferSize)
	n, _, err := listener.ReadFromUDP(buf)
	if err != nil {
		t.Fatalf("expected exactly one reply datagram: %v", err)
	}

	var reply model.DeviceResponse
	if err := unmarshal(buf[:n], &reply); err != nil {
		t.Fatalf("failed to decode reply: %v", err)
	}
	if reply.Announcement {
		t.Fatalf("expected the reply to carry announcement=false")
	}

	listener.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	if _, _, err := listener.ReadFromUDP(buf); err == nil {
		t.Fatalf("expected exactly one reply, got a second datagram")
	}
}

func marshal(t *testing.T, resp model.DeviceResponse) []byte {
	t.Helper()
	data, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("failed to marshal device response: %v", err)
	}
	return data
}

func unmarshal(data []byte, resp *model.DeviceResponse) error {
	return json.Unmarshal(data, resp)
}
