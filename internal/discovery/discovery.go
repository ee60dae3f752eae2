// Package discovery implements the self-announcing, self-deduplicating
// multicast participant: it must not mistake its own packets for peers,
// must answer unsolicited announcements exactly once, and must keep a
// live device table.
package discovery

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/avidaloop/localsend-go/internal/model"
)

const (
	// bufferSize is large enough for any reasonable DeviceResponse JSON
	// payload; malformed/oversized datagrams are dropped.
	bufferSize = 4096

	// announceInterval is the periodic self-announcement cadence.
	announceInterval = 5 * time.Second

	// numRepeat is the burst size of identical announcement packets sent
	// per tick, hedging against UDP loss.
	numRepeat = 3
)

// Config configures an Engine.
type Config struct {
	Alias         string
	DeviceType    string
	DeviceModel   string
	Port          int
	MulticastAddr net.IP
}

// Engine is the discovery participant: one UDP socket shared by a periodic
// announcer and a receive loop, plus the peer table the receive loop is
// the sole writer of.
type Engine struct {
	conn *net.UDPConn
	dest *net.UDPAddr

	fingerprint string
	self        model.DeviceInfo

	mu    sync.RWMutex
	peers map[string]model.DeviceInfo

	log *slog.Logger
}

// New binds the shared UDP socket and joins the multicast group. A bind
// failure leaves the process unable to discover or be discovered, so the
// caller should treat a non-nil error as fatal.
func New(cfg Config, log *slog.Logger) (*Engine, error) {
	group := &net.UDPAddr{IP: cfg.MulticastAddr, Port: cfg.Port}

	conn, err := net.ListenMulticastUDP("udp4", nil, group)
	if err != nil {
		return nil, err
	}
	conn.SetReadBuffer(bufferSize)

	return &Engine{
		conn:        conn,
		dest:        group,
		fingerprint: uuid.New().String(),
		self: model.DeviceInfo{
			Alias:       cfg.Alias,
			DeviceType:  cfg.DeviceType,
			DeviceModel: cfg.DeviceModel,
		},
		peers: make(map[string]model.DeviceInfo),
		log:   log,
	}, nil
}

// Close releases the underlying socket, unblocking Run's receive loop.
func (e *Engine) Close() error { return e.conn.Close() }

// Run starts the announcer and receive loop; it blocks until ctx is
// canceled or the socket errors out fatally.
func (e *Engine) Run(ctx context.Context) error {
	go e.announceLoop(ctx)
	return e.receiveLoop(ctx)
}

func (e *Engine) announceLoop(ctx context.Context) {
	ticker := time.NewTicker(announceInterval)
	defer ticker.Stop()

	e.announceBurst()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.announceBurst()
		}
	}
}

func (e *Engine) announceBurst() {
	msg := model.DeviceResponse{DeviceInfo: e.self, Announcement: true, Fingerprint: e.fingerprint}
	payload, err := json.Marshal(msg)
	if err != nil {
		e.log.Debug("marshal announcement failed", "err", err)
		return
	}

	for i := 0; i < numRepeat; i++ {
		if _, err := e.conn.WriteToUDP(payload, e.dest); err != nil {
			e.log.Debug("announce send failed", "err", err)
		}
	}
}

func (e *Engine) receiveLoop(ctx context.Context) error {
	buf := make([]byte, bufferSize)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, src, err := e.conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			e.log.Debug("recv failed", "err", err)
			continue
		}

		e.handleDatagram(buf[:n], src)
	}
}

func (e *Engine) handleDatagram(data []byte, src *net.UDPAddr) {
	var resp model.DeviceResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		e.log.Debug("malformed announcement dropped", "err", err)
		return
	}

	resp.IP = src.IP.String()
	resp.Port = src.Port

	// Self-filter: match by fingerprint, not source address, since our own
	// packets can arrive with a source IP we didn't self-assign.
	if resp.Fingerprint == e.fingerprint {
		return
	}

	if resp.Announcement {
		e.reply()
	}

	e.upsert(resp.DeviceInfo)
}

// reply answers an unsolicited announcement with exactly one reply packet
// carrying announcement=false. That flag is what stops the peer from
// replying back, preventing an infinite reply loop.
func (e *Engine) reply() {
	msg := model.DeviceResponse{DeviceInfo: e.self, Announcement: false, Fingerprint: e.fingerprint}
	payload, err := json.Marshal(msg)
	if err != nil {
		e.log.Debug("marshal reply failed", "err", err)
		return
	}
	if _, err := e.conn.WriteToUDP(payload, e.dest); err != nil {
		e.log.Debug("reply send failed", "err", err)
	}
}

func (e *Engine) upsert(info model.DeviceInfo) {
	e.mu.Lock()
	defer e.mu.Unlock()

	before := len(e.peers)
	e.peers[info.IP] = info
	if len(e.peers) != before {
		e.log.Debug("peer table grew", "size", len(e.peers))
	}
}

// Peers returns a snapshot of the live device table.
func (e *Engine) Peers() []model.DeviceInfo {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]model.DeviceInfo, 0, len(e.peers))
	for _, info := range e.peers {
		out = append(out, info)
	}
	return out
}

// Fingerprint returns this process's self-identification UUID.
func (e *Engine) Fingerprint() string { return e.fingerprint }
