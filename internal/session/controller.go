// Package session implements the Session Controller: the single
// at-most-one ReceiveSession reservation protocol coupling the HTTPS
// surface to the Coordination Bus.
package session

import (
	"log/slog"
	"os"
	"sync"

	"github.com/google/uuid"

	"github.com/avidaloop/localsend-go/internal/apperr"
	"github.com/avidaloop/localsend-go/internal/bus"
	"github.com/avidaloop/localsend-go/internal/model"
)

// Controller owns the single optional ReceiveSession behind one mutex.
// Every endpoint handler acquires this mutex before touching the session or
// the in-flight offer bookkeeping.
type Controller struct {
	mu       sync.Mutex
	session  *model.ReceiveSession
	inFlight bool
	cancelCh chan struct{}

	bus     *bus.Bus
	destDir string
	log     *slog.Logger
}

// New creates a Controller publishing to bus and writing accepted files
// under destDir.
func New(b *bus.Bus, destDir string, log *slog.Logger) *Controller {
	return &Controller{bus: b, destDir: destDir, log: log}
}

// HandleSendRequest implements the send-request handler. Only one offer or
// session can be outstanding at a time; the mutex is held just long enough
// to check and flip that reservation, not across the suspension while
// awaiting the UI task's reply, so a concurrent cancel can interrupt a
// prompt the user hasn't answered yet.
func (c *Controller) HandleSendRequest(req model.SendRequest) (map[string]string, error) {
	c.mu.Lock()
	if c.session != nil || c.inFlight {
		c.mu.Unlock()
		return nil, apperr.Conflict("send-request", apperr.ErrSessionExists).
			WithBody("Blocked by another sesssion")
	}
	c.inFlight = true
	cancelCh := make(chan struct{})
	c.cancelCh = cancelCh
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		// Only release the reservation this call still owns: a cancel has
		// already released it, and a newer offer may hold it by now.
		if c.cancelCh == cancelCh {
			c.inFlight = false
			c.cancelCh = nil
		}
		c.mu.Unlock()
	}()

	reply := c.bus.PublishSendRequest(req)

	var msg bus.ClientMessage
	var ok bool
	select {
	case msg, ok = <-reply:
	case <-cancelCh:
		return nil, apperr.Forbidden("send-request", apperr.ErrDeclined).
			WithBody("Sender cancelled before the user responded")
	}
	if !ok {
		return nil, apperr.Forbidden("send-request", apperr.ErrDeclined).
			WithBody("User declined the request")
	}

	switch m := msg.(type) {
	case bus.Decline:
		return nil, apperr.Forbidden("send-request", apperr.ErrDeclined).
			WithBody("User declined the request")
	case bus.Allow:
		if err := os.MkdirAll(c.destDir, 0o755); err != nil {
			return nil, apperr.Internal("send-request", err)
		}

		newSession := model.NewReceiveSession(req.Info, c.destDir)
		wanted := make(map[string]string, len(m.FileIDs))

		for _, fileID := range m.FileIDs {
			info, ok := req.Files[fileID]
			if !ok {
				// ids absent from the offer are skipped silently.
				continue
			}
			token := uuid.New().String()
			newSession.Files[fileID] = info
			newSession.FileStatus[fileID] = model.StatusWaiting
			newSession.Tokens[fileID] = model.FileToken(token)
			wanted[fileID] = token
		}

		c.mu.Lock()
		c.session = newSession
		c.mu.Unlock()
		c.log.Debug("session accepted", "sender", req.Info.Alias, "files", len(wanted))
		return wanted, nil
	default:
		return nil, apperr.Forbidden("send-request", apperr.ErrDeclined).
			WithBody("User declined the request")
	}
}

// HandleCancel implements the cancel handler: lock, and if no session
// exists, return 400. If an offer is still pending the user's
// accept/decline answer, no ReceiveSession exists yet either, so the 400
// response is unchanged; the one difference is that the pending
// HandleSendRequest call is unblocked instead of being left to hold the
// single-offer reservation hostage until a prompt nobody can still answer
// eventually resolves.
//
// The session check runs before the inFlight check deliberately:
// HandleSendRequest's Allow branch publishes c.session before its deferred
// cleanup clears inFlight, so a cancel landing in that narrow window would
// otherwise take the inFlight branch and leave the just-created session
// behind with no CancelSession ever published.
func (c *Controller) HandleCancel() error {
	c.mu.Lock()

	if c.session != nil {
		c.session = nil
		c.mu.Unlock()
		c.bus.PublishCancel()
		return nil
	}

	if c.inFlight {
		close(c.cancelCh)
		c.cancelCh = nil
		c.inFlight = false
		c.mu.Unlock()
		return apperr.BadRequest("cancel", apperr.ErrNoActiveSession)
	}

	c.mu.Unlock()
	return apperr.BadRequest("cancel", apperr.ErrNoActiveSession)
}

// The Ingestion Pipeline needs to re-acquire this same mutex across its
// pre-flight/stream/post-flight phases, so Controller exposes Lock/Unlock
// alongside Active/Clear rather than handing out a private copy of the
// session.

// Lock acquires the session mutex.
func (c *Controller) Lock() { c.mu.Lock() }

// Unlock releases the session mutex.
func (c *Controller) Unlock() { c.mu.Unlock() }

// Active returns the current session, or nil if none is active. Must be
// called while holding Lock.
func (c *Controller) Active() *model.ReceiveSession { return c.session }

// Clear drops the active session. Must be called while holding Lock.
func (c *Controller) Clear() { c.session = nil }

// Bus exposes the Coordination Bus for progress publication.
func (c *Controller) Bus() *bus.Bus { return c.bus }
