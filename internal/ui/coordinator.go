package ui

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/avidaloop/localsend-go/internal/bus"
	"github.com/avidaloop/localsend-go/internal/model"
	"github.com/avidaloop/localsend-go/internal/utils"
)

// Coordinator is the UI task: the single consumer of the Coordination Bus,
// a single long-lived loop that dispatches each bus message to a consent
// prompt, a live progress display, or cancellation cleanup.
type Coordinator struct {
	b          *bus.Bus
	autoAccept bool
	log        *slog.Logger

	reader *bufio.Reader

	mu      sync.Mutex
	current *activeTransfer
}

type activeTransfer struct {
	program   *tea.Program
	root      *progressRootModel
	fileIndex map[string]int
	received  []int64
	startedAt time.Time
	names     []string
	sizes     []int64
}

// New creates a Coordinator reading bus messages published by the Session
// Controller and the Ingestion Pipeline.
func New(b *bus.Bus, autoAccept bool, log *slog.Logger) *Coordinator {
	return &Coordinator{b: b, autoAccept: autoAccept, log: log, reader: bufio.NewReader(os.Stdin)}
}

// Run consumes bus messages until ctx is canceled or the bus channel closes.
func (c *Coordinator) Run(ctx context.Context) {
	messages := c.b.Messages()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			c.dispatch(msg)
		}
	}
}

func (c *Coordinator) dispatch(msg bus.ServerMessage) {
	switch m := msg.(type) {
	case bus.SendRequest:
		c.handleSendRequest(m)
	case bus.SendFileRequest:
		c.handleSendFileRequest(m)
	case bus.CancelSession:
		c.handleCancel()
	}
}

func (c *Coordinator) handleSendRequest(msg bus.SendRequest) {
	fmt.Println()
	fmt.Printf("%s Incoming transfer from %s\n", IconPeer, BoldStyle.Render(msg.Request.Info.Alias))

	ids := make([]string, 0, len(msg.Request.Files))
	for id := range msg.Request.Files {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	items := make([]FileTableItem, 0, len(ids))
	for i, id := range ids {
		f := msg.Request.Files[id]
		items = append(items, FileTableItem{Index: i + 1, Name: f.FileName, Size: f.Size, Type: string(f.FileType)})
	}
	RenderFileTable(items)

	accepted := ids
	if !c.autoAccept {
		accepted = c.promptAccept(ids)
	}

	if len(accepted) == 0 {
		PrintWarning("Transfer declined")
		msg.Reply <- bus.Decline{}
		return
	}
	PrintSuccess(fmt.Sprintf("Accepted %d of %d offered file(s)", len(accepted), len(ids)))

	msg.Reply <- bus.Allow{FileIDs: accepted}
	c.startTransfer(accepted, msg.Request.Files)
}

// promptAccept asks the user which offered files to receive: a plain stdin
// prompt extended to a file subset (entering "all", "none", or a
// comma-separated list of numbers).
func (c *Coordinator) promptAccept(ids []string) []string {
	fmt.Print("\nAccept which files? [all/none/1,2,...]: ")
	line, _ := c.reader.ReadString('\n')
	line = strings.TrimSpace(line)

	switch line {
	case "", "all", "y", "Y":
		return ids
	case "none", "n", "N":
		return nil
	}

	var accepted []string
	for _, tok := range strings.Split(line, ",") {
		tok = strings.TrimSpace(tok)
		var idx int
		if _, err := fmt.Sscanf(tok, "%d", &idx); err != nil {
			continue
		}
		if idx >= 1 && idx <= len(ids) {
			accepted = append(accepted, ids[idx-1])
		}
	}
	return accepted
}

func (c *Coordinator) startTransfer(ids []string, files map[string]model.FileInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()

	names := make([]string, len(ids))
	sizes := make([]int64, len(ids))
	fileIndex := make(map[string]int, len(ids))
	for i, id := range ids {
		names[i] = files[id].FileName
		sizes[i] = files[id].Size
		fileIndex[id] = i
	}

	pm := NewProgressModel(names, sizes)
	root := &progressRootModel{pm: pm}

	c.current = &activeTransfer{
		root:      root,
		fileIndex: fileIndex,
		received:  make([]int64, len(ids)),
		startedAt: time.Now(),
		names:     names,
		sizes:     sizes,
	}

	c.current.program = tea.NewProgram(root)
	go func() {
		if _, err := c.current.program.Run(); err != nil {
			c.log.Debug("progress ui exited with error", "err", err)
		}
	}()
}

func (c *Coordinator) handleSendFileRequest(msg bus.SendFileRequest) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil {
		return
	}

	idx, ok := c.current.fileIndex[msg.FileID]
	if !ok {
		return
	}

	c.current.received[idx] += int64(msg.Bytes)
	c.current.program.Send(fileProgressMsg{id: idx, current: c.current.received[idx]})

	if c.allDone() {
		c.finish()
	}
}

func (c *Coordinator) allDone() bool {
	for i, total := range c.current.sizes {
		if c.current.received[i] < total {
			return false
		}
	}
	return true
}

func (c *Coordinator) finish() {
	elapsed := time.Since(c.current.startedAt)
	var total int64
	for _, n := range c.current.received {
		total += n
	}
	speed := float64(total) / elapsed.Seconds()

	c.current.program.Send(sessionDoneMsg{})

	RenderTransferSummary(TransferSummary{
		Status:    "Complete",
		Files:     len(c.current.names),
		TotalSize: utils.FormatSize(total),
		Duration:  utils.FormatTimeDuration(elapsed),
		Speed:     utils.FormatSpeed(speed),
	})
	RenderSessionBanner(fmt.Sprintf("Received %d file(s) in %s", len(c.current.names), utils.FormatTimeDuration(elapsed)))

	c.current = nil
}

func (c *Coordinator) handleCancel() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil {
		PrintWarning("Session cancelled")
		return
	}

	c.current.program.Send(sessionDoneMsg{})
	PrintWarning("Transfer cancelled")
	c.current = nil
}

// progressRootModel is the tea.Model wrapping a ProgressModel so it can
// also receive Coordinator-originated progress events, pushed in directly
// via tea.Program.Send rather than through a model-owned channel.
type progressRootModel struct {
	pm       *ProgressModel
	quitting bool
}

type fileProgressMsg struct {
	id      int
	current int64
}

type sessionDoneMsg struct{}

func (m *progressRootModel) Init() tea.Cmd {
	return m.pm.Init()
}

func (m *progressRootModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil

	case fileProgressMsg:
		m.pm.UpdateProgress(msg.id, msg.current)
		return m, nil

	case sessionDoneMsg:
		m.quitting = true
		return m, tea.Quit

	default:
		newPM, cmd := m.pm.Update(msg)
		m.pm = newPM
		return m, cmd
	}
}

func (m *progressRootModel) View() string {
	if m.quitting {
		return ""
	}
	return m.pm.View()
}
