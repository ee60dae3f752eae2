package model

import "time"

// ReceiveStatus is the per-file and session-level status lattice:
// Waiting -> Receiving -> {Finished, FinishedWithErrors}.
type ReceiveStatus string

const (
	StatusWaiting             ReceiveStatus = "waiting"
	StatusReceiving           ReceiveStatus = "receiving"
	StatusFinished            ReceiveStatus = "finished"
	StatusFinishedWithErrors  ReceiveStatus = "finishedWithErrors"
)

// IsTerminal reports whether status is Finished or FinishedWithErrors.
func (s ReceiveStatus) IsTerminal() bool {
	return s == StatusFinished || s == StatusFinishedWithErrors
}

// FileToken is the per-accepted-file opaque capability the receiver mints
// and the sender must echo back on /send.
type FileToken string

// ReceiveSession is the authoritative per-session record held by the
// Session Controller. Every key in Files has a matching key in FileStatus
// and Tokens and vice versa.
type ReceiveSession struct {
	Sender                DeviceInfo
	Files                 map[string]FileInfo
	FileStatus            map[string]ReceiveStatus
	Tokens                map[string]FileToken
	DestinationDirectory  string
	StartTime             time.Time
	Status                ReceiveStatus
}

// NewReceiveSession creates an empty session pinned to sender; the caller
// fills Files, FileStatus and Tokens for each accepted file.
func NewReceiveSession(sender DeviceInfo, destinationDirectory string) *ReceiveSession {
	return &ReceiveSession{
		Sender:               sender,
		Files:                make(map[string]FileInfo),
		FileStatus:           make(map[string]ReceiveStatus),
		Tokens:                make(map[string]FileToken),
		DestinationDirectory: destinationDirectory,
		StartTime:            time.Now(),
		Status:               StatusWaiting,
	}
}

// AllFinished reports whether every file in the session has reached a
// terminal state: the session is Finished once every file_status is
// Finished or FinishedWithErrors.
func (s *ReceiveSession) AllFinished() bool {
	for _, st := range s.FileStatus {
		if !st.IsTerminal() {
			return false
		}
	}
	return true
}
