package model

import "testing"

func TestReceiveSessionAllFinished(t *testing.T) {
	s := NewReceiveSession(DeviceInfo{Alias: "sender"}, "/tmp/out")
	s.FileStatus["a"] = StatusReceiving
	s.FileStatus["b"] = StatusWaiting

	if s.AllFinished() {
		t.Fatalf("expected AllFinished to be false while files are in progress")
	}

	s.FileStatus["a"] = StatusFinished
	s.FileStatus["b"] = StatusFinishedWithErrors

	if !s.AllFinished() {
		t.Fatalf("expected AllFinished to be true once every file reached a terminal state")
	}
}

func TestReceiveStatusIsTerminal(t *testing.T) {
	cases := map[ReceiveStatus]bool{
		StatusWaiting:            false,
		StatusReceiving:          false,
		StatusFinished:           true,
		StatusFinishedWithErrors: true,
	}
	for status, want := range cases {
		if got := status.IsTerminal(); got != want {
			t.Errorf("IsTerminal(%s) = %v, want %v", status, got, want)
		}
	}
}
