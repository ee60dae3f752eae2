package ingestion

import (
	"bufio"
	"os"
)

// fileWriter wraps a buffered *os.File, tracking bytes written so far.
// Adapted from the earlier internal/transfer/receiver.go FileWriter: that
// version tracked WebRTC chunk offsets for mid-stream resume (WriteAt);
// this one only ever appends sequentially, since the receive protocol has
// no resume/offset concept.
type fileWriter struct {
	file     *os.File
	buffered *bufio.Writer
	written  int64
}

func newFileWriter(path string) (*fileWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return &fileWriter{file: f, buffered: bufio.NewWriterSize(f, 16*1024)}, nil
}

func (w *fileWriter) Write(p []byte) (int, error) {
	n, err := w.buffered.Write(p)
	w.written += int64(n)
	return n, err
}

func (w *fileWriter) Close() error {
	if err := w.buffered.Flush(); err != nil {
		w.file.Close()
		return err
	}
	return w.file.Close()
}
