//go:build !windows

package debugger

import (
	"errors"
	"io"
	"os"
	"os/exec"
)

// signal is a pipe whose write end the debugger inherits as fd 3. Writing a
// byte or closing it releases the waiting process.
type signal struct {
	r, w *os.File
}

func newSignal() (*signal, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return nil, err
	}
	return &signal{r: r, w: w}, nil
}

// ExtraFiles[0] is fd 3 in the child.
func (s *signal) token() string { return "3" }

func (s *signal) attach(cmd *exec.Cmd) {
	cmd.ExtraFiles = []*os.File{s.w}
}

// started drops the parent's copy of the write end so EOF means the
// debugger closed it or exited.
func (s *signal) started() {
	_ = s.w.Close()
}

func (s *signal) wait() error {
	var b [1]byte
	_, err := s.r.Read(b[:])
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func (s *signal) close() {
	_ = s.r.Close()
	_ = s.w.Close()
}
