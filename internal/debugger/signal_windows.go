//go:build windows

package debugger

import (
	"fmt"
	"os/exec"
	"strconv"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"
)

// signal is an inheritable manual-reset event the debugger sets once it has
// attached. Its handle value is passed on the command line.
type signal struct {
	h windows.Handle
}

func newSignal() (*signal, error) {
	sa := windows.SecurityAttributes{InheritHandle: 1}
	sa.Length = uint32(unsafe.Sizeof(sa))
	h, err := windows.CreateEvent(&sa, 1, 0, nil)
	if err != nil {
		return nil, err
	}
	return &signal{h: h}, nil
}

func (s *signal) token() string { return strconv.FormatUint(uint64(s.h), 10) }

func (s *signal) attach(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		AdditionalInheritedHandles: []syscall.Handle{syscall.Handle(s.h)},
	}
}

func (s *signal) started() {}

func (s *signal) wait() error {
	ev, err := windows.WaitForSingleObject(s.h, windows.INFINITE)
	if err != nil {
		return err
	}
	if ev != windows.WAIT_OBJECT_0 {
		return fmt.Errorf("unexpected wait result 0x%x", ev)
	}
	return nil
}

func (s *signal) close() {
	_ = windows.CloseHandle(s.h)
}
