// Package pitui drives a full-screen terminal session: raw mode on the
// alternate screen, blocking key input decoded with ultraviolet, and a
// differential line renderer that flushes each frame once inside
// synchronized output.
package pitui

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/charmbracelet/colorprofile"
	"github.com/charmbracelet/x/ansi"
	"github.com/mattn/go-isatty"
	"golang.org/x/sys/unix"
)

// ErrNotTerminal is returned by Start when stdin or stdout is not a
// terminal.
var ErrNotTerminal = errors.New("not a terminal")

// Terminal abstracts terminal I/O so the viewer can be tested with a fake
// terminal.
type Terminal interface {
	// Start puts the terminal into raw mode on the alternate screen.
	Start() error

	// Stop restores the terminal to its original state. It is safe to call
	// more than once, and after a failed Start.
	Stop()

	// Read blocks until input bytes are available.
	Read(p []byte) (int, error)

	// Write sends raw bytes to the terminal.
	Write(p []byte) (int, error)

	// WriteString sends a string to the terminal.
	WriteString(s string) (int, error)

	// Columns returns the current terminal width.
	Columns() int

	// Rows returns the current terminal height.
	Rows() int

	// ColorProfile reports the colour support of the output.
	ColorProfile() colorprofile.Profile
}

// ProcessTerminal is a Terminal backed by os.Stdin / os.Stdout.
// Terminal dimensions are cached and refreshed on SIGWINCH. SIGTERM,
// SIGHUP, SIGINT and SIGQUIT restore the terminal and then end the process.
type ProcessTerminal struct {
	in  *os.File
	out *os.File

	origTermios *unix.Termios
	sigCh       chan os.Signal
	done        chan struct{}
	stopOnce    sync.Once

	// exit runs after Stop when a terminating signal arrives. Nil
	// re-raises the signal.
	exit func(os.Signal)

	sizeMu sync.RWMutex
	cols   int
	rows   int
}

func NewProcessTerminal() *ProcessTerminal {
	return &ProcessTerminal{in: os.Stdin, out: os.Stdout}
}

func (t *ProcessTerminal) Start() error {
	if !isatty.IsTerminal(t.in.Fd()) || !isatty.IsTerminal(t.out.Fd()) {
		return ErrNotTerminal
	}

	// Save and set raw mode.
	fd := int(t.in.Fd())
	orig, err := unix.IoctlGetTermios(fd, ioctlReadTermios)
	if err != nil {
		return fmt.Errorf("get termios: %w", err)
	}
	t.origTermios = orig

	raw := *orig
	raw.Iflag &^= unix.BRKINT | unix.ICRNL | unix.INPCK | unix.ISTRIP | unix.IXON
	raw.Oflag &^= unix.OPOST
	raw.Cflag |= unix.CS8
	raw.Lflag &^= unix.ECHO | unix.ICANON | unix.IEXTEN | unix.ISIG
	raw.Cc[unix.VMIN] = 1
	raw.Cc[unix.VTIME] = 0
	if err := unix.IoctlSetTermios(fd, ioctlWriteTermios, &raw); err != nil {
		return fmt.Errorf("set raw: %w", err)
	}

	t.refreshSize()

	t.WriteString(ansi.SetModeAltScreenSaveCursor + ansi.HideCursor + ansi.EraseEntireScreen)

	t.watchSignals()

	return nil
}

// watchSignals keeps the cached size current on SIGWINCH. Terminating
// signals restore the terminal before the process exits.
func (t *ProcessTerminal) watchSignals() {
	t.sigCh = make(chan os.Signal, 1)
	t.done = make(chan struct{})
	signal.Notify(t.sigCh, syscall.SIGWINCH, syscall.SIGTERM, syscall.SIGHUP, syscall.SIGINT, syscall.SIGQUIT)
	go func() {
		for {
			select {
			case sig := <-t.sigCh:
				if sig == syscall.SIGWINCH {
					t.refreshSize()
					continue
				}
				t.Stop()
				exit := t.exit
				if exit == nil {
					exit = reraise
				}
				exit(sig)
				return
			case <-t.done:
				return
			}
		}
	}()
}

// reraise delivers sig again with its default disposition.
func reraise(sig os.Signal) {
	signal.Reset(sig)
	if s, ok := sig.(syscall.Signal); ok {
		_ = syscall.Kill(os.Getpid(), s)
	}
}

func (t *ProcessTerminal) Stop() {
	t.stopOnce.Do(func() {
		if t.sigCh != nil {
			signal.Stop(t.sigCh)
			close(t.done)
		}
		if t.origTermios == nil {
			return
		}
		t.WriteString(ansi.ResetModeSynchronizedOutput + ansi.ShowCursor + ansi.ResetModeAltScreenSaveCursor)
		_ = unix.IoctlSetTermios(int(t.in.Fd()), ioctlWriteTermios, t.origTermios)
	})
}

func (t *ProcessTerminal) Read(p []byte) (int, error) {
	return t.in.Read(p)
}

func (t *ProcessTerminal) Write(p []byte) (int, error) {
	return t.out.Write(p)
}

func (t *ProcessTerminal) WriteString(s string) (int, error) {
	return t.out.WriteString(s)
}

func (t *ProcessTerminal) Columns() int {
	t.sizeMu.RLock()
	c := t.cols
	t.sizeMu.RUnlock()
	if c == 0 {
		return 80
	}
	return c
}

func (t *ProcessTerminal) Rows() int {
	t.sizeMu.RLock()
	r := t.rows
	t.sizeMu.RUnlock()
	if r == 0 {
		return 24
	}
	return r
}

func (t *ProcessTerminal) ColorProfile() colorprofile.Profile {
	return colorprofile.Detect(t.out, os.Environ())
}

// refreshSize queries the kernel for current terminal dimensions and caches
// them. Called once at Start and on every SIGWINCH.
func (t *ProcessTerminal) refreshSize() {
	ws, err := unix.IoctlGetWinsize(int(t.out.Fd()), unix.TIOCGWINSZ)
	if err != nil {
		return
	}
	t.sizeMu.Lock()
	if ws.Col > 0 {
		t.cols = int(ws.Col)
	}
	if ws.Row > 0 {
		t.rows = int(ws.Row)
	}
	t.sizeMu.Unlock()
}
