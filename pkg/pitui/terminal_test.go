package pitui

import (
	"io"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/charmbracelet/x/ansi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestTerminatingSignalRestoresTerminal(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()

	exited := make(chan os.Signal, 1)
	term := &ProcessTerminal{
		in:          r,
		out:         w,
		origTermios: &unix.Termios{},
		exit:        func(sig os.Signal) { exited <- sig },
	}
	term.watchSignals()

	term.sigCh <- syscall.SIGWINCH
	term.sigCh <- syscall.SIGTERM

	select {
	case sig := <-exited:
		assert.Equal(t, syscall.SIGTERM, sig)
	case <-time.After(5 * time.Second):
		t.Fatal("terminal did not exit on SIGTERM")
	}

	require.NoError(t, w.Close())
	out, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Contains(t, string(out), ansi.ShowCursor)
	assert.Contains(t, string(out), ansi.ResetModeAltScreenSaveCursor)

	// a second Stop is a no-op
	term.Stop()
}

func TestStopWithoutStart(t *testing.T) {
	term := NewProcessTerminal()
	assert.NotPanics(t, term.Stop)
}
