//go:build linux

package tui

import (
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/Gurux/gxhexterm-go"
	"github.com/Gurux/gxhexterm-go/controller"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// openPty returns the master side of a new pseudo terminal and the path of its slave.
func openPty(t *testing.T) (*os.File, string) {
	t.Helper()
	master, err := os.OpenFile("/dev/ptmx", os.O_RDWR|unix.O_NOCTTY, 0)
	if err != nil {
		t.Skipf("pseudo terminals are not available: %v", err)
	}
	fd := int(master.Fd())
	if err := unix.IoctlSetPointerInt(fd, unix.TIOCSPTLCK, 0); err != nil {
		master.Close()
		t.Skipf("unlockpt failed: %v", err)
	}
	n, err := unix.IoctlGetUint32(fd, unix.TIOCGPTN)
	if err != nil {
		master.Close()
		t.Skipf("ptsname failed: %v", err)
	}
	t.Cleanup(func() { master.Close() })
	return master, fmt.Sprintf("/dev/pts/%d", n)
}

// flood writes small frames to master until the test ends.
func flood(t *testing.T, master *os.File) {
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		frame := []byte{0x01, 0x03, 0x00, 0x00, 0x00, 0x01, 0x84, 0x0A}
		for {
			select {
			case <-stop:
				return
			default:
			}
			_ = master.SetWriteDeadline(time.Now().Add(100 * time.Millisecond))
			_, _ = master.Write(frame)
			time.Sleep(time.Millisecond)
		}
	}()
	t.Cleanup(func() {
		close(stop)
		<-done
	})
}

func newPtyModel(t *testing.T) (Model, *gxhexterm.GXHexSession, *os.File) {
	t.Helper()
	master, name := openPty(t)
	session := gxhexterm.NewGXHexSession()
	t.Cleanup(func() { session.Close() })
	ctl := controller.New(session, controller.WithMaxEntries(50))
	m := NewModel(ctl, WithPortLister(func() ([]string, error) { return []string{name}, nil }))
	return m, session, master
}

func waitForTraffic(t *testing.T, session *gxhexterm.GXHexSession) {
	t.Helper()
	start := session.GetBytesReceived()
	require.Eventually(t, func() bool {
		return session.IsOpen() && session.GetBytesReceived() > start+256
	}, loopTimeout, 5*time.Millisecond)
}

func TestBoundProgramDisconnectUnderTraffic(t *testing.T) {
	m, session, master := newPtyModel(t)
	p, final := startProgram(t, m, session)
	flood(t, master)

	for i := 0; i < 3; i++ {
		sendWithin(t, p, tea.KeyMsg{Type: tea.KeyCtrlO})
		waitForTraffic(t, session)

		sendWithin(t, p, tea.KeyMsg{Type: tea.KeyCtrlO})
		sendWithin(t, p, tea.WindowSizeMsg{Width: 100, Height: 30})
		require.Eventually(t, func() bool { return !session.IsOpen() }, loopTimeout, 5*time.Millisecond)
	}

	p.Quit()
	fm := waitFinal(t, final)
	assert.Empty(t, fm.Alert())
	assert.False(t, session.IsOpen())
}

func TestBoundProgramQuitUnderTraffic(t *testing.T) {
	m, session, master := newPtyModel(t)
	p, final := startProgram(t, m, session)
	flood(t, master)

	sendWithin(t, p, tea.KeyMsg{Type: tea.KeyCtrlO})
	waitForTraffic(t, session)

	sendWithin(t, p, tea.KeyMsg{Type: tea.KeyCtrlC})
	waitFinal(t, final)
	assert.False(t, session.IsOpen())
}
