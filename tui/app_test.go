package tui

import (
	"errors"
	"testing"
	"time"

	"github.com/Gurux/gxcommon-go"
	"github.com/Gurux/gxhexterm-go"
	"github.com/Gurux/gxhexterm-go/controller"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTransport struct {
	open     bool
	port     string
	baudRate gxcommon.BaudRate
	sent     [][]byte
	closed   int
	failOpen error
}

func (f *fakeTransport) Connect(port string, baudRate gxcommon.BaudRate) error {
	if f.failOpen != nil {
		return f.failOpen
	}
	f.open, f.port, f.baudRate = true, port, baudRate
	return nil
}

func (f *fakeTransport) SendBytes(data []byte) error {
	f.sent = append(f.sent, data)
	return nil
}

func (f *fakeTransport) Close() error {
	if f.open {
		f.closed++
	}
	f.open = false
	return nil
}

func (f *fakeTransport) IsOpen() bool {
	return f.open
}

func newTestModel(t *testing.T, ports []string, opts ...Option) (Model, *fakeTransport) {
	t.Helper()
	ft := &fakeTransport{}
	clock := func() time.Time { return time.Date(2024, 5, 6, 13, 14, 15, 678e6, time.UTC) }
	ctl := controller.New(ft, controller.WithClock(clock))
	opts = append([]Option{WithPortLister(func() ([]string, error) { return ports, nil })}, opts...)
	return NewModel(ctl, opts...), ft
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "left":
		return tea.KeyMsg{Type: tea.KeyLeft}
	case "right":
		return tea.KeyMsg{Type: tea.KeyRight}
	case "ctrl+o":
		return tea.KeyMsg{Type: tea.KeyCtrlO}
	case "ctrl+l":
		return tea.KeyMsg{Type: tea.KeyCtrlL}
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func update(t *testing.T, m Model, msgs ...tea.Msg) Model {
	t.Helper()
	for _, msg := range msgs {
		next, _ := m.Update(msg)
		var ok bool
		m, ok = next.(Model)
		require.True(t, ok)
	}
	return m
}

func TestDefaults(t *testing.T) {
	m, _ := newTestModel(t, []string{"/dev/ttyS0", "/dev/ttyUSB0"})
	assert.Equal(t, "/dev/ttyS0", m.Port())
	assert.Equal(t, gxhexterm.DefaultBaudRate, m.BaudRate())
	assert.Contains(t, m.View(), "Disconnected")
}

func TestPreferredPort(t *testing.T) {
	m, _ := newTestModel(t, []string{"/dev/ttyS0"}, WithPort("/dev/ttyACM3"), WithBaudRate(9600))
	assert.Equal(t, "/dev/ttyACM3", m.Port())
	assert.Equal(t, gxcommon.BaudRate(9600), m.BaudRate())

	m, _ = newTestModel(t, nil, WithBaudRate(14400))
	assert.Equal(t, gxhexterm.DefaultBaudRate, m.BaudRate())
	assert.Equal(t, "", m.Port())
}

func TestConnectAndSend(t *testing.T) {
	var saved string
	m, ft := newTestModel(t, []string{"/dev/ttyUSB0"}, WithConnectHook(func(port string, br gxcommon.BaudRate) {
		saved = port
	}))

	m = update(t, m, key("ctrl+o"))
	require.True(t, ft.open)
	assert.Equal(t, "/dev/ttyUSB0", ft.port)
	assert.Equal(t, gxcommon.BaudRate(115200), ft.baudRate)
	assert.Equal(t, "/dev/ttyUSB0", saved)
	assert.Contains(t, m.View(), "Connected to /dev/ttyUSB0 at 115200 baud")

	m = update(t, m, key("01 0a"), key("enter"))
	require.Len(t, ft.sent, 1)
	assert.Equal(t, []byte{0x01, 0x0A}, ft.sent[0])
	assert.Empty(t, m.Alert())
	assert.Contains(t, m.View(), "[13:14:15.678] TX: 01 0A")

	m = update(t, m, ReceivedMsg{Data: []byte{0xFF, 0x00}})
	assert.Contains(t, m.View(), "RX: FF 00")

	m = update(t, m, ErrorMsg{Err: errors.New("boom")})
	assert.Contains(t, m.View(), "Error receiving data: boom")

	m = update(t, m, key("ctrl+l"))
	assert.Equal(t, 0, m.ctl.Log().Len())
	assert.True(t, ft.open, "clear must not close the session")

	m = update(t, m, key("ctrl+o"))
	assert.False(t, ft.open)
	assert.Contains(t, m.View(), "Disconnected")
}

func TestAlerts(t *testing.T) {
	tests := []struct {
		name     string
		ports    []string
		keys     []string
		expected string
	}{
		{name: "No port", ports: nil, keys: []string{"ctrl+o"}, expected: "no serial port selected"},
		{name: "Send while closed", ports: []string{"COM1"}, keys: []string{"01", "enter"}, expected: "not connected"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, ft := newTestModel(t, tt.ports)
			for _, k := range tt.keys {
				m = update(t, m, key(k))
			}
			assert.Contains(t, m.Alert(), tt.expected)
			assert.Contains(t, m.View(), tt.expected)
			assert.Empty(t, ft.sent)

			m = update(t, m, key("x"))
			assert.Empty(t, m.Alert())
		})
	}
}

func TestInvalidInputAlert(t *testing.T) {
	m, ft := newTestModel(t, []string{"COM1"})
	m = update(t, m, key("ctrl+o"), key("zz"), key("enter"))
	assert.Contains(t, m.Alert(), "no valid hexadecimal values")
	assert.Empty(t, ft.sent)
}

func TestConnectFailure(t *testing.T) {
	called := false
	m, ft := newTestModel(t, []string{"COM9"}, WithConnectHook(func(string, gxcommon.BaudRate) { called = true }))
	ft.failOpen = gxhexterm.ErrPortUnavailable
	m = update(t, m, key("ctrl+o"))
	assert.Contains(t, m.Alert(), "serial port unavailable")
	assert.False(t, called)
	assert.Equal(t, 0, m.ctl.Log().Len())
}

func TestSelectors(t *testing.T) {
	m, _ := newTestModel(t, []string{"COM1", "COM2"})

	// Focus moves input -> port -> baud.
	m = update(t, m, key("tab"), key("right"))
	assert.Equal(t, "COM2", m.Port())
	m = update(t, m, key("right"))
	assert.Equal(t, "COM2", m.Port())

	m = update(t, m, key("tab"), key("left"))
	assert.Equal(t, gxcommon.BaudRate(57600), m.BaudRate())
	m = update(t, m, key("right"), key("right"))
	assert.Equal(t, gxcommon.BaudRate(115200), m.BaudRate())
}

func TestSelectorsLockedWhileConnected(t *testing.T) {
	m, ft := newTestModel(t, []string{"COM1", "COM2"})
	m = update(t, m, key("ctrl+o"))
	require.True(t, ft.open)

	m = update(t, m, key("tab"), key("right"))
	assert.Equal(t, "COM1", m.Port())
	m = update(t, m, key("tab"), key("left"))
	assert.Equal(t, gxhexterm.DefaultBaudRate, m.BaudRate())
	assert.Contains(t, m.View(), "Port: COM1")
	assert.Contains(t, m.View(), "Baud: 115200")

	// Enter on a selector still disconnects, which unlocks it.
	m = update(t, m, key("enter"))
	assert.False(t, ft.open)
	m = update(t, m, key("right"))
	assert.Equal(t, gxcommon.BaudRate(115200), m.BaudRate(), "already the last baud rate")
	m = update(t, m, key("left"))
	assert.Equal(t, gxcommon.BaudRate(57600), m.BaudRate())
}

func TestRefreshKeepsLivePort(t *testing.T) {
	m, ft := newTestModel(t, []string{"COM1", "COM2"})
	m = update(t, m, key("tab"), key("right"), key("ctrl+o"))
	require.True(t, ft.open)
	assert.Equal(t, "COM2", ft.port)

	m = update(t, m, portsMsg{ports: []string{"COM1"}})
	assert.Equal(t, "COM2", m.Port())
	assert.Equal(t, []string{"COM2", "COM1"}, m.ports)
}

func TestRefreshPorts(t *testing.T) {
	ports := []string{"COM1"}
	m, _ := newTestModel(t, nil, WithPortLister(func() ([]string, error) { return ports, nil }))
	assert.Equal(t, "COM1", m.Port())

	ports = []string{"COM3", "COM1"}
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlR})
	require.NotNil(t, cmd)
	m = update(t, m, cmd())
	assert.Equal(t, "COM1", m.Port(), "selection survives a refresh")
	assert.Equal(t, []string{"COM3", "COM1"}, m.ports)

	m = update(t, m, portsMsg{err: errors.New("registry unavailable")})
	assert.Equal(t, "registry unavailable", m.Alert())
}

func TestQuitShutsDown(t *testing.T) {
	m, ft := newTestModel(t, []string{"COM1"})
	m = update(t, m, key("ctrl+o"))
	require.True(t, ft.open)

	next, cmd := m.Update(key("ctrl+c"))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())
	assert.False(t, ft.open)
	assert.Equal(t, 1, ft.closed)
	assert.Empty(t, next.View())
}

func TestWindowSize(t *testing.T) {
	m, _ := newTestModel(t, nil)
	m = update(t, m, tea.WindowSizeMsg{Width: 100, Height: 30})
	assert.Equal(t, 25, m.log.Height)
	assert.Equal(t, 100, m.log.Width)

	m = update(t, m, tea.WindowSizeMsg{Width: 20, Height: 3})
	assert.Equal(t, 1, m.log.Height)
}
