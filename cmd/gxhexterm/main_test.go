package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Gurux/gxcommon-go"
	"github.com/Gurux/gxhexterm-go"
	"github.com/Gurux/gxhexterm-go/controller"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPortsCommand(t *testing.T) {
	tests := []struct {
		name    string
		ports   []string
		err     error
		out     string
		errOut  string
		wantErr bool
	}{
		{name: "Ports found", ports: []string{"/dev/ttyS0", "/dev/ttyUSB0"}, out: "/dev/ttyS0\n/dev/ttyUSB0\n"},
		{name: "No ports", errOut: "no serial ports found\n"},
		{name: "Lister fails", err: errors.New("registry unavailable"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := newPortsCmd(func() ([]string, error) { return tt.ports, tt.err })
			var out, errOut bytes.Buffer
			cmd.SetOut(&out)
			cmd.SetErr(&errOut)
			cmd.SetArgs(nil)
			err := cmd.Execute()
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "registry unavailable")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.out, out.String())
			assert.Equal(t, tt.errOut, errOut.String())
		})
	}
}

func executeRoot(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	dir := t.TempDir()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetIn(strings.NewReader(stdin))
	base := []string{
		"--log-file", filepath.Join(dir, "gxhexterm.log"),
		"--config", filepath.Join(dir, "settings.xml"),
	}
	cmd.SetArgs(append(base, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestRootCommandErrors(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "ttyMissing0")
	tests := []struct {
		name     string
		args     []string
		expected error
		contains string
	}{
		{name: "No port", args: nil, expected: controller.ErrNoPortSelected},
		{name: "Non standard baud", args: []string{"-S", missing, "-b", "14400"}, expected: gxhexterm.ErrInvalidBaudRate},
		{name: "Missing port", args: []string{"--port", missing}, expected: gxhexterm.ErrPortUnavailable, contains: missing},
		{name: "Bad language", args: []string{"--port", missing, "--lang", "!!"}, contains: "invalid --lang value"},
		{name: "Bad log level", args: []string{"--log-level", "loud"}, contains: "invalid --log-level value"},
		{name: "Bad trace level", args: []string{"--trace", "Loudest"}, contains: "invalid --trace value"},
		{name: "Extra argument", args: []string{"COM1"}, contains: "unknown command"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := executeRoot(t, "01 02\n", tt.args...)
			require.Error(t, err)
			if tt.expected != nil {
				assert.ErrorIs(t, err, tt.expected)
			}
			if tt.contains != "" {
				assert.Contains(t, err.Error(), tt.contains)
			}
		})
	}
}

func TestRootCommandUsesSavedPort(t *testing.T) {
	dir := t.TempDir()
	missing := filepath.Join(dir, "ttySaved0")
	config := filepath.Join(dir, "settings.xml")
	require.NoError(t, os.WriteFile(config, []byte("<Port>"+missing+"</Port>\n<Bps>9600</Bps>\n"), 0o644))

	cmd := newRootCmd()
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetIn(strings.NewReader(""))
	cmd.SetArgs([]string{"--config", config, "--log-file", filepath.Join(dir, "gxhexterm.log")})
	err := cmd.Execute()
	require.ErrorIs(t, err, gxhexterm.ErrPortUnavailable)
	assert.Contains(t, err.Error(), missing)

	log, err := os.ReadFile(filepath.Join(dir, "gxhexterm.log"))
	require.NoError(t, err)
	assert.Contains(t, string(log), `"baud":9600`)
}

// echoMedia answers every write with the same bytes.
type echoMedia struct {
	mu        sync.Mutex
	open      bool
	sent      [][]byte
	onReceive gxcommon.ReceivedEventHandler
	onErr     gxcommon.ErrorEventHandler
}

func (e *echoMedia) Connect(port string, baudRate gxcommon.BaudRate) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.open = true
	return nil
}

func (e *echoMedia) SendBytes(data []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sent = append(e.sent, data)
	cb := e.onReceive
	reply := append([]byte(nil), data...)
	go cb(nil, *gxcommon.NewReceiveEventArgs(reply, "echo"))
	return nil
}

func (e *echoMedia) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.open = false
	return nil
}

func (e *echoMedia) IsOpen() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.open
}

func (e *echoMedia) SetOnReceived(value gxcommon.ReceivedEventHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onReceive = value
}

func (e *echoMedia) SetOnError(value gxcommon.ErrorEventHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onErr = value
}

func (e *echoMedia) fail(err error) {
	e.mu.Lock()
	cb := e.onErr
	e.mu.Unlock()
	cb(nil, err)
}

func newLineController(t *testing.T, media *echoMedia, opts ...controller.Option) *controller.Controller {
	t.Helper()
	clock := func() time.Time { return time.Date(2024, 5, 6, 13, 14, 15, 678e6, time.UTC) }
	ctl := controller.New(media, append([]controller.Option{controller.WithClock(clock)}, opts...)...)
	require.NoError(t, ctl.Connect("COM1", 115200))
	return ctl
}

func TestRunLines(t *testing.T) {
	media := &echoMedia{}
	ctl := newLineController(t, media, controller.WithASCII(true))

	var out, errOut bytes.Buffer
	err := runLines(context.Background(), ctl, media, lineIO{
		in:   strings.NewReader("41 42\n\n  \nzz\n"),
		out:  &out,
		errs: &errOut,
		wait: 300 * time.Millisecond,
		log:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)

	assert.Equal(t, strings.Join([]string{
		"[13:14:15.678] Connected to COM1 at 115200 baud",
		"[13:14:15.678] TX: 41 42",
		"[13:14:15.678] RX: 41 42",
		"[13:14:15.678] RX (ASCII): AB",
		"",
	}, "\n"), out.String())
	assert.Equal(t, "error: no valid hexadecimal values\n", errOut.String())
	assert.Len(t, media.sent, 1)
	assert.False(t, media.IsOpen(), "the session is closed when the input ends")
	assert.Equal(t, 0, ctl.Log().Len())
}

func TestRunLinesStopsOnCancel(t *testing.T) {
	media := &echoMedia{}
	ctl := newLineController(t, media)

	pr, pw := io.Pipe()
	defer pw.Close()
	ctx, cancel := context.WithCancel(context.Background())

	var out bytes.Buffer
	done := make(chan error, 1)
	go func() {
		done <- runLines(ctx, ctl, media, lineIO{
			in:   pr,
			out:  &out,
			errs: io.Discard,
			wait: time.Second,
			log:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		})
	}()

	require.Eventually(t, func() bool {
		media.mu.Lock()
		defer media.mu.Unlock()
		return media.onErr != nil
	}, 2*time.Second, 5*time.Millisecond)
	media.fail(errors.New("device removed"))
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("runLines did not stop on cancel")
	}
	assert.Contains(t, out.String(), "Connected to COM1 at 115200 baud")
	assert.False(t, media.IsOpen())
}
