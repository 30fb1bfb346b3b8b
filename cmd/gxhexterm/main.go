package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/Gurux/gxcommon-go"
	"github.com/Gurux/gxhexterm-go"
	"github.com/Gurux/gxhexterm-go/controller"
	"github.com/Gurux/gxhexterm-go/internal/logging"
	"github.com/Gurux/gxhexterm-go/internal/settings"
	"github.com/Gurux/gxhexterm-go/tui"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "gxhexterm: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	port       string
	baudRate   int
	crc        bool
	ascii      bool
	trace      string
	lang       string
	logFile    string
	logLevel   string
	config     string
	maxEntries int
	wait       time.Duration
}

func newRootCmd() *cobra.Command {
	var o options

	cmd := &cobra.Command{
		Use:   "gxhexterm",
		Short: "Send and receive hex bytes over a serial port",
		Long: "gxhexterm opens a serial port with 8-N-1 framing and logs sent and received bytes as hex.\n" +
			"It runs an interactive terminal UI when stdin is a terminal. Otherwise every stdin line\n" +
			"is sent as hex and the log is written to stdout.",
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, o)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&o.port, "port", "S", "", "serial port name (default: last used)")
	flags.IntVarP(&o.baudRate, "baud", "b", int(gxhexterm.DefaultBaudRate), "baud rate")
	flags.BoolVar(&o.crc, "crc", false, "append CRC-16/MODBUS to sent frames")
	flags.BoolVar(&o.ascii, "ascii", false, "also log received bytes as ASCII")
	flags.StringVar(&o.trace, "trace", "", "serial trace level (Off, Error, Warning, Info, Verbose)")
	flags.StringVar(&o.lang, "lang", "", "language of messages (en, de, fi, sv)")
	flags.StringVar(&o.logFile, "log-file", filepath.Join(os.TempDir(), "gxhexterm.log"), "diagnostic log file")
	flags.StringVar(&o.logLevel, "log-level", "info", "diagnostic log level (debug, info, warn, error)")
	flags.StringVar(&o.config, "config", "", "settings file (default: user configuration directory)")
	flags.IntVar(&o.maxEntries, "max-entries", 0, "keep at most this many log entries (0 means no limit)")
	flags.DurationVar(&o.wait, "wait", 500*time.Millisecond, "line mode: time to keep receiving after stdin ends")

	cmd.AddCommand(newPortsCmd(gxhexterm.GetPortNames))
	return cmd
}

func newPortsCmd(list func() ([]string, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "ports",
		Short: "List available serial ports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			names, err := list()
			if err != nil {
				return fmt.Errorf("list serial ports: %w", err)
			}
			if len(names) == 0 {
				fmt.Fprintln(cmd.ErrOrStderr(), "no serial ports found")
				return nil
			}
			for _, it := range names {
				fmt.Fprintln(cmd.OutOrStdout(), it)
			}
			return nil
		},
	}
}

func run(cmd *cobra.Command, o options) error {
	level, err := logging.ParseLevel(o.logLevel)
	if err != nil {
		return fmt.Errorf("invalid --log-level value: %w", err)
	}
	logger, closer, err := logging.Open(o.logFile, level)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer closer.Close()

	session := gxhexterm.NewGXHexSession()
	tag := language.AmericanEnglish
	if o.lang != "" {
		if tag, err = language.Parse(o.lang); err != nil {
			return fmt.Errorf("invalid --lang value: %w", err)
		}
		session.Localize(tag)
	}
	if o.trace != "" {
		tl, err := gxcommon.TraceLevelParse(o.trace)
		if err != nil {
			return fmt.Errorf("invalid --trace value: %w", err)
		}
		if err := session.SetTrace(tl); err != nil {
			return err
		}
	}
	session.SetOnTrace(logging.TraceHandler(logger))
	session.SetOnMediaStateChange(logging.StateHandler(logger))

	path := o.config
	if path == "" {
		if path, err = settings.Path(); err != nil {
			logger.Warn("no settings directory", "error", err)
		}
	}
	if path != "" {
		if err := settings.Load(path, session); err != nil {
			logger.Warn("settings not loaded", "path", path, "error", err)
		}
	}
	port := session.GetName()
	if cmd.Flags().Changed("port") || port == "" {
		port = o.port
	}
	baudRate := session.BaudRate()
	if cmd.Flags().Changed("baud") || !gxhexterm.IsStandardBaudRate(baudRate) {
		baudRate = gxcommon.BaudRate(o.baudRate)
	}

	ctl := controller.New(session,
		controller.WithCRC(o.crc),
		controller.WithASCII(o.ascii),
		controller.WithLogger(logger),
		controller.WithMaxEntries(o.maxEntries),
		controller.WithLanguage(tag),
	)
	defer ctl.Shutdown()

	save := func(string, gxcommon.BaudRate) {
		if path == "" {
			return
		}
		if err := settings.Save(path, session); err != nil {
			logger.Warn("settings not saved", "path", path, "error", err)
		}
	}

	if f, ok := cmd.InOrStdin().(*os.File); ok && isTerminal(f.Fd()) {
		m := tui.NewModel(ctl,
			tui.WithPort(port),
			tui.WithBaudRate(baudRate),
			tui.WithConnectHook(save),
		)
		p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())
		stop := tui.Bind(p, session)
		_, err := p.Run()
		stop()
		return err
	}

	if err := ctl.Connect(port, baudRate); err != nil {
		return err
	}
	save(port, baudRate)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()
	return runLines(ctx, ctl, session, lineIO{
		in:   cmd.InOrStdin(),
		out:  cmd.OutOrStdout(),
		errs: cmd.ErrOrStderr(),
		wait: o.wait,
		log:  logger,
	})
}

func isTerminal(fd uintptr) bool {
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

type lineIO struct {
	in   io.Reader
	out  io.Writer
	errs io.Writer
	wait time.Duration
	log  *slog.Logger
}

