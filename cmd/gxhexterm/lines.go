package main

import (
	"bufio"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Gurux/gxhexterm-go/controller"
	"github.com/Gurux/gxhexterm-go/tui"
)

// runLines sends every input line as hex and writes the log to out.
// Session events are handled on this goroutine, like the UI loop does.
// After the input ends it keeps receiving for cfg.wait and then shuts down.
func runLines(ctx context.Context, ctl *controller.Controller, media tui.Media, cfg lineIO) error {
	events := make(chan func(), 64)
	done := make(chan struct{})
	// The reader goroutine must not block on a closed loop, or Close would wait forever.
	post := func(fn func()) {
		select {
		case events <- fn:
		case <-done:
		}
	}
	media.SetOnReceived(controller.ReceivedHandler(func(data []byte) {
		post(func() { ctl.Received(data) })
	}))
	media.SetOnError(controller.ErrorHandler(func(err error) {
		post(func() { ctl.ReceiveFailed(err) })
	}))
	defer func() {
		close(done)
		ctl.Shutdown()
	}()

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(cfg.in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-done:
				return
			}
		}
		if err := sc.Err(); err != nil {
			cfg.log.Warn("stdin read failed", "error", err)
		}
	}()

	flush := func() {
		for _, e := range ctl.Log().Entries() {
			fmt.Fprintln(cfg.out, e.String())
		}
		ctl.Clear()
	}
	flush()

	var drain <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			flush()
			return nil
		case fn := <-events:
			fn()
		case <-drain:
			flush()
			return nil
		case line, ok := <-lines:
			if !ok {
				lines = nil
				timer := time.NewTimer(cfg.wait)
				defer timer.Stop()
				drain = timer.C
				continue
			}
			if strings.TrimSpace(line) == "" {
				continue
			}
			if err := ctl.Send(line); err != nil {
				fmt.Fprintf(cfg.errs, "error: %v\n", err)
			}
		}
		flush()
	}
}
