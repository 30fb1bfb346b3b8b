// Package controller turns user actions into serial session calls and
// records every action in a timestamped log.
//
// All Controller methods must be called from a single goroutine, the UI
// context. Session callbacks run on the reader goroutine and must be posted
// to the UI context with ReceivedHandler and ErrorHandler.
package controller

// --------------------------------------------------------------------------
//
//	Gurux Ltd
//
// Filename:        $HeadURL$
//
// Version:         $Revision$,
//
//	$Date$
//	$Author$
//
// # Copyright (c) Gurux Ltd
//
// ---------------------------------------------------------------------------
//
//	DESCRIPTION
//
// This file is a part of Gurux Device Framework.
//
// Gurux Device Framework is Open Source software; you can redistribute it
// and/or modify it under the terms of the GNU General Public License
// as published by the Free Software Foundation; version 2 of the License.
// Gurux Device Framework is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
// See the GNU General Public License for more details.
//
// More information of Gurux products: https://www.gurux.org
//
// This code is licensed under the GNU General Public License v2.
// Full text may be retrieved at http://www.gnu.org/licenses/gpl-2.0.txt
// ---------------------------------------------------------------------------

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/Gurux/gxcommon-go"
	"github.com/Gurux/gxhexterm-go"
	"github.com/Gurux/gxhexterm-go/hexcodec"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var (
	// ErrNoPortSelected is returned by Connect when no port name is given.
	ErrNoPortSelected = errors.New("no serial port selected")
	// ErrInvalidInput is returned by Send when the text holds no hex digits.
	ErrInvalidInput = errors.New("no valid hexadecimal values")
)

// Transport is the serial session used by the controller.
type Transport interface {
	Connect(port string, baudRate gxcommon.BaudRate) error
	SendBytes(data []byte) error
	Close() error
	IsOpen() bool
}

var _ Transport = (*gxhexterm.GXHexSession)(nil)

// Option configures a Controller.
type Option func(*Controller)

// WithCRC appends a CRC-16/MODBUS to every sent frame.
func WithCRC(on bool) Option {
	return func(c *Controller) {
		c.crc = on
	}
}

// WithASCII logs a printable rendering after every received entry.
func WithASCII(on bool) Option {
	return func(c *Controller) {
		c.ascii = on
	}
}

// WithLogger sets the diagnostic logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithClock replaces time.Now for log timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
	}
}

// WithMaxEntries bounds the log. Zero keeps every entry.
func WithMaxEntries(n int) Option {
	return func(c *Controller) {
		c.log = NewLog(n)
	}
}

// WithLanguage selects the language of status entries.
func WithLanguage(tag language.Tag) Option {
	return func(c *Controller) {
		c.p = message.NewPrinter(tag)
	}
}

// Controller wires user actions to a Transport and the hex codec.
type Controller struct {
	t      Transport
	log    *Log
	crc    bool
	ascii  bool
	now    func() time.Time
	logger *slog.Logger
	p      *message.Printer
}

// New returns a controller for t.
func New(t Transport, opts ...Option) *Controller {
	c := &Controller{
		t:      t,
		log:    NewLog(0),
		now:    time.Now,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		p:      message.NewPrinter(language.AmericanEnglish),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Log returns the activity log.
func (c *Controller) Log() *Log {
	return c.log
}

// Connected reports whether the session is open.
func (c *Controller) Connected() bool {
	return c.t.IsOpen()
}

// CRC reports whether a CRC is appended to sent frames.
func (c *Controller) CRC() bool {
	return c.crc
}

// SetCRC enables or disables the CRC.
func (c *Controller) SetCRC(on bool) {
	c.crc = on
}

// Connect opens port at baudRate and logs a status entry.
// Nothing changes when the port name is empty or the open fails.
func (c *Controller) Connect(port string, baudRate gxcommon.BaudRate) error {
	port = strings.TrimSpace(port)
	if port == "" {
		return ErrNoPortSelected
	}
	if !gxhexterm.IsStandardBaudRate(baudRate) {
		return fmt.Errorf("%w: %d", gxhexterm.ErrInvalidBaudRate, baudRate)
	}
	if err := c.t.Connect(port, baudRate); err != nil {
		c.logger.Warn("connect failed", "port", port, "baud", int(baudRate), "error", err)
		return err
	}
	c.logger.Info("connected", "port", port, "baud", int(baudRate))
	c.status(c.p.Sprintf("ctl.connected", port, int(baudRate)))
	return nil
}

// Disconnect closes the session. It always succeeds.
func (c *Controller) Disconnect() {
	_ = c.t.Close()
	c.logger.Info("disconnected")
	c.status(c.p.Sprintf("ctl.disconnected"))
}

// Toggle connects when closed and disconnects when open.
func (c *Controller) Toggle(port string, baudRate gxcommon.BaudRate) error {
	if c.t.IsOpen() {
		c.Disconnect()
		return nil
	}
	return c.Connect(port, baudRate)
}

// Send parses text as hex and writes the bytes.
// It fails with gxhexterm.ErrNotConnected before parsing when the session is
// closed and with ErrInvalidInput when text holds no hex digits; in both
// cases the transport is not called. Transport errors are returned as is.
func (c *Controller) Send(text string) error {
	if !c.t.IsOpen() {
		return gxhexterm.ErrNotConnected
	}
	data := hexcodec.Parse(text)
	if len(data) == 0 {
		return ErrInvalidInput
	}
	if c.crc {
		data = hexcodec.AppendCRC16(data)
	}
	if err := c.t.SendBytes(data); err != nil {
		c.logger.Error("send failed", "bytes", len(data), "error", err)
		return err
	}
	c.append(DirectionSent, hexcodec.Format(data))
	return nil
}

// Received logs data read from the port. It must run on the UI context.
func (c *Controller) Received(data []byte) {
	if len(data) == 0 {
		return
	}
	c.append(DirectionReceived, hexcodec.Format(data))
	if c.ascii {
		c.append(DirectionReceivedASCII, hexcodec.FormatASCII(data))
	}
}

// ReceiveFailed logs a read failure reported by the session.
func (c *Controller) ReceiveFailed(err error) {
	c.logger.Error("receive failed", "error", err)
	c.status(c.p.Sprintf("ctl.receive_failed", err))
}

// Clear empties the log. The session is not touched.
func (c *Controller) Clear() {
	c.log.Clear()
}

// Shutdown closes the session if it is open. Errors are ignored.
func (c *Controller) Shutdown() {
	if c.t.IsOpen() {
		_ = c.t.Close()
		c.logger.Info("closed on shutdown")
	}
}

func (c *Controller) status(text string) {
	c.append(DirectionStatus, text)
}

func (c *Controller) append(d Direction, payload string) {
	c.log.Append(Entry{Time: c.now(), Direction: d, Payload: payload})
}

//nolint:errcheck
func init() {
	message.SetString(language.AmericanEnglish, "ctl.connected", "Connected to %s at %d baud")
	message.SetString(language.AmericanEnglish, "ctl.disconnected", "Disconnected")
	message.SetString(language.AmericanEnglish, "ctl.receive_failed", "Error receiving data: %v")

	message.SetString(language.German, "ctl.connected", "Verbunden mit %s, %d Baud")
	message.SetString(language.German, "ctl.disconnected", "Getrennt")
	message.SetString(language.German, "ctl.receive_failed", "Fehler beim Empfangen: %v")

	message.SetString(language.Finnish, "ctl.connected", "Yhdistetty %s, %d baudia")
	message.SetString(language.Finnish, "ctl.disconnected", "Yhteys katkaistu")
	message.SetString(language.Finnish, "ctl.receive_failed", "Vastaanotto epäonnistui: %v")

	message.SetString(language.Swedish, "ctl.connected", "Ansluten till %s, %d baud")
	message.SetString(language.Swedish, "ctl.disconnected", "Frånkopplad")
	message.SetString(language.Swedish, "ctl.receive_failed", "Fel vid mottagning: %v")
}
