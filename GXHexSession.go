package gxhexterm

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
	"bytes"
	"encoding/binary"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Gurux/gxcommon-go"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// DefaultBaudRate is the baud rate selected when nothing else is configured.
const DefaultBaudRate gxcommon.BaudRate = 115200

// BaudRates lists the baud rates offered to the user.
var BaudRates = []gxcommon.BaudRate{1200, 2400, 4800, 9600, 19200, 38400, 57600, 115200}

// IsStandardBaudRate reports whether value is one of BaudRates.
func IsStandardBaudRate(value gxcommon.BaudRate) bool {
	for _, it := range BaudRates {
		if it == value {
			return true
		}
	}
	return false
}

// GXHexSession is a serial port session with fixed 8-N-1 framing and no flow control.
// It is created closed. Received data is delivered on a background goroutine.
type GXHexSession struct {
	Port     string
	baudRate gxcommon.BaudRate
	eop      any
	// The trace level specifies which types of trace messages are emitted.
	traceLevel gxcommon.TraceLevel

	mu   sync.RWMutex
	wg   sync.WaitGroup
	open atomic.Bool
	// Set while Close releases the handle. Connect and Open are refused meanwhile.
	closing bool
	// Closed when the reader goroutine must stop. Recreated on every open.
	stop        chan struct{}
	synchronous bool

	bytesSent     atomic.Uint64
	bytesReceived atomic.Uint64

	//Called when the Media state is changed.
	onState gxcommon.MediaStateHandler

	//Called when the new data is received.
	onReceive gxcommon.ReceivedEventHandler

	//Called when the Media is sending or receiving data.
	onTrace gxcommon.TraceEventHandler

	//Called when the reader fails.
	onErr gxcommon.ErrorEventHandler

	received *receiveBuffer

	s port
	// Printer for localized messages.
	p *message.Printer
}

// NewGXHexSession creates a closed session. Port and baud rate are given to Connect.
func NewGXHexSession() *GXHexSession {
	g := &GXHexSession{baudRate: DefaultBaudRate, received: newReceiveBuffer()}
	g.Localize(language.AmericanEnglish)
	return g
}

// GetPortNames returns the names of available serial ports.
func GetPortNames() ([]string, error) {
	return getPortNames()
}

// BaudRate returns the used baud rate.
func (g *GXHexSession) BaudRate() gxcommon.BaudRate {
	return g.baudRate
}

// SetBaudRate sets the baud rate used by the next Open.
func (g *GXHexSession) SetBaudRate(value gxcommon.BaudRate) error {
	if g.IsOpen() {
		return ErrAlreadyOpen
	}
	g.baudRate = value
	return nil
}

// DataBits returns the amount of the data bits. It is always 8.
func (g *GXHexSession) DataBits() int {
	return 8
}

// StopBits returns used stop bits.
func (g *GXHexSession) StopBits() gxcommon.StopBits {
	return gxcommon.StopBitsOne
}

// Parity returns used parity.
func (g *GXHexSession) Parity() gxcommon.Parity {
	return gxcommon.ParityNone
}

// GetBytesToRead returns the number of bytes currently available to read.
func (g *GXHexSession) GetBytesToRead() (int, error) {
	if g.IsOpen() {
		return g.s.getBytesToRead()
	}
	return 0, nil
}

// GetBytesToWrite returns the number of bytes waiting in the output queue.
func (g *GXHexSession) GetBytesToWrite() (int, error) {
	if g.IsOpen() {
		return g.s.getBytesToWrite()
	}
	return 0, nil
}

// String implements IGXMedia
func (g *GXHexSession) String() string {
	return fmt.Sprintf("%s %d 8N1", g.Port, g.baudRate)
}

// GetName implements IGXMedia
func (g *GXHexSession) GetName() string {
	return g.Port
}

// IsOpen implements IGXMedia
func (g *GXHexSession) IsOpen() bool {
	return g.open.Load()
}

// Copy implements IGXMedia
func (g *GXHexSession) Copy(target gxcommon.IGXMedia) error {
	switch dst := target.(type) {
	case *GXHexSession:
		dst.Port = g.Port
		dst.baudRate = g.baudRate
		dst.traceLevel = g.traceLevel
		dst.eop = g.eop
	default:
		return fmt.Errorf("copy: target is %T; want *GXHexSession", target)
	}
	return nil
}

// GetMediaType implements IGXMedia
func (g *GXHexSession) GetMediaType() string {
	return "Serial"
}

func xmlEscape(s string) string {
	var buf bytes.Buffer
	if err := xml.EscapeText(&buf, []byte(s)); err != nil {
		return s
	}
	return buf.String()
}

// GetSettings implements IGXMedia
func (g *GXHexSession) GetSettings() string {
	var b strings.Builder
	if g.Port != "" {
		fmt.Fprintf(&b, "<Port>%s</Port>\n", xmlEscape(g.Port))
	}
	if g.baudRate != 0 {
		fmt.Fprintf(&b, "<Bps>%d</Bps>\n", g.baudRate)
	}
	return b.String()
}

// SetSettings implements IGXMedia
//
// Framing elements (ByteSize, Parity, StopBits) are accepted and ignored.
func (g *GXHexSession) SetSettings(value string) error {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	dec := xml.NewDecoder(strings.NewReader("<root>" + value + "</root>"))
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}

		switch se.Name.Local {
		case "Port":
			var v string
			if err := dec.DecodeElement(&v, &se); err != nil {
				return err
			}
			g.Port = strings.TrimSpace(v)
		case "Bps":
			var v string
			if err := dec.DecodeElement(&v, &se); err != nil {
				return err
			}
			br, err := gxcommon.BaudRateParse(strings.TrimSpace(v))
			if err != nil {
				return fmt.Errorf("%w: %v", ErrInvalidBaudRate, err)
			}
			g.baudRate = br
		}
	}
	return nil
}

// GetSynchronous implements IGXMedia
func (g *GXHexSession) GetSynchronous() func() {
	g.mu.Lock()
	g.synchronous = true
	g.mu.Unlock()
	return func() {
		g.mu.Lock()
		g.synchronous = false
		g.mu.Unlock()
	}
}

// IsSynchronous implements IGXMedia
func (g *GXHexSession) IsSynchronous() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.synchronous
}

// ResetSynchronousBuffer implements IGXMedia
func (g *GXHexSession) ResetSynchronousBuffer() {
	g.received.Reset()
}

// GetBytesSent implements IGXMedia
func (g *GXHexSession) GetBytesSent() uint64 {
	return g.bytesSent.Load()
}

// GetBytesReceived implements IGXMedia
func (g *GXHexSession) GetBytesReceived() uint64 {
	return g.bytesReceived.Load()
}

// ResetByteCounters implements IGXMedia
func (g *GXHexSession) ResetByteCounters() {
	g.bytesSent.Store(0)
	g.bytesReceived.Store(0)
}

// Validate implements IGXMedia
func (g *GXHexSession) Validate() error {
	if strings.TrimSpace(g.Port) == "" {
		return errors.New(g.p.Sprintf("msg.no_serial_port_selected"))
	}
	return nil
}

// SetEop implements IGXMedia
func (g *GXHexSession) SetEop(eop any) {
	g.eop = eop
}

// GetEop implements IGXMedia
func (g *GXHexSession) GetEop() any {
	return g.eop
}

// GetTrace implements IGXMedia
func (g *GXHexSession) GetTrace() gxcommon.TraceLevel {
	return g.traceLevel
}

// SetTrace implements IGXMedia
func (g *GXHexSession) SetTrace(traceLevel gxcommon.TraceLevel) error {
	g.mu.Lock()
	g.traceLevel = traceLevel
	g.mu.Unlock()
	return nil
}

// SetOnReceived implements IGXMedia
func (g *GXHexSession) SetOnReceived(value gxcommon.ReceivedEventHandler) {
	g.mu.Lock()
	g.onReceive = value
	g.mu.Unlock()
}

// SetOnError implements IGXMedia
func (g *GXHexSession) SetOnError(value gxcommon.ErrorEventHandler) {
	g.mu.Lock()
	g.onErr = value
	g.mu.Unlock()
}

// SetOnMediaStateChange implements IGXMedia
func (g *GXHexSession) SetOnMediaStateChange(value gxcommon.MediaStateHandler) {
	g.mu.Lock()
	g.onState = value
	g.mu.Unlock()
}

// SetOnTrace implements IGXMedia
func (g *GXHexSession) SetOnTrace(value gxcommon.TraceEventHandler) {
	g.mu.Lock()
	g.onTrace = value
	g.mu.Unlock()
}

// Connect opens the named port with the given baud rate.
// The session must be closed. If the port can not be claimed the returned
// error wraps ErrPortUnavailable and the session stays closed. The error is
// only returned; OnError is reserved for failures of the running reader.
// Connect fails with ErrAlreadyOpen while a Close is still releasing the port.
func (g *GXHexSession) Connect(port string, baudRate gxcommon.BaudRate) error {
	g.mu.Lock()
	if g.open.Load() || g.closing {
		g.mu.Unlock()
		return ErrAlreadyOpen
	}
	g.Port = port
	g.baudRate = baudRate
	g.mu.Unlock()
	return g.Open()
}

// Open implements IGXMedia
func (g *GXHexSession) Open() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.open.Load() {
		return nil
	}
	if g.closing {
		return ErrAlreadyOpen
	}
	if err := g.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrPortUnavailable, err)
	}
	g.statef(false, gxcommon.MediaStateOpening)
	g.trace(false, gxcommon.TraceTypesInfo, g.p.Sprintf("msg.connecting_to", g.Port, int(g.baudRate)))
	if err := g.s.open(g.Port, int(g.baudRate)); err != nil {
		if !errors.Is(err, ErrInvalidBaudRate) {
			err = fmt.Errorf("%w: %s: %w", ErrPortUnavailable, g.Port, err)
		}
		g.trace(false, gxcommon.TraceTypesError, g.p.Sprintf("msg.connect_failed", g.Port, err))
		g.statef(false, gxcommon.MediaStateClosed)
		return err
	}
	g.received.Reset()
	g.stop = make(chan struct{})
	g.open.Store(true)
	g.wg.Add(1)
	go g.reader(g.stop)
	g.trace(false, gxcommon.TraceTypesInfo, g.p.Sprintf("msg.connected_to", g.Port))
	g.statef(false, gxcommon.MediaStateOpen)
	return nil
}

// Send implements IGXMedia
func (g *GXHexSession) Send(data any, receiver string) error {
	tmp, err := gxcommon.ToBytes(data, binary.BigEndian)
	if err != nil {
		return err
	}
	return g.SendBytes(tmp)
}

// SendBytes writes data to the serial port and blocks until the OS accepts it.
// It returns ErrNotConnected when the session is closed. Write failures and
// short writes are returned wrapped in ErrTransport and are not retried.
func (g *GXHexSession) SendBytes(data []byte) error {
	if !g.open.Load() {
		return ErrNotConnected
	}
	if len(data) == 0 {
		return nil
	}
	g.tracef(true, gxcommon.TraceTypesSent, "TX: %s", traceString(data))
	n, err := g.s.write(data)
	if n > 0 {
		g.bytesSent.Add(uint64(n))
	}
	if err == nil && n != len(data) {
		err = fmt.Errorf("wrote %d of %d bytes", n, len(data))
	}
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrTransport, err)
		g.tracef(true, gxcommon.TraceTypesError, "TX failed: %v", err)
		return err
	}
	return nil
}

// Receive implements IGXMedia
func (g *GXHexSession) Receive(args *gxcommon.ReceiveParameters) (bool, error) {
	if args.EOP == nil && args.Count == 0 && !args.AllData {
		return false, errors.New(g.p.Sprintf("msg.count_or_eop"))
	}
	terminator, err := gxcommon.ToBytes(args.EOP, binary.BigEndian)
	if err != nil {
		return false, err
	}

	var waitTime time.Duration
	if args.WaitTime > 0 {
		waitTime = time.Duration(args.WaitTime) * time.Millisecond
	}
	index := g.received.Search(terminator, args.Count, waitTime)
	if index == -1 {
		return false, nil
	}

	if args.AllData {
		//Read all data.
		index = -1
	}
	args.Reply, err = gxcommon.BytesToAny2(g.received.Get(index), args.ReplyType, binary.ByteOrder(binary.BigEndian))
	if err != nil {
		return false, err
	}
	return true, nil
}

func traceString(data []byte) string {
	str, err := gxcommon.ToString(data)
	if err != nil {
		return fmt.Sprintf("% X", data)
	}
	return str
}

func (g *GXHexSession) handleData(data []byte) {
	g.tracef(true, gxcommon.TraceTypesReceived, "RX: %s", traceString(data))
	if g.IsSynchronous() {
		g.received.Append(data)
	} else {
		g.receivef(true, data)
	}
}

func (g *GXHexSession) reader(stop <-chan struct{}) {
	defer g.wg.Done()
	for {
		ret, err := g.s.read()
		select {
		case <-stop:
			return
		default:
		}
		if err != nil {
			err = fmt.Errorf("%w: %w", ErrTransport, err)
			g.trace(true, gxcommon.TraceTypesError, g.p.Sprintf("msg.connection_failed", err))
			g.errorf(true, err)
			return
		}
		if len(ret) != 0 {
			g.bytesReceived.Add(uint64(len(ret)))
			g.handleData(ret)
		}
	}
}

func (g *GXHexSession) receivef(lock bool, data []byte) {
	var cb gxcommon.ReceivedEventHandler
	if lock {
		g.mu.RLock()
		cb = g.onReceive
		g.mu.RUnlock()
	} else {
		cb = g.onReceive
	}
	if cb != nil {
		cb(g, *gxcommon.NewReceiveEventArgs(data, g.Port))
	}
}

func (g *GXHexSession) errorf(lock bool, err error) {
	var cb gxcommon.ErrorEventHandler
	if lock {
		g.mu.RLock()
		cb = g.onErr
		g.mu.RUnlock()
	} else {
		cb = g.onErr
	}
	if cb != nil {
		cb(g, err)
	}
}

func (g *GXHexSession) tracef(lock bool, traceType gxcommon.TraceTypes, fmtStr string, a ...any) {
	g.trace(lock, traceType, fmt.Sprintf(fmtStr, a...))
}

func (g *GXHexSession) trace(lock bool, traceType gxcommon.TraceTypes, message string) {
	var cb gxcommon.TraceEventHandler
	var level gxcommon.TraceLevel
	if lock {
		g.mu.RLock()
		level = g.traceLevel
		cb = g.onTrace
		g.mu.RUnlock()
	} else {
		level = g.traceLevel
		cb = g.onTrace
	}
	if cb != nil && int(level) >= int(traceType) {
		p := gxcommon.NewTraceEventArgs(traceType, message, "")
		var m gxcommon.IGXMedia = g
		cb(m, *p)
	}
}

func (g *GXHexSession) statef(lock bool, state gxcommon.MediaState) {
	var cb gxcommon.MediaStateHandler
	if lock {
		g.mu.RLock()
		cb = g.onState
		g.mu.RUnlock()
	} else {
		cb = g.onState
	}
	if cb != nil {
		cb(g, *gxcommon.NewMediaStateEventArgs(state))
	}
}

// Close implements IGXMedia
//
// Close is idempotent and never fails. The reader goroutine is stopped and
// joined before the OS handle is released. Release errors are discarded.
func (g *GXHexSession) Close() error {
	g.mu.Lock()
	if !g.open.Load() {
		g.mu.Unlock()
		return nil
	}
	g.open.Store(false)
	g.closing = true
	g.trace(false, gxcommon.TraceTypesInfo, g.p.Sprintf("msg.closing_connection", g.Port))
	g.statef(false, gxcommon.MediaStateClosing)
	close(g.stop)
	g.s.wake()
	g.mu.Unlock()

	// Callbacks take the read lock, so the reader is joined unlocked.
	g.wg.Wait()

	g.mu.Lock()
	defer g.mu.Unlock()
	_ = g.s.close()
	g.closing = false
	g.trace(false, gxcommon.TraceTypesInfo, g.p.Sprintf("msg.connection_closed", g.Port))
	g.statef(false, gxcommon.MediaStateClosed)
	return nil
}

//nolint:errcheck
func init() {
	// --- English (default) ---
	message.SetString(language.AmericanEnglish, "msg.closing_connection", "Closing connection to %s")
	message.SetString(language.AmericanEnglish, "msg.connection_closed", "Connection closed to %s")
	message.SetString(language.AmericanEnglish, "msg.connection_failed", "Connection failed: %v")
	message.SetString(language.AmericanEnglish, "msg.count_or_eop", "Either Count or EOP must be set")
	message.SetString(language.AmericanEnglish, "msg.connected_to", "Connected to %s")
	message.SetString(language.AmericanEnglish, "msg.connect_failed", "connect to %s failed: %v")
	message.SetString(language.AmericanEnglish, "msg.connecting_to", "Connecting to %s at %d baud")
	message.SetString(language.AmericanEnglish, "msg.no_serial_port_selected", "No serial port selected. Please select a serial port.")

	// --- German (de) ---
	message.SetString(language.German, "msg.closing_connection", "Verbindung zu %s wird geschlossen")
	message.SetString(language.German, "msg.connection_closed", "Verbindung zu %s wurde geschlossen")
	message.SetString(language.German, "msg.connection_failed", "Verbindung fehlgeschlagen: %v")
	message.SetString(language.German, "msg.count_or_eop", "Entweder Count oder EOP muss gesetzt sein")
	message.SetString(language.German, "msg.connected_to", "Verbunden mit %s")
	message.SetString(language.German, "msg.connect_failed", "Verbindung zu %s fehlgeschlagen: %v")
	message.SetString(language.German, "msg.connecting_to", "Verbinde mit %s, %d Baud")
	message.SetString(language.German, "msg.no_serial_port_selected", "Kein serieller Port ausgewählt. Bitte wählen Sie einen seriellen Port aus.")

	// --- Finnish (fi) ---
	message.SetString(language.Finnish, "msg.closing_connection", "Suljetaan yhteys kohteeseen %s")
	message.SetString(language.Finnish, "msg.connection_closed", "Yhteys suljettu kohteeseen %s")
	message.SetString(language.Finnish, "msg.connection_failed", "Yhteyden muodostus epäonnistui: %v")
	message.SetString(language.Finnish, "msg.count_or_eop", "Joko Count tai EOP on asetettava")
	message.SetString(language.Finnish, "msg.connected_to", "Yhdistetty kohteeseen %s")
	message.SetString(language.Finnish, "msg.connect_failed", "Yhteyden muodostus kohteeseen %s epäonnistui: %v")
	message.SetString(language.Finnish, "msg.connecting_to", "Yhdistetään kohteeseen %s, %d baudia")
	message.SetString(language.Finnish, "msg.no_serial_port_selected", "Sarjaporttia ei ole valittu. Valitse sarjaportti.")

	// --- Swedish (sv) ---
	message.SetString(language.Swedish, "msg.closing_connection", "Stänger anslutning till %s")
	message.SetString(language.Swedish, "msg.connection_closed", "Anslutning stängd till %s")
	message.SetString(language.Swedish, "msg.connection_failed", "Anslutningen misslyckades: %v")
	message.SetString(language.Swedish, "msg.count_or_eop", "Antingen Count eller EOP måste anges")
	message.SetString(language.Swedish, "msg.connected_to", "Ansluten till %s")
	message.SetString(language.Swedish, "msg.connect_failed", "Anslutning till %s misslyckades: %v")
	message.SetString(language.Swedish, "msg.connecting_to", "Ansluter till %s, %d baud")
	message.SetString(language.Swedish, "msg.no_serial_port_selected", "Ingen seriell port vald. Välj en seriell port.")
}

// Localize messages for the specified language.
// No errors is returned if language is not supported.
func (g *GXHexSession) Localize(language language.Tag) {
	g.p = message.NewPrinter(language)
}
