package tui

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
	"fmt"
	"strings"
	"sync"

	"github.com/Gurux/gxcommon-go"
	"github.com/Gurux/gxhexterm-go"
	"github.com/Gurux/gxhexterm-go/controller"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// ReceivedMsg carries bytes read by the session onto the UI loop.
type ReceivedMsg struct {
	Data []byte
}

// ErrorMsg carries a session read failure onto the UI loop.
type ErrorMsg struct {
	Err error
}

type portsMsg struct {
	ports []string
	err   error
}

type focus int

const (
	focusPort focus = iota
	focusBaud
	focusInput
	focusCount
)

// rows used by everything except the log view
const chromeRows = 5

// Option configures a Model.
type Option func(*Model)

// WithPortLister replaces gxhexterm.GetPortNames.
func WithPortLister(list func() ([]string, error)) Option {
	return func(m *Model) {
		m.listPorts = list
	}
}

// WithPort preselects a port. It is added to the list when missing.
func WithPort(name string) Option {
	return func(m *Model) {
		m.preferred = name
	}
}

// WithBaudRate preselects a baud rate. Unknown values are ignored.
func WithBaudRate(br gxcommon.BaudRate) Option {
	return func(m *Model) {
		for i, it := range gxhexterm.BaudRates {
			if it == br {
				m.baud = i
			}
		}
	}
}

// WithConnectHook is called after every successful connect.
func WithConnectHook(fn func(port string, baudRate gxcommon.BaudRate)) Option {
	return func(m *Model) {
		m.onConnect = fn
	}
}

// Model is the bubbletea model of the terminal.
type Model struct {
	ctl       *controller.Controller
	listPorts func() ([]string, error)
	preferred string
	onConnect func(port string, baudRate gxcommon.BaudRate)

	ports []string
	port  int
	baud  int
	focus focus

	input textinput.Model
	log   viewport.Model
	alert string

	width    int
	height   int
	quitting bool
}

// NewModel returns a model driving ctl.
func NewModel(ctl *controller.Controller, opts ...Option) Model {
	ti := textinput.New()
	ti.Placeholder = "hex bytes, e.g. 01 03 00 00 00 01"
	ti.CharLimit = 1024
	ti.Prompt = "> "
	ti.Focus()

	m := Model{
		ctl:       ctl,
		listPorts: gxhexterm.GetPortNames,
		input:     ti,
		focus:     focusInput,
		width:     80,
		height:    24,
	}
	for i, it := range gxhexterm.BaudRates {
		if it == gxhexterm.DefaultBaudRate {
			m.baud = i
		}
	}
	for _, opt := range opts {
		opt(&m)
	}
	m.log = viewport.New(m.width, m.logRows())
	m.setPorts(m.scanPorts())
	m.refreshLog()
	return m
}

func (m Model) scanPorts() []string {
	ports, err := m.listPorts()
	if err != nil {
		return nil
	}
	return ports
}

func (m *Model) setPorts(ports []string) {
	current := m.Port()
	if current == "" {
		current = m.preferred
	}
	if m.preferred != "" && !contains(ports, m.preferred) {
		ports = append([]string{m.preferred}, ports...)
	}
	m.ports = ports
	m.port = 0
	for i, it := range ports {
		if it == current {
			m.port = i
		}
	}
}

// Port returns the selected port name or "" when there is none.
func (m Model) Port() string {
	if m.port < len(m.ports) {
		return m.ports[m.port]
	}
	return ""
}

// BaudRate returns the selected baud rate.
func (m Model) BaudRate() gxcommon.BaudRate {
	return gxhexterm.BaudRates[m.baud]
}

// Alert returns the message of the open alert or "".
func (m Model) Alert() string {
	return m.alert
}

func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.log.Width = msg.Width
		m.log.Height = m.logRows()
		m.input.Width = max(msg.Width-6, 10)
		m.refreshLog()
		return m, nil

	case ReceivedMsg:
		m.ctl.Received(msg.Data)
		m.refreshLog()
		return m, nil

	case ErrorMsg:
		m.ctl.ReceiveFailed(msg.Err)
		m.refreshLog()
		return m, nil

	case portsMsg:
		if msg.err != nil {
			m.alert = msg.err.Error()
			return m, nil
		}
		ports := msg.ports
		if live := m.Port(); m.ctl.Connected() && live != "" && !contains(ports, live) {
			ports = append([]string{live}, ports...)
		}
		m.setPorts(ports)
		return m, nil

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.log, cmd = m.log.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if m.alert != "" {
			if msg.String() == "ctrl+c" {
				return m.quit()
			}
			m.alert = ""
			return m, nil
		}
		return m.updateKey(msg)
	}
	return m, nil
}

func (m Model) updateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// global keys
	switch msg.String() {
	case "ctrl+c", "ctrl+q":
		return m.quit()

	case "ctrl+o":
		m.toggle()
		return m, nil

	case "ctrl+l":
		m.ctl.Clear()
		m.refreshLog()
		return m, nil

	case "ctrl+r":
		return m, m.refreshPorts()

	case "tab":
		m.setFocus((m.focus + 1) % focusCount)
		return m, nil

	case "shift+tab":
		m.setFocus((m.focus - 1 + focusCount) % focusCount)
		return m, nil

	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.log, cmd = m.log.Update(msg)
		return m, cmd
	}

	// field-specific keys
	switch m.focus {
	case focusPort:
		if m.ctl.Connected() && msg.String() != "enter" {
			// The selection is locked to the live port.
			return m, nil
		}
		switch msg.String() {
		case "left", "up":
			if m.port > 0 {
				m.port--
			}
		case "right", "down":
			if m.port < len(m.ports)-1 {
				m.port++
			}
		case "enter":
			m.toggle()
		}
	case focusBaud:
		if m.ctl.Connected() && msg.String() != "enter" {
			return m, nil
		}
		switch msg.String() {
		case "left", "up":
			if m.baud > 0 {
				m.baud--
			}
		case "right", "down":
			if m.baud < len(gxhexterm.BaudRates)-1 {
				m.baud++
			}
		case "enter":
			m.toggle()
		}
	case focusInput:
		if msg.String() == "enter" {
			if err := m.ctl.Send(m.input.Value()); err != nil {
				m.alert = err.Error()
			}
			m.refreshLog()
			return m, nil
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) setFocus(f focus) {
	m.focus = f
	if f == focusInput {
		m.input.Focus()
	} else {
		m.input.Blur()
	}
}

func (m *Model) toggle() {
	wasOpen := m.ctl.Connected()
	port, br := m.Port(), m.BaudRate()
	if err := m.ctl.Toggle(port, br); err != nil {
		m.alert = err.Error()
	} else if !wasOpen && m.onConnect != nil {
		m.onConnect(port, br)
	}
	m.refreshLog()
}

func (m Model) refreshPorts() tea.Cmd {
	list := m.listPorts
	return func() tea.Msg {
		ports, err := list()
		return portsMsg{ports: ports, err: err}
	}
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	m.ctl.Shutdown()
	m.quitting = true
	return m, tea.Quit
}

// refreshLog renders the log and keeps the view at the newest entry.
func (m *Model) refreshLog() {
	m.log.SetContent(m.ctl.Log().String())
	m.log.GotoBottom()
}

func (m Model) logRows() int {
	return max(m.height-chromeRows, 1)
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.alert != "" {
		box := alertStyle.Render(m.alert + "\n\n" + helpStyle.Render("press any key"))
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("GX Hex Terminal") + "\n")
	b.WriteString(m.renderControls() + "\n")
	b.WriteString(m.log.View() + "\n")

	input := m.input.View()
	if m.focus == focusInput {
		input = inputStyle.Render(input)
	}
	b.WriteString(input + "\n")
	b.WriteString(helpStyle.Render("  Tab: field  ←/→: select  Ctrl+O: connect  Enter: send  Ctrl+L: clear  Ctrl+R: ports  Ctrl+C: quit"))
	return b.String()
}

func (m Model) renderControls() string {
	port := m.Port()
	if port == "" {
		port = "(no ports)"
	}
	fields := []string{
		m.field(focusPort, "Port: "+port),
		m.field(focusBaud, fmt.Sprintf("Baud: %d", m.BaudRate())),
	}
	if m.ctl.Connected() {
		fields = append(fields, connectedStyle.Render("Connected"))
	} else {
		fields = append(fields, disconnectedStyle.Render("Disconnected"))
	}
	if m.ctl.CRC() {
		fields = append(fields, helpStyle.Render("CRC"))
	}
	return strings.Join(fields, " ")
}

func (m Model) field(f focus, text string) string {
	if m.focus == f {
		return focusedStyle.Render(text)
	}
	return fieldStyle.Render(text)
}

// Media is the part of the session the UI subscribes to.
type Media interface {
	SetOnReceived(value gxcommon.ReceivedEventHandler)
	SetOnError(value gxcommon.ErrorEventHandler)
}

// forwarder queues session events and hands them to the UI loop on its own
// goroutine. Posting never blocks, so a callback raised while Update runs,
// or a reader joined by Close from inside Update, can not stall the loop.
type forwarder struct {
	mu    sync.Mutex
	queue []tea.Msg
	wake  chan struct{}
	done  chan struct{}
}

func newForwarder() *forwarder {
	return &forwarder{wake: make(chan struct{}, 1), done: make(chan struct{})}
}

func (f *forwarder) post(msg tea.Msg) {
	f.mu.Lock()
	f.queue = append(f.queue, msg)
	f.mu.Unlock()
	select {
	case f.wake <- struct{}{}:
	default:
	}
}

func (f *forwarder) run(send func(tea.Msg)) {
	for {
		select {
		case <-f.wake:
		case <-f.done:
			return
		}
		f.mu.Lock()
		q := f.queue
		f.queue = nil
		f.mu.Unlock()
		for _, msg := range q {
			send(msg)
		}
	}
}

// Bind routes session callbacks to p so that they are handled on the UI loop.
// Events are queued without bound and delivered in order. The returned
// function stops delivery; call it after p has exited.
func Bind(p *tea.Program, media Media) (stop func()) {
	f := newForwarder()
	media.SetOnReceived(controller.ReceivedHandler(func(data []byte) {
		f.post(ReceivedMsg{Data: data})
	}))
	media.SetOnError(controller.ErrorHandler(func(err error) {
		f.post(ErrorMsg{Err: err})
	}))
	go f.run(p.Send)
	var once sync.Once
	return func() {
		once.Do(func() { close(f.done) })
	}
}

func contains(list []string, s string) bool {
	for _, it := range list {
		if it == s {
			return true
		}
	}
	return false
}
