//go:build windows

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
	"errors"
	"fmt"
	"strings"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"
	"golang.org/x/sys/windows/registry"
)

type port struct {
	h       windows.Handle
	ovRead  windows.Overlapped
	ovWrite windows.Overlapped
	// Manual-reset event signaled when the port is closing.
	closing windows.Handle
}

func (p *port) isOpen() bool {
	return p != nil && p.h != 0 && p.h != windows.InvalidHandle
}

// getPortNames retrieves the list of available serial port names on a Windows system by querying the registry.
func getPortNames() ([]string, error) {
	const path = `HARDWARE\DEVICEMAP\SERIALCOMM`

	key, err := registry.OpenKey(registry.LOCAL_MACHINE, path, registry.QUERY_VALUE)
	if err != nil {
		if err == registry.ErrNotExist {
			return []string{}, nil
		}
		return nil, err
	}
	defer func() {
		_ = key.Close()
	}()

	valueNames, err := key.ReadValueNames(-1)
	if err != nil {
		return nil, err
	}

	var ports []string
	for _, name := range valueNames {
		port, _, err := key.GetStringValue(name)
		if err == nil {
			ports = append(ports, port)
		}
	}
	return ports, nil
}

const (
	dcbFBinary         = 1 << 0
	dcbFParity         = 1 << 1
	dcbFOutxCtsFlow    = 1 << 2
	dcbFOutxDsrFlow    = 1 << 3
	dcbFDtrControlMask = 0x3 << 4 // bits 4-5
	dcbFOutX           = 1 << 8
	dcbFInX            = 1 << 9
	dcbFErrorChar      = 1 << 10
	dcbFNull           = 1 << 11
	dcbFRtsControlMask = 0x3 << 12 // bits 12-13
	dcbFAbortOnError   = 1 << 14
)

const (
	noParity   = 0
	oneStopBit = 0
)

// applyFraming sets 8-N-1, binary mode and disables every kind of flow control.
func applyFraming(d *windows.DCB, baudRate int) {
	d.BaudRate = uint32(baudRate)
	d.ByteSize = 8
	d.Parity = noParity
	d.StopBits = oneStopBit
	d.Flags |= dcbFBinary
	d.Flags &^= dcbFParity | dcbFOutxCtsFlow | dcbFOutxDsrFlow | dcbFOutX | dcbFInX |
		dcbFErrorChar | dcbFNull | dcbFAbortOnError | dcbFDtrControlMask | dcbFRtsControlMask
}

func (p *port) configure(baudRate int) error {
	var d windows.DCB
	d.DCBlength = uint32(unsafe.Sizeof(d))
	if err := windows.GetCommState(p.h, &d); err != nil {
		return fmt.Errorf("GetCommState failed: %w", err)
	}
	applyFraming(&d, baudRate)
	if err := windows.SetCommState(p.h, &d); err != nil {
		if errors.Is(err, windows.ERROR_INVALID_PARAMETER) {
			return fmt.Errorf("%w: %d", ErrInvalidBaudRate, baudRate)
		}
		return fmt.Errorf("SetCommState failed: %w", err)
	}
	return nil
}

func (p *port) open(name string, baudRate int) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("invalid serial port name")
	}
	if baudRate <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidBaudRate, baudRate)
	}
	*p = port{}

	closing, err := windows.CreateEvent(nil, 1, 0, nil) // manual-reset, not signaled
	if err != nil {
		return fmt.Errorf("CreateEvent(closing) failed: %w", err)
	}
	p.closing = closing

	path := `\\.\` + name
	h, err := windows.CreateFile(
		windows.StringToUTF16Ptr(path),
		windows.GENERIC_READ|windows.GENERIC_WRITE,
		0,
		nil,
		windows.OPEN_EXISTING,
		windows.FILE_FLAG_OVERLAPPED,
		0,
	)
	if err != nil {
		_ = p.close()
		return fmt.Errorf("failed to open port %q: %w", name, err)
	}
	p.h = h

	er, err := windows.CreateEvent(nil, 0, 0, nil) // auto-reset
	if err != nil {
		_ = p.close()
		return fmt.Errorf("CreateEvent(read) failed: %w", err)
	}
	p.ovRead.HEvent = er

	ew, err := windows.CreateEvent(nil, 0, 0, nil)
	if err != nil {
		_ = p.close()
		return fmt.Errorf("CreateEvent(write) failed: %w", err)
	}
	p.ovWrite.HEvent = ew

	if err := p.configure(baudRate); err != nil {
		_ = p.close()
		return err
	}

	if err := windows.PurgeComm(p.h,
		windows.PURGE_TXCLEAR|windows.PURGE_TXABORT|windows.PURGE_RXCLEAR|windows.PURGE_RXABORT,
	); err != nil {
		_ = p.close()
		return fmt.Errorf("PurgeComm failed: %w", err)
	}
	return nil
}

// ClearCommError + COMSTAT.cbOutQue / cbInQue
func (p *port) getBytesToWrite() (int, error) {
	if !p.isOpen() {
		return 0, errors.New("serial port is not open")
	}
	var flags uint32
	var st windows.ComStat
	if err := windows.ClearCommError(p.h, &flags, &st); err != nil {
		return 0, fmt.Errorf("getBytesToWrite failed: %w", err)
	}
	return int(st.CBOutQue), nil
}

func (p *port) getBytesToRead() (int, error) {
	if !p.isOpen() {
		return 0, errors.New("serial port is not open")
	}
	var flags uint32
	var st windows.ComStat
	if err := windows.ClearCommError(p.h, &flags, &st); err != nil {
		if err != windows.ERROR_INVALID_HANDLE {
			return 0, fmt.Errorf("getBytesToRead failed: %w", err)
		}
		return 0, nil
	}
	return int(st.CBInQue), nil
}

func (p *port) isClosing() bool {
	if p.closing == 0 {
		return true
	}
	r, err := windows.WaitForSingleObject(p.closing, 0)
	return err == nil && r == windows.WAIT_OBJECT_0
}

// read blocks until at least one byte arrives and returns every byte the
// driver has buffered. It returns nil, nil when the port is closing.
func (p *port) read() ([]byte, error) {
	if p.isClosing() {
		return nil, nil
	}
	if !p.isOpen() {
		return nil, errors.New("serial port is not open")
	}

	var ret []byte
	for {
		count, err := p.getBytesToRead()
		if err != nil {
			return nil, err
		}
		if count == 0 {
			if len(ret) != 0 {
				return ret, nil
			}
			count = 1
		}
		buf := make([]byte, count)
		n, err := p.readOverlapped(buf)
		if err != nil || n == 0 {
			if len(ret) != 0 && err == nil {
				return ret, nil
			}
			return nil, err
		}
		ret = append(ret, buf[:n]...)
	}
}

func (p *port) readOverlapped(buf []byte) (int, error) {
	var n uint32
	_ = windows.ResetEvent(p.ovRead.HEvent)
	err := windows.ReadFile(p.h, buf, &n, &p.ovRead)
	if err == nil {
		return int(n), nil
	}
	if !errors.Is(err, windows.ERROR_IO_PENDING) {
		if p.isClosing() {
			return 0, nil
		}
		return 0, fmt.Errorf("read failed: %w", err)
	}
	handles := []windows.Handle{p.closing, p.ovRead.HEvent}
	idx, werr := windows.WaitForMultipleObjects(handles, false, windows.INFINITE)
	if werr != nil {
		if p.isClosing() {
			return 0, nil
		}
		return 0, fmt.Errorf("read wait failed: %w", werr)
	}
	if idx == windows.WAIT_OBJECT_0 {
		_ = windows.CancelIoEx(p.h, &p.ovRead)
		return 0, nil // closing
	}
	if gerr := windows.GetOverlappedResult(p.h, &p.ovRead, &n, true); gerr != nil {
		if errors.Is(gerr, windows.ERROR_OPERATION_ABORTED) || p.isClosing() {
			return 0, nil
		}
		return 0, fmt.Errorf("read failed: %w", gerr)
	}
	return int(n), nil
}

// write returns the number of bytes the driver accepted. A closing port
// reports a short write.
func (p *port) write(data []byte) (int, error) {
	if !p.isOpen() {
		return 0, errors.New("serial port is not open")
	}
	if len(data) == 0 {
		return 0, nil
	}

	var n uint32
	_ = windows.ResetEvent(p.ovWrite.HEvent)

	err := windows.WriteFile(p.h, data, &n, &p.ovWrite)
	if err == nil {
		return int(n), nil
	}
	if !errors.Is(err, windows.ERROR_IO_PENDING) {
		return 0, fmt.Errorf("write failed: %w", err)
	}

	timeout := uint32((1 * time.Second) / time.Millisecond)
	handles := []windows.Handle{p.closing, p.ovWrite.HEvent}
	idx, werr := windows.WaitForMultipleObjects(handles, false, timeout)
	if werr != nil {
		return 0, fmt.Errorf("write wait failed: %w", werr)
	}
	if idx == windows.WAIT_OBJECT_0 {
		return 0, nil // closing
	}
	if gerr := windows.GetOverlappedResult(p.h, &p.ovWrite, &n, true); gerr != nil {
		if errors.Is(gerr, windows.ERROR_OPERATION_ABORTED) {
			return int(n), nil
		}
		return int(n), fmt.Errorf("write failed: %w", gerr)
	}
	return int(n), nil
}

func (p *port) wake() {
	if p.closing != 0 {
		_ = windows.SetEvent(p.closing)
	}
}

func (p *port) close() error {
	if p == nil {
		return nil
	}
	p.wake()
	if p.h != 0 && p.h != windows.InvalidHandle {
		_ = windows.CancelIoEx(p.h, nil)
	}

	if p.ovRead.HEvent != 0 {
		_ = windows.CloseHandle(p.ovRead.HEvent)
		p.ovRead.HEvent = 0
	}
	if p.ovWrite.HEvent != 0 {
		_ = windows.CloseHandle(p.ovWrite.HEvent)
		p.ovWrite.HEvent = 0
	}
	if p.h != 0 {
		_ = windows.CloseHandle(p.h)
		p.h = 0
	}
	if p.closing != 0 {
		_ = windows.CloseHandle(p.closing)
		p.closing = 0
	}
	return nil
}
