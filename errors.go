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

import "errors"

var (
	// ErrPortUnavailable is returned when the OS refuses to open the serial port.
	ErrPortUnavailable = errors.New("serial port unavailable")
	// ErrNotConnected is returned when data is sent while the session is closed.
	ErrNotConnected = errors.New("serial port not connected")
	// ErrAlreadyOpen is returned when Connect is called on an open session.
	ErrAlreadyOpen = errors.New("serial port already open")
	// ErrTransport wraps read and write failures reported by the OS.
	ErrTransport = errors.New("serial transport failure")
	// ErrInvalidBaudRate is returned for a baud rate the platform can not set.
	ErrInvalidBaudRate = errors.New("invalid baud rate")
)
