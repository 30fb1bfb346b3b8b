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
	"github.com/Gurux/gxcommon-go"
)

// ReceivedHandler adapts post to a session receive callback. The received
// bytes are copied before post is called on the reader goroutine, so post
// must only hand them over to the UI context.
func ReceivedHandler(post func(data []byte)) gxcommon.ReceivedEventHandler {
	return func(m gxcommon.IGXMedia, e gxcommon.ReceiveEventArgs) {
		var v any = e.Data()
		data, ok := v.([]byte)
		if !ok || len(data) == 0 {
			return
		}
		post(append([]byte(nil), data...))
	}
}

// ErrorHandler adapts post to a session error callback.
func ErrorHandler(post func(err error)) gxcommon.ErrorEventHandler {
	return func(m gxcommon.IGXMedia, err error) {
		if err != nil {
			post(err)
		}
	}
}
