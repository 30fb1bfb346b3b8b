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
	"sync"
	"time"
)

// receiveBuffer collects received bytes while the session is synchronous.
// Waiters are woken by closing the current wait channel on every append.
type receiveBuffer struct {
	mu   sync.Mutex
	buf  []byte
	wait chan struct{}
}

func newReceiveBuffer() *receiveBuffer {
	return &receiveBuffer{wait: make(chan struct{})}
}

// Append adds p to the buffer and wakes all waiters.
func (b *receiveBuffer) Append(p []byte) {
	if len(p) == 0 {
		return
	}
	b.mu.Lock()
	b.buf = append(b.buf, p...)
	old := b.wait
	b.wait = make(chan struct{})
	b.mu.Unlock()
	close(old)
}

// Reset drops all buffered bytes.
func (b *receiveBuffer) Reset() {
	b.mu.Lock()
	b.buf = nil
	b.mu.Unlock()
}

// Len returns the number of buffered bytes.
func (b *receiveBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.buf)
}

// Get removes and returns the first count bytes. -1 returns everything.
func (b *receiveBuffer) Get(count int) []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	if count < 0 || count > len(b.buf) {
		count = len(b.buf)
	}
	ret := make([]byte, count)
	copy(ret, b.buf[:count])
	b.buf = b.buf[count:]
	return ret
}

// Search waits until the buffer holds at least minLen bytes and, when
// pattern is not empty, contains pattern. It returns the number of bytes up
// to and including the pattern (or minLen when pattern is empty), or -1 if
// maxWait elapses first. A non-positive maxWait checks once without waiting.
func (b *receiveBuffer) Search(pattern []byte, minLen int, maxWait time.Duration) int {
	if len(pattern) == 0 && minLen < 1 {
		minLen = 1
	}
	var deadline time.Time
	if maxWait > 0 {
		deadline = time.Now().Add(maxWait)
	}
	// Bytes before lastStart have already been searched.
	lastStart := 0
	for {
		b.mu.Lock()
		if len(b.buf) >= minLen {
			if len(pattern) == 0 {
				b.mu.Unlock()
				return minLen
			}
			start := min(lastStart, len(b.buf))
			if i := bytes.Index(b.buf[start:], pattern); i >= 0 {
				b.mu.Unlock()
				return start + i + len(pattern)
			}
			// Keep len(pattern)-1 bytes in case the pattern is split between appends.
			lastStart = max(len(b.buf)-len(pattern)+1, 0)
		}
		ch := b.wait
		b.mu.Unlock()

		if !b.waitFor(ch, deadline) {
			return -1
		}
	}
}

// waitFor blocks until ch is closed or deadline passes. It reports whether ch fired.
func (b *receiveBuffer) waitFor(ch <-chan struct{}, deadline time.Time) bool {
	if deadline.IsZero() {
		return false
	}
	rem := time.Until(deadline)
	if rem <= 0 {
		return false
	}
	timer := time.NewTimer(rem)
	defer timer.Stop()
	select {
	case <-ch:
		return true
	case <-timer.C:
		return false
	}
}
