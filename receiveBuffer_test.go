package gxhexterm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestReceiveBufferGet(t *testing.T) {
	b := newReceiveBuffer()
	b.Append([]byte{1, 2, 3, 4})
	b.Append(nil)
	assert.Equal(t, 4, b.Len())

	assert.Equal(t, []byte{1, 2}, b.Get(2))
	assert.Equal(t, []byte{3, 4}, b.Get(-1))
	assert.Equal(t, 0, b.Len())
	assert.Equal(t, []byte{}, b.Get(5))
}

func TestReceiveBufferSearch(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		pattern  []byte
		minLen   int
		expected int
	}{
		{name: "Pattern found", data: []byte("OK\r\nREST"), pattern: []byte("\r\n"), expected: 4},
		{name: "Pattern missing", data: []byte("OK"), pattern: []byte("\r\n"), expected: -1},
		{name: "Count reached", data: []byte{1, 2, 3}, minLen: 2, expected: 2},
		{name: "Count not reached", data: []byte{1}, minLen: 2, expected: -1},
		{name: "Empty buffer", data: nil, expected: -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newReceiveBuffer()
			b.Append(tt.data)
			assert.Equal(t, tt.expected, b.Search(tt.pattern, tt.minLen, 0))
		})
	}
}

func TestReceiveBufferSearchWaits(t *testing.T) {
	b := newReceiveBuffer()
	b.Append([]byte{0x10, 0x7E})

	go func() {
		time.Sleep(20 * time.Millisecond)
		b.Append([]byte{0x55})
		time.Sleep(20 * time.Millisecond)
		b.Append([]byte{0xAA, 0x7E, 0x01})
	}()

	// The pattern is split between two appends.
	assert.Equal(t, 4, b.Search([]byte{0xAA, 0x7E}, 0, 2*time.Second))
	assert.Equal(t, []byte{0x10, 0x7E, 0x55, 0xAA, 0x7E}, b.Get(5))
}

func TestReceiveBufferSearchTimeout(t *testing.T) {
	b := newReceiveBuffer()
	start := time.Now()
	assert.Equal(t, -1, b.Search([]byte{0x7E}, 0, 30*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)

	b.Append([]byte{1})
	b.Reset()
	assert.Equal(t, 0, b.Len())
}
