// Package gxhexterm provides a serial port session for a hex terminal.
// GXHexSession implements the Gurux IGXMedia contract with fixed 8-N-1
// framing and no flow control: open/close a port, send raw bytes and get
// received bytes through a callback.
//
// # Construction
//
// NewGXHexSession returns a closed session. Connect claims a port:
//
//	s := gxhexterm.NewGXHexSession()
//	s.SetOnReceived(func(m gxcommon.IGXMedia, e gxcommon.ReceiveEventArgs) {
//	    // Runs on the reader goroutine. Post e.Data() to your own loop.
//	})
//	s.SetOnError(func(m gxcommon.IGXMedia, err error) {
//	    // Read failures wrap ErrTransport.
//	})
//	if err := s.Connect("/dev/ttyUSB0", gxhexterm.DefaultBaudRate); err != nil {
//	    // errors.Is(err, gxhexterm.ErrPortUnavailable)
//	}
//	defer s.Close()
//
//	err := s.SendBytes([]byte{0x01, 0x03, 0x00, 0x00, 0x00, 0x01})
//
// # Receiving
//
// The reader goroutine waits for the OS to report readable bytes and
// delivers everything buffered at that moment as one event. No framing is
// applied. GetSynchronous diverts received data into a buffer that Receive
// waits on, for request/response use.
//
// # Errors
//
// SendBytes returns ErrNotConnected on a closed session and wraps write
// failures in ErrTransport. Close is idempotent and always returns nil.
//
// # Notes
//
// Callbacks must not call Close; Close waits for the reader goroutine.
package gxhexterm
