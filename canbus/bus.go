//go:build linux || darwin
// +build linux darwin

package canbus

import (
	"context"
	"fmt"
	"net"

	"go.einride.tech/can"
	"go.einride.tech/can/pkg/socketcan"
)

// Writer sends encoded frames onto the bus.
type Writer interface {
	WriteFrame(ctx context.Context, frame can.Frame) error
	Close() error
}

// Reader receives frames off the bus.
type Reader interface {
	ReadFrame(ctx context.Context) (can.Frame, error)
	Close() error
}

type SocketCANWriter struct {
	conn net.Conn
	tx   *socketcan.Transmitter
}

func (w *SocketCANWriter) WriteFrame(ctx context.Context, frame can.Frame) error {
	return w.tx.TransmitFrame(ctx, frame)
}

func (w *SocketCANWriter) Close() error {
	if w.conn != nil {
		return w.conn.Close()
	}
	return nil
}

type SocketCANReader struct {
	conn net.Conn
	recv *socketcan.Receiver
}

func (r *SocketCANReader) ReadFrame(ctx context.Context) (can.Frame, error) {
	frameChan := make(chan can.Frame, 1)
	errChan := make(chan error, 1)

	go func() {
		if r.recv.Receive() {
			frameChan <- r.recv.Frame()
		} else {
			errChan <- fmt.Errorf("receive failed")
		}
	}()

	select {
	case <-ctx.Done():
		return can.Frame{}, ctx.Err()
	case frame := <-frameChan:
		return frame, nil
	case err := <-errChan:
		return can.Frame{}, err
	}
}

func (r *SocketCANReader) Close() error {
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}

// AxisBus bundles the write and read halves of one axis's CAN
// connection. A host process runs one axis against one interface, so
// there is never a reason to dial the transmitter and receiver sides
// separately or to mismatch their interface names.
type AxisBus struct {
	Writer *SocketCANWriter
	Reader *SocketCANReader
}

// DialAxisBus opens both halves of iface for a single axis. On error
// from the reader dial, the writer side (if already open) is closed
// before returning.
func DialAxisBus(ctx context.Context, iface string) (*AxisBus, error) {
	wconn, err := socketcan.DialContext(ctx, "can", iface)
	if err != nil {
		return nil, fmt.Errorf("socketcan dial (tx): %w", err)
	}
	writer := &SocketCANWriter{conn: wconn, tx: socketcan.NewTransmitter(wconn)}

	rconn, err := socketcan.DialContext(ctx, "can", iface)
	if err != nil {
		writer.Close()
		return nil, fmt.Errorf("socketcan dial (rx): %w", err)
	}
	reader := &SocketCANReader{conn: rconn, recv: socketcan.NewReceiver(rconn)}

	return &AxisBus{Writer: writer, Reader: reader}, nil
}

// Close closes both halves, returning the writer's error if both fail.
func (b *AxisBus) Close() error {
	rerr := b.Reader.Close()
	werr := b.Writer.Close()
	if werr != nil {
		return werr
	}
	return rerr
}
