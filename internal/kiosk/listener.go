package kiosk

import (
	"bufio"
	"context"
	"net"
	"time"

	"go.uber.org/zap"
)

// stopSentinel is sent by the device-control service when the stream closes.
const stopSentinel = "_STOP_"

// LineHandler consumes one scanned line from the device stream.
type LineHandler func(line string)

// Listener maintains a TCP connection to the device-control service and
// feeds scanned identifier lines to the handler. The stream is line
// oriented; a lost connection is retried until the context ends.
type Listener struct {
	addr           string
	reconnectDelay time.Duration
	handler        LineHandler
	logger         *zap.Logger
}

// NewListener constructs a Listener.
func NewListener(addr string, reconnectDelay time.Duration, handler LineHandler, logger *zap.Logger) *Listener {
	if reconnectDelay <= 0 {
		reconnectDelay = 3 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Listener{addr: addr, reconnectDelay: reconnectDelay, handler: handler, logger: logger}
}

// Run blocks consuming the stream until ctx is cancelled.
func (l *Listener) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		conn, err := net.Dial("tcp", l.addr)
		if err != nil {
			l.logger.Warn("kiosk stream unreachable", zap.String("addr", l.addr), zap.Error(err))
			if !l.sleep(ctx) {
				return
			}
			continue
		}
		l.logger.Info("kiosk stream connected", zap.String("addr", l.addr))
		l.consume(ctx, conn)
		conn.Close()
		if !l.sleep(ctx) {
			return
		}
	}
}

func (l *Listener) consume(ctx context.Context, conn net.Conn) {
	// Unblock the scanner when the context ends.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := scanner.Text()
		if line == stopSentinel {
			l.logger.Info("kiosk stream stopped by device service")
			return
		}
		if l.handler != nil {
			l.handler(line)
		}
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		l.logger.Warn("kiosk stream read failed", zap.Error(err))
	}
}

func (l *Listener) sleep(ctx context.Context) bool {
	timer := time.NewTimer(l.reconnectDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
