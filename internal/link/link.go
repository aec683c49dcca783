// Package link carries encoded LOR messages to the bus. The serial
// implementation also runs the protocol's keepalive heartbeat, which
// controllers require at least every two seconds.
package link

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.bug.st/serial"

	"lor-go-bridge/internal/lor"
)

// DefaultBaud is the LOR bus default speed.
const DefaultBaud = 19200

// DefaultHeartbeatInterval keeps controllers listening with ample margin
// below their ~2 s dropout.
const DefaultHeartbeatInterval = 500 * time.Millisecond

// Link accepts a fully encoded message frame for delivery to the bus.
type Link interface {
	Send(frame []byte) error
	Close() error
}

// Serial is a Link over an RS485/USB serial adapter.
type Serial struct {
	port   serial.Port
	logger *slog.Logger

	writeMu sync.Mutex

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// OpenSerial opens the named port at the given baud rate (8N1).
func OpenSerial(portName string, baud int, logger *slog.Logger) (*Serial, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("lor link: open %s: %w", portName, err)
	}
	logger.Info("serial link opened", "port", portName, "baud", baud)
	return newSerial(port, logger), nil
}

func newSerial(port serial.Port, logger *slog.Logger) *Serial {
	return &Serial{
		port:   port,
		logger: logger.With("component", "link"),
		done:   make(chan struct{}),
	}
}

// Send writes one encoded message to the port. Writes are serialized so a
// heartbeat never interleaves with a command frame.
func (s *Serial) Send(frame []byte) error {
	s.writeMu.Lock()
	_, err := s.port.Write(frame)
	s.writeMu.Unlock()
	if err != nil {
		return fmt.Errorf("serial write: %w", err)
	}
	s.logger.Debug("frame sent", "len", len(frame), "bytes", fmt.Sprintf("%X", frame))
	return nil
}

// StartHeartbeat begins emitting the protocol keepalive every interval
// until Close.
func (s *Serial) StartHeartbeat(interval time.Duration) {
	s.wg.Add(1)
	go s.heartbeatLoop(interval)
}

func (s *Serial) heartbeatLoop(interval time.Duration) {
	defer s.wg.Done()

	var buf [lor.MaxMessageLen]byte
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			w := lor.NewWriter(buf[:])
			if _, err := lor.WriteHeartbeat(w); err != nil {
				s.logger.Error("encode heartbeat", "err", err)
				continue
			}
			if err := s.Send(w.Bytes()); err != nil {
				s.logger.Warn("heartbeat send failed", "err", err)
			}
		}
	}
}

// Close stops the heartbeat and closes the port.
func (s *Serial) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.port.Close()
	})
	s.wg.Wait()
	return err
}
