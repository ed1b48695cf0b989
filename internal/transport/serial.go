package transport

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.bug.st/serial"
)

// SerialOpener opens real serial ports, 8N1.
type SerialOpener struct{}

func NewSerialOpener() *SerialOpener { return &SerialOpener{} }

// Open opens the port with DTR and RTS low so the board is not reset, and
// clears whatever was buffered before the open.
func (o *SerialOpener) Open(port string, baudRate int, readTimeout time.Duration) (Session, error) {
	if baudRate <= 0 {
		baudRate = DefaultBaudRate
	}
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	p, err := serial.Open(port, mode)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", port, err)
	}
	if err := p.SetReadTimeout(readTimeout); err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("set read timeout on %s: %w", port, err)
	}
	// Not every adapter supports modem lines.
	_ = p.SetDTR(false)
	_ = p.SetRTS(false)
	_ = p.ResetInputBuffer()

	return &serialSession{port: p, lines: newLineReader(p), timeout: readTimeout}, nil
}

// Ports lists the serial ports known to the OS.
func (o *SerialOpener) Ports() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("list serial ports: %w", err)
	}
	return ports, nil
}

type serialSession struct {
	port serial.Port

	readMu  sync.Mutex
	lines   *lineReader
	timeout time.Duration
}

func (s *serialSession) ReadLine(timeout time.Duration) (string, error) {
	s.readMu.Lock()
	defer s.readMu.Unlock()

	if timeout > 0 && timeout != s.timeout {
		if err := s.port.SetReadTimeout(timeout); err != nil {
			return "", mapPortErr(err)
		}
		s.timeout = timeout
	}
	line, err := s.lines.readLine(s.timeout)
	if err != nil && !errors.Is(err, ErrReadTimeout) {
		return "", mapPortErr(err)
	}
	return line, err
}

func (s *serialSession) Write(p []byte) (int, error) {
	n, err := s.port.Write(p)
	if err != nil {
		return n, mapPortErr(err)
	}
	return n, nil
}

func (s *serialSession) Close() error {
	_ = s.port.SetDTR(false)
	return s.port.Close()
}

func mapPortErr(err error) error {
	var pe *serial.PortError
	if errors.As(err, &pe) && pe.Code() == serial.PortClosed {
		return ErrClosed
	}
	return err
}
