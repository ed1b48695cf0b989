// Package transport provides the duplex line link to the controller board.
package transport

import (
	"errors"
	"strings"
	"time"
)

// DefaultBaudRate matches the firmware's Serial.begin.
const DefaultBaudRate = 9600

var (
	// ErrReadTimeout means no complete line arrived before the timeout.
	ErrReadTimeout = errors.New("transport: read timeout")
	// ErrClosed is returned by a session after Close.
	ErrClosed = errors.New("transport: session closed")
)

// Session is an open link. ReadLine must return within roughly the given
// timeout; a timeout is reported as ErrReadTimeout and is not fatal.
type Session interface {
	ReadLine(timeout time.Duration) (string, error)
	Write(p []byte) (int, error)
	Close() error
}

// Opener opens sessions by port identifier.
type Opener interface {
	Open(port string, baudRate int, readTimeout time.Duration) (Session, error)
	Ports() ([]string, error)
}

// Router dispatches "sim://" ports to the simulator and everything else to
// the serial opener.
type Router struct {
	Serial Opener
	Sim    Opener
}

// NewRouter returns a Router over the real serial ports and the simulator.
func NewRouter() *Router {
	return &Router{Serial: NewSerialOpener(), Sim: NewSimOpener(SimConfig{})}
}

func (r *Router) Open(port string, baudRate int, readTimeout time.Duration) (Session, error) {
	if strings.HasPrefix(port, SimScheme) {
		return r.Sim.Open(port, baudRate, readTimeout)
	}
	return r.Serial.Open(port, baudRate, readTimeout)
}

// Ports lists serial ports followed by the simulator ports. A failure to
// enumerate serial ports still returns the simulator ports.
func (r *Router) Ports() ([]string, error) {
	sim, _ := r.Sim.Ports()
	ports, err := r.Serial.Ports()
	return append(ports, sim...), err
}
