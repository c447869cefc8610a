package gorough

import (
	"fmt"
	"io"
	"sync"

	"go.bug.st/serial"
)

// Fix is one GNSS navigation solution. Valid reports whether the
// receiver resolved UTC date and time; Sec/Nsec are then the fix
// timestamp. ArrivalUs is the monotonic instant the frame was read
// from the transport, used to correct for the latency between frame
// arrival and the Roughtime exchange.
type Fix struct {
	Valid     bool
	Mode      uint8
	Sec       int64
	Nsec      int64
	Lat       float64
	Lon       float64
	ArrivalUs uint64
}

// EpochUs returns the fix timestamp in epoch microseconds.
func (f Fix) EpochUs() uint64 {
	return uint64(f.Sec)*usPerSec + uint64(f.Nsec)/1000
}

// gnssState holds the latest fix behind one mutex. Writers replace the
// whole snapshot and readers copy it out, so neither side can observe
// a half-updated fix.
type gnssState struct {
	mu  sync.Mutex
	fix Fix
	set bool
}

func (g *gnssState) publish(f Fix) {
	g.mu.Lock()
	g.fix = f
	g.set = true
	g.mu.Unlock()
}

func (g *gnssState) latest() (Fix, bool) {
	g.mu.Lock()
	f, ok := g.fix, g.set
	g.mu.Unlock()
	return f, ok
}

// GNSSMonitor ingests UBX frames from a serial device and publishes
// the most recent navigation fix. Ingestion runs on its own goroutine
// and never touches the network, so a stalled Roughtime exchange can
// not hold up fix updates or vice versa.
type GNSSMonitor struct {
	src   io.ReadCloser
	state gnssState

	stopOnce sync.Once
	stop     chan struct{}
}

// OpenGNSS opens the serial device and starts the ingestion loop.
func OpenGNSS(device string, baud int) (*GNSSMonitor, error) {
	port, err := serial.Open(device, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("gnss: open %s: %v", device, err)
	}
	m := newGNSSMonitor(port)
	go m.run()
	return m, nil
}

func newGNSSMonitor(src io.ReadCloser) *GNSSMonitor {
	return &GNSSMonitor{src: src, stop: make(chan struct{})}
}

// Latest returns the most recent fix, which may be stale or carry no
// resolved time yet. It never blocks on the ingestion loop.
func (m *GNSSMonitor) Latest() (Fix, bool) {
	return m.state.latest()
}

// Close stops ingestion and releases the device.
func (m *GNSSMonitor) Close() error {
	m.stopOnce.Do(func() { close(m.stop) })
	return m.src.Close()
}

func (m *GNSSMonitor) run() {
	defer func() {
		if r := recover(); r != nil {
			Error.Printf("gnss: ingest fatal: %s", r)
		}
	}()

	var sc ubxScanner
	buf := make([]byte, 512)
	for {
		select {
		case <-m.stop:
			return
		default:
		}
		n, err := m.src.Read(buf)
		if err != nil {
			select {
			case <-m.stop:
			default:
				Warn.Printf("gnss: read: %s", err)
			}
			return
		}
		arrival := monotonicUs()
		for _, b := range buf[:n] {
			frame, ok := sc.feed(b)
			if !ok {
				continue
			}
			if frame.class != ubxClassNav || frame.id != ubxIDNavPVT {
				continue
			}
			if fix, ok := decodeNavPVT(frame.payload, arrival); ok {
				m.state.publish(fix)
				if debug {
					Info.Printf("gnss: fix mode=%d valid=%v t=%d.%09d",
						fix.Mode, fix.Valid, fix.Sec, fix.Nsec)
				}
			}
		}
	}
}
