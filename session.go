package gorough

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// State tracks one exchange through the session driver.
type State uint8

const (
	StateIdle State = iota
	StateRequesting
	StateAwaitingResponse
	StateVerified
	StateFailed
)

// maxSystemOffsetUs is the sanity ceiling on the system clock offset;
// beyond it the process is considered unsafe to trust and exits.
const maxSystemOffsetUs = 10 * 60 * 1000000

var errOffsetTooLarge = errors.New("session: system clock offset beyond safety threshold")

// GNSSReport compares the authenticated time against the latest GNSS
// fix. ArrivalAdjustUs is the latency between the GNSS frame arrival
// and the Roughtime response receipt; it is kept separate from the
// round trip correction already folded into the time estimate.
type GNSSReport struct {
	Fix             Fix
	ArrivalAdjustUs uint64
	OffsetUs        int64
}

// Result is the outcome of one verified exchange. EpochUs is the
// authenticated epoch estimate at the instant the response was
// received, already corrected by half the round trip.
type Result struct {
	Midpoint       uint64
	RadiusUs       uint32
	RoundTripUs    uint64
	EpochUs        uint64
	SystemOffsetUs int64
	GNSS           *GNSSReport
}

// FixSource supplies the most recent GNSS fix without blocking.
type FixSource interface {
	Latest() (Fix, bool)
}

// Session drives request/verify cycles against one server. A session
// keeps no per-exchange state between cycles: every exchange binds a
// nonce to its own response, so an earlier response can never be
// replayed against a later request.
type Session struct {
	cfg   *Config
	key   PublicKey
	fixed *Nonce
	tr    Transport
	gnss  FixSource
	stat  *statistic

	state    State
	stopOnce sync.Once
	stopC    chan struct{}
}

func NewSession(cfg *Config) (s *Session, err error) {
	key, fixed, err := cfg.Validate()
	if err != nil {
		return
	}
	s = &Session{
		cfg:   cfg,
		key:   key,
		fixed: fixed,
		tr:    UDPTransport{},
		stopC: make(chan struct{}),
	}
	return
}

// AttachGNSS wires in a fix source; exchanges then report the offset
// between the GNSS clock and the authenticated time.
func (s *Session) AttachGNSS(src FixSource) { s.gnss = src }

func (s *Session) State() State { return s.state }

// Stop requests cooperative termination. It only signals; the repeat
// loop observes it between iterations and a verification in flight
// always runs to completion.
func (s *Session) Stop() {
	s.stopOnce.Do(func() { close(s.stopC) })
}

func (s *Session) nonce() (Nonce, error) {
	if s.fixed != nil {
		return *s.fixed, nil
	}
	return NewNonce()
}

// Exchange performs one request/verify cycle. Send and receive are
// stamped on the monotonic clock; the verified midpoint only reaches
// the caller after both signatures and the Merkle path check out.
func (s *Session) Exchange() (res *Result, err error) {
	s.state = StateRequesting
	nonce, err := s.nonce()
	if err != nil {
		s.state = StateFailed
		s.stat.fail("nonce")
		return
	}
	req, err := BuildRequest(nonce)
	if err != nil {
		s.state = StateFailed
		s.stat.fail("request")
		return
	}

	sendUs := monotonicUs()
	s.state = StateAwaitingResponse
	resp, err := s.tr.Exchange(s.cfg.Host, req, s.cfg.timeout())
	if err != nil {
		s.state = StateFailed
		s.stat.fail("transport")
		return
	}
	recvUs := monotonicUs()

	midpoint, radius, err := VerifyResponse(resp, nonce, s.key)
	if err != nil {
		s.state = StateFailed
		s.stat.fail("verify")
		return
	}

	rtt := recvUs - sendUs
	epochUs, err := EpochMicroseconds(midpoint, rtt)
	if err != nil {
		s.state = StateFailed
		s.stat.fail("decode")
		return
	}

	res = &Result{
		Midpoint:       midpoint,
		RadiusUs:       radius,
		RoundTripUs:    rtt,
		EpochUs:        epochUs,
		SystemOffsetUs: int64(epochUs) - int64(realtimeUs()),
	}

	if s.gnss != nil {
		if fix, ok := s.gnss.Latest(); ok && fix.Valid {
			res.GNSS = s.compareGNSS(fix, epochUs, recvUs)
		}
	}

	s.state = StateVerified
	s.stat.observe(res)
	return res, nil
}

// compareGNSS projects the authenticated estimate back to the instant
// the GNSS frame arrived and differences it against the fix timestamp.
// The GPS-to-UTC leap offset is applied here and nowhere else.
func (s *Session) compareGNSS(fix Fix, epochUs, recvUs uint64) *GNSSReport {
	var adjust uint64
	if fix.ArrivalUs < recvUs {
		adjust = recvUs - fix.ArrivalUs
	}
	estAtArrival := epochUs - adjust
	leapUs := int64(s.cfg.GPSLeapSec) * int64(usPerSec)
	return &GNSSReport{
		Fix:             fix,
		ArrivalAdjustUs: adjust,
		OffsetUs:        int64(estAtArrival) + leapUs - int64(fix.EpochUs()),
	}
}

// Run performs the configured number of exchanges, sleeping the
// configured interval in between and honoring Stop at loop boundaries.
// With repeats > 1 a failed exchange is logged and the run continues;
// a single-shot run returns the failure.
func (s *Session) Run() (err error) {
	if s.cfg.Metric != "" {
		s.stat = newStatistic(s.cfg)
	}

	for i := 0; i < s.cfg.Repeats; i++ {
		select {
		case <-s.stopC:
			return nil
		default:
		}

		res, xerr := s.Exchange()
		switch {
		case xerr != nil:
			Error.Printf("exchange %d/%d: %s", i+1, s.cfg.Repeats, xerr)
			if s.cfg.Repeats == 1 {
				return xerr
			}
		default:
			s.report(res)
			if res.GNSS == nil && absInt64(res.SystemOffsetUs) > maxSystemOffsetUs {
				return fmt.Errorf("%w: %dus", errOffsetTooLarge, res.SystemOffsetUs)
			}
		}

		if i == s.cfg.Repeats-1 {
			break
		}
		select {
		case <-s.stopC:
			return nil
		case <-time.After(s.cfg.interval()):
		}
	}
	return nil
}

func (s *Session) report(res *Result) {
	Info.Print("--------------- START ---------------")
	Info.Printf("received reply in %dus", res.RoundTripUs)
	Info.Printf("current time is %dus from the epoch, +/-%dus", res.EpochUs, res.RadiusUs)
	Info.Printf("system clock differs from that estimate by %dus", res.SystemOffsetUs)
	if res.GNSS != nil {
		Info.Printf("gnss clock differs from that estimate by %dus (arrival adjust %dus)",
			res.GNSS.OffsetUs, res.GNSS.ArrivalAdjustUs)
		Info.Printf("gnss fix mode=%d time=%d.%09d", res.GNSS.Fix.Mode, res.GNSS.Fix.Sec, res.GNSS.Fix.Nsec)
	}
	Info.Print("--------------- STOP ----------------")
}

func absInt64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
