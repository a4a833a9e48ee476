// Package uplink owns one TCP session to a remote IRC server: the
// socket, the receive and send queues, and the read → frame → parse →
// dispatch pipeline that drives the protocol module. The reconnection
// policy sits above it in Session.
package uplink

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/dalnet/athena/internal/config"
	"github.com/dalnet/athena/internal/event"
	"github.com/dalnet/athena/internal/message"
	"github.com/dalnet/athena/internal/metrics"
	"github.com/dalnet/athena/internal/protocol"
	"github.com/dalnet/athena/internal/timer"
)

const (
	// readBufSize matches the read size the original daemon used.
	readBufSize = 8192

	// maxWait bounds the readiness wait so timers and the send queue
	// are serviced even on a silent link.
	maxWait = 30 * time.Second

	// minWait keeps an imminent timer from spinning the loop.
	minWait = 50 * time.Millisecond
)

// Uplink is one live connection to a remote server.
type Uplink struct {
	cfg *config.UplinkConfig
	log *logrus.Entry

	events *event.Queue
	timers *timer.Scheduler
	stats  *metrics.Metrics
	module protocol.Module

	conn      net.Conn
	framer    Framer
	sendq     []string
	limiter   *rate.Limiter
	connected bool
	dead      bool

	// dial is swappable for tests.
	dial func(network, addr string) (net.Conn, error)
}

// New wires an uplink for one configured remote. The protocol module is
// attached afterward with SetModule, since the module needs the uplink
// as its Sender.
func New(cfg *config.UplinkConfig, events *event.Queue, timers *timer.Scheduler,
	stats *metrics.Metrics, log *logrus.Entry) *Uplink {

	u := &Uplink{
		cfg:    cfg,
		log:    log,
		events: events,
		timers: timers,
		stats:  stats,
	}

	if cfg.FloodRate > 0 {
		burst := cfg.FloodBurst
		if burst <= 0 {
			burst = 1
		}
		u.limiter = rate.NewLimiter(rate.Limit(cfg.FloodRate), burst)
	}

	u.dial = func(network, addr string) (net.Conn, error) {
		d := net.Dialer{Timeout: 30 * time.Second}
		if cfg.BindHost != "" {
			d.LocalAddr = &net.TCPAddr{IP: net.ParseIP(cfg.BindHost)}
		}
		return d.Dial(network, addr)
	}

	return u
}

// SetModule attaches the protocol module driving this session.
func (u *Uplink) SetModule(m protocol.Module) {
	u.module = m
}

// Connect establishes the TCP session and posts connected. Failure is
// not an error to the caller beyond the dead state: it is logged and the
// reconnect policy takes over.
func (u *Uplink) Connect() bool {
	u.log.Infof("connecting to %s:%d", u.cfg.Host, u.cfg.Port)

	conn, err := u.dial("tcp", u.cfg.Addr())
	if err != nil {
		u.log.Errorf("connection failed: %v", err)
		u.SetDead()
		return false
	}

	u.log.Infof("successfully connected to %s:%d", u.cfg.Name, u.cfg.Port)
	u.conn = conn
	u.connected = true
	u.dead = false

	u.events.Post(event.Connected)
	return true
}

// Connected reports whether the session is up.
func (u *Uplink) Connected() bool {
	return u.connected
}

// NeedWrite reports whether the send queue has pending lines.
func (u *Uplink) NeedWrite() bool {
	return len(u.sendq) > 0
}

// Send formats a line onto the send queue. Implements protocol.Sender.
func (u *Uplink) Send(format string, args ...interface{}) {
	u.sendq = append(u.sendq, fmt.Sprintf(format, args...))
}

// SetDead tears the connection down: close the socket, drop the receive
// queue, flip the connected flag, post disconnected. Idempotent.
func (u *Uplink) SetDead() {
	if u.dead {
		return
	}
	u.dead = true

	u.log.Infof("lost connection to %s:%d", u.cfg.Name, u.cfg.Port)
	u.events.Post(event.Disconnected)

	if u.conn != nil {
		u.conn.Close()
		u.conn = nil
	}
	u.framer.Clear()
	u.connected = false
}

// Dead reports whether the session has been torn down.
func (u *Uplink) Dead() bool {
	return u.dead
}

// Run drives the session until it dies: wait for readable data (bounded
// by the next timer), frame it, parse and dispatch complete lines, fire
// due timers, flush the send queue, drain the event queue. Everything
// runs on this one goroutine; handlers must not block.
func (u *Uplink) Run() {
	buf := make([]byte, readBufSize)

	for !u.dead {
		u.write()
		if u.dead {
			return
		}

		u.conn.SetReadDeadline(time.Now().Add(u.waitTime()))

		n, err := u.conn.Read(buf)
		if n > 0 {
			u.framer.Feed(buf[:n])
			if u.framer.Ready() {
				u.parse()
			}
		}
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				// Readiness wait expired; fall through to timers.
			} else {
				u.log.Errorf("read error from %s: %v", u.cfg.Name, err)
				u.SetDead()
				return
			}
		}

		u.timers.Fire()
		for u.events.NeedsRun() {
			u.events.Run()
		}
	}
}

// waitTime bounds the blocking read by the ceiling, the next timer, and,
// when the flood limiter is holding outbound lines back, the limiter's
// refill interval, so queued lines go out as tokens free up instead of
// stalling behind a quiet link.
func (u *Uplink) waitTime() time.Duration {
	wait := maxWait
	if next, ok := u.timers.NextDue(); ok {
		if until := time.Until(next); until < wait {
			wait = until
		}
	}
	if u.NeedWrite() && u.limiter != nil {
		if refill := time.Duration(float64(time.Second) / u.cfg.FloodRate); refill < wait {
			wait = refill
		}
	}
	if wait < minWait {
		wait = minWait
	}
	return wait
}

// parse dequeues every complete line, dispatches it to the protocol
// module, and posts the per-command raw event so extensions see traffic
// the module itself does not handle. Events raised by one line's
// handlers are fully drained before the next line is parsed.
func (u *Uplink) parse() {
	for _, line := range u.framer.Drain() {
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			continue
		}

		u.log.Debugf("-> %s", line)
		u.stats.LinesIn.Inc()

		m := message.Parse(line)
		if m == nil {
			continue
		}

		if !u.module.Handle(m) {
			u.log.Debugf("no protocol handler for %s", strings.ToUpper(m.Command))
		}

		// Fire off an event for extensions, etc.
		u.events.Post("irc_"+strings.ToLower(m.Command), m)

		for u.events.NeedsRun() {
			u.events.Run()
		}

		if u.dead {
			return
		}
	}
}

// write flushes the send queue, respecting the flood limiter. Lines the
// limiter holds back stay queued for the next loop iteration.
func (u *Uplink) write() {
	for len(u.sendq) > 0 {
		if u.limiter != nil && !u.limiter.Allow() {
			return
		}

		line := u.sendq[0]
		u.sendq = u.sendq[1:]

		u.log.Debugf("<- %s", line)

		u.conn.SetWriteDeadline(time.Now().Add(30 * time.Second))
		if _, err := u.conn.Write([]byte(line + "\r\n")); err != nil {
			u.log.Errorf("write error to %s: %v", u.cfg.Name, err)
			u.SetDead()
			return
		}
		u.stats.LinesOut.Inc()
	}
}
