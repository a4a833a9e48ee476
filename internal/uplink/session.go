package uplink

import (
	"net"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dalnet/athena/internal/config"
	"github.com/dalnet/athena/internal/event"
	"github.com/dalnet/athena/internal/metrics"
	"github.com/dalnet/athena/internal/protocol"
	"github.com/dalnet/athena/internal/state"
	"github.com/dalnet/athena/internal/timer"
)

// Session owns the connect / run / die / reconnect cycle. Each attempt
// gets a fresh event queue, network model, and protocol module, so no
// state from a dead link leaks into the next one. Uplinks are tried in
// configured priority order, wrapping around after the last.
type Session struct {
	cfg   *config.Config
	stats *metrics.Metrics
	log   *logrus.Entry

	index int

	// Current link state, rebuilt on every attempt.
	Events  *event.Queue
	Network *state.Network
	Timers  *timer.Scheduler
	Uplink  *Uplink
	Module  protocol.Module

	// Extensions get a chance to subscribe before each connection.
	Subscribers []func(*Session)

	// sleep and dial are swappable for tests.
	sleep func(time.Duration)
	dial  func(network, addr string) (net.Conn, error)
}

// NewSession builds the session runner for the configured uplinks.
func NewSession(cfg *config.Config, stats *metrics.Metrics, log *logrus.Entry) *Session {
	return &Session{
		cfg:   cfg,
		stats: stats,
		log:   log,
		sleep: time.Sleep,
	}
}

// Run cycles through the uplinks forever, connecting, driving the link
// until it dies, then backing off and moving to the next remote.
func (s *Session) Run() {
	for {
		s.RunOnce()
	}
}

// RunOnce performs a single connection attempt against the current
// uplink, drives it until the link dies, then backs off and advances to
// the next remote. Returns whether the connection was established at
// all.
func (s *Session) RunOnce() bool {
	ok := s.attempt()
	s.backoff()
	s.advance()
	return ok
}

// Current returns the uplink config the next attempt will use.
func (s *Session) Current() *config.UplinkConfig {
	return &s.cfg.Uplinks[s.index]
}

func (s *Session) attempt() bool {
	ucfg := &s.cfg.Uplinks[s.index]

	factory := protocol.Find(ucfg.Protocol)
	if factory == nil {
		s.log.Errorf("unknown protocol %q for %s, skipping", ucfg.Protocol, ucfg.Name)
		return false
	}

	log := s.log.WithField("uplink", ucfg.Name)

	s.Events = event.NewQueue(log)
	s.Network = state.NewNetwork(s.Events, log)
	s.Timers = timer.NewScheduler(log)
	s.Uplink = New(ucfg, s.Events, s.Timers, s.stats, log)
	if s.dial != nil {
		s.Uplink.dial = s.dial
	}

	s.Module = factory(&protocol.Env{
		Me:      &s.cfg.Me,
		Uplink:  ucfg,
		Network: s.Network,
		Events:  s.Events,
		Sender:  s.Uplink,
		Log:     log,
	})
	s.Uplink.SetModule(s.Module)

	s.Events.Handle(event.Connected, func(args ...interface{}) {
		s.Module.SendHandshake()
	})
	s.Events.Handle(event.EndOfBurst, func(args ...interface{}) {
		if len(args) == 1 {
			if d, ok := args[0].(time.Duration); ok {
				log.Infof("finished synching to network in %.2fs", d.Seconds())
			}
		}
		for _, line := range s.Network.Topology() {
			log.Info(line)
		}
	})
	for _, sub := range s.Subscribers {
		sub(s)
	}

	if !s.Uplink.Connect() {
		return false
	}

	s.Events.Run()
	s.Uplink.Run()

	// The link died. Stop everything it scheduled and drain whatever
	// the teardown posted.
	s.Timers.StopAll()
	for s.Events.NeedsRun() {
		s.Events.Run()
	}

	return true
}

func (s *Session) backoff() {
	wait := time.Duration(s.cfg.Me.ReconnectTime) * time.Second
	s.log.Warnf("retrying in %d seconds", s.cfg.Me.ReconnectTime)
	s.sleep(wait)
}

// advance moves to the next uplink in priority order, wrapping around.
func (s *Session) advance() {
	s.stats.Reconnects.Inc()
	s.index++
	if s.index >= len(s.cfg.Uplinks) {
		s.index = 0
	}
}
