// Package dnsbl checks connecting users against DNS blacklists. Each
// freshly seen user's IP is reversed and looked up under the configured
// zones; a listing is logged, recorded, and the user notified.
package dnsbl

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/ergochat/irc-go/ircfmt"
	"github.com/sirupsen/logrus"

	"github.com/dalnet/athena/internal/config"
	"github.com/dalnet/athena/internal/event"
	"github.com/dalnet/athena/internal/state"
	"github.com/dalnet/athena/internal/storage"
	"github.com/dalnet/athena/internal/uplink"
)

// DNSBL is the blacklist-checking service.
type DNSBL struct {
	cfg     *config.Config
	log     *logrus.Entry
	dataDir string

	// lookup is swappable for tests. Defaults to net.LookupHost.
	lookup func(host string) ([]string, error)

	// Per-session state, reset on every Attach.
	bursting bool
	pending  int
	client   *state.User
}

// New builds the service. The caller only registers it when the dnsbl
// config section is present.
func New(cfg *config.Config, log *logrus.Entry) *DNSBL {
	return &DNSBL{
		cfg:     cfg,
		log:     log,
		dataDir: cfg.Me.DataDir,
		lookup:  net.LookupHost,
	}
}

// Name implements service.Service.
func (d *DNSBL) Name() string { return "dnsbl" }

// Attach subscribes the service to a fresh session. Users seen during
// the initial burst are not checked; they were already on the network
// before we linked.
func (d *DNSBL) Attach(s *uplink.Session) {
	d.bursting = true
	d.pending = 0
	d.client = nil

	s.Events.Handle(event.EndOfBurst, func(args ...interface{}) {
		d.bursting = false
		d.client = s.Module.IntroduceUser(d.cfg.DNSBL.Nick, "dnsbl",
			d.cfg.Me.Name, "DNSBL monitor", "io")
	})

	s.Events.Handle(event.UserAdded, func(args ...interface{}) {
		u, ok := args[0].(*state.User)
		if !ok || d.bursting {
			return
		}
		if u.Server == nil {
			// One of our own pseudo-clients.
			return
		}
		d.schedule(s, u)
	})
}

// schedule queues a check for the user, spacing checks out by the
// configured delay so a join flood does not turn into a resolver flood.
func (d *DNSBL) schedule(s *uplink.Session, u *state.User) {
	if !checkable(u.IP) {
		return
	}

	d.pending++
	wait := time.Duration(d.pending*d.cfg.DNSBL.Delay) * time.Second

	s.Timers.After(wait, func() {
		d.pending--
		d.check(s, u)
	})
}

// check queries each configured blacklist, stopping at the first that
// lists the user's IP.
func (d *DNSBL) check(s *uplink.Session, u *state.User) {
	rev := reverseIP(u.IP)
	if rev == "" {
		return
	}

	for _, zone := range d.cfg.DNSBL.Blacklists {
		addrs, err := d.lookup(rev + "." + zone)
		if err != nil || len(addrs) == 0 {
			continue
		}

		d.hit(s, u, zone)
		return
	}

	d.log.Debugf("dnsbl: %s (%s) is clean", u.Nickname, u.IP)
}

func (d *DNSBL) hit(s *uplink.Session, u *state.User, zone string) {
	mask := fmt.Sprintf("%s!%s@%s", u.Nickname, u.Username, u.Hostname)
	d.log.Warnf("dnsbl: %s (%s) is listed in %s", mask, u.IP, zone)

	if d.client != nil {
		text := ircfmt.Unescape(fmt.Sprintf(
			"your host $b%s$b is listed in $b%s$b", u.IP, zone))
		s.Module.Notice(d.client, u.ID, text)
	}

	hits, err := storage.LoadHits(d.dataDir)
	if err != nil {
		d.log.Errorf("dnsbl: cannot load hit log: %v", err)
		return
	}
	hits = storage.AddHit(hits, storage.Hit{
		IP:        u.IP,
		Blacklist: zone,
		Mask:      mask,
		When:      time.Now().UTC(),
	})
	if err := storage.SaveHits(d.dataDir, hits); err != nil {
		d.log.Errorf("dnsbl: cannot save hit log: %v", err)
	}
}

// checkable reports whether the IP is a real IPv4 address we can query.
// Dialects send "0" for spoofed hosts.
func checkable(ip string) bool {
	parsed := net.ParseIP(ip)
	return parsed != nil && parsed.To4() != nil
}

// reverseIP returns the octets of an IPv4 address in reverse order, the
// form DNS blacklists are keyed on.
func reverseIP(ip string) string {
	octets := strings.Split(ip, ".")
	if len(octets) != 4 {
		return ""
	}
	return octets[3] + "." + octets[2] + "." + octets[1] + "." + octets[0]
}
