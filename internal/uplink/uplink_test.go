package uplink

import (
	"bufio"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dalnet/athena/internal/config"
	"github.com/dalnet/athena/internal/event"
	"github.com/dalnet/athena/internal/message"
	"github.com/dalnet/athena/internal/metrics"
	"github.com/dalnet/athena/internal/state"
	"github.com/dalnet/athena/internal/timer"
)

// fakeModule records what the uplink dispatched to it.
type fakeModule struct {
	handled    []string
	handshakes int
	env        *fakeModuleEnv
}

type fakeModuleEnv struct {
	sender interface {
		Send(format string, args ...interface{})
	}
}

func (m *fakeModule) SendHandshake() {
	m.handshakes++
	if m.env != nil {
		m.env.sender.Send("PASS linkage TS 6 :0AL")
	}
}

func (m *fakeModule) Handle(msg *message.Message) bool {
	m.handled = append(m.handled, strings.ToUpper(msg.Command))
	return strings.ToUpper(msg.Command) != "UNKNOWN"
}

func (m *fakeModule) IntroduceUser(nick, user, host, real, umodes string) *state.User {
	return nil
}
func (m *fakeModule) Join(u *state.User, channel string)            {}
func (m *fakeModule) Privmsg(from *state.User, target, text string) {}
func (m *fakeModule) Notice(from *state.User, target, text string)  {}
func (m *fakeModule) Quit(u *state.User, reason string)             {}
func (m *fakeModule) Raw(line string)                               {}

func testLog() *logrus.Entry {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return logrus.NewEntry(l)
}

func newTestUplink(t *testing.T) (*Uplink, *fakeModule, *event.Queue) {
	t.Helper()

	log := testLog()
	events := event.NewQueue(log)
	timers := timer.NewScheduler(log)

	cfg := &config.UplinkConfig{
		Name: "hub.dal.net",
		Host: "127.0.0.1",
		Port: 6667,
	}

	u := New(cfg, events, timers, metrics.New(), log)
	mod := &fakeModule{}
	u.SetModule(mod)

	return u, mod, events
}

func TestParseDispatchesToModule(t *testing.T) {
	u, mod, _ := newTestUplink(t)

	u.framer.Feed([]byte("PING :hub.dal.net\r\n:42X PONG hub :services\r\n"))
	require.True(t, u.framer.Ready())
	u.parse()

	assert.Equal(t, []string{"PING", "PONG"}, mod.handled)
}

func TestParsePostsRawEvents(t *testing.T) {
	u, _, events := newTestUplink(t)

	var got []*message.Message
	events.Handle("irc_ping", func(args ...interface{}) {
		got = append(got, args[0].(*message.Message))
	})

	u.framer.Feed([]byte("PING :hub.dal.net\r\n"))
	u.parse()

	require.Len(t, got, 1)
	assert.Equal(t, "PING", got[0].Command)
}

func TestParseRawEventEvenWhenUnhandled(t *testing.T) {
	u, mod, events := newTestUplink(t)

	fired := 0
	events.Handle("irc_unknown", func(args ...interface{}) { fired++ })

	u.framer.Feed([]byte("UNKNOWN foo bar\r\n"))
	u.parse()

	assert.Equal(t, []string{"UNKNOWN"}, mod.handled)
	assert.Equal(t, 1, fired)
}

func TestParseSkipsEmptyLines(t *testing.T) {
	u, mod, _ := newTestUplink(t)

	u.framer.Feed([]byte("\r\nPING :x\r\n"))
	u.parse()

	assert.Equal(t, []string{"PING"}, mod.handled)
}

func TestSendQueuesFormattedLines(t *testing.T) {
	u, _, _ := newTestUplink(t)

	u.Send("PASS %s TS 6 :%s", "linkage", "0AL")
	u.Send("CAPAB :QS EX IE")

	require.True(t, u.NeedWrite())
	assert.Equal(t, []string{"PASS linkage TS 6 :0AL", "CAPAB :QS EX IE"}, u.sendq)
}

func TestWriteFlushesQueue(t *testing.T) {
	u, _, _ := newTestUplink(t)

	ours, theirs := net.Pipe()
	u.conn = ours
	u.connected = true

	u.Send("PASS linkage TS 6 :0AL")
	u.Send("SERVER services.dal.net 1 :Services")

	lines := make(chan string, 2)
	go func() {
		r := bufio.NewReader(theirs)
		for i := 0; i < 2; i++ {
			line, err := r.ReadString('\n')
			if err != nil {
				close(lines)
				return
			}
			lines <- line
		}
		close(lines)
	}()

	u.write()

	assert.Equal(t, "PASS linkage TS 6 :0AL\r\n", <-lines)
	assert.Equal(t, "SERVER services.dal.net 1 :Services\r\n", <-lines)
	assert.False(t, u.NeedWrite())
}

func TestFloodLimiterHoldsLinesBack(t *testing.T) {
	log := testLog()
	events := event.NewQueue(log)

	cfg := &config.UplinkConfig{
		Name:       "hub.dal.net",
		Host:       "127.0.0.1",
		Port:       6667,
		FloodRate:  0.001,
		FloodBurst: 2,
	}
	u := New(cfg, events, timer.NewScheduler(log), metrics.New(), log)

	ours, theirs := net.Pipe()
	u.conn = ours
	u.connected = true

	go func() {
		r := bufio.NewReader(theirs)
		for {
			if _, err := r.ReadString('\n'); err != nil {
				return
			}
		}
	}()

	u.Send("ONE")
	u.Send("TWO")
	u.Send("THREE")
	u.write()

	// Burst of 2 goes out, the third waits for the limiter.
	assert.Equal(t, []string{"THREE"}, u.sendq)
}

func TestWaitTimeBoundedByLimiterBackfill(t *testing.T) {
	log := testLog()
	events := event.NewQueue(log)

	cfg := &config.UplinkConfig{
		Name:       "hub.dal.net",
		Host:       "127.0.0.1",
		Port:       6667,
		FloodRate:  2,
		FloodBurst: 1,
	}
	u := New(cfg, events, timer.NewScheduler(log), metrics.New(), log)

	assert.Equal(t, maxWait, u.waitTime())

	// A line the limiter is holding back must cap the readiness wait at
	// the token refill interval, not the 30s ceiling.
	u.Send("ONE")
	assert.Equal(t, 500*time.Millisecond, u.waitTime())
}

func TestSetDeadIsIdempotent(t *testing.T) {
	u, _, events := newTestUplink(t)

	disconnects := 0
	events.Handle(event.Disconnected, func(args ...interface{}) { disconnects++ })

	ours, _ := net.Pipe()
	u.conn = ours
	u.connected = true

	u.SetDead()
	u.SetDead()
	events.Run()

	assert.True(t, u.Dead())
	assert.False(t, u.Connected())
	assert.Equal(t, 1, disconnects)
}

func TestParseStopsWhenHandlerKillsLink(t *testing.T) {
	u, mod, events := newTestUplink(t)

	events.Handle("irc_error", func(args ...interface{}) {
		u.SetDead()
	})

	u.framer.Feed([]byte("ERROR :closing link\r\nPING :never\r\n"))
	u.parse()

	assert.Equal(t, []string{"ERROR"}, mod.handled)
}

func TestRunDrivesFullPipeline(t *testing.T) {
	u, mod, events := newTestUplink(t)
	mod.env = &fakeModuleEnv{sender: u}

	ours, theirs := net.Pipe()
	u.dial = func(network, addr string) (net.Conn, error) {
		return ours, nil
	}
	events.Handle(event.Connected, func(args ...interface{}) {
		mod.SendHandshake()
	})

	require.True(t, u.Connect())
	events.Run()

	done := make(chan struct{})
	go func() {
		u.Run()
		close(done)
	}()

	r := bufio.NewReader(theirs)
	line, err := r.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "PASS linkage TS 6 :0AL\r\n", line)

	_, err = theirs.Write([]byte("PING :hub.dal.net\r\n"))
	require.NoError(t, err)

	theirs.Close()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("uplink loop did not exit after peer close")
	}

	assert.True(t, u.Dead())
	assert.Contains(t, mod.handled, "PING")
	assert.Equal(t, 1, mod.handshakes)
}

func TestConnectFailurePostsNothingButDeath(t *testing.T) {
	u, _, events := newTestUplink(t)

	u.dial = func(network, addr string) (net.Conn, error) {
		return nil, &net.OpError{Op: "dial", Err: assert.AnError}
	}

	connects := 0
	events.Handle(event.Connected, func(args ...interface{}) { connects++ })

	assert.False(t, u.Connect())
	events.Run()

	assert.True(t, u.Dead())
	assert.Equal(t, 0, connects)
}
