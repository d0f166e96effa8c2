package command

import (
	"net"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyberinferno/tcpserve/framing"
)

type stubSession struct {
	sent []string
}

func (s *stubSession) ID() string                { return "stub" }
func (s *stubSession) RemoteAddr() net.Addr      { return nil }
func (s *stubSession) Send(data []byte) error    { s.sent = append(s.sent, string(data)); return nil }
func (s *stubSession) TrySend(data []byte) error { return s.Send(data) }
func (s *stubSession) SendString(t string) error { s.sent = append(s.sent, t); return nil }
func (s *stubSession) Close()                    {}

type recordingFilter struct {
	name      string
	cancel    bool
	executing *[]string
	executed  *[]string
}

func (f *recordingFilter) OnExecuting(ctx *ExecContext) {
	*f.executing = append(*f.executing, f.name)
	if f.cancel {
		ctx.Cancel = true
	}
}

func (f *recordingFilter) OnExecuted(ctx *ExecContext) {
	*f.executed = append(*f.executed, f.name)
}

type filteredEcho struct {
	*Func
	filters []Filter
}

func (c *filteredEcho) Filters() []Filter { return c.filters }

func noop(name string) *Func {
	return NewFunc(name, func(Session, *framing.Request) error { return nil })
}

func TestRegistry_Build(t *testing.T) {
	t.Run("registers commands by name", func(t *testing.T) {
		r := NewRegistry(nil)
		require.NoError(t, r.Build([]Command{noop("ECHO"), noop("PING")}))

		assert.Equal(t, 2, r.Count())
		_, _, ok := r.Get("ECHO")
		assert.True(t, ok)
	})

	t.Run("lookup is case insensitive", func(t *testing.T) {
		r := NewRegistry(nil)
		require.NoError(t, r.Build([]Command{noop("Echo")}))

		cmd, _, ok := r.Get("ECHO")
		require.True(t, ok)
		assert.Equal(t, "Echo", cmd.Name())

		_, _, ok = r.Get("echo")
		assert.True(t, ok)
	})

	t.Run("duplicate names differing only in case are rejected", func(t *testing.T) {
		r := NewRegistry(nil)
		err := r.Build([]Command{noop("ECHO"), noop("echo")})

		assert.Error(t, err)
		assert.Equal(t, 0, r.Count())
	})

	t.Run("missing command is not found", func(t *testing.T) {
		r := NewRegistry(nil)
		require.NoError(t, r.Build([]Command{noop("ECHO")}))

		_, _, ok := r.Get("XYZ")
		assert.False(t, ok)
	})
}

func TestRegistry_Apply(t *testing.T) {
	t.Run("add, replace and remove publish atomically", func(t *testing.T) {
		r := NewRegistry(nil)
		require.NoError(t, r.Build([]Command{noop("A")}))

		require.NoError(t, r.Apply([]Update{
			{Op: UpdateAdd, Command: noop("B")},
			{Op: UpdateReplace, Command: noop("A")},
		}))
		assert.Equal(t, 2, r.Count())

		require.NoError(t, r.Apply([]Update{{Op: UpdateRemove, Command: noop("A")}}))
		assert.Equal(t, 1, r.Count())
		_, _, ok := r.Get("A")
		assert.False(t, ok)
	})

	t.Run("add colliding with an existing name fails and publishes nothing", func(t *testing.T) {
		r := NewRegistry(nil)
		require.NoError(t, r.Build([]Command{noop("A")}))

		err := r.Apply([]Update{
			{Op: UpdateAdd, Command: noop("B")},
			{Op: UpdateAdd, Command: noop("a")},
		})
		assert.Error(t, err)
		_, _, ok := r.Get("B")
		assert.False(t, ok)
	})

	t.Run("concurrent readers never observe a partial mapping", func(t *testing.T) {
		r := NewRegistry(nil)
		require.NoError(t, r.Build([]Command{noop("A"), noop("B")}))

		var wg sync.WaitGroup
		stop := make(chan struct{})

		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					count := r.Count()
					assert.True(t, count == 2 || count == 3)
				}
			}
		}()

		for i := 0; i < 50; i++ {
			require.NoError(t, r.Apply([]Update{{Op: UpdateAdd, Command: noop("C")}}))
			require.NoError(t, r.Apply([]Update{{Op: UpdateRemove, Command: noop("C")}}))
		}

		close(stop)
		wg.Wait()
	})
}

func TestRegistry_Filters(t *testing.T) {
	t.Run("global filters precede command filters", func(t *testing.T) {
		var executing, executed []string
		global := &recordingFilter{name: "global", executing: &executing, executed: &executed}
		own := &recordingFilter{name: "own", executing: &executing, executed: &executed}

		r := NewRegistry([]Filter{global})
		cmd := &filteredEcho{Func: noop("ECHO"), filters: []Filter{own}}
		require.NoError(t, r.Build([]Command{cmd}))

		_, filters, ok := r.Get("ECHO")
		require.True(t, ok)
		require.Len(t, filters, 2)

		ctx := &ExecContext{Session: &stubSession{}}
		for _, f := range filters {
			f.OnExecuting(ctx)
		}
		assert.Equal(t, []string{"global", "own"}, executing)
	})

	t.Run("command without filters resolves to none", func(t *testing.T) {
		r := NewRegistry(nil)
		require.NoError(t, r.Build([]Command{noop("ECHO")}))

		_, filters, ok := r.Get("ECHO")
		require.True(t, ok)
		assert.Nil(t, filters)
	})
}

func TestStaticLoader(t *testing.T) {
	t.Run("loads exactly the given commands", func(t *testing.T) {
		loader := NewStaticLoader(noop("A"), noop("B"))
		commands, err := loader.Load()

		require.NoError(t, err)
		assert.Len(t, commands, 2)
	})
}
