// Package teatest drives bubbletea models synchronously in tests.
//
// Instead of running a tea.Program, the Driver calls Update directly and
// executes every returned Cmd on the spot, feeding the produced message
// back in until nothing is left. Cmds that wait on timers (cursor blink,
// spinner ticks) are dropped so a drain always settles. Cmds doing real I/O
// against a test backend need WithCmdTimeout.
package teatest

import (
	"fmt"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// MaxDrainSteps bounds the Cmds executed for a single Send.
const MaxDrainSteps = 500

// DefaultCmdTimeout separates message factories, which return in
// microseconds, from blink Cmds that sleep for about half a second.
const DefaultCmdTimeout = 10 * time.Millisecond

type Driver struct {
	T     *testing.T
	Model tea.Model

	// Quitting records a tea.QuitMsg seen while draining. The runtime would
	// normally swallow it, so models rarely track it themselves.
	Quitting bool

	cmdTimeout time.Duration
	size       *tea.WindowSizeMsg
}

type Option func(*Driver)

// WithCmdTimeout sets how long a Cmd may run before its result is dropped.
func WithCmdTimeout(timeout time.Duration) Option {
	return func(d *Driver) { d.cmdTimeout = timeout }
}

// WithSize delivers a WindowSizeMsg right after construction.
func WithSize(width, height int) Option {
	return func(d *Driver) { d.size = &tea.WindowSizeMsg{Width: width, Height: height} }
}

// New wraps model. Init is not run; call DrainInit for that.
func New(t *testing.T, model tea.Model, opts ...Option) *Driver {
	t.Helper()
	d := &Driver{T: t, Model: model, cmdTimeout: DefaultCmdTimeout}
	for _, opt := range opts {
		opt(d)
	}
	if d.size != nil {
		d.Model, _ = d.Model.Update(*d.size)
	}
	return d
}

func (d *Driver) DrainInit() {
	d.T.Helper()
	d.drain(d.Model.Init())
}

// Send runs msg through Update and drains whatever follows. It is a no-op
// once the model has quit.
func (d *Driver) Send(msg tea.Msg) {
	d.T.Helper()
	if d.Quitting {
		return
	}
	var cmd tea.Cmd
	d.Model, cmd = d.Model.Update(msg)
	d.drain(cmd)
}

func (d *Driver) SendKey(msg tea.KeyMsg) {
	d.T.Helper()
	d.Send(msg)
}

func (d *Driver) PressKey(r rune) {
	d.T.Helper()
	d.SendKey(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
}

func (d *Driver) press(t tea.KeyType) {
	d.T.Helper()
	d.SendKey(tea.KeyMsg{Type: t})
}

func (d *Driver) PressEnter() { d.T.Helper(); d.press(tea.KeyEnter) }
func (d *Driver) PressEsc()   { d.T.Helper(); d.press(tea.KeyEsc) }
func (d *Driver) PressCtrlC() { d.T.Helper(); d.press(tea.KeyCtrlC) }
func (d *Driver) PressUp()    { d.T.Helper(); d.press(tea.KeyUp) }
func (d *Driver) PressDown()  { d.T.Helper(); d.press(tea.KeyDown) }

// Type presses each rune of s in turn.
func (d *Driver) Type(s string) {
	d.T.Helper()
	for _, r := range s {
		d.PressKey(r)
	}
}

func (d *Driver) View() string { return d.Model.View() }

// drain executes cmd and everything it leads to, depth first, so the
// parts of a batch settle in order.
func (d *Driver) drain(cmd tea.Cmd) {
	d.T.Helper()
	pending := []tea.Cmd{cmd}
	for steps := 0; len(pending) > 0; steps++ {
		if steps == MaxDrainSteps {
			d.T.Logf("teatest: gave up draining after %d steps", MaxDrainSteps)
			return
		}
		next := pending[len(pending)-1]
		pending = pending[:len(pending)-1]
		if next == nil {
			continue
		}

		switch msg := run(next, d.cmdTimeout).(type) {
		case nil:
		case tea.BatchMsg:
			batch := slices.Clone([]tea.Cmd(msg))
			slices.Reverse(batch)
			pending = append(pending, batch...)
		case tea.QuitMsg:
			d.Quitting = true
			d.Model, _ = d.Model.Update(msg)
		default:
			if isTimerMsg(msg) {
				continue
			}
			var follow tea.Cmd
			d.Model, follow = d.Model.Update(msg)
			pending = append(pending, follow)
		}
	}
}

// run executes cmd, returning nil when it does not finish within timeout.
func run(cmd tea.Cmd, timeout time.Duration) tea.Msg {
	out := make(chan tea.Msg, 1)
	go func() { out <- cmd() }()
	select {
	case msg := <-out:
		return msg
	case <-time.After(timeout):
		return nil
	}
}

// isTimerMsg reports spinner ticks and cursor blinks. Handling either
// would schedule another timer and the drain would never settle.
func isTimerMsg(msg tea.Msg) bool {
	if _, ok := msg.(spinner.TickMsg); ok {
		return true
	}
	name := strings.ToLower(fmt.Sprintf("%T", msg))
	return strings.Contains(name, "blink")
}
