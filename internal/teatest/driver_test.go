package teatest

import (
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
)

type slowDoneMsg struct{}

// probe counts the messages it sees. Pressing "s" starts a slow Cmd and a
// spinner tick; "q" quits.
type probe struct {
	spin  spinner.Model
	slow  time.Duration
	done  int
	ticks int
	keys  []string
	width int
}

func (p probe) Init() tea.Cmd { return nil }

func (p probe) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		p.width = msg.Width
	case tea.KeyMsg:
		p.keys = append(p.keys, msg.String())
		switch msg.String() {
		case "s":
			slow := p.slow
			return p, tea.Batch(p.spin.Tick, func() tea.Msg {
				time.Sleep(slow)
				return slowDoneMsg{}
			})
		case "q":
			return p, tea.Quit
		}
	case slowDoneMsg:
		p.done++
	case spinner.TickMsg:
		p.ticks++
	}
	return p, nil
}

func (p probe) View() string { return "" }

func TestDriver_SkipsSlowCmdsByDefault(t *testing.T) {
	d := New(t, probe{spin: spinner.New(), slow: 50 * time.Millisecond}, WithSize(80, 24))
	d.DrainInit()
	d.PressKey('s')

	m := d.Model.(probe)
	assert.Equal(t, 80, m.width)
	assert.Equal(t, 0, m.done)
	assert.Equal(t, 0, m.ticks)
}

func TestDriver_WithCmdTimeoutWaitsForIO(t *testing.T) {
	d := New(t, probe{spin: spinner.New(), slow: 20 * time.Millisecond}, WithCmdTimeout(time.Second))
	d.PressKey('s')

	m := d.Model.(probe)
	assert.Equal(t, 1, m.done)
	assert.Equal(t, 0, m.ticks, "spinner ticks are never fed back")
}

func TestDriver_TypeAndQuit(t *testing.T) {
	d := New(t, probe{})
	d.Type("ab")
	d.PressKey('q')
	assert.True(t, d.Quitting)

	d.PressKey('c')
	assert.Equal(t, []string{"a", "b", "q"}, d.Model.(probe).keys)
}
