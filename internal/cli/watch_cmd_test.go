package cli

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexanderramin/rankcast/internal/domain"
	"github.com/alexanderramin/rankcast/internal/teatest"
)

func newWatchDriver(t *testing.T, e *fakeEngine, lane domain.Lane) *teatest.Driver {
	t.Helper()
	m := newWatchModel(context.Background(), e, lane, time.Hour, func() time.Time { return testNow })
	d := teatest.New(t, m, teatest.WithSize(140, 30))
	d.DrainInit()
	return d
}

func TestWatch_LoadsLane(t *testing.T) {
	e := &fakeEngine{board: testBoard()}
	d := newWatchDriver(t, e, domain.LaneStandard)

	assert.True(t, d.ViewContains("First Song", "Second Song", "80.0%", "updated 12:00:00"))
	assert.NotContains(t, d.View(), "Mania Song")
	assert.Equal(t, []string{"board"}, e.calls)
}

func TestWatch_TabCyclesLanes(t *testing.T) {
	d := newWatchDriver(t, &fakeEngine{board: testBoard()}, domain.LaneCatch)
	assert.NotContains(t, d.View(), "Mania Song")

	d.PressTab()
	assert.True(t, d.ViewContains("Mania Song"))

	d.PressTab()
	assert.True(t, d.ViewContains("First Song"))

	d.PressShiftTab()
	assert.True(t, d.ViewContains("Mania Song"))
	assert.Equal(t, domain.LaneMania, d.Model.(watchModel).lane)
}

func TestWatch_RefreshReloads(t *testing.T) {
	e := &fakeEngine{board: testBoard()}
	d := newWatchDriver(t, e, domain.LaneStandard)

	d.PressKey('r')
	assert.Equal(t, []string{"board", "board"}, e.calls)

	d.Send(refreshTickMsg{})
	assert.Len(t, e.calls, 3)
}

func TestWatch_LaneSwitchResetsCursor(t *testing.T) {
	d := newWatchDriver(t, &fakeEngine{board: testBoard()}, domain.LaneStandard)

	d.PressDown()
	assert.Equal(t, 1, d.Model.(watchModel).table.Cursor())

	d.PressShiftTab()
	assert.Equal(t, domain.LaneMania, d.Model.(watchModel).lane)
	assert.Equal(t, 0, d.Model.(watchModel).table.Cursor())
}

func TestWatch_ShowsLoadError(t *testing.T) {
	d := newWatchDriver(t, &fakeEngine{err: errors.New("store closed")}, domain.LaneStandard)
	assert.True(t, d.ViewContains("error: store closed"))
}

func TestWatch_Quit(t *testing.T) {
	for name, press := range map[string]func(*teatest.Driver){
		"q":      func(d *teatest.Driver) { d.PressKey('q') },
		"ctrl+c": func(d *teatest.Driver) { d.PressCtrlC() },
	} {
		t.Run(name, func(t *testing.T) {
			d := newWatchDriver(t, &fakeEngine{board: testBoard()}, domain.LaneStandard)
			press(d)
			require.True(t, d.Quitting)
		})
	}
}

func TestWatchRows(t *testing.T) {
	rows := watchRows(testBoard().Lane(domain.LaneStandard), testNow)
	require.Len(t, rows, 2)
	assert.Equal(t, "10", rows[0][1])
	assert.Equal(t, "80.0%", rows[0][5])
	assert.Equal(t, "", rows[0][6])
	assert.Equal(t, "-", rows[1][3])
	assert.Equal(t, "!", rows[1][6])
}
