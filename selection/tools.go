package selection

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/wudi/pdfedit/annotation"
)

type Tool string

const (
	EditText  Tool = "editText"
	AddText   Tool = "addText"
	MoveText  Tool = "moveText"
	Draw      Tool = "draw"
	Rectangle Tool = "rectangle"
	Circle    Tool = "circle"
	OCRSelect Tool = "ocrSelect"
	Fill      Tool = "fill"
	Patch     Tool = "patch"
)

// DefaultTool is active after load and after a one-shot tool reverts.
const DefaultTool = EditText

// DefaultOneShotDelay is how long a one-shot tool stays active after its
// action completes.
const DefaultOneShotDelay = 300 * time.Millisecond

// Tools lists every tool.
var Tools = []Tool{EditText, AddText, MoveText, Draw, Rectangle, Circle, OCRSelect, Fill, Patch}

// ParseTool validates a tool name.
func ParseTool(s string) (Tool, error) {
	for _, t := range Tools {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("selection: unknown tool %q", s)
}

// OneShot reports whether t reverts to DefaultTool after one action.
func (t Tool) OneShot() bool { return t == AddText || t == OCRSelect }

// Routing decides which surface receives pointer events.
type Routing int

const (
	// RouteText sends pointers to the text layer; shape canvas records are
	// not hit-testable.
	RouteText Routing = iota
	// RouteShapes sends pointers to the shape canvas; original text runs are
	// not hit-testable.
	RouteShapes
	// RouteRegion turns the page into a plain region selector.
	RouteRegion
)

func (r Routing) String() string {
	switch r {
	case RouteShapes:
		return "shapes"
	case RouteRegion:
		return "region"
	default:
		return "text"
	}
}

func (t Tool) Routing() Routing {
	switch t {
	case Draw, Rectangle, Circle, Fill, Patch:
		return RouteShapes
	case OCRSelect:
		return RouteRegion
	default:
		return RouteText
	}
}

// hitOrder lists collections topmost first, the reverse of export layering.
var hitOrder = []annotation.Collection{
	annotation.Patches,
	annotation.Stamps,
	annotation.Signatures,
	annotation.TextOverlays,
	annotation.FillAreas,
	annotation.Annotations,
	annotation.TextEdits,
}

// Collections returns the collections hit-testable under r, topmost first.
func (r Routing) Collections() []annotation.Collection {
	var out []annotation.Collection
	for _, c := range hitOrder {
		switch r {
		case RouteRegion:
			continue
		case RouteText:
			if c == annotation.Annotations || c == annotation.FillAreas {
				continue
			}
		case RouteShapes:
			if c == annotation.TextEdits {
				continue
			}
		}
		out = append(out, c)
	}
	return out
}

// Timer is a pending scheduled call.
type Timer interface {
	Stop() bool
}

// Scheduler runs f once after d.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// RealScheduler schedules on the runtime timer.
type RealScheduler struct{}

func (RealScheduler) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// ManualScheduler runs callbacks only when Advance moves its clock past their
// deadline.
type ManualScheduler struct {
	mu    sync.Mutex
	now   time.Duration
	tasks []*manualTask
}

type manualTask struct {
	s       *ManualScheduler
	at      time.Duration
	f       func()
	stopped bool
}

func (t *manualTask) Stop() bool {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	was := !t.stopped
	t.stopped = true
	return was
}

func (m *ManualScheduler) AfterFunc(d time.Duration, f func()) Timer {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := &manualTask{s: m, at: m.now + d, f: f}
	m.tasks = append(m.tasks, t)
	return t
}

// Advance moves the clock forward and runs every due callback in deadline
// order.
func (m *ManualScheduler) Advance(d time.Duration) {
	m.mu.Lock()
	m.now += d
	var due []*manualTask
	rest := m.tasks[:0]
	for _, t := range m.tasks {
		switch {
		case t.stopped:
		case t.at <= m.now:
			t.stopped = true
			due = append(due, t)
		default:
			rest = append(rest, t)
		}
	}
	m.tasks = rest
	m.mu.Unlock()
	sort.SliceStable(due, func(i, j int) bool { return due[i].at < due[j].at })
	for _, t := range due {
		t.f()
	}
}

// Pending counts callbacks that have neither run nor been stopped.
func (m *ManualScheduler) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.tasks {
		if !t.stopped {
			n++
		}
	}
	return n
}
