// Package notify carries user-visible feedback: non-blocking notices and
// yes/no confirmations for destructive actions.
package notify

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"sync"

	"golang.org/x/term"

	"github.com/wudi/pdfedit/observability"
)

type Level int

const (
	Info Level = iota
	Success
	Warning
	Error
)

func (l Level) String() string {
	switch l {
	case Success:
		return "success"
	case Warning:
		return "warning"
	case Error:
		return "error"
	default:
		return "info"
	}
}

type Notifier interface {
	Notify(msg string, level Level)
}

// Confirmer asks the user a yes/no question. The callback runs exactly once.
type Confirmer interface {
	Confirm(msg string, cb func(bool))
}

// LogNotifier forwards notices to a logger.
type LogNotifier struct {
	Logger observability.Logger
}

func (n LogNotifier) Notify(msg string, level Level) {
	l := observability.OrNop(n.Logger)
	f := observability.String("notice", level.String())
	switch level {
	case Warning:
		l.Warn(msg, f)
	case Error:
		l.Error(msg, f)
	default:
		l.Info(msg, f)
	}
}

// Notice is one recorded notification.
type Notice struct {
	Msg   string
	Level Level
}

// Recorder keeps every notice; it is the notifier used by tests and by
// headless callers that report notices at the end of a run.
type Recorder struct {
	mu      sync.Mutex
	notices []Notice
}

func (r *Recorder) Notify(msg string, level Level) {
	r.mu.Lock()
	r.notices = append(r.notices, Notice{Msg: msg, Level: level})
	r.mu.Unlock()
}

func (r *Recorder) Notices() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notice(nil), r.notices...)
}

// Last returns the most recent notice.
func (r *Recorder) Last() (Notice, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.notices) == 0 {
		return Notice{}, false
	}
	return r.notices[len(r.notices)-1], true
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	r.notices = nil
	r.mu.Unlock()
}

// Nop drops every notice.
type Nop struct{}

func (Nop) Notify(string, Level) {}

// AutoConfirmer answers every question with Answer.
type AutoConfirmer struct {
	Answer bool
}

func (a AutoConfirmer) Confirm(_ string, cb func(bool)) { cb(a.Answer) }

// TerminalConfirmer prompts on a terminal. When Fd refers to a terminal a
// single keypress is read in raw mode; otherwise a line is read from In.
type TerminalConfirmer struct {
	Fd  int
	In  io.Reader
	Out io.Writer
}

func (c TerminalConfirmer) Confirm(msg string, cb func(bool)) {
	fmt.Fprintf(c.Out, "%s [y/N] ", msg)
	ans, err := c.read()
	fmt.Fprintln(c.Out)
	cb(err == nil && ans)
}

func (c TerminalConfirmer) read() (bool, error) {
	if term.IsTerminal(c.Fd) {
		state, err := term.MakeRaw(c.Fd)
		if err != nil {
			return false, err
		}
		defer term.Restore(c.Fd, state)
		var b [1]byte
		if _, err := c.In.Read(b[:]); err != nil {
			return false, err
		}
		return b[0] == 'y' || b[0] == 'Y', nil
	}
	line, err := bufio.NewReader(c.In).ReadString('\n')
	if err != nil && line == "" {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}
