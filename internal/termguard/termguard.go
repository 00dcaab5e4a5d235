// Package termguard is the RAII-style terminal setup/teardown guard: it
// puts the terminal into raw mode with the alternate screen, bracketed
// paste, mouse capture, and the Kitty keyboard-enhancement protocol
// enabled, and guarantees every one of those is unwound — even on panic —
// before the process's own panic handling takes over.
package termguard

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

const (
	enterAltScreen   = "\x1b[?1049h"
	leaveAltScreen   = "\x1b[?1049l"
	enableBracketed  = "\x1b[?2004h"
	disableBracketed = "\x1b[?2004l"
	enableMouse      = "\x1b[?1000h\x1b[?1002h\x1b[?1006h"
	disableMouse     = "\x1b[?1006l\x1b[?1002l\x1b[?1000l"
	pushKeyboardEnh  = "\x1b[>5u" // disambiguate escapes + report all keys with modifiers
	popKeyboardEnh   = "\x1b[<1u"
	resetKeyboardEnh = "\x1b[=0u"
	showCursor       = "\x1b[?25h"
	clearScreen      = "\x1b[2J\x1b[H"
)

// Guard owns one acquired terminal session. Release is idempotent and
// safe to call from a deferred panic recovery.
type Guard struct {
	out        io.Writer
	fd         int
	priorState *term.State
	released   bool
}

// Acquire puts the terminal into the raw, alternate-screen, paste- and
// mouse-capturing state the TUI renders into. Go has no global panic-hook
// registry, so the "panic reaches the user's terminal" guarantee is
// provided by RunGuarded's deferred Release running before the recovered
// panic is re-raised, rather than by an installed hook object.
func Acquire(out io.Writer, fd int) (*Guard, error) {
	priorState, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("termguard: enable raw mode: %w", err)
	}

	g := &Guard{out: out, fd: fd, priorState: priorState}

	fmt.Fprint(out, enterAltScreen+enableBracketed+enableMouse+pushKeyboardEnh+clearScreen)
	return g, nil
}

// Release unwinds every terminal mode change acquired, in the reverse
// order they were applied, and is safe to call more than once.
func (g *Guard) Release() {
	if g == nil || g.released {
		return
	}
	g.released = true

	fmt.Fprint(g.out, popKeyboardEnh+disableMouse+disableBracketed+leaveAltScreen+resetKeyboardEnh+showCursor)
	if g.priorState != nil {
		_ = term.Restore(g.fd, g.priorState)
	}
}

// RunGuarded acquires the terminal, runs fn, and releases the terminal
// before returning or re-panicking, so a panic inside fn still reaches
// the user's terminal in its normal (non-alternate-screen) state.
func RunGuarded(out io.Writer, fd int, fn func() error) (err error) {
	guard, acquireErr := Acquire(out, fd)
	if acquireErr != nil {
		return acquireErr
	}
	defer func() {
		guard.Release()
		if r := recover(); r != nil {
			panic(r)
		}
	}()
	return fn()
}

// StdoutGuard is a convenience constructor for the common case of guarding
// os.Stdout/os.Stdin's controlling terminal.
func StdoutGuard() (*Guard, error) {
	return Acquire(os.Stdout, int(os.Stdout.Fd()))
}
