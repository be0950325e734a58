// Package baton ships progress indications to stderr during a long-running
// revision loop. It is a direct generalization of cutter/repocutter.go's
// Baton type.
//
// Copyright by Eric S. Raymond
// SPDX-License-Identifier: BSD-2-Clause
package baton

import (
	"fmt"
	"os"
	"time"

	terminal "golang.org/x/crypto/ssh/terminal"
)

// Baton twirls a spinner on stderr while quiet mode is not in effect.
type Baton struct {
	stream *os.File
	count  int
	endmsg string
	start  time.Time
	silent bool
}

// New creates a Baton. When quiet is true, all operations are no-ops.
func New(prompt string, endmsg string, quiet bool) *Baton {
	b := &Baton{
		stream: os.Stderr,
		endmsg: endmsg,
		start:  time.Now(),
		silent: quiet,
	}
	if b.silent {
		return b
	}
	fmt.Fprintf(b.stream, "%s...", prompt)
	if terminal.IsTerminal(int(b.stream.Fd())) {
		b.stream.WriteString(" \b")
	}
	return b
}

// Twirl advances the spinner by one tick, or writes ch if given.
func (b *Baton) Twirl(ch string) {
	if b == nil || b.silent {
		return
	}
	if terminal.IsTerminal(int(b.stream.Fd())) {
		if ch != "" {
			b.stream.WriteString(ch)
		} else {
			b.stream.Write([]byte{"-/|\\"[b.count%4]})
			b.stream.WriteString("\b")
		}
	}
	b.count++
}

// End reports completion with a customizable final message.
func (b *Baton) End(msg string) {
	if b == nil || b.silent {
		return
	}
	if msg == "" {
		msg = b.endmsg
	}
	fmt.Fprintf(b.stream, "...(%s) %s.\n", time.Since(b.start), msg)
}
