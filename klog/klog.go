// Package klog is kay's logger: leveled and line-oriented, writing each
// line straight to stderr.
//
// Adapted from the teacher's cmn/nlog: a small severity-leveled logger
// printed through the standard log package rather than aistore's own
// file-rotation machinery, since kay is a library embedded in a host
// process rather than a standalone daemon that owns its log directory.
package klog

import (
	"fmt"
	"log"
	"os"
)

type severity int

const (
	sevInfo severity = iota
	sevWarning
	sevError
)

func (s severity) String() string {
	switch s {
	case sevWarning:
		return "W"
	case sevError:
		return "E"
	default:
		return "I"
	}
}

var std = log.New(os.Stderr, "", log.Ldate|log.Ltime|log.Lmicroseconds)

// Prefix is prepended to every line; ActorSystem sets it to its run id so
// that interleaved multi-peer test output can be told apart.
var Prefix string

func line(s severity, format string, args ...any) string {
	msg := fmt.Sprintf(format, args...)
	if Prefix == "" {
		return fmt.Sprintf("%s %s", s, msg)
	}
	return fmt.Sprintf("%s [%s] %s", s, Prefix, msg)
}

func Infof(format string, args ...any) { std.Print(line(sevInfo, format, args...)) }

func Warningf(format string, args ...any) { std.Print(line(sevWarning, format, args...)) }

func Errorf(format string, args ...any) { std.Print(line(sevError, format, args...)) }

func Infoln(args ...any)    { Infof("%s", fmt.Sprintln(args...)) }
func Warningln(args ...any) { Warningf("%s", fmt.Sprintln(args...)) }
func Errorln(args ...any)   { Errorf("%s", fmt.Sprintln(args...)) }
