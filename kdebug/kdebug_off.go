//go:build !debug

// Package kdebug provides assertions that are compiled out unless the
// `debug` build tag is set, the way the teacher's cmn/debug package does.
package kdebug

func ON() bool { return false }

func Assert(_ bool, _ ...any)            {}
func Assertf(_ bool, _ string, _ ...any) {}
func AssertNoErr(_ error)                {}
func Func(_ func())                      {}
