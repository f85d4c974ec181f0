package triage

import (
	"errors"
	"sync/atomic"
)

// FlagSource reads configuration values by name. Implementations may fail,
// for instance before configuration is loaded.
type FlagSource interface {
	ReadFlag(name string) (uint64, error)
	ReadString(name string) (string, error)
}

// Flag names understood by Settings.
const (
	FlagContinueOnAssert        = "continue_on_assert"
	FlagRaiseOnAssert           = "raise_on_assert"
	FlagRaiseChance             = "raise_chance"
	FlagDebugBreakOnAssert      = "debug_break_on_assert"
	FlagAssertStacktrace        = "assert_stacktrace"
	FlagBreakOnCode             = "break_on_code"
	FlagBreakOnProductionAssert = "break_on_production_assert"
	FlagLaunchDebuggerOnAssert  = "launch_debugger_on_assert"
	FlagConsistencyChecks       = "consistency_checks"
	FlagDebuggerCommand         = "debugger_command"
)

type flagID int

const (
	flagContinue flagID = iota
	flagRaise
	flagChance
	flagDebugBreak
	flagStacktrace
	flagBreakCode
	flagBreakProduction
	flagLaunch
	flagConsistency
	flagCount
)

// flagSpecs maps each flag to its name and the value used when it cannot
// be read. Fallbacks never suppress a failure or skip fail-fast.
var flagSpecs = [flagCount]struct {
	name     string
	fallback uint64
}{
	flagContinue:        {FlagContinueOnAssert, 0},
	flagRaise:           {FlagRaiseOnAssert, 0},
	flagChance:          {FlagRaiseChance, uint64(Swallow)},
	flagDebugBreak:      {FlagDebugBreakOnAssert, 0},
	flagStacktrace:      {FlagAssertStacktrace, 1},
	flagBreakCode:       {FlagBreakOnCode, 0},
	flagBreakProduction: {FlagBreakOnProductionAssert, 0},
	flagLaunch:          {FlagLaunchDebuggerOnAssert, 0},
	flagConsistency:     {FlagConsistencyChecks, 1},
}

var errNoFlagSource = errors.New("no flag source")

// Cache states. A flag moves unread -> reading -> cached exactly once.
const (
	stateUnread uint32 = iota
	stateReading
	stateCached
)

type cachedFlag struct {
	state  atomic.Uint32
	val    uint64
	failed bool
}

// Settings reads each flag at most once and caches it for the life of the
// process. A caller that finds a read in progress, its own or another
// goroutine's, gets the fallback instead of waiting.
type Settings struct {
	src   FlagSource
	flags [flagCount]cachedFlag

	cmdState atomic.Uint32
	cmd      string
}

// NewSettings creates settings backed by src. A nil src yields fallbacks.
func NewSettings(src FlagSource) *Settings {
	return &Settings{src: src}
}

func (s *Settings) flag(id flagID) uint64 {
	f := &s.flags[id]
	switch f.state.Load() {
	case stateCached:
		return f.val
	case stateUnread:
		if f.state.CompareAndSwap(stateUnread, stateReading) {
			val, err := s.read(flagSpecs[id].name)
			if err != nil {
				val = flagSpecs[id].fallback
				f.failed = true
			}
			f.val = val
			f.state.Store(stateCached)
			return val
		}
	}
	return flagSpecs[id].fallback
}

func (s *Settings) read(name string) (val uint64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.New("flag source panicked")
		}
	}()
	if s.src == nil {
		return 0, errNoFlagSource
	}
	return s.src.ReadFlag(name)
}

// ReadErrors returns the names of flags whose read failed and therefore hold
// their fallback value. Flags still being read are not reported.
func (s *Settings) ReadErrors() []string {
	var names []string
	for id := range s.flags {
		f := &s.flags[id]
		s.flag(flagID(id))
		if f.state.Load() == stateCached && f.failed {
			names = append(names, flagSpecs[id].name)
		}
	}
	return names
}

func (s *Settings) ContinueOnAssert() bool        { return s.flag(flagContinue) != 0 }
func (s *Settings) RaiseOnAssert() bool           { return s.flag(flagRaise) != 0 }
func (s *Settings) DebugBreakOnAssert() bool      { return s.flag(flagDebugBreak) != 0 }
func (s *Settings) AssertStacktrace() bool        { return s.flag(flagStacktrace) != 0 }
func (s *Settings) BreakOnProductionAssert() bool { return s.flag(flagBreakProduction) != 0 }
func (s *Settings) LaunchDebuggerOnAssert() bool  { return s.flag(flagLaunch) != 0 }
func (s *Settings) ConsistencyChecks() bool       { return s.flag(flagConsistency) != 0 }

// RaiseChance returns the configured chance. Values other than Propagate
// mean Swallow.
func (s *Settings) RaiseChance() Chance {
	if Chance(s.flag(flagChance)) == Propagate {
		return Propagate
	}
	return Swallow
}

// BreakOnCode returns the error code that triggers a break; 0 disables it.
func (s *Settings) BreakOnCode() uint32 {
	// #nosec G115 -- codes are 32-bit by definition
	return uint32(s.flag(flagBreakCode))
}

// DebuggerCommand returns the debugger launch template, or "" if unset or
// unreadable.
func (s *Settings) DebuggerCommand() string {
	switch s.cmdState.Load() {
	case stateCached:
		return s.cmd
	case stateUnread:
		if s.cmdState.CompareAndSwap(stateUnread, stateReading) {
			s.cmd = s.readString(FlagDebuggerCommand)
			s.cmdState.Store(stateCached)
			return s.cmd
		}
	}
	return ""
}

func (s *Settings) readString(name string) (val string) {
	defer func() {
		if recover() != nil {
			val = ""
		}
	}()
	if s.src == nil {
		return ""
	}
	val, err := s.src.ReadString(name)
	if err != nil {
		return ""
	}
	return val
}
