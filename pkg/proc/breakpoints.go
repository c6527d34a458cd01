package proc

// BreakpointType classifies the breakpoint, if any, planted at an address
// in a task's virtual memory map. Breakpoint placement and removal is the
// responsibility of the replay engine; the experiment core only needs the
// classification to decide how a signal stop should be presented to the
// debugger.
type BreakpointType uint8

const (
	// NoBreakpoint means no breakpoint instruction is planted at the address.
	NoBreakpoint BreakpointType = iota
	// UserBreakpoint is a breakpoint the debugger asked for.
	UserBreakpoint
	// InternalBreakpoint is a breakpoint planted by the replay engine for
	// its own purposes.
	InternalBreakpoint
)

func (bt BreakpointType) String() string {
	switch bt {
	case NoBreakpoint:
		return "none"
	case UserBreakpoint:
		return "user"
	case InternalBreakpoint:
		return "internal"
	}
	return "unknown"
}
