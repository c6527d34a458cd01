package proc

import "fmt"

// Task represents a single traced thread inside an experimental session.
//
// A Task is vended and retired by its owning ExperimentSession; the
// experiment core only ever mutates it through the resume and remote
// syscall protocols.
type Task interface {
	// ThreadID returns the tracer-visible thread id.
	ThreadID() int
	// Tgid returns the thread group (process) id of the task.
	Tgid() int
	// RecTid returns the recorded thread id used in debugger protocol
	// messages, which may differ from the live tid of the branch.
	RecTid() int

	// Registers returns a snapshot of the task's current register file.
	Registers() (Registers, error)
	// SetRegisters replaces the task's register file.
	SetRegisters(Registers) error

	// ContSysemu resumes the task until it reaches a syscall entry or is
	// interrupted by a signal. The task is never allowed to actually enter
	// the kernel for a syscall it issues.
	ContSysemu() error
	// ContSysemuSinglestep resumes the task for exactly one instruction,
	// with the same syscall interception discipline as ContSysemu.
	ContSysemuSinglestep() error

	// PendingSignal returns the signal that interrupted the last resume,
	// or 0 if the task stopped at a syscall boundary.
	PendingSignal() int
	// ConsumePendingSignal returns the pending signal and clears it. The
	// orchestrator calls it when the stop has been reported to the
	// debugger; a task must never be advanced while a pending signal is
	// still unconsumed.
	ConsumePendingSignal() int

	// ReadBytesFallible reads up to len(buf) bytes of the task's memory
	// starting at addr. It may return fewer bytes than requested if part
	// of the range is not resident.
	ReadBytesFallible(addr uint64, buf []byte) (int, error)

	// FinishEmulatedSyscall retires the syscall entry the task is
	// currently suspended at without letting it reach the kernel.
	FinishEmulatedSyscall() error

	// IsDeschedEventSyscall reports whether the syscall entry described by
	// regs is an arm/disarm ioctl on the task's descheduling event
	// descriptor, issued by the in-process preload shim.
	IsDeschedEventSyscall(regs *Registers) bool

	// BreakpointTypeAt looks up, in the task's virtual memory map, the
	// kind of breakpoint planted at pc.
	BreakpointTypeAt(pc uint64) BreakpointType

	// Detach releases the task, tearing down tracer state.
	Detach() error
}

// TaskExitedError is returned by operations on a task whose underlying
// thread is gone.
type TaskExitedError struct {
	Tid int
}

func (err TaskExitedError) Error() string {
	return fmt.Sprintf("task %d has exited", err.Tid)
}
