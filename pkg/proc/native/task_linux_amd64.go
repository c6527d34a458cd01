//go:build linux && amd64
// +build linux,amd64

// Package native implements the task-control and remote-syscall
// primitives of an experimental session on top of ptrace, for
// linux/amd64.
//
// Ptrace requests must all be issued from the OS thread that attached to
// the task. Attach locks the calling goroutine to its thread; everything
// that drives the returned task must run on it.
package native

import (
	"fmt"
	"runtime"

	sys "golang.org/x/sys/unix"

	"github.com/dcci/rr/pkg/proc"
)

// Task is a traced thread controlled through ptrace.
type Task struct {
	tid    int
	tgid   int
	recTid int

	// deschedFd is the tracee's descheduling-event descriptor recorded by
	// the preload shim, or -1 when the task has none.
	deschedFd int64

	pendingSig int
	exited     bool

	// bps mirrors the breakpoint bookkeeping of the replay engine for the
	// task's address space.
	bps map[uint64]proc.BreakpointType
}

// Attach takes control of an existing thread. tgid and recTid come from
// the replay engine's bookkeeping for the branch.
func Attach(tid, tgid, recTid int) (*Task, error) {
	runtime.LockOSThread()

	if err := sys.PtraceAttach(tid); err != nil {
		return nil, fmt.Errorf("could not attach to tid %d: %v", tid, err)
	}
	var status sys.WaitStatus
	if _, err := sys.Wait4(tid, &status, 0, nil); err != nil {
		return nil, fmt.Errorf("waiting for tid %d to stop: %v", tid, err)
	}
	// Syscall-entry stops must be distinguishable from real SIGTRAPs.
	if err := sys.PtraceSetOptions(tid, sys.PTRACE_O_TRACESYSGOOD); err != nil {
		return nil, err
	}

	return &Task{
		tid:       tid,
		tgid:      tgid,
		recTid:    recTid,
		deschedFd: -1,
		bps:       make(map[uint64]proc.BreakpointType),
	}, nil
}

func (t *Task) ThreadID() int { return t.tid }
func (t *Task) Tgid() int     { return t.tgid }
func (t *Task) RecTid() int   { return t.recTid }

// SetDeschedFd records the tracee's descheduling-event descriptor.
func (t *Task) SetDeschedFd(fd int64) {
	t.deschedFd = fd
}

// SetBreakpointTypeAt mirrors a breakpoint planted (or removed) by the
// replay engine at pc.
func (t *Task) SetBreakpointTypeAt(pc uint64, bt proc.BreakpointType) {
	if bt == proc.NoBreakpoint {
		delete(t.bps, pc)
		return
	}
	t.bps[pc] = bt
}

func (t *Task) BreakpointTypeAt(pc uint64) proc.BreakpointType {
	return t.bps[pc]
}

func (t *Task) Registers() (proc.Registers, error) {
	if t.exited {
		return proc.Registers{}, proc.TaskExitedError{Tid: t.tid}
	}
	var sysRegs sys.PtraceRegs
	if err := sys.PtraceGetRegs(t.tid, &sysRegs); err != nil {
		return proc.Registers{}, err
	}
	return regsFromSys(&sysRegs), nil
}

func (t *Task) SetRegisters(regs proc.Registers) error {
	if t.exited {
		return proc.TaskExitedError{Tid: t.tid}
	}
	sysRegs := regsToSys(&regs)
	return sys.PtraceSetRegs(t.tid, &sysRegs)
}

// wait blocks until the resumed task stops again and classifies the stop:
// a syscall-entry trap leaves no pending signal, anything else becomes
// the task's pending signal.
func (t *Task) wait() error {
	var status sys.WaitStatus
	wpid, err := sys.Wait4(t.tid, &status, 0, nil)
	if err != nil {
		return err
	}
	if wpid == t.tid && status.Exited() {
		t.exited = true
		return proc.TaskExitedError{Tid: t.tid}
	}
	sig := status.StopSignal()
	if sig == sys.SIGTRAP|0x80 {
		// Syscall-entry stop (PTRACE_O_TRACESYSGOOD).
		t.pendingSig = 0
		return nil
	}
	t.pendingSig = int(sig)
	return nil
}

func (t *Task) ContSysemu() error {
	if t.exited {
		return proc.TaskExitedError{Tid: t.tid}
	}
	if err := ptraceSysemu(t.tid, 0); err != nil {
		return err
	}
	return t.wait()
}

func (t *Task) ContSysemuSinglestep() error {
	if t.exited {
		return proc.TaskExitedError{Tid: t.tid}
	}
	if err := ptraceSysemuSinglestep(t.tid, 0); err != nil {
		return err
	}
	return t.wait()
}

func (t *Task) PendingSignal() int { return t.pendingSig }

func (t *Task) ConsumePendingSignal() int {
	sig := t.pendingSig
	t.pendingSig = 0
	return sig
}

func (t *Task) ReadBytesFallible(addr uint64, buf []byte) (int, error) {
	if t.exited {
		return 0, proc.TaskExitedError{Tid: t.tid}
	}
	if len(buf) == 0 {
		return 0, nil
	}
	return processVmRead(t.tid, uintptr(addr), buf)
}

// FinishEmulatedSyscall retires the syscall-entry stop the task is
// suspended at. Under a sysemu resume the kernel never executed the
// syscall; stepping once moves the task past the entry without entering
// the kernel.
func (t *Task) FinishEmulatedSyscall() error {
	if t.exited {
		return proc.TaskExitedError{Tid: t.tid}
	}
	if err := ptraceSysemuSinglestep(t.tid, 0); err != nil {
		return err
	}
	var status sys.WaitStatus
	if _, err := sys.Wait4(t.tid, &status, 0, nil); err != nil {
		return err
	}
	if status.Exited() {
		t.exited = true
		return proc.TaskExitedError{Tid: t.tid}
	}
	if sig := pendingAfterRetirement(status.StopSignal()); sig != 0 {
		t.pendingSig = sig
	}
	return nil
}

// pendingAfterRetirement classifies the stop following the retirement
// singlestep. The step's own trap (and a TRACESYSGOOD syscall trap) is
// the expected stop and is swallowed; any other signal delivered at that
// instant must stay pending for the next resume boundary.
func pendingAfterRetirement(sig sys.Signal) int {
	if sig == sys.SIGTRAP || sig == sys.SIGTRAP|0x80 {
		return 0
	}
	return int(sig)
}

// IsDeschedEventSyscall reports whether the syscall entry described by
// regs is an arm/disarm ioctl on the task's descheduling event
// descriptor.
func (t *Task) IsDeschedEventSyscall(regs *proc.Registers) bool {
	return t.deschedFd >= 0 && int64(regs.Arg1()) == t.deschedFd
}

func (t *Task) Detach() error {
	if t.exited {
		return nil
	}
	return sys.PtraceDetach(t.tid)
}

func regsFromSys(r *sys.PtraceRegs) proc.Registers {
	return proc.Registers{
		R15: r.R15, R14: r.R14, R13: r.R13, R12: r.R12,
		Rbp: r.Rbp, Rbx: r.Rbx, R11: r.R11, R10: r.R10,
		R9: r.R9, R8: r.R8, Rax: r.Rax, Rcx: r.Rcx,
		Rdx: r.Rdx, Rsi: r.Rsi, Rdi: r.Rdi,
		Orig_rax: r.Orig_rax, Rip: r.Rip, Cs: r.Cs,
		Eflags: r.Eflags, Rsp: r.Rsp, Ss: r.Ss,
		Fs_base: r.Fs_base, Gs_base: r.Gs_base,
		Ds: r.Ds, Es: r.Es, Fs: r.Fs, Gs: r.Gs,
	}
}

func regsToSys(r *proc.Registers) sys.PtraceRegs {
	return sys.PtraceRegs{
		R15: r.R15, R14: r.R14, R13: r.R13, R12: r.R12,
		Rbp: r.Rbp, Rbx: r.Rbx, R11: r.R11, R10: r.R10,
		R9: r.R9, R8: r.R8, Rax: r.Rax, Rcx: r.Rcx,
		Rdx: r.Rdx, Rsi: r.Rsi, Rdi: r.Rdi,
		Orig_rax: r.Orig_rax, Rip: r.Rip, Cs: r.Cs,
		Eflags: r.Eflags, Rsp: r.Rsp, Ss: r.Ss,
		Fs_base: r.Fs_base, Gs_base: r.Gs_base,
		Ds: r.Ds, Es: r.Es, Fs: r.Fs, Gs: r.Gs,
	}
}
