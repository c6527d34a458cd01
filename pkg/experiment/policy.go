package experiment

import (
	"fmt"
	"io"

	"github.com/dcci/rr/pkg/proc"
	"github.com/dcci/rr/pkg/syscalls"
)

// actionKind is the closed set of outcomes a syscall classification can
// have. Everything not in the policy table is rejected as unhandled.
type actionKind int

const (
	// emulateNoop fabricates a return value without the kernel ever
	// seeing the syscall.
	emulateNoop actionKind = iota
	// emulateStdioWrite forwards a stdout/stderr write to this process's
	// matching stream and fabricates the byte count.
	emulateStdioWrite
	// executeRemote runs the syscall for real inside the branched process
	// and copies the genuine kernel result back.
	executeRemote
)

type syscallAction struct {
	kind actionKind
	ret  int64 // fabricated return value for emulateNoop
}

// policyTable builds the syscall classification table once per experiment.
// Adding a syscall to the execute-remotely set is a table edit, either
// here or through the pass-through configuration.
func policyTable(passThrough []string, warnf func(format string, args ...interface{})) map[uint64]syscallAction {
	table := map[uint64]syscallAction{
		// The arm/disarm-desched ioctls are emulated as no-ops. The
		// preload shim expects them to succeed and aborts if they
		// don't, so the fabricated return value is 0.
		syscalls.SysIoctl: {kind: emulateNoop, ret: 0},

		// Writes to the stdio fds are emulated in this tracer process.
		syscalls.SysWrite: {kind: emulateStdioWrite},

		// These syscalls are actually executed, based on the register
		// contents already present in the remote task.
		syscalls.SysMmap:   {kind: executeRemote},
		syscalls.SysMunmap: {kind: executeRemote},
	}
	for _, name := range passThrough {
		no, ok := syscalls.Lookup(name)
		if !ok {
			warnf("unknown syscall %q in pass-through configuration", name)
			continue
		}
		table[no] = syscallAction{kind: executeRemote}
	}
	return table
}

// EFAULT, what the raw read would have produced for a wholly non-resident
// buffer.
const errnoFault = 14

// processSyscall classifies the syscall the task is suspended at and
// applies the outcome.
func (e *Experiment) processSyscall(t proc.Task, no uint64) error {
	e.log.Debugf("processing %s", syscalls.Name(no))

	regs, err := t.Registers()
	if err != nil {
		return err
	}

	if action, ok := e.table[no]; ok {
		switch action.kind {
		case emulateNoop:
			if !t.IsDeschedEventSyscall(&regs) {
				break
			}
			return finishEmulatedSyscallWithRet(t, action.ret)

		case emulateStdioWrite:
			fd := regs.Arg1()
			if fd != stdoutFd && fd != stderrFd {
				break
			}
			return e.emulateWrite(t, fd, regs.Arg2(), regs.Arg3())

		case executeRemote:
			return e.executeSyscall(t)
		}
	}

	// Unhandled syscalls are "implemented" by simply ignoring them. The
	// tracee entered the syscall through a SYSEMU resume, so with no
	// emulation and no return value munging it observes an -ENOSYS
	// outcome, as if the kernel had no such syscall.
	fmt.Fprintf(e.warnw, "rr: Warning: Syscall '%s' not handled during experimental session.\n",
		syscalls.Name(no))
	return nil
}

const (
	stdoutFd = 1
	stderrFd = 2
)

// writeChunkSize bounds how much of the tracee's write buffer is pulled
// over at a time. The count register is tracee-controlled and must never
// size an allocation directly.
const writeChunkSize = 0x1000

// emulateWrite forwards a stdio write issued by the tracee to this
// process's matching stream, one chunk at a time up to the first
// non-resident byte. The write never happens inside the tracee's own
// address space and never reaches the kernel on its behalf.
func (e *Experiment) emulateWrite(t proc.Task, fd, bufAddr, numBytes uint64) error {
	mem := e.memFor(t)
	var w io.Writer
	if e.forwardStdio {
		w = e.stdout
		if fd == stderrFd {
			w = e.stderr
		}
	}

	buf := make([]byte, writeChunkSize)
	var total uint64
	for total < numBytes {
		chunk := buf
		if rem := numBytes - total; rem < uint64(len(chunk)) {
			chunk = chunk[:rem]
		}
		nread, err := mem.ReadFallible(bufAddr+total, chunk)
		if nread == 0 {
			if total == 0 && err != nil {
				return finishEmulatedSyscallWithRet(t, -errnoFault)
			}
			break
		}
		if w != nil {
			if _, werr := w.Write(chunk[:nread]); werr != nil {
				e.log.Warnf("forwarding %d bytes to fd %d: %v", nread, fd, werr)
			}
		}
		total += uint64(nread)
		if nread < len(chunk) {
			break
		}
	}
	return finishEmulatedSyscallWithRet(t, int64(total))
}

// executeSyscall executes the syscall contained in the task's current
// register set through the remote syscall channel. The genuine kernel
// result ends up in the register slot the tracee will observe.
func (e *Experiment) executeSyscall(t proc.Task) error {
	if err := t.FinishEmulatedSyscall(); err != nil {
		return err
	}

	state, err := e.channel.PrepareRemoteSyscalls(t)
	if err != nil {
		return err
	}
	ret, err := e.channel.Syscall6(t, state,
		state.Regs.SyscallNo(),
		state.Regs.Arg1(), state.Regs.Arg2(), state.Regs.Arg3(),
		state.Regs.Arg4(), state.Regs.Arg5(), state.Regs.Arg6())
	if err != nil {
		return err
	}
	state.Regs.SetSyscallResult(ret)
	return e.channel.FinishRemoteSyscalls(t, state)
}

// finishEmulatedSyscallWithRet writes ret into the task's return-value
// slot and retires the emulated syscall entry.
func finishEmulatedSyscallWithRet(t proc.Task, ret int64) error {
	regs, err := t.Registers()
	if err != nil {
		return err
	}
	regs.SetSyscallResult(ret)
	if err := t.SetRegisters(regs); err != nil {
		return err
	}
	return t.FinishEmulatedSyscall()
}
