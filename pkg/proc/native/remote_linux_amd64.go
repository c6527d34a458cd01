//go:build linux && amd64
// +build linux,amd64

package native

import (
	"fmt"

	"golang.org/x/arch/x86/x86asm"
	sys "golang.org/x/sys/unix"

	"github.com/dcci/rr/pkg/logflags"
	"github.com/dcci/rr/pkg/proc"
	"github.com/sirupsen/logrus"
)

const syscallInsnLen = 2 // SYSCALL encodes as 0f 05

// RemoteChannel executes syscalls inside a traced task by loading the
// syscall number and arguments into the task's registers, single-stepping
// through the task's own syscall entry instruction, and reading the
// result back.
type RemoteChannel struct {
	log *logrus.Entry
}

// NewRemoteChannel returns a channel ready for use with native tasks.
func NewRemoteChannel() *RemoteChannel {
	return &RemoteChannel{log: logflags.RemoteLogger()}
}

// PrepareRemoteSyscalls snapshots the task's register file. The snapshot
// is restored by FinishRemoteSyscalls.
func (c *RemoteChannel) PrepareRemoteSyscalls(t proc.Task) (*proc.RemoteState, error) {
	regs, err := t.Registers()
	if err != nil {
		return nil, err
	}
	return &proc.RemoteState{Regs: regs}, nil
}

// Syscall6 executes one syscall inside the task and returns the kernel
// result.
func (c *RemoteChannel) Syscall6(t proc.Task, state *proc.RemoteState, no, a1, a2, a3, a4, a5, a6 uint64) (int64, error) {
	nt, ok := t.(*Task)
	if !ok {
		return 0, fmt.Errorf("remote syscall on non-native task %d", t.ThreadID())
	}

	ip, err := syscallEntryIP(t, state.Regs.PC())
	if err != nil {
		return 0, err
	}
	c.log.Debugf("remote syscall %d at ip %#x", no, ip)

	regs := state.Regs
	regs.SetPC(ip)
	regs.Rax = no
	regs.Orig_rax = no
	regs.Rdi, regs.Rsi, regs.Rdx = a1, a2, a3
	regs.R10, regs.R8, regs.R9 = a4, a5, a6
	if err := t.SetRegisters(regs); err != nil {
		return 0, err
	}

	// Step through the entry instruction for real; this is the one place
	// a syscall of the branch reaches the kernel.
	if err := ptraceSingleStep(nt.tid, 0); err != nil {
		return 0, err
	}
	var status sys.WaitStatus
	if _, err := sys.Wait4(nt.tid, &status, 0, nil); err != nil {
		return 0, err
	}
	if status.Exited() {
		nt.exited = true
		return 0, proc.TaskExitedError{Tid: nt.tid}
	}

	after, err := t.Registers()
	if err != nil {
		return 0, err
	}
	return after.SyscallResult(), nil
}

// FinishRemoteSyscalls restores the register file captured by
// PrepareRemoteSyscalls, committing whatever result the caller stored in
// the state buffer.
func (c *RemoteChannel) FinishRemoteSyscalls(t proc.Task, state *proc.RemoteState) error {
	return t.SetRegisters(state.Regs)
}

// syscallEntryIP locates the syscall entry instruction the task just
// trapped on. At a syscall-entry stop the instruction pointer is past the
// instruction, so the entry sits syscallInsnLen bytes back; decode it to
// make sure before reusing it.
func syscallEntryIP(t proc.Task, pc uint64) (uint64, error) {
	ip := pc - syscallInsnLen
	buf := make([]byte, syscallInsnLen)
	n, err := t.ReadBytesFallible(ip, buf)
	if err != nil || n < syscallInsnLen {
		return 0, fmt.Errorf("could not read syscall instruction at %#x: %v", ip, err)
	}
	inst, err := x86asm.Decode(buf, 64)
	if err != nil {
		return 0, err
	}
	if inst.Op != x86asm.SYSCALL {
		return 0, fmt.Errorf("instruction at %#x is %v, not SYSCALL", ip, inst.Op)
	}
	return ip, nil
}
