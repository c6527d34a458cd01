package proc

import "fmt"

// Registers is the general purpose register file of a traced task on
// linux/amd64, laid out the way the kernel returns it from
// PTRACE_GETREGS. Copying a Registers value snapshots it; the copy is
// guaranteed not to change when the task's registers change.
type Registers struct {
	R15      uint64
	R14      uint64
	R13      uint64
	R12      uint64
	Rbp      uint64
	Rbx      uint64
	R11      uint64
	R10      uint64
	R9       uint64
	R8       uint64
	Rax      uint64
	Rcx      uint64
	Rdx      uint64
	Rsi      uint64
	Rdi      uint64
	Orig_rax uint64
	Rip      uint64
	Cs       uint64
	Eflags   uint64
	Rsp      uint64
	Ss       uint64
	Fs_base  uint64
	Gs_base  uint64
	Ds       uint64
	Es       uint64
	Fs       uint64
	Gs       uint64
}

// PC returns the current instruction pointer.
func (r *Registers) PC() uint64 {
	return r.Rip
}

// SetPC sets the instruction pointer.
func (r *Registers) SetPC(pc uint64) {
	r.Rip = pc
}

// SP returns the stack pointer.
func (r *Registers) SP() uint64 {
	return r.Rsp
}

// SyscallNo returns the number of the syscall the task is entering. At a
// syscall-entry stop the kernel saves it in Orig_rax, Rax having already
// been clobbered with -ENOSYS.
func (r *Registers) SyscallNo() uint64 {
	return r.Orig_rax
}

// Syscall argument registers, in the order of the linux/amd64 syscall ABI.

func (r *Registers) Arg1() uint64 { return r.Rdi }
func (r *Registers) Arg2() uint64 { return r.Rsi }
func (r *Registers) Arg3() uint64 { return r.Rdx }
func (r *Registers) Arg4() uint64 { return r.R10 }
func (r *Registers) Arg5() uint64 { return r.R8 }
func (r *Registers) Arg6() uint64 { return r.R9 }

// SyscallResult returns the value in the return-value slot, as the tracee
// will observe it.
func (r *Registers) SyscallResult() int64 {
	return int64(r.Rax)
}

// SetSyscallResult writes ret into the return-value slot.
func (r *Registers) SetSyscallResult(ret int64) {
	r.Rax = uint64(ret)
}

func (r *Registers) String() string {
	return fmt.Sprintf("rip=%#x rsp=%#x orig_rax=%d rax=%#x", r.Rip, r.Rsp, r.Orig_rax, r.Rax)
}
