//go:build linux
// +build linux

package native

import (
	"syscall"
	"unsafe"

	sys "golang.org/x/sys/unix"
)

// Ptrace requests not wrapped by golang.org/x/sys/unix.
const (
	_PTRACE_SYSEMU            = 31
	_PTRACE_SYSEMU_SINGLESTEP = 32
)

// ptraceSysemu resumes tid until the next syscall entry or signal,
// without letting a syscall it issues reach the kernel.
func ptraceSysemu(tid, sig int) error {
	_, _, e1 := sys.Syscall6(sys.SYS_PTRACE, uintptr(_PTRACE_SYSEMU), uintptr(tid), 0, uintptr(sig), 0, 0)
	if e1 != 0 {
		return e1
	}
	return nil
}

// ptraceSysemuSinglestep resumes tid for a single instruction with the
// same syscall interception as ptraceSysemu.
func ptraceSysemuSinglestep(tid, sig int) error {
	_, _, e1 := sys.Syscall6(sys.SYS_PTRACE, uintptr(_PTRACE_SYSEMU_SINGLESTEP), uintptr(tid), 0, uintptr(sig), 0, 0)
	if e1 != 0 {
		return e1
	}
	return nil
}

// ptraceSingleStep executes ptrace PTRACE_SINGLESTEP. Unlike the sysemu
// resumes, a syscall stepped over this way genuinely enters the kernel.
func ptraceSingleStep(tid, sig int) error {
	_, _, e1 := sys.Syscall6(sys.SYS_PTRACE, uintptr(sys.PTRACE_SINGLESTEP), uintptr(tid), 0, uintptr(sig), 0, 0)
	if e1 != 0 {
		return e1
	}
	return nil
}

// remoteIovec is like golang.org/x/sys/unix.Iovec but uses uintptr for the
// base field instead of *byte so that we can use it with addresses that
// belong to the target process.
type remoteIovec struct {
	base uintptr
	len  uintptr
}

// processVmRead calls process_vm_readv. With a single remote iovec the
// kernel transfers the resident prefix of the range and reports how many
// bytes that was, which is exactly the fallible-read contract.
func processVmRead(tid int, addr uintptr, data []byte) (int, error) {
	len_iov := uint64(len(data))
	local_iov := sys.Iovec{Base: &data[0], Len: len_iov}
	remote_iov := remoteIovec{base: addr, len: uintptr(len_iov)}
	n, _, err := syscall.Syscall6(sys.SYS_PROCESS_VM_READV, uintptr(tid), uintptr(unsafe.Pointer(&local_iov)), 1, uintptr(unsafe.Pointer(&remote_iov)), 1, 0)
	if err != syscall.Errno(0) {
		return 0, err
	}
	return int(n), nil
}
