//go:build linux && amd64
// +build linux,amd64

package native

import (
	"testing"

	sys "golang.org/x/sys/unix"

	"github.com/dcci/rr/pkg/proc"
)

func TestRegsConversionRoundTrip(t *testing.T) {
	in := sys.PtraceRegs{
		Rax: 1, Rbx: 2, Rcx: 3, Rdx: 4, Rsi: 5, Rdi: 6,
		Rbp: 7, Rsp: 8, R8: 9, R9: 10, R10: 11, R11: 12,
		R12: 13, R13: 14, R14: 15, R15: 16,
		Orig_rax: 17, Rip: 18, Eflags: 19,
		Cs: 20, Ss: 21, Ds: 22, Es: 23, Fs: 24, Gs: 25,
		Fs_base: 26, Gs_base: 27,
	}
	out := regsToSys(func() *proc.Registers { r := regsFromSys(&in); return &r }())
	if out != in {
		t.Fatalf("register conversion round trip: got %+v, want %+v", out, in)
	}
}

func TestPendingAfterRetirement(t *testing.T) {
	if got := pendingAfterRetirement(sys.SIGTRAP); got != 0 {
		t.Errorf("step trap classified as pending signal %d", got)
	}
	if got := pendingAfterRetirement(sys.SIGTRAP | 0x80); got != 0 {
		t.Errorf("syscall trap classified as pending signal %d", got)
	}
	if got := pendingAfterRetirement(sys.SIGSEGV); got != int(sys.SIGSEGV) {
		t.Errorf("SIGSEGV during retirement = %d, want %d", got, int(sys.SIGSEGV))
	}
	if got := pendingAfterRetirement(sys.SIGINT); got != int(sys.SIGINT) {
		t.Errorf("SIGINT during retirement = %d, want %d", got, int(sys.SIGINT))
	}
}

// memTask serves reads from a byte slice, for testing instruction lookup
// without a live tracee.
type memTask struct {
	Task
	base uint64
	code []byte
}

func (t *memTask) ReadBytesFallible(addr uint64, buf []byte) (int, error) {
	if addr < t.base || addr >= t.base+uint64(len(t.code)) {
		return 0, nil
	}
	return copy(buf, t.code[addr-t.base:]), nil
}

func TestSyscallEntryIP(t *testing.T) {
	// mov $60, %eax; syscall
	code := []byte{0xb8, 0x3c, 0x00, 0x00, 0x00, 0x0f, 0x05}
	task := &memTask{base: 0x400000, code: code}

	ip, err := syscallEntryIP(task, 0x400007)
	if err != nil {
		t.Fatalf("syscallEntryIP: %v", err)
	}
	if ip != 0x400005 {
		t.Errorf("syscall entry at %#x, want 0x400005", ip)
	}
}

func TestSyscallEntryIPRejectsNonSyscall(t *testing.T) {
	// nop; nop
	task := &memTask{base: 0x400000, code: []byte{0x90, 0x90}}
	if _, err := syscallEntryIP(task, 0x400002); err == nil {
		t.Fatalf("decoded a nop as a syscall entry")
	}
}
