package proc_test

import (
	"bytes"
	"testing"

	"github.com/dcci/rr/pkg/proc"
)

// fakeTask is a minimal in-memory Task used to exercise the session and
// memory cache code without a live tracee.
type fakeTask struct {
	tid, tgid, recTid int

	regs     proc.Registers
	mem      map[uint64][]byte // base address -> resident bytes
	reads    int
	detached bool
}

func newFakeTask(tid int) *fakeTask {
	return &fakeTask{tid: tid, tgid: tid, recTid: tid, mem: make(map[uint64][]byte)}
}

func (t *fakeTask) ThreadID() int { return t.tid }
func (t *fakeTask) Tgid() int     { return t.tgid }
func (t *fakeTask) RecTid() int   { return t.recTid }

func (t *fakeTask) Registers() (proc.Registers, error)          { return t.regs, nil }
func (t *fakeTask) SetRegisters(r proc.Registers) error         { t.regs = r; return nil }
func (t *fakeTask) ContSysemu() error                           { return nil }
func (t *fakeTask) ContSysemuSinglestep() error                 { return nil }
func (t *fakeTask) PendingSignal() int                          { return 0 }
func (t *fakeTask) ConsumePendingSignal() int                   { return 0 }
func (t *fakeTask) FinishEmulatedSyscall() error                { return nil }
func (t *fakeTask) IsDeschedEventSyscall(*proc.Registers) bool  { return false }
func (t *fakeTask) BreakpointTypeAt(uint64) proc.BreakpointType { return proc.NoBreakpoint }
func (t *fakeTask) Detach() error                               { t.detached = true; return nil }

func (t *fakeTask) ReadBytesFallible(addr uint64, buf []byte) (int, error) {
	t.reads++
	for base, data := range t.mem {
		if addr >= base && addr < base+uint64(len(data)) {
			return copy(buf, data[addr-base:]), nil
		}
	}
	return 0, nil
}

func TestSessionDyingIsMonotonic(t *testing.T) {
	sess := proc.NewExperimentSession()
	if sess.Dying() {
		t.Fatalf("fresh session should not be dying")
	}
	sess.StartDying()
	if !sess.Dying() {
		t.Fatalf("session should be dying after StartDying")
	}
	// A siginfo query revives debugger interest but never clears dying.
	sess.Revive()
	if !sess.Dying() {
		t.Fatalf("Revive must not clear the dying flag")
	}
}

func TestSessionFindTask(t *testing.T) {
	sess := proc.NewExperimentSession()
	t1 := newFakeTask(100)
	t2 := newFakeTask(200)
	sess.AddTask(t1)
	sess.AddTask(t2)

	if got := sess.FindTask(200); got != proc.Task(t2) {
		t.Errorf("FindTask(200) = %v, want t2", got)
	}
	if got := sess.FindTask(300); got != nil {
		t.Errorf("FindTask(300) = %v, want nil", got)
	}
}

func TestSessionKillAllTasks(t *testing.T) {
	sess := proc.NewExperimentSession()
	t1 := newFakeTask(100)
	t2 := newFakeTask(200)
	sess.AddTask(t1)
	sess.AddTask(t2)

	sess.KillAllTasks()
	if !t1.detached || !t2.detached {
		t.Errorf("KillAllTasks should detach every task")
	}
	if sess.NumTasks() != 0 {
		t.Errorf("session still owns %d tasks after KillAllTasks", sess.NumTasks())
	}
}

func TestMemCacheRead(t *testing.T) {
	task := newFakeTask(100)
	task.mem[0x1000] = []byte("hello, experiment")

	cache := proc.NewMemCache(task)
	buf := make([]byte, 5)
	n, err := cache.ReadFallible(0x1000, buf)
	if err != nil || n != 5 || string(buf) != "hello" {
		t.Fatalf("ReadFallible = %d, %v, %q", n, err, buf[:n])
	}

	// Second read of the same page must come from the cache.
	reads := task.reads
	n, err = cache.ReadFallible(0x1007, buf)
	if err != nil || n != 5 || string(buf[:n]) != "exper" {
		t.Fatalf("ReadFallible = %d, %v, %q", n, err, buf[:n])
	}
	if task.reads != reads {
		t.Errorf("expected cache hit, got %d extra reads", task.reads-reads)
	}
}

func TestMemCacheShortRead(t *testing.T) {
	task := newFakeTask(100)
	task.mem[0x2000] = []byte("abc")

	cache := proc.NewMemCache(task)
	buf := make([]byte, 10)
	n, err := cache.ReadFallible(0x2000, buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 3 || !bytes.Equal(buf[:n], []byte("abc")) {
		t.Fatalf("ReadFallible = %d, %q; want the 3 resident bytes", n, buf[:n])
	}
}

func TestMemCacheNotResident(t *testing.T) {
	task := newFakeTask(100)
	cache := proc.NewMemCache(task)
	buf := make([]byte, 8)
	n, _ := cache.ReadFallible(0xdead000, buf)
	if n != 0 {
		t.Fatalf("ReadFallible of unmapped range = %d, want 0", n)
	}
}

func TestMemCacheInvalidate(t *testing.T) {
	task := newFakeTask(100)
	task.mem[0x1000] = []byte("before")

	cache := proc.NewMemCache(task)
	buf := make([]byte, 6)
	cache.ReadFallible(0x1000, buf)

	task.mem[0x1000] = []byte("after!")
	cache.Invalidate()
	n, _ := cache.ReadFallible(0x1000, buf)
	if n != 6 || string(buf) != "after!" {
		t.Errorf("ReadFallible after Invalidate = %q, want %q", buf[:n], "after!")
	}
}

func TestRegistersSyscallSlots(t *testing.T) {
	var r proc.Registers
	r.Orig_rax = 1
	r.Rdi, r.Rsi, r.Rdx, r.R10, r.R8, r.R9 = 10, 20, 30, 40, 50, 60
	if r.SyscallNo() != 1 {
		t.Errorf("SyscallNo = %d", r.SyscallNo())
	}
	args := []uint64{r.Arg1(), r.Arg2(), r.Arg3(), r.Arg4(), r.Arg5(), r.Arg6()}
	for i, want := range []uint64{10, 20, 30, 40, 50, 60} {
		if args[i] != want {
			t.Errorf("Arg%d = %d, want %d", i+1, args[i], want)
		}
	}
	r.SetSyscallResult(-38) // ENOSYS
	if r.SyscallResult() != -38 {
		t.Errorf("SyscallResult = %d, want -38", r.SyscallResult())
	}
}
