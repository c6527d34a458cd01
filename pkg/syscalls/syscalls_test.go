package syscalls

import "testing"

func TestName(t *testing.T) {
	for _, tc := range []struct {
		no   uint64
		name string
	}{
		{SysWrite, "write"},
		{SysIoctl, "ioctl"},
		{SysMmap, "mmap"},
		{SysMunmap, "munmap"},
		{9999, "syscall(9999)"},
	} {
		if got := Name(tc.no); got != tc.name {
			t.Errorf("Name(%d) = %q, want %q", tc.no, got, tc.name)
		}
	}
}

func TestLookup(t *testing.T) {
	no, ok := Lookup("mprotect")
	if !ok || no != SysMprotect {
		t.Errorf("Lookup(mprotect) = %d, %v; want %d, true", no, ok, SysMprotect)
	}
	if _, ok := Lookup("no_such_syscall"); ok {
		t.Errorf("Lookup(no_such_syscall) succeeded")
	}
}

func TestTableRoundTrip(t *testing.T) {
	for no, name := range names {
		back, ok := Lookup(name)
		if !ok || back != no {
			t.Errorf("Lookup(Name(%d)) = %d, %v", no, back, ok)
		}
	}
}
