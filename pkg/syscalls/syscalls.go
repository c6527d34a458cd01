// Package syscalls knows the linux/amd64 system call numbers relevant to
// experimental sessions and maps them to the names the kernel uses.
package syscalls

import "fmt"

// Linux syscall numbers for the amd64 ABI. Only the ones the experiment
// policy table and its configuration need to talk about are named here;
// Name falls back to a numeric spelling for everything else.
const (
	SysRead          uint64 = 0
	SysWrite         uint64 = 1
	SysOpen          uint64 = 2
	SysClose         uint64 = 3
	SysStat          uint64 = 4
	SysFstat         uint64 = 5
	SysLstat         uint64 = 6
	SysPoll          uint64 = 7
	SysLseek         uint64 = 8
	SysMmap          uint64 = 9
	SysMprotect      uint64 = 10
	SysMunmap        uint64 = 11
	SysBrk           uint64 = 12
	SysRtSigaction   uint64 = 13
	SysRtSigprocmask uint64 = 14
	SysRtSigreturn   uint64 = 15
	SysIoctl         uint64 = 16
	SysPread64       uint64 = 17
	SysPwrite64      uint64 = 18
	SysReadv         uint64 = 19
	SysWritev        uint64 = 20
	SysAccess        uint64 = 21
	SysPipe          uint64 = 22
	SysSelect        uint64 = 23
	SysSchedYield    uint64 = 24
	SysMremap        uint64 = 25
	SysMsync         uint64 = 26
	SysMadvise       uint64 = 28
	SysDup           uint64 = 32
	SysNanosleep     uint64 = 35
	SysGetpid        uint64 = 39
	SysSocket        uint64 = 41
	SysClone         uint64 = 56
	SysFork          uint64 = 57
	SysExecve        uint64 = 59
	SysExit          uint64 = 60
	SysWait4         uint64 = 61
	SysKill          uint64 = 62
	SysFcntl         uint64 = 72
	SysGettimeofday  uint64 = 96
	SysSigaltstack   uint64 = 131
	SysArchPrctl     uint64 = 158
	SysGettid        uint64 = 186
	SysFutex         uint64 = 202
	SysExitGroup     uint64 = 231
	SysTgkill        uint64 = 234
	SysOpenat        uint64 = 257
)

var names = map[uint64]string{
	SysRead:          "read",
	SysWrite:         "write",
	SysOpen:          "open",
	SysClose:         "close",
	SysStat:          "stat",
	SysFstat:         "fstat",
	SysLstat:         "lstat",
	SysPoll:          "poll",
	SysLseek:         "lseek",
	SysMmap:          "mmap",
	SysMprotect:      "mprotect",
	SysMunmap:        "munmap",
	SysBrk:           "brk",
	SysRtSigaction:   "rt_sigaction",
	SysRtSigprocmask: "rt_sigprocmask",
	SysRtSigreturn:   "rt_sigreturn",
	SysIoctl:         "ioctl",
	SysPread64:       "pread64",
	SysPwrite64:      "pwrite64",
	SysReadv:         "readv",
	SysWritev:        "writev",
	SysAccess:        "access",
	SysPipe:          "pipe",
	SysSelect:        "select",
	SysSchedYield:    "sched_yield",
	SysMremap:        "mremap",
	SysMsync:         "msync",
	SysMadvise:       "madvise",
	SysDup:           "dup",
	SysNanosleep:     "nanosleep",
	SysGetpid:        "getpid",
	SysSocket:        "socket",
	SysClone:         "clone",
	SysFork:          "fork",
	SysExecve:        "execve",
	SysExit:          "exit",
	SysWait4:         "wait4",
	SysKill:          "kill",
	SysFcntl:         "fcntl",
	SysGettimeofday:  "gettimeofday",
	SysSigaltstack:   "sigaltstack",
	SysArchPrctl:     "arch_prctl",
	SysGettid:        "gettid",
	SysFutex:         "futex",
	SysExitGroup:     "exit_group",
	SysTgkill:        "tgkill",
	SysOpenat:        "openat",
}

var numbers map[string]uint64

func init() {
	numbers = make(map[string]uint64, len(names))
	for no, name := range names {
		numbers[name] = no
	}
}

// Name returns the kernel name of the given syscall number, or a numeric
// spelling if the number is not in the table.
func Name(no uint64) string {
	if name, ok := names[no]; ok {
		return name
	}
	return fmt.Sprintf("syscall(%d)", no)
}

// Lookup returns the syscall number for a kernel syscall name.
func Lookup(name string) (uint64, bool) {
	no, ok := numbers[name]
	return no, ok
}
