// Package experiment forks a live, divergent execution branch off a
// recorded checkpoint and lets a debugger drive it interactively. Every
// syscall the branch attempts is intercepted before it reaches the
// kernel: it is either emulated in this process, executed remotely inside
// the branch on an explicit allow-list, or rejected.
package experiment

import (
	"fmt"
	"io"
	"os"

	"github.com/dcci/rr/pkg/logflags"
	"github.com/dcci/rr/pkg/proc"
	"github.com/dcci/rr/service/dbg"
	"github.com/sirupsen/logrus"
)

const sigTrap = 5 // SIGTRAP

// maxSiginfoLen bounds the payload size a signal-information query may
// ask for. The kernel's siginfo_t is 128 bytes; the length field arrives
// over the wire and must not size an allocation unchecked.
const maxSiginfoLen = 4096

// Config configures a Run.
type Config struct {
	// Channel executes allow-listed syscalls inside the branched process.
	Channel proc.RemoteSyscalls
	// Dispatcher handles debugger requests the experiment core forwards
	// opaquely. May be nil, in which case such requests are dropped with
	// a warning.
	Dispatcher dbg.Dispatcher
	// PassThroughSyscalls names additional syscalls to execute remotely,
	// beyond the built-in mmap/munmap pair.
	PassThroughSyscalls []string
	// ForwardStdio controls whether tracee stdio writes are forwarded.
	ForwardStdio bool
	// Stdout and Stderr receive forwarded tracee output. They default to
	// this process's streams.
	Stdout, Stderr io.Writer
	// Warnings receives unhandled-syscall diagnostics. Defaults to
	// os.Stderr.
	Warnings io.Writer
}

// Experiment is the state of one experimental debugging session: the
// cloned session, the debugger connection, and the syscall policy. It is
// owned by Run for the duration of the call, which is the only place a
// session can exist.
type Experiment struct {
	sess     *proc.ExperimentSession
	conn     dbg.Connection
	dispatch dbg.Dispatcher
	channel  proc.RemoteSyscalls

	table        map[uint64]syscallAction
	forwardStdio bool
	stdout       io.Writer
	stderr       io.Writer
	warnw        io.Writer

	mem map[int]*proc.MemCache
	log *logrus.Entry
}

func newExperiment(conn dbg.Connection, cfg *Config) *Experiment {
	e := &Experiment{
		conn:         conn,
		dispatch:     cfg.Dispatcher,
		channel:      cfg.Channel,
		forwardStdio: cfg.ForwardStdio,
		stdout:       cfg.Stdout,
		stderr:       cfg.Stderr,
		warnw:        cfg.Warnings,
		mem:          make(map[int]*proc.MemCache),
		log:          logflags.ExperimentLogger(),
	}
	if e.stdout == nil {
		e.stdout = os.Stdout
	}
	if e.stderr == nil {
		e.stderr = os.Stderr
	}
	if e.warnw == nil {
		e.warnw = os.Stderr
	}
	e.table = policyTable(cfg.PassThroughSyscalls, e.log.Warnf)
	return e
}

// memFor returns the memory cache for t, creating it on first use.
func (e *Experiment) memFor(t proc.Task) *proc.MemCache {
	cache, ok := e.mem[t.ThreadID()]
	if !ok {
		cache = proc.NewMemCache(t)
		e.mem[t.ThreadID()] = cache
	}
	return cache
}

// advance resumes execution of t according to req until either a signal
// is received (including a SIGTRAP generated by a single-step) or a
// syscall is made. Returns false when interrupted by a signal, true when
// a syscall is made.
//
// A resume-class request is the only legal input, and t must not carry an
// unconsumed pending signal; violating either is an internal protocol
// error, not a recoverable condition.
func (e *Experiment) advance(t proc.Task, req dbg.Request) (bool, error) {
	if sig := t.PendingSignal(); sig != 0 {
		panic(fmt.Sprintf("advancing task %d with unconsumed pending signal %d", t.ThreadID(), sig))
	}

	switch req.Type {
	case dbg.Continue:
		e.log.Debug("continuing to next syscall")
		if err := t.ContSysemu(); err != nil {
			return false, err
		}
	case dbg.Step:
		if err := t.ContSysemuSinglestep(); err != nil {
			return false, err
		}
		e.log.Debug("stepping to next insn/syscall")
	default:
		panic(fmt.Sprintf("illegal debug request %s", req.Type))
	}

	e.memFor(t).Invalidate()

	if t.PendingSignal() != 0 {
		return false, nil
	}
	regs, err := t.Registers()
	if err != nil {
		return false, err
	}
	if err := e.processSyscall(t, regs.SyscallNo()); err != nil {
		return false, err
	}
	return true, nil
}

// processDebuggerRequests consumes debugger requests until action needs
// to be taken by the caller (a resume-class request arrives). The
// returned task is the target of the resume request, nil if the session
// should terminate instead of resuming; the request itself is returned
// alongside.
func (e *Experiment) processDebuggerRequests(t proc.Task) (proc.Task, dbg.Request, error) {
	for {
		req, err := e.conn.GetRequest()
		if err != nil {
			return nil, req, err
		}

		if req.IsResume() {
			if e.sess.Dying() {
				return nil, req, nil
			}
			return t, req, nil
		}

		switch req.Type {
		case dbg.Restart:
			// Restart aborts unconditionally, dying session or not.
			return nil, req, nil

		case dbg.ReadSiginfo:
			e.sess.Revive()
			n := req.SiginfoLen
			if n < 0 || n > maxSiginfoLen {
				e.log.Warnf("siginfo query with bad length %d, replying empty", n)
				n = 0
			}
			payload := make([]byte, n)
			if err := e.conn.ReplyReadSiginfo(payload); err != nil {
				return nil, req, err
			}
			continue

		case dbg.WriteSiginfo:
			e.log.Debug("experimental session dying at next continue request")
			e.sess.StartDying()
			if err := e.conn.ReplyWriteSiginfo(); err != nil {
				return nil, req, err
			}
			continue

		case dbg.SetQueryThread:
			if next := e.sess.FindTask(req.Tid); next != nil {
				t = next
			}
		}

		if e.dispatch == nil {
			e.log.Warnf("no dispatcher for debugger request %s", req.Type)
			continue
		}
		if err := e.dispatch.DispatchDebuggerRequest(e.sess, e.conn, t, req); err != nil {
			e.log.Warnf("dispatching debugger request %s: %v", req.Type, err)
		}
	}
}

// presentedSignal returns the signal to report for a raw signal stop. A
// stop on a user-planted breakpoint is reported as SIGTRAP regardless of
// the raw signal delivered, so the debugger sees a uniform
// breakpoint-stop signal.
func presentedSignal(t proc.Task, rawSig int) int {
	if rawSig == sigTrap {
		return rawSig
	}
	regs, err := t.Registers()
	if err != nil {
		return rawSig
	}
	if t.BreakpointTypeAt(regs.PC()) == proc.UserBreakpoint {
		return sigTrap
	}
	return rawSig
}

// Run clones an experimental session off checkpoint and drives it from
// debugger requests until the debugger restarts or the session dies. All
// tasks owned by the session are torn down before Run returns.
func Run(checkpoint proc.Checkpoint, conn dbg.Connection, initialTid int, cfg *Config) error {
	e := newExperiment(conn, cfg)
	e.log.Debugf("starting debugging experiment for task %d", initialTid)

	sess, err := checkpoint.CloneExperiment()
	if err != nil {
		return err
	}
	e.sess = sess
	defer func() {
		e.log.Debug("ending debugging experiment")
		sess.KillAllTasks()
	}()

	t := sess.FindTask(initialTid)
	if t == nil {
		return fmt.Errorf("no task %d in experimental session", initialTid)
	}

	for {
		next, req, err := e.processDebuggerRequests(t)
		if err != nil {
			return err
		}
		if next == nil {
			return nil
		}
		t = next

		madeSyscall, err := e.advance(t, req)
		if err != nil {
			return err
		}
		if !madeSyscall {
			sig := t.ConsumePendingSignal()
			e.log.Debugf("tracee raised signal %d", sig)
			sig = presentedSignal(t, sig)
			if err := e.conn.NotifyStop(t.Tgid(), t.RecTid(), sig); err != nil {
				return err
			}
		}
	}
}
