// Package dbg defines the debugger-facing boundary of an experimental
// session: the request sum type consumed by the control loop, the
// connection a debugger frontend talks over, and the dispatcher that
// handles every request the experiment core does not interpret itself.
package dbg

import (
	"fmt"

	"github.com/dcci/rr/pkg/proc"
)

// RequestType tags a Request.
type RequestType int

const (
	// Continue resumes the focused task until its next stop.
	Continue RequestType = iota
	// Step resumes the focused task for a single instruction.
	Step
	// Restart aborts the experiment entirely.
	Restart
	// ReadSiginfo queries signal information for the focused task.
	ReadSiginfo
	// WriteSiginfo announces that the experiment should end after the
	// next resume.
	WriteSiginfo
	// SetQueryThread switches the focused task.
	SetQueryThread

	// Requests below are opaque to the experiment core and forwarded
	// verbatim to the Dispatcher.

	// GetRegisters reads the focused task's register file.
	GetRegisters
	// ReadMemory reads a range of the focused task's memory.
	ReadMemory
	// WriteMemory writes a range of the focused task's memory.
	WriteMemory
	// SetBreakpoint plants a breakpoint.
	SetBreakpoint
	// ClearBreakpoint removes a breakpoint.
	ClearBreakpoint
)

var requestTypeNames = map[RequestType]string{
	Continue:        "Continue",
	Step:            "Step",
	Restart:         "Restart",
	ReadSiginfo:     "ReadSiginfo",
	WriteSiginfo:    "WriteSiginfo",
	SetQueryThread:  "SetQueryThread",
	GetRegisters:    "GetRegisters",
	ReadMemory:      "ReadMemory",
	WriteMemory:     "WriteMemory",
	SetBreakpoint:   "SetBreakpoint",
	ClearBreakpoint: "ClearBreakpoint",
}

func (rt RequestType) String() string {
	if name, ok := requestTypeNames[rt]; ok {
		return name
	}
	return fmt.Sprintf("RequestType(%d)", int(rt))
}

// Request is one inbound debugger command. Requests are transient: they
// are consumed one at a time and never persisted.
type Request struct {
	Type RequestType

	// Tid is the target task of a SetQueryThread request.
	Tid int
	// SiginfoLen is the payload length requested by ReadSiginfo.
	SiginfoLen int
	// Addr and Data carry the payload of opaque requests, untouched by
	// the experiment core.
	Addr uint64
	Data []byte
}

// IsResume reports whether the request hands control back to the tracee.
func (r Request) IsResume() bool {
	return r.Type == Continue || r.Type == Step
}

// Connection is a single debugger session. GetRequest blocks until the
// frontend sends the next command; the reply methods answer the request
// kinds the experiment core handles locally, and NotifyStop delivers the
// asynchronous stop notification after a resume.
type Connection interface {
	GetRequest() (Request, error)
	ReplyReadSiginfo(payload []byte) error
	ReplyWriteSiginfo() error
	NotifyStop(pid, tid, sig int) error
	Close() error
}

// Dispatcher handles every request the experiment core forwards opaquely:
// breakpoint management, memory and register access, and anything the
// protocol grows later.
type Dispatcher interface {
	DispatchDebuggerRequest(sess *proc.ExperimentSession, conn Connection, t proc.Task, req Request) error
}
