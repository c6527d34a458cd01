package proc

// RemoteState is the scratch buffer of an in-flight remote syscall
// transaction: the register file the task had before the transaction
// started, to be restored when it finishes.
type RemoteState struct {
	Regs Registers
}

// RemoteSyscalls executes syscalls on behalf of a traced task by moving
// its register file in and out of a suspended state. This is the only way
// the experiment core ever executes a syscall for real.
//
// The three phases form a transaction: PrepareRemoteSyscalls snapshots the
// task, Syscall6 may be invoked one or more times, and
// FinishRemoteSyscalls commits and restores. No other register mutation of
// the same task may be interleaved with an open transaction.
type RemoteSyscalls interface {
	PrepareRemoteSyscalls(t Task) (*RemoteState, error)
	Syscall6(t Task, state *RemoteState, no, a1, a2, a3, a4, a5, a6 uint64) (int64, error)
	FinishRemoteSyscalls(t Task, state *RemoteState) error
}
