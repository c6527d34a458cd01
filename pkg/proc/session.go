package proc

// ExperimentSession is a live execution branch cloned from a replay
// checkpoint. It exclusively owns every task in the branch; the tasks are
// torn down together when the session ends.
//
// At most one ExperimentSession exists at any instant: the orchestrator's
// Run call is the only place one is created, and it destroys the session
// before returning.
type ExperimentSession struct {
	tasks map[int]Task

	// dying is monotonic: once set the session terminates at the next
	// resume boundary. revived records that the debugger queried signal
	// state after scheduling the teardown.
	dying   bool
	revived bool
}

// NewExperimentSession returns an empty session. Tasks are added by the
// checkpoint-cloning machinery.
func NewExperimentSession() *ExperimentSession {
	return &ExperimentSession{tasks: make(map[int]Task)}
}

// AddTask transfers ownership of t to the session.
func (s *ExperimentSession) AddTask(t Task) {
	s.tasks[t.ThreadID()] = t
}

// FindTask returns the owned task with the given tracer-visible id, or nil.
func (s *ExperimentSession) FindTask(tid int) Task {
	return s.tasks[tid]
}

// NumTasks returns the number of tasks owned by the session.
func (s *ExperimentSession) NumTasks() int {
	return len(s.tasks)
}

// StartDying flags the session to terminate at its next resume boundary.
// In-flight debugger queries still complete first.
func (s *ExperimentSession) StartDying() {
	s.dying = true
}

// Revive records that the debugger is still inspecting the session.
func (s *ExperimentSession) Revive() {
	s.revived = true
}

// Dying reports whether the session should terminate instead of resuming.
func (s *ExperimentSession) Dying() bool {
	return s.dying
}

// KillAllTasks detaches every task owned by the session and forgets them.
func (s *ExperimentSession) KillAllTasks() {
	for tid, t := range s.tasks {
		t.Detach()
		delete(s.tasks, tid)
	}
}

// Checkpoint is a previously recorded execution state from which an
// experiment branch can be cloned. The record/replay engine implements it;
// cloning must not mutate the checkpoint itself.
type Checkpoint interface {
	CloneExperiment() (*ExperimentSession, error)
}
