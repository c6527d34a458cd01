//go:build linux && amd64
// +build linux,amd64

package native

import (
	"github.com/dcci/rr/pkg/proc"
)

// AttachCheckpoint describes a set of suspended threads the replay engine
// has prepared for experimenting. Cloning attaches to each of them; the
// recorded state itself stays with the replay engine and is never touched
// here.
type AttachCheckpoint struct {
	Tgid int
	// Tasks maps tracer-visible tids to the recorded tids used in
	// debugger protocol messages.
	Tasks map[int]int
}

// CloneExperiment attaches to every thread of the checkpoint and hands
// them to a fresh session. On any failure the tasks attached so far are
// detached again.
func (c *AttachCheckpoint) CloneExperiment() (*proc.ExperimentSession, error) {
	sess := proc.NewExperimentSession()
	for tid, recTid := range c.Tasks {
		t, err := Attach(tid, c.Tgid, recTid)
		if err != nil {
			sess.KillAllTasks()
			return nil, err
		}
		sess.AddTask(t)
	}
	return sess, nil
}
