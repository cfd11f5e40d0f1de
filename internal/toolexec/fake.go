package toolexec

import (
	"context"
	"sync"
)

// RecordingRunner records commands instead of executing them. Fail, when set,
// decides the outcome of each call.
type RecordingRunner struct {
	mu       sync.Mutex
	Commands []Command
	Fail     func(Command) error
}

func (r *RecordingRunner) Run(ctx context.Context, c Command) (Result, error) {
	r.mu.Lock()
	r.Commands = append(r.Commands, c)
	r.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return Result{ExitCode: -1}, err
	}
	if r.Fail != nil {
		if err := r.Fail(c); err != nil {
			return Result{ExitCode: 1}, err
		}
	}
	return Result{}, nil
}

// Calls returns a copy of the recorded commands.
func (r *RecordingRunner) Calls() []Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Command(nil), r.Commands...)
}
