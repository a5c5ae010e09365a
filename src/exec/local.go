// Package exec provides concrete implementations of the compile action's
// executor and resolver boundary: a local subprocess executor, plus the
// disk- and map-backed resolvers it and its tests are built from.
package exec

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	logging "gopkg.in/op/go-logging.v1"

	"github.com/please-build/cc-compile-action/src/cc"
	"github.com/please-build/cc-compile-action/src/fs"
)

var log = logging.MustGetLogger("exec")

// LocalExecutor runs compile actions as local subprocesses under the exec
// root. It implements cc.Executor.
type LocalExecutor struct {
	ExecRoot string
	Timeout  time.Duration

	mu        sync.Mutex
	processes map[*exec.Cmd]struct{}
}

// NewLocalExecutor returns a LocalExecutor rooted at execRoot, killing any
// compile that runs longer than timeout (0 means a 10 minute default).
func NewLocalExecutor(execRoot string, timeout time.Duration) *LocalExecutor {
	return &LocalExecutor{ExecRoot: execRoot, Timeout: timeout, processes: map[*exec.Cmd]struct{}{}}
}

// ExecWithReply implements cc.Executor. The local strategy always has gcc
// write the real .d file to disk, so it never returns an in-memory Reply.
func (e *LocalExecutor) ExecWithReply(action *cc.CompileAction) (cc.Reply, error) {
	argv, err := action.Argv()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), e.timeout())
	defer cancel()

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = e.ExecRoot
	cmd.Env = action.Environment()
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	e.track(cmd)
	defer e.untrack(cmd)

	log.Debug("compiling %s", action.Source)
	runErr := cmd.Run()
	if stderr.Len() > 0 {
		if err := e.writeCompileLog(action, stderr.Bytes()); err != nil {
			log.Warning("failed to write compile log for %s: %s", action.Source, err)
		}
	}
	if runErr != nil {
		return nil, fmt.Errorf("compile of %s failed: %w\n%s", action.Source, runErr, stderr.String())
	}
	return nil, nil
}

// writeCompileLog persists the compiler's stderr output alongside the
// action's output, with the same copy-and-rename safety as every other
// output this action produces, so a log from a previous, unrelated
// compile is never left looking current.
func (e *LocalExecutor) writeCompileLog(action *cc.CompileAction, stderr []byte) error {
	path := filepath.Join(e.ExecRoot, action.Output.ExecPath().String()+".log")
	return fs.WriteFile(strings.NewReader(string(stderr)), path, 0644)
}

func (e *LocalExecutor) timeout() time.Duration {
	if e.Timeout <= 0 {
		return 10 * time.Minute
	}
	return e.Timeout
}

func (e *LocalExecutor) track(cmd *exec.Cmd) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.processes[cmd] = struct{}{}
}

func (e *LocalExecutor) untrack(cmd *exec.Cmd) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.processes, cmd)
}

// StrategyLocality implements cc.Executor.
func (e *LocalExecutor) StrategyLocality() string { return "local" }

// NeedsIncludeScanning implements cc.Executor: the local strategy relies
// entirely on the compiler's own -MD/-MF output, so the validator always has
// a dotd file to read but still must run to enforce the declared-inclusion
// policy against it.
func (e *LocalExecutor) NeedsIncludeScanning() bool { return true }

// EstimateResourceConsumption implements cc.Executor using the action's own
// fixed local estimate.
func (e *LocalExecutor) EstimateResourceConsumption(action *cc.CompileAction) cc.ResourceSet {
	return action.EstimateResourceConsumptionLocal()
}

// GetScannedIncludeFiles implements cc.Executor. The local strategy always
// has gcc write a real .d file to disk (see ExecWithReply), so it's read
// straight off the action's dotd file rather than from an in-memory reply.
func (e *LocalExecutor) GetScannedIncludeFiles(action *cc.CompileAction, ctx cc.ExecuteContext) ([]string, error) {
	return cc.ScannedIncludeFiles(action, nil)
}

// RunningCount returns the number of compiles currently in flight, mostly
// useful for tests and diagnostics.
func (e *LocalExecutor) RunningCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.processes)
}
