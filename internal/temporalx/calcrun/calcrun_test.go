package calcrun

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/activity"
	temporalsdkclient "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/testsuite"
	"go.temporal.io/sdk/workflow"

	types "github.com/yungbote/sectorgoals-backend/internal/domain"
)

type fakeExecutor struct {
	mu    sync.Mutex
	calls []uuid.UUID
	err   error
}

func (f *fakeExecutor) Execute(_ context.Context, runID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, runID)
	return f.err
}

func newWorkflowEnv(exec Executor) *testsuite.TestWorkflowEnvironment {
	var s testsuite.WorkflowTestSuite
	env := s.NewTestWorkflowEnvironment()
	acts := &Activities{Exec: exec}
	env.RegisterWorkflowWithOptions(Workflow, workflow.RegisterOptions{Name: WorkflowName})
	env.RegisterActivityWithOptions(acts.Execute, activity.RegisterOptions{Name: ActivityExecute})
	return env
}

func TestWorkflowExecutesRunOnce(t *testing.T) {
	exec := &fakeExecutor{}
	env := newWorkflowEnv(exec)
	runID := uuid.New()

	env.ExecuteWorkflow(WorkflowName, runID.String())
	if !env.IsWorkflowCompleted() {
		t.Fatalf("workflow did not complete")
	}
	if err := env.GetWorkflowError(); err != nil {
		t.Fatalf("workflow error: %v", err)
	}
	if len(exec.calls) != 1 || exec.calls[0] != runID {
		t.Fatalf("want=1 call for %s got=%v", runID, exec.calls)
	}
}

func TestWorkflowDoesNotRetryRejectedRun(t *testing.T) {
	exec := &fakeExecutor{err: errors.New("run is already LOADING")}
	env := newWorkflowEnv(exec)

	env.ExecuteWorkflow(WorkflowName, uuid.NewString())
	if err := env.GetWorkflowError(); err == nil {
		t.Fatalf("want workflow error for a rejected run")
	}
	if len(exec.calls) != 1 {
		t.Fatalf("want=1 attempt got=%d", len(exec.calls))
	}
}

func TestActivityRejectsMalformedRunID(t *testing.T) {
	var s testsuite.WorkflowTestSuite
	env := s.NewTestActivityEnvironment()
	exec := &fakeExecutor{}
	acts := &Activities{Exec: exec}
	env.RegisterActivity(acts.Execute)

	if _, err := env.ExecuteActivity(acts.Execute, "not-a-uuid"); err == nil {
		t.Fatalf("want error for malformed run id")
	}
	if len(exec.calls) != 0 {
		t.Fatalf("executor must not be called, got=%d", len(exec.calls))
	}
}

type fakeRun struct {
	temporalsdkclient.WorkflowRun
	id string
}

func (r fakeRun) GetID() string    { return r.id }
func (r fakeRun) GetRunID() string { return "r-1" }

type fakeStarter struct {
	opts temporalsdkclient.StartWorkflowOptions
	wf   interface{}
	args []interface{}
	err  error
}

func (f *fakeStarter) ExecuteWorkflow(_ context.Context, opts temporalsdkclient.StartWorkflowOptions, wf interface{}, args ...interface{}) (temporalsdkclient.WorkflowRun, error) {
	f.opts, f.wf, f.args = opts, wf, args
	if f.err != nil {
		return nil, f.err
	}
	return fakeRun{id: opts.ID}, nil
}

func TestDispatcherStartsDeterministicWorkflow(t *testing.T) {
	st := &fakeStarter{}
	d := &Dispatcher{Client: st, TaskQueue: "calc"}
	run := &types.CalculationRun{ID: uuid.New(), PeriodID: uuid.New(), RequestedBy: "planner"}

	if err := d.Dispatch(context.Background(), run); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	wantID := "goal-calc/" + run.PeriodID.String() + "/" + run.ID.String()
	if st.opts.ID != wantID || st.opts.TaskQueue != "calc" {
		t.Fatalf("unexpected options: %+v", st.opts)
	}
	if st.opts.WorkflowIDReusePolicy != enumspb.WORKFLOW_ID_REUSE_POLICY_REJECT_DUPLICATE {
		t.Fatalf("reuse policy: want reject duplicate got=%v", st.opts.WorkflowIDReusePolicy)
	}
	if st.opts.Memo["period_id"] != run.PeriodID.String() || st.opts.Memo["requested_by"] != "planner" {
		t.Fatalf("unexpected memo: %v", st.opts.Memo)
	}
	if st.wf != WorkflowName || len(st.args) != 1 || st.args[0] != run.ID.String() {
		t.Fatalf("unexpected workflow call: wf=%v args=%v", st.wf, st.args)
	}

	st.err = errors.New("unavailable")
	if err := d.Dispatch(context.Background(), run); err == nil {
		t.Fatalf("want error when the workflow cannot start")
	}
	if err := (&Dispatcher{}).Dispatch(context.Background(), run); err == nil {
		t.Fatalf("want error without a client")
	}
}
