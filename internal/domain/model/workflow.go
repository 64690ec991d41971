package model

// DispatchTarget identifies the workflow that submissions are relayed to.
type DispatchTarget struct {
	Owner    string
	Repo     string
	Workflow string // Workflow file name, e.g. "report.yml".
	Ref      string // Branch or tag the workflow runs against.
}

// FullName returns the "owner/repo" form of the target repository.
func (t DispatchTarget) FullName() string {
	return t.Owner + "/" + t.Repo
}

// WorkflowDispatch is the payload of a single workflow_dispatch call.
type WorkflowDispatch struct {
	Ref    string
	Inputs map[string]string
}

// Workflow is the subset of GitHub workflow metadata formrelay cares about.
type Workflow struct {
	ID    int64
	Name  string
	Path  string
	State string
}
