package input

import "context"

// LifecycleJob is one periodic reconciliation job. Run never returns an error:
// failures are logged and retried implicitly by the next scheduled run.
type LifecycleJob interface {
	Name() string
	Run(ctx context.Context)
}
