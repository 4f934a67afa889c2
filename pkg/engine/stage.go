package engine

import (
	"context"

	"github.com/layerkit/layerkit/pkg/core"
	"github.com/layerkit/layerkit/pkg/middleware"
)

// Stage names a step of the execution pipeline.
type Stage string

const (
	// StageResolve looks up the operation spec.
	StageResolve Stage = "resolve"

	// StageClientToCommand converts the client request into a command.
	StageClientToCommand Stage = "client_to_command"

	// StageExecution runs the execution chain and handler.
	StageExecution Stage = "execution"

	// StageResultToClient converts the domain result into a client response.
	StageResultToClient Stage = "result_to_client"
)

// String returns the stage name.
func (s Stage) String() string {
	return string(s)
}

// StageObserver is notified when a stage ends the pipeline with a failure.
// It runs synchronously on the executing goroutine and must not block.
type StageObserver func(ctx context.Context, ec *middleware.ExecutionContext, stage Stage, failure core.Failure)

// Interceptor wraps a whole execution, from resolving the operation to the
// outbound chain. It must call run exactly once; the context it passes to run
// reaches every stage and the StageObserver.
type Interceptor func(ctx context.Context, ec *middleware.ExecutionContext, run func(context.Context) core.Result[core.Failure, core.ClientResponse]) core.Result[core.Failure, core.ClientResponse]
