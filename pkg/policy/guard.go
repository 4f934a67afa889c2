package policy

import (
	"context"
	"fmt"
	"strings"

	"github.com/layerkit/layerkit/pkg/conversion"
	"github.com/layerkit/layerkit/pkg/core"
	"github.com/layerkit/layerkit/pkg/middleware"
)

// Evaluator decides whether an input is allowed.
type Evaluator interface {
	Evaluate(ctx context.Context, input Input) (*Decision, error)
}

// Guard checks each request against policies before conversion.
//
// A denied request fails with a DomainFailure coded core.CodePolicyDenied and
// conv never runs. A policy that cannot be evaluated fails the request with a
// MappingFailure.
func Guard[From, To any](ev Evaluator, conv conversion.Converter[From, To]) conversion.Converter[From, To] {
	return conversion.ConverterFunc[From, To](func(ctx context.Context, from From) core.Result[core.Failure, To] {
		input := Input{Request: from}
		if ec, ok := middleware.ExecutionContextFrom(ctx); ok {
			input.Operation = ec.OperationID.String()
			input.CorrelationID = ec.CorrelationID
		}

		decision, err := ev.Evaluate(ctx, input)
		if err != nil {
			return core.Err[To](core.MappingFailure{
				Message: fmt.Sprintf("policy evaluation failed: %v", err),
				Source:  from,
			})
		}

		if !decision.Allowed {
			return core.Err[To](core.DomainFailure{
				Code:    core.CodePolicyDenied,
				Message: denialMessage(decision.Violations),
			})
		}

		return conv.Convert(ctx, from)
	})
}

func denialMessage(violations []Violation) string {
	if len(violations) == 0 {
		return "request denied by policy"
	}
	messages := make([]string, len(violations))
	for i, v := range violations {
		messages[i] = v.Message
	}
	return strings.Join(messages, "; ")
}
