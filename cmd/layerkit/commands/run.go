package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/layerkit/layerkit/examples/users"
	"github.com/layerkit/layerkit/pkg/core"
)

// requestDecoders decode the --data payload for each runnable operation.
var requestDecoders = map[core.OperationID]func([]byte) (core.ClientRequest, error){
	users.CreateUserID: decodeRequest[users.CreateUserRequest],
}

func decodeRequest[T core.ClientRequest](data []byte) (core.ClientRequest, error) {
	var req T
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("failed to decode request: %w", err)
	}
	return req, nil
}

func newRunCommand(opts *globalOptions) *cobra.Command {
	var (
		data     string
		dataFile string
	)

	cmd := &cobra.Command{
		Use:   "run <operation>",
		Short: "Execute an operation",
		Long: `Execute one operation with a JSON client request.

The request is validated, checked against the configured policies and
passed to the operation handler. The client response is printed as JSON.
A failed execution prints the failure and exits non-zero.`,
		Example: `  # Create a user
  layerkit run create-user --data '{"name":"Bo","email":"bo@x.com","age":30}'

  # Read the request from a file using a settings file
  layerkit run create-user --data-file user.json --settings layerkit.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := core.OperationID(args[0])

			payload, err := readPayload(cmd.InOrStdin(), data, dataFile)
			if err != nil {
				return err
			}

			decode, ok := requestDecoders[id]
			if !ok {
				return fmt.Errorf("operation %s cannot be run from the command line", id)
			}
			req, err := decode(payload)
			if err != nil {
				return err
			}

			settings, err := loadSettings(opts.settingsPath)
			if err != nil {
				return fmt.Errorf("failed to load settings: %w", err)
			}

			ctx := cmd.Context()
			app, err := newApplication(ctx, settings)
			if err != nil {
				return err
			}
			defer app.Close(context.WithoutCancel(ctx))

			log.Debug().Str("operation", id.String()).Msg("Executing operation")

			resp, err := core.Unwrap(app.engine.Execute(ctx, id, req))
			if err != nil {
				return printFailure(cmd.OutOrStdout(), opts.jsonOutput, err)
			}

			return writeJSON(cmd.OutOrStdout(), resp)
		},
	}

	cmd.Flags().StringVarP(&data, "data", "d", "", "JSON request body")
	cmd.Flags().StringVarP(&dataFile, "data-file", "f", "", "file holding the JSON request body (- for stdin)")
	cmd.MarkFlagsMutuallyExclusive("data", "data-file")

	return cmd
}

func readPayload(stdin io.Reader, data, dataFile string) ([]byte, error) {
	switch {
	case data != "":
		return []byte(data), nil
	case dataFile == "-":
		return io.ReadAll(stdin)
	case dataFile != "":
		payload, err := os.ReadFile(dataFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read request file: %w", err)
		}
		return payload, nil
	default:
		return nil, fmt.Errorf("a request is required: use --data or --data-file")
	}
}

// failureOutput is the JSON rendering of a failed execution.
type failureOutput struct {
	Kind    core.FailureKind `json:"kind"`
	Message string           `json:"message"`
	Failure any              `json:"failure,omitempty"`
}

// printFailure reports err and returns it wrapped. A failure whose fields
// cannot be encoded, such as an unencodable mapping source, is printed with
// its kind and message only.
func printFailure(w io.Writer, jsonOutput bool, err error) error {
	if jsonOutput {
		kind, _ := core.KindOf(err)
		out := failureOutput{Kind: kind, Message: err.Error(), Failure: err}
		if _, merr := json.Marshal(out); merr != nil {
			log.Debug().Err(merr).Msg("Failure details are not encodable")
			out.Failure = nil
		}
		if werr := writeJSON(w, out); werr != nil {
			return werr
		}
	}
	return fmt.Errorf("execution failed: %w", err)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
