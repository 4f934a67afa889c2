// Package policy provides Open Policy Agent (OPA) checks for pipeline requests.
//
// Policies are Rego modules whose deny set lists the reasons a request must
// be rejected. Each entry is either a message string or an object:
//
//	package layerkit.users
//
//	import rego.v1
//
//	deny contains violation if {
//	    endswith(input.request.email, "@example.invalid")
//	    violation := {
//	        "message": "Disposable email domains are not accepted",
//	        "field": "email",
//	    }
//	}
//
// The input document carries the operation ID, the correlation ID, the
// client request and the configured environment.
//
// # Usage
//
// Guard wraps the client-to-command converter of an operation so denied
// requests fail with a DomainFailure coded POLICY_DENIED before any handler
// runs:
//
//	pe, err := policy.NewEngine(ctx, logger, []policy.Policy{
//	    policy.ReservedValuesPolicy("reserved-names", "name", "admin", "root"),
//	})
//	if err != nil {
//	    return err
//	}
//	conv := policy.Guard(pe, users.RequestToCommand(v))
//
// # Severity Levels
//
// Violations with severity error or critical block the request. Info and
// warning violations are reported in Decision.Warnings only.
//
// # Hot Reload
//
// Policies loaded from files can be reloaded on change:
//
//	if err := pe.LoadPolicies(ctx, paths); err != nil {
//	    return err
//	}
//	if err := pe.Watch(ctx, paths); err != nil {
//	    return err
//	}
package policy
