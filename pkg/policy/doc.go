// Package policy guards planned operations with Open Policy Agent (OPA) policies.
//
// Every operation a backend plans is turned into an Input document and
// evaluated against each policy's deny set before the operation runs. A
// violation with error or critical severity denies the operation; the
// executor then skips it and reports a policy_denied error.
//
// # Built-in Policies
//
//   - protected-items: refuses removal of any item listed in policy.protected
//   - package-manager: refuses removal of the tools the backends drive
//
// # Custom Policies
//
// Any *.rego file under the policy directory is loaded as well. A policy
// must define a deny set whose elements are either message strings or
// objects with message, severity and item keys:
//
//	package local.nokernel
//
//	import rego.v1
//
//	deny contains msg if {
//		input.backend == "arch"
//		input.removes
//		some item in input.items
//		startswith(item, "linux")
//		msg := sprintf("kernels are managed by hand: %s", [item])
//	}
package policy
