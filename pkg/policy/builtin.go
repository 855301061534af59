package policy

// GetBuiltinPolicies returns all built-in policies.
func GetBuiltinPolicies() []Policy {
	return []Policy{
		protectedItemsPolicy(),
		packageManagerPolicy(),
	}
}

// protectedItemsPolicy refuses to remove anything listed in policy.protected.
func protectedItemsPolicy() Policy {
	return Policy{
		Name:        "protected-items",
		Description: "Refuses to remove items listed as protected in the settings",
		Severity:    SeverityError,
		Rego: `package supac.policies.protected

import rego.v1

deny contains violation if {
	input.removes
	some item in input.items
	item in input.protected
	violation := {
		"message": sprintf("%s is protected and cannot be removed", [item]),
		"severity": "error",
		"item": item,
	}
}
`,
	}
}

// packageManagerPolicy refuses to let a backend uninstall its own tool.
func packageManagerPolicy() Policy {
	return Policy{
		Name:        "package-manager",
		Description: "Refuses to remove the package manager a backend is driving",
		Severity:    SeverityCritical,
		Rego: `package supac.policies.manager

import rego.v1

tools := {"pacman", "paru", "yay", "flatpak", "rustup", "cargo", "cargo-binstall", "sudo"}

deny contains violation if {
	input.action == "remove"
	some item in input.items
	item in tools
	violation := {
		"message": sprintf("removing %s would break the %s backend", [item, input.backend]),
		"severity": "critical",
		"item": item,
	}
}
`,
	}
}
