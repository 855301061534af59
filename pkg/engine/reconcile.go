package engine

// Desired is one configured item: a plain package, or a group when Members is non-nil.
type Desired struct {
	// Name is the package or group name.
	Name string

	// Hook runs once the item (or, for a group, any of its members) is newly installed.
	Hook HookRef

	// Members is the group expansion reported by the backend.
	Members []string
}

// IsGroup reports whether the item is a group.
func (d Desired) IsGroup() bool {
	return d.Members != nil
}

// Installed is the installed-state snapshot of a backend that distinguishes
// explicitly installed packages from dependencies.
type Installed struct {
	Explicit     *Set
	Dependencies *Set
}

// Result is the outcome of reconciling desired against installed state.
type Result struct {
	// ToInstall lists packages that are not installed at all.
	ToInstall *Set

	// ToRemove lists explicitly installed packages that are not configured.
	ToRemove *Set

	// Promote lists configured packages installed only as dependencies.
	Promote *Set

	// Hooks are the hooks of items that ToInstall brings in, in discovery order.
	Hooks []HookRef

	// Expanded is every configured name after group expansion.
	Expanded *Set
}

// Idle reports whether no command needs to run.
func (r Result) Idle() bool {
	return r.ToInstall.Len() == 0 && r.ToRemove.Len() == 0 && r.Promote.Len() == 0
}

// Reconcile diffs desired items against installed state.
//
// Groups are expanded into their members before diffing. A group's hook is
// scheduled once when at least one member is newly installed. Configured
// packages present only as dependencies are promoted instead of reinstalled.
// Removal candidates are drawn from explicitly installed packages only.
func Reconcile(desired []Desired, installed Installed) Result {
	res := Result{
		ToInstall: NewSet(),
		ToRemove:  NewSet(),
		Promote:   NewSet(),
		Expanded:  NewSet(),
	}

	want := func(name string) bool {
		res.Expanded.Add(name)
		switch {
		case installed.Explicit.Has(name):
		case installed.Dependencies.Has(name):
			res.Promote.Add(name)
		default:
			res.ToInstall.Add(name)
		}
		return res.ToInstall.Has(name)
	}

	for _, d := range desired {
		if !d.IsGroup() {
			if want(d.Name) && d.Hook != nil {
				res.Hooks = append(res.Hooks, d.Hook)
			}
			continue
		}
		fresh := false
		for _, m := range d.Members {
			if want(m) {
				fresh = true
			}
		}
		if fresh && d.Hook != nil {
			res.Hooks = append(res.Hooks, d.Hook)
		}
	}

	res.ToRemove = installed.Explicit.Difference(res.Expanded)
	return res
}
