package handoff

// unwind records acquired resources so that a failed acquisition sequence
// releases them in reverse order.
type unwind struct {
	releases []func()
}

func (u *unwind) push(release func()) {
	u.releases = append(u.releases, release)
}

// release pops and runs every recorded release, newest first.
func (u *unwind) release() {
	for i := len(u.releases) - 1; i >= 0; i-- {
		u.releases[i]()
	}
	u.releases = nil
}

// disarm hands ownership of everything acquired to the caller.
func (u *unwind) disarm() {
	u.releases = nil
}
