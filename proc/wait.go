package proc

import "github.com/Littlew0od/OSKernel2023-Main.os-2-1-1/defs"

// Waitst is one collected exit status, named after the teacher's
// Waitst_t (proc/wait.go): which pid exited, its status, and whether this
// record is actually valid (distinguishing "no such child" from "child
// exists but hasn't exited yet").
type Waitst struct {
	Pid    defs.Pid_t
	Status int
	Valid  bool
}

// Wait4 implements wait4(2) (§4.4): if a child matching pid (or any
// child, if pid <= 0) is already a zombie, it reaps it and returns its
// exit status. Otherwise it returns an invalid Waitst under WNOHANG and
// EAGAIN without it; it never blocks the caller. Waiting for a pid that is not a living or
// zombie child of caller fails with ECHILD, matching the invariant
// "waiting for a pid that is not my child must fail" (§8).
func Wait4(caller *ProcessControlBlock, pid defs.Pid_t, nohang bool) (Waitst, defs.Err_t) {
	caller.mu.Lock()
	idx, child := findZombieChild(caller.Children, pid)
	if child == nil {
		hasMatchingChild := pid <= 0 && len(caller.Children) > 0
		if pid > 0 {
			for _, c := range caller.Children {
				if c.Pid == pid {
					hasMatchingChild = true
					break
				}
			}
		}
		caller.mu.Unlock()
		if !hasMatchingChild {
			return Waitst{}, defs.ECHILD
		}
		if nohang {
			return Waitst{Valid: false}, defs.SUCCESS
		}
		// No zombie yet but a matching child is still alive: EAGAIN.
		// The caller is not blocked, and sysWait4 returns EAGAIN to user
		// space as is.
		return Waitst{}, defs.EAGAIN
	}
	caller.Children = append(caller.Children[:idx], caller.Children[idx+1:]...)
	caller.mu.Unlock()

	child.mu.Lock()
	status := child.ExitCode
	rpid := child.Pid
	child.mu.Unlock()
	Reap(rpid)

	return Waitst{Pid: rpid, Status: status, Valid: true}, defs.SUCCESS
}

func findZombieChild(children []*ProcessControlBlock, pid defs.Pid_t) (int, *ProcessControlBlock) {
	for i, c := range children {
		if pid > 0 && c.Pid != pid {
			continue
		}
		c.mu.Lock()
		z := c.IsZombie
		c.mu.Unlock()
		if z {
			return i, c
		}
	}
	return -1, nil
}
