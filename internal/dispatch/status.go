package dispatch

// HandleJobStatusData applies an out-of-band status update for a
// running job, the path build scripts use to report progress lines
// back to the core instead of going through the ExecutionAdapter's
// notify callback directly (matches murdock.py's handle_job_status_data,
// used when the build runner and the dispatcher are separate processes).
// It is a no-op for a uid that is not currently running.
func (c *Core) HandleJobStatusData(uid string, line string) {
	c.mu.Lock()
	var found bool
	for _, j := range c.running {
		if j != nil && j.UID == uid {
			j.Status.Line = line
			found = true
			break
		}
	}
	c.mu.Unlock()

	if found {
		c.notify(map[string]any{"cmd": "status", "uid": uid, "line": line})
	}
}
