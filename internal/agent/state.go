package agent

// toolResultEntry is one accumulated tool result kept in the running
// prompt across iterations, subject to context compaction.
type toolResultEntry struct {
	iteration int
	toolName  string
	args      map[string]any
	result    string
	isError   bool
	bytes     int
}

// iterationState tracks the loop's progress across the reasoning phase.
// It mirrors nexus's LoopState (internal/agent/loop.go) narrowed to what
// spec §4.5 actually needs: a status, an iteration counter, and the
// accumulated tool-result window that gets compacted.
type iterationState struct {
	status      Status
	iteration   int
	toolResults []toolResultEntry
	trace       []ToolCallRecord
	usage       Usage
}

func (s *iterationState) accumulatedBytes() int {
	n := 0
	for _, r := range s.toolResults {
		n += r.bytes
	}
	return n
}

// compact drops all but the keepRecent most recent tool results, returning
// the number cleared and kept so the caller can emit context_cleared.
func (s *iterationState) compact(keepRecent int) (cleared, kept int) {
	if len(s.toolResults) <= keepRecent {
		return 0, len(s.toolResults)
	}
	cleared = len(s.toolResults) - keepRecent
	s.toolResults = s.toolResults[cleared:]
	return cleared, len(s.toolResults)
}
