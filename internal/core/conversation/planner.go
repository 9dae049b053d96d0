// This file contains pure planner functions over a loaded conversation.
package conversation

import "slices"

// MessageState is the slice of a message the planners need.
type MessageState struct {
	Seq    int
	Sender string
	Read   bool
}

// ExpectedUnread computes each participant's unread count from message state.
func ExpectedUnread(participants []string, messages []MessageState) map[string]int {
	counts := make(map[string]int, len(participants))
	for _, p := range participants {
		counts[p] = 0
	}
	for _, m := range messages {
		if m.Read {
			continue
		}
		for _, p := range participants {
			if p != m.Sender {
				counts[p]++
			}
		}
	}
	return counts
}

// CounterFix describes one drifted unread counter.
type CounterFix struct {
	Participant string `json:"participant"`
	Stored      int    `json:"stored"`
	Expected    int    `json:"expected"`
}

// ReconcilePlan lists the counters that disagree with message state.
type ReconcilePlan struct {
	ConversationID string
	Fixes          []CounterFix
}

// Counts returns the corrected counter values keyed by participant.
func (p ReconcilePlan) Counts() map[string]int {
	out := make(map[string]int, len(p.Fixes))
	for _, f := range p.Fixes {
		out[f.Participant] = f.Expected
	}
	return out
}

// PlanReconcile compares stored counters against the counts implied by the
// messages. Fixes are ordered by participant.
func PlanReconcile(conversationID string, stored map[string]int, messages []MessageState) ReconcilePlan {
	participants := make([]string, 0, len(stored))
	for p := range stored {
		participants = append(participants, p)
	}
	slices.Sort(participants)

	expected := ExpectedUnread(participants, messages)
	plan := ReconcilePlan{ConversationID: conversationID}
	for _, p := range participants {
		if stored[p] != expected[p] {
			plan.Fixes = append(plan.Fixes, CounterFix{
				Participant: p,
				Stored:      stored[p],
				Expected:    expected[p],
			})
		}
	}
	return plan
}
