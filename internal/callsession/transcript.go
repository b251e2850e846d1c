package callsession

import "strings"

// Aggregator turns recognition fragments into finalized utterances. Policy:
// each final fragment finalizes one utterance on its own; interim fragments
// are informational and never trigger a turn.
type Aggregator struct {
	interim string
}

// LastInterim returns the most recent interim text, usable for incremental
// display. Reset by the next final fragment.
func (a *Aggregator) LastInterim() string {
	return a.interim
}

// Consume feeds one fragment. It returns the finalized utterance and true
// when the fragment completes a non-empty utterance.
func (a *Aggregator) Consume(frag TranscriptFragment) (string, bool) {
	if !frag.IsFinal {
		a.interim = frag.Text
		return "", false
	}
	a.interim = ""
	utterance := strings.TrimSpace(frag.Text)
	if utterance == "" {
		return "", false
	}
	return utterance, true
}
