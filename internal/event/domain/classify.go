package domain

// Classified partitions a fetched batch into the four known categories.
// Events with an unknown name are dropped from every group.
type Classified struct {
	Installs        []Event
	TrialsStarted   []Event
	TrialsCancelled []Event
	Activations     []Event
}

// Classify is a pure partition of the batch; no event is mutated.
func Classify(events []Event) Classified {
	var c Classified
	for _, ev := range events {
		switch ev.EventName {
		case EventInstall:
			c.Installs = append(c.Installs, ev)
		case EventTrialStarted:
			c.TrialsStarted = append(c.TrialsStarted, ev)
		case EventTrialCancelled:
			c.TrialsCancelled = append(c.TrialsCancelled, ev)
		case EventActivation:
			c.Activations = append(c.Activations, ev)
		}
	}
	return c
}

// Total counts the events retained across all groups.
func (c Classified) Total() int {
	return len(c.Installs) + len(c.TrialsStarted) + len(c.TrialsCancelled) + len(c.Activations)
}
