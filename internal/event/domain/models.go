// Package domain contains the attribution event model shared across the pipeline.
package domain

import "time"

// EventName identifies an attribution event kind as recorded in the warehouse.
type EventName string

const (
	EventInstall        EventName = "install"
	EventTrialStarted   EventName = "af_start_trial"
	EventTrialCancelled EventName = "trial_renewal_cancelled"
	EventActivation     EventName = "af_subscribe"
)

// KnownEventNames returns the warehouse-side enumeration used in query filters.
func KnownEventNames() []string {
	return []string{
		string(EventInstall),
		string(EventTrialStarted),
		string(EventTrialCancelled),
		string(EventActivation),
	}
}

// Event is one warehouse row. Events are immutable once fetched.
type Event struct {
	EventTime    time.Time `ch:"event_time"`
	EventName    EventName `ch:"event_name"`
	SubscriberID string    `ch:"af_sub1"`
}
