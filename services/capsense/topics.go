package capsense

import "capsense-go/bus"

var (
	TopicState      = bus.T("capsense", "state")
	TopicSleepStats = bus.T("capsense", "sleep", "stats")
)

func TopicWidgetState(name string) bus.Topic {
	return bus.T("capsense", "widget", name, "state")
}
