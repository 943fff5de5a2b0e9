package mqtt

import "strings"

// Topic layout:
//
//	graylogic/item/<path>/state   retained JSON state, published by the service
//	graylogic/item/<path>/set     JSON value written by anyone
//	graylogic/system/status       retained online/offline status
const (
	TopicPrefix       = "graylogic"
	TopicPrefixItem   = TopicPrefix + "/item"
	TopicPrefixSystem = TopicPrefix + "/system"

	ActionState = "state"
	ActionSet   = "set"
)

// Topics builds topic names.
type Topics struct{}

// ItemState returns graylogic/item/<path>/state.
func (Topics) ItemState(path string) string {
	return TopicPrefixItem + "/" + path + "/" + ActionState
}

// ItemSet returns graylogic/item/<path>/set.
func (Topics) ItemSet(path string) string {
	return TopicPrefixItem + "/" + path + "/" + ActionSet
}

// AllItemSets matches every item's set topic.
func (Topics) AllItemSets() string {
	return TopicPrefixItem + "/+/" + ActionSet
}

// SystemStatus returns graylogic/system/status.
func (Topics) SystemStatus() string {
	return TopicPrefixSystem + "/status"
}

// ParseItemTopic splits an item topic into path and action.
func ParseItemTopic(topic string) (path, action string, ok bool) {
	rest, found := strings.CutPrefix(topic, TopicPrefixItem+"/")
	if !found {
		return "", "", false
	}
	path, action, found = strings.Cut(rest, "/")
	if !found || path == "" || strings.Contains(action, "/") {
		return "", "", false
	}
	if action != ActionState && action != ActionSet {
		return "", "", false
	}
	return path, action, true
}
