package mqtt

// Topic groups under a device root.
const (
	// GroupCommand carries commands to the device.
	GroupCommand = "cmnd"

	// GroupStatus carries state reports from the device.
	GroupStatus = "status"
)

// Topics builds the topics of one device.
//
// Every topic is <category>/<client_id>/<group>/<name>, except the will and
// debug topics which sit directly under the device root.
//
//	topics := mqtt.Topics{Category: "switch", ClientID: "client_id"}
//	topics.Command("rgb") // switch/client_id/cmnd/rgb
type Topics struct {
	Category string
	ClientID string
}

// Root returns <category>/<client_id>.
func (t Topics) Root() string {
	return t.Category + "/" + t.ClientID
}

// Command returns the command topic for a feature.
//
// Example: switch/client_id/cmnd/state
func (t Topics) Command(name string) string {
	return t.Root() + "/" + GroupCommand + "/" + name
}

// Status returns the state topic for a feature.
//
// Example: switch/client_id/status/state
func (t Topics) Status(name string) string {
	return t.Root() + "/" + GroupStatus + "/" + name
}

// Will returns the last will topic.
//
// Example: switch/client_id/will
func (t Topics) Will() string {
	return t.Root() + "/will"
}

// Debug returns the diagnostic topic.
//
// Example: switch/client_id/debug
func (t Topics) Debug() string {
	return t.Root() + "/debug"
}
