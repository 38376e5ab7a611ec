// Package provision obtains network credentials before any broker activity.
//
// The FileProvisioner waits for a small YAML file holding the wireless
// network name and passphrase. On a fresh device the file does not exist
// yet; the provisioner logs that it is awaiting configuration under the
// device's station name and polls until an installer drops the file in
// place. Credentials are read once at start-up and never persisted by the
// switch itself.
//
// File format:
//
//	ssid: "HomeNet"
//	passphrase: "correct horse battery staple"
package provision
