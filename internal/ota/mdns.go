package ota

import (
	"fmt"

	"github.com/enbility/zeroconf/v3"
)

// mDNS service the Arduino upload tools browse for.
const (
	ServiceType = "_arduino._tcp"
	Domain      = "local."
)

// Advertiser announces the update server on the local network.
type Advertiser struct {
	server *zeroconf.Server
}

// TXTRecords returns the records upload tools read from the advertisement.
func TXTRecords(authRequired bool) []string {
	auth := "no"
	if authRequired {
		auth = "yes"
	}
	return []string{
		"board=linux",
		"tcp_check=no",
		"ssh_upload=no",
		"auth_upload=" + auth,
	}
}

// Advertise registers hostname on all interfaces.
//
// Parameters:
//   - hostname: Instance name, e.g. "switch-kitchen-01"
//   - port: Port of the update server
//   - authRequired: Whether uploads need the password
//
// Returns:
//   - *Advertiser: Call Shutdown to withdraw the advertisement
//   - error: If the mDNS responder cannot start
func Advertise(hostname string, port int, authRequired bool) (*Advertiser, error) {
	server, err := zeroconf.Register(hostname, ServiceType, Domain, port, TXTRecords(authRequired), nil)
	if err != nil {
		return nil, fmt.Errorf("registering %s.%s: %w", hostname, ServiceType, err)
	}
	return &Advertiser{server: server}, nil
}

// Shutdown withdraws the advertisement. Safe on a nil Advertiser.
func (a *Advertiser) Shutdown() {
	if a == nil || a.server == nil {
		return
	}
	a.server.Shutdown()
	a.server = nil
}
