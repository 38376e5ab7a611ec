// Package ota accepts firmware and filesystem images over the network.
//
// An HTTP server receives images into a staging directory while the
// scheduler loop keeps running. Progress is reported as Events on a
// bounded channel; the Updater drains that channel from the loop with a
// non-blocking Service call, logs each event and installs a completed
// image. After a successful install Service returns ErrRestartRequired and
// the process exits so a supervisor can start the new image.
//
// Endpoints:
//
//	POST /update?target=firmware|filesystem   body: raw image
//	     X-Update-MD5: <hex>                   optional checksum
//	GET  /status                               JSON progress
//
// When a password hash is configured, uploads need HTTP basic auth. The
// device is also advertised over mDNS as _arduino._tcp so existing upload
// tools find it.
package ota
