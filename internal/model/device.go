// Package model defines the wire and session data structures shared by the
// discovery engine, the session controller and the HTTPS surface.
package model

// DeviceInfo is the advertised identity of a peer. ip and port are
// transport-derived: they are never present on the wire and are filled in
// from the UDP packet source (discovery) or left empty (sender-supplied
// DeviceInfo arriving in a SendRequest body has no socket to derive them
// from).
type DeviceInfo struct {
	Alias        string `json:"alias"`
	DeviceType   string `json:"deviceType"`
	DeviceModel  string `json:"deviceModel,omitempty"`
	IP           string `json:"-"`
	Port         int    `json:"-"`
}

// Equal implements the table-lookup equality rule: two DeviceInfo values are
// the same device iff their IP matches, regardless of a changed alias.
func (d DeviceInfo) Equal(other DeviceInfo) bool {
	return d.IP == other.IP
}

// DeviceResponse is the wire form of a multicast announcement or reply.
type DeviceResponse struct {
	DeviceInfo
	Announcement bool   `json:"announcement"`
	Fingerprint  string `json:"fingerprint"`
}
