// Package proto holds the wire-level constants shared with the game
// client and the Pocket Ark server. Header names and the discovery
// payload are part of the protocol contract; changing them breaks
// client compatibility.
package proto

// VendorHost is the official hostname the game resolves for service
// discovery. The hosts-file redirect points it at 127.0.0.1.
const VendorHost = "gosredirector.ea.com"

// Headers carried on the tunnel upgrade request and on proxied HTTP
// requests so the remote server knows the original target and caller.
const (
	HeaderScheme = "X-Pocket-Ark-Scheme"
	HeaderHost   = "X-Pocket-Ark-Host"
	HeaderPort   = "X-Pocket-Ark-Port"
	HeaderAuth   = "X-Pocket-Ark-Auth"
)

// UpgradeEndpoint is the server path that switches an HTTP connection
// into a raw game-protocol stream.
const UpgradeEndpoint = "/ark/client/upgrade"

// UpgradeProtocol is the Upgrade token for the game session protocol.
const UpgradeProtocol = "blaze"

// DiscoveryPath is probed by the game both on the dedicated redirector
// port and on the HTTPS proxy port.
const DiscoveryPath = "/redirector/getServerInstance"

// Server API endpoints used by the lookup/auth client.
const (
	DetailsEndpoint = "/ark/client/details"
	LoginEndpoint   = "/ark/client/login"
	CreateEndpoint  = "/ark/client/create"
)
