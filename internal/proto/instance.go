package proto

import (
	"encoding/binary"
	"fmt"
	"net/http"
)

// Discovery response headers expected by the game client.
const (
	headerComponent = "X-BLAZE-COMPONENT"
	headerCommand   = "X-BLAZE-COMMAND"
	headerSeqno     = "X-BLAZE-SEQNO"
)

// instanceXML is the fixed-format discovery document. The ip field is
// 127.0.0.1 rendered as a big-endian uint32; the port is the local
// tunnel port. Whitespace is reproduced byte-exactly from the wire
// format the client parses.
const instanceXML = `<?xml version="1.0" encoding="UTF-8"?>
    <serverinstanceinfo>
        <address member="0">
            <valu>
                <hostname>localhost</hostname>
                <ip>%d</ip>
                <port>%d</port>
            </valu>
        </address>
        <secure>0</secure>
        <trialservicename></trialservicename>
        <defaultdnsaddress>0</defaultdnsaddress>
    </serverinstanceinfo>`

// LoopbackIP is 127.0.0.1 in the numeric form the client expects.
var LoopbackIP = binary.BigEndian.Uint32([]byte{127, 0, 0, 1})

// InstanceDocument renders the discovery XML pointing the client at
// the local tunnel port.
func InstanceDocument(tunnelPort uint16) string {
	return fmt.Sprintf(instanceXML, LoopbackIP, tunnelPort)
}

// WriteInstanceResponse serves the discovery response. Both the
// redirector service and the HTTPS proxy answer the discovery path
// with this exact payload, so it lives in one place.
func WriteInstanceResponse(w http.ResponseWriter, tunnelPort uint16) {
	h := w.Header()
	h.Set(headerComponent, "redirector")
	h.Set(headerCommand, "getServerInstance")
	h.Set(headerSeqno, "0")
	h.Set("Content-Type", "application/xml")
	_, _ = w.Write([]byte(InstanceDocument(tunnelPort)))
}
