package proto

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestLoopbackIPEncoding(t *testing.T) {
	if LoopbackIP != 2130706433 {
		t.Errorf("LoopbackIP = %d, want 2130706433", LoopbackIP)
	}
}

func TestInstanceDocument(t *testing.T) {
	doc := InstanceDocument(42231)
	for _, want := range []string{
		`<?xml version="1.0" encoding="UTF-8"?>`,
		"<hostname>localhost</hostname>",
		"<ip>2130706433</ip>",
		"<port>42231</port>",
		"<secure>0</secure>",
		"<defaultdnsaddress>0</defaultdnsaddress>",
	} {
		if !strings.Contains(doc, want) {
			t.Errorf("document missing %q:\n%s", want, doc)
		}
	}
}

func TestWriteInstanceResponseHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteInstanceResponse(rec, 1234)

	for header, want := range map[string]string{
		"X-BLAZE-COMPONENT": "redirector",
		"X-BLAZE-COMMAND":   "getServerInstance",
		"X-BLAZE-SEQNO":     "0",
		"Content-Type":      "application/xml",
	} {
		if got := rec.Header().Get(header); got != want {
			t.Errorf("%s = %q, want %q", header, got, want)
		}
	}
	if !strings.Contains(rec.Body.String(), "<port>1234</port>") {
		t.Errorf("body = %s", rec.Body.String())
	}
}
