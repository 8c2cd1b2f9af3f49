// Copyright 2026 The Tapestry Authors
// SPDX-License-Identifier: Apache-2.0

package identity

import (
	"strings"

	"github.com/tapestry-foundation/tapestry/lib/syntax"
)

// Document is the subset of a DID document the protocol consumes:
// the confirmed id, the handle aliases, the verification methods
// (signing keys), and the service entries (PDS, labeler).
type Document struct {
	ID                 syntax.DID           `json:"id"`
	AlsoKnownAs        []string             `json:"alsoKnownAs,omitempty"`
	VerificationMethod []VerificationMethod `json:"verificationMethod,omitempty"`
	Service            []Service            `json:"service,omitempty"`
}

// VerificationMethod is a public key entry in a DID document.
type VerificationMethod struct {
	ID                 string `json:"id"`
	Type               string `json:"type"`
	Controller         string `json:"controller"`
	PublicKeyMultibase string `json:"publicKeyMultibase,omitempty"`
}

// Service is a service endpoint entry in a DID document.
type Service struct {
	ID              string `json:"id"`
	Type            string `json:"type"`
	ServiceEndpoint string `json:"serviceEndpoint"`
}

// pdsServiceType marks the personal data server entry.
const pdsServiceType = "AtprotoPersonalDataServer"

// PDSEndpoint returns the base URL of the document's PDS service,
// or false when the document lists none.
func (d *Document) PDSEndpoint() (string, bool) {
	for _, svc := range d.Service {
		if svc.Type == pdsServiceType && svc.ServiceEndpoint != "" {
			return strings.TrimRight(svc.ServiceEndpoint, "/"), true
		}
	}
	return "", false
}

// Handle returns the first at:// alias as a parsed handle, or false
// when the document declares none.
func (d *Document) Handle() (syntax.Handle, bool) {
	for _, alias := range d.AlsoKnownAs {
		rest, ok := strings.CutPrefix(alias, "at://")
		if !ok {
			continue
		}
		handle, err := syntax.ParseHandle(rest)
		if err != nil {
			continue
		}
		return handle, true
	}
	return syntax.Handle{}, false
}

// SigningKey returns the multibase public key of the #atproto
// verification method, the key that signs repository commits.
func (d *Document) SigningKey() (string, bool) {
	for _, vm := range d.VerificationMethod {
		if strings.HasSuffix(vm.ID, "#atproto") && vm.PublicKeyMultibase != "" {
			return vm.PublicKeyMultibase, true
		}
	}
	return "", false
}

// Identity is a fully resolved identity: the DID, its document, and
// the derived fields callers usually want.
type Identity struct {
	DID      syntax.DID
	Document *Document
	// Handle is the document's declared handle after bidirectional
	// verification. Zero when the document declares no handle or the
	// declared handle does not resolve back to the DID.
	Handle syntax.Handle
	// PDS is the personal data server base URL, empty if the
	// document lists none.
	PDS string
}
