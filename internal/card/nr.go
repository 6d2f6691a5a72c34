// Package card implements C6 (scan/compact) and C7 (the GET/PUT façade):
// the component that owns the NV pool, key-slot arena, counters, keystring
// manager, and envelope manager, and wires them to the DO catalog's
// volatile pointer table and procedural handlers.
package card

import (
	"github.com/gnuk-go/cardengine/internal/catalog"
	"github.com/gnuk-go/cardengine/internal/envelope"
	"github.com/gnuk-go/cardengine/internal/keystring"
)

// DO numbers (the nr byte of a pool cell, in the 0x01-0x7f range).
// Disjoint across every subsystem that appends DO cells: catalog VARs,
// private-key records, and keystrings.
const (
	nrSex             = 0x01
	nrFingerprints    = 0x02
	nrCAFingerprints  = 0x03
	nrKeygenTimes     = 0x04
	nrLoginData       = 0x05
	nrURL             = 0x06
	nrName            = 0x07
	nrLangPref        = 0x08
	nrCardholderCert  = 0x09
	nrPrvKeySigning   = 0x10
	nrPrvKeyDecrypt   = 0x11
	nrPrvKeyAuth      = 0x12
	nrKeystringPW1    = 0x13
	nrKeystringRC     = 0x14
	nrKeystringPW3    = 0x15
)

// tagNR maps every VAR catalog tag to its DO number.
var tagNR = map[catalog.Tag]byte{
	catalog.TagSex:            nrSex,
	catalog.TagFingerprints:   nrFingerprints,
	catalog.TagCAFingerprints: nrCAFingerprints,
	catalog.TagKeygenTimes:    nrKeygenTimes,
	catalog.TagLoginData:      nrLoginData,
	catalog.TagURL:            nrURL,
	catalog.TagName:           nrName,
	catalog.TagLangPref:       nrLangPref,
	catalog.TagCardholderCert: nrCardholderCert,
}

// roleNR maps each private-key role to its record's DO number.
var roleNR = map[envelope.Role]byte{
	envelope.RoleSigning:       nrPrvKeySigning,
	envelope.RoleDecryption:    nrPrvKeyDecrypt,
	envelope.RoleAuthentication: nrPrvKeyAuth,
}

// keystringNR maps each keystring role to its DO number.
var keystringNR = map[keystring.Role]byte{
	keystring.RolePW1: nrKeystringPW1,
	keystring.RoleRC:  nrKeystringRC,
	keystring.RolePW3: nrKeystringPW3,
}

// Reverse lookups, built once, used by Scan to classify a DO cell by nr.
var (
	nrTag  = reverseTagMap(tagNR)
	nrRole = reverseRoleMap(roleNR)
)

func reverseTagMap(m map[catalog.Tag]byte) map[byte]catalog.Tag {
	out := make(map[byte]catalog.Tag, len(m))
	for k, v := range m {
		out[v] = k
	}
	return out
}

func reverseRoleMap(m map[envelope.Role]byte) map[byte]envelope.Role {
	out := make(map[byte]envelope.Role, len(m))
	for k, v := range m {
		out[v] = k
	}
	return out
}
