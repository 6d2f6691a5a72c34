// Package catalog implements the DO catalog and access-control dispatch
// (C5): a table mapping GET DATA/PUT DATA tags to one of six entry kinds,
// each gated by an access-control level the card's authentication state
// answers at dispatch time.
package catalog

// Tag is a GET DATA / PUT DATA addressing tag. Values below 0x100 are
// single real OpenPGP-card tag bytes; others are the standard two-byte
// tags.
type Tag uint16

const (
	TagAID             Tag = 0x004F
	TagLoginData       Tag = 0x005E
	TagName            Tag = 0x005B
	TagLangPref        Tag = 0x5F2D
	TagURL             Tag = 0x5F50
	TagSex             Tag = 0x5F35
	TagHistorical      Tag = 0x5F52
	TagCardholderData  Tag = 0x0065
	TagApplicationData Tag = 0x006E
	TagExtCap          Tag = 0x00C0
	TagAlgAttrSig      Tag = 0x00C1
	TagAlgAttrDec      Tag = 0x00C2
	TagAlgAttrAut      Tag = 0x00C3
	TagPWStatus        Tag = 0x00C4
	TagFingerprints    Tag = 0x00C5
	TagCAFingerprints  Tag = 0x00C6
	TagKeygenTimes     Tag = 0x00CD
	TagResettingCode   Tag = 0x00D3
	TagDSC             Tag = 0x0093
	TagSecuritySupport Tag = 0x007A
	TagCardholderCert  Tag = 0x7F21
	TagKeyImport       Tag = 0x3FFF
)

// Kind is one of the six dispatch variants.
type Kind int

const (
	KindFixed Kind = iota
	KindVar
	KindCmpRead
	KindProcRead
	KindProcWrite
	KindProcReadWrite
)

// ACLevel is the access-control gate the core asks its authentication
// collaborator about before serving a tag.
type ACLevel int

const (
	ACAlways ACLevel = iota
	ACNever
	ACAdminAuthorized
)
