package catalog

import "encoding/binary"

// Config carries the per-card constants the engine treats as "fixed
// compile-time blobs (bit-exact)".
type Config struct {
	Manufacturer uint16
	Serial       [4]byte
	MaxCmdBytes  uint16
	MaxResBytes  uint16
}

func aidBlob(cfg Config) []byte {
	b := []byte{0xd2, 0x76, 0x00, 0x01, 0x24, 0x01, 0x02, 0x00}
	b = binary.BigEndian.AppendUint16(b, cfg.Manufacturer)
	b = append(b, cfg.Serial[:]...)
	return append(b, 0x00, 0x00)
}

func historicalBlob() []byte {
	return []byte{0x00, 0x31, 0x80, 0x73, 0x80, 0x01, 0x40, 0x00, 0x90, 0x00}
}

func extCapBlob(cfg Config) []byte {
	b := []byte{0x30, 0x00, 0x00, 0x00, 0x00, 0x00}
	b = binary.BigEndian.AppendUint16(b, cfg.MaxCmdBytes)
	b = binary.BigEndian.AppendUint16(b, cfg.MaxResBytes)
	return b
}

func algAttrBlob() []byte {
	return []byte{0x01, 0x08, 0x00, 0x00, 0x20, 0x00}
}

// Handlers bundles the PROC_* callbacks the card (C6/C7) supplies; each
// closes over live counter/keystring/envelope state the catalog itself
// has no access to.
type Handlers struct {
	DSC            ReadHandler
	PWStatusRead   ReadHandler
	PWStatusWrite  WriteHandler
	ResettingCode  WriteHandler
	KeyImport      WriteHandler
}

// BuildTable constructs the compile-time entry table, binding its
// procedural rows to the card's live state via handlers.
func BuildTable(cfg Config, h Handlers) []Entry {
	entries := []Entry{
		{Tag: TagAID, Kind: KindFixed, ReadAC: ACAlways, WriteAC: ACNever, Blob: aidBlob(cfg)},
		{Tag: TagHistorical, Kind: KindFixed, ReadAC: ACAlways, WriteAC: ACNever, Blob: historicalBlob()},
		{Tag: TagExtCap, Kind: KindFixed, ReadAC: ACAlways, WriteAC: ACNever, Blob: extCapBlob(cfg)},
		{Tag: TagAlgAttrSig, Kind: KindFixed, ReadAC: ACAlways, WriteAC: ACNever, Blob: algAttrBlob()},
		{Tag: TagAlgAttrDec, Kind: KindFixed, ReadAC: ACAlways, WriteAC: ACNever, Blob: algAttrBlob()},
		{Tag: TagAlgAttrAut, Kind: KindFixed, ReadAC: ACAlways, WriteAC: ACNever, Blob: algAttrBlob()},

		{Tag: TagSex, Kind: KindVar, ReadAC: ACAlways, WriteAC: ACAdminAuthorized},
		{Tag: TagFingerprints, Kind: KindVar, ReadAC: ACAlways, WriteAC: ACAdminAuthorized},
		{Tag: TagCAFingerprints, Kind: KindVar, ReadAC: ACAlways, WriteAC: ACAdminAuthorized},
		{Tag: TagKeygenTimes, Kind: KindVar, ReadAC: ACAlways, WriteAC: ACAdminAuthorized},
		{Tag: TagLoginData, Kind: KindVar, ReadAC: ACAlways, WriteAC: ACAdminAuthorized},
		{Tag: TagURL, Kind: KindVar, ReadAC: ACAlways, WriteAC: ACAdminAuthorized},
		{Tag: TagName, Kind: KindVar, ReadAC: ACAlways, WriteAC: ACAdminAuthorized},
		{Tag: TagLangPref, Kind: KindVar, ReadAC: ACAlways, WriteAC: ACAdminAuthorized},

		{Tag: TagPWStatus, Kind: KindProcReadWrite, ReadAC: ACAlways, WriteAC: ACAdminAuthorized, Read: h.PWStatusRead, Write: h.PWStatusWrite},
		{Tag: TagDSC, Kind: KindProcRead, ReadAC: ACAlways, WriteAC: ACNever, Read: h.DSC},

		{Tag: TagResettingCode, Kind: KindProcWrite, ReadAC: ACNever, WriteAC: ACAdminAuthorized, Write: h.ResettingCode},
		{Tag: TagKeyImport, Kind: KindProcWrite, ReadAC: ACNever, WriteAC: ACAdminAuthorized, Write: h.KeyImport},

		{Tag: TagCardholderCert, Kind: KindVar, ReadAC: ACNever, WriteAC: ACNever},

		{Tag: TagApplicationData, Kind: KindCmpRead, ReadAC: ACAlways, WriteAC: ACNever, Children: []Tag{
			TagAID, TagHistorical, TagExtCap, TagAlgAttrSig, TagAlgAttrDec, TagAlgAttrAut,
			TagPWStatus, TagFingerprints, TagCAFingerprints, TagKeygenTimes,
		}},
		{Tag: TagCardholderData, Kind: KindCmpRead, ReadAC: ACAlways, WriteAC: ACNever, Children: []Tag{
			TagName, TagLangPref, TagSex,
		}},
		{Tag: TagSecuritySupport, Kind: KindCmpRead, ReadAC: ACAlways, WriteAC: ACNever, Children: []Tag{
			TagDSC,
		}},
	}
	return entries
}
