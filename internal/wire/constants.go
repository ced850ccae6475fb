package wire

// Literal markers and fixed field sizes.
const (
	MetadataMagic         = "META"
	ExtendedMetadataMagic = "METT"
	Sentinel              = "EOF"
	CompleteMarker        = "COMPLETE"
	ReadyMarker           = "READY"
	PublicKeyTrailer      = "-----END PUBLIC KEY-----"

	SequenceSize = 4
	IVSize       = 16
	DigestSize   = 32
	BlockSize    = 16

	// MinDataSize is the smallest well-formed data datagram: one cipher block.
	MinDataSize = SequenceSize + IVSize + BlockSize + DigestSize

	// MaxDatagramSize is the largest UDP payload over IPv4.
	MaxDatagramSize = 65507

	// MaxAnnouncedTotal bounds the packet count a METT datagram may carry.
	// The field is unauthenticated; larger values are ignored by receivers
	// and never sent.
	MaxAnnouncedTotal = 1 << 22

	// MaxRequestSequences bounds one repair request so it stays under the
	// coordinator's request size limit.
	MaxRequestSequences = 1 << 19
)

// Kind classifies an inbound multicast datagram.
type Kind int

const (
	KindInvalid Kind = iota
	KindSentinel
	KindMetadata
	KindData
)

func (k Kind) String() string {
	switch k {
	case KindSentinel:
		return "sentinel"
	case KindMetadata:
		return "metadata"
	case KindData:
		return "data"
	}
	return "invalid"
}

// Framing selects how repaired datagrams are laid out on the repair stream.
type Framing int

const (
	Framed Framing = iota
	Unframed
)

func (f Framing) String() string {
	if f == Unframed {
		return "unframed"
	}
	return "framed"
}

// ParseFraming accepts "framed" or "unframed".
func ParseFraming(s string) (Framing, bool) {
	switch s {
	case "framed", "":
		return Framed, true
	case "unframed":
		return Unframed, true
	}
	return Framed, false
}
