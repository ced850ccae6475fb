package types

// Sequence is the transport sequence number carried in front of every data
// datagram. Numbering starts at FirstSequence and is unique within a transfer.
type Sequence uint32

// FirstSequence is the sequence number of the first data datagram.
const FirstSequence Sequence = 1

// MetadataDatagram names the transfer. It is sent once before the data
// datagrams. Total is zero unless the sender announced the packet count.
type MetadataDatagram struct {
	FileID   string
	Filename string
	Total    uint32
}

// PlaintextPacket is the logical payload framed before encryption so a
// receiver can tell which transfer a decrypted packet belongs to.
type PlaintextPacket struct {
	FileID       string
	LogicalIndex uint32
	Payload      []byte
}
