// Package receiver runs the receiving side of a transfer.
//
// It waits for a sender's handshake, joins the announced multicast group,
// collects and verifies datagrams, repairs gaps against the sender's repair
// port and writes the file. A transfer whose gaps could not be closed is
// still written; the Report says what is missing.
package receiver
