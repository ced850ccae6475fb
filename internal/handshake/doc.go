// Package handshake bootstraps the shared session key over TCP.
//
// Receiver (Acceptor)                       Sender (Dialer)
//
//	LISTENING   accept                  <-  connect
//	ACCEPTED    PEM public key          ->  read until "-----END PUBLIC KEY-----"
//	SENT_PUBKEY read wrapped key        <-  RSA-OAEP(session key)
//	KEY_RECEIVED
//	READY_SENT  "READY"                 ->  abort unless "READY"
//	METADATA_RECEIVED (optional)        <-  "group,address,port\n"
//	CLOSED
//
// The receiver's key pair is generated per handshake and discarded with it.
// A sender reaches several receivers with FanOut; each exchange is
// independent and one receiver's failure only excludes that receiver.
package handshake
