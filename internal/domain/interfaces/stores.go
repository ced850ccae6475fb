package interfaces

import domaintypes "securecast/internal/domain/types"

// SpoolStore persists the datagrams of a finished transmission so a later
// process can keep answering repair requests for it.
type SpoolStore interface {
	SaveSpool(transferID string, packets map[domaintypes.Sequence][]byte) error
	LoadSpool(transferID string) (map[domaintypes.Sequence][]byte, bool, error)
}
