package session

import "errors"

var (
	ErrEmptyParticipant = errors.New("participant id is empty")
	ErrSelfConversation = errors.New("cannot open a conversation with oneself")
)

// DeriveConversationID maps two participant ids onto the canonical
// conversation id: the lexicographically smaller id concatenated with the
// larger. The derivation is commutative, so both participants always
// resolve to the same conversation record regardless of who initiates.
//
// Self-conversations are rejected outright rather than left undefined.
func DeriveConversationID(selfID, peerID string) (string, error) {
	if selfID == "" || peerID == "" {
		return "", ErrEmptyParticipant
	}
	if selfID == peerID {
		return "", ErrSelfConversation
	}
	if selfID < peerID {
		return selfID + peerID, nil
	}
	return peerID + selfID, nil
}
