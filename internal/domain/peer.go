// Package domain contains entities and value types without behavior beyond validation.
package domain

import (
	"errors"
	"time"
)

const MaxPeerNameLen = 36

var (
	ErrPeerNameTooLong  = errors.New("peer name too long")
	ErrClientTokenEmpty = errors.New("client token empty")
)

// Peer is the meta of one connected browser. No transport or lifecycle logic here.
type Peer struct {
	ClientToken string    `json:"-"`
	Name        string    `json:"name,omitempty"`
	RemoteAddr  string    `json:"-"`
	JoinedAt    time.Time `json:"joinedAt"`
}

func NewPeer(clientToken, name, remoteAddr string) (*Peer, error) {
	if clientToken == "" {
		return nil, ErrClientTokenEmpty
	}
	if len(name) > MaxPeerNameLen {
		return nil, ErrPeerNameTooLong
	}
	return &Peer{
		ClientToken: clientToken,
		Name:        name,
		RemoteAddr:  remoteAddr,
		JoinedAt:    time.Now(),
	}, nil
}
