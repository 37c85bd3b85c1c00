// Package store persists incoming messages and detects duplicate delivery.
//
// The dispatch engine only relies on the MessageStore contract: Save returns
// ErrDuplicate when a message with the same key was already stored, which the
// dispatcher treats as an already-processed re-delivery.
package store

import (
	"context"
	"errors"

	"github.com/sparrowbot/sparrow-go/internal/message"
)

// ErrDuplicate is returned by Save when the message was already stored.
var ErrDuplicate = errors.New("message already stored")

// MessageStore is the persistence collaborator contract.
type MessageStore interface {
	Save(ctx context.Context, msg *message.Message) error
	Commit(ctx context.Context) error
}

// SavePolicy decides which incoming messages are persisted.
type SavePolicy struct {
	All      bool
	Subtypes []string
}

// Includes reports whether a message with the given subtype should be saved.
func (p SavePolicy) Includes(subtype string) bool {
	if p.All {
		return true
	}
	for _, s := range p.Subtypes {
		if s == subtype {
			return true
		}
	}
	return false
}

// Key is the duplicate-detection key: destination id plus the per-message
// timestamp, unique per delivery.
func Key(msg *message.Message) string {
	return msg.To.ID + ":" + msg.Timestamp
}
