package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	assert.Equal(t, ErrorKind(""), KindOf(nil))
	assert.Equal(t, KindInvalidState, KindOf(NewError(KindInvalidState, "nope")))
	assert.Equal(t, KindTimeout, KindOf(context.DeadlineExceeded))
	assert.Equal(t, KindTimeout, KindOf(fmt.Errorf("engine: %w", context.DeadlineExceeded)))
	assert.Equal(t, KindEngine, KindOf(errors.New("boom")))

	wrapped := fmt.Errorf("dispatch: %w", Errorf(KindCapabilityMismatch, "codec %s", "vp9"))
	assert.Equal(t, KindCapabilityMismatch, KindOf(wrapped))
	assert.Equal(t, "codec vp9", MessageOf(wrapped))
}

func TestWrapErrorUnwraps(t *testing.T) {
	cause := errors.New("socket gone")
	err := WrapError(KindEngine, "connect failed", cause)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "EngineError: connect failed: socket gone", err.Error())
	assert.Equal(t, "media engine call timed out", MessageOf(context.DeadlineExceeded))
}

func TestNewPeer(t *testing.T) {
	_, err := NewPeer("", "bob", "")
	assert.ErrorIs(t, err, ErrClientTokenEmpty)

	_, err = NewPeer("tok", string(make([]byte, MaxPeerNameLen+1)), "")
	assert.ErrorIs(t, err, ErrPeerNameTooLong)

	p, err := NewPeer("tok", "bob", "10.0.0.1:4000")
	assert.NoError(t, err)
	assert.Equal(t, "bob", p.Name)
	assert.False(t, p.JoinedAt.IsZero())
}

func TestNormalizeRoomName(t *testing.T) {
	assert.Equal(t, DefaultRoom, NormalizeRoomName(""))
	assert.Equal(t, RoomName("jam"), NormalizeRoomName("jam"))
	long := NormalizeRoomName(string(make([]byte, MaxRoomNameLen+10)))
	assert.Len(t, string(long), MaxRoomNameLen)
}
