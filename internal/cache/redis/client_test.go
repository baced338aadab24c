package redis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeys(t *testing.T) {
	assert.Equal(t, "session:conv-1", sessionKey("conv-1"))
}

func TestNewClientUnreachable(t *testing.T) {
	_, err := NewClient("127.0.0.1", 1, "", 0)
	assert.Error(t, err)
}
