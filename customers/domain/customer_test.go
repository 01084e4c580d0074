package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(StatusBot, StatusHuman))
	assert.True(t, CanTransition(StatusHuman, StatusTransferred))
	assert.True(t, CanTransition("", StatusHuman))
	assert.True(t, CanTransition(StatusHuman, StatusHuman))

	assert.False(t, CanTransition(StatusHuman, StatusBot))
	assert.False(t, CanTransition(StatusTransferred, StatusBot))
	assert.False(t, CanTransition(StatusTransferred, StatusHuman))
	assert.ErrorIs(t, ValidateTransition(StatusTransferred, StatusBot), ErrInvalidTransition)
}

func TestAcceptsBotReplies(t *testing.T) {
	assert.True(t, (&Customer{Status: StatusBot}).AcceptsBotReplies())
	assert.True(t, (&Customer{}).AcceptsBotReplies())
	assert.False(t, (&Customer{Status: StatusHuman}).AcceptsBotReplies())
	assert.False(t, (&Customer{Status: StatusTransferred}).AcceptsBotReplies())
}
