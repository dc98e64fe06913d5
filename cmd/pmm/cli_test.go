package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseEventIDRejectsNonInteger(t *testing.T) {
	_, err := parseEventID("abc")
	assert.EqualError(t, err, "Event ids must be integers.")
}

func TestParseEventIDRejectsNegative(t *testing.T) {
	_, err := parseEventID("-1")
	assert.EqualError(t, err, "Event ids must be non-negative integers.")
}

func TestParseEventIDAcceptsZero(t *testing.T) {
	n, err := parseEventID("0")
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}
