package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestObjectName(t *testing.T) {
	at := time.Date(2024, 3, 5, 7, 8, 9, 120*int(time.Millisecond), time.FixedZone("JST", 9*3600))
	assert.Equal(t, "transcripts/U123/20240304T220809.120Z.json", ObjectName("U123", at))
}
