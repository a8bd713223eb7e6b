package util

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestBuildTokenName(t *testing.T) {
	name := BuildTokenName("1234")
	assert.Equal(t, "••••••••••••1234", name)
	assert.Equal(t, 16, utf8.RuneCountInString(name))

	assert.Equal(t, "••••••••••••????", BuildTokenName(""))
	assert.Equal(t, "a very long card summary", BuildTokenName("a very long card summary"))
}
