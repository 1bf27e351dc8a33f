package comment

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMentions(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"no mentions here", nil},
		{"@alice please look", []string{"alice"}},
		{"thanks @bob and @carol.", []string{"bob", "carol"}},
		{"@dave @dave @DAVE", []string{"dave"}},
		{"mail me at erin@example.com", nil},
		{"(@frank) ping", []string{"frank"}},
		{"@@oops", nil},
		{"cc @g.h-i_j", []string{"g.h-i_j"}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Mentions(tt.in), tt.in)
	}
}
