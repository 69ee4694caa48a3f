package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeEmailSubject(t *testing.T) {
	tests := []struct {
		name    string
		subject string
		want    string
	}{
		{"plain", "Purchase Order #202503-0001", "Purchase Order #202503-0001"},
		{"single reply prefix", "Re: Purchase Order", "Purchase Order"},
		{"uppercase prefix", "RE: Purchase Order", "Purchase Order"},
		{"stacked prefixes", "Re: Fwd: RE: Purchase Order", "Purchase Order"},
		{"numbered prefix", "Re[2]: Purchase Order", "Purchase Order"},
		{"forward prefix", "Fw: Purchase Order", "Purchase Order"},
		{"surrounding whitespace", "  Re:  Purchase Order  ", "Purchase Order"},
		{"prefix word mid subject", "Care: instructions", "Care: instructions"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeEmailSubject(tt.subject))
		})
	}
}

func TestExtractEmailAddress(t *testing.T) {
	tests := []struct {
		name string
		from string
		want string
	}{
		{"bracketed with display name", "John Doe <john.doe@acme.com>", "john.doe@acme.com"},
		{"bracketed only", "<jane@acme.com>", "jane@acme.com"},
		{"bare address", "john.doe@acme.com", "john.doe@acme.com"},
		{"whitespace inside brackets", "John <  john@acme.com >", "john@acme.com"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractEmailAddress(tt.from))
		})
	}
}
