package repository

import (
	"testing"

	"github.com/stanstork/noticeboard/internal/models"
)

func TestStateKeyKeepsPartsApart(t *testing.T) {
	tests := []struct {
		name  string
		userA string
		idA   models.Identifier
		userB string
		idB   models.Identifier
	}{
		{"colon in user vs source", "a:b", models.Identifier{Source: "c", ID: "1"}, "a", models.Identifier{Source: "b:c", ID: "1"}},
		{"colon in source vs id", "u", models.Identifier{Source: "s:t", ID: "1"}, "u", models.Identifier{Source: "s", ID: "t:1"}},
		{"escaped text vs literal colon", "a%3Ab", models.Identifier{Source: "c", ID: "1"}, "a:b", models.Identifier{Source: "c", ID: "1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, b := stateKey(tt.userA, tt.idA), stateKey(tt.userB, tt.idB)
			if a == b {
				t.Fatalf("distinct states share key %q", a)
			}
		})
	}
}

func TestStateKeyFormat(t *testing.T) {
	got := stateKey(" alice ", models.Identifier{Source: "news", ID: "42"})
	if got != "noticeboard:state:alice:news:42" {
		t.Fatalf("stateKey = %q", got)
	}
}
