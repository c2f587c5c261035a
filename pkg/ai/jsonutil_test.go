package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare object", `{"index": 2}`, `{"index": 2}`},
		{"fenced json", "```json\n{\"index\": 2}\n```", `{"index": 2}`},
		{"plain fence", "```\n[1, 2]\n```", `[1, 2]`},
		{"prose around object", `Sure! Here it is: {"clusters": []} Hope that helps.`, `{"clusters": []}`},
		{"array before object", `[{"a":1},{"b":2}]`, `[{"a":1},{"b":2}]`},
		{"no json", "nothing here", "nothing here"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractJSON(tt.in))
		})
	}
}
