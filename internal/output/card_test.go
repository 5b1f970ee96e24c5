package output

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Aman-CERP/smre/internal/corpus"
)

func TestRenderCard(t *testing.T) {
	tests := []struct {
		name string
		m    corpus.Moment
		want string
	}{
		{
			name: "complete",
			m:    sampleMoment(),
			want: "### Wimbledon 2012: Men's Singles (Final)\n" +
				"**Match**: Roger Federer vs Andy Murray  \n" +
				"**Context**: Set 4, Game 12 — Championship point  \n" +
				"**Highlight**: Federer seals a seventh title  \n" +
				"**Tags**: ace, serve\n",
		},
		{
			name: "missing set and game",
			m:    corpus.Moment{ID: "x", Tournament: "US Open", Year: "2019", Round: "QF", Player1: "A", Player2: "B"},
			want: "### US Open 2019:  (QF)\n" +
				"**Match**: A vs B  \n" +
				"**Context**: Set ?, Game ? —   \n" +
				"**Highlight**:   \n" +
				"**Tags**: \n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RenderCard(tt.m))
		})
	}
}

func TestCardStyle_PlainStylesKeepContent(t *testing.T) {
	card := CardStyle(sampleMoment(), NoColorStyles())

	assert.Contains(t, card, "Wimbledon 2012: Men's Singles (Final)")
	assert.Contains(t, card, "Match: Roger Federer vs Andy Murray")
	assert.Contains(t, card, "Context: Set 4, Game 12 — Championship point")
	assert.Contains(t, card, "Tags: ace, serve")
}
