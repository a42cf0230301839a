package handler

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goalstake/engine/internal/config"
)

func testGate() *ModerationGate {
	return NewModerationGate(config.ModerationConfig{
		Enabled:      true,
		BlockedWords: []string{"Scam", " rug pull ", ""},
		MaxLength:    40,
	})
}

func TestModerationGate_Check(t *testing.T) {
	g := testGate()
	cases := []struct {
		name    string
		text    string
		flagged []string
	}{
		{"clean", "Read twelve books this year", nil},
		{"empty", "   ", nil},
		{"whole word only", "scampi for dinner", nil},
		{"case and punctuation", "Not a SCAM!", []string{"scam"}},
		{"phrase across punctuation", "no rug-pull here", []string{"rug pull"}},
		{"phrase across spacing", "rug   pull", []string{"rug pull"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := g.Check("title", tc.text)
			if tc.flagged == nil {
				assert.Nil(t, err)
				return
			}
			require.NotNil(t, err)
			assert.Equal(t, "title", err.Field)
			assert.Equal(t, tc.flagged, err.Flagged)
		})
	}
}

func TestModerationGate_MaxLength(t *testing.T) {
	err := testGate().Check("description", strings.Repeat("é", 41))
	require.NotNil(t, err)
	assert.Contains(t, err.Reason, "40")
	assert.Nil(t, testGate().Check("description", strings.Repeat("é", 40)))
}

func TestModerationGate_CheckAllStopsAtFirst(t *testing.T) {
	err := testGate().CheckAll("title", "fine", "description", "total scam", "comment", "rug pull")
	require.NotNil(t, err)
	assert.Equal(t, "description", err.Field)
}

func TestModerationGate_DisabledIsNil(t *testing.T) {
	g := NewModerationGate(config.ModerationConfig{Enabled: false, BlockedWords: []string{"scam"}})
	assert.Nil(t, g)
	assert.Nil(t, g.Check("title", "scam"))
	assert.Nil(t, g.CheckAll("title", "scam"))
}
