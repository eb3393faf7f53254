package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/Keepitcity/proof/prompts"
)

func TestBuildContentsMapsRoles(t *testing.T) {
	_, history := prompts.SplitSystem([]prompts.Turn{
		{Role: prompts.TurnSystem, Content: "persona"},
		{Role: prompts.TurnAgent, Content: "Hi, it's Karen."},
		{Role: prompts.TurnUser, Content: "Hello Karen"},
		{Role: prompts.TurnUser, Content: "   "},
	})

	contents := buildContents(history)
	require.Len(t, contents, 2)
	assert.Equal(t, string(genai.RoleModel), contents[0].Role)
	assert.Equal(t, string(genai.RoleUser), contents[1].Role)
	assert.Equal(t, "Hello Karen", contents[1].Parts[0].Text)
}

func TestBuildContentsNeverEmpty(t *testing.T) {
	contents := buildContents(nil)
	require.Len(t, contents, 1)
	assert.Equal(t, prompts.OpeningDirective, contents[0].Parts[0].Text)
}
