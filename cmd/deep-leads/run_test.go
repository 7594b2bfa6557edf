package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikeboe/deep-leads/pkg/leads"
)

func TestPromptParams(t *testing.T) {
	in := strings.NewReader("Professors\nNutrition\n\nworks on obesity\n")
	var out bytes.Buffer
	var p leads.ResearchParams

	require.NoError(t, promptParams(in, &out, &p))
	assert.Equal(t, leads.ResearchParams{Who: "Professors", What: "Nutrition", Context: "works on obesity"}, p)
	assert.Contains(t, out.String(), "Who are you looking for")
}

func TestPromptParamsKeepsFlags(t *testing.T) {
	in := strings.NewReader("Nutrition\n\n\n")
	var out bytes.Buffer
	p := leads.ResearchParams{Who: "Professors"}

	require.NoError(t, promptParams(in, &out, &p))
	assert.Equal(t, "Professors", p.Who)
	assert.Equal(t, "Nutrition", p.What)
	assert.NotContains(t, out.String(), "Who are you looking for")
}

func TestPromptParamsRequiresWho(t *testing.T) {
	var p leads.ResearchParams
	err := promptParams(strings.NewReader("\n"), &bytes.Buffer{}, &p)
	assert.ErrorContains(t, err, "cannot be empty")
}
