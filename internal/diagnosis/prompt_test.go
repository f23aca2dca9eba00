package diagnosis

import (
	"strings"
	"testing"

	"github.com/obdai/obdai/pkg/models"
	"github.com/stretchr/testify/assert"
)

func TestBuildPrompt_IncludesVehicleAndCodes(t *testing.T) {
	v := models.VehicleContext{Year: "2019", Make: "Honda", Model: "Civic", Trim: "EX - 1.5L - Automatic"}

	prompt := BuildPrompt(v, "P0420,  P0171 P0300")

	assert.Contains(t, prompt, "- Year: 2019")
	assert.Contains(t, prompt, "- Make: Honda")
	assert.Contains(t, prompt, "- Model: Civic")
	assert.Contains(t, prompt, "- Trim: EX - 1.5L - Automatic")
	assert.Contains(t, prompt, "ERROR CODES: P0420, P0171, P0300\n")
}

func TestBuildPrompt_MissingTrim(t *testing.T) {
	prompt := BuildPrompt(models.VehicleContext{Year: "2024", Make: "Ford", Model: "F-150"}, "P0171")
	assert.Contains(t, prompt, "- Trim: "+TrimPlaceholder)

	prompt = BuildPrompt(models.VehicleContext{Year: "2024", Make: "Ford", Model: "F-150", Trim: "   "}, "P0171")
	assert.Contains(t, prompt, "- Trim: "+TrimPlaceholder)
}

func TestBuildPrompt_Instructions(t *testing.T) {
	prompt := BuildPrompt(models.VehicleContext{Year: "2024", Make: "Ford", Model: "F-150"}, "P0171")

	assert.Contains(t, prompt, "ONLY a single valid JSON object")
	assert.Contains(t, prompt, "do not wrap it in markdown code fences")
	for _, field := range []string{`"diagnosis"`, `"explanation"`, `"commonality"`, `"suggestedFixes"`, `"name"`, `"difficulty"`, `"description"`, `"isMostLikely"`} {
		assert.Contains(t, prompt, field)
	}
	assert.Contains(t, prompt, "3-5 suggested fixes ordered from most likely to least likely")
	assert.Contains(t, prompt, "exactly ONE fix")
	assert.True(t, strings.HasSuffix(prompt, models.Disclaimer))
}

func TestBuildPrompt_Deterministic(t *testing.T) {
	v := models.VehicleContext{Year: "2010", Make: "Toyota", Model: "Camry"}
	first := BuildPrompt(v, "P0300 P0301")
	for range 5 {
		assert.Equal(t, first, BuildPrompt(v, "P0300 P0301"))
	}
	assert.Equal(t, first, BuildPrompt(v, "P0300,P0301"), "normalization makes separators irrelevant")
}

func TestBuildPrompt_EmptyCodesStillRenders(t *testing.T) {
	prompt := BuildPrompt(models.VehicleContext{}, "")
	assert.Contains(t, prompt, "ERROR CODES: \n")
}
