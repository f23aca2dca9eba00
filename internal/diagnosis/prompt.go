package diagnosis

import (
	"fmt"
	"strings"

	"github.com/obdai/obdai/pkg/models"
)

// TrimPlaceholder stands in for an unselected trim.
const TrimPlaceholder = "Not specified"

const promptTemplate = `You are an expert automotive diagnostic AI. Analyze these OBD2 codes for the vehicle below.

VEHICLE:
- Year: %s
- Make: %s
- Model: %s
- Trim: %s

ERROR CODES: %s

IMPORTANT: Respond with ONLY a single valid JSON object. Do not add any text before or after it and do not wrap it in markdown code fences. Use exactly this format:

{
  "diagnosis": {
    "explanation": "Clear explanation of the problem. End with: %s",
    "commonality": "State whether this is common for this specific vehicle.",
    "suggestedFixes": [
      {
        "name": "Check Gas Cap",
        "difficulty": 1,
        "description": "Inspect and tighten or replace the gas cap.",
        "isMostLikely": true
      },
      {
        "name": "Replace Oxygen Sensor",
        "difficulty": 3,
        "description": "Test and replace the faulty O2 sensor if needed.",
        "isMostLikely": false
      }
    ]
  }
}

Rules:
- Provide 3-5 suggested fixes ordered from most likely to least likely.
- Mark exactly ONE fix with "isMostLikely": true and all others false.
- "difficulty" is an integer from 1 (easy DIY) to 5 (professional shop).
- The explanation must end with this exact sentence: %s`

// BuildPrompt renders the instruction sent to the completion endpoint.
// It is a pure function of its inputs; an empty code set still yields a prompt.
func BuildPrompt(v models.VehicleContext, rawCodes string) string {
	trim := strings.TrimSpace(v.Trim)
	if trim == "" {
		trim = TrimPlaceholder
	}

	return fmt.Sprintf(promptTemplate,
		strings.TrimSpace(v.Year),
		strings.TrimSpace(v.Make),
		strings.TrimSpace(v.Model),
		trim,
		models.NormalizeCodes(rawCodes),
		models.Disclaimer,
		models.Disclaimer,
	)
}
