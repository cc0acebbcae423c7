package openai

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/poiesic/sibyl/ai"
)

const extractionResponseSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "entities": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "name": {"type": "string"},
          "type": {"type": "string"},
          "confidence": {"type": "number", "minimum": 0, "maximum": 1},
          "context": {"type": "string"}
        },
        "required": ["name", "type", "confidence"],
        "additionalProperties": false
      }
    },
    "relationships": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "source": {"type": "string"},
          "target": {"type": "string"},
          "type": {"type": "string"},
          "confidence": {"type": "number", "minimum": 0, "maximum": 1},
          "context": {"type": "string"}
        },
        "required": ["source", "target", "type"],
        "additionalProperties": false
      }
    }
  },
  "required": ["entities", "relationships"],
  "additionalProperties": false
}`

const extractionPromptTemplate = `Extract the technical entities mentioned in the given text and the relationships stated between them. Return them as JSON.

Output ONLY valid JSON which complies with the schema given below. Do not include any preamble, explanation,
greeting, or acknowledgment. Start your response directly with the opening brace { and end with the closing
brace }. Your output must exactly follow this schema:

%s

Rules:
- Entity names are copied from the text as written.
- Entity type must match exactly one of: %s.
- Relationship type must match exactly one of: %s.
- Relationship source and target must be names from the entities list.
- Confidence is a number from 0 (guess) to 1 (stated explicitly).
- Context is the sentence the item was found in.
- Include only items explicitly mentioned or clearly implied by the text. Do not hallucinate.
- If nothing can be identified, return {"entities": [], "relationships": []}.
- The JSON must parse without errors; no trailing commas, no extra keys, and no extraneous text outside the object.

Example:
Input: "Error E42 is caused by the AuthService when the database connection times out."
Output:
{
  "entities": [
    {"name":"Error E42","type":"ERROR","confidence":0.9,"context":"Error E42 is caused by the AuthService"},
    {"name":"AuthService","type":"COMPONENT","confidence":0.9,"context":"Error E42 is caused by the AuthService"},
    {"name":"database","type":"COMPONENT","confidence":0.7,"context":"when the database connection times out"}
  ],
  "relationships": [
    {"source":"AuthService","target":"Error E42","type":"CAUSES","confidence":0.8,"context":"Error E42 is caused by the AuthService"},
    {"source":"AuthService","target":"database","type":"CONNECTS_TO","confidence":0.6,"context":"when the database connection times out"}
  ]
}`

// buildSystemPrompt creates the system prompt with the entity and relationship
// vocabularies embedded.
func buildSystemPrompt() string {
	relTypes := slices.Sorted(maps.Keys(ai.RelationshipTypes))
	return fmt.Sprintf(extractionPromptTemplate,
		extractionResponseSchema,
		strings.Join(ai.EntityTypes, ", "),
		strings.Join(relTypes, ", "))
}
