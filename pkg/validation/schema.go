package validation

// outputSchema is the wire contract for candidate specialist outputs.
// Confidence bounds and skill authorization are checked separately so their
// failures carry domain-specific messages.
const outputSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["role", "skills_used", "findings", "confidence", "timestamp"],
  "properties": {
    "role": {
      "type": "string",
      "minLength": 1
    },
    "skills_used": {
      "type": "array",
      "items": {"type": "string"}
    },
    "findings": {
      "type": "object",
      "required": ["summary", "evidence", "correlations"],
      "properties": {
        "summary": {"type": "string", "minLength": 1},
        "evidence": {"type": "array", "items": {"type": "string"}},
        "correlations": {"type": "array", "items": {"type": "string"}},
        "recommendations": {"type": "array", "items": {"type": "string"}}
      }
    },
    "confidence": {"type": "number"},
    "timestamp": {"type": "string", "minLength": 1},
    "processing_time_ms": {"type": "integer"},
    "data_sources": {"type": "array", "items": {"type": "string"}}
  }
}`
