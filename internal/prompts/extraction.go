package prompts

import "fmt"

const ExtractionSystem = "You are an expert at extracting structured data from oral history interviews. You return valid JSON only."

// ExtractionKeys are the top-level keys of the extracted family data.
var ExtractionKeys = []string{
	"people",
	"places",
	"dates_and_events",
	"themes_and_topics",
	"values_and_personality",
	"life_lessons",
	"career_and_education",
	"family_tree",
}

// Extraction asks for the family data schema to be filled from a transcript.
func Extraction(subject, transcript string) string {
	return fmt.Sprintf(`You are an expert at analyzing oral history interviews and extracting structured information to preserve family legacy.

Analyze the following interview transcript and extract comprehensive structured data.

%[2]s

Extract and organize the following information in JSON format:

{
  "people": [
    {"name": "Full name", "relationship": "Relationship to %[1]s", "birth_date": "Date if mentioned", "birth_place": "Place if mentioned", "notes": "Any additional details"}
  ],
  "places": [
    {"location": "Place name", "significance": "Why this place matters", "time_period": "When they lived/visited", "details": "Additional context"}
  ],
  "dates_and_events": [
    {"date": "Date or time period", "event": "What happened", "significance": "Why it matters", "people_involved": ["Names"]}
  ],
  "themes_and_topics": [
    {"theme": "Main topic/category", "description": "What was discussed", "significance": "Why this is important to preserve"}
  ],
  "values_and_personality": [
    {"value_or_trait": "The value or personality trait", "evidence": "Specific story or quote that demonstrates this", "significance": "What this reveals about %[1]s"}
  ],
  "life_lessons": [
    {"lesson": "The wisdom or advice", "context": "Story or experience it came from", "quote": "Direct quote if available"}
  ],
  "career_and_education": {
    "education": ["Schools, degrees, studies"],
    "jobs": [
      {"position": "Job title/role", "organization": "Company/place", "time_period": "When", "key_learnings": "What they learned"}
    ]
  },
  "family_tree": {
    "parents": [
      {"name": "Full name", "birth_date": "Date if mentioned", "birth_place": "Place if mentioned", "notes": "Any additional details"}
    ],
    "siblings": [
      {"name": "Full name (include nicknames in parentheses)", "birth_date": "Date if mentioned", "birth_place": "Place if mentioned", "relationship": "older brother/younger sister/twin/etc", "notes": "Any additional details"}
    ],
    "spouse": {"name": "Spouse name if mentioned", "marriage_date": "Date if mentioned", "notes": "Any additional details"},
    "children": [
      {"name": "Child name if mentioned", "birth_date": "Date if mentioned", "notes": "Any additional details"}
    ]
  }
}

Important guidelines:
- Only extract information explicitly stated in the interview
- If something isn't mentioned, use null, never "Not mentioned" or an empty string
- Use an empty array [] for missing lists
- Preserve direct quotes where meaningful
- Capture emotional context and significance
- Focus on details that help preserve %[1]s's story and personality

Return ONLY valid JSON, no additional text.`, subject, transcript)
}
