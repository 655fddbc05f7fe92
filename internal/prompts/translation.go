package prompts

import "fmt"

func TranslationSystem(language string) string {
	return fmt.Sprintf("You are a professional translator. Translate text to %s accurately while preserving meaning and tone.", language)
}

func Translation(text, language string) string {
	return fmt.Sprintf(`Translate the following text to %s.
Maintain the same tone and meaning. Return ONLY the translation, no explanations.

Text to translate:
%s`, language, text)
}
