package service

// breakdownSystemPrompt фиксирует ровно восемь ключей ответа.
const breakdownSystemPrompt = `You are an expert screenwriter and film analyst. Analyze scenes and provide comprehensive breakdowns. Respond STRICTLY with a JSON object:
{
  "characters": ["list of character names"],
  "locations": ["list of locations"],
  "themes": ["main themes"],
  "tone": "overall tone and mood",
  "structure": "scene structure analysis",
  "technicalNotes": "technical considerations for filming",
  "visualElements": "key visual elements and imagery",
  "emotionalArc": "emotional journey of the scene"
}`

const userPromptPrefix = "Analyze this scene and return ONLY JSON:\n\n"

// Prompt - пара сообщений для модели.
type Prompt struct {
	System string
	User   string
}

// BuildBreakdownPrompt строит детерминированный промпт для текста сцены.
// Текст передается без изменений.
func BuildBreakdownPrompt(sceneText string) Prompt {
	return Prompt{
		System: breakdownSystemPrompt,
		User:   userPromptPrefix + sceneText,
	}
}
