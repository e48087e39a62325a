package advisor

import (
	"fmt"
	"strings"
	"time"

	"agribot/internal/advisory"
	"agribot/internal/domain"
)

// baseSystemPrompt frames every model call. Farmer-specific context is
// appended per message by systemPrompt.
const baseSystemPrompt = `You are AgriBot, an expert agricultural assistant for African smallholder farmers growing maize and coffee.

Your role:
- Help farmers identify crop diseases and pests
- Provide practical, actionable farming advice for maize and coffee
- Offer weather-based planting and irrigation guidance
- Understand local African farming contexts (Kenya, Rwanda, Ethiopia)
- Use simple, clear language appropriate for farmers with varying literacy levels

Key principles:
1. Be practical: focus on solutions farmers can implement with limited resources
2. Be specific: give concrete advice with dosages and quantities
3. Be affordable: prioritize organic and low-cost options before expensive chemicals
4. Be concise: keep responses to 2-3 short paragraphs unless the farmer asks for more

Important crop knowledge:

MAIZE:
- Common diseases: Northern Corn Leaf Blight, Gray Leaf Spot, Maize Streak Virus, Fall Armyworm
- Growing season: 3-4 months from planting to harvest
- Water needs: 500-800mm through the season, most critical during tasseling

COFFEE:
- Common diseases: Coffee Leaf Rust, Coffee Berry Disease, Coffee Wilt Disease
- Growing conditions: altitude 1200-2100m, shade recommended
- Water needs: 1000-2000mm annually, sensitive to water stress during flowering

Weather context: long rains run March-May and short rains October-December in East Africa. Plant maize at the start of a rainy season.

Never recommend products unavailable in rural Africa, expensive machinery, or overly technical jargon. Be encouraging and invite follow-up questions.`

// systemPrompt appends the farmer's profile, including planting-window
// guidance for each of their crops, to the base prompt.
func systemPrompt(farmer *domain.FarmerProfile, now time.Time) string {
	var sb strings.Builder
	sb.WriteString(baseSystemPrompt)

	var facts []string
	if farmer.Name != "" {
		facts = append(facts, "Name: "+farmer.Name)
	}
	if farmer.Location != "" {
		facts = append(facts, "Location: "+farmer.Location)
	}
	for _, crop := range farmer.Crops {
		facts = append(facts, fmt.Sprintf("Grows %s. Current planting outlook: %s", crop, advisory.PlantingAdvice(crop, now.Month())))
	}
	if len(facts) > 0 {
		sb.WriteString("\n\nAbout this farmer:\n- ")
		sb.WriteString(strings.Join(facts, "\n- "))
	}
	return sb.String()
}

const defaultImageQuestion = "What is this disease and how do I treat it?"

// diseasePrompt wraps the formatted detection block and the farmer's
// question for the model's interpretation pass.
func diseasePrompt(diseaseBlock, question string) string {
	if question == "" {
		question = defaultImageQuestion
	}
	return fmt.Sprintf(`A farmer has sent an image of their crop with this disease detection result:

%s

The farmer asks: %s

Provide:
1. Explanation of what this disease is
2. Why it occurs
3. Treatment options (organic and chemical)
4. Prevention tips for the future

Keep your response practical and actionable for a smallholder farmer.`, diseaseBlock, question)
}

// weatherPrompt wraps the formatted forecast and the farmer's question.
func weatherPrompt(weatherBlock, question, location string) string {
	return fmt.Sprintf(`The farmer asks: %s

Here's the current weather for their location (%s):
%s

Provide farming advice based on this weather information.`, question, location, weatherBlock)
}
