package services

import "strings"

const DefaultPromptTemplate = "Reimagine the person in this photo in the style of the {decade}. " +
	"This includes clothing, hairstyle, photo quality, and the overall aesthetic of that decade. " +
	"The output must be a photorealistic image showing the person clearly."

// BuildPrompt fills the {decade} placeholder of the template. An empty template
// falls back to DefaultPromptTemplate.
func BuildPrompt(template, decade string) string {
	if strings.TrimSpace(template) == "" {
		template = DefaultPromptTemplate
	}
	return strings.ReplaceAll(template, "{decade}", decade)
}
