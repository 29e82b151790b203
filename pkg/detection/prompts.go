// Package detection builds the vision prompts and turns model replies into
// analysis results.
package detection

import (
	"strings"

	"github.com/jonesdeveloperchung-pixel/JadeScribe/pkg/types"
)

const itemSchema = `{
  "item_code": "detected_code_or_unknown",
  "visual_features": {
    "color": "description",
    "motif": "description",
    "characteristics": "description"
  }
}`

const featureGuide = `Describe the visual features:
- Color (e.g. Imperial Green, Lavender, White, Oil Green)
- Motif/Subject (e.g. Guanyin, Bamboo, Dragon, Lotus, Pixiu, Coin, Peach, Gourd)
- Texture/Translucency (e.g. Icy, Waxy, Fine, Coarse, Transparent, Opaque)`

// CropPrompt asks for a single item. A known code is given to the model as
// fact; otherwise the model is asked to read the label itself.
func CropPrompt(crop types.DetectedCrop, hint string) string {
	var b strings.Builder
	b.WriteString("Analyze this close-up image of a single jade pendant.\n")
	if crop.HasCode() {
		b.WriteString("The item code printed on its label is " + crop.OCRCode + ". Use it as item_code.\n")
	} else {
		b.WriteString("Identify any text label or item code on the item (e.g. PA-0425_AF). Use \"unknown\" if none is legible.\n")
	}
	b.WriteString(featureGuide)
	b.WriteString("\n")
	writeHint(&b, hint)
	b.WriteString("\nReturn strictly one valid JSON object with these keys:\n")
	b.WriteString(itemSchema)
	b.WriteString("\nJSON only. No markdown, no code fences, no comments.")
	return b.String()
}

// FallbackPrompt asks for every item in a whole tray photo as a JSON array.
func FallbackPrompt(hint string) string {
	var b strings.Builder
	b.WriteString("This image shows a tray or grid holding several jade pendants.\n")
	b.WriteString("For EACH pendant, identify its text label or item code (e.g. PA-0425_AF), or \"unknown\".\n")
	b.WriteString(featureGuide)
	b.WriteString("\n")
	writeHint(&b, hint)
	b.WriteString("\nReturn strictly a JSON array with one object per pendant, each shaped like:\n")
	b.WriteString(itemSchema)
	b.WriteString("\nJSON only. No markdown, no code fences, no comments.")
	return b.String()
}

func writeHint(b *strings.Builder, hint string) {
	if hint = strings.TrimSpace(hint); hint != "" {
		b.WriteString("User hints about these items: " + hint + "\n")
	}
}
