package prompts

import (
	"fmt"
	"strings"
)

// GarmentAttributes lists the attribute slots the description must fill, in order.
var GarmentAttributes = []string{
	"Garment type (e.g. bomber jacket, halter dress, hoodie, puffer coat)",
	"Gender (man, woman, unisex)",
	"Color and pattern (e.g. solid black, navy pinstripe)",
	"Fit (relaxed fit, regular fit, fitted)",
	"Fabric or material (e.g. 100% wool, denim, silk blend)",
	"Texture (smooth, ribbed, soft)",
	"Closure (zippered, button-down, drawstring)",
	"Neckline or collar (V-neck, high collar, notched collar)",
	"Sleeves (long sleeves, short sleeves, puffed sleeves)",
	"Pockets (e.g. two side pockets, no pockets)",
	"Distinctive design details (ruffled hem, embroidered logo, belt loops)",
	"Length (waist-length, knee-length)",
	"Lining (fully lined, no lining)",
	"Visible branding or logos",
	"Occasion (casual wear, formal wear, activewear)",
}

// GarmentSystemPrompt sets the model's role for garment description.
const GarmentSystemPrompt = `You describe clothing for product search. Your output is used verbatim as a shopping search query, so it must contain only short attribute values that a store listing would also contain.`

// garmentInstructions follow the attribute list in the user prompt.
const garmentInstructions = `Output rules:
- One comma-separated line of values, in the order above, 1-3 words each.
- No category names, numbering, explanations or full sentences.
- Skip a slot if it cannot be seen in the image.
- Describe only the garment. Ignore people, backgrounds and other items.

Example for a bomber jacket:
Bomber jacket, Man, Solid black, Relaxed fit, 100% nylon, Smooth, Zippered, Ribbed collar, Long sleeves, Two zippered pockets, Ribbed cuffs and embroidered logo, Waist-length, Fully lined, Small Nike logo, Casual wear`

// BuildGarmentPrompt returns the user prompt for an image of the given
// garment type, optionally narrowed to a layer (e.g. "outer").
func BuildGarmentPrompt(garmentType, garmentLayer string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are analyzing an image of a %s garment.", strings.TrimSpace(garmentType))
	if layer := strings.TrimSpace(garmentLayer); layer != "" {
		fmt.Fprintf(&b, " This garment belongs to the %s layer.", strings.ToLower(layer))
	}
	b.WriteString("\n\nDescribe the garment by filling these attributes:\n")
	for i, attr := range GarmentAttributes {
		fmt.Fprintf(&b, "%d. %s\n", i+1, attr)
	}
	b.WriteString("\n")
	b.WriteString(garmentInstructions)
	return b.String()
}
