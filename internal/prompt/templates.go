package prompt

import (
	"fmt"
	"strings"

	"github.com/and161185/outfit-studio/internal/model"
)

// SystemInstruction is the global photography quality bar sent with every request.
const SystemInstruction = `Objective: Act as a world-class e-commerce photographer, creative director and digital stylist. Take the supplied garment image and produce a new, high-resolution, photorealistic photograph.

Mandates:
Garment fidelity: the exact garment from the input (color, texture, pattern) must appear in the result.
Photography style: natural professional studio lighting (softbox, gentle shadows) with a shallow depth of field that keeps the focus on the model and the clothing.
Model quality: skin, hair and pose must be flawless and highly realistic.
Background: clean, solid, minimal (white, light gray or soft beige) with no distractions.
Focus: the garment is wrinkle-free, well fitted and the focal subject of the image.`

func aiModelText(req model.GenerationRequest) string {
	var sb strings.Builder
	sb.WriteString("Task: **GARMENT SWAP AND PHOTOGRAPHY**\n")
	fmt.Fprintf(&sb, "Input garment: the attached image shows %s. Extract this garment and dress a newly generated model in it.\n", req.GarmentDescription)
	fmt.Fprintf(&sb, "Model and styling: %s.\n", req.ModelSpec)
	fmt.Fprintf(&sb, "Pose and scene: professional studio background. %s.\n", req.Pose)
	sb.WriteString("Output: one high-fidelity, photorealistic, professional e-commerce image.")
	return sb.String()
}

func customModelText(req model.GenerationRequest) string {
	var sb strings.Builder
	sb.WriteString("Task: **VIRTUAL TRY-ON / GARMENT TRANSFER**\n")
	fmt.Fprintf(&sb, "Image 1 (source): contains the garment to transfer: %s. It may show the garment on its own (flat) or worn by another person.\n", req.GarmentDescription)
	sb.WriteString("Image 2 (target person): the person who must end up wearing the garment.\n")
	sb.WriteString("Instructions:\n")
	fmt.Fprintf(&sb, "- Source extraction: locate the %s in image 1; if someone is wearing it, take only the garment.\n", req.GarmentDescription)
	sb.WriteString("- Target integrity: strictly preserve the face, identity, hair, pose, body shape and background of image 2. Only the clothing changes.\n")
	sb.WriteString("- Realistic fit: drape and warp the garment to follow the body and pose of the person in image 2.\n")
	sb.WriteString("- Lighting match: match the garment's lighting and shadows to the environment of image 2.\n")
	sb.WriteString("Output: a photorealistic image of the person from image 2 wearing the garment from image 1.")
	return sb.String()
}

func flatLayText(req model.GenerationRequest) string {
	var sb strings.Builder
	sb.WriteString("Task: **PROFESSIONAL FLAT LAY PHOTOGRAPHY**\n")
	fmt.Fprintf(&sb, "Image 1: contains the garment: %s. It may be worn by a person or surrounded by clutter.\n", req.GarmentDescription)
	sb.WriteString("Instructions:\n")
	fmt.Fprintf(&sb, "- Isolation: extract only the %s. Remove any person, body parts and background clutter.\n", req.GarmentDescription)
	sb.WriteString("- Styling: lay the garment flat, fully visible and symmetrically arranged as for a luxury catalog. Smooth out wrinkles while keeping the natural fabric texture.\n")
	sb.WriteString("- Lighting: soft, even, top-down studio lighting that shows fabric detail and true color without harsh shadows.\n")
	sb.WriteString("- Background: plain white or very light gray.\n")
	sb.WriteString("Output: one photorealistic flat lay image suitable for an online store.")
	return sb.String()
}

// ModeNote is the short user-facing description of what a mode produces.
func ModeNote(m model.Mode) string {
	switch m {
	case model.ModeAIModel:
		return "A professional model matching your description will be generated wearing your garment."
	case model.ModeCustomModel:
		return "The garment from the first image (flat or worn) will be transferred onto the person in the second image."
	case model.ModeFlatLay:
		return "The garment will be isolated from your photo (even if worn) and re-shot as a clean studio flat-lay."
	default:
		return ""
	}
}
