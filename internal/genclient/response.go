package genclient

import (
	"encoding/base64"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/vincent-petithory/dataurl"
	"google.golang.org/genai"

	"github.com/and161185/outfit-studio/internal/errs"
	"github.com/and161185/outfit-studio/internal/model"
)

// ResultMIMEType is the media type of the returned data URL.
const ResultMIMEType = "image/png"

const maxCommentary = 512

// toCandidates reduces the SDK response to typed parts; nil entries are skipped.
func toCandidates(resp *genai.GenerateContentResponse) []model.Candidate {
	if resp == nil {
		return nil
	}
	out := make([]model.Candidate, 0, len(resp.Candidates))
	for _, c := range resp.Candidates {
		var cand model.Candidate
		if c != nil && c.Content != nil {
			for _, p := range c.Content.Parts {
				switch {
				case p == nil:
				case p.InlineData != nil && len(p.InlineData.Data) > 0:
					cand.Parts = append(cand.Parts, model.ImagePart{Image: model.EncodedImage{
						MIMEType: p.InlineData.MIMEType,
						Data:     base64.StdEncoding.EncodeToString(p.InlineData.Data),
					}})
				case p.Text != "":
					cand.Parts = append(cand.Parts, model.TextPart{Text: p.Text})
				}
			}
		}
		out = append(out, cand)
	}
	return out
}

// FirstImage returns the first image part across candidates in document order.
func FirstImage(cands []model.Candidate) (model.EncodedImage, bool) {
	for _, c := range cands {
		for _, p := range c.Parts {
			if img, ok := p.(model.ImagePart); ok && img.Image.Data != "" {
				return img.Image, true
			}
		}
	}
	return model.EncodedImage{}, false
}

// commentary joins text parts, used to explain an empty result.
func commentary(cands []model.Candidate) string {
	var sb strings.Builder
	for _, c := range cands {
		for _, p := range c.Parts {
			if t, ok := p.(model.TextPart); ok {
				sb.WriteString(t.Text)
			}
		}
	}
	s := strings.TrimSpace(sb.String())
	if len(s) > maxCommentary {
		cut := maxCommentary
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		s = s[:cut] + "..."
	}
	return s
}

// ExtractImage returns the first image in cands as a PNG data URL.
func ExtractImage(cands []model.Candidate) (string, error) {
	img, ok := FirstImage(cands)
	if !ok {
		if s := commentary(cands); s != "" {
			return "", fmt.Errorf("%w: %s", errs.ErrEmptyResult, s)
		}
		return "", errs.ErrEmptyResult
	}
	raw, err := base64.StdEncoding.DecodeString(img.Data)
	if err != nil {
		return "", fmt.Errorf("%w: malformed image payload: %w", errs.ErrGeneration, err)
	}
	return dataurl.New(raw, ResultMIMEType).String(), nil
}
