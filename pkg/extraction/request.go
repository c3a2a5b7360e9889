package extraction

import (
	"fmt"
	"log/slog"

	"github.com/entityxtract/entityxtract/pkg/llm"
)

// requestBuilder assembles one model request from a document and a
// target: a fixed system instruction block, the rendered target prompt,
// and attachments gated by the configured input modes. Attachment order
// is fixed: inline text, then page images, then the whole file.
type requestBuilder struct {
	prompts *PromptProvider
	cfg     Config
	log     *slog.Logger
}

func (b *requestBuilder) build(doc Document, target Target) (llm.Request, error) {
	systemPrompt, err := b.prompts.SystemPrompt()
	if err != nil {
		return llm.Request{}, fmt.Errorf("failed to render system prompt: %w", err)
	}

	targetPrompt, err := b.prompts.TargetPrompt(target)
	if err != nil {
		return llm.Request{}, err
	}

	parts := []llm.Part{llm.NewTextPart(targetPrompt)}

	if b.cfg.hasMode(ModeText) {
		text, err := doc.Text()
		if err != nil {
			return llm.Request{}, fmt.Errorf("failed to read document text: %w", err)
		}
		parts = append(parts, llm.NewTextPart("Document content:\n\n"+text))
	}

	if b.cfg.hasMode(ModeImage) {
		images, err := doc.Images()
		if err != nil || len(images) == 0 {
			// A missing image must not fail the request.
			b.log.Warn("document image unavailable, skipping image attachment",
				"target", target.TargetName(),
				"error", err)
		} else {
			for _, img := range images {
				parts = append(parts, llm.NewImagePart(img.Data, img.MimeType))
			}
		}
	}

	if b.cfg.hasMode(ModeFile) {
		data, err := doc.Binary()
		if err != nil {
			return llm.Request{}, fmt.Errorf("failed to read document bytes: %w", err)
		}
		parts = append(parts, llm.NewFilePart(data, doc.MimeType()))
	}

	return llm.Request{
		Messages: []llm.Message{
			llm.NewSystemMessage(llm.NewTextPart(systemPrompt)),
			llm.NewUserMessage(parts...),
		},
		Model:       b.cfg.ModelName,
		Temperature: b.cfg.Temperature,
		MaxTokens:   b.cfg.MaxTokens,
	}, nil
}
