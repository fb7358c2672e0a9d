package payload

import "fmt"

// ImageParams are the line-art-to-image generation settings.
type ImageParams struct {
	Model         string
	ControlModel  string
	Width         int
	Height        int
	Flag          bool
	Count         int
	Strength      float64
	GuidanceScale float64
	Steps         int
	Sampler       string
	Seed          int64
	Style         string
}

// DefaultImageParams returns the settings the hosted app ships with.
func DefaultImageParams() ImageParams {
	return ImageParams{
		Model:         "stablediffusionapi/rev-animated-v122-eol",
		ControlModel:  "lllyasviel/control_v11p_sd15_lineart",
		Width:         512,
		Height:        512,
		Flag:          true,
		Count:         1,
		Strength:      1,
		GuidanceScale: 7.5,
		Steps:         30,
		Sampler:       "DDIM",
		Seed:          0,
		Style:         "Lineart",
	}
}

// Validate reports unusable generation settings.
func (p ImageParams) Validate() error {
	const op = "build image"
	switch {
	case p.Model == "":
		return invalid(op, "model required")
	case p.ControlModel == "":
		return invalid(op, "control model required")
	case p.Width <= 0 || p.Height <= 0:
		return invalid(op, fmt.Sprintf("dimensions must be positive (got %dx%d)", p.Width, p.Height))
	case p.Count <= 0:
		return invalid(op, fmt.Sprintf("count must be positive (got %d)", p.Count))
	case p.Steps <= 0:
		return invalid(op, fmt.Sprintf("steps must be positive (got %d)", p.Steps))
	case p.GuidanceScale < 0:
		return invalid(op, fmt.Sprintf("guidance scale must not be negative (got %v)", p.GuidanceScale))
	case p.Strength < 0:
		return invalid(op, fmt.Sprintf("strength must not be negative (got %v)", p.Strength))
	case p.Sampler == "":
		return invalid(op, "sampler required")
	}
	return nil
}

// ImagePayload is the stage 1 request.
type ImagePayload struct {
	Meta           Meta
	Source         Asset
	Params         ImageParams
	Prompt         string
	NegativePrompt string
}

// BuildImage assembles the stage 1 payload from the normalized sketch.
func BuildImage(source Asset, params ImageParams, prompt, negativePrompt string, meta Meta) (*ImagePayload, error) {
	const op = "build image"
	if err := meta.validate(op); err != nil {
		return nil, err
	}
	if err := validateAsset(op, source); err != nil {
		return nil, err
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &ImagePayload{
		Meta:           meta,
		Source:         source,
		Params:         params,
		Prompt:         normalizePrompt(prompt),
		NegativePrompt: normalizePrompt(negativePrompt),
	}, nil
}

func (p *ImagePayload) Stage() int          { return StageImage }
func (p *ImagePayload) SessionHash() string { return p.Meta.SessionHash }
func (p *ImagePayload) Asset() Asset        { return p.Source }

// Envelope keeps the positional order the remote function signature expects.
func (p *ImagePayload) Envelope() Envelope {
	data := []any{
		generatedFile(p.Source),
		p.Params.Model,
		p.Params.ControlModel,
		p.Params.Width,
		p.Params.Height,
		p.Params.Flag,
		p.Params.Count,
		p.Prompt,
		p.NegativePrompt,
		p.Params.Strength,
		p.Params.GuidanceScale,
		p.Params.Steps,
		p.Params.Sampler,
		p.Params.Seed,
		p.Params.Style,
	}
	return p.Meta.envelope(StageImage, data)
}

func generatedFile(source Asset) FileData {
	return FileData{
		OrigName: "image.png",
		Path:     source.Path,
		URL:      source.URL,
	}
}
