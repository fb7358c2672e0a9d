package payload

import "fmt"

// RefineParams control the final refinement pass.
type RefineParams struct {
	Flag     bool
	Strength float64
}

// DefaultRefineParams returns the refinement defaults.
func DefaultRefineParams() RefineParams {
	return RefineParams{Flag: true, Strength: 0.85}
}

// RefinePayload is the stage 2 request.
type RefinePayload struct {
	Meta   Meta
	Source Asset
	Params RefineParams
}

// BuildRefine assembles the stage 2 payload for a generated image.
func BuildRefine(source Asset, params RefineParams, meta Meta) (*RefinePayload, error) {
	const op = "build refine"
	if err := meta.validate(op); err != nil {
		return nil, err
	}
	if err := validateAsset(op, source); err != nil {
		return nil, err
	}
	if params.Strength < 0 || params.Strength > 1 {
		return nil, invalid(op, fmt.Sprintf("strength must be within [0,1] (got %v)", params.Strength))
	}
	return &RefinePayload{Meta: meta, Source: source, Params: params}, nil
}

func (p *RefinePayload) Stage() int          { return StageRefine }
func (p *RefinePayload) SessionHash() string { return p.Meta.SessionHash }
func (p *RefinePayload) Asset() Asset        { return p.Source }

func (p *RefinePayload) Envelope() Envelope {
	return p.Meta.envelope(StageRefine, []any{generatedFile(p.Source), p.Params.Flag, p.Params.Strength})
}
