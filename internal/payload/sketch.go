package payload

import "fmt"

// SketchParams names the two file roles of the sketch normalization stage.
type SketchParams struct {
	BackgroundName string
	CompositeName  string
}

// DefaultSketchParams returns the names the remote sketch pad uses.
func DefaultSketchParams() SketchParams {
	return SketchParams{
		BackgroundName: "background.png",
		CompositeName:  "composite.png",
	}
}

// Dimensions describe the uploaded sketch in pixels.
type Dimensions struct {
	Width  int
	Height int
}

// RGBASize is the byte-size estimate the sketch pad reports for an image.
func (d Dimensions) RGBASize() int64 {
	return int64(d.Width) * int64(d.Height) * 4
}

// SketchPayload is the stage 0 request: the upload referenced as both the
// background and the composite layer.
type SketchPayload struct {
	Meta   Meta
	Source Asset
	Dims   Dimensions
	Params SketchParams
}

// BuildSketch assembles the stage 0 payload for an uploaded sketch.
func BuildSketch(source Asset, dims Dimensions, params SketchParams, meta Meta) (*SketchPayload, error) {
	const op = "build sketch"
	if err := meta.validate(op); err != nil {
		return nil, err
	}
	if err := validateAsset(op, source); err != nil {
		return nil, err
	}
	if dims.Width <= 0 || dims.Height <= 0 {
		return nil, invalid(op, fmt.Sprintf("dimensions must be positive (got %dx%d)", dims.Width, dims.Height))
	}
	defaults := DefaultSketchParams()
	if params.BackgroundName == "" {
		params.BackgroundName = defaults.BackgroundName
	}
	if params.CompositeName == "" {
		params.CompositeName = defaults.CompositeName
	}
	return &SketchPayload{Meta: meta, Source: source, Dims: dims, Params: params}, nil
}

func (p *SketchPayload) Stage() int          { return StageSketch }
func (p *SketchPayload) SessionHash() string { return p.Meta.SessionHash }
func (p *SketchPayload) Asset() Asset        { return p.Source }

// Envelope lays out data as a single object holding both layers.
func (p *SketchPayload) Envelope() Envelope {
	layers := map[string]FileData{
		"background": p.layer(p.Params.BackgroundName),
		"composite":  p.layer(p.Params.CompositeName),
	}
	return p.Meta.envelope(StageSketch, []any{layers})
}

func (p *SketchPayload) layer(name string) FileData {
	return FileData{
		MimeType: stringPtr(""),
		OrigName: name,
		Path:     p.Source.Path,
		Size:     int64Ptr(p.Dims.RGBASize()),
		URL:      p.Source.URL,
	}
}
