package domain

type ImageSize string

const (
	Size256x256   ImageSize = "256x256"
	Size512x512   ImageSize = "512x512"
	Size1024x1024 ImageSize = "1024x1024"
	Size1024x1792 ImageSize = "1024x1792"
	Size1792x1024 ImageSize = "1792x1024"
)

type ImageQuality string

const (
	QualityStandard ImageQuality = "standard"
	QualityHD       ImageQuality = "hd"
)

type ImageStyle string

const (
	StyleVivid   ImageStyle = "vivid"
	StyleNatural ImageStyle = "natural"
)

var (
	ImageSizes     = []ImageSize{Size256x256, Size512x512, Size1024x1024, Size1024x1792, Size1792x1024}
	ImageQualities = []ImageQuality{QualityStandard, QualityHD}
	ImageStyles    = []ImageStyle{StyleVivid, StyleNatural}
)

type ImageRequest struct {
	Prompt  string       `json:"prompt"`
	Size    ImageSize    `json:"size,omitempty"`
	Style   ImageStyle   `json:"style,omitempty"`
	Quality ImageQuality `json:"quality,omitempty"`
	Model   string       `json:"model,omitempty"`
}

type Image struct {
	PromptID      int64  `json:"promptId,omitempty"`
	URL           string `json:"url,omitempty"`
	B64JSON       string `json:"b64Json,omitempty"`
	RevisedPrompt string `json:"revisedPrompt,omitempty"`
}
