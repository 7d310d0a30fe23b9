package domain

type Persona struct {
	Name          string       `json:"name" toml:"name"`
	Role          string       `json:"role" toml:"role"`
	Provider      string       `json:"provider" toml:"provider"`
	ModelCodeName string       `json:"modelCodeName" toml:"model"`
	Instructions  string       `json:"instructions,omitempty" toml:"instructions"`
	Capabilities  Capabilities `json:"capabilities" toml:"capabilities"`
	Allowed       Permissions  `json:"allowed" toml:"allowed"`
}

type Capabilities struct {
	SupportsSystemMessage bool                `json:"supportsSystemMessage" toml:"supports_system_message"`
	SupportedParameters   SupportedParameters `json:"supportedParameters" toml:"parameters"`
}

// SupportedParameters holds optional overrides. Nil means the vendor default is used.
type SupportedParameters struct {
	Temperature *float32 `json:"temperature,omitempty" toml:"temperature"`
	MaxTokens   *int     `json:"maxTokens,omitempty" toml:"max_tokens"`
}

type Permissions struct {
	Send    MediaKinds `json:"send" toml:"send"`
	Receive MediaKinds `json:"receive" toml:"receive"`
}

type MediaKinds struct {
	Text  bool `json:"text" toml:"text"`
	File  bool `json:"file" toml:"file"`
	Image bool `json:"image" toml:"image"`
}
