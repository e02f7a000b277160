package models

// Config represents the service configuration
type Config struct {
	// Server config
	Port int    `yaml:"port"`
	Host string `yaml:"host"`

	// OCR config
	OCR OCRConfig `yaml:"ocr"`

	// AI config
	AI AIConfig `yaml:"ai"`

	// Worker pool config
	Workers WorkerConfig `yaml:"workers"`
}

// OCRConfig represents OCR-specific configuration
type OCRConfig struct {
	Engine   string `yaml:"engine"`   // "tesseract" (exec) or "gosseract" (binding)
	Language string `yaml:"language"` // OCR language (default: "eng")
}

// AIConfig represents AI enhancement provider configuration
type AIConfig struct {
	// Gemini (default, matches the multimodal enhancement backend)
	Gemini GeminiConfig `yaml:"gemini"`

	// OpenAI-compatible vision endpoints
	OpenAI OpenAIConfig `yaml:"openai"`

	// Default provider: "gemini" or "openai". Enhancement is disabled when the
	// selected provider carries no API key.
	DefaultProvider string `yaml:"default_provider"`
}

// GeminiConfig for Google Gemini
type GeminiConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"` // Default: "gemini-2.0-flash"
}

// OpenAIConfig for OpenAI/Azure OpenAI
type OpenAIConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url,omitempty"` // For custom endpoints
	Model   string `yaml:"model"`              // Default: "gpt-4o"
}

// WorkerConfig sizes the asynchronous dispatch pool
type WorkerConfig struct {
	Count          int `yaml:"count"`           // concurrent pipeline runs
	QueueSize      int `yaml:"queue_size"`      // buffered jobs before backpressure
	TimeoutSeconds int `yaml:"timeout_seconds"` // per-run deadline
}
