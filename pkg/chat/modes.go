package chat

// Mode describes a response-shaping tag a submit may carry. The engine
// treats the tag as opaque request metadata; the table below only feeds
// the generation request (temperature, instruction) and UI hints.
type Mode struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Placeholder string  `json:"placeholder"`
	Description string  `json:"description"`
	Temperature float64 `json:"temperature"`
	Instruction string  `json:"instruction"`
}

const (
	ModeEmail       = "email"
	ModeArticle     = "article"
	ModeSocialMedia = "social_media"
	ModeRewrite     = "rewrite"
	ModeSummarize   = "summarize"
	ModeBrainstorm  = "brainstorm"
	ModeAnalyze     = "analyze"
)

// DefaultTemperature applies when no mode is selected.
const DefaultTemperature = 0.7

var modes = map[string]Mode{
	ModeEmail: {
		ID:          ModeEmail,
		Name:        "Email",
		Placeholder: "Compose a professional, empathetic email...",
		Description: "Professional, empathetic email generation",
		Temperature: 0.5,
		Instruction: "Focus on professional, empathetic email communication that builds trust and connection.",
	},
	ModeArticle: {
		ID:          ModeArticle,
		Name:        "Article",
		Placeholder: "Write an informative article...",
		Description: "Informative, well-structured content writing",
		Temperature: 0.7,
		Instruction: "Create informative, well-structured content that educates the reader.",
	},
	ModeSocialMedia: {
		ID:          ModeSocialMedia,
		Name:        "Social Media",
		Placeholder: "Create engaging, accessible social media content...",
		Description: "Engaging, accessible social content creation",
		Temperature: 0.8,
		Instruction: "Generate engaging, accessible social media content appropriate for a broad audience.",
	},
	ModeRewrite: {
		ID:          ModeRewrite,
		Name:        "Rewrite",
		Placeholder: "Transform existing content...",
		Description: "Transform existing content while preserving the original message",
		Temperature: 0.4,
		Instruction: "Transform the provided content while preserving the original message.",
	},
	ModeSummarize: {
		ID:          ModeSummarize,
		Name:        "Summarize",
		Placeholder: "Summarize this document or content...",
		Description: "Document and content summarization",
		Temperature: 0.3,
		Instruction: "Provide clear, concise summaries of the provided material.",
	},
	ModeBrainstorm: {
		ID:          ModeBrainstorm,
		Name:        "Idea Brainstorm",
		Placeholder: "Let's brainstorm creative ideas...",
		Description: "Creative ideation and brainstorming",
		Temperature: 0.9,
		Instruction: "Generate creative, innovative ideas.",
	},
	ModeAnalyze: {
		ID:          ModeAnalyze,
		Name:        "Analyze",
		Placeholder: "Analyze this data or content...",
		Description: "Data and content analysis",
		Temperature: 0.4,
		Instruction: "Provide thoughtful analysis of the provided data or content.",
	},
}

// LookupMode returns the mode for id. The empty id is valid and means
// "no mode selected".
func LookupMode(id string) (Mode, bool) {
	if id == "" {
		return Mode{Temperature: DefaultTemperature}, true
	}
	m, ok := modes[id]
	return m, ok
}

// Modes returns all known modes, for UI listing.
func Modes() []Mode {
	out := make([]Mode, 0, len(modes))
	for _, id := range []string{ModeEmail, ModeArticle, ModeSocialMedia, ModeRewrite, ModeSummarize, ModeBrainstorm, ModeAnalyze} {
		out = append(out, modes[id])
	}
	return out
}
