package answer

import "strings"

// Configuration is the persona the assistant answers with. Swapping it never
// touches the index.
type Configuration struct {
	Name             string   `json:"name" yaml:"name" validate:"required,max=128"`
	Description      string   `json:"description" yaml:"description"`
	SystemPrompt     string   `json:"system_prompt" yaml:"system_prompt" validate:"required"`
	Language         string   `json:"language" yaml:"language" validate:"omitempty,max=32"`
	ExampleQuestions []string `json:"example_questions" yaml:"example_questions" validate:"max=20,dive,required"`
	PlaylistURL      string   `json:"playlist_url" yaml:"playlist_url"`
}

type Info struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Language    string `json:"language"`
	PlaylistURL string `json:"playlist_url"`
}

const (
	DefaultConfigName = "Default"

	defaultSystemPrompt = `Sen bir AI asistanısın. Video içeriklerine dayanarak soruları yanıtlayacaksın.

Görevin:
- Video içeriklerini kaynak göstererek sorulara yanıt vermek
- Profesyonel ve yardımcı bir ton kullanmak
- Türkçe yanıtlar vermek`
)

// DefaultConfiguration is used until a configuration is set.
func DefaultConfiguration() Configuration {
	return Configuration{
		Name:         "Generic YouTube RAG Assistant",
		Description:  "AI assistant for YouTube video content",
		SystemPrompt: defaultSystemPrompt,
		Language:     "tr",
		ExampleQuestions: []string{
			"Bu konular hakkında ne öğrenebilirim?",
			"Hangi videolar en faydalı?",
			"Temel kavramlar nelerdir?",
		},
		PlaylistURL: "Not specified",
	}
}

func (c Configuration) Info() Info {
	return Info{
		Name:        c.Name,
		Description: c.Description,
		Language:    c.Language,
		PlaylistURL: c.PlaylistURL,
	}
}

type locale struct {
	insufficient string
	failure      string

	contextHeading  string
	scoreLabel      string
	questionLabel   string
	rulesHeading    string
	ruleDetail      string
	ruleCite        string
	ruleLanguage    string
	ruleListSources string
	languageName    string
}

var (
	turkish = locale{
		insufficient:    "Bu konuda video arşivimde yeterli bilgi bulamadım.",
		failure:         "Bir hata oluştu: %v",
		contextHeading:  "İlgili Video İçerikleri:",
		scoreLabel:      "Benzerlik Skoru",
		questionLabel:   "Kullanıcı Sorusu",
		rulesHeading:    "Yanıt kuralları:",
		ruleDetail:      "Soruyu detaylı yanıtla",
		ruleCite:        "Hangi videodan bilgi aldığını [Video 1], [Video 2] şeklinde belirt",
		ruleLanguage:    "%s yanıt ver",
		ruleListSources: "Sonunda kullandığın kaynakları listele",
		languageName:    "Türkçe",
	}

	english = locale{
		insufficient:    "I could not find enough information about this in my video archive.",
		failure:         "An error occurred: %v",
		contextHeading:  "Relevant video content:",
		scoreLabel:      "Similarity score",
		questionLabel:   "User question",
		rulesHeading:    "Answer rules:",
		ruleDetail:      "Answer the question in detail",
		ruleCite:        "Cite the video each piece of information comes from as [Video 1], [Video 2]",
		ruleLanguage:    "Answer in %s",
		ruleListSources: "List the sources you used at the end",
		languageName:    "English",
	}
)

// localeFor maps a configured language onto message texts. Unknown languages
// get English messages.
func localeFor(language string) locale {
	switch strings.ToLower(strings.TrimSpace(language)) {
	case "", "tr", "turkish", "türkçe", "turkce":
		return turkish
	case "en", "english":
		return english
	default:
		return english
	}
}

// languageName is the name written into the prompt's language rule.
func languageName(language string) string {
	switch strings.ToLower(strings.TrimSpace(language)) {
	case "", "tr", "turkish", "türkçe", "turkce":
		return turkish.languageName
	case "en", "english":
		return english.languageName
	default:
		return strings.TrimSpace(language)
	}
}
