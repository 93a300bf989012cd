package models

// LocalizedText maps a language code (en, si, ta) to text.
type LocalizedText map[string]string

// In returns the text for lang, falling back to English.
func (t LocalizedText) In(lang string) string {
	if s, ok := t[lang]; ok && s != "" {
		return s
	}
	return t["en"]
}

type Category struct {
	ID          string        `json:"id" bson:"id"`
	Name        LocalizedText `json:"name" bson:"name"`
	MinistryIDs []string      `json:"ministry_ids,omitempty" bson:"ministry_ids,omitempty"`
}

type Service struct {
	ID          string        `json:"id" bson:"id"`
	Category    string        `json:"category" bson:"category"`
	Name        LocalizedText `json:"name" bson:"name"`
	Subservices []Subservice  `json:"subservices,omitempty" bson:"subservices,omitempty"`
}

type Subservice struct {
	ID        string        `json:"id" bson:"id"`
	Name      LocalizedText `json:"name" bson:"name"`
	Questions []Question    `json:"questions,omitempty" bson:"questions,omitempty"`
}

type Question struct {
	ID           string        `json:"id,omitempty" bson:"id,omitempty"`
	Q            LocalizedText `json:"q" bson:"q"`
	Answer       LocalizedText `json:"answer" bson:"answer"`
	Downloads    []string      `json:"downloads,omitempty" bson:"downloads,omitempty"`
	Location     string        `json:"location,omitempty" bson:"location,omitempty"`
	Instructions string        `json:"instructions,omitempty" bson:"instructions,omitempty"`
}

type Ad struct {
	Title string `json:"title" bson:"title"`
	Body  string `json:"body,omitempty" bson:"body,omitempty"`
	Link  string `json:"link,omitempty" bson:"link,omitempty"`
}

// SearchHit is one match returned by the portal search.
type SearchHit struct {
	Service    string `json:"service"`
	Subservice string `json:"subservice"`
	Question   string `json:"question"`
	Answer     string `json:"answer"`
}

type SearchResult struct {
	Answer  string      `json:"answer"`
	Results []SearchHit `json:"results"`
}
