package conversation

import "strings"

// Language is the customer-facing reply language.
type Language string

const (
	LangEnglish Language = "en"
	LangSwahili Language = "sw"
)

// swahiliWords is the keyword set the detector scans for. A single hit
// flips the detection to Swahili; everything else defaults to English.
var swahiliWords = []string{
	"habari", "mambo", "karibu", "asante", "sawa", "tafadhali",
	"nataka", "ningependa", "naomba", "nahitaji",
	"huduma", "bei", "saa", "tarehe", "nafasi", "jina",
	"kesho", "leo", "wiki", "mwezi",
	"ndiyo", "hapana", "badilisha", "ahirisha", "weka",
	"shilingi", "ngapi", "lini", "wapi",
}

// DetectLanguage applies the keyword heuristic: Swahili if any keyword
// appears as a whole word, English otherwise.
func DetectLanguage(text string) Language {
	lowered := strings.ToLower(text)
	fields := strings.FieldsFunc(lowered, func(r rune) bool {
		return !((r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'))
	})
	for _, field := range fields {
		for _, word := range swahiliWords {
			if field == word {
				return LangSwahili
			}
		}
	}
	return LangEnglish
}
