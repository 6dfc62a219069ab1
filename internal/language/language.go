package language

import "strings"

type entry struct {
	code2   string   // ISO 639-1
	code3   string   // ISO 639-2 primary
	alt3    string   // ISO 639-2 bibliographic alternate
	display string
	words   []string // English and Portuguese names, lowercased
}

var languages = []entry{
	{"pt", "por", "", "Portuguese", []string{"portuguese", "português", "portugues"}},
	{"en", "eng", "", "English", []string{"english", "inglês", "ingles"}},
	{"es", "spa", "", "Spanish", []string{"spanish", "espanhol", "español", "espanol"}},
	{"fr", "fra", "fre", "French", []string{"french", "francês", "frances"}},
	{"de", "deu", "ger", "German", []string{"german", "alemão", "alemao"}},
	{"it", "ita", "", "Italian", []string{"italian", "italiano"}},
	{"ko", "kor", "", "Korean", []string{"korean", "coreano"}},
	{"zh", "zho", "chi", "Chinese", []string{"chinese", "chinês", "chines"}},
	{"ru", "rus", "", "Russian", []string{"russian", "russo"}},
	{"ar", "ara", "", "Arabic", []string{"arabic", "árabe", "arabe"}},
	{"he", "heb", "", "Hebrew", []string{"hebrew", "hebraico"}},
	{"el", "ell", "gre", "Greek", []string{"greek", "grego"}},
	{"nl", "nld", "dut", "Dutch", []string{"dutch", "holandês", "holandes"}},
	{"pl", "pol", "", "Polish", []string{"polish", "polonês", "polones"}},
	{"ja", "jpn", "", "Japanese", []string{"japanese", "japonês", "japones"}},
}

var (
	byCode2 map[string]*entry
	byCode3 map[string]*entry
	byWord  map[string]*entry
)

func init() {
	byCode2 = make(map[string]*entry, len(languages))
	byCode3 = make(map[string]*entry, len(languages)*2)
	byWord = make(map[string]*entry, len(languages)*3)
	for i := range languages {
		e := &languages[i]
		byCode2[e.code2] = e
		byCode3[e.code3] = e
		if e.alt3 != "" {
			byCode3[e.alt3] = e
		}
		for _, w := range e.words {
			byWord[w] = e
		}
	}
}

// primarySubtag strips a region or script suffix ("pt-BR", "pt_br").
func primarySubtag(code string) string {
	if i := strings.IndexAny(code, "-_"); i > 0 {
		return code[:i]
	}
	return code
}

func lookup(code string) *entry {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return nil
	}
	if e, ok := byWord[code]; ok {
		return e
	}
	code = primarySubtag(code)
	if e, ok := byCode2[code]; ok {
		return e
	}
	if e, ok := byCode3[code]; ok {
		return e
	}
	return nil
}

// ToISO2 converts a language code, regional tag or name to ISO 639-1.
// Unknown 2-letter codes pass through; anything else unrecognized yields "".
func ToISO2(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return ""
	}
	if e := lookup(code); e != nil {
		return e.code2
	}
	if primary := primarySubtag(code); len(primary) == 2 {
		return primary
	}
	return ""
}

// DisplayName returns the English name for a recognized code, "Unknown" for
// empty input and the uppercased input otherwise.
func DisplayName(code string) string {
	if strings.TrimSpace(code) == "" {
		return "Unknown"
	}
	if e := lookup(code); e != nil {
		return e.display
	}
	return strings.ToUpper(strings.TrimSpace(code))
}

// NormalizeList lowercases, de-duplicates and maps names and ISO 639-2 codes
// to ISO 639-1, preserving order. Regional tags such as "pt-br" are kept as
// written since caption tracks are published per region.
func NormalizeList(languages []string) []string {
	if len(languages) == 0 {
		return nil
	}
	normalized := make([]string, 0, len(languages))
	seen := make(map[string]struct{}, len(languages))
	for _, lang := range languages {
		trimmed := strings.ToLower(strings.TrimSpace(lang))
		if trimmed == "" {
			continue
		}
		if !strings.ContainsAny(trimmed, "-_") && len(trimmed) > 2 {
			if mapped := ToISO2(trimmed); mapped != "" {
				trimmed = mapped
			}
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		normalized = append(normalized, trimmed)
	}
	return normalized
}
