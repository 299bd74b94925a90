package personal

// stopWords is the set of common English function words removed before the
// stop-word-filtered exact comparison. Loaded once at init; never mutated.
var stopWords = map[string]struct{}{}

func init() {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "so",
		"i", "me", "my", "mine", "we", "us", "our", "ours",
		"you", "your", "yours", "he", "him", "his", "she", "her", "hers",
		"it", "its", "they", "them", "their", "theirs",
		"is", "am", "are", "was", "were", "be", "been", "being",
		"do", "does", "did", "have", "has", "had",
		"will", "would", "can", "could", "shall", "should", "may", "might",
		"in", "on", "at", "to", "of", "for", "from", "with", "by",
		"about", "into", "over", "under", "up", "down", "out",
		"this", "that", "these", "those", "there", "here",
		"what", "which", "who", "whom", "when", "where", "how",
		"not", "no", "yes", "um", "uh", "like", "just", "really", "very",
	}
	for _, w := range words {
		stopWords[w] = struct{}{}
	}
}

// synonymGroups are static bidirectional equivalence classes for common
// kinship terms, everyday adjectives, and titles. Any two words in the same
// group are considered synonyms of each other.
var synonymGroups = [][]string{
	// Kinship terms.
	{"mom", "mother", "mommy", "mama", "ma"},
	{"dad", "father", "daddy", "papa", "pa"},
	{"grandma", "grandmother", "granny", "nana", "gran"},
	{"grandpa", "grandfather", "granddad", "gramps"},
	{"brother", "bro"},
	{"sister", "sis"},
	{"child", "kid"},
	{"children", "kids"},
	{"husband", "hubby", "spouse"},
	{"wife", "spouse"},
	{"aunt", "auntie"},

	// Common adjectives.
	{"big", "large", "huge"},
	{"small", "little", "tiny"},
	{"happy", "glad", "joyful", "cheerful"},
	{"sad", "unhappy"},
	{"pretty", "beautiful", "lovely"},
	{"kind", "nice", "sweet", "gentle"},
	{"smart", "clever", "intelligent"},
	{"funny", "humorous"},
	{"old", "elderly"},
	{"young", "youthful"},

	// Titles.
	{"doctor", "dr"},
	{"mister", "mr"},
	{"missus", "mrs"},
	{"miss", "ms"},
	{"professor", "prof"},
	{"reverend", "rev", "pastor"},
}

// synonyms maps each word to the set of its synonyms, built once from
// synonymGroups.
var synonyms = buildSynonyms()

func buildSynonyms() map[string]map[string]struct{} {
	m := make(map[string]map[string]struct{})
	for _, group := range synonymGroups {
		for _, w := range group {
			set := m[w]
			if set == nil {
				set = make(map[string]struct{})
				m[w] = set
			}
			for _, other := range group {
				if other != w {
					set[other] = struct{}{}
				}
			}
		}
	}
	return m
}

// areSynonyms reports whether a and b belong to the same synonym group.
func areSynonyms(a, b string) bool {
	set, ok := synonyms[a]
	if !ok {
		return false
	}
	_, ok = set[b]
	return ok
}
