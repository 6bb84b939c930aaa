// Package vocabulary maps tokens and categories of a Q/A corpus to dense
// integer ids. A Vocabulary is built once per corpus snapshot, persisted
// under a cache prefix and immutable afterwards; unseen tokens and
// categories map to reserved fallback ids instead of failing.
//
// Id layout for V tokens and C categories:
//
//	tokens      0 .. V-1   first-seen order
//	unknown     V
//	padding     V+1        (sequence encoding only)
//	categories  1 .. C     first-seen order
//	unknown     C+1
package vocabulary

import "github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/internal/corpus"

const (
	UnknownToken    = "UNKNOWN_TOKEN"
	UnknownCategory = "UNKNOWN_CATEGORY"
)

// Vocabulary is safe for concurrent reads.
type Vocabulary struct {
	prefix      string
	tokens      []string
	token2id    map[string]int
	docFreq     []int
	numDocs     int
	categories  []string
	category2id map[string]int
	fingerprint corpus.Fingerprint
}

func newVocabulary(prefix string) *Vocabulary {
	return &Vocabulary{
		prefix:      prefix,
		token2id:    make(map[string]int),
		category2id: make(map[string]int),
	}
}

// Prefix is the cache prefix the vocabulary was built or loaded under.
func (v *Vocabulary) Prefix() string { return v.prefix }

// Size is V, the number of real tokens.
func (v *Vocabulary) Size() int { return len(v.tokens) }

// NumDocs is the number of text fields seen while building.
func (v *Vocabulary) NumDocs() int { return v.numDocs }

// UnknownTokenID is the id every out-of-vocabulary token maps to.
func (v *Vocabulary) UnknownTokenID() int { return len(v.tokens) }

// PadID fills fixed-length sequences; it never collides with a token id or
// the unknown id.
func (v *Vocabulary) PadID() int { return len(v.tokens) + 1 }

// NumCategories is C, the number of distinct categories.
func (v *Vocabulary) NumCategories() int { return len(v.categories) }

// UnknownCategoryID is C+1.
func (v *Vocabulary) UnknownCategoryID() int { return len(v.categories) + 1 }

// Fingerprint is the corpus snapshot the vocabulary was built from. It is
// zero for vocabularies loaded from caches written without a manifest.
func (v *Vocabulary) Fingerprint() corpus.Fingerprint { return v.fingerprint }

func (v *Vocabulary) TokenToID(token string) int {
	if id, ok := v.token2id[token]; ok {
		return id
	}
	return v.UnknownTokenID()
}

func (v *Vocabulary) IDToToken(id int) string {
	if id >= 0 && id < len(v.tokens) {
		return v.tokens[id]
	}
	return UnknownToken
}

// DocFreq is the number of text fields containing the token with this id.
func (v *Vocabulary) DocFreq(id int) int {
	if id >= 0 && id < len(v.docFreq) {
		return v.docFreq[id]
	}
	return 0
}

// CategoryToID maps a nil or unseen category to UnknownCategoryID.
func (v *Vocabulary) CategoryToID(category *string) int {
	if category == nil {
		return v.UnknownCategoryID()
	}
	if id, ok := v.category2id[*category]; ok {
		return id
	}
	return v.UnknownCategoryID()
}

func (v *Vocabulary) IDToCategory(id int) string {
	if id >= 1 && id <= len(v.categories) {
		return v.categories[id-1]
	}
	return UnknownCategory
}
