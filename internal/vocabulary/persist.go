package vocabulary

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/internal/cachestore"
	"github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/internal/corpus"
	apperrors "github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/pkg/errors"
)

const (
	dictFile       = "vocab.dict"
	id2tokenFile   = "id2token.json"
	categoriesFile = "categories.json"
	manifestFile   = "manifest.json"
)

var requiredFiles = []string{dictFile, id2tokenFile, categoriesFile}

type state int

const (
	cacheAbsent state = iota
	cacheComplete
)

type categoryMaps struct {
	ToID   map[string]int `json:"to_id"`
	FromID map[int]string `json:"from_id"`
}

type manifest struct {
	Fingerprint corpus.Fingerprint `json:"fingerprint"`
	Tokens      int                `json:"tokens"`
	Categories  int                `json:"categories"`
	BuiltAt     time.Time          `json:"built_at"`
}

func cacheState(store cachestore.Store, prefix string) (state, error) {
	var present, missing []string
	for _, name := range requiredFiles {
		key := cachestore.Key(prefix, name)
		ok, err := store.Exists(key)
		if err != nil {
			return cacheAbsent, fmt.Errorf("checking vocabulary cache: %w", err)
		}
		if ok {
			present = append(present, key)
		} else {
			missing = append(missing, key)
		}
	}
	switch {
	case len(present) == 0:
		return cacheAbsent, nil
	case len(missing) == 0:
		return cacheComplete, nil
	default:
		return cacheAbsent, fmt.Errorf("vocabulary %q has %v but is missing %v: %w",
			prefix, present, missing, apperrors.ErrCorruptCache)
	}
}

// Save writes the token map, reverse map, category maps and manifest. The
// manifest goes last so a crash mid-save leaves a detectably partial cache.
func Save(store cachestore.Store, v *Vocabulary) error {
	var dict bytes.Buffer
	fmt.Fprintf(&dict, "%d\n", v.numDocs)
	for id, tok := range v.tokens {
		fmt.Fprintf(&dict, "%d\t%s\t%d\n", id, tok, v.docFreq[id])
	}

	id2token := make(map[int]string, len(v.tokens))
	for id, tok := range v.tokens {
		id2token[id] = tok
	}
	id2tokenData, err := json.Marshal(id2token)
	if err != nil {
		return fmt.Errorf("marshaling id2token: %w", err)
	}

	cats := categoryMaps{
		ToID:   make(map[string]int, len(v.categories)),
		FromID: make(map[int]string, len(v.categories)),
	}
	for i, c := range v.categories {
		cats.ToID[c] = i + 1
		cats.FromID[i+1] = c
	}
	catData, err := json.Marshal(cats)
	if err != nil {
		return fmt.Errorf("marshaling categories: %w", err)
	}

	manData, err := json.Marshal(manifest{
		Fingerprint: v.fingerprint,
		Tokens:      len(v.tokens),
		Categories:  len(v.categories),
		BuiltAt:     time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshaling manifest: %w", err)
	}

	writes := []struct {
		name string
		data []byte
	}{
		{dictFile, dict.Bytes()},
		{id2tokenFile, id2tokenData},
		{categoriesFile, catData},
		{manifestFile, manData},
	}
	for _, w := range writes {
		if err := store.Write(cachestore.Key(v.prefix, w.name), w.data); err != nil {
			return fmt.Errorf("saving vocabulary %s: %w", w.name, err)
		}
	}
	return nil
}

// Load reads a complete vocabulary cache. Missing, unreadable or mutually
// inconsistent files are reported as ErrCorruptCache.
func Load(store cachestore.Store, prefix string) (*Vocabulary, error) {
	st, err := cacheState(store, prefix)
	if err != nil {
		return nil, err
	}
	if st != cacheComplete {
		return nil, fmt.Errorf("vocabulary %q is not cached: %w", prefix, apperrors.ErrCorruptCache)
	}

	v := newVocabulary(prefix)
	if err := v.readDict(store); err != nil {
		return nil, err
	}
	if err := v.checkID2Token(store); err != nil {
		return nil, err
	}
	if err := v.readCategories(store); err != nil {
		return nil, err
	}
	if err := v.readManifest(store); err != nil {
		return nil, err
	}
	return v, nil
}

func (v *Vocabulary) readDict(store cachestore.Store) error {
	data, err := store.Read(cachestore.Key(v.prefix, dictFile))
	if err != nil {
		return corrupt(dictFile, err)
	}
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	if !sc.Scan() {
		return corrupt(dictFile, fmt.Errorf("missing header line"))
	}
	if v.numDocs, err = strconv.Atoi(strings.TrimSpace(sc.Text())); err != nil {
		return corrupt(dictFile, fmt.Errorf("bad header: %w", err))
	}
	line := 1
	for sc.Scan() {
		line++
		fields := strings.Split(sc.Text(), "\t")
		if len(fields) != 3 {
			return corrupt(dictFile, fmt.Errorf("line %d: want 3 fields, got %d", line, len(fields)))
		}
		id, err := strconv.Atoi(fields[0])
		if err != nil || id != len(v.tokens) {
			return corrupt(dictFile, fmt.Errorf("line %d: id %q out of sequence", line, fields[0]))
		}
		df, err := strconv.Atoi(fields[2])
		if err != nil {
			return corrupt(dictFile, fmt.Errorf("line %d: bad document frequency: %w", line, err))
		}
		if _, dup := v.token2id[fields[1]]; dup {
			return corrupt(dictFile, fmt.Errorf("line %d: duplicate token %q", line, fields[1]))
		}
		v.token2id[fields[1]] = id
		v.tokens = append(v.tokens, fields[1])
		v.docFreq = append(v.docFreq, df)
	}
	if err := sc.Err(); err != nil {
		return corrupt(dictFile, err)
	}
	return nil
}

func (v *Vocabulary) checkID2Token(store cachestore.Store) error {
	data, err := store.Read(cachestore.Key(v.prefix, id2tokenFile))
	if err != nil {
		return corrupt(id2tokenFile, err)
	}
	var id2token map[int]string
	if err := json.Unmarshal(data, &id2token); err != nil {
		return corrupt(id2tokenFile, err)
	}
	if len(id2token) != len(v.tokens) {
		return corrupt(id2tokenFile, fmt.Errorf("%d entries, dictionary has %d", len(id2token), len(v.tokens)))
	}
	for id, tok := range id2token {
		if id < 0 || id >= len(v.tokens) || v.tokens[id] != tok {
			return corrupt(id2tokenFile, fmt.Errorf("id %d maps to %q, dictionary disagrees", id, tok))
		}
	}
	return nil
}

func (v *Vocabulary) readCategories(store cachestore.Store) error {
	data, err := store.Read(cachestore.Key(v.prefix, categoriesFile))
	if err != nil {
		return corrupt(categoriesFile, err)
	}
	var cats categoryMaps
	if err := json.Unmarshal(data, &cats); err != nil {
		return corrupt(categoriesFile, err)
	}
	if len(cats.ToID) != len(cats.FromID) {
		return corrupt(categoriesFile, fmt.Errorf("forward map has %d entries, reverse has %d", len(cats.ToID), len(cats.FromID)))
	}
	v.categories = make([]string, len(cats.FromID))
	for id := 1; id <= len(cats.FromID); id++ {
		text, ok := cats.FromID[id]
		if !ok || cats.ToID[text] != id {
			return corrupt(categoriesFile, fmt.Errorf("category id %d is not dense or not reversible", id))
		}
		v.categories[id-1] = text
		v.category2id[text] = id
	}
	return nil
}

// readManifest is lenient: caches written without a manifest load with a
// zero fingerprint.
func (v *Vocabulary) readManifest(store cachestore.Store) error {
	key := cachestore.Key(v.prefix, manifestFile)
	ok, err := store.Exists(key)
	if err != nil {
		return fmt.Errorf("checking vocabulary manifest: %w", err)
	}
	if !ok {
		return nil
	}
	data, err := store.Read(key)
	if err != nil {
		return corrupt(manifestFile, err)
	}
	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return corrupt(manifestFile, err)
	}
	if m.Tokens != len(v.tokens) || m.Categories != len(v.categories) {
		return corrupt(manifestFile, fmt.Errorf("manifest records %d tokens/%d categories, files hold %d/%d",
			m.Tokens, m.Categories, len(v.tokens), len(v.categories)))
	}
	v.fingerprint = m.Fingerprint
	return nil
}

func corrupt(file string, err error) error {
	return fmt.Errorf("vocabulary %s: %w: %w", file, apperrors.ErrCorruptCache, err)
}
