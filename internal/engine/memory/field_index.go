package memory

import "sort"

// Posting records where a term occurs in one document field.
type Posting struct {
	DocID     string
	Frequency int
	Positions []int
}

// fieldIndex is the inverted index of a single text field.
type fieldIndex struct {
	postings map[string]map[string]*Posting
	lengths  map[string]int
	totalLen int
}

func newFieldIndex() *fieldIndex {
	return &fieldIndex{
		postings: make(map[string]map[string]*Posting),
		lengths:  make(map[string]int),
	}
}

// add indexes tokens for docID. The field length counts positions, so
// synonyms injected at an existing position do not lengthen the field.
func (f *fieldIndex) add(docID string, tokens []Token) {
	termData := make(map[string]*Posting)
	positions := make(map[int]struct{})
	for _, tok := range tokens {
		p, exists := termData[tok.Term]
		if !exists {
			p = &Posting{DocID: docID, Positions: make([]int, 0, 4)}
			termData[tok.Term] = p
		}
		p.Frequency++
		p.Positions = append(p.Positions, tok.Position)
		positions[tok.Position] = struct{}{}
	}
	for term, posting := range termData {
		docs, exists := f.postings[term]
		if !exists {
			docs = make(map[string]*Posting)
			f.postings[term] = docs
		}
		docs[docID] = posting
	}
	f.lengths[docID] = len(positions)
	f.totalLen += len(positions)
}

// remove drops docID from every posting list.
func (f *fieldIndex) remove(docID string) {
	n, ok := f.lengths[docID]
	if !ok {
		return
	}
	for term, docs := range f.postings {
		if _, ok := docs[docID]; ok {
			delete(docs, docID)
			if len(docs) == 0 {
				delete(f.postings, term)
			}
		}
	}
	delete(f.lengths, docID)
	f.totalLen -= n
}

// lookup returns the postings of term keyed by document.
func (f *fieldIndex) lookup(term string) map[string]*Posting {
	return f.postings[term]
}

// terms returns the field vocabulary in sorted order.
func (f *fieldIndex) terms() []string {
	out := make([]string, 0, len(f.postings))
	for t := range f.postings {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func (f *fieldIndex) avgLength() float64 {
	if len(f.lengths) == 0 {
		return 0
	}
	return float64(f.totalLen) / float64(len(f.lengths))
}
