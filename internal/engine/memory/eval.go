package memory

import (
	"math"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/internal/searcher/query"
	apperrors "github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/pkg/errors"
)

// eval returns the score of every document matching q. Callers hold ix.mu.
func (ix *index) eval(q query.Query) (map[string]float64, error) {
	switch q := q.(type) {
	case *query.MatchAll:
		out := make(map[string]float64, len(ix.docs))
		for id := range ix.docs {
			out[id] = 1
		}
		return out, nil
	case *query.MultiMatch:
		return ix.evalMultiMatch(q)
	case *query.Bool:
		return ix.evalBool(q)
	case *query.FunctionScore:
		return ix.evalFunctionScore(q)
	case nil:
		return nil, apperrors.Validationf("empty query clause")
	default:
		return nil, apperrors.Validationf("unsupported query clause %T", q)
	}
}

func (ix *index) evalBool(q *query.Bool) (map[string]float64, error) {
	var out map[string]float64
	for i, clause := range q.Must {
		scores, err := ix.eval(clause)
		if err != nil {
			return nil, err
		}
		if i == 0 {
			out = scores
			continue
		}
		for id := range out {
			s, ok := scores[id]
			if !ok {
				delete(out, id)
				continue
			}
			out[id] += s
		}
	}
	if len(q.Must) == 0 {
		out = make(map[string]float64)
		if len(q.Should) == 0 {
			// An empty bool matches everything.
			for id := range ix.docs {
				out[id] = 1
			}
			return out, nil
		}
	}
	for _, clause := range q.Should {
		scores, err := ix.eval(clause)
		if err != nil {
			return nil, err
		}
		for id, s := range scores {
			if _, ok := out[id]; ok || len(q.Must) == 0 {
				out[id] += s
			}
		}
	}
	return out, nil
}

func (ix *index) evalFunctionScore(q *query.FunctionScore) (map[string]float64, error) {
	if q.ScoreMode != query.ModeSum || q.BoostMode != query.ModeSum {
		return nil, apperrors.Validationf("function_score supports only sum modes, got %s/%s", q.ScoreMode, q.BoostMode)
	}
	inner := q.Query
	if inner == nil {
		inner = &query.MatchAll{}
	}
	scores, err := ix.eval(inner)
	if err != nil {
		return nil, err
	}
	for id := range scores {
		doc := ix.docs[id]
		for _, fn := range q.Functions {
			v, ok := doc.Number(fn.Field)
			if !ok {
				v = fn.Missing
			}
			boost, err := applyModifier(fn.Modifier, fn.Factor*v)
			if err != nil {
				return nil, err
			}
			scores[id] += boost
		}
	}
	return scores, nil
}

// applyModifier follows the engine's field_value_factor modifiers; log
// variants are base 10 except ln/ln1p/ln2p.
func applyModifier(modifier string, v float64) (float64, error) {
	switch modifier {
	case "", query.ModifierNone:
		return v, nil
	case query.ModifierLog1p:
		return math.Log10(1 + math.Max(v, 0)), nil
	case "log2p":
		return math.Log10(2 + math.Max(v, 0)), nil
	case "ln1p":
		return math.Log1p(math.Max(v, 0)), nil
	case "ln2p":
		return math.Log(2 + math.Max(v, 0)), nil
	case "sqrt":
		return math.Sqrt(math.Max(v, 0)), nil
	case "square":
		return v * v, nil
	case "reciprocal":
		if v == 0 {
			return 0, nil
		}
		return 1 / v, nil
	}
	return 0, apperrors.Validationf("unsupported field_value_factor modifier %q", modifier)
}

// positionGroup is the set of alternative query terms at one position.
type positionGroup struct {
	offset int
	terms  []string
}

func (ix *index) queryGroups(text string) []positionGroup {
	tokens := analyze(ix.analyzer, text)
	if len(tokens) == 0 {
		return nil
	}
	byPos := make(map[int][]string)
	var order []int
	for _, t := range tokens {
		if _, seen := byPos[t.Position]; !seen {
			order = append(order, t.Position)
		}
		if !containsString(byPos[t.Position], t.Term) {
			byPos[t.Position] = append(byPos[t.Position], t.Term)
		}
	}
	sort.Ints(order)
	groups := make([]positionGroup, 0, len(order))
	for _, p := range order {
		groups = append(groups, positionGroup{offset: p - order[0], terms: byPos[p]})
	}
	return groups
}

func (ix *index) evalMultiMatch(q *query.MultiMatch) (map[string]float64, error) {
	groups := ix.queryGroups(q.Query)
	out := make(map[string]float64)
	if len(groups) == 0 {
		return out, nil
	}
	for _, field := range q.Fields {
		fi, ok := ix.fields[field.Name]
		if !ok {
			continue
		}
		var scores map[string]float64
		switch q.Type {
		case query.TypePhrase:
			scores = ix.phraseScores(fi, groups, q.Slop)
		case "", query.TypeBestFields:
			scores = ix.termScores(fi, groups, q.Fuzziness == query.FuzzinessAuto, q.Operator == query.OperatorAnd)
		default:
			return nil, apperrors.Validationf("unsupported multi_match type %q", q.Type)
		}
		boost := field.EffectiveBoost() * ix.mappingBoost(field.Name)
		for id, s := range scores {
			// best_fields keeps the best single field.
			if s*boost > out[id] {
				out[id] = s * boost
			}
		}
	}
	return out, nil
}

// mappingBoost is the index-time boost of a text field, multiplied into every
// query-side boost the way the engine applies mapping boosts at query time.
func (ix *index) mappingBoost(name string) float64 {
	if f, ok := ix.def.Field(name); ok && f.Boost > 0 {
		return f.Boost
	}
	return 1
}

// termScores scores each document by summing, per query position, the best
// BM25 contribution of any alternative term or fuzzy variant. With requireAll
// every position must match.
func (ix *index) termScores(fi *fieldIndex, groups []positionGroup, fuzzy bool, requireAll bool) map[string]float64 {
	params := rankParams{TotalDocs: len(ix.docs), AvgDocLength: fi.avgLength()}
	var vocab []string
	if fuzzy {
		vocab = fi.terms()
	}
	out := make(map[string]float64)
	hits := make(map[string]int)
	for _, g := range groups {
		best := make(map[string]float64)
		for _, term := range g.terms {
			for _, cand := range candidates(term, vocab, fuzzy) {
				docs := fi.lookup(cand.term)
				for id, p := range docs {
					s := bm25(float64(p.Frequency), len(docs), fi.lengths[id], params) * cand.weight
					if s > best[id] {
						best[id] = s
					}
				}
			}
		}
		for id, s := range best {
			out[id] += s
			hits[id]++
		}
	}
	if requireAll {
		for id := range out {
			if hits[id] < len(groups) {
				delete(out, id)
			}
		}
	}
	return out
}

type candidate struct {
	term   string
	weight float64
}

// candidates lists the index terms a query term matches. Fuzzy variants are
// weighted down by their edit distance.
func candidates(term string, vocab []string, fuzzy bool) []candidate {
	out := []candidate{{term: term, weight: 1}}
	if !fuzzy {
		return out
	}
	limit := autoEdits(term)
	if limit == 0 {
		return out
	}
	n := float64(len([]rune(term)))
	for _, v := range vocab {
		if v == term {
			continue
		}
		if d := levenshtein(term, v, limit); d <= limit {
			out = append(out, candidate{term: v, weight: 1 - float64(d)/(n+1)})
		}
	}
	return out
}

// phraseScores matches the query positions in order with at most slop total
// displacement and scores by phrase frequency.
func (ix *index) phraseScores(fi *fieldIndex, groups []positionGroup, slop int) map[string]float64 {
	params := rankParams{TotalDocs: len(ix.docs), AvgDocLength: fi.avgLength()}
	var idf float64
	perGroup := make([]map[string][]int, len(groups))
	for i, g := range groups {
		perGroup[i] = make(map[string][]int)
		maxDF := 0
		for _, term := range g.terms {
			docs := fi.lookup(term)
			maxDF = max(maxDF, len(docs))
			for id, p := range docs {
				perGroup[i][id] = append(perGroup[i][id], p.Positions...)
			}
		}
		if maxDF == 0 {
			return nil
		}
		idf += computeIDF(params.TotalDocs, maxDF)
	}

	out := make(map[string]float64)
	for id := range perGroup[0] {
		lists := make([][]int, len(groups))
		complete := true
		for i := range groups {
			lists[i] = perGroup[i][id]
			if len(lists[i]) == 0 {
				complete = false
				break
			}
		}
		if !complete {
			continue
		}
		freq := phraseFreq(lists, groups, slop)
		if freq == 0 {
			continue
		}
		out[id] = idf * computeTFNorm(float64(freq), float64(fi.lengths[id]), params.AvgDocLength)
	}
	return out
}

// phraseFreq counts start positions from which every later query position
// can be placed within slop total displacement of its expected offset.
func phraseFreq(lists [][]int, groups []positionGroup, slop int) int {
	freq := 0
	for _, start := range lists[0] {
		total := 0
		for i := 1; i < len(groups) && total <= slop; i++ {
			expected := start + groups[i].offset
			best := math.MaxInt
			for _, p := range lists[i] {
				if d := abs(p - expected); d < best {
					best = d
				}
			}
			total += best
		}
		if total <= slop {
			freq++
		}
	}
	return freq
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
