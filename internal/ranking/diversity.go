package ranking

import (
	"math"
	"sort"

	"github.com/wavecue/sonora/internal/model"
)

// Diversifier runs genre slot allocation followed by per-bucket MMR
// selection (spec §4.8), grounded on the pack's cosine-similarity MMR
// reference but reworked around bucketed, slot-constrained selection
// instead of a single flat pass.
type Diversifier struct {
	lambda      float64
	minPerGenre int
}

// NewDiversifier builds a Diversifier. lambda outside [0,1] falls back to
// 0.70; minPerGenre < 0 falls back to 2, matching spec defaults.
func NewDiversifier(lambda float64, minPerGenre int) Diversifier {
	if lambda < 0 || lambda > 1 {
		lambda = 0.70
	}
	if minPerGenre < 0 {
		minPerGenre = 2
	}
	return Diversifier{lambda: lambda, minPerGenre: minPerGenre}
}

// Blended is a Scored candidate carrying the rerank-blended relevance score
// the Diversifier selects on (rel(c) in the spec's MMR formula). MMR is set
// to the score it was selected under once the Diversifier has placed it;
// zero for items that never entered the ranked-and-diversified output.
type Blended struct {
	Scored
	Blended float64
	MMR     float64
}

// candidateRef is one item pending selection, paired with the genre bucket
// it is drawn from.
type candidateRef struct {
	item  Blended
	genre string
}

// Diversify selects the top n items from ranked (already sorted by blended
// relevance upstream) using bucketed MMR. Returns the items in selection
// order, which is S's insertion order per spec §4.8.
func (d Diversifier) Diversify(ranked []Blended, n int) []Blended {
	if n <= 0 || len(ranked) == 0 {
		return nil
	}

	buckets := bucketByGenre(ranked)
	slots := d.allocateSlots(buckets, n)

	remaining := make(map[string][]Blended, len(buckets))
	for g, items := range buckets {
		remaining[g] = items
	}

	selected := make([]Blended, 0, n)
	var selectedEmbeddings [][]float32

	for len(selected) < n {
		ref, score, ok := pickBestMMR(remaining, slots, selectedEmbeddings, d.lambda)
		if !ok {
			break
		}
		ref.item.MMR = score
		selected = append(selected, ref.item)
		selectedEmbeddings = append(selectedEmbeddings, ref.item.Candidate.Embedding)
		removeFromBucket(remaining, ref)
		slots[ref.genre]--
	}

	// Unconstrained fill: the bucketed pass stops once every bucket with
	// remaining slots has run dry. If that leaves fewer than n selected,
	// spend whatever is left in any bucket by the same MMR rule.
	for len(selected) < n {
		ref, score, ok := pickBestUnconstrained(remaining, selectedEmbeddings, d.lambda)
		if !ok {
			break
		}
		ref.item.MMR = score
		selected = append(selected, ref.item)
		selectedEmbeddings = append(selectedEmbeddings, ref.item.Candidate.Embedding)
		removeFromBucket(remaining, ref)
	}

	return selected
}

func bucketByGenre(items []Blended) map[string][]Blended {
	buckets := make(map[string][]Blended)
	for _, it := range items {
		g := model.GenreOrUnknown(it.Candidate.Genre)
		buckets[g] = append(buckets[g], it)
	}
	return buckets
}

// allocateSlots implements Phase A of §4.8: a per-genre floor of
// min_per_genre (shrunk to floor(n/g) if the configured floor would itself
// oversubscribe n), then largest-remainder distribution of whatever slots
// remain, proportional to bucket size, never exceeding a bucket's size.
func (d Diversifier) allocateSlots(buckets map[string][]Blended, n int) map[string]int {
	genres := sortedGenres(buckets)
	g := len(genres)
	if g == 0 {
		return map[string]int{}
	}

	floor := d.minPerGenre
	if g*floor > n {
		floor = n / g
	}

	slots := make(map[string]int, g)
	assigned := 0
	for _, genre := range genres {
		s := minInt(floor, len(buckets[genre]))
		slots[genre] = s
		assigned += s
	}

	if remaining := n - assigned; remaining > 0 {
		distributeRemainder(genres, buckets, slots, remaining)
	}
	return slots
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func sortedGenres(buckets map[string][]Blended) []string {
	genres := make([]string, 0, len(buckets))
	for g := range buckets {
		genres = append(genres, g)
	}
	sort.Strings(genres)
	return genres
}

// distributeRemainder hands out the slots left after the per-genre floor,
// proportional to bucket size via largest-remainder rounding (spec §4.8
// step 4), tie-breaking by highest candidate count then genre name (step 5).
func distributeRemainder(genres []string, buckets map[string][]Blended, slots map[string]int, remaining int) {
	total := 0
	for _, genre := range genres {
		total += len(buckets[genre])
	}
	if total == 0 {
		return
	}

	type share struct {
		genre string
		frac  float64
	}
	shares := make([]share, 0, len(genres))
	floorSum := 0
	for _, genre := range genres {
		capLeft := len(buckets[genre]) - slots[genre]
		if capLeft <= 0 {
			continue
		}
		exact := float64(remaining) * float64(len(buckets[genre])) / float64(total)
		f := math.Floor(exact)
		add := minInt(int(f), capLeft)
		slots[genre] += add
		floorSum += add
		shares = append(shares, share{genre: genre, frac: exact - f})
	}

	left := remaining - floorSum
	sort.Slice(shares, func(i, j int) bool {
		if shares[i].frac != shares[j].frac {
			return shares[i].frac > shares[j].frac
		}
		ci, cj := len(buckets[shares[i].genre]), len(buckets[shares[j].genre])
		if ci != cj {
			return ci > cj
		}
		return shares[i].genre < shares[j].genre
	})
	for i := 0; left > 0 && i < len(shares); i++ {
		genre := shares[i].genre
		if len(buckets[genre])-slots[genre] <= 0 {
			continue
		}
		slots[genre]++
		left--
	}
}

func removeFromBucket(remaining map[string][]Blended, ref candidateRef) {
	items := remaining[ref.genre]
	for i, it := range items {
		if it.Candidate.ItemID == ref.item.Candidate.ItemID {
			remaining[ref.genre] = append(items[:i], items[i+1:]...)
			return
		}
	}
}

// pickBestMMR scans every bucket that still owes a slot and returns the
// single highest-MMR candidate across all of them (spec §4.8 round-robin
// global selection): descending mmr, then descending rel, then ascending
// item_id.
func pickBestMMR(remaining map[string][]Blended, slots map[string]int, selected [][]float32, lambda float64) (candidateRef, float64, bool) {
	genres := sortedGenresMap(remaining)
	var best candidateRef
	var bestScore, bestRel float64
	found := false
	for _, genre := range genres {
		if slots[genre] <= 0 {
			continue
		}
		for _, item := range remaining[genre] {
			score, rel := mmrScore(item, selected, lambda)
			ref := candidateRef{item: item, genre: genre}
			if !found || better(score, rel, ref.item.Candidate.ItemID, bestScore, bestRel, best.item.Candidate.ItemID) {
				best, bestScore, bestRel, found = ref, score, rel, true
			}
		}
	}
	return best, bestScore, found
}

// pickBestUnconstrained is pickBestMMR without the slot requirement, used
// to fill the result when slot-constrained selection exhausts every bucket
// before reaching n (spec §4.8's unconstrained fill step).
func pickBestUnconstrained(remaining map[string][]Blended, selected [][]float32, lambda float64) (candidateRef, float64, bool) {
	genres := sortedGenresMap(remaining)
	var best candidateRef
	var bestScore, bestRel float64
	found := false
	for _, genre := range genres {
		for _, item := range remaining[genre] {
			score, rel := mmrScore(item, selected, lambda)
			ref := candidateRef{item: item, genre: genre}
			if !found || better(score, rel, ref.item.Candidate.ItemID, bestScore, bestRel, best.item.Candidate.ItemID) {
				best, bestScore, bestRel, found = ref, score, rel, true
			}
		}
	}
	return best, bestScore, found
}

func sortedGenresMap(m map[string][]Blended) []string {
	genres := make([]string, 0, len(m))
	for g := range m {
		genres = append(genres, g)
	}
	sort.Strings(genres)
	return genres
}

// better reports whether (score, rel, id) strictly precedes
// (bestScore, bestRel, bestID) under the spec's MMR tie-break.
func better(score, rel float64, id string, bestScore, bestRel float64, bestID string) bool {
	if score != bestScore {
		return score > bestScore
	}
	if rel != bestRel {
		return rel > bestRel
	}
	return id < bestID
}

func mmrScore(c Blended, selected [][]float32, lambda float64) (score, rel float64) {
	rel = c.Blended
	maxSim := 0.0
	for _, emb := range selected {
		if sim := cosineSimilarity(c.Candidate.Embedding, emb); sim > maxSim {
			maxSim = sim
		}
	}
	score = lambda*rel - (1-lambda)*maxSim
	return score, rel
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
