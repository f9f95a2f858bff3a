// Package similarity scores how alike two entities' demand patterns are:
// hospital blood-type needs, staff request patterns and doctors' donor pools
// are all the same set comparison. Sets are built once per entity by the
// repository, then compared with hash-set intersections; no pairwise
// sub-queries.
package similarity

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"

	"bloodlink/internal/domain"
	"bloodlink/internal/ports"
)

const (
	DefaultMinSimilarityPercent = 75.0
	DefaultMonths               = 12
	DefaultLimit                = 50

	CategoryVeryHigh = "very high"
	CategoryHigh     = "high"
	CategoryModerate = "moderate"
	CategoryLow      = "low"

	cacheTTL = time.Minute
)

// Score computes the Jaccard similarity of two sets as a percentage.
// Identical non-empty sets score exactly 100, sidestepping float drift.
func Score(setA, setB []string) ports.SimilarityScore {
	a := toSet(setA)
	b := toSet(setB)

	inter := 0
	for item := range a {
		if _, ok := b[item]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter

	var pct float64
	switch {
	case union == 0:
		pct = 0
	case inter == len(a) && inter == len(b):
		pct = 100
	default:
		pct = float64(inter) / float64(union) * 100
	}

	return ports.SimilarityScore{
		SimilarityPercent: pct,
		Intersection:      inter,
		Union:             union,
		Category:          Category(pct),
	}
}

// DirectionalOverlap is the fraction of B's items also present in A, as a
// percentage. Used for the donor-superset comparison.
func DirectionalOverlap(setA, setB []string) float64 {
	if len(setB) == 0 {
		return 0
	}
	a := toSet(setA)
	b := toSet(setB)
	inter := 0
	for item := range b {
		if _, ok := a[item]; ok {
			inter++
		}
	}
	return float64(inter) / float64(len(b)) * 100
}

// Category labels a similarity score.
func Category(pct float64) string {
	switch {
	case pct >= 90:
		return CategoryVeryHigh
	case pct >= 75:
		return CategoryHigh
	case pct >= 60:
		return CategoryModerate
	default:
		return CategoryLow
	}
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, item := range items {
		set[item] = struct{}{}
	}
	return set
}

type Service struct {
	patterns  ports.PatternRepository
	hospitals ports.HospitalRepository
	cache     ports.AnalyticsCache // may be nil
	logger    *zap.Logger
}

func New(patterns ports.PatternRepository, hospitals ports.HospitalRepository, cache ports.AnalyticsCache, logger *zap.Logger) *Service {
	return &Service{patterns: patterns, hospitals: hospitals, cache: cache, logger: logger}
}

// HospitalBloodPatterns scores every hospital pair by the overlap of their
// requested blood-type sets.
func (s *Service) HospitalBloodPatterns(ctx context.Context, q ports.PatternQuery) ([]ports.SimilarPair, error) {
	q = normalizePatternQuery(q)
	key := fmt.Sprintf("sim:hospitals:%.1f:%d:%d:%d", q.MinSimilarityPercent, q.MinSetSize, q.Months, q.Limit)
	var cached []ports.SimilarPair
	if s.cacheGet(ctx, key, &cached) {
		return cached, nil
	}

	patterns, err := s.patterns.HospitalRequestPatterns(ctx, q.Months, q.MinSetSize)
	if err != nil {
		return nil, err
	}
	pairs := scorePatternPairs(patterns, q.MinSimilarityPercent, q.Limit)
	s.cacheSet(ctx, key, pairs)
	return pairs, nil
}

// StaffRequestPatterns scores staff pairs by the overlap of the blood types
// they have requested.
func (s *Service) StaffRequestPatterns(ctx context.Context, q ports.PatternQuery) ([]ports.SimilarPair, error) {
	q = normalizePatternQuery(q)
	key := fmt.Sprintf("sim:staff:%.1f:%d:%d:%d", q.MinSimilarityPercent, q.MinSetSize, q.Months, q.Limit)
	var cached []ports.SimilarPair
	if s.cacheGet(ctx, key, &cached) {
		return cached, nil
	}

	patterns, err := s.patterns.StaffRequestPatterns(ctx, q.Months, q.MinSetSize)
	if err != nil {
		return nil, err
	}
	pairs := scorePatternPairs(patterns, q.MinSimilarityPercent, q.Limit)
	s.cacheSet(ctx, key, pairs)
	return pairs, nil
}

// DoctorDonorSupersets scores ordered doctor pairs (A,B) by the fraction of
// B's donors that also donate through A, alongside the symmetric Jaccard
// score.
func (s *Service) DoctorDonorSupersets(ctx context.Context, q ports.SupersetQuery) ([]ports.SimilarPair, error) {
	if q.MinSimilarityPercent <= 0 {
		q.MinSimilarityPercent = 50
	}
	if q.MinDonorCount <= 0 {
		q.MinDonorCount = 2
	}
	if q.Limit <= 0 {
		q.Limit = DefaultLimit
	}
	scope := "all"
	if q.HospitalID != nil {
		scope = strconv.FormatInt(*q.HospitalID, 10)
	}
	key := fmt.Sprintf("sim:supersets:%s:%d:%.1f:%d", scope, q.MinDonorCount, q.MinSimilarityPercent, q.Limit)
	var cached []ports.SimilarPair
	if s.cacheGet(ctx, key, &cached) {
		return cached, nil
	}

	sets, err := s.patterns.DoctorDonorSets(ctx, q.HospitalID, q.MinDonorCount)
	if err != nil {
		return nil, err
	}

	items := make([][]string, len(sets))
	for i, set := range sets {
		ids := make([]string, len(set.DonorIDs))
		for j, id := range set.DonorIDs {
			ids[j] = strconv.FormatInt(id, 10)
		}
		items[i] = ids
	}

	var pairs []ports.SimilarPair
	for i := range sets {
		for j := range sets {
			if i == j {
				continue
			}
			overlap := DirectionalOverlap(items[i], items[j])
			if overlap < q.MinSimilarityPercent {
				continue
			}
			score := Score(items[i], items[j])
			o := overlap
			pairs = append(pairs, ports.SimilarPair{
				AID:              sets[i].StaffID,
				AName:            sets[i].StaffName,
				BID:              sets[j].StaffID,
				BName:            sets[j].StaffName,
				Score:            score,
				SharedItems:      sharedItems(items[i], items[j]),
				CombinedActivity: len(sets[i].DonorIDs) + len(sets[j].DonorIDs),
				OverlapPercent:   &o,
			})
		}
	}
	rankPairs(pairs)
	if len(pairs) > q.Limit {
		pairs = pairs[:q.Limit]
	}
	s.cacheSet(ctx, key, pairs)
	return pairs, nil
}

// IdenticalNeeds finds hospitals whose shortage blood-type set exactly equals
// the reference hospital's.
func (s *Service) IdenticalNeeds(ctx context.Context, q ports.IdenticalNeedsQuery) ([]ports.IdenticalNeedsRow, error) {
	if q.Days <= 0 {
		q.Days = 30
	}
	if q.MinShortagePercent <= 0 {
		q.MinShortagePercent = 25
	}
	if q.Limit <= 0 {
		q.Limit = DefaultLimit
	}

	// Resolving the reference first gives a proper not-found for bad ids even
	// when it currently has no shortages.
	ref, err := s.hospitals.GetHospital(ctx, q.ReferenceHospitalID)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("sim:identical:%d:%d:%.1f:%d", q.ReferenceHospitalID, q.Days, q.MinShortagePercent, q.Limit)
	var cached []ports.IdenticalNeedsRow
	if s.cacheGet(ctx, key, &cached) {
		return cached, nil
	}

	profiles, err := s.patterns.HospitalShortageProfiles(ctx, q.Days, q.MinShortagePercent)
	if err != nil {
		return nil, err
	}

	var refTypes []string
	for _, p := range profiles {
		if p.HospitalID == q.ReferenceHospitalID {
			refTypes = bloodTypeStrings(p.ShortTypes)
			break
		}
	}
	if len(refTypes) == 0 {
		return []ports.IdenticalNeedsRow{}, nil
	}

	var rows []ports.IdenticalNeedsRow
	for _, p := range profiles {
		if p.HospitalID == q.ReferenceHospitalID {
			continue
		}
		if Score(refTypes, bloodTypeStrings(p.ShortTypes)).SimilarityPercent != 100 {
			continue
		}
		types := append([]domain.BloodType(nil), p.ShortTypes...)
		sortBloodTypes(types)
		rows = append(rows, ports.IdenticalNeedsRow{
			HospitalID:            p.HospitalID,
			HospitalName:          p.Name,
			City:                  p.City,
			Region:                p.Region,
			BloodTypes:            types,
			BloodTypeCount:        len(types),
			ReferenceHospitalName: ref.Name,
		})
		if len(rows) == q.Limit {
			break
		}
	}
	if rows == nil {
		rows = []ports.IdenticalNeedsRow{}
	}
	s.cacheSet(ctx, key, rows)
	return rows, nil
}

func normalizePatternQuery(q ports.PatternQuery) ports.PatternQuery {
	if q.MinSimilarityPercent <= 0 {
		q.MinSimilarityPercent = DefaultMinSimilarityPercent
	}
	if q.MinSetSize <= 0 {
		q.MinSetSize = 1
	}
	if q.Months <= 0 {
		q.Months = DefaultMonths
	}
	if q.Limit <= 0 {
		q.Limit = DefaultLimit
	}
	return q
}

func scorePatternPairs(patterns []ports.EntityPattern, minPercent float64, limit int) []ports.SimilarPair {
	items := make([][]string, len(patterns))
	for i, p := range patterns {
		items[i] = bloodTypeStrings(p.BloodTypes)
	}

	pairs := []ports.SimilarPair{}
	for i := 0; i < len(patterns); i++ {
		for j := i + 1; j < len(patterns); j++ {
			score := Score(items[i], items[j])
			if score.SimilarityPercent < minPercent {
				continue
			}
			pairs = append(pairs, ports.SimilarPair{
				AID:              patterns[i].EntityID,
				AName:            patterns[i].Name,
				BID:              patterns[j].EntityID,
				BName:            patterns[j].Name,
				Score:            score,
				SharedItems:      sharedItems(items[i], items[j]),
				CombinedActivity: patterns[i].ActivityCount + patterns[j].ActivityCount,
			})
		}
	}
	rankPairs(pairs)
	if len(pairs) > limit {
		pairs = pairs[:limit]
	}
	return pairs
}

// rankPairs orders by similarity, then raw intersection size, then combined
// activity, all descending.
func rankPairs(pairs []ports.SimilarPair) {
	sort.SliceStable(pairs, func(i, j int) bool {
		if pairs[i].Score.SimilarityPercent != pairs[j].Score.SimilarityPercent {
			return pairs[i].Score.SimilarityPercent > pairs[j].Score.SimilarityPercent
		}
		if pairs[i].Score.Intersection != pairs[j].Score.Intersection {
			return pairs[i].Score.Intersection > pairs[j].Score.Intersection
		}
		return pairs[i].CombinedActivity > pairs[j].CombinedActivity
	})
}

func sharedItems(a, b []string) []string {
	bs := toSet(b)
	var shared []string
	seen := map[string]bool{}
	for _, item := range a {
		if _, ok := bs[item]; ok && !seen[item] {
			seen[item] = true
			shared = append(shared, item)
		}
	}
	sort.Strings(shared)
	return shared
}

func bloodTypeStrings(types []domain.BloodType) []string {
	out := make([]string, len(types))
	for i, bt := range types {
		out[i] = string(bt)
	}
	return out
}

func sortBloodTypes(types []domain.BloodType) {
	order := make(map[domain.BloodType]int, len(domain.BloodTypes))
	for i, bt := range domain.BloodTypes {
		order[bt] = i
	}
	sort.Slice(types, func(i, j int) bool { return order[types[i]] < order[types[j]] })
}

func (s *Service) cacheGet(ctx context.Context, key string, dest any) bool {
	if s.cache == nil {
		return false
	}
	found, err := s.cache.Get(ctx, key, dest)
	if err != nil {
		s.logger.Warn("similarity cache read failed", zap.String("key", key), zap.Error(err))
		return false
	}
	return found
}

func (s *Service) cacheSet(ctx context.Context, key string, value any) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, value, cacheTTL); err != nil {
		s.logger.Warn("similarity cache write failed", zap.String("key", key), zap.Error(err))
	}
}
