package compute

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/savichev/reputa/internal/domain"
	"github.com/savichev/reputa/internal/storage"
)

// Reference-реализации алгоритмов репутации.
//
// Сама математика — чистые функции над записями в памяти; I/O ограничен
// чтением нормализованного артефакта записей и записью артефакта результата.
// Нормализация исходных данных (включая CSV) выполняется до compute —
// dependency resolver'ами или загрузкой входов.

// VoteRecord — нормализованная запись голосования одного участника.
type VoteRecord struct {
	MemberID      string  `json:"member_id"`
	VotesCast     float64 `json:"votes_cast"`
	VotesReceived float64 `json:"votes_received"`
	Proposals     float64 `json:"proposals"`
}

// PostRecord — количество публикаций участника в категории.
type PostRecord struct {
	MemberID string  `json:"member_id"`
	Category string  `json:"category"`
	Posts    float64 `json:"posts"`
}

// ActivityRecord — последняя активность участника и её базовый вес.
type ActivityRecord struct {
	MemberID     string  `json:"member_id"`
	LastActiveAt string  `json:"last_active_at"` // RFC3339
	Score        float64 `json:"score"`
}

// MemberScore — итоговый балл участника.
type MemberScore struct {
	MemberID string  `json:"member_id"`
	Score    float64 `json:"score"`
}

// votingEngagement — взвешенная сумма голосовательной активности.
//
// score = weight_cast·votes_cast + weight_received·votes_received +
// weight_proposals·proposals. Отсутствующие опциональные веса дают 0
// (поведение исходных алгоритмов, см. DESIGN.md).
func votingEngagement(ctx context.Context, snap *domain.Snapshot, in Inputs, store storage.ObjectStore) (*Result, error) {
	var records []VoteRecord
	if err := readRecords(ctx, store, snap, in.String("votes"), "community_votes", &records); err != nil {
		return nil, err
	}

	wc := in.Number("weight_cast")
	wr := in.Number("weight_received")
	wp := in.Number("weight_proposals")

	scores := make([]MemberScore, 0, len(records))
	for _, rec := range records {
		scores = append(scores, MemberScore{
			MemberID: rec.MemberID,
			Score:    wc*rec.VotesCast + wr*rec.VotesReceived + wp*rec.Proposals,
		})
	}

	return writeScores(ctx, store, snap, "voting_engagement", scores)
}

// contentDiversity — энтропия Шеннона распределения публикаций участника
// по категориям: H = -Σ p·log2(p). Участник, пишущий в одну категорию,
// получает 0.
func contentDiversity(ctx context.Context, snap *domain.Snapshot, in Inputs, store storage.ObjectStore) (*Result, error) {
	var records []PostRecord
	if err := readRecords(ctx, store, snap, in.String("posts"), "member_posts", &records); err != nil {
		return nil, err
	}

	totals := make(map[string]float64)
	byMember := make(map[string][]float64)
	for _, rec := range records {
		if rec.Posts <= 0 {
			continue
		}
		totals[rec.MemberID] += rec.Posts
		byMember[rec.MemberID] = append(byMember[rec.MemberID], rec.Posts)
	}

	scores := make([]MemberScore, 0, len(byMember))
	for memberID, counts := range byMember {
		total := totals[memberID]
		var entropy float64
		for _, n := range counts {
			p := n / total
			entropy -= p * math.Log2(p)
		}
		scores = append(scores, MemberScore{MemberID: memberID, Score: entropy})
	}

	return writeScores(ctx, store, snap, "content_diversity", scores)
}

// activityDecay — экспоненциальное затухание базового балла по давности
// последней активности: score · 2^(-age_days / half_life_days).
func activityDecay(ctx context.Context, snap *domain.Snapshot, in Inputs, store storage.ObjectStore) (*Result, error) {
	var records []ActivityRecord
	if err := readRecords(ctx, store, snap, in.String("activity"), "member_activity", &records); err != nil {
		return nil, err
	}

	halfLife := in.Number("half_life_days")
	if halfLife <= 0 {
		return nil, fmt.Errorf("half_life_days must be positive, got %v", halfLife)
	}

	asOf := time.Now()
	if raw := in.String("as_of"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, fmt.Errorf("parse as_of: %w", err)
		}
		asOf = parsed
	}

	scores := make([]MemberScore, 0, len(records))
	for _, rec := range records {
		lastActive, err := time.Parse(time.RFC3339, rec.LastActiveAt)
		if err != nil {
			return nil, fmt.Errorf("parse last_active_at for %s: %w", rec.MemberID, err)
		}
		ageDays := asOf.Sub(lastActive).Hours() / 24
		if ageDays < 0 {
			ageDays = 0
		}
		scores = append(scores, MemberScore{
			MemberID: rec.MemberID,
			Score:    rec.Score * math.Pow(2, -ageDays/halfLife),
		})
	}

	return writeScores(ctx, store, snap, "activity_decay", scores)
}

// readRecords читает нормализованный артефакт записей.
//
// Если входной параметр задан ссылкой s3://... — читается она; иначе —
// детерминированный артефакт зависимости deps/<snapshotID>/<depName>.json,
// материализованный resolver'ом до запуска compute.
func readRecords(ctx context.Context, store storage.ObjectStore, snap *domain.Snapshot, ref, depName string, out any) error {
	key, ok := storage.Ref(ref).Key()
	if !ok {
		key = storage.ArtifactKey(storage.NamespaceDeps, snap.ID.String(), depName+".json")
	}
	if err := storage.GetJSON(ctx, store, key, out); err != nil {
		return fmt.Errorf("read records: %w", err)
	}
	return nil
}

// writeScores записывает артефакт результата и формирует outputs.
func writeScores(ctx context.Context, store storage.ObjectStore, snap *domain.Snapshot, algoKey string, scores []MemberScore) (*Result, error) {
	key := storage.ArtifactKey(storage.NamespaceResults, snap.ID.String(), algoKey+".json")
	ref, err := storage.PutJSON(ctx, store, key, scores)
	if err != nil {
		return nil, fmt.Errorf("write result: %w", err)
	}

	return &Result{Outputs: map[string]any{
		algoKey:        string(ref),
		"record_count": len(scores),
	}}, nil
}
