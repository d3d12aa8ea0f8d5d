package deps

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/savichev/reputa/internal/compute"
	"github.com/savichev/reputa/internal/storage"
)

// Default configuration values.
const (
	defaultPageLimit   = 200
	defaultConcurrency = 4
	defaultHTTPTimeout = 30 * time.Second
)

// CommunityVotesResolver — зависимость "community_votes".
//
// Выкачивает реестр участников постранично (cursor-цикл: fetchPage(cursor)
// до пустого next_cursor), для каждого участника страницы забирает
// статистику голосования с ограниченной конкурентностью, нормализует в
// []compute.VoteRecord и записывает deps/<snapshotID>/community_votes.json.
type CommunityVotesResolver struct {
	// BaseURL — адрес внешнего API сообщества.
	BaseURL string

	// Store — хранилище артефактов.
	Store storage.ObjectStore

	// Client — HTTP-клиент. Nil — клиент с дефолтным таймаутом.
	Client *http.Client

	// PageLimit — размер страницы реестра.
	PageLimit int

	// Concurrency — ограничение на параллельные запросы деталей.
	Concurrency int
}

// Key возвращает имя зависимости.
func (r *CommunityVotesResolver) Key() string { return "community_votes" }

// membersPage — страница реестра участников.
type membersPage struct {
	Items []struct {
		MemberID string `json:"member_id"`
	} `json:"items"`
	NextCursor string `json:"next_cursor"`
}

// votingStats — статистика голосования одного участника.
type votingStats struct {
	VotesCast     float64 `json:"votes_cast"`
	VotesReceived float64 `json:"votes_received"`
	Proposals     float64 `json:"proposals"`
}

// Resolve материализует артефакт голосований.
func (r *CommunityVotesResolver) Resolve(ctx context.Context, snapshotID string) error {
	var records []compute.VoteRecord

	cursor := ""
	for {
		page, err := r.fetchPage(ctx, cursor)
		if err != nil {
			return err
		}

		pageRecords, err := r.fetchDetails(ctx, page)
		if err != nil {
			return err
		}
		records = append(records, pageRecords...)

		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}

	key := storage.ArtifactKey(storage.NamespaceDeps, snapshotID, "community_votes.json")
	if _, err := storage.PutJSON(ctx, r.Store, key, records); err != nil {
		return fmt.Errorf("materialize %s: %w", key, err)
	}
	return nil
}

// fetchPage забирает одну страницу реестра участников.
func (r *CommunityVotesResolver) fetchPage(ctx context.Context, cursor string) (*membersPage, error) {
	limit := r.PageLimit
	if limit <= 0 {
		limit = defaultPageLimit
	}

	q := url.Values{"limit": {strconv.Itoa(limit)}}
	if cursor != "" {
		q.Set("cursor", cursor)
	}

	var page membersPage
	if err := r.getJSON(ctx, r.BaseURL+"/members?"+q.Encode(), &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// fetchDetails забирает статистику голосования участников страницы
// с ограниченной конкурентностью.
func (r *CommunityVotesResolver) fetchDetails(ctx context.Context, page *membersPage) ([]compute.VoteRecord, error) {
	concurrency := r.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}

	records := make([]compute.VoteRecord, len(page.Items))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, item := range page.Items {
		g.Go(func() error {
			var stats votingStats
			if err := r.getJSON(gCtx, r.BaseURL+"/members/"+url.PathEscape(item.MemberID)+"/voting", &stats); err != nil {
				return err
			}
			records[i] = compute.VoteRecord{
				MemberID:      item.MemberID,
				VotesCast:     stats.VotesCast,
				VotesReceived: stats.VotesReceived,
				Proposals:     stats.Proposals,
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return records, nil
}

// getJSON выполняет GET и десериализует JSON-ответ.
func (r *CommunityVotesResolver) getJSON(ctx context.Context, rawURL string, out any) error {
	client := r.Client
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("%w: create request: %v", ErrFetch, err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: GET %s: HTTP %d", ErrFetch, rawURL, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrFetch, rawURL, err)
	}
	return nil
}
