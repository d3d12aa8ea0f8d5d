package deps

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/savichev/reputa/internal/compute"
	"github.com/savichev/reputa/internal/storage"
)

// MemberActivityResolver — зависимость "member_activity".
//
// Та же постраничная схема, что и у community_votes, но страница уже несёт
// полные записи — отдельных запросов деталей нет.
// Артефакт: deps/<snapshotID>/member_activity.json.
type MemberActivityResolver struct {
	// BaseURL — адрес внешнего API сообщества.
	BaseURL string

	// Store — хранилище артефактов.
	Store storage.ObjectStore

	// Client — HTTP-клиент. Nil — клиент с дефолтным таймаутом.
	Client *http.Client

	// PageLimit — размер страницы.
	PageLimit int
}

// Key возвращает имя зависимости.
func (r *MemberActivityResolver) Key() string { return "member_activity" }

// activityPage — страница журнала активности.
type activityPage struct {
	Items []struct {
		MemberID     string  `json:"member_id"`
		LastActiveAt string  `json:"last_active_at"`
		Score        float64 `json:"score"`
	} `json:"items"`
	NextCursor string `json:"next_cursor"`
}

// Resolve материализует артефакт активности.
func (r *MemberActivityResolver) Resolve(ctx context.Context, snapshotID string) error {
	var records []compute.ActivityRecord

	cursor := ""
	for {
		page, err := r.fetchPage(ctx, cursor)
		if err != nil {
			return err
		}

		for _, item := range page.Items {
			records = append(records, compute.ActivityRecord{
				MemberID:     item.MemberID,
				LastActiveAt: item.LastActiveAt,
				Score:        item.Score,
			})
		}

		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}

	key := storage.ArtifactKey(storage.NamespaceDeps, snapshotID, "member_activity.json")
	if _, err := storage.PutJSON(ctx, r.Store, key, records); err != nil {
		return fmt.Errorf("materialize %s: %w", key, err)
	}
	return nil
}

// fetchPage забирает одну страницу журнала активности.
func (r *MemberActivityResolver) fetchPage(ctx context.Context, cursor string) (*activityPage, error) {
	limit := r.PageLimit
	if limit <= 0 {
		limit = defaultPageLimit
	}

	q := url.Values{"limit": {strconv.Itoa(limit)}}
	if cursor != "" {
		q.Set("cursor", cursor)
	}

	client := r.Client
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}

	rawURL := r.BaseURL + "/activity?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", ErrFetch, err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: GET %s: HTTP %d", ErrFetch, rawURL, resp.StatusCode)
	}

	var page activityPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrFetch, rawURL, err)
	}
	return &page, nil
}
