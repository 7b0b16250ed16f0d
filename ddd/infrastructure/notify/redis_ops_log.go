package notify

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/google/uuid"

	"compress-service/ddd/domain/gateway"
	"compress-service/pkg/redisclient"
)

// Note 运维频道中的一条消息
type Note struct {
	ID     string    `json:"id"`
	Text   string    `json:"text"`
	Posted time.Time `json:"posted"`
}

// RedisOpsLog keeps live notes in one hash so that operators (and other
// instances) see exactly the notes that are still current.
type RedisOpsLog struct {
	client *redisclient.Client
	now    func() time.Time
}

func NewRedisOpsLog(client *redisclient.Client) *RedisOpsLog {
	return &RedisOpsLog{client: client, now: time.Now}
}

var _ gateway.OpsLog = (*RedisOpsLog)(nil)

func (l *RedisOpsLog) key() string { return l.client.Key("opslog") }

func (l *RedisOpsLog) Post(ctx context.Context, text string) (string, error) {
	n := Note{ID: uuid.NewString(), Text: text, Posted: l.now()}
	body, err := json.Marshal(n)
	if err != nil {
		return "", err
	}
	if err := l.client.Raw().HSet(ctx, l.key(), n.ID, body).Err(); err != nil {
		return "", err
	}
	return n.ID, nil
}

// Retire is idempotent.
func (l *RedisOpsLog) Retire(ctx context.Context, noteID string) error {
	if noteID == "" {
		return nil
	}
	return l.client.Raw().HDel(ctx, l.key(), noteID).Err()
}

// Live returns the current notes, oldest first.
func (l *RedisOpsLog) Live(ctx context.Context) ([]Note, error) {
	raw, err := l.client.Raw().HGetAll(ctx, l.key()).Result()
	if err != nil {
		return nil, err
	}
	notes := make([]Note, 0, len(raw))
	for _, v := range raw {
		var n Note
		if json.Unmarshal([]byte(v), &n) == nil {
			notes = append(notes, n)
		}
	}
	sort.Slice(notes, func(i, j int) bool { return notes[i].Posted.Before(notes[j].Posted) })
	return notes, nil
}
