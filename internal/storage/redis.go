package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// RedisStore keeps the workspaces collection in Redis: one hash per document
// at <prefix>:<doc_id> plus a set of doc ids per owner at
// <prefix>:by_owner:<user_id>.
type RedisStore struct {
	rdb    *goredis.Client
	prefix string
}

// OpenRedis connects to addr and verifies the connection with PING.
func OpenRedis(ctx context.Context, addr, prefix string) (*RedisStore, error) {
	if strings.TrimSpace(addr) == "" {
		return nil, fmt.Errorf("missing redis address")
	}
	if prefix == "" {
		prefix = "workspaces"
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RedisStore{rdb: rdb, prefix: prefix}, nil
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}

func (s *RedisStore) docKey(docID string) string {
	return s.prefix + ":" + docID
}

func (s *RedisStore) ownerKey(ownerID string) string {
	return s.prefix + ":by_owner:" + ownerID
}

func (s *RedisStore) AddWorkspace(ctx context.Context, doc WorkspaceDoc) (string, error) {
	if doc.DocID == "" {
		doc.DocID = uuid.New().String()
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now()
	}

	_, err := s.rdb.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		p.HSet(ctx, s.docKey(doc.DocID), map[string]any{
			"workspace_id": doc.WorkspaceID,
			"user_id":      doc.OwnerID,
			"name":         doc.Name,
			"created_at":   doc.CreatedAt.UTC().Format(isoLayout),
		})
		p.SAdd(ctx, s.ownerKey(doc.OwnerID), doc.DocID)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("writing workspace doc: %w", err)
	}
	return doc.DocID, nil
}

func (s *RedisStore) GetWorkspace(ctx context.Context, docID string) (WorkspaceDoc, error) {
	fields, err := s.rdb.HGetAll(ctx, s.docKey(docID)).Result()
	if err != nil {
		return WorkspaceDoc{}, err
	}
	if len(fields) == 0 {
		return WorkspaceDoc{}, ErrNotFound
	}
	return docFromHash(docID, fields)
}

// ListWorkspaces returns the owner's documents oldest first. Index entries
// whose hash has disappeared are skipped.
func (s *RedisStore) ListWorkspaces(ctx context.Context, ownerID string) ([]WorkspaceDoc, error) {
	ids, err := s.rdb.SMembers(ctx, s.ownerKey(ownerID)).Result()
	if err != nil {
		return nil, fmt.Errorf("reading owner index: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	cmds := make([]*goredis.MapStringStringCmd, len(ids))
	_, err = s.rdb.Pipelined(ctx, func(p goredis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = p.HGetAll(ctx, s.docKey(id))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reading workspace docs: %w", err)
	}

	results := make([]WorkspaceDoc, 0, len(ids))
	for i, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		d, err := docFromHash(ids[i], fields)
		if err != nil {
			return nil, err
		}
		results = append(results, d)
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].CreatedAt.Equal(results[j].CreatedAt) {
			return results[i].DocID < results[j].DocID
		}
		return results[i].CreatedAt.Before(results[j].CreatedAt)
	})
	return results, nil
}

func (s *RedisStore) DeleteWorkspace(ctx context.Context, docID string) error {
	ownerID, err := s.rdb.HGet(ctx, s.docKey(docID), "user_id").Result()
	if err == goredis.Nil {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	_, err = s.rdb.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		p.Del(ctx, s.docKey(docID))
		p.SRem(ctx, s.ownerKey(ownerID), docID)
		return nil
	})
	return err
}

func docFromHash(docID string, fields map[string]string) (WorkspaceDoc, error) {
	t, err := time.Parse(time.RFC3339, fields["created_at"])
	if err != nil {
		return WorkspaceDoc{}, fmt.Errorf("parsing created_at for %s: %w", docID, err)
	}
	return WorkspaceDoc{
		DocID:       docID,
		WorkspaceID: fields["workspace_id"],
		OwnerID:     fields["user_id"],
		Name:        fields["name"],
		CreatedAt:   t,
	}, nil
}
