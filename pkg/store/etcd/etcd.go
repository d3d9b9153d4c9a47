// Package etcd provides an etcd backend for the configuration store.
//
// Key layout under the configured prefix:
//
//	<prefix>/revision              last committed revision
//	<prefix>/objects/<type>/<name> JSON property bag (singletons use an empty name)
//
// Every commit is one etcd transaction guarded on the previous revision, so
// two servers sharing a prefix cannot silently overwrite each other.
package etcd

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/msgsight/cfgd/pkg/object"
	"github.com/msgsight/cfgd/pkg/store"
)

// DefaultPrefix is the key prefix used when none is configured.
const DefaultPrefix = "/cfgd/v1"

// Config configures the etcd backend.
type Config struct {
	Endpoints   []string
	Prefix      string
	DialTimeout time.Duration
}

// Store implements store.Backend against etcd.
type Store struct {
	client *clientv3.Client
	prefix string
}

// New dials the etcd cluster. The caller must call Close when finished.
func New(cfg Config) (*Store, error) {
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultPrefix
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	client, err := clientv3.New(clientv3.Config{
		Endpoints:   cfg.Endpoints,
		DialTimeout: cfg.DialTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("etcd dial: %w", err)
	}
	return &Store{client: client, prefix: strings.TrimSuffix(cfg.Prefix, "/")}, nil
}

func (s *Store) revisionKey() string { return s.prefix + "/revision" }

func (s *Store) objectsPrefix() string { return s.prefix + "/objects/" }

func (s *Store) objectKey(objectType, name string) string {
	return s.objectsPrefix() + objectType + "/" + name
}

// Name implements store.Backend.
func (s *Store) Name() string { return string(store.BackendEtcd) }

// Load implements store.Backend. The revision key and the objects are read
// at the same etcd revision.
func (s *Store) Load(ctx context.Context) (*store.Snapshot, error) {
	revResp, err := s.client.Get(ctx, s.revisionKey())
	if err != nil {
		return nil, fmt.Errorf("etcd get %q: %w", s.revisionKey(), err)
	}
	if len(revResp.Kvs) == 0 {
		return nil, nil
	}
	revision, err := strconv.ParseUint(string(revResp.Kvs[0].Value), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse revision: %w", err)
	}

	resp, err := s.client.Get(ctx, s.objectsPrefix(), clientv3.WithPrefix(), clientv3.WithRev(revResp.Header.Revision))
	if err != nil {
		return nil, fmt.Errorf("etcd list %q: %w", s.objectsPrefix(), err)
	}
	objs := make([]*object.Object, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		rest := strings.TrimPrefix(string(kv.Key), s.objectsPrefix())
		objectType, name, ok := strings.Cut(rest, "/")
		if !ok {
			return nil, fmt.Errorf("malformed key %q", kv.Key)
		}
		o := &object.Object{Type: objectType, Name: name}
		if err := json.Unmarshal(kv.Value, &o.Properties); err != nil {
			return nil, fmt.Errorf("unmarshal %q: %w", kv.Key, err)
		}
		objs = append(objs, o)
	}
	return store.NewSnapshot(revision, objs), nil
}

// Commit implements store.Backend. It returns store.ErrConflict when the
// durable revision is not the one this commit was built on.
func (s *Store) Commit(ctx context.Context, c *store.Commit) error {
	ops := make([]clientv3.Op, 0, len(c.Changes)+1)
	for _, ch := range c.Changes {
		k := s.objectKey(ch.Object.Type, ch.Object.Name)
		switch ch.Op {
		case store.OpPut:
			data, err := json.Marshal(ch.Object.Properties)
			if err != nil {
				return fmt.Errorf("marshal: %w", err)
			}
			ops = append(ops, clientv3.OpPut(k, string(data)))
		case store.OpDelete:
			ops = append(ops, clientv3.OpDelete(k))
		}
	}
	ops = append(ops, clientv3.OpPut(s.revisionKey(), strconv.FormatUint(c.Revision, 10)))

	var guard clientv3.Cmp
	if c.Revision <= 1 {
		guard = clientv3.Compare(clientv3.Version(s.revisionKey()), "=", 0)
	} else {
		guard = clientv3.Compare(clientv3.Value(s.revisionKey()), "=", strconv.FormatUint(c.Revision-1, 10))
	}

	resp, err := s.client.Txn(ctx).If(guard).Then(ops...).Commit()
	if err != nil {
		return fmt.Errorf("etcd txn: %w", err)
	}
	if !resp.Succeeded {
		return store.ErrConflict
	}
	return nil
}

// Close releases the underlying etcd client connection.
func (s *Store) Close() error {
	return s.client.Close()
}
