package tokenstore

import (
	"context"
	"strings"

	perrors "github.com/jrsteele09/go-portal/internal/errors"
)

// ErrKeyNotFound is returned by KV.Get when a key holds no value
var ErrKeyNotFound = perrors.ErrKeyNotFound

// KV is the persisted key-value capability the Store writes through to. Implementations
// must make a completed Set visible to every later Get.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error
}

type namespacedKV struct {
	kv     KV
	prefix string
}

// Namespace scopes every key of kv under ns, so many session contexts can share one backing store
func Namespace(kv KV, ns string) KV {
	return &namespacedKV{kv: kv, prefix: strings.TrimSuffix(ns, ":") + ":"}
}

func (n *namespacedKV) Get(ctx context.Context, key string) (string, error) {
	return n.kv.Get(ctx, n.prefix+key)
}

func (n *namespacedKV) Set(ctx context.Context, key, value string) error {
	return n.kv.Set(ctx, n.prefix+key, value)
}

func (n *namespacedKV) Delete(ctx context.Context, keys ...string) error {
	prefixed := make([]string, len(keys))
	for i, k := range keys {
		prefixed[i] = n.prefix + k
	}
	return n.kv.Delete(ctx, prefixed...)
}
