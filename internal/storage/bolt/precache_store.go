package bolt

import (
	"context"
	"fmt"

	"github.com/goodtune/fixposture/internal/storage"
	"go.etcd.io/bbolt"
)

type precacheStore struct {
	db *bbolt.DB
}

func (s *precacheStore) PutAsset(ctx context.Context, asset storage.Asset) error {
	if asset.Version == "" || asset.Name == "" {
		return fmt.Errorf("asset version and name are required")
	}
	data, err := marshal(asset)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		root := tx.Bucket([]byte(bucketPrecache))
		if root == nil {
			return fmt.Errorf("bucket missing: %s", bucketPrecache)
		}
		b, err := root.CreateBucketIfNotExists([]byte(asset.Version))
		if err != nil {
			return fmt.Errorf("create version bucket %s: %w", asset.Version, err)
		}
		return b.Put([]byte(asset.Name), data)
	})
}

func (s *precacheStore) GetAsset(ctx context.Context, version, name string) (*storage.Asset, error) {
	var asset *storage.Asset
	err := s.db.View(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		b := versionBucket(tx, version)
		if b == nil {
			return storage.ErrNotFound
		}
		value := b.Get([]byte(name))
		if value == nil {
			return storage.ErrNotFound
		}
		var result storage.Asset
		if err := unmarshal(value, &result); err != nil {
			return err
		}
		asset = &result
		return nil
	})
	if err != nil {
		return nil, err
	}
	return asset, nil
}

func (s *precacheStore) ListAssets(ctx context.Context, version string) ([]string, error) {
	names := make([]string, 0)
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := versionBucket(tx, version)
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, _ []byte) error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			names = append(names, string(k))
			return nil
		})
	})
	return names, err
}

func (s *precacheStore) ListVersions(ctx context.Context) ([]string, error) {
	versions := make([]string, 0)
	err := s.db.View(func(tx *bbolt.Tx) error {
		root := tx.Bucket([]byte(bucketPrecache))
		if root == nil {
			return nil
		}
		return root.ForEachBucket(func(k []byte) error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			versions = append(versions, string(k))
			return nil
		})
	})
	return versions, err
}

func (s *precacheStore) DeleteVersion(ctx context.Context, version string) (int, error) {
	deleted := 0
	err := s.db.Update(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		root := tx.Bucket([]byte(bucketPrecache))
		if root == nil {
			return nil
		}
		b := root.Bucket([]byte(version))
		if b == nil {
			return nil
		}
		deleted = b.Stats().KeyN
		if err := root.DeleteBucket([]byte(version)); err != nil {
			return fmt.Errorf("delete version bucket %s: %w", version, err)
		}

		meta := tx.Bucket([]byte(bucketMeta))
		for _, key := range []string{metaActive, metaWaiting} {
			if string(meta.Get([]byte(key))) == version {
				if err := meta.Delete([]byte(key)); err != nil {
					return err
				}
			}
		}
		return nil
	})
	return deleted, err
}

func (s *precacheStore) ActiveVersion(ctx context.Context) (string, error) {
	return getMeta(ctx, s.db, metaActive)
}

func (s *precacheStore) WaitingVersion(ctx context.Context) (string, error) {
	return getMeta(ctx, s.db, metaWaiting)
}

func (s *precacheStore) SetWaiting(ctx context.Context, version string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if versionBucket(tx, version) == nil {
			return storage.ErrNotFound
		}
		return tx.Bucket([]byte(bucketMeta)).Put([]byte(metaWaiting), []byte(version))
	})
}

func (s *precacheStore) Activate(ctx context.Context, version string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if versionBucket(tx, version) == nil {
			return storage.ErrNotFound
		}
		meta := tx.Bucket([]byte(bucketMeta))
		if err := meta.Put([]byte(metaActive), []byte(version)); err != nil {
			return err
		}
		return meta.Delete([]byte(metaWaiting))
	})
}
