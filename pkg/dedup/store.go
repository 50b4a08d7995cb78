// Copyright 2025 zhengshuai.xiao@outlook.com
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
package dedup

import (
	"context"
	"os"
	"time"
)

// ChunkStore persists chunks under their digest. Implementations must be
// safe for concurrent use.
type ChunkStore interface {
	// Put stores data unless an entry with the same digest exists. The
	// bool reports whether a new entry was written. Once Put returns the
	// entry is durable.
	Put(ctx context.Context, data []byte) (Digest, bool, error)
	// Get returns the raw bytes of an entry, ErrNotFound when absent.
	Get(ctx context.Context, d Digest) ([]byte, error)
	Exists(ctx context.Context, d Digest) (bool, error)
	Delete(ctx context.Context, d Digest) error
	// Walk calls fn for every entry, in no particular order.
	Walk(ctx context.Context, fn func(d Digest, info os.FileInfo) error) error
	Stats(ctx context.Context) (StoreStats, error)
}

type StoreStats struct {
	Entries int64
	// DiskBytes is the on-disk size of all entries, headers included.
	DiskBytes int64
}

// housekeeper is implemented by stores that leave debris behind crashed
// writers: abandoned temp files and empty directories.
type housekeeper interface {
	Housekeep(ctx context.Context, grace time.Duration) (int, error)
}
