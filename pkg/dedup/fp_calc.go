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
	"encoding/hex"
	"fmt"

	"github.com/minio/sha256-simd"
)

// DigestSize is the length of a chunk identity in bytes.
const DigestSize = sha256.Size

// Digest is the SHA-256 of a chunk's raw bytes and its only identity.
type Digest [DigestSize]byte

func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// Short is the first 12 hex characters, for log lines.
func (d Digest) Short() string {
	return d.String()[:12]
}

func (d Digest) IsZero() bool {
	return d == Digest{}
}

// ParseDigest accepts the 64 character hex form produced by String.
func ParseDigest(s string) (Digest, error) {
	var d Digest
	if len(s) != 2*DigestSize {
		return d, fmt.Errorf("invalid digest %q: want %d hex characters", s, 2*DigestSize)
	}
	if _, err := hex.Decode(d[:], []byte(s)); err != nil {
		return d, fmt.Errorf("invalid digest %q: %w", s, err)
	}
	return d, nil
}

func CalcFP(buf []byte) Digest {
	return sha256.Sum256(buf)
}

// CalcFPs fills in FP for every chunk.
func CalcFPs(chunks []Chunk) {
	for i := range chunks {
		chunks[i].FP = CalcFP(chunks[i].Data)
		logger.Tracef("CalcFPs: chunk at %d len %d fp %s", chunks[i].Offset, chunks[i].Len, chunks[i].FP.Short())
	}
}
