package entity

import (
	"strconv"
	"time"

	"github.com/google/uuid"
)

type DocumentChunk struct {
	Id         uuid.UUID
	Collection string
	Source     string
	ChunkIndex int
	Content    string
	Metadata   map[string]interface{}
	Embedding  []float32
	CreatedAt  time.Time
	UpdatedAt  *time.Time
}

// ChunkNamespace seeds deterministic chunk ids so re-ingesting a page
// overwrites its rows instead of duplicating them.
var ChunkNamespace = uuid.MustParse("6f1c5a0e-8d4b-4e47-9a55-3c0f2b1d7e90")

func NewChunkID(collection, source string, chunkIndex int, content string) uuid.UUID {
	return uuid.NewSHA1(ChunkNamespace, []byte(collection+"\x00"+source+"\x00"+strconv.Itoa(chunkIndex)+"\x00"+content))
}
