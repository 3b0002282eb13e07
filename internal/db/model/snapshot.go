package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

const QuerySnapshotCollection = "query_snapshots"

// QuerySnapshotDocument caches one fetched Dune result set. Analyses fall
// back to the cached rows when a fetch fails, so an API outage or an
// exhausted credit budget does not stop a previously successful analysis.
type QuerySnapshotDocument struct {
	ID         string           `bson:"_id"` // "<query_id>:<params_hash>"
	QueryID    int64            `bson:"query_id"`
	ParamsHash string           `bson:"params_hash"`
	Rows       []map[string]any `bson:"rows"`
	FetchedAt  int64            `bson:"fetched_at"` // Unix timestamp
}

// HashParams derives a stable identifier from query parameters; the empty
// map hashes to the fixed "latest" bucket used by unparameterized queries.
func HashParams(params map[string]string) string {
	if len(params) == 0 {
		return "latest"
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, k := range keys {
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(params[k])
		sb.WriteByte(';')
	}

	sum := sha256.Sum256([]byte(sb.String()))
	return hex.EncodeToString(sum[:8])
}

func SnapshotID(queryID int64, paramsHash string) string {
	return fmt.Sprintf("%d:%s", queryID, paramsHash)
}
