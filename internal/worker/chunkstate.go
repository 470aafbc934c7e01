// Package worker implements C9: the pipeline glue that drives discovery,
// chunking, staging, the analytics/RPC joins and the final upsert.
// Grounded on the teacher's internal/ingester/async_worker.go lease
// lifecycle, generalized from "height range" to "token chunk".
package worker

// ChunkState is one chunk's position in its lifecycle, per spec §4.9:
// staged -> queried -> enriched -> merged -> appended. Failures in the
// first three abort only the chunk; merged -> appended failures abort
// the whole run.
type ChunkState string

const (
	ChunkStaged   ChunkState = "staged"
	ChunkQueried  ChunkState = "queried"
	ChunkEnriched ChunkState = "enriched"
	ChunkMerged   ChunkState = "merged"
	ChunkAppended ChunkState = "appended"
)
