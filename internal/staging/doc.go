// Package staging owns the capacity-bounded landing area where captured files
// wait for a downstream consumer.
//
// Every staged file moves through staged -> exported -> purged. Retention only
// ever purges files that were exported first; Remove forces a purge. Records
// live in memory, so SweepUntracked exists to reclaim copies left behind by a
// previous process.
package staging
