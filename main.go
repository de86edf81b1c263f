// Copyright 2025 RefZone Contributors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
)

func main() {
	fmt.Println("refsync - Offline-First Sync Engine for Officiating Data")
	fmt.Println("=========================================================")
	fmt.Println()
	fmt.Println("refsync keeps a device-local SQLite library of teams, venues,")
	fmt.Println("competitions, schedules, match history and journal entries in sync")
	fmt.Println("with a Postgres backend, with durable offline queues and")
	fmt.Println("last-writer-wins merging.")
	fmt.Println()

	fmt.Println("Packages:")
	fmt.Println()
	fmt.Println("  refsync/    generic sync coordinator (queues, retries, pull merge)")
	fmt.Println("  refsqlite/  SQLite local store and durable backlog")
	fmt.Println("  refhttp/    HTTP client gateway to the sync backend")
	fmt.Println("  refserver/  Postgres-backed backend service and HTTP handlers")
	fmt.Println("  refdata/    officiating entities, codecs and the Library bundle")
	fmt.Println()
	fmt.Println("Backend daemon:")
	fmt.Println()
	fmt.Println("  go run ./cmd/refsyncd -config refsyncd.yaml")
	fmt.Println()
}
