// Gazetteer - Diaspora Place and Event Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gazetteer

// Package cache provides the thread-safe in-memory hot layer sitting in
// front of the durable file store. Named cache blobs (one per domain)
// are kept here between reads so request paths avoid re-parsing JSON
// files on every hit.
package cache
