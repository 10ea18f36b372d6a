// Package model defines the core data structures shared by the crawler,
// the report writers and the database layer.
//
// This package contains the following main types:
//   - ChannelID: a validated channel handle
//   - WorkItem: a ChannelID with its position in the input batch
//   - DiscoveredChannel: a similar channel returned by the platform
//   - CrawlRun: the aggregate result of one orchestration run
//
// The models are serializable to JSON for report output and database storage.
package model
