// Package crawler drives validated channels through a platform session.
//
// An Orchestrator opens one session, starts a bounded pool of workers that
// pull channels from a shared queue, paces each worker, retries rate-limited
// and transient failures according to a Policy, and collects every outcome
// into a model.CrawlRun in input order. One channel's failure never stops
// the others. Cancelling the context stops the run early; results already
// collected are kept.
package crawler
