// Package api exposes the crawl service over a JSON HTTP API built on gin.
//
// Routes:
//
//	GET  /health              liveness and pending login step
//	PUT  /api/channels        replace the channel list (JSON body or file upload)
//	GET  /api/channels        stored channel list
//	POST /api/run-crawler     run a crawl synchronously
//	GET  /api/results         last result with derived views
//	GET  /api/runs            run history
//	GET  /api/runs/:id        one stored run
//	GET  /api/discovered      stored discovered channels, ?source= filters
//	GET  /export-csv          last result as a CSV download
//	POST /api/auth/code       deliver a login code
//	POST /api/auth/password   deliver the two-factor password
package api
