// Package handlers contains the reusable pieces of the HTTP interface:
// health checks and middleware.
//
// # Health Checks
//
// Checks run in parallel, each under its own timeout. Required checks decide
// readiness; optional ones only mark the service degraded:
//
//	checker := handlers.NewCompositeHealthChecker(version)
//	checker.AddCheck("postgres", handlers.NewPingCheck(db))
//	checker.AddOptionalCheck("redis", handlers.NewPingCheck(cache))
//
// # Authentication
//
// Mutating routes are guarded by APIKeyAuth. The configuration holds bcrypt
// hashes, never the keys themselves; `dojo hash-key` prints the hash for a
// new key. Keys are read from X-API-Key or an "Authorization: Bearer" header.
//
// # Middleware
//
//	h := handlers.ChainHandler(mux,
//	    handlers.SecurityHeadersMiddleware,
//	    handlers.NoCacheMiddleware,
//	    handlers.RequestSizeLimitMiddleware(64<<10),
//	)
package handlers
