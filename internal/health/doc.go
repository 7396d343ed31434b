// Package health serves a minimal HTTP health endpoint over chi,
// reporting the connection state last observed from session events.
//
// Usage:
//
//	reporter := health.NewReporter()
//	go func() {
//	    for ev := range client.Subscribe() {
//	        reporter.Observe(ev)
//	    }
//	}()
//	srv := health.NewServer(cfg.Health, reporter)
//	go srv.ListenAndServe()
package health
