/*
Package telemetry records application metrics, assembles them into ping
documents and uploads them in the background.

A Client is created first and metrics and pings are declared against it.
Recording never blocks and never returns an error: operations are queued and
run in order by a single worker, and anything recorded before Initialize is
buffered and replayed once the store is open. Invalid input is counted as an
error against the metric and reported in the next ping.

Stored values have one of three lifetimes. Ping lifetime values are cleared
when their ping is submitted, application lifetime values when the process
restarts, and user lifetime values only when upload is disabled.

Example:

	client := telemetry.New()

	starts := telemetry.NewCounterMetric(client, telemetry.CommonMetricData{
		Category: "app",
		Name:     "starts",
		Lifetime: telemetry.LifetimePing,
	})
	starts.Add(1)

	err := client.Initialize(telemetry.Configuration{
		DataPath:       "/var/lib/myapp/telemetry.db",
		ApplicationID:  "myapp",
		ServerEndpoint: "https://incoming.example.com",
		UploadEnabled:  true,
	})
	if err != nil {
		log.Fatal(err)
	}
	defer client.Shutdown(0)

	metrics := telemetry.NewPingType(client, "metrics", telemetry.PingOptions{
		IncludeClientID: true,
	})
	metrics.Submit("")

Pings that fail to upload stay queued on disk and are retried with
exponential backoff, including after a restart.

Behaviour is tuned with environment variables:

	TELEMETRY_MAX_PREINIT_TASKS          operations buffered before Initialize
	TELEMETRY_UPLOAD_MAX_ATTEMPTS        attempts before a ping is dropped
	TELEMETRY_UPLOAD_BACKOFF_INITIAL_MS  first retry delay
	TELEMETRY_UPLOAD_BACKOFF_MAX_MS      retry delay cap
	TELEMETRY_UPLOAD_TIMEOUT_MS          HTTP request timeout
	TELEMETRY_SHUTDOWN_TIMEOUT_MS        default Shutdown deadline
	TELEMETRY_SQLITE_SYNC                SQLite synchronous pragma
	TELEMETRY_DEBUG                      debug logging
	TELEMETRY_LOG_PINGS                  log each assembled ping
*/
package telemetry
