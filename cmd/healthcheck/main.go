// Command healthcheck is the container liveness probe. It exits 0 when the
// monitor's heartbeat file exists and is recent enough, non-zero otherwise.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"pagewatch/internal/heartbeat"
)

func main() {
	var (
		path string
		poll time.Duration
	)
	flag.StringVar(&path, "heartbeat", "./data/heartbeat.txt", "path to heartbeat file")
	flag.DurationVar(&poll, "poll-interval", 60*time.Second, "monitor poll interval")
	flag.Parse()

	maxAge := heartbeat.MaxAge(poll)
	if err := heartbeat.Check(path, maxAge, time.Now()); err != nil {
		fmt.Fprintln(os.Stderr, "ERROR:", err)
		os.Exit(1)
	}
	fmt.Println("OK: heartbeat is recent")
}
