// cmd/preflight/main.go
package main

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
)

func main() {
	fail := func(msg string) {
		fmt.Fprintln(os.Stderr, "✖", msg)
		os.Exit(1)
	}
	warn := func(msg string) { fmt.Fprintln(os.Stderr, "⚠", msg) }
	ok := func(msg string) { fmt.Println("✔", msg) }

	addr := strings.TrimSpace(os.Getenv("ADDR"))
	db := strings.TrimSpace(os.Getenv("DATABASE_PATH"))
	gp := strings.TrimSpace(os.Getenv("GLOBALPING_URL"))
	tick := strings.TrimSpace(os.Getenv("TICK_SECONDS"))
	conc := strings.TrimSpace(os.Getenv("MAX_CONCURRENT_CHECKS"))
	cfgFile := strings.TrimSpace(os.Getenv("CONFIG_FILE"))

	if cfgFile != "" {
		if _, err := os.Stat(cfgFile); err != nil {
			fail("CONFIG_FILE set but unreadable: " + err.Error())
		}
		ok("CONFIG_FILE=" + cfgFile)
	}

	if addr == "" {
		warn("ADDR is empty; default 127.0.0.1:8080 will be used.")
	} else {
		ok("ADDR=" + addr)
	}

	if db == "" {
		warn("DATABASE_PATH empty — measurements will live in memory and vanish on restart.")
	} else {
		ok("DATABASE_PATH=" + db)
	}

	if gp != "" {
		if u, err := url.Parse(gp); err != nil || !u.IsAbs() {
			fail("GLOBALPING_URL is not an absolute URL: " + gp)
		}
		ok("GLOBALPING_URL=" + gp)
	}

	for name, v := range map[string]string{"TICK_SECONDS": tick, "MAX_CONCURRENT_CHECKS": conc} {
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			fail(name + " must be a positive integer, got " + v)
		}
		ok(name + "=" + v)
	}

	ok("preflight passed")
}
