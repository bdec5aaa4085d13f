/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"fmt"
	"html"
	"log"
	"strings"
	"time"

	"github.com/Seednode/secretbingo/records"
)

func logf(cfg *Config, format string, args ...any) {
	if !cfg.verbose {
		return
	}

	log.Printf("%s | "+format, append([]any{time.Now().Format(logDate)}, args...)...)
}

func errorf(format string, args ...any) {
	log.Printf("%s | ERROR: "+format, append([]any{time.Now().Format(logDate)}, args...)...)
}

// drainErrors logs handler write errors until errs is closed.
func drainErrors(errs <-chan error) {
	for err := range errs {
		errorf("%v", err)
	}
}

// storeNotice turns a store outcome into a line shown to the player, or ""
// when there is nothing to say.
func storeNotice(collection string, res records.Result) string {
	switch {
	case res.Err != nil:
		return fmt.Sprintf("Could not access %s: %v", collection, res.Err)
	case res.Degraded:
		return fmt.Sprintf("The spreadsheet is unreachable; %s uses the local copy.", collection)
	default:
		return ""
	}
}

func newPage(prefix, title, body string) string {
	var htmlBody strings.Builder

	htmlBody.WriteString(`<!DOCTYPE html><html lang="en"><head>`)
	htmlBody.WriteString(getFavicon(prefix))
	htmlBody.WriteString(`<link rel="stylesheet" href="` + prefix + `/assets/app.css">`)
	htmlBody.WriteString(fmt.Sprintf("<title>%s</title></head>", html.EscapeString(title)))
	htmlBody.WriteString(fmt.Sprintf("<body class=\"bare\"><a href=\"%s/\">%s</a></body></html>", prefix, html.EscapeString(body)))

	return htmlBody.String()
}
