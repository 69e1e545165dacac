package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/shazow/wifiportal/internal/creds"
	"github.com/shazow/wifiportal/internal/scan"
)

// runScan runs one scan to completion and prints the result.
func runScan(ctx context.Context, w io.Writer, asJSON, sorted bool, logger *slog.Logger, scanner scan.Scanner, poll time.Duration) error {
	c := scan.New(logger, scanner)
	if !c.Trigger() {
		return fmt.Errorf("radio refused to start a scan")
	}
	for c.Running() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(poll):
		}
		c.Poll()
	}

	results := c.Results()
	if asJSON && !sorted {
		_, err := fmt.Fprintf(w, "%s\n", results)
		return err
	}

	var entries []scan.Entry
	if err := json.Unmarshal(results, &entries); err != nil {
		return fmt.Errorf("failed to decode scan results: %w", err)
	}
	if sorted {
		scan.SortEntries(entries)
	}
	if asJSON {
		b, err := scan.Marshal(entries)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(w, "%s\n", b)
		return err
	}
	for _, e := range entries {
		ssid := e.SSID
		if ssid == "" {
			ssid = "(hidden)"
		}
		line := fmt.Sprintf("%s\t%d dBm", ssid, e.RSSI)
		if e.Secure {
			line += ", secure"
		}
		fmt.Fprintln(w, line)
	}
	return nil
}

func runCreds(ctx context.Context, w io.Writer, showPass bool, store *creds.Store) error {
	c := store.Load(ctx)
	if c.Empty() {
		fmt.Fprintln(w, "no saved credentials")
		return nil
	}
	fmt.Fprintf(w, "SSID: %s\n", c.SSID)
	if showPass {
		fmt.Fprintf(w, "Passphrase: %s\n", c.Passphrase)
	} else if c.Passphrase == "" {
		fmt.Fprintln(w, "Passphrase: (open network)")
	}
	return nil
}
