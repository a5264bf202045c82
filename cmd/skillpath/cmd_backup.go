package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/HerbHall/skillpath/internal/backup"
)

func runBackup(args []string) {
	fs := flag.NewFlagSet("backup", flag.ExitOnError)
	output := fs.String("output", "", "output file path (default: skillpath-backup-{timestamp}.tar.gz)")
	configPath := fs.String("config", "", "configuration file; also included in the archive")
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	settings, err := loadSettings(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if settings.Store.Path == "" {
		fmt.Fprintln(os.Stderr, "error: store.path is empty; nothing to back up")
		os.Exit(1)
	}

	if *output == "" {
		*output = fmt.Sprintf("skillpath-backup-%s.tar.gz", time.Now().Format("20060102-150405"))
	}

	m, err := backup.Backup(context.Background(), settings.Store.Path, *configPath, *output)
	if err != nil {
		fmt.Fprintf(os.Stderr, "backup failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Backup created: %s (database %s)\n", *output, m.Database)
}
