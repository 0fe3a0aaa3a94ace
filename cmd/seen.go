/*
Copyright © 2025 Katie Mulliken <katie@mulliken.net>
*/
package cmd

import (
	"fmt"
	"io"
	"log"

	"github.com/seckatie/opinionwatch/internal/config"
	"github.com/seckatie/opinionwatch/internal/core/db"
	"github.com/spf13/cobra"
)

// seenCmd lists the opinions already delivered.
var seenCmd = &cobra.Command{
	Use:   "seen",
	Short: "List opinions already delivered",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, err := cmd.Flags().GetInt("limit")
		if err != nil {
			return fmt.Errorf("failed to read --limit: %w", err)
		}

		cfg, err := config.Load(settings)
		if err != nil {
			return err
		}

		store, err := db.OpenStore(cfg.Store, cfg.StateFile)
		if err != nil {
			return fmt.Errorf("failed to open seen set: %w", err)
		}
		defer func() {
			if err := store.Close(); err != nil {
				log.Printf("failed to close seen set: %v", err)
			}
		}()

		opinions, err := store.Load()
		if err != nil {
			return err
		}
		return printSeen(cmd.OutOrStdout(), opinions, limit)
	},
}

// printSeen writes the most recent opinions first, at most limit of them
// (0 = all).
func printSeen(w io.Writer, opinions []db.Opinion, limit int) error {
	if len(opinions) == 0 {
		_, err := fmt.Fprintln(w, "No opinions seen yet.")
		return err
	}

	n := len(opinions)
	if limit > 0 && limit < n {
		n = limit
	}
	for i := 0; i < n; i++ {
		o := opinions[len(opinions)-1-i]
		if _, err := fmt.Fprintf(w, "%s\t%s\n\t%s\n", o.DateFound, o.Title, o.URL); err != nil {
			return err
		}
	}
	return nil
}

func init() {
	rootCmd.AddCommand(seenCmd)

	seenCmd.Flags().IntP("limit", "n", 0, "Show at most this many opinions (0 = all)")
}
