package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/citybrief/citybrief/internal/config"
	"github.com/citybrief/citybrief/internal/session"
	"github.com/citybrief/citybrief/internal/store"
)

var purgeCmd = &cobra.Command{
	Use:   "purge [pattern...]",
	Short: "Delete cached and session state matching glob patterns",
	Long: `Deletes store keys matching the given glob patterns. With no
arguments the standard namespaces are swept: ` + fmt.Sprint(session.PurgePatterns),
	RunE: runPurge,
}

func init() {
	rootCmd.AddCommand(purgeCmd)
}

func runPurge(cmd *cobra.Command, args []string) error {
	ctx, span := tracer.Start(cmd.Context(), "purge")
	defer span.End()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	st, err := store.NewStore(cfg.StoreDBPath())
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	patterns := session.PurgePatterns
	if len(args) > 0 {
		patterns = args
	}

	removed, err := st.DeleteByPatterns(ctx, patterns)
	if err != nil {
		return fmt.Errorf("purging: %w", err)
	}

	fmt.Printf("Removed %d keys matching %v\n", removed, patterns)
	return nil
}
