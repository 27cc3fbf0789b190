package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"sqldigest/internal/input"
)

func newDetectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "detect <file>",
		Short: "Guess the content type of a file without an extension",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]

			info, err := os.Stat(path)
			if err != nil {
				return err
			}
			kind, err := input.SniffFile(path)
			if err != nil {
				return err
			}

			fmt.Printf("file: %s\n", path)
			fmt.Printf("size: %d bytes\n", info.Size())
			fmt.Printf("type: %s\n", kind)
			return nil
		},
	}
}
