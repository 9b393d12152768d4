package main

import (
	"fmt"
	"io"

	"multipoly/internal/fingerprint"

	"github.com/spf13/cobra"
)

func (a *app) fingerprintCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fingerprint [json]",
		Short: "Print the fingerprint of a JSON game state",
		Long: `Prints the SHA-256 fingerprint of a JSON document. Key order and
whitespace do not change the result. Pass - to read the document from stdin.

Example:
  multipoly fingerprint '{"position":"Red_Fort","tokens":{"token_red":2}}'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc := []byte(args[0])
			if args[0] == "-" {
				var err error
				doc, err = io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("failed to read stdin: %w", err)
				}
			}
			fp, err := fingerprint.FromJSON(doc)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), fp)
			return nil
		},
	}
}
